package attachments

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// Disk writes uploads under dir with random names and serves them from baseURL.
type Disk struct {
	dir     string
	baseURL string
}

func NewDisk(dir, baseURL string) (*Disk, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &Disk{dir: dir, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

func (d *Disk) Dir() string { return d.dir }

func (d *Disk) Save(_ context.Context, ext string, data []byte) (string, error) {
	name := uuid.NewString() + ext
	if err := os.WriteFile(filepath.Join(d.dir, name), data, 0o644); err != nil {
		return "", err
	}
	return d.baseURL + "/" + name, nil
}

// Delete removes a file previously returned by Save. A missing file is not an error.
func (d *Disk) Delete(_ context.Context, url string) error {
	name, ok := strings.CutPrefix(url, d.baseURL+"/")
	if !ok || name == "" || path.Base(name) != name {
		return fmt.Errorf("not an upload url: %q", url)
	}
	err := os.Remove(filepath.Join(d.dir, name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}
