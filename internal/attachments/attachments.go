// Package attachments validates uploaded chat media and hands accepted files to storage.
package attachments

import (
	"context"
	"errors"
	"fmt"

	"github.com/gabriel-vasile/mimetype"

	"github.com/ageniuscoder/shopdesk/backend/internal/apperr"
	"github.com/ageniuscoder/shopdesk/backend/internal/models"
)

const (
	MaxImages = 3
	MaxAudio  = 1
	MaxSize   = 10 << 20
)

type kind int

const (
	image kind = iota + 1
	audio
)

var whitelist = []struct {
	mime string
	kind kind
}{
	{"image/jpeg", image},
	{"image/png", image},
	{"image/gif", image},
	{"audio/mpeg", audio},
	{"audio/wav", audio},
	{"audio/ogg", audio},
	{"audio/webm", audio},
}

type Store interface {
	Save(ctx context.Context, ext string, data []byte) (url string, err error)
	Delete(ctx context.Context, url string) error
}

type Rejected struct {
	Filename string `json:"filename"`
	Reason   string `json:"reason"`
}

type Result struct {
	Images   []string   `json:"images"`
	Audio    string     `json:"audio,omitempty"`
	Rejected []Rejected `json:"rejected,omitempty"`
}

func (r Result) Empty() bool { return len(r.Images) == 0 && r.Audio == "" }

type Processor struct {
	store   Store
	maxSize int
}

func NewProcessor(store Store, maxSize int) *Processor {
	if maxSize <= 0 {
		maxSize = MaxSize
	}
	return &Processor{store: store, maxSize: maxSize}
}

// detect sniffs the content and returns its whitelisted kind and extension.
func detect(data []byte) (kind, string, string) {
	m := mimetype.Detect(data)
	for _, w := range whitelist {
		if m.Is(w.mime) {
			return w.kind, w.mime, m.Extension()
		}
	}
	return 0, m.String(), ""
}

// Process stores every acceptable file. Files that fail validation are reported in Rejected and
// do not affect the others; a storage failure aborts with ServerFault.
func (p *Processor) Process(ctx context.Context, files []models.Attachment) (Result, error) {
	res := Result{Images: []string{}}
	reject := func(f models.Attachment, format string, args ...any) {
		res.Rejected = append(res.Rejected, Rejected{Filename: f.Filename, Reason: fmt.Sprintf(format, args...)})
	}

	for _, f := range files {
		if len(f.Data) == 0 {
			reject(f, "empty file")
			continue
		}
		if len(f.Data) > p.maxSize {
			reject(f, "file larger than %d bytes", p.maxSize)
			continue
		}
		k, mime, ext := detect(f.Data)
		switch {
		case k == 0:
			reject(f, "type %s is not allowed", mime)
			continue
		case k == image && len(res.Images) >= MaxImages:
			reject(f, "at most %d images per message", MaxImages)
			continue
		case k == audio && res.Audio != "":
			reject(f, "at most %d audio clip per message", MaxAudio)
			continue
		}

		url, err := p.store.Save(ctx, ext, f.Data)
		if err != nil {
			err = errors.Join(err, p.Discard(ctx, res))
			return Result{}, apperr.Wrap(apperr.ServerFault, "store attachment", err)
		}
		if k == image {
			res.Images = append(res.Images, url)
		} else {
			res.Audio = url
		}
	}
	return res, nil
}

// Discard deletes the stored files of res. It is used when the message they
// belong to is never written.
func (p *Processor) Discard(ctx context.Context, res Result) error {
	urls := res.Images
	if res.Audio != "" {
		urls = append(urls[:len(urls):len(urls)], res.Audio)
	}
	var errs []error
	for _, url := range urls {
		if err := p.store.Delete(ctx, url); err != nil {
			errs = append(errs, fmt.Errorf("delete %s: %w", url, err))
		}
	}
	return errors.Join(errs...)
}
