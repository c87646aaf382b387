package httpx

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/ageniuscoder/shopdesk/backend/internal/apperr"
	"github.com/ageniuscoder/shopdesk/backend/internal/models"
)

// AttachmentFields are the multipart fields a message form may carry files in.
var AttachmentFields = []string{"images", "audio"}

// Attachments reads the files of a multipart message form. Non-multipart requests have none.
// Each file is read up to limit+1 bytes so oversized uploads can still be reported by name.
func Attachments(c *gin.Context, limit int) ([]models.Attachment, error) {
	form, err := c.MultipartForm()
	if errors.Is(err, http.ErrNotMultipart) {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.Invalid("invalid multipart form")
	}

	var out []models.Attachment
	for _, field := range AttachmentFields {
		for _, fh := range form.File[field] {
			f, err := fh.Open()
			if err != nil {
				return nil, apperr.Wrap(apperr.ServerFault, "open upload", err)
			}
			data, err := io.ReadAll(io.LimitReader(f, int64(limit)+1))
			f.Close()
			if err != nil {
				return nil, apperr.Wrap(apperr.ServerFault, "read upload", err)
			}
			out = append(out, models.Attachment{
				Filename:    fh.Filename,
				ContentType: fh.Header.Get("Content-Type"),
				Data:        data,
			})
		}
	}
	return out, nil
}

// UserIDParam parses a positive :userId path parameter.
func UserIDParam(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("userId"), 10, 64)
	if err != nil || id <= 0 {
		Fail(c, apperr.Invalid("invalid user id"))
		return 0, false
	}
	return id, true
}
