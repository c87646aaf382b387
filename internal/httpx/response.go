package httpx

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/ageniuscoder/shopdesk/backend/internal/apperr"
	"github.com/ageniuscoder/shopdesk/backend/internal/utils"
)

func OK(c *gin.Context, v any) {
	c.JSON(http.StatusOK, v)
}

func Created(c *gin.Context, v any) {
	c.JSON(http.StatusCreated, v)
}

func Err(c *gin.Context, code int, msg any) {
	c.JSON(code, gin.H{"error": msg})
}

func StatusOf(kind apperr.Kind) int {
	switch kind {
	case apperr.Unauthorized:
		return http.StatusUnauthorized
	case apperr.Forbidden:
		return http.StatusForbidden
	case apperr.NotFound:
		return http.StatusNotFound
	case apperr.InvalidInput:
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func body(c *gin.Context, err error) (int, gin.H) {
	kind := apperr.KindOf(err)
	if kind == apperr.ServerFault {
		slog.ErrorContext(c.Request.Context(), "request failed",
			"request_id", c.GetString(RequestIDKey), "path", c.FullPath(), "error", err)
	}
	return StatusOf(kind), gin.H{"error": apperr.Message(err), "kind": kind}
}

// Fail writes err as {"error", "kind"} with the status matching its kind.
func Fail(c *gin.Context, err error) {
	code, h := body(c, err)
	c.JSON(code, h)
}

func Abort(c *gin.Context, err error) {
	code, h := body(c, err)
	c.AbortWithStatusJSON(code, h)
}

// Bind decodes the JSON body into v and reports validator failures field by field.
func Bind(c *gin.Context, v any) bool {
	if err := c.ShouldBindJSON(v); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": utils.ValidationErr(verrs),
				"kind":  apperr.InvalidInput,
			})
			return false
		}
		Fail(c, apperr.Invalid("invalid request body"))
		return false
	}
	return true
}
