package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/loykin/frpdeck/internal/manager"
	"github.com/loykin/frpdeck/internal/profile"
)

func sanitizeBase(bp string) string {
	bp = strings.TrimSpace(bp)
	if bp == "" || bp == "/" {
		return ""
	}
	if !strings.HasPrefix(bp, "/") {
		bp = "/" + bp
	}
	return strings.TrimRight(bp, "/")
}

func writeJSON(c *gin.Context, code int, v any) {
	c.Header("Content-Type", "application/json")
	c.Status(code)
	_ = json.NewEncoder(c.Writer).Encode(v)
}

func writeText(c *gin.Context, code int, s string) {
	c.Header("Content-Type", "text/plain; charset=utf-8")
	c.Status(code)
	_, _ = c.Writer.WriteString(s)
}

// statusFor maps supervisor and validation errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, manager.ErrInvalidID), errors.Is(err, profile.ErrInvalid):
		return http.StatusBadRequest
	case errors.Is(err, errProfileNotFound), errors.Is(err, manager.ErrConfigNotFound):
		return http.StatusNotFound
	case errors.Is(err, manager.ErrAlreadyRunning), errors.Is(err, manager.ErrNotRunning):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeErr(c *gin.Context, err error) {
	writeJSON(c, statusFor(err), errorResp{Error: err.Error()})
}
