package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/xaenox/botpanel/internal/models"
	"github.com/xaenox/botpanel/internal/storage"
	"go.uber.org/zap"
)

type ErrorResponse struct {
	Error string `json:"error"`
}

func statusFor(err error) int {
	var verr *models.ValidationError
	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, storage.ErrPermissionDenied):
		return http.StatusForbidden
	case errors.Is(err, storage.ErrConflict):
		return http.StatusConflict
	case storage.IsTransient(err):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) fail(c *gin.Context, err error) {
	code := statusFor(err)
	if code >= http.StatusInternalServerError {
		s.logger.Error("Request failed", zap.Error(err), zap.String("path", c.FullPath()))
		if code == http.StatusInternalServerError {
			c.JSON(code, ErrorResponse{Error: "internal error"})
			return
		}
	}
	c.JSON(code, ErrorResponse{Error: err.Error()})
}
