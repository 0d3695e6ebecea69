package server

import (
	"errors"
	"net/http"

	"github.com/UnknownOlympus/coordtrans/internal/apperr"
	"github.com/UnknownOlympus/coordtrans/internal/models"
	"github.com/gin-gonic/gin"
)

const (
	statusSuccess = "success"
	statusFailed  = "failed"
	statusError   = "error"
)

// Response is the JSON envelope of every API reply.
type Response struct {
	Status string `json:"status"`
	Code   int    `json:"code"`
	Msg    string `json:"msg"`
	Data   any    `json:"data"`
}

func (s *Server) success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, Response{Status: statusSuccess, Code: http.StatusOK, Msg: "success", Data: data})
}

// notFound is a successful request without a match, so the HTTP status stays 200.
func (s *Server) notFound(c *gin.Context, msg string) {
	c.JSON(http.StatusOK, Response{Status: statusFailed, Code: http.StatusNotFound, Msg: msg})
}

func (s *Server) fail(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, Response{Status: statusError, Code: status, Msg: msg})
}

// handleError maps a request-level error to its envelope.
func (s *Server) handleError(c *gin.Context, err error) {
	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) {
		err = apperr.Capacity("file too large")
	}

	appErr, ok := apperr.As(err)
	if !ok {
		appErr = apperr.Internal("internal server error", err)
	}

	status := appErr.HTTPStatus()
	if status >= http.StatusInternalServerError {
		s.log.ErrorContext(c.Request.Context(), "Request failed",
			"path", c.Request.URL.Path, "error", err, "request_id", requestID(c))
		s.fail(c, status, "internal server error")
		return
	}

	s.log.WarnContext(c.Request.Context(), "Request rejected",
		"path", c.Request.URL.Path, "kind", appErr.Kind.String(), "error", appErr.Message)
	s.fail(c, status, appErr.Message)
}

// writeResult replies to a single lookup.
func (s *Server) writeResult(c *gin.Context, result models.ProviderResult) {
	if result.Status == models.StatusSuccess {
		s.success(c, result.Payload())
		return
	}

	switch result.FailureKind {
	case models.FailureNotFound:
		s.notFound(c, result.ErrorReason)
	case models.FailureTimeout:
		s.fail(c, http.StatusGatewayTimeout, result.ErrorReason)
	case models.FailureRateLimited:
		s.fail(c, http.StatusTooManyRequests, result.ErrorReason)
	case models.FailureCancelled:
		s.fail(c, http.StatusServiceUnavailable, result.ErrorReason)
	case models.FailureInternal:
		s.fail(c, http.StatusInternalServerError, result.ErrorReason)
	default:
		s.fail(c, http.StatusBadGateway, result.ErrorReason)
	}
}
