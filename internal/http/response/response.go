package response

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/bookmatch-backend/internal/jobs/scheduler"
	"github.com/yungbote/bookmatch-backend/internal/platform/apierr"
	"github.com/yungbote/bookmatch-backend/internal/services"
)

type APIError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

func RespondError(c *gin.Context, status int, code string, err error) {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	c.JSON(status, ErrorEnvelope{
		Error: APIError{
			Message: msg,
			Code:    code,
		},
	})
}

// RespondServiceError picks the status and code for err from the service
// error taxonomy.
func RespondServiceError(c *gin.Context, err error) {
	status, code := StatusFor(err)
	RespondError(c, status, code, err)
}

// StatusFor maps err to a status and code. Collaborator failures and
// timeouts are 500s told apart by code.
func StatusFor(err error) (int, string) {
	if ae, ok := apierr.As(err); ok {
		return ae.Status, ae.Code
	}
	switch {
	case errors.Is(err, services.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, services.ErrInvalidInput):
		return http.StatusBadRequest, "invalid_input"
	case errors.Is(err, scheduler.ErrUnknownJob):
		return http.StatusNotFound, "unknown_job"
	case errors.Is(err, scheduler.ErrJobRunning):
		return http.StatusConflict, "job_running"
	case errors.Is(err, scheduler.ErrStopped):
		return http.StatusServiceUnavailable, "shutting_down"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusInternalServerError, "timeout"
	}
	var ext *services.ExternalServiceError
	if errors.As(err, &ext) {
		return http.StatusInternalServerError, "external_service_error"
	}
	var se *services.StoreError
	if errors.As(err, &se) {
		return http.StatusInternalServerError, "store_error"
	}
	return http.StatusInternalServerError, "internal_error"
}

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}
