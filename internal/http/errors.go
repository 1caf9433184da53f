package httpapi

import (
	"errors"
	"net/http"

	"github.com/DS2-PROYECTO-2/ds2-2-back-sub001/internal/models"

	"go.uber.org/zap"
)

// statusFor maps domain errors onto HTTP statuses.
func statusFor(err error) int {
	var br *badRequest
	switch {
	case errors.As(err, &br):
		return http.StatusBadRequest
	case errors.Is(err, errNoActor):
		return http.StatusUnauthorized
	case errors.Is(err, models.ErrNotAdmin):
		return http.StatusForbidden
	case errors.Is(err, models.ErrAlreadyInRoom),
		errors.Is(err, models.ErrAlreadyClosed),
		errors.Is(err, models.ErrNoActiveEntry):
		return http.StatusConflict
	case errors.Is(err, models.ErrNotFound),
		errors.Is(err, models.ErrUnknownMonitor),
		errors.Is(err, models.ErrUnknownRoom):
		return http.StatusNotFound
	case errors.Is(err, models.ErrTimeout):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, r *http.Request, logger *zap.Logger, err error) {
	writeErrorStatus(w, r, logger, statusFor(err), err)
}

func writeErrorStatus(w http.ResponseWriter, r *http.Request, logger *zap.Logger, status int, err error) {
	fields := []zap.Field{
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.String("request_id", requestID(r.Context())),
		zap.Int("status", status),
		zap.Error(err),
	}
	if status >= http.StatusInternalServerError {
		logger.Error("Request failed", fields...)
	} else {
		logger.Info("Request rejected", fields...)
	}
	writeJSON(w, status, Fail(err.Error()))
}
