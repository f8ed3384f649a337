package handlers

import (
	"net/http"

	"github.com/upb/coffee-shop/backend/services"
	"github.com/upb/coffee-shop/backend/utils"
	"go.uber.org/zap"
)

// HandleServiceError maps domain errors to HTTP responses. Clients only see
// the fixed message for each status; the cause goes to the log.
func HandleServiceError(w http.ResponseWriter, err error, logger *zap.Logger) {
	if err == nil {
		return
	}

	details := services.GetErrorDetails(err)
	if len(details) == 0 {
		details = nil
	}

	var writeErr error
	switch {
	case services.IsNotFoundError(err):
		logger.Debug("resource not found", zap.Error(err))
		writeErr = utils.WriteNotFound(w, "")

	case services.IsValidationError(err):
		logger.Debug("invalid request", zap.Error(err))
		writeErr = utils.WriteBadRequest(w, "", details)

	case services.IsConflictError(err):
		logger.Info("unprocessable request", zap.Error(err))
		writeErr = utils.WriteUnprocessable(w, "", nil)

	case services.IsInternalError(err):
		logger.Error("internal server error", zap.Error(err))
		writeErr = utils.WriteInternalServerError(w, "")

	default:
		logger.Error("unhandled error type",
			zap.Error(err),
			zap.String("error_type", string(services.GetErrorType(err))))
		writeErr = utils.WriteInternalServerError(w, "")
	}

	if writeErr != nil {
		logger.Error("failed to write error response", zap.Error(writeErr))
	}
}

// HandleDecodeError answers a request whose body could not be decoded
func HandleDecodeError(w http.ResponseWriter, err error, logger *zap.Logger) {
	logger.Debug("malformed request body", zap.Error(err))
	if err := utils.WriteBadRequest(w, "", nil); err != nil {
		logger.Error("failed to write bad request response", zap.Error(err))
	}
}
