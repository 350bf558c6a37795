package handler

import (
	"errors"
	"net/http"

	"sensor-fleet-server/internal/logger"
	"sensor-fleet-server/internal/middleware"
	appErrors "sensor-fleet-server/pkg/errors"
	"sensor-fleet-server/pkg/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// respondError is the single boundary adapter from the typed error model
// to transport responses. Deliberate errors map to precise status codes;
// anything unexpected is logged with full context and returned opaque.
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, appErrors.ErrBadRequest):
		utils.ErrorResponse(c, http.StatusBadRequest, clientMessage(err, "invalid request"))
	case errors.Is(err, appErrors.ErrInvalidAPIKey):
		utils.ErrorResponse(c, http.StatusUnauthorized, "Invalid API key")
	case errors.Is(err, appErrors.ErrDeviceNotApproved):
		utils.ErrorResponse(c, http.StatusForbidden, appErrors.ErrDeviceNotApproved.Error())
	case errors.Is(err, appErrors.ErrDeviceNotFound):
		utils.ErrorResponse(c, http.StatusNotFound, "Device not found")
	case errors.Is(err, appErrors.ErrFirmwareNotFound):
		utils.ErrorResponse(c, http.StatusNotFound, "Firmware not found")
	case errors.Is(err, appErrors.ErrFirmwareFileMissing):
		// Server-side integrity problem, but the device can only retry.
		utils.ErrorResponse(c, http.StatusNotFound, "Firmware file not found on server")
	case errors.Is(err, appErrors.ErrUpdateNotFound):
		utils.ErrorResponse(c, http.StatusNotFound, "Update not found")
	case errors.Is(err, appErrors.ErrDeviceAlreadyExists), errors.Is(err, appErrors.ErrFirmwareAlreadyExists):
		utils.ErrorResponse(c, http.StatusConflict, clientMessage(err, "already exists"))
	case isValidationError(err):
		utils.ErrorResponse(c, http.StatusBadRequest, clientMessage(err, "invalid request"))
	default:
		logger.Error("Unhandled error at request boundary",
			zap.String("request_id", middleware.GetRequestID(c)),
			zap.String("path", c.Request.URL.Path),
			zap.Error(err),
		)
		utils.ErrorResponse(c, http.StatusInternalServerError, "Internal server error")
	}
}

func isValidationError(err error) bool {
	var appErr *appErrors.AppError
	return errors.As(err, &appErr) && appErr.Code == "VALIDATION_ERROR"
}

// clientMessage surfaces the caller-facing message of a deliberate
// error without exposing wrapped internals.
func clientMessage(err error, fallback string) string {
	var appErr *appErrors.AppError
	if errors.As(err, &appErr) && appErr.Message != "" {
		return appErr.Message
	}

	return fallback
}
