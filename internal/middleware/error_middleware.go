package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yigit/slotbook/internal/app/models/dto"
	"github.com/yigit/slotbook/internal/pkg/apperrors"
	"github.com/yigit/slotbook/internal/pkg/logger"
)

// errorMapping is the HTTP rendering of one error category
type errorMapping struct {
	target  error
	status  int
	code    dto.ErrorCode
	message string
}

// errorMappings is checked in order; the first matching category wins
var errorMappings = []errorMapping{
	{apperrors.ErrValidationFailed, http.StatusBadRequest, dto.ErrorCodeValidationFailed, "Validation failed"},
	{apperrors.ErrResourceNotFound, http.StatusNotFound, dto.ErrorCodeResourceNotFound, "Resource not found"},
	{apperrors.ErrQuotaExceeded, http.StatusBadRequest, dto.ErrorCodeQuotaExceeded, "Slot quota exceeded"},
	{apperrors.ErrConflict, http.StatusBadRequest, dto.ErrorCodeConflict, "Conflict"},
	{apperrors.ErrInvalidCredentials, http.StatusUnauthorized, dto.ErrorCodeInvalidCredentials, "Invalid credentials"},
	{apperrors.ErrTokenExpired, http.StatusUnauthorized, dto.ErrorCodeExpiredToken, "Session expired"},
	{apperrors.ErrTokenInvalid, http.StatusUnauthorized, dto.ErrorCodeInvalidToken, "Invalid session"},
	{apperrors.ErrUnauthorized, http.StatusUnauthorized, dto.ErrorCodeUnauthorized, "Authentication required"},
}

// HandleAPIError is the single place where service errors become HTTP
// responses. The message of a CustomError is shown to the client; causes are
// only logged.
func HandleAPIError(c *gin.Context, err error) {
	for _, m := range errorMappings {
		if !errors.Is(err, m.target) {
			continue
		}
		detail := dto.NewErrorDetail(m.code, apperrors.Message(err, m.message))
		if details := apperrors.Details(err); len(details) > 0 {
			detail = detail.WithDetails(details)
		}
		c.AbortWithStatusJSON(m.status, dto.NewErrorResponse(detail))
		return
	}

	logger.Error().
		Err(err).
		Str("method", c.Request.Method).
		Str("path", c.FullPath()).
		Msg("Request failed")

	message := "Internal server error"
	if errors.Is(err, apperrors.ErrInternal) {
		message = apperrors.Message(err, message)
	}
	detail := dto.NewErrorDetail(dto.ErrorCodeInternalServer, message).WithSeverity(dto.ErrorSeverityCritical)
	c.AbortWithStatusJSON(http.StatusInternalServerError, dto.NewErrorResponse(detail))
}
