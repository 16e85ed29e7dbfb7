package httputil

import (
	stderrors "errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"clinic-console/internal/rest"
	"clinic-console/pkg/errors"
)

// Response wraps all API responses
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *Error      `json:"error,omitempty"`
}

// Error represents API error
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// RespondWithSuccess sends a success response
func RespondWithSuccess(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    data,
	})
}

// RespondWithError sends an error response
func RespondWithError(c *gin.Context, err error) {
	status := statusFor(err)
	c.JSON(status, Response{
		Success: false,
		Error: &Error{
			Code:    status,
			Message: err.Error(),
		},
	})
}

func statusFor(err error) int {
	var appErr *errors.AppError
	if stderrors.As(err, &appErr) {
		switch appErr.Code {
		case errors.ErrNotFound:
			return http.StatusNotFound
		case errors.ErrValidation:
			return http.StatusBadRequest
		case errors.ErrUnauthorized:
			return http.StatusUnauthorized
		case errors.ErrConflict:
			return http.StatusConflict
		case errors.ErrPrecondition:
			return http.StatusUnprocessableEntity
		case errors.ErrConfirmationRequired:
			return http.StatusPreconditionRequired
		case errors.ErrOperationPending:
			return http.StatusTooManyRequests
		case errors.ErrUpstream:
			return http.StatusBadGateway
		}
	}

	var apiErr *rest.APIError
	if stderrors.As(err, &apiErr) {
		// Pass backend statuses through unchanged.
		return apiErr.StatusCode
	}

	return http.StatusInternalServerError
}
