package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/guttosm/pricefinder/internal/domain/dto"
	"github.com/guttosm/pricefinder/internal/domain/models"
	"github.com/guttosm/pricefinder/internal/logger"
)

const genericErrorMessage = "an unexpected error occurred, please try again"

// ErrorHandler turns errors attached with c.Error() into a JSON error envelope.
//
// Mapping (last attached error wins):
//   - dto.ErrorResponse with Status set: used as-is.
//   - *models.InvalidQueryError: 400 with the validation reason.
//   - *models.PriceNotFoundError: 404 with the lookup criteria.
//   - anything else: 500 with a generic message; the cause is only logged.
//
// Handlers that already wrote a response are left untouched.
func ErrorHandler(c *gin.Context) {
	c.Next()

	if len(c.Errors) == 0 || c.Writer.Written() {
		return
	}

	err := c.Errors.Last().Err
	status, resp := classify(err)
	resp = resp.WithStatus(status, c.Request.URL.Path)

	ev := logger.L().Warn()
	if status >= http.StatusInternalServerError {
		ev = logger.L().Error()
	}
	rid, _ := c.Get(RequestIDKey)
	ev.Err(err).
		Str("request_id", toString(rid)).
		Int("status", status).
		Str("path", c.Request.URL.Path).
		Msg("request failed")

	c.AbortWithStatusJSON(status, resp)
}

func classify(err error) (int, dto.ErrorResponse) {
	var envelope dto.ErrorResponse
	if errors.As(err, &envelope) && envelope.Status != 0 {
		return envelope.Status, envelope
	}

	var invalid *models.InvalidQueryError
	if errors.As(err, &invalid) {
		return http.StatusBadRequest, dto.NewErrorResponse(invalid.Reason, nil)
	}

	var notFound *models.PriceNotFoundError
	if errors.As(err, &notFound) {
		return http.StatusNotFound, dto.NewErrorResponse(notFound.Error(), nil)
	}

	return http.StatusInternalServerError, dto.NewErrorResponse(genericErrorMessage, nil)
}

// AbortWithError aborts the request with status and a JSON envelope built
// from message and err.
func AbortWithError(c *gin.Context, status int, message string, err error) {
	resp := dto.NewErrorResponse(message, err).WithStatus(status, c.Request.URL.Path)
	_ = c.Error(resp)
	c.AbortWithStatusJSON(status, resp)
}
