package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/exam-engine/internal/middleware"
	"github.com/stemsi/exam-engine/internal/proctor"
	"github.com/stemsi/exam-engine/internal/response"
	"github.com/stemsi/exam-engine/internal/service"
)

// domainErrors maps service sentinels to an HTTP status and error code.
var domainErrors = []struct {
	err    error
	status int
	code   response.ErrCode
}{
	{service.ErrExamNotFound, http.StatusNotFound, response.ErrExamNotFound},
	{service.ErrRegistrationClosed, http.StatusConflict, response.ErrRegistrationClosed},
	{service.ErrInvalidExamPassword, http.StatusForbidden, response.ErrInvalidExamPassword},
	{service.ErrNotRegistered, http.StatusForbidden, response.ErrNotRegistered},
	{service.ErrWindowClosed, http.StatusConflict, response.ErrWindowClosed},
	{service.ErrAttemptsExhausted, http.StatusConflict, response.ErrAttemptsExhausted},
	{service.ErrRetakeLocked, http.StatusConflict, response.ErrRetakeLocked},
	{service.ErrAttemptNotFound, http.StatusNotFound, response.ErrAttemptNotFound},
	{service.ErrAttemptForbidden, http.StatusForbidden, response.ErrAttemptForbidden},
	{service.ErrAttemptNotActive, http.StatusConflict, response.ErrAttemptNotActive},
	{service.ErrItemNotInPaper, http.StatusBadRequest, response.ErrItemNotInPaper},
	{service.ErrInvalidOption, http.StatusBadRequest, response.ErrInvalidOption},
	{service.ErrNotRanked, http.StatusNotFound, response.ErrNotRanked},
	{proctor.ErrHubStopped, http.StatusServiceUnavailable, response.ErrChannelUnavailable},
}

// failWith writes the error response for err. Unknown errors are logged
// and reported as internal.
func failWith(c *gin.Context, log zerolog.Logger, err error) {
	for _, de := range domainErrors {
		if errors.Is(err, de.err) {
			response.Fail(c, de.status, de.code)
			return
		}
	}

	code := response.ErrInternal
	if errors.Is(err, service.ErrQuestionUnavailable) {
		code = response.ErrQuestionUnavailable
	}
	log.Error().Err(err).
		Str("method", c.Request.Method).
		Str("path", c.FullPath()).
		Msg("Request failed")
	response.Fail(c, http.StatusInternalServerError, code)
}

// claimsOrFail returns the caller's claims, or writes 401 and returns nil.
func claimsOrFail(c *gin.Context) *service.Claims {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
	}
	return claims
}

// uuidParam parses a path parameter, or writes 400 and returns false.
func uuidParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return uuid.Nil, false
	}
	return id, true
}
