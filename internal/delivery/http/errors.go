package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/recipetube/backend/internal/domain"
)

// errorResponse is the body of every failed request
type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

var authStatus = map[domain.AuthErrorKind]int{
	domain.AuthInvalidCredentials: http.StatusUnauthorized,
	domain.AuthEmailNotVerified:   http.StatusForbidden,
	domain.AuthEmailTaken:         http.StatusConflict,
	domain.AuthWeakPassword:       http.StatusBadRequest,
	domain.AuthSessionMissing:     http.StatusUnauthorized,
	domain.AuthSessionExpired:     http.StatusUnauthorized,
	domain.AuthInvalidToken:       http.StatusBadRequest,
	domain.AuthUnauthorized:       http.StatusUnauthorized,
}

// classify maps an error to its HTTP status, code and client-facing message
func classify(err error) (int, errorResponse) {
	var authErr *domain.AuthError
	if errors.As(err, &authErr) {
		status, ok := authStatus[authErr.Kind]
		if !ok {
			status = http.StatusUnauthorized
		}
		return status, errorResponse{Error: authErr.Error(), Code: string(authErr.Kind)}
	}

	var quotaErr *domain.QuotaExceededError
	if errors.As(err, &quotaErr) {
		return http.StatusTooManyRequests, errorResponse{Error: quotaErr.Error(), Code: string(quotaErr.Kind) + "_quota_exceeded"}
	}

	var extractionErr *domain.ExtractionError
	if errors.As(err, &extractionErr) {
		if extractionErr.Reason == domain.ExtractionStatus {
			return http.StatusBadGateway, errorResponse{Error: "recipe extraction service is unavailable", Code: "extraction_failed"}
		}
		return http.StatusUnprocessableEntity, errorResponse{Error: "could not read a recipe from this video", Code: "extraction_failed"}
	}

	switch {
	case errors.Is(err, domain.ErrInvalidRequest):
		return http.StatusBadRequest, errorResponse{Error: err.Error(), Code: "invalid_request"}
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, errorResponse{Error: "not found", Code: "not_found"}
	case errors.Is(err, domain.ErrDuplicateRecipe):
		return http.StatusConflict, errorResponse{Error: domain.ErrDuplicateRecipe.Error(), Code: "duplicate_recipe"}
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict, errorResponse{Error: "request conflicted with another update, try again", Code: "conflict"}
	case errors.Is(err, domain.ErrParse):
		return http.StatusUnprocessableEntity, errorResponse{Error: domain.ErrParse.Error(), Code: "parse_error"}
	case errors.Is(err, domain.ErrExternalService):
		return http.StatusBadGateway, errorResponse{Error: "upstream service is unavailable", Code: "upstream_error"}
	}
	return http.StatusInternalServerError, errorResponse{Error: "internal server error", Code: "internal_error"}
}

// respondError writes err as JSON and logs server-side failures
func (h *Handler) respondError(c *gin.Context, err error) {
	status, body := classify(err)
	if status >= http.StatusInternalServerError {
		h.log.Error().Err(err).Str("path", c.FullPath()).Int("status", status).Msg("request failed")
	} else {
		h.log.Debug().Err(err).Str("path", c.FullPath()).Int("status", status).Msg("request rejected")
	}
	c.AbortWithStatusJSON(status, body)
}

func abortWithCode(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, errorResponse{Error: message, Code: code})
}
