package server

import (
	"net/http"

	"github.com/teranos/newsdesk/ai/openrouter"
	"github.com/teranos/newsdesk/articles"
	"github.com/teranos/newsdesk/errors"
	"github.com/teranos/newsdesk/logger"
)

// Error codes returned in the "code" field of error responses
const (
	CodeUnauthorized      = "unauthorized"
	CodeForbidden         = "forbidden"
	CodeNotFound          = "not_found"
	CodeInvalidFilter     = "invalid_filter"
	CodeInvalidRequest    = "invalid_request"
	CodeRateLimited       = "rate_limited"
	CodePaymentRequired   = "payment_required"
	CodeUpstream          = "upstream_error"
	CodeMalformedResponse = "malformed_response"
	CodeInternal          = "internal"
)

// classify maps an error to its HTTP status and code. First match wins, so
// more specific sentinels come before the ones they are marked with.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, errors.ErrUnauthorized):
		return http.StatusUnauthorized, CodeUnauthorized
	case errors.Is(err, errors.ErrForbidden):
		return http.StatusForbidden, CodeForbidden
	case errors.Is(err, errors.ErrNotFound):
		return http.StatusNotFound, CodeNotFound
	case errors.Is(err, articles.ErrInvalidFilter):
		return http.StatusBadRequest, CodeInvalidFilter
	case errors.Is(err, errors.ErrInvalidRequest):
		return http.StatusBadRequest, CodeInvalidRequest
	case errors.Is(err, openrouter.ErrRateLimited):
		return http.StatusTooManyRequests, CodeRateLimited
	case errors.Is(err, openrouter.ErrPaymentRequired):
		return http.StatusPaymentRequired, CodePaymentRequired
	case errors.Is(err, openrouter.ErrMalformedResponse):
		return http.StatusBadGateway, CodeMalformedResponse
	case errors.Is(err, openrouter.ErrUpstream):
		return http.StatusBadGateway, CodeUpstream
	default:
		return http.StatusInternalServerError, CodeInternal
	}
}

// writeErr writes err as a structured error response. Internal errors are
// logged and reported without their message.
func (s *Server) writeErr(w http.ResponseWriter, r *http.Request, err error) {
	status, code := classify(err)
	body := errorResponse{Error: err.Error(), Code: code, Hint: errors.FlattenHints(err)}

	if status == http.StatusInternalServerError {
		s.logger.Errorw("Request failed",
			logger.FieldMethod, r.Method,
			logger.FieldPath, r.URL.Path,
			logger.FieldError, err,
		)
		body = errorResponse{Error: "internal error", Code: code}
	} else {
		s.logger.Debugw("Request rejected",
			logger.FieldPath, r.URL.Path,
			logger.FieldStatusCode, status,
			logger.FieldError, err,
		)
	}
	writeJSON(w, status, body)
}
