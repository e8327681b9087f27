package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"guardian/internal/detector"
	"guardian/internal/domain"
	"guardian/internal/observability/middleware"
	"guardian/internal/tokencipher"
)

type errorBody struct {
	Error  string            `json:"error"`
	Code   string            `json:"code"`
	Fields map[string]string `json:"fields,omitempty"`
}

// classify maps an error onto its status and stable code. Unknown errors are
// internal and their text is never sent to the client.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest, "validation_failed"
	case errors.Is(err, detector.ErrImageDecode):
		return http.StatusBadRequest, "bad_image"
	case errors.Is(err, domain.ErrUnknownAccount):
		return http.StatusNotFound, "unknown_account"
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, domain.ErrAlreadyClaimedBySelf):
		return http.StatusConflict, "already_linked_to_you"
	case errors.Is(err, domain.ErrAlreadyClaimedByOther):
		return http.StatusConflict, "already_linked_to_other"
	case errors.Is(err, domain.ErrUsernameTaken):
		return http.StatusConflict, "username_taken"
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict, "conflict"
	case errors.Is(err, domain.ErrInvalidCredentials):
		return http.StatusUnauthorized, "invalid_credentials"
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, domain.ErrAccountDisabled):
		return http.StatusForbidden, "account_disabled"
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, domain.ErrInvalidToken), errors.Is(err, tokencipher.ErrDecryption):
		return http.StatusUnprocessableEntity, "invalid_pairing_key"
	case errors.Is(err, detector.ErrDetectorUnavailable):
		return http.StatusServiceUnavailable, "detector_unavailable"
	}
	return http.StatusInternalServerError, "internal"
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := classify(err)
	body := errorBody{Error: err.Error(), Code: code}

	var ve *domain.ValidationError
	if errors.As(err, &ve) {
		body.Error = "validation failed"
		body.Fields = ve.Fields
	}
	if status >= http.StatusInternalServerError {
		slog.Error("request failed", append(middleware.LogAttrs(r.Context()), "path", r.URL.Path, "error", err)...)
		if status == http.StatusInternalServerError {
			body.Error = "internal error"
		} else {
			body.Error = http.StatusText(status)
		}
	}
	writeJSON(w, status, body)
}

func badRequest(w http.ResponseWriter, r *http.Request, field, msg string) {
	writeError(w, r, domain.FieldError(field, msg))
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		_ = json.NewEncoder(w).Encode(body)
	}
}
