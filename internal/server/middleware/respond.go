package middleware

import (
	"encoding/json"
	"log"
	"net/http"
)

// Stable error codes returned to clients. Authentication codes distinguish
// idle vs absolute vs revoked because that is operationally useful once a
// session existed; credential failures stay generic.
const (
	CodeInvalidRequest     = "InvalidRequest"
	CodeInvalidCredentials = "InvalidCredentials"
	CodeInvalidToken       = "InvalidToken"
	CodeTokenRevoked       = "TokenRevoked"
	CodeRevoked            = "Revoked"
	CodeIdleExpired        = "IdleExpired"
	CodeAbsoluteExpired    = "AbsoluteExpired"
	CodeSessionExpired     = "SessionExpired"
	CodeSessionNotFound    = "SessionNotFound"
	CodeMissingPermission  = "MissingPermission"
	CodeNotOwner           = "NotOwner"
	CodeRateLimited        = "RateLimited"
	CodeUserNotFound       = "UserNotFound"
	CodeWeakPassword       = "WeakPassword"
	CodeInternal           = "Internal"
)

// ErrorBody is the JSON shape of every non-2xx response.
type ErrorBody struct {
	Code               string `json:"code"`
	Message            string `json:"message"`
	RequiredPermission string `json:"requiredPermission,omitempty"`
}

// RespondJSON writes v as JSON with the given status. A nil v writes only the
// status code.
func RespondJSON(w http.ResponseWriter, status int, v any) {
	if v == nil {
		w.WriteHeader(status)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("server: encode response: %v", err)
	}
}

// RespondError writes a structured error response.
func RespondError(w http.ResponseWriter, status int, code, message string) {
	RespondJSON(w, status, ErrorBody{Code: code, Message: message})
}

// RespondDenied writes a 403 naming the permission the caller lacked.
func RespondDenied(w http.ResponseWriter, code, message, requiredPermission string) {
	RespondJSON(w, http.StatusForbidden, ErrorBody{
		Code:               code,
		Message:            message,
		RequiredPermission: requiredPermission,
	})
}

// RespondInternal logs err and writes a generic 500. The error detail stays
// server-side.
func RespondInternal(w http.ResponseWriter, err error) {
	log.Printf("server: internal error: %v", err)
	RespondError(w, http.StatusInternalServerError, CodeInternal, "internal error")
}

// DecodeJSON decodes the request body into v, rejecting unknown fields. On
// failure it writes a 400 and returns false.
func DecodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		RespondError(w, http.StatusBadRequest, CodeInvalidRequest, "malformed request body")
		return false
	}
	return true
}
