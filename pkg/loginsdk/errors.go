package loginsdk

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/civicwatch/reportline/pkg/httpx"
)

// Stable wire error codes. These mirror the reject reasons the login
// orchestrator produces, plus transport-level codes.
const (
	ErrorCodeInvalidRequest      = "invalid_request"
	ErrorCodeAccountNotFound     = "account_not_found"
	ErrorCodeAccountBanned       = "account_banned"
	ErrorCodeInvalidCredentials  = "invalid_credentials"
	ErrorCodeEmailUnconfirmed    = "email_unconfirmed"
	ErrorCodeOTPSendFailed       = "otp_send_failed"
	ErrorCodeOTPExpired          = "otp_expired"
	ErrorCodeOTPInvalid          = "otp_invalid"
	ErrorCodeOTPUnknownError     = "otp_verification_unknown_error"
	ErrorCodeProfileLookupFailed = "profile_lookup_failed"
	ErrorCodeResendCooldown      = "resend_cooldown"
	ErrorCodeInvalidToken        = "invalid_token"
	ErrorCodeServerError         = "server_error"
)

// APIError is the JSON error body every endpoint returns on failure. It
// implements the error interface so the SDK client can surface it directly.
type APIError struct {
	// StatusCode is the HTTP status code for this error.
	StatusCode int `json:"-"`

	// Code is the stable machine-readable error code.
	Code string `json:"error"`

	// Description is a human-readable description of the error.
	Description string `json:"error_description"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

// WriteError writes this APIError to an HTTP response writer.
func (e *APIError) WriteError(w http.ResponseWriter) {
	httpx.NoCache(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(e.StatusCode)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":             e.Code,
		"error_description": e.Description,
	})
}

var (
	// ErrInvalidRequest is returned when the request body is malformed or
	// missing required parameters.
	ErrInvalidRequest = &APIError{
		StatusCode:  http.StatusBadRequest,
		Code:        ErrorCodeInvalidRequest,
		Description: "the request is malformed or missing required parameters",
	}

	// ErrInvalidToken is returned when the session token is missing,
	// malformed, or failed validation.
	ErrInvalidToken = &APIError{
		StatusCode:  http.StatusUnauthorized,
		Code:        ErrorCodeInvalidToken,
		Description: "the session token is missing or invalid",
	}

	// ErrResendCooldown is returned when a code resend is requested before
	// the cooldown window has elapsed.
	ErrResendCooldown = &APIError{
		StatusCode:  http.StatusTooManyRequests,
		Code:        ErrorCodeResendCooldown,
		Description: "a code was sent recently, wait before requesting another",
	}

	// ErrServerError is returned for unexpected internal failures.
	ErrServerError = &APIError{
		StatusCode:  http.StatusInternalServerError,
		Code:        ErrorCodeServerError,
		Description: "an unexpected internal error occurred",
	}
)
