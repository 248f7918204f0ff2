package service

import (
	"fmt"
	"net/http"
)

// AuthError is a domain failure carrying its wire representation. Every
// expected condition in the session flows maps to one of the constructors
// below; handlers translate it once at the boundary and nothing internal
// leaks to the caller.
type AuthError struct {
	Code        string
	Description string
	Status      int
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

func newAuthError(code, desc string, status int) *AuthError {
	return &AuthError{Code: code, Description: desc, Status: status}
}

func errDuplicateAccount() *AuthError {
	return newAuthError("duplicate_account", "Email is already registered.", http.StatusBadRequest)
}

func errInvalidCredentials() *AuthError {
	return newAuthError("invalid_credentials", "Wrong password.", http.StatusBadRequest)
}

func errAccountNotFound() *AuthError {
	return newAuthError("account_not_found", "Email not found.", http.StatusNotFound)
}

func errAccountUnverified() *AuthError {
	return newAuthError("account_unverified", "Account has not been verified.", http.StatusUnauthorized)
}

func errRemoteRejected() *AuthError {
	return newAuthError("remote_rejected", "Invalid email or password format.", http.StatusBadRequest)
}

func errRemoteUnavailable() *AuthError {
	return newAuthError("remote_unavailable", "Identity provider is unavailable.", http.StatusInternalServerError)
}

func errRemoteInconsistency() *AuthError {
	return newAuthError("remote_inconsistency", "Registered identity could not be retrieved.", http.StatusInternalServerError)
}

// ErrInvalidRefreshToken is returned when the refresh cookie value fails
// verification.
func ErrInvalidRefreshToken() *AuthError {
	return newAuthError("invalid_refresh_token", "Refresh token is invalid or expired.", http.StatusUnauthorized)
}

// ErrMissingRefreshToken is returned when no refresh cookie accompanies the
// request.
func ErrMissingRefreshToken() *AuthError {
	return newAuthError("missing_refresh_token", "Refresh token cookie is missing.", http.StatusUnauthorized)
}

// ErrMissingAuthorization is returned for absent or malformed Authorization
// headers.
func ErrMissingAuthorization() *AuthError {
	return newAuthError("missing_authorization", "Authorization header missing or malformed.", http.StatusUnauthorized)
}

// ErrInvalidAccessToken is returned when a bearer token fails verification.
func ErrInvalidAccessToken() *AuthError {
	return newAuthError("invalid_access_token", "Access token is invalid or expired.", http.StatusUnauthorized)
}
