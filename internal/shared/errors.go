package shared

import (
	"errors"
	"fmt"
)

var (
	ErrNotImplemented = fmt.Errorf("not implemented")
	ErrUnsupported    = fmt.Errorf("operation not supported")

	// Configuration errors
	ErrMissingConfig      = fmt.Errorf("configuration not found")
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")

	// Authentication errors
	ErrAuthRequired   = fmt.Errorf("authorization required")
	ErrRefreshFailed  = fmt.Errorf("token refresh failed")
	ErrNoRefreshToken = fmt.Errorf("no refresh token available")
	ErrTimeout        = fmt.Errorf("operation timed out")

	// API and service errors
	ErrAPIRequest         = fmt.Errorf("API request failed")
	ErrServiceUnavailable = fmt.Errorf("service unavailable")
	ErrPlaylistNotFound   = fmt.Errorf("playlist not found")
	ErrTrackNotFound      = fmt.Errorf("track not found")

	// Transfer errors
	ErrUnsupportedPair = fmt.Errorf("unsupported platform pair")
	ErrEmptyResult     = fmt.Errorf("no tracks were matched")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
)

// AuthRequiredError names the platform whose consent flow the user must complete.
type AuthRequiredError struct {
	Platform string
	Err      error
}

func (e *AuthRequiredError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", ErrAuthRequired, e.Platform, e.Err)
	}
	return fmt.Sprintf("%s: %s", ErrAuthRequired, e.Platform)
}

func (e *AuthRequiredError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrAuthRequired, e.Err}
	}
	return []error{ErrAuthRequired}
}

// NewAuthRequired wraps cause (which may be nil) into an [AuthRequiredError].
func NewAuthRequired(platform string, cause error) error {
	return &AuthRequiredError{Platform: platform, Err: cause}
}

// AuthPlatform returns the platform carried by an [AuthRequiredError] in err's chain.
func AuthPlatform(err error) (string, bool) {
	var ae *AuthRequiredError
	if errors.As(err, &ae) {
		return ae.Platform, true
	}
	return "", false
}
