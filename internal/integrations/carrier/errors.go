package carrier

import (
	"errors"
	"fmt"
)

// Request error taxonomy. ErrProviderConfig and ErrRequestSetup are
// configuration bugs and non-retryable; APIError and ErrNetwork are
// retryable on the next scheduled cycle, never within the same call.
var (
	ErrProviderConfig = errors.New("provider has no usable API configuration")
	ErrNetwork        = errors.New("no response from carrier API")
	ErrRequestSetup   = errors.New("carrier request setup failed")
)

// APIError means the carrier responded with a non-2xx status.
type APIError struct {
	HTTPStatus int
	Status     string
}

func (e *APIError) Error() string {
	if e.Status != "" {
		return fmt.Sprintf("carrier API error: %s", e.Status)
	}
	return fmt.Sprintf("carrier API error: http %d", e.HTTPStatus)
}
