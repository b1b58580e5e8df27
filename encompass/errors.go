package encompass

import (
	"errors"
	"fmt"
)

var (
	ErrNoAccessToken = errors.New("token response has no access_token")
	ErrInvalidQuery  = errors.New("invalid loan query")
)

// APIError is returned when the Encompass API answers with an unexpected
// status.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("encompass api returned status %d: %s", e.StatusCode, e.Body)
}
