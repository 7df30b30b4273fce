package meta

import (
	"errors"
	"fmt"
)

var (
	// ErrCircuitOpen is returned when an oEmbed provider is skipped after repeated failures.
	ErrCircuitOpen = errors.New("circuit breaker open")

	// ErrInvalidOEmbed is returned when an oEmbed response cannot be decoded.
	ErrInvalidOEmbed = errors.New("invalid oEmbed response")

	// ErrNilDependency is returned when the loader is built without a fetcher.
	ErrNilDependency = errors.New("nil dependency")
)

// StatusError is returned when the origin answers with an error status.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP request returned status %d", e.Code)
}
