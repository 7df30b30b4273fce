package fetch

import (
	"context"
	"errors"
	"net"
)

var (
	// ErrTooManyRedirects is returned when a redirect chain exceeds Options.MaxRedirects.
	ErrTooManyRedirects = errors.New("too many redirects")

	// ErrTimeout is returned when the request timer fires before the request completes.
	ErrTimeout = errors.New("timeout")

	// ErrAborted is delivered when Abort is called before a response arrived.
	ErrAborted = errors.New("request aborted")

	// ErrInvalidURI is returned when the target cannot be turned into a GET request.
	ErrInvalidURI = errors.New("invalid URI")
)

// IsNotFoundHost reports whether err is a DNS failure for a host that does
// not exist.
func IsNotFoundHost(err error) bool {
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return dnsErr.IsNotFound
	}
	return false
}

// classify maps transport errors onto the package sentinels where possible.
// deadline is the logical operation's own timer, distinct from the caller's context.
func classify(err error, deadline context.Context) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrTooManyRedirects) || errors.Is(err, ErrTimeout) || errors.Is(err, ErrAborted) {
		return err
	}
	if errors.Is(deadline.Err(), context.DeadlineExceeded) {
		return ErrTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrTimeout
	}
	return err
}
