package embed

import "errors"

var (
	// ErrUnsupportedURL is returned for URIs that are not absolute http(s) URLs
	ErrUnsupportedURL = errors.New("unsupported URL")

	// ErrNilDependency is returned when the service is built without a required collaborator
	ErrNilDependency = errors.New("nil dependency")
)
