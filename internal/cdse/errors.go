package cdse

import "errors"

var (
	// ErrAuthentication is returned when the identity service rejects the
	// credentials or returns no token.
	ErrAuthentication = errors.New("authentication failed")

	// ErrNotAuthenticated is returned when a request needs a token and
	// Authenticate has not succeeded.
	ErrNotAuthenticated = errors.New("client is not authenticated")

	// ErrDownload is returned when a product archive cannot be transferred.
	ErrDownload = errors.New("download failed")
)
