package app

import "errors"

var (
	// ErrInvalidCredentials indicates a login with the wrong username or password.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrMissingFields indicates a required request field is absent or blank.
	ErrMissingFields = errors.New("missing required fields")
	// ErrInvalidImage indicates an image is not a PNG or JPEG base64 data URI.
	ErrInvalidImage = errors.New("invalid image")
)
