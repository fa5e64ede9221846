package services

import "errors"

// ErrInvalidInput marks a request the caller must fix; handlers map it to 400.
var ErrInvalidInput = errors.New("invalid input")
