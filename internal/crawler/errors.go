package crawler

import "errors"

var (
	// ErrInvalidStartURL is returned when the start URL is empty or whitespace.
	ErrInvalidStartURL = errors.New("start URL is empty")

	// ErrTooManyRedirects is reported for links whose redirect chain is
	// longer than MaxRedirects.
	ErrTooManyRedirects = errors.New("stopped after too many redirects")
)
