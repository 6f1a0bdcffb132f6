package httpserver

import "errors"

var (
	// ErrStart wraps failures to bind or serve.
	ErrStart = errors.New("httpserver: start failed")
	// ErrShutdown wraps failures to drain within the shutdown timeout.
	ErrShutdown = errors.New("httpserver: shutdown failed")
)
