package main

import "errors"

// Sentinel errors for command operations
var (
	ErrEnvironmentNotFound = errors.New("environment not found")
	ErrMissingDBOrEnv      = errors.New("missing database or environment")
	ErrInvalidParams       = errors.New("invalid parameters")
	ErrInvalidOutputFormat = errors.New("invalid output format")
)
