// Package common holds sentinel errors shared by the storage layer, the
// services built on it, and the HTTP handlers that map them to status codes.
package common

import "errors"

var (
	// repository specific errors
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")

	// service specific errors
	ErrUnauthorized = errors.New("unauthorized")
	ErrInvalidInput = errors.New("invalid input")
)
