package repository

import "errors"

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists is returned when a primary key is taken.
	ErrAlreadyExists = errors.New("already exists")
)
