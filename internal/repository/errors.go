package repository

import "errors"

var (
	// ErrNotFound is returned when a requested entity does not exist.
	ErrNotFound = errors.New("entity not found")

	// ErrAlreadyExists is returned when creating an entity whose key is taken.
	ErrAlreadyExists = errors.New("entity already exists")

	// ErrAlreadyResolved is returned when resolving a transaction that has
	// already left the initiated state.
	ErrAlreadyResolved = errors.New("transaction already resolved")
)
