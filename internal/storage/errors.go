package storage

import "errors"

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("storage: not found")

// ErrNotOwner is returned by ownership-checked writes when the target record
// belongs to a different customer. The write is rolled back.
var ErrNotOwner = errors.New("storage: record belongs to another customer")
