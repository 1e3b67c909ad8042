package core

import "errors"

var (
	// ErrValidation marks requests whose payload is missing or malformed.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound is returned when no image has been saved or it was cleared.
	ErrNotFound = errors.New("not found")
	// ErrUnsupportedImage is returned when the stored image cannot be decoded for a preview.
	ErrUnsupportedImage = errors.New("unsupported image")
)

// StorageError wraps any failure of the storage backend.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

func storageError(op string, err error) error {
	return &StorageError{Op: op, Err: err}
}
