package database

import (
	"context"
	"errors"
)

// ErrImageNotFound is returned when no original image is stored.
var ErrImageNotFound = errors.New("original image not found")

type DatabaseService interface {
	CreateDatabase(ctx context.Context) error
	DoesDatabaseExist(ctx context.Context) bool
	Close() error

	// GetFormulas returns all rows of one kind ordered bytewise by formula.
	GetFormulas(ctx context.Context, kind FormulaKind) ([]*Formula, error)
	// InsertFormulas inserts every entry that is not yet present within a single transaction.
	// The returned slice reports per entry whether a row was created; conflicts are not errors.
	InsertFormulas(ctx context.Context, entries []FormulaEntry) ([]bool, error)

	// ReplaceOriginalImage removes any stored image and inserts the new one with ID 1 atomically.
	ReplaceOriginalImage(ctx context.Context, imageData string) error
	GetOriginalImage(ctx context.Context) (*OriginalImage, error)
	DeleteOriginalImage(ctx context.Context) error
}
