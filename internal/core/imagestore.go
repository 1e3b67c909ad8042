package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/jo-hoe/formulastore/internal/backend/database"
	"github.com/jo-hoe/formulastore/internal/backend/imageprocessing"
)

// ImageStore holds at most one original image.
type ImageStore struct {
	databaseService database.DatabaseService
	preview         Preview
}

func NewImageStore(databaseService database.DatabaseService, preview Preview) *ImageStore {
	return &ImageStore{
		databaseService: databaseService,
		preview:         preview,
	}
}

// SaveImage replaces the stored image. Readers observe either the previous or the new image.
func (s *ImageStore) SaveImage(ctx context.Context, imageData string) error {
	if imageData == "" {
		return fmt.Errorf("%w: no image data provided", ErrValidation)
	}
	if err := s.databaseService.ReplaceOriginalImage(ctx, imageData); err != nil {
		return storageError("save image", err)
	}
	return nil
}

// LoadImage returns the stored image data or ErrNotFound.
func (s *ImageStore) LoadImage(ctx context.Context) (string, error) {
	img, err := s.databaseService.GetOriginalImage(ctx)
	if err != nil {
		if errors.Is(err, database.ErrImageNotFound) {
			return "", ErrNotFound
		}
		return "", storageError("load image", err)
	}
	return img.ImageData, nil
}

func (s *ImageStore) ClearImage(ctx context.Context) error {
	if err := s.databaseService.DeleteOriginalImage(ctx); err != nil {
		return storageError("clear image", err)
	}
	return nil
}

// PreviewImage renders the stored image as PNG. width 0 selects the configured maximum.
func (s *ImageStore) PreviewImage(ctx context.Context, width int) ([]byte, error) {
	if width < 0 {
		return nil, fmt.Errorf("%w: width must not be negative, got %d", ErrValidation, width)
	}

	imageData, err := s.LoadImage(ctx)
	if err != nil {
		return nil, err
	}

	preview, err := imageprocessing.RenderPreview(imageData, imageprocessing.PreviewOptions{
		Width:             width,
		MaxWidth:          s.preview.MaxWidth,
		MaxPixels:         s.preview.MaxPixels,
		SvgFallbackWidth:  s.preview.SvgFallbackWidth,
		SvgFallbackHeight: s.preview.SvgFallbackHeight,
	})
	if err != nil {
		if errors.Is(err, imageprocessing.ErrUnsupportedImage) {
			return nil, fmt.Errorf("%w: %v", ErrUnsupportedImage, err)
		}
		return nil, err
	}
	return preview, nil
}
