//go:build !tesseract

package recognizer

import (
	"context"
	"errors"

	"github.com/bdougie/mira/internal/models"
)

// ErrTesseractUnavailable is returned when the binary was built without the
// tesseract build tag.
var ErrTesseractUnavailable = errors.New("recognizer: built without tesseract support (use -tags tesseract)")

type Tesseract struct{}

func NewTesseract(language string, quality int) (*Tesseract, error) {
	return nil, ErrTesseractUnavailable
}

func (t *Tesseract) Recognize(ctx context.Context, req *models.RecognitionRequest) (models.Text, error) {
	return models.Text{}, ErrTesseractUnavailable
}

func (t *Tesseract) Close() error { return nil }
