//go:build !tesseract

package recognizer

import (
	"errors"
	"testing"
)

func TestNewTesseractWithoutTag(t *testing.T) {
	if _, err := NewTesseract("eng", 60); !errors.Is(err, ErrTesseractUnavailable) {
		t.Errorf("err=%v", err)
	}
}
