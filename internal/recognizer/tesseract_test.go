//go:build tesseract

package recognizer

import "testing"

func TestNewTesseractQuality(t *testing.T) {
	ts, err := NewTesseract("eng", 60)
	if err != nil {
		t.Skipf("tesseract unavailable: %v", err)
	}
	defer ts.Close()
	if ts.quality != 60 {
		t.Errorf("quality=%d", ts.quality)
	}
}
