//go:build tesseract

package recognizer

import (
	"context"
	"fmt"
	"sync"

	"github.com/otiai10/gosseract/v2"

	"github.com/bdougie/mira/internal/analyzer"
	"github.com/bdougie/mira/internal/models"
)

// Tesseract reads text locally with libtesseract.
type Tesseract struct {
	mu      sync.Mutex
	client  *gosseract.Client
	quality int
}

var _ analyzer.Backend[models.Text] = (*Tesseract)(nil)

// NewTesseract creates an OCR backend. Frames are encoded as JPEG at quality
// before recognition; 0 selects frame.DefaultJPEGQuality.
func NewTesseract(language string, quality int) (*Tesseract, error) {
	if language == "" {
		language = "eng"
	}
	client := gosseract.NewClient()
	if err := client.SetLanguage(language); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to set OCR language: %w", err)
	}
	if err := client.SetPageSegMode(gosseract.PSM_AUTO); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to set page segmentation mode: %w", err)
	}
	return &Tesseract{client: client, quality: quality}, nil
}

// Recognize groups recognized words by block and line number.
func (t *Tesseract) Recognize(ctx context.Context, req *models.RecognitionRequest) (models.Text, error) {
	img, err := encode(req, t.quality)
	if err != nil {
		return models.Text{}, err
	}
	if err := ctx.Err(); err != nil {
		return models.Text{}, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.client.SetImageFromBytes(img); err != nil {
		return models.Text{}, fmt.Errorf("set OCR image: %w", err)
	}
	boxes, err := t.client.GetBoundingBoxesVerbose()
	if err != nil {
		return models.Text{}, fmt.Errorf("get bounding boxes: %w", err)
	}

	var out models.Text
	lastBlock, lastLine := -1, -1
	for _, box := range boxes {
		if box.Word == "" {
			continue
		}
		if box.BlockNum != lastBlock {
			out.Blocks = append(out.Blocks, models.TextBlock{})
			lastBlock, lastLine = box.BlockNum, -1
		}
		block := &out.Blocks[len(out.Blocks)-1]
		if box.LineNum != lastLine {
			block.Lines = append(block.Lines, models.TextLine{})
			lastLine = box.LineNum
		}
		line := &block.Lines[len(block.Lines)-1]
		line.Elements = append(line.Elements, models.TextElement{Text: box.Word})
	}
	return out, nil
}

func (t *Tesseract) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.client.Close()
}
