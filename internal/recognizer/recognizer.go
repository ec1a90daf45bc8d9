// Package recognizer provides the recognition backends behind the frame
// analyzers: vision-model labelers and text readers, Tesseract OCR and a
// local luminosity meter.
package recognizer

import (
	"context"
	"errors"
	"fmt"

	"github.com/bdougie/mira/internal/analyzer"
	"github.com/bdougie/mira/internal/frame"
	"github.com/bdougie/mira/internal/models"
)

// ErrNoResponse is returned when a model answers with no content.
var ErrNoResponse = errors.New("recognizer: no response from model")

// VisionClient sends one JPEG image and a prompt to a multimodal model and
// returns its raw text answer.
type VisionClient interface {
	Describe(ctx context.Context, prompt string, jpeg []byte) (string, error)
}

const labelPrompt = `List the main objects visible in this image.
Respond with JSON only, in the form [{"label": "Cat", "confidence": 0.92}],
ordered from most to least confident. Confidence is between 0 and 1.
Respond with [] if nothing can be identified.`

const textPrompt = `Transcribe all legible text visible in this image.
Respond with JSON only, in the form {"blocks": [{"lines": ["FIRST LINE", "SECOND LINE"]}]},
one block per paragraph or sign, lines in reading order.
Respond with {"blocks": []} if there is no text.`

// Labeler labels frames through a VisionClient.
type Labeler struct {
	Client    VisionClient
	Quality   int
	MaxLabels int
}

var _ analyzer.Backend[models.Labels] = (*Labeler)(nil)

// Recognize encodes req as JPEG, asks the model for labels and ranks them.
func (l *Labeler) Recognize(ctx context.Context, req *models.RecognitionRequest) (models.Labels, error) {
	img, err := encode(req, l.Quality)
	if err != nil {
		return nil, err
	}
	raw, err := l.Client.Describe(ctx, labelPrompt, img)
	if err != nil {
		return nil, err
	}
	labels, err := ParseLabels(raw)
	if err != nil {
		return nil, err
	}
	if l.MaxLabels > 0 && len(labels) > l.MaxLabels {
		labels = labels[:l.MaxLabels]
	}
	return labels, nil
}

// TextReader reads text from frames through a VisionClient.
type TextReader struct {
	Client  VisionClient
	Quality int
}

var _ analyzer.Backend[models.Text] = (*TextReader)(nil)

func (r *TextReader) Recognize(ctx context.Context, req *models.RecognitionRequest) (models.Text, error) {
	img, err := encode(req, r.Quality)
	if err != nil {
		return models.Text{}, err
	}
	raw, err := r.Client.Describe(ctx, textPrompt, img)
	if err != nil {
		return models.Text{}, err
	}
	return ParseText(raw)
}

func encode(req *models.RecognitionRequest, quality int) ([]byte, error) {
	if quality <= 0 {
		quality = frame.DefaultJPEGQuality
	}
	img, err := frame.EncodeJPEG(req.Data, req.PlaneLengths, req.Width, req.Height, req.Orientation, quality)
	if err != nil {
		return nil, fmt.Errorf("encode frame %d: %w", req.Seq, err)
	}
	return img, nil
}
