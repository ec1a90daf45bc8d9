package models

import (
	"time"

	"github.com/bdougie/mira/internal/frame"
)

// RecognitionRequest is a converted frame ready for a recognition backend.
// It is created per gated frame and owns its Data.
type RecognitionRequest struct {
	Seq          uint64
	Data         []byte
	PlaneLengths [3]int
	Width        int
	Height       int
	Orientation  frame.Orientation
	Format       frame.ImageFormat
	CapturedAt   time.Time
}

// Luma returns the luma slot of the packed buffer.
func (r *RecognitionRequest) Luma() []byte {
	return r.Data[:r.PlaneLengths[0]]
}

// Label is one ranked image label.
type Label struct {
	Text       string  `json:"text"`
	Confidence float32 `json:"confidence"`
}

// Labels is a labeling response, best match first.
type Labels []Label

// TextElement is the smallest unit of recognized text, usually a word.
type TextElement struct {
	Text string `json:"text"`
}

// TextLine is an ordered run of elements.
type TextLine struct {
	Elements []TextElement `json:"elements"`
}

// TextBlock is a paragraph-like group of lines.
type TextBlock struct {
	Lines []TextLine `json:"lines"`
}

// Text is a text recognition response.
type Text struct {
	Blocks []TextBlock `json:"blocks"`
}

// Luma is the average luminance of a frame, 0-255.
type Luma float64

// AnalysisResult represents the persisted outcome of analyzing a frame
type AnalysisResult struct {
	Session     string    `json:"session" msgpack:"session"`
	Analyzer    string    `json:"analyzer" msgpack:"analyzer"`
	Seq         uint64    `json:"seq" msgpack:"seq"`
	Kind        string    `json:"kind" msgpack:"kind"`
	Content     string    `json:"content" msgpack:"content"`
	CapturedAt  time.Time `json:"captured_at" msgpack:"captured_at"`
	CompletedAt time.Time `json:"completed_at" msgpack:"completed_at"`
}

// FrameSearchResult is a stored analysis matched by similarity search.
type FrameSearchResult struct {
	Session     string
	Seq         uint64
	Analyzer    string
	Description string
	CapturedAt  time.Time
	Similarity  float64
}
