package analyzer

import (
	"strconv"
	"strings"

	"github.com/bdougie/mira/internal/models"
)

// Analyzer names.
const (
	LabelsName     = "labels"
	TextName       = "text"
	LuminosityName = "luminosity"
)

// Sentinel texts for empty responses.
const (
	NoLabelText = "Unable to label"
	NoTextText  = "No text found"
)

// FormatLabels renders the top-ranked label as "{label} {confidence}".
func FormatLabels(labels models.Labels) (string, bool) {
	if len(labels) == 0 {
		return "", true
	}
	top := labels[0]
	return top.Text + " " + formatConfidence(top.Confidence), false
}

func formatConfidence(c float32) string {
	s := strconv.FormatFloat(float64(c), 'g', -1, 32)
	if !strings.ContainsAny(s, ".eEnN") {
		s += ".0"
	}
	return s
}

// FormatText concatenates every element, block by block and line by line,
// without separators.
func FormatText(t models.Text) (string, bool) {
	if len(t.Blocks) == 0 {
		return "", true
	}
	var sb strings.Builder
	for _, block := range t.Blocks {
		for _, line := range block.Lines {
			for _, el := range line.Elements {
				sb.WriteString(el.Text)
			}
		}
	}
	return sb.String(), false
}

// FormatLuma renders average luminance with two decimals.
func FormatLuma(l models.Luma) (string, bool) {
	return strconv.FormatFloat(float64(l), 'f', 2, 64), false
}

// NewLabeler creates a dispatcher reporting the best image label.
func NewLabeler(b Backend[models.Labels], opts Options) *Dispatcher[models.Labels] {
	if opts.Name == "" {
		opts.Name = LabelsName
	}
	if opts.EmptyText == "" {
		opts.EmptyText = NoLabelText
	}
	return New(b, FormatLabels, opts)
}

// NewTextRecognizer creates a dispatcher reporting recognized text.
func NewTextRecognizer(b Backend[models.Text], opts Options) *Dispatcher[models.Text] {
	if opts.Name == "" {
		opts.Name = TextName
	}
	if opts.EmptyText == "" {
		opts.EmptyText = NoTextText
	}
	return New(b, FormatText, opts)
}

// NewLuminosity creates a dispatcher reporting average frame luminance.
func NewLuminosity(b Backend[models.Luma], opts Options) *Dispatcher[models.Luma] {
	if opts.Name == "" {
		opts.Name = LuminosityName
	}
	return New(b, FormatLuma, opts)
}
