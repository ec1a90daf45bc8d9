package recognizer

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/kaptinlin/jsonrepair"

	"github.com/bdougie/mira/internal/models"
)

// ParseLabels decodes a model's label answer. It accepts a bare array or an
// object with a "labels" field, tolerates markdown fences and malformed JSON,
// and returns labels sorted by descending confidence.
func ParseLabels(raw string) (models.Labels, error) {
	body := extractJSON(raw)
	if body == "" {
		return nil, nil
	}

	type label struct {
		Label      string  `json:"label"`
		Text       string  `json:"text"`
		Confidence float32 `json:"confidence"`
	}
	var items []label
	if strings.HasPrefix(body, "{") {
		var wrapped struct {
			Labels []label `json:"labels"`
		}
		if err := unmarshalJSON([]byte(body), &wrapped); err != nil {
			return nil, fmt.Errorf("parse labels: %w", err)
		}
		items = wrapped.Labels
	} else if err := unmarshalJSON([]byte(body), &items); err != nil {
		return nil, fmt.Errorf("parse labels: %w", err)
	}

	labels := make(models.Labels, 0, len(items))
	for _, it := range items {
		text := strings.TrimSpace(it.Label)
		if text == "" {
			text = strings.TrimSpace(it.Text)
		}
		if text == "" {
			continue
		}
		labels = append(labels, models.Label{Text: text, Confidence: clamp01(it.Confidence)})
	}
	sort.SliceStable(labels, func(i, j int) bool {
		return labels[i].Confidence > labels[j].Confidence
	})
	return labels, nil
}

// ParseText decodes a model's transcription answer into blocks, lines and
// whitespace-separated elements. Blank lines and empty blocks are dropped.
func ParseText(raw string) (models.Text, error) {
	body := extractJSON(raw)
	if body == "" {
		return models.Text{}, nil
	}

	var resp struct {
		Blocks []struct {
			Lines []string `json:"lines"`
		} `json:"blocks"`
	}
	if err := unmarshalJSON([]byte(body), &resp); err != nil {
		return models.Text{}, fmt.Errorf("parse text: %w", err)
	}

	var out models.Text
	for _, b := range resp.Blocks {
		var block models.TextBlock
		for _, l := range b.Lines {
			words := strings.Fields(l)
			if len(words) == 0 {
				continue
			}
			line := models.TextLine{Elements: make([]models.TextElement, len(words))}
			for i, w := range words {
				line.Elements[i] = models.TextElement{Text: w}
			}
			block.Lines = append(block.Lines, line)
		}
		if len(block.Lines) > 0 {
			out.Blocks = append(out.Blocks, block)
		}
	}
	return out, nil
}

// extractJSON strips code fences and surrounding prose, returning the span
// from the first '[' or '{' to the last matching closer.
func extractJSON(raw string) string {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	s = strings.TrimSpace(s)

	start := strings.IndexAny(s, "[{")
	if start < 0 {
		return ""
	}
	closer := "]"
	if s[start] == '{' {
		closer = "}"
	}
	end := strings.LastIndex(s, closer)
	if end < start {
		// Truncated answer; let jsonrepair close it.
		return s[start:]
	}
	return s[start : end+1]
}

// unmarshalJSON retries with a repaired document on syntax errors.
func unmarshalJSON(data []byte, v any) error {
	err := json.Unmarshal(data, v)
	if err == nil {
		return nil
	}
	if _, ok := err.(*json.SyntaxError); ok {
		fixed, err := jsonrepair.JSONRepair(string(data))
		if err != nil {
			return err
		}
		return json.Unmarshal([]byte(fixed), v)
	}
	return err
}

func clamp01(v float32) float32 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
