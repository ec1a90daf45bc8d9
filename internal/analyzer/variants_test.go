package analyzer

import (
	"testing"

	"github.com/bdougie/mira/internal/models"
)

func TestFormatLabels(t *testing.T) {
	tests := []struct {
		in        models.Labels
		want      string
		wantEmpty bool
	}{
		{nil, "", true},
		{models.Labels{{Text: "Cat", Confidence: 0.85}}, "Cat 0.85", false},
		{models.Labels{{Text: "Sky", Confidence: 1}, {Text: "Cloud", Confidence: 0.7}}, "Sky 1.0", false},
	}
	for _, tt := range tests {
		got, empty := FormatLabels(tt.in)
		if got != tt.want || empty != tt.wantEmpty {
			t.Errorf("FormatLabels(%v)=%q,%v", tt.in, got, empty)
		}
	}
}

func TestFormatText(t *testing.T) {
	if _, empty := FormatText(models.Text{}); !empty {
		t.Error("no blocks should be empty")
	}
	in := models.Text{Blocks: []models.TextBlock{
		{Lines: []models.TextLine{
			{Elements: []models.TextElement{{Text: "EXIT"}, {Text: "ONLY"}}},
			{Elements: []models.TextElement{{Text: "NO"}}},
		}},
		{Lines: []models.TextLine{
			{Elements: []models.TextElement{{Text: "PARKING"}}},
		}},
	}}
	got, empty := FormatText(in)
	if empty || got != "EXITONLYNOPARKING" {
		t.Errorf("got=%q empty=%v", got, empty)
	}
}

func TestFormatLuma(t *testing.T) {
	got, empty := FormatLuma(127.456)
	if empty || got != "127.46" {
		t.Errorf("got=%q", got)
	}
}

func TestListenerRegistry(t *testing.T) {
	var r ListenerRegistry
	var calls []string
	r.Register(func(res models.Result) { calls = append(calls, "a:"+res.Text) })
	r.Register(nil)
	r.Register(func(res models.Result) { calls = append(calls, "b:"+res.Text) })
	if r.Len() != 2 {
		t.Fatalf("len=%d", r.Len())
	}
	r.NotifyAll(models.Result{Kind: models.ResultSuccess, Text: "hi"})
	if len(calls) != 2 || calls[0] != "a:hi" || calls[1] != "b:hi" {
		t.Errorf("calls=%v", calls)
	}
}
