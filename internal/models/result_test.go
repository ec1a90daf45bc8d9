package models

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestResultString(t *testing.T) {
	tests := []struct {
		name string
		r    Result
		want string
	}{
		{"success", Result{Kind: ResultSuccess, Text: "cat 0.9"}, "cat 0.9"},
		{"empty", Result{Kind: ResultEmpty, Text: "Unable to label"}, "Unable to label"},
		{"failure", Result{Kind: ResultFailure, Err: errors.New("backend down")}, "backend down"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.r.String(); got != tt.want {
				t.Errorf("got=%q want=%q", got, tt.want)
			}
		})
	}
}

func TestResultMarshalJSON(t *testing.T) {
	r := Result{Seq: 3, Analyzer: "text", Kind: ResultFailure, Err: errors.New("timeout")}
	b, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	s := string(b)
	if !strings.Contains(s, `"kind":"failure"`) || !strings.Contains(s, `"error":"timeout"`) {
		t.Errorf("json=%s", s)
	}
}

func TestResultRecord(t *testing.T) {
	r := Result{Seq: 7, Analyzer: "labels", Kind: ResultSuccess, Text: "dog 0.8"}
	rec := r.Record("s1")
	if rec.Session != "s1" || rec.Seq != 7 || rec.Kind != "success" || rec.Content != "dog 0.8" {
		t.Errorf("record=%+v", rec)
	}
}
