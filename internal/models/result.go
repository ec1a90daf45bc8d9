package models

import (
	"encoding/json"
	"time"
)

// ResultKind tags the outcome of one recognition request.
type ResultKind int

const (
	// ResultSuccess carries recognized content.
	ResultSuccess ResultKind = iota + 1
	// ResultEmpty means the backend answered with nothing; Text holds the sentinel.
	ResultEmpty
	// ResultFailure means the backend call failed; Err is set.
	ResultFailure
)

func (k ResultKind) String() string {
	switch k {
	case ResultSuccess:
		return "success"
	case ResultEmpty:
		return "empty"
	case ResultFailure:
		return "failure"
	default:
		return "unknown"
	}
}

// Result is delivered to listeners exactly once per dispatched frame.
type Result struct {
	Seq         uint64
	Analyzer    string
	Kind        ResultKind
	Text        string
	Err         error
	CapturedAt  time.Time
	CompletedAt time.Time
}

// String renders the result the way the UI shows it.
func (r Result) String() string {
	if r.Kind == ResultFailure && r.Err != nil {
		return r.Err.Error()
	}
	return r.Text
}

// OK reports whether the backend call succeeded, empty or not.
func (r Result) OK() bool {
	return r.Kind == ResultSuccess || r.Kind == ResultEmpty
}

type resultJSON struct {
	Seq         uint64    `json:"seq"`
	Analyzer    string    `json:"analyzer"`
	Kind        string    `json:"kind"`
	Text        string    `json:"text"`
	Error       string    `json:"error,omitempty"`
	CapturedAt  time.Time `json:"captured_at"`
	CompletedAt time.Time `json:"completed_at"`
}

// MarshalJSON flattens Err into a message string.
func (r Result) MarshalJSON() ([]byte, error) {
	out := resultJSON{
		Seq:         r.Seq,
		Analyzer:    r.Analyzer,
		Kind:        r.Kind.String(),
		Text:        r.Text,
		CapturedAt:  r.CapturedAt,
		CompletedAt: r.CompletedAt,
	}
	if r.Err != nil {
		out.Error = r.Err.Error()
	}
	return json.Marshal(out)
}

// Record converts a result into the storage representation.
func (r Result) Record(session string) AnalysisResult {
	return AnalysisResult{
		Session:     session,
		Analyzer:    r.Analyzer,
		Seq:         r.Seq,
		Kind:        r.Kind.String(),
		Content:     r.String(),
		CapturedAt:  r.CapturedAt,
		CompletedAt: r.CompletedAt,
	}
}
