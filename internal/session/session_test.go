package session

import (
	"context"
	"errors"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bdougie/mira/internal/config"
	"github.com/bdougie/mira/internal/extractor"
	"github.com/bdougie/mira/internal/frame"
	"github.com/bdougie/mira/internal/models"
	"github.com/bdougie/mira/internal/storage"
)

// fakeSource delivers its frames once, then waits for cancellation unless
// exit is set.
type fakeSource struct {
	frames    []*frame.Frame
	exit      bool
	delivered atomic.Uint64
}

func (f *fakeSource) Run(ctx context.Context, deliver func(*frame.Frame) error) error {
	for _, fr := range f.frames {
		if err := deliver(fr); err != nil {
			return err
		}
		f.delivered.Add(1)
	}
	if f.exit {
		return nil
	}
	<-ctx.Done()
	return ctx.Err()
}

func (f *fakeSource) Stats() extractor.Stats {
	return extractor.Stats{Frames: f.delivered.Load()}
}

func grayFrame(y byte) *frame.Frame {
	return &frame.Frame{
		Width:  2,
		Height: 2,
		Planes: []frame.Plane{
			{Data: []byte{y, y, y, y}},
			{Data: []byte{128}},
			{Data: []byte{128}},
		},
	}
}

func testConfig(t *testing.T) *config.Config {
	cfg := config.Default()
	cfg.Session.ID = "test-session"
	cfg.Session.OutputDir = t.TempDir()
	cfg.Analyzer.Kind = "luminosity"
	cfg.Analyzer.Backend = "local"
	cfg.Storage.Badger.Enabled = true
	cfg.Storage.Badger.Dir = filepath.Join(t.TempDir(), "history")
	return cfg
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestSessionRun(t *testing.T) {
	cfg := testConfig(t)
	src := &fakeSource{frames: []*frame.Frame{grayFrame(40)}}
	s, err := New(context.Background(), cfg, nil, WithSource(src))
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	var got atomic.Value
	s.Analyzer().OnFrameAnalyzed(func(r models.Result) { got.Store(r.String()) })

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- s.Run(ctx) }()

	waitFor(t, func() bool { return s.Stats().Analyzer.Succeeded == 1 })
	cancel()
	if err := <-errc; err != nil {
		t.Fatalf("run: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	if v, _ := got.Load().(string); v != "40.00" {
		t.Errorf("listener got %q", v)
	}

	files := storage.NewFileStorage(cfg.Session.OutputDir, s.ID, 0, nil)
	saved, err := files.List(context.Background(), s.ID, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(saved) != 1 || saved[0].Content != "40.00" || saved[0].Session != "test-session" || saved[0].Analyzer != "luminosity" {
		t.Errorf("json=%+v", saved)
	}

	history, err := storage.NewBadgerStorage(storage.BadgerOptions{Dir: cfg.Storage.Badger.Dir}, "")
	if err != nil {
		t.Fatal(err)
	}
	defer history.Close()
	rows, err := history.List(context.Background(), s.ID, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 || rows[0].Seq != 1 || rows[0].Kind != "success" {
		t.Errorf("badger=%+v", rows)
	}
}

func TestSessionSourceEnds(t *testing.T) {
	cfg := testConfig(t)
	cfg.Storage.Badger.Enabled = false
	src := &fakeSource{frames: []*frame.Frame{grayFrame(1)}, exit: true}
	s, err := New(context.Background(), cfg, nil, WithSource(src))
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	if err := s.Run(context.Background()); err != nil {
		t.Errorf("run: %v", err)
	}
	if st := s.Stats(); st.Source.Frames != 1 || st.Analyzer.Received != 1 {
		t.Errorf("stats=%+v", st)
	}
}

func TestSessionStopsOnRejectedFrame(t *testing.T) {
	cfg := testConfig(t)
	cfg.Storage.Badger.Enabled = false
	bad := &frame.Frame{Width: 2, Height: 2, Planes: []frame.Plane{{Data: []byte{1, 2, 3, 4}}}}
	src := &fakeSource{frames: []*frame.Frame{bad, grayFrame(1)}}
	s, err := New(context.Background(), cfg, nil, WithSource(src))
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	err = s.Run(ctx)
	if !errors.Is(err, frame.ErrPlaneCount) {
		t.Errorf("err=%v", err)
	}
	if src.delivered.Load() != 0 {
		t.Errorf("delivered=%d", src.delivered.Load())
	}
}

func TestSessionGeneratesID(t *testing.T) {
	cfg := testConfig(t)
	cfg.Session.ID = ""
	cfg.Storage.Badger.Enabled = false
	s, err := New(context.Background(), cfg, nil, WithSource(&fakeSource{}))
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	if len(s.ID) != 36 {
		t.Errorf("id=%q", s.ID)
	}
}

func TestNewAnalyzerRejectsUnknownBackend(t *testing.T) {
	cfg := config.Default()
	cfg.Analyzer.Kind = "text"
	cfg.Analyzer.Backend = "carrier-pigeon"
	if _, _, err := NewAnalyzer(context.Background(), cfg, nil); err == nil {
		t.Error("expected error")
	}
}

func TestNewEmbedder(t *testing.T) {
	cfg := config.Default()
	cfg.Embeddings.Dimension = 32
	emb, err := NewEmbedder(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if emb.Dimension() != 32 {
		t.Errorf("dim=%d", emb.Dimension())
	}
}
