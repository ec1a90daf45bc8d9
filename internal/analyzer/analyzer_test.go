package analyzer

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bdougie/mira/internal/frame"
	"github.com/bdougie/mira/internal/models"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: ms(0)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type spyConverter struct {
	calls atomic.Int32
}

func (s *spyConverter) Convert(f *frame.Frame) ([]byte, [3]int, error) {
	s.calls.Add(1)
	return frame.YV12Converter{Order: frame.PositionalPlaneOrder}.Convert(f)
}

func yuvFrame() *frame.Frame {
	return &frame.Frame{
		Width:  2,
		Height: 2,
		Planes: []frame.Plane{
			{Data: []byte{10, 20, 30, 40}},
			{Data: []byte{1}},
			{Data: []byte{2}},
		},
	}
}

func labelsBackend(calls *atomic.Int32, labels models.Labels, err error) Backend[models.Labels] {
	return BackendFunc[models.Labels](func(ctx context.Context, req *models.RecognitionRequest) (models.Labels, error) {
		calls.Add(1)
		return labels, err
	})
}

func waitResult(t *testing.T, ch <-chan models.Result) models.Result {
	t.Helper()
	select {
	case r := <-ch:
		return r
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for result")
		return models.Result{}
	}
}

func TestDispatcherNoListeners(t *testing.T) {
	var calls atomic.Int32
	conv := &spyConverter{}
	d := NewLabeler(labelsBackend(&calls, models.Labels{{Text: "cat", Confidence: 0.9}}, nil), Options{
		Converter: conv,
		Clock:     newFakeClock().Now,
	})
	defer d.Close()

	for i := 0; i < 3; i++ {
		if err := d.Analyze(yuvFrame(), 0); err != nil {
			t.Fatalf("analyze: %v", err)
		}
	}
	if conv.calls.Load() != 0 || calls.Load() != 0 {
		t.Errorf("converter=%d backend=%d", conv.calls.Load(), calls.Load())
	}
	if s := d.Stats(); s.Received != 0 {
		t.Errorf("received=%d", s.Received)
	}
}

func TestDispatcherFanOut(t *testing.T) {
	var calls atomic.Int32
	d := NewLabeler(labelsBackend(&calls, models.Labels{{Text: "cat", Confidence: 0.5}, {Text: "dog", Confidence: 0.25}}, nil), Options{
		Clock: newFakeClock().Now,
	})
	defer d.Close()

	var mu sync.Mutex
	var order []int
	var texts []string
	done := make(chan models.Result, 3)
	for i := 0; i < 3; i++ {
		i := i
		d.OnFrameAnalyzed(func(r models.Result) {
			mu.Lock()
			order = append(order, i)
			texts = append(texts, r.String())
			mu.Unlock()
			done <- r
		})
	}

	if err := d.Analyze(yuvFrame(), 90); err != nil {
		t.Fatalf("analyze: %v", err)
	}
	for i := 0; i < 3; i++ {
		waitResult(t, done)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(order) != 3 || order[0] != 0 || order[1] != 1 || order[2] != 2 {
		t.Errorf("order=%v", order)
	}
	for _, s := range texts {
		if s != "cat 0.5" {
			t.Errorf("text=%q", s)
		}
	}
	if calls.Load() != 1 {
		t.Errorf("backend calls=%d", calls.Load())
	}
}

func TestDispatcherEmptyResult(t *testing.T) {
	var calls atomic.Int32
	done := make(chan models.Result, 1)
	d := NewLabeler(labelsBackend(&calls, nil, nil), Options{
		Clock:    newFakeClock().Now,
		Listener: func(r models.Result) { done <- r },
	})
	defer d.Close()

	if err := d.Analyze(yuvFrame(), 0); err != nil {
		t.Fatalf("analyze: %v", err)
	}
	r := waitResult(t, done)
	if r.Kind != models.ResultEmpty || r.String() != NoLabelText {
		t.Errorf("result=%+v", r)
	}
}

func TestDispatcherFailure(t *testing.T) {
	var calls atomic.Int32
	done := make(chan string, 1)
	d := NewLabeler(labelsBackend(&calls, nil, errors.New("model unavailable")), Options{
		Clock:    newFakeClock().Now,
		Listener: StringListener(func(s string) { done <- s }),
	})
	defer d.Close()

	if err := d.Analyze(yuvFrame(), 0); err != nil {
		t.Fatalf("analyze: %v", err)
	}
	select {
	case s := <-done:
		if s != "model unavailable" {
			t.Errorf("got=%q", s)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out")
	}
	if s := d.Stats(); s.Failed != 1 {
		t.Errorf("failed=%d", s.Failed)
	}
}

func TestDispatcherGating(t *testing.T) {
	clock := newFakeClock()
	var calls atomic.Int32
	done := make(chan models.Result, 10)
	d := NewLabeler(labelsBackend(&calls, models.Labels{{Text: "x", Confidence: 1}}, nil), Options{
		Clock:    clock.Now,
		Listener: func(r models.Result) { done <- r },
	})
	defer d.Close()

	steps := []time.Duration{0, 400 * time.Millisecond, 600 * time.Millisecond, 500 * time.Millisecond}
	for _, step := range steps {
		clock.Advance(step)
		before := d.Stats().Dispatched
		if err := d.Analyze(yuvFrame(), 0); err != nil {
			t.Fatalf("analyze: %v", err)
		}
		if d.Stats().Dispatched > before {
			waitResult(t, done)
		}
	}

	s := d.Stats()
	if s.Received != 4 || s.Dispatched != 2 || s.Gated != 2 {
		t.Errorf("stats=%+v", s)
	}
	if s.FPS == UnknownFPS {
		t.Errorf("fps not tracked")
	}
}

func TestDispatcherBusyDrop(t *testing.T) {
	clock := newFakeClock()
	release := make(chan struct{})
	var calls atomic.Int32
	backend := BackendFunc[models.Text](func(ctx context.Context, req *models.RecognitionRequest) (models.Text, error) {
		calls.Add(1)
		<-release
		return models.Text{}, nil
	})
	done := make(chan models.Result, 2)
	d := NewTextRecognizer(backend, Options{Clock: clock.Now, Listener: func(r models.Result) { done <- r }})
	defer d.Close()

	if err := d.Analyze(yuvFrame(), 0); err != nil {
		t.Fatal(err)
	}
	clock.Advance(2 * time.Second)
	if err := d.Analyze(yuvFrame(), 0); err != nil {
		t.Fatal(err)
	}
	if s := d.Stats(); s.BusyDrops != 1 || s.Dispatched != 1 {
		t.Errorf("stats=%+v", s)
	}

	close(release)
	r := waitResult(t, done)
	if r.String() != NoTextText {
		t.Errorf("text=%q", r.String())
	}

	// The dropped frame did not advance the gate, so the next one passes.
	if err := d.Analyze(yuvFrame(), 0); err != nil {
		t.Fatal(err)
	}
	waitResult(t, done)
	if calls.Load() != 2 {
		t.Errorf("calls=%d", calls.Load())
	}
}

func TestDispatcherOverlapDropsStale(t *testing.T) {
	clock := newFakeClock()
	gates := map[uint64]chan struct{}{1: make(chan struct{}), 2: make(chan struct{})}
	backend := BackendFunc[models.Labels](func(ctx context.Context, req *models.RecognitionRequest) (models.Labels, error) {
		<-gates[req.Seq]
		return models.Labels{{Text: "seq", Confidence: float32(req.Seq)}}, nil
	})
	done := make(chan models.Result, 2)
	d := NewLabeler(backend, Options{
		Clock:      clock.Now,
		BusyPolicy: OverlapOrdered,
		Listener:   func(r models.Result) { done <- r },
	})

	if err := d.Analyze(yuvFrame(), 0); err != nil {
		t.Fatal(err)
	}
	clock.Advance(time.Second)
	if err := d.Analyze(yuvFrame(), 0); err != nil {
		t.Fatal(err)
	}

	close(gates[2])
	if r := waitResult(t, done); r.Seq != 2 {
		t.Errorf("first delivered seq=%d", r.Seq)
	}
	close(gates[1])
	d.Close()

	select {
	case r := <-done:
		t.Errorf("stale result delivered: %+v", r)
	default:
	}
	if s := d.Stats(); s.Stale+s.Discarded != 1 {
		t.Errorf("stats=%+v", s)
	}
}

func TestDispatcherClose(t *testing.T) {
	started := make(chan struct{})
	backend := BackendFunc[models.Luma](func(ctx context.Context, req *models.RecognitionRequest) (models.Luma, error) {
		close(started)
		<-ctx.Done()
		return 0, ctx.Err()
	})
	var delivered atomic.Int32
	d := NewLuminosity(backend, Options{
		Clock:    newFakeClock().Now,
		Listener: func(models.Result) { delivered.Add(1) },
	})

	if err := d.Analyze(yuvFrame(), 0); err != nil {
		t.Fatal(err)
	}
	<-started
	if err := d.Close(); err != nil {
		t.Fatal(err)
	}
	if delivered.Load() != 0 {
		t.Errorf("delivered after close: %d", delivered.Load())
	}
	if s := d.Stats(); s.Discarded != 1 {
		t.Errorf("discarded=%d", s.Discarded)
	}
	if err := d.Analyze(yuvFrame(), 0); !errors.Is(err, ErrClosed) {
		t.Errorf("err=%v", err)
	}
	if err := d.Close(); err != nil {
		t.Errorf("second close: %v", err)
	}
}

func TestDispatcherInvalidRotation(t *testing.T) {
	clock := newFakeClock()
	var calls atomic.Int32
	done := make(chan models.Result, 1)
	d := NewLabeler(labelsBackend(&calls, nil, nil), Options{Clock: clock.Now, Listener: func(r models.Result) { done <- r }})
	defer d.Close()

	if err := d.Analyze(yuvFrame(), 45); !errors.Is(err, frame.ErrInvalidRotation) {
		t.Fatalf("err=%v", err)
	}
	if calls.Load() != 0 {
		t.Errorf("backend called")
	}
	if err := d.Analyze(yuvFrame(), 180); err != nil {
		t.Fatalf("analyze: %v", err)
	}
	waitResult(t, done)
}

func TestDispatcherRequestContents(t *testing.T) {
	got := make(chan *models.RecognitionRequest, 1)
	backend := BackendFunc[models.Luma](func(ctx context.Context, req *models.RecognitionRequest) (models.Luma, error) {
		got <- req
		return 0, nil
	})
	d := NewLuminosity(backend, Options{Clock: newFakeClock().Now, Listener: func(models.Result) {}})
	defer d.Close()

	f := yuvFrame()
	if err := d.Analyze(f, 270); err != nil {
		t.Fatal(err)
	}
	f.Planes[0].Data[0] = 0

	req := <-got
	if req.Orientation != frame.Rotation270 || req.Format != frame.FormatYV12 {
		t.Errorf("req=%+v", req)
	}
	if req.Width != 2 || req.Height != 2 || req.PlaneLengths != [3]int{4, 1, 1} {
		t.Errorf("req=%+v", req)
	}
	if req.Data[0] != 10 {
		t.Errorf("request aliases frame data")
	}
}
