package analyzer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bdougie/mira/internal/frame"
	"github.com/bdougie/mira/internal/models"
)

// ErrClosed is returned by Analyze after Close.
var ErrClosed = errors.New("analyzer: closed")

// Backend performs one recognition call. Implementations must honor ctx.
type Backend[T any] interface {
	Recognize(ctx context.Context, req *models.RecognitionRequest) (T, error)
}

// BackendFunc adapts a function to Backend.
type BackendFunc[T any] func(ctx context.Context, req *models.RecognitionRequest) (T, error)

func (f BackendFunc[T]) Recognize(ctx context.Context, req *models.RecognitionRequest) (T, error) {
	return f(ctx, req)
}

// Formatter renders a backend response. empty reports that the response
// carried nothing, in which case the dispatcher substitutes its sentinel text.
type Formatter[T any] func(v T) (text string, empty bool)

// BusyPolicy controls what happens to a gated frame while a request is outstanding.
type BusyPolicy int

const (
	// DropWhileBusy skips frames until the outstanding request completes.
	DropWhileBusy BusyPolicy = iota
	// OverlapOrdered lets requests overlap and discards results older than
	// the last one delivered.
	OverlapOrdered
)

// ParseBusyPolicy maps a config name to a BusyPolicy.
func ParseBusyPolicy(name string) (BusyPolicy, error) {
	switch name {
	case "", "drop":
		return DropWhileBusy, nil
	case "overlap":
		return OverlapOrdered, nil
	default:
		return 0, fmt.Errorf("analyzer: unknown busy policy %q", name)
	}
}

// FrameAnalyzer is the type-erased view of a Dispatcher used by the session.
type FrameAnalyzer interface {
	Name() string
	Analyze(f *frame.Frame, rotationDegrees int) error
	OnFrameAnalyzed(l Listener)
	Stats() Stats
	Close() error
}

// Options configures a Dispatcher. Zero values pick defaults.
type Options struct {
	Name            string
	MinInterval     time.Duration
	FrameRateWindow int
	Converter       frame.Converter
	BusyPolicy      BusyPolicy
	RequestTimeout  time.Duration
	EmptyText       string
	Listener        Listener
	Logger          *slog.Logger
	Clock           func() time.Time
}

// Dispatcher samples frames through a ThrottleGate, converts admitted frames
// and runs the backend asynchronously, fanning each result out to listeners.
type Dispatcher[T any] struct {
	name      string
	backend   Backend[T]
	format    Formatter[T]
	converter frame.Converter
	policy    BusyPolicy
	timeout   time.Duration
	emptyText string
	logger    *slog.Logger
	clock     func() time.Time

	listeners ListenerRegistry
	tracker   *FrameRateTracker
	gate      *ThrottleGate

	// mu serializes the frame path: tracker, gate, seq and closed.
	mu     sync.Mutex
	seq    uint64
	closed bool

	deliverMu     sync.Mutex
	lastDelivered uint64

	inFlight atomic.Int64
	counters counters

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

var _ FrameAnalyzer = (*Dispatcher[models.Labels])(nil)

// New creates a dispatcher around backend.
func New[T any](backend Backend[T], format Formatter[T], opts Options) *Dispatcher[T] {
	if opts.Converter == nil {
		opts.Converter = frame.YV12Converter{Order: frame.PositionalPlaneOrder}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Name == "" {
		opts.Name = "analyzer"
	}

	ctx, cancel := context.WithCancel(context.Background())
	d := &Dispatcher[T]{
		name:      opts.Name,
		backend:   backend,
		format:    format,
		converter: opts.Converter,
		policy:    opts.BusyPolicy,
		timeout:   opts.RequestTimeout,
		emptyText: opts.EmptyText,
		logger:    opts.Logger.With("analyzer", opts.Name),
		clock:     opts.Clock,
		tracker:   NewFrameRateTracker(opts.FrameRateWindow),
		gate:      NewThrottleGate(opts.MinInterval),
		ctx:       ctx,
		cancel:    cancel,
	}
	d.listeners.Register(opts.Listener)
	return d
}

// Name returns the analyzer name used in results and logs.
func (d *Dispatcher[T]) Name() string { return d.name }

// OnFrameAnalyzed registers a listener. It may be called at any time.
func (d *Dispatcher[T]) OnFrameAnalyzed(l Listener) {
	d.listeners.Register(l)
}

// Analyze processes one frame. It returns once the backend call has been
// started; f is not referenced after return.
//
// Analyze returns frame.ErrInvalidRotation for unsupported rotations and
// ErrClosed after Close. Backend failures are reported to listeners instead.
func (d *Dispatcher[T]) Analyze(f *frame.Frame, rotationDegrees int) error {
	if d.listeners.Len() == 0 {
		return nil
	}

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return ErrClosed
	}

	now := d.clock()
	d.tracker.Record(now)
	d.counters.received.Add(1)

	if !d.gate.Open(now) {
		d.mu.Unlock()
		d.counters.gated.Add(1)
		return nil
	}
	if d.policy == DropWhileBusy && d.inFlight.Load() > 0 {
		d.mu.Unlock()
		d.counters.busyDrops.Add(1)
		return nil
	}

	orientation, err := frame.RotationToOrientation(rotationDegrees)
	if err != nil {
		d.mu.Unlock()
		return err
	}
	data, lengths, err := d.converter.Convert(f)
	if err != nil {
		d.mu.Unlock()
		return fmt.Errorf("analyzer %s: convert frame: %w", d.name, err)
	}

	d.gate.MarkProcessed(now)
	d.seq++
	req := &models.RecognitionRequest{
		Seq:          d.seq,
		Data:         data,
		PlaneLengths: lengths,
		Width:        f.Width,
		Height:       f.Height,
		Orientation:  orientation,
		Format:       frame.FormatYV12,
		CapturedAt:   now,
	}
	d.inFlight.Add(1)
	d.wg.Add(1)
	d.mu.Unlock()

	d.counters.dispatched.Add(1)
	d.logger.Debug("dispatching frame",
		"seq", req.Seq,
		"bytes", len(req.Data),
		"orientation", orientation.Degrees(),
		"fps", d.tracker.FPS())

	go d.recognize(req)
	return nil
}

func (d *Dispatcher[T]) recognize(req *models.RecognitionRequest) {
	defer d.wg.Done()

	ctx := d.ctx
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	value, err := d.backend.Recognize(ctx, req)

	res := models.Result{
		Seq:        req.Seq,
		Analyzer:   d.name,
		CapturedAt: req.CapturedAt,
	}
	switch {
	case err != nil:
		res.Kind = models.ResultFailure
		res.Err = err
	default:
		text, empty := d.format(value)
		if empty {
			res.Kind = models.ResultEmpty
			res.Text = d.emptyText
		} else {
			res.Kind = models.ResultSuccess
			res.Text = text
		}
	}
	res.CompletedAt = d.clock()

	d.inFlight.Add(-1)
	d.deliver(res)
}

func (d *Dispatcher[T]) deliver(res models.Result) {
	d.deliverMu.Lock()
	defer d.deliverMu.Unlock()

	if d.ctx.Err() != nil {
		d.counters.discarded.Add(1)
		d.logger.Debug("discarding result after close", "seq", res.Seq)
		return
	}
	if res.Seq <= d.lastDelivered {
		d.counters.stale.Add(1)
		d.logger.Debug("discarding stale result", "seq", res.Seq, "last", d.lastDelivered)
		return
	}
	d.lastDelivered = res.Seq

	switch res.Kind {
	case models.ResultSuccess:
		d.counters.succeeded.Add(1)
	case models.ResultEmpty:
		d.counters.empty.Add(1)
	case models.ResultFailure:
		d.counters.failed.Add(1)
		d.logger.Debug("recognition failed", "seq", res.Seq, "error", res.Err)
	}
	d.listeners.NotifyAll(res)
}

// Close cancels outstanding requests and waits for their goroutines.
// Results completing after Close are never delivered. Listeners must not
// call Close.
func (d *Dispatcher[T]) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	d.mu.Unlock()

	d.cancel()
	d.wg.Wait()
	return nil
}
