// Package session wires a frame source, one analyzer and the configured
// result sinks into a single run.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/bdougie/mira/internal/analyzer"
	"github.com/bdougie/mira/internal/config"
	"github.com/bdougie/mira/internal/embeddings"
	"github.com/bdougie/mira/internal/extractor"
	"github.com/bdougie/mira/internal/frame"
	"github.com/bdougie/mira/internal/models"
	"github.com/bdougie/mira/internal/output"
	"github.com/bdougie/mira/internal/storage"
)

const storeTimeout = 5 * time.Second

// FrameSource produces frames for the analyzer. extractor.Source is the
// production implementation.
type FrameSource interface {
	Run(ctx context.Context, deliver func(*frame.Frame) error) error
	Stats() extractor.Stats
}

// Option customizes a Session.
type Option func(*Session)

// WithSource replaces the ffmpeg source.
func WithSource(src FrameSource) Option {
	return func(s *Session) { s.source = src }
}

// WithAnalyzer replaces the analyzer built from config.
func WithAnalyzer(a analyzer.FrameAnalyzer) Option {
	return func(s *Session) { s.analyzer = a }
}

// Session is one run of the pipeline.
type Session struct {
	ID string

	cfg    *config.Config
	logger *slog.Logger

	source   FrameSource
	analyzer analyzer.FrameAnalyzer
	cleanup  func() error

	store    storage.Multi
	embedder *embeddings.Service
	mqtt     *output.MQTTPublisher
	hub      *output.Hub
	speaker  *output.Speaker
	server   *http.Server
}

// Stats is the /stats payload.
type Stats struct {
	Session  string            `json:"session"`
	Analyzer analyzer.Stats    `json:"analyzer"`
	Source   extractor.Stats   `json:"source"`
	Overlay  *output.HubStats  `json:"overlay,omitempty"`
	MQTT     *output.MQTTStats `json:"mqtt,omitempty"`
}

// New builds a session from cfg. Sinks that fail to initialize abort
// construction; everything already opened is released.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts ...Option) (_ *Session, err error) {
	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	id := cfg.Session.ID
	if id == "" {
		id = uuid.NewString()
	}
	s := &Session{
		ID:      id,
		cfg:     cfg,
		logger:  logger.With("session", id),
		cleanup: func() error { return nil },
	}
	for _, opt := range opts {
		opt(s)
	}
	defer func() {
		if err != nil {
			s.Close()
		}
	}()

	if s.source == nil {
		src, err := extractor.NewSource(extractor.Config{
			Input:    cfg.Source.Input,
			Format:   cfg.Source.Format,
			Width:    cfg.Source.Width,
			Height:   cfg.Source.Height,
			FPS:      cfg.Source.FPS,
			Realtime: cfg.Source.Realtime,
			Binary:   cfg.Source.FFmpeg,
		}, s.logger)
		if err != nil {
			return nil, err
		}
		s.source = src
	}

	if s.analyzer == nil {
		a, cleanup, err := NewAnalyzer(ctx, cfg, s.logger)
		if err != nil {
			return nil, fmt.Errorf("create analyzer: %w", err)
		}
		s.analyzer, s.cleanup = a, cleanup
	}

	if err := s.openStorage(ctx); err != nil {
		return nil, err
	}
	if err := s.openOutputs(ctx); err != nil {
		return nil, err
	}
	s.registerListeners()
	return s, nil
}

func (s *Session) openStorage(ctx context.Context) error {
	st := s.cfg.Storage
	if st.JSON.Enabled {
		s.store = append(s.store, storage.NewFileStorage(s.cfg.Session.OutputDir, s.ID, st.JSON.BatchSize, s.logger))
	}
	if st.Badger.Enabled {
		b, err := storage.NewBadgerStorage(storage.BadgerOptions{Dir: st.Badger.Dir, Logger: s.logger}, s.ID)
		if err != nil {
			return err
		}
		s.store = append(s.store, b)
	}
	if st.Postgres.Enabled {
		emb, err := NewEmbedder(s.cfg)
		if err != nil {
			return err
		}
		s.embedder = embeddings.NewService(emb, s.cfg.Embeddings.Workers)
		pg, err := storage.NewPostgresStorage(ctx, PostgresConfig(s.cfg), s.ID, s.embedder, s.logger)
		if err != nil {
			return err
		}
		s.store = append(s.store, pg)
	}
	return nil
}

func (s *Session) openOutputs(ctx context.Context) error {
	if s.cfg.MQTT.Enabled {
		m := s.cfg.MQTT
		s.mqtt = output.NewMQTTPublisher(output.MQTTConfig{
			Broker:      m.Broker,
			ClientID:    m.ClientID,
			TopicPrefix: m.TopicPrefix,
			QoS:         m.QoS,
			Retain:      m.Retain,
		}, s.ID, s.logger)
		if err := s.mqtt.Connect(ctx); err != nil {
			return err
		}
	}
	if s.cfg.Server.Enabled {
		s.hub = output.NewHub(s.logger)
		s.server = &http.Server{
			Addr:              s.cfg.Server.Addr,
			Handler:           output.NewRouter(s.hub, func() any { return s.Stats() }),
			ReadHeaderTimeout: 5 * time.Second,
		}
	}
	if s.cfg.Speech.Enabled {
		s.speaker = output.NewSpeaker(s.cfg.Speech.Command, s.logger)
	}
	return nil
}

// registerListeners attaches sinks in a fixed order: log, storage, MQTT,
// overlay, speech.
func (s *Session) registerListeners() {
	s.analyzer.OnFrameAnalyzed(s.logResult)
	if len(s.store) > 0 {
		s.analyzer.OnFrameAnalyzed(s.storeResult)
	}
	if s.mqtt != nil {
		s.analyzer.OnFrameAnalyzed(s.mqtt.Listener())
	}
	if s.hub != nil {
		s.analyzer.OnFrameAnalyzed(s.hub.Listener())
	}
	if s.speaker != nil {
		s.analyzer.OnFrameAnalyzed(s.speaker.Listener())
	}
}

func (s *Session) logResult(res models.Result) {
	latency := res.CompletedAt.Sub(res.CapturedAt)
	switch res.Kind {
	case models.ResultFailure:
		s.logger.Warn("analysis failed", "analyzer", res.Analyzer, "seq", res.Seq, "error", res.Err)
	default:
		s.logger.Info(res.String(), "analyzer", res.Analyzer, "seq", res.Seq, "kind", res.Kind.String(), "latency", latency)
	}
}

func (s *Session) storeResult(res models.Result) {
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()
	if err := s.store.AddResult(ctx, res.Record(s.ID)); err != nil {
		s.logger.Error("failed to store result", "seq", res.Seq, "error", err)
	}
}

// Analyzer exposes the session analyzer, e.g. to register more listeners.
func (s *Session) Analyzer() analyzer.FrameAnalyzer { return s.analyzer }

func (s *Session) Stats() Stats {
	st := Stats{Session: s.ID, Analyzer: s.analyzer.Stats(), Source: s.source.Stats()}
	if s.hub != nil {
		hs := s.hub.Stats()
		st.Overlay = &hs
	}
	if s.mqtt != nil {
		ms := s.mqtt.Stats()
		st.MQTT = &ms
	}
	return st
}

// Run feeds frames to the analyzer until the source ends, ctx is cancelled
// or the analyzer rejects a frame. Cancellation is not an error.
func (s *Session) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(runCtx)

	if s.server != nil {
		g.Go(func() error {
			s.logger.Info("serving overlay", "addr", s.server.Addr)
			if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("http server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
			defer done()
			return s.server.Shutdown(shutdownCtx)
		})
	}

	g.Go(func() error {
		defer cancel()
		rotation := s.cfg.Source.Rotation
		err := s.source.Run(gctx, func(f *frame.Frame) error {
			return s.analyzer.Analyze(f, rotation)
		})
		if errors.Is(err, frame.ErrInvalidRotation) {
			s.logger.Error("stopping: unsupported rotation", "rotation", rotation)
		}
		return err
	})

	err := g.Wait()
	if errors.Is(err, context.Canceled) && (ctx.Err() != nil || runCtx.Err() != nil) {
		err = nil
	}
	st := s.Stats()
	s.logger.Info("session finished",
		"received", st.Analyzer.Received,
		"dispatched", st.Analyzer.Dispatched,
		"succeeded", st.Analyzer.Succeeded,
		"failed", st.Analyzer.Failed,
		"frames_dropped", st.Source.Dropped)
	return err
}

// Close stops the analyzer, waits for outstanding requests and flushes
// every sink.
func (s *Session) Close() error {
	var errs []error
	if s.analyzer != nil {
		if err := s.analyzer.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := s.cleanup(); err != nil {
		errs = append(errs, err)
	}
	if s.speaker != nil {
		s.speaker.Close()
	}
	if s.hub != nil {
		s.hub.Close()
	}
	if s.mqtt != nil {
		s.mqtt.Close()
	}
	if err := s.store.Close(); err != nil {
		errs = append(errs, err)
	}
	if s.embedder != nil {
		s.embedder.Close()
	}
	return errors.Join(errs...)
}
