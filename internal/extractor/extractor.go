// Package extractor turns camera devices and video files into a live stream
// of yuv420p frames by piping them through ffmpeg.
package extractor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/bdougie/mira/internal/frame"
)

// Config describes the ffmpeg input.
type Config struct {
	// Input is a file path, URL or device (e.g. /dev/video0).
	Input string
	// Format forces the ffmpeg input format, e.g. "v4l2" or "avfoundation".
	Format string
	Width  int
	Height int
	// FPS resamples the input when > 0.
	FPS float64
	// Realtime reads file inputs at their native rate (-re).
	Realtime bool
	// Binary overrides the ffmpeg executable.
	Binary string
}

func (c Config) binary() string {
	if c.Binary != "" {
		return c.Binary
	}
	return "ffmpeg"
}

// Args returns the ffmpeg command line for c, without the binary.
func (c Config) Args() []string {
	args := []string{"-hide_banner", "-loglevel", "error", "-nostdin"}
	if c.Realtime {
		args = append(args, "-re")
	}
	if c.Format != "" {
		args = append(args, "-f", c.Format)
	}
	args = append(args, "-i", c.Input)

	vf := fmt.Sprintf("scale=%d:%d", c.Width, c.Height)
	if c.FPS > 0 {
		vf = "fps=" + strconv.FormatFloat(c.FPS, 'f', -1, 64) + "," + vf
	}
	return append(args, "-vf", vf, "-f", "rawvideo", "-pix_fmt", "yuv420p", "-")
}

// Stats reports frames read from the pipe and frames overwritten before the
// consumer took them.
type Stats struct {
	Frames  uint64 `json:"frames"`
	Dropped uint64 `json:"dropped"`
}

// Source reads frames from ffmpeg and hands the newest one to a consumer.
type Source struct {
	cfg    Config
	logger *slog.Logger
	latest *latestFrame
	frames atomic.Uint64
}

func NewSource(cfg Config, logger *slog.Logger) (*Source, error) {
	if cfg.Input == "" {
		return nil, errors.New("extractor: missing input")
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("extractor: invalid frame size %dx%d", cfg.Width, cfg.Height)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Source{cfg: cfg, logger: logger, latest: newLatestFrame()}, nil
}

func (s *Source) Stats() Stats {
	return Stats{Frames: s.frames.Load(), Dropped: s.latest.Drops()}
}

// Run starts ffmpeg and calls deliver serially with the newest frame until
// the input ends, ctx is cancelled or deliver returns an error.
func (s *Source) Run(ctx context.Context, deliver func(*frame.Frame) error) error {
	if s.cfg.Format == "" && !isURL(s.cfg.Input) {
		if _, err := os.Stat(s.cfg.Input); os.IsNotExist(err) {
			return fmt.Errorf("video file does not exist at path: '%s'", s.cfg.Input)
		}
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	cmd := exec.CommandContext(runCtx, s.cfg.binary(), s.cfg.Args()...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("ffmpeg stdout: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start ffmpeg: %w", err)
	}
	s.logger.Info("capturing frames",
		"input", s.cfg.Input,
		"size", fmt.Sprintf("%dx%d", s.cfg.Width, s.cfg.Height),
		"fps", s.cfg.FPS)

	// A failed delivery must stop ffmpeg so the pipe reader unblocks.
	runErr := s.Pump(runCtx, stdout, func(f *frame.Frame) error {
		err := deliver(f)
		if err != nil {
			cancel()
		}
		return err
	})
	if runErr != nil {
		cancel()
	}
	waitErr := cmd.Wait()

	switch {
	case ctx.Err() != nil:
		return ctx.Err()
	case runErr != nil:
		return runErr
	case waitErr != nil:
		return fmt.Errorf("ffmpeg failed: %v\nOutput: %s", waitErr, stderr.String())
	}
	s.logger.Info("input ended", "frames", s.frames.Load(), "dropped", s.latest.Drops())
	return nil
}

// isURL reports whether input names a network stream such as rtsp://host/path.
func isURL(input string) bool {
	scheme, _, ok := strings.Cut(input, "://")
	return ok && scheme != "" && !strings.ContainsAny(scheme, "/\\")
}

// Pump reads frames from r and delivers the newest available one at a time.
// A truncated trailing frame is logged and ignored.
func (s *Source) Pump(ctx context.Context, r io.Reader, deliver func(*frame.Frame) error) error {
	fr, err := NewFrameReader(r, s.cfg.Width, s.cfg.Height)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	done := make(chan struct{})

	g.Go(func() error {
		defer close(done)
		for {
			f, err := fr.Next()
			switch {
			case err == nil:
			case errors.Is(err, io.EOF):
				return nil
			case errors.Is(err, io.ErrUnexpectedEOF):
				s.logger.Warn("discarding truncated frame")
				return nil
			case gctx.Err() != nil:
				return nil
			default:
				return fmt.Errorf("read frame: %w", err)
			}
			s.frames.Add(1)
			s.latest.Publish(f)
		}
	})

	g.Go(func() error {
		for {
			f, err := s.latest.Take(gctx, done)
			if err != nil {
				return err
			}
			if f == nil {
				return nil
			}
			if err := deliver(f); err != nil {
				return err
			}
		}
	})

	return g.Wait()
}
