package output

import (
	"context"
	"errors"
	"log/slog"
	"os/exec"
	"sync"

	"github.com/bdougie/mira/internal/analyzer"
	"github.com/bdougie/mira/internal/models"
)

// SpeechUnavailable is logged when the speech command cannot be started.
const SpeechUnavailable = "Text to speech is unavailable."

// DefaultSpeechCommand speaks its last argument.
var DefaultSpeechCommand = []string{"espeak-ng"}

// Speaker reads results aloud with an external command. A new utterance
// interrupts the previous one.
type Speaker struct {
	command []string
	logger  *slog.Logger

	mu          sync.Mutex
	cancel      context.CancelFunc
	done        chan struct{}
	closed      bool
	unavailable bool
}

// NewSpeaker runs command with the text appended as the final argument.
func NewSpeaker(command []string, logger *slog.Logger) *Speaker {
	if len(command) == 0 {
		command = DefaultSpeechCommand
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Speaker{command: command, logger: logger}
}

// Speak interrupts any utterance in progress and starts a new one. It does
// not wait for speech to finish.
func (s *Speaker) Speak(text string) error {
	if text == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errors.New("speaker closed")
	}
	s.stopLocked()

	ctx, cancel := context.WithCancel(context.Background())
	args := append(append([]string{}, s.command[1:]...), text)
	cmd := exec.CommandContext(ctx, s.command[0], args...)
	if err := cmd.Start(); err != nil {
		cancel()
		if !s.unavailable {
			s.unavailable = true
			s.logger.Warn(SpeechUnavailable, "command", s.command[0], "error", err)
		}
		return err
	}

	done := make(chan struct{})
	s.cancel, s.done = cancel, done
	go func() {
		defer close(done)
		cmd.Wait()
		cancel()
	}()
	return nil
}

func (s *Speaker) stopLocked() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	s.cancel, s.done = nil, nil
}

// Wait blocks until the current utterance finishes.
func (s *Speaker) Wait() {
	s.mu.Lock()
	done := s.done
	s.mu.Unlock()
	if done != nil {
		<-done
	}
}

// Listener speaks successful and empty results. Failures are not spoken.
func (s *Speaker) Listener() analyzer.Listener {
	return func(res models.Result) {
		if !res.OK() {
			return
		}
		s.Speak(res.String())
	}
}

// Close stops any utterance in progress.
func (s *Speaker) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.stopLocked()
	return nil
}
