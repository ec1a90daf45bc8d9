package config

import (
	"errors"
	"fmt"
	"log/slog"
	"regexp"

	"github.com/bdougie/mira/internal/analyzer"
	"github.com/bdougie/mira/internal/frame"
)

var sessionIDPattern = regexp.MustCompile(`^[A-Za-z0-9_\-]+$`)

// backends lists the backends each analyzer kind accepts.
var backends = map[string][]string{
	analyzer.LabelsName:     {"ollama", "openai", "gemini"},
	analyzer.TextName:       {"ollama", "openai", "gemini", "tesseract"},
	analyzer.LuminosityName: {"local"},
}

// Validate checks if the configuration is valid. Every problem is reported.
func Validate(cfg *Config) error {
	var errs []error
	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if cfg.Session.ID != "" && !sessionIDPattern.MatchString(cfg.Session.ID) {
		fail("session.id must match pattern [A-Za-z0-9_-]+")
	}

	if cfg.Source.Input == "" {
		fail("source.input is required")
	}
	if cfg.Source.Width <= 0 || cfg.Source.Height <= 0 {
		fail("source.width and source.height must be > 0")
	}
	if cfg.Source.FPS < 0 {
		fail("source.fps must be >= 0")
	}
	if _, err := frame.RotationToOrientation(cfg.Source.Rotation); err != nil {
		fail("source.rotation must be one of 0, 90, 180, 270")
	}

	a := cfg.Analyzer
	allowed, ok := backends[a.Kind]
	if !ok {
		fail("analyzer.kind %q is not one of labels, text, luminosity", a.Kind)
	} else if !contains(allowed, a.Backend) {
		fail("analyzer.backend %q is not supported for %s (use one of %v)", a.Backend, a.Kind, allowed)
	}
	if a.MinIntervalMS < 0 {
		fail("analyzer.min_interval_ms must be >= 0")
	}
	if a.RequestTimeoutMS < 0 {
		fail("analyzer.request_timeout_ms must be >= 0")
	}
	if a.JPEGQuality < 0 || a.JPEGQuality > 100 {
		fail("analyzer.jpeg_quality must be between 0 and 100")
	}
	if _, err := frame.ParsePlaneOrder(a.PlaneOrder); err != nil {
		errs = append(errs, err)
	}
	if _, err := analyzer.ParseBusyPolicy(a.BusyPolicy); err != nil {
		errs = append(errs, err)
	}

	if a.Backend == "openai" && cfg.OpenAI.APIKey == "" {
		fail("openai.api_key is required for the openai backend")
	}
	if a.Backend == "gemini" && cfg.Gemini.APIKey == "" {
		fail("gemini.api_key is required for the gemini backend")
	}

	if cfg.Storage.JSON.Enabled && cfg.Session.OutputDir == "" {
		fail("session.output_dir is required for json storage")
	}
	if cfg.Storage.Badger.Enabled && cfg.Storage.Badger.Dir == "" {
		fail("storage.badger.dir is required")
	}
	if pg := cfg.Storage.Postgres; pg.Enabled && pg.URL == "" && (pg.Host == "" || pg.DBName == "") {
		fail("storage.postgres needs url or host and dbname")
	}

	switch cfg.Embeddings.Provider {
	case "hash":
	case "openai":
		if cfg.OpenAI.APIKey == "" {
			fail("openai.api_key is required for openai embeddings")
		}
	default:
		fail("embeddings.provider %q is not one of hash, openai", cfg.Embeddings.Provider)
	}
	if cfg.Embeddings.Dimension <= 0 {
		fail("embeddings.dimension must be > 0")
	}

	if cfg.MQTT.Enabled && cfg.MQTT.Broker == "" {
		fail("mqtt.broker is required")
	}
	if cfg.MQTT.QoS > 2 {
		fail("mqtt.qos must be 0, 1 or 2")
	}
	if cfg.Server.Enabled && cfg.Server.Addr == "" {
		fail("server.addr is required")
	}
	if cfg.Speech.Enabled && len(cfg.Speech.Command) == 0 {
		fail("speech.command is required")
	}
	if _, err := ParseLevel(cfg.Log.Level); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// ParseLevel maps a level name to a slog.Level.
func ParseLevel(name string) (slog.Level, error) {
	var level slog.Level
	if name == "" {
		return slog.LevelInfo, nil
	}
	if err := level.UnmarshalText([]byte(name)); err != nil {
		return 0, fmt.Errorf("log.level: %w", err)
	}
	return level, nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
