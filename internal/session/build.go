package session

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bdougie/mira/internal/analyzer"
	"github.com/bdougie/mira/internal/config"
	"github.com/bdougie/mira/internal/embeddings"
	"github.com/bdougie/mira/internal/frame"
	"github.com/bdougie/mira/internal/recognizer"
	"github.com/bdougie/mira/internal/storage"
)

// analyzerOptions maps the analyzer section onto dispatcher options.
func analyzerOptions(cfg *config.Config, logger *slog.Logger) (analyzer.Options, error) {
	order, err := frame.ParsePlaneOrder(cfg.Analyzer.PlaneOrder)
	if err != nil {
		return analyzer.Options{}, err
	}
	policy, err := analyzer.ParseBusyPolicy(cfg.Analyzer.BusyPolicy)
	if err != nil {
		return analyzer.Options{}, err
	}
	return analyzer.Options{
		MinInterval:     cfg.Analyzer.MinInterval(),
		FrameRateWindow: cfg.Analyzer.FrameRateWindow,
		Converter:       frame.YV12Converter{Order: order},
		BusyPolicy:      policy,
		RequestTimeout:  cfg.Analyzer.RequestTimeout(),
		Logger:          logger,
	}, nil
}

// NewVisionClient builds the model client named by analyzer.backend.
func NewVisionClient(ctx context.Context, cfg *config.Config, logger *slog.Logger) (recognizer.VisionClient, error) {
	switch cfg.Analyzer.Backend {
	case "ollama":
		return recognizer.NewOllama(ctx, recognizer.OllamaConfig{
			Host:  cfg.Ollama.Host,
			Port:  cfg.Ollama.Port,
			Model: cfg.Ollama.Model,
		}, logger)
	case "openai":
		return recognizer.NewOpenAI(recognizer.OpenAIConfig{
			APIKey:  cfg.OpenAI.APIKey,
			BaseURL: cfg.OpenAI.BaseURL,
			Model:   cfg.OpenAI.Model,
		})
	case "gemini":
		return recognizer.NewGemini(ctx, recognizer.GeminiConfig{
			APIKey:  cfg.Gemini.APIKey,
			BaseURL: cfg.Gemini.BaseURL,
			Model:   cfg.Gemini.Model,
		})
	default:
		return nil, fmt.Errorf("backend %q is not a vision model", cfg.Analyzer.Backend)
	}
}

// NewAnalyzer builds the analyzer selected by cfg. The returned cleanup
// releases backend resources and must run after the analyzer is closed.
func NewAnalyzer(ctx context.Context, cfg *config.Config, logger *slog.Logger) (analyzer.FrameAnalyzer, func() error, error) {
	opts, err := analyzerOptions(cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	noop := func() error { return nil }

	switch cfg.Analyzer.Kind {
	case analyzer.LuminosityName:
		return analyzer.NewLuminosity(recognizer.Luminosity, opts), noop, nil

	case analyzer.TextName:
		if cfg.Analyzer.Backend == "tesseract" {
			t, err := recognizer.NewTesseract(cfg.Analyzer.Language, cfg.Analyzer.JPEGQuality)
			if err != nil {
				return nil, nil, err
			}
			return analyzer.NewTextRecognizer(t, opts), t.Close, nil
		}
		client, err := NewVisionClient(ctx, cfg, logger)
		if err != nil {
			return nil, nil, err
		}
		backend := &recognizer.TextReader{Client: client, Quality: cfg.Analyzer.JPEGQuality}
		return analyzer.NewTextRecognizer(backend, opts), noop, nil

	case analyzer.LabelsName:
		client, err := NewVisionClient(ctx, cfg, logger)
		if err != nil {
			return nil, nil, err
		}
		backend := &recognizer.Labeler{
			Client:    client,
			Quality:   cfg.Analyzer.JPEGQuality,
			MaxLabels: cfg.Analyzer.MaxLabels,
		}
		return analyzer.NewLabeler(backend, opts), noop, nil
	}
	return nil, nil, fmt.Errorf("unknown analyzer kind %q", cfg.Analyzer.Kind)
}

// NewEmbedder builds the embedder named by embeddings.provider.
func NewEmbedder(cfg *config.Config) (embeddings.Embedder, error) {
	switch cfg.Embeddings.Provider {
	case "", "hash":
		return embeddings.NewHash(cfg.Embeddings.Dimension), nil
	case "openai":
		return embeddings.NewOpenAI(embeddings.OpenAIConfig{
			APIKey:    cfg.OpenAI.APIKey,
			BaseURL:   cfg.OpenAI.BaseURL,
			Model:     cfg.Embeddings.Model,
			Dimension: cfg.Embeddings.Dimension,
		})
	}
	return nil, fmt.Errorf("unknown embeddings provider %q", cfg.Embeddings.Provider)
}

// PostgresConfig converts the storage section to a connection config.
func PostgresConfig(cfg *config.Config) storage.PostgresConfig {
	pg := cfg.Storage.Postgres
	return storage.PostgresConfig{
		URL:      pg.URL,
		Host:     pg.Host,
		Port:     pg.Port,
		User:     pg.User,
		Password: pg.Password,
		DBName:   pg.DBName,
		SSLMode:  pg.SSLMode,
	}
}
