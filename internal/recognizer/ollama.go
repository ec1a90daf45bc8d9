package recognizer

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	core "github.com/agent-api/core"
	"github.com/agent-api/core/agent"
	"github.com/agent-api/core/agent/bootstrap"
	"github.com/agent-api/ollama/client"
	"github.com/go-logr/logr"
)

const (
	DefaultOllamaHost  = "http://localhost"
	DefaultOllamaPort  = 11434
	DefaultOllamaModel = "llama3.2-vision:11b"
)

const ollamaSystemPrompt = "You are a visual analysis assistant for a live camera feed. Answer exactly in the requested format."

// OllamaConfig configures a local Ollama vision model.
type OllamaConfig struct {
	Host  string
	Port  int
	Model string
}

func (c OllamaConfig) baseURL() string {
	return fmt.Sprintf("%s:%d", strings.TrimRight(c.Host, "/"), c.Port)
}

// Ollama is a VisionClient backed by a local Ollama server.
type Ollama struct {
	provider *chatProvider
	logger   *slog.Logger
	logr     logr.Logger
}

// NewOllama checks that Ollama is reachable and selects the vision model.
func NewOllama(ctx context.Context, cfg OllamaConfig, logger *slog.Logger) (*Ollama, error) {
	if cfg.Host == "" {
		cfg.Host = DefaultOllamaHost
	}
	if cfg.Port == 0 {
		cfg.Port = DefaultOllamaPort
	}
	if cfg.Model == "" {
		cfg.Model = DefaultOllamaModel
	}
	if logger == nil {
		logger = slog.Default()
	}

	if err := pingOllama(ctx, cfg); err != nil {
		return nil, err
	}

	provider := &chatProvider{
		client: client.NewClient(client.WithBaseURL(cfg.baseURL() + "/api")),
		system: ollamaSystemPrompt,
	}
	if err := provider.UseModel(ctx, &core.Model{ID: cfg.Model}); err != nil {
		return nil, err
	}
	return &Ollama{
		provider: provider,
		logger:   logger,
		logr:     logr.FromSlogHandler(logger.Handler()),
	}, nil
}

func pingOllama(ctx context.Context, cfg OllamaConfig) error {
	url := cfg.baseURL() + "/api/tags"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("ollama is not reachable at %s: %w", url, err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ollama returned %s", resp.Status)
	}
	return nil
}

// Describe runs a fresh agent on the image. Agents keep conversation
// memory, so one per frame keeps requests independent.
func (o *Ollama) Describe(ctx context.Context, prompt string, jpeg []byte) (string, error) {
	a, err := agent.NewAgent(
		bootstrap.WithProvider(o.provider),
		bootstrap.WithSystemPrompt(ollamaSystemPrompt),
		bootstrap.WithLogger(&o.logr),
		bootstrap.WithMaxSteps(2),
	)
	if err != nil {
		return "", fmt.Errorf("create agent: %w", err)
	}

	agg, err := a.Run(ctx,
		agent.WithInput(prompt),
		agent.WithImageBase64(base64.StdEncoding.EncodeToString(jpeg), "image/jpeg"),
	)
	if err != nil {
		return "", err
	}
	for i := len(agg.Messages) - 1; i >= 0; i-- {
		m := agg.Messages[i]
		if m != nil && m.Role == core.AssistantMessageRole && m.Content != "" {
			o.logger.Debug("ollama response", "content", m.Content)
			return m.Content, nil
		}
	}
	return "", ErrNoResponse
}

// chatProvider is a core.Provider over the Ollama chat endpoint at a
// configurable address. Requests ask for JSON output.
type chatProvider struct {
	client *client.OllamaClient
	system string
	model  *core.Model
}

var _ core.Provider = (*chatProvider)(nil)

func (p *chatProvider) GetCapabilities(ctx context.Context) (*core.Capabilities, error) {
	return nil, nil
}

func (p *chatProvider) UseModel(ctx context.Context, model *core.Model) error {
	if model == nil || model.ID == "" {
		return errors.New("ollama: model id is required")
	}
	p.model = model
	return nil
}

func (p *chatProvider) Generate(ctx context.Context, opts *core.GenerateOptions) (*core.Message, error) {
	if p.model == nil {
		return nil, errors.New("ollama: no model selected")
	}
	msgs := make([]*client.Message, 0, len(opts.Messages)+1)
	if p.system != "" {
		msgs = append(msgs, &client.Message{Role: client.RoleSystem, Content: p.system})
	}
	for _, m := range opts.Messages {
		if m == nil {
			continue
		}
		cm := &client.Message{Role: client.Role(m.Role), Content: m.Content}
		for _, img := range m.Images {
			cm.Images = append(cm.Images, img.Base64Encoding)
		}
		msgs = append(msgs, cm)
	}

	format := "json"
	resp, err := p.client.Chat(ctx, &client.ChatRequest{
		Model:    p.model.ID,
		Messages: msgs,
		Format:   &format,
	})
	if err != nil {
		return nil, fmt.Errorf("ollama chat: %w", err)
	}
	if resp == nil {
		return nil, ErrNoResponse
	}
	return &core.Message{
		Role:    core.AssistantMessageRole,
		Content: resp.Message.Content,
	}, nil
}

func (p *chatProvider) GenerateStream(ctx context.Context, opts *core.GenerateOptions) (<-chan *core.Message, <-chan string, <-chan error) {
	msgc := make(chan *core.Message, 1)
	deltac := make(chan string, 1)
	errc := make(chan error, 1)
	go func() {
		defer close(msgc)
		defer close(deltac)
		defer close(errc)
		m, err := p.Generate(ctx, opts)
		if err != nil {
			errc <- err
			return
		}
		deltac <- m.Content
		msgc <- m
	}()
	return msgc, deltac, errc
}
