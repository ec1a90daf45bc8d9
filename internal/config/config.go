package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults carried over from the batch analyzer.
const (
	MaxWorkers = 4  // embedding workers
	BatchSize  = 10 // results per JSON file write
)

// Config represents the complete mira configuration
type Config struct {
	Session    SessionConfig    `yaml:"session"`
	Source     SourceConfig     `yaml:"source"`
	Analyzer   AnalyzerConfig   `yaml:"analyzer"`
	Ollama     OllamaConfig     `yaml:"ollama"`
	OpenAI     OpenAIConfig     `yaml:"openai"`
	Gemini     GeminiConfig     `yaml:"gemini"`
	Storage    StorageConfig    `yaml:"storage"`
	Embeddings EmbeddingsConfig `yaml:"embeddings"`
	MQTT       MQTTConfig       `yaml:"mqtt"`
	Server     ServerConfig     `yaml:"server"`
	Speech     SpeechConfig     `yaml:"speech"`
	Log        LogConfig        `yaml:"log"`
}

// SessionConfig identifies one run.
type SessionConfig struct {
	ID        string `yaml:"id"` // generated when empty
	OutputDir string `yaml:"output_dir"`
}

// SourceConfig describes the ffmpeg input.
type SourceConfig struct {
	Input    string  `yaml:"input"`  // file, URL or device
	Format   string  `yaml:"format"` // ffmpeg input format, e.g. v4l2
	Width    int     `yaml:"width"`
	Height   int     `yaml:"height"`
	FPS      float64 `yaml:"fps"`
	Realtime bool    `yaml:"realtime"`
	Rotation int     `yaml:"rotation"` // degrees the image must be rotated to be upright
	FFmpeg   string  `yaml:"ffmpeg"`
}

// AnalyzerConfig selects the analyzer and its throttling.
type AnalyzerConfig struct {
	Kind             string `yaml:"kind"`    // labels, text, luminosity
	Backend          string `yaml:"backend"` // ollama, openai, gemini, tesseract, local
	MinIntervalMS    int    `yaml:"min_interval_ms"`
	FrameRateWindow  int    `yaml:"frame_rate_window"`
	PlaneOrder       string `yaml:"plane_order"` // positional, swap_chroma
	BusyPolicy       string `yaml:"busy_policy"` // drop, overlap
	RequestTimeoutMS int    `yaml:"request_timeout_ms"`
	JPEGQuality      int    `yaml:"jpeg_quality"`
	MaxLabels        int    `yaml:"max_labels"`
	Language         string `yaml:"language"` // tesseract language
}

func (a AnalyzerConfig) MinInterval() time.Duration {
	return time.Duration(a.MinIntervalMS) * time.Millisecond
}

func (a AnalyzerConfig) RequestTimeout() time.Duration {
	return time.Duration(a.RequestTimeoutMS) * time.Millisecond
}

type OllamaConfig struct {
	Host  string `yaml:"host"`
	Port  int    `yaml:"port"`
	Model string `yaml:"model"`
}

type OpenAIConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`
}

type GeminiConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`
}

// StorageConfig enables result sinks. Any combination may be active.
type StorageConfig struct {
	JSON     JSONStorageConfig     `yaml:"json"`
	Badger   BadgerStorageConfig   `yaml:"badger"`
	Postgres PostgresStorageConfig `yaml:"postgres"`
}

type JSONStorageConfig struct {
	Enabled   bool `yaml:"enabled"`
	BatchSize int  `yaml:"batch_size"`
}

type BadgerStorageConfig struct {
	Enabled bool   `yaml:"enabled"`
	Dir     string `yaml:"dir"`
}

type PostgresStorageConfig struct {
	Enabled  bool   `yaml:"enabled"`
	URL      string `yaml:"url"`
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`
}

// EmbeddingsConfig selects how result text is embedded for similarity search.
type EmbeddingsConfig struct {
	Provider  string `yaml:"provider"` // hash, openai
	Model     string `yaml:"model"`
	Dimension int    `yaml:"dimension"`
	Workers   int    `yaml:"workers"`
}

type MQTTConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Broker      string `yaml:"broker"`
	ClientID    string `yaml:"client_id"`
	TopicPrefix string `yaml:"topic_prefix"`
	QoS         byte   `yaml:"qos"`
	Retain      bool   `yaml:"retain"`
}

type ServerConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

type SpeechConfig struct {
	Enabled bool     `yaml:"enabled"`
	Command []string `yaml:"command"`
}

type LogConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
}

// Default returns the configuration used for keys missing from the file.
func Default() *Config {
	return &Config{
		Session: SessionConfig{OutputDir: "output"},
		Source: SourceConfig{
			Input:  "/dev/video0",
			Format: "v4l2",
			Width:  640,
			Height: 480,
		},
		Analyzer: AnalyzerConfig{
			Kind:             "labels",
			Backend:          "ollama",
			MinIntervalMS:    1000,
			FrameRateWindow:  8,
			PlaneOrder:       "swap_chroma",
			BusyPolicy:       "drop",
			RequestTimeoutMS: 30000,
			JPEGQuality:      85,
			MaxLabels:        5,
			Language:         "eng",
		},
		Ollama: OllamaConfig{Host: "http://localhost", Port: 11434, Model: "llama3.2-vision:11b"},
		Storage: StorageConfig{
			JSON:   JSONStorageConfig{Enabled: true, BatchSize: BatchSize},
			Badger: BadgerStorageConfig{Dir: "output/history"},
			Postgres: PostgresStorageConfig{
				Host:    "localhost",
				Port:    "5432",
				SSLMode: "disable",
			},
		},
		Embeddings: EmbeddingsConfig{Provider: "hash", Dimension: 256, Workers: MaxWorkers},
		MQTT:       MQTTConfig{Broker: "localhost:1883", TopicPrefix: "mira"},
		Server:     ServerConfig{Addr: ":8080"},
		Speech:     SpeechConfig{Command: []string{"espeak-ng"}},
		Log:        LogConfig{Level: "info"},
	}
}

// Load reads a YAML configuration file over the defaults. ${VAR} references
// are expanded from the environment before parsing.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates YAML configuration bytes.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}
