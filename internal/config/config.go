package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var DefaultConfigYAML []byte

type Config struct {
	Platform   Platform   `yaml:"platform"`
	Generation Generation `yaml:"generation"`
	Embedding  Embedding  `yaml:"embedding"`
	Index      Index      `yaml:"index"`
	Monitor    Monitor    `yaml:"monitor"`
	Output     Output     `yaml:"output"`
	Server     Server     `yaml:"server"`
	Logging    Logging    `yaml:"logging"`
}

type Platform struct {
	APIBaseURL      string `yaml:"api_base_url"`
	FeedBaseURL     string `yaml:"feed_base_url"`
	TokenURL        string `yaml:"token_url"`
	APIKeyEnv       string `yaml:"api_key_env"`
	ClientIDEnv     string `yaml:"client_id_env"`
	ClientSecretEnv string `yaml:"client_secret_env"`
	TranscriptLang  string `yaml:"transcript_lang"`
}

type Generation struct {
	Provider    string  `yaml:"provider"`
	Model       string  `yaml:"model"`
	OllamaURL   string  `yaml:"ollama_url"`
	OpenAIModel string  `yaml:"openai_model"`
	APIKeyEnv   string  `yaml:"api_key_env"`
	MaxTokens   int     `yaml:"max_tokens"`
	Temperature float64 `yaml:"temperature"`
}

type Embedding struct {
	Model      string `yaml:"model"`
	Dimensions int    `yaml:"dimensions"`
}

type Index struct {
	Threshold float64 `yaml:"threshold"`
	TopK      int     `yaml:"top_k"`
}

type Monitor struct {
	IntervalMinutes    int `yaml:"interval_minutes"`
	ContentWindowDays  int `yaml:"content_window_days"`
	CommentWindowHours int `yaml:"comment_window_hours"`
	ReplyDelaySeconds  int `yaml:"reply_delay_seconds"`
	MaxRepliesPerItem  int `yaml:"max_replies_per_item"`
}

type Output struct {
	DataDir string `yaml:"data_dir"`
}

type Server struct {
	Port int `yaml:"port"`
}

type Logging struct {
	Level string `yaml:"level"`
}

// ConfigDir returns the XDG config directory for replypilot.
func ConfigDir() string {
	return filepath.Join(homeDir(), ".config", "replypilot")
}

// DataDir returns the XDG data directory for replypilot.
func DataDir() string {
	return filepath.Join(homeDir(), ".local", "share", "replypilot")
}

// ResolveConfigPath finds the config file following priority:
// explicit path > ~/.config/replypilot/config.yaml > ./config.yaml
func ResolveConfigPath(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	xdgConfig := filepath.Join(ConfigDir(), "config.yaml")
	if _, err := os.Stat(xdgConfig); err == nil {
		return xdgConfig, nil
	}

	cwdConfig := "config.yaml"
	if _, err := os.Stat(cwdConfig); err == nil {
		return cwdConfig, nil
	}

	return "", fmt.Errorf(
		"no config file found; searched:\n  %s\n  ./config.yaml\n\nRun 'replypilot init' to create a default config",
		xdgConfig,
	)
}

// Load reads, parses, and validates a config YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	cfg, err := parse(data)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// parse parses YAML bytes into a Config, applying defaults.
func parse(data []byte) (*Config, error) {
	cfg := &Config{
		Platform: Platform{
			APIBaseURL:      "https://www.googleapis.com/youtube/v3",
			FeedBaseURL:     "https://www.youtube.com/feeds/videos.xml",
			TokenURL:        "https://oauth2.googleapis.com/token",
			APIKeyEnv:       "PLATFORM_API_KEY",
			ClientIDEnv:     "PLATFORM_CLIENT_ID",
			ClientSecretEnv: "PLATFORM_CLIENT_SECRET",
			TranscriptLang:  "en",
		},
		Generation: Generation{
			Provider:    "ollama",
			Model:       "qwen2.5:7b",
			OllamaURL:   "http://localhost:11434",
			OpenAIModel: "gpt-4o-mini",
			APIKeyEnv:   "OPENAI_API_KEY",
			MaxTokens:   256,
			Temperature: 0.7,
		},
		Embedding: Embedding{
			Model:      "nomic-embed-text",
			Dimensions: 768,
		},
		Index: Index{
			Threshold: 0.75,
			TopK:      3,
		},
		Monitor: Monitor{
			IntervalMinutes:    15,
			ContentWindowDays:  7,
			CommentWindowHours: 24,
			ReplyDelaySeconds:  30,
			MaxRepliesPerItem:  10,
		},
		Server:  Server{Port: 8400},
		Logging: Logging{Level: "INFO"},
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	return cfg, nil
}

// Validate checks value ranges that would otherwise only fail deep inside
// a sweep.
func (c *Config) Validate() error {
	if c.Monitor.IntervalMinutes <= 0 {
		return fmt.Errorf("monitor.interval_minutes must be positive, got %d", c.Monitor.IntervalMinutes)
	}
	if c.Monitor.ContentWindowDays <= 0 {
		return fmt.Errorf("monitor.content_window_days must be positive, got %d", c.Monitor.ContentWindowDays)
	}
	if c.Monitor.CommentWindowHours <= 0 {
		return fmt.Errorf("monitor.comment_window_hours must be positive, got %d", c.Monitor.CommentWindowHours)
	}
	if c.Monitor.ReplyDelaySeconds < 0 {
		return fmt.Errorf("monitor.reply_delay_seconds must not be negative, got %d", c.Monitor.ReplyDelaySeconds)
	}
	if c.Index.Threshold <= 0 || c.Index.Threshold > 1 {
		return fmt.Errorf("index.threshold must be in (0, 1], got %g", c.Index.Threshold)
	}
	if c.Index.TopK <= 0 {
		return fmt.Errorf("index.top_k must be positive, got %d", c.Index.TopK)
	}
	if c.Generation.Temperature < 0 || c.Generation.Temperature > 2 {
		return fmt.Errorf("generation.temperature must be in [0, 2], got %g", c.Generation.Temperature)
	}
	if c.Generation.MaxTokens <= 0 {
		return fmt.Errorf("generation.max_tokens must be positive, got %d", c.Generation.MaxTokens)
	}
	return nil
}

// GetDataDir returns the effective data directory from config or XDG default.
func (c *Config) GetDataDir() string {
	if c.Output.DataDir != "" {
		return c.Output.DataDir
	}
	return DataDir()
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
