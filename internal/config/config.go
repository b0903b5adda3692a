package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix selects environment overrides. Nested keys are separated by a
// double underscore: MEMVAULT_INDEX__QDRANT__ADDR -> index.qdrant.addr.
const EnvPrefix = "MEMVAULT_"

// Config holds all memvault configuration. It is loaded once at startup
// and treated as read-only afterwards.
type Config struct {
	Log       LogConfig       `koanf:"log"`
	Server    ServerConfig    `koanf:"server"`
	Store     StoreConfig     `koanf:"store"`
	Index     IndexConfig     `koanf:"index"`
	Embedder  EmbedderConfig  `koanf:"embedder"`
	LLM       LLMConfig       `koanf:"llm"`
	Chat      ChatConfig      `koanf:"chat"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
}

type LogConfig struct {
	Level  string `koanf:"level" validate:"oneof=debug info warn error"`
	Format string `koanf:"format" validate:"oneof=text json"`
}

type ServerConfig struct {
	Bind string `koanf:"bind" validate:"required"`
	Port int    `koanf:"port" validate:"gte=1,lte=65535"`
}

type StoreConfig struct {
	Backend string `koanf:"backend" validate:"oneof=sqlite badger memory"`
	Path    string `koanf:"path"` // resolved at runtime when empty
}

type IndexConfig struct {
	Backend string        `koanf:"backend" validate:"oneof=bruteforce qdrant chromem keyword"`
	Qdrant  QdrantConfig  `koanf:"qdrant"`
	Chromem ChromemConfig `koanf:"chromem"`
}

type QdrantConfig struct {
	Addr       string `koanf:"addr"`
	APIKey     string `koanf:"api_key"`
	Collection string `koanf:"collection" validate:"required"`
}

type ChromemConfig struct {
	Path     string `koanf:"path"` // empty keeps the index in memory
	Compress bool   `koanf:"compress"`
}

type EmbedderConfig struct {
	Provider          string  `koanf:"provider" validate:"oneof=ollama openai hash none"`
	Model             string  `koanf:"model"`
	BaseURL           string  `koanf:"base_url"`
	APIKey            string  `koanf:"api_key"`
	Dimensions        int     `koanf:"dimensions" validate:"gte=1"`
	CacheSize         int     `koanf:"cache_size" validate:"gte=0"`
	RequestsPerSecond float64 `koanf:"requests_per_second" validate:"gte=0"`
	// CheckOnStart embeds a sample text at startup to catch a provider whose
	// vectors do not match Dimensions.
	CheckOnStart bool `koanf:"check_on_start"`
}

type LLMConfig struct {
	Provider    string  `koanf:"provider" validate:"oneof=anthropic openai ollama claude-cli mock none"`
	Model       string  `koanf:"model"`
	BaseURL     string  `koanf:"base_url"`
	APIKey      string  `koanf:"api_key"`
	Temperature float64 `koanf:"temperature" validate:"gte=0,lte=2"`
	MaxTokens   int     `koanf:"max_tokens" validate:"gte=1"`
}

type ChatConfig struct {
	DefaultTopK     int    `koanf:"default_top_k" validate:"gte=1"`
	MaxContextChars int    `koanf:"max_context_chars" validate:"gte=1"`
	SystemPrompt    string `koanf:"system_prompt"`
	HistoryTurns    int    `koanf:"history_turns" validate:"gte=0"`
}

type TelemetryConfig struct {
	Tracing bool `koanf:"tracing"`
	Metrics bool `koanf:"metrics"`
}

// Default returns a Config with sensible defaults.
func Default() Config {
	return Config{
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Server: ServerConfig{
			Bind: "127.0.0.1",
			Port: 37778,
		},
		Store: StoreConfig{
			Backend: "sqlite",
		},
		Index: IndexConfig{
			Backend: "bruteforce",
			Qdrant: QdrantConfig{
				Addr:       "localhost:6334",
				Collection: "memvault_memories",
			},
		},
		Embedder: EmbedderConfig{
			Provider:     "ollama",
			Model:        "nomic-embed-text",
			BaseURL:      "http://localhost:11434",
			Dimensions:   768,
			CacheSize:    1024,
			CheckOnStart: true,
		},
		LLM: LLMConfig{
			Provider:    "claude-cli",
			Model:       "haiku",
			Temperature: 0.3,
			MaxTokens:   2048,
		},
		Chat: ChatConfig{
			DefaultTopK:     5,
			MaxContextChars: 4000,
			HistoryTurns:    20,
		},
		Telemetry: TelemetryConfig{
			Metrics: true,
		},
	}
}

// Load layers the YAML file at path (optional) and MEMVAULT_ environment
// variables over Default, then validates the result.
func Load(path string) (Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return Config{}, fmt.Errorf("load config %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return Config{}, fmt.Errorf("load env config: %w", err)
	}

	cfg := Default()
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	applyKeyFallbacks(&cfg)
	applyIndexMode(&cfg)

	if err := Validate(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func envKey(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".")
}

// applyKeyFallbacks fills provider API keys from the conventional
// environment variables when the config leaves them empty.
func applyKeyFallbacks(cfg *Config) {
	fallback := func(provider string) string {
		switch provider {
		case "anthropic":
			return os.Getenv("ANTHROPIC_API_KEY")
		case "openai":
			return os.Getenv("OPENAI_API_KEY")
		}
		return ""
	}
	if cfg.LLM.APIKey == "" {
		cfg.LLM.APIKey = fallback(cfg.LLM.Provider)
	}
	if cfg.Embedder.APIKey == "" {
		cfg.Embedder.APIKey = fallback(cfg.Embedder.Provider)
	}
}

// applyIndexMode switches off embedding for the keyword index, which ranks
// record text and stores no vectors.
func applyIndexMode(cfg *Config) {
	if cfg.Index.Backend == "keyword" {
		cfg.Embedder.Provider = "none"
	}
}

// ListenAddr returns the bind:port address string.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Bind, c.Server.Port)
}
