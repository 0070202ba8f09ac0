package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// LLMConfig points at one model endpoint.
type LLMConfig struct {
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`
	Key     string `yaml:"key"`
}

// StoreConfig selects and configures the vector index backend.
type StoreConfig struct {
	Backend          string `yaml:"backend"` // chromem or postgres
	Path             string `yaml:"path"`
	Collection       string `yaml:"collection"`
	InMemory         bool   `yaml:"in_memory"`
	PostgresDSN      string `yaml:"postgres_dsn"`
	PostgresPassword string `yaml:"postgres_password"`
	Debug            bool   `yaml:"debug"`
}

// RetrievalConfig tunes candidate selection.
type RetrievalConfig struct {
	CandidateK        int     `yaml:"candidate_k"`
	MinScoreThreshold float64 `yaml:"min_score_threshold"`
	DropOffThreshold  float64 `yaml:"drop_off_threshold"`
}

// GenerationConfig tunes the completion call and the refusal contract.
type GenerationConfig struct {
	Temperature     float64 `yaml:"temperature"`
	MaxTokens       int     `yaml:"max_tokens"`
	RefusalResponse string  `yaml:"refusal_response"`
}

// ChunkingConfig bounds fragment size and overlap, in characters.
type ChunkingConfig struct {
	Size    int `yaml:"size"`
	Overlap int `yaml:"overlap"`
}

type Config struct {
	Provider      string `yaml:"provider"` // groq or ollama
	Model         string `yaml:"model"`
	GroqAPIKey    string `yaml:"groq_api_key"`
	GroqBaseURL   string `yaml:"groq_base_url"`
	OllamaBaseURL string `yaml:"ollama_base_url"`
	Offline       bool   `yaml:"offline"`
	LLMTimeout    int    `yaml:"llm_timeout"` // seconds
	MaxRetries    int    `yaml:"max_retries"`

	EmbedLLM   LLMConfig        `yaml:"embed_llm"`
	Store      StoreConfig      `yaml:"store"`
	Retrieval  RetrievalConfig  `yaml:"retrieval"`
	Generation GenerationConfig `yaml:"generation"`
	Chunking   ChunkingConfig   `yaml:"chunking"`
}

// DefaultRefusalResponse is the canonical refusal. Downstream
// consumers match it exactly, so it is never paraphrased.
const DefaultRefusalResponse = "Answer: Not found in indexed documents."

// ErrConfiguration marks settings that fail runtime validation.
var ErrConfiguration = errors.New("invalid configuration")

// Default returns a config where every field has a usable value.
func Default() *Config {
	return &Config{
		Provider:      "groq",
		Model:         "llama-3.3-70b-versatile",
		GroqBaseURL:   "https://api.groq.com/openai/v1",
		OllamaBaseURL: "http://localhost:11434",
		LLMTimeout:    45,
		MaxRetries:    2,
		EmbedLLM: LLMConfig{
			BaseURL: "http://localhost:11434",
			Model:   "nomic-embed-text",
		},
		Store: StoreConfig{
			Backend:    "chromem",
			Path:       "./data/vectordb",
			Collection: "docqa_chunks",
		},
		Retrieval: RetrievalConfig{
			CandidateK:        20,
			MinScoreThreshold: 0.40,
			DropOffThreshold:  0.10,
		},
		Generation: GenerationConfig{
			Temperature:     0.1,
			MaxTokens:       500,
			RefusalResponse: DefaultRefusalResponse,
		},
		Chunking: ChunkingConfig{
			Size:    2000,
			Overlap: 200,
		},
	}
}

// LoadConfig reads the yaml file at path over the defaults, then
// applies .env and environment overrides. A missing file is fine;
// the defaults stand.
func LoadConfig(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	case os.IsNotExist(err):
		log.Warn().Str("path", path).Msg("no config file found, using defaults")
	default:
		return nil, err
	}

	// .env values never override already-exported environment variables.
	if err := godotenv.Load(); err == nil {
		log.Debug().Msg("loaded .env file")
	}
	cfg.applyEnv()

	cfg.Provider = strings.ToLower(strings.TrimSpace(cfg.Provider))
	cfg.OllamaBaseURL = strings.TrimRight(cfg.OllamaBaseURL, "/")
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("RAG_PROVIDER"); v != "" {
		c.Provider = v
	}
	if v := os.Getenv("RAG_MODEL_NAME"); v != "" {
		c.Model = v
	}
	if v := os.Getenv("GROQ_API_KEY"); v != "" {
		c.GroqAPIKey = v
	}
	if v := os.Getenv("OLLAMA_BASE_URL"); v != "" {
		c.OllamaBaseURL = v
	}
	if v := os.Getenv("RAG_OFFLINE"); v != "" {
		c.Offline = v == "1" || strings.EqualFold(v, "true")
	}
	if v := os.Getenv("LLM_TIMEOUT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.LLMTimeout = n
		}
	}
}

// Validate enforces critical settings before any network call.
func (c *Config) Validate() error {
	switch c.Provider {
	case "groq", "ollama":
	default:
		return fmt.Errorf("%w: provider must be 'groq' or 'ollama', got %q", ErrConfiguration, c.Provider)
	}
	if c.Provider == "groq" && strings.TrimSpace(c.GroqAPIKey) == "" {
		return fmt.Errorf("%w: groq_api_key is required when provider=groq; set GROQ_API_KEY", ErrConfiguration)
	}
	if c.Offline && c.Provider != "ollama" {
		return fmt.Errorf("%w: offline mode requires provider=ollama, remote providers are disabled", ErrConfiguration)
	}
	return nil
}

// MaskedKey renders a credential safe for logs and config inspection.
func MaskedKey(key string) string {
	if key == "" {
		return ""
	}
	if len(key) <= 8 {
		return "***"
	}
	return key[:4] + "..." + key[len(key)-4:]
}
