package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"docqa/internal/config"
)

type errorClass int

const (
	classTransient errorClass = iota
	classTimeout
	classRateLimit
)

// Orchestrator is the single point every completion goes through:
// it enforces the offline policy, runs the bounded retry loop and
// normalizes failures to the provider-agnostic catalogue.
type Orchestrator struct {
	provider    Provider
	offline     bool
	endpoint    string // active provider endpoint, checked by offline policy
	timeout     time.Duration
	maxRetries  int
	temperature float64
	maxTokens   int

	sleep func(time.Duration)
}

// New selects the provider variant for the config and validates
// critical settings before anything touches the network.
func New(cfg *config.Config) (*Orchestrator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}

	var (
		provider Provider
		endpoint string
		err      error
	)
	switch cfg.Provider {
	case "ollama":
		provider, err = NewOllamaProvider(cfg)
		endpoint = cfg.OllamaBaseURL
	default:
		provider, err = NewGroqProvider(cfg)
		endpoint = cfg.GroqBaseURL
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}

	return NewWithProvider(provider, cfg, endpoint), nil
}

// NewWithProvider wires an explicit provider, used directly by tests.
func NewWithProvider(provider Provider, cfg *config.Config, endpoint string) *Orchestrator {
	timeout := time.Duration(cfg.LLMTimeout) * time.Second
	if timeout <= 0 {
		timeout = 45 * time.Second
	}
	return &Orchestrator{
		provider:    provider,
		offline:     cfg.Offline,
		endpoint:    endpoint,
		timeout:     timeout,
		maxRetries:  cfg.MaxRetries,
		temperature: cfg.Generation.Temperature,
		maxTokens:   cfg.Generation.MaxTokens,
		sleep:       time.Sleep,
	}
}

// Generate runs the completion with bounded retries. It returns the
// model text, or ErrProviderTimeout / ErrProviderUnavailable once
// the budget is exhausted.
func (o *Orchestrator) Generate(ctx context.Context, systemPrompt, userMessage string) (string, error) {
	if err := o.checkOfflinePolicy(); err != nil {
		return "", err
	}

	req := Request{
		SystemPrompt: systemPrompt,
		UserMessage:  userMessage,
		Temperature:  o.temperature,
		MaxTokens:    o.maxTokens,
	}

	var lastErr error
	attempts := o.maxRetries + 1
	for attempt := 0; attempt < attempts; attempt++ {
		log.Info().
			Str("provider", o.provider.Name()).
			Int("attempt", attempt+1).
			Int("of", attempts).
			Msg("completion request")

		attemptCtx, cancel := context.WithTimeout(ctx, o.timeout)
		text, err := o.provider.Complete(attemptCtx, req)
		cancel()

		if err == nil {
			text = strings.TrimSpace(text)
			if text != "" {
				return text, nil
			}
			// Empty content is a failure, not a success.
			err = errors.New("provider returned empty response")
		}
		lastErr = err

		log.Warn().
			Err(err).
			Str("provider", o.provider.Name()).
			Int("attempt", attempt+1).
			Msg("completion attempt failed")

		if attempt < attempts-1 {
			o.sleep(time.Duration(1<<attempt) * time.Second)
		}
	}

	if classify(lastErr) == classTimeout {
		return "", fmt.Errorf("%w: failed after %d attempts", ErrProviderTimeout, attempts)
	}
	return "", fmt.Errorf("%w: failed after %d attempts", ErrProviderUnavailable, attempts)
}

// checkOfflinePolicy forbids any non-local network action when the
// offline flag is set. Runs before the first attempt.
func (o *Orchestrator) checkOfflinePolicy() error {
	if !o.offline {
		return nil
	}
	if o.provider.Name() != "ollama" {
		return fmt.Errorf("%w: %s", ErrProviderUnavailable, MsgOfflineMode)
	}
	if !isLoopback(o.endpoint) {
		return fmt.Errorf("%w: %s", ErrProviderUnavailable, MsgOfflineLocalOnly)
	}
	return nil
}

func isLoopback(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	host := u.Hostname()
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// classify buckets an attempt error for normalization. Timeout-class
// failures become ErrProviderTimeout after the budget is spent;
// everything else becomes ErrProviderUnavailable.
func classify(err error) errorClass {
	if err == nil {
		return classTransient
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return classTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return classTimeout
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "timeout") || strings.Contains(msg, "deadline exceeded"):
		return classTimeout
	case strings.Contains(msg, "rate limit") || strings.Contains(msg, "too many requests") || strings.Contains(msg, "429"):
		return classRateLimit
	}
	return classTransient
}
