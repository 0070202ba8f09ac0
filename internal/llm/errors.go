package llm

import "errors"

// User-visible message catalogue. Callers receive these verbatim;
// none of them names a concrete provider, so providers stay
// interchangeable from the caller's perspective.
const (
	MsgOfflineMode         = "Offline mode is enabled. Remote providers are disabled. Use a local model or disable offline mode."
	MsgOfflineLocalOnly    = "Offline mode requires the local provider to run on localhost. Update the endpoint or disable offline mode."
	MsgProviderUnavailable = "LLM provider unavailable. Please try again later or switch providers."
	MsgProviderTimeout     = "LLM provider timed out. Please try again in a moment."
)

var (
	// ErrProviderUnavailable covers offline policy violations,
	// missing credentials, unreachable endpoints, empty responses
	// and exhausted non-timeout retries.
	ErrProviderUnavailable = errors.New(MsgProviderUnavailable)

	// ErrProviderTimeout is raised once the retry budget is spent
	// on timeout-class failures.
	ErrProviderTimeout = errors.New(MsgProviderTimeout)
)
