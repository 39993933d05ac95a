package analysis

import "context"

// CompletionRequest is a provider-agnostic completion call: one system
// instruction plus one user prompt, returning one text completion.
type CompletionRequest struct {
	System    string
	Prompt    string
	MaxTokens int
}

// Provider is a completion backend. Both cloud and local engines sit
// behind this contract.
type Provider interface {
	// Name returns the provider identifier.
	Name() string

	// Complete returns one text completion for the request.
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// AvailabilityChecker is implemented by providers whose availability must
// be verified before use. The local engine checks that its server is up
// and the required model is present.
type AvailabilityChecker interface {
	// Available returns nil when the provider can serve requests.
	Available(ctx context.Context) error
}

// ProviderKind selects a completion provider implementation. Selection is
// a closed enum fixed at construction time.
type ProviderKind int

const (
	// ProviderOpenAI is the OpenAI chat-completions API.
	ProviderOpenAI ProviderKind = iota
	// ProviderGemini is the Google Gemini API.
	ProviderGemini
	// ProviderOllama is a local Ollama server.
	ProviderOllama
)

// String returns a human-readable provider name.
func (k ProviderKind) String() string {
	switch k {
	case ProviderOpenAI:
		return "openai"
	case ProviderGemini:
		return "gemini"
	case ProviderOllama:
		return "ollama"
	default:
		return "unknown"
	}
}
