// Package config loads the application configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/overhear-ai/overhear/pkg/core/analysis"
	"github.com/overhear-ai/overhear/pkg/core/live"
	"github.com/overhear-ai/overhear/pkg/core/recognition"
)

type Config struct {
	// PostgresDSN enables persistence when set. Empty runs without a store.
	PostgresDSN string

	// LogLevel is one of debug|info|warn|error.
	LogLevel string

	Session live.SessionConfig
}

func LoadFromEnv() (Config, error) {
	session := live.DefaultSessionConfig()
	session.OwnerID = envOr("OVERHEAR_OWNER_ID", "local")
	session.Model = envOr("OVERHEAR_TRANSCRIPTION_MODEL", session.Model)
	session.SampleRate = envIntOr("OVERHEAR_SAMPLE_RATE", session.SampleRate)
	session.DebounceWindow = envDurationOr("OVERHEAR_DEBOUNCE_WINDOW", session.DebounceWindow)
	session.BatchSize = envIntOr("OVERHEAR_ANALYSIS_BATCH_SIZE", session.BatchSize)
	session.WindowTurns = envIntOr("OVERHEAR_ANALYSIS_WINDOW_TURNS", session.WindowTurns)
	session.Retry.MaxRetries = uint64(envIntOr("OVERHEAR_INIT_MAX_RETRIES", int(session.Retry.MaxRetries)))
	session.Retry.Delay = envDurationOr("OVERHEAR_INIT_RETRY_DELAY", session.Retry.Delay)
	session.VAD.Threshold = envFloat64Or("OVERHEAR_VAD_THRESHOLD", session.VAD.Threshold)
	session.VAD.PrefixPaddingMs = envIntOr("OVERHEAR_VAD_PREFIX_PADDING_MS", session.VAD.PrefixPaddingMs)
	session.VAD.SilenceDurationMs = envIntOr("OVERHEAR_VAD_SILENCE_DURATION_MS", session.VAD.SilenceDurationMs)
	session.RefMaxAge = envDurationOr("OVERHEAR_ECHO_REF_MAX_AGE", session.RefMaxAge)
	session.AnalysisModel = envOr("OVERHEAR_ANALYSIS_MODEL", "")
	session.OpenAIAPIKey = envOr("OPENAI_API_KEY", "")
	session.GeminiAPIKey = envOr("GEMINI_API_KEY", "")
	session.WhisperURL = envOr("OVERHEAR_WHISPER_URL", "http://127.0.0.1:8080")
	session.OllamaURL = envOr("OVERHEAR_OLLAMA_URL", "http://127.0.0.1:11434")
	session.OllamaModel = envOr("OVERHEAR_OLLAMA_MODEL", "llama3.2")

	backend, err := parseBackend(envOr("OVERHEAR_RECOGNITION_BACKEND", "realtime"))
	if err != nil {
		return Config{}, err
	}
	session.Backend = backend

	session.Provider, err = parseProvider("OVERHEAR_ANALYSIS_PROVIDER", envOr("OVERHEAR_ANALYSIS_PROVIDER", "openai"))
	if err != nil {
		return Config{}, err
	}
	session.Fallback, err = parseProvider("OVERHEAR_ANALYSIS_FALLBACK", envOr("OVERHEAR_ANALYSIS_FALLBACK", "ollama"))
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		PostgresDSN: envOr("OVERHEAR_POSTGRES_DSN", ""),
		LogLevel:    envOr("OVERHEAR_LOG_LEVEL", "info"),
		Session:     session,
	}

	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return Config{}, fmt.Errorf("OVERHEAR_LOG_LEVEL must be one of debug|info|warn|error")
	}

	if session.SampleRate <= 0 {
		return Config{}, fmt.Errorf("OVERHEAR_SAMPLE_RATE must be > 0")
	}
	if session.DebounceWindow <= 0 {
		return Config{}, fmt.Errorf("OVERHEAR_DEBOUNCE_WINDOW must be > 0")
	}
	if session.BatchSize <= 0 {
		return Config{}, fmt.Errorf("OVERHEAR_ANALYSIS_BATCH_SIZE must be > 0")
	}
	if session.WindowTurns <= 0 {
		return Config{}, fmt.Errorf("OVERHEAR_ANALYSIS_WINDOW_TURNS must be > 0")
	}
	if session.Backend == recognition.BackendRealtime && session.OpenAIAPIKey == "" {
		return Config{}, fmt.Errorf("OPENAI_API_KEY is required for the realtime backend")
	}

	return cfg, nil
}

func parseBackend(raw string) (recognition.BackendKind, error) {
	switch strings.ToLower(raw) {
	case "realtime":
		return recognition.BackendRealtime, nil
	case "whisper":
		return recognition.BackendWhisper, nil
	default:
		return 0, fmt.Errorf("OVERHEAR_RECOGNITION_BACKEND must be one of realtime|whisper")
	}
}

func parseProvider(key, raw string) (analysis.ProviderKind, error) {
	switch strings.ToLower(raw) {
	case "openai":
		return analysis.ProviderOpenAI, nil
	case "gemini":
		return analysis.ProviderGemini, nil
	case "ollama":
		return analysis.ProviderOllama, nil
	default:
		return 0, fmt.Errorf("%s must be one of openai|gemini|ollama", key)
	}
}

func envOr(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func envIntOr(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}

func envFloat64Or(key string, def float64) float64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	n, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return def
	}
	return n
}

func envDurationOr(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return def
	}
	return d
}
