package config

import (
	"testing"
	"time"

	"github.com/overhear-ai/overhear/pkg/core/analysis"
	"github.com/overhear-ai/overhear/pkg/core/recognition"
)

func TestLoadFromEnvDefaults(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv: %v", err)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q", cfg.LogLevel)
	}
	s := cfg.Session
	if s.Backend != recognition.BackendRealtime {
		t.Errorf("Backend = %v", s.Backend)
	}
	if s.Provider != analysis.ProviderOpenAI || s.Fallback != analysis.ProviderOllama {
		t.Errorf("providers = %v/%v", s.Provider, s.Fallback)
	}
	if s.DebounceWindow != 2*time.Second || s.BatchSize != 5 || s.WindowTurns != 30 {
		t.Errorf("tunables = %v/%d/%d", s.DebounceWindow, s.BatchSize, s.WindowTurns)
	}
	if s.SampleRate != 24000 {
		t.Errorf("SampleRate = %d", s.SampleRate)
	}
}

func TestLoadFromEnvOverrides(t *testing.T) {
	t.Setenv("OVERHEAR_RECOGNITION_BACKEND", "whisper")
	t.Setenv("OVERHEAR_ANALYSIS_PROVIDER", "gemini")
	t.Setenv("OVERHEAR_DEBOUNCE_WINDOW", "750ms")
	t.Setenv("OVERHEAR_ANALYSIS_BATCH_SIZE", "3")
	t.Setenv("OVERHEAR_WHISPER_URL", "http://localhost:9000")

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv: %v", err)
	}
	s := cfg.Session
	if s.Backend != recognition.BackendWhisper {
		t.Errorf("Backend = %v", s.Backend)
	}
	if s.Provider != analysis.ProviderGemini {
		t.Errorf("Provider = %v", s.Provider)
	}
	if s.DebounceWindow != 750*time.Millisecond {
		t.Errorf("DebounceWindow = %v", s.DebounceWindow)
	}
	if s.BatchSize != 3 {
		t.Errorf("BatchSize = %d", s.BatchSize)
	}
	if s.WhisperURL != "http://localhost:9000" {
		t.Errorf("WhisperURL = %q", s.WhisperURL)
	}
}

func TestLoadFromEnvRejectsBadValues(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("OVERHEAR_RECOGNITION_BACKEND", "dictaphone")
	if _, err := LoadFromEnv(); err == nil {
		t.Fatal("bad backend accepted")
	}

	t.Setenv("OVERHEAR_RECOGNITION_BACKEND", "realtime")
	t.Setenv("OVERHEAR_LOG_LEVEL", "loud")
	if _, err := LoadFromEnv(); err == nil {
		t.Fatal("bad log level accepted")
	}
}

func TestLoadFromEnvRequiresKeyForRealtime(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("OVERHEAR_RECOGNITION_BACKEND", "realtime")
	if _, err := LoadFromEnv(); err == nil {
		t.Fatal("missing API key accepted")
	}
}
