package llm

import (
	"testing"
	"time"

	"github.com/notegraph/notegraph/pkg/config"
)

// TestNewAppliesConfiguredTimeout pins that Client.timeout comes from
// LLMConfig.TimeoutSeconds (spec's per-call LLM deadline), not hardcoded.
func TestNewAppliesConfiguredTimeout(t *testing.T) {
	c := New(config.LLMConfig{Model: "test-model", TimeoutSeconds: 5}, config.CircuitBreakerConfig{})
	if c.timeout != 5*time.Second {
		t.Fatalf("expected timeout of 5s from config, got %v", c.timeout)
	}
}

// TestNewFallsBackToDefaultTimeout pins the documented default of 30s when
// a caller leaves TimeoutSeconds unset (its zero value).
func TestNewFallsBackToDefaultTimeout(t *testing.T) {
	c := New(config.LLMConfig{Model: "test-model"}, config.CircuitBreakerConfig{})
	if c.timeout != defaultTimeout {
		t.Fatalf("expected default timeout %v, got %v", defaultTimeout, c.timeout)
	}
}
