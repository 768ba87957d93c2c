package factory

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iWorld-y/industry_radar/app/industry_radar/pkg/config"
	"github.com/iWorld-y/industry_radar/app/industry_radar/pkg/scoring"
)

func TestNewBackend_Chain(t *testing.T) {
	healthy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer healthy.Close()

	unhealthy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer unhealthy.Close()

	tests := []struct {
		name     string
		backends []string
		baseURL  string
		llmKey   string
		want     string
	}{
		{name: "default chain without collaborators falls to rules", backends: config.Default().Scoring.Backends, want: "rules"},
		{name: "healthy inference wins", backends: []string{"inference", "rules"}, baseURL: healthy.URL, want: "inference"},
		{name: "unhealthy inference skipped", backends: []string{"inference", "neutral"}, baseURL: unhealthy.URL, want: "neutral"},
		{name: "configured llm wins", backends: []string{"llm", "rules"}, llmKey: "sk-test", want: "llm"},
		{name: "exhausted chain degrades to neutral", backends: []string{"inference", "llm"}, want: "neutral"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			cfg.Scoring.Backends = tt.backends
			cfg.Scoring.Inference.BaseURL = tt.baseURL
			if tt.llmKey != "" {
				cfg.Scoring.LLM.APIKey = tt.llmKey
				cfg.Scoring.LLM.Model = "gpt-4o-mini"
				cfg.Scoring.LLM.BaseURL = "http://127.0.0.1:1/v1"
			}

			b, err := NewBackend(context.Background(), cfg)
			require.NoError(t, err)
			assert.Equal(t, tt.want, b.Name())
		})
	}
}

func TestNewBackend_UnknownName(t *testing.T) {
	cfg := config.Default()
	cfg.Scoring.Backends = []string{"rules", "oracle"}
	b, err := NewBackend(context.Background(), cfg)
	require.NoError(t, err, "resolution stops at the first available backend")
	assert.Equal(t, "rules", b.Name())

	cfg.Scoring.Backends = []string{"oracle", "rules"}
	_, err = NewBackend(context.Background(), cfg)
	assert.ErrorIs(t, err, errUnknownBackend)
}

func TestNewGuard(t *testing.T) {
	cfg := config.Default()
	cfg.Scoring.Backends = []string{"neutral"}
	cfg.Scoring.CallTimeout = time.Second

	g, b, err := NewGuard(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, scoring.Neutral{}, b)
	assert.Equal(t, scoring.Opportunity{Score: 0, Confidence: 0.5}, g.ScoreOpportunity(context.Background(), "anything"))
}
