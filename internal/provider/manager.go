// Copyright 2026 The Mobius Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package provider

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/mobius-labs/mobius/internal/config"
	"github.com/mobius-labs/mobius/internal/ratelimit"
)

// Property keys read from the user store.
const (
	PropProvider = "ai_provider"
	PropModel    = "ai_model"
)

const systemPrompt = "You are Möbius, a concise crypto and DeFi assistant on Telegram. " +
	"Answer clearly, avoid financial advice disclaimers unless asked, and keep replies under 300 words."

// userFacingFailure is returned when every fallback step failed.
const userFacingFailure = "Sorry, all AI providers failed to answer. Please try again later."

// Sentinel errors for the attempt loop.
var (
	errMissingKey  = errors.New("no api key configured")
	errRateLimited = errors.New("rate limited")
)

// PropertyStore is the per-user key-value store the manager reads
// provider preferences and API keys from.
type PropertyStore interface {
	GetUserProperty(ctx context.Context, userID int64, key, def string) string
	SetUserProperty(ctx context.Context, userID int64, key, value string) error
}

// Selection is the outcome of model selection for one query.
type Selection struct {
	Provider string `json:"provider"`
	Model    string `json:"model"`
	APIKey   string `json:"-"`
}

// genParams are the per-vendor generation parameters.
type genParams struct {
	maxTokens   int
	temperature float64
}

var vendorParams = map[string]genParams{
	"groq":      {maxTokens: 1024, temperature: 0.7},
	"openai":    {maxTokens: 1024, temperature: 0.7},
	"gemini":    {maxTokens: 1024, temperature: 0.8},
	"anthropic": {maxTokens: 1024, temperature: 0.6},
}

// Stats counts attempts per provider for the status API.
type Stats struct {
	Attempts  map[string]int `json:"attempts"`
	Successes map[string]int `json:"successes"`
	Failures  map[string]int `json:"failures"`
}

// Manager selects a (provider, model, key) per user and query and runs
// completions with rate limiting and fallback. Its public entry points
// never return an error: failures surface as user-facing strings and are
// only detailed in logs.
type Manager struct {
	cfg       *config.Config
	store     PropertyStore
	limiter   *ratelimit.Limiter
	clients   map[string]Client
	scorer    ComplexityScorer
	estimator *TokenEstimator

	statsMu sync.Mutex
	stats   Stats
}

// NewManager wires the manager with the default vendor clients.
func NewManager(cfg *config.Config, store PropertyStore, limiter *ratelimit.Limiter) *Manager {
	defaults := map[string]struct {
		baseURL string
		timeout time.Duration
	}{
		"groq":      {"https://api.groq.com/openai/v1", 15 * time.Second},
		"openai":    {"https://api.openai.com/v1", 20 * time.Second},
		"gemini":    {"https://generativelanguage.googleapis.com/v1beta", 20 * time.Second},
		"anthropic": {"https://api.anthropic.com", 30 * time.Second},
	}

	clients := make(map[string]Client, len(defaults))
	for name, d := range defaults {
		baseURL := d.baseURL
		if override := cfg.Providers[name].BaseURL; override != "" {
			baseURL = override
		}
		switch name {
		case "gemini":
			clients[name] = NewGeminiClient(baseURL, d.timeout)
		case "anthropic":
			clients[name] = NewAnthropicClient(baseURL, d.timeout)
		default:
			clients[name] = NewOpenAICompatClient(name, baseURL, d.timeout)
		}
	}

	return &Manager{
		cfg:       cfg,
		store:     store,
		limiter:   limiter,
		clients:   clients,
		scorer:    NewKeywordScorer(),
		estimator: NewTokenEstimator(),
		stats: Stats{
			Attempts:  make(map[string]int),
			Successes: make(map[string]int),
			Failures:  make(map[string]int),
		},
	}
}

// SetClient replaces a vendor client. Tests use it to mock vendors.
func (m *Manager) SetClient(name string, client Client) {
	m.clients[name] = client
}

// SetComplexityScorer swaps the complexity heuristic.
func (m *Manager) SetComplexityScorer(scorer ComplexityScorer) {
	m.scorer = scorer
}

// SelectModel resolves the (provider, model, key) to use for a user's
// query. A user without a stored key for their preferred provider is
// forced onto groq with the server key. For groq the complexity scorer
// picks between the small and large model; other providers keep the
// configured model.
func (m *Manager) SelectModel(ctx context.Context, userID int64, query string) Selection {
	provider := m.store.GetUserProperty(ctx, userID, PropProvider, "groq")
	userKey := m.store.GetUserProperty(ctx, userID, provider+"_api_key", "")

	if userKey == "" {
		provider = "groq"
		userKey = m.cfg.ProviderKey("groq")
	}

	model := m.store.GetUserProperty(ctx, userID, PropModel, "")
	if model == "" {
		model = m.cfg.DefaultModel(provider)
	}

	if provider == "groq" {
		if m.scorer.Score(query) >= 0.5 {
			model = groqComplexModel
		} else {
			model = groqSimpleModel
		}
	}

	return Selection{Provider: provider, Model: model, APIKey: userKey}
}

// QueryWithFallback runs the query against the selected model and walks
// the fallback chain on failure or rate limit. It always returns a string
// for the user; when the whole chain is exhausted the string names the
// failure, including a retry hint when rate limits were the cause.
func (m *Manager) QueryWithFallback(ctx context.Context, userID int64, query string) string {
	sel := m.SelectModel(ctx, userID, query)

	attempts := []FallbackStep{{Provider: sel.Provider, Model: sel.Model}}
	tried := map[string]bool{sel.Provider + ":" + sel.Model: true}
	for _, step := range fallbackChains[sel.Provider] {
		k := step.Provider + ":" + step.Model
		if tried[k] {
			continue
		}
		tried[k] = true
		attempts = append(attempts, step)
	}

	estTokens := m.estimator.Estimate(systemPrompt + query)
	rateLimitedWait := time.Duration(0)

	for _, step := range attempts {
		text, err := m.attempt(ctx, userID, sel, step, query, estTokens)
		if err == nil {
			return text
		}
		switch {
		case errors.Is(err, errMissingKey):
			log.Debugf("provider %s skipped: no api key", step.Provider)
		case errors.Is(err, errRateLimited):
			wait := m.limiter.WaitTime(step.Provider, step.Model)
			if rateLimitedWait == 0 || wait < rateLimitedWait {
				rateLimitedWait = wait
			}
			log.Warnf("provider %s/%s rate limited, wait %s", step.Provider, step.Model, wait)
		default:
			log.Warnf("provider %s/%s failed: %v", step.Provider, step.Model, err)
		}
	}

	if rateLimitedWait > 0 {
		secs := int(rateLimitedWait.Seconds())
		if secs < 1 {
			secs = 1
		}
		return fmt.Sprintf("Rate limit reached, please retry in %d seconds.", secs)
	}
	return userFacingFailure
}

// attempt runs one fallback step end to end: key resolution, rate check,
// HTTP call, usage recording.
func (m *Manager) attempt(ctx context.Context, userID int64, sel Selection, step FallbackStep, query string, estTokens int) (string, error) {
	apiKey := m.resolveKey(ctx, userID, sel, step)
	if apiKey == "" {
		return "", errMissingKey
	}

	if !m.limiter.CanMakeRequest(step.Provider, step.Model, estTokens) {
		return "", errRateLimited
	}

	client, ok := m.clients[step.Provider]
	if !ok {
		return "", fmt.Errorf("no client for provider %q", step.Provider)
	}

	params := vendorParams[step.Provider]
	if params.maxTokens == 0 {
		params = genParams{maxTokens: 1024, temperature: 0.7}
	}

	m.countAttempt(step.Provider)
	text, err := client.Complete(ctx, CompletionRequest{
		Model:  step.Model,
		APIKey: apiKey,
		Messages: []Message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: query},
		},
		MaxTokens:   params.maxTokens,
		Temperature: params.temperature,
	})
	if err != nil {
		m.countFailure(step.Provider)
		return "", err
	}

	m.limiter.RecordRequest(step.Provider, step.Model, estTokens+m.estimator.Estimate(text))
	m.countSuccess(step.Provider)
	return text, nil
}

// resolveKey prefers the key already resolved for the primary selection,
// then the user's stored key for the step's provider, then the server key.
func (m *Manager) resolveKey(ctx context.Context, userID int64, sel Selection, step FallbackStep) string {
	if step.Provider == sel.Provider && sel.APIKey != "" {
		return sel.APIKey
	}
	if userKey := m.store.GetUserProperty(ctx, userID, step.Provider+"_api_key", ""); userKey != "" {
		return userKey
	}
	return m.cfg.ProviderKey(step.Provider)
}

func (m *Manager) countAttempt(provider string) {
	m.statsMu.Lock()
	m.stats.Attempts[provider]++
	m.statsMu.Unlock()
}

func (m *Manager) countSuccess(provider string) {
	m.statsMu.Lock()
	m.stats.Successes[provider]++
	m.statsMu.Unlock()
}

func (m *Manager) countFailure(provider string) {
	m.statsMu.Lock()
	m.stats.Failures[provider]++
	m.statsMu.Unlock()
}

// StatsSnapshot returns a copy of the attempt counters.
func (m *Manager) StatsSnapshot() Stats {
	m.statsMu.Lock()
	defer m.statsMu.Unlock()
	out := Stats{
		Attempts:  make(map[string]int, len(m.stats.Attempts)),
		Successes: make(map[string]int, len(m.stats.Successes)),
		Failures:  make(map[string]int, len(m.stats.Failures)),
	}
	for k, v := range m.stats.Attempts {
		out.Attempts[k] = v
	}
	for k, v := range m.stats.Successes {
		out.Successes[k] = v
	}
	for k, v := range m.stats.Failures {
		out.Failures[k] = v
	}
	return out
}
