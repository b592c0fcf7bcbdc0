// Copyright 2026 The Mobius Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package provider selects an LLM vendor and model for a query, enforces
// per-model rate limits, and walks a deterministic fallback chain when a
// call fails or is limited. Vendors are addressed through a uniform Client
// interface so the fallback walker stays generic.
package provider

import "github.com/mobius-labs/mobius/internal/ratelimit"

// ModelConfig is the static description of one (provider, model) pair.
type ModelConfig struct {
	Provider          string `json:"provider"`
	Name              string `json:"name"`
	RequestsPerMinute int    `json:"requests_per_minute"`
	TokensPerMinute   int    `json:"tokens_per_minute"`
	RequestsPerDay    int    `json:"requests_per_day"`
	ContextLimit      int    `json:"context_limit"`
	IsFallback        bool   `json:"is_fallback"`
}

// Models is the static model table, loaded once. Limits follow each
// vendor's free-tier numbers; they gate our own call rate, the vendor
// still has the final word.
var Models = []ModelConfig{
	{Provider: "groq", Name: "llama-3.1-8b-instant", RequestsPerMinute: 30, TokensPerMinute: 6000, RequestsPerDay: 14400, ContextLimit: 131072},
	{Provider: "groq", Name: "llama-3.3-70b-versatile", RequestsPerMinute: 30, TokensPerMinute: 6000, RequestsPerDay: 1000, ContextLimit: 131072},
	{Provider: "gemini", Name: "gemini-2.0-flash", RequestsPerMinute: 15, TokensPerMinute: 1000000, RequestsPerDay: 1500, ContextLimit: 1048576},
	{Provider: "gemini", Name: "gemini-1.5-flash", RequestsPerMinute: 15, TokensPerMinute: 1000000, RequestsPerDay: 1500, ContextLimit: 1048576, IsFallback: true},
	{Provider: "gemini", Name: "gemini-1.5-flash-8b", RequestsPerMinute: 15, TokensPerMinute: 1000000, RequestsPerDay: 1500, ContextLimit: 1048576, IsFallback: true},
	{Provider: "openai", Name: "gpt-4o-mini", RequestsPerMinute: 500, TokensPerMinute: 200000, RequestsPerDay: 10000, ContextLimit: 128000},
	{Provider: "anthropic", Name: "claude-3-5-haiku-latest", RequestsPerMinute: 50, TokensPerMinute: 50000, RequestsPerDay: 1000, ContextLimit: 200000},
}

// Groq model names used by the complexity-based switch.
const (
	groqSimpleModel  = "llama-3.1-8b-instant"
	groqComplexModel = "llama-3.3-70b-versatile"
)

// FallbackStep is one entry of a provider's fallback chain.
type FallbackStep struct {
	Provider string `json:"provider"`
	Model    string `json:"model"`
}

// fallbackChains is the fixed, data-driven fallback order per primary
// provider, consulted top to bottom after the configured model fails.
// Gemini first downgrades through its smaller models; every non-groq
// chain ends at groq's simple model on the server key.
var fallbackChains = map[string][]FallbackStep{
	"gemini": {
		{Provider: "gemini", Model: "gemini-1.5-flash"},
		{Provider: "gemini", Model: "gemini-1.5-flash-8b"},
		{Provider: "groq", Model: groqSimpleModel},
	},
	"openai": {
		{Provider: "groq", Model: groqSimpleModel},
	},
	"anthropic": {
		{Provider: "groq", Model: groqSimpleModel},
	},
	"groq": {},
}

// LimitTable converts the model table into the limiter's format.
func LimitTable() map[string]ratelimit.Limits {
	out := make(map[string]ratelimit.Limits, len(Models))
	for _, m := range Models {
		out[m.Provider+":"+m.Name] = ratelimit.Limits{
			RequestsPerMinute: m.RequestsPerMinute,
			TokensPerMinute:   m.TokensPerMinute,
			RequestsPerDay:    m.RequestsPerDay,
		}
	}
	return out
}

// LookupModel returns the table entry for a (provider, model) pair.
func LookupModel(provider, model string) (ModelConfig, bool) {
	for _, m := range Models {
		if m.Provider == provider && m.Name == model {
			return m, true
		}
	}
	return ModelConfig{}, false
}
