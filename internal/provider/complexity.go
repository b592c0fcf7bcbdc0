// Copyright 2026 The Mobius Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package provider

import "strings"

// ComplexityScorer rates how demanding a query is, 0.0 (trivial) to 1.0
// (needs the big model). The manager uses it to pick between groq's small
// and large models; alternative heuristics can be swapped in without
// touching the manager.
type ComplexityScorer interface {
	Score(query string) float64
}

// KeywordScorer flags a query as complex when it contains any of a fixed
// keyword list, with a length bonus for long prompts.
type KeywordScorer struct {
	keywords []string
}

// NewKeywordScorer returns the default keyword-based scorer.
func NewKeywordScorer() *KeywordScorer {
	return &KeywordScorer{
		keywords: []string{
			"calculate", "analyze", "analyse", "solve", "compare",
			"explain why", "step by step", "strategy", "forecast",
			"simulate", "optimize", "derive", "prove",
		},
	}
}

// Score implements ComplexityScorer.
func (s *KeywordScorer) Score(query string) float64 {
	lowered := strings.ToLower(query)
	for _, kw := range s.keywords {
		if strings.Contains(lowered, kw) {
			return 1.0
		}
	}
	if len(lowered) > 400 {
		return 0.7
	}
	return 0.2
}
