// Copyright 2026 The Mobius Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package provider

import (
	"strings"
	"sync"

	"github.com/tiktoken-go/tokenizer"
)

// TokenEstimator counts tokens for rate-limit checks. It uses the
// cl100k_base encoding when available and falls back to a words*1.3
// approximation; rate limiting only needs the right order of magnitude.
type TokenEstimator struct {
	once  sync.Once
	codec tokenizer.Codec
}

// NewTokenEstimator creates a TokenEstimator.
func NewTokenEstimator() *TokenEstimator {
	return &TokenEstimator{}
}

// Estimate returns the estimated token count for text.
func (te *TokenEstimator) Estimate(text string) int {
	if text == "" {
		return 0
	}
	te.once.Do(func() {
		codec, err := tokenizer.Get(tokenizer.Cl100kBase)
		if err == nil {
			te.codec = codec
		}
	})
	if te.codec != nil {
		if ids, _, err := te.codec.Encode(text); err == nil {
			return len(ids)
		}
	}
	// Most tokenizers produce ~1.3 tokens per word on average.
	return int(float64(len(strings.Fields(text))) * 1.3)
}
