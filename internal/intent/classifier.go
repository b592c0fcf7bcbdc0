// Copyright 2026 The Mobius Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package intent

import "strings"

// Result is a classification outcome.
type Result struct {
	Name       string  `json:"name"`
	Confidence float64 `json:"confidence"`
}

// Classify scores text against the pattern table and returns the intent
// with the highest confidence. Confidence is the length of the matched
// span relative to the text plus the intent's fixed boost, clamped to
// [0, 1]. Ties keep the earlier table entry. Text that matches nothing
// returns the general-query sentinel with confidence 0. Classify never
// fails; empty or whitespace-only input short-circuits before any regex
// runs.
func Classify(text string) Result {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return Result{Name: GeneralQuery, Confidence: 0}
	}

	lowered := strings.ToLower(trimmed)
	best := Result{Name: GeneralQuery, Confidence: 0}

	for i := range Table {
		entry := &Table[i]
		for _, re := range entry.Regexes {
			loc := re.FindStringIndex(lowered)
			if loc == nil {
				continue
			}
			confidence := clamp(float64(loc[1]-loc[0])/float64(len(lowered)) + entry.Boost)
			if confidence > best.Confidence {
				best = Result{Name: entry.Name, Confidence: confidence}
			}
			// First matching regex decides this intent's score.
			break
		}
	}
	return best
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
