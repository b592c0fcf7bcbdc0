// Copyright 2026 The Mobius Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package intent

import (
	"strings"

	"github.com/mobius-labs/mobius/internal/entity"
)

// Command is a built-in bot command resolved from a natural-language
// message, with parameters pulled out of the text.
type Command struct {
	Name   string            `json:"name"`
	Params map[string]string `json:"params"`
}

// Map turns a classified intent into a concrete command when the
// confidence clears the intent's threshold. When it does not, Map rescans
// the whole table in order and returns the first entry whose patterns
// match the text structurally, regardless of the originally classified
// intent. That rescan can select a command unrelated to the top-scoring
// intent; it is kept deliberately (see DESIGN.md).
func Map(name, text string, confidence float64) (Command, bool) {
	entry := Lookup(name)
	if entry != nil && entry.Command != "" && confidence >= entry.Threshold {
		return Command{Name: entry.Command, Params: extractParams(entry.Command, text)}, true
	}

	for i := range Table {
		candidate := &Table[i]
		if candidate.Command == "" {
			continue
		}
		if matchesAny(candidate, text) {
			return Command{Name: candidate.Command, Params: extractParams(candidate.Command, text)}, true
		}
	}
	return Command{}, false
}

func matchesAny(p *Pattern, text string) bool {
	lowered := strings.ToLower(text)
	for _, re := range p.Regexes {
		if re.MatchString(lowered) {
			return true
		}
	}
	return false
}

// extractParams pulls command arguments out of the text using the entity
// extractors. Which parameters a command wants is fixed per command.
func extractParams(command, text string) map[string]string {
	params := make(map[string]string)
	entities := entity.Extract(text)

	switch command {
	case "price", "portfolio":
		if symbol, ok := entities.First(entity.TypeCryptocurrency); ok {
			params["symbol"] = symbol.Value
		}
	case "alert":
		if symbol, ok := entities.First(entity.TypeCryptocurrency); ok {
			params["symbol"] = symbol.Value
		}
		if price, ok := entities.First(entity.TypePrice); ok {
			params["price"] = price.Value
		}
	case "research":
		if protocol, ok := entities.First(entity.TypeProtocol); ok {
			params["protocol"] = protocol.Value
		} else if symbol, ok := entities.First(entity.TypeCryptocurrency); ok {
			params["protocol"] = strings.ToLower(symbol.Value)
		}
	}
	return params
}
