// Copyright 2026 The Mobius Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package router decides, per inbound message, whether the bot responds
// and through which strategy: a built-in command, a canned template, an
// LLM call, or silence. The decision is a pure function of the message
// plus the classifier output; Analyze always produces an Analysis and
// never panics out to the Telegram layer.
package router

import (
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/mobius-labs/mobius/internal/entity"
	"github.com/mobius-labs/mobius/internal/intent"
)

// Strategy is how a message will be handled.
type Strategy string

const (
	StrategyBuiltIn Strategy = "built_in"
	StrategyDirect  Strategy = "direct_response"
	StrategyAI      Strategy = "ai_response"
	StrategySilent  Strategy = "silent"
)

// ChatType mirrors Telegram chat types relevant to routing.
type ChatType string

const (
	ChatPrivate    ChatType = "private"
	ChatGroup      ChatType = "group"
	ChatSupergroup ChatType = "supergroup"
)

// Message is the routing-relevant slice of a Telegram update.
type Message struct {
	Text         string
	ChatType     ChatType
	UserID       int64
	ChatID       int64
	IsMentioned  bool
	IsReplyToBot bool
}

// Analysis is the router's verdict for one message. It is created once
// per inbound message and consumed immediately; nothing is persisted.
type Analysis struct {
	Intent        string          `json:"intent"`
	Strategy      Strategy        `json:"strategy"`
	Confidence    float64         `json:"confidence"`
	ShouldRespond bool            `json:"should_respond"`
	Entities      entity.Entities `json:"entities"`
	Urgency       float64         `json:"urgency"`
	// Command is set when Strategy is built_in.
	Command *intent.Command `json:"command,omitempty"`
	// Template is set when Strategy is direct_response.
	Template string `json:"template,omitempty"`
}

// directTemplates are the canned replies for high-confidence greetings
// and casual closers.
var directTemplates = map[string]string{
	"greeting": "Hey! I'm Möbius. Ask me about crypto prices, protocols, or your portfolio — or /help for commands.",
	"casual":   "Anytime! 🤖",
	"status":   "All systems operational.",
}

// directThreshold gates template replies; anything less confident goes to
// the LLM instead.
const directThreshold = 0.85

// urgencyKeywords bump the urgency score; used for logging/prioritization
// only, not for routing decisions.
var urgencyKeywords = []string{"urgent", "asap", "now", "immediately", "quick", "hurry", "liquidat"}

// Analyze routes one message. Any internal panic degrades to the AI
// strategy with a generic fallback rather than propagating.
func Analyze(msg Message) (analysis Analysis) {
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("router: classification panic, degrading to AI: %v", r)
			analysis = Analysis{
				Intent:        intent.GeneralQuery,
				Strategy:      StrategyAI,
				Confidence:    0,
				ShouldRespond: true,
				Entities:      entity.Entities{},
			}
		}
	}()

	text := strings.TrimSpace(msg.Text)

	// Slash commands bypass classification entirely.
	if strings.HasPrefix(text, "/") {
		name, params := parseSlashCommand(text)
		return Analysis{
			Intent:        name,
			Strategy:      StrategyBuiltIn,
			Confidence:    1.0,
			ShouldRespond: true,
			Entities:      entity.Extract(text),
			Command:       &intent.Command{Name: name, Params: params},
		}
	}

	entities := entity.Extract(text)
	result := intent.Classify(text)
	urgency := urgencyScore(text, entities)

	// Natural-language built-in: confidence above the intent's threshold
	// and the intent maps to a command.
	if cmd, ok := mapBuiltIn(result, text); ok {
		return Analysis{
			Intent:        result.Name,
			Strategy:      StrategyBuiltIn,
			Confidence:    result.Confidence,
			ShouldRespond: true,
			Entities:      entities,
			Urgency:       urgency,
			Command:       &cmd,
		}
	}

	// Group gate: without a mention or a reply to the bot, group messages
	// are stored for context but never answered. Checked before any AI
	// routing.
	if (msg.ChatType == ChatGroup || msg.ChatType == ChatSupergroup) && !msg.IsMentioned && !msg.IsReplyToBot {
		return Analysis{
			Intent:        result.Name,
			Strategy:      StrategySilent,
			Confidence:    result.Confidence,
			ShouldRespond: false,
			Entities:      entities,
			Urgency:       urgency,
		}
	}

	if template, ok := directTemplates[result.Name]; ok && result.Confidence >= directThreshold {
		return Analysis{
			Intent:        result.Name,
			Strategy:      StrategyDirect,
			Confidence:    result.Confidence,
			ShouldRespond: true,
			Entities:      entities,
			Urgency:       urgency,
			Template:      template,
		}
	}

	return Analysis{
		Intent:        result.Name,
		Strategy:      StrategyAI,
		Confidence:    result.Confidence,
		ShouldRespond: true,
		Entities:      entities,
		Urgency:       urgency,
	}
}

// mapBuiltIn maps a classified intent to a command only on the direct,
// above-threshold path. The mapper's permissive rescan is reserved for
// explicit low-confidence mapping calls, not the router hot path.
func mapBuiltIn(result intent.Result, text string) (intent.Command, bool) {
	entry := intent.Lookup(result.Name)
	if entry == nil || entry.Command == "" || result.Confidence < entry.Threshold {
		return intent.Command{}, false
	}
	return intent.Map(result.Name, text, result.Confidence)
}

// parseSlashCommand splits "/price BTC" into the command name and its
// whitespace-separated arguments. "@botname" suffixes are stripped.
func parseSlashCommand(text string) (string, map[string]string) {
	fields := strings.Fields(text)
	name := strings.TrimPrefix(fields[0], "/")
	if at := strings.Index(name, "@"); at >= 0 {
		name = name[:at]
	}
	params := make(map[string]string)
	if len(fields) > 1 {
		params["args"] = strings.Join(fields[1:], " ")
	}
	return strings.ToLower(name), params
}

func urgencyScore(text string, entities entity.Entities) float64 {
	lowered := strings.ToLower(text)
	score := 0.0
	for _, kw := range urgencyKeywords {
		if strings.Contains(lowered, kw) {
			score += 0.3
		}
	}
	if _, ok := entities.First(entity.TypePrice); ok {
		score += 0.1
	}
	if strings.Contains(text, "!") {
		score += 0.1
	}
	if score > 1 {
		score = 1
	}
	return score
}
