// Copyright 2026 The Mobius Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package intent classifies free-text chat messages against an ordered
// table of regex patterns and maps recognized intents to bot commands with
// extracted parameters. The table is data-driven: classification and
// mapping are pure functions over it, so both are testable without I/O.
package intent

import "regexp"

// Pattern is one entry of the classification table. Entries are evaluated
// in declaration order; earlier entries win confidence ties.
type Pattern struct {
	// Name is the intent label, e.g. "price".
	Name string
	// Regexes are tried in order against the lowercased text.
	Regexes []*regexp.Regexp
	// Boost is added to the span/length base score on a match.
	Boost float64
	// Threshold is the minimum confidence the mapper requires before it
	// turns this intent into a command.
	Threshold float64
	// Command is the bot command this intent maps to; empty means the
	// intent never maps to a built-in (it routes to templates or the LLM).
	Command string
	// Examples document representative phrasings; they are exercised by
	// the classifier tests.
	Examples []string
}

// Table is the ordered intent pattern table, loaded once at startup.
// Order matters: the classifier breaks confidence ties by position and the
// mapper's below-threshold fallback scans entries top to bottom.
var Table = []Pattern{
	{
		Name: "greeting",
		Regexes: []*regexp.Regexp{
			regexp.MustCompile(`^\s*(hi|hello|hey|yo|gm|good\s*(morning|afternoon|evening))\s*[!.]*\s*$`),
			regexp.MustCompile(`\b(hi|hello|hey)\s+(mobius|bot)\b`),
		},
		Boost:     0.2,
		Threshold: 0.8,
		Examples:  []string{"hi", "hello!", "gm", "hey mobius"},
	},
	{
		Name: "help",
		Regexes: []*regexp.Regexp{
			regexp.MustCompile(`^\s*help\s*$`),
			regexp.MustCompile(`\bwhat can you do\b`),
			regexp.MustCompile(`\b(show|list)\s+(me\s+)?(the\s+)?commands\b`),
			regexp.MustCompile(`\bhow do i use\b`),
		},
		Boost:     0.2,
		Threshold: 0.8,
		Command:   "help",
		Examples:  []string{"help", "what can you do", "show me the commands"},
	},
	{
		Name: "price",
		Regexes: []*regexp.Regexp{
			regexp.MustCompile(`\b\w+\s+price\b`),
			regexp.MustCompile(`\bprice\s+(of\s+|for\s+)?\$?\w+`),
			regexp.MustCompile(`\bhow much is\s+\$?\w+`),
			regexp.MustCompile(`\b(current|latest)\s+price\b`),
			regexp.MustCompile(`\bworth\s+(right\s+)?now\b`),
		},
		Boost:     0.25,
		Threshold: 0.7,
		Command:   "price",
		Examples:  []string{"BTC price", "price of ethereum", "how much is SOL"},
	},
	{
		Name: "alert",
		Regexes: []*regexp.Regexp{
			regexp.MustCompile(`\balert\s+me\b`),
			regexp.MustCompile(`\b(notify|tell|ping)\s+me\s+(when|if)\b`),
			regexp.MustCompile(`\blet me know\s+(when|if)\b`),
			regexp.MustCompile(`\b(set|create)\s+(an?\s+)?alert\b`),
			regexp.MustCompile(`\b\w+\s+(hits|reaches|crosses|drops\s+(below|to))\s+\$?\d`),
		},
		Boost:     0.25,
		Threshold: 0.7,
		Command:   "alert",
		Examples:  []string{"Alert me when ETH hits $3000", "set an alert for BTC at $100k"},
	},
	{
		Name: "portfolio",
		Regexes: []*regexp.Regexp{
			regexp.MustCompile(`\b(my|show)\s+(crypto\s+)?portfolio\b`),
			regexp.MustCompile(`\bmy\s+(holdings|balances?|bags)\b`),
			regexp.MustCompile(`\bhow are my (coins|tokens) doing\b`),
		},
		Boost:     0.2,
		Threshold: 0.75,
		Command:   "portfolio",
		Examples:  []string{"show my portfolio", "my holdings"},
	},
	{
		Name: "research",
		Regexes: []*regexp.Regexp{
			regexp.MustCompile(`\bresearch\s+\w+`),
			regexp.MustCompile(`\b(tvl|total value locked)\s+(of|for|on)\s+\w+`),
			regexp.MustCompile(`\btell me about\s+(the\s+)?\w+\s+protocol\b`),
			regexp.MustCompile(`\bis\s+\w+\s+safe\b`),
		},
		Boost:     0.2,
		Threshold: 0.7,
		Command:   "research",
		Examples:  []string{"research aave", "tvl of lido"},
	},
	{
		Name: "summary",
		Regexes: []*regexp.Regexp{
			regexp.MustCompile(`\bsummar(y|ize|ise)\b.*\b(chat|conversation|messages)\b`),
			regexp.MustCompile(`\bwhat did i miss\b`),
			regexp.MustCompile(`\bcatch me up\b`),
		},
		Boost:     0.2,
		Threshold: 0.75,
		Command:   "summarynow",
		Examples:  []string{"summarize the chat", "what did I miss"},
	},
	{
		Name: "status",
		Regexes: []*regexp.Regexp{
			regexp.MustCompile(`^\s*status\s*$`),
			regexp.MustCompile(`\b(are you|bot)\s+(ok|up|alive|online)\b`),
		},
		Boost:     0.2,
		Threshold: 0.8,
		Command:   "status",
		Examples:  []string{"status", "are you up"},
	},
	{
		Name: "casual",
		Regexes: []*regexp.Regexp{
			regexp.MustCompile(`^\s*(thanks|thank you|thx|ty|cool|nice|ok|okay|lol|haha)\s*[!.]*\s*$`),
			regexp.MustCompile(`^\s*(bye|goodbye|good\s*night|gn|cya|see ya)\s*[!.]*\s*$`),
		},
		Boost:     0.2,
		Threshold: 0.8,
		Examples:  []string{"thanks", "lol", "gn"},
	},
	{
		Name: "question",
		Regexes: []*regexp.Regexp{
			regexp.MustCompile(`\b(what|why|how|when|where|who|which|should|could|would|can|is|are|does|do)\b.*\?`),
			regexp.MustCompile(`\?\s*$`),
		},
		Boost:     0.1,
		Threshold: 0.9,
		Examples:  []string{"what is staking?", "should I buy the dip?"},
	},
}

// GeneralQuery is the sentinel intent returned when nothing matches.
const GeneralQuery = "general_query"

// lookup maps intent names to their table entries.
var lookup = func() map[string]*Pattern {
	m := make(map[string]*Pattern, len(Table))
	for i := range Table {
		m[Table[i].Name] = &Table[i]
	}
	return m
}()

// Lookup returns the table entry for an intent name, or nil.
func Lookup(name string) *Pattern {
	return lookup[name]
}
