// Copyright 2026 The Mobius Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package entity extracts structured values from free-text crypto chat
// messages: coin symbols, wallet addresses, money amounts, percentages,
// timeframes, and protocol names. Extraction is a set of independent regex
// passes over the raw text; a miss produces an empty list, never an error.
package entity

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// Type identifies the kind of an extracted entity.
type Type string

const (
	TypeCryptocurrency Type = "cryptocurrency"
	TypeWalletAddress  Type = "wallet_address"
	TypePrice          Type = "price"
	TypePercentage     Type = "percentage"
	TypeTimeframe      Type = "timeframe"
	TypeProtocol       Type = "protocol"
)

// Entity is a single value extracted from a message.
type Entity struct {
	Type       Type    `json:"type"`
	Value      string  `json:"value"`
	Confidence float64 `json:"confidence"`
}

// Entities groups extracted values by type.
type Entities map[Type][]Entity

// Symbols returns the extracted cryptocurrency symbols, canonical form.
func (e Entities) Symbols() []string {
	out := make([]string, 0, len(e[TypeCryptocurrency]))
	for _, ent := range e[TypeCryptocurrency] {
		out = append(out, ent.Value)
	}
	return out
}

// First returns the first entity of the given type, if any.
func (e Entities) First(t Type) (Entity, bool) {
	if list := e[t]; len(list) > 0 {
		return list[0], true
	}
	return Entity{}, false
}

// symbolAliases resolves spelled-out coin names and tickers to canonical
// symbols. A dictionary hit always wins over a raw ticker capture.
var symbolAliases = map[string]string{
	"btc": "BTC", "bitcoin": "BTC", "xbt": "BTC",
	"eth": "ETH", "ethereum": "ETH", "ether": "ETH",
	"sol": "SOL", "solana": "SOL",
	"ada": "ADA", "cardano": "ADA",
	"dot": "DOT", "polkadot": "DOT",
	"doge": "DOGE", "dogecoin": "DOGE",
	"xrp": "XRP", "ripple": "XRP",
	"bnb": "BNB",
	"matic": "MATIC", "polygon": "MATIC",
	"avax": "AVAX", "avalanche": "AVAX",
	"link": "LINK", "chainlink": "LINK",
	"uni": "UNI", "uniswap": "UNI",
	"ltc": "LTC", "litecoin": "LTC",
	"atom": "ATOM", "cosmos": "ATOM",
	"usdt": "USDT", "tether": "USDT",
	"usdc": "USDC",
	"arb":  "ARB", "arbitrum": "ARB",
	"op": "OP", "optimism": "OP",
}

// protocolNames are DeFi protocols recognized for research queries.
var protocolNames = map[string]string{
	"uniswap": "uniswap", "aave": "aave", "compound": "compound",
	"curve": "curve", "lido": "lido", "makerdao": "makerdao",
	"maker": "makerdao", "sushiswap": "sushiswap", "pancakeswap": "pancakeswap",
	"gmx": "gmx", "dydx": "dydx", "morpho": "morpho",
	"pendle": "pendle", "eigenlayer": "eigenlayer",
}

var (
	wordRe       = regexp.MustCompile(`[a-zA-Z]+`)
	tickerRe     = regexp.MustCompile(`\b[A-Z]{2,6}\b`)
	ethAddressRe = regexp.MustCompile(`\b0x[0-9a-fA-F]{40}\b`)
	amountRe     = regexp.MustCompile(`\$\s?\d+(?:,\d{3})*(?:\.\d+)?[kKmMbB]?|\b\d+(?:,\d{3})*(?:\.\d+)?\s?(?:usd|dollars?)\b`)
	bareAmountRe = regexp.MustCompile(`\b\d+(?:,\d{3})*(?:\.\d+)?\b`)
	// bareUnitRe marks a bare number as a timeframe or percentage, which
	// the other passes own.
	bareUnitRe   = regexp.MustCompile(`^\s?(?:%|(?:min(?:ute)?s?|hours?|days?|weeks?|months?|years?|m|h|d|w|y)\b)`)
	percentageRe = regexp.MustCompile(`\d+(?:\.\d+)?\s?%`)
	timeframeRe  = regexp.MustCompile(`(?i)\b(\d+\s?(?:m|h|d|w|y)|\d+\s?(?:min(?:ute)?s?|hours?|days?|weeks?|months?|years?)|today|yesterday|last\s+(?:week|month|year))\b`)
)

// Extract runs every extractor pass over text and returns the combined
// entity map. Empty text yields an empty map.
func Extract(text string) Entities {
	out := make(Entities)
	if strings.TrimSpace(text) == "" {
		return out
	}

	for _, ent := range extractSymbols(text) {
		out[TypeCryptocurrency] = append(out[TypeCryptocurrency], ent)
	}
	for _, addr := range ethAddressRe.FindAllString(text, -1) {
		out[TypeWalletAddress] = append(out[TypeWalletAddress], Entity{Type: TypeWalletAddress, Value: addr, Confidence: 0.95})
	}
	for _, ent := range extractAmounts(text) {
		out[TypePrice] = append(out[TypePrice], ent)
	}
	for _, raw := range percentageRe.FindAllString(text, -1) {
		out[TypePercentage] = append(out[TypePercentage], Entity{Type: TypePercentage, Value: strings.ReplaceAll(raw, " ", ""), Confidence: 0.9})
	}
	for _, raw := range timeframeRe.FindAllString(text, -1) {
		out[TypeTimeframe] = append(out[TypeTimeframe], Entity{Type: TypeTimeframe, Value: strings.ToLower(raw), Confidence: 0.8})
	}
	for _, ent := range extractProtocols(text) {
		out[TypeProtocol] = append(out[TypeProtocol], ent)
	}
	return out
}

// extractSymbols resolves coin mentions via the alias dictionary first and
// falls back to uppercase ticker captures. Dictionary hits carry higher
// confidence and suppress a duplicate raw capture of the same symbol.
func extractSymbols(text string) []Entity {
	seen := make(map[string]bool)
	var out []Entity

	lower := strings.ToLower(text)
	for _, token := range wordRe.FindAllString(lower, -1) {
		if canonical, ok := symbolAliases[token]; ok && !seen[canonical] {
			seen[canonical] = true
			out = append(out, Entity{Type: TypeCryptocurrency, Value: canonical, Confidence: 0.95})
		}
	}
	// Raw uppercase ticker captures rank below dictionary hits and are
	// skipped entirely when the dictionary already resolved the symbol.
	for _, ticker := range tickerRe.FindAllString(text, -1) {
		if tickerStopwords[ticker] {
			continue
		}
		value := ticker
		confidence := 0.6
		if canonical, known := symbolAliases[strings.ToLower(ticker)]; known {
			value = canonical
			confidence = 0.85
		}
		if !seen[value] {
			seen[value] = true
			out = append(out, Entity{Type: TypeCryptocurrency, Value: value, Confidence: confidence})
		}
	}
	return out
}

// tickerStopwords are uppercase words that show up in shouty chat messages
// but are never coin symbols.
var tickerStopwords = map[string]bool{
	"THE": true, "AND": true, "FOR": true, "NOW": true, "WHAT": true,
	"WHEN": true, "WHY": true, "HOW": true, "USD": true, "API": true,
	"DEFI": true, "TVL": true, "ASAP": true, "OK": true, "LOL": true,
}

// extractAmounts captures money amounts in three forms: $-prefixed,
// usd/dollar-suffixed, and bare decimals ("hits 3000"). Bare numbers that
// lead into a timeframe unit or percent sign are skipped, as are spans the
// explicit forms already captured; bare captures carry lower confidence.
func extractAmounts(text string) []Entity {
	var out []Entity
	explicit := amountRe.FindAllStringIndex(text, -1)
	for _, span := range explicit {
		out = append(out, Entity{Type: TypePrice, Value: normalizeAmount(text[span[0]:span[1]]), Confidence: 0.9})
	}
	for _, span := range bareAmountRe.FindAllStringIndex(text, -1) {
		if overlapsAny(span, explicit) || bareUnitRe.MatchString(text[span[1]:]) {
			continue
		}
		out = append(out, Entity{Type: TypePrice, Value: normalizeAmount(text[span[0]:span[1]]), Confidence: 0.7})
	}
	return out
}

func overlapsAny(span []int, spans [][]int) bool {
	for _, s := range spans {
		if span[0] < s[1] && s[0] < span[1] {
			return true
		}
	}
	return false
}

func extractProtocols(text string) []Entity {
	lower := strings.ToLower(text)
	seen := make(map[string]bool)
	var out []Entity
	for name, canonical := range protocolNames {
		if strings.Contains(lower, name) && !seen[canonical] {
			seen[canonical] = true
			out = append(out, Entity{Type: TypeProtocol, Value: canonical, Confidence: 0.85})
		}
	}
	return out
}

// normalizeAmount strips formatting from a money capture and expands k/m/b
// suffixes, keeping the leading $ when present.
func normalizeAmount(raw string) string {
	trimmed := strings.TrimSpace(raw)
	prefix := ""
	if strings.HasPrefix(trimmed, "$") {
		prefix = "$"
		trimmed = strings.TrimSpace(strings.TrimPrefix(trimmed, "$"))
	}
	trimmed = strings.ToLower(trimmed)
	for _, suffix := range []string{"usd", "dollars", "dollar"} {
		trimmed = strings.TrimSpace(strings.TrimSuffix(trimmed, suffix))
	}
	trimmed = strings.ReplaceAll(trimmed, ",", "")

	multiplier := decimal.NewFromInt(1)
	switch {
	case strings.HasSuffix(trimmed, "k"):
		multiplier = decimal.NewFromInt(1_000)
		trimmed = strings.TrimSuffix(trimmed, "k")
	case strings.HasSuffix(trimmed, "m"):
		multiplier = decimal.NewFromInt(1_000_000)
		trimmed = strings.TrimSuffix(trimmed, "m")
	case strings.HasSuffix(trimmed, "b"):
		multiplier = decimal.NewFromInt(1_000_000_000)
		trimmed = strings.TrimSuffix(trimmed, "b")
	}

	value, err := decimal.NewFromString(strings.TrimSpace(trimmed))
	if err != nil {
		return prefix + strings.TrimSpace(trimmed)
	}
	return prefix + value.Mul(multiplier).String()
}
