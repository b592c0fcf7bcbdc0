// Copyright 2026 The Mobius Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package market wraps the CoinGecko simple-price and DeFiLlama protocol
// endpoints used by the /price and /research commands. Both clients are
// consumers only; responses are parsed with gjson and prices carried as
// decimals.
package market

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
)

// coinIDs maps canonical symbols to CoinGecko coin ids.
var coinIDs = map[string]string{
	"BTC": "bitcoin", "ETH": "ethereum", "SOL": "solana", "ADA": "cardano",
	"DOT": "polkadot", "DOGE": "dogecoin", "XRP": "ripple", "BNB": "binancecoin",
	"MATIC": "matic-network", "AVAX": "avalanche-2", "LINK": "chainlink",
	"UNI": "uniswap", "LTC": "litecoin", "ATOM": "cosmos", "USDT": "tether",
	"USDC": "usd-coin", "ARB": "arbitrum", "OP": "optimism",
}

// Quote is one symbol's spot price with 24h change.
type Quote struct {
	Symbol    string          `json:"symbol"`
	PriceUSD  decimal.Decimal `json:"price_usd"`
	Change24h float64         `json:"change_24h"`
}

// ProtocolInfo is a DeFiLlama protocol summary.
type ProtocolInfo struct {
	Name     string          `json:"name"`
	Category string          `json:"category"`
	TVL      decimal.Decimal `json:"tvl"`
	Chain    string          `json:"chain"`
	URL      string          `json:"url"`
}

// Client fetches market data from CoinGecko and DeFiLlama.
type Client struct {
	coingeckoURL string
	defillamaURL string
	http         *http.Client
}

// NewClient creates a market client. Empty URLs select the public
// endpoints; tests pass httptest servers.
func NewClient(coingeckoURL, defillamaURL string) *Client {
	if coingeckoURL == "" {
		coingeckoURL = "https://api.coingecko.com/api/v3"
	}
	if defillamaURL == "" {
		defillamaURL = "https://api.llama.fi"
	}
	return &Client{
		coingeckoURL: strings.TrimSuffix(coingeckoURL, "/"),
		defillamaURL: strings.TrimSuffix(defillamaURL, "/"),
		http:         &http.Client{Timeout: 10 * time.Second},
	}
}

// Price returns the spot quote for a canonical symbol.
func (c *Client) Price(ctx context.Context, symbol string) (Quote, error) {
	symbol = strings.ToUpper(symbol)
	coinID, ok := coinIDs[symbol]
	if !ok {
		return Quote{}, fmt.Errorf("unknown symbol %q", symbol)
	}

	endpoint := fmt.Sprintf("%s/simple/price?ids=%s&vs_currencies=usd&include_24hr_change=true",
		c.coingeckoURL, url.QueryEscape(coinID))
	body, err := c.get(ctx, endpoint)
	if err != nil {
		return Quote{}, err
	}

	price := gjson.GetBytes(body, coinID+".usd")
	if !price.Exists() {
		return Quote{}, fmt.Errorf("no price for %q in response", symbol)
	}
	return Quote{
		Symbol:    symbol,
		PriceUSD:  decimal.NewFromFloat(price.Float()),
		Change24h: gjson.GetBytes(body, coinID+".usd_24h_change").Float(),
	}, nil
}

// Protocol returns the DeFiLlama summary for a protocol slug.
func (c *Client) Protocol(ctx context.Context, slug string) (ProtocolInfo, error) {
	slug = strings.ToLower(strings.TrimSpace(slug))
	if slug == "" {
		return ProtocolInfo{}, fmt.Errorf("empty protocol name")
	}

	body, err := c.get(ctx, c.defillamaURL+"/protocol/"+url.PathEscape(slug))
	if err != nil {
		return ProtocolInfo{}, err
	}

	name := gjson.GetBytes(body, "name")
	if !name.Exists() {
		return ProtocolInfo{}, fmt.Errorf("protocol %q not found", slug)
	}

	// currentChainTvls sums per-chain TVL; fall back to the last point of
	// the tvl series when absent.
	tvl := decimal.Zero
	chainTvls := gjson.GetBytes(body, "currentChainTvls")
	if chainTvls.Exists() {
		chainTvls.ForEach(func(_, value gjson.Result) bool {
			tvl = tvl.Add(decimal.NewFromFloat(value.Float()))
			return true
		})
	}
	if tvl.IsZero() {
		if last := gjson.GetBytes(body, "tvl.@reverse.0.totalLiquidityUSD"); last.Exists() {
			tvl = decimal.NewFromFloat(last.Float())
		}
	}

	return ProtocolInfo{
		Name:     name.String(),
		Category: gjson.GetBytes(body, "category").String(),
		TVL:      tvl,
		Chain:    gjson.GetBytes(body, "chain").String(),
		URL:      gjson.GetBytes(body, "url").String(),
	}, nil
}

// KnownSymbol reports whether a symbol can be priced.
func KnownSymbol(symbol string) bool {
	_, ok := coinIDs[strings.ToUpper(symbol)]
	return ok
}

func (c *Client) get(ctx context.Context, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "mobius-bot")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		if errClose := resp.Body.Close(); errClose != nil {
			log.Errorf("market client: close response body: %v", errClose)
		}
	}()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("market api status %d", resp.StatusCode)
	}
	return body, nil
}
