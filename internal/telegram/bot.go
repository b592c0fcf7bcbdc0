// Copyright 2026 The Mobius Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package telegram wires the bot to the Telegram update stream. Each
// update is routed through the message router and dispatched to a
// built-in handler, a canned template, or the LLM provider manager.
// Outbound sends go through a global and a per-user rate limiter to stay
// under Telegram's flood limits.
package telegram

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/mobius-labs/mobius/internal/alert"
	"github.com/mobius-labs/mobius/internal/config"
	"github.com/mobius-labs/mobius/internal/market"
	"github.com/mobius-labs/mobius/internal/provider"
	"github.com/mobius-labs/mobius/internal/router"
	"github.com/mobius-labs/mobius/internal/store"
)

const helpText = `I'm Möbius, your crypto assistant. Commands:
/price <symbol> — spot price and 24h change
/portfolio — your tracked holdings
/alert <symbol> <price> — ping you when a price level is hit
/research <protocol> — DeFi protocol TVL and info
/summarynow — summarize recent chat activity
/status — bot status
Anything else, just ask in plain language.`

// contextWindow is how many recent messages per chat feed /summarynow.
const contextWindow = 50

// Bot runs the Telegram update loop.
type Bot struct {
	api     *tgbotapi.BotAPI
	cfg     *config.Config
	store   *store.Store
	manager *provider.Manager
	market  *market.Client
	started time.Time

	// Telegram allows ~30 msg/s overall and 1 msg/s per chat.
	globalLimiter  *rate.Limiter
	userLimiters   map[int64]*rate.Limiter
	userLimitersMu sync.Mutex

	// Recent messages per chat, for summaries and group context.
	contextMu   sync.Mutex
	chatContext map[int64][]string
}

// NewBot authenticates against the Telegram API and builds the bot.
func NewBot(cfg *config.Config, st *store.Store, manager *provider.Manager, mkt *market.Client) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(cfg.Telegram.Token)
	if err != nil {
		return nil, fmt.Errorf("telegram auth: %w", err)
	}
	log.Infof("authorized as @%s", api.Self.UserName)

	return &Bot{
		api:           api,
		cfg:           cfg,
		store:         st,
		manager:       manager,
		market:        mkt,
		started:       time.Now(),
		globalLimiter: rate.NewLimiter(rate.Limit(30), 30),
		userLimiters:  make(map[int64]*rate.Limiter),
		chatContext:   make(map[int64][]string),
	}, nil
}

// Run consumes updates until ctx is cancelled.
func (b *Bot) Run(ctx context.Context) {
	updateCfg := tgbotapi.NewUpdate(0)
	updateCfg.Timeout = b.cfg.Telegram.UpdateTimeout
	updates := b.api.GetUpdatesChan(updateCfg)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			if update.Message == nil || update.Message.Text == "" {
				continue
			}
			go b.handleMessage(ctx, update.Message)
		}
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	reqID := uuid.NewString()[:8]
	logger := log.WithField("request_id", reqID)

	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("handler panic: %v", r)
		}
	}()

	b.rememberContext(msg.Chat.ID, msg.From.UserName, msg.Text)

	routed := router.Analyze(router.Message{
		Text:         msg.Text,
		ChatType:     ChatType(msg.Chat),
		UserID:       msg.From.ID,
		ChatID:       msg.Chat.ID,
		IsMentioned:  b.isMentioned(msg),
		IsReplyToBot: b.isReplyToBot(msg),
	})

	logger.Debugf("routed intent=%s strategy=%s confidence=%.2f respond=%t",
		routed.Intent, routed.Strategy, routed.Confidence, routed.ShouldRespond)

	if !routed.ShouldRespond {
		return
	}

	switch routed.Strategy {
	case router.StrategyBuiltIn:
		b.handleCommand(ctx, msg, routed)
	case router.StrategyDirect:
		b.send(msg.Chat.ID, routed.Template)
	default:
		reply := b.manager.QueryWithFallback(ctx, msg.From.ID, msg.Text)
		b.send(msg.Chat.ID, reply)
	}
}

// ChatType maps a Telegram chat to the router's chat type.
func ChatType(chat *tgbotapi.Chat) router.ChatType {
	switch {
	case chat.IsPrivate():
		return router.ChatPrivate
	case chat.IsSuperGroup():
		return router.ChatSupergroup
	default:
		return router.ChatGroup
	}
}

func (b *Bot) isMentioned(msg *tgbotapi.Message) bool {
	return strings.Contains(strings.ToLower(msg.Text), "@"+strings.ToLower(b.api.Self.UserName)) ||
		strings.Contains(strings.ToLower(msg.Text), "mobius")
}

func (b *Bot) isReplyToBot(msg *tgbotapi.Message) bool {
	return msg.ReplyToMessage != nil && msg.ReplyToMessage.From != nil &&
		msg.ReplyToMessage.From.ID == b.api.Self.ID
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message, routed router.Analysis) {
	cmd := routed.Command
	args := strings.Fields(cmd.Params["args"])

	switch cmd.Name {
	case "help", "start":
		b.send(msg.Chat.ID, helpText)
	case "price":
		b.handlePrice(ctx, msg, cmd.Params, args)
	case "portfolio":
		b.handlePortfolio(ctx, msg)
	case "alert":
		b.handleAlert(ctx, msg, cmd.Params, args)
	case "research":
		b.handleResearch(ctx, msg, cmd.Params, args)
	case "summarynow":
		b.handleSummary(ctx, msg)
	case "status":
		b.send(msg.Chat.ID, fmt.Sprintf("Up %s. Providers ready. Ask away.", time.Since(b.started).Round(time.Second)))
	default:
		b.send(msg.Chat.ID, "Unknown command. Try /help.")
	}
}

func (b *Bot) handlePrice(ctx context.Context, msg *tgbotapi.Message, params map[string]string, args []string) {
	symbol := params["symbol"]
	if symbol == "" && len(args) > 0 {
		symbol = strings.ToUpper(args[0])
	}
	if symbol == "" {
		b.send(msg.Chat.ID, "Which coin? e.g. /price BTC")
		return
	}
	quote, err := b.market.Price(ctx, symbol)
	if err != nil {
		log.Warnf("price lookup %s: %v", symbol, err)
		b.send(msg.Chat.ID, fmt.Sprintf("Couldn't fetch a price for %s.", symbol))
		return
	}
	arrow := "📈"
	if quote.Change24h < 0 {
		arrow = "📉"
	}
	b.send(msg.Chat.ID, fmt.Sprintf("%s %s: $%s (%+.2f%% 24h)", arrow, quote.Symbol, quote.PriceUSD.StringFixed(2), quote.Change24h))
}

func (b *Bot) handlePortfolio(ctx context.Context, msg *tgbotapi.Message) {
	// Portfolio is stored as "SYM:amount,SYM:amount".
	raw := b.store.GetUserProperty(ctx, msg.From.ID, "portfolio", "")
	if raw == "" {
		b.send(msg.Chat.ID, "No portfolio yet. Store one like: BTC:0.5,ETH:2")
		return
	}
	var lines []string
	for _, part := range strings.Split(raw, ",") {
		symbol, amount, found := strings.Cut(strings.TrimSpace(part), ":")
		if !found {
			continue
		}
		quote, err := b.market.Price(ctx, strings.ToUpper(symbol))
		if err != nil {
			lines = append(lines, fmt.Sprintf("%s ×%s: price unavailable", strings.ToUpper(symbol), amount))
			continue
		}
		lines = append(lines, fmt.Sprintf("%s ×%s @ $%s", quote.Symbol, amount, quote.PriceUSD.StringFixed(2)))
	}
	if len(lines) == 0 {
		b.send(msg.Chat.ID, "Couldn't parse your portfolio. Expected SYM:amount,SYM:amount")
		return
	}
	b.send(msg.Chat.ID, "Your portfolio:\n"+strings.Join(lines, "\n"))
}

func (b *Bot) handleAlert(ctx context.Context, msg *tgbotapi.Message, params map[string]string, args []string) {
	symbol := params["symbol"]
	priceStr := params["price"]
	if symbol == "" && len(args) > 0 {
		symbol = strings.ToUpper(args[0])
	}
	if priceStr == "" && len(args) > 1 {
		priceStr = args[1]
	}
	priceStr = strings.TrimPrefix(priceStr, "$")
	if symbol == "" || priceStr == "" {
		b.send(msg.Chat.ID, "Usage: /alert <symbol> <price>, e.g. /alert ETH 3000")
		return
	}
	if !market.KnownSymbol(symbol) {
		b.send(msg.Chat.ID, fmt.Sprintf("I don't track %s yet.", symbol))
		return
	}

	condition := fmt.Sprintf("price >= %s", priceStr)
	if _, err := alert.CompileCondition(condition); err != nil {
		b.send(msg.Chat.ID, "That price doesn't parse. Usage: /alert ETH 3000")
		return
	}
	if _, err := b.store.AddAlert(ctx, msg.From.ID, msg.Chat.ID, strings.ToUpper(symbol), condition); err != nil {
		log.Errorf("add alert: %v", err)
		b.send(msg.Chat.ID, "Couldn't save that alert, try again.")
		return
	}
	b.send(msg.Chat.ID, fmt.Sprintf("🔔 Alert set: %s at $%s", strings.ToUpper(symbol), priceStr))
}

func (b *Bot) handleResearch(ctx context.Context, msg *tgbotapi.Message, params map[string]string, args []string) {
	protocol := params["protocol"]
	if protocol == "" && len(args) > 0 {
		protocol = strings.ToLower(args[0])
	}
	if protocol == "" {
		b.send(msg.Chat.ID, "Which protocol? e.g. /research aave")
		return
	}
	info, err := b.market.Protocol(ctx, protocol)
	if err != nil {
		log.Warnf("research %s: %v", protocol, err)
		b.send(msg.Chat.ID, fmt.Sprintf("Couldn't find protocol %q.", protocol))
		return
	}
	b.send(msg.Chat.ID, fmt.Sprintf("%s (%s)\nTVL: $%s\nChain: %s\n%s",
		info.Name, info.Category, info.TVL.StringFixed(0), info.Chain, info.URL))
}

func (b *Bot) handleSummary(ctx context.Context, msg *tgbotapi.Message) {
	b.contextMu.Lock()
	recent := append([]string(nil), b.chatContext[msg.Chat.ID]...)
	b.contextMu.Unlock()

	if len(recent) < 3 {
		b.send(msg.Chat.ID, "Not enough recent messages to summarize.")
		return
	}
	prompt := "Summarize this chat conversation in a few bullet points:\n" + strings.Join(recent, "\n")
	b.send(msg.Chat.ID, b.manager.QueryWithFallback(ctx, msg.From.ID, prompt))
}

// SendAlert implements alert.Notifier.
func (b *Bot) SendAlert(chatID int64, text string) {
	b.send(chatID, text)
}

func (b *Bot) rememberContext(chatID int64, user, text string) {
	b.contextMu.Lock()
	defer b.contextMu.Unlock()
	entries := append(b.chatContext[chatID], fmt.Sprintf("%s: %s", user, text))
	if len(entries) > contextWindow {
		entries = entries[len(entries)-contextWindow:]
	}
	b.chatContext[chatID] = entries
}

func (b *Bot) send(chatID int64, text string) {
	if text == "" {
		return
	}
	_ = b.globalLimiter.Wait(context.Background())
	_ = b.limiterFor(chatID).Wait(context.Background())

	reply := tgbotapi.NewMessage(chatID, text)
	if _, err := b.api.Send(reply); err != nil {
		log.Errorf("telegram send to %d: %v", chatID, err)
	}
}

func (b *Bot) limiterFor(chatID int64) *rate.Limiter {
	b.userLimitersMu.Lock()
	defer b.userLimitersMu.Unlock()
	limiter, ok := b.userLimiters[chatID]
	if !ok {
		limiter = rate.NewLimiter(rate.Limit(1), 1)
		b.userLimiters[chatID] = limiter
	}
	return limiter
}
