// Copyright 2026 The Mobius Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package alert evaluates stored price alerts against fresh quotes. Alert
// conditions are expr expressions over a single variable "price", e.g.
// "price >= 3000" or "price < 0.5 and price > 0.1".
package alert

import (
	"context"
	"fmt"
	"time"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	log "github.com/sirupsen/logrus"

	"github.com/mobius-labs/mobius/internal/market"
	"github.com/mobius-labs/mobius/internal/store"
)

// Env is the variable environment an alert condition runs against.
type Env struct {
	Price float64 `expr:"price"`
}

// CompileCondition validates and compiles a condition string. Used both
// when an alert is created (reject bad input early) and when it fires.
func CompileCondition(condition string) (*vm.Program, error) {
	program, err := expr.Compile(condition, expr.Env(Env{}), expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("invalid alert condition %q: %w", condition, err)
	}
	return program, nil
}

// EvalCondition runs a compiled condition against a price.
func EvalCondition(program *vm.Program, price float64) (bool, error) {
	out, err := expr.Run(program, Env{Price: price})
	if err != nil {
		return false, err
	}
	hit, ok := out.(bool)
	if !ok {
		return false, fmt.Errorf("alert condition did not return a boolean")
	}
	return hit, nil
}

// Notifier delivers a fired alert to its chat.
type Notifier interface {
	SendAlert(chatID int64, text string)
}

// Checker periodically evaluates active alerts.
type Checker struct {
	store    *store.Store
	market   *market.Client
	notifier Notifier
	interval time.Duration
	programs map[string]*vm.Program
}

// NewChecker creates a Checker; interval <= 0 disables Run.
func NewChecker(st *store.Store, mkt *market.Client, notifier Notifier, interval time.Duration) *Checker {
	return &Checker{
		store:    st,
		market:   mkt,
		notifier: notifier,
		interval: interval,
		programs: make(map[string]*vm.Program),
	}
}

// Run blocks, checking alerts on each tick until ctx is cancelled.
func (c *Checker) Run(ctx context.Context) {
	if c.interval <= 0 {
		return
	}
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.CheckOnce(ctx)
		}
	}
}

// CheckOnce evaluates every active alert once. Quote fetches are batched
// per symbol; a failed fetch skips that symbol's alerts until next tick.
func (c *Checker) CheckOnce(ctx context.Context) {
	alerts, err := c.store.ActiveAlerts(ctx)
	if err != nil {
		log.Errorf("alert checker: list alerts: %v", err)
		return
	}
	if len(alerts) == 0 {
		return
	}

	quotes := make(map[string]market.Quote)
	for _, a := range alerts {
		if _, done := quotes[a.Symbol]; done {
			continue
		}
		quote, errPrice := c.market.Price(ctx, a.Symbol)
		if errPrice != nil {
			log.Warnf("alert checker: price %s: %v", a.Symbol, errPrice)
			continue
		}
		quotes[a.Symbol] = quote
	}

	for _, a := range alerts {
		quote, ok := quotes[a.Symbol]
		if !ok {
			continue
		}
		program, errCompile := c.compiled(a.Condition)
		if errCompile != nil {
			log.Errorf("alert checker: alert %d has bad condition: %v", a.ID, errCompile)
			continue
		}
		price, _ := quote.PriceUSD.Float64()
		hit, errEval := EvalCondition(program, price)
		if errEval != nil {
			log.Errorf("alert checker: alert %d eval: %v", a.ID, errEval)
			continue
		}
		if !hit {
			continue
		}
		c.notifier.SendAlert(a.ChatID, fmt.Sprintf("🔔 %s alert: %s (now $%s)", a.Symbol, a.Condition, quote.PriceUSD.StringFixed(2)))
		if errMark := c.store.MarkAlertFired(ctx, a.ID); errMark != nil {
			log.Errorf("alert checker: mark fired %d: %v", a.ID, errMark)
		}
	}
}

func (c *Checker) compiled(condition string) (*vm.Program, error) {
	if program, ok := c.programs[condition]; ok {
		return program, nil
	}
	program, err := CompileCondition(condition)
	if err != nil {
		return nil, err
	}
	c.programs[condition] = program
	return program, nil
}
