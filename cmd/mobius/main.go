// Copyright 2026 The Mobius Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package main is the entry point for the Möbius Telegram bot. It wires
// the config, user store, rate limiter, provider manager, market clients,
// alert checker, status API, and the Telegram update loop.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"

	"github.com/mobius-labs/mobius/internal/alert"
	"github.com/mobius-labs/mobius/internal/api"
	"github.com/mobius-labs/mobius/internal/config"
	"github.com/mobius-labs/mobius/internal/logging"
	"github.com/mobius-labs/mobius/internal/market"
	"github.com/mobius-labs/mobius/internal/provider"
	"github.com/mobius-labs/mobius/internal/ratelimit"
	"github.com/mobius-labs/mobius/internal/store"
	"github.com/mobius-labs/mobius/internal/telegram"
)

var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func init() {
	logging.Setup()
}

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	// .env is optional; environment variables override YAML either way.
	_ = godotenv.Load()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logging.SetDebug(cfg.Debug)
	if err = logging.ConfigureOutput(cfg.LoggingToFile, cfg.LogsDir); err != nil {
		log.Fatalf("configure logging: %v", err)
	}
	log.Infof("mobius %s (%s, built %s) starting", Version, Commit, BuildDate)

	if cfg.Telegram.Token == "" {
		log.Fatal("no telegram token configured (telegram.token or TELEGRAM_BOT_TOKEN)")
	}

	st, err := store.Open(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("open store: %v", err)
	}
	defer func() {
		if errClose := st.Close(); errClose != nil {
			log.Errorf("close store: %v", errClose)
		}
	}()

	limiter := ratelimit.NewLimiter(provider.LimitTable())
	manager := provider.NewManager(cfg, st, limiter)
	mkt := market.NewClient("", "")

	bot, err := telegram.NewBot(cfg, st, manager, mkt)
	if err != nil {
		log.Fatalf("start telegram bot: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Hot-reload the debug flag, provider keys, and the management secret
	// on config changes. ApplyReload swaps those fields under the config's
	// lock; the rest of the config needs a restart.
	watcher, err := config.NewWatcher(*configPath, func(fresh *config.Config) {
		logging.SetDebug(fresh.Debug)
		cfg.ApplyReload(fresh)
	})
	if err != nil {
		log.Warnf("config watcher unavailable: %v", err)
	} else {
		watcher.Start()
		defer watcher.Stop()
	}

	if cfg.StatusAPI.Enabled {
		statusServer := api.NewServer(cfg, limiter, manager)
		statusServer.Start()
		defer func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			if errShutdown := statusServer.Shutdown(shutdownCtx); errShutdown != nil {
				log.Errorf("status api shutdown: %v", errShutdown)
			}
		}()
	}

	checker := alert.NewChecker(st, mkt, bot, time.Duration(cfg.AlertCheckIntervalSeconds)*time.Second)
	go checker.Run(ctx)

	bot.Run(ctx)
	log.Info("shutting down")
}
