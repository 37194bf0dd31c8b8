/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"note-option-ledger-go/internal/api"
	"note-option-ledger-go/internal/common"
	"note-option-ledger-go/internal/config"
	"note-option-ledger-go/internal/sweeper"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
)

func main() {
	addr := flag.String("addr", "", "Listen address (default: HTTP_ADDR)")
	noSweeper := flag.Bool("no-sweeper", false, "Disable the spent-option sweeper regardless of SWEEPER_ENABLED")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		common.ConfigError(err)
	}
	if *addr != "" {
		cfg.Http.Addr = *addr
	}

	_, loggerCleanup := common.InitializeLogger(cfg.Logging)
	defer loggerCleanup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	zap.L().Info("Starting ledger daemon", zap.String("addr", cfg.Http.Addr))

	services, err := common.InitializeServices(ctx, cfg)
	if err != nil {
		zap.L().Fatal("Failed to initialize services", zap.Error(err))
	}
	defer services.Close()

	if cfg.Http.AdminJwtSecret == "" {
		zap.L().Warn("ADMIN_JWT_SECRET is not set, admin routes will reject every request")
	}

	svc := api.NewLedgerService(services.Engine, services.DbService)
	router := api.NewRouter(api.RouterConfig{
		Service:        svc,
		Authenticator:  api.NewAuthenticator(cfg.Http.AdminJwtSecret),
		MetricsHandler: promhttp.Handler(),
		RequestTimeout: cfg.Http.RequestTimeout,
	})

	h2s := &http2.Server{}
	server := &http.Server{
		Addr:         cfg.Http.Addr,
		Handler:      h2c.NewHandler(router, h2s),
		ReadTimeout:  cfg.Http.ReadTimeout,
		WriteTimeout: cfg.Http.WriteTimeout,
	}
	if err := http2.ConfigureServer(server, h2s); err != nil {
		zap.L().Fatal("Failed to configure HTTP/2", zap.Error(err))
	}

	var sw *sweeper.Sweeper
	if cfg.Sweeper.Enabled && !*noSweeper {
		sw = sweeper.New(sweeper.Config{
			Ledger:          services.Engine,
			PollingInterval: cfg.Sweeper.Interval,
		})
		if err := sw.Start(ctx); err != nil {
			zap.L().Error("Failed to start sweeper", zap.Error(err))
			sw = nil
		}
	}

	serverErr := make(chan error, 1)
	go func() {
		zap.L().Info("HTTP server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	zap.L().Info("Press Ctrl+C to stop")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigChan:
		zap.L().Info("Shutdown signal received, stopping ledger daemon...")
	case err := <-serverErr:
		if err != nil {
			zap.L().Error("HTTP server failed", zap.Error(err))
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		zap.L().Warn("Forced HTTP shutdown after timeout", zap.Error(err))
	}

	if sw != nil {
		done := make(chan struct{})
		go func() {
			sw.Stop()
			close(done)
		}()
		select {
		case <-done:
			zap.L().Info("Sweeper stopped gracefully")
		case <-shutdownCtx.Done():
			zap.L().Warn("Forced sweeper shutdown after timeout")
		}
	}
	cancel()
}
