// Copyright 2025 Esteban Alvarez. All Rights Reserved.
//
// Created: October 2025
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package main is the entry point for rift, a Mountebank-wire-compatible
// mock HTTP/HTTPS server and programmable proxy (§1/§6.3).
//
// It orchestrates the whole process:
//  1. Parse --flags and layer §6.4's environment variables over them.
//  2. Build the structured logger, script runtime, proxy client and
//     metrics recorder.
//  3. Build the imposter Registry and optionally seed it from --configfile.
//  4. Start the admin HTTP API (and the Prometheus endpoint, if enabled).
//  5. Block until SIGINT/SIGTERM, then shut everything down in order.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/riftmock/rift/internal/admin"
	"github.com/riftmock/rift/internal/config"
	"github.com/riftmock/rift/internal/imposter"
	"github.com/riftmock/rift/internal/logging"
	"github.com/riftmock/rift/internal/metrics"
	"github.com/riftmock/rift/internal/proxy"
	"github.com/riftmock/rift/internal/riftkind"
	"github.com/riftmock/rift/internal/script"
)

// Exit codes per §6.3.
const (
	exitOK          = 0
	exitConfig      = 2
	exitBindFailure = 3
)

func main() {
	os.Exit(run())
}

func run() int {
	// 1. Parse configuration flags, layering §6.4's environment variables
	// over anything the caller didn't explicitly set.
	cfg, err := config.Parse(os.Args[1:], os.LookupEnv)
	if err != nil {
		fmt.Fprintf(os.Stderr, "rift: %v\n", err)
		return exitConfig
	}

	// 2. Build the ambient stack: logger, script runtime, proxy client,
	// metrics recorder.
	logger := logging.New(logging.Options{
		Level:   cfg.LogLevel,
		RustLog: cfg.RustLog,
		LogPath: cfg.LogPath,
	})
	defer func() { _ = logger.Sync() }()

	runtime := script.NewRuntime(script.NewCapability(cfg.AllowInjection))
	proxyClient := proxy.New(proxy.Config{})
	recorder := metrics.NewRecorder()

	// 3. Build the imposter registry. Every imposter it creates binds its
	// own listener immediately (internal/imposter.Registry.Create), so
	// imposters loaded from --configfile are already serving traffic by
	// the time this function returns from Bootstrap.
	registry := imposter.NewRegistry(imposter.Options{
		Host:                cfg.Host,
		ScriptRuntime:       runtime,
		ProxyClient:         proxyClient,
		Metrics:             recorder,
		FlowRecorder:        recorder,
		AllowShellTransform: cfg.AllowInjection,
	})

	if cfg.ConfigFile != "" {
		raw, err := config.LoadImposterFile(cfg.ConfigFile)
		if err != nil {
			logger.Error("failed to read configfile", zap.Error(err))
			return exitConfig
		}
		loaded, err := admin.Bootstrap(registry, raw)
		if err != nil {
			if riftkind.Of(err) == riftkind.PortConflict {
				logger.Error("failed to bind imposters from configfile", zap.Error(err))
				return exitBindFailure
			}
			logger.Error("failed to parse configfile", zap.Error(err))
			return exitConfig
		}
		logger.Info("loaded imposters from configfile", zap.Int("count", len(loaded)))
	}

	// 4. Start the admin HTTP API, wrapped in the IP whitelist if one was
	// configured, and the metrics endpoint if --metrics-port is non-zero.
	api := admin.New(registry, cfg, logger)
	var handler http.Handler = api
	handler = admin.IPWhitelist(handler, cfg.IPWhitelist)

	adminAddr := fmt.Sprintf("%s:%d", cfg.Host, cfg.AdminPort)
	adminServer := &http.Server{
		Addr:              adminAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	serveErrs := make(chan error, 1)
	go func() {
		logger.Info("admin API listening", zap.String("addr", adminAddr))
		if err := adminServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serveErrs <- err
		}
	}()

	var metricsServer *http.Server
	if cfg.MetricsPort != 0 {
		metricsAddr := fmt.Sprintf("%s:%d", cfg.Host, cfg.MetricsPort)
		metricsServer = metrics.StartEndpoint(metricsAddr)
		logger.Info("metrics endpoint listening", zap.String("addr", metricsAddr))
	}

	// 5. Block until SIGINT/SIGTERM (or the admin listener fails to bind),
	// then shut down in order: metrics endpoint, admin API, imposters.
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		logger.Info("shutdown signal received")
	case err := <-serveErrs:
		logger.Error("admin API failed to bind", zap.Error(err))
		return exitBindFailure
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := metrics.Shutdown(ctx, metricsServer); err != nil {
		logger.Warn("metrics endpoint shutdown error", zap.Error(err))
	}
	if err := adminServer.Shutdown(ctx); err != nil {
		logger.Warn("admin API shutdown error", zap.Error(err))
	}
	for _, imp := range registry.DeleteAll() {
		logger.Info("imposter stopped", zap.Int("port", imp.Port))
	}

	logger.Info("rift stopped")
	return exitOK
}
