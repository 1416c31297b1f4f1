// Copyright 2025 UMH Systems GmbH
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

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/united-manufacturing-hub/faultrecovery/pkg/api"
	"github.com/united-manufacturing-hub/faultrecovery/pkg/config"
	"github.com/united-manufacturing-hub/faultrecovery/pkg/constants"
	"github.com/united-manufacturing-hub/faultrecovery/pkg/env"
	"github.com/united-manufacturing-hub/faultrecovery/pkg/logger"
	"github.com/united-manufacturing-hub/faultrecovery/pkg/metrics"
	"github.com/united-manufacturing-hub/faultrecovery/pkg/models"
	"github.com/united-manufacturing-hub/faultrecovery/pkg/platform"
	"github.com/united-manufacturing-hub/faultrecovery/pkg/recovery"
	"github.com/united-manufacturing-hub/faultrecovery/pkg/safejson"
	"github.com/united-manufacturing-hub/faultrecovery/pkg/sentry"
	"github.com/united-manufacturing-hub/faultrecovery/pkg/version"
)

func main() {
	// Initialize the global logger first thing
	logger.Initialize()
	defer func() { _ = logger.Sync() }()

	log := logger.For(logger.ComponentCore)
	log.Infof("Starting fault recovery supervisor %s", version.GetAppVersion())

	configPath, err := env.GetAsString("CONFIG_PATH", false, constants.DefaultConfigPath)
	if err != nil {
		log.Fatalf("Failed to read CONFIG_PATH: %s", err)
	}

	cfg, err := config.Load(configPath, logger.For(logger.ComponentConfig))
	if err != nil {
		sentry.ReportIssuef(sentry.IssueTypeFatal, log, "Failed to load config: %w", err)
		os.Exit(1)
	}

	sentry.InitSentry(version.GetAppVersion(), cfg.Agent.SentryDSN)

	kinds, err := env.GetAsStringSlice("RECOVERY_KINDS", false, nil)
	if err != nil {
		sentry.ReportIssuef(sentry.IssueTypeFatal, log, "Failed to read RECOVERY_KINDS: %w", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metricsServer := metrics.SetupMetricsEndpoint(fmt.Sprintf(":%d", cfg.Agent.MetricsPort))
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
		defer cancel()
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			sentry.ReportIssuef(sentry.IssueTypeError, log, "Failed to shutdown metrics server: %w", err)
		}
	}()

	if len(kinds) > 0 {
		if !runOnce(ctx, cfg, kinds, log) {
			stop()
			os.Exit(1)
		}

		return
	}

	serve(ctx, cfg, log)
}

// runOnce recovers each kind in order, prints the reports and reports
// whether none of them failed.
func runOnce(ctx context.Context, cfg config.FullConfig, kinds []string, log *zap.SugaredLogger) bool {
	supervisor := recovery.NewSupervisor(recovery.NewDefaultDispatcher(cfg.Recovery, platform.NewOSService()))

	reports := make([]models.RecoveryReport, 0, len(kinds))
	allRecovered := true

	for _, name := range kinds {
		kind := models.ParseErrorKind(name)
		if kind == models.Unknown {
			log.Warnf("Unrecognized error kind %q, it will be reported as failed", name)
		}

		report, err := supervisor.Run(ctx, kind)
		if err != nil {
			log.Warnf("Stopping early: %s", err)
			allRecovered = false

			break
		}

		reports = append(reports, report)
		if report.Outcome == models.Failed {
			allRecovered = false
		}
	}

	if err := safejson.WriteIndented(os.Stdout, reports); err != nil {
		log.Errorf("Failed to print reports: %s", err)

		return false
	}

	return allRecovered
}

// serve runs the recovery API until ctx is cancelled.
func serve(ctx context.Context, cfg config.FullConfig, log *zap.SugaredLogger) {
	recoveryCfg := cfg.Clone().Recovery
	if recoveryCfg.Reclaim.CloseDescriptors {
		// Long-running, its own open files would be closed under it
		log.Info("Descriptor sweep disabled while serving the API")
		recoveryCfg.Reclaim.CloseDescriptors = false
	}

	supervisor := recovery.NewSupervisor(recovery.NewDefaultDispatcher(recoveryCfg, platform.NewOSService()))
	server := api.NewServer(supervisor, cfg.Agent.APIPort, logger.For(logger.ComponentAPI))

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	select {
	case <-ctx.Done():
		log.Info("Shutdown signal received")
	case err := <-errCh:
		if err != nil {
			sentry.ReportIssuef(sentry.IssueTypeError, log, "Recovery API failed: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
	defer cancel()

	if err := server.Stop(shutdownCtx); err != nil {
		sentry.ReportIssuef(sentry.IssueTypeError, log, "Failed to shutdown recovery API: %w", err)
	}

	log.Info("Fault recovery supervisor stopped")
}
