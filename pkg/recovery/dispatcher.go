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

// Package recovery maps a classified error to its recovery routine and
// normalises the result to a single Outcome per call.
package recovery

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/united-manufacturing-hub/faultrecovery/internal/fsm"
	"github.com/united-manufacturing-hub/faultrecovery/pkg/backoff"
	"github.com/united-manufacturing-hub/faultrecovery/pkg/config"
	"github.com/united-manufacturing-hub/faultrecovery/pkg/errorhandling"
	"github.com/united-manufacturing-hub/faultrecovery/pkg/logger"
	"github.com/united-manufacturing-hub/faultrecovery/pkg/metrics"
	"github.com/united-manufacturing-hub/faultrecovery/pkg/models"
	"github.com/united-manufacturing-hub/faultrecovery/pkg/platform"
	"github.com/united-manufacturing-hub/faultrecovery/pkg/probe"
	"github.com/united-manufacturing-hub/faultrecovery/pkg/reclaim"
	"github.com/united-manufacturing-hub/faultrecovery/pkg/sentry"
)

// Reclaimer releases process-wide resources and never fails.
type Reclaimer interface {
	Reclaim(ctx context.Context) reclaim.Summary
}

// Dependencies are the collaborators a Dispatcher works through.
type Dependencies struct {
	Platform  platform.Service
	Probe     probe.Probe
	Reclaimer Reclaimer
	ErrorLog  errorhandling.Logger
}

// routine recovers from one kind of error.
type routine func(ctx context.Context, log *zap.SugaredLogger) models.Outcome

// Dispatcher runs one recovery routine per call. It does not coordinate
// concurrent callers; see Supervisor.
type Dispatcher struct {
	deps     Dependencies
	sleeper  backoff.Sleeper
	logger   *zap.SugaredLogger
	routines map[models.ErrorKind]routine
	cfg      config.RecoveryConfig
}

type Option func(*Dispatcher)

// WithSleeper replaces the timer used between retry attempts.
func WithSleeper(s backoff.Sleeper) Option {
	return func(d *Dispatcher) {
		if s != nil {
			d.sleeper = s
		}
	}
}

// WithLogger sets the logger runs are reported to.
func WithLogger(l *zap.SugaredLogger) Option {
	return func(d *Dispatcher) {
		if l != nil {
			d.logger = l
		}
	}
}

// NewDispatcher creates a dispatcher. cfg is copied, later changes to the
// caller's configuration have no effect.
func NewDispatcher(cfg config.RecoveryConfig, deps Dependencies, opts ...Option) *Dispatcher {
	full := config.FullConfig{Recovery: cfg}

	d := &Dispatcher{
		cfg:     full.Clone().Recovery,
		deps:    deps,
		sleeper: backoff.RealSleeper{},
		logger:  logger.For(logger.ComponentDispatcher),
	}

	for _, opt := range opts {
		opt(d)
	}

	d.routines = map[models.ErrorKind]routine{
		models.Memory:      d.recoverMemory,
		models.FileAccess:  d.recoverFileAccess,
		models.Device:      d.recoverDevice,
		models.DeviceBusy:  d.recoverDeviceBusy,
		models.TextBusy:    d.recoverTextBusy,
		models.NullPointer: d.recoverNullPointer,
	}

	return d
}

// NewDefaultDispatcher wires the dispatcher to the system probe, the
// reclaimer and the zap error log on top of svc.
func NewDefaultDispatcher(cfg config.RecoveryConfig, svc platform.Service, opts ...Option) *Dispatcher {
	errorLog := errorhandling.NewZapLogger()

	return NewDispatcher(cfg, Dependencies{
		Platform:  svc,
		Probe:     probe.NewSystemProbe(svc, cfg.MemoryThreshold),
		Reclaimer: reclaim.NewReclaimer(svc, cfg.Reclaim, errorLog),
		ErrorLog:  errorLog,
	}, opts...)
}

// Recover runs the routine for kind and returns its outcome. It never
// panics on unknown kinds and never returns an error; diagnostics go to the
// log.
func (d *Dispatcher) Recover(ctx context.Context, kind models.ErrorKind) models.Outcome {
	return d.Run(ctx, kind).Outcome
}

// Run is Recover with the full report of the run.
func (d *Dispatcher) Run(ctx context.Context, kind models.ErrorKind) models.RecoveryReport {
	report := models.RecoveryReport{
		ID:        uuid.NewString(),
		Kind:      kind,
		Outcome:   models.Failed,
		StartedAt: time.Now(),
	}

	log := d.logger.With("run_id", report.ID, "kind", kind.String())

	// State bookkeeping must finish even when the caller gives up
	bookkeeping := context.WithoutCancel(ctx)

	run := fsm.NewRunFSM(report.ID, log)
	run.AddCallback(fsm.StateRecovering, func(context.Context, *fsm.Event) {
		log.Infof("Attempting to recover from %s", kind)
	})

	recoverFn, ok := d.routines[kind]
	if !ok {
		log.Warnf("Unknown error kind %s, no recovery attempted", kind)
		d.send(bookkeeping, run, fsm.EventReject, log)
	} else {
		d.send(bookkeeping, run, fsm.EventRecover, log)
		report.Outcome = recoverFn(ctx, log)
		d.send(bookkeeping, run, fsm.EventReport, log)
	}

	report.Duration = time.Since(report.StartedAt)
	log.Infof("Recovery %s for error type %s", report.Outcome, kind)

	if report.Outcome == models.Failed && ok {
		summary := d.deps.Reclaimer.Reclaim(bookkeeping)
		log.Debugf("Last-chance reclaim after failed recovery: %s", summary)
		sentry.ReportRecoveryFailure(log, kind, report.ID, errRecoveryFailed(kind))
	}

	metrics.RecordRecovery(kind.String(), report.Outcome.String(), report.Duration)

	return report
}

func (d *Dispatcher) send(ctx context.Context, run *fsm.RunFSM, event string, log *zap.SugaredLogger) {
	if err := run.SendEvent(ctx, event); err != nil {
		log.Errorf("Run state machine rejected %s in state %s: %s", event, run.Current(), err)
	}
}

// retryConfig is the fixed-delay budget shared by all retrying routines.
func (d *Dispatcher) retryConfig() backoff.Config {
	return backoff.NewConfig(d.cfg.MaxAttempts, d.cfg.RetryDelay)
}

func (d *Dispatcher) retryOptions(kind models.ErrorKind, log *zap.SugaredLogger, extra ...backoff.Option) []backoff.Option {
	opts := []backoff.Option{
		backoff.WithSleeper(d.sleeper),
		backoff.WithLogger(log),
		backoff.WithName(kind.String()),
	}

	return append(opts, extra...)
}
