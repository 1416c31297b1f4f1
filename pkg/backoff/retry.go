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

package backoff

import (
	"context"

	cbackoff "github.com/cenkalti/backoff"
	"go.uber.org/zap"

	"github.com/united-manufacturing-hub/faultrecovery/pkg/metrics"
	"github.com/united-manufacturing-hub/faultrecovery/pkg/models"
)

// Action is one attempt. A nil error is success; an error wrapped with
// NewPermanentError aborts the loop; anything else is retried.
type Action func(ctx context.Context) error

// Fallback runs once after the primary attempts are exhausted. A nil error
// means the degraded path worked.
type Fallback func(ctx context.Context) error

type options struct {
	sleeper         Sleeper
	logger          *zap.SugaredLogger
	betweenAttempts func(ctx context.Context, attempt int)
	name            string
}

// Option customises a single Retry call.
type Option func(*options)

// WithSleeper replaces the real timer, mostly for tests.
func WithSleeper(s Sleeper) Option {
	return func(o *options) {
		if s != nil {
			o.sleeper = s
		}
	}
}

// WithLogger sets the logger attempts are reported to.
func WithLogger(l *zap.SugaredLogger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithName labels log lines of this loop.
func WithName(name string) Option {
	return func(o *options) {
		o.name = name
	}
}

// WithBetweenAttempts registers a hook that runs after a failed attempt and
// before the following sleep. It never runs after the final attempt.
func WithBetweenAttempts(hook func(ctx context.Context, attempt int)) Option {
	return func(o *options) {
		o.betweenAttempts = hook
	}
}

// Retry runs action up to cfg.MaxAttempts times and maps the result to an
// Outcome:
//
//   - first successful attempt: Success, no further attempts or sleeps
//   - permanent error: Failed immediately, fallback skipped
//   - attempts exhausted: fallback nil or failing gives Failed, working fallback gives Partial
//   - ctx cancelled while sleeping: Failed, fallback skipped
//
// Sleeps happen only between attempts.
func Retry(ctx context.Context, cfg Config, action Action, fallback Fallback, opts ...Option) models.Outcome {
	o := options{
		sleeper: RealSleeper{},
		logger:  zap.NewNop().Sugar(),
		name:    "retry",
	}
	for _, opt := range opts {
		opt(&o)
	}

	log := o.logger.With("loop", o.name, "policy", cfg.policyName())

	if err := cfg.Validate(); err != nil {
		log.Errorf("Refusing to run retry loop: %s", err)

		return models.Failed
	}

	schedule := cfg.schedule()

	for attempt := 1; ; attempt++ {
		metrics.IncRetryAttempt(cfg.policyName())
		log.Debugf("Attempt %d/%d", attempt, cfg.MaxAttempts)

		err := action(ctx)
		if err == nil {
			log.Debugf("Attempt %d/%d succeeded", attempt, cfg.MaxAttempts)

			return models.Success
		}

		if IsPermanentError(err) {
			metrics.IncRetryAbort(cfg.policyName())
			log.Warnf("Attempt %d/%d hit an unexpected error, aborting: %s", attempt, cfg.MaxAttempts, err)

			return models.Failed
		}

		if IsIgnoredError(err) {
			log.Debugf("Attempt %d/%d failed: %s", attempt, cfg.MaxAttempts, err)
		} else {
			log.Infof("Attempt %d/%d failed: %s", attempt, cfg.MaxAttempts, err)
		}

		wait := schedule.NextBackOff()
		if wait == cbackoff.Stop {
			break
		}

		if o.betweenAttempts != nil {
			o.betweenAttempts(ctx, attempt)
		}

		if err := o.sleeper.Sleep(ctx, wait); err != nil {
			log.Warnf("Retry loop interrupted while waiting: %s", err)

			return models.Failed
		}
		metrics.AddRetrySleep(cfg.policyName(), wait)
	}

	log.Infof("All %d attempts failed", cfg.MaxAttempts)

	if fallback == nil {
		return models.Failed
	}

	if err := fallback(ctx); err != nil {
		log.Infof("Fallback failed: %s", err)

		return models.Failed
	}

	log.Info("Fallback succeeded, continuing on a degraded resource")

	return models.Partial
}
