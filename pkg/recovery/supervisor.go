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

package recovery

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"

	"github.com/united-manufacturing-hub/faultrecovery/pkg/logger"
	"github.com/united-manufacturing-hub/faultrecovery/pkg/models"
)

// Runner produces one report per call. *Dispatcher implements it.
type Runner interface {
	Run(ctx context.Context, kind models.ErrorKind) models.RecoveryReport
}

// Supervisor serialises recovery runs process-wide, since reclaiming is not
// safe to race. Callers asking for a kind that is already queued or running
// share that run's report.
//
// A shared run is bound to no single caller: it is cancelled only once every
// caller waiting for it has gone.
type Supervisor struct {
	runner  Runner
	sem     *semaphore.Weighted
	logger  *zap.SugaredLogger
	flights map[models.ErrorKind]*flight
	group   singleflight.Group
	mu      sync.Mutex
}

// flight is the context of one shared run and the number of callers waiting
// for it.
type flight struct {
	ctx     context.Context
	cancel  context.CancelFunc
	waiters int
}

func NewSupervisor(runner Runner) *Supervisor {
	return &Supervisor{
		runner:  runner,
		sem:     semaphore.NewWeighted(1),
		logger:  logger.For(logger.ComponentSupervisor),
		flights: make(map[models.ErrorKind]*flight),
	}
}

// Run waits for its turn and runs kind. The error is non-nil only when ctx
// ended before the report was available; the report is then zero. Ending ctx
// never affects other callers sharing the run.
func (s *Supervisor) Run(ctx context.Context, kind models.ErrorKind) (models.RecoveryReport, error) {
	f := s.join(kind)
	defer s.leave(kind, f)

	results := s.group.DoChan(kind.String(), func() (interface{}, error) {
		if err := s.sem.Acquire(f.ctx, 1); err != nil {
			return models.RecoveryReport{}, err
		}
		defer s.sem.Release(1)

		return s.runner.Run(f.ctx, kind), nil
	})

	select {
	case res := <-results:
		if res.Shared {
			s.logger.Debugf("Joined running recovery for %s", kind)
		}

		if res.Err != nil {
			s.logger.Warnf("Recovery for %s not completed: %s", kind, res.Err)

			return models.RecoveryReport{}, res.Err
		}

		return res.Val.(models.RecoveryReport), nil
	case <-ctx.Done():
		s.logger.Warnf("Stopped waiting for recovery of %s: %s", kind, ctx.Err())

		return models.RecoveryReport{}, ctx.Err()
	}
}

func (s *Supervisor) join(kind models.ErrorKind) *flight {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, ok := s.flights[kind]
	if !ok {
		ctx, cancel := context.WithCancel(context.Background())
		f = &flight{ctx: ctx, cancel: cancel}
		s.flights[kind] = f
	}
	f.waiters++

	return f
}

// leave cancels the flight once its last caller is gone. The flight and its
// singleflight key are dropped together, so a later caller starts a fresh run
// instead of joining a cancelled one.
func (s *Supervisor) leave(kind models.ErrorKind, f *flight) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f.waiters--
	if f.waiters > 0 {
		return
	}

	f.cancel()
	if s.flights[kind] == f {
		delete(s.flights, kind)
		s.group.Forget(kind.String())
	}
}

// Recover is Run reduced to the outcome. A run that never started is Failed.
func (s *Supervisor) Recover(ctx context.Context, kind models.ErrorKind) models.Outcome {
	report, err := s.Run(ctx, kind)
	if err != nil {
		return models.Failed
	}

	return report.Outcome
}
