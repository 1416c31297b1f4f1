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

package fsm

import (
	"context"
	"sync"

	"github.com/looplab/fsm"
	"go.uber.org/zap"
)

// Event and Callback are re-exported so callers need not import looplab/fsm.
type (
	Event    = fsm.Event
	Callback = fsm.Callback
)

// RunFSM tracks one dispatcher run through dispatching, recovering and
// reporting. It is not reused across runs.
type RunFSM struct {
	fsm *fsm.FSM

	// Registered "enter_<state>" callbacks
	callbacks map[string]fsm.Callback

	logger *zap.SugaredLogger
	id     string

	// visited states in order, starting with the initial one
	history []string

	mu sync.RWMutex
}

// NewRunFSM creates the state machine of run id in StateDispatching.
func NewRunFSM(id string, logger *zap.SugaredLogger) *RunFSM {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	run := &RunFSM{
		id:        id,
		logger:    logger,
		callbacks: make(map[string]fsm.Callback),
		history:   []string{StateDispatching},
	}

	run.fsm = fsm.NewFSM(
		StateDispatching,
		fsm.Events{
			{Name: EventRecover, Src: []string{StateDispatching}, Dst: StateRecovering},
			{Name: EventReport, Src: []string{StateRecovering}, Dst: StateReporting},
			{Name: EventReject, Src: []string{StateDispatching}, Dst: StateReporting},
		},
		fsm.Callbacks{
			"enter_state": func(ctx context.Context, e *fsm.Event) {
				run.mu.Lock()
				run.history = append(run.history, e.Dst)
				cb, ok := run.callbacks["enter_"+e.Dst]
				run.mu.Unlock()

				run.logger.Debugf("Run %s: %s -> %s (%s)", run.id, e.Src, e.Dst, e.Event)

				if ok {
					cb(ctx, e)
				}
			},
		},
	)

	return run
}

// AddCallback registers cb to run when state is entered. A later
// registration for the same state replaces the earlier one.
func (r *RunFSM) AddCallback(state string, cb Callback) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.callbacks["enter_"+state] = cb
}

// SendEvent fires eventName. It refuses to start a transition on a context
// that is already done.
func (r *RunFSM) SendEvent(ctx context.Context, eventName string, args ...interface{}) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	return r.fsm.Event(ctx, eventName, args...)
}

// Current returns the current state.
func (r *RunFSM) Current() string {
	return r.fsm.Current()
}

// SetCurrentState forces the state. Only meant for tests.
func (r *RunFSM) SetCurrentState(state string) {
	r.fsm.SetState(state)
}

// IsDone reports whether the run reached its terminal state.
func (r *RunFSM) IsDone() bool {
	return IsTerminal(r.Current())
}

// History returns the visited states in order.
func (r *RunFSM) History() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return append([]string(nil), r.history...)
}

func (r *RunFSM) ID() string {
	return r.id
}
