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

// States of a single recovery run
const (
	// StateDispatching is the initial state, the kind has not been routed yet
	StateDispatching = "dispatching"
	// StateRecovering means a recovery routine is running
	StateRecovering = "recovering"
	// StateReporting is terminal, the outcome is fixed
	StateReporting = "reporting"
)

// Events of a single recovery run
const (
	// EventRecover routes a classified kind to its routine
	EventRecover = "recover"
	// EventReport ends a routine
	EventReport = "report"
	// EventReject ends a run whose kind has no routine
	EventReject = "reject"
)

// IsTerminal reports whether no further event is accepted in state.
func IsTerminal(state string) bool {
	return state == StateReporting
}
