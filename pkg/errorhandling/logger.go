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

// Package errorhandling holds the collaborator that recovery routines report
// diagnostics to.
package errorhandling

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/united-manufacturing-hub/faultrecovery/pkg/logger"
	"github.com/united-manufacturing-hub/faultrecovery/pkg/metrics"
	"github.com/united-manufacturing-hub/faultrecovery/pkg/models"
	"github.com/united-manufacturing-hub/faultrecovery/pkg/sentry"
)

// Logger receives one diagnostic per call. Implementations must not block for
// long and must be safe for concurrent use.
type Logger interface {
	LogError(kind models.ErrorKind, message string, code int)
}

// ZapLogger writes diagnostics to zap and counts them. Device failures are
// additionally forwarded to sentry.
type ZapLogger struct {
	log *zap.SugaredLogger
}

func NewZapLogger() *ZapLogger {
	return &ZapLogger{log: logger.For(logger.ComponentErrorLog)}
}

// NewZapLoggerWith uses the given sugared logger instead of the global one.
func NewZapLoggerWith(log *zap.SugaredLogger) *ZapLogger {
	if log == nil {
		log = zap.NewNop().Sugar()
	}

	return &ZapLogger{log: log}
}

func (l *ZapLogger) LogError(kind models.ErrorKind, message string, code int) {
	metrics.IncLoggedError(kind.String())

	switch kind {
	case models.Device, models.DeviceBusy:
		sentry.ReportIssueWithContext(
			fmt.Errorf("%s: %s (code %d)", kind, message, code),
			sentry.IssueTypeError,
			l.log,
			map[string]interface{}{"kind": kind.String(), "code": code},
		)
	case models.Unknown, models.NullPointer:
		l.log.Infow(message, "kind", kind.String(), "code", code)
	default:
		l.log.Warnw(message, "kind", kind.String(), "code", code)
	}
}

// Entry is a single recorded LogError call.
type Entry struct {
	Message string
	Kind    models.ErrorKind
	Code    int
}

// RecordingLogger keeps every call in memory. Used in tests.
type RecordingLogger struct {
	entries []Entry
	mu      sync.Mutex
}

func NewRecordingLogger() *RecordingLogger {
	return &RecordingLogger{}
}

func (r *RecordingLogger) LogError(kind models.ErrorKind, message string, code int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries = append(r.entries, Entry{Kind: kind, Message: message, Code: code})
}

// Entries returns a copy of all recorded calls in order.
func (r *RecordingLogger) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]Entry(nil), r.entries...)
}

// Count returns how many calls were recorded for kind.
func (r *RecordingLogger) Count(kind models.ErrorKind) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for _, e := range r.entries {
		if e.Kind == kind {
			n++
		}
	}

	return n
}

func (r *RecordingLogger) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries = nil
}
