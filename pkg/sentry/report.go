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

package sentry

import (
	"fmt"
	"sync"
	"time"

	"github.com/getsentry/sentry-go"
	"go.uber.org/zap"
)

type IssueType string

const (
	IssueTypeWarning IssueType = "warning"
	IssueTypeError   IssueType = "error"
	IssueTypeFatal   IssueType = "fatal"
)

// DebounceInterval suppresses repeated events with the same title.
const DebounceInterval = 2 * time.Hour

var (
	lastSent   = make(map[string]time.Time)
	lastSentMu sync.Mutex
)

// shouldSend records the event title and reports whether it is outside the
// debounce window. Fatal issues are never debounced.
func shouldSend(issueType IssueType, err error) bool {
	if issueType == IssueTypeFatal {
		return true
	}

	lastSentMu.Lock()
	defer lastSentMu.Unlock()

	key := string(issueType) + ":" + issueTitle(err)
	if sent, ok := lastSent[key]; ok && time.Since(sent) < DebounceInterval {
		return false
	}
	lastSent[key] = time.Now()

	return true
}

func ReportIssue(err error, issueType IssueType, log *zap.SugaredLogger) {
	ReportIssueWithContext(err, issueType, log, nil)
}

func ReportIssuef(issueType IssueType, log *zap.SugaredLogger, template string, args ...interface{}) {
	ReportIssue(fmt.Errorf(template, args...), issueType, log)
}

// ReportIssueWithContext always logs err and forwards it to sentry (with the
// context as tags) unless the same issue was sent recently.
func ReportIssueWithContext(err error, issueType IssueType, log *zap.SugaredLogger, context map[string]interface{}) {
	if err == nil {
		return
	}

	if log == nil {
		log = zap.NewNop().Sugar()
	}

	level := sentry.LevelError

	switch issueType {
	case IssueTypeFatal:
		level = sentry.LevelFatal
		log.Errorf("Fatal: %s", err)
	case IssueTypeWarning:
		level = sentry.LevelWarning
		log.Warn(err)
	default:
		log.Error(err)
	}

	if !shouldSend(issueType, err) {
		return
	}

	sendSentryEvent(createSentryEvent(level, err, context))

	if issueType == IssueTypeFatal && Enabled() {
		sentry.Flush(5 * time.Second)
	}
}

// ReportRecoveryFailure reports that a recovery routine gave up.
func ReportRecoveryFailure(log *zap.SugaredLogger, kind fmt.Stringer, runID string, err error) {
	ReportIssueWithContext(err, IssueTypeError, log, map[string]interface{}{
		"kind":   kind,
		"run_id": runID,
	})
}
