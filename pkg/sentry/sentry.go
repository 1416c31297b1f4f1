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
	"strings"
	"sync/atomic"

	"github.com/Masterminds/semver/v3"
	"github.com/getsentry/sentry-go"
	"go.uber.org/zap"

	"github.com/united-manufacturing-hub/faultrecovery/pkg/constants"
)

var enabled atomic.Bool

// InitSentry configures the global sentry client. Reporting stays disabled for
// local builds (default version) and when no DSN is configured; the report
// functions then only log.
func InitSentry(appVersion string, dsn string) {
	if appVersion == "" || appVersion == constants.DefaultAppVersion {
		zap.S().Debug("Sentry disabled for local development build")

		return
	}

	if dsn == "" {
		zap.S().Debug("Sentry disabled, no DSN configured")

		return
	}

	environment := constants.DefaultDevelopmentEnvironment

	version, err := semver.NewVersion(appVersion)
	if err != nil {
		zap.S().Errorf("Failed to parse app version, using default environment (development): %s", err)
	} else if version.Prerelease() == "" {
		environment = constants.DefaultProductionEnvironment
	}

	err = sentry.Init(sentry.ClientOptions{
		Dsn:         dsn,
		Environment: environment,
		Release:     "faultrecovery@" + appVersion,
	})
	if err != nil {
		zap.S().Errorf("Failed to initialize Sentry: %s", err)

		return
	}

	enabled.Store(true)
}

// Enabled reports whether events are actually sent.
func Enabled() bool {
	return enabled.Load()
}

// issueTitle is the first phrase of the error message, capped for the sentry UI.
func issueTitle(err error) string {
	message := err.Error()

	if idx := strings.IndexAny(message, ".,:"); idx > 0 {
		message = message[:idx]
	}

	if len(message) > 100 {
		message = message[:97] + "..."
	}

	return message
}

func createSentryEvent(level sentry.Level, err error, context map[string]interface{}) *sentry.Event {
	event := sentry.NewEvent()
	event.Level = level
	event.Message = err.Error()
	event.Exception = []sentry.Exception{{
		Type:       issueTitle(err),
		Value:      err.Error(),
		Stacktrace: sentry.ExtractStacktrace(err),
	}}
	event.Fingerprint = []string{"{{ default }}", "level: " + string(level)}

	for key, value := range context {
		switch v := value.(type) {
		case string:
			if event.Tags == nil {
				event.Tags = make(map[string]string)
			}
			event.Tags[key] = v
		case fmt.Stringer:
			if event.Tags == nil {
				event.Tags = make(map[string]string)
			}
			event.Tags[key] = v.String()
		default:
			if event.Extra == nil {
				event.Extra = make(map[string]interface{})
			}
			event.Extra[key] = v
		}

		// Group by error kind so that different recovery routines do not merge
		if key == "kind" {
			event.Fingerprint = append(event.Fingerprint, fmt.Sprintf("kind: %v", value))
		}
	}

	return event
}

func sendSentryEvent(event *sentry.Event) {
	if !Enabled() {
		return
	}

	sentry.CaptureEvent(event)
}
