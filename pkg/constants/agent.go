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

package constants

import "time"

const (
	// DefaultMetricsPort exposes /metrics
	DefaultMetricsPort = 8080

	// DefaultAPIPort exposes the recovery trigger API
	DefaultAPIPort = 8081

	// ReportRetention is how long finished recovery reports stay queryable
	ReportRetention = 15 * time.Minute

	// ReportCullInterval is how often expired reports are dropped
	ReportCullInterval = time.Minute

	// ShutdownTimeout bounds graceful shutdown of the HTTP servers
	ShutdownTimeout = 3 * time.Second
)

const (
	// DefaultAppVersion is the version reported by local builds
	DefaultAppVersion = "0.0.0-dev"

	DefaultDevelopmentEnvironment = "development"
	DefaultProductionEnvironment  = "production"
)
