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

package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/tiendc/go-deepcopy"

	"github.com/united-manufacturing-hub/faultrecovery/pkg/constants"
)

type FullConfig struct {
	Agent    AgentConfig    `yaml:"agent"`    // Process-level settings, require a restart
	Recovery RecoveryConfig `yaml:"recovery"` // Recovery routines, read once per dispatcher
}

type AgentConfig struct {
	MetricsPort int    `yaml:"metricsPort"`         // Port to expose metrics on
	APIPort     int    `yaml:"apiPort"`             // Port of the recovery trigger API
	SentryDSN   string `yaml:"sentryDsn,omitempty"` // Empty disables error reporting
}

// RecoveryConfig holds every path and threshold the recovery routines use.
// Nothing in the routines is hardcoded.
type RecoveryConfig struct {
	// Retry budget shared by all routines
	MaxAttempts int           `yaml:"maxAttempts"`
	RetryDelay  time.Duration `yaml:"retryDelay"`

	MemoryThreshold     float64 `yaml:"memoryThreshold"`
	BusyLoadThreshold   float64 `yaml:"busyLoadThreshold"`
	TestAllocationBytes int     `yaml:"testAllocationBytes"`

	FilePath       string   `yaml:"filePath"`
	BackupSuffix   string   `yaml:"backupSuffix"`
	TextBusyPath   string   `yaml:"textBusyPath"`
	DevicePaths    []string `yaml:"devicePaths"`
	BusyDevicePath string   `yaml:"busyDevicePath,omitempty"` // Empty skips force-release

	Reclaim ReclaimConfig `yaml:"reclaim"`
}

type ReclaimConfig struct {
	ScratchDir       string `yaml:"scratchDir,omitempty"` // Defaults to os.TempDir()
	ScratchPrefix    string `yaml:"scratchPrefix"`
	MinDescriptor    int    `yaml:"minDescriptor"`
	MaxDescriptor    int    `yaml:"maxDescriptor"`
	CloseDescriptors bool   `yaml:"closeDescriptors"`
	ReleaseShm       bool   `yaml:"releaseSharedMemory"`
	RemoveScratch    bool   `yaml:"removeScratchFiles"`
}

// Default returns the configuration used when no file is present.
func Default() FullConfig {
	return FullConfig{
		Agent: AgentConfig{
			MetricsPort: constants.DefaultMetricsPort,
			APIPort:     constants.DefaultAPIPort,
		},
		Recovery: RecoveryConfig{
			MaxAttempts:         constants.DefaultMaxAttempts,
			RetryDelay:          constants.DefaultRetryDelay,
			MemoryThreshold:     constants.MemoryPressureThreshold,
			BusyLoadThreshold:   constants.BusyLoadThreshold,
			TestAllocationBytes: constants.TestAllocationBytes,
			FilePath:            constants.DefaultFilePath,
			BackupSuffix:        constants.DefaultBackupSuffix,
			TextBusyPath:        constants.DefaultTextBusyPath,
			DevicePaths:         append([]string(nil), constants.DefaultDevicePaths...),
			BusyDevicePath:      constants.DefaultBusyDevicePath,
			Reclaim: ReclaimConfig{
				ScratchPrefix:    constants.DefaultScratchPrefix,
				MinDescriptor:    constants.MinReclaimableFD,
				MaxDescriptor:    constants.MaxReclaimableFD,
				CloseDescriptors: true,
				ReleaseShm:       true,
				RemoveScratch:    true,
			},
		},
	}
}

// BackupPath is the degraded alternative of FilePath.
func (r RecoveryConfig) BackupPath() string {
	return r.FilePath + r.BackupSuffix
}

// Validate reports every invalid field at once.
func (c FullConfig) Validate() error {
	var errs []error

	r := c.Recovery
	if r.MaxAttempts <= 0 {
		errs = append(errs, fmt.Errorf("recovery.maxAttempts must be positive, got %d", r.MaxAttempts))
	}
	if r.RetryDelay < 0 {
		errs = append(errs, fmt.Errorf("recovery.retryDelay must not be negative, got %s", r.RetryDelay))
	}
	if r.MemoryThreshold <= 0 {
		errs = append(errs, fmt.Errorf("recovery.memoryThreshold must be positive, got %v", r.MemoryThreshold))
	}
	if r.BusyLoadThreshold <= 0 {
		errs = append(errs, fmt.Errorf("recovery.busyLoadThreshold must be positive, got %v", r.BusyLoadThreshold))
	}
	if r.TestAllocationBytes <= 0 {
		errs = append(errs, fmt.Errorf("recovery.testAllocationBytes must be positive, got %d", r.TestAllocationBytes))
	}
	if r.FilePath == "" {
		errs = append(errs, errors.New("recovery.filePath must be set"))
	}
	if r.BackupSuffix == "" {
		errs = append(errs, errors.New("recovery.backupSuffix must be set, otherwise the backup is the primary file"))
	}
	if r.TextBusyPath == "" {
		errs = append(errs, errors.New("recovery.textBusyPath must be set"))
	}
	if len(r.DevicePaths) == 0 {
		errs = append(errs, errors.New("recovery.devicePaths must list at least one device"))
	}
	if r.Reclaim.ScratchPrefix == "" && r.Reclaim.RemoveScratch {
		errs = append(errs, errors.New("recovery.reclaim.scratchPrefix must be set when removeScratchFiles is enabled"))
	}
	if r.Reclaim.MinDescriptor < constants.MinReclaimableFD {
		errs = append(errs, fmt.Errorf("recovery.reclaim.minDescriptor must be at least %d", constants.MinReclaimableFD))
	}
	if r.Reclaim.MaxDescriptor < r.Reclaim.MinDescriptor {
		errs = append(errs, errors.New("recovery.reclaim.maxDescriptor must not be below minDescriptor"))
	}

	return errors.Join(errs...)
}

// Clone creates a deep copy of FullConfig.
func (c FullConfig) Clone() FullConfig {
	var clone FullConfig
	_ = deepcopy.Copy(&clone, &c)

	return clone
}
