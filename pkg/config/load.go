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
	"io/fs"
	"os"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/united-manufacturing-hub/faultrecovery/pkg/env"
)

// Load builds the effective configuration. Precedence, highest first:
//
//  1. environment variables (see applyEnvOverrides)
//  2. the YAML file at path, if it exists
//  3. Default()
//
// A missing file is not an error. The result is validated.
func Load(path string, log *zap.SugaredLogger) (FullConfig, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		log.Infof("No config file at %s, using defaults", path)
	case err != nil:
		return FullConfig{}, fmt.Errorf("failed to read config file %s: %w", path, err)
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return FullConfig{}, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	cfg = applyEnvOverrides(cfg, log)

	if err := cfg.Validate(); err != nil {
		return FullConfig{}, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Marshal renders the configuration as YAML, e.g. for a first-run config file.
func Marshal(cfg FullConfig) ([]byte, error) {
	return yaml.Marshal(cfg)
}

func applyEnvOverrides(cfg FullConfig, log *zap.SugaredLogger) FullConfig {
	out := cfg.Clone()
	warn := func(err error) {
		if err != nil {
			log.Warnf("Ignoring environment override: %s", err)
		}
	}

	var err error

	out.Agent.MetricsPort, err = env.GetAsInt("METRICS_PORT", false, out.Agent.MetricsPort)
	warn(err)
	out.Agent.APIPort, err = env.GetAsInt("API_PORT", false, out.Agent.APIPort)
	warn(err)
	out.Agent.SentryDSN, err = env.GetAsString("SENTRY_DSN", false, out.Agent.SentryDSN)
	warn(err)

	r := &out.Recovery
	r.MaxAttempts, err = env.GetAsInt("RECOVERY_MAX_ATTEMPTS", false, r.MaxAttempts)
	warn(err)
	r.RetryDelay, err = env.GetAsDuration("RECOVERY_RETRY_DELAY", false, r.RetryDelay)
	warn(err)
	r.MemoryThreshold, err = env.GetAsFloat("RECOVERY_MEMORY_THRESHOLD", false, r.MemoryThreshold)
	warn(err)
	r.BusyLoadThreshold, err = env.GetAsFloat("RECOVERY_BUSY_LOAD_THRESHOLD", false, r.BusyLoadThreshold)
	warn(err)
	r.FilePath, err = env.GetAsString("RECOVERY_FILE_PATH", false, r.FilePath)
	warn(err)
	r.BackupSuffix, err = env.GetAsString("RECOVERY_BACKUP_SUFFIX", false, r.BackupSuffix)
	warn(err)
	r.TextBusyPath, err = env.GetAsString("RECOVERY_TEXT_BUSY_PATH", false, r.TextBusyPath)
	warn(err)
	r.DevicePaths, err = env.GetAsStringSlice("RECOVERY_DEVICE_PATHS", false, r.DevicePaths)
	warn(err)
	r.BusyDevicePath, err = env.GetAsString("RECOVERY_BUSY_DEVICE_PATH", false, r.BusyDevicePath)
	warn(err)
	r.Reclaim.ScratchDir, err = env.GetAsString("RECOVERY_SCRATCH_DIR", false, r.Reclaim.ScratchDir)
	warn(err)
	r.Reclaim.ScratchPrefix, err = env.GetAsString("RECOVERY_SCRATCH_PREFIX", false, r.Reclaim.ScratchPrefix)
	warn(err)
	r.Reclaim.CloseDescriptors, err = env.GetAsBool("RECOVERY_CLOSE_DESCRIPTORS", false, r.Reclaim.CloseDescriptors)
	warn(err)

	return out
}
