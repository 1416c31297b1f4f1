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
	// Retry budget used when the configuration does not override it
	DefaultMaxAttempts = 3
	DefaultRetryDelay  = 2 * time.Second

	// BusyDelayMultiplier scales the retry delay for contended resources
	BusyDelayMultiplier = 2
)

const (
	// MemoryPressureThreshold is the peak-RSS / total-memory ratio above which
	// the system is considered constrained
	MemoryPressureThreshold = 0.9

	// BusyLoadThreshold is the 1-minute load average below which a busy device
	// is assumed to have calmed down
	BusyLoadThreshold = 0.8

	// DefaultTotalMemoryBytes is used when the platform cannot report total memory
	DefaultTotalMemoryBytes uint64 = 8 * 1024 * 1024 * 1024

	// TestAllocationBytes is the size of the probe allocation after a memory reclaim
	TestAllocationBytes = 1024
)

const (
	// DataMountPath is where persistent state of the agent lives
	DataMountPath = "/data"

	// DefaultConfigPath is read when CONFIG_PATH is not set
	DefaultConfigPath = DataMountPath + "/recovery.yaml"

	DefaultFilePath       = DataMountPath + "/recovery/primary.dat"
	DefaultBackupSuffix   = ".backup"
	DefaultTextBusyPath   = "example.lock"
	DefaultBusyDevicePath = "/dev/busy_device"
)

// DefaultDevicePaths are the device candidates, highest priority first
var DefaultDevicePaths = []string{"/dev/tty0", "/dev/null", "/dev/zero"}

const (
	// DefaultScratchPrefix is the file name prefix of our own scratch files
	DefaultScratchPrefix = "error_handler_"

	// MinReclaimableFD is the first descriptor the reclaimer may close (stdin,
	// stdout and stderr are kept)
	MinReclaimableFD = 3

	// MaxReclaimableFD is the upper bound of the descriptor sweep
	MaxReclaimableFD = 1024
)
