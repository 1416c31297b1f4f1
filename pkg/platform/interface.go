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

package platform

import (
	"context"
	"errors"
	"os"
)

// ErrUnsupported is returned by operations the current OS cannot perform.
var ErrUnsupported = errors.New("operation not supported on this platform")

// OpenMode selects the access mode of a probing open. Probing opens are
// always non-blocking.
type OpenMode int

const (
	ReadOnly OpenMode = iota
	ReadWrite
)

func (m OpenMode) String() string {
	if m == ReadWrite {
		return "rw"
	}

	return "ro"
}

// Service is the narrow OS collaborator used by the probe and the reclaimer.
// Every method releases whatever it opened before returning.
type Service interface {
	// Stat returns file info for path
	Stat(ctx context.Context, path string) (os.FileInfo, error)

	// TryOpen opens path non-blocking with the given mode and closes it again.
	// The returned error keeps the errno (e.g. ETXTBSY, EBUSY, ENOENT).
	TryOpen(ctx context.Context, path string, mode OpenMode) error

	// ResetDevice opens a device read-write and toggles its exclusive mode.
	ResetDevice(ctx context.Context, path string) error

	// ForceRelease terminates other processes that hold path open and returns
	// how many were signalled.
	ForceRelease(ctx context.Context, path string) (int, error)

	// CloseDescriptors closes this process's descriptors in [minFD, maxFD)
	// except those owned by the Go runtime poller (its own descriptors and
	// sockets), and returns how many were closed.
	CloseDescriptors(ctx context.Context, minFD, maxFD int) (int, error)

	// ReleaseSharedMemory removes the SysV shared-memory segments created by
	// this process and returns how many were removed.
	ReleaseSharedMemory(ctx context.Context) (int, error)

	// RemoveScratchFiles deletes regular files in dir whose name starts with
	// prefix and returns how many were deleted.
	RemoveScratchFiles(ctx context.Context, dir, prefix string) (int, error)

	// PeakResidentBytes is the peak resident set size of this process.
	PeakResidentBytes(ctx context.Context) (uint64, error)

	// TestAllocate maps and unmaps n bytes of anonymous memory.
	TestAllocate(ctx context.Context, n int) error
}
