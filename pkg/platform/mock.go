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
	"io/fs"
	"os"
	"strings"
	"sync"
	"syscall"
)

// MockService is an in-memory Service for tests. Default behaviour works on
// the exported state (existing paths, open descriptors, segments, scratch
// files); every method can be overridden through its Func field. All calls
// are counted per path.
type MockService struct {
	// Paths that open and stat successfully
	ExistingPaths map[string]bool
	// Errors returned by TryOpen/ResetDevice for specific paths, checked first
	OpenErrors  map[string]error
	ResetErrors map[string]error

	Descriptors  []int
	Segments     []int
	ScratchFiles []string

	PeakRSS           uint64
	PeakRSSErr        error
	AllocateErr       error
	ForceReleaseCount int
	ForceReleaseErr   error

	StatFunc                func(ctx context.Context, path string) (os.FileInfo, error)
	TryOpenFunc             func(ctx context.Context, path string, mode OpenMode) error
	ResetDeviceFunc         func(ctx context.Context, path string) error
	ForceReleaseFunc        func(ctx context.Context, path string) (int, error)
	CloseDescriptorsFunc    func(ctx context.Context, minFD, maxFD int) (int, error)
	ReleaseSharedMemoryFunc func(ctx context.Context) (int, error)
	RemoveScratchFilesFunc  func(ctx context.Context, dir, prefix string) (int, error)

	openCalls  map[string]int
	resetCalls map[string]int
	calls      map[string]int
	mu         sync.Mutex
}

func NewMockService() *MockService {
	return &MockService{
		ExistingPaths: make(map[string]bool),
		OpenErrors:    make(map[string]error),
		ResetErrors:   make(map[string]error),
		openCalls:     make(map[string]int),
		resetCalls:    make(map[string]int),
		calls:         make(map[string]int),
	}
}

// WithExistingPaths marks paths as present.
func (m *MockService) WithExistingPaths(paths ...string) *MockService {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, p := range paths {
		m.ExistingPaths[p] = true
	}

	return m
}

// SetExists adds or removes a path while a test is running.
func (m *MockService) SetExists(path string, exists bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.ExistingPaths[path] = exists
}

// SetOpenError makes TryOpen fail with err for path; nil clears it.
func (m *MockService) SetOpenError(path string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err == nil {
		delete(m.OpenErrors, path)

		return
	}
	m.OpenErrors[path] = err
}

func (m *MockService) record(method string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls[method]++
}

// Calls returns how often method was invoked.
func (m *MockService) Calls(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.calls[method]
}

// OpenCalls returns how often TryOpen was invoked for path.
func (m *MockService) OpenCalls(path string) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.openCalls[path]
}

// ResetCalls returns how often ResetDevice was invoked for path.
func (m *MockService) ResetCalls(path string) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.resetCalls[path]
}

// TotalCalls is the number of calls across all methods.
func (m *MockService) TotalCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	total := 0
	for _, n := range m.calls {
		total += n
	}

	return total
}

// openResult decides the default result of an open of path.
func (m *MockService) openResult(op, path string, overrides map[string]error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err, ok := overrides[path]; ok {
		return &os.PathError{Op: op, Path: path, Err: err}
	}
	if m.ExistingPaths[path] {
		return nil
	}

	return &os.PathError{Op: op, Path: path, Err: syscall.ENOENT}
}

func (m *MockService) Stat(ctx context.Context, path string) (os.FileInfo, error) {
	m.record("Stat")
	if m.StatFunc != nil {
		return m.StatFunc(ctx, path)
	}

	m.mu.Lock()
	exists := m.ExistingPaths[path]
	m.mu.Unlock()

	if !exists {
		return nil, &os.PathError{Op: "stat", Path: path, Err: fs.ErrNotExist}
	}

	return mockFileInfo{name: path}, nil
}

func (m *MockService) TryOpen(ctx context.Context, path string, mode OpenMode) error {
	m.record("TryOpen")
	m.mu.Lock()
	m.openCalls[path]++
	m.mu.Unlock()

	if m.TryOpenFunc != nil {
		return m.TryOpenFunc(ctx, path, mode)
	}

	return m.openResult("open", path, m.OpenErrors)
}

func (m *MockService) ResetDevice(ctx context.Context, path string) error {
	m.record("ResetDevice")
	m.mu.Lock()
	m.resetCalls[path]++
	m.mu.Unlock()

	if m.ResetDeviceFunc != nil {
		return m.ResetDeviceFunc(ctx, path)
	}

	return m.openResult("open", path, m.ResetErrors)
}

func (m *MockService) ForceRelease(ctx context.Context, path string) (int, error) {
	m.record("ForceRelease")
	if m.ForceReleaseFunc != nil {
		return m.ForceReleaseFunc(ctx, path)
	}

	return m.ForceReleaseCount, m.ForceReleaseErr
}

func (m *MockService) CloseDescriptors(ctx context.Context, minFD, maxFD int) (int, error) {
	m.record("CloseDescriptors")
	if m.CloseDescriptorsFunc != nil {
		return m.CloseDescriptorsFunc(ctx, minFD, maxFD)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var kept []int
	closed := 0
	for _, fd := range m.Descriptors {
		if fd >= minFD && fd < maxFD {
			closed++

			continue
		}
		kept = append(kept, fd)
	}
	m.Descriptors = kept

	return closed, nil
}

func (m *MockService) ReleaseSharedMemory(ctx context.Context) (int, error) {
	m.record("ReleaseSharedMemory")
	if m.ReleaseSharedMemoryFunc != nil {
		return m.ReleaseSharedMemoryFunc(ctx)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	released := len(m.Segments)
	m.Segments = nil

	return released, nil
}

func (m *MockService) RemoveScratchFiles(ctx context.Context, dir, prefix string) (int, error) {
	m.record("RemoveScratchFiles")
	if m.RemoveScratchFilesFunc != nil {
		return m.RemoveScratchFilesFunc(ctx, dir, prefix)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var kept []string
	removed := 0
	for _, name := range m.ScratchFiles {
		if strings.HasPrefix(name, prefix) {
			removed++

			continue
		}
		kept = append(kept, name)
	}
	m.ScratchFiles = kept

	return removed, nil
}

func (m *MockService) PeakResidentBytes(context.Context) (uint64, error) {
	m.record("PeakResidentBytes")

	m.mu.Lock()
	defer m.mu.Unlock()

	return m.PeakRSS, m.PeakRSSErr
}

func (m *MockService) TestAllocate(context.Context, int) error {
	m.record("TestAllocate")

	m.mu.Lock()
	defer m.mu.Unlock()

	return m.AllocateErr
}

type mockFileInfo struct {
	os.FileInfo
	name string
}

func (fi mockFileInfo) Name() string { return fi.name }
