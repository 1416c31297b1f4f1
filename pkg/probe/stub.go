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

package probe

import (
	"context"
	"sync"

	"github.com/united-manufacturing-hub/faultrecovery/pkg/models"
)

// StubProbe returns fixed answers and counts calls. Every answer can be
// replaced at runtime through its Func field.
type StubProbe struct {
	AllocateErr error
	// Reachable lists paths for which IsReachable succeeds
	Reachable map[string]bool

	MemoryPressureFunc func(ctx context.Context) float64
	LoadAverageFunc    func(ctx context.Context) (float64, bool)

	calls map[string]int

	Pressure  float64
	Threshold float64
	Load      float64
	LoadOK    bool

	mu sync.Mutex
}

// NewStubProbe returns a probe that reports an idle, healthy system.
func NewStubProbe() *StubProbe {
	return &StubProbe{
		Reachable: make(map[string]bool),
		calls:     make(map[string]int),
		Pressure:  0.1,
		Threshold: 0.9,
		Load:      0.1,
		LoadOK:    true,
	}
}

func (s *StubProbe) record(method string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls[method]++
}

// Calls returns how often method was invoked.
func (s *StubProbe) Calls(method string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.calls[method]
}

// TotalCalls is the number of calls across all methods.
func (s *StubProbe) TotalCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	total := 0
	for _, n := range s.calls {
		total += n
	}

	return total
}

func (s *StubProbe) MemoryPressure(ctx context.Context) float64 {
	s.record("MemoryPressure")
	if s.MemoryPressureFunc != nil {
		return s.MemoryPressureFunc(ctx)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.Pressure
}

func (s *StubProbe) IsReachable(_ context.Context, path string) models.ProbeResult {
	s.record("IsReachable")

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Reachable[path] {
		return models.ProbeResult{OK: true, Detail: path}
	}

	return models.ProbeResult{Detail: "unreachable: " + path}
}

func (s *StubProbe) LoadAverage(ctx context.Context) (float64, bool) {
	s.record("LoadAverage")
	if s.LoadAverageFunc != nil {
		return s.LoadAverageFunc(ctx)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.Load, s.LoadOK
}

func (s *StubProbe) WithinBounds(ctx context.Context) models.ProbeResult {
	s.record("WithinBounds")

	s.mu.Lock()
	pressure, threshold, fn := s.Pressure, s.Threshold, s.MemoryPressureFunc
	s.mu.Unlock()

	if fn != nil {
		pressure = fn(ctx)
	}

	return models.ProbeResult{OK: pressure < threshold}
}

func (s *StubProbe) TestAllocate(context.Context, int) error {
	s.record("TestAllocate")

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.AllocateErr
}
