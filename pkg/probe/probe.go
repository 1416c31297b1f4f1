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
	"errors"
	"fmt"

	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"
	"go.uber.org/zap"

	"github.com/united-manufacturing-hub/faultrecovery/pkg/constants"
	"github.com/united-manufacturing-hub/faultrecovery/pkg/logger"
	"github.com/united-manufacturing-hub/faultrecovery/pkg/models"
	"github.com/united-manufacturing-hub/faultrecovery/pkg/platform"
)

// Probe answers point-in-time questions about the resources a recovery
// routine depends on. Probes never mutate state beyond transient opens and
// mappings that are released before returning.
type Probe interface {
	// MemoryPressure is peak resident size divided by total system memory.
	MemoryPressure(ctx context.Context) float64

	// IsReachable stats path and opens it non-blocking read-only.
	IsReachable(ctx context.Context, path string) models.ProbeResult

	// LoadAverage returns the 1-minute load average. ok is false when the
	// platform cannot report it.
	LoadAverage(ctx context.Context) (avg float64, ok bool)

	// WithinBounds reports whether memory pressure is below the threshold.
	WithinBounds(ctx context.Context) models.ProbeResult

	// TestAllocate maps and releases n bytes.
	TestAllocate(ctx context.Context, n int) error
}

// TotalMemoryFunc returns the total system memory in bytes.
type TotalMemoryFunc func(ctx context.Context) (uint64, error)

// LoadAverageFunc returns the 1-minute load average.
type LoadAverageFunc func(ctx context.Context) (float64, error)

// SystemProbe implements Probe on top of a platform.Service and gopsutil.
type SystemProbe struct {
	platform    platform.Service
	totalMemory TotalMemoryFunc
	loadAverage LoadAverageFunc
	logger      *zap.SugaredLogger
	threshold   float64
}

type Option func(*SystemProbe)

// WithTotalMemory replaces the gopsutil memory source.
func WithTotalMemory(fn TotalMemoryFunc) Option {
	return func(p *SystemProbe) {
		if fn != nil {
			p.totalMemory = fn
		}
	}
}

// WithLoadAverage replaces the gopsutil load source.
func WithLoadAverage(fn LoadAverageFunc) Option {
	return func(p *SystemProbe) {
		if fn != nil {
			p.loadAverage = fn
		}
	}
}

// WithLogger sets the logger used for diagnostics.
func WithLogger(l *zap.SugaredLogger) Option {
	return func(p *SystemProbe) {
		if l != nil {
			p.logger = l
		}
	}
}

// NewSystemProbe creates a probe with the given memory threshold, a ratio in
// (0, 1].
func NewSystemProbe(svc platform.Service, memoryThreshold float64, opts ...Option) *SystemProbe {
	p := &SystemProbe{
		platform:    svc,
		threshold:   memoryThreshold,
		totalMemory: gopsutilTotalMemory,
		loadAverage: gopsutilLoadAverage,
		logger:      logger.For(logger.ComponentProbe),
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

func gopsutilTotalMemory(ctx context.Context) (uint64, error) {
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return 0, err
	}

	return vm.Total, nil
}

func gopsutilLoadAverage(ctx context.Context) (float64, error) {
	avg, err := load.AvgWithContext(ctx)
	if err != nil {
		return 0, err
	}

	return avg.Load1, nil
}

// Threshold is the memory pressure ratio WithinBounds compares against.
func (p *SystemProbe) Threshold() float64 {
	return p.threshold
}

func (p *SystemProbe) totalMemoryBytes(ctx context.Context) uint64 {
	total, err := p.totalMemory(ctx)
	if err != nil {
		p.logger.Debugf("Total memory unavailable, using default: %s", err)

		return constants.DefaultTotalMemoryBytes
	}
	if total == 0 {
		return constants.DefaultTotalMemoryBytes
	}

	return total
}

// MemoryPressure returns 1 when the peak resident size cannot be read, so an
// unreadable rusage counts as exhausted memory.
func (p *SystemProbe) MemoryPressure(ctx context.Context) float64 {
	pressure, err := p.pressure(ctx)
	if err != nil {
		p.logger.Warnf("Failed to read peak resident size: %s", err)

		return 1
	}

	return pressure
}

func (p *SystemProbe) pressure(ctx context.Context) (float64, error) {
	peak, err := p.platform.PeakResidentBytes(ctx)
	if err != nil {
		return 0, err
	}

	return float64(peak) / float64(p.totalMemoryBytes(ctx)), nil
}

func (p *SystemProbe) IsReachable(ctx context.Context, path string) models.ProbeResult {
	if path == "" {
		return models.ProbeResult{Detail: "empty path"}
	}

	if _, err := p.platform.Stat(ctx, path); err != nil {
		return models.ProbeResult{Detail: err.Error()}
	}

	if err := p.platform.TryOpen(ctx, path, platform.ReadOnly); err != nil {
		return models.ProbeResult{Detail: err.Error()}
	}

	return models.ProbeResult{OK: true, Detail: path}
}

func (p *SystemProbe) LoadAverage(ctx context.Context) (float64, bool) {
	avg, err := p.loadAverage(ctx)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			p.logger.Debugf("Load average unavailable: %s", err)
		}

		return 0, false
	}

	return avg, true
}

func (p *SystemProbe) WithinBounds(ctx context.Context) models.ProbeResult {
	pressure, err := p.pressure(ctx)
	if err != nil {
		p.logger.Warnf("Failed to read peak resident size: %s", err)

		return models.ProbeResult{Detail: fmt.Sprintf("peak resident size unavailable: %s", err)}
	}

	detail := fmt.Sprintf("memory pressure %.4f, threshold %.2f", pressure, p.threshold)

	return models.ProbeResult{OK: pressure < p.threshold, Detail: detail}
}

func (p *SystemProbe) TestAllocate(ctx context.Context, n int) error {
	return p.platform.TestAllocate(ctx, n)
}
