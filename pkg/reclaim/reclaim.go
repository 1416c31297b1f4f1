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

package reclaim

import (
	"context"
	"fmt"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/united-manufacturing-hub/faultrecovery/pkg/config"
	"github.com/united-manufacturing-hub/faultrecovery/pkg/errorhandling"
	"github.com/united-manufacturing-hub/faultrecovery/pkg/logger"
	"github.com/united-manufacturing-hub/faultrecovery/pkg/metrics"
	"github.com/united-manufacturing-hub/faultrecovery/pkg/models"
	"github.com/united-manufacturing-hub/faultrecovery/pkg/platform"
)

// CleanupMessage is passed to the error log after every reclaim run.
const CleanupMessage = "System resources cleanup performed"

// Summary counts what a single Reclaim call released.
type Summary struct {
	Descriptors int
	Segments    int
	Files       int
	// Errors is the number of steps that failed
	Errors int
}

// Total is the number of released resources.
func (s Summary) Total() int {
	return s.Descriptors + s.Segments + s.Files
}

func (s Summary) String() string {
	return fmt.Sprintf("descriptors=%d segments=%d files=%d errors=%d", s.Descriptors, s.Segments, s.Files, s.Errors)
}

// Reclaimer releases process-wide resources. It is destructive by nature and
// must not run concurrently with itself; callers serialize.
type Reclaimer struct {
	platform platform.Service
	errorLog errorhandling.Logger
	logger   *zap.SugaredLogger
	cfg      config.ReclaimConfig
	runs     atomic.Int64
}

func NewReclaimer(svc platform.Service, cfg config.ReclaimConfig, errorLog errorhandling.Logger) *Reclaimer {
	return &Reclaimer{
		platform: svc,
		cfg:      cfg,
		errorLog: errorLog,
		logger:   logger.For(logger.ComponentReclaimer),
	}
}

// Runs returns how often Reclaim was called.
func (r *Reclaimer) Runs() int {
	return int(r.runs.Load())
}

// Reclaim closes our non-standard descriptors, removes the shared memory
// segments we created and deletes our scratch files. Step failures are
// logged and skipped; Reclaim itself never fails.
func (r *Reclaimer) Reclaim(ctx context.Context) Summary {
	r.runs.Add(1)
	metrics.IncReclaimRun()

	var summary Summary

	if r.cfg.CloseDescriptors {
		summary.Descriptors = r.step(ctx, &summary, "descriptors", "descriptor", func(ctx context.Context) (int, error) {
			return r.platform.CloseDescriptors(ctx, r.cfg.MinDescriptor, r.cfg.MaxDescriptor)
		})
	}

	if r.cfg.ReleaseShm {
		summary.Segments = r.step(ctx, &summary, "shared_memory", "segment", r.platform.ReleaseSharedMemory)
	}

	if r.cfg.RemoveScratch {
		summary.Files = r.step(ctx, &summary, "scratch_files", "file", func(ctx context.Context) (int, error) {
			return r.platform.RemoveScratchFiles(ctx, r.cfg.ScratchDir, r.cfg.ScratchPrefix)
		})
	}

	r.logger.Infof("Reclaimed system resources: %s", summary)

	if r.errorLog != nil {
		r.errorLog.LogError(models.Unknown, CleanupMessage, 0)
	}

	return summary
}

// step runs one cleanup step. A step that fails part way still reports what
// it released before the failure.
func (r *Reclaimer) step(ctx context.Context, summary *Summary, name, resource string, fn func(context.Context) (int, error)) int {
	n, err := fn(ctx)
	if err != nil {
		summary.Errors++
		metrics.IncReclaimStepError(name)
		r.logger.Warnf("Reclaim step %s failed: %s", name, err)
	}

	metrics.AddReclaimed(resource, n)

	return n
}
