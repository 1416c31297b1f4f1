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

package reclaim_test

import (
	"context"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/united-manufacturing-hub/faultrecovery/pkg/config"
	"github.com/united-manufacturing-hub/faultrecovery/pkg/errorhandling"
	"github.com/united-manufacturing-hub/faultrecovery/pkg/metrics"
	"github.com/united-manufacturing-hub/faultrecovery/pkg/models"
	"github.com/united-manufacturing-hub/faultrecovery/pkg/platform"
	"github.com/united-manufacturing-hub/faultrecovery/pkg/reclaim"
)

func counterValue(c prometheus.Counter) float64 {
	var m dto.Metric
	Expect(c.Write(&m)).To(Succeed())

	return m.GetCounter().GetValue()
}

var _ = Describe("Reclaimer", func() {
	var (
		ctx       context.Context
		mock      *platform.MockService
		errorLog  *errorhandling.RecordingLogger
		cfg       config.ReclaimConfig
		reclaimer *reclaim.Reclaimer
	)

	BeforeEach(func() {
		ctx = context.Background()
		mock = platform.NewMockService()
		mock.Descriptors = []int{0, 1, 2, 3, 4, 17}
		mock.Segments = []int{100, 101}
		mock.ScratchFiles = []string{"error_handler_a", "error_handler_b", "unrelated"}

		errorLog = errorhandling.NewRecordingLogger()
		cfg = config.Default().Recovery.Reclaim
		reclaimer = reclaim.NewReclaimer(mock, cfg, errorLog)
	})

	It("should release every resource class and log the cleanup", func() {
		summary := reclaimer.Reclaim(ctx)

		Expect(summary).To(Equal(reclaim.Summary{Descriptors: 3, Segments: 2, Files: 2}))
		Expect(mock.Descriptors).To(Equal([]int{0, 1, 2}))
		Expect(errorLog.Entries()).To(ConsistOf(errorhandling.Entry{
			Kind:    models.Unknown,
			Message: reclaim.CleanupMessage,
			Code:    0,
		}))
	})

	It("should be idempotent", func() {
		reclaimer.Reclaim(ctx)
		descriptors := append([]int(nil), mock.Descriptors...)
		files := append([]string(nil), mock.ScratchFiles...)

		second := reclaimer.Reclaim(ctx)

		Expect(second.Total()).To(BeZero())
		Expect(second.Errors).To(BeZero())
		Expect(mock.Descriptors).To(Equal(descriptors))
		Expect(mock.ScratchFiles).To(Equal(files))
		Expect(reclaimer.Runs()).To(Equal(2))
	})

	It("should swallow step errors and keep going", func() {
		mock.CloseDescriptorsFunc = func(context.Context, int, int) (int, error) {
			return 1, errors.New("EBADF")
		}
		mock.ReleaseSharedMemoryFunc = func(context.Context) (int, error) {
			return 0, errors.New("ipc not available")
		}

		summary := reclaimer.Reclaim(ctx)

		Expect(summary.Errors).To(Equal(2))
		Expect(summary.Descriptors).To(Equal(1))
		Expect(summary.Files).To(Equal(2))
		Expect(errorLog.Count(models.Unknown)).To(Equal(1))
	})

	It("should skip disabled steps", func() {
		cfg.CloseDescriptors = false
		cfg.ReleaseShm = false
		reclaimer = reclaim.NewReclaimer(mock, cfg, errorLog)

		summary := reclaimer.Reclaim(ctx)

		Expect(summary.Files).To(Equal(2))
		Expect(mock.Calls("CloseDescriptors")).To(BeZero())
		Expect(mock.Calls("ReleaseSharedMemory")).To(BeZero())
	})

	It("should pass the configured sweep range and scratch location", func() {
		cfg.MinDescriptor = 10
		cfg.MaxDescriptor = 20
		cfg.ScratchDir = "/var/tmp"
		reclaimer = reclaim.NewReclaimer(mock, cfg, errorLog)

		var gotMin, gotMax int
		var gotDir string
		mock.CloseDescriptorsFunc = func(_ context.Context, minFD, maxFD int) (int, error) {
			gotMin, gotMax = minFD, maxFD

			return 0, nil
		}
		mock.RemoveScratchFilesFunc = func(_ context.Context, dir, _ string) (int, error) {
			gotDir = dir

			return 0, nil
		}

		reclaimer.Reclaim(ctx)

		Expect(gotMin).To(Equal(10))
		Expect(gotMax).To(Equal(20))
		Expect(gotDir).To(Equal("/var/tmp"))
	})

	It("should count runs in prometheus", func() {
		before := counterValue(metrics.ReclaimRunsCounter())
		reclaimer.Reclaim(ctx)
		Expect(counterValue(metrics.ReclaimRunsCounter())).To(Equal(before + 1))
	})
})
