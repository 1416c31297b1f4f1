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

package metrics_test

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/united-manufacturing-hub/faultrecovery/pkg/metrics"
)

func counterValue(c prometheus.Counter) float64 {
	var m dto.Metric
	Expect(c.Write(&m)).To(Succeed())

	return m.GetCounter().GetValue()
}

var _ = Describe("Recovery metrics", func() {
	It("should count recovery runs per kind and outcome", func() {
		counter := metrics.RecoveriesCounter("metrics_test", "partial")
		before := counterValue(counter)

		metrics.RecordRecovery("metrics_test", "partial", 20*time.Millisecond)
		metrics.RecordRecovery("metrics_test", "partial", 30*time.Millisecond)

		Expect(counterValue(counter) - before).To(Equal(2.0))
	})

	It("should count reclaim runs", func() {
		before := counterValue(metrics.ReclaimRunsCounter())
		metrics.IncReclaimRun()
		Expect(counterValue(metrics.ReclaimRunsCounter()) - before).To(Equal(1.0))
	})

	It("should ignore non-positive reclaim counts", func() {
		Expect(func() { metrics.AddReclaimed("file", 0) }).ToNot(Panic())
	})
})
