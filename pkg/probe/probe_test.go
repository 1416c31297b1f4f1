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

package probe_test

import (
	"context"
	"errors"
	"syscall"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/united-manufacturing-hub/faultrecovery/pkg/constants"
	"github.com/united-manufacturing-hub/faultrecovery/pkg/platform"
	"github.com/united-manufacturing-hub/faultrecovery/pkg/probe"
)

const gib = uint64(1 << 30)

func fixedTotal(total uint64, err error) probe.TotalMemoryFunc {
	return func(context.Context) (uint64, error) { return total, err }
}

var _ = Describe("SystemProbe", func() {
	var (
		ctx  context.Context
		mock *platform.MockService
	)

	BeforeEach(func() {
		ctx = context.Background()
		mock = platform.NewMockService()
	})

	Describe("MemoryPressure", func() {
		It("should divide peak resident size by total memory", func() {
			mock.PeakRSS = gib
			p := probe.NewSystemProbe(mock, 0.9, probe.WithTotalMemory(fixedTotal(4*gib, nil)))

			Expect(p.MemoryPressure(ctx)).To(BeNumerically("~", 0.25, 1e-9))
		})

		It("should fall back to the default total when the source fails or reports zero", func() {
			mock.PeakRSS = constants.DefaultTotalMemoryBytes / 2

			failing := probe.NewSystemProbe(mock, 0.9, probe.WithTotalMemory(fixedTotal(0, errors.New("no meminfo"))))
			Expect(failing.MemoryPressure(ctx)).To(BeNumerically("~", 0.5, 1e-9))

			zero := probe.NewSystemProbe(mock, 0.9, probe.WithTotalMemory(fixedTotal(0, nil)))
			Expect(zero.MemoryPressure(ctx)).To(BeNumerically("~", 0.5, 1e-9))
		})

		It("should report full pressure when rusage is unavailable", func() {
			mock.PeakRSSErr = errors.New("getrusage failed")
			p := probe.NewSystemProbe(mock, 0.9, probe.WithTotalMemory(fixedTotal(gib, nil)))

			Expect(p.MemoryPressure(ctx)).To(Equal(1.0))
		})
	})

	Describe("WithinBounds", func() {
		It("should compare pressure against the threshold", func() {
			p := probe.NewSystemProbe(mock, 0.5, probe.WithTotalMemory(fixedTotal(10*gib, nil)))

			mock.PeakRSS = 4 * gib
			Expect(p.WithinBounds(ctx).OK).To(BeTrue())

			mock.PeakRSS = 5 * gib
			res := p.WithinBounds(ctx)
			Expect(res.OK).To(BeFalse())
			Expect(res.Detail).To(ContainSubstring("threshold 0.50"))
		})

		It("should fail when rusage is unavailable", func() {
			mock.PeakRSSErr = errors.New("getrusage failed")
			p := probe.NewSystemProbe(mock, 0.9, probe.WithTotalMemory(fixedTotal(gib, nil)))

			res := p.WithinBounds(ctx)
			Expect(res.OK).To(BeFalse())
			Expect(res.Detail).To(ContainSubstring("peak resident size unavailable"))
		})
	})

	Describe("IsReachable", func() {
		It("should stat and open the path", func() {
			mock.WithExistingPaths("/dev/null")
			p := probe.NewSystemProbe(mock, 0.9)

			Expect(p.IsReachable(ctx, "/dev/null").OK).To(BeTrue())
			Expect(mock.Calls("Stat")).To(Equal(1))
			Expect(mock.OpenCalls("/dev/null")).To(Equal(1))
		})

		It("should not open a path that does not stat", func() {
			p := probe.NewSystemProbe(mock, 0.9)

			res := p.IsReachable(ctx, "/dev/tty0")
			Expect(res.OK).To(BeFalse())
			Expect(mock.OpenCalls("/dev/tty0")).To(BeZero())
		})

		It("should fail when the open fails", func() {
			mock.WithExistingPaths("/dev/tty0")
			mock.SetOpenError("/dev/tty0", syscall.EACCES)
			p := probe.NewSystemProbe(mock, 0.9)

			res := p.IsReachable(ctx, "/dev/tty0")
			Expect(res.OK).To(BeFalse())
			Expect(res.Detail).To(ContainSubstring("permission denied"))
		})
	})

	Describe("LoadAverage", func() {
		It("should report unavailable load as not ok", func() {
			p := probe.NewSystemProbe(mock, 0.9, probe.WithLoadAverage(func(context.Context) (float64, error) {
				return 0, errors.New("not implemented yet")
			}))

			_, ok := p.LoadAverage(ctx)
			Expect(ok).To(BeFalse())
		})

		It("should pass through the 1-minute average", func() {
			p := probe.NewSystemProbe(mock, 0.9, probe.WithLoadAverage(func(context.Context) (float64, error) {
				return 0.42, nil
			}))

			avg, ok := p.LoadAverage(ctx)
			Expect(ok).To(BeTrue())
			Expect(avg).To(Equal(0.42))
		})
	})

	It("should delegate test allocations to the platform", func() {
		mock.AllocateErr = syscall.ENOMEM
		p := probe.NewSystemProbe(mock, 0.9)

		Expect(p.TestAllocate(ctx, constants.TestAllocationBytes)).To(MatchError(syscall.ENOMEM))
		Expect(mock.Calls("TestAllocate")).To(Equal(1))
	})
})

var _ = Describe("StubProbe", func() {
	It("should answer from its fields and count calls", func() {
		ctx := context.Background()
		stub := probe.NewStubProbe()
		stub.Reachable["/dev/null"] = true

		Expect(stub.IsReachable(ctx, "/dev/null").OK).To(BeTrue())
		Expect(stub.IsReachable(ctx, "/dev/tty0").OK).To(BeFalse())
		Expect(stub.WithinBounds(ctx).OK).To(BeTrue())

		stub.Pressure = 0.95
		Expect(stub.WithinBounds(ctx).OK).To(BeFalse())
		Expect(stub.Calls("IsReachable")).To(Equal(2))
		Expect(stub.TotalCalls()).To(Equal(4))
	})
})
