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

package recovery_test

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/united-manufacturing-hub/faultrecovery/pkg/models"
	"github.com/united-manufacturing-hub/faultrecovery/pkg/recovery"
)

// blockingRunner holds every run until release is closed.
type blockingRunner struct {
	started   chan models.ErrorKind
	release   chan struct{}
	calls     atomic.Int32
	active    atomic.Int32
	peak      atomic.Int32
	cancelled atomic.Int32
}

func newBlockingRunner() *blockingRunner {
	return &blockingRunner{
		started: make(chan models.ErrorKind, 16),
		release: make(chan struct{}),
	}
}

func (r *blockingRunner) Run(ctx context.Context, kind models.ErrorKind) models.RecoveryReport {
	r.calls.Add(1)
	n := r.active.Add(1)
	defer r.active.Add(-1)

	for {
		peak := r.peak.Load()
		if n <= peak || r.peak.CompareAndSwap(peak, n) {
			break
		}
	}

	r.started <- kind
	<-r.release

	outcome := models.Success
	if ctx.Err() != nil {
		r.cancelled.Add(1)
		outcome = models.Failed
	}

	return models.RecoveryReport{ID: uuid.NewString(), Kind: kind, Outcome: outcome}
}

var _ = Describe("Supervisor", func() {
	var (
		runner     *blockingRunner
		supervisor *recovery.Supervisor
		ctx        context.Context
	)

	BeforeEach(func() {
		runner = newBlockingRunner()
		supervisor = recovery.NewSupervisor(runner)
		ctx = context.Background()
	})

	It("should run different kinds one after another", func() {
		var wg sync.WaitGroup
		for _, kind := range []models.ErrorKind{models.Device, models.Memory, models.TextBusy} {
			wg.Add(1)
			go func() {
				defer GinkgoRecover()
				defer wg.Done()

				report, err := supervisor.Run(ctx, kind)
				Expect(err).ToNot(HaveOccurred())
				Expect(report.Kind).To(Equal(kind))
			}()
		}

		Eventually(runner.started).Should(Receive())
		Consistently(runner.started, 50*time.Millisecond).ShouldNot(Receive())

		close(runner.release)
		wg.Wait()

		Expect(runner.calls.Load()).To(Equal(int32(3)))
		Expect(runner.peak.Load()).To(Equal(int32(1)))
	})

	It("should share a running recovery of the same kind", func() {
		reports := make(chan models.RecoveryReport, 2)

		go func() {
			defer GinkgoRecover()
			report, err := supervisor.Run(ctx, models.Device)
			Expect(err).ToNot(HaveOccurred())
			reports <- report
		}()
		Eventually(runner.started).Should(Receive(Equal(models.Device)))

		go func() {
			defer GinkgoRecover()
			report, err := supervisor.Run(ctx, models.Device)
			Expect(err).ToNot(HaveOccurred())
			reports <- report
		}()

		// give the second caller time to join
		time.Sleep(50 * time.Millisecond)
		close(runner.release)

		var first, second models.RecoveryReport
		Eventually(reports).Should(Receive(&first))
		Eventually(reports).Should(Receive(&second))

		Expect(first.ID).To(Equal(second.ID))
		Expect(runner.calls.Load()).To(Equal(int32(1)))
	})

	It("should give up waiting when the caller's context ends", func() {
		go func() {
			defer GinkgoRecover()
			_, _ = supervisor.Run(ctx, models.Device)
		}()
		Eventually(runner.started).Should(Receive())

		waiting, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
		defer cancel()

		_, err := supervisor.Run(waiting, models.Memory)
		Expect(err).To(MatchError(context.DeadlineExceeded))

		waiting2, cancel2 := context.WithTimeout(ctx, 20*time.Millisecond)
		defer cancel2()
		Expect(supervisor.Recover(waiting2, models.TextBusy)).To(Equal(models.Failed))

		close(runner.release)
		Expect(runner.calls.Load()).To(Equal(int32(1)))
	})

	It("should keep a shared run going when the first caller leaves", func() {
		first, cancelFirst := context.WithCancel(ctx)
		defer cancelFirst()

		firstErr := make(chan error, 1)
		go func() {
			defer GinkgoRecover()
			_, err := supervisor.Run(first, models.Device)
			firstErr <- err
		}()
		Eventually(runner.started).Should(Receive(Equal(models.Device)))

		reports := make(chan models.RecoveryReport, 1)
		go func() {
			defer GinkgoRecover()
			report, err := supervisor.Run(ctx, models.Device)
			Expect(err).ToNot(HaveOccurred())
			reports <- report
		}()

		// give the second caller time to join
		time.Sleep(50 * time.Millisecond)

		cancelFirst()
		Eventually(firstErr).Should(Receive(MatchError(context.Canceled)))

		close(runner.release)

		var report models.RecoveryReport
		Eventually(reports).Should(Receive(&report))
		Expect(report.Outcome).To(Equal(models.Success))
		Expect(runner.calls.Load()).To(Equal(int32(1)))
		Expect(runner.cancelled.Load()).To(BeZero())
	})

	It("should cancel a run once every caller has left", func() {
		waiting, cancel := context.WithCancel(ctx)

		errs := make(chan error, 1)
		go func() {
			defer GinkgoRecover()
			_, err := supervisor.Run(waiting, models.Memory)
			errs <- err
		}()
		Eventually(runner.started).Should(Receive(Equal(models.Memory)))

		cancel()
		Eventually(errs).Should(Receive(MatchError(context.Canceled)))

		close(runner.release)
		Eventually(runner.cancelled.Load).Should(Equal(int32(1)))

		// a later caller starts a fresh run
		report, err := supervisor.Run(ctx, models.Memory)
		Expect(err).ToNot(HaveOccurred())
		Expect(report.Outcome).To(Equal(models.Success))
		Expect(runner.calls.Load()).To(Equal(int32(2)))
	})
})
