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

package api_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"

	"github.com/google/uuid"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/united-manufacturing-hub/faultrecovery/pkg/api"
	"github.com/united-manufacturing-hub/faultrecovery/pkg/models"
	"github.com/united-manufacturing-hub/faultrecovery/pkg/safejson"
)

type fakeRecoverer struct {
	err     error
	outcome models.Outcome
	kinds   []models.ErrorKind
	mu      sync.Mutex
}

func (f *fakeRecoverer) Run(_ context.Context, kind models.ErrorKind) (models.RecoveryReport, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.kinds = append(f.kinds, kind)
	if f.err != nil {
		return models.RecoveryReport{}, f.err
	}

	return models.RecoveryReport{
		ID:        uuid.NewString(),
		Kind:      kind,
		Outcome:   f.outcome,
		StartedAt: time.Now(),
		Duration:  time.Millisecond,
	}, nil
}

var _ = Describe("Server", func() {
	var (
		recoverer *fakeRecoverer
		handler   http.Handler
	)

	BeforeEach(func() {
		recoverer = &fakeRecoverer{outcome: models.Partial}
		handler = api.NewServer(recoverer, 0, nil).Handler()
	})

	do := func(method, path string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(method, path, nil))

		return rec
	}

	It("should answer health checks", func() {
		rec := do(http.MethodGet, "/healthz")
		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.String()).To(MatchJSON(`{"status":"ok"}`))
	})

	It("should run a recovery and keep its report", func() {
		rec := do(http.MethodPost, "/v1/recover/FILE_ACCESS_ERROR")
		Expect(rec.Code).To(Equal(http.StatusOK))

		var report models.RecoveryReport
		Expect(safejson.Unmarshal(rec.Body.Bytes(), &report)).To(Succeed())
		Expect(report.Kind).To(Equal(models.FileAccess))
		Expect(report.Outcome).To(Equal(models.Partial))
		Expect(recoverer.kinds).To(Equal([]models.ErrorKind{models.FileAccess}))

		rec = do(http.MethodGet, "/v1/recoveries/"+report.ID)
		Expect(rec.Code).To(Equal(http.StatusOK))

		var cached models.RecoveryReport
		Expect(safejson.Unmarshal(rec.Body.Bytes(), &cached)).To(Succeed())
		Expect(cached.ID).To(Equal(report.ID))

		rec = do(http.MethodGet, "/v1/recoveries")
		Expect(rec.Code).To(Equal(http.StatusOK))

		var all []models.RecoveryReport
		Expect(safejson.Unmarshal(rec.Body.Bytes(), &all)).To(Succeed())
		Expect(all).To(HaveLen(1))
	})

	It("should return failed outcomes with status 200", func() {
		recoverer.outcome = models.Failed

		rec := do(http.MethodPost, "/v1/recover/whatever")
		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.String()).To(ContainSubstring(`"outcome":"failed"`))
		Expect(recoverer.kinds).To(Equal([]models.ErrorKind{models.Unknown}))
	})

	It("should report runs that never started", func() {
		recoverer.err = context.DeadlineExceeded

		rec := do(http.MethodPost, "/v1/recover/device")
		Expect(rec.Code).To(Equal(http.StatusServiceUnavailable))
		Expect(rec.Body.String()).To(ContainSubstring("recovery not completed"))
	})

	It("should 404 unknown report ids", func() {
		Expect(do(http.MethodGet, "/v1/recoveries/"+uuid.NewString()).Code).To(Equal(http.StatusNotFound))
	})

	It("should serve prometheus metrics", func() {
		rec := do(http.MethodGet, "/metrics")
		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.String()).To(ContainSubstring("go_goroutines"))
	})

	It("should stop a running server cleanly", func() {
		srv := api.NewServer(recoverer, 0, nil)

		done := make(chan error, 1)
		go func() { done <- srv.Start() }()

		Expect(srv.Stop(context.Background())).To(Succeed())
		Eventually(done).Should(Receive(BeNil()))
	})
})
