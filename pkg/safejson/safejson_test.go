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

package safejson_test

import (
	"bytes"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/united-manufacturing-hub/faultrecovery/pkg/models"
	"github.com/united-manufacturing-hub/faultrecovery/pkg/safejson"
)

var _ = Describe("safejson", func() {
	report := models.RecoveryReport{
		ID:       "6f1c1f8e-1f43-4a5b-9d7e-1b2f3c4d5e6f",
		Kind:     models.DeviceBusy,
		Outcome:  models.Partial,
		Duration: 4 * time.Second,
	}

	It("should encode kinds and outcomes by name", func() {
		encoded, err := safejson.Marshal(report)
		Expect(err).ToNot(HaveOccurred())
		Expect(string(encoded)).To(ContainSubstring(`"kind":"device_busy"`))
		Expect(string(encoded)).To(ContainSubstring(`"outcome":"partial"`))
	})

	It("should decode what it encoded", func() {
		encoded := `{"id":"abc","kind":"TXT_BUSY","outcome":"failed","duration":5}`

		var decoded models.RecoveryReport
		Expect(safejson.Unmarshal([]byte(encoded), &decoded)).To(Succeed())
		Expect(decoded.Kind).To(Equal(models.TextBusy))
		Expect(decoded.Outcome).To(Equal(models.Failed))
		Expect(decoded.ID).To(Equal("abc"))
	})

	It("should refuse a nil or non-pointer target", func() {
		var m map[string]interface{}
		Expect(safejson.Unmarshal([]byte(`{}`), m)).ToNot(Succeed())

		var p *models.RecoveryReport
		Expect(safejson.Unmarshal([]byte(`{}`), p)).ToNot(Succeed())
	})

	It("should report invalid json", func() {
		var decoded models.RecoveryReport
		Expect(safejson.Unmarshal([]byte(`{"id":`), &decoded)).ToNot(Succeed())
	})

	It("should write indented output with a trailing newline", func() {
		var buf bytes.Buffer
		Expect(safejson.WriteIndented(&buf, []models.RecoveryReport{report})).To(Succeed())
		Expect(buf.String()).To(HavePrefix("[\n  {"))
		Expect(buf.String()).To(HaveSuffix("]\n"))
	})

	It("should reject an unknown outcome", func() {
		var decoded models.RecoveryReport
		Expect(safejson.Unmarshal([]byte(`{"outcome":"maybe"}`), &decoded)).ToNot(Succeed())
	})
})
