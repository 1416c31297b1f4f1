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

package models_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/united-manufacturing-hub/faultrecovery/pkg/models"
)

var _ = Describe("ErrorKind", func() {
	DescribeTable("ParseErrorKind",
		func(input string, expected models.ErrorKind) {
			Expect(models.ParseErrorKind(input)).To(Equal(expected))
		},
		Entry("canonical name", "device_busy", models.DeviceBusy),
		Entry("upper case", "FILE_ACCESS", models.FileAccess),
		Entry("dashes", "null-pointer", models.NullPointer),
		Entry("legacy name", "MEMORY_ERROR", models.Memory),
		Entry("legacy text busy", "TXT_BUSY", models.TextBusy),
		Entry("surrounding space", "  device ", models.Device),
		Entry("unrecognized", "disk_full", models.Unknown),
		Entry("empty", "", models.Unknown),
	)

	It("should round-trip every classified kind through its name", func() {
		for _, kind := range models.AllErrorKinds() {
			Expect(kind.IsClassified()).To(BeTrue())
			Expect(models.ParseErrorKind(kind.String())).To(Equal(kind))
		}
	})

	It("should not classify Unknown or out-of-range values", func() {
		Expect(models.Unknown.IsClassified()).To(BeFalse())
		Expect(models.ErrorKind(99).IsClassified()).To(BeFalse())
		Expect(models.ErrorKind(99).String()).To(Equal("ErrorKind(99)"))
	})
})

var _ = Describe("Outcome", func() {
	It("should use the report wording", func() {
		Expect(models.Success.String()).To(Equal("successful"))
		Expect(models.Partial.String()).To(Equal("partial"))
		Expect(models.Failed.String()).To(Equal("failed"))
	})

	It("should default to Failed", func() {
		var outcome models.Outcome
		Expect(outcome).To(Equal(models.Failed))
	})

	It("should reject unknown text", func() {
		var outcome models.Outcome
		Expect(outcome.UnmarshalText([]byte("successful"))).To(Succeed())
		Expect(outcome).To(Equal(models.Success))
		Expect(outcome.UnmarshalText([]byte("ok"))).ToNot(Succeed())
	})
})
