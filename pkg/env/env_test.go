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

package env_test

import (
	"os"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/united-manufacturing-hub/faultrecovery/pkg/env"
)

var _ = Describe("Environment helpers", func() {
	const key = "FAULTRECOVERY_ENV_TEST"

	BeforeEach(func() {
		Expect(os.Unsetenv(key)).To(Succeed())
	})

	AfterEach(func() {
		Expect(os.Unsetenv(key)).To(Succeed())
	})

	Context("when the variable is not set", func() {
		It("should return the default for optional variables", func() {
			value, err := env.GetAsInt(key, false, 7)
			Expect(err).ToNot(HaveOccurred())
			Expect(value).To(Equal(7))
		})

		It("should fail for required variables", func() {
			_, err := env.GetAsString(key, true, "")
			Expect(err).To(MatchError(ContainSubstring(key)))
		})
	})

	Context("when the variable is set", func() {
		It("should parse durations", func() {
			GinkgoT().Setenv(key, "150ms")
			value, err := env.GetAsDuration(key, false, time.Second)
			Expect(err).ToNot(HaveOccurred())
			Expect(value).To(Equal(150 * time.Millisecond))
		})

		It("should parse boolean spellings", func() {
			GinkgoT().Setenv(key, "Yes")
			value, err := env.GetAsBool(key, true, false)
			Expect(err).ToNot(HaveOccurred())
			Expect(value).To(BeTrue())
		})

		It("should split lists and drop empty items", func() {
			GinkgoT().Setenv(key, " /dev/a, ,/dev/b ")
			value, err := env.GetAsStringSlice(key, false, nil)
			Expect(err).ToNot(HaveOccurred())
			Expect(value).To(Equal([]string{"/dev/a", "/dev/b"}))
		})

		It("should keep the default but report malformed optional values", func() {
			GinkgoT().Setenv(key, "not-a-number")
			value, err := env.GetAsFloat(key, false, 0.5)
			Expect(err).To(MatchError(ContainSubstring("must be a number")))
			Expect(value).To(Equal(0.5))
		})

		It("should report malformed required values", func() {
			GinkgoT().Setenv(key, "not-a-number")
			_, err := env.GetAsInt(key, true, 0)
			Expect(err).To(MatchError(ContainSubstring("must be an integer")))
		})
	})
})
