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

package backoff

import (
	"context"
	"fmt"
	"sync"
	"time"

	cbackoff "github.com/cenkalti/backoff"

	"github.com/united-manufacturing-hub/faultrecovery/pkg/constants"
)

// Policy selects the delay schedule between attempts.
type Policy string

const (
	// PolicyFixed sleeps Delay between attempts.
	PolicyFixed Policy = "fixed"
	// PolicyBusy sleeps BusyDelayMultiplier×Delay between attempts to take
	// pressure off a contended resource.
	PolicyBusy Policy = "busy"
)

// Config is the retry budget of a single Retry invocation.
type Config struct {
	Policy      Policy
	MaxAttempts int
	Delay       time.Duration
}

// NewConfig returns a fixed-delay config.
func NewConfig(maxAttempts int, delay time.Duration) Config {
	return Config{MaxAttempts: maxAttempts, Delay: delay, Policy: PolicyFixed}
}

// Busy returns a copy of c that uses the busy-resource schedule.
func (c Config) Busy() Config {
	c.Policy = PolicyBusy

	return c
}

func (c Config) Validate() error {
	if c.MaxAttempts <= 0 {
		return fmt.Errorf("max attempts must be positive, got %d", c.MaxAttempts)
	}
	if c.Delay < 0 {
		return fmt.Errorf("delay must not be negative, got %s", c.Delay)
	}
	switch c.Policy {
	case PolicyFixed, PolicyBusy, "":
	default:
		return fmt.Errorf("unknown retry policy %q", c.Policy)
	}

	return nil
}

// Interval is the sleep between two attempts under this config's policy.
func (c Config) Interval() time.Duration {
	if c.Policy == PolicyBusy {
		return c.Delay * constants.BusyDelayMultiplier
	}

	return c.Delay
}

// MaxWait bounds the total time spent sleeping by one Retry call.
func (c Config) MaxWait() time.Duration {
	if c.MaxAttempts <= 1 {
		return 0
	}

	return time.Duration(c.MaxAttempts-1) * c.Interval()
}

func (c Config) policyName() string {
	if c.Policy == "" {
		return string(PolicyFixed)
	}

	return string(c.Policy)
}

// schedule yields Interval() exactly MaxAttempts-1 times, then cbackoff.Stop,
// so no sleep happens after the final attempt.
func (c Config) schedule() cbackoff.BackOff {
	b := cbackoff.WithMaxRetries(cbackoff.NewConstantBackOff(c.Interval()), uint64(c.MaxAttempts-1))
	b.Reset()

	return b
}

// Sleeper blocks between attempts.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// RealSleeper sleeps on a timer and returns early with ctx.Err() if ctx ends.
type RealSleeper struct{}

func (RealSleeper) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RecordingSleeper does not sleep; it records every requested duration.
type RecordingSleeper struct {
	durations []time.Duration
	mu        sync.Mutex
}

func NewRecordingSleeper() *RecordingSleeper {
	return &RecordingSleeper{}
}

func (s *RecordingSleeper) Sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	s.durations = append(s.durations, d)
	s.mu.Unlock()

	return ctx.Err()
}

// Count returns the number of Sleep calls so far.
func (s *RecordingSleeper) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.durations)
}

// Durations returns a copy of the recorded sleep durations.
func (s *RecordingSleeper) Durations() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]time.Duration(nil), s.durations...)
}

// Total is the sum of all recorded durations.
func (s *RecordingSleeper) Total() time.Duration {
	var total time.Duration
	for _, d := range s.Durations() {
		total += d
	}

	return total
}

// Reset forgets the recorded sleeps.
func (s *RecordingSleeper) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.durations = nil
}
