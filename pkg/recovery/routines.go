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

package recovery

import (
	"context"
	"errors"
	"fmt"
	"syscall"

	"go.uber.org/zap"

	"github.com/united-manufacturing-hub/faultrecovery/pkg/backoff"
	"github.com/united-manufacturing-hub/faultrecovery/pkg/models"
	"github.com/united-manufacturing-hub/faultrecovery/pkg/platform"
)

// Messages passed to the error log
const (
	msgNullPointerRecovered = "Recovered from null pointer error"
	msgDeviceExhausted      = "Failed to recover device after multiple attempts"
	msgDeviceStillBusy      = "Device remains busy after recovery attempts"
)

func errRecoveryFailed(kind models.ErrorKind) error {
	return fmt.Errorf("recovery from %s failed", kind)
}

// recoverMemory reclaims first, then checks that pressure dropped and that a
// small allocation works again.
func (d *Dispatcher) recoverMemory(ctx context.Context, log *zap.SugaredLogger) models.Outcome {
	summary := d.deps.Reclaimer.Reclaim(ctx)
	log.Debugf("Reclaimed before memory check: %s", summary)

	if res := d.deps.Probe.WithinBounds(ctx); !res.OK {
		log.Warnf("System resources are still constrained: %s", res.Detail)

		return models.Failed
	}

	if err := d.deps.Probe.TestAllocate(ctx, d.cfg.TestAllocationBytes); err != nil {
		log.Warnf("Memory allocation still failing: %s", err)

		return models.Failed
	}

	log.Info("Memory recovery successful")

	return models.Success
}

// recoverFileAccess retries the primary file and falls back to its backup
// once all attempts are used up.
func (d *Dispatcher) recoverFileAccess(ctx context.Context, log *zap.SugaredLogger) models.Outcome {
	primary := d.cfg.FilePath
	backup := d.cfg.BackupPath()

	return backoff.Retry(ctx, d.retryConfig(),
		func(ctx context.Context) error {
			return d.deps.Platform.TryOpen(ctx, primary, platform.ReadOnly)
		},
		func(ctx context.Context) error {
			log.Infof("Primary file %s unavailable, trying backup %s", primary, backup)

			return d.deps.Platform.TryOpen(ctx, backup, platform.ReadOnly)
		},
		d.retryOptions(models.FileAccess, log)...,
	)
}

// recoverDevice walks the candidates in priority order. Each candidate gets a
// full retry budget of probe-then-reset attempts. Only the first candidate
// counts as a full recovery.
func (d *Dispatcher) recoverDevice(ctx context.Context, log *zap.SugaredLogger) models.Outcome {
	var lastErr error

	for i, path := range d.cfg.DevicePaths {
		candidateLog := log.With("device", path)

		outcome := backoff.Retry(ctx, d.retryConfig(),
			func(ctx context.Context) error {
				if res := d.deps.Probe.IsReachable(ctx, path); res.OK {
					return nil
				}

				if err := d.deps.Platform.ResetDevice(ctx, path); err != nil {
					lastErr = err

					return fmt.Errorf("device %s is unreachable and reset failed: %w", path, err)
				}

				candidateLog.Infof("Device %s reset successful", path)

				return nil
			},
			nil,
			d.retryOptions(models.Device, candidateLog)...,
		)

		if outcome == models.Success {
			if i == 0 {
				return models.Success
			}
			candidateLog.Warnf("Recovered on fallback device %s", path)

			return models.Partial
		}

		if ctx.Err() != nil {
			break
		}
	}

	d.deps.ErrorLog.LogError(models.Device, msgDeviceExhausted, backoff.ErrnoOf(lastErr))

	return models.Failed
}

// recoverDeviceBusy waits with the doubled delay for load and memory to calm
// down and forcibly releases the contended device between rounds.
func (d *Dispatcher) recoverDeviceBusy(ctx context.Context, log *zap.SugaredLogger) models.Outcome {
	var lastErr error

	releaseBusyDevice := func(ctx context.Context, attempt int) {
		if d.cfg.BusyDevicePath == "" {
			return
		}

		n, err := d.deps.Platform.ForceRelease(ctx, d.cfg.BusyDevicePath)
		if err != nil {
			lastErr = err
			log.Infof("Force release of %s after attempt %d failed: %s", d.cfg.BusyDevicePath, attempt, err)

			return
		}
		log.Debugf("Force release of %s signalled %d holders", d.cfg.BusyDevicePath, n)
	}

	outcome := backoff.Retry(ctx, d.retryConfig().Busy(),
		func(ctx context.Context) error {
			if avg, ok := d.deps.Probe.LoadAverage(ctx); ok && avg >= d.cfg.BusyLoadThreshold {
				return fmt.Errorf("load average %.2f not below %.2f", avg, d.cfg.BusyLoadThreshold)
			}

			if res := d.deps.Probe.WithinBounds(ctx); !res.OK {
				return errors.New(res.Detail)
			}

			return nil
		},
		nil,
		d.retryOptions(models.DeviceBusy, log, backoff.WithBetweenAttempts(releaseBusyDevice))...,
	)

	if outcome == models.Failed {
		d.deps.ErrorLog.LogError(models.DeviceBusy, msgDeviceStillBusy, backoff.ErrnoOf(lastErr))
	}

	return outcome
}

// recoverTextBusy waits for the file to stop being executed. Any error other
// than ETXTBSY ends the loop at once.
func (d *Dispatcher) recoverTextBusy(ctx context.Context, log *zap.SugaredLogger) models.Outcome {
	path := d.cfg.TextBusyPath

	return backoff.Retry(ctx, d.retryConfig(),
		func(ctx context.Context) error {
			err := d.deps.Platform.TryOpen(ctx, path, platform.ReadWrite)
			if err == nil || errors.Is(err, syscall.ETXTBSY) {
				return err
			}

			return backoff.NewPermanentError(err)
		},
		nil,
		d.retryOptions(models.TextBusy, log)...,
	)
}

// recoverNullPointer only confirms the process is healthy enough to go on.
func (d *Dispatcher) recoverNullPointer(ctx context.Context, log *zap.SugaredLogger) models.Outcome {
	if res := d.deps.Probe.WithinBounds(ctx); !res.OK {
		log.Warnf("System resources verification failed: %s", res.Detail)

		return models.Failed
	}

	d.deps.ErrorLog.LogError(models.NullPointer, msgNullPointerRecovered, 0)

	return models.Success
}
