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

package platform

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/united-manufacturing-hub/faultrecovery/pkg/logger"
)

// OSService implements Service against the running operating system.
type OSService struct {
	logger *zap.SugaredLogger
	pid    int
}

// NewOSService returns the default platform collaborator.
func NewOSService() *OSService {
	return &OSService{
		logger: logger.For(logger.ComponentPlatform),
		pid:    os.Getpid(),
	}
}

func (s *OSService) Stat(ctx context.Context, path string) (os.FileInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return os.Stat(path)
}

func (s *OSService) RemoveScratchFiles(ctx context.Context, dir, prefix string) (int, error) {
	if prefix == "" {
		return 0, errors.New("refusing to remove scratch files without a prefix")
	}
	if dir == "" {
		dir = os.TempDir()
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("failed to list scratch directory %s: %w", dir, err)
	}

	var (
		removed int
		errs    []error
	)

	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return removed, err
		}

		if !entry.Type().IsRegular() || !strings.HasPrefix(entry.Name(), prefix) {
			continue
		}

		path := filepath.Join(dir, entry.Name())
		err := os.Remove(path)
		switch {
		case err == nil:
			removed++
			s.logger.Debugf("Removed scratch file %s", path)
		case errors.Is(err, fs.ErrNotExist):
			// Someone else was faster
		default:
			errs = append(errs, err)
		}
	}

	return removed, errors.Join(errs...)
}
