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

//go:build !linux

package platform

import (
	"context"
	"os"
)

func (m OpenMode) flags() int {
	if m == ReadWrite {
		return os.O_RDWR
	}

	return os.O_RDONLY
}

func (s *OSService) TryOpen(ctx context.Context, path string, mode OpenMode) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	f, err := os.OpenFile(path, mode.flags(), 0)
	if err != nil {
		return err
	}

	return f.Close()
}

func (s *OSService) ResetDevice(ctx context.Context, path string) error {
	return s.TryOpen(ctx, path, ReadWrite)
}

func (s *OSService) ForceRelease(context.Context, string) (int, error) {
	return 0, ErrUnsupported
}

func (s *OSService) CloseDescriptors(context.Context, int, int) (int, error) {
	return 0, ErrUnsupported
}

func (s *OSService) ReleaseSharedMemory(context.Context) (int, error) {
	return 0, ErrUnsupported
}

func (s *OSService) PeakResidentBytes(context.Context) (uint64, error) {
	return 0, ErrUnsupported
}

func (s *OSService) TestAllocate(ctx context.Context, n int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_ = make([]byte, n)

	return nil
}
