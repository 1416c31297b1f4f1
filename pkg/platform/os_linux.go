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

//go:build linux

package platform

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

const (
	procSelfFD   = "/proc/self/fd"
	procSysvShm  = "/proc/sysvipc/shm"
	procRoot     = "/proc"
	shmDestFlag  = 0o1000 // SHM_DEST, segment already marked for removal
	runtimeInode = "anon_inode:"
	socketInode  = "socket:"
)

func (m OpenMode) flags() int {
	if m == ReadWrite {
		return unix.O_RDWR
	}

	return unix.O_RDONLY
}

func (s *OSService) TryOpen(ctx context.Context, path string, mode OpenMode) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	fd, err := unix.Open(path, mode.flags()|unix.O_NONBLOCK|unix.O_CLOEXEC|unix.O_NOCTTY, 0)
	if err != nil {
		return &os.PathError{Op: "open", Path: path, Err: err}
	}

	return unix.Close(fd)
}

func (s *OSService) ResetDevice(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	fd, err := unix.Open(path, unix.O_RDWR|unix.O_CLOEXEC|unix.O_NOCTTY, 0)
	if err != nil {
		return &os.PathError{Op: "open", Path: path, Err: err}
	}
	defer func() { _ = unix.Close(fd) }()

	// Non-tty devices answer ENOTTY; reopening them is the whole reset.
	if err := unix.IoctlSetInt(fd, unix.TIOCEXCL, 0); err != nil {
		s.logger.Debugf("TIOCEXCL on %s: %s", path, err)
	}
	if err := unix.IoctlSetInt(fd, unix.TIOCNXCL, 0); err != nil {
		s.logger.Debugf("TIOCNXCL on %s: %s", path, err)
	}

	return nil
}

func (s *OSService) ForceRelease(ctx context.Context, path string) (int, error) {
	target, err := filepath.EvalSymlinks(path)
	if err != nil {
		return 0, fmt.Errorf("failed to resolve %s: %w", path, err)
	}

	procs, err := os.ReadDir(procRoot)
	if err != nil {
		return 0, fmt.Errorf("failed to list processes: %w", err)
	}

	var (
		signalled int
		errs      []error
	)

	for _, proc := range procs {
		if err := ctx.Err(); err != nil {
			return signalled, err
		}

		pid, err := strconv.Atoi(proc.Name())
		if err != nil || pid == s.pid {
			continue
		}

		if !holdsPath(pid, target) {
			continue
		}

		if err := unix.Kill(pid, unix.SIGKILL); err != nil && !errors.Is(err, unix.ESRCH) {
			errs = append(errs, fmt.Errorf("failed to signal pid %d: %w", pid, err))

			continue
		}

		signalled++
		s.logger.Infof("Killed pid %d holding %s", pid, target)
	}

	return signalled, errors.Join(errs...)
}

// holdsPath reports whether pid has target open. Processes we may not inspect
// are treated as not holding it.
func holdsPath(pid int, target string) bool {
	fdDir := filepath.Join(procRoot, strconv.Itoa(pid), "fd")

	fds, err := os.ReadDir(fdDir)
	if err != nil {
		return false
	}

	for _, fd := range fds {
		link, err := os.Readlink(filepath.Join(fdDir, fd.Name()))
		if err == nil && link == target {
			return true
		}
	}

	return false
}

func (s *OSService) CloseDescriptors(ctx context.Context, minFD, maxFD int) (int, error) {
	entries, err := os.ReadDir(procSelfFD)
	if err != nil {
		return 0, fmt.Errorf("failed to list descriptors: %w", err)
	}

	var (
		closed int
		errs   []error
	)

	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return closed, err
		}

		fd, err := strconv.Atoi(entry.Name())
		if err != nil || fd < minFD || fd >= maxFD {
			continue
		}

		link, err := os.Readlink(filepath.Join(procSelfFD, entry.Name()))
		if err != nil {
			// Gone already, most likely the directory handle of ReadDir itself
			continue
		}

		// epoll, eventfd and pidfd descriptors belong to the Go runtime poller,
		// sockets are registered with it by net.Listener and net.Conn
		if strings.HasPrefix(link, runtimeInode) || strings.HasPrefix(link, socketInode) {
			continue
		}

		if err := unix.Close(fd); err != nil && !errors.Is(err, unix.EBADF) {
			errs = append(errs, fmt.Errorf("failed to close fd %d (%s): %w", fd, link, err))

			continue
		}

		closed++
		s.logger.Debugf("Closed fd %d (%s)", fd, link)
	}

	return closed, errors.Join(errs...)
}

func (s *OSService) ReleaseSharedMemory(ctx context.Context) (int, error) {
	f, err := os.Open(procSysvShm)
	if errors.Is(err, fs.ErrNotExist) {
		// Kernel built without SysV IPC
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read shared memory table: %w", err)
	}
	defer func() { _ = f.Close() }()

	var ids []int

	scanner := bufio.NewScanner(f)
	scanner.Scan() // header

	for scanner.Scan() {
		seg, ok := parseShmLine(scanner.Text())
		if !ok || seg.cpid != s.pid || seg.perms&shmDestFlag != 0 {
			continue
		}
		ids = append(ids, seg.id)
	}
	if err := scanner.Err(); err != nil {
		return 0, fmt.Errorf("failed to read shared memory table: %w", err)
	}

	var (
		released int
		errs     []error
	)

	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return released, err
		}

		if _, err := unix.SysvShmCtl(id, unix.IPC_RMID, nil); err != nil {
			if errors.Is(err, unix.EINVAL) || errors.Is(err, unix.EIDRM) {
				continue
			}
			errs = append(errs, fmt.Errorf("failed to remove shm segment %d: %w", id, err))

			continue
		}

		released++
		s.logger.Debugf("Removed shm segment %d", id)
	}

	return released, errors.Join(errs...)
}

type shmSegment struct {
	id    int
	perms int
	cpid  int
}

// parseShmLine reads "key shmid perms size cpid lpid nattch ..." rows.
func parseShmLine(line string) (shmSegment, bool) {
	fields := strings.Fields(line)
	if len(fields) < 7 {
		return shmSegment{}, false
	}

	id, err := strconv.Atoi(fields[1])
	if err != nil {
		return shmSegment{}, false
	}

	perms, err := strconv.ParseInt(fields[2], 8, 32)
	if err != nil {
		return shmSegment{}, false
	}

	cpid, err := strconv.Atoi(fields[4])
	if err != nil {
		return shmSegment{}, false
	}

	return shmSegment{id: id, perms: int(perms), cpid: cpid}, true
}

func (s *OSService) PeakResidentBytes(ctx context.Context) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	var usage unix.Rusage
	if err := unix.Getrusage(unix.RUSAGE_SELF, &usage); err != nil {
		return 0, fmt.Errorf("getrusage failed: %w", err)
	}

	// Linux reports ru_maxrss in KiB
	return uint64(usage.Maxrss) * 1024, nil
}

func (s *OSService) TestAllocate(ctx context.Context, n int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if n <= 0 {
		return fmt.Errorf("allocation size must be positive, got %d", n)
	}

	mem, err := unix.Mmap(-1, 0, n, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return fmt.Errorf("test allocation of %d bytes failed: %w", n, err)
	}

	// Touch every page so the kernel has to back it
	for i := 0; i < len(mem); i += os.Getpagesize() {
		mem[i] = 1
	}

	return unix.Munmap(mem)
}
