// Package queue implements the shared on-disk work queue that lets
// forked worker peers atomically self-assign a worker index and learn
// the total participant count, for dynamic load balancing in
// first-move-queue mode.
package queue

import (
	"encoding/binary"
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// recordSize is the fixed 8-byte on-disk layout: next_worker_index and
// total_workers, each a little-endian uint32.
const recordSize = 8

// SharedQueue wraps the file-backed claim record. It is safe for
// concurrent use by multiple processes (not multiple goroutines within
// one process claiming through the same handle; each worker process
// opens its own handle against the same path).
type SharedQueue struct {
	f *os.File
}

// Create makes a new queue file at path, initialized to (0, total),
// and returns a handle open for the creating process (typically the
// coordinator, before it forks workers).
func Create(path string, total uint32) (*SharedQueue, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("queue: create %s: %w", path, err)
	}
	var buf [recordSize]byte
	binary.LittleEndian.PutUint32(buf[0:4], 0)
	binary.LittleEndian.PutUint32(buf[4:8], total)
	if _, err := f.WriteAt(buf[:], 0); err != nil {
		f.Close()
		return nil, fmt.Errorf("queue: init %s: %w", path, err)
	}
	return &SharedQueue{f: f}, nil
}

// Open attaches to an existing queue file by path. Since a Go process
// cannot inherit a parent's file descriptor across exec the way a
// forked POSIX child does, each worker subprocess reopens the queue by
// the path the coordinator passed it on its command line; the shared
// lock domain (the underlying file) is what actually matters, not the
// fd number.
func Open(path string) (*SharedQueue, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("queue: open %s: %w", path, err)
	}
	return &SharedQueue{f: f}, nil
}

// Close releases the underlying file handle.
func (q *SharedQueue) Close() error { return q.f.Close() }

// Claim performs the lock/seek/read/increment/write/unlock cycle: it
// returns the index this caller claimed and the total participant
// count recorded in the queue.
func (q *SharedQueue) Claim() (index int, total int, err error) {
	fd := int(q.f.Fd())
	if err := unix.Flock(fd, unix.LOCK_EX); err != nil {
		return 0, 0, fmt.Errorf("queue: lock: %w", err)
	}
	defer unix.Flock(fd, unix.LOCK_UN)

	var buf [recordSize]byte
	if _, err := q.f.ReadAt(buf[:], 0); err != nil {
		return 0, 0, fmt.Errorf("queue: read: %w", err)
	}
	next := binary.LittleEndian.Uint32(buf[0:4])
	totalWorkers := binary.LittleEndian.Uint32(buf[4:8])

	binary.LittleEndian.PutUint32(buf[0:4], next+1)
	if _, err := q.f.WriteAt(buf[:], 0); err != nil {
		return 0, 0, fmt.Errorf("queue: write: %w", err)
	}
	return int(next), int(totalWorkers), nil
}

// Snapshot reads the current record without claiming, for diagnostics
// and tests. It still takes the advisory lock to avoid tearing a
// concurrent writer's update.
func (q *SharedQueue) Snapshot() (nextIndex, total uint32, err error) {
	fd := int(q.f.Fd())
	if err := unix.Flock(fd, unix.LOCK_SH); err != nil {
		return 0, 0, fmt.Errorf("queue: lock: %w", err)
	}
	defer unix.Flock(fd, unix.LOCK_UN)

	var buf [recordSize]byte
	if _, err := q.f.ReadAt(buf[:], 0); err != nil {
		return 0, 0, fmt.Errorf("queue: read: %w", err)
	}
	return binary.LittleEndian.Uint32(buf[0:4]), binary.LittleEndian.Uint32(buf[4:8]), nil
}
