//go:build linux

package shmseg

import (
	"fmt"
	"os"
	"path/filepath"
	"syscall"
)

// Segment is one mapped shared-memory region backing a single buffer's
// slot storage and token-queue rings.
type Segment struct {
	Mem  []byte
	Path string
	file *os.File
}

func segmentPath(name string) string {
	return filepath.Join("/dev/shm", "mimoring_"+name)
}

// Create allocates a new named segment of the given size, exclusively (it
// fails if a segment with this name already exists — spec §7's
// SharedMemoryError: "name collision on create").
func Create(name string, size int) (*Segment, error) {
	path := segmentPath(name)

	file, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_RDWR, 0600)
	if err != nil {
		if os.IsExist(err) {
			return nil, fmt.Errorf("shmseg: segment %q already exists: %w", name, err)
		}
		return nil, fmt.Errorf("shmseg: failed to create segment file %s: %w", path, err)
	}

	cleanup := func() {
		file.Close()
		os.Remove(path)
	}

	if err := file.Truncate(int64(size)); err != nil {
		cleanup()
		return nil, fmt.Errorf("shmseg: failed to size segment file: %w", err)
	}

	mem, err := syscall.Mmap(int(file.Fd()), 0, size, syscall.PROT_READ|syscall.PROT_WRITE, syscall.MAP_SHARED)
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("shmseg: mmap failed: %w", err)
	}

	return &Segment{Mem: mem, Path: path, file: file}, nil
}

// Open maps an existing named segment for attachment from another process.
func Open(name string, size int) (*Segment, error) {
	path := segmentPath(name)

	file, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("shmseg: failed to open segment file %s: %w", path, err)
	}

	mem, err := syscall.Mmap(int(file.Fd()), 0, size, syscall.PROT_READ|syscall.PROT_WRITE, syscall.MAP_SHARED)
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("shmseg: mmap failed: %w", err)
	}

	return &Segment{Mem: mem, Path: path, file: file}, nil
}

// Close unmaps and closes the segment's file descriptor without removing
// the backing file — used by a process detaching but not owning the
// segment's lifetime.
func (s *Segment) Close() error {
	if err := syscall.Munmap(s.Mem); err != nil {
		return fmt.Errorf("shmseg: munmap failed: %w", err)
	}
	return s.file.Close()
}

// Unlink closes and removes the backing file, matching the Python
// implementation's SharedMemory.close()+unlink() teardown (original_source
// mimo_buffer.py's __del__). Only the owning Buffer should call this.
func (s *Segment) Unlink() error {
	if err := s.Close(); err != nil {
		return err
	}
	return os.Remove(s.Path)
}
