//go:build !linux

package shmseg

import "fmt"

// Segment is a heap-backed stand-in used on platforms without the Linux
// mmap/futex path; correct for in-process and single-machine tests, but
// does not actually share memory across OS processes (Create/Open on this
// build just hand out the same process-local slice when given the same
// name, which only works within a single process).
type Segment struct {
	Mem  []byte
	Path string
}

var registry = map[string][]byte{}

func Create(name string, size int) (*Segment, error) {
	if _, exists := registry[name]; exists {
		return nil, fmt.Errorf("shmseg: segment %q already exists", name)
	}
	mem := make([]byte, size)
	registry[name] = mem
	return &Segment{Mem: mem, Path: name}, nil
}

func Open(name string, size int) (*Segment, error) {
	mem, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("shmseg: segment %q not found", name)
	}
	return &Segment{Mem: mem, Path: name}, nil
}

func (s *Segment) Close() error { return nil }

func (s *Segment) Unlink() error {
	delete(registry, s.Path)
	return nil
}
