package buffer

import (
	"fmt"

	"github.com/mimoring/mimoring/internal/dtype"
)

// Config holds the buffer construction parameters of spec §6.
type Config struct {
	Name       string
	SlotCount  int
	DataLength int
	DataDtype  []dtype.FieldSpec
	// Overwrite defaults to true (spec §3) when Config is zero-valued aside
	// from the required fields; use OverwriteSet to explicitly request
	// false, since Go's zero value for bool can't distinguish "unset" from
	// "false".
	Overwrite    bool
	OverwriteSet bool

	// Shared controls whether the buffer's memory is backed by a real
	// cross-process shared-memory segment (internal/shmseg) or an
	// in-process heap buffer. Non-shared buffers are what the package's own
	// tests use; shared is what a multi-process deployment needs.
	Shared bool
}

// ConfigError reports a construction-time validation failure (spec §7).
type ConfigError struct {
	msg string
}

func (e *ConfigError) Error() string { return "mimoring: config error: " + e.msg }

func configErrorf(format string, args ...any) error {
	return &ConfigError{msg: fmt.Sprintf(format, args...)}
}

// SharedMemoryError reports a construction-time shared-memory failure (spec
// §7): the OS refused the mapping, or a segment name collided on create.
// Like ConfigError, it only ever arises from New/Attach, never once a
// Buffer is running.
type SharedMemoryError struct {
	msg string
	err error
}

func (e *SharedMemoryError) Error() string {
	return fmt.Sprintf("mimoring: shared memory error: %s: %v", e.msg, e.err)
}

func (e *SharedMemoryError) Unwrap() error { return e.err }

func (c Config) validate() error {
	if c.Name == "" {
		return configErrorf("name must not be empty")
	}
	if c.SlotCount <= 0 {
		return configErrorf("slot_count must be > 0, got %d", c.SlotCount)
	}
	if c.DataLength <= 0 {
		return configErrorf("data_length must be > 0, got %d", c.DataLength)
	}
	if len(c.DataDtype) == 0 {
		return configErrorf("data_dtype must declare at least one field")
	}
	return nil
}

func (c Config) overwrite() bool {
	if !c.OverwriteSet {
		return true // spec §3: overwrite defaults to true
	}
	return c.Overwrite
}
