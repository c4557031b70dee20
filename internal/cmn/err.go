// Package cmn holds error kinds shared across the bus, worker and
// allocators - the core's error taxonomy (see the design doc's §7).
package cmn

import (
	"errors"
	"fmt"
	"sync"
)

// ErrNotFound is returned when a loaded/running id, or a ChannelType, isn't
// present in the relevant index.
type ErrNotFound struct {
	what string
}

func NewErrNotFound(format string, a ...any) *ErrNotFound {
	return &ErrNotFound{what: fmt.Sprintf(format, a...)}
}

func (e *ErrNotFound) Error() string { return e.what + " does not exist" }

func IsErrNotFound(err error) bool {
	var e *ErrNotFound
	return errors.As(err, &e)
}

// ErrConfiguration covers invalid bindings and manifest/type mismatches
// supplied to AddModule.
type ErrConfiguration struct {
	reason string
}

func NewErrConfiguration(format string, a ...any) *ErrConfiguration {
	return &ErrConfiguration{reason: fmt.Sprintf(format, a...)}
}

func (e *ErrConfiguration) Error() string { return "invalid configuration: " + e.reason }

// ErrLoaderFailure wraps a dynamic-library load or symbol-resolution
// failure. The cause is preserved via Unwrap for errors.Is/As.
type ErrLoaderFailure struct {
	Module string
	Cause  error
}

func (e *ErrLoaderFailure) Error() string {
	return fmt.Sprintf("failed to load module %q: %v", e.Module, e.Cause)
}

func (e *ErrLoaderFailure) Unwrap() error { return e.Cause }

// ErrAPIMismatch is returned when a plug-in's reported ABI version does not
// equal the core's CORE_API_VERSION.
type ErrAPIMismatch struct {
	Module       string
	CoreVersion  uint64
	PluginVersion uint64
}

func (e *ErrAPIMismatch) Error() string {
	return fmt.Sprintf("module %q: api mismatch (core=%d, module=%d)", e.Module, e.CoreVersion, e.PluginVersion)
}

// Errs aggregates up to maxErrs distinct errors, deduplicated by message -
// grounded on cmn/cos.Errs in the teacher.
type Errs struct {
	mu   sync.Mutex
	errs []error
}

const maxErrs = 4

func (e *Errs) Add(err error) {
	if err == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, added := range e.errs {
		if added.Error() == err.Error() {
			return
		}
	}
	if len(e.errs) < maxErrs {
		e.errs = append(e.errs, err)
	}
}

func (e *Errs) Cnt() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.errs)
}

func (e *Errs) JoinErr() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.errs) == 0 {
		return nil
	}
	return errors.Join(e.errs...)
}
