package bus

import "github.com/aergo-project/aergo-core/internal/nlog"

// Shutdown tears down every Present running module and joins its worker
// threads with the bus's configured timeout, in reverse running-id order
// so dependents (typically added later) stop before their producers.
// Grounded on original_source's main.cpp teardown-on-close behavior,
// invoked by the CLI on SIGINT.
func (b *Bus) Shutdown() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	allStopped := true
	for i := len(b.running) - 1; i >= 0; i-- {
		if b.running[i].state != statePresent {
			continue
		}
		if !b.teardownOne(RunningModuleID(i)) {
			allStopped = false
		}
	}
	if !allStopped {
		nlog.Warningf("shutdown: one or more worker pools did not stop cleanly within timeout")
	}
	return allStopped
}
