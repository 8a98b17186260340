// Package relay drives payment cycles: it reconciles tree snapshots into new
// transactions, submits create-charge calls, and polls the gateway until each
// transaction settles or expires.
package relay

import (
	"github.com/benbjohnson/clock"
)

// machineState is one machine's row in the orchestrator's table. All
// transitions happen under the orchestrator's mutex.
type machineState struct {
	// lockedFor is the request time currently being processed; empty when
	// the machine is unlocked.
	lockedFor string

	// lockTimer releases the lock a fixed window after acquisition,
	// regardless of how the transaction ended.
	lockTimer *clock.Timer

	// polling is true while a status poller runs for this machine.
	polling bool

	// lastDispatched is the last request time handed to the initiator. Kept
	// across lock expiry so a repeated notification for the same request
	// never triggers a second charge.
	lastDispatched string
}

// state returns the machine's row, creating it if absent. Callers must hold
// the orchestrator mutex.
func (o *Orchestrator) state(machine string) *machineState {
	st, ok := o.machines[machine]
	if !ok {
		st = &machineState{}
		o.machines[machine] = st
	}
	return st
}

// admit decides whether a (machine, requestTime) observation starts a cycle.
// It refuses when the same request was already dispatched or any lock is
// live; otherwise it installs the lock, schedules its timed release, and
// records the dispatch.
func (o *Orchestrator) admit(machine, requestTime string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	st := o.state(machine)
	if st.lastDispatched == requestTime {
		return false
	}
	if st.lockedFor != "" {
		return false
	}

	st.lockedFor = requestTime
	st.lastDispatched = requestTime
	st.lockTimer = o.clock.AfterFunc(o.lockWindow, func() {
		o.unlock(machine)
	})
	return true
}

// unlock releases a machine's dedup lock. Runs on the lock timer only; a
// terminal transaction state does not release the lock early.
func (o *Orchestrator) unlock(machine string) {
	o.mu.Lock()
	defer o.mu.Unlock()

	st := o.state(machine)
	st.lockedFor = ""
	st.lockTimer = nil
}

// startPolling registers a poller for the machine. Returns false when one is
// already active, in which case the caller must not start another.
func (o *Orchestrator) startPolling(machine string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	st := o.state(machine)
	if st.polling {
		return false
	}
	st.polling = true
	return true
}

// stopPolling removes the machine from the active-poller set.
func (o *Orchestrator) stopPolling(machine string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.state(machine).polling = false
}

// pollingActive reports whether a poller is registered for the machine.
func (o *Orchestrator) pollingActive(machine string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	st, ok := o.machines[machine]
	return ok && st.polling
}
