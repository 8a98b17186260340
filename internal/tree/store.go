package tree

import (
	"context"
	"sync"
)

// Store is the durable view of the vending tree. All writes are full
// overwrites of the target path, never merges, so repeating one is harmless.
type Store interface {
	// Snapshot reads the entire tree. A missing tree yields an empty snapshot.
	Snapshot(ctx context.Context) (Snapshot, error)

	// Machine reads one machine's record. Returns nil when the machine has
	// no data.
	Machine(ctx context.Context, id string) (*MachineRecord, error)

	// PutResponse overwrites a machine's response node.
	PutResponse(ctx context.Context, machine string, response *Response) error

	// PutStatus overwrites a machine's status node.
	PutStatus(ctx context.Context, machine string, status *Status) error

	// ClearTransient removes a machine's callback, response, and status
	// nodes ahead of a new cycle. The request node is left alone.
	ClearTransient(ctx context.Context, machine string) error
}

// MemoryStore is an in-memory Store.
//
// This implementation is suitable for tests and local runs where tree state
// doesn't need to survive the process. Production uses the Firebase-backed
// Store.
type MemoryStore struct {
	mu       sync.Mutex
	machines map[string]*MachineRecord
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{machines: make(map[string]*MachineRecord)}
}

// SetRequest overwrites a machine's request node, creating the machine if
// needed. Stands in for the client-side write that starts a cycle.
func (s *MemoryStore) SetRequest(machine string, request *Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record(machine).Request = request
}

func (s *MemoryStore) Snapshot(ctx context.Context) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := make(Snapshot, len(s.machines))
	for id, rec := range s.machines {
		snap[id] = *rec
	}
	return snap, nil
}

func (s *MemoryStore) Machine(ctx context.Context, id string) (*MachineRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.machines[id]
	if !ok || rec.Empty() {
		return nil, nil
	}
	out := *rec
	return &out, nil
}

func (s *MemoryStore) PutResponse(ctx context.Context, machine string, response *Response) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record(machine).Response = response
	return nil
}

func (s *MemoryStore) PutStatus(ctx context.Context, machine string, status *Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record(machine).Status = status
	return nil
}

func (s *MemoryStore) ClearTransient(ctx context.Context, machine string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := s.record(machine)
	rec.Callback = nil
	rec.Response = nil
	rec.Status = nil
	return nil
}

// record returns the machine's record, creating it if absent. Callers must
// hold the mutex.
func (s *MemoryStore) record(machine string) *MachineRecord {
	rec, ok := s.machines[machine]
	if !ok {
		rec = &MachineRecord{}
		s.machines[machine] = rec
	}
	return rec
}

// Ensure MemoryStore implements Store.
var _ Store = (*MemoryStore)(nil)
