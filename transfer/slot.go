package transfer

import (
	"math"
	"sync"

	"github.com/vegaviz/script-runtime/errors"
)

// ID keys a single payload within one worker's slot. IDs are allocated
// sequentially and wrap around, mirroring the request-local identifiers
// the engine callbacks are keyed by.
type ID int32

// Slot is per-worker storage for payloads too large or unsafe to pass
// through the dispatch channel. The worker installs arguments before
// invoking the engine; the engine pulls them and publishes results back
// through callbacks keyed by ID. A Slot is owned by exactly one worker
// and never shared across workers; the mutex only orders the worker loop
// against engine callbacks re-entering from the same request.
type Slot struct {
	mu      sync.Mutex
	args    map[ID][]byte
	results map[ID][]byte
	nextID  ID
}

// NewSlot creates an empty slot.
func NewSlot() *Slot {
	return &Slot{
		args:    make(map[ID][]byte),
		results: make(map[ID][]byte),
	}
}

func (s *Slot) allocIDLocked() ID {
	id := s.nextID
	if s.nextID == math.MaxInt32 {
		s.nextID = 0
	} else {
		s.nextID++
	}
	return id
}

// PutArg stores an argument payload and returns its id.
func (s *Slot) PutArg(payload []byte) ID {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.allocIDLocked()
	s.args[id] = payload
	return id
}

// ArgLen returns the size of a pending argument without consuming it.
func (s *Slot) ArgLen(id ID) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	payload, ok := s.args[id]
	if !ok {
		return 0, false
	}
	return len(payload), true
}

// ConsumeArg removes and returns an argument payload. Each argument can be
// read once; a second read of the same id fails.
func (s *Slot) ConsumeArg(id ID) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	payload, ok := s.args[id]
	if !ok {
		return nil, errors.ArgNotFound(int32(id))
	}
	delete(s.args, id)
	return payload, nil
}

// ClearArg drops an argument that was never consumed.
func (s *Slot) ClearArg(id ID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.args, id)
}

// AllocResult reserves an id the engine can publish a result under.
// Reserving does not create an entry; TakeResult fails until the engine
// publishes.
func (s *Slot) AllocResult() ID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.allocIDLocked()
}

// PutResult publishes result bytes under a reserved id.
func (s *Slot) PutResult(id ID, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results[id] = data
}

// TakeResult removes and returns published result bytes. It fails if the
// script never published under this id.
func (s *Slot) TakeResult(id ID) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.results[id]
	if !ok {
		return nil, errors.ResultNotFound(int32(id))
	}
	delete(s.results, id)
	return data, nil
}

// ClearResult drops a published result that was never taken.
func (s *Slot) ClearResult(id ID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.results, id)
}

// Len returns the number of live entries, arguments and results combined.
// A well-behaved request sequence always returns the slot to Len() == 0.
func (s *Slot) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.args) + len(s.results)
}
