package presence

import "sync"

// Store keeps the last emitted record per device and the last cycle report.
// It is the only state shared with readers outside the scan loop, and it
// only ever holds copies.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
type Store struct {
	mu        sync.RWMutex
	order     []string
	records   map[string]Record
	lastCycle CycleReport
	cycles    uint64
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{records: make(map[string]Record)}
}

// Put records the latest emission for a device.
func (s *Store) Put(rec Record) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[rec.Name]; !ok {
		s.order = append(s.order, rec.Name)
	}
	s.records[rec.Name] = rec
}

// Get returns the latest record for a device.
func (s *Store) Get(name string) (Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[name]
	return rec, ok
}

// List returns the latest records in first-emission order.
func (s *Store) List() []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Record, 0, len(s.order))
	for _, name := range s.order {
		out = append(out, s.records[name])
	}
	return out
}

// PutCycle records a completed cycle.
func (s *Store) PutCycle(report CycleReport) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastCycle = report
	s.cycles++
}

// LastCycle returns the most recent cycle report and the number of cycles run.
func (s *Store) LastCycle() (CycleReport, uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.lastCycle, s.cycles
}
