package services

import (
	"sync"

	"github.com/careloop/postop-followup/backend/internal/domain/entities"
)

// maxThreadExchanges bounds in-memory thread growth for long-running
// conversations; only the newest exchanges are kept.
const maxThreadExchanges = 50

// ThreadStore keeps per-patient conversation threads in memory and
// serializes pipeline runs per patient. Runs for different patients
// proceed concurrently; two messages from the same patient are processed
// one after the other.
type ThreadStore struct {
	mu      sync.Mutex
	threads map[string]*thread
}

type thread struct {
	mu        sync.Mutex
	exchanges []entities.Exchange
	seeded    bool
}

// NewThreadStore creates an empty thread store.
func NewThreadStore() *ThreadStore {
	return &ThreadStore{threads: make(map[string]*thread)}
}

func (s *ThreadStore) thread(patientID string) *thread {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.threads[patientID]
	if !ok {
		t = &thread{}
		s.threads[patientID] = t
	}
	return t
}

// Acquire blocks until the patient's thread is free and returns the unlock
// function. Callers must invoke it exactly once.
func (s *ThreadStore) Acquire(patientID string) func() {
	t := s.thread(patientID)
	t.mu.Lock()
	return t.mu.Unlock
}

// Seeded reports whether the patient's thread has been initialized, either
// from the durable log or by a first appended exchange. Callers must hold
// the patient's lock via Acquire.
func (s *ThreadStore) Seeded(patientID string) bool {
	return s.thread(patientID).seeded
}

// History returns a copy of the patient's thread, oldest exchange first.
// Callers must hold the patient's lock via Acquire.
func (s *ThreadStore) History(patientID string) []entities.Exchange {
	t := s.thread(patientID)
	out := make([]entities.Exchange, len(t.exchanges))
	copy(out, t.exchanges)
	return out
}

// Append records one completed exchange, trimming the thread to the newest
// maxThreadExchanges entries. Callers must hold the patient's lock.
func (s *ThreadStore) Append(patientID string, exchange entities.Exchange) {
	t := s.thread(patientID)
	t.exchanges = append(t.exchanges, exchange)
	t.seeded = true
	if len(t.exchanges) > maxThreadExchanges {
		t.exchanges = t.exchanges[len(t.exchanges)-maxThreadExchanges:]
	}
}

// Seed replaces the patient's thread, used to rebuild memory from the
// durable conversation log at startup or after eviction.
func (s *ThreadStore) Seed(patientID string, exchanges []entities.Exchange) {
	t := s.thread(patientID)
	if len(exchanges) > maxThreadExchanges {
		exchanges = exchanges[len(exchanges)-maxThreadExchanges:]
	}
	t.exchanges = append([]entities.Exchange(nil), exchanges...)
	t.seeded = true
}
