package flow

import (
	"context"
	"sync"
	"time"
)

// Kind selects which multi-step conversation a state belongs to.
type Kind int

const (
	KindCustomerOrder Kind = iota
	KindSupplierOrder
)

type step int

const (
	stepName step = iota
	stepPhone
	stepDescription
	stepAmount
	stepConfirm
)

// flowTTL bounds how long an abandoned conversation keeps its state.
const flowTTL = 30 * time.Minute

// state is the accumulated input of one in-progress conversation, keyed by
// the admin phone. One admin has at most one active flow.
type state struct {
	kind        Kind
	step        step
	name        string
	phone       string
	supplierID  int
	description string
	amountMiles int64
	updatedAt   time.Time
}

type store struct {
	mu    sync.Mutex
	flows map[string]*state
}

func newStore() *store {
	return &store{flows: make(map[string]*state)}
}

// get returns the live state for the phone, dropping it if expired.
func (s *store) get(phone string) (*state, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.flows[phone]
	if !ok {
		return nil, false
	}
	if time.Since(st.updatedAt) > flowTTL {
		delete(s.flows, phone)
		return nil, false
	}
	return st, true
}

func (s *store) put(phone string, st *state) {
	st.updatedAt = time.Now()
	s.mu.Lock()
	s.flows[phone] = st
	s.mu.Unlock()
}

func (s *store) delete(phone string) {
	s.mu.Lock()
	delete(s.flows, phone)
	s.mu.Unlock()
}

// purge runs until ctx is cancelled, evicting expired states every minute.
func (s *store) purge(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cutoff := time.Now().Add(-flowTTL)
			s.mu.Lock()
			for phone, st := range s.flows {
				if st.updatedAt.Before(cutoff) {
					delete(s.flows, phone)
				}
			}
			s.mu.Unlock()
		}
	}
}
