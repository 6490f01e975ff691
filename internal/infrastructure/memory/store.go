// Package memory is an in-process store implementing the same repository
// ports as the Postgres adapters. Transactions serialize on one mutex and
// roll back by discarding a cloned copy of the state.
package memory

import (
	"context"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/davidleathers/qaudit-backend/internal/domain/audit"
	"github.com/davidleathers/qaudit-backend/internal/domain/plan"
	"github.com/davidleathers/qaudit-backend/internal/domain/risk"
	"github.com/davidleathers/qaudit-backend/internal/domain/sampling"
)

type state struct {
	plans       map[uuid.UUID]plan.Plan
	universes   map[uuid.UUID]plan.AuditUniverse
	items       map[uuid.UUID]plan.Item
	baselines   []plan.Baseline
	engagements map[uuid.UUID]plan.Engagement
	pbcs        map[uuid.UUID]plan.PBCRequest
	samples     map[uuid.UUID]sampling.Sample
	assessments []risk.Assessment
	auditLog    []audit.Entry
}

func newState() state {
	return state{
		plans:       make(map[uuid.UUID]plan.Plan),
		universes:   make(map[uuid.UUID]plan.AuditUniverse),
		items:       make(map[uuid.UUID]plan.Item),
		engagements: make(map[uuid.UUID]plan.Engagement),
		pbcs:        make(map[uuid.UUID]plan.PBCRequest),
		samples:     make(map[uuid.UUID]sampling.Sample),
	}
}

// clone copies every collection. Stored values are replaced on update,
// never mutated in place, so copying the structs is enough.
func (s state) clone() state {
	c := state{
		plans:       make(map[uuid.UUID]plan.Plan, len(s.plans)),
		universes:   make(map[uuid.UUID]plan.AuditUniverse, len(s.universes)),
		items:       make(map[uuid.UUID]plan.Item, len(s.items)),
		baselines:   slices.Clone(s.baselines),
		engagements: make(map[uuid.UUID]plan.Engagement, len(s.engagements)),
		pbcs:        make(map[uuid.UUID]plan.PBCRequest, len(s.pbcs)),
		samples:     make(map[uuid.UUID]sampling.Sample, len(s.samples)),
		assessments: slices.Clone(s.assessments),
		auditLog:    slices.Clone(s.auditLog),
	}
	for k, v := range s.plans {
		c.plans[k] = v
	}
	for k, v := range s.universes {
		c.universes[k] = v
	}
	for k, v := range s.items {
		c.items[k] = v
	}
	for k, v := range s.engagements {
		c.engagements[k] = v
	}
	for k, v := range s.pbcs {
		c.pbcs[k] = v
	}
	for k, v := range s.samples {
		c.samples[k] = v
	}
	return c
}

// Store is the in-memory implementation of every repository port
type Store struct {
	mu    sync.Mutex
	state state
}

type txKey struct{}

type memTx struct {
	store *Store
	state state
}

func New() *Store {
	return &Store{state: newState()}
}

// WithinTx runs fn against a private copy of the state and publishes it
// only when fn succeeds. Nested calls join the outer transaction.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if tx, ok := ctx.Value(txKey{}).(*memTx); ok && tx.store == s {
		return fn(ctx)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memTx{store: s, state: s.state.clone()}
	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		return err
	}
	s.state = tx.state
	return nil
}

// do runs fn on the transaction state carried by ctx, or on the live
// state under the store lock.
func (s *Store) do(ctx context.Context, fn func(st *state) error) error {
	if tx, ok := ctx.Value(txKey{}).(*memTx); ok && tx.store == s {
		return fn(&tx.state)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(&s.state)
}
