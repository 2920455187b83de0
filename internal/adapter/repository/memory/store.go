// Package memory keeps the ledger and the state tracker in process memory.
// It follows the same conditional-write rules as the durable stores and is
// used by tests and by local replays.
package memory

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/iho/txconsumer/internal/domain"
	"github.com/iho/txconsumer/internal/usecase"
)

var errForeignTx = errors.New("transaction does not belong to this store")

type balanceKey struct {
	account string
	kind    domain.BalanceKind
}

// Store implements the balance, event and state repositories and the
// transaction manager over maps guarded by one mutex.
type Store struct {
	mu       sync.RWMutex
	balances map[balanceKey]domain.BalanceRecord
	events   map[string][]*domain.EventRecord
	tags     map[string]map[string]struct{}
	states   map[string]domain.ObjectState
	audits   map[string][]*domain.AuditEvent
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		balances: make(map[balanceKey]domain.BalanceRecord),
		events:   make(map[string][]*domain.EventRecord),
		tags:     make(map[string]map[string]struct{}),
		states:   make(map[string]domain.ObjectState),
		audits:   make(map[string][]*domain.AuditEvent),
	}
}

// Tx buffers writes until Commit.
type Tx struct {
	store    *Store
	balances []*domain.BalanceRecord
	events   []*domain.EventRecord
	done     bool
}

// Begin starts a new transaction.
func (s *Store) Begin(ctx context.Context) (usecase.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, domain.StorageFailure("begin", err)
	}
	return &Tx{store: s}, nil
}

// Commit applies every buffered write, or none of them.
func (t *Tx) Commit(ctx context.Context) error {
	if t.done {
		return errors.New("transaction already closed")
	}
	t.done = true

	s := t.store
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[string]struct{}, len(t.events))
	for _, ev := range t.events {
		id := ev.AccountRef + "|" + ev.Tag()
		if _, dup := seen[id]; dup {
			return domain.ErrDuplicateEvent
		}
		seen[id] = struct{}{}
		if _, exists := s.tags[ev.AccountRef][ev.Tag()]; exists {
			return domain.ErrDuplicateEvent
		}
	}

	for _, b := range t.balances {
		current := s.balances[balanceKey{b.AccountRef, b.Kind}]
		if current.Version != b.Version {
			return domain.ErrVersionConflict
		}
	}

	for _, ev := range t.events {
		copied := *ev
		s.events[ev.AccountRef] = append(s.events[ev.AccountRef], &copied)
		if s.tags[ev.AccountRef] == nil {
			s.tags[ev.AccountRef] = make(map[string]struct{})
		}
		s.tags[ev.AccountRef][ev.Tag()] = struct{}{}
	}

	for _, b := range t.balances {
		stored := *b
		stored.Version = b.Version + 1
		s.balances[balanceKey{b.AccountRef, b.Kind}] = stored
	}

	return nil
}

// Rollback discards buffered writes. It is a no-op after Commit.
func (t *Tx) Rollback(ctx context.Context) error {
	t.done = true
	t.balances = nil
	t.events = nil
	return nil
}

func (s *Store) tx(tx usecase.Transaction) (*Tx, error) {
	mt, ok := tx.(*Tx)
	if !ok || mt.store != s {
		return nil, errForeignTx
	}
	return mt, nil
}

// Get returns a copy of the stored balance.
func (s *Store) Get(ctx context.Context, account string, kind domain.BalanceKind) (*domain.BalanceRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.balances[balanceKey{account, kind}]
	if !ok {
		return domain.NewBalanceRecord(account, kind), nil
	}
	return &b, nil
}

// Set buffers a conditional balance write.
func (s *Store) Set(ctx context.Context, tx usecase.Transaction, record *domain.BalanceRecord) error {
	mt, err := s.tx(tx)
	if err != nil {
		return err
	}
	copied := *record
	mt.balances = append(mt.balances, &copied)
	return nil
}

// Append buffers a write-once event record.
func (s *Store) Append(ctx context.Context, tx usecase.Transaction, event *domain.EventRecord) error {
	mt, err := s.tx(tx)
	if err != nil {
		return err
	}
	copied := *event
	mt.events = append(mt.events, &copied)
	return nil
}

// FindByRequestID returns the record carrying requestID, PENDING first.
func (s *Store) FindByRequestID(ctx context.Context, account, requestID string) (*domain.EventRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var found *domain.EventRecord
	for _, ev := range s.events[account] {
		if ev.RequestID != requestID {
			continue
		}
		if found == nil || ev.Stage == domain.StagePending {
			found = ev
		}
		if ev.Stage == domain.StagePending {
			break
		}
	}

	if found == nil {
		return nil, domain.ErrPredecessorNotFound
	}
	copied := *found
	return &copied, nil
}

// FindByPreviousRequestID returns the record settling requestID, or nil.
func (s *Store) FindByPreviousRequestID(ctx context.Context, account, requestID string) (*domain.EventRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, ev := range s.events[account] {
		if ev.PreviousRequestIDReference == requestID {
			copied := *ev
			return &copied, nil
		}
	}
	return nil, nil
}

// ListByAccount returns the account's log in commit order.
func (s *Store) ListByAccount(ctx context.Context, account string) ([]*domain.EventRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*domain.EventRecord, 0, len(s.events[account]))
	for _, ev := range s.events[account] {
		copied := *ev
		out = append(out, &copied)
	}
	return out, nil
}

// Accounts returns every account with at least one stored balance, sorted.
func (s *Store) Accounts(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	set := make(map[string]struct{})
	for k := range s.balances {
		set[k.account] = struct{}{}
	}
	out := make([]string, 0, len(set))
	for a := range set {
		out = append(out, a)
	}
	sort.Strings(out)
	return out, nil
}

// MarkState upserts the state row.
func (s *Store) MarkState(ctx context.Context, state *domain.ObjectState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.states[state.ObjectKey] = *state
	return nil
}

// AppendAuditEvent appends one audit row.
func (s *Store) AppendAuditEvent(ctx context.Context, event *domain.AuditEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *event
	s.audits[event.ObjectKey] = append(s.audits[event.ObjectKey], &copied)
	return nil
}

// GetState returns the state row of a source object.
func (s *Store) GetState(ctx context.Context, objectKey string) (*domain.ObjectState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	state, ok := s.states[objectKey]
	if !ok {
		return nil, domain.ErrStateNotFound
	}
	return &state, nil
}

// ListAuditEvents returns the audit rows of a source object, oldest first.
func (s *Store) ListAuditEvents(ctx context.Context, objectKey string) ([]*domain.AuditEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*domain.AuditEvent, 0, len(s.audits[objectKey]))
	for _, a := range s.audits[objectKey] {
		copied := *a
		out = append(out, &copied)
	}
	return out, nil
}
