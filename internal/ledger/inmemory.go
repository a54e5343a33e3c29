package ledger

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mfs-pay/mfs_pay/internal/money"
)

type inMemoryStore struct {
	mu       sync.RWMutex
	accounts map[string]Account
	entries  map[string]Entry
	// seq preserves insertion order for listings.
	seq []string
	now func() time.Time
}

// NewInMemory creates a concurrency-safe in-memory store useful for unit
// tests and local development. A single lock serializes every batch.
func NewInMemory() Store {
	return &inMemoryStore{
		accounts: make(map[string]Account),
		entries:  make(map[string]Entry),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *inMemoryStore) CreateAccount(_ context.Context, account Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.accounts[account.ID]; exists {
		return ErrAlreadyExists
	}
	for _, existing := range s.accounts {
		if existing.Email == account.Email || existing.Mobile == account.Mobile {
			return ErrAlreadyExists
		}
		if account.Role == RoleAdmin && existing.Role == RoleAdmin {
			return ErrAdminExists
		}
	}
	if account.CreatedAt.IsZero() {
		account.CreatedAt = s.now()
	}
	s.accounts[account.ID] = account
	return nil
}

func (s *inMemoryStore) AccountByID(_ context.Context, id string) (Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	account, ok := s.accounts[id]
	if !ok {
		return Account{}, ErrAccountNotFound
	}
	return account, nil
}

func (s *inMemoryStore) AccountByEmail(_ context.Context, email string) (Account, error) {
	return s.findAccount(func(a Account) bool { return a.Email == email })
}

func (s *inMemoryStore) AccountByMobile(_ context.Context, mobile string) (Account, error) {
	return s.findAccount(func(a Account) bool { return a.Mobile == mobile })
}

func (s *inMemoryStore) Admin(_ context.Context) (Account, error) {
	return s.findAccount(func(a Account) bool { return a.Role == RoleAdmin })
}

func (s *inMemoryStore) findAccount(match func(Account) bool) (Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, account := range s.accounts {
		if match(account) {
			return account, nil
		}
	}
	return Account{}, ErrAccountNotFound
}

func (s *inMemoryStore) ListAccounts(_ context.Context) ([]Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Account, 0, len(s.accounts))
	for _, account := range s.accounts {
		out = append(out, account)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].Email < out[j].Email
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *inMemoryStore) UpdateStatus(_ context.Context, email string, status AccountStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, account := range s.accounts {
		if account.Email == email {
			account.Status = status
			s.accounts[id] = account
			return nil
		}
	}
	return ErrAccountNotFound
}

func (s *inMemoryStore) UpdateRole(_ context.Context, id string, role Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	account, ok := s.accounts[id]
	if !ok {
		return ErrAccountNotFound
	}
	if role == RoleAdmin {
		for otherID, other := range s.accounts {
			if otherID != id && other.Role == RoleAdmin {
				return ErrAdminExists
			}
		}
	}
	account.Role = role
	s.accounts[id] = account
	return nil
}

func (s *inMemoryStore) DeleteAccount(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[id]; !ok {
		return ErrAccountNotFound
	}
	delete(s.accounts, id)
	return nil
}

func (s *inMemoryStore) Apply(ctx context.Context, batch Batch) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if t := batch.Transition; t != nil {
		current, ok := s.entries[t.EntryID]
		if !ok {
			return nil, ErrEntryNotFound
		}
		if err := transitionError(current.Status); err != nil {
			return nil, err
		}
	}

	order, deltas := mergePostings(batch.Postings)
	updated := make(map[string]money.Money, len(order))
	for _, id := range order {
		account, ok := s.accounts[id]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, id)
		}
		next := account.Balance + deltas[id]
		if next < 0 {
			return nil, fmt.Errorf("%w: account %s", ErrInsufficientFunds, account.Email)
		}
		updated[id] = next
	}

	// All checks passed; nothing below can fail.
	for id, balance := range updated {
		account := s.accounts[id]
		account.Balance = balance
		s.accounts[id] = account
	}

	now := s.now()
	inserted := make([]Entry, 0, len(batch.Entries))
	for _, e := range batch.Entries {
		if e.ID == "" {
			e.ID = uuid.NewString()
		}
		if e.CreatedAt.IsZero() {
			e.CreatedAt = now
		}
		s.entries[e.ID] = e
		s.seq = append(s.seq, e.ID)
		inserted = append(inserted, e)
	}

	if t := batch.Transition; t != nil {
		current := s.entries[t.EntryID]
		current.Status = t.To
		resolved := now
		current.ResolvedAt = &resolved
		s.entries[t.EntryID] = current
	}

	return inserted, nil
}

func (s *inMemoryStore) Entry(_ context.Context, id string) (Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[id]
	if !ok {
		return Entry{}, ErrEntryNotFound
	}
	return e, nil
}

func (s *inMemoryStore) Entries(_ context.Context, filter EntryFilter) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Entry, 0)
	for _, id := range s.seq {
		e := s.entries[id]
		if !filter.matches(e) {
			continue
		}
		out = append(out, e)
		if filter.Limit > 0 && len(out) == filter.Limit {
			break
		}
	}
	return out, nil
}

func (s *inMemoryStore) Totals(_ context.Context, filter EntryFilter) ([]KindTotal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sums := make(map[Kind]money.Money)
	for _, id := range s.seq {
		e := s.entries[id]
		if filter.matches(e) {
			sums[e.Kind] += e.Amount
		}
	}
	out := make([]KindTotal, 0, len(sums))
	for kind, total := range sums {
		out = append(out, KindTotal{Kind: kind, Total: total})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Kind < out[j].Kind })
	return out, nil
}

func (s *inMemoryStore) FeeIncome(_ context.Context) ([]PartyTotal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	filter := EntryFilter{Kinds: FeeKinds, Statuses: SettledStatuses}
	sums := make(map[string]money.Money)
	for _, id := range s.seq {
		e := s.entries[id]
		if filter.matches(e) {
			sums[e.Receiver] += e.Amount
		}
	}
	out := make([]PartyTotal, 0, len(sums))
	for receiver, total := range sums {
		out = append(out, PartyTotal{Receiver: receiver, Total: total})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Receiver < out[j].Receiver })
	return out, nil
}
