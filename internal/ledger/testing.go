package ledger

import (
	"time"

	"github.com/mfs-pay/mfs_pay/internal/money"
)

// SeedBalance is a test helper that overwrites an account balance when using the in-memory store.
func SeedBalance(s Store, accountID string, amount money.Money) {
	if mem, ok := s.(*inMemoryStore); ok {
		mem.mu.Lock()
		defer mem.mu.Unlock()
		account := mem.accounts[accountID]
		account.Balance = amount
		mem.accounts[accountID] = account
	}
}

// SetClock replaces the in-memory store clock so tests can age entries.
func SetClock(s Store, now func() time.Time) {
	if mem, ok := s.(*inMemoryStore); ok {
		mem.mu.Lock()
		defer mem.mu.Unlock()
		mem.now = now
	}
}
