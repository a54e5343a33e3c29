package reports

import (
	"context"
	"time"

	"github.com/mfs-pay/mfs_pay/internal/ledger"
	"github.com/mfs-pay/mfs_pay/internal/money"
)

// Summary is the ledger-wide volume per operation. Only settled entries count.
type Summary struct {
	CashIn     money.Money
	CashOut    money.Money
	SendMoney  money.Money
	GrandTotal money.Money
	ByKind     map[ledger.Kind]money.Money
}

// AccountSummary is one account's settled volume, sent or received.
type AccountSummary struct {
	CashIn    money.Money
	CashOut   money.Money
	SendMoney money.Money
	Other     money.Money
}

// Service projects the ledger into read-only reports.
type Service struct {
	store   ledger.Store
	timeout time.Duration
}

// NewService constructs a reporting service.
func NewService(store ledger.Store, timeout time.Duration) *Service {
	return &Service{store: store, timeout: timeout}
}

func (s *Service) bounded(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

// Summary totals settled entries by kind.
func (s *Service) Summary(ctx context.Context) (Summary, error) {
	ctx, cancel := s.bounded(ctx)
	defer cancel()

	totals, err := s.store.Totals(ctx, ledger.EntryFilter{Statuses: ledger.SettledStatuses})
	if err != nil {
		return Summary{}, err
	}
	out := Summary{ByKind: make(map[ledger.Kind]money.Money, len(totals))}
	for _, t := range totals {
		out.ByKind[t.Kind] = t.Total
		switch t.Kind {
		case ledger.KindCashIn:
			out.CashIn = t.Total
		case ledger.KindCashOut:
			out.CashOut = t.Total
		case ledger.KindTransfer:
			out.SendMoney = t.Total
		}
	}
	out.GrandTotal = out.CashIn + out.CashOut + out.SendMoney
	return out, nil
}

// ForAccount totals the settled entries the account sent or received.
func (s *Service) ForAccount(ctx context.Context, email string) (AccountSummary, error) {
	ctx, cancel := s.bounded(ctx)
	defer cancel()

	totals, err := s.store.Totals(ctx, ledger.EntryFilter{Party: email, Statuses: ledger.SettledStatuses})
	if err != nil {
		return AccountSummary{}, err
	}
	var out AccountSummary
	for _, t := range totals {
		switch t.Kind {
		case ledger.KindCashIn:
			out.CashIn += t.Total
		case ledger.KindCashOut:
			out.CashOut += t.Total
		case ledger.KindTransfer:
			out.SendMoney += t.Total
		default:
			out.Other += t.Total
		}
	}
	return out, nil
}

// FeeIncome totals fee entries by receiving party.
func (s *Service) FeeIncome(ctx context.Context) ([]ledger.PartyTotal, error) {
	ctx, cancel := s.bounded(ctx)
	defer cancel()
	return s.store.FeeIncome(ctx)
}

// History lists entries in creation order.
func (s *Service) History(ctx context.Context, filter ledger.EntryFilter) ([]ledger.Entry, error) {
	ctx, cancel := s.bounded(ctx)
	defer cancel()
	return s.store.Entries(ctx, filter)
}

// Entry returns a single ledger entry.
func (s *Service) Entry(ctx context.Context, id string) (ledger.Entry, error) {
	ctx, cancel := s.bounded(ctx)
	defer cancel()
	return s.store.Entry(ctx, id)
}
