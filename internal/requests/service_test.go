package requests

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/mfs-pay/mfs_pay/internal/fees"
	"github.com/mfs-pay/mfs_pay/internal/ledger"
	"github.com/mfs-pay/mfs_pay/internal/logging"
	"github.com/mfs-pay/mfs_pay/internal/money"
	"github.com/mfs-pay/mfs_pay/internal/payments"
)

const testPIN = "1234"

type plainHasher struct{}

func (plainHasher) Hash(secret string) ([]byte, error)       { return []byte(secret), nil }
func (plainHasher) Verify(secret string, digest []byte) bool { return secret == string(digest) }

type fixture struct {
	store    ledger.Store
	resolver *Resolver
	admin    ledger.Account
	agent    ledger.Account
	user     ledger.Account
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := ledger.NewInMemory()
	engine := payments.NewEngine(store, fees.Default(), plainHasher{}, nil, time.Second, logging.Discard())
	f := &fixture{store: store, resolver: NewResolver(engine, nil, logging.Discard())}
	f.admin = f.account(t, "admin@mfs.test", ledger.RoleAdmin, money.FromUnits(100_000))
	f.agent = f.account(t, "g@mfs.test", ledger.RoleAgent, money.FromUnits(100_000))
	f.user = f.account(t, "u@mfs.test", ledger.RoleUser, money.FromUnits(40))
	return f
}

func (f *fixture) account(t *testing.T, email string, role ledger.Role, balance money.Money) ledger.Account {
	t.Helper()
	a := ledger.Account{
		ID:      uuid.NewString(),
		Email:   email,
		Mobile:  "017-" + string(role) + email[:1],
		Role:    role,
		Status:  ledger.AccountActive,
		PINHash: []byte(testPIN),
		Balance: balance,
	}
	if err := f.store.CreateAccount(context.Background(), a); err != nil {
		t.Fatalf("create %s: %v", email, err)
	}
	return a
}

func (f *fixture) balance(t *testing.T, a ledger.Account) money.Money {
	t.Helper()
	got, err := f.store.AccountByID(context.Background(), a.ID)
	if err != nil {
		t.Fatalf("get %s: %v", a.Email, err)
	}
	return got.Balance
}

func (f *fixture) create(t *testing.T, kind ledger.Kind, from, to ledger.Account, amount string) ledger.Entry {
	t.Helper()
	e, err := f.resolver.Create(context.Background(), kind, payments.Order{SenderID: from.ID, ReceiverIdentifier: to.Email, Amount: amount, PIN: testPIN})
	if err != nil {
		t.Fatalf("create %s: %v", kind, err)
	}
	return e
}

func TestWithdrawRequest_ConfirmOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	entry := f.create(t, ledger.KindWithdrawRequest, f.agent, f.admin, "500")
	if entry.Status != ledger.StatusPending {
		t.Fatalf("expected pending entry, got %s", entry.Status)
	}
	if f.balance(t, f.agent) != money.FromUnits(100_000) || f.balance(t, f.admin) != money.FromUnits(100_000) {
		t.Fatal("creating a request must not move money")
	}

	confirmed, err := f.resolver.Confirm(ctx, f.admin.ID, entry.ID)
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if confirmed.Status != ledger.StatusConfirmed {
		t.Fatalf("expected confirmed, got %s", confirmed.Status)
	}
	if got := f.balance(t, f.agent); got != money.FromUnits(99_500) {
		t.Fatalf("expected agent 99500, got %s", got)
	}
	if got := f.balance(t, f.admin); got != money.FromUnits(100_500) {
		t.Fatalf("expected admin 100500, got %s", got)
	}

	if _, err := f.resolver.Confirm(ctx, f.admin.ID, entry.ID); !errors.Is(err, ledger.ErrAlreadyConfirmed) {
		t.Fatalf("expected already confirmed, got %v", err)
	}
	if got := f.balance(t, f.agent); got != money.FromUnits(99_500) {
		t.Fatalf("re-confirm must not move money, agent %s", got)
	}
}

func TestConfirm_DirectionPerKind(t *testing.T) {
	cases := []struct {
		kind      ledger.Kind
		from, to  func(*fixture) ledger.Account
		confirmer func(*fixture) ledger.Account
		debited   func(*fixture) ledger.Account
		credited  func(*fixture) ledger.Account
	}{
		{
			kind:      ledger.KindCashInRequest,
			from:      func(f *fixture) ledger.Account { return f.user },
			to:        func(f *fixture) ledger.Account { return f.agent },
			confirmer: func(f *fixture) ledger.Account { return f.agent },
			debited:   func(f *fixture) ledger.Account { return f.agent },
			credited:  func(f *fixture) ledger.Account { return f.user },
		},
		{
			kind:      ledger.KindCashRequest,
			from:      func(f *fixture) ledger.Account { return f.agent },
			to:        func(f *fixture) ledger.Account { return f.admin },
			confirmer: func(f *fixture) ledger.Account { return f.admin },
			debited:   func(f *fixture) ledger.Account { return f.admin },
			credited:  func(f *fixture) ledger.Account { return f.agent },
		},
		{
			kind:      ledger.KindCashOutRequest,
			from:      func(f *fixture) ledger.Account { return f.agent },
			to:        func(f *fixture) ledger.Account { return f.user },
			confirmer: func(f *fixture) ledger.Account { return f.user },
			debited:   func(f *fixture) ledger.Account { return f.user },
			credited:  func(f *fixture) ledger.Account { return f.agent },
		},
		{
			kind:      ledger.KindWithdrawRequest,
			from:      func(f *fixture) ledger.Account { return f.agent },
			to:        func(f *fixture) ledger.Account { return f.admin },
			confirmer: func(f *fixture) ledger.Account { return f.admin },
			debited:   func(f *fixture) ledger.Account { return f.agent },
			credited:  func(f *fixture) ledger.Account { return f.admin },
		},
	}
	for _, tc := range cases {
		t.Run(string(tc.kind), func(t *testing.T) {
			f := newFixture(t)
			debitBefore := f.balance(t, tc.debited(f))
			creditBefore := f.balance(t, tc.credited(f))

			entry := f.create(t, tc.kind, tc.from(f), tc.to(f), "25")
			if _, err := f.resolver.Confirm(context.Background(), tc.confirmer(f).ID, entry.ID); err != nil {
				t.Fatalf("confirm: %v", err)
			}
			if got := f.balance(t, tc.debited(f)); got != debitBefore-money.FromUnits(25) {
				t.Fatalf("expected %s debited by 25, got %s", tc.debited(f).Email, got)
			}
			if got := f.balance(t, tc.credited(f)); got != creditBefore+money.FromUnits(25) {
				t.Fatalf("expected %s credited by 25, got %s", tc.credited(f).Email, got)
			}
		})
	}
}

func TestConfirm_ConcurrentAppliesExactlyOnce(t *testing.T) {
	f := newFixture(t)
	entry := f.create(t, ledger.KindCashRequest, f.agent, f.admin, "500")

	const racers = 16
	var (
		wg                sync.WaitGroup
		mu                sync.Mutex
		success, rejected int
	)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.resolver.Confirm(context.Background(), f.admin.ID, entry.ID)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				success++
			case errors.Is(err, ledger.ErrAlreadyConfirmed):
				rejected++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if success != 1 || rejected != racers-1 {
		t.Fatalf("expected 1 success and %d already confirmed, got %d / %d", racers-1, success, rejected)
	}
	if got := f.balance(t, f.agent); got != money.FromUnits(100_500) {
		t.Fatalf("expected single application, agent %s", got)
	}
}

func TestConfirm_Rejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	entry := f.create(t, ledger.KindCashRequest, f.agent, f.admin, "10")
	if _, err := f.resolver.Confirm(ctx, f.agent.ID, entry.ID); !errors.Is(err, ErrNotAuthorized) {
		t.Fatalf("requester must not confirm its own request, got %v", err)
	}
	if _, err := f.resolver.Confirm(ctx, f.admin.ID, uuid.NewString()); !errors.Is(err, ledger.ErrEntryNotFound) {
		t.Fatalf("expected entry not found, got %v", err)
	}

	// The agent cannot cover a cash-in-request larger than its balance.
	big := f.create(t, ledger.KindCashInRequest, f.user, f.agent, "200000")
	if _, err := f.resolver.Confirm(ctx, f.agent.ID, big.ID); !errors.Is(err, ledger.ErrInsufficientFunds) {
		t.Fatalf("expected insufficient funds, got %v", err)
	}
	still, err := f.store.Entry(ctx, big.ID)
	if err != nil || still.Status != ledger.StatusPending {
		t.Fatalf("failed confirmation must leave the request pending, got %+v %v", still, err)
	}

	immediate, err := f.store.Apply(ctx, ledger.Batch{Entries: []ledger.Entry{{Kind: ledger.KindTransfer, Sender: "a", Receiver: "b", Amount: 1, Status: ledger.StatusCompleted}}})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if _, err := f.resolver.Confirm(ctx, f.admin.ID, immediate[0].ID); !errors.Is(err, ledger.ErrNotPending) {
		t.Fatalf("expected not pending for an immediate entry, got %v", err)
	}
}

func TestCreate_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	cases := []struct {
		name  string
		kind  ledger.Kind
		order payments.Order
		want  error
	}{
		{"not a request", ledger.KindTransfer, payments.Order{SenderID: f.user.ID, ReceiverIdentifier: f.agent.Email, Amount: "1", PIN: testPIN}, ErrNotRequestKind},
		{"user asks admin for cash", ledger.KindCashRequest, payments.Order{SenderID: f.user.ID, ReceiverIdentifier: f.admin.Email, Amount: "1", PIN: testPIN}, payments.ErrRoleViolation},
		{"agent withdraws to user", ledger.KindWithdrawRequest, payments.Order{SenderID: f.agent.ID, ReceiverIdentifier: f.user.Email, Amount: "1", PIN: testPIN}, payments.ErrRoleViolation},
		{"wrong pin", ledger.KindCashRequest, payments.Order{SenderID: f.agent.ID, ReceiverIdentifier: f.admin.Email, Amount: "1", PIN: "9999"}, payments.ErrInvalidCredential},
		{"zero amount", ledger.KindCashRequest, payments.Order{SenderID: f.agent.ID, ReceiverIdentifier: f.admin.Email, Amount: "0", PIN: testPIN}, fees.ErrInvalidAmount},
		{"unknown receiver", ledger.KindCashOutRequest, payments.Order{SenderID: f.agent.ID, ReceiverIdentifier: "01999", Amount: "1", PIN: testPIN}, payments.ErrReceiverNotFound},
		{"cash-out beyond user balance", ledger.KindCashOutRequest, payments.Order{SenderID: f.agent.ID, ReceiverIdentifier: f.user.Email, Amount: "40.01", PIN: testPIN}, ledger.ErrInsufficientFunds},
	}
	for _, tc := range cases {
		if _, err := f.resolver.Create(ctx, tc.kind, tc.order); !errors.Is(err, tc.want) {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, err)
		}
	}
	entries, _ := f.store.Entries(ctx, ledger.EntryFilter{})
	if len(entries) != 0 {
		t.Fatalf("rejected requests must not be recorded, got %d", len(entries))
	}
}

func TestDecline_KeepsEntry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	stranger := f.account(t, "x@mfs.test", ledger.RoleUser, 0)

	entry := f.create(t, ledger.KindCashOutRequest, f.agent, f.user, "10")
	if _, err := f.resolver.Decline(ctx, stranger.ID, entry.ID); !errors.Is(err, ErrNotAuthorized) {
		t.Fatalf("expected stranger decline to fail, got %v", err)
	}
	declined, err := f.resolver.Decline(ctx, f.agent.ID, entry.ID)
	if err != nil {
		t.Fatalf("sender decline: %v", err)
	}
	if declined.Status != ledger.StatusDeclined {
		t.Fatalf("expected declined, got %s", declined.Status)
	}

	kept, err := f.store.Entry(ctx, entry.ID)
	if err != nil || kept.Status != ledger.StatusDeclined || kept.ResolvedAt == nil {
		t.Fatalf("declined entry must stay in history, got %+v %v", kept, err)
	}
	if _, err := f.resolver.Confirm(ctx, f.user.ID, entry.ID); !errors.Is(err, ledger.ErrAlreadyDeclined) {
		t.Fatalf("expected already declined, got %v", err)
	}
	if f.balance(t, f.user) != money.FromUnits(40) || f.balance(t, f.agent) != money.FromUnits(100_000) {
		t.Fatal("decline must not move money")
	}
}

func TestExpireStale(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	ledger.SetClock(f.store, func() time.Time { return time.Now().UTC().Add(-48 * time.Hour) })
	old := f.create(t, ledger.KindCashRequest, f.agent, f.admin, "10")
	ledger.SetClock(f.store, func() time.Time { return time.Now().UTC() })
	fresh := f.create(t, ledger.KindCashRequest, f.agent, f.admin, "10")

	n, err := f.resolver.ExpireStale(ctx, 24*time.Hour)
	if err != nil {
		t.Fatalf("expire: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected one expired request, got %d", n)
	}
	if e, _ := f.store.Entry(ctx, old.ID); e.Status != ledger.StatusDeclined {
		t.Fatalf("old request should be declined, got %s", e.Status)
	}
	if e, _ := f.store.Entry(ctx, fresh.ID); e.Status != ledger.StatusPending {
		t.Fatalf("fresh request should stay pending, got %s", e.Status)
	}
}

func TestConfirm_RejectsInactiveAgent(t *testing.T) {
	cases := []struct {
		name     string
		kind     ledger.Kind
		from     func(*fixture) ledger.Account
		to       func(*fixture) ledger.Account
		resolver func(*fixture) ledger.Account
	}{
		{"agent pays cash-in", ledger.KindCashInRequest, fixtureUser, fixtureAgent, fixtureAgent},
		{"agent paid by cash-out", ledger.KindCashOutRequest, fixtureAgent, fixtureUser, fixtureUser},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()
			entry := f.create(t, tc.kind, tc.from(f), tc.to(f), "10")

			if err := f.store.UpdateStatus(ctx, f.agent.Email, ledger.AccountBlocked); err != nil {
				t.Fatalf("block agent: %v", err)
			}
			if _, err := f.resolver.Confirm(ctx, tc.resolver(f).ID, entry.ID); !errors.Is(err, payments.ErrAccountInactive) {
				t.Fatalf("expected inactive agent error, got %v", err)
			}
			if f.balance(t, f.agent) != money.FromUnits(100_000) || f.balance(t, f.user) != money.FromUnits(40) {
				t.Fatal("rejected confirmation must not move money")
			}
			got, err := f.store.Entry(ctx, entry.ID)
			if err != nil {
				t.Fatalf("load entry: %v", err)
			}
			if got.Status != ledger.StatusPending {
				t.Fatalf("expected entry to stay pending, got %s", got.Status)
			}
		})
	}
}

func fixtureUser(f *fixture) ledger.Account  { return f.user }
func fixtureAgent(f *fixture) ledger.Account { return f.agent }
