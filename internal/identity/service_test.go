package identity

import (
	"context"
	"errors"
	"testing"

	"github.com/mfs-pay/mfs_pay/internal/auth"
	"github.com/mfs-pay/mfs_pay/internal/ledger"
	"github.com/mfs-pay/mfs_pay/internal/money"
)

func newTestService(t *testing.T) (*Service, ledger.Store) {
	t.Helper()
	store := ledger.NewInMemory()
	return NewService(store, auth.BcryptHasher{Cost: 10}, 0), store
}

func register(t *testing.T, svc *Service, email, mobile string, role ledger.Role) ledger.Account {
	t.Helper()
	a, err := svc.Register(context.Background(), Registration{Name: email, PIN: "12345", Mobile: mobile, Email: email, Role: role})
	if err != nil {
		t.Fatalf("register %s: %v", email, err)
	}
	return a
}

func TestRegister_StartingBalanceAndPendingStatus(t *testing.T) {
	svc, _ := newTestService(t)

	cases := []struct {
		role ledger.Role
		want money.Money
	}{
		{ledger.RoleUser, money.FromUnits(40)},
		{ledger.RoleAgent, money.FromUnits(100_000)},
		{ledger.RoleAdmin, 0},
	}
	for i, tc := range cases {
		a := register(t, svc, string(tc.role)+"@mfs.test", "0170000000"+string(rune('0'+i)), tc.role)
		if a.Balance != tc.want {
			t.Fatalf("%s: expected balance %s got %s", tc.role, tc.want, a.Balance)
		}
		if a.Status != ledger.AccountPending {
			t.Fatalf("%s: expected pending status, got %s", tc.role, a.Status)
		}
		if string(a.PINHash) == "12345" || !(auth.BcryptHasher{}).Verify("12345", a.PINHash) {
			t.Fatalf("%s: pin must be stored hashed", tc.role)
		}
	}
}

func TestRegister_DuplicateLeavesStoreUnchanged(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	register(t, svc, "a@mfs.test", "01711111111", ledger.RoleUser)

	dupEmail := Registration{PIN: "1234", Email: "a@mfs.test", Mobile: "01722222222", Role: ledger.RoleUser}
	if _, err := svc.Register(ctx, dupEmail); !errors.Is(err, ledger.ErrAlreadyExists) {
		t.Fatalf("expected already exists for email, got %v", err)
	}
	dupMobile := Registration{PIN: "1234", Email: "b@mfs.test", Mobile: "01711111111", Role: ledger.RoleUser}
	if _, err := svc.Register(ctx, dupMobile); !errors.Is(err, ledger.ErrAlreadyExists) {
		t.Fatalf("expected already exists for mobile, got %v", err)
	}

	accounts, err := store.ListAccounts(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(accounts) != 1 {
		t.Fatalf("expected one account after rejected duplicates, got %d", len(accounts))
	}
}

func TestRegister_Validation(t *testing.T) {
	svc, _ := newTestService(t)
	base := Registration{PIN: "1234", Email: "a@mfs.test", Mobile: "01711111111", Role: ledger.RoleUser}

	cases := map[string]func(r *Registration){
		"short pin":     func(r *Registration) { r.PIN = "123" },
		"non-digit pin": func(r *Registration) { r.PIN = "12a4" },
		"bad email":     func(r *Registration) { r.Email = "nope" },
		"no mobile":     func(r *Registration) { r.Mobile = " " },
		"unknown role":  func(r *Registration) { r.Role = "merchant" },
	}
	for name, mutate := range cases {
		reg := base
		mutate(&reg)
		if _, err := svc.Register(context.Background(), reg); !errors.Is(err, ErrInvalidRegistration) {
			t.Fatalf("%s: expected invalid registration, got %v", name, err)
		}
	}
}

func TestRegister_SecondAdminRejected(t *testing.T) {
	svc, _ := newTestService(t)
	register(t, svc, "admin@mfs.test", "01700000000", ledger.RoleAdmin)

	_, err := svc.Register(context.Background(), Registration{PIN: "1234", Email: "root@mfs.test", Mobile: "01799999999", Role: ledger.RoleAdmin})
	if !errors.Is(err, ledger.ErrAdminExists) {
		t.Fatalf("expected admin exists, got %v", err)
	}
}

func TestAdministrativeActions(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	admin := register(t, svc, "admin@mfs.test", "01700000000", ledger.RoleAdmin)
	user := register(t, svc, "u@mfs.test", "01711111111", ledger.RoleUser)
	agent := register(t, svc, "g@mfs.test", "01722222222", ledger.RoleAgent)

	if err := svc.SetStatus(ctx, user.ID, agent.Email, ledger.AccountActive); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected non-admin status change to be forbidden, got %v", err)
	}
	if err := svc.SetStatus(ctx, admin.ID, agent.Email, ledger.AccountActive); err != nil {
		t.Fatalf("set status: %v", err)
	}
	got, _ := store.AccountByEmail(ctx, agent.Email)
	if got.Status != ledger.AccountActive {
		t.Fatalf("expected agent active, got %s", got.Status)
	}
	if err := svc.SetStatus(ctx, admin.ID, agent.Email, "suspended"); !errors.Is(err, ErrInvalidRegistration) {
		t.Fatalf("expected unknown status to be rejected, got %v", err)
	}

	if err := svc.ChangeRole(ctx, admin.ID, user.ID, ledger.RoleAdmin); !errors.Is(err, ledger.ErrAdminExists) {
		t.Fatalf("expected second admin promotion to fail, got %v", err)
	}
	if err := svc.ChangeRole(ctx, admin.ID, admin.ID, ledger.RoleUser); !errors.Is(err, ErrSelfModification) {
		t.Fatalf("expected admin self-demotion to fail, got %v", err)
	}
	if err := svc.ChangeRole(ctx, admin.ID, user.ID, ledger.RoleAgent); err != nil {
		t.Fatalf("change role: %v", err)
	}

	if err := svc.Delete(ctx, user.ID, agent.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected non-admin delete to be forbidden, got %v", err)
	}
	if err := svc.Delete(ctx, admin.ID, admin.ID); !errors.Is(err, ErrSelfModification) {
		t.Fatalf("expected admin self-delete to fail, got %v", err)
	}
	if err := svc.Delete(ctx, admin.ID, agent.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := svc.Profile(ctx, agent.ID); !errors.Is(err, ledger.ErrAccountNotFound) {
		t.Fatalf("expected deleted account to be gone, got %v", err)
	}
}
