package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mfs-pay/mfs_pay/internal/auth"
	"github.com/mfs-pay/mfs_pay/internal/ledger"
	"github.com/mfs-pay/mfs_pay/internal/money"
)

const minPINLength = 4

var (
	// ErrInvalidRegistration is returned when a registration field is missing or malformed.
	ErrInvalidRegistration = errors.New("invalid registration")

	// ErrForbidden is returned when a non-administrator attempts an administrative action.
	ErrForbidden = errors.New("administrator privileges required")

	// ErrSelfModification is returned when the administrator tries to delete or demote itself.
	ErrSelfModification = errors.New("administrator cannot modify its own account this way")
)

// startingBalance is credited on registration.
var startingBalance = map[ledger.Role]money.Money{
	ledger.RoleUser:  money.FromUnits(40),
	ledger.RoleAgent: money.FromUnits(100_000),
	ledger.RoleAdmin: 0,
}

// Registration holds the fields supplied when an account is created.
type Registration struct {
	Name         string
	PIN          string
	NID          string
	Mobile       string
	Email        string
	ProfileImage string
	Role         ledger.Role
}

// Service manages the account lifecycle around the ledger store.
type Service struct {
	store   ledger.Store
	hasher  auth.Hasher
	timeout time.Duration
}

// NewService creates a new identity service.
func NewService(store ledger.Store, hasher auth.Hasher, timeout time.Duration) *Service {
	return &Service{store: store, hasher: hasher, timeout: timeout}
}

func (s *Service) bounded(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.timeout)
}

// Register creates a pending account with its role's starting balance and a hashed PIN.
func (s *Service) Register(ctx context.Context, reg Registration) (ledger.Account, error) {
	reg.Email = strings.TrimSpace(reg.Email)
	reg.Mobile = strings.TrimSpace(reg.Mobile)
	if err := validate(reg); err != nil {
		return ledger.Account{}, err
	}

	hash, err := s.hasher.Hash(reg.PIN)
	if err != nil {
		return ledger.Account{}, err
	}

	account := ledger.Account{
		ID:           uuid.NewString(),
		Name:         strings.TrimSpace(reg.Name),
		Email:        reg.Email,
		Mobile:       reg.Mobile,
		NID:          strings.TrimSpace(reg.NID),
		ProfileImage: reg.ProfileImage,
		Role:         reg.Role,
		Status:       ledger.AccountPending,
		PINHash:      hash,
		Balance:      startingBalance[reg.Role],
		CreatedAt:    time.Now().UTC(),
	}

	ctx, cancel := s.bounded(ctx)
	defer cancel()
	if err := s.store.CreateAccount(ctx, account); err != nil {
		return ledger.Account{}, err
	}
	return account, nil
}

func validate(reg Registration) error {
	switch {
	case !strings.Contains(reg.Email, "@"):
		return fmt.Errorf("%w: a valid email is required", ErrInvalidRegistration)
	case reg.Mobile == "" || strings.Contains(reg.Mobile, "@"):
		return fmt.Errorf("%w: a valid mobile number is required", ErrInvalidRegistration)
	case !reg.Role.Valid():
		return fmt.Errorf("%w: unknown role %q", ErrInvalidRegistration, reg.Role)
	case len(reg.PIN) < minPINLength || !allDigits(reg.PIN):
		return fmt.Errorf("%w: PIN must be at least %d digits", ErrInvalidRegistration, minPINLength)
	}
	return nil
}

func allDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// List returns every account.
func (s *Service) List(ctx context.Context) ([]ledger.Account, error) {
	ctx, cancel := s.bounded(ctx)
	defer cancel()
	return s.store.ListAccounts(ctx)
}

// ByEmail returns the account registered under email.
func (s *Service) ByEmail(ctx context.Context, email string) (ledger.Account, error) {
	ctx, cancel := s.bounded(ctx)
	defer cancel()
	return s.store.AccountByEmail(ctx, email)
}

// Profile returns the caller's own account, balance included.
func (s *Service) Profile(ctx context.Context, accountID string) (ledger.Account, error) {
	ctx, cancel := s.bounded(ctx)
	defer cancel()
	return s.store.AccountByID(ctx, accountID)
}

// Delete removes an account. Its ledger history is kept.
func (s *Service) Delete(ctx context.Context, actorID, targetID string) error {
	ctx, cancel := s.bounded(ctx)
	defer cancel()
	if err := s.requireAdmin(ctx, actorID); err != nil {
		return err
	}
	if actorID == targetID {
		return ErrSelfModification
	}
	return s.store.DeleteAccount(ctx, targetID)
}

// SetStatus changes the approval status of the account registered under email.
func (s *Service) SetStatus(ctx context.Context, actorID, email string, status ledger.AccountStatus) error {
	if !status.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidRegistration, status)
	}
	ctx, cancel := s.bounded(ctx)
	defer cancel()
	if err := s.requireAdmin(ctx, actorID); err != nil {
		return err
	}
	return s.store.UpdateStatus(ctx, email, status)
}

// ChangeRole moves an account to another role. Promoting a second administrator fails with
// ledger.ErrAdminExists.
func (s *Service) ChangeRole(ctx context.Context, actorID, targetID string, role ledger.Role) error {
	if !role.Valid() {
		return fmt.Errorf("%w: unknown role %q", ErrInvalidRegistration, role)
	}
	ctx, cancel := s.bounded(ctx)
	defer cancel()
	if err := s.requireAdmin(ctx, actorID); err != nil {
		return err
	}
	if actorID == targetID && role != ledger.RoleAdmin {
		return ErrSelfModification
	}
	return s.store.UpdateRole(ctx, targetID, role)
}

func (s *Service) requireAdmin(ctx context.Context, actorID string) error {
	actor, err := s.store.AccountByID(ctx, actorID)
	if errors.Is(err, ledger.ErrAccountNotFound) {
		return ErrForbidden
	}
	if err != nil {
		return err
	}
	if actor.Role != ledger.RoleAdmin {
		return ErrForbidden
	}
	return nil
}
