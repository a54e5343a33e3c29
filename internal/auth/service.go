package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mfs-pay/mfs_pay/internal/ledger"
)

// ErrInvalidCredentials is returned when the PIN does not match the account.
var ErrInvalidCredentials = errors.New("invalid credentials")

// Service authenticates account holders and issues bearer tokens.
type Service struct {
	store   ledger.Store
	hasher  Hasher
	tokens  *TokenService
	timeout time.Duration
}

// NewService constructs an auth service.
func NewService(store ledger.Store, hasher Hasher, tokens *TokenService, timeout time.Duration) *Service {
	return &Service{store: store, hasher: hasher, tokens: tokens, timeout: timeout}
}

// LoginResult carries the issued token and the authenticated account.
type LoginResult struct {
	Token     string
	ExpiresAt time.Time
	Account   ledger.Account
}

// Login resolves the account by email or mobile and checks the PIN.
func (s *Service) Login(ctx context.Context, identifier, pin string) (LoginResult, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	account, err := ledger.FindByIdentifier(ctx, s.store, identifier)
	if err != nil {
		return LoginResult{}, err
	}
	if !s.hasher.Verify(pin, account.PINHash) {
		return LoginResult{}, ErrInvalidCredentials
	}

	token, exp, err := s.tokens.Issue(account.ID, account.Email)
	if err != nil {
		return LoginResult{}, fmt.Errorf("issue token: %w", err)
	}
	return LoginResult{Token: token, ExpiresAt: exp, Account: account}, nil
}
