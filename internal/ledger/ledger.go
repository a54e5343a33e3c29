package ledger

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/mfs-pay/mfs_pay/internal/money"
)

var (
	// ErrAccountNotFound is returned when no account matches the lookup.
	ErrAccountNotFound = errors.New("account not found")

	// ErrEntryNotFound is returned when no ledger entry matches the id.
	ErrEntryNotFound = errors.New("transaction not found")

	// ErrInsufficientFunds occurs when a posting would drive a balance below zero.
	ErrInsufficientFunds = errors.New("insufficient balance")

	// ErrAlreadyExists indicates an account with the same email or mobile exists.
	ErrAlreadyExists = errors.New("user already exists")

	// ErrAdminExists indicates a second administrator was about to be created.
	ErrAdminExists = errors.New("an administrator account already exists")

	// ErrAlreadyConfirmed is returned when a transition targets an entry that is already confirmed.
	ErrAlreadyConfirmed = errors.New("transaction already confirmed")

	// ErrAlreadyDeclined is returned when a transition targets an entry that was declined.
	ErrAlreadyDeclined = errors.New("transaction already declined")

	// ErrNotPending is returned when a transition targets an entry that was never pending.
	ErrNotPending = errors.New("transaction is not a pending request")

	// ErrStoreUnavailable wraps transient backend failures. Nothing was written when it is returned.
	ErrStoreUnavailable = errors.New("store unavailable")
)

// Role is the fixed category of an account.
type Role string

const (
	RoleUser  Role = "user"
	RoleAgent Role = "agent"
	RoleAdmin Role = "admin"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAgent, RoleAdmin:
		return true
	}
	return false
}

// AccountStatus gates privileged actions.
type AccountStatus string

const (
	AccountPending AccountStatus = "pending"
	AccountActive  AccountStatus = "active"
	AccountBlocked AccountStatus = "blocked"
)

// Valid reports whether s is a known account status.
func (s AccountStatus) Valid() bool {
	switch s {
	case AccountPending, AccountActive, AccountBlocked:
		return true
	}
	return false
}

// Account is a registered party holding a balance.
type Account struct {
	ID           string
	Name         string
	Email        string
	Mobile       string
	NID          string
	ProfileImage string
	Role         Role
	Status       AccountStatus
	PINHash      []byte
	Balance      money.Money
	CreatedAt    time.Time
}

// Kind tags a ledger entry with the money movement it records.
type Kind string

const (
	KindTransfer        Kind = "send-money"
	KindCashOut         Kind = "cash-out"
	KindCashIn          Kind = "cash-in"
	KindCashInRequest   Kind = "cash-in-request"
	KindCashRequest     Kind = "cash-request"
	KindWithdrawRequest Kind = "withdraw-request"
	KindCashOutRequest  Kind = "cash-out-request"
	KindTransactionFee  Kind = "transaction-fee"
	KindAdminFee        Kind = "admin-fee"
	KindAgentFee        Kind = "agent-fee"
)

// FeeKinds lists the kinds that record system-levied charges.
var FeeKinds = []Kind{KindTransactionFee, KindAdminFee, KindAgentFee}

// IsRequest reports whether k is a two-phase request kind.
func (k Kind) IsRequest() bool {
	switch k {
	case KindCashInRequest, KindCashRequest, KindWithdrawRequest, KindCashOutRequest:
		return true
	}
	return false
}

// Status is the lifecycle state of a ledger entry.
type Status string

const (
	// StatusCompleted marks entries applied immediately; they never pass through pending.
	StatusCompleted Status = "completed"
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusDeclined  Status = "declined"
)

// Settled reports whether money actually moved for an entry in this status.
func (s Status) Settled() bool {
	return s == StatusCompleted || s == StatusConfirmed
}

// Entry is one money movement or fee charge. Sender and Receiver are account
// emails; they are weak references and survive account deletion.
type Entry struct {
	ID         string
	Kind       Kind
	Sender     string
	Receiver   string
	Amount     money.Money
	Status     Status
	CreatedAt  time.Time
	ResolvedAt *time.Time
}

// Posting is a signed balance change for one account.
type Posting struct {
	AccountID string
	Delta     money.Money
}

// Transition moves a pending entry to a terminal status. It succeeds only if
// the entry is still pending when the batch commits.
type Transition struct {
	EntryID string
	To      Status
}

// Batch is the atomic unit of work: every posting, entry insert and the
// optional transition commit together or not at all.
type Batch struct {
	Postings   []Posting
	Entries    []Entry
	Transition *Transition
}

// EntryFilter narrows entry listings. Zero values match everything.
type EntryFilter struct {
	Party         string
	Kinds         []Kind
	Statuses      []Status
	CreatedBefore time.Time
	Limit         int
}

// KindTotal is the summed amount for one entry kind.
type KindTotal struct {
	Kind  Kind
	Total money.Money
}

// PartyTotal is the summed amount received by one party.
type PartyTotal struct {
	Receiver string
	Total    money.Money
}

// Store is the contract implemented by persistence backends (in-memory, Postgres).
type Store interface {
	CreateAccount(ctx context.Context, account Account) error
	AccountByID(ctx context.Context, id string) (Account, error)
	AccountByEmail(ctx context.Context, email string) (Account, error)
	AccountByMobile(ctx context.Context, mobile string) (Account, error)
	Admin(ctx context.Context) (Account, error)
	ListAccounts(ctx context.Context) ([]Account, error)
	UpdateStatus(ctx context.Context, email string, status AccountStatus) error
	UpdateRole(ctx context.Context, id string, role Role) error
	DeleteAccount(ctx context.Context, id string) error

	Apply(ctx context.Context, batch Batch) ([]Entry, error)
	Entry(ctx context.Context, id string) (Entry, error)
	Entries(ctx context.Context, filter EntryFilter) ([]Entry, error)
	Totals(ctx context.Context, filter EntryFilter) ([]KindTotal, error)
	FeeIncome(ctx context.Context) ([]PartyTotal, error)
}

// FindByIdentifier resolves an account by email when the identifier
// contains "@", by mobile number otherwise.
func FindByIdentifier(ctx context.Context, s Store, identifier string) (Account, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return Account{}, ErrAccountNotFound
	}
	if strings.Contains(identifier, "@") {
		return s.AccountByEmail(ctx, identifier)
	}
	return s.AccountByMobile(ctx, identifier)
}

// transitionError maps the current status of an entry to the error a
// pending-only transition reports.
func transitionError(current Status) error {
	switch current {
	case StatusPending:
		return nil
	case StatusConfirmed:
		return ErrAlreadyConfirmed
	case StatusDeclined:
		return ErrAlreadyDeclined
	default:
		return ErrNotPending
	}
}

// mergePostings folds postings per account so each account is locked and
// checked once.
func mergePostings(postings []Posting) ([]string, map[string]money.Money) {
	deltas := make(map[string]money.Money, len(postings))
	order := make([]string, 0, len(postings))
	for _, p := range postings {
		if _, seen := deltas[p.AccountID]; !seen {
			order = append(order, p.AccountID)
		}
		deltas[p.AccountID] += p.Delta
	}
	return order, deltas
}

func (f EntryFilter) matches(e Entry) bool {
	if f.Party != "" && e.Sender != f.Party && e.Receiver != f.Party {
		return false
	}
	if len(f.Kinds) > 0 && !containsKind(f.Kinds, e.Kind) {
		return false
	}
	if len(f.Statuses) > 0 && !containsStatus(f.Statuses, e.Status) {
		return false
	}
	if !f.CreatedBefore.IsZero() && !e.CreatedAt.Before(f.CreatedBefore) {
		return false
	}
	return true
}

func containsKind(kinds []Kind, k Kind) bool {
	for _, candidate := range kinds {
		if candidate == k {
			return true
		}
	}
	return false
}

func containsStatus(statuses []Status, s Status) bool {
	for _, candidate := range statuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// SettledStatuses are the statuses reports aggregate over.
var SettledStatuses = []Status{StatusCompleted, StatusConfirmed}
