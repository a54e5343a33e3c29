package payments

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mfs-pay/mfs_pay/internal/auth"
	"github.com/mfs-pay/mfs_pay/internal/fees"
	"github.com/mfs-pay/mfs_pay/internal/ledger"
	"github.com/mfs-pay/mfs_pay/internal/notification"
)

var (
	// ErrSenderNotFound indicates the authenticated account no longer exists.
	ErrSenderNotFound = errors.New("sender not found")

	// ErrReceiverNotFound indicates no account matches the receiver identifier.
	ErrReceiverNotFound = errors.New("receiver not found")

	// ErrRoleViolation indicates the sender and receiver roles are not allowed for the operation.
	ErrRoleViolation = errors.New("operation not permitted between these account roles")

	// ErrInvalidCredential indicates the supplied PIN does not match the sender.
	ErrInvalidCredential = errors.New("invalid PIN")

	// ErrAccountInactive indicates an agent taking part in the operation is not active.
	ErrAccountInactive = errors.New("agent account is not active")

	// ErrFeeCollectorMissing indicates a fee is due but no administrator account exists.
	ErrFeeCollectorMissing = errors.New("fee collector account not found")
)

// Rule binds an entry kind to its permitted role pair and tariff.
type Rule struct {
	Kind     ledger.Kind
	Sender   ledger.Role
	Receiver ledger.Role
	Fee      fees.Operation
}

// Rules lists every operation the engine and the request resolver accept.
var Rules = map[ledger.Kind]Rule{
	ledger.KindTransfer:        {ledger.KindTransfer, ledger.RoleUser, ledger.RoleUser, fees.OpTransfer},
	ledger.KindCashOut:         {ledger.KindCashOut, ledger.RoleUser, ledger.RoleAgent, fees.OpCashOut},
	ledger.KindCashIn:          {ledger.KindCashIn, ledger.RoleAgent, ledger.RoleUser, fees.OpCashIn},
	ledger.KindCashInRequest:   {ledger.KindCashInRequest, ledger.RoleUser, ledger.RoleAgent, fees.OpRequest},
	ledger.KindCashRequest:     {ledger.KindCashRequest, ledger.RoleAgent, ledger.RoleAdmin, fees.OpRequest},
	ledger.KindWithdrawRequest: {ledger.KindWithdrawRequest, ledger.RoleAgent, ledger.RoleAdmin, fees.OpRequest},
	ledger.KindCashOutRequest:  {ledger.KindCashOutRequest, ledger.RoleAgent, ledger.RoleUser, fees.OpRequest},
}

// Order is a caller's instruction to move money.
type Order struct {
	// SenderID is the authenticated account id.
	SenderID string
	// ReceiverIdentifier is an email or a mobile number.
	ReceiverIdentifier string
	Amount             string
	PIN                string
}

// Parties are the resolved and authorized accounts of an order.
type Parties struct {
	Sender   ledger.Account
	Receiver ledger.Account
}

// Receipt describes the committed outcome of an operation. It carries no
// balances; callers re-query them.
type Receipt struct {
	Kind     ledger.Kind
	Sender   string
	Receiver string
	Quote    fees.Quote
	Entries  []ledger.Entry
}

// Engine validates money movements and commits each as one atomic ledger batch.
type Engine struct {
	store    ledger.Store
	policy   fees.Policy
	hasher   auth.Hasher
	notifier notification.Notifier
	timeout  time.Duration
	logger   *slog.Logger
}

// NewEngine constructs a transaction engine. A zero timeout disables the store deadline.
func NewEngine(store ledger.Store, policy fees.Policy, hasher auth.Hasher, notifier notification.Notifier, timeout time.Duration, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{store: store, policy: policy, hasher: hasher, notifier: notifier, timeout: timeout, logger: logger}
}

// Store exposes the backing ledger store.
func (e *Engine) Store() ledger.Store { return e.store }

// Policy exposes the tariff in force.
func (e *Engine) Policy() fees.Policy { return e.policy }

// Bounded derives a context carrying the engine's store deadline.
func (e *Engine) Bounded(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, e.timeout)
}

// Transfer sends money from one user to another. Above the threshold a flat
// fee is charged on top and routed to the administrator.
func (e *Engine) Transfer(ctx context.Context, order Order) (Receipt, error) {
	return e.execute(ctx, Rules[ledger.KindTransfer], order)
}

// CashOut moves money from a user to an agent. The fee is carved out of the
// principal and split between the administrator and the agent.
func (e *Engine) CashOut(ctx context.Context, order Order) (Receipt, error) {
	return e.execute(ctx, Rules[ledger.KindCashOut], order)
}

// CashIn moves money from an agent to a user without a fee.
func (e *Engine) CashIn(ctx context.Context, order Order) (Receipt, error) {
	return e.execute(ctx, Rules[ledger.KindCashIn], order)
}

// Authorize runs the identity half of the pipeline: resolve the sender and
// receiver, check the role pair and agent status, then the PIN.
func (e *Engine) Authorize(ctx context.Context, rule Rule, order Order) (Parties, error) {
	sender, err := e.store.AccountByID(ctx, order.SenderID)
	if err != nil {
		return Parties{}, notFound(err, ErrSenderNotFound)
	}
	receiver, err := ledger.FindByIdentifier(ctx, e.store, order.ReceiverIdentifier)
	if err != nil {
		return Parties{}, notFound(err, ErrReceiverNotFound)
	}
	if sender.ID == receiver.ID {
		return Parties{}, fmt.Errorf("%w: sender and receiver are the same account", ErrRoleViolation)
	}
	if sender.Role != rule.Sender || receiver.Role != rule.Receiver {
		return Parties{}, fmt.Errorf("%w: %s requires %s to %s, got %s to %s",
			ErrRoleViolation, rule.Kind, rule.Sender, rule.Receiver, sender.Role, receiver.Role)
	}
	if err := RequireActiveAgents(sender, receiver); err != nil {
		return Parties{}, err
	}
	if !e.hasher.Verify(order.PIN, sender.PINHash) {
		return Parties{}, ErrInvalidCredential
	}
	return Parties{Sender: sender, Receiver: receiver}, nil
}

// RequireActiveAgents fails with ErrAccountInactive when any agent among
// accounts is not active.
func RequireActiveAgents(accounts ...ledger.Account) error {
	for _, a := range accounts {
		if a.Role == ledger.RoleAgent && a.Status != ledger.AccountActive {
			return fmt.Errorf("%w: %s is %s", ErrAccountInactive, a.Email, a.Status)
		}
	}
	return nil
}

func (e *Engine) execute(ctx context.Context, rule Rule, order Order) (Receipt, error) {
	ctx, cancel := e.Bounded(ctx)
	defer cancel()

	parties, err := e.Authorize(ctx, rule, order)
	if err != nil {
		return Receipt{}, Unavailable(err)
	}
	quote, err := e.policy.Quote(rule.Fee, order.Amount)
	if err != nil {
		return Receipt{}, err
	}
	if parties.Sender.Balance < quote.SenderDebit {
		return Receipt{}, fmt.Errorf("%w: need %s, have %s", ledger.ErrInsufficientFunds, quote.SenderDebit, parties.Sender.Balance)
	}

	var collector ledger.Account
	if quote.CollectorCredit > 0 {
		collector, err = e.store.Admin(ctx)
		if err != nil {
			return Receipt{}, Unavailable(notFound(err, ErrFeeCollectorMissing))
		}
	}

	entries, err := e.store.Apply(ctx, settlement(rule, parties, collector, quote))
	if err != nil {
		return Receipt{}, Unavailable(err)
	}

	receipt := Receipt{
		Kind:     rule.Kind,
		Sender:   parties.Sender.Email,
		Receiver: parties.Receiver.Email,
		Quote:    quote,
		Entries:  entries,
	}
	e.notify(ctx, receipt)
	return receipt, nil
}

// settlement builds the postings and entries for an immediate operation.
// Entry order is principal first, then each fee share.
func settlement(rule Rule, parties Parties, collector ledger.Account, quote fees.Quote) ledger.Batch {
	batch := ledger.Batch{
		Postings: []ledger.Posting{
			{AccountID: parties.Sender.ID, Delta: -quote.SenderDebit},
			{AccountID: parties.Receiver.ID, Delta: quote.ReceiverCredit},
		},
		Entries: []ledger.Entry{{
			Kind:     rule.Kind,
			Sender:   parties.Sender.Email,
			Receiver: parties.Receiver.Email,
			Amount:   quote.Principal,
			Status:   ledger.StatusCompleted,
		}},
	}
	if quote.CollectorCredit > 0 {
		batch.Postings = append(batch.Postings, ledger.Posting{AccountID: collector.ID, Delta: quote.CollectorCredit})
	}
	for _, share := range quote.Shares {
		receiver := parties.Receiver.Email
		if share.Beneficiary == fees.ToCollector {
			receiver = collector.Email
		}
		batch.Entries = append(batch.Entries, ledger.Entry{
			Kind:     ledger.Kind(share.Label),
			Sender:   parties.Sender.Email,
			Receiver: receiver,
			Amount:   share.Amount,
			Status:   ledger.StatusCompleted,
		})
	}
	return batch
}

func (e *Engine) notify(ctx context.Context, r Receipt) {
	if e.notifier == nil || len(r.Entries) == 0 {
		return
	}
	msg := notification.Message{
		Kind:        notification.KindMoneyMoved,
		Operation:   string(r.Kind),
		EntryID:     r.Entries[0].ID,
		Sender:      r.Sender,
		Destination: r.Receiver,
		Amount:      r.Quote.Principal,
		Fee:         r.Quote.TotalFee,
		Body:        fmt.Sprintf("You received %s from %s", r.Quote.ReceiverCredit, r.Sender),
		OccurredAt:  r.Entries[0].CreatedAt,
	}
	if err := e.notifier.Send(context.WithoutCancel(ctx), msg); err != nil {
		e.logger.Warn("notification failed", slog.String("entry_id", msg.EntryID), slog.Any("error", err))
	}
}

func notFound(err, replacement error) error {
	if errors.Is(err, ledger.ErrAccountNotFound) {
		return replacement
	}
	return err
}

// Unavailable reports deadline and cancellation failures as ErrStoreUnavailable.
func Unavailable(err error) error {
	if errors.Is(err, ledger.ErrStoreUnavailable) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %v", ledger.ErrStoreUnavailable, err)
	}
	return err
}
