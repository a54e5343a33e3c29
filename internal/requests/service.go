// Package requests implements the request-now, confirm-later operations.
// Creating a request records a pending entry and moves nothing; confirming
// it moves the money and flips the entry in one ledger batch, so a pending
// entry is settled at most once.
package requests

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mfs-pay/mfs_pay/internal/fees"
	"github.com/mfs-pay/mfs_pay/internal/ledger"
	"github.com/mfs-pay/mfs_pay/internal/notification"
	"github.com/mfs-pay/mfs_pay/internal/payments"
)

var (
	// ErrNotRequestKind is returned when an operation is not a two-phase request.
	ErrNotRequestKind = errors.New("not a request operation")

	// ErrNotAuthorized is returned when the actor may not resolve the request.
	ErrNotAuthorized = errors.New("not authorized to resolve this request")

	// ErrPartyMissing is returned when a party of a pending request no longer exists.
	ErrPartyMissing = errors.New("sender or receiver not found")
)

// Resolver records and resolves pending requests.
type Resolver struct {
	engine   *payments.Engine
	notifier notification.Notifier
	logger   *slog.Logger
}

// NewResolver constructs a resolver on top of the engine's store and checks.
func NewResolver(engine *payments.Engine, notifier notification.Notifier, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{engine: engine, notifier: notifier, logger: logger}
}

// Create authorizes the order like its immediate counterpart and records a
// pending entry. No balance moves.
func (r *Resolver) Create(ctx context.Context, kind ledger.Kind, order payments.Order) (ledger.Entry, error) {
	rule, ok := payments.Rules[kind]
	if !ok || !kind.IsRequest() {
		return ledger.Entry{}, fmt.Errorf("%w: %s", ErrNotRequestKind, kind)
	}
	ctx, cancel := r.engine.Bounded(ctx)
	defer cancel()

	parties, err := r.engine.Authorize(ctx, rule, order)
	if err != nil {
		return ledger.Entry{}, payments.Unavailable(err)
	}
	quote, err := r.engine.Policy().Quote(rule.Fee, order.Amount)
	if err != nil {
		return ledger.Entry{}, err
	}
	if kind == ledger.KindCashOutRequest {
		// The user asked to confirm pays, so they must cover the amount now.
		payer, _ := settlementParties(kind, parties.Sender, parties.Receiver)
		if payer.Balance < quote.SenderDebit {
			return ledger.Entry{}, fmt.Errorf("%w: need %s, have %s", ledger.ErrInsufficientFunds, quote.SenderDebit, payer.Balance)
		}
	}

	entries, err := r.engine.Store().Apply(ctx, ledger.Batch{Entries: []ledger.Entry{{
		Kind:     kind,
		Sender:   parties.Sender.Email,
		Receiver: parties.Receiver.Email,
		Amount:   quote.Principal,
		Status:   ledger.StatusPending,
	}}})
	if err != nil {
		return ledger.Entry{}, payments.Unavailable(err)
	}
	entry := entries[0]
	r.notify(ctx, notification.KindRequestCreated, entry, entry.Receiver)
	return entry, nil
}

// Confirm settles a pending request. Only the receiver or the administrator
// may confirm. A second confirmation fails with ledger.ErrAlreadyConfirmed.
func (r *Resolver) Confirm(ctx context.Context, actorID, entryID string) (ledger.Entry, error) {
	ctx, cancel := r.engine.Bounded(ctx)
	defer cancel()
	store := r.engine.Store()

	entry, actor, err := r.load(ctx, actorID, entryID)
	if err != nil {
		return ledger.Entry{}, err
	}
	if actor.Email != entry.Receiver && actor.Role != ledger.RoleAdmin {
		return ledger.Entry{}, ErrNotAuthorized
	}

	sender, err := store.AccountByEmail(ctx, entry.Sender)
	if err != nil {
		return ledger.Entry{}, payments.Unavailable(missing(err))
	}
	receiver, err := store.AccountByEmail(ctx, entry.Receiver)
	if err != nil {
		return ledger.Entry{}, payments.Unavailable(missing(err))
	}
	if err := payments.RequireActiveAgents(sender, receiver); err != nil {
		return ledger.Entry{}, err
	}
	debit, credit := settlementParties(entry.Kind, sender, receiver)
	quote, err := r.engine.Policy().QuoteAmount(fees.OpRequest, entry.Amount)
	if err != nil {
		return ledger.Entry{}, err
	}

	_, err = store.Apply(ctx, ledger.Batch{
		Postings: []ledger.Posting{
			{AccountID: debit.ID, Delta: -quote.SenderDebit},
			{AccountID: credit.ID, Delta: quote.ReceiverCredit},
		},
		Transition: &ledger.Transition{EntryID: entry.ID, To: ledger.StatusConfirmed},
	})
	if err != nil {
		return ledger.Entry{}, payments.Unavailable(err)
	}

	entry.Status = ledger.StatusConfirmed
	r.notify(ctx, notification.KindRequestConfirmed, entry, entry.Sender)
	return entry, nil
}

// Decline closes a pending request without moving money. The receiver, the
// sender or the administrator may decline. The entry is kept as declined.
func (r *Resolver) Decline(ctx context.Context, actorID, entryID string) (ledger.Entry, error) {
	ctx, cancel := r.engine.Bounded(ctx)
	defer cancel()

	entry, actor, err := r.load(ctx, actorID, entryID)
	if err != nil {
		return ledger.Entry{}, err
	}
	if actor.Email != entry.Receiver && actor.Email != entry.Sender && actor.Role != ledger.RoleAdmin {
		return ledger.Entry{}, ErrNotAuthorized
	}
	return r.decline(ctx, entry)
}

// ExpireStale declines every request still pending after olderThan and
// returns how many were closed.
func (r *Resolver) ExpireStale(ctx context.Context, olderThan time.Duration) (int, error) {
	stale, err := r.engine.Store().Entries(ctx, ledger.EntryFilter{
		Statuses:      []ledger.Status{ledger.StatusPending},
		CreatedBefore: time.Now().UTC().Add(-olderThan),
	})
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, entry := range stale {
		if !entry.Kind.IsRequest() {
			continue
		}
		_, err := r.decline(ctx, entry)
		switch {
		case err == nil:
			expired++
		case errors.Is(err, ledger.ErrAlreadyConfirmed), errors.Is(err, ledger.ErrAlreadyDeclined):
			// Resolved concurrently.
		default:
			return expired, err
		}
	}
	return expired, nil
}

func (r *Resolver) decline(ctx context.Context, entry ledger.Entry) (ledger.Entry, error) {
	_, err := r.engine.Store().Apply(ctx, ledger.Batch{
		Transition: &ledger.Transition{EntryID: entry.ID, To: ledger.StatusDeclined},
	})
	if err != nil {
		return ledger.Entry{}, payments.Unavailable(err)
	}
	entry.Status = ledger.StatusDeclined
	r.notify(ctx, notification.KindRequestDeclined, entry, entry.Sender)
	return entry, nil
}

// load fetches the entry and the acting account and rejects entries that are
// not open requests.
func (r *Resolver) load(ctx context.Context, actorID, entryID string) (ledger.Entry, ledger.Account, error) {
	store := r.engine.Store()
	entry, err := store.Entry(ctx, entryID)
	if err != nil {
		return ledger.Entry{}, ledger.Account{}, payments.Unavailable(err)
	}
	if !entry.Kind.IsRequest() {
		return ledger.Entry{}, ledger.Account{}, ledger.ErrNotPending
	}
	switch entry.Status {
	case ledger.StatusConfirmed:
		return ledger.Entry{}, ledger.Account{}, ledger.ErrAlreadyConfirmed
	case ledger.StatusDeclined:
		return ledger.Entry{}, ledger.Account{}, ledger.ErrAlreadyDeclined
	}
	actor, err := store.AccountByID(ctx, actorID)
	if errors.Is(err, ledger.ErrAccountNotFound) {
		return ledger.Entry{}, ledger.Account{}, ErrNotAuthorized
	}
	if err != nil {
		return ledger.Entry{}, ledger.Account{}, payments.Unavailable(err)
	}
	return entry, actor, nil
}

// settlementParties returns who is debited and who is credited when a
// request of kind settles.
func settlementParties(kind ledger.Kind, sender, receiver ledger.Account) (debit, credit ledger.Account) {
	switch kind {
	case ledger.KindWithdrawRequest:
		return sender, receiver
	default:
		// cash-in-request, cash-request and cash-out-request: the party asked
		// to confirm pays the requester.
		return receiver, sender
	}
}

func missing(err error) error {
	if errors.Is(err, ledger.ErrAccountNotFound) {
		return ErrPartyMissing
	}
	return err
}

func (r *Resolver) notify(ctx context.Context, kind string, entry ledger.Entry, destination string) {
	if r.notifier == nil {
		return
	}
	msg := notification.Message{
		Kind:        kind,
		Operation:   string(entry.Kind),
		EntryID:     entry.ID,
		Sender:      entry.Sender,
		Destination: destination,
		Amount:      entry.Amount,
		Body:        fmt.Sprintf("%s of %s is %s", entry.Kind, entry.Amount, entry.Status),
		OccurredAt:  time.Now().UTC(),
	}
	if err := r.notifier.Send(context.WithoutCancel(ctx), msg); err != nil {
		r.logger.Warn("notification failed", slog.String("entry_id", entry.ID), slog.Any("error", err))
	}
}
