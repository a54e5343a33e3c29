// Package fees computes how an operation's principal and charges are split
// between the sender, the receiver and the fee collector. It has no side effects.
package fees

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/mfs-pay/mfs_pay/internal/money"
)

// ErrInvalidAmount is returned for non-numeric, zero or negative amounts.
var ErrInvalidAmount = errors.New("invalid amount")

// Operation identifies the kind of money movement being priced.
type Operation string

const (
	OpTransfer Operation = "transfer"
	OpCashOut  Operation = "cash-out"
	OpCashIn   Operation = "cash-in"
	// OpRequest covers every two-phase request kind; they settle 1:1.
	OpRequest  Operation = "request"
)

// Beneficiary names the party credited with a fee share.
type Beneficiary string

const (
	ToCollector Beneficiary = "collector"
	ToReceiver  Beneficiary = "receiver"
)

// Fee share labels, matching the ledger entry kinds they are recorded under.
const (
	LabelTransactionFee = "transaction-fee"
	LabelAdminFee       = "admin-fee"
	LabelAgentFee       = "agent-fee"
)

// Share is one fee component.
type Share struct {
	Label       string
	Beneficiary Beneficiary
	Amount      money.Money
}

// Quote is the priced outcome of an operation.
type Quote struct {
	Operation       Operation
	Principal       money.Money
	SenderDebit     money.Money
	ReceiverCredit  money.Money
	CollectorCredit money.Money
	TotalFee        money.Money
	Shares          []Share
}

// Policy holds the tariff.
type Policy struct {
	TransferFee          money.Money
	TransferFeeThreshold money.Money
	CashOutAdminRate     decimal.Decimal
	CashOutAgentRate     decimal.Decimal
}

// Default returns the standard tariff: a flat 5 on transfers above 100 and
// 1.5% on cash-out, 0.5% to the collector and 1% to the agent.
func Default() Policy {
	return Policy{
		TransferFee:          money.FromUnits(5),
		TransferFeeThreshold: money.FromUnits(100),
		CashOutAdminRate:     decimal.RequireFromString("0.005"),
		CashOutAgentRate:     decimal.RequireFromString("0.01"),
	}
}

// Validate rejects tariffs that could produce negative movements.
func (p Policy) Validate() error {
	if p.TransferFee < 0 || p.TransferFeeThreshold < 0 {
		return fmt.Errorf("transfer fee and threshold must not be negative")
	}
	if p.CashOutAdminRate.IsNegative() || p.CashOutAgentRate.IsNegative() {
		return fmt.Errorf("cash-out rates must not be negative")
	}
	if p.CashOutAdminRate.Add(p.CashOutAgentRate).GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return fmt.Errorf("cash-out rates must total less than 100%%")
	}
	return nil
}

// Quote parses raw and prices the operation.
func (p Policy) Quote(op Operation, raw string) (Quote, error) {
	amount, err := money.Parse(raw)
	if err != nil {
		return Quote{}, fmt.Errorf("%w: %v", ErrInvalidAmount, err)
	}
	return p.QuoteAmount(op, amount)
}

// QuoteAmount prices an already parsed amount.
func (p Policy) QuoteAmount(op Operation, amount money.Money) (Quote, error) {
	if amount <= 0 {
		return Quote{}, fmt.Errorf("%w: %v", ErrInvalidAmount, money.ErrNotPositive)
	}

	q := Quote{Operation: op, Principal: amount}
	switch op {
	case OpTransfer:
		var fee money.Money
		if amount > p.TransferFeeThreshold {
			fee = p.TransferFee
		}
		q.SenderDebit = amount + fee
		q.ReceiverCredit = amount
		q.CollectorCredit = fee
		q.TotalFee = fee
		if fee > 0 {
			q.Shares = []Share{{Label: LabelTransactionFee, Beneficiary: ToCollector, Amount: fee}}
		}
	case OpCashOut:
		// The fee is carved out of the principal. The agent absorbs the
		// rounding remainder so the three movements always net to zero.
		adminShare := amount.MulRate(p.CashOutAdminRate)
		totalFee := amount.MulRate(p.CashOutAdminRate.Add(p.CashOutAgentRate))
		if totalFee < adminShare {
			totalFee = adminShare
		}
		agentShare := totalFee - adminShare
		q.SenderDebit = amount
		q.ReceiverCredit = amount - adminShare
		q.CollectorCredit = adminShare
		q.TotalFee = totalFee
		if adminShare > 0 {
			q.Shares = append(q.Shares, Share{Label: LabelAdminFee, Beneficiary: ToCollector, Amount: adminShare})
		}
		if agentShare > 0 {
			q.Shares = append(q.Shares, Share{Label: LabelAgentFee, Beneficiary: ToReceiver, Amount: agentShare})
		}
	case OpCashIn, OpRequest:
		q.SenderDebit = amount
		q.ReceiverCredit = amount
	default:
		return Quote{}, fmt.Errorf("unknown operation %q", op)
	}
	return q, nil
}

// Fee returns the share recorded under label, or zero.
func (q Quote) Fee(label string) money.Money {
	for _, s := range q.Shares {
		if s.Label == label {
			return s.Amount
		}
	}
	return 0
}
