package fees

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/mfs-pay/mfs_pay/internal/money"
)

func TestTransferFee(t *testing.T) {
	p := Default()
	cases := []struct {
		raw  string
		fee  money.Money
		debt money.Money
	}{
		{raw: "150", fee: 500, debt: 15_500},
		{raw: "100", fee: 0, debt: 10_000},
		{raw: "100.01", fee: 500, debt: 10_501},
		{raw: "20", fee: 0, debt: 2_000},
	}
	for _, tc := range cases {
		q, err := p.Quote(OpTransfer, tc.raw)
		if err != nil {
			t.Fatalf("quote %s: %v", tc.raw, err)
		}
		if q.TotalFee != tc.fee || q.SenderDebit != tc.debt {
			t.Fatalf("quote %s: expected fee %d debit %d, got %+v", tc.raw, tc.fee, tc.debt, q)
		}
		if q.SenderDebit != q.ReceiverCredit+q.CollectorCredit {
			t.Fatalf("quote %s: movements do not balance: %+v", tc.raw, q)
		}
		if q.Fee(LabelTransactionFee) != tc.fee {
			t.Fatalf("quote %s: expected transaction-fee share %d", tc.raw, tc.fee)
		}
	}
}

func TestCashOutSplit(t *testing.T) {
	p := Default()
	q, err := p.Quote(OpCashOut, "1000")
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	if q.SenderDebit != 100_000 {
		t.Fatalf("expected sender debit 100000, got %d", q.SenderDebit)
	}
	if q.ReceiverCredit != 98_500+1_000 {
		// net of the 1.5% fee (98500) plus the agent share (1000)
		t.Fatalf("expected agent credit 99500, got %d", q.ReceiverCredit)
	}
	if q.CollectorCredit != 500 || q.Fee(LabelAdminFee) != 500 {
		t.Fatalf("expected admin share 500, got %+v", q)
	}
	if q.Fee(LabelAgentFee) != 1_000 || q.TotalFee != 1_500 {
		t.Fatalf("expected agent share 1000 and total fee 1500, got %+v", q)
	}
}

func TestCashOutRemainderConserved(t *testing.T) {
	p := Default()
	for _, raw := range []string{"0.01", "0.99", "1.33", "33.37", "12345.67"} {
		q, err := p.Quote(OpCashOut, raw)
		if err != nil {
			t.Fatalf("quote %s: %v", raw, err)
		}
		if q.SenderDebit != q.ReceiverCredit+q.CollectorCredit {
			t.Fatalf("quote %s: lost a cent: %+v", raw, q)
		}
		if q.TotalFee != q.Fee(LabelAdminFee)+q.Fee(LabelAgentFee) {
			t.Fatalf("quote %s: shares do not add to total fee: %+v", raw, q)
		}
	}
}

func TestCashInAndRequestsHaveNoFee(t *testing.T) {
	p := Default()
	for _, op := range []Operation{OpCashIn, OpRequest} {
		q, err := p.Quote(op, "500")
		if err != nil {
			t.Fatalf("quote %s: %v", op, err)
		}
		if q.TotalFee != 0 || len(q.Shares) != 0 || q.SenderDebit != q.ReceiverCredit {
			t.Fatalf("%s should be fee free, got %+v", op, q)
		}
	}
}

func TestQuoteRejectsInvalidAmount(t *testing.T) {
	p := Default()
	for _, raw := range []string{"", "abc", "0", "-5", "1.234"} {
		if _, err := p.Quote(OpTransfer, raw); !errors.Is(err, ErrInvalidAmount) {
			t.Fatalf("amount %q: expected ErrInvalidAmount, got %v", raw, err)
		}
	}
}

func TestPolicyValidate(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("default policy invalid: %v", err)
	}
	p := Default()
	p.CashOutAgentRate = decimal.NewFromInt(1)
	if err := p.Validate(); err == nil {
		t.Fatal("expected rates totalling over 100% to be rejected")
	}
}
