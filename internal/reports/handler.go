package reports

import (
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/mfs-pay/mfs_pay/internal/ledger"
	"github.com/mfs-pay/mfs_pay/internal/money"
)

const maxHistoryLimit = 1000

// Handler exposes the reporting endpoints.
type Handler struct {
	svc *Service
}

// NewHandler constructs a reports handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

type entryView struct {
	ID         string      `json:"id"`
	Type       ledger.Kind `json:"type"`
	Sender     string      `json:"sender"`
	Receiver   string      `json:"receiver"`
	Amount     money.Money `json:"amount"`
	Status     string      `json:"status"`
	Timestamp  time.Time   `json:"timestamp"`
	ResolvedAt *time.Time  `json:"resolvedAt,omitempty"`
}

func viewOf(e ledger.Entry) entryView {
	return entryView{
		ID:         e.ID,
		Type:       e.Kind,
		Sender:     e.Sender,
		Receiver:   e.Receiver,
		Amount:     e.Amount,
		Status:     string(e.Status),
		Timestamp:  e.CreatedAt,
		ResolvedAt: e.ResolvedAt,
	}
}

// History lists entries, optionally narrowed by ?type=, ?status=, ?party= and ?limit=.
func (h *Handler) History(c *fiber.Ctx) error {
	filter := ledger.EntryFilter{Party: c.Query("party")}
	for _, k := range splitQuery(c.Query("type")) {
		filter.Kinds = append(filter.Kinds, ledger.Kind(k))
	}
	for _, s := range splitQuery(c.Query("status")) {
		filter.Statuses = append(filter.Statuses, ledger.Status(s))
	}
	limit := c.QueryInt("limit", 0)
	if limit < 0 || limit > maxHistoryLimit {
		return fiber.NewError(http.StatusBadRequest, "limit must be between 0 and 1000")
	}
	filter.Limit = limit

	entries, err := h.svc.History(c.UserContext(), filter)
	if err != nil {
		return err
	}
	out := make([]entryView, 0, len(entries))
	for _, e := range entries {
		out = append(out, viewOf(e))
	}
	return c.JSON(out)
}

// Transfers returns the ledger-wide totals.
func (h *Handler) Transfers(c *fiber.Ctx) error {
	s, err := h.svc.Summary(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"cashIn":     s.CashIn,
		"cashOut":    s.CashOut,
		"sendMoney":  s.SendMoney,
		"grandTotal": s.GrandTotal,
		"byKind":     s.ByKind,
	})
}

// Account returns the totals for the account at :email.
func (h *Handler) Account(c *fiber.Ctx) error {
	s, err := h.svc.ForAccount(c.UserContext(), c.Params("email"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"cashIn":    s.CashIn,
		"cashOut":   s.CashOut,
		"sendMoney": s.SendMoney,
		"other":     s.Other,
	})
}

// Entry returns the entry at :id.
func (h *Handler) Entry(c *fiber.Ctx) error {
	e, err := h.svc.Entry(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(viewOf(e))
}

type incomeView struct {
	Receiver    string      `json:"receiver"`
	TotalAmount money.Money `json:"totalAmount"`
}

// Income returns fee income grouped by receiving party.
func (h *Handler) Income(c *fiber.Ctx) error {
	totals, err := h.svc.FeeIncome(c.UserContext())
	if err != nil {
		return err
	}
	out := make([]incomeView, 0, len(totals))
	for _, t := range totals {
		out = append(out, incomeView{Receiver: t.Receiver, TotalAmount: t.Total})
	}
	return c.JSON(out)
}

func splitQuery(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
