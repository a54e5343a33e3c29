package payments

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/mfs-pay/mfs_pay/internal/auth"
	"github.com/mfs-pay/mfs_pay/internal/money"
)

// Handler exposes the immediate money movement endpoints.
type Handler struct {
	engine *Engine
}

// NewHandler constructs a payment handler.
func NewHandler(engine *Engine) *Handler {
	return &Handler{engine: engine}
}

// OrderRequest is the body shared by every money movement endpoint.
type OrderRequest struct {
	ReceiverIdentifier string      `json:"receiverIdentifier"`
	Amount             money.Input `json:"amount"`
	PIN                auth.PIN    `json:"pin"`
}

// ParseOrder reads an OrderRequest and binds it to the authenticated sender.
func ParseOrder(c *fiber.Ctx) (Order, error) {
	id, ok := auth.FromCtx(c)
	if !ok {
		return Order{}, fiber.NewError(http.StatusUnauthorized, "unauthorized")
	}
	var req OrderRequest
	if err := c.BodyParser(&req); err != nil {
		return Order{}, fiber.NewError(http.StatusBadRequest, "invalid request body")
	}
	if req.ReceiverIdentifier == "" {
		return Order{}, fiber.NewError(http.StatusBadRequest, "receiverIdentifier is required")
	}
	return Order{
		SenderID:           id.AccountID,
		ReceiverIdentifier: req.ReceiverIdentifier,
		Amount:             string(req.Amount),
		PIN:                req.PIN.String(),
	}, nil
}

type receiptResponse struct {
	Message  string      `json:"message"`
	Kind     string      `json:"kind"`
	Sender   string      `json:"sender"`
	Receiver string      `json:"receiver"`
	Amount   money.Money `json:"amount"`
	Fee      money.Money `json:"fee"`
	Entries  []string    `json:"entries"`
}

func respond(c *fiber.Ctx, message string, r Receipt) error {
	ids := make([]string, 0, len(r.Entries))
	for _, e := range r.Entries {
		ids = append(ids, e.ID)
	}
	return c.Status(http.StatusOK).JSON(receiptResponse{
		Message:  message,
		Kind:     string(r.Kind),
		Sender:   r.Sender,
		Receiver: r.Receiver,
		Amount:   r.Quote.Principal,
		Fee:      r.Quote.TotalFee,
		Entries:  ids,
	})
}

// SendMoney handles user to user transfers.
func (h *Handler) SendMoney(c *fiber.Ctx) error {
	order, err := ParseOrder(c)
	if err != nil {
		return err
	}
	r, err := h.engine.Transfer(c.UserContext(), order)
	if err != nil {
		return err
	}
	return respond(c, "Money sent successfully", r)
}

// CashOut handles user to agent cash-out.
func (h *Handler) CashOut(c *fiber.Ctx) error {
	order, err := ParseOrder(c)
	if err != nil {
		return err
	}
	r, err := h.engine.CashOut(c.UserContext(), order)
	if err != nil {
		return err
	}
	return respond(c, "Cash-out successful", r)
}

// CashIn handles agent to user cash-in.
func (h *Handler) CashIn(c *fiber.Ctx) error {
	order, err := ParseOrder(c)
	if err != nil {
		return err
	}
	r, err := h.engine.CashIn(c.UserContext(), order)
	if err != nil {
		return err
	}
	return respond(c, "Cash-in successful", r)
}
