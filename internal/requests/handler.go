package requests

import (
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/mfs-pay/mfs_pay/internal/auth"
	"github.com/mfs-pay/mfs_pay/internal/ledger"
	"github.com/mfs-pay/mfs_pay/internal/money"
	"github.com/mfs-pay/mfs_pay/internal/payments"
)

// Handler exposes request creation and resolution endpoints.
type Handler struct {
	resolver *Resolver
}

// NewHandler constructs a request handler.
func NewHandler(resolver *Resolver) *Handler {
	return &Handler{resolver: resolver}
}

type entryResponse struct {
	Message  string      `json:"message"`
	ID       string      `json:"id"`
	Type     ledger.Kind `json:"type"`
	Sender   string      `json:"sender"`
	Receiver string      `json:"receiver"`
	Amount   money.Money `json:"amount"`
	Status   string      `json:"status"`
	Created  time.Time   `json:"timestamp"`
}

func respond(c *fiber.Ctx, status int, message string, e ledger.Entry) error {
	return c.Status(status).JSON(entryResponse{
		Message:  message,
		ID:       e.ID,
		Type:     e.Kind,
		Sender:   e.Sender,
		Receiver: e.Receiver,
		Amount:   e.Amount,
		Status:   string(e.Status),
		Created:  e.CreatedAt,
	})
}

// Create returns a handler recording a pending request of kind.
func (h *Handler) Create(kind ledger.Kind) fiber.Handler {
	return func(c *fiber.Ctx) error {
		order, err := payments.ParseOrder(c)
		if err != nil {
			return err
		}
		entry, err := h.resolver.Create(c.UserContext(), kind, order)
		if err != nil {
			return err
		}
		return respond(c, http.StatusCreated, "Request sent successfully", entry)
	}
}

// Confirm settles the pending request at :id.
func (h *Handler) Confirm(c *fiber.Ctx) error {
	id, ok := auth.FromCtx(c)
	if !ok {
		return fiber.NewError(http.StatusUnauthorized, "unauthorized")
	}
	entry, err := h.resolver.Confirm(c.UserContext(), id.AccountID, c.Params("id"))
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "Transaction confirmed successfully", entry)
}

// Decline closes the pending request at :id.
func (h *Handler) Decline(c *fiber.Ctx) error {
	id, ok := auth.FromCtx(c)
	if !ok {
		return fiber.NewError(http.StatusUnauthorized, "unauthorized")
	}
	entry, err := h.resolver.Decline(c.UserContext(), id.AccountID, c.Params("id"))
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "Transaction request declined successfully", entry)
}
