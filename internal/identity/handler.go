package identity

import (
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/mfs-pay/mfs_pay/internal/auth"
	"github.com/mfs-pay/mfs_pay/internal/ledger"
	"github.com/mfs-pay/mfs_pay/internal/money"
)

// Handler exposes account endpoints.
type Handler struct {
	svc *Service
}

// NewHandler constructs an identity handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

type registerRequest struct {
	Name         string   `json:"name"`
	PIN          auth.PIN `json:"pin"`
	NID          string   `json:"nid"`
	Mobile       string   `json:"mobile"`
	Email        string   `json:"email"`
	ProfileImage string   `json:"profileImage"`
	UserType     string   `json:"userType"`
}

// accountView is the public projection of an account; the PIN hash never leaves the service.
type accountView struct {
	ID           string      `json:"id"`
	Name         string      `json:"name"`
	Email        string      `json:"email"`
	Mobile       string      `json:"mobile"`
	NID          string      `json:"nid"`
	ProfileImage string      `json:"profileImage"`
	UserType     string      `json:"userType"`
	Status       string      `json:"status"`
	Balance      money.Money `json:"balance"`
	CreatedAt    time.Time   `json:"createdAt"`
}

func viewOf(a ledger.Account) accountView {
	return accountView{
		ID:           a.ID,
		Name:         a.Name,
		Email:        a.Email,
		Mobile:       a.Mobile,
		NID:          a.NID,
		ProfileImage: a.ProfileImage,
		UserType:     string(a.Role),
		Status:       string(a.Status),
		Balance:      a.Balance,
		CreatedAt:    a.CreatedAt,
	}
}

// Register creates an account.
func (h *Handler) Register(c *fiber.Ctx) error {
	var req registerRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid request body")
	}
	account, err := h.svc.Register(c.UserContext(), Registration{
		Name:         req.Name,
		PIN:          req.PIN.String(),
		NID:          req.NID,
		Mobile:       req.Mobile,
		Email:        req.Email,
		ProfileImage: req.ProfileImage,
		Role:         ledger.Role(req.UserType),
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(viewOf(account))
}

// List returns every account.
func (h *Handler) List(c *fiber.Ctx) error {
	accounts, err := h.svc.List(c.UserContext())
	if err != nil {
		return err
	}
	out := make([]accountView, 0, len(accounts))
	for _, a := range accounts {
		out = append(out, viewOf(a))
	}
	return c.JSON(out)
}

// RoleStatus returns only the role and status of the account registered under :email.
func (h *Handler) RoleStatus(c *fiber.Ctx) error {
	account, err := h.svc.ByEmail(c.UserContext(), c.Params("email"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"id":       account.ID,
		"userType": account.Role,
		"status":   account.Status,
	})
}

// Me returns the caller's profile including the current balance.
func (h *Handler) Me(c *fiber.Ctx) error {
	id, ok := auth.FromCtx(c)
	if !ok {
		return fiber.NewError(http.StatusUnauthorized, "unauthorized")
	}
	account, err := h.svc.Profile(c.UserContext(), id.AccountID)
	if err != nil {
		return err
	}
	return c.JSON(viewOf(account))
}

// Delete removes the account at :id.
func (h *Handler) Delete(c *fiber.Ctx) error {
	id, ok := auth.FromCtx(c)
	if !ok {
		return fiber.NewError(http.StatusUnauthorized, "unauthorized")
	}
	if err := h.svc.Delete(c.UserContext(), id.AccountID, c.Params("id")); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"deletedCount": 1})
}

// SetStatus changes the status of the account registered under :email.
func (h *Handler) SetStatus(c *fiber.Ctx) error {
	id, ok := auth.FromCtx(c)
	if !ok {
		return fiber.NewError(http.StatusUnauthorized, "unauthorized")
	}
	var req struct {
		Status string `json:"status"`
	}
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid request body")
	}
	if err := h.svc.SetStatus(c.UserContext(), id.AccountID, c.Params("email"), ledger.AccountStatus(req.Status)); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"modifiedCount": 1})
}

// ChangeRole moves the account at :id to another role.
func (h *Handler) ChangeRole(c *fiber.Ctx) error {
	id, ok := auth.FromCtx(c)
	if !ok {
		return fiber.NewError(http.StatusUnauthorized, "unauthorized")
	}
	var req struct {
		UserType string `json:"userType"`
	}
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid request body")
	}
	if err := h.svc.ChangeRole(c.UserContext(), id.AccountID, c.Params("id"), ledger.Role(req.UserType)); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"modifiedCount": 1})
}
