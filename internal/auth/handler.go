package auth

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// Handler exposes the login endpoint.
type Handler struct {
	svc *Service
}

// NewHandler constructs an auth handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

type loginRequest struct {
	// Email holds either an email address or a mobile number.
	Email string `json:"email"`
	PIN   PIN    `json:"pin"`
}

type loginUser struct {
	Name         string `json:"name"`
	Email        string `json:"email"`
	Status       string `json:"status"`
	UserType     string `json:"userType"`
	ProfileImage string `json:"profileImage"`
}

type loginResponse struct {
	Message   string    `json:"message"`
	Token     string    `json:"token"`
	ExpiresAt int64     `json:"expires_at"`
	User      loginUser `json:"user"`
}

// Login validates credentials and returns a bearer token.
func (h *Handler) Login(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid request body")
	}
	if strings.TrimSpace(req.Email) == "" || req.PIN == "" {
		return fiber.NewError(http.StatusBadRequest, "email and pin are required")
	}

	res, err := h.svc.Login(c.UserContext(), req.Email, req.PIN.String())
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(loginResponse{
		Message:   "Login successful",
		Token:     res.Token,
		ExpiresAt: res.ExpiresAt.Unix(),
		User: loginUser{
			Name:         res.Account.Name,
			Email:        res.Account.Email,
			Status:       string(res.Account.Status),
			UserType:     string(res.Account.Role),
			ProfileImage: res.Account.ProfileImage,
		},
	})
}
