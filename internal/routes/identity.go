package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/mfs-pay/mfs_pay/internal/identity"
)

// RegisterIdentityRoutes wires the public registration and lookup endpoints.
func RegisterIdentityRoutes(r fiber.Router, h *identity.Handler) {
	r.Post("/users", h.Register)
	r.Get("/users", h.List)
	r.Get("/user/:email", h.RoleStatus)
}

// RegisterAccountRoutes wires the bearer-protected profile and admin endpoints.
func RegisterAccountRoutes(r fiber.Router, h *identity.Handler, authn fiber.Handler) {
	r.Get("/me", authn, h.Me)
	r.Delete("/users/:id", authn, h.Delete)
	r.Patch("/users/status/:email", authn, h.SetStatus)
	r.Patch("/users/admin/:id", authn, h.ChangeRole)
}
