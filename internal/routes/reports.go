package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/mfs-pay/mfs_pay/internal/reports"
)

// RegisterHistoryRoutes wires the public history views. /history/transfers
// must be registered before /history/:email.
func RegisterHistoryRoutes(r fiber.Router, h *reports.Handler) {
	r.Get("/history", h.History)
	r.Get("/history/transfers", h.Transfers)
	r.Get("/history/:email", h.Account)
}

// RegisterReportRoutes wires the bearer-protected report endpoints.
func RegisterReportRoutes(r fiber.Router, h *reports.Handler, authn fiber.Handler) {
	r.Get("/history/entries/:id", authn, h.Entry)
	r.Get("/income", authn, h.Income)
}
