package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/mfs-pay/mfs_pay/internal/ledger"
	"github.com/mfs-pay/mfs_pay/internal/payments"
	"github.com/mfs-pay/mfs_pay/internal/requests"
)

// RegisterPaymentRoutes wires the immediate money movements. authn runs
// before idem so replays are scoped to the verified account.
func RegisterPaymentRoutes(r fiber.Router, h *payments.Handler, authn, idem fiber.Handler) {
	r.Post("/send-money", authn, idem, h.SendMoney)
	r.Post("/cash-out", authn, idem, h.CashOut)
	r.Post("/cash-in", authn, idem, h.CashIn)
}

// RegisterRequestRoutes wires request creation and resolution.
func RegisterRequestRoutes(r fiber.Router, h *requests.Handler, authn, idem fiber.Handler) {
	r.Post("/cash-in-request", authn, idem, h.Create(ledger.KindCashInRequest))
	r.Post("/cash-request", authn, idem, h.Create(ledger.KindCashRequest))
	r.Post("/withdraw-request", authn, idem, h.Create(ledger.KindWithdrawRequest))
	r.Post("/cash-out-request", authn, idem, h.Create(ledger.KindCashOutRequest))
	r.Patch("/history/:id", authn, idem, h.Confirm)
	r.Delete("/history/:id", authn, idem, h.Decline)
}
