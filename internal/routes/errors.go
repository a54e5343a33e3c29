package routes

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/mfs-pay/mfs_pay/internal/auth"
	"github.com/mfs-pay/mfs_pay/internal/fees"
	"github.com/mfs-pay/mfs_pay/internal/identity"
	"github.com/mfs-pay/mfs_pay/internal/ledger"
	"github.com/mfs-pay/mfs_pay/internal/middleware"
	"github.com/mfs-pay/mfs_pay/internal/money"
	"github.com/mfs-pay/mfs_pay/internal/payments"
	"github.com/mfs-pay/mfs_pay/internal/requests"
)

var statusByError = []struct {
	err    error
	status int
}{
	{ledger.ErrStoreUnavailable, http.StatusServiceUnavailable},

	{ledger.ErrAccountNotFound, http.StatusNotFound},
	{ledger.ErrEntryNotFound, http.StatusNotFound},
	{payments.ErrSenderNotFound, http.StatusNotFound},
	{payments.ErrReceiverNotFound, http.StatusNotFound},
	{requests.ErrPartyMissing, http.StatusNotFound},

	{payments.ErrRoleViolation, http.StatusForbidden},
	{payments.ErrAccountInactive, http.StatusForbidden},
	{identity.ErrForbidden, http.StatusForbidden},
	{identity.ErrSelfModification, http.StatusForbidden},
	{requests.ErrNotAuthorized, http.StatusForbidden},

	{payments.ErrInvalidCredential, http.StatusUnauthorized},
	{auth.ErrInvalidCredentials, http.StatusUnauthorized},
	{auth.ErrInvalidToken, http.StatusUnauthorized},

	{fees.ErrInvalidAmount, http.StatusBadRequest},
	{money.ErrNotNumeric, http.StatusBadRequest},
	{money.ErrNotPositive, http.StatusBadRequest},
	{money.ErrTooPrecise, http.StatusBadRequest},
	{money.ErrTooLarge, http.StatusBadRequest},
	{ledger.ErrInsufficientFunds, http.StatusBadRequest},
	{identity.ErrInvalidRegistration, http.StatusBadRequest},
	{requests.ErrNotRequestKind, http.StatusBadRequest},
	{ledger.ErrNotPending, http.StatusBadRequest},

	{ledger.ErrAlreadyExists, http.StatusConflict},
	{ledger.ErrAdminExists, http.StatusConflict},
	{ledger.ErrAlreadyConfirmed, http.StatusConflict},
	{ledger.ErrAlreadyDeclined, http.StatusConflict},
}

// StatusFor maps a domain error to its HTTP status. Unknown errors map to 500.
func StatusFor(err error) int {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return fe.Code
	}
	for _, m := range statusByError {
		if errors.Is(err, m.err) {
			return m.status
		}
	}
	return http.StatusInternalServerError
}

// ErrorHandler renders every handler error as {"message": ...}. Server-side
// failures are logged and replaced with a generic message.
func ErrorHandler(logger *slog.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		status := StatusFor(err)
		message := err.Error()
		var fe *fiber.Error
		if errors.As(err, &fe) {
			message = fe.Message
		}

		switch {
		case status == http.StatusServiceUnavailable:
			logger.Warn("dependency unavailable", "error", err, "path", c.Path(), "request_id", middleware.RequestIDFrom(c))
			message = "service temporarily unavailable"
		case status >= http.StatusInternalServerError:
			logger.Error("unhandled error", "error", err, "path", c.Path(), "request_id", middleware.RequestIDFrom(c))
			message = "internal server error"
		}
		return c.Status(status).JSON(fiber.Map{"message": message})
	}
}
