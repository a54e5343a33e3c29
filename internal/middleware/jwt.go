package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/mfs-pay/mfs_pay/internal/auth"
	"github.com/mfs-pay/mfs_pay/internal/ledger"
)

// AccountLookup is the subset of the ledger store the auth middleware needs.
type AccountLookup interface {
	AccountByID(ctx context.Context, id string) (ledger.Account, error)
}

// JWTAuth validates bearer tokens and rejects tokens whose account was deleted.
func JWTAuth(tokens *auth.TokenService, accounts AccountLookup) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authz := c.Get(fiber.HeaderAuthorization)
		if len(authz) < len("bearer ") || !strings.EqualFold(authz[:len("bearer ")], "bearer ") {
			return fiber.NewError(http.StatusUnauthorized, "unauthorized access")
		}
		id, err := tokens.Verify(strings.TrimSpace(authz[len("bearer "):]))
		if err != nil {
			return fiber.NewError(http.StatusUnauthorized, "unauthorized access")
		}

		if accounts != nil {
			if _, err := accounts.AccountByID(c.UserContext(), id.AccountID); err != nil {
				if errors.Is(err, ledger.ErrAccountNotFound) {
					return fiber.NewError(http.StatusUnauthorized, "token invalidated")
				}
				return err
			}
		}

		auth.SetIdentity(c, id)
		return c.Next()
	}
}
