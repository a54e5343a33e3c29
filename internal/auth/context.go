package auth

import "github.com/gofiber/fiber/v2"

const (
	localAccountID = "account_id"
	localEmail     = "email"
)

// SetIdentity stores the verified bearer identity on the request.
func SetIdentity(c *fiber.Ctx, id Identity) {
	c.Locals(localAccountID, id.AccountID)
	c.Locals(localEmail, id.Email)
}

// FromCtx returns the identity stored by SetIdentity, if any.
func FromCtx(c *fiber.Ctx) (Identity, bool) {
	accountID, _ := c.Locals(localAccountID).(string)
	if accountID == "" {
		return Identity{}, false
	}
	email, _ := c.Locals(localEmail).(string)
	return Identity{AccountID: accountID, Email: email}, true
}
