package serverutils

import (
	"advising-chat/internal/identity"

	"github.com/gofiber/fiber/v2"
)

const (
	LocalUserId         = "user_id"
	LocalToken          = "token"
	LocalTokenExpiresAt = "token_expires_at"
)

// NewJwtMiddleware accepts HS256 ID tokens signed with secret. With an empty secret every
// request is rejected.
func NewJwtMiddleware(secret string) fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		authHeader := ctx.Get("Authorization")
		if len(authHeader) < 7 || authHeader[:7] != "Bearer " {
			return ctx.Status(fiber.StatusUnauthorized).JSON(ErrorResponse(fiber.StatusUnauthorized, "Missing token"))
		}
		tokenStr := authHeader[7:]

		claims, err := identity.ParseToken(tokenStr, secret)
		if err != nil {
			return ctx.Status(fiber.StatusUnauthorized).JSON(ErrorResponse(fiber.StatusUnauthorized, "Invalid token"))
		}

		ctx.Locals(LocalUserId, claims.Identity)
		ctx.Locals(LocalToken, tokenStr)
		ctx.Locals(LocalTokenExpiresAt, claims.ExpiresAt)
		return ctx.Next()
	}
}
