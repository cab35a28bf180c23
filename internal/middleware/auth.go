package middleware

import (
	"crypto/subtle"
	"strings"

	"github.com/RixGem/progresspath/internal/logger"
	"github.com/gofiber/fiber/v2"
)

// RequireRefreshSecret guards the scheduler-facing endpoints with an
// exact-match shared-secret bearer token. A missing or mismatched token
// yields 401 and the handler never runs. An empty configured secret
// rejects everything: the pipeline must not be triggerable on a
// misconfigured deployment.
func RequireRefreshSecret(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get(fiber.HeaderAuthorization)
		token, ok := strings.CutPrefix(authHeader, "Bearer ")

		if secret == "" || !ok || subtle.ConstantTimeCompare([]byte(token), []byte(secret)) != 1 {
			logger.Get().Warn().
				Str("method", c.Method()).
				Str("path", c.Path()).
				Str("ip", c.IP()).
				Bool("token_present", authHeader != "").
				Msg("Unauthorized refresh trigger attempt")

			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Unauthorized",
			})
		}

		return c.Next()
	}
}
