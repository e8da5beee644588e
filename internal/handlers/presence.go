package handlers

import (
	"context"
	"time"

	"realtime-backend/internal/realtime"

	"github.com/gofiber/fiber/v2"
)

// Online returns who is currently registered on the presence channel.
func (a *API) Online(c *fiber.Ctx) error {
	members := a.router.Registry().Members(realtime.Online)
	return c.JSON(fiber.Map{"online": members, "count": len(members)})
}

const healthTimeout = 2 * time.Second

// Health reports the registry size and the result of every readiness check.
func (a *API) Health(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), healthTimeout)
	defer cancel()

	status, code := "ok", fiber.StatusOK
	results := fiber.Map{}
	for _, chk := range a.checks {
		if err := chk.fn(ctx); err != nil {
			a.log.Warn().Err(err).Str("check", chk.name).Msg("health check failed")
			results[chk.name] = err.Error()
			status, code = "degraded", fiber.StatusServiceUnavailable
			continue
		}
		results[chk.name] = "ok"
	}

	return c.Status(code).JSON(fiber.Map{
		"status":   status,
		"checks":   results,
		"channels": len(a.router.Registry().Channels()),
	})
}
