package httpapi

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/kvapi-dev/kvapi/storage/model"
)

func registerBatch(r fiber.Router, batch BatchExecutor, timeout time.Duration) {
	r.Post(
		"/batch", func(c *fiber.Ctx) error {
			var req model.BatchRequest
			if err := c.BodyParser(&req); err != nil {
				return badBody(c)
			}
			ctx := c.UserContext()
			if timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}
			results, err := batch.Execute(ctx, sessionID(c), req.Operations)
			if err != nil {
				return writeError(c, err)
			}
			return c.JSON(model.BatchResponse{Results: results})
		},
	)
}

// registerReset accepts GET as well as POST; existing test harnesses reset
// with a plain GET.
func registerReset(r fiber.Router, reset func(ctx context.Context) error) {
	handler := func(c *fiber.Ctx) error {
		if err := reset(c.UserContext()); err != nil {
			return writeError(c, err)
		}
		return c.SendString("OK")
	}
	r.Get("/reset-server-data", handler)
	r.Post("/reset-server-data", handler)
}
