package httpapi

import (
	"github.com/gofiber/fiber/v2"

	"github.com/kvapi-dev/kvapi/storage/model"
)

func registerSessions(r fiber.Router, d Dispatcher) {
	g := r.Group("/sessions")

	g.Post(
		"/", func(c *fiber.Ctx) error {
			var req model.Credentials
			if err := c.BodyParser(&req); err != nil {
				return badBody(c)
			}
			return dispatch(
				c, d, model.Operation{
					Op:       model.OpSessionsCreate,
					Login:    req.Login,
					Password: req.Password,
				},
			)
		},
	)
	g.Put(
		"/current", func(c *fiber.Ctx) error {
			return dispatch(c, d, model.Operation{Op: model.OpSessionsUpdate})
		},
	)
	g.Delete(
		"/current", func(c *fiber.Ctx) error {
			return dispatch(c, d, model.Operation{Op: model.OpSessionsDelete})
		},
	)
}
