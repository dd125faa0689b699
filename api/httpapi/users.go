package httpapi

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"

	"github.com/kvapi-dev/kvapi/storage/model"
)

// registerUsers wires the user management handlers
func registerUsers(r fiber.Router, d Dispatcher) {
	g := r.Group("/users")

	g.Get(
		"/", func(c *fiber.Ctx) error {
			return dispatch(c, d, model.Operation{Op: model.OpUsersGetAll})
		},
	)

	g.Post(
		"/", func(c *fiber.Ctx) error {
			var req model.Credentials
			if err := c.BodyParser(&req); err != nil {
				return badBody(c)
			}
			return dispatch(
				c, d, model.Operation{
					Op:       model.OpUsersCreate,
					Login:    req.Login,
					Password: req.Password,
					Role:     req.Role,
				},
			)
		},
	)

	g.Patch(
		"/:id", func(c *fiber.Ctx) error {
			var patch model.UserPatch
			if err := c.BodyParser(&patch); err != nil {
				return badBody(c)
			}
			return dispatch(
				c, d, model.Operation{
					Op:    model.OpUsersUpdate,
					ID:    idParam(c),
					Patch: &patch,
				},
			)
		},
	)

	g.Get(
		"/:id", func(c *fiber.Ctx) error {
			return dispatch(
				c, d, model.Operation{
					Op: model.OpUsersGet,
					ID: idParam(c),
				},
			)
		},
	)

	g.Delete(
		"/:id", func(c *fiber.Ctx) error {
			return dispatch(
				c, d, model.Operation{
					Op: model.OpUsersDelete,
					ID: idParam(c),
				},
			)
		},
	)
}

func idParam(c *fiber.Ctx) string {
	return utils.CopyString(c.Params("id"))
}
