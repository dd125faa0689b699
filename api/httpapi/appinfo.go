package httpapi

import (
	"github.com/gofiber/fiber/v2"

	"github.com/kvapi-dev/kvapi/storage/model"
)

func registerAppInfo(r fiber.Router, d Dispatcher) {
	r.Get(
		"/app-info", func(c *fiber.Ctx) error {
			return dispatch(c, d, model.Operation{Op: model.OpAppInfoGet})
		},
	)
}
