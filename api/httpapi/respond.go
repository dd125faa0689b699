package httpapi

import (
	"github.com/gofiber/fiber/v2"
	log "github.com/sirupsen/logrus"

	"github.com/kvapi-dev/kvapi/storage/model"
)

// writeError writes the error body for err
func writeError(c *fiber.Ctx, err error) error {
	status, body := model.NewErrorResponse(err)
	if status == fiber.StatusInternalServerError {
		log.WithError(err).WithField("path", c.Path()).Error("request failed")
	}
	return c.Status(status).JSON(body)
}

func badBody(c *fiber.Ctx) error {
	return writeError(c, model.BadRequestError("invalid body"))
}

// dispatch executes op and writes the result
func dispatch(c *fiber.Ctx, d Dispatcher, op model.Operation) error {
	body, err := d.Dispatch(c.UserContext(), sessionID(c), op)
	if err != nil {
		return writeError(c, err)
	}
	status := op.Op.SuccessStatus()
	if status == fiber.StatusNoContent {
		return c.SendStatus(status)
	}
	return c.Status(status).JSON(body)
}
