package kvapi

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/kvapi-dev/kvapi/storage/model"
)

// handleError is the fiber.ErrorHandler of the server. Errors that reach it
// were not handled by a route, e.g. unknown routes or oversized bodies.
func handleError(ctx *fiber.Ctx, err error) error {
	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return ctx.Status(fiberErr.Code).JSON(
			model.ErrorResponse{
				Error:   utils.StatusMessage(fiberErr.Code),
				Message: fiberErr.Message,
			},
		)
	}
	status, body := model.NewErrorResponse(err)
	if status == fiber.StatusInternalServerError {
		log.WithError(err).WithField("path", ctx.Path()).Error("unhandled error")
	}
	return ctx.Status(status).JSON(body)
}
