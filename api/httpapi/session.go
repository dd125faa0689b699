package httpapi

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
)

// HeaderSessionID is the request header carrying the session id
const HeaderSessionID = "X-Session-Id"

const localsSessionID = "session_id"

// sessionMiddleware extracts the session id of a request. Whether the
// session is valid is decided per operation.
func sessionMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Locals(localsSessionID, utils.CopyString(c.Get(HeaderSessionID)))
		return c.Next()
	}
}

func sessionID(c *fiber.Ctx) string {
	id, _ := c.Locals(localsSessionID).(string)
	return id
}
