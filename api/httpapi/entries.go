package httpapi

import (
	"net/url"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"

	"github.com/kvapi-dev/kvapi/storage/model"
)

type entryOps struct {
	getAll, get, set, delete model.OpName
}

var publicEntryOps = entryOps{
	getAll: model.OpPublicEntriesGetAll,
	get:    model.OpPublicEntriesGet,
	set:    model.OpPublicEntriesSet,
	delete: model.OpPublicEntriesDelete,
}

var privateEntryOps = entryOps{
	getAll: model.OpPrivateEntriesGetAll,
	get:    model.OpPrivateEntriesGet,
	set:    model.OpPrivateEntriesSet,
	delete: model.OpPrivateEntriesDelete,
}

// keyParam returns the unescaped key path parameter. Params point into the
// pooled request buffer, keys are stored, so they must be copied.
func keyParam(c *fiber.Ctx) (string, error) {
	key, err := url.PathUnescape(utils.CopyString(c.Params("key")))
	if err != nil {
		return "", model.BadRequestError("invalid key encoding")
	}
	return key, nil
}

func registerEntries(g fiber.Router, d Dispatcher, ops entryOps) {
	g.Get(
		"/", func(c *fiber.Ctx) error {
			return dispatch(c, d, model.Operation{Op: ops.getAll})
		},
	)
	g.Get(
		"/:key", func(c *fiber.Ctx) error {
			key, err := keyParam(c)
			if err != nil {
				return writeError(c, err)
			}
			return dispatch(
				c, d, model.Operation{
					Op:  ops.get,
					Key: key,
				},
			)
		},
	)
	g.Put(
		"/:key", func(c *fiber.Ctx) error {
			key, err := keyParam(c)
			if err != nil {
				return writeError(c, err)
			}
			var body model.ValueBody
			if err = c.BodyParser(&body); err != nil {
				return badBody(c)
			}
			return dispatch(
				c, d, model.Operation{
					Op:    ops.set,
					Key:   key,
					Value: body.Value,
				},
			)
		},
	)
	g.Delete(
		"/:key", func(c *fiber.Ctx) error {
			key, err := keyParam(c)
			if err != nil {
				return writeError(c, err)
			}
			return dispatch(
				c, d, model.Operation{
					Op:  ops.delete,
					Key: key,
				},
			)
		},
	)
}
