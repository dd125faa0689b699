// Package httpapi maps the http routes of the api onto operations.
package httpapi

import (
	"context"
	"embed"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/kvapi-dev/kvapi/storage/model"
)

//go:embed openapi.yaml
var assets embed.FS

// Dispatcher executes a single operation
type Dispatcher interface {
	Dispatch(ctx context.Context, sessionID string, op model.Operation) (any, error)
}

// BatchExecutor executes a list of operations in order
type BatchExecutor interface {
	Execute(ctx context.Context, sessionID string, ops []model.Operation) ([]model.Result, error)
}

// Options controls optional features of the api registration.
type Options struct {
	// ServerURL is advertised in the served OpenAPI document
	ServerURL string
	// Reset, when set, is exposed as GET and POST /reset-server-data
	Reset func(ctx context.Context) error
	// BatchTimeout bounds the execution of a batch; operations not started
	// in time fail with an internal error. Zero means no bound.
	BatchTimeout time.Duration
}

// Register mounts all api routes under the provided group.
func Register(r fiber.Router, dispatcher Dispatcher, batch BatchExecutor, opts *Options) error {
	if opts == nil {
		opts = &Options{}
	}
	openapiRaw, err := assets.ReadFile("openapi.yaml")
	if err != nil {
		return errors.Wrap(err, "httpapi: failed to read openapi.yaml")
	}
	// Update servers section to point to this instance
	openapiData := updateOpenAPIServers(openapiRaw, opts.ServerURL)
	openapiData = ensureSessionHeaderSecurity(openapiData)
	r.Get(
		"/openapi.yaml", func(c *fiber.Ctx) error {
			c.Set(fiber.HeaderContentType, "application/yaml")
			return c.Send(openapiData)
		},
	)

	r.Use(sessionMiddleware())

	registerAppInfo(r, dispatcher)
	registerSessions(r, dispatcher)
	registerUsers(r, dispatcher)
	registerEntries(r.Group("/public-entries"), dispatcher, publicEntryOps)
	registerEntries(r.Group("/private-entries"), dispatcher, privateEntryOps)
	registerBatch(r, batch, opts.BatchTimeout)
	if opts.Reset != nil {
		registerReset(r, opts.Reset)
	}
	return nil
}

func updateOpenAPIServers(doc []byte, serverURL string) []byte {
	if len(serverURL) == 0 {
		return doc
	}
	// Unmarshal full doc
	var full map[string]any
	if err := yaml.Unmarshal(doc, &full); err != nil {
		return doc
	}
	full["servers"] = []map[string]any{
		{
			"url":         serverURL,
			"description": "This instance",
		},
	}
	res, err := yaml.Marshal(full)
	if err != nil {
		return doc
	}
	return res
}

// ensureSessionHeaderSecurity injects the session header security scheme
// into the OpenAPI document, if not already present.
func ensureSessionHeaderSecurity(doc []byte) []byte {
	var full map[string]any
	if err := yaml.Unmarshal(doc, &full); err != nil {
		return doc
	}
	components, _ := full["components"].(map[string]any)
	if components == nil {
		components = map[string]any{}
		full["components"] = components
	}
	securitySchemes, _ := components["securitySchemes"].(map[string]any)
	if securitySchemes == nil {
		securitySchemes = map[string]any{}
		components["securitySchemes"] = securitySchemes
	}
	if _, exists := securitySchemes["session"]; !exists {
		securitySchemes["session"] = map[string]any{
			"type": "apiKey",
			"in":   "header",
			"name": HeaderSessionID,
		}
	}
	if _, exists := full["security"]; !exists {
		full["security"] = []map[string]any{{"session": []any{}}}
	}
	res, err := yaml.Marshal(full)
	if err != nil {
		return doc
	}
	return res
}
