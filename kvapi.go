// Package kvapi wires the key-value api into an http server.
package kvapi

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	log "github.com/sirupsen/logrus"

	"github.com/kvapi-dev/kvapi/api/httpapi"
	applogger "github.com/kvapi-dev/kvapi/internal/logger"
)

// APIPrefix is the path all api routes are mounted under
const APIPrefix = "/api"

const minBodyLimit = 64 << 20

// minTransferRate is the slowest client, in bytes per second, that can still
// transfer a full body within the derived timeouts
const minTransferRate = 512 << 10

// FiberServerConfig is the fiber.Config that is used to init the http fiber.App
var FiberServerConfig = fiber.Config{
	ReadTimeout:    3 * time.Second,
	WriteTimeout:   20 * time.Second,
	IdleTimeout:    150 * time.Second,
	ReadBufferSize: 8192,
	// WriteBufferSize: 4096,
	ErrorHandler: handleError,
	Network:      "tcp",
}

// Options are optional features of a Server
type Options struct {
	// EnableReset exposes POST /api/reset-server-data; for test deployments only
	EnableReset bool
}

// Server serves the api for a State
type Server struct {
	server     *fiber.App
	serverConf ServerConf
	state      *State
	// ctx is the base context of all requests; it is cancelled on Shutdown
	ctx    context.Context
	cancel context.CancelFunc
}

// bodyLimit returns the request body limit; a single value must fit base64
// encoded into a request.
func bodyLimit(conf ServerConf, valueMaxSize int) int {
	if conf.BodyLimit > 0 {
		return conf.BodyLimit
	}
	limit := valueMaxSize/3*4 + 1<<20
	if limit < minBodyLimit {
		limit = minBodyLimit
	}
	return limit
}

// transferTimeout returns configured or, if unset, base plus the time needed
// to move bodyLimit bytes at minTransferRate
func transferTimeout(configured, base time.Duration, bodyLimit int) time.Duration {
	if configured > 0 {
		return configured
	}
	return base + time.Duration(bodyLimit/minTransferRate)*time.Second
}

// NewServer creates a new Server for state
func NewServer(serverConf ServerConf, state *State, opts Options) (*Server, error) {
	fiberConf := FiberServerConfig
	if tps := serverConf.TrustedProxies; len(tps) > 0 {
		fiberConf.TrustedProxies = serverConf.TrustedProxies
		fiberConf.EnableTrustedProxyCheck = true
	}
	fiberConf.ProxyHeader = serverConf.ForwardedIPHeader
	fiberConf.BodyLimit = bodyLimit(serverConf, state.Limits().ValueMaxSize)
	fiberConf.ReadTimeout = transferTimeout(
		serverConf.ReadTimeout.Duration(), FiberServerConfig.ReadTimeout, fiberConf.BodyLimit,
	)
	fiberConf.WriteTimeout = transferTimeout(
		serverConf.WriteTimeout.Duration(), FiberServerConfig.WriteTimeout, fiberConf.BodyLimit,
	)
	batchTimeout := serverConf.BatchTimeout.Duration()
	if batchTimeout <= 0 {
		batchTimeout = fiberConf.WriteTimeout
	}
	ctx, cancel := context.WithCancel(context.Background())
	server := fiber.New(fiberConf)
	server.Use(recover.New())
	server.Use(compress.New())
	server.Use(
		logger.New(
			logger.Config{
				Output: applogger.AccessWriter(),
			},
		),
	)
	server.Use(requestid.New())
	server.Use(
		func(c *fiber.Ctx) error {
			c.SetUserContext(ctx)
			return c.Next()
		},
	)

	apiOpts := &httpapi.Options{
		ServerURL:    serverConf.ExternalURL,
		BatchTimeout: batchTimeout,
	}
	if opts.EnableReset {
		log.Warn("reset-server-data endpoint is enabled")
		apiOpts.Reset = state.Reset
	}
	if err := httpapi.Register(server.Group(APIPrefix), state.Router, state.Batch, apiOpts); err != nil {
		cancel()
		return nil, err
	}
	return &Server{
		server:     server,
		serverConf: serverConf,
		state:      state,
		ctx:        ctx,
		cancel:     cancel,
	}, nil
}

// HttpHandlerFunc returns an http.HandlerFunc for serving all the necessary endpoints
func (s Server) HttpHandlerFunc() http.HandlerFunc {
	return adaptor.FiberApp(s.server)
}

// Listen starts an http server at the specific address for serving all the
// necessary endpoints
func (s Server) Listen(addr string) error {
	return s.server.Listen(addr)
}

// Shutdown gracefully stops the server. Running batches stop before their
// next operation.
func (s Server) Shutdown() error {
	s.cancel()
	return s.server.Shutdown()
}

// Start starts the server as configured and blocks
func (s Server) Start() {
	conf := s.serverConf
	if !conf.TLS.Enabled {
		log.WithField("port", conf.Port).Info("TLS is disabled starting http server")
		log.WithError(s.server.Listen(fmt.Sprintf("%s:%d", conf.IPListen, conf.Port))).Fatal()
	}
	// TLS enabled
	if conf.TLS.RedirectHTTP {
		httpServer := fiber.New(FiberServerConfig)
		httpServer.All(
			"*", func(ctx *fiber.Ctx) error {
				//goland:noinspection HttpUrlsUsage
				return ctx.Redirect(
					strings.Replace(ctx.Request().URI().String(), "http://", "https://", 1),
					fiber.StatusPermanentRedirect,
				)
			},
		)
		log.Info("TLS and http redirect enabled, starting redirect server on port 80")
		go func() {
			log.WithError(httpServer.Listen(fmt.Sprintf("%s:80", conf.IPListen))).Fatal()
		}()
	}
	time.Sleep(time.Millisecond) // This is just for a more pretty output with the tls header printed after the http one
	log.Info("TLS enabled, starting https server on port 443")
	log.WithError(s.server.ListenTLS(fmt.Sprintf("%s:443", conf.IPListen), conf.TLS.Cert, conf.TLS.Key)).Fatal()
}
