package main

import (
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"

	"github.com/kvapi-dev/kvapi"
	"github.com/kvapi-dev/kvapi/cmd/kvapi/config"
	"github.com/kvapi-dev/kvapi/internal/logger"
)

func main() {
	var configFile string
	if len(os.Args) > 1 {
		configFile = os.Args[1]
	}
	config.Load(configFile)
	c := config.Get()
	if err := logger.Init(c.Logging); err != nil {
		log.WithError(err).Fatal("could not init logging")
	}
	log.Info("Loaded Config")

	sessionStore, err := config.LoadSessionStore(c.Sessions)
	if err != nil {
		log.WithError(err).Fatal("could not init session store")
	}
	backs, err := config.LoadStorageBackends(c.Storage, c.API.Argon2idParams)
	if err != nil {
		log.WithError(err).Fatal("could not init storage")
	}

	state, err := kvapi.NewState(
		kvapi.StateConfig{
			Backends:     backs,
			SessionStore: sessionStore,
			Limits:       c.Limits(),
			BatchMaxSize: c.API.BatchMaxSize,
		},
	)
	if err != nil {
		log.WithError(err).Fatal("could not load state")
	}
	state.StartSweeper(c.Sessions.SweepInterval.Duration())

	server, err := kvapi.NewServer(
		c.Server, state, kvapi.Options{
			EnableReset: c.API.EnableReset,
		},
	)
	if err != nil {
		log.WithError(err).Fatal("could not init server")
	}
	log.Info("Initialized Server")

	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
		<-sig
		log.Info("shutting down")
		if err := server.Shutdown(); err != nil {
			log.WithError(err).Error("could not shut down server")
		}
		if err := state.Close(); err != nil {
			log.WithError(err).Error("could not close storage")
		}
		os.Exit(0)
	}()

	server.Start()
}
