package main

import (
	"log"

	"github.com/spf13/cobra"

	"github.com/kvapi-dev/kvapi"
	"github.com/kvapi-dev/kvapi/cmd/kvapi/config"
)

var rootCmd = &cobra.Command{
	Use:   "kvcli",
	Short: "kvcli can help you manage your kvapi server",
	Long: "kvcli can help you manage your kvapi server.\n" +
		"It works directly on the configured storage; embedded backends must not be in use by a running server.",
	SilenceUsage: true,
}

var configFile string

// loadState loads the config and the persisted state
func loadState() (*kvapi.State, error) {
	config.Load(configFile)
	log.Println("Loaded Config")
	c := config.Get()

	backs, err := config.LoadStorageBackends(c.Storage, c.API.Argon2idParams)
	if err != nil {
		return nil, err
	}
	store, err := config.LoadSessionStore(c.Sessions)
	if err != nil {
		return nil, err
	}
	return kvapi.NewState(
		kvapi.StateConfig{
			Backends:     backs,
			SessionStore: store,
			Limits:       c.Limits(),
			BatchMaxSize: c.API.BatchMaxSize,
		},
	)
}

func main() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "config.yaml", "the config file to use")
	rootCmd.AddCommand(resetCmd, usersCmd, configCmd)
	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
