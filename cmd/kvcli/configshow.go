package main

import (
	"fmt"
	"io"
	"reflect"
	"strings"

	"github.com/fatih/structs"
	"github.com/spf13/cobra"

	"github.com/kvapi-dev/kvapi/cmd/kvapi/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect the configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Prints the effective configuration including defaults",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		config.Load(configFile)
		printFields(cmd.OutOrStdout(), "", structs.New(config.Get()).Fields())
	},
}

func yamlName(f *structs.Field) string {
	name, _, _ := strings.Cut(f.Tag("yaml"), ",")
	return name
}

func isSecret(name string) bool {
	return strings.Contains(name, "password")
}

// printFields prints one line per leaf option using the yaml names
func printFields(w io.Writer, prefix string, fields []*structs.Field) {
	for _, f := range fields {
		name := yamlName(f)
		if name == "-" {
			continue
		}
		path := prefix
		if name != "" {
			if path != "" {
				path += "."
			}
			path += name
		}
		if f.Kind() == reflect.Struct {
			printFields(w, path, f.Fields())
			continue
		}
		value := f.Value()
		if isSecret(name) && !f.IsZero() {
			value = "***"
		}
		fmt.Fprintf(w, "%s: %v\n", path, value)
	}
}

func init() {
	configCmd.AddCommand(configShowCmd)
}
