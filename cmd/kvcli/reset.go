package main

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var resetConfirmed bool

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Deletes all users, sessions, and entries",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if !resetConfirmed {
			return errors.New("refusing to delete all data without --yes")
		}
		state, err := loadState()
		if err != nil {
			return err
		}
		defer state.Close()
		if err = state.Reset(cmd.Context()); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "OK")
		return nil
	},
}

func init() {
	resetCmd.Flags().BoolVarP(&resetConfirmed, "yes", "y", false, "confirm deleting all data")
}
