package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/kvapi-dev/kvapi/storage/model"
)

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "Manage users",
}

var usersListCmd = &cobra.Command{
	Use:   "list",
	Short: "Lists all users",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		state, err := loadState()
		if err != nil {
			return err
		}
		defer state.Close()
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tLOGIN\tROLE")
		for _, u := range state.Users.List() {
			fmt.Fprintf(w, "%s\t%s\t%s\n", u.ID, u.Login, u.Role)
		}
		return w.Flush()
	},
}

var (
	userLogin    string
	userPassword string
)

var usersCreateAdminCmd = &cobra.Command{
	Use:   "create-admin",
	Short: "Creates an admin user",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		state, err := loadState()
		if err != nil {
			return err
		}
		defer state.Close()
		u, err := state.Users.Create(userLogin, userPassword, model.RoleAdmin, false)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "created admin '%s' with id %s\n", u.Login, u.ID)
		return nil
	},
}

var usersSetPasswordCmd = &cobra.Command{
	Use:   "set-password",
	Short: "Sets the password of a user",
	Long: "Sets the password of a user. The private data of the user is cleared since it is " +
		"encrypted with the old password; clients create new private data on the next login.",
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		state, err := loadState()
		if err != nil {
			return err
		}
		defer state.Close()
		id, err := userIDByLogin(state.Users.List(), userLogin)
		if err != nil {
			return err
		}
		if _, err = state.Users.Update(
			id, model.UserPatch{
				Password:    model.Some(userPassword),
				PrivateData: model.Some([]byte(nil)),
			},
		); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "OK")
		return nil
	},
}

func userIDByLogin(users []model.User, login string) (string, error) {
	for _, u := range users {
		if u.Login == login {
			return u.ID, nil
		}
	}
	return "", errors.Errorf("no user with login '%s'", login)
}

func init() {
	for _, cmd := range []*cobra.Command{usersCreateAdminCmd, usersSetPasswordCmd} {
		cmd.Flags().StringVarP(&userLogin, "login", "l", "", "login of the user")
		cmd.Flags().StringVarP(&userPassword, "password", "p", "", "password of the user")
		_ = cmd.MarkFlagRequired("login")
		_ = cmd.MarkFlagRequired("password")
	}
	usersCmd.AddCommand(usersListCmd, usersCreateAdminCmd, usersSetPasswordCmd)
}
