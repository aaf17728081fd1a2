package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/trackerhq/tracker/internal/models"
	"github.com/trackerhq/tracker/internal/output"
)

var userEmail string

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage users",
}

var userAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Create a user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return userAddRun(args[0])
	},
}

var userListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List users",
	RunE: func(cmd *cobra.Command, args []string) error {
		return userListRun()
	},
}

func init() {
	userAddCmd.Flags().StringVar(&userEmail, "email", "", "User email (required)")
	_ = userAddCmd.MarkFlagRequired("email")

	userCmd.AddCommand(userAddCmd)
	userCmd.AddCommand(userListCmd)
	rootCmd.AddCommand(userCmd)
}

func userAddRun(name string) error {
	s, err := getStore()
	if err != nil {
		return err
	}

	u := &models.User{Name: name, Email: userEmail}
	if err := s.CreateUser(context.Background(), u); err != nil {
		return err
	}

	ui.Success("Added user %s <%s> (%s)", output.Cyan(u.Name), u.Email, u.ID)
	return nil
}

func userListRun() error {
	s, err := getStore()
	if err != nil {
		return err
	}

	users, err := s.ListUsers(context.Background())
	if err != nil {
		return err
	}

	if len(users) == 0 {
		ui.Info("No users.")
		return nil
	}

	table := ui.Table([]string{"Name", "Email", "ID"})
	for _, u := range users {
		table.Append([]string{output.Cyan(u.Name), u.Email, u.ID})
	}
	table.Render()
	return nil
}
