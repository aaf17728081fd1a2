package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/trackerhq/tracker/internal/models"
	"github.com/trackerhq/tracker/internal/output"
	"github.com/trackerhq/tracker/internal/service"
)

var (
	memberProject    string
	memberPermission string
)

var memberCmd = &cobra.Command{
	Use:   "member",
	Short: "Manage project members",
	Long:  "Add users to projects, list members, and change permission levels.",
}

var memberAddCmd = &cobra.Command{
	Use:   "add <user-id>",
	Short: "Add a user to a project",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return memberAddRun(args[0])
	},
}

var memberListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List a project's members",
	RunE: func(cmd *cobra.Command, args []string) error {
		return memberListRun()
	},
}

var memberSetPermissionCmd = &cobra.Command{
	Use:   "set-permission <member-id> <permission>",
	Short: "Change a member's permission level",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return memberSetPermissionRun(args[0], args[1])
	},
}

var memberRemoveCmd = &cobra.Command{
	Use:     "remove <member-id>",
	Aliases: []string{"rm"},
	Short:   "Remove a member from a project",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return memberRemoveRun(args[0])
	},
}

func init() {
	memberAddCmd.Flags().StringVar(&memberProject, "project", "", "Project name or ID (required)")
	memberAddCmd.Flags().StringVar(&memberPermission, "permission", "member", "Permission: member, moderator, administrator")
	_ = memberAddCmd.MarkFlagRequired("project")

	memberListCmd.Flags().StringVar(&memberProject, "project", "", "Project name or ID (required)")
	_ = memberListCmd.MarkFlagRequired("project")

	memberCmd.AddCommand(memberAddCmd)
	memberCmd.AddCommand(memberListCmd)
	memberCmd.AddCommand(memberSetPermissionCmd)
	memberCmd.AddCommand(memberRemoveCmd)
	rootCmd.AddCommand(memberCmd)
}

func memberService() (*service.MemberService, error) {
	s, err := getStore()
	if err != nil {
		return nil, err
	}
	return service.NewMemberService(s, s, s), nil
}

func memberAddRun(userID string) error {
	svc, err := memberService()
	if err != nil {
		return err
	}
	s, _ := getStore()
	ctx := context.Background()

	p, err := resolveProject(ctx, s, memberProject)
	if err != nil {
		return err
	}

	permission, err := models.ParsePermission(memberPermission)
	if err != nil {
		return err
	}

	m, err := svc.AddMember(ctx, p.ID, userID, permission)
	if err != nil {
		return err
	}

	ui.Success("Added %s to %s as %s (%s)", userID, output.Cyan(p.Name), m.PermissionName, m.ID)
	return nil
}

func memberListRun() error {
	svc, err := memberService()
	if err != nil {
		return err
	}
	s, _ := getStore()
	ctx := context.Background()

	p, err := resolveProject(ctx, s, memberProject)
	if err != nil {
		return err
	}

	members, err := svc.ListMembers(ctx, p.ID)
	if err != nil {
		return err
	}

	if len(members) == 0 {
		ui.Info("No members.")
		return nil
	}

	table := ui.Table([]string{"Name", "Email", "Permission", "Member ID"})
	for _, m := range members {
		name, email := m.UserID, ""
		if m.User != nil {
			name, email = m.User.Name, m.User.Email
		}
		table.Append([]string{
			output.Cyan(name),
			email,
			output.PermissionColor(m.PermissionName),
			m.ID,
		})
	}
	table.Render()
	return nil
}

func memberSetPermissionRun(memberID, rawPermission string) error {
	svc, err := memberService()
	if err != nil {
		return err
	}

	permission, err := models.ParsePermission(rawPermission)
	if err != nil {
		return err
	}

	m, err := svc.UpdatePermission(context.Background(), memberID, permission)
	if err != nil {
		return err
	}

	ui.Success("Set permission to %s for member %s", output.PermissionColor(m.PermissionName), m.ID)
	return nil
}

func memberRemoveRun(memberID string) error {
	svc, err := memberService()
	if err != nil {
		return err
	}

	if err := svc.RemoveMember(context.Background(), memberID); err != nil {
		return err
	}
	ui.Success("Removed member %s", memberID)
	return nil
}
