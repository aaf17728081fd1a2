package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/trackerhq/tracker/internal/models"
	"github.com/trackerhq/tracker/internal/output"
	"github.com/trackerhq/tracker/internal/service"
	"github.com/trackerhq/tracker/internal/store"
)

var (
	issueProject    string
	issueScope      string
	issueTitle      string
	issueDesc       string
	issuePriority   string
	issueAssignee   string
	issueStatus     string
	issueKey        string
	issueClearScope bool
)

var issueCmd = &cobra.Command{
	Use:   "issue",
	Short: "Manage issues",
	Long:  "Add, list, update, and remove issues. Keys are unique per scope.",
}

var issueAddCmd = &cobra.Command{
	Use:   "add <key> <title>",
	Short: "Create an issue",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return issueAddRun(args[0], args[1])
	},
}

var issueListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List issues",
	RunE: func(cmd *cobra.Command, args []string) error {
		return issueListRun(cmd)
	},
}

var issueShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show issue details and relations",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return issueShowRun(args[0])
	},
}

var issueUpdateCmd = &cobra.Command{
	Use:   "update <id>",
	Short: "Update issue fields",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return issueUpdateRun(cmd, args[0])
	},
}

var issueRemoveCmd = &cobra.Command{
	Use:     "remove <id>",
	Aliases: []string{"rm"},
	Short:   "Delete an issue and its relations",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return issueRemoveRun(args[0])
	},
}

func init() {
	issueAddCmd.Flags().StringVar(&issueProject, "project", "", "Project name or ID (required)")
	issueAddCmd.Flags().StringVar(&issueScope, "scope", "", "Key scope (empty means unscoped)")
	issueAddCmd.Flags().StringVar(&issueDesc, "description", "", "Issue description")
	issueAddCmd.Flags().StringVar(&issuePriority, "priority", "medium", "Priority: low, medium, high")
	issueAddCmd.Flags().StringVar(&issueAssignee, "assignee", "", "Assignee")
	_ = issueAddCmd.MarkFlagRequired("project")

	issueListCmd.Flags().StringVar(&issueProject, "project", "", "Filter by project name or ID")
	issueListCmd.Flags().StringVar(&issueScope, "scope", "", "Filter by scope")
	issueListCmd.Flags().StringVar(&issueStatus, "status", "", "Filter by status")
	issueListCmd.Flags().StringVar(&issueAssignee, "assignee", "", "Filter by assignee")

	issueUpdateCmd.Flags().StringVar(&issueKey, "key", "", "New key")
	issueUpdateCmd.Flags().StringVar(&issueScope, "scope", "", "New scope")
	issueUpdateCmd.Flags().BoolVar(&issueClearScope, "clear-scope", false, "Clear the scope")
	issueUpdateCmd.Flags().StringVar(&issueTitle, "title", "", "New title")
	issueUpdateCmd.Flags().StringVar(&issueDesc, "description", "", "New description")
	issueUpdateCmd.Flags().StringVar(&issueStatus, "status", "", "New status: open, in_progress, done, closed")
	issueUpdateCmd.Flags().StringVar(&issuePriority, "priority", "", "New priority")
	issueUpdateCmd.Flags().StringVar(&issueAssignee, "assignee", "", "New assignee")

	issueCmd.AddCommand(issueAddCmd)
	issueCmd.AddCommand(issueListCmd)
	issueCmd.AddCommand(issueShowCmd)
	issueCmd.AddCommand(issueUpdateCmd)
	issueCmd.AddCommand(issueRemoveCmd)
	rootCmd.AddCommand(issueCmd)
}

func issueService() (*service.IssueService, store.Store, error) {
	s, err := getStore()
	if err != nil {
		return nil, nil, err
	}
	return service.NewIssueService(s, s), s, nil
}

func issueAddRun(key, title string) error {
	svc, s, err := issueService()
	if err != nil {
		return err
	}
	ctx := context.Background()

	p, err := resolveProject(ctx, s, issueProject)
	if err != nil {
		return err
	}

	var scope *string
	if issueScope != "" {
		scope = &issueScope
	}

	issue, err := svc.Create(ctx, service.CreateIssueInput{
		ProjectID:   p.ID,
		Key:         key,
		Scope:       scope,
		Title:       title,
		Description: issueDesc,
		Priority:    models.IssuePriority(issuePriority),
		Assignee:    issueAssignee,
	})
	if err != nil {
		return err
	}

	ui.Success("Added issue %s: %s (%s)", output.Cyan(issue.Key), issue.Title, issue.ID)
	return nil
}

func issueListRun(cmd *cobra.Command) error {
	svc, s, err := issueService()
	if err != nil {
		return err
	}
	ctx := context.Background()

	filter := store.IssueListFilter{
		Status:   models.IssueStatus(issueStatus),
		Assignee: issueAssignee,
	}
	if issueProject != "" {
		p, err := resolveProject(ctx, s, issueProject)
		if err != nil {
			return err
		}
		filter.ProjectID = p.ID
	}
	if cmd.Flags().Changed("scope") {
		filter.Scope = &issueScope
	}

	issues, err := svc.List(ctx, filter)
	if err != nil {
		return err
	}

	if len(issues) == 0 {
		ui.Info("No issues found.")
		return nil
	}

	table := ui.Table([]string{"Key", "Scope", "Title", "Status", "Priority", "Assignee", "ID"})
	for _, i := range issues {
		scope := ""
		if i.Scope != nil {
			scope = *i.Scope
		}
		table.Append([]string{
			output.Cyan(i.Key),
			scope,
			i.Title,
			output.StatusColor(string(i.Status)),
			string(i.Priority),
			i.Assignee,
			i.ID,
		})
	}
	table.Render()
	return nil
}

func issueShowRun(id string) error {
	svc, s, err := issueService()
	if err != nil {
		return err
	}
	ctx := context.Background()

	issue, err := svc.Get(ctx, id)
	if err != nil {
		return err
	}

	fmt.Fprintf(ui.Out, "%s: %s\n", output.Cyan(issue.Key), issue.Title)
	fmt.Fprintf(ui.Out, "  ID:       %s\n", issue.ID)
	if issue.Scope != nil {
		fmt.Fprintf(ui.Out, "  Scope:    %s\n", *issue.Scope)
	}
	fmt.Fprintf(ui.Out, "  Status:   %s\n", output.StatusColor(string(issue.Status)))
	fmt.Fprintf(ui.Out, "  Priority: %s\n", issue.Priority)
	if issue.Assignee != "" {
		fmt.Fprintf(ui.Out, "  Assignee: %s\n", issue.Assignee)
	}
	if issue.Description != "" {
		fmt.Fprintf(ui.Out, "  Description: %s\n", issue.Description)
	}

	rels, err := service.NewRelationService(s, s).ListByIssue(ctx, issue.ID)
	if err != nil {
		return err
	}
	if len(rels) > 0 {
		fmt.Fprintln(ui.Out, "  Relations:")
		for _, r := range rels {
			other := r.TargetIssueID
			if other == issue.ID {
				other = r.SourceIssueID
			}
			fmt.Fprintf(ui.Out, "    %s %s\n", r.TypeName, other)
		}
	}
	return nil
}

func issueUpdateRun(cmd *cobra.Command, id string) error {
	svc, _, err := issueService()
	if err != nil {
		return err
	}

	var patch service.IssuePatch
	if cmd.Flags().Changed("key") {
		patch.Key = &issueKey
	}
	if issueClearScope {
		patch.SetScope = true
	} else if cmd.Flags().Changed("scope") {
		patch.SetScope = true
		patch.Scope = &issueScope
	}
	if cmd.Flags().Changed("title") {
		patch.Title = &issueTitle
	}
	if cmd.Flags().Changed("description") {
		patch.Description = &issueDesc
	}
	if cmd.Flags().Changed("status") {
		status := models.IssueStatus(issueStatus)
		patch.Status = &status
	}
	if cmd.Flags().Changed("priority") {
		priority := models.IssuePriority(issuePriority)
		patch.Priority = &priority
	}
	if cmd.Flags().Changed("assignee") {
		patch.Assignee = &issueAssignee
	}

	issue, err := svc.Update(context.Background(), id, patch)
	if err != nil {
		return err
	}

	ui.Success("Updated issue %s", output.Cyan(issue.Key))
	return nil
}

func issueRemoveRun(id string) error {
	svc, _, err := issueService()
	if err != nil {
		return err
	}

	if err := svc.Delete(context.Background(), id); err != nil {
		return err
	}
	ui.Success("Removed issue %s", id)
	return nil
}
