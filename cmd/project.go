package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/trackerhq/tracker/internal/health"
	"github.com/trackerhq/tracker/internal/models"
	"github.com/trackerhq/tracker/internal/output"
	"github.com/trackerhq/tracker/internal/store"
)

var projectDescription string

var projectCmd = &cobra.Command{
	Use:   "project",
	Short: "Manage projects",
	Long:  "Add, remove, list, and inspect projects.",
}

var projectAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Create a project",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return projectAddRun(args[0])
	},
}

var projectRemoveCmd = &cobra.Command{
	Use:     "remove <name-or-id>",
	Aliases: []string{"rm"},
	Short:   "Delete a project and everything in it",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return projectRemoveRun(args[0])
	},
}

var projectListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List projects",
	RunE: func(cmd *cobra.Command, args []string) error {
		return projectListRun()
	},
}

var projectShowCmd = &cobra.Command{
	Use:   "show <name-or-id>",
	Short: "Show detailed project information",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return projectShowRun(args[0])
	},
}

var projectPulseCmd = &cobra.Command{
	Use:   "pulse <name-or-id>",
	Short: "Show the project's health score",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return projectPulseRun(args[0])
	},
}

func init() {
	projectAddCmd.Flags().StringVar(&projectDescription, "description", "", "Project description")

	projectCmd.AddCommand(projectAddCmd)
	projectCmd.AddCommand(projectRemoveCmd)
	projectCmd.AddCommand(projectListCmd)
	projectCmd.AddCommand(projectShowCmd)
	projectCmd.AddCommand(projectPulseCmd)
	rootCmd.AddCommand(projectCmd)
}

func projectAddRun(name string) error {
	s, err := getStore()
	if err != nil {
		return err
	}

	p := &models.Project{
		Name:        name,
		Description: projectDescription,
	}
	if err := s.CreateProject(context.Background(), p); err != nil {
		return fmt.Errorf("add project: %w", err)
	}

	ui.Success("Added project: %s (%s)", output.Cyan(p.Name), p.ID)
	return nil
}

func projectRemoveRun(nameOrID string) error {
	s, err := getStore()
	if err != nil {
		return err
	}
	ctx := context.Background()

	p, err := resolveProject(ctx, s, nameOrID)
	if err != nil {
		return err
	}

	if err := s.DeleteProject(ctx, p.ID); err != nil {
		return fmt.Errorf("remove project: %w", err)
	}

	ui.Success("Removed project: %s", output.Cyan(p.Name))
	return nil
}

func projectListRun() error {
	s, err := getStore()
	if err != nil {
		return err
	}
	ctx := context.Background()

	projects, err := s.ListProjects(ctx)
	if err != nil {
		return err
	}

	if len(projects) == 0 {
		ui.Info("No projects. Use 'tracker project add <name>' to get started.")
		return nil
	}

	table := ui.Table([]string{"Name", "ID", "Open Issues", "Members"})
	for _, p := range projects {
		issues, _ := s.ListIssues(ctx, store.IssueListFilter{ProjectID: p.ID, Status: models.IssueStatusOpen})
		members, _ := s.ListMembersByProject(ctx, p.ID)

		table.Append([]string{
			output.Cyan(p.Name),
			p.ID,
			fmt.Sprintf("%d", len(issues)),
			fmt.Sprintf("%d", len(members)),
		})
	}
	table.Render()
	return nil
}

func projectShowRun(nameOrID string) error {
	s, err := getStore()
	if err != nil {
		return err
	}
	ctx := context.Background()

	p, err := resolveProject(ctx, s, nameOrID)
	if err != nil {
		return err
	}

	fmt.Fprintf(ui.Out, "%s\n", output.Cyan(p.Name))
	fmt.Fprintf(ui.Out, "  ID:          %s\n", p.ID)
	if p.Description != "" {
		fmt.Fprintf(ui.Out, "  Description: %s\n", p.Description)
	}
	fmt.Fprintf(ui.Out, "  Created:     %s\n", p.CreatedAt.Format("2006-01-02 15:04"))

	issues, err := s.ListIssues(ctx, store.IssueListFilter{ProjectID: p.ID})
	if err != nil {
		return err
	}
	epics, err := s.ListEpics(ctx, p.ID)
	if err != nil {
		return err
	}
	members, err := s.ListMembersByProject(ctx, p.ID)
	if err != nil {
		return err
	}
	fmt.Fprintf(ui.Out, "  Issues:      %d\n", len(issues))
	fmt.Fprintf(ui.Out, "  Epics:       %d\n", len(epics))
	fmt.Fprintf(ui.Out, "  Members:     %d\n", len(members))
	return nil
}

func projectPulseRun(nameOrID string) error {
	s, err := getStore()
	if err != nil {
		return err
	}
	ctx := context.Background()

	p, err := resolveProject(ctx, s, nameOrID)
	if err != nil {
		return err
	}

	issues, err := s.ListIssues(ctx, store.IssueListFilter{ProjectID: p.ID})
	if err != nil {
		return err
	}
	epics, err := s.ListEpics(ctx, p.ID)
	if err != nil {
		return err
	}

	score := health.NewScorer().Score(issues, epics)

	fmt.Fprintf(ui.Out, "%s pulse: %s\n", output.Cyan(p.Name), output.PulseColor(score.Total))
	fmt.Fprintf(ui.Out, "  Backlog health:      %d/30\n", score.BacklogHealth)
	fmt.Fprintf(ui.Out, "  Activity recency:    %d/30\n", score.ActivityRecency)
	fmt.Fprintf(ui.Out, "  Assignment coverage: %d/20\n", score.AssignmentCoverage)
	fmt.Fprintf(ui.Out, "  Epic progress:       %d/20\n", score.EpicProgress)
	return nil
}
