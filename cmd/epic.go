package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/trackerhq/tracker/internal/models"
	"github.com/trackerhq/tracker/internal/output"
	"github.com/trackerhq/tracker/internal/service"
)

var (
	epicProject    string
	epicScope      string
	epicDesc       string
	epicKey        string
	epicTitle      string
	epicStatus     string
	epicClearScope bool
)

var epicCmd = &cobra.Command{
	Use:   "epic",
	Short: "Manage epics",
	Long:  "Add, list, update, and remove epics. Epic keys are scoped like issue keys but live in their own namespace.",
}

var epicAddCmd = &cobra.Command{
	Use:   "add <key> <title>",
	Short: "Create an epic",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return epicAddRun(args[0], args[1])
	},
}

var epicListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List epics",
	RunE: func(cmd *cobra.Command, args []string) error {
		return epicListRun()
	},
}

var epicUpdateCmd = &cobra.Command{
	Use:   "update <id>",
	Short: "Update epic fields",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return epicUpdateRun(cmd, args[0])
	},
}

var epicRemoveCmd = &cobra.Command{
	Use:     "remove <id>",
	Aliases: []string{"rm"},
	Short:   "Delete an epic",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return epicRemoveRun(args[0])
	},
}

func init() {
	epicAddCmd.Flags().StringVar(&epicProject, "project", "", "Project name or ID (required)")
	epicAddCmd.Flags().StringVar(&epicScope, "scope", "", "Key scope (empty means unscoped)")
	epicAddCmd.Flags().StringVar(&epicDesc, "description", "", "Epic description")
	_ = epicAddCmd.MarkFlagRequired("project")

	epicListCmd.Flags().StringVar(&epicProject, "project", "", "Filter by project name or ID (required)")
	_ = epicListCmd.MarkFlagRequired("project")

	epicUpdateCmd.Flags().StringVar(&epicKey, "key", "", "New key")
	epicUpdateCmd.Flags().StringVar(&epicScope, "scope", "", "New scope")
	epicUpdateCmd.Flags().BoolVar(&epicClearScope, "clear-scope", false, "Clear the scope")
	epicUpdateCmd.Flags().StringVar(&epicTitle, "title", "", "New title")
	epicUpdateCmd.Flags().StringVar(&epicDesc, "description", "", "New description")
	epicUpdateCmd.Flags().StringVar(&epicStatus, "status", "", "New status")

	epicCmd.AddCommand(epicAddCmd)
	epicCmd.AddCommand(epicListCmd)
	epicCmd.AddCommand(epicUpdateCmd)
	epicCmd.AddCommand(epicRemoveCmd)
	rootCmd.AddCommand(epicCmd)
}

func epicAddRun(key, title string) error {
	s, err := getStore()
	if err != nil {
		return err
	}
	ctx := context.Background()

	p, err := resolveProject(ctx, s, epicProject)
	if err != nil {
		return err
	}

	var scope *string
	if epicScope != "" {
		scope = &epicScope
	}

	epic, err := service.NewEpicService(s, s).Create(ctx, service.CreateEpicInput{
		ProjectID:   p.ID,
		Key:         key,
		Scope:       scope,
		Title:       title,
		Description: epicDesc,
	})
	if err != nil {
		return err
	}

	ui.Success("Added epic %s: %s (%s)", output.Cyan(epic.Key), epic.Title, epic.ID)
	return nil
}

func epicListRun() error {
	s, err := getStore()
	if err != nil {
		return err
	}
	ctx := context.Background()

	p, err := resolveProject(ctx, s, epicProject)
	if err != nil {
		return err
	}

	epics, err := service.NewEpicService(s, s).List(ctx, p.ID)
	if err != nil {
		return err
	}

	if len(epics) == 0 {
		ui.Info("No epics found.")
		return nil
	}

	table := ui.Table([]string{"Key", "Scope", "Title", "Status", "ID"})
	for _, e := range epics {
		scope := ""
		if e.Scope != nil {
			scope = *e.Scope
		}
		table.Append([]string{
			output.Cyan(e.Key),
			scope,
			e.Title,
			output.StatusColor(string(e.Status)),
			e.ID,
		})
	}
	table.Render()
	return nil
}

func epicUpdateRun(cmd *cobra.Command, id string) error {
	s, err := getStore()
	if err != nil {
		return err
	}

	var patch service.EpicPatch
	if cmd.Flags().Changed("key") {
		patch.Key = &epicKey
	}
	if epicClearScope {
		patch.SetScope = true
	} else if cmd.Flags().Changed("scope") {
		patch.SetScope = true
		patch.Scope = &epicScope
	}
	if cmd.Flags().Changed("title") {
		patch.Title = &epicTitle
	}
	if cmd.Flags().Changed("description") {
		patch.Description = &epicDesc
	}
	if cmd.Flags().Changed("status") {
		status := models.IssueStatus(epicStatus)
		patch.Status = &status
	}

	epic, err := service.NewEpicService(s, s).Update(context.Background(), id, patch)
	if err != nil {
		return err
	}

	ui.Success("Updated epic %s", output.Cyan(epic.Key))
	return nil
}

func epicRemoveRun(id string) error {
	s, err := getStore()
	if err != nil {
		return err
	}

	if err := service.NewEpicService(s, s).Delete(context.Background(), id); err != nil {
		return err
	}
	ui.Success("Removed epic %s", id)
	return nil
}
