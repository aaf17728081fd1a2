package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/trackerhq/tracker/internal/output"
	"github.com/trackerhq/tracker/internal/service"
)

var relationType string

var relationCmd = &cobra.Command{
	Use:   "relation",
	Short: "Manage issue relations",
	Long:  "Link issues with typed relations. A pair of issues carries at most one relation, whichever way round it was created.",
}

var relationAddCmd = &cobra.Command{
	Use:   "add <issue-id> <related-issue-id>",
	Short: "Relate two issues",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return relationAddRun(args[0], args[1])
	},
}

var relationListCmd = &cobra.Command{
	Use:     "list <issue-id>",
	Aliases: []string{"ls"},
	Short:   "List an issue's relations",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return relationListRun(args[0])
	},
}

var relationRemoveCmd = &cobra.Command{
	Use:     "remove <issue-id> <related-issue-id>",
	Aliases: []string{"rm"},
	Short:   "Remove the relation between two issues",
	Args:    cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return relationRemoveRun(args[0], args[1])
	},
}

func init() {
	relationAddCmd.Flags().StringVar(&relationType, "type", "relates_to", "Relation type: blocks, duplicates, relates_to")

	relationCmd.AddCommand(relationAddCmd)
	relationCmd.AddCommand(relationListCmd)
	relationCmd.AddCommand(relationRemoveCmd)
	rootCmd.AddCommand(relationCmd)
}

func relationAddRun(issueID, relatedID string) error {
	s, err := getStore()
	if err != nil {
		return err
	}

	rel, err := service.NewRelationService(s, s).Create(context.Background(), issueID, relatedID, relationType)
	if err != nil {
		return err
	}

	ui.Success("Related %s %s %s", rel.SourceIssueID, output.Cyan(rel.TypeName), rel.TargetIssueID)
	return nil
}

func relationListRun(issueID string) error {
	s, err := getStore()
	if err != nil {
		return err
	}

	rels, err := service.NewRelationService(s, s).ListByIssue(context.Background(), issueID)
	if err != nil {
		return err
	}

	if len(rels) == 0 {
		ui.Info("No relations.")
		return nil
	}

	table := ui.Table([]string{"Type", "Source", "Target", "ID"})
	for _, r := range rels {
		source := r.SourceIssueID
		if r.Source != nil {
			source = fmt.Sprintf("%s (%s)", r.Source.Key, r.SourceIssueID)
		}
		target := r.TargetIssueID
		if r.Target != nil {
			target = fmt.Sprintf("%s (%s)", r.Target.Key, r.TargetIssueID)
		}
		table.Append([]string{
			output.Cyan(r.TypeName),
			source,
			target,
			r.ID,
		})
	}
	table.Render()
	return nil
}

func relationRemoveRun(issueID, relatedID string) error {
	s, err := getStore()
	if err != nil {
		return err
	}

	if err := service.NewRelationService(s, s).DeleteByIssues(context.Background(), issueID, relatedID); err != nil {
		return err
	}
	ui.Success("Removed relation between %s and %s", issueID, relatedID)
	return nil
}
