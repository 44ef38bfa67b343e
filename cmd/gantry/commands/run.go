package commands

import (
	"github.com/spf13/cobra"
	"go.trai.ch/gantry/internal/app"
)

func (c *CLI) newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the pipeline for a repository event",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			eventType, _ := cmd.Flags().GetString("event")
			branch, _ := cmd.Flags().GetString("branch")
			commit, _ := cmd.Flags().GetString("commit")
			changed, _ := cmd.Flags().GetStringArray("changed")
			parallelism, _ := cmd.Flags().GetInt("parallelism")
			watch, _ := cmd.Flags().GetBool("watch")
			color, _ := cmd.Flags().GetString("color")

			return c.app.Run(cmd.Context(), app.RunOptions{
				EventType:    eventType,
				Branch:       branch,
				Commit:       commit,
				ChangedPaths: changed,
				Parallelism:  parallelism,
				Watch:        watch,
				Color:        color,
			})
		},
	}
	cmd.Flags().StringP("event", "e", "push", "Event type to simulate: push or pull_request")
	cmd.Flags().StringP("branch", "b", "main", "Branch the event happened on")
	cmd.Flags().String("commit", "", "Commit identifier attached to the event")
	cmd.Flags().StringArray("changed", nil, "Changed path for the event (repeatable; empty means run unconditionally)")
	cmd.Flags().IntP("parallelism", "p", 0, "Maximum jobs in flight (0 means number of CPUs)")
	cmd.Flags().BoolP("watch", "w", false, "Keep watching the repository and re-run on changes")
	cmd.Flags().String("color", "auto", "Color output: auto, always, or never")
	return cmd
}
