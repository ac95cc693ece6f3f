package main

import (
	"fmt"

	"github.com/4thel00z/daily/internal"
	"github.com/spf13/cobra"
)

func NewChangesCmd(newSession sessionFactory) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "changes [repositories...]",
		Short: "Show the git evidence without calling a model",
		Long: `Show uncommitted changes of each repository, or with --since the commits
made on or after that date.`,
		RunE: makeChangesRunner(newSession),
	}

	cmd.Flags().String("since", "", "Start date (YYYY-MM-DD)")
	cmd.Flags().String("author", "", "Author filter (substring of name or email); defaults to the git identity, or all authors when none is configured")
	cmd.Flags().Bool("diffs", false, "Show diffs")
	cmd.Flags().Bool("current", false, "Also show uncommitted changes when --since is set")
	return cmd
}

func makeChangesRunner(newSession sessionFactory) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		s, err := newSession(cmd)
		if err != nil {
			return err
		}
		defer s.close()

		since, _ := cmd.Flags().GetString("since")
		withDiffs, _ := cmd.Flags().GetBool("diffs")
		withCurrent, _ := cmd.Flags().GetBool("current")
		asJSON, _ := cmd.Flags().GetBool("json")

		repos := s.repositories(cmd, args)
		out, err := internal.NewChangesUseCase(s.aggregatorFactory()).Execute(cmd.Context(), internal.ChangesInput{
			Repositories: repos,
			Since:        since,
			Author:       s.cfg.Author,
			WithDiffs:    withDiffs,
			WithCurrent:  withCurrent,
			WithMessages: true,
		})
		if err != nil {
			return fmt.Errorf("collect changes: %w", err)
		}

		w := cmd.OutOrStdout()
		if asJSON {
			return writeJSON(w, out)
		}

		if out.History != nil {
			printHistory(w, repos, out.History, withDiffs)
		}
		if out.Current != nil {
			printChangeSets(w, repos, out.Current, withDiffs)
		}
		return nil
	}
}
