package main

import (
	"fmt"

	"github.com/4thel00z/daily/internal"
	"github.com/spf13/cobra"
)

func NewInitCmd(initUC *internal.InitUseCase) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init [repositories...]",
		Short: "Create a daily config",
		Long: `Create a .daily directory with a default config.yaml and editable prompt
templates. Repositories given as arguments are stored in the config.`,
		RunE: makeInitRunner(initUC),
	}

	cmd.Flags().Bool("global", false, "Initialize global scope (~/.daily)")
	cmd.Flags().Bool("force", false, "Overwrite an existing config")
	return cmd
}

func makeInitRunner(initUC *internal.InitUseCase) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		isGlobal, _ := cmd.Flags().GetBool("global")
		force, _ := cmd.Flags().GetBool("force")

		scope := string(internal.ScopeProject)
		if isGlobal {
			scope = string(internal.ScopeGlobal)
		}

		out, err := initUC.Execute(internal.InitInput{
			Scope:        scope,
			Repositories: args,
			Force:        force,
		})
		if err != nil {
			return fmt.Errorf("init: %w", err)
		}

		if !out.Created {
			return fmt.Errorf("already initialized at %s (use --force to overwrite)", out.ConfigPath)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Initialized %s config at %s\n", out.Scope.Type, out.ConfigPath)
		return nil
	}
}
