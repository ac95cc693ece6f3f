package main

import (
	"fmt"

	"github.com/4thel00z/daily/internal"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func NewStatusCmd(newSession sessionFactory) *cobra.Command {
	return &cobra.Command{
		Use:   "status [repositories...]",
		Short: "Check the backend and the configured repositories",
		RunE:  makeStatusRunner(newSession),
	}
}

func makeStatusRunner(newSession sessionFactory) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		s, err := newSession(cmd)
		if err != nil {
			return err
		}
		defer s.close()

		gen, err := s.generator(cmd.Context())
		if err != nil {
			s.logger.Warn("backend unavailable", zap.Error(err))
		}

		out, err := internal.NewStatusUseCase(s.aggregatorFactory(), gen).Execute(cmd.Context(), s.repositories(cmd, args))
		if err != nil {
			return fmt.Errorf("status: %w", err)
		}

		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			return writeJSON(cmd.OutOrStdout(), out)
		}
		printStatus(cmd.OutOrStdout(), out)
		return nil
	}
}
