package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/4thel00z/daily/internal"
	"github.com/spf13/cobra"
)

func NewExtractCmd(newSession sessionFactory) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "extract [text]",
		Short: "Find project paths in a free-text note",
		Long: `Find the project paths mentioned in a note. The note is read from the
arguments, or from stdin when none are given. With --llm the model also
summarizes the note.`,
		RunE: makeExtractRunner(newSession),
	}

	cmd.Flags().Bool("llm", false, "Ask the model instead of only matching patterns")
	return cmd
}

func makeExtractRunner(newSession sessionFactory) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		s, err := newSession(cmd)
		if err != nil {
			return err
		}
		defer s.close()

		useModel, _ := cmd.Flags().GetBool("llm")
		asJSON, _ := cmd.Flags().GetBool("json")

		text := strings.Join(args, " ")
		if text == "" {
			data, err := io.ReadAll(cmd.InOrStdin())
			if err != nil {
				return fmt.Errorf("read note: %w", err)
			}
			text = string(data)
		}

		var gen internal.Generator
		if useModel {
			if gen, err = s.generator(cmd.Context()); err != nil {
				return err
			}
		}

		out, err := internal.NewExtractPathsUseCase(gen, s.prompts, s.logger).Execute(cmd.Context(), internal.ExtractInput{
			Text:     text,
			UseModel: useModel,
		})
		if err != nil {
			return fmt.Errorf("extract paths: %w", err)
		}

		w := cmd.OutOrStdout()
		if asJSON {
			return writeJSON(w, out)
		}

		if out.Message != "" {
			fmt.Fprintln(cmd.ErrOrStderr(), out.Message)
		}
		for _, p := range out.Paths {
			marker := ""
			if _, err := os.Stat(p); err != nil {
				marker = dimLabel(" (missing)")
			}
			fmt.Fprintf(w, "%s%s\n", p, marker)
		}
		if out.WorkSummary != "" {
			fmt.Fprintf(w, "\n%s\n%s\n", headerLabel("Summary"), out.WorkSummary)
		}
		return nil
	}
}
