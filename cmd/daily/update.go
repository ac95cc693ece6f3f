package main

import (
	"fmt"
	"io"
	"iter"
	"os"
	"strings"

	"github.com/4thel00z/daily/internal"
	"github.com/spf13/cobra"
)

func NewUpdateCmd(newSession sessionFactory) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "update [repositories...]",
		Short: "Generate a daily update",
		Long: `Collect commits since a date (yesterday by default) and optionally the
uncommitted changes of each repository, then ask the model for a daily update.`,
		RunE: makeUpdateRunner(newSession),
	}

	cmd.Flags().String("since", "", "Start date (YYYY-MM-DD), defaults to yesterday")
	cmd.Flags().String("author", "", "Author filter (substring of name or email); defaults to the git identity, or all authors when none is configured")
	cmd.Flags().Bool("diffs", false, "Include diffs in the prompt")
	cmd.Flags().Bool("current", false, "Include uncommitted changes")
	cmd.Flags().Bool("per-file", false, "Summarize each changed file first")
	cmd.Flags().Bool("stream", false, "Print the update as it is generated")
	cmd.Flags().Bool("prompt-only", false, "Print the prompt without calling the model")
	cmd.Flags().String("notes", "", "Free-text notes about today's work, or @file")
	return cmd
}

func makeUpdateRunner(newSession sessionFactory) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		s, err := newSession(cmd)
		if err != nil {
			return err
		}
		defer s.close()

		since, _ := cmd.Flags().GetString("since")
		withDiffs, _ := cmd.Flags().GetBool("diffs")
		withCurrent, _ := cmd.Flags().GetBool("current")
		perFile, _ := cmd.Flags().GetBool("per-file")
		stream, _ := cmd.Flags().GetBool("stream")
		promptOnly, _ := cmd.Flags().GetBool("prompt-only")
		notes, _ := cmd.Flags().GetString("notes")

		notes, err = readNotes(notes)
		if err != nil {
			return err
		}

		input := internal.UpdateInput{
			Repositories:     s.repositories(cmd, args),
			Since:            since,
			Author:           s.cfg.Author,
			WithDiffs:        withDiffs,
			WithCurrent:      withCurrent,
			PerFileSummaries: perFile,
			WorkSummary:      notes,
		}

		var gen internal.Generator
		if !promptOnly || perFile {
			gen, err = s.generator(cmd.Context())
			if err != nil {
				return err
			}
		}
		uc := internal.NewDailyUpdateUseCase(s.aggregatorFactory(), gen, s.prompts, s.logger)

		w := cmd.OutOrStdout()

		switch {
		case promptOnly:
			out, err := uc.Prepare(cmd.Context(), input)
			if err != nil {
				return fmt.Errorf("prepare update: %w", err)
			}
			fmt.Fprintln(w, out.Prompt)
			return nil

		case stream:
			_, chunks, err := uc.Stream(cmd.Context(), input)
			if err != nil {
				return fmt.Errorf("prepare update: %w", err)
			}
			return printStream(w, chunks)

		default:
			out, err := uc.Execute(cmd.Context(), input)
			if err != nil {
				return err
			}
			fmt.Fprintln(w, strings.TrimSpace(out.Text))
			return nil
		}
	}
}

func printStream(w io.Writer, chunks iter.Seq2[internal.Chunk, error]) error {
	for chunk, err := range chunks {
		if err != nil {
			return fmt.Errorf("stream update: %w", err)
		}
		if chunk.Done {
			break
		}
		fmt.Fprint(w, chunk.Text)
	}
	fmt.Fprintln(w)
	return nil
}

// readNotes returns the notes text, reading it from a file for "@path".
func readNotes(notes string) (string, error) {
	path, ok := strings.CutPrefix(notes, "@")
	if !ok {
		return notes, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read notes: %w", err)
	}
	return string(data), nil
}
