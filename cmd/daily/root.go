package main

import (
	"github.com/4thel00z/daily/internal"
	"github.com/spf13/cobra"
)

func NewRootCmd(version string, a *app) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "daily",
		Short: "Daily updates from your git history",
		Long: `Collects commits and uncommitted changes across git repositories and turns
them into a daily stand-up update with a local or hosted language model.`,
		Version:       version,
		SilenceErrors: true,
		SilenceUsage:  true,
		Run: func(cmd *cobra.Command, _ []string) {
			_ = cmd.Help()
		},
	}

	addPersistentFlags(rootCmd)
	setHelpWithPlugins(rootCmd)

	if a != nil {
		addSubcommands(rootCmd, a)
	}

	return rootCmd
}

func addPersistentFlags(cmd *cobra.Command) {
	f := cmd.PersistentFlags()
	f.String("scope", "", "Config scope (global|project)")
	f.StringSliceP("repo", "r", nil, "Repository path (repeatable)")
	f.Bool("json", false, "Output in JSON format")
	f.String("log-level", "", "Log level (debug|info|warn|error)")
	f.Int("concurrency", 0, "Repositories scanned in parallel")
	f.String("backend", "", "Generation backend (ollama|openai|anthropic|openrouter)")
	f.String("host", "", "Ollama host URL")
	f.String("model", "", "Model name")
	f.Duration("timeout", internal.DefaultTimeout, "Generation timeout")
	f.Bool("keep-hidden", false, "Keep <think> sections in model output")
}

func addSubcommands(root *cobra.Command, a *app) {
	root.AddCommand(
		NewInitCmd(internal.NewInitUseCase(a.resolver)),
		NewUpdateCmd(a.newSession),
		NewChangesCmd(a.newSession),
		NewStatusCmd(a.newSession),
		NewWatchCmd(a.newSession),
		NewExtractCmd(a.newSession),
		NewProviderCmd(
			internal.NewProviderListUseCase(a.resolver),
			internal.NewProviderAddUseCase(a.resolver),
			internal.NewProviderRemoveUseCase(a.resolver),
			internal.NewProviderSetDefaultUseCase(a.resolver),
			internal.NewProviderTestUseCase(a.resolver),
		),
	)
}
