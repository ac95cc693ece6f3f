package main

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strings"

	"github.com/4thel00z/daily/internal"
	"github.com/spf13/cobra"
)

// Plugins are executables named daily-<name> on PATH. Built-in commands
// always take precedence over a plugin of the same name.
const pluginPrefix = "daily-"

type plugin struct {
	Name string
	Path string
}

// plugins scans PATH once, sorted by name. A plugin in an earlier PATH
// directory shadows one with the same name further down.
func plugins() []plugin {
	var found []plugin
	seen := make(map[string]bool)

	for _, dir := range filepath.SplitList(os.Getenv("PATH")) {
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, e := range entries {
			name, ok := strings.CutPrefix(e.Name(), pluginPrefix)
			if !ok || name == "" || e.IsDir() || seen[name] {
				continue
			}
			path := filepath.Join(dir, e.Name())
			if info, err := os.Stat(path); err != nil || info.Mode()&0111 == 0 {
				continue
			}
			seen[name] = true
			found = append(found, plugin{Name: name, Path: path})
		}
	}

	slices.SortFunc(found, func(a, b plugin) int { return strings.Compare(a.Name, b.Name) })
	return found
}

// pluginFor resolves args[0] to a plugin unless it is a flag or names a
// command root already knows. The remaining args belong to the plugin.
func pluginFor(root *cobra.Command, args []string) (plugin, []string, bool) {
	if len(args) == 0 || args[0] == "" || args[0][0] == '-' {
		return plugin{}, nil, false
	}
	name := args[0]
	if name == "help" || name == "completion" {
		return plugin{}, nil, false
	}
	if cmd, _, err := root.Find(args[:1]); err == nil && cmd != root {
		return plugin{}, nil, false
	}

	path, err := exec.LookPath(pluginPrefix + name)
	if err != nil {
		return plugin{}, nil, false
	}
	return plugin{Name: name, Path: path}, args[1:], true
}

// runPlugin runs p with the terminal attached and the resolved scope exported.
func runPlugin(ctx context.Context, p plugin, args []string, resolver *internal.ScopeResolver, version string) error {
	cmd := exec.CommandContext(ctx, p.Path, args...)
	cmd.Env = pluginEnv(resolver, version)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

func pluginEnv(resolver *internal.ScopeResolver, version string) []string {
	env := os.Environ()
	for k, v := range resolver.EnvVars(resolver.Resolve(""), version) {
		env = append(env, k+"="+v)
	}
	return env
}

func setHelpWithPlugins(cmd *cobra.Command) {
	defaultHelp := cmd.HelpFunc()

	cmd.SetHelpFunc(func(c *cobra.Command, args []string) {
		defaultHelp(c, args)
		if c == c.Root() {
			printPlugins(c)
		}
	})
}

// printPlugins lists the plugins reachable from root; ones shadowed by a
// built-in command are left out.
func printPlugins(root *cobra.Command) {
	var visible []plugin
	for _, p := range plugins() {
		if cmd, _, err := root.Find([]string{p.Name}); err == nil && cmd != root {
			continue
		}
		visible = append(visible, p)
	}
	if len(visible) == 0 {
		return
	}

	out := root.OutOrStdout()
	fmt.Fprintf(out, "\nPlugins (%s*):\n", pluginPrefix)
	for _, p := range visible {
		fmt.Fprintf(out, "  %-16s %s\n", p.Name, p.Path)
	}
}
