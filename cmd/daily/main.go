package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"

	"github.com/4thel00z/daily/internal"
	"github.com/charmbracelet/fang"
)

// version is set via ldflags at build time
var version = "dev"

func main() {
	ctx := context.Background()
	a := newApp()
	rootCmd := NewRootCmd(version, a)

	if p, args, ok := pluginFor(rootCmd, os.Args[1:]); ok {
		if err := runPlugin(ctx, p, args, a.resolver, version); err != nil {
			var exitErr *exec.ExitError
			if errors.As(err, &exitErr) {
				os.Exit(exitErr.ExitCode())
			}
			fmt.Fprintf(os.Stderr, "daily %s: %v\n", p.Name, err)
			os.Exit(1)
		}
		return
	}

	if err := fang.Execute(ctx, rootCmd); err != nil {
		os.Exit(1)
	}
}

type app struct {
	resolver   *internal.ScopeResolver
	newSession sessionFactory
}

func newApp() *app {
	resolver := internal.NewScopeResolver()
	return &app{
		resolver:   resolver,
		newSession: newSessionFactory(resolver),
	}
}
