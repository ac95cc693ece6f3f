package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/4thel00z/daily/internal"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func NewWatchCmd(newSession sessionFactory) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch [repositories...]",
		Short: "Show uncommitted changes as files change",
		Long:  `Watch the repositories' working trees and print the change list after each burst of edits.`,
		RunE:  makeWatchRunner(newSession),
	}

	cmd.Flags().Duration("debounce", 500*time.Millisecond, "Debounce window for batching changes")
	return cmd
}

func makeWatchRunner(newSession sessionFactory) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		s, err := newSession(cmd)
		if err != nil {
			return err
		}
		defer s.close()

		debounce, _ := cmd.Flags().GetDuration("debounce")
		repos := s.repositories(cmd, args)
		changesUC := internal.NewChangesUseCase(s.aggregatorFactory())

		watcher, err := fsnotify.NewWatcher()
		if err != nil {
			return fmt.Errorf("create watcher: %w", err)
		}
		defer watcher.Close()

		for _, repo := range repos {
			if err := addWatchDirs(watcher, repo); err != nil {
				s.logger.Warn("not watching repository", zap.String("path", repo), zap.Error(err))
			}
		}

		w := cmd.OutOrStdout()
		rescan := func() {
			out, err := changesUC.Execute(cmd.Context(), internal.ChangesInput{Repositories: repos})
			if err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "scan error: %v\n", err)
				return
			}
			fmt.Fprintf(w, "%s\n", dimLabel(time.Now().Format(time.TimeOnly)))
			printChangeSets(w, repos, out.Current, false)
		}

		fmt.Fprintf(w, "Watching %d repositories for changes...\n", len(repos))
		rescan()

		timer := time.NewTimer(0)
		if !timer.Stop() {
			<-timer.C
		}
		pending := false

		for {
			select {
			case <-cmd.Context().Done():
				return nil
			case event, ok := <-watcher.Events:
				if !ok {
					return nil
				}
				if shouldIgnoreEvent(event) {
					continue
				}
				if event.Op&fsnotify.Create != 0 {
					if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
						_ = addWatchDirs(watcher, event.Name)
					}
				}
				if !pending {
					timer.Reset(debounce)
					pending = true
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return nil
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "watch error: %v\n", err)
			case <-timer.C:
				pending = false
				rescan()
			}
		}
	}
}

// addWatchDirs watches root and its subdirectories, skipping hidden ones
// such as .git.
func addWatchDirs(watcher *fsnotify.Watcher, root string) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}

		if info.IsDir() {
			base := filepath.Base(path)
			if strings.HasPrefix(base, ".") && path != root {
				return filepath.SkipDir
			}
			return watcher.Add(path)
		}
		return nil
	})
}

func shouldIgnoreEvent(event fsnotify.Event) bool {
	sep := string(filepath.Separator)
	if strings.Contains(event.Name, sep+".git"+sep) || strings.HasSuffix(event.Name, sep+".git") {
		return true
	}

	return event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0
}
