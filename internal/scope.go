package internal

import (
	"os"
	"path/filepath"
)

type ScopeType string

const (
	ScopeGlobal  ScopeType = "global"
	ScopeProject ScopeType = "project"
)

const scopeDirName = ".daily"

type Scope struct {
	Type     ScopeType
	Path     string // working directory root
	DailyDir string // .daily directory path
}

func (s Scope) ConfigPath() string {
	return filepath.Join(s.DailyDir, "config.yaml")
}

// PromptsPath is where prompt template overrides live unless the config
// names another directory.
func (s Scope) PromptsPath() string {
	return filepath.Join(s.DailyDir, "prompts")
}

type ScopeResolver struct {
	homeDir string
	workDir string
}

func NewScopeResolver() *ScopeResolver {
	home, _ := os.UserHomeDir()
	cwd, _ := os.Getwd()
	return &ScopeResolver{homeDir: home, workDir: cwd}
}

// NewScopeResolverAt resolves scopes relative to explicit directories.
func NewScopeResolverAt(homeDir, workDir string) *ScopeResolver {
	return &ScopeResolver{homeDir: homeDir, workDir: workDir}
}

func (r *ScopeResolver) Global() Scope {
	return Scope{
		Type:     ScopeGlobal,
		Path:     r.homeDir,
		DailyDir: filepath.Join(r.homeDir, scopeDirName),
	}
}

// Project finds the nearest .daily directory at or above the working directory.
func (r *ScopeResolver) Project() (Scope, bool) {
	if r.workDir == "" {
		return Scope{}, false
	}
	dir := r.workDir
	for {
		dailyDir := filepath.Join(dir, scopeDirName)
		info, err := os.Stat(dailyDir)
		if err == nil && info.IsDir() && dailyDir != r.Global().DailyDir {
			return Scope{Type: ScopeProject, Path: dir, DailyDir: dailyDir}, true
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return Scope{}, false
		}
		dir = parent
	}
}

// ProjectAt returns the project scope rooted at the working directory,
// whether or not it exists yet.
func (r *ScopeResolver) ProjectAt() Scope {
	return Scope{
		Type:     ScopeProject,
		Path:     r.workDir,
		DailyDir: filepath.Join(r.workDir, scopeDirName),
	}
}

func (r *ScopeResolver) Resolve(explicit string) Scope {
	if explicit == string(ScopeGlobal) {
		return r.Global()
	}
	if scope, ok := r.Project(); ok {
		return scope
	}
	return r.Global()
}

func (r *ScopeResolver) Cascade() []Scope {
	scopes := []Scope{}
	if scope, ok := r.Project(); ok {
		scopes = append(scopes, scope)
	}
	scopes = append(scopes, r.Global())
	return scopes
}

// EnvVars is the environment handed to external daily-* commands.
func (r *ScopeResolver) EnvVars(scope Scope, version string) map[string]string {
	bin, _ := os.Executable()
	return map[string]string{
		"DAILY_SCOPE":      string(scope.Type),
		"DAILY_SCOPE_PATH": scope.DailyDir,
		"DAILY_ROOT":       scope.Path,
		"DAILY_CONFIG":     scope.ConfigPath(),
		"DAILY_VERSION":    version,
		"DAILY_BIN":        bin,
	}
}
