package engine

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// SettingsFilename is the optional per-project tool settings file. It
// configures the tool, not the build: apart from excludes, which change
// what content resolution sees, nothing in it reaches a revision or
// build key.
const SettingsFilename = ".loom.yaml"

// Settings are tool-level knobs read from .loom.yaml.
type Settings struct {
	// WorkDir is where the engine keeps its cache database and build
	// output. Default: <project>/.loom
	WorkDir string `yaml:"workdir"`

	// Workers bounds the platform fan-out pool. Zero means one worker
	// per platform.
	Workers int `yaml:"workers"`

	// Excludes are extra tree-hash exclude patterns for resolution.
	Excludes []string `yaml:"excludes"`

	// NoCache disables the build result cache.
	NoCache bool `yaml:"no_cache"`
}

// LoadSettings reads .loom.yaml from dir. A missing file yields zero-value
// settings; a malformed file is an error.
func LoadSettings(dir string) (Settings, error) {
	var s Settings
	data, err := os.ReadFile(filepath.Join(dir, SettingsFilename))
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return s, fmt.Errorf("reading %s: %w", SettingsFilename, err)
	}
	if err := yaml.Unmarshal(data, &s); err != nil {
		return s, fmt.Errorf("parsing %s: %w", SettingsFilename, err)
	}
	return s, nil
}

// workDir resolves the effective work directory for a project.
func (s Settings) workDir(projectDir string) string {
	if s.WorkDir != "" {
		if filepath.IsAbs(s.WorkDir) {
			return s.WorkDir
		}
		return filepath.Join(projectDir, s.WorkDir)
	}
	return filepath.Join(projectDir, ".loom")
}
