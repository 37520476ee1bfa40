package project

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"

	"github.com/opencode-ai/lace/pkg/types"
)

// configFileNames are tried in order, first match per layer wins.
var configFileNames = []string{"config.json", "config.jsonc"}

// globalConfigDir returns the user-global Lace config directory, honoring
// XDG_CONFIG_HOME like the rest of the ecosystem.
func globalConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "lace")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "lace")
}

// projectConfigPath returns the project-local config file Lace reads and
// watches for a given worktree, preferring config.json over config.jsonc
// when both exist.
func projectConfigPath(worktree string) string {
	dir := filepath.Join(worktree, ".lace")
	for _, name := range configFileNames {
		p := filepath.Join(dir, name)
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return filepath.Join(dir, configFileNames[0])
}

// loadLayerConfig builds a project's base LayerConfig by merging the
// global config, the project-local config, and environment overrides, in
// that priority order (later layers win), mirroring the global -> project
// -> env precedence the rest of the ecosystem uses for its own config
// file. Missing files are not an error - an absent config layer simply
// contributes nothing.
func loadLayerConfig(worktree string) types.LayerConfig {
	var cfg types.LayerConfig

	if dir := globalConfigDir(); dir != "" {
		for _, name := range configFileNames {
			if layer, ok := readConfigFile(filepath.Join(dir, name)); ok {
				cfg = types.MergeLayerConfig(cfg, layer)
				break
			}
		}
	}

	for _, name := range configFileNames {
		if layer, ok := readConfigFile(filepath.Join(worktree, ".lace", name)); ok {
			cfg = types.MergeLayerConfig(cfg, layer)
			break
		}
	}

	cfg = types.MergeLayerConfig(cfg, envOverrides())
	return cfg
}

// readConfigFile reads and parses a single JSON/JSONC config file. The
// second return value is false when the file does not exist or cannot be
// parsed, in which case the caller should simply skip that layer.
func readConfigFile(path string) (types.LayerConfig, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return types.LayerConfig{}, false
	}

	data = stripJSONComments(data)

	var layer types.LayerConfig
	if err := json.Unmarshal(data, &layer); err != nil {
		return types.LayerConfig{}, false
	}
	return layer, true
}

var (
	singleLineComment = regexp.MustCompile(`//.*$`)
	multiLineComment  = regexp.MustCompile(`/\*[\s\S]*?\*/`)
)

// stripJSONComments removes // and /* */ comments so config.jsonc files
// can be parsed with encoding/json.
func stripJSONComments(data []byte) []byte {
	lines := bytes.Split(data, []byte("\n"))
	for i, line := range lines {
		lines[i] = singleLineComment.ReplaceAll(line, nil)
	}
	data = bytes.Join(lines, []byte("\n"))
	return multiLineComment.ReplaceAll(data, nil)
}

// envOverrides applies the small set of environment variables Lace lets
// operators set without touching a config file.
func envOverrides() types.LayerConfig {
	var cfg types.LayerConfig
	if model := os.Getenv("LACE_MODEL"); model != "" {
		cfg.ModelID = model
	}
	if role := os.Getenv("LACE_ROLE"); role != "" {
		cfg.Role = role
	}
	return cfg
}

// SaveProjectConfig writes a project's local config layer to
// <worktree>/.lace/config.json, creating the directory if needed. It is
// the write-side counterpart to loadLayerConfig's project layer.
func SaveProjectConfig(worktree string, cfg types.LayerConfig) error {
	dir := filepath.Join(worktree, ".lace")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(filepath.Join(dir, "config.json"), data, 0644)
}
