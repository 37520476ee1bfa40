package project

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/opencode-ai/lace/pkg/types"
)

func TestReadConfigFileMissing(t *testing.T) {
	if _, ok := readConfigFile(filepath.Join(t.TempDir(), "config.json")); ok {
		t.Error("expected ok=false for a missing config file")
	}
}

func TestReadConfigFileJSONC(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.jsonc")
	contents := `{
  // default model for this project
  "modelId": "claude-sonnet-4-20250514", /* inline note */
  "maxTokens": 4096
}`
	if err := os.WriteFile(path, []byte(contents), 0644); err != nil {
		t.Fatal(err)
	}

	layer, ok := readConfigFile(path)
	if !ok {
		t.Fatal("expected ok=true for a parseable jsonc file")
	}
	if layer.ModelID != "claude-sonnet-4-20250514" {
		t.Errorf("ModelID = %q, want claude-sonnet-4-20250514", layer.ModelID)
	}
	if layer.MaxTokens != 4096 {
		t.Errorf("MaxTokens = %d, want 4096", layer.MaxTokens)
	}
}

func TestLoadLayerConfigProjectOverridesGlobal(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("LACE_MODEL", "")
	t.Setenv("LACE_ROLE", "")

	worktree := t.TempDir()
	if err := SaveProjectConfig(worktree, types.LayerConfig{ModelID: "anthropic/claude-sonnet-4-20250514"}); err != nil {
		t.Fatal(err)
	}

	cfg := loadLayerConfig(worktree)
	if cfg.ModelID != "anthropic/claude-sonnet-4-20250514" {
		t.Errorf("ModelID = %q, want the project-local override", cfg.ModelID)
	}
}

func TestLoadLayerConfigEnvOverridesFile(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("LACE_MODEL", "openai/gpt-4o")

	worktree := t.TempDir()
	if err := SaveProjectConfig(worktree, types.LayerConfig{ModelID: "anthropic/claude-sonnet-4-20250514"}); err != nil {
		t.Fatal(err)
	}

	cfg := loadLayerConfig(worktree)
	if cfg.ModelID != "openai/gpt-4o" {
		t.Errorf("ModelID = %q, want env override to win over the project file", cfg.ModelID)
	}
}
