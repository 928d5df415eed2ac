package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	wdtag "github.com/anatolykoptev/go-wdtag"
	"github.com/anatolykoptev/go-wdtag/internal/config"
)

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv("HF_TOKEN", "hf-test")
	t.Chdir(t.TempDir())

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}
	if want := filepath.Join(tempHome, ".config", "wdtag", "config.toml"); resolved != want {
		t.Fatalf("resolved = %q, want %q", resolved, want)
	}
	if want := filepath.Join(tempHome, ".cache", "wdtag", "models"); cfg.Model.Dir != want {
		t.Fatalf("model dir = %q, want %q", cfg.Model.Dir, want)
	}
	if want := filepath.Join(tempHome, ".local", "share", "wdtag", "ledger.db"); cfg.Ledger.Path != want {
		t.Fatalf("ledger path = %q, want %q", cfg.Ledger.Path, want)
	}
	if !filepath.IsAbs(cfg.Tagger.OutputDir) || filepath.Base(cfg.Tagger.OutputDir) != "captions" {
		t.Fatalf("output dir = %q, want absolute captions dir", cfg.Tagger.OutputDir)
	}
	if cfg.Model.Token != "hf-test" {
		t.Fatalf("expected token from HF_TOKEN, got %q", cfg.Model.Token)
	}
	if cfg.Tagger.GeneralThreshold != 0.35 || cfg.Tagger.CharacterThreshold != 0.85 {
		t.Fatalf("unexpected thresholds: %+v", cfg.Tagger)
	}
	if !cfg.Tagger.HideRating {
		t.Fatal("expected hide_rating on by default")
	}
	if cfg.OutputMode() != wdtag.OutputMetadata {
		t.Fatalf("output mode = %q, want Metadata", cfg.OutputMode())
	}
}

func TestLoadCustomConfig(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("HOME", dir)

	path := filepath.Join(dir, "wdtag.toml")
	content := `
[tagger]
recursive = true
general_threshold = 0.5
hide_rating = false
output = "both"
output_dir = "~/tags"
workers = 4

[metadata]
reader = "Native"

[logging]
format = "JSON"
level = "DEBUG"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != path {
		t.Fatalf("resolved = %q exists = %v", resolved, exists)
	}
	if cfg.Tagger.Output != string(wdtag.OutputBoth) {
		t.Fatalf("output = %q, want canonical Both", cfg.Tagger.Output)
	}
	if cfg.Tagger.OutputDir != filepath.Join(dir, "tags") {
		t.Fatalf("output dir = %q", cfg.Tagger.OutputDir)
	}
	if cfg.Metadata.Reader != config.ReaderNative {
		t.Fatalf("reader = %q", cfg.Metadata.Reader)
	}
	if cfg.Logging.Format != "json" || cfg.Logging.Level != "debug" {
		t.Fatalf("logging = %+v", cfg.Logging)
	}
	// Unset keys keep their defaults.
	if cfg.Tagger.CharacterThreshold != 0.85 {
		t.Fatalf("character threshold = %v, want default", cfg.Tagger.CharacterThreshold)
	}

	opts := cfg.RunOptions("/images")
	if opts.Dir != "/images" || !opts.Recursive || opts.Output != wdtag.OutputBoth {
		t.Fatalf("RunOptions = %+v", opts)
	}
	if opts.Thresholds.General != 0.5 || opts.Thresholds.HideRating {
		t.Fatalf("thresholds = %+v", opts.Thresholds)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("HOME", dir)

	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{name: "threshold", content: "[tagger]\ngeneral_threshold = 1.5\n", wantErr: "general_threshold"},
		{name: "output", content: "[tagger]\noutput = \"sidecar\"\n", wantErr: "tagger.output"},
		{name: "reader", content: "[metadata]\nreader = \"magic\"\n", wantErr: "metadata.reader"},
		{name: "repo", content: "[model]\nrepo = \"noslash\"\n", wantErr: "model.repo"},
		{name: "log level", content: "[logging]\nlevel = \"loud\"\n", wantErr: "logging.level"},
		{name: "syntax", content: "[tagger\n", wantErr: "parse config"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(dir, tc.name+".toml")
			if err := os.WriteFile(path, []byte(tc.content), 0o644); err != nil {
				t.Fatalf("write config: %v", err)
			}
			_, _, _, err := config.Load(path)
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("err = %v, want containing %q", err, tc.wantErr)
			}
		})
	}
}

func TestSampleConfigParses(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("HOME", dir)

	path := filepath.Join(dir, "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	var raw map[string]any
	if err := toml.Unmarshal(data, &raw); err != nil {
		t.Fatalf("sample is not valid TOML: %v", err)
	}

	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load(sample): %v", err)
	}
	if !exists {
		t.Fatal("expected sample to exist")
	}
	def := config.Default()
	if cfg.Tagger.GeneralThreshold != def.Tagger.GeneralThreshold || cfg.Model.Repo != def.Model.Repo {
		t.Fatalf("sample diverges from defaults: %+v", cfg)
	}
}

func TestExpandPath(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	got, err := config.ExpandPath("~/models")
	if err != nil {
		t.Fatalf("ExpandPath: %v", err)
	}
	if got != filepath.Join(home, "models") {
		t.Fatalf("ExpandPath = %q", got)
	}
	if got, _ := config.ExpandPath(""); got != "" {
		t.Fatalf("ExpandPath(\"\") = %q", got)
	}
}
