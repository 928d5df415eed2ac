package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"

	wdtag "github.com/anatolykoptev/go-wdtag"
)

//go:embed sample_config.toml
var sampleConfig string

// Tagger contains the per-run tagging knobs.
type Tagger struct {
	Recursive          bool    `toml:"recursive"`
	GeneralThreshold   float64 `toml:"general_threshold"`
	CharacterThreshold float64 `toml:"character_threshold"`
	HideRating         bool    `toml:"hide_rating"`
	CharacterFirst     bool    `toml:"character_first"`
	StripSeparator     bool    `toml:"strip_separator"`
	Overwrite          bool    `toml:"overwrite"`
	Output             string  `toml:"output"` // "Text File", "Metadata" or "Both"
	OutputDir          string  `toml:"output_dir"`
	Workers            int     `toml:"workers"`
	SkipDuplicates     bool    `toml:"skip_duplicates"`
	DuplicateThreshold int     `toml:"duplicate_threshold"`
}

// Model contains model acquisition and runtime settings.
type Model struct {
	Repo        string `toml:"repo"`
	Dir         string `toml:"dir"`
	Endpoint    string `toml:"endpoint"`
	Token       string `toml:"token"`
	LibraryPath string `toml:"library_path"` // onnxruntime shared library
	DisableCUDA bool   `toml:"disable_cuda"`
}

// Metadata selects the metadata backend.
type Metadata struct {
	Reader       string `toml:"reader"` // "exiftool" or "native"
	ExifToolPath string `toml:"exiftool_path"`
}

// Ledger contains run history settings.
type Ledger struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"` // "console" or "json"
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for wdtag.
type Config struct {
	Tagger   Tagger   `toml:"tagger"`
	Model    Model    `toml:"model"`
	Metadata Metadata `toml:"metadata"`
	Ledger   Ledger   `toml:"ledger"`
	Logging  Logging  `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/wdtag/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded. A missing file is not an error.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}
	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		if _, err := os.Stat(expanded); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}
	projectPath, err := filepath.Abs("wdtag.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}
	return defaultPath, false, nil
}

// Thresholds converts the tagger section to selection thresholds.
func (c *Config) Thresholds() wdtag.Thresholds {
	return wdtag.Thresholds{
		General:        c.Tagger.GeneralThreshold,
		Character:      c.Tagger.CharacterThreshold,
		HideRating:     c.Tagger.HideRating,
		CharacterFirst: c.Tagger.CharacterFirst,
		StripSeparator: c.Tagger.StripSeparator,
	}
}

// OutputMode returns the parsed output mode. Validate has already rejected
// unknown values.
func (c *Config) OutputMode() wdtag.OutputMode {
	mode, _ := wdtag.ParseOutputMode(c.Tagger.Output)
	return mode
}

// RunOptions builds the run options for dir from the tagger section.
func (c *Config) RunOptions(dir string) wdtag.RunOptions {
	return wdtag.RunOptions{
		Dir:            dir,
		Recursive:      c.Tagger.Recursive,
		Thresholds:     c.Thresholds(),
		Overwrite:      c.Tagger.Overwrite,
		Output:         c.OutputMode(),
		SkipDuplicates: c.Tagger.SkipDuplicates,
	}
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
