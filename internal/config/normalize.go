package config

import (
	"fmt"
	"os"
	"strings"

	wdtag "github.com/anatolykoptev/go-wdtag"
)

func (c *Config) normalize() error {
	if err := c.normalizeTagger(); err != nil {
		return err
	}
	if err := c.normalizeModel(); err != nil {
		return err
	}
	if err := c.normalizeMetadata(); err != nil {
		return err
	}
	if err := c.normalizeLedger(); err != nil {
		return err
	}
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizeTagger() error {
	if mode, err := wdtag.ParseOutputMode(c.Tagger.Output); err == nil {
		c.Tagger.Output = string(mode)
	}
	if strings.TrimSpace(c.Tagger.OutputDir) == "" {
		c.Tagger.OutputDir = defaultOutputDir
	}
	var err error
	if c.Tagger.OutputDir, err = expandPath(c.Tagger.OutputDir); err != nil {
		return fmt.Errorf("tagger.output_dir: %w", err)
	}
	if c.Tagger.Workers <= 0 {
		c.Tagger.Workers = defaultWorkers
	}
	if c.Tagger.DuplicateThreshold <= 0 {
		c.Tagger.DuplicateThreshold = defaultDuplicateThreshold
	}
	return nil
}

func (c *Config) normalizeModel() error {
	c.Model.Repo = strings.Trim(strings.TrimSpace(c.Model.Repo), "/")
	if strings.TrimSpace(c.Model.Dir) == "" {
		c.Model.Dir = defaultModelDir
	}
	var err error
	if c.Model.Dir, err = expandPath(c.Model.Dir); err != nil {
		return fmt.Errorf("model.dir: %w", err)
	}
	if c.Model.LibraryPath, err = expandPath(strings.TrimSpace(c.Model.LibraryPath)); err != nil {
		return fmt.Errorf("model.library_path: %w", err)
	}
	c.Model.Endpoint = strings.TrimRight(strings.TrimSpace(c.Model.Endpoint), "/")
	if c.Model.Token == "" {
		if value, ok := os.LookupEnv("HF_TOKEN"); ok {
			c.Model.Token = value
		}
	}
	return nil
}

func (c *Config) normalizeMetadata() error {
	c.Metadata.Reader = strings.ToLower(strings.TrimSpace(c.Metadata.Reader))
	if c.Metadata.Reader == "" {
		c.Metadata.Reader = defaultMetadataReader
	}
	path := strings.TrimSpace(c.Metadata.ExifToolPath)
	if path == "" || !strings.ContainsAny(path, `/\~`) {
		// A bare command name is resolved through $PATH by exiftool itself.
		c.Metadata.ExifToolPath = path
		return nil
	}
	var err error
	if c.Metadata.ExifToolPath, err = expandPath(path); err != nil {
		return fmt.Errorf("metadata.exiftool_path: %w", err)
	}
	return nil
}

func (c *Config) normalizeLedger() error {
	if strings.TrimSpace(c.Ledger.Path) == "" {
		c.Ledger.Path = defaultLedgerPath
	}
	var err error
	if c.Ledger.Path, err = expandPath(c.Ledger.Path); err != nil {
		return fmt.Errorf("ledger.path: %w", err)
	}
	return nil
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
