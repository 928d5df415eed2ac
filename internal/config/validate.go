package config

import (
	"errors"
	"fmt"
	"strings"

	wdtag "github.com/anatolykoptev/go-wdtag"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateTagger(); err != nil {
		return err
	}
	if err := c.validateModel(); err != nil {
		return err
	}
	if err := c.validateMetadata(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateTagger() error {
	if c.Tagger.GeneralThreshold < 0 || c.Tagger.GeneralThreshold > 1 {
		return errors.New("tagger.general_threshold must be between 0 and 1")
	}
	if c.Tagger.CharacterThreshold < 0 || c.Tagger.CharacterThreshold > 1 {
		return errors.New("tagger.character_threshold must be between 0 and 1")
	}
	if _, err := wdtag.ParseOutputMode(c.Tagger.Output); err != nil {
		return fmt.Errorf("tagger.output must be %q, %q or %q", wdtag.OutputText, wdtag.OutputMetadata, wdtag.OutputBoth)
	}
	if c.Tagger.Workers > 64 {
		return errors.New("tagger.workers must be at most 64")
	}
	return nil
}

func (c *Config) validateModel() error {
	if c.Model.Repo == "" {
		return errors.New("model.repo must be set")
	}
	if !strings.Contains(c.Model.Repo, "/") {
		return fmt.Errorf("model.repo %q must look like owner/name", c.Model.Repo)
	}
	return nil
}

func (c *Config) validateMetadata() error {
	switch c.Metadata.Reader {
	case ReaderExifTool, ReaderNative:
		return nil
	default:
		return fmt.Errorf("metadata.reader must be %q or %q, got %q", ReaderExifTool, ReaderNative, c.Metadata.Reader)
	}
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn or error, got %q", c.Logging.Level)
	}
	return nil
}
