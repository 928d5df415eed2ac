// Package config loads, normalizes, and validates wdtag configuration.
//
// It supplies defaults matching the tagger's original control surface,
// expands user paths (including tilde shortcuts), reads TOML files, and
// honours the HF_TOKEN environment fallback for gated model repositories.
// Command-line flags are applied on top of the loaded values by the CLI.
package config
