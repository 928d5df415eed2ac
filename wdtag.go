package wdtag

import (
	"context"
	"fmt"
	"strings"
)

// Defaults taken from the tagger's original control surface.
const (
	DefaultGeneralThreshold   = 0.35
	DefaultCharacterThreshold = 0.85
	DefaultOutputDir          = "captions"
	DefaultDuplicateThreshold = 10
)

// OutputMode selects where selected tags are recorded.
type OutputMode string

const (
	OutputText     OutputMode = "Text File"
	OutputMetadata OutputMode = "Metadata"
	OutputBoth     OutputMode = "Both"
)

// ParseOutputMode accepts the display names ("Text File", "Metadata", "Both")
// and their short lowercase forms ("text", "metadata", "both").
func ParseOutputMode(s string) (OutputMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "text file", "text", "txt":
		return OutputText, nil
	case "metadata", "meta":
		return OutputMetadata, nil
	case "both":
		return OutputBoth, nil
	default:
		return "", fmt.Errorf("unknown output mode %q", s)
	}
}

func (m OutputMode) writesText() bool     { return m == OutputText || m == OutputBoth }
func (m OutputMode) writesMetadata() bool { return m == OutputMetadata || m == OutputBoth }

// Engine runs the classifier on a preprocessed tensor and returns one score
// per label. Implementations used with Workers > 1 must be safe for
// concurrent use.
type Engine interface {
	InputSize() int
	Infer(ctx context.Context, t Tensor) ([]float32, error)
}

// Config holds all dependencies injected by the consumer.
type Config struct {
	Engine   Engine       // required
	Labels   *LabelSet    // required
	Metadata MetadataTool // required when the output mode embeds metadata

	OutputDir          string // sidecar root for text output (default: DefaultOutputDir)
	Workers            int    // files processed in parallel (default: 1)
	DuplicateThreshold int    // dHash distance below which images are duplicates (default: 10)

	// Optional callbacks for progress reporting and logging. With Workers > 1
	// they may be called from several goroutines at once.
	OnOutcome func(Outcome)
	OnPanic   func(path string, r any)
}

// RunOptions is the per-run configuration surface.
type RunOptions struct {
	Dir            string
	Recursive      bool
	Thresholds     Thresholds
	Overwrite      bool
	Output         OutputMode
	SkipDuplicates bool
}

// DefaultRunOptions returns options matching the original tagger defaults.
func DefaultRunOptions(dir string) RunOptions {
	return RunOptions{
		Dir: dir,
		Thresholds: Thresholds{
			General:    DefaultGeneralThreshold,
			Character:  DefaultCharacterThreshold,
			HideRating: true,
		},
		Output: OutputMetadata,
	}
}

// defaults fills zero-value fields with sensible defaults.
func (c *Config) defaults() {
	if c.OutputDir == "" {
		c.OutputDir = DefaultOutputDir
	}
	if c.Workers <= 0 {
		c.Workers = 1
	}
	if c.DuplicateThreshold <= 0 {
		c.DuplicateThreshold = DefaultDuplicateThreshold
	}
}

func (c *Config) check(opts RunOptions) error {
	if c.Engine == nil {
		return fmt.Errorf("wdtag: engine is required")
	}
	if c.Labels == nil || c.Labels.Len() == 0 {
		return ErrNoLabels
	}
	switch opts.Output {
	case OutputText, OutputMetadata, OutputBoth:
	default:
		return fmt.Errorf("wdtag: unknown output mode %q", opts.Output)
	}
	if opts.Output.writesMetadata() && c.Metadata == nil {
		return fmt.Errorf("wdtag: output mode %q needs a metadata tool", opts.Output)
	}
	return opts.Thresholds.Validate()
}
