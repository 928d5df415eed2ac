package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	wdtag "github.com/anatolykoptev/go-wdtag"
	"github.com/anatolykoptev/go-wdtag/hub"
	"github.com/anatolykoptev/go-wdtag/internal/config"
	"github.com/anatolykoptev/go-wdtag/internal/ledger"
	"github.com/anatolykoptev/go-wdtag/internal/runlock"
	"github.com/anatolykoptev/go-wdtag/onnx"
)

// engine is a wdtag.Engine that holds native resources.
type engine interface {
	wdtag.Engine
	io.Closer
}

// engineFactory opens the inference engine for a model file.
type engineFactory func(cfg *config.Config, modelPath string) (engine, error)

func openONNX(cfg *config.Config, modelPath string) (engine, error) {
	return onnx.New(onnx.Options{
		LibraryPath: cfg.Model.LibraryPath,
		ModelPath:   modelPath,
		DisableCUDA: cfg.Model.DisableCUDA,
	})
}

type tagFlags struct {
	recursive      bool
	general        float64
	character      float64
	showRating     bool
	characterFirst bool
	stripSep       bool
	overwrite      bool
	output         string
	outputDir      string
	workers        int
	skipDuplicates bool
	modelPath      string
	labelsPath     string
	noLedger       bool
	verbose        bool
}

func newTagCommand(ctx *commandContext) *cobra.Command {
	var flags tagFlags

	cmd := &cobra.Command{
		Use:   "tag DIR",
		Short: "Tag every image in DIR",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if err := flags.apply(cmd.Flags(), cfg); err != nil {
				return err
			}
			dir, err := config.ExpandPath(args[0])
			if err != nil {
				return err
			}
			factory := ctx.engineFactory
			if factory == nil {
				factory = openONNX
			}
			return runTag(cmd, cfg, dir, flags, factory)
		},
	}

	f := cmd.Flags()
	f.BoolVarP(&flags.recursive, "recursive", "r", false, "Descend into subdirectories")
	f.Float64Var(&flags.general, "general", wdtag.DefaultGeneralThreshold, "General tag threshold (0-1)")
	f.Float64Var(&flags.character, "character", wdtag.DefaultCharacterThreshold, "Character tag threshold (0-1)")
	f.BoolVar(&flags.showRating, "show-rating", false, "Append rating tags")
	f.BoolVar(&flags.characterFirst, "character-first", false, "Put character tags before general tags")
	f.BoolVar(&flags.stripSep, "strip-separator", false, "Replace underscores with spaces")
	f.BoolVar(&flags.overwrite, "overwrite", false, "Replace existing metadata tags instead of merging")
	f.StringVarP(&flags.output, "output", "o", "", `Output mode: "Text File", "Metadata" or "Both"`)
	f.StringVar(&flags.outputDir, "output-dir", "", "Caption root for text output")
	f.IntVarP(&flags.workers, "workers", "j", 0, "Files processed in parallel")
	f.BoolVar(&flags.skipDuplicates, "skip-duplicates", false, "Skip perceptual duplicates within the run")
	f.StringVar(&flags.modelPath, "model", "", "Path to model.onnx (skips download)")
	f.StringVar(&flags.labelsPath, "labels", "", "Path to selected_tags.csv (skips download)")
	f.BoolVar(&flags.noLedger, "no-ledger", false, "Do not record this run in the ledger")
	f.BoolVarP(&flags.verbose, "verbose", "v", false, "List processed files and their tags in the summary")
	return cmd
}

// apply overrides configuration values with the flags the user set.
func (f tagFlags) apply(fs *pflag.FlagSet, cfg *config.Config) error {
	t := &cfg.Tagger
	if fs.Changed("recursive") {
		t.Recursive = f.recursive
	}
	if fs.Changed("general") {
		t.GeneralThreshold = f.general
	}
	if fs.Changed("character") {
		t.CharacterThreshold = f.character
	}
	if fs.Changed("show-rating") {
		t.HideRating = !f.showRating
	}
	if fs.Changed("character-first") {
		t.CharacterFirst = f.characterFirst
	}
	if fs.Changed("strip-separator") {
		t.StripSeparator = f.stripSep
	}
	if fs.Changed("overwrite") {
		t.Overwrite = f.overwrite
	}
	if fs.Changed("output") {
		mode, err := wdtag.ParseOutputMode(f.output)
		if err != nil {
			return err
		}
		t.Output = string(mode)
	}
	if fs.Changed("output-dir") {
		dir, err := config.ExpandPath(f.outputDir)
		if err != nil {
			return fmt.Errorf("output dir: %w", err)
		}
		t.OutputDir = dir
	}
	if fs.Changed("workers") && f.workers > 0 {
		t.Workers = f.workers
	}
	if fs.Changed("skip-duplicates") {
		t.SkipDuplicates = f.skipDuplicates
	}
	if fs.Changed("no-ledger") && f.noLedger {
		cfg.Ledger.Enabled = false
	}
	return nil
}

func runTag(cmd *cobra.Command, cfg *config.Config, dir string, flags tagFlags, openEngine engineFactory) error {
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return fmt.Errorf("%w: %s", wdtag.ErrDirectoryNotFound, dir)
	}

	runID := uuid.NewString()
	logger := newLogger(cmd.ErrOrStderr(), cfg.Logging.Format, cfg.Logging.Level).With("run_id", runID)
	prev := slog.Default()
	slog.SetDefault(logger)
	defer slog.SetDefault(prev)

	lock, err := runlock.Acquire(lockDir(cfg), dir)
	if err != nil {
		return err
	}
	defer lock.Release()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	modelPath, labelsPath, err := resolveModel(ctx, cfg, flags)
	if err != nil {
		return err
	}
	labels, err := wdtag.LoadLabelsFile(labelsPath)
	if err != nil {
		return err
	}
	eng, err := openEngine(cfg, modelPath)
	if err != nil {
		return fmt.Errorf("load model: %w", err)
	}
	defer eng.Close()

	opts := cfg.RunOptions(dir)
	tagger := &wdtag.Config{
		Engine:             eng,
		Labels:             labels,
		OutputDir:          cfg.Tagger.OutputDir,
		Workers:            cfg.Tagger.Workers,
		DuplicateThreshold: cfg.Tagger.DuplicateThreshold,
		OnPanic: func(path string, r any) {
			slog.Error("wdtag: panic while processing", "path", path, "panic", fmt.Sprint(r))
		},
	}

	if opts.Output != wdtag.OutputText {
		tool, closeTool, err := openMetadataTool(cfg)
		if err != nil {
			return err
		}
		defer closeTool()
		tagger.Metadata = tool
	}

	var runLedger *ledger.Ledger
	if cfg.Ledger.Enabled {
		runLedger, err = ledger.Open(cfg.Ledger.Path)
		if err != nil {
			return err
		}
		defer runLedger.Close()
		run := ledger.Run{ID: runID, Dir: dir, Output: opts.Output, Recursive: opts.Recursive}
		if err := runLedger.BeginRun(ctx, run); err != nil {
			return err
		}
		tagger.OnOutcome = func(o wdtag.Outcome) {
			if err := runLedger.Record(context.WithoutCancel(ctx), runID, o); err != nil {
				slog.Warn("wdtag: ledger record failed", "name", o.Name, "error", err.Error())
			}
		}
	}

	summary, runErr := tagger.Run(ctx, opts)
	if runLedger != nil {
		if err := runLedger.FinishRun(context.WithoutCancel(ctx), runID, summary, runErr); err != nil {
			slog.Warn("wdtag: ledger finish failed", "error", err.Error())
		}
	}
	if summary != nil {
		out := cmd.OutOrStdout()
		fmt.Fprintln(out, renderSummary(summary, runID, flags.verbose, shouldColorize(out)))
	}
	return runErr
}

// lockDir keeps run locks beside the ledger database.
func lockDir(cfg *config.Config) string {
	return filepath.Join(filepath.Dir(cfg.Ledger.Path), "locks")
}

// resolveModel returns explicit --model/--labels paths, falling back to the
// model cache and downloading whatever is missing.
func resolveModel(ctx context.Context, cfg *config.Config, flags tagFlags) (modelPath, labelsPath string, err error) {
	modelPath, labelsPath = strings.TrimSpace(flags.modelPath), strings.TrimSpace(flags.labelsPath)
	if modelPath != "" && labelsPath != "" {
		return modelPath, labelsPath, nil
	}
	fetcher := newFetcher(cfg)
	if labelsPath == "" {
		if labelsPath, err = fetcher.Fetch(ctx, cfg.Model.Repo, hub.LabelFile); err != nil {
			return "", "", err
		}
	}
	if modelPath == "" {
		if modelPath, err = fetcher.Fetch(ctx, cfg.Model.Repo, hub.ModelFile); err != nil {
			return "", "", err
		}
	}
	return modelPath, labelsPath, nil
}

// openMetadataTool starts exiftool and, for the native reader, pairs the
// in-process reader with the exiftool writer.
func openMetadataTool(cfg *config.Config) (wdtag.MetadataTool, func(), error) {
	et, err := wdtag.NewExifTool(cfg.Metadata.ExifToolPath)
	if err != nil {
		return nil, nil, err
	}
	closeTool := func() {
		if err := et.Close(); err != nil {
			slog.Warn("wdtag: exiftool close failed", "error", err.Error())
		}
	}
	if cfg.Metadata.Reader == config.ReaderNative {
		return wdtag.MetadataStore{Reader: wdtag.NativeReader{}, Writer: et}, closeTool, nil
	}
	return et, closeTool, nil
}

func renderSummary(s *wdtag.Summary, runID string, verbose, colorize bool) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Run %s: %d processed, %d skipped in %s\n",
		runID, s.ProcessedCount(), s.SkippedCount(), s.Finished.Sub(s.Started).Round(time.Millisecond))
	if verbose && len(s.Processed) > 0 {
		rows := make([][]string, 0, len(s.Processed))
		for _, o := range s.Processed {
			rows = append(rows, []string{o.Name, strings.Join(o.Tags, ", ")})
		}
		b.WriteString(renderTable([]string{"Processed", "Tags"}, rows, nil, colorize))
		b.WriteString("\n")
	}
	if len(s.Skipped) > 0 {
		rows := make([][]string, 0, len(s.Skipped))
		for _, o := range s.Skipped {
			detail := ""
			if o.Err != nil {
				detail = o.Err.Error()
			}
			rows = append(rows, []string{o.Name, o.Reason.String(), detail})
		}
		b.WriteString(renderTable([]string{"Skipped", "Reason", "Detail"}, rows, nil, colorize))
	}
	return strings.TrimRight(b.String(), "\n")
}
