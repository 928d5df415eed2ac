package wdtag

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"os"
	"sync"
	"time"
)

// Run tags every image discovered under opts.Dir.
//
// Per-file stages:
//  1. Validate — extension/content check, rename to canonical extension
//  2. Decode, and optionally drop perceptual duplicates
//  3. Preprocess + Engine.Infer
//  4. SelectTags
//  5. Router.Write — caption file and/or embedded metadata
//
// A failure at any stage skips that file only. The returned error is non-nil
// when the configuration is unusable, when the scan root does not exist
// (ErrDirectoryNotFound), or when ctx is cancelled; in the last case the
// partial summary is returned alongside the error.
func (cfg *Config) Run(ctx context.Context, opts RunOptions) (*Summary, error) {
	cfg.defaults()
	if err := cfg.check(opts); err != nil {
		return nil, err
	}

	run := &runState{cfg: cfg, summary: &Summary{Started: time.Now()}}
	walk, err := Discover(opts.Dir, opts.Recursive, Validator{Output: opts.Output}, run.record)
	if err != nil {
		return nil, err
	}

	job := &fileJob{
		cfg:  cfg,
		walk: walk,
		opts: opts,
		router: &Router{
			Root:           opts.Dir,
			OutputDir:      cfg.OutputDir,
			Mode:           opts.Output,
			StripSeparator: opts.Thresholds.StripSeparator,
			Overwrite:      opts.Overwrite,
			Metadata:       cfg.Metadata,
		},
	}
	if opts.SkipDuplicates {
		job.dedup = newDedupFilter(cfg.DuplicateThreshold)
	}

	slog.Info("wdtag: run started", "dir", opts.Dir, "recursive", opts.Recursive,
		"output", string(opts.Output), "workers", cfg.Workers)

	if cfg.Workers == 1 {
		for path := range walk.Paths() {
			if ctx.Err() != nil {
				break
			}
			seq := run.reserve()
			run.record(job.process(ctx, path, seq))
		}
	} else {
		sem := make(chan struct{}, cfg.Workers)
		var wg sync.WaitGroup
		for path := range walk.Paths() {
			if ctx.Err() != nil {
				break
			}
			seq := run.reserve()
			sem <- struct{}{}
			wg.Add(1)
			go func() {
				defer wg.Done()
				defer func() { <-sem }()
				run.record(job.process(ctx, path, seq))
			}()
		}
		wg.Wait()
	}

	summary := run.finish()
	slog.Info("wdtag: run finished", "processed", summary.ProcessedCount(),
		"skipped", summary.SkippedCount(), "elapsed", summary.Finished.Sub(summary.Started))
	if err := ctx.Err(); err != nil {
		return summary, err
	}
	return summary, nil
}

// runState accumulates outcomes from the walk and from workers.
type runState struct {
	cfg *Config

	mu      sync.Mutex
	seq     int
	summary *Summary
}

func (r *runState) reserve() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	return r.seq
}

// record stores an outcome. Validation skips arrive without a sequence
// number and take the next one, which keeps them in discovery order.
func (r *runState) record(o Outcome) {
	r.mu.Lock()
	if o.seq == 0 {
		r.seq++
		o.seq = r.seq
	}
	r.summary.add(o)
	r.mu.Unlock()

	if o.Processed() {
		slog.Debug("wdtag: processed", "name", o.Name, "tags", len(o.Tags))
	} else {
		slog.Warn("wdtag: skipped", "name", o.Name, "reason", o.Reason.String(), "error", errString(o.Err))
	}
	if r.cfg.OnOutcome != nil {
		r.cfg.OnOutcome(o)
	}
}

func (r *runState) finish() *Summary {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.summary.sortBySeq()
	r.summary.Finished = time.Now()
	return r.summary
}

// fileJob carries one file through decode, inference, selection, and output.
type fileJob struct {
	cfg    *Config
	walk   *Walk
	opts   RunOptions
	router *Router
	dedup  *dedupFilter
}

// process never returns an error; every failure becomes a skipped Outcome.
// Recovers from panics so one bad file cannot take down the run.
func (j *fileJob) process(ctx context.Context, path string, seq int) (out Outcome) {
	out = Outcome{Name: j.walk.Name(path), Path: path, seq: seq}
	skip := func(reason SkipReason, err error) Outcome {
		out.Reason, out.Err = reason, err
		return out
	}
	defer func() {
		if r := recover(); r != nil {
			if j.cfg.OnPanic != nil {
				j.cfg.OnPanic(path, r)
			}
			out = skip(ReasonPanic, fmt.Errorf("panic: %v", r))
		}
	}()

	img, err := decodeImage(path)
	if err != nil {
		return skip(ReasonDecodeFailed, err)
	}
	if j.dedup != nil && j.dedup.isDuplicate(img) {
		return skip(ReasonDuplicate, nil)
	}

	tensor := Preprocess(img, j.cfg.Engine.InputSize())
	scores, err := j.cfg.Engine.Infer(ctx, tensor)
	if err != nil {
		return skip(ReasonInferenceFailed, err)
	}
	if err := j.cfg.Labels.checkScores(scores); err != nil {
		return skip(ReasonInferenceFailed, err)
	}

	tags := SelectTags(scores, j.cfg.Labels, j.opts.Thresholds)
	if err := j.router.Write(ctx, path, tags); err != nil {
		return skip(ReasonWriteFailed, err)
	}
	out.Tags = tags
	return out
}

func decodeImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return img, nil
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
