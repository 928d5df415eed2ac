package wdtag

import (
	"sort"
	"time"
)

// SkipReason explains why a discovered file was not processed.
type SkipReason int

const (
	ReasonNone SkipReason = iota
	ReasonMetadataUnsupported
	ReasonUnsupportedFormat
	ReasonRenameConflict
	ReasonRenameFailed
	ReasonDecodeFailed
	ReasonInferenceFailed
	ReasonWriteFailed
	ReasonDuplicate
	ReasonPanic
)

func (r SkipReason) String() string {
	switch r {
	case ReasonNone:
		return "processed"
	case ReasonMetadataUnsupported:
		return "BMP files do not support metadata"
	case ReasonUnsupportedFormat:
		return "unsupported format"
	case ReasonRenameConflict:
		return "a file with the corrected extension already exists"
	case ReasonRenameFailed:
		return "could not rename to the corrected extension"
	case ReasonDecodeFailed:
		return "could not decode image"
	case ReasonInferenceFailed:
		return "inference failed"
	case ReasonWriteFailed:
		return "could not write tags"
	case ReasonDuplicate:
		return "duplicate of an earlier image"
	default:
		return "unexpected error"
	}
}

// Code returns a stable machine-readable identifier for the reason.
func (r SkipReason) Code() string {
	switch r {
	case ReasonNone:
		return "processed"
	case ReasonMetadataUnsupported:
		return "metadata-unsupported"
	case ReasonUnsupportedFormat:
		return "unsupported-format"
	case ReasonRenameConflict:
		return "rename-conflict"
	case ReasonRenameFailed:
		return "rename-failed"
	case ReasonDecodeFailed:
		return "decode-failed"
	case ReasonInferenceFailed:
		return "inference-failed"
	case ReasonWriteFailed:
		return "write-failed"
	case ReasonDuplicate:
		return "duplicate"
	default:
		return "panic"
	}
}

// Outcome is the final state of one discovered file.
type Outcome struct {
	Name   string     // path relative to the scan root, slash separated
	Path   string     // absolute or root-joined path (after any rename)
	Reason SkipReason // ReasonNone when processed
	Err    error      // underlying cause for skips, if any
	Tags   []string   // selected tags, processed files only

	seq int
}

// Processed reports whether the file was tagged successfully.
func (o Outcome) Processed() bool { return o.Reason == ReasonNone }

// Summary is the run-level report, both lists in discovery order.
type Summary struct {
	Processed []Outcome
	Skipped   []Outcome
	Started   time.Time
	Finished  time.Time
}

func (s *Summary) ProcessedCount() int { return len(s.Processed) }
func (s *Summary) SkippedCount() int   { return len(s.Skipped) }

// ProcessedNames returns the names of processed files.
func (s *Summary) ProcessedNames() []string { return outcomeNames(s.Processed) }

// SkippedNames returns the names of skipped files.
func (s *Summary) SkippedNames() []string { return outcomeNames(s.Skipped) }

func (s *Summary) add(o Outcome) {
	if o.Processed() {
		s.Processed = append(s.Processed, o)
		return
	}
	s.Skipped = append(s.Skipped, o)
}

// sortBySeq restores discovery order after parallel processing.
func (s *Summary) sortBySeq() {
	sort.SliceStable(s.Processed, func(i, j int) bool { return s.Processed[i].seq < s.Processed[j].seq })
	sort.SliceStable(s.Skipped, func(i, j int) bool { return s.Skipped[i].seq < s.Skipped[j].seq })
}

func outcomeNames(list []Outcome) []string {
	names := make([]string, len(list))
	for i, o := range list {
		names[i] = o.Name
	}
	return names
}
