package wdtag

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Router records a file's tags as a sidecar caption, embedded metadata, or both.
type Router struct {
	Root           string // scan root; caption paths mirror positions below it
	OutputDir      string // caption root
	Mode           OutputMode
	StripSeparator bool
	Overwrite      bool
	Metadata       MetadataTool
}

// Write sends tags for the image at path to the configured destinations.
func (r *Router) Write(ctx context.Context, path string, tags []string) error {
	if r.StripSeparator {
		tags = StripSeparators(tags)
	}
	if r.Mode.writesText() {
		caption, err := r.CaptionPath(path)
		if err != nil {
			return err
		}
		if err := writeCaption(caption, tags); err != nil {
			return err
		}
	}
	if r.Mode.writesMetadata() {
		if err := r.embed(ctx, path, tags); err != nil {
			return err
		}
	}
	return nil
}

// CaptionPath maps root/sub/dir/name.ext to OutputDir/sub/dir/name.txt.
func (r *Router) CaptionPath(path string) (string, error) {
	rel, err := filepath.Rel(r.Root, path)
	if err != nil {
		return "", fmt.Errorf("caption path for %s: %w", path, err)
	}
	base := filepath.Base(rel)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(r.OutputDir, filepath.Dir(rel), stem+".txt"), nil
}

func writeCaption(path string, tags []string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create caption dir: %w", err)
	}
	if err := os.WriteFile(path, []byte(strings.Join(tags, ", ")), 0o644); err != nil {
		return fmt.Errorf("write caption: %w", err)
	}
	return nil
}

func (r *Router) embed(ctx context.Context, path string, tags []string) error {
	if r.Metadata == nil {
		return fmt.Errorf("no metadata tool configured")
	}
	existing, err := r.Metadata.ReadTags(ctx, path, TagFields)
	if err != nil {
		return fmt.Errorf("read existing tags: %w", err)
	}
	current := make([]TagValue, len(TagFields))
	for i, f := range TagFields {
		current[i] = existing[f]
	}
	final := MergeTags(tags, current, r.Overwrite)

	values := make(map[string][]string, len(TagFields))
	for _, f := range TagFields {
		values[f] = final
	}
	if err := r.Metadata.WriteTags(ctx, path, values); err != nil {
		return fmt.Errorf("write tags: %w", err)
	}
	return nil
}

// StripSeparators replaces underscores with spaces in every tag.
func StripSeparators(tags []string) []string {
	out := make([]string, len(tags))
	for i, t := range tags {
		out[i] = strings.ReplaceAll(t, "_", " ")
	}
	return out
}
