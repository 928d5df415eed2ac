package wdtag

import (
	"context"
	"fmt"

	"github.com/barasher/go-exiftool"
)

// ExifTool is a MetadataTool backed by a long-running exiftool process.
// Keys are group-qualified ("IPTC:Keywords"). Writes replace the original
// file without keeping a backup copy.
type ExifTool struct {
	et *exiftool.Exiftool
}

// NewExifTool starts exiftool. binPath may be empty to use $PATH.
func NewExifTool(binPath string) (*ExifTool, error) {
	opts := []func(*exiftool.Exiftool) error{
		exiftool.PrintGroupNames("0"),
		exiftool.Charset("filename=utf8"),
	}
	if binPath != "" {
		opts = append(opts, exiftool.SetExiftoolBinaryPath(binPath))
	}
	et, err := exiftool.NewExiftool(opts...)
	if err != nil {
		return nil, fmt.Errorf("start exiftool: %w", err)
	}
	return &ExifTool{et: et}, nil
}

// Close stops the exiftool process.
func (e *ExifTool) Close() error {
	if e == nil || e.et == nil {
		return nil
	}
	return e.et.Close()
}

// ReadTags implements MetadataReader.
func (e *ExifTool) ReadTags(ctx context.Context, path string, fields []string) (map[string]TagValue, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	fms := e.et.ExtractMetadata(path)
	if len(fms) != 1 {
		return nil, fmt.Errorf("exiftool: no result for %s", path)
	}
	if fms[0].Err != nil {
		return nil, fmt.Errorf("exiftool read %s: %w", path, fms[0].Err)
	}
	out := make(map[string]TagValue, len(fields))
	for _, f := range fields {
		if v, ok := fms[0].Fields[f]; ok {
			out[f] = tagValueOf(v)
		}
	}
	return out, nil
}

// WriteTags implements MetadataWriter. An empty list clears the field.
func (e *ExifTool) WriteTags(ctx context.Context, path string, values map[string][]string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	fm := exiftool.EmptyFileMetadata()
	fm.File = path
	for field, tags := range values {
		if len(tags) == 0 {
			fm.Clear(field)
			continue
		}
		fm.SetStrings(field, tags)
	}
	fms := []exiftool.FileMetadata{fm}
	e.et.WriteMetadata(fms)
	if fms[0].Err != nil {
		return fmt.Errorf("exiftool write %s: %w", path, fms[0].Err)
	}
	return nil
}
