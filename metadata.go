package wdtag

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"os"
	"strings"

	"github.com/bep/imagemeta"
)

// MetadataReader reads tag fields ("GROUP:Tag" keys) from an image file.
type MetadataReader interface {
	ReadTags(ctx context.Context, path string, fields []string) (map[string]TagValue, error)
}

// MetadataWriter replaces tag fields in an image file in place.
type MetadataWriter interface {
	WriteTags(ctx context.Context, path string, values map[string][]string) error
}

// MetadataTool is the read/write metadata collaborator used in metadata mode.
type MetadataTool interface {
	MetadataReader
	MetadataWriter
}

// MetadataStore combines a reader and a writer into a MetadataTool, so a
// pure-Go reader can be paired with an external writer.
type MetadataStore struct {
	Reader MetadataReader
	Writer MetadataWriter
}

func (s MetadataStore) ReadTags(ctx context.Context, path string, fields []string) (map[string]TagValue, error) {
	if s.Reader == nil {
		return nil, errors.New("wdtag: metadata store has no reader")
	}
	return s.Reader.ReadTags(ctx, path, fields)
}

func (s MetadataStore) WriteTags(ctx context.Context, path string, values map[string][]string) error {
	if s.Writer == nil {
		return errors.New("wdtag: metadata store has no writer")
	}
	return s.Writer.WriteTags(ctx, path, values)
}

// metaSources maps the group prefix of a field key to an imagemeta source.
var metaSources = map[string]imagemeta.Source{
	"IPTC": imagemeta.IPTC,
	"XMP":  imagemeta.XMP,
	"EXIF": imagemeta.EXIF,
}

// nativeFormats maps decoder format names to the formats imagemeta parses.
// GIF and BMP are absent: they carry no IPTC/XMP tags imagemeta can read.
var nativeFormats = map[string]imagemeta.ImageFormat{
	"jpeg": imagemeta.JPEG,
	"png":  imagemeta.PNG,
	"webp": imagemeta.WebP,
}

// NativeReader reads IPTC/XMP/EXIF fields in-process with imagemeta. Formats
// imagemeta cannot parse (GIF, BMP) read as having no existing tags; a parse
// failure on any other format is returned, so a merge never proceeds on
// tags it could not see.
type NativeReader struct{}

type fieldKey struct {
	source imagemeta.Source
	tag    string
}

// ReadTags implements MetadataReader.
func (NativeReader) ReadTags(ctx context.Context, path string, fields []string) (map[string]TagValue, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	wanted := make(map[fieldKey]string, len(fields))
	var sources imagemeta.Source
	for _, f := range fields {
		group, tag, ok := strings.Cut(f, ":")
		src, known := metaSources[strings.ToUpper(group)]
		if !ok || !known {
			return nil, fmt.Errorf("wdtag: unsupported metadata field %q", f)
		}
		wanted[fieldKey{src, tag}] = f
		sources |= src
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	_, name, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("detect format of %s: %w", path, err)
	}
	format, ok := nativeFormats[name]
	if !ok {
		slog.Debug("wdtag: no native metadata support", "path", path, "format", name)
		return map[string]TagValue{}, nil
	}

	items := make(map[string][]string, len(fields))
	_, err = imagemeta.Decode(imagemeta.Options{
		R:           bytes.NewReader(data),
		ImageFormat: format,
		Sources:     sources,
		ShouldHandleTag: func(ti imagemeta.TagInfo) bool {
			_, ok := wanted[fieldKey{ti.Source, ti.Tag}]
			return ok
		},
		HandleTag: func(ti imagemeta.TagInfo) error {
			field := wanted[fieldKey{ti.Source, ti.Tag}]
			items[field] = append(items[field], tagValueOf(ti.Value).Items()...)
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("read metadata of %s: %w", path, err)
	}

	out := make(map[string]TagValue, len(fields))
	for _, f := range fields {
		if list, ok := items[f]; ok {
			out[f] = Itemized(list)
		}
	}
	return out, nil
}
