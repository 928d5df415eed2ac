package wdtag

import (
	"bufio"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

// decoder format name -> MIME type for every supported encoding.
var formatMIME = map[string]string{
	"jpeg": "image/jpeg",
	"png":  "image/png",
	"gif":  "image/gif",
	"webp": "image/webp",
	"bmp":  "image/bmp",
}

// canonicalExt maps a supported MIME type to its canonical extension.
var canonicalExt = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
	"image/bmp":  ".bmp",
}

// extAliases are alternate spellings accepted without renaming.
var extAliases = map[string]string{
	".jpeg": ".jpg",
}

// metadataUnsupportedExt is the one supported raster format that cannot
// carry IPTC/XMP tags.
const metadataUnsupportedExt = ".bmp"

// ValidationResult is the FormatValidator decision for one candidate path.
type ValidationResult struct {
	Accepted bool
	Path     string     // path to continue with; differs from the input after a rename
	Reason   SkipReason // set when rejected
	Err      error
}

// Validator checks that a file's real encoding matches its extension and
// can hold the requested output.
type Validator struct {
	Output OutputMode
}

// Validate applies the format policy to path, renaming the file to its
// canonical extension when the content disagrees with the name.
func (v Validator) Validate(path string) ValidationResult {
	ext := strings.ToLower(filepath.Ext(path))
	if v.Output.writesMetadata() && ext == metadataUnsupportedExt {
		return reject(path, ReasonMetadataUnsupported, nil)
	}

	mime, err := SniffMIME(path)
	if err != nil {
		return reject(path, ReasonUnsupportedFormat, err)
	}
	want, ok := canonicalExt[mime]
	if !ok {
		return reject(path, ReasonUnsupportedFormat, fmt.Errorf("mime %s", mime))
	}
	if normalizeExt(ext) == want {
		return ValidationResult{Accepted: true, Path: path}
	}
	// Misnamed BMP content would pass the extension check above.
	if v.Output.writesMetadata() && want == metadataUnsupportedExt {
		return reject(path, ReasonMetadataUnsupported, fmt.Errorf("content is %s", mime))
	}

	target := strings.TrimSuffix(path, filepath.Ext(path)) + want
	if err := renameNoReplace(path, target); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return reject(path, ReasonRenameConflict, fmt.Errorf("%s exists", target))
		}
		return reject(path, ReasonRenameFailed, err)
	}
	slog.Info("wdtag: renamed to match content", "from", path, "to", target, "mime", mime)
	return ValidationResult{Accepted: true, Path: target}
}

// renameNoReplace moves oldpath to newpath, failing with fs.ErrExist rather
// than replacing newpath. Filesystems without hard links fall back to
// check-then-rename.
func renameNoReplace(oldpath, newpath string) error {
	if err := os.Link(oldpath, newpath); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return err
		}
		if _, statErr := os.Lstat(newpath); statErr == nil {
			return &fs.PathError{Op: "rename", Path: newpath, Err: fs.ErrExist}
		} else if !errors.Is(statErr, fs.ErrNotExist) {
			return statErr
		}
		return os.Rename(oldpath, newpath)
	}
	if err := os.Remove(oldpath); err != nil {
		_ = os.Remove(newpath)
		return err
	}
	return nil
}

func reject(path string, reason SkipReason, err error) ValidationResult {
	slog.Debug("wdtag: rejected", "path", path, "reason", reason.Code(), "error", err)
	return ValidationResult{Path: path, Reason: reason, Err: err}
}

func normalizeExt(ext string) string {
	if alias, ok := extAliases[ext]; ok {
		return alias
	}
	return ext
}

// SniffMIME identifies the file's true encoding from its header bytes.
func SniffMIME(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	// DecodeConfig stops after the header, however many segments precede it.
	_, format, err := image.DecodeConfig(bufio.NewReader(f))
	if err != nil {
		return "", fmt.Errorf("sniff %s: %w", filepath.Base(path), err)
	}
	mime, ok := formatMIME[format]
	if !ok {
		return "", fmt.Errorf("sniff %s: unsupported format %q", filepath.Base(path), format)
	}
	return mime, nil
}
