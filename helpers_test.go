package wdtag

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
)

// testLabels is a small label table: three ratings, three general tags,
// one character, and one tag in an unused category.
//
//	0 safe          rating
//	1 questionable  rating
//	2 explicit      rating
//	3 1girl         general
//	4 solo          general
//	5 long_hair     general
//	6 hatsune_miku  character
//	7 artist_name   other (category 1)
func testLabels(t *testing.T) *LabelSet {
	t.Helper()
	ls, err := NewLabelSet(
		[]string{"safe", "questionable", "explicit", "1girl", "solo", "long_hair", "hatsune_miku", "artist_name"},
		[]int{9, 9, 9, 0, 0, 0, 4, 1},
	)
	if err != nil {
		t.Fatalf("NewLabelSet: %v", err)
	}
	return ls
}

// testScores selects 1girl, solo and hatsune_miku at default thresholds.
func testScores() []float32 {
	return []float32{0.9, 0.1, 0.01, 0.95, 0.35, 0.2, 0.85, 1.0}
}

// solidImage is a uniform image; every solid image has the same dHash.
func solidImage(w, h int, c color.Color) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.Set(x, y, c)
		}
	}
	return img
}

// gradientImage brightens left to right, so its dHash is far from a solid image.
func gradientImage(w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			v := uint8(x * 255 / max(w-1, 1))
			img.Set(x, y, color.RGBA{R: v, G: v, B: v, A: 255})
		}
	}
	return img
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png.Encode: %v", err)
	}
	return buf.Bytes()
}

func encodeJPEG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatalf("jpeg.Encode: %v", err)
	}
	return buf.Bytes()
}

func writeFile(t *testing.T, path string, data []byte) string {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// fakeEngine returns fixed scores and counts calls.
type fakeEngine struct {
	size   int
	scores []float32
	err    error
	panics bool
	calls  atomic.Int32
}

func (e *fakeEngine) InputSize() int { return e.size }

func (e *fakeEngine) Infer(_ context.Context, t Tensor) ([]float32, error) {
	e.calls.Add(1)
	if e.panics {
		panic("engine exploded")
	}
	if e.err != nil {
		return nil, e.err
	}
	if len(t.Data) != t.Size*t.Size*3 {
		return nil, errors.New("bad tensor")
	}
	return append([]float32(nil), e.scores...), nil
}

// fakeMetadata is an in-memory MetadataTool keyed by file path.
type fakeMetadata struct {
	mu       sync.Mutex
	existing map[string]map[string]TagValue
	written  map[string]map[string][]string
	readErr  error
	writeErr error
}

func newFakeMetadata() *fakeMetadata {
	return &fakeMetadata{
		existing: map[string]map[string]TagValue{},
		written:  map[string]map[string][]string{},
	}
}

func (m *fakeMetadata) ReadTags(_ context.Context, path string, fields []string) (map[string]TagValue, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.readErr != nil {
		return nil, m.readErr
	}
	out := map[string]TagValue{}
	for _, f := range fields {
		if v, ok := m.existing[path][f]; ok {
			out[f] = v
		}
	}
	return out, nil
}

func (m *fakeMetadata) WriteTags(_ context.Context, path string, values map[string][]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.writeErr != nil {
		return m.writeErr
	}
	m.written[path] = values
	return nil
}

func (m *fakeMetadata) get(path string) map[string][]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.written[path]
}

func encodeGIF(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := gif.Encode(&buf, img, nil); err != nil {
		t.Fatalf("gif.Encode: %v", err)
	}
	return buf.Bytes()
}

// minimalWEBP is a RIFF/WEBP container holding only a VP8X header for a
// w x h canvas. It is enough for format sniffing.
func minimalWEBP(w, h int) []byte {
	vp8x := []byte{
		0, 0, 0, 0,
		byte(w - 1), byte((w - 1) >> 8), byte((w - 1) >> 16),
		byte(h - 1), byte((h - 1) >> 8), byte((h - 1) >> 16),
	}
	var buf bytes.Buffer
	buf.WriteString("RIFF")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(4+8+len(vp8x)))
	buf.WriteString("WEBPVP8X")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(len(vp8x)))
	buf.Write(vp8x)
	return buf.Bytes()
}

// withJPEGSegments inserts APPn segments right after the SOI marker.
func withJPEGSegments(t *testing.T, data []byte, marker byte, payloads ...[]byte) []byte {
	t.Helper()
	if len(data) < 2 || data[0] != 0xFF || data[1] != 0xD8 {
		t.Fatal("not a JPEG stream")
	}
	out := append([]byte(nil), data[:2]...)
	for _, p := range payloads {
		if len(p) > 0xFFFF-2 {
			t.Fatalf("segment payload too large: %d", len(p))
		}
		n := len(p) + 2
		out = append(out, 0xFF, marker, byte(n>>8), byte(n))
		out = append(out, p...)
	}
	return append(out, data[2:]...)
}

// xmpSegment is an APP1 payload carrying an XMP packet with dc:subject.
func xmpSegment(subjects ...string) []byte {
	var b bytes.Buffer
	b.WriteString("http://ns.adobe.com/xap/1.0/\x00")
	b.WriteString(`<x:xmpmeta xmlns:x="adobe:ns:meta/">`)
	b.WriteString(`<rdf:RDF xmlns:rdf="http://www.w3.org/1999/02/22-rdf-syntax-ns#">`)
	b.WriteString(`<rdf:Description rdf:about="" xmlns:dc="http://purl.org/dc/elements/1.1/">`)
	b.WriteString(`<dc:subject><rdf:Bag>`)
	for _, s := range subjects {
		b.WriteString("<rdf:li>" + s + "</rdf:li>")
	}
	b.WriteString(`</rdf:Bag></dc:subject></rdf:Description></rdf:RDF></x:xmpmeta>`)
	return b.Bytes()
}
