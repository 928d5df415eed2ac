package wdtag

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// Label table category codes.
const (
	CategoryGeneral   = 0
	CategoryCharacter = 4
	CategoryRating    = 9
)

var (
	// ErrNoLabels is returned when a label table has no usable rows.
	ErrNoLabels = errors.New("wdtag: label set is empty")
	// ErrShortPrediction is returned when a score vector does not cover every label.
	ErrShortPrediction = errors.New("wdtag: prediction vector shorter than label set")
)

// LabelSet is the immutable label table: names plus the three category
// index sets, each in ascending index order.
type LabelSet struct {
	Names     []string
	Rating    []int
	General   []int
	Character []int
}

// NewLabelSet partitions names by category code in a single pass.
// Indices with any other code are left out of all three sets.
func NewLabelSet(names []string, categories []int) (*LabelSet, error) {
	if len(names) != len(categories) {
		return nil, fmt.Errorf("wdtag: %d names but %d categories", len(names), len(categories))
	}
	if len(names) == 0 {
		return nil, ErrNoLabels
	}
	ls := &LabelSet{Names: append([]string(nil), names...)}
	for i, c := range categories {
		switch c {
		case CategoryRating:
			ls.Rating = append(ls.Rating, i)
		case CategoryGeneral:
			ls.General = append(ls.General, i)
		case CategoryCharacter:
			ls.Character = append(ls.Character, i)
		}
	}
	return ls, nil
}

// LoadLabels reads a label table CSV with a header row containing at least
// the "name" and "category" columns (selected_tags.csv layout).
func LoadLabels(r io.Reader) (*LabelSet, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrNoLabels
		}
		return nil, fmt.Errorf("read label header: %w", err)
	}
	nameCol, catCol := -1, -1
	for i, h := range header {
		switch strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))) {
		case "name":
			nameCol = i
		case "category":
			catCol = i
		}
	}
	if nameCol < 0 || catCol < 0 {
		return nil, fmt.Errorf("label table needs name and category columns, got %v", header)
	}

	var names []string
	var cats []int
	for line := 2; ; line++ {
		rec, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read label row %d: %w", line, err)
		}
		if nameCol >= len(rec) || catCol >= len(rec) {
			return nil, fmt.Errorf("label row %d: missing columns", line)
		}
		cat, err := strconv.Atoi(strings.TrimSpace(rec[catCol]))
		if err != nil {
			return nil, fmt.Errorf("label row %d: bad category %q: %w", line, rec[catCol], err)
		}
		names = append(names, rec[nameCol])
		cats = append(cats, cat)
	}
	return NewLabelSet(names, cats)
}

// LoadLabelsFile opens path and parses it with LoadLabels.
func LoadLabelsFile(path string) (*LabelSet, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open label table: %w", err)
	}
	defer f.Close()
	return LoadLabels(f)
}

// Len returns the number of labels.
func (l *LabelSet) Len() int { return len(l.Names) }

// RatingNames returns the names of all rating-category labels.
func (l *LabelSet) RatingNames() []string {
	out := make([]string, len(l.Rating))
	for i, idx := range l.Rating {
		out[i] = l.Names[idx]
	}
	return out
}

// checkScores verifies scores cover every categorized index.
func (l *LabelSet) checkScores(scores []float32) error {
	need := 0
	for _, set := range [][]int{l.Rating, l.General, l.Character} {
		if n := len(set); n > 0 && set[n-1]+1 > need {
			need = set[n-1] + 1
		}
	}
	if len(scores) < need {
		return fmt.Errorf("%w: got %d scores, need %d", ErrShortPrediction, len(scores), need)
	}
	return nil
}
