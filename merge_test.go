package wdtag

import (
	"slices"
	"testing"
)

func TestMergeTags(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		newTags   []string
		existing  []TagValue
		overwrite bool
		want      []string
	}{
		{
			name:     "union keeps first occurrence",
			newTags:  []string{"a", "b"},
			existing: []TagValue{Itemized([]string{"b", "c"})},
			want:     []string{"a", "b", "c"},
		},
		{
			name:      "overwrite ignores existing",
			newTags:   []string{"a"},
			existing:  []TagValue{Itemized([]string{"x", "y"})},
			overwrite: true,
			want:      []string{"a"},
		},
		{
			name:     "raw string split and trimmed",
			newTags:  []string{"a"},
			existing: []TagValue{Raw(" b , c,, a ")},
			want:     []string{"a", "b", "c"},
		},
		{
			name:     "both fields merged in field order",
			newTags:  []string{"a"},
			existing: []TagValue{Raw("b"), Itemized([]string{"c", "b", "d"})},
			want:     []string{"a", "b", "c", "d"},
		},
		{
			name:     "empty values contribute nothing",
			newTags:  []string{"a", "a"},
			existing: []TagValue{{}, Raw(""), Itemized(nil)},
			want:     []string{"a"},
		},
		{
			name:     "no new tags keeps existing",
			existing: []TagValue{Itemized([]string{"x"})},
			want:     []string{"x"},
		},
		{
			name:      "overwrite with nothing is empty",
			existing:  []TagValue{Itemized([]string{"x"})},
			overwrite: true,
			want:      []string{},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := MergeTags(tc.newTags, tc.existing, tc.overwrite)
			if !slices.Equal(got, tc.want) {
				t.Errorf("MergeTags() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestTagValueOf(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   any
		want []string
	}{
		{name: "string", in: "a, b", want: []string{"a", "b"}},
		{name: "string slice", in: []string{"a", " b "}, want: []string{"a", "b"}},
		{name: "any slice", in: []any{"a", 42, nil}, want: []string{"a", "42"}},
		{name: "number", in: 3.5, want: nil},
		{name: "nil", in: nil, want: nil},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := tagValueOf(tc.in).Items()
			if len(got) == 0 && len(tc.want) == 0 {
				return
			}
			if !slices.Equal(got, tc.want) {
				t.Errorf("tagValueOf(%v).Items() = %v, want %v", tc.in, got, tc.want)
			}
		})
	}
}

func TestTagValue_IsEmpty(t *testing.T) {
	t.Parallel()

	if !(TagValue{}).IsEmpty() {
		t.Error("zero TagValue should be empty")
	}
	if !Raw(" , ").IsEmpty() {
		t.Error("separator-only Raw should be empty")
	}
	if Itemized([]string{"x"}).IsEmpty() {
		t.Error("Itemized with one item should not be empty")
	}
}

func TestItemized_CopiesInput(t *testing.T) {
	t.Parallel()

	in := []string{"a"}
	v := Itemized(in)
	in[0] = "changed"
	if got := v.Items(); got[0] != "a" {
		t.Errorf("Itemized aliased its input: %v", got)
	}
}
