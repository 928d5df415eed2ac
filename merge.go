package wdtag

import (
	"fmt"
	"strings"
)

// Metadata fields that receive tags. Both always get the same list.
const (
	FieldIPTCKeywords = "IPTC:Keywords"
	FieldXMPSubject   = "XMP:Subject"
)

// TagFields lists the metadata fields read and written in metadata mode,
// in merge precedence order.
var TagFields = []string{FieldIPTCKeywords, FieldXMPSubject}

type tagValueKind uint8

const (
	tagValueEmpty tagValueKind = iota
	tagValueRaw
	tagValueItemized
)

// TagValue is an existing metadata value: either a single delimited string
// or an already itemized list. The zero value is empty.
type TagValue struct {
	kind  tagValueKind
	raw   string
	items []string
}

// Raw wraps a comma-delimited string value.
func Raw(s string) TagValue { return TagValue{kind: tagValueRaw, raw: s} }

// Itemized wraps a list value.
func Itemized(items []string) TagValue {
	return TagValue{kind: tagValueItemized, items: append([]string(nil), items...)}
}

// Items normalizes the value to trimmed, non-empty strings.
func (v TagValue) Items() []string {
	var parts []string
	switch v.kind {
	case tagValueRaw:
		parts = strings.Split(v.raw, ",")
	case tagValueItemized:
		parts = v.items
	default:
		return nil
	}
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// IsEmpty reports whether the value normalizes to no items.
func (v TagValue) IsEmpty() bool { return len(v.Items()) == 0 }

// tagValueOf converts a loosely typed decoded value (JSON or metadata
// library output) into a TagValue. Anything that is not a string or a list
// becomes empty.
func tagValueOf(v any) TagValue {
	switch val := v.(type) {
	case string:
		return Raw(val)
	case []string:
		return Itemized(val)
	case []any:
		items := make([]string, 0, len(val))
		for _, item := range val {
			if s, ok := item.(string); ok {
				items = append(items, s)
			} else if item != nil {
				items = append(items, fmt.Sprint(item))
			}
		}
		return Itemized(items)
	default:
		return TagValue{}
	}
}

// MergeTags produces the final list written to both metadata fields. With
// overwrite the new tags are returned as-is. Otherwise new tags come first,
// followed by existing values in field order, keeping only the first
// occurrence of each tag.
func MergeTags(newTags []string, existing []TagValue, overwrite bool) []string {
	if overwrite {
		return append([]string(nil), newTags...)
	}
	seen := make(map[string]struct{}, len(newTags))
	out := make([]string, 0, len(newTags))
	add := func(tag string) {
		if _, dup := seen[tag]; dup {
			return
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	for _, t := range newTags {
		add(t)
	}
	for _, v := range existing {
		for _, t := range v.Items() {
			add(t)
		}
	}
	return out
}
