// Package notes packs per-person auxiliary attributes into the single
// free-text note column of the persons table.
//
// Three shapes are found in stored data: the JSON object written by Encode,
// a legacy "deleted_at:<timestamp>" marker, and plain text typed by hand,
// which is read back as allergy information.
package notes

import (
	"encoding/json"
	"strings"
	"time"
)

const legacyDeletedMarker = "deleted_at:"

// Format identifies which stored shape a note was decoded from.
type Format int

const (
	FormatEmpty Format = iota
	FormatStructured
	FormatLegacy
	FormatText
)

func (f Format) String() string {
	switch f {
	case FormatEmpty:
		return "empty"
	case FormatStructured:
		return "structured"
	case FormatLegacy:
		return "legacy"
	case FormatText:
		return "text"
	default:
		return "unknown"
	}
}

// Note holds the attributes carried by the note column.
type Note struct {
	Allergies string
	DeletedAt *time.Time
}

// Deleted reports whether the note carries a soft-delete marker.
func (n Note) Deleted() bool {
	return n.DeletedAt != nil
}

// WithDeletedAt returns a copy of n soft-deleted at t.
func (n Note) WithDeletedAt(t time.Time) Note {
	t = t.UTC()
	n.DeletedAt = &t
	return n
}

// Restored returns a copy of n without the soft-delete marker.
func (n Note) Restored() Note {
	n.DeletedAt = nil
	return n
}

// Equal compares two notes, treating timestamps by instant.
func (n Note) Equal(o Note) bool {
	if n.Allergies != o.Allergies {
		return false
	}
	if n.DeletedAt == nil || o.DeletedAt == nil {
		return n.DeletedAt == nil && o.DeletedAt == nil
	}
	return n.DeletedAt.Equal(*o.DeletedAt)
}

type wireNote struct {
	Allergies *string `json:"allergies"`
	DeletedAt *string `json:"deleted_at"`
}

// Encode renders n in the structured format.
func Encode(n Note) string {
	var w wireNote
	if n.Allergies != "" {
		a := n.Allergies
		w.Allergies = &a
	}
	if n.DeletedAt != nil {
		ts := n.DeletedAt.UTC().Format(time.RFC3339Nano)
		w.DeletedAt = &ts
	}

	// Marshalling two string pointers cannot fail.
	b, _ := json.Marshal(w)
	return string(b)
}

// Decode reads any stored shape. It never fails: unknown shapes are
// returned as allergy text.
func Decode(raw string) Note {
	n, _ := Parse(raw)
	return n
}

// Parse decodes raw and reports the shape it was recognised as.
func Parse(raw string) (Note, Format) {
	if strings.TrimSpace(raw) == "" {
		return Note{}, FormatEmpty
	}

	if n, ok := parseStructured(raw); ok {
		return n, FormatStructured
	}

	if idx := strings.Index(raw, legacyDeletedMarker); idx >= 0 {
		ts := strings.TrimSpace(raw[idx+len(legacyDeletedMarker):])
		if ts == "" {
			return Note{}, FormatLegacy
		}
		t := parseTimestamp(ts)
		return Note{DeletedAt: &t}, FormatLegacy
	}

	return Note{Allergies: raw}, FormatText
}

func parseStructured(raw string) (Note, bool) {
	trimmed := strings.TrimSpace(raw)
	if !strings.HasPrefix(trimmed, "{") {
		return Note{}, false
	}

	var w wireNote
	if err := json.Unmarshal([]byte(trimmed), &w); err != nil {
		return Note{}, false
	}

	var n Note
	if w.Allergies != nil {
		n.Allergies = *w.Allergies
	}
	if w.DeletedAt != nil && strings.TrimSpace(*w.DeletedAt) != "" {
		t := parseTimestamp(*w.DeletedAt)
		n.DeletedAt = &t
	}
	return n, true
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05",
	time.DateOnly,
}

// parseTimestamp returns the zero time for values it cannot read; a present
// marker still means the person was deleted.
func parseTimestamp(s string) time.Time {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}
