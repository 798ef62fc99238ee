// Package ledger defines the core types and interfaces for the Shiftledger Store.
// Both the local embedded engine and the remote network client implement these
// contracts.
package ledger

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// DayFormat is the canonical representation of the calendar-day component of a
// natural key. All date-typed key fields are normalized to this before a record
// is looked up or written, so two submissions on the same day always resolve to
// the same record no matter their wall-clock time.
const DayFormat = "2006-01-02"

// NaturalKey is the ordered tuple of business-meaningful fields that identifies
// one logical record. It always carries a calendar day; most kinds add one or
// two discriminators (shift, machine, holder number).
type NaturalKey struct {
	Date  time.Time `json:"date"`
	Extra []KeyPart `json:"extra,omitempty"`
}

// KeyPart is one non-date discriminator of a natural key.
type KeyPart struct {
	Field string `json:"field"`
	Value string `json:"value"`
}

// String renders the canonical form of the key, e.g.
// "2024-03-01|shift=Shift 1|holder_number=H001". Stores index records by this
// string, which makes lookups a plain equality match instead of a date-range
// scan.
func (k NaturalKey) String() string {
	var b strings.Builder
	b.WriteString(k.Date.UTC().Format(DayFormat))
	for _, p := range k.Extra {
		fmt.Fprintf(&b, "|%s=%s", p.Field, p.Value)
	}
	return b.String()
}

// Part returns the value of the named discriminator, or "" if absent.
func (k NaturalKey) Part(field string) string {
	for _, p := range k.Extra {
		if p.Field == field {
			return p.Value
		}
	}
	return ""
}

// SectionData is the stored value tree of one section: leaf scalars, lists, and
// nested objects keyed by field name.
type SectionData map[string]any

// Record is one row per natural key per record kind. It is only ever read and
// written as a whole document; sections are merged into it one at a time by the
// engine, never field-by-field against the store.
type Record struct {
	ID        string                 `json:"id"`
	Kind      string                 `json:"kind"`
	Key       NaturalKey             `json:"key"`
	Sections  map[string]SectionData `json:"sections"`
	Revision  int64                  `json:"revision"`
	CreatedAt time.Time              `json:"created_at"`
	UpdatedAt time.Time              `json:"updated_at"`
}

// Section returns the stored data for the named section, or nil.
func (r *Record) Section(name string) SectionData {
	if r == nil || r.Sections == nil {
		return nil
	}
	return r.Sections[name]
}

// Clone returns a deep copy of the record. The engine merges into a copy so a
// failed validation never leaves a half-applied section behind.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	out := *r
	out.Key.Extra = append([]KeyPart(nil), r.Key.Extra...)
	out.Sections = make(map[string]SectionData, len(r.Sections))
	for name, data := range r.Sections {
		out.Sections[name] = SectionData(cloneTree(map[string]any(data)))
	}
	return &out
}

func cloneTree(src map[string]any) map[string]any {
	dst := make(map[string]any, len(src))
	for k, v := range src {
		dst[k] = cloneValue(v)
	}
	return dst
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return cloneTree(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	default:
		return v
	}
}

// Editability says whether a field can currently be changed through section
// submission.
type Editability string

const (
	Editable Editability = "editable"
	Locked   Editability = "locked"
)

// LockState maps every field path known to the schema (section-qualified,
// e.g. "clay_parameters.total_clay") to its current editability. It is derived
// from the stored record on every read and never persisted, so it cannot drift
// from the underlying data.
type LockState map[string]Editability

// LockedPaths returns the locked paths in sorted order. Handy for tests and
// log output.
func (ls LockState) LockedPaths() []string {
	var out []string
	for path, e := range ls {
		if e == Locked {
			out = append(out, path)
		}
	}
	sort.Strings(out)
	return out
}

// SubmitResult is what every successful submission or read returns: the full
// record plus the freshly projected lock state the UI uses to disable inputs.
type SubmitResult struct {
	Record *Record   `json:"record"`
	Locks  LockState `json:"locks"`
}

// SectionInfo describes one section of a record kind to clients.
type SectionInfo struct {
	Name    string   `json:"name"`
	Primary bool     `json:"primary"`
	Fields  []string `json:"fields"`
}

// KindInfo describes one record kind to clients.
type KindInfo struct {
	Name      string        `json:"name"`
	KeyFields []string      `json:"key_fields"`
	Sections  []SectionInfo `json:"sections"`
}
