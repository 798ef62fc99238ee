package engine

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/shiftledger-dev/shiftledger/internal/catalog"
	"github.com/shiftledger-dev/shiftledger/pkg/ledger"
)

// Apply merges one section payload into the existing record (or creates the
// record, when this is the primary-section creation path) according to the
// per-field policy declared in the catalog.
//
// The merge is all-or-nothing: every leaf is validated before any leaf is
// written, and the input record is never mutated. Payload fields the section
// does not own are ignored, so reusing one form payload across two logical
// sections only ever applies the subset each section declares.
func Apply(cat *catalog.Catalog, existing *ledger.Record, kind, section string, key ledger.NaturalKey, payload map[string]any) (*ledger.Record, error) {
	ks, ok := cat.Kind(kind)
	if !ok {
		return nil, fmt.Errorf("%q: %w", kind, ledger.ErrUnknownKind)
	}
	sec, ok := ks.Section(section)
	if !ok {
		return nil, fmt.Errorf("%s has no section %q: %w", kind, section, ledger.ErrUnknownSection)
	}
	if existing == nil && !sec.Primary {
		return nil, fmt.Errorf("%s section %q: %w", kind, section, ledger.ErrSectionNotPrimaryFirst)
	}

	leaves := flatten("", payload)

	// Validate everything first so a bad field never half-applies a section.
	var fieldErrs []ledger.FieldError
	for _, leaf := range leaves {
		f, owned := sec.Field(leaf.path)
		if !owned {
			continue
		}
		if reason := validateValue(f, leaf.value); reason != "" {
			fieldErrs = append(fieldErrs, ledger.FieldError{Path: leaf.path, Reason: reason})
		}
	}
	if len(fieldErrs) > 0 {
		return nil, &ledger.ValidationError{Kind: kind, Section: section, Fields: fieldErrs}
	}

	now := time.Now().UTC()
	var rec *ledger.Record
	if existing == nil {
		rec = &ledger.Record{
			ID:        uuid.NewString(),
			Kind:      kind,
			Key:       key,
			Sections:  make(map[string]ledger.SectionData),
			CreatedAt: now,
		}
	} else {
		rec = existing.Clone()
	}

	data := map[string]any(rec.Sections[section])
	if data == nil {
		data = make(map[string]any)
	}

	for _, leaf := range leaves {
		f, owned := sec.Field(leaf.path)
		if !owned {
			continue
		}
		switch f.Policy {
		case catalog.AppendOnly:
			mergeAppend(data, leaf.path, leaf.value)
		case catalog.AlwaysOverwrite:
			setPath(data, leaf.path, leaf.value)
		default: // catalog.OverwriteIfEmpty
			if isPopulated(getPath(data, leaf.path)) {
				// First writer wins. Dropping the incoming value here is the
				// documented lock semantics, not data loss.
				continue
			}
			if !isPopulated(leaf.value) {
				// An empty resubmission never clears a field.
				continue
			}
			setPath(data, leaf.path, leaf.value)
		}
	}

	rec.Sections[section] = ledger.SectionData(data)
	rec.UpdatedAt = now
	return rec, nil
}

// isPopulated is the emptiness predicate of the whole engine. Only nil, the
// empty string, the empty object, and the empty list count as "not yet filled
// in". A numeric 0 and a boolean false are legitimate recorded values and are
// populated; a naive falsy check here would silently unlock measured zeros.
func isPopulated(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case string:
		return t != ""
	case map[string]any:
		return len(t) > 0
	case []any:
		return len(t) > 0
	default:
		return true
	}
}

// leaf is one dotted path / value pair extracted from a payload tree.
type leaf struct {
	path  string
	value any
}

// flatten walks a payload tree into leaves. Lists are leaves (AppendOnly
// merges whole lists); non-empty objects are descended into. Leaves come back
// sorted by path so merges and validation errors are deterministic.
func flatten(prefix string, tree map[string]any) []leaf {
	var out []leaf
	for k, v := range tree {
		path := k
		if prefix != "" {
			path = prefix + "." + k
		}
		if sub, ok := v.(map[string]any); ok && len(sub) > 0 {
			out = append(out, flatten(path, sub)...)
			continue
		}
		out = append(out, leaf{path: path, value: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].path < out[j].path })
	return out
}

// validateValue checks a payload value against the field's declared type.
// Empty values always pass: they are no-ops downstream, never errors.
func validateValue(f catalog.FieldSchema, v any) string {
	if !isPopulated(v) {
		return ""
	}
	if f.Policy == catalog.AppendOnly {
		if _, ok := v.([]any); !ok {
			return "must be a list"
		}
	}
	switch f.Type {
	case catalog.TypeString:
		if _, ok := v.(string); !ok {
			return "must be a string"
		}
	case catalog.TypeNumber:
		switch v.(type) {
		case float64, float32, int, int64, int32:
		default:
			return "must be a number"
		}
	case catalog.TypeBool:
		if _, ok := v.(bool); !ok {
			return "must be a boolean"
		}
	case catalog.TypeList:
		if _, ok := v.([]any); !ok {
			return "must be a list"
		}
	}
	return ""
}

// mergeAppend unions an incoming list into the stored list at path, keeping
// stored order and appending genuinely new entries at the end.
func mergeAppend(data map[string]any, path string, incoming any) {
	in, ok := incoming.([]any)
	if !ok || len(in) == 0 {
		return
	}
	stored, _ := getPath(data, path).([]any)
	merged := append([]any(nil), stored...)
	for _, item := range in {
		if !containsValue(merged, item) {
			merged = append(merged, item)
		}
	}
	setPath(data, path, merged)
}

func containsValue(list []any, v any) bool {
	for _, e := range list {
		if reflect.DeepEqual(e, v) {
			return true
		}
	}
	return false
}

// getPath reads a dotted path out of a tree, returning nil when any segment
// is missing.
func getPath(data map[string]any, path string) any {
	segs := strings.Split(path, ".")
	cur := data
	for i, seg := range segs {
		v, ok := cur[seg]
		if !ok {
			return nil
		}
		if i == len(segs)-1 {
			return v
		}
		sub, ok := v.(map[string]any)
		if !ok {
			return nil
		}
		cur = sub
	}
	return nil
}

// setPath writes a value at a dotted path, creating parent objects as needed.
func setPath(data map[string]any, path string, v any) {
	segs := strings.Split(path, ".")
	cur := data
	for _, seg := range segs[:len(segs)-1] {
		sub, ok := cur[seg].(map[string]any)
		if !ok {
			sub = make(map[string]any)
			cur[seg] = sub
		}
		cur = sub
	}
	cur[segs[len(segs)-1]] = v
}
