// Package catalog is the section schema registry: the fixed catalogue of
// record kinds, their natural-key fields, their sections, and the per-field
// merge policy the engine applies. Expressing the policy as data here is what
// keeps the merge engine free of per-kind branching.
package catalog

import (
	"fmt"
	"strings"

	"github.com/shiftledger-dev/shiftledger/pkg/ledger"
)

// Policy decides what the merge engine does when a payload field arrives for a
// path that already holds a value.
type Policy int

const (
	// OverwriteIfEmpty writes the incoming value only while the stored value
	// is not yet populated; afterwards the field is locked. This is the
	// default and models "first writer wins" per shift field.
	OverwriteIfEmpty Policy = iota
	// AppendOnly unions the incoming list into the stored list, preserving
	// stored order and never removing an entry. Models growing lists such as
	// shift members.
	AppendOnly
	// AlwaysOverwrite writes unconditionally. Reserved for fields that track
	// a single evolving status, such as a review flag or the next-shift plan.
	AlwaysOverwrite
)

func (p Policy) String() string {
	switch p {
	case AppendOnly:
		return "append_only"
	case AlwaysOverwrite:
		return "always_overwrite"
	default:
		return "overwrite_if_empty"
	}
}

// FieldType is the declared type of a leaf field, checked before merge.
type FieldType int

const (
	TypeAny FieldType = iota
	TypeString
	TypeNumber
	TypeBool
	TypeList
)

func (t FieldType) String() string {
	switch t {
	case TypeString:
		return "string"
	case TypeNumber:
		return "number"
	case TypeBool:
		return "bool"
	case TypeList:
		return "list"
	default:
		return "any"
	}
}

// FieldSchema declares one leaf field (or, with a wildcard pattern, an open
// subtree of leaves) owned by a section. Paths are dotted; a "*" segment
// matches exactly one path segment and a trailing "*" matches one or more
// remaining segments.
type FieldSchema struct {
	Path   string
	Type   FieldType
	Policy Policy
}

// Wildcard reports whether the schema covers a pattern rather than one path.
func (f FieldSchema) Wildcard() bool {
	return strings.Contains(f.Path, "*")
}

// SectionSchema is one named, independently-submittable sub-form of a record
// kind. Exactly one section per kind is primary; it must exist before any
// other section may be written.
type SectionSchema struct {
	Name    string
	Primary bool
	Fields  []FieldSchema
}

// Field resolves the schema owning the given leaf path: an exact match wins,
// otherwise the most specific (longest) matching wildcard pattern. The second
// return is false when the section does not own the path at all, in which case
// the merge engine ignores it.
func (s *SectionSchema) Field(path string) (FieldSchema, bool) {
	best := -1
	var found FieldSchema
	for _, f := range s.Fields {
		if f.Path == path {
			return f, true
		}
		if f.Wildcard() && matchPath(f.Path, path) {
			if n := strings.Count(f.Path, "."); n > best {
				best = n
				found = f
			}
		}
	}
	return found, best >= 0
}

// StaticPaths returns the declared non-wildcard paths of the section.
func (s *SectionSchema) StaticPaths() []string {
	var out []string
	for _, f := range s.Fields {
		if !f.Wildcard() {
			out = append(out, f.Path)
		}
	}
	return out
}

// KeyField is one natural-key component of a kind. Date fields are normalized
// to a calendar day by the key resolver.
type KeyField struct {
	Name string
	Date bool
}

// KindSchema is the full declaration of one record kind.
type KindSchema struct {
	Name      string
	KeyFields []KeyField
	Sections  []SectionSchema
}

// Section returns the named section schema.
func (k *KindSchema) Section(name string) (*SectionSchema, bool) {
	for i := range k.Sections {
		if k.Sections[i].Name == name {
			return &k.Sections[i], true
		}
	}
	return nil, false
}

// Primary returns the primary section of the kind.
func (k *KindSchema) Primary() *SectionSchema {
	for i := range k.Sections {
		if k.Sections[i].Primary {
			return &k.Sections[i]
		}
	}
	return nil
}

// Info converts the schema to its client-facing description.
func (k *KindSchema) Info() ledger.KindInfo {
	info := ledger.KindInfo{Name: k.Name}
	for _, kf := range k.KeyFields {
		info.KeyFields = append(info.KeyFields, kf.Name)
	}
	for _, s := range k.Sections {
		si := ledger.SectionInfo{Name: s.Name, Primary: s.Primary}
		for _, f := range s.Fields {
			si.Fields = append(si.Fields, f.Path)
		}
		info.Sections = append(info.Sections, si)
	}
	return info
}

// Catalog holds every registered kind. It is immutable after startup; lookups
// need no locking.
type Catalog struct {
	kinds map[string]*KindSchema
	order []string
}

// New returns an empty catalog.
func New() *Catalog {
	return &Catalog{kinds: make(map[string]*KindSchema)}
}

// Register validates and adds a kind schema. It fails if the kind is already
// registered, has no date key field, or does not have exactly one primary
// section.
func (c *Catalog) Register(k *KindSchema) error {
	if k.Name == "" {
		return fmt.Errorf("kind name must not be empty")
	}
	if _, ok := c.kinds[k.Name]; ok {
		return fmt.Errorf("kind %q already registered", k.Name)
	}
	dates := 0
	for _, kf := range k.KeyFields {
		if kf.Date {
			dates++
		}
	}
	if dates != 1 {
		return fmt.Errorf("kind %q: natural key must include exactly one date field, have %d", k.Name, dates)
	}
	primaries := 0
	seen := map[string]bool{}
	for _, s := range k.Sections {
		if seen[s.Name] {
			return fmt.Errorf("kind %q: duplicate section %q", k.Name, s.Name)
		}
		seen[s.Name] = true
		if s.Primary {
			primaries++
		}
		if len(s.Fields) == 0 {
			return fmt.Errorf("kind %q: section %q declares no fields", k.Name, s.Name)
		}
	}
	if primaries != 1 {
		return fmt.Errorf("kind %q: want exactly one primary section, have %d", k.Name, primaries)
	}
	c.kinds[k.Name] = k
	c.order = append(c.order, k.Name)
	return nil
}

// Kind returns the schema for the named kind.
func (c *Catalog) Kind(name string) (*KindSchema, bool) {
	k, ok := c.kinds[name]
	return k, ok
}

// KindNames returns the registered kind names in registration order.
func (c *Catalog) KindNames() []string {
	return append([]string(nil), c.order...)
}

// FieldPolicy resolves the merge policy for a leaf path within a section. The
// second return is false when the section does not own the path.
func (c *Catalog) FieldPolicy(kind, section, path string) (Policy, bool) {
	k, ok := c.kinds[kind]
	if !ok {
		return OverwriteIfEmpty, false
	}
	s, ok := k.Section(section)
	if !ok {
		return OverwriteIfEmpty, false
	}
	f, ok := s.Field(path)
	if !ok {
		return OverwriteIfEmpty, false
	}
	return f.Policy, true
}

// matchPath reports whether a dotted wildcard pattern matches a concrete path.
// "*" matches exactly one segment; a trailing "*" matches one or more
// remaining segments.
func matchPath(pattern, path string) bool {
	pp := strings.Split(pattern, ".")
	sp := strings.Split(path, ".")
	for i, seg := range pp {
		if seg == "*" && i == len(pp)-1 {
			return len(sp) >= len(pp)
		}
		if i >= len(sp) {
			return false
		}
		if seg != "*" && seg != sp[i] {
			return false
		}
	}
	return len(sp) == len(pp)
}
