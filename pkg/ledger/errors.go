package ledger

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnknownKind is returned when a submission names a record kind the
	// catalog does not define.
	ErrUnknownKind = errors.New("unknown record kind")
	// ErrUnknownSection is returned when a submission names a section the
	// kind does not define.
	ErrUnknownSection = errors.New("unknown section")
	// ErrSectionNotPrimaryFirst is returned when a dependent section is
	// submitted before the primary section exists. A non-primary section can
	// never create a record.
	ErrSectionNotPrimaryFirst = errors.New("primary section must be saved first")
	// ErrRecordNotFound is returned by reads for a key with no record.
	ErrRecordNotFound = errors.New("record not found")
	// ErrDuplicateKey is surfaced by the store when an insert collides with
	// the uniqueness constraint on (kind, natural key). The engine recovers
	// by retrying the merge as an update.
	ErrDuplicateKey = errors.New("record already exists for key")
	// ErrRevisionConflict is surfaced by the store when a save races with a
	// concurrent writer. The engine recovers by re-reading and re-merging.
	ErrRevisionConflict = errors.New("record was modified concurrently")
)

// InvalidKeyError reports a missing or malformed natural-key field. It is
// raised before any store access and never retried.
type InvalidKeyError struct {
	Kind   string
	Field  string
	Reason string
}

func (e *InvalidKeyError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("invalid key: %s", e.Reason)
	}
	return fmt.Sprintf("invalid key for %s: field %q %s", e.Kind, e.Field, e.Reason)
}

// FieldError is one per-field validation failure inside a section payload.
type FieldError struct {
	Path   string `json:"path"`
	Reason string `json:"reason"`
}

// ValidationError reports every field of a section payload that failed its
// declared type. The section is never partially applied: one bad field rejects
// the whole submission.
type ValidationError struct {
	Kind    string       `json:"kind"`
	Section string       `json:"section"`
	Fields  []FieldError `json:"fields"`
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = fmt.Sprintf("%s: %s", f.Path, f.Reason)
	}
	return fmt.Sprintf("invalid %s section for %s: %s", e.Section, e.Kind, strings.Join(parts, "; "))
}

// StoreError wraps an I/O failure from the record store. It is retryable from
// the caller's point of view; no partial write has occurred.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// Wire codes so the TCP protocol and HTTP API can round-trip typed errors to
// the SDK without string matching.
const (
	CodeUnknownKind      = "unknown_kind"
	CodeUnknownSection   = "unknown_section"
	CodeInvalidKey       = "invalid_key"
	CodePrimaryFirst     = "primary_first"
	CodeValidation       = "validation"
	CodeNotFound         = "not_found"
	CodeConflict         = "conflict"
	CodeStoreUnavailable = "store_unavailable"
	CodeInternal         = "internal"
)

// CodeOf maps an engine error to its wire code.
func CodeOf(err error) string {
	var ik *InvalidKeyError
	var ve *ValidationError
	var se *StoreError
	switch {
	case errors.Is(err, ErrUnknownKind):
		return CodeUnknownKind
	case errors.Is(err, ErrUnknownSection):
		return CodeUnknownSection
	case errors.As(err, &ik):
		return CodeInvalidKey
	case errors.Is(err, ErrSectionNotPrimaryFirst):
		return CodePrimaryFirst
	case errors.As(err, &ve):
		return CodeValidation
	case errors.Is(err, ErrRecordNotFound):
		return CodeNotFound
	case errors.Is(err, ErrDuplicateKey), errors.Is(err, ErrRevisionConflict):
		return CodeConflict
	case errors.As(err, &se):
		return CodeStoreUnavailable
	default:
		return CodeInternal
	}
}

// FromCode rebuilds a typed error from a wire code and message. Structured
// detail (field paths) is carried in the message; callers that need to branch
// use errors.Is against the sentinels.
func FromCode(code, msg string) error {
	switch code {
	case CodeUnknownKind:
		return fmt.Errorf("%s: %w", msg, ErrUnknownKind)
	case CodeUnknownSection:
		return fmt.Errorf("%s: %w", msg, ErrUnknownSection)
	case CodeInvalidKey:
		return &InvalidKeyError{Reason: msg}
	case CodePrimaryFirst:
		return fmt.Errorf("%s: %w", msg, ErrSectionNotPrimaryFirst)
	case CodeValidation:
		return &ValidationError{Fields: []FieldError{{Reason: msg}}}
	case CodeNotFound:
		return fmt.Errorf("%s: %w", msg, ErrRecordNotFound)
	case CodeConflict:
		return fmt.Errorf("%s: %w", msg, ErrRevisionConflict)
	case CodeStoreUnavailable:
		return &StoreError{Op: "remote", Err: errors.New(msg)}
	default:
		return errors.New(msg)
	}
}
