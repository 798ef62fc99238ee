// Package engine implements the incremental document assembly core: natural
// key resolution, the policy-driven section merge, the derived lock
// projection, and the submit service that ties them to a record store.
package engine

import (
	"fmt"
	"strings"
	"time"

	"github.com/shiftledger-dev/shiftledger/internal/catalog"
	"github.com/shiftledger-dev/shiftledger/pkg/ledger"
)

// Date layouts accepted from clients. Whatever arrives, the key only ever
// keeps the calendar day.
var dateLayouts = []string{
	ledger.DayFormat,
	time.RFC3339,
	"02/01/2006",
}

// ResolveKey derives the canonical natural key for a submission. Every field
// the catalog marks as key-bearing must be present and non-empty; the date
// field is normalized to UTC midnight so two submissions on the same day
// resolve to the same key regardless of wall-clock time. Pure: no store
// access, no side effects.
func ResolveKey(cat *catalog.Catalog, kind string, rawFields map[string]string) (ledger.NaturalKey, error) {
	ks, ok := cat.Kind(kind)
	if !ok {
		return ledger.NaturalKey{}, fmt.Errorf("%q: %w", kind, ledger.ErrUnknownKind)
	}

	var key ledger.NaturalKey
	for _, kf := range ks.KeyFields {
		raw := strings.TrimSpace(rawFields[kf.Name])
		if raw == "" {
			return ledger.NaturalKey{}, &ledger.InvalidKeyError{
				Kind: kind, Field: kf.Name, Reason: "is required",
			}
		}
		if kf.Date {
			day, err := parseDay(raw)
			if err != nil {
				return ledger.NaturalKey{}, &ledger.InvalidKeyError{
					Kind: kind, Field: kf.Name, Reason: err.Error(),
				}
			}
			key.Date = day
		} else {
			key.Extra = append(key.Extra, ledger.KeyPart{Field: kf.Name, Value: raw})
		}
	}
	return key, nil
}

// parseDay parses a client-supplied date and strips the time of day.
func parseDay(raw string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
		}
	}
	return time.Time{}, fmt.Errorf("is not a recognized date: %q", raw)
}
