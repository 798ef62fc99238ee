package engine

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shiftledger-dev/shiftledger/internal/catalog"
	"github.com/shiftledger-dev/shiftledger/pkg/ledger"
)

func sandKey(t *testing.T, cat *catalog.Catalog) ledger.NaturalKey {
	t.Helper()
	key, err := ResolveKey(cat, catalog.KindSandTestingNote, map[string]string{
		"date":  "2024-03-01",
		"shift": "Shift 1",
	})
	require.NoError(t, err)
	return key
}

func mustApply(t *testing.T, cat *catalog.Catalog, existing *ledger.Record, kind, section string, key ledger.NaturalKey, payload map[string]any) *ledger.Record {
	t.Helper()
	rec, err := Apply(cat, existing, kind, section, key, payload)
	require.NoError(t, err)
	return rec
}

func TestApply_PrimaryCreatesRecord(t *testing.T) {
	cat := catalog.Builtin()
	key := sandKey(t, cat)

	rec := mustApply(t, cat, nil, catalog.KindSandTestingNote, "shift_details", key,
		map[string]any{"sand_plant_operator": "R. Patil"})

	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, catalog.KindSandTestingNote, rec.Kind)
	assert.Equal(t, "2024-03-01|shift=Shift 1", rec.Key.String())
	assert.Equal(t, "R. Patil", rec.Sections["shift_details"]["sand_plant_operator"])
	assert.Zero(t, rec.Revision)
}

func TestApply_NonPrimaryFirstFails(t *testing.T) {
	cat := catalog.Builtin()
	key := sandKey(t, cat)

	_, err := Apply(cat, nil, catalog.KindSandTestingNote, "clay_parameters", key,
		map[string]any{"total_clay": 9.8})
	assert.ErrorIs(t, err, ledger.ErrSectionNotPrimaryFirst)
}

func TestApply_UnknownKindAndSection(t *testing.T) {
	cat := catalog.Builtin()
	key := sandKey(t, cat)

	_, err := Apply(cat, nil, "no_such_kind", "shift_details", key, nil)
	assert.ErrorIs(t, err, ledger.ErrUnknownKind)

	_, err = Apply(cat, nil, catalog.KindSandTestingNote, "no_such_section", key, nil)
	assert.ErrorIs(t, err, ledger.ErrUnknownSection)
}

func TestApply_OverwriteIfEmptyLocksFirstValue(t *testing.T) {
	cat := catalog.Builtin()
	key := sandKey(t, cat)

	rec := mustApply(t, cat, nil, catalog.KindSandTestingNote, "shift_details", key,
		map[string]any{"sand_plant_operator": "R. Patil"})
	rec = mustApply(t, cat, rec, catalog.KindSandTestingNote, "clay_parameters", key,
		map[string]any{"total_clay": 9.8})

	// A later submission must not change the populated value, and must not
	// be an error either.
	rec = mustApply(t, cat, rec, catalog.KindSandTestingNote, "clay_parameters", key,
		map[string]any{"total_clay": 99.0, "active_clay": 7.1})

	assert.Equal(t, 9.8, rec.Sections["clay_parameters"]["total_clay"])
	assert.Equal(t, 7.1, rec.Sections["clay_parameters"]["active_clay"])
}

func TestApply_ZeroIsAMeasuredValue(t *testing.T) {
	cat := catalog.Builtin()
	key, err := ResolveKey(cat, catalog.KindCupolaHolderLog, map[string]string{
		"date": "2024-03-01", "shift": "Shift 1", "holder_number": "H001",
	})
	require.NoError(t, err)

	rec := mustApply(t, cat, nil, catalog.KindCupolaHolderLog, "shift_details", key,
		map[string]any{"incharge": "S. Rao"})

	// First submission stores 0; 0 is a legitimate reading, not "unfilled".
	rec = mustApply(t, cat, rec, catalog.KindCupolaHolderLog, "readings", key,
		map[string]any{"cpc": 0.0})
	rec = mustApply(t, cat, rec, catalog.KindCupolaHolderLog, "readings", key,
		map[string]any{"cpc": 12.5})

	assert.Equal(t, 0.0, rec.Sections["readings"]["cpc"])

	locks := ProjectLocks(cat, rec)
	assert.Equal(t, ledger.Locked, locks["readings.cpc"])
}

func TestApply_EmptyIncomingIsNoOp(t *testing.T) {
	cat := catalog.Builtin()
	key := sandKey(t, cat)

	rec := mustApply(t, cat, nil, catalog.KindSandTestingNote, "shift_details", key,
		map[string]any{"sand_plant_operator": "R. Patil"})
	rec = mustApply(t, cat, rec, catalog.KindSandTestingNote, "remarks", key,
		map[string]any{"lab_remarks": "moisture trending high"})

	// Empty string for a populated field: silent no-op, never a clear.
	rec = mustApply(t, cat, rec, catalog.KindSandTestingNote, "remarks", key,
		map[string]any{"lab_remarks": ""})
	assert.Equal(t, "moisture trending high", rec.Sections["remarks"]["lab_remarks"])

	// Empty string for a still-empty field leaves it unpopulated.
	rec = mustApply(t, cat, rec, catalog.KindSandTestingNote, "clay_parameters", key,
		map[string]any{"vcm": nil})
	assert.NotContains(t, rec.Sections["clay_parameters"], "vcm")
}

func TestApply_Idempotent(t *testing.T) {
	cat := catalog.Builtin()
	key := sandKey(t, cat)

	payload := map[string]any{
		"total_clay":  9.8,
		"active_clay": 7.1,
	}

	rec := mustApply(t, cat, nil, catalog.KindSandTestingNote, "shift_details", key,
		map[string]any{"sand_plant_operator": "R. Patil", "members": []any{"A", "B"}})
	once := mustApply(t, cat, rec, catalog.KindSandTestingNote, "clay_parameters", key, payload)
	twice := mustApply(t, cat, once, catalog.KindSandTestingNote, "clay_parameters", key, payload)

	if diff := cmp.Diff(once.Sections, twice.Sections); diff != "" {
		t.Errorf("sections changed on resubmission (-once +twice):\n%s", diff)
	}
}

func TestApply_AppendOnlyUnion(t *testing.T) {
	cat := catalog.Builtin()
	key := sandKey(t, cat)

	rec := mustApply(t, cat, nil, catalog.KindSandTestingNote, "shift_details", key,
		map[string]any{"members": []any{"A. Kumar", "B. Singh"}})
	rec = mustApply(t, cat, rec, catalog.KindSandTestingNote, "shift_details", key,
		map[string]any{"members": []any{"B. Singh", "C. Das"}})

	want := []any{"A. Kumar", "B. Singh", "C. Das"}
	assert.Equal(t, want, rec.Sections["shift_details"]["members"])

	// Monotonicity: a later submission never drops or reorders entries.
	rec = mustApply(t, cat, rec, catalog.KindSandTestingNote, "shift_details", key,
		map[string]any{"members": []any{"A. Kumar"}})
	assert.Equal(t, want, rec.Sections["shift_details"]["members"])
}

func TestApply_AlwaysOverwrite(t *testing.T) {
	cat := catalog.Builtin()
	key := sandKey(t, cat)

	rec := mustApply(t, cat, nil, catalog.KindSandTestingNote, "shift_details", key,
		map[string]any{"sand_plant_operator": "R. Patil"})
	rec = mustApply(t, cat, rec, catalog.KindSandTestingNote, "remarks", key,
		map[string]any{"reviewed": true, "reviewed_by": "QA1"})
	rec = mustApply(t, cat, rec, catalog.KindSandTestingNote, "remarks", key,
		map[string]any{"reviewed": false, "reviewed_by": "QA2"})

	assert.Equal(t, false, rec.Sections["remarks"]["reviewed"])
	assert.Equal(t, "QA2", rec.Sections["remarks"]["reviewed_by"])
}

func TestApply_IgnoresFieldsOfOtherSections(t *testing.T) {
	cat := catalog.Builtin()
	key := sandKey(t, cat)

	rec := mustApply(t, cat, nil, catalog.KindSandTestingNote, "shift_details", key,
		map[string]any{"sand_plant_operator": "R. Patil"})

	// The frontend reuses one payload shape for two sub-forms; only the
	// named section's fields may be applied.
	rec = mustApply(t, cat, rec, catalog.KindSandTestingNote, "clay_parameters", key,
		map[string]any{"total_clay": 9.8, "permeability": 120.0})

	assert.Equal(t, 9.8, rec.Sections["clay_parameters"]["total_clay"])
	assert.NotContains(t, rec.Sections["clay_parameters"], "permeability")
}

func TestApply_CreatesNestedParents(t *testing.T) {
	cat := catalog.Builtin()
	key := sandKey(t, cat)

	rec := mustApply(t, cat, nil, catalog.KindSandTestingNote, "shift_details", key,
		map[string]any{"sand_plant_operator": "R. Patil"})
	rec = mustApply(t, cat, rec, catalog.KindSandTestingNote, "sieve_testing", key,
		map[string]any{"retained": map[string]any{"mesh_70": 12.5}})

	retained, ok := rec.Sections["sieve_testing"]["retained"].(map[string]any)
	require.True(t, ok, "parent object should have been created")
	assert.Equal(t, 12.5, retained["mesh_70"])
}

func TestApply_ValidationIsAllOrNothing(t *testing.T) {
	cat := catalog.Builtin()
	key := sandKey(t, cat)

	rec := mustApply(t, cat, nil, catalog.KindSandTestingNote, "shift_details", key,
		map[string]any{"sand_plant_operator": "R. Patil"})

	_, err := Apply(cat, rec, catalog.KindSandTestingNote, "clay_parameters", key,
		map[string]any{"total_clay": "nine point eight", "active_clay": 7.1})

	var ve *ledger.ValidationError
	require.True(t, errors.As(err, &ve))
	require.Len(t, ve.Fields, 1)
	assert.Equal(t, "total_clay", ve.Fields[0].Path)

	// The good field must not have been applied either.
	assert.NotContains(t, rec.Sections["clay_parameters"], "active_clay")
}

func TestApply_InputRecordNeverMutated(t *testing.T) {
	cat := catalog.Builtin()
	key := sandKey(t, cat)

	rec := mustApply(t, cat, nil, catalog.KindSandTestingNote, "shift_details", key,
		map[string]any{"sand_plant_operator": "R. Patil"})
	before := rec.Clone()

	mustApply(t, cat, rec, catalog.KindSandTestingNote, "clay_parameters", key,
		map[string]any{"total_clay": 9.8})

	if diff := cmp.Diff(before.Sections, rec.Sections); diff != "" {
		t.Errorf("input record was mutated:\n%s", diff)
	}
}

func TestApply_CommutesOnDisjointSections(t *testing.T) {
	cat := catalog.Builtin()
	key := sandKey(t, cat)

	base := mustApply(t, cat, nil, catalog.KindSandTestingNote, "shift_details", key,
		map[string]any{"sand_plant_operator": "R. Patil"})

	clay := map[string]any{"total_clay": 9.8, "active_clay": 7.1}
	tests := map[string]any{"permeability": 120.0, "moisture": 3.4}

	ab := mustApply(t, cat, base, catalog.KindSandTestingNote, "clay_parameters", key, clay)
	ab = mustApply(t, cat, ab, catalog.KindSandTestingNote, "test_parameters", key, tests)

	ba := mustApply(t, cat, base, catalog.KindSandTestingNote, "test_parameters", key, tests)
	ba = mustApply(t, cat, ba, catalog.KindSandTestingNote, "clay_parameters", key, clay)

	if diff := cmp.Diff(ab.Sections, ba.Sections); diff != "" {
		t.Errorf("merge order changed the outcome (-ab +ba):\n%s", diff)
	}
}
