package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shiftledger-dev/shiftledger/internal/catalog"
	"github.com/shiftledger-dev/shiftledger/pkg/ledger"
)

func TestProjectLocks_LockedIffPopulatedOverwriteIfEmpty(t *testing.T) {
	cat := catalog.Builtin()
	key := sandKey(t, cat)

	rec := mustApply(t, cat, nil, catalog.KindSandTestingNote, "shift_details", key,
		map[string]any{"sand_plant_operator": "R. Patil", "members": []any{"A. Kumar"}})
	rec = mustApply(t, cat, rec, catalog.KindSandTestingNote, "clay_parameters", key,
		map[string]any{"total_clay": 9.8})

	locks := ProjectLocks(cat, rec)

	assert.Equal(t, ledger.Locked, locks["shift_details.sand_plant_operator"])
	assert.Equal(t, ledger.Locked, locks["clay_parameters.total_clay"])
	// Declared but still empty: editable.
	assert.Equal(t, ledger.Editable, locks["clay_parameters.active_clay"])
	assert.Equal(t, ledger.Editable, locks["test_parameters.permeability"])
	// AppendOnly fields stay editable even when populated.
	assert.Equal(t, ledger.Editable, locks["shift_details.members"])
	// AlwaysOverwrite fields stay editable by definition.
	assert.Equal(t, ledger.Editable, locks["remarks.reviewed"])
}

func TestProjectLocks_WildcardLeaves(t *testing.T) {
	cat := catalog.Builtin()
	key := sandKey(t, cat)

	rec := mustApply(t, cat, nil, catalog.KindSandTestingNote, "shift_details", key,
		map[string]any{"sand_plant_operator": "R. Patil"})
	rec = mustApply(t, cat, rec, catalog.KindSandTestingNote, "sieve_testing", key,
		map[string]any{"retained": map[string]any{"mesh_70": 12.5}})

	locks := ProjectLocks(cat, rec)
	assert.Equal(t, ledger.Locked, locks["sieve_testing.retained.mesh_70"])
	// Unstored wildcard leaves are simply absent from the projection.
	assert.NotContains(t, locks, "sieve_testing.retained.mesh_100")
}

func TestProjectLocks_NeverPersisted(t *testing.T) {
	cat := catalog.Builtin()
	key := sandKey(t, cat)

	rec := mustApply(t, cat, nil, catalog.KindSandTestingNote, "shift_details", key,
		map[string]any{"sand_plant_operator": "R. Patil"})

	first := ProjectLocks(cat, rec)
	require.Equal(t, ledger.Locked, first["shift_details.sand_plant_operator"])

	// Mutating one projection must not leak into the next.
	first["shift_details.sand_plant_operator"] = ledger.Editable
	second := ProjectLocks(cat, rec)
	assert.Equal(t, ledger.Locked, second["shift_details.sand_plant_operator"])
}

func TestProjectLocks_NilRecord(t *testing.T) {
	cat := catalog.Builtin()
	assert.Empty(t, ProjectLocks(cat, nil))
}
