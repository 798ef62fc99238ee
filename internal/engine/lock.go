package engine

import (
	"github.com/shiftledger-dev/shiftledger/internal/catalog"
	"github.com/shiftledger-dev/shiftledger/pkg/ledger"
)

// ProjectLocks computes the editability of every field known to the schema
// from the stored record alone. It covers each section's declared static
// paths plus every stored leaf that falls under a wildcard pattern. Pure and
// recomputed on every read; lock state is never persisted, so it cannot drift
// from the data.
//
// A field is Locked iff its policy is OverwriteIfEmpty and its stored value is
// populated. AppendOnly fields stay editable for adding entries, and
// AlwaysOverwrite fields stay editable by definition.
func ProjectLocks(cat *catalog.Catalog, rec *ledger.Record) ledger.LockState {
	locks := make(ledger.LockState)
	if rec == nil {
		return locks
	}
	ks, ok := cat.Kind(rec.Kind)
	if !ok {
		return locks
	}

	for i := range ks.Sections {
		sec := &ks.Sections[i]
		data := map[string]any(rec.Section(sec.Name))

		paths := sec.StaticPaths()
		if data != nil {
			for _, l := range flatten("", data) {
				if _, owned := sec.Field(l.path); owned {
					paths = append(paths, l.path)
				}
			}
		}

		for _, path := range paths {
			qualified := sec.Name + "." + path
			if _, seen := locks[qualified]; seen {
				continue
			}
			f, owned := sec.Field(path)
			if !owned {
				continue
			}
			if f.Policy == catalog.OverwriteIfEmpty && isPopulated(getPath(data, path)) {
				locks[qualified] = ledger.Locked
			} else {
				locks[qualified] = ledger.Editable
			}
		}
	}
	return locks
}
