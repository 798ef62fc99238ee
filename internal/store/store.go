// Package store holds the record store adapters: the only code that touches
// physical storage. Records are addressed by (kind, canonical natural key) and
// always read and written as whole documents.
package store

import "github.com/shiftledger-dev/shiftledger/pkg/ledger"

// RecordStore is the thin interface the merge engine persists through.
//
// Save is a compare-and-swap on the record's revision: expected 0 means
// insert, which fails with ledger.ErrDuplicateKey if a record already exists
// for the key (this is what lets the engine recover the create race by
// retrying as an update); expected > 0 means update, which fails with
// ledger.ErrRevisionConflict if a concurrent writer got there first. On
// success the store bumps rec.Revision to expected+1.
//
// I/O failures are wrapped in *ledger.StoreError; no partial write ever
// becomes visible.
type RecordStore interface {
	FindByKey(kind, key string) (*ledger.Record, error)
	Save(rec *ledger.Record, expected int64) error
	ListKeys(kind string) ([]string, error)
}
