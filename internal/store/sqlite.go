package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/shiftledger-dev/shiftledger/pkg/ledger"
)

// SQLiteStore persists records in a single SQLite database. The UNIQUE index
// on (kind, natural_key) is what makes Save's insert path atomic under the
// primary-section create race, and the revision column backs the
// compare-and-swap on updates.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the database at the given path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single writer keeps the CAS semantics simple under the sqlite driver.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS records (
		id TEXT NOT NULL,
		kind TEXT NOT NULL,
		natural_key TEXT NOT NULL,
		doc TEXT NOT NULL,
		revision INTEGER NOT NULL,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL,
		UNIQUE(kind, natural_key)
	);
	CREATE INDEX IF NOT EXISTS idx_records_kind ON records(kind);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	return nil
}

// Close releases the database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) FindByKey(kind, key string) (*ledger.Record, error) {
	var doc string
	err := s.db.QueryRow(
		`SELECT doc FROM records WHERE kind = ? AND natural_key = ?`, kind, key,
	).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ledger.ErrRecordNotFound
	}
	if err != nil {
		return nil, &ledger.StoreError{Op: "find", Err: err}
	}

	var rec ledger.Record
	if err := json.Unmarshal([]byte(doc), &rec); err != nil {
		return nil, &ledger.StoreError{Op: "find", Err: err}
	}
	return &rec, nil
}

func (s *SQLiteStore) Save(rec *ledger.Record, expected int64) error {
	rec.Revision = expected + 1
	doc, err := json.Marshal(rec)
	if err != nil {
		return &ledger.StoreError{Op: "save", Err: err}
	}
	key := rec.Key.String()
	now := time.Now().UTC()

	if expected == 0 {
		_, err := s.db.Exec(
			`INSERT INTO records (id, kind, natural_key, doc, revision, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			rec.ID, rec.Kind, key, string(doc), rec.Revision, now, now,
		)
		if err != nil {
			// modernc/sqlite reports constraint violations by message; the
			// only UNIQUE index on this table is (kind, natural_key).
			if strings.Contains(err.Error(), "UNIQUE constraint failed") {
				return ledger.ErrDuplicateKey
			}
			return &ledger.StoreError{Op: "save", Err: err}
		}
		return nil
	}

	res, err := s.db.Exec(
		`UPDATE records SET doc = ?, revision = ?, updated_at = ?
		 WHERE kind = ? AND natural_key = ? AND revision = ?`,
		string(doc), rec.Revision, now, rec.Kind, key, expected,
	)
	if err != nil {
		return &ledger.StoreError{Op: "save", Err: err}
	}
	n, err := res.RowsAffected()
	if err != nil {
		return &ledger.StoreError{Op: "save", Err: err}
	}
	if n == 0 {
		// Either the record vanished or a concurrent writer bumped the
		// revision first. Both are resolved by re-reading and re-merging.
		return ledger.ErrRevisionConflict
	}
	return nil
}

func (s *SQLiteStore) ListKeys(kind string) ([]string, error) {
	rows, err := s.db.Query(
		`SELECT natural_key FROM records WHERE kind = ? ORDER BY natural_key`, kind,
	)
	if err != nil {
		return nil, &ledger.StoreError{Op: "list", Err: err}
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, &ledger.StoreError{Op: "list", Err: err}
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}
