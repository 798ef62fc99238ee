package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"

	"github.com/natefinch/atomic"

	"github.com/shiftledger-dev/shiftledger/pkg/ledger"
)

// Persistence handles the disk I/O for the MemStore. Each record kind lives in
// its own JSON file, written atomically so a crash leaves either the old file
// or the new one, never a torn write.
type Persistence struct {
	DataDir string
	mu      sync.Mutex // Protects concurrent writes to the filesystem
}

// NewPersistence initializes a persistence handler.
func NewPersistence(dir string) (*Persistence, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	return &Persistence{DataDir: dir}, nil
}

// SaveKind writes one kind's records to a JSON file atomically.
func (p *Persistence) SaveKind(kind string, recs map[string]*ledger.Record) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	raw, err := json.MarshalIndent(recs, "", "  ")
	if err != nil {
		return err
	}

	filePath := filepath.Join(p.DataDir, fmt.Sprintf("%s.json", kind))
	return atomic.WriteFile(filePath, bytes.NewReader(raw))
}

// LoadAll returns all records found in the data directory, grouped by kind.
func (p *Persistence) LoadAll() (map[string]map[string]*ledger.Record, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	allData := make(map[string]map[string]*ledger.Record)

	files, err := os.ReadDir(p.DataDir)
	if err != nil {
		return nil, err
	}

	for _, file := range files {
		if filepath.Ext(file.Name()) != ".json" {
			continue
		}
		kind := file.Name()[:len(file.Name())-5] // Strip .json

		content, err := os.ReadFile(filepath.Join(p.DataDir, file.Name()))
		if err != nil {
			log.Printf("Warning: Could not read record file %s: %v", file.Name(), err)
			continue // Skip corrupted/unreadable files
		}

		var recs map[string]*ledger.Record
		if err := json.Unmarshal(content, &recs); err != nil {
			log.Printf("Warning: Could not unmarshal records from %s: %v", file.Name(), err)
			continue
		}
		allData[kind] = recs
	}
	return allData, nil
}
