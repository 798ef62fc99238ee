package engine

import (
	"errors"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/shiftledger-dev/shiftledger/internal/catalog"
	"github.com/shiftledger-dev/shiftledger/internal/store"
	"github.com/shiftledger-dev/shiftledger/pkg/ledger"
)

// maxMergeAttempts bounds the read-merge-save loop. The first retry covers
// the documented create race (duplicate key, retried as update); further
// retries cover revision conflicts between concurrent section submissions to
// the same key.
const maxMergeAttempts = 3

// Service is the embedded engine: the single entry point request handlers and
// the SDK's local mode submit through. It implements ledger.Ledger.
type Service struct {
	cat   *catalog.Catalog
	store store.RecordStore
	log   *zap.Logger
}

// NewService wires the catalog and a record store into a service. A nil
// logger disables logging.
func NewService(cat *catalog.Catalog, rs store.RecordStore, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{cat: cat, store: rs, log: logger}
}

// SubmitSection runs one whole submission: resolve the key, fetch the current
// record, merge the section, persist, and project the fresh lock state.
//
// The save is a compare-and-swap; on a duplicate-key or revision conflict the
// whole read-merge-save cycle is retried against the now-current record, so a
// lost race never loses the caller's payload and never partially applies it.
func (s *Service) SubmitSection(kind, section string, keyFields map[string]string, payload map[string]any) (*ledger.SubmitResult, error) {
	key, err := ResolveKey(s.cat, kind, keyFields)
	if err != nil {
		return nil, err
	}
	canonical := key.String()

	var lastErr error
	for attempt := 0; attempt < maxMergeAttempts; attempt++ {
		existing, err := s.store.FindByKey(kind, canonical)
		if err != nil && !errors.Is(err, ledger.ErrRecordNotFound) {
			return nil, err
		}

		merged, err := Apply(s.cat, existing, kind, section, key, payload)
		if err != nil {
			return nil, err
		}

		var expected int64
		if existing != nil {
			expected = existing.Revision
		}
		err = s.store.Save(merged, expected)
		if err == nil {
			s.log.Info("section merged",
				zap.String("kind", kind),
				zap.String("section", section),
				zap.String("key", canonical),
				zap.Int64("revision", merged.Revision))
			return &ledger.SubmitResult{
				Record: merged,
				Locks:  ProjectLocks(s.cat, merged),
			}, nil
		}
		if errors.Is(err, ledger.ErrDuplicateKey) ||
			errors.Is(err, ledger.ErrRevisionConflict) ||
			errors.Is(err, ledger.ErrRecordNotFound) {
			s.log.Debug("save raced with concurrent writer, retrying merge",
				zap.String("kind", kind),
				zap.String("key", canonical),
				zap.Error(err))
			lastErr = err
			continue
		}
		return nil, err
	}
	return nil, fmt.Errorf("gave up after %d merge attempts: %w", maxMergeAttempts, lastErr)
}

// GetRecord fetches a record by its raw key fields and projects its current
// lock state.
func (s *Service) GetRecord(kind string, keyFields map[string]string) (*ledger.SubmitResult, error) {
	key, err := ResolveKey(s.cat, kind, keyFields)
	if err != nil {
		return nil, err
	}
	rec, err := s.store.FindByKey(kind, key.String())
	if err != nil {
		return nil, err
	}
	return &ledger.SubmitResult{Record: rec, Locks: ProjectLocks(s.cat, rec)}, nil
}

// Kinds lists every registered record kind with its sections.
func (s *Service) Kinds() ([]ledger.KindInfo, error) {
	var out []ledger.KindInfo
	for _, name := range s.cat.KindNames() {
		k, _ := s.cat.Kind(name)
		out = append(out, k.Info())
	}
	return out, nil
}

// Sections lists the sections of one kind.
func (s *Service) Sections(kind string) ([]ledger.SectionInfo, error) {
	k, ok := s.cat.Kind(kind)
	if !ok {
		return nil, fmt.Errorf("%q: %w", kind, ledger.ErrUnknownKind)
	}
	return k.Info().Sections, nil
}

// ListKeys returns the canonical natural keys with stored records for a kind,
// sorted.
func (s *Service) ListKeys(kind string) ([]string, error) {
	if _, ok := s.cat.Kind(kind); !ok {
		return nil, fmt.Errorf("%q: %w", kind, ledger.ErrUnknownKind)
	}
	keys, err := s.store.ListKeys(kind)
	if err != nil {
		return nil, err
	}
	sort.Strings(keys)
	return keys, nil
}

var _ ledger.Ledger = (*Service)(nil)
