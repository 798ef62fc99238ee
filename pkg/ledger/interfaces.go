package ledger

// --- Functional Interfaces (Interface Segregation) ---

// SectionSubmitter is the single write entry point of the engine. A submission
// carries the record kind, the section name, the raw natural-key fields as
// entered by the client, and the partial payload of that one sub-form.
type SectionSubmitter interface {
	SubmitSection(kind, section string, keyFields map[string]string, payload map[string]any) (*SubmitResult, error)
}

// RecordReader fetches a record and its freshly projected lock state.
type RecordReader interface {
	GetRecord(kind string, keyFields map[string]string) (*SubmitResult, error)
}

// CatalogReader allows discovering record kinds and their sections.
type CatalogReader interface {
	Kinds() ([]KindInfo, error)
	Sections(kind string) ([]SectionInfo, error)
}

// KeyEnumeration lists the natural keys with stored records for a kind.
type KeyEnumeration interface {
	ListKeys(kind string) ([]string, error)
}

// --- Composite Interface ---

// Ledger is the primary interface for interacting with the store. Both the
// embedded engine and the remote network client implement it.
type Ledger interface {
	SectionSubmitter
	RecordReader
	CatalogReader
	KeyEnumeration
}
