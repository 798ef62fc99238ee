package sdk

import (
	"os"

	"github.com/shiftledger-dev/shiftledger/internal/catalog"
	"github.com/shiftledger-dev/shiftledger/internal/engine"
	"github.com/shiftledger-dev/shiftledger/internal/store"
	"github.com/shiftledger-dev/shiftledger/pkg/ledger"
)

// New initializes the store based on the environment. It returns the
// interface, so the app doesn't care if it's local or remote.
func New(dataDir string) (ledger.Ledger, error) {
	// 1. Check if a remote daemon is defined in the environment.
	remoteAddr := os.Getenv("SHIFTLEDGER_ADDR")

	if remoteAddr != "" {
		client, err := Connect(remoteAddr)
		if err == nil {
			return client, nil
		}
		// If the connection fails, fall back to local mode below.
	}

	// 2. Fallback to embedded mode. This uses the same engine the daemon
	// uses, but inside the app process.
	p, err := store.NewPersistence(dataDir)
	if err != nil {
		return nil, err
	}

	allData, err := p.LoadAll()
	if err != nil {
		return nil, err
	}

	rs := store.NewMemStore(allData, p)
	return engine.NewService(catalog.Builtin(), rs, nil), nil
}
