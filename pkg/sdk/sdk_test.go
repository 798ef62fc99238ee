package sdk_test

import (
	"errors"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/shiftledger-dev/shiftledger/internal/catalog"
	"github.com/shiftledger-dev/shiftledger/internal/engine"
	"github.com/shiftledger-dev/shiftledger/internal/server"
	"github.com/shiftledger-dev/shiftledger/internal/store"
	"github.com/shiftledger-dev/shiftledger/pkg/ledger"
	"github.com/shiftledger-dev/shiftledger/pkg/sdk"
)

// startTestDaemon runs a real protocol server on a random port, plain TCP.
func startTestDaemon(t *testing.T) string {
	t.Helper()
	t.Setenv("SHIFTLEDGER_DISABLE_TLS", "true")

	svc := engine.NewService(catalog.Builtin(), store.NewMemStore(nil, nil), nil)
	router := server.NewRouter(svc, nil)
	go router.Listen("0")

	var addr string
	for i := 0; i < 20; i++ {
		time.Sleep(50 * time.Millisecond)
		if a := router.Addr(); a != nil {
			addr = fmt.Sprintf("127.0.0.1:%d", a.(*net.TCPAddr).Port)
			break
		}
	}
	if addr == "" {
		t.Fatalf("Server did not start in time")
	}
	t.Cleanup(router.Stop)
	return addr
}

func TestClient_Integration(t *testing.T) {
	addr := startTestDaemon(t)

	client, err := sdk.Connect(addr)
	if err != nil {
		t.Fatalf("Failed to connect: %v", err)
	}
	defer client.Close()

	if err := client.Ping(); err != nil {
		t.Fatalf("Ping failed: %v", err)
	}

	kinds, err := client.Kinds()
	if err != nil {
		t.Fatalf("Kinds failed: %v", err)
	}
	if len(kinds) != 6 {
		t.Errorf("Expected 6 kinds, got %d", len(kinds))
	}

	key := map[string]string{"date": "2024-03-01", "shift": "Shift 1"}

	res, err := client.SubmitSection("sand_testing_note", "shift_details", key,
		map[string]any{"sand_plant_operator": "R. Patil"})
	if err != nil {
		t.Fatalf("SubmitSection failed: %v", err)
	}
	if res.Record.Revision != 1 {
		t.Errorf("Expected revision 1, got %d", res.Record.Revision)
	}
	if res.Locks["shift_details.sand_plant_operator"] != ledger.Locked {
		t.Errorf("Expected locked operator field, got %v", res.Locks)
	}

	// Read endpoints.
	got, err := client.GetRecord("sand_testing_note", key)
	if err != nil {
		t.Fatalf("GetRecord failed: %v", err)
	}
	if got.Record.Sections["shift_details"]["sand_plant_operator"] != "R. Patil" {
		t.Errorf("GetRecord mismatch: %v", got.Record.Sections)
	}

	locks, err := client.GetLocks("sand_testing_note", key)
	if err != nil {
		t.Fatalf("GetLocks failed: %v", err)
	}
	if locks["clay_parameters.total_clay"] != ledger.Editable {
		t.Errorf("Expected editable clay field, got %v", locks)
	}

	keys, err := client.ListKeys("sand_testing_note")
	if err != nil {
		t.Fatalf("ListKeys failed: %v", err)
	}
	if len(keys) != 1 || keys[0] != "2024-03-01|shift=Shift 1" {
		t.Errorf("Unexpected keys: %v", keys)
	}

	sections, err := client.Sections("sand_testing_note")
	if err != nil {
		t.Fatalf("Sections failed: %v", err)
	}
	if len(sections) != 6 {
		t.Errorf("Expected 6 sections, got %d", len(sections))
	}
}

func TestClient_TypedErrorsRoundTrip(t *testing.T) {
	addr := startTestDaemon(t)

	client, err := sdk.Connect(addr)
	if err != nil {
		t.Fatalf("Failed to connect: %v", err)
	}
	defer client.Close()

	// Dependent section before the primary comes back as the sentinel, not a
	// plain string, so terminal software can branch on it.
	_, err = client.SubmitSection("sand_testing_note", "clay_parameters",
		map[string]string{"date": "2024-03-01", "shift": "Shift 1"},
		map[string]any{"total_clay": 9.8})
	if !errors.Is(err, ledger.ErrSectionNotPrimaryFirst) {
		t.Errorf("Expected ErrSectionNotPrimaryFirst, got %v", err)
	}

	_, err = client.GetRecord("sand_testing_note",
		map[string]string{"date": "2024-03-01", "shift": "Shift 1"})
	if !errors.Is(err, ledger.ErrRecordNotFound) {
		t.Errorf("Expected ErrRecordNotFound, got %v", err)
	}

	_, err = client.Kinds()
	if err != nil {
		t.Errorf("Kinds after errors failed: %v", err)
	}

	_, err = client.SubmitSection("no_such_kind", "shift_details",
		map[string]string{"date": "2024-03-01"}, nil)
	if !errors.Is(err, ledger.ErrUnknownKind) {
		t.Errorf("Expected ErrUnknownKind, got %v", err)
	}

	var ik *ledger.InvalidKeyError
	_, err = client.SubmitSection("sand_testing_note", "shift_details",
		map[string]string{"date": "yesterday", "shift": "Shift 1"}, nil)
	if !errors.As(err, &ik) {
		t.Errorf("Expected InvalidKeyError, got %v", err)
	}
}

func TestClient_MergeThroughWire(t *testing.T) {
	addr := startTestDaemon(t)

	client, err := sdk.Connect(addr)
	if err != nil {
		t.Fatalf("Failed to connect: %v", err)
	}
	defer client.Close()

	key := map[string]string{"date": "2024-03-01", "shift": "Shift 1"}

	if _, err := client.SubmitSection("sand_testing_note", "shift_details", key,
		map[string]any{"sand_plant_operator": "R. Patil"}); err != nil {
		t.Fatalf("Primary submit failed: %v", err)
	}
	if _, err := client.SubmitSection("sand_testing_note", "clay_parameters", key,
		map[string]any{"total_clay": 9.8}); err != nil {
		t.Fatalf("Section submit failed: %v", err)
	}

	// A later write to a locked field is silently kept out.
	res, err := client.SubmitSection("sand_testing_note", "clay_parameters", key,
		map[string]any{"total_clay": 99.0})
	if err != nil {
		t.Fatalf("Resubmit failed: %v", err)
	}
	if res.Record.Sections["clay_parameters"]["total_clay"] != 9.8 {
		t.Errorf("Locked value changed: %v", res.Record.Sections["clay_parameters"])
	}
	if res.Record.Revision < 2 {
		t.Errorf("Expected revision to advance, got %d", res.Record.Revision)
	}
}

func TestClient_ReconnectDoesNotPanic(t *testing.T) {
	t.Setenv("SHIFTLEDGER_DISABLE_TLS", "true")

	svc := engine.NewService(catalog.Builtin(), store.NewMemStore(nil, nil), nil)
	router := server.NewRouter(svc, nil)
	go router.Listen("0")

	var addr string
	for i := 0; i < 20; i++ {
		time.Sleep(50 * time.Millisecond)
		if a := router.Addr(); a != nil {
			addr = fmt.Sprintf("127.0.0.1:%d", a.(*net.TCPAddr).Port)
			break
		}
	}
	if addr == "" {
		t.Fatalf("Server did not start in time")
	}

	client, err := sdk.Connect(addr)
	if err != nil {
		t.Fatalf("Failed to connect: %v", err)
	}

	// Kill the server so no more connections can be accepted. The client must
	// fail with an error, not hang or panic.
	router.Stop()
	time.Sleep(100 * time.Millisecond)

	client.Ping()
	if _, err := client.Kinds(); err == nil {
		// The first command may still succeed on the half-open connection;
		// the second is expected to surface a transport error eventually.
		t.Log("Kinds unexpectedly succeeded after server stop")
	}
}

func TestEmbedded_Fallback(t *testing.T) {
	// Without SHIFTLEDGER_ADDR, New runs the engine in-process.
	t.Setenv("SHIFTLEDGER_ADDR", "")

	l, err := sdk.New(t.TempDir())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	res, err := l.SubmitSection("moulding_report", "shift_details",
		map[string]string{"date": "2024-03-01", "shift": "Shift 2"},
		map[string]any{"incharge": "K. Iyer"})
	if err != nil {
		t.Fatalf("Embedded SubmitSection failed: %v", err)
	}
	if res.Record.Revision != 1 {
		t.Errorf("Expected revision 1, got %d", res.Record.Revision)
	}

	keys, err := l.ListKeys("moulding_report")
	if err != nil || len(keys) != 1 {
		t.Errorf("Embedded ListKeys failed: %v, %v", keys, err)
	}
}
