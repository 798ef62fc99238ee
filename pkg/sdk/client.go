// Package sdk provides the client-side library for interacting with the
// Shiftledger Store. It supports both remote connections via TCP/TLS and a
// local embedded mode.
package sdk

import (
	"bufio"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/shiftledger-dev/shiftledger/pkg/ledger"
)

// Client is a remote client for the Shiftledger Store. It implements the
// ledger.Ledger interface.
type Client struct {
	addr   string
	conn   net.Conn
	reader *bufio.Reader
	mu     sync.Mutex // Protects concurrent access to the connection
}

// Connect establishes a TLS-encrypted connection to a remote daemon. If
// SHIFTLEDGER_DISABLE_TLS is set to "true", it falls back to plain TCP.
func Connect(addr string) (*Client, error) {
	c := &Client{addr: addr}
	if err := c.reconnect(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Client) reconnect() error {
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}

	var conn net.Conn
	var err error

	dialer := &net.Dialer{
		Timeout:   10 * time.Second,
		KeepAlive: 60 * time.Second,
	}

	if os.Getenv("SHIFTLEDGER_DISABLE_TLS") == "true" {
		conn, err = dialer.Dial("tcp", c.addr)
	} else {
		config := &tls.Config{
			InsecureSkipVerify: true, // Self-signed certs for internal traffic
		}
		conn, err = tls.DialWithDialer(dialer, "tcp", c.addr, config)
	}

	if err != nil {
		return err
	}

	c.conn = conn
	c.reader = bufio.NewReader(conn)
	return nil
}

// sendAndReceive runs one command round-trip, reconnecting with backoff on
// transport errors. Protocol-level ERR replies are returned as typed errors
// and never retried here; policy retries belong to the engine.
func (c *Client) sendAndReceive(cmd string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var err error

	for i := 0; i < 3; i++ {
		if c.conn == nil {
			if reconnectErr := c.reconnect(); reconnectErr != nil {
				err = fmt.Errorf("reconnect failed: %w", reconnectErr)
				time.Sleep(time.Duration(i*100) * time.Millisecond)
				continue
			}
		}

		c.conn.SetDeadline(time.Now().Add(30 * time.Second))

		_, err = fmt.Fprint(c.conn, cmd+"\n")
		if err == nil {
			var resp string
			resp, err = c.reader.ReadString('\n')
			if err == nil {
				resp = strings.TrimSpace(resp)
				if strings.HasPrefix(resp, "ERR") {
					return "", parseErr(resp)
				}
				return resp, nil
			}
		}

		// Transport failure; force a reconnect and retry with backoff.
		if closeErr := c.reconnect(); closeErr != nil {
			fmt.Fprintf(os.Stderr, "[Shiftledger SDK] Reconnect attempt failed: %v\n", closeErr)
		}
		time.Sleep(time.Duration((i+1)*200) * time.Millisecond)
	}

	return "", fmt.Errorf("failed after 3 attempts. last error: %v", err)
}

// parseErr turns an "ERR <code> <message>" line back into a typed error.
func parseErr(line string) error {
	rest := strings.TrimSpace(strings.TrimPrefix(line, "ERR"))
	code, msg, found := strings.Cut(rest, " ")
	if !found {
		msg = rest
	}
	return ledger.FromCode(code, msg)
}

func decodeOK[T any](resp string) (T, error) {
	var out T
	raw := strings.TrimPrefix(resp, "OK ")
	err := json.Unmarshal([]byte(raw), &out)
	return out, err
}

func (c *Client) SubmitSection(kind, section string, keyFields map[string]string, payload map[string]any) (*ledger.SubmitResult, error) {
	arg, err := json.Marshal(map[string]any{"key": keyFields, "payload": payload})
	if err != nil {
		return nil, err
	}
	resp, err := c.sendAndReceive(fmt.Sprintf("SUBMIT %s %s %s", kind, section, string(arg)))
	if err != nil {
		return nil, err
	}
	return decodeOK[*ledger.SubmitResult](resp)
}

func (c *Client) GetRecord(kind string, keyFields map[string]string) (*ledger.SubmitResult, error) {
	arg, err := json.Marshal(keyFields)
	if err != nil {
		return nil, err
	}
	resp, err := c.sendAndReceive(fmt.Sprintf("GET %s %s", kind, string(arg)))
	if err != nil {
		return nil, err
	}
	return decodeOK[*ledger.SubmitResult](resp)
}

// GetLocks fetches only the lock projection for a record.
func (c *Client) GetLocks(kind string, keyFields map[string]string) (ledger.LockState, error) {
	arg, err := json.Marshal(keyFields)
	if err != nil {
		return nil, err
	}
	resp, err := c.sendAndReceive(fmt.Sprintf("LOCKS %s %s", kind, string(arg)))
	if err != nil {
		return nil, err
	}
	return decodeOK[ledger.LockState](resp)
}

func (c *Client) Kinds() ([]ledger.KindInfo, error) {
	resp, err := c.sendAndReceive("KINDS")
	if err != nil {
		return nil, err
	}
	return decodeOK[[]ledger.KindInfo](resp)
}

func (c *Client) Sections(kind string) ([]ledger.SectionInfo, error) {
	resp, err := c.sendAndReceive(fmt.Sprintf("SECTIONS %s", kind))
	if err != nil {
		return nil, err
	}
	return decodeOK[[]ledger.SectionInfo](resp)
}

func (c *Client) ListKeys(kind string) ([]string, error) {
	resp, err := c.sendAndReceive(fmt.Sprintf("KEYS %s", kind))
	if err != nil {
		return nil, err
	}
	return decodeOK[[]string](resp)
}

// Ping checks connectivity to the daemon.
func (c *Client) Ping() error {
	resp, err := c.sendAndReceive("PING")
	if err != nil {
		return err
	}
	if resp != "PONG" {
		return fmt.Errorf("unexpected ping reply %q", resp)
	}
	return nil
}

// Close terminates the connection.
func (c *Client) Close() error {
	fmt.Fprintln(c.conn, "QUIT")
	return c.conn.Close()
}

var _ ledger.Ledger = (*Client)(nil)
