// Package server implements the line-based TCP protocol for shop-floor
// terminals and the SDK. Every command is one line; replies are "OK <json>",
// "ERR <code> <message>", or "PONG".
package server

import (
	"bufio"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/shiftledger-dev/shiftledger/pkg/ledger"
)

type Router struct {
	ledger ledger.Ledger
	cert   *tls.Certificate
	log    *zap.Logger

	mu       sync.Mutex
	listener net.Listener
	stopped  bool
}

func NewRouter(l ledger.Ledger, logger *zap.Logger) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{ledger: l, log: logger}
}

// SetCertificate sets the TLS certificate for the router.
func (r *Router) SetCertificate(cert tls.Certificate) {
	r.cert = &cert
}

// Listen starts the TCP server and blocks until Stop is called or the
// listener fails.
func (r *Router) Listen(port string) error {
	var listener net.Listener
	var err error

	if r.cert != nil {
		config := &tls.Config{Certificates: []tls.Certificate{*r.cert}}
		listener, err = tls.Listen("tcp", ":"+port, config)
	} else {
		listener, err = net.Listen("tcp", ":"+port)
	}
	if err != nil {
		return err
	}

	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		listener.Close()
		return nil
	}
	r.listener = listener
	r.mu.Unlock()
	defer listener.Close()

	r.log.Info("tcp protocol listening", zap.String("addr", listener.Addr().String()))

	semaphore := make(chan struct{}, 100) // Max 100 concurrent connections

	for {
		conn, err := listener.Accept()
		if err != nil {
			r.mu.Lock()
			stopped := r.stopped
			r.mu.Unlock()
			if stopped {
				return nil
			}
			continue
		}

		// Aggressive timeouts for light shop-floor traffic to prevent
		// resource exhaustion.
		conn.SetDeadline(time.Now().Add(5 * time.Minute))

		go func(c net.Conn) {
			semaphore <- struct{}{}
			defer func() {
				<-semaphore
				c.Close()
			}()
			r.handleConnection(c)
		}(conn)
	}
}

// Stop shuts the listener down.
func (r *Router) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopped = true
	if r.listener != nil {
		r.listener.Close()
	}
}

// Addr returns the listener address once Listen has bound it, or nil.
func (r *Router) Addr() net.Addr {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.listener == nil {
		return nil
	}
	return r.listener.Addr()
}

// submitArgs is the JSON argument of the SUBMIT command.
type submitArgs struct {
	Key     map[string]string `json:"key"`
	Payload map[string]any    `json:"payload"`
}

func (r *Router) handleConnection(conn net.Conn) {
	reader := bufio.NewReader(conn)

	for {
		// Deadline for the next command.
		conn.SetReadDeadline(time.Now().Add(30 * time.Second))

		line, err := reader.ReadString('\n')
		if err != nil {
			return // Connection closed or timeout
		}

		line = strings.TrimSpace(line)
		parts := strings.SplitN(line, " ", 4)
		if len(parts) < 1 || parts[0] == "" {
			continue
		}

		command := strings.ToUpper(parts[0])

		switch command {
		case "SUBMIT":
			// SUBMIT <kind> <section> <json {key, payload}>
			if len(parts) < 4 {
				writeErr(conn, ledger.CodeInternal, "usage: SUBMIT <kind> <section> <json>")
				continue
			}
			var args submitArgs
			if err := json.Unmarshal([]byte(parts[3]), &args); err != nil {
				writeErr(conn, ledger.CodeInternal, "invalid json argument")
				continue
			}
			res, err := r.ledger.SubmitSection(parts[1], parts[2], args.Key, args.Payload)
			writeResult(conn, res, err)

		case "GET":
			// GET <kind> <json key fields>
			if len(parts) < 3 {
				writeErr(conn, ledger.CodeInternal, "usage: GET <kind> <json>")
				continue
			}
			keyFields, ok := parseKeyFields(conn, strings.Join(parts[2:], " "))
			if !ok {
				continue
			}
			res, err := r.ledger.GetRecord(parts[1], keyFields)
			writeResult(conn, res, err)

		case "LOCKS":
			// LOCKS <kind> <json key fields>
			if len(parts) < 3 {
				writeErr(conn, ledger.CodeInternal, "usage: LOCKS <kind> <json>")
				continue
			}
			keyFields, ok := parseKeyFields(conn, strings.Join(parts[2:], " "))
			if !ok {
				continue
			}
			res, err := r.ledger.GetRecord(parts[1], keyFields)
			if err != nil {
				writeResult(conn, nil, err)
				continue
			}
			writeResult(conn, res.Locks, nil)

		case "KINDS":
			kinds, err := r.ledger.Kinds()
			writeResult(conn, kinds, err)

		case "SECTIONS":
			if len(parts) < 2 {
				writeErr(conn, ledger.CodeInternal, "usage: SECTIONS <kind>")
				continue
			}
			sections, err := r.ledger.Sections(parts[1])
			writeResult(conn, sections, err)

		case "KEYS":
			if len(parts) < 2 {
				writeErr(conn, ledger.CodeInternal, "usage: KEYS <kind>")
				continue
			}
			keys, err := r.ledger.ListKeys(parts[1])
			writeResult(conn, keys, err)

		case "PING":
			fmt.Fprintln(conn, "PONG")

		case "QUIT":
			return

		default:
			writeErr(conn, ledger.CodeInternal, fmt.Sprintf("unknown command %q", command))
		}
	}
}

func parseKeyFields(conn net.Conn, raw string) (map[string]string, bool) {
	var keyFields map[string]string
	if err := json.Unmarshal([]byte(raw), &keyFields); err != nil {
		writeErr(conn, ledger.CodeInternal, "invalid json argument")
		return nil, false
	}
	return keyFields, true
}

func writeResult(conn net.Conn, v any, err error) {
	if err != nil {
		writeErr(conn, ledger.CodeOf(err), err.Error())
		return
	}
	raw, err := json.Marshal(v)
	if err != nil {
		writeErr(conn, ledger.CodeInternal, "internal error")
		return
	}
	fmt.Fprintln(conn, "OK", string(raw))
}

func writeErr(conn net.Conn, code, msg string) {
	// Keep the message on one line; the protocol is line-delimited.
	msg = strings.ReplaceAll(msg, "\n", " ")
	fmt.Fprintln(conn, "ERR", code, msg)
}
