package overrides

import (
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
)

// Conn is a NATS connection, optionally backed by an in-process server.
type Conn struct {
	NC       *nats.Conn
	embedded *server.Server
}

// reconnectWait spaces out attempts to reach an external server.
const reconnectWait = 2 * time.Second

// Connect dials url when one is given, otherwise starts an embedded
// JetStream server if embedded is set. An unreachable url is not an error:
// the connection keeps retrying in the background and store calls fail with
// ErrStoreUnavailable until it comes up. storeDir is only used by the
// embedded server.
func Connect(url string, embedded bool, storeDir string) (*Conn, error) {
	if url != "" {
		nc, err := nats.Connect(url,
			nats.Name("exercisehub"),
			nats.RetryOnFailedConnect(true),
			nats.MaxReconnects(-1),
			nats.ReconnectWait(reconnectWait),
		)
		if err != nil {
			return nil, fmt.Errorf("connect to NATS: %w", err)
		}
		return &Conn{NC: nc}, nil
	}
	if !embedded {
		return nil, errors.New("no NATS url and embedded server disabled")
	}

	ns, err := StartEmbedded(storeDir)
	if err != nil {
		return nil, err
	}
	nc, err := nats.Connect(ns.ClientURL())
	if err != nil {
		ns.Shutdown()
		return nil, fmt.Errorf("connect to embedded NATS: %w", err)
	}
	return &Conn{NC: nc, embedded: ns}, nil
}

// StartEmbedded runs a JetStream-enabled server on a random port.
func StartEmbedded(storeDir string) (*server.Server, error) {
	opts := &server.Options{
		Port:      -1,
		JetStream: true,
		StoreDir:  storeDir,
		NoLog:     true,
		NoSigs:    true,
	}

	ns, err := server.NewServer(opts)
	if err != nil {
		return nil, fmt.Errorf("create embedded NATS server: %w", err)
	}

	go ns.Start()

	if !ns.ReadyForConnections(5 * time.Second) {
		ns.Shutdown()
		return nil, errors.New("embedded NATS server failed to start")
	}
	return ns, nil
}

func (c *Conn) Close() {
	if c == nil {
		return
	}
	if c.NC != nil {
		if c.NC.IsConnected() {
			_ = c.NC.Drain()
		}
		c.NC.Close()
	}
	if c.embedded != nil {
		c.embedded.Shutdown()
		c.embedded.WaitForShutdown()
	}
}
