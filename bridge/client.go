package bridge

import (
	"fmt"
	"io"
	"net"
	"time"

	"github.com/visagate/visagate/scpi"
)

// clientDialTimeout bounds how long Client waits to establish a connection.
const clientDialTimeout = 3 * time.Second

// Client is a minimal client for the bridge wire protocol. Every call dials a
// fresh connection, sends one command line and reads the single reply,
// mirroring the one-command-per-connection contract of the server.
type Client struct {
	addr string
}

// NewClient creates a Client that talks to the bridge at the given
// "host:port" address.
func NewClient(addr string) *Client {
	return &Client{addr: addr}
}

// Query sends one command and returns the reply with trailing line
// terminators removed. For a query command the reply is the instrument
// payload; for any other command it is the acknowledgment text.
func (c *Client) Query(cmd string) (string, error) {
	return c.roundTrip(cmd)
}

// Send sends one command and discards the acknowledgment.
func (c *Client) Send(cmd string) error {
	_, err := c.roundTrip(cmd)
	return err
}

func (c *Client) roundTrip(cmd string) (string, error) {
	conn, err := net.DialTimeout("tcp", c.addr, clientDialTimeout)
	if err != nil {
		return "", fmt.Errorf("dial %s: %w", c.addr, err)
	}
	defer func() { _ = conn.Close() }()

	if _, err := conn.Write([]byte(scpi.TrimLine(cmd) + "\n")); err != nil {
		return "", fmt.Errorf("send command: %w", err)
	}

	// the server closes the connection after the reply
	data, err := io.ReadAll(conn)
	if err != nil {
		return "", fmt.Errorf("read reply: %w", err)
	}

	return scpi.TrimResponse(string(data)), nil
}
