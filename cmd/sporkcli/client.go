package main

import (
	"errors"
	"fmt"
	"math/rand"
	"net"
	"time"

	"github.com/catocoin/sporkd/sporkwire"
)

// nodeClient is a minimal peer of a spork node. It only requests sporks and
// pushes signed updates.
type nodeClient struct {
	conn net.Conn

	// quiet is how long the node may stay silent before a read is
	// considered complete.
	quiet time.Duration
}

// dialNode connects to the spork node at addr.
func dialNode(addr string, timeout time.Duration) (*nodeClient, error) {
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to %v: %w", addr, err)
	}

	return newNodeClient(conn, timeout), nil
}

func newNodeClient(conn net.Conn, quiet time.Duration) *nodeClient {
	return &nodeClient{
		conn:  conn,
		quiet: quiet,
	}
}

// Close closes the connection to the node.
func (c *nodeClient) Close() error {
	return c.conn.Close()
}

// send writes msgs to the node in order.
func (c *nodeClient) send(msgs ...sporkwire.Message) error {
	for _, msg := range msgs {
		err := c.conn.SetWriteDeadline(time.Now().Add(c.quiet))
		if err != nil {
			return err
		}

		if _, err := sporkwire.WriteMessage(c.conn, msg, 0); err != nil {
			return fmt.Errorf("unable to send %v: %w", msg.MsgType(),
				err)
		}
	}

	return nil
}

// fetchSporks asks the node for its active sporks and collects the replies
// until the node stays quiet. The node answers an empty table with nothing
// at all, so an empty result is not an error.
func (c *nodeClient) fetchSporks() ([]sporkwire.Spork, error) {
	if err := c.send(&sporkwire.GetSporks{}); err != nil {
		return nil, err
	}

	// The ping round trip tells us the node has processed our request
	// even when it has no sporks to send.
	nonce := rand.Uint64()
	if err := c.send(sporkwire.NewPing(nonce)); err != nil {
		return nil, err
	}

	var sporks []sporkwire.Spork
	for {
		err := c.conn.SetReadDeadline(time.Now().Add(c.quiet))
		if err != nil {
			return nil, err
		}

		msg, err := sporkwire.ReadMessage(c.conn, 0)
		var unknownErr *sporkwire.UnknownMessage
		switch {
		case errors.As(err, &unknownErr):
			continue

		case isTimeout(err):
			return sporks, nil

		case err != nil:
			return nil, fmt.Errorf("unable to read from node: %w",
				err)
		}

		switch m := msg.(type) {
		case *sporkwire.Spork:
			sporks = append(sporks, *m)

		case *sporkwire.Ping:
			if err := c.send(sporkwire.NewPong(m.Nonce)); err != nil {
				return nil, err
			}

		case *sporkwire.Pong:
			// Replies to getsporks precede the pong.
			if m.Nonce == nonce {
				return sporks, nil
			}
		}
	}
}

// isTimeout reports whether err is a network timeout.
func isTimeout(err error) bool {
	var netErr net.Error

	return errors.As(err, &netErr) && netErr.Timeout()
}
