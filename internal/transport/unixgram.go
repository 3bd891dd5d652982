package transport

import (
	"context"
	"net"
	"time"

	"github.com/dtn-amp/agent/internal/amperr"
)

func deadlinePast() time.Time { return time.Now().Add(-time.Second) }

// UnixgramTransport implements both Sender and Receiver over a
// UNIX-domain datagram socket, the reference binary's listen-addr
// transport per spec section 6.2.
type UnixgramTransport struct {
	conn *net.UnixConn
}

// ListenUnixgram binds a UNIX datagram socket at path, removing any
// stale socket file first.
func ListenUnixgram(path string) (*UnixgramTransport, error) {
	addr, err := net.ResolveUnixAddr("unixgram", path)
	if err != nil {
		return nil, amperr.Wrap(amperr.KindTransport, err, "resolve unixgram address %q", path)
	}
	conn, err := net.ListenUnixgram("unixgram", addr)
	if err != nil {
		return nil, amperr.Wrap(amperr.KindTransport, err, "bind unixgram socket %q", path)
	}
	return &UnixgramTransport{conn: conn}, nil
}

// Recv blocks until a datagram arrives, ctx is cancelled, or the
// socket is closed.
func (t *UnixgramTransport) Recv(ctx context.Context) (Datagram, error) {
	buf := make([]byte, 65535)
	type result struct {
		n    int
		addr *net.UnixAddr
		err  error
	}
	done := make(chan result, 1)
	go func() {
		n, addr, err := t.conn.ReadFromUnix(buf)
		done <- result{n: n, addr: addr, err: err}
	}()
	select {
	case <-ctx.Done():
		t.conn.SetReadDeadline(deadlinePast())
		return Datagram{}, ctx.Err()
	case r := <-done:
		if r.err != nil {
			return Datagram{}, amperr.Wrap(amperr.KindTransport, r.err, "unixgram recv")
		}
		from := ""
		if r.addr != nil {
			from = r.addr.String()
		}
		return Datagram{Data: append([]byte(nil), buf[:r.n]...), From: from}, nil
	}
}

// Send writes data to the UNIX datagram socket named by to.
func (t *UnixgramTransport) Send(ctx context.Context, to string, data []byte) error {
	addr, err := net.ResolveUnixAddr("unixgram", to)
	if err != nil {
		return amperr.Wrap(amperr.KindTransport, err, "resolve unixgram destination %q", to)
	}
	if _, err := t.conn.WriteToUnix(data, addr); err != nil {
		return amperr.Wrap(amperr.KindTransport, err, "unixgram send to %q", to)
	}
	return nil
}

// Close releases the underlying socket.
func (t *UnixgramTransport) Close() error {
	return t.conn.Close()
}
