// Package transport defines the datagram transport boundary the agent
// sends and receives framed messages over, plus one concrete adapter
// (a UNIX-domain datagram socket) grounded in the teacher's net.Conn
// style I/O used by its grpc server's listener setup.
package transport

import "context"

// Datagram is one inbound unit: the raw bytes and the sender's address
// string (used as the manager EID for ACL purposes and as the reply
// destination).
type Datagram struct {
	Data []byte
	From string
}

// Receiver reads inbound datagrams until ctx is cancelled or the
// underlying transport is closed.
type Receiver interface {
	Recv(ctx context.Context) (Datagram, error)
	Close() error
}

// Sender writes an outbound datagram to a destination address.
type Sender interface {
	Send(ctx context.Context, to string, data []byte) error
	Close() error
}
