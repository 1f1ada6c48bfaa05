// Package source defines the capabilities the observation session needs
// from a record source: issue a streaming query, fetch rows, and
// identify/terminate server-side connections. The core depends only on
// these interfaces, not on a specific wire protocol.
package source

import "context"

// Connector dials a new connection to the source system. A session opens
// two: one for the streaming query and one reserved for cancellation.
type Connector interface {
	Connect(ctx context.Context) (Conn, error)
}

// Conn is one bidirectional session with the source system.
type Conn interface {
	// Query issues a statement and returns its (possibly unbounded)
	// result stream.
	Query(ctx context.Context, query string) (RowStream, error)

	// ThreadID identifies this connection on the server, for use with
	// Kill from another connection.
	ThreadID(ctx context.Context) (uint64, error)

	// Kill requests server-side termination of the connection with the
	// given id.
	Kill(ctx context.Context, threadID uint64) error

	// Alive reports whether the server still tracks the connection with
	// the given id. Used to confirm a Kill took effect.
	Alive(ctx context.Context, threadID uint64) (bool, error)

	Close() error
}

// RowStream yields raw rows one at a time. Next blocks until a row is
// available and returns io.EOF once the stream is exhausted.
type RowStream interface {
	Next() ([]any, error)
	Close() error
}
