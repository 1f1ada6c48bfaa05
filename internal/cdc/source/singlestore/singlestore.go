// Package singlestore adapts a SingleStore cluster (MySQL wire protocol,
// via go-sql-driver/mysql) to the source interfaces. Each Conn wraps a
// dedicated *sql.Conn so the streaming OBSERVE query and the kill
// handshake each own a real server connection rather than a pool slot.
package singlestore

import (
	"context"
	"database/sql"
	"fmt"
	"io"

	"github.com/go-sql-driver/mysql"

	"github.com/julianstephens/cdcsync/internal/cdc/source"
)

// Compile-time interface compliance checks.
var (
	_ source.Connector = (*Connector)(nil)
	_ source.Conn      = (*Conn)(nil)
	_ source.RowStream = (*RowStream)(nil)
)

// Connector dials dedicated connections out of one driver pool.
type Connector struct {
	db *sql.DB
}

// NewConnector opens a driver pool for the given DSN. The pool is only a
// dialer here; every session connection is pinned with db.Conn.
func NewConnector(dsn string) (*Connector, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, &Error{Op: "parse dsn", Err: err}
	}
	// Streaming results must not be interrupted by driver-side timeouts.
	cfg.ReadTimeout = 0

	db, err := sql.Open("mysql", cfg.FormatDSN())
	if err != nil {
		return nil, &Error{Op: "open", Err: err}
	}
	return &Connector{db: db}, nil
}

// Connect pins one connection from the pool.
func (c *Connector) Connect(ctx context.Context) (source.Conn, error) {
	conn, err := c.db.Conn(ctx)
	if err != nil {
		return nil, wrap("connect", err)
	}
	return &Conn{conn: conn}, nil
}

// Close releases the underlying pool.
func (c *Connector) Close() error {
	return c.db.Close()
}

// Conn is one pinned server connection.
type Conn struct {
	conn *sql.Conn
}

func (c *Conn) Query(ctx context.Context, query string) (source.RowStream, error) {
	rows, err := c.conn.QueryContext(ctx, query)
	if err != nil {
		return nil, wrap("query", err)
	}
	return &RowStream{rows: rows}, nil
}

func (c *Conn) ThreadID(ctx context.Context) (uint64, error) {
	var id uint64
	if err := c.conn.QueryRowContext(ctx, "SELECT CONNECTION_ID()").Scan(&id); err != nil {
		return 0, wrap("thread id", err)
	}
	return id, nil
}

func (c *Conn) Kill(ctx context.Context, threadID uint64) error {
	if _, err := c.conn.ExecContext(ctx, fmt.Sprintf("KILL CONNECTION %d", threadID)); err != nil {
		return wrap("kill", err)
	}
	return nil
}

func (c *Conn) Alive(ctx context.Context, threadID uint64) (bool, error) {
	var n int
	err := c.conn.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM information_schema.PROCESSLIST WHERE ID = ?", threadID).Scan(&n)
	if err != nil {
		return false, wrap("alive", err)
	}
	return n > 0, nil
}

func (c *Conn) Close() error {
	return c.conn.Close()
}

// RowStream streams a result set row by row without materializing it.
type RowStream struct {
	rows *sql.Rows
	cols []string
}

// Next fetches one raw row. It returns io.EOF once the result set is
// exhausted cleanly; errors caused by a self-inflicted KILL satisfy
// source.IsCancellation.
func (s *RowStream) Next() ([]any, error) {
	if !s.rows.Next() {
		if err := s.rows.Err(); err != nil {
			return nil, wrap("fetch", err)
		}
		return nil, io.EOF
	}

	if s.cols == nil {
		cols, err := s.rows.Columns()
		if err != nil {
			return nil, wrap("columns", err)
		}
		s.cols = cols
	}

	vals := make([]any, len(s.cols))
	ptrs := make([]any, len(s.cols))
	for i := range vals {
		ptrs[i] = &vals[i]
	}
	if err := s.rows.Scan(ptrs...); err != nil {
		return nil, wrap("scan", err)
	}
	return vals, nil
}

func (s *RowStream) Close() error {
	return s.rows.Close()
}
