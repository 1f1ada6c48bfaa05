package testutil

import (
	"context"
	"sync"

	"github.com/julianstephens/cdcsync/internal/cdc/source"
)

// Compile-time interface compliance checks.
var (
	_ source.Connector = (*FakeCluster)(nil)
	_ source.Conn      = (*FakeConn)(nil)
)

// FakeCluster fakes a database cluster for session tests: every Connect
// yields a connection with a fresh thread id, Kill marks a thread dead,
// and Alive reads the shared thread table. Queries pop streams from the
// configured queue.
type FakeCluster struct {
	mu      sync.Mutex
	nextID  uint64
	alive   map[uint64]bool
	streams []source.RowStream

	// IgnoreKill makes Kill a no-op so killed threads stay alive. Used to
	// exercise the bounded confirmation poll.
	IgnoreKill bool

	// ConnectErr fails every Connect attempt.
	ConnectErr error

	Queries []string
	Kills   []uint64
}

// NewFakeCluster builds a cluster whose successive queries stream the
// given row sets.
func NewFakeCluster(streams ...source.RowStream) *FakeCluster {
	return &FakeCluster{
		alive:   make(map[uint64]bool),
		streams: streams,
	}
}

func (c *FakeCluster) Connect(ctx context.Context) (source.Conn, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ConnectErr != nil {
		return nil, c.ConnectErr
	}
	c.nextID++
	c.alive[c.nextID] = true
	return &FakeConn{cluster: c, id: c.nextID}, nil
}

// ThreadAlive reports whether the given thread is still registered live.
func (c *FakeCluster) ThreadAlive(id uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.alive[id]
}

func (c *FakeCluster) query(q string) (source.RowStream, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Queries = append(c.Queries, q)
	if len(c.streams) == 0 {
		return &ScriptedRows{}, nil
	}
	s := c.streams[0]
	c.streams = c.streams[1:]
	return s, nil
}

func (c *FakeCluster) kill(id uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Kills = append(c.Kills, id)
	if !c.IgnoreKill {
		c.alive[id] = false
	}
}

// FakeConn is one fake pinned connection.
type FakeConn struct {
	cluster *FakeCluster
	id      uint64

	mu     sync.Mutex
	closed bool
}

func (f *FakeConn) Query(ctx context.Context, query string) (source.RowStream, error) {
	return f.cluster.query(query)
}

func (f *FakeConn) ThreadID(ctx context.Context) (uint64, error) {
	return f.id, nil
}

func (f *FakeConn) Kill(ctx context.Context, threadID uint64) error {
	f.cluster.kill(threadID)
	return nil
}

func (f *FakeConn) Alive(ctx context.Context, threadID uint64) (bool, error) {
	return f.cluster.ThreadAlive(threadID), nil
}

func (f *FakeConn) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

// ID returns the connection's thread id.
func (f *FakeConn) ID() uint64 { return f.id }

// IsClosed reports whether Close has been called.
func (f *FakeConn) IsClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}
