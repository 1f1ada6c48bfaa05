// Package session owns the long-lived OBSERVE query that produces the
// raw record stream: it issues the query, arms a timeout, performs the
// forced-cancellation handshake, and supports restart from per-partition
// offsets. The session never classifies fetch errors; that is the
// consumer's job.
package session

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/julianstephens/cdcsync/internal/cdc/record"
	"github.com/julianstephens/cdcsync/internal/cdc/source"
	"github.com/julianstephens/cdcsync/internal/logger"
)

// State is the session lifecycle state.
type State uint8

const (
	StateIdle State = iota
	StateRunning
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Defaults for session options.
const (
	DefaultTimeout          = 60 * time.Second
	DefaultKillPollInterval = 100 * time.Millisecond
	DefaultKillWait         = 30 * time.Second
)

// Options configures an observation session.
type Options struct {
	// Tables to observe. Required.
	Tables []string

	// Fields is the projected column list. Defaults to ["*"].
	Fields []string

	// Format is the optional output format clause (e.g. "JSON").
	Format string

	// Offsets are the default per-partition resume offsets applied when
	// Start is called without explicit offsets. Nil entries mean "from
	// the beginning" for that partition; when every entry is nil the
	// resume clause is omitted entirely.
	Offsets []*record.Offset

	// Timeout bounds the session lifetime; on expiry the session force
	// cancels its own query.
	Timeout time.Duration

	// KillPollInterval is the delay between confirmation probes after a
	// termination request.
	KillPollInterval time.Duration

	// KillWait bounds the confirmation poll. A hung server-side state
	// surfaces as ErrKillTimeout instead of blocking forever.
	KillWait time.Duration

	Logger logger.Logger
}

func (o *Options) normalize() {
	if len(o.Fields) == 0 {
		o.Fields = []string{"*"}
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	if o.KillPollInterval <= 0 {
		o.KillPollInterval = DefaultKillPollInterval
	}
	if o.KillWait <= 0 {
		o.KillWait = DefaultKillWait
	}
	if o.Logger == nil {
		o.Logger = logger.NoOpLogger{}
	}
}

// Session is a restartable observation session: Idle → Running →
// Stopped, with Start permitted again from Stopped.
//
// Two paths touch a running session concurrently: the fetch path pulling
// rows from Rows(), and the timer-triggered cancellation path. The
// control connection is the only shared mutable resource; it is claimed
// atomically exactly once per epoch, so whichever of the timer and an
// explicit Stop reaches it first performs the kill and the other no-ops.
type Session struct {
	connector source.Connector
	opts      Options
	log       logger.Logger

	mu       sync.Mutex
	state    State
	conn     source.Conn
	rows     source.RowStream
	killConn source.Conn
	threadID uint64
	timer    *time.Timer
}

// New builds a session over the given connector. The session dials
// nothing until Start.
func New(connector source.Connector, opts Options) *Session {
	opts.normalize()
	return &Session{
		connector: connector,
		opts:      opts,
		log:       opts.Logger,
	}
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Rows returns the raw row stream of the running epoch. Valid between
// Start and Stop; the stream observes end-of-data or a cancellation
// error once the session is torn down.
func (s *Session) Rows() source.RowStream {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rows
}

// Start opens the data and control connections, arms the timeout, and
// issues the streaming query. offsets override the configured default
// resume offsets when non-nil.
func (s *Session) Start(ctx context.Context, offsets []*record.Offset) error {
	s.mu.Lock()
	if s.state == StateRunning {
		s.mu.Unlock()
		return wrapErr("start", StateRunning, ErrAlreadyRunning, nil)
	}
	s.mu.Unlock()

	conn, err := s.connector.Connect(ctx)
	if err != nil {
		return wrapErr("start", s.State(), err, nil)
	}
	killConn, err := s.connector.Connect(ctx)
	if err != nil {
		_ = conn.Close()
		return wrapErr("start", s.State(), err, nil)
	}

	threadID, err := conn.ThreadID(ctx)
	if err != nil {
		_ = conn.Close()
		_ = killConn.Close()
		return wrapErr("start", s.State(), err, nil)
	}

	if offsets == nil {
		offsets = s.opts.Offsets
	}
	query := buildQuery(s.opts, offsets)
	s.log.Info("starting observation", "query", query, "thread_id", threadID)

	s.mu.Lock()
	s.conn = conn
	s.killConn = killConn
	s.threadID = threadID
	// Arm before issuing the query so a server that never returns the
	// first result set still gets cancelled.
	s.timer = time.AfterFunc(s.opts.Timeout, func() {
		if err := s.forceCancel(context.Background()); err != nil {
			s.log.Error("timeout cancellation failed", err, "thread_id", threadID)
		}
	})
	s.mu.Unlock()

	rows, err := conn.Query(ctx, query)
	if err != nil {
		_ = s.Stop(ctx)
		return wrapErr("start", s.State(), err, nil)
	}

	s.mu.Lock()
	s.rows = rows
	s.state = StateRunning
	s.mu.Unlock()
	return nil
}

// Stop disarms the timer, performs the forced cancellation if the timer
// has not already, and releases the stream. Idempotent.
func (s *Session) Stop(ctx context.Context) error {
	s.mu.Lock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	rows := s.rows
	conn := s.conn
	s.rows = nil
	s.conn = nil
	s.state = StateStopped
	s.mu.Unlock()

	killErr := s.forceCancel(ctx)

	// The stream is usually already dead after the kill; close errors
	// here carry no information.
	if rows != nil {
		_ = rows.Close()
	}
	if conn != nil {
		_ = conn.Close()
	}

	if killErr != nil {
		return wrapErr("stop", StateStopped, ErrKillFailed, killErr)
	}
	return nil
}

// RestartFrom stops the session and starts a new epoch from the given
// per-partition offsets. This is the sole resumption mechanism, used for
// both checkpoint rotation and crash recovery.
func (s *Session) RestartFrom(ctx context.Context, offsets []*record.Offset) error {
	if err := s.Stop(ctx); err != nil {
		return err
	}
	return s.Start(ctx, offsets)
}

// claimKillConn hands the control connection to exactly one caller. The
// loser of the race between the timer and an explicit Stop observes nil.
func (s *Session) claimKillConn() (source.Conn, uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kc := s.killConn
	s.killConn = nil
	return kc, s.threadID
}

// forceCancel issues the server-side termination request for the data
// connection and polls, bounded by KillWait, until the server confirms
// the connection no longer exists.
func (s *Session) forceCancel(ctx context.Context) error {
	kc, threadID := s.claimKillConn()
	if kc == nil {
		return nil
	}
	defer func() {
		_ = kc.Close()
	}()

	s.log.Debug("killing observation connection", "thread_id", threadID)
	if err := kc.Kill(ctx, threadID); err != nil {
		return wrapErr("kill", s.State(), ErrKillFailed, err)
	}

	deadline := time.Now().Add(s.opts.KillWait)
	for {
		alive, err := kc.Alive(ctx, threadID)
		if err != nil {
			return wrapErr("kill", s.State(), ErrKillFailed, err)
		}
		if !alive {
			s.log.Debug("observation connection terminated", "thread_id", threadID)
			return nil
		}
		if time.Now().After(deadline) {
			return wrapErr("kill", s.State(), ErrKillTimeout, nil)
		}
		select {
		case <-ctx.Done():
			return wrapErr("kill", s.State(), ErrKillFailed, ctx.Err())
		case <-time.After(s.opts.KillPollInterval):
		}
	}
}

// buildQuery renders the streaming observation statement, optionally
// with a format clause and a begin-at-offsets clause.
func buildQuery(opts Options, offsets []*record.Offset) string {
	var b strings.Builder
	b.WriteString("OBSERVE ")
	b.WriteString(strings.Join(opts.Fields, ","))
	b.WriteString(" FROM ")
	b.WriteString(strings.Join(opts.Tables, ","))
	if opts.Format != "" {
		b.WriteString(" AS ")
		b.WriteString(opts.Format)
	}
	if hasResume(offsets) {
		b.WriteString(" BEGIN AT (")
		b.WriteString(record.SerializeOffsets(offsets))
		b.WriteString(")")
	}
	return b.String()
}

// hasResume reports whether any partition carries a resume offset. A
// fresh start has nothing to resume from and renders no clause.
func hasResume(offsets []*record.Offset) bool {
	for _, o := range offsets {
		if o != nil {
			return true
		}
	}
	return false
}
