// Package recorder stores tracker traffic in SQLite for later inspection.
//
// A Recorder is a viewxprotocol.Observer: install it with
// viewxprotocol.WithObserver and every command sent and datagram received
// is written to the datagrams table under a per-run session id.
package recorder

import (
	"context"
	"database/sql"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/pyviewx/viewx/logging"
	"github.com/pyviewx/viewx/viewxprotocol"
)

// Directions stored in the datagrams table.
const (
	DirectionOut = "out"
	DirectionIn  = "in"
)

// Datagram is one recorded datagram.
type Datagram struct {
	ID         int64
	Direction  string
	Keyword    string
	Payload    string
	Matched    bool
	Peer       string
	RecordedAt time.Time
}

// Stats summarises a session.
type Stats struct {
	Sent      int
	Matched   int
	Unmatched int
}

// Option configures a Recorder.
type Option func(*Recorder)

// WithLogger sets the logger used to report write failures.
func WithLogger(logger logging.Logger) Option {
	return func(r *Recorder) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithLabel attaches a free-form label (typically the tracker address) to the session.
func WithLabel(label string) Option {
	return func(r *Recorder) { r.label = label }
}

// Recorder writes traffic to SQLite.
type Recorder struct {
	db      *sql.DB
	session string
	label   string
	logger  logging.Logger

	failures atomic.Int64
}

var _ viewxprotocol.Observer = (*Recorder)(nil)

// Open migrates the database at path and starts a new session.
func Open(path string, opts ...Option) (*Recorder, error) {
	if err := RunMigrations(path); err != nil {
		return nil, err
	}

	dsn := fmt.Sprintf("file:%s?_foreign_keys=on&_busy_timeout=5000", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1) // sqlite
	db.SetConnMaxLifetime(0)

	r := &Recorder{
		db:      db,
		session: uuid.NewString(),
		logger:  logging.NoOpLogger{},
	}
	for _, opt := range opts {
		opt(r)
	}

	_, err = db.Exec(`INSERT INTO sessions (id, label, started_at) VALUES (?, ?, ?)`,
		r.session, r.label, now())
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("start session: %w", err)
	}
	return r, nil
}

// Session returns the id of the current session.
func (r *Recorder) Session() string {
	return r.session
}

// Failures returns how many datagrams could not be recorded.
func (r *Recorder) Failures() int64 {
	return r.failures.Load()
}

// CommandSent records an outbound command.
func (r *Recorder) CommandSent(cmd viewxprotocol.Command) {
	r.insert(DirectionOut, cmd.Keyword(), cmd.Format(), false, "")
}

// DatagramReceived records an inbound datagram.
func (r *Recorder) DatagramReceived(reply viewxprotocol.Reply, matched bool) {
	peer := ""
	if reply.Addr != nil {
		peer = reply.Addr.String()
	}
	r.insert(DirectionIn, reply.Keyword, reply.Raw, matched, peer)
}

func (r *Recorder) insert(direction, keyword, payload string, matched bool, peer string) {
	_, err := r.db.Exec(`INSERT INTO datagrams
		(session_id, direction, keyword, payload, matched, peer, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.session, direction, keyword, payload, matched, peer, now())
	if err != nil {
		r.failures.Add(1)
		r.logger.Warn("record datagram failed", "direction", direction, "keyword", keyword, "error", err)
	}
}

// Stats counts the current session's traffic.
func (r *Recorder) Stats(ctx context.Context) (Stats, error) {
	var s Stats
	err := r.db.QueryRowContext(ctx, `SELECT
		COALESCE(SUM(CASE WHEN direction = 'out' THEN 1 ELSE 0 END), 0),
		COALESCE(SUM(CASE WHEN direction = 'in' AND matched = 1 THEN 1 ELSE 0 END), 0),
		COALESCE(SUM(CASE WHEN direction = 'in' AND matched = 0 THEN 1 ELSE 0 END), 0)
		FROM datagrams WHERE session_id = ?`, r.session).Scan(&s.Sent, &s.Matched, &s.Unmatched)
	if err != nil {
		return Stats{}, fmt.Errorf("query stats: %w", err)
	}
	return s, nil
}

// Datagrams lists the current session's datagrams in recording order,
// optionally restricted to one keyword.
func (r *Recorder) Datagrams(ctx context.Context, keyword string) ([]Datagram, error) {
	query := `SELECT id, direction, keyword, payload, matched, peer, recorded_at
		FROM datagrams WHERE session_id = ?`
	args := []any{r.session}
	if keyword != "" {
		query += ` AND keyword = ?`
		args = append(args, keyword)
	}
	query += ` ORDER BY id`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query datagrams: %w", err)
	}
	defer rows.Close()

	var out []Datagram
	for rows.Next() {
		var d Datagram
		if err := rows.Scan(&d.ID, &d.Direction, &d.Keyword, &d.Payload, &d.Matched, &d.Peer, &d.RecordedAt); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// Close ends the session and closes the database.
func (r *Recorder) Close() error {
	if _, err := r.db.Exec(`UPDATE sessions SET ended_at = ? WHERE id = ?`, now(), r.session); err != nil {
		r.logger.Warn("end session failed", "session", r.session, "error", err)
	}
	return r.db.Close()
}

func now() time.Time {
	return time.Now().UTC()
}
