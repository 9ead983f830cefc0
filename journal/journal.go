// Package journal keeps a durable log of visits in SQLite: one row per
// finished visit with its outcome, status and duration. Page content is never
// stored.
//
//	store, err := journal.Open("var/reflinks.db")
//	engine := navigation.New(doc, tr, navigation.WithReporter(store))
//	defer store.Close()
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hazyhaar/reflinks/kit"
	"github.com/hazyhaar/reflinks/navigation"
)

// Schema of the visits table.
const Schema = `
CREATE TABLE IF NOT EXISTS visits (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	visit_id TEXT NOT NULL,
	session_id TEXT NOT NULL DEFAULT '',
	path TEXT NOT NULL,
	action TEXT NOT NULL,
	outcome TEXT NOT NULL,
	status_code INTEGER NOT NULL DEFAULT 0,
	error TEXT NOT NULL DEFAULT '',
	duration_us INTEGER NOT NULL,
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_visits_created ON visits(created_at);
CREATE INDEX IF NOT EXISTS idx_visits_session ON visits(session_id) WHERE session_id != '';
`

// Entry is one journal row.
type Entry struct {
	VisitID    string    `json:"visit_id"`
	SessionID  string    `json:"session_id,omitempty"`
	Path       string    `json:"path"`
	Action     string    `json:"action"`
	Outcome    string    `json:"outcome"`
	StatusCode int       `json:"status_code,omitempty"`
	Error      string    `json:"error,omitempty"`
	DurationUs int64     `json:"duration_us"`
	CreatedAt  time.Time `json:"created_at"`
}

// Store writes entries synchronously with Record, or asynchronously through
// ReportVisit, which batches inserts on a background goroutine.
type Store struct {
	db      *sql.DB
	ownsDB  bool
	logger  *slog.Logger
	ch      chan Entry
	done    chan struct{}
	once    sync.Once
	mu      sync.RWMutex // guards closed and sends on ch
	closed  bool
	buffer  int
	flushAt time.Duration
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used for background write failures.
func WithLogger(l *slog.Logger) Option { return func(s *Store) { s.logger = l } }

// WithBuffer sets the async queue size. Default: 1024.
func WithBuffer(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.buffer = n
		}
	}
}

// WithFlushInterval sets how often queued entries are written. Default: 1s.
func WithFlushInterval(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.flushAt = d
		}
	}
}

// Open opens (or creates) the database at path and its schema.
func Open(path string, opts ...Option) (*Store, error) {
	db, err := openDB(path)
	if err != nil {
		return nil, err
	}
	s, err := newStore(db, true, opts...)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// New uses an already opened database. Close does not close db.
func New(db *sql.DB, opts ...Option) (*Store, error) {
	return newStore(db, false, opts...)
}

func newStore(db *sql.DB, owns bool, opts ...Option) (*Store, error) {
	s := &Store{
		db:      db,
		ownsDB:  owns,
		logger:  slog.Default(),
		buffer:  1024,
		flushAt: time.Second,
		done:    make(chan struct{}),
	}
	for _, o := range opts {
		o(s)
	}
	if _, err := db.Exec(Schema); err != nil {
		return nil, fmt.Errorf("journal: init schema: %w", err)
	}
	s.ch = make(chan Entry, s.buffer)
	go s.flushLoop()
	return s, nil
}

// EntryFromReport converts a visit report. The session id comes from ctx.
func EntryFromReport(ctx context.Context, r navigation.Report) Entry {
	e := Entry{
		VisitID:    r.VisitID,
		SessionID:  kit.GetSessionID(ctx),
		Path:       r.Path,
		Action:     r.Action,
		Outcome:    string(r.Outcome),
		StatusCode: r.StatusCode,
		DurationUs: r.Duration.Microseconds(),
		CreatedAt:  r.At,
	}
	if r.Err != nil {
		e.Error = r.Err.Error()
	}
	return e
}

// ReportVisit queues the visit for persistence. It never blocks: entries are
// dropped with a warning when the queue is full or the store is closed.
func (s *Store) ReportVisit(ctx context.Context, r navigation.Report) {
	e := EntryFromReport(ctx, r)
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		s.logger.Warn("journal: store closed, entry dropped", "visit_id", e.VisitID)
		return
	}
	select {
	case s.ch <- e:
	default:
		s.logger.Warn("journal: queue full, entry dropped", "visit_id", e.VisitID)
	}
}

// Record inserts e now.
func (s *Store) Record(ctx context.Context, e Entry) error {
	return runTx(ctx, s.db, func(tx *sql.Tx) error {
		return insert(ctx, tx, e)
	})
}

// Recent returns at most limit entries, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT visit_id, session_id, path, action, outcome, status_code, error, duration_us, created_at
		FROM visits ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("journal: query recent: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var created int64
		if err := rows.Scan(&e.VisitID, &e.SessionID, &e.Path, &e.Action, &e.Outcome,
			&e.StatusCode, &e.Error, &e.DurationUs, &created); err != nil {
			return nil, fmt.Errorf("journal: scan: %w", err)
		}
		e.CreatedAt = time.UnixMicro(created).UTC()
		out = append(out, e)
	}
	return out, rows.Err()
}

// Close flushes queued entries and stops the background writer. It closes
// the database when the store opened it.
func (s *Store) Close() error {
	var err error
	s.once.Do(func() {
		s.mu.Lock()
		s.closed = true
		close(s.ch)
		s.mu.Unlock()
		<-s.done
		if s.ownsDB {
			err = s.db.Close()
		}
	})
	return err
}

func (s *Store) flushLoop() {
	defer close(s.done)

	batch := make([]Entry, 0, 64)
	ticker := time.NewTicker(s.flushAt)
	defer ticker.Stop()

	for {
		select {
		case e, ok := <-s.ch:
			if !ok {
				s.flush(batch)
				return
			}
			batch = append(batch, e)
			if len(batch) >= 64 {
				s.flush(batch)
				batch = batch[:0]
			}
		case <-ticker.C:
			if len(batch) > 0 {
				s.flush(batch)
				batch = batch[:0]
			}
		}
	}
}

func (s *Store) flush(batch []Entry) {
	if len(batch) == 0 {
		return
	}
	ctx := context.Background()
	err := runTx(ctx, s.db, func(tx *sql.Tx) error {
		for _, e := range batch {
			if err := insert(ctx, tx, e); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		s.logger.Error("journal: flush", "entries", len(batch), "error", err)
	}
}

func insert(ctx context.Context, tx *sql.Tx, e Entry) error {
	created := e.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	_, err := tx.ExecContext(ctx, `
		INSERT INTO visits (visit_id, session_id, path, action, outcome, status_code, error, duration_us, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.VisitID, e.SessionID, e.Path, e.Action, e.Outcome, e.StatusCode, e.Error, e.DurationUs, created.UnixMicro())
	if err != nil {
		return fmt.Errorf("journal: insert %s: %w", e.VisitID, err)
	}
	return nil
}
