// Package history is the durable store of analysed works.
//
// A Store is constructed once and passed to whoever needs it; there is no
// package-level instance. Every operation acquires its own connection and
// releases it before returning, and a mutex serialises operations so the
// database file has a single writer at a time.
package history

import (
	"context"
	"crypto/rand"
	"database/sql"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/hpungsan/aireach/internal/db"
	"github.com/hpungsan/aireach/internal/errors"
	"github.com/hpungsan/aireach/internal/logging"
	"github.com/hpungsan/aireach/internal/work"
)

// Clock returns the current time. Tests substitute a fixed or stepping clock.
type Clock func() time.Time

// Options configures a Store.
type Options struct {
	// Clock defaults to time.Now
	Clock Clock
}

// Store appends, lists and clears analysis records.
type Store struct {
	db      *sql.DB
	now     Clock
	mu      sync.Mutex
	entropy io.Reader
}

// New creates a Store over an initialised database (see db.Init).
func New(database *sql.DB, opts Options) *Store {
	now := opts.Clock
	if now == nil {
		now = time.Now
	}
	return &Store{
		db:      database,
		now:     now,
		entropy: ulid.Monotonic(rand.Reader, 0),
	}
}

// Append stores one analysed work. The store assigns ID and CreatedAt.
func (s *Store) Append(ctx context.Context, title, author, excerpt, analysisText string) (*work.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, errors.NewCancelled("history append")
	}

	now := s.now()
	id, err := ulid.New(ulid.Timestamp(now), s.entropy)
	if err != nil {
		return nil, errors.NewInternal(err)
	}

	r := &work.Record{
		ID:           id.String(),
		Title:        title,
		Author:       author,
		Excerpt:      excerpt,
		AnalysisText: analysisText,
		CreatedAt:    now,
	}

	err = s.withConn(ctx, func(conn *sql.Conn) error {
		return db.Insert(ctx, conn, r)
	})
	if err != nil {
		return nil, err
	}

	logging.Debug().Str("id", r.ID).Str("title", title).Msg("history record appended")
	return r, nil
}

// AppendManual stores a work the user added without an analysis. Title and
// author must be non-blank.
func (s *Store) AppendManual(ctx context.Context, title, author string) (*work.Record, error) {
	title = strings.TrimSpace(title)
	author = strings.TrimSpace(author)
	if title == "" || author == "" {
		return nil, errors.NewInvalidRequest("title and author are required")
	}
	return s.Append(ctx, title, author, work.ManualExcerpt, work.ManualAnalysis)
}

// ListAll returns a snapshot of every record, newest first. The returned
// slice is owned by the caller.
func (s *Store) ListAll(ctx context.Context) ([]work.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, errors.NewCancelled("history list")
	}

	var records []work.Record
	err := s.withConn(ctx, func(conn *sql.Conn) error {
		var err error
		records, err = db.ListAll(ctx, conn)
		return err
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// Clear irreversibly removes the whole collection and returns how many
// records it held.
func (s *Store) Clear(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return 0, errors.NewCancelled("history clear")
	}

	var removed int
	err := s.withConn(ctx, func(conn *sql.Conn) error {
		tx, err := conn.BeginTx(ctx, nil)
		if err != nil {
			return errors.NewInternal(err)
		}
		defer tx.Rollback()

		removed, err = db.DropHistory(ctx, tx)
		if err != nil {
			return err
		}
		if err := tx.Commit(); err != nil {
			return errors.NewInternal(err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	logging.Info().Int("removed", removed).Msg("history cleared")
	return removed, nil
}

// Export streams every record, newest first, to fn. The store stays locked
// for the duration so the export is a consistent snapshot.
func (s *Store) Export(ctx context.Context, fn func(*work.Record) error) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return 0, errors.NewCancelled("history export")
	}

	var n int
	err := s.withConn(ctx, func(conn *sql.Conn) error {
		rows, err := db.StreamForExport(ctx, conn)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			r, err := db.ScanRecordFromRows(rows)
			if err != nil {
				return errors.NewInternal(err)
			}
			if err := fn(r); err != nil {
				return err
			}
			n++
		}
		if err := rows.Err(); err != nil {
			return errors.NewInternal(err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

// withConn runs fn on a dedicated connection that is closed afterwards.
func (s *Store) withConn(ctx context.Context, fn func(*sql.Conn) error) error {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return errors.NewCancelled("history")
		}
		return errors.NewStoreUnavailable(err)
	}
	defer conn.Close()

	return fn(conn)
}
