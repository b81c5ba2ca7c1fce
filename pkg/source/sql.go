package source

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Sternrassler/people-enricher/pkg/logging"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
)

// DefaultQuery selects every person ID.
const DefaultQuery = "SELECT id FROM people ORDER BY id"

// SQLSource loads person IDs with a single query returning one integer
// column.
type SQLSource struct {
	db     *sql.DB
	query  string
	owned  bool
	logger zerolog.Logger
}

// NewSQLSource wraps an open database. The caller keeps ownership of db.
func NewSQLSource(db *sql.DB, query string) *SQLSource {
	if query == "" {
		query = DefaultQuery
	}
	return &SQLSource{
		db:     db,
		query:  query,
		logger: logging.NewLogger(logging.ComponentSource),
	}
}

// NewSQLite opens the SQLite database at path. Close releases it.
func NewSQLite(path, query string) (*SQLSource, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %q: %w", path, err)
	}
	// every connection to :memory: is a separate database
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	s := NewSQLSource(db, query)
	s.owned = true
	return s, nil
}

// DB returns the underlying database handle.
func (s *SQLSource) DB() *sql.DB {
	return s.db
}

// FetchAllIDs runs the query and returns the IDs in result order.
// Duplicate IDs are dropped; a non-positive ID fails the whole call.
func (s *SQLSource) FetchAllIDs(ctx context.Context) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, s.query)
	if err != nil {
		return nil, fmt.Errorf("query person ids: %w", err)
	}
	defer rows.Close()

	var ids []int64
	seen := make(map[int64]struct{})
	duplicates := 0
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan person id: %w", err)
		}
		if id <= 0 {
			return nil, fmt.Errorf("invalid person id %d", id)
		}
		if _, dup := seen[id]; dup {
			duplicates++
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate person ids: %w", err)
	}

	if duplicates > 0 {
		s.logger.Warn().Int("duplicates", duplicates).Msg("Dropped duplicate person IDs")
	}
	s.logger.Debug().Int("count", len(ids)).Msg("Loaded person IDs")

	return ids, nil
}

// Close closes the database if it was opened by NewSQLite.
func (s *SQLSource) Close() error {
	if !s.owned {
		return nil
	}
	return s.db.Close()
}
