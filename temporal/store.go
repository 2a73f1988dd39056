package temporal

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/fieldmark/joblane/errors"
)

// Store resolves expression ids from the temporal_expressions table.
// Parsed expressions are cached; definitions are treated as immutable.
type Store struct {
	db *sql.DB

	mu    sync.RWMutex
	cache map[string]Expression
}

// NewStore creates a store-backed expression evaluator.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db, cache: make(map[string]Expression)}
}

// Expression resolves an expression id to an evaluable schedule.
func (s *Store) Expression(ctx context.Context, id string) (Expression, error) {
	s.mu.RLock()
	if expr, ok := s.cache[id]; ok {
		s.mu.RUnlock()
		return expr, nil
	}
	s.mu.RUnlock()

	var raw string
	err := s.db.QueryRowContext(ctx,
		`SELECT expression FROM temporal_expressions WHERE id = ?`, id,
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.Wrapf(ErrExpressionNotFound, "id %s", id)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load temporal expression %s", id)
	}

	expr, err := ParseCron(raw)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.cache[id] = expr
	s.mu.Unlock()

	return expr, nil
}

// Put stores a named cron expression. The expression is validated before
// it is written.
func (s *Store) Put(ctx context.Context, id, expression, description string) error {
	if _, err := ParseCron(expression); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO temporal_expressions (id, expression, description, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET expression = excluded.expression, description = excluded.description`,
		id, expression, description, time.Now(),
	)
	if err != nil {
		return errors.Wrapf(err, "failed to store temporal expression %s", id)
	}

	s.mu.Lock()
	delete(s.cache, id)
	s.mu.Unlock()

	return nil
}
