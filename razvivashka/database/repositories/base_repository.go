package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"
)

const defaultQueryTimeout = 10 * time.Second

// BaseRepository carries the shared bun handle and error plumbing.
type BaseRepository struct {
	db             *bun.DB
	defaultTimeout time.Duration
}

func NewBaseRepository(db *bun.DB) *BaseRepository {
	return &BaseRepository{
		db:             db,
		defaultTimeout: defaultQueryTimeout,
	}
}

// PersistenceError wraps a store-level failure. It is fatal to the request:
// the engine never retries it and callers must not assume partial writes.
type PersistenceError struct {
	Operation string
	Entity    string
	Err       error
}

func (pe *PersistenceError) Error() string {
	return fmt.Sprintf("persistence failure during %s for %s: %v", pe.Operation, pe.Entity, pe.Err)
}

func (pe *PersistenceError) Unwrap() error {
	return pe.Err
}

// NotFoundError reports a missing entity; callers recover by re-fetching
// state rather than failing the request.
type NotFoundError struct {
	Entity string
	ID     any
}

func (nfe *NotFoundError) Error() string {
	return fmt.Sprintf("%s %v not found", nfe.Entity, nfe.ID)
}

// WithTimeout bounds a query context with the repository default.
func (br *BaseRepository) WithTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, br.defaultTimeout)
}

// HandleError maps sql.ErrNoRows to NotFoundError and wraps everything else
// as a PersistenceError.
func (br *BaseRepository) HandleError(operation, entity string, id any, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return &NotFoundError{Entity: entity, ID: id}
	}
	return &PersistenceError{Operation: operation, Entity: entity, Err: err}
}

// IsNotFound reports whether err is a NotFoundError.
func IsNotFound(err error) bool {
	var nfe *NotFoundError
	return errors.As(err, &nfe)
}
