package orm

import (
	"context"
	"database/sql"
	"errors"
	"sync"
)

// StatementCache keeps one prepared statement per SQL text for the lifetime
// of a connection. Statements are never evicted; they are closed together
// when the cache is reset or notices that the connection changed.
type StatementCache struct {
	mu    sync.Mutex
	owner *sql.DB
	stmts map[string]*sql.Stmt
}

// NewStatementCache returns an empty cache.
func NewStatementCache() *StatementCache {
	return &StatementCache{stmts: make(map[string]*sql.Stmt)}
}

// Prepare returns the cached statement for query, preparing it on db the
// first time it is seen. A cache that was filled from another connection is
// reset first.
func (c *StatementCache) Prepare(ctx context.Context, db *DB, query string) (*sql.Stmt, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.owner != db.raw {
		if err := c.closeLocked(); err != nil {
			return nil, err
		}
		c.owner = db.raw
	}

	if stmt, ok := c.stmts[query]; ok {
		return stmt, nil
	}
	stmt, err := db.PrepareContext(ctx, query)
	if err != nil {
		return nil, err
	}
	c.stmts[query] = stmt
	return stmt, nil
}

// Len reports how many statements are cached.
func (c *StatementCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.stmts)
}

// Has reports whether query has a cached statement.
func (c *StatementCache) Has(query string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.stmts[query]
	return ok
}

// Reset closes every cached statement and empties the cache.
func (c *StatementCache) Reset() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.owner = nil
	return c.closeLocked()
}

func (c *StatementCache) closeLocked() error {
	var errs []error
	for query, stmt := range c.stmts {
		if err := stmt.Close(); err != nil {
			errs = append(errs, err)
		}
		delete(c.stmts, query)
	}
	return errors.Join(errs...)
}
