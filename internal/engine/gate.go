package engine

import (
	"context"
	"fmt"

	"github.com/depsentry/depsentry/internal/index"
)

// ensureDataExists opens the vulnerability database, builds the search
// index from it and closes the database again. Any failure, or an index
// with no documents, is reported as ErrNoData. On success the index stays
// open until Cleanup.
func (e *Engine) ensureDataExists(ctx context.Context) error {
	db, err := e.openDatabase()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrNoData, err)
	}
	defer func() {
		if cerr := db.Close(); cerr != nil {
			e.log.WithError(cerr).Trace("closing vulnerability database")
		}
	}()
	if err := db.Open(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrNoData, err)
	}

	ix := index.New(e.cfg.IndexCacheSize)
	if err := ix.Open(ctx, db); err != nil {
		return fmt.Errorf("%w: %w", ErrNoData, err)
	}
	if ix.NumDocs() == 0 {
		if cerr := ix.Close(); cerr != nil {
			e.log.WithError(cerr).Trace("closing empty index")
		}
		return fmt.Errorf("%w: the vulnerability index is empty; run \"depsentry update\"", ErrNoData)
	}

	e.ixMu.Lock()
	prev := e.ix
	e.ix = ix
	e.ixMu.Unlock()
	if prev != nil {
		if cerr := prev.Close(); cerr != nil {
			e.log.WithError(cerr).Trace("closing previous index")
		}
	}
	return nil
}
