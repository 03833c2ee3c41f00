package database

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/JonMunkholm/countries/internal/core"
	"github.com/JonMunkholm/countries/internal/logging"
)

// refreshTx is the write surface of one refresh transaction.
type refreshTx struct {
	tx pgx.Tx
}

func (t *refreshTx) ListNames(ctx context.Context) (map[string]struct{}, error) {
	query, args, err := buildListNames()
	if err != nil {
		return nil, storageErr("build list names", err)
	}

	rows, err := t.tx.Query(ctx, query, args...)
	if err != nil {
		return nil, storageErr("list names", err)
	}
	list, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, storageErr("list names", err)
	}

	names := make(map[string]struct{}, len(list))
	for _, n := range list {
		names[n] = struct{}{}
	}
	return names, nil
}

// InsertBatch writes records in chunks inside the outer transaction. Any
// failure aborts the transaction, so the batch lands whole or not at all.
func (t *refreshTx) InsertBatch(ctx context.Context, records []core.Country) error {
	for start := 0; start < len(records); start += insertChunk {
		end := min(start+insertChunk, len(records))

		query, args, err := buildInsert(records[start:end])
		if err != nil {
			return storageErr("build insert batch", err)
		}

		began := time.Now()
		if _, err := t.tx.Exec(ctx, query, args...); err != nil {
			return storageErr("insert batch", err)
		}
		logging.FromContext(ctx).Debug("batch inserted",
			"rows", end-start,
			"duration_ms", time.Since(began).Milliseconds(),
		)
	}
	return nil
}

func (t *refreshTx) Insert(ctx context.Context, record core.Country) error {
	query, args, err := buildInsert([]core.Country{record})
	if err != nil {
		return storageErr("build insert", err)
	}
	return t.inSavepoint(ctx, func(sp pgx.Tx) error {
		if _, err := sp.Exec(ctx, query, args...); err != nil {
			return storageErr("insert", err)
		}
		return nil
	})
}

func (t *refreshTx) Update(ctx context.Context, record core.Country) error {
	query, args, err := buildUpdate(record)
	if err != nil {
		return storageErr("build update", err)
	}
	return t.inSavepoint(ctx, func(sp pgx.Tx) error {
		tag, err := sp.Exec(ctx, query, args...)
		if err != nil {
			return storageErr("update", err)
		}
		if tag.RowsAffected() == 0 {
			return core.ErrNotFound
		}
		return nil
	})
}

// inSavepoint runs fn inside a nested transaction (SAVEPOINT). A failure
// rolls back to the savepoint and leaves the outer transaction usable.
func (t *refreshTx) inSavepoint(ctx context.Context, fn func(sp pgx.Tx) error) error {
	sp, err := t.tx.Begin(ctx)
	if err != nil {
		return storageErr("savepoint", err)
	}

	if err := fn(sp); err != nil {
		if rbErr := sp.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			return storageErr("rollback to savepoint", errors.Join(err, rbErr))
		}
		return err
	}

	if err := sp.Commit(ctx); err != nil {
		return storageErr("release savepoint", err)
	}
	return nil
}
