// Package database persists the country snapshot in PostgreSQL.
//
// SQL is rendered with goqu (postgres dialect, prepared placeholders) and run
// on a pgx pool. Every driver failure is wrapped in core.ErrStorage.
package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JonMunkholm/countries/internal/core"
	"github.com/JonMunkholm/countries/internal/logging"
)

// refreshLockKey identifies the transaction-scoped advisory lock that
// serialises refresh cycles across processes.
const refreshLockKey int64 = 0x636f756e74727931

// Store implements core.Store on PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

var _ core.Store = (*Store)(nil)

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func storageErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", core.ErrStorage, op, err)
}

func logSQL(ctx context.Context, op, query string, start time.Time) {
	logging.FromContext(ctx).Debug("sql executed",
		"op", op,
		"query", query,
		"duration_ms", time.Since(start).Milliseconds(),
	)
}

func (s *Store) Get(ctx context.Context, name string) (core.Country, error) {
	query, args, err := buildSelectByName(name)
	if err != nil {
		return core.Country{}, storageErr("build get", err)
	}

	start := time.Now()
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return core.Country{}, storageErr("get", err)
	}
	row, err := pgx.CollectOneRow(rows, pgx.RowToStructByName[countryRow])
	logSQL(ctx, "get", query, start)
	if errors.Is(err, pgx.ErrNoRows) {
		return core.Country{}, core.ErrNotFound
	}
	if err != nil {
		return core.Country{}, storageErr("get", err)
	}
	return row.toCountry(), nil
}

func (s *Store) Query(ctx context.Context, plan core.QueryPlan) ([]core.Country, error) {
	query, args, err := buildSelectPlan(plan)
	if err != nil {
		return nil, storageErr("build query", err)
	}

	start := time.Now()
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, storageErr("query", err)
	}
	found, err := pgx.CollectRows(rows, pgx.RowToStructByName[countryRow])
	logSQL(ctx, "query", query, start)
	if err != nil {
		return nil, storageErr("query", err)
	}

	out := make([]core.Country, len(found))
	for i, r := range found {
		out[i] = r.toCountry()
	}
	return out, nil
}

func (s *Store) Delete(ctx context.Context, name string) error {
	query, args, err := buildDeleteByName(name)
	if err != nil {
		return storageErr("build delete", err)
	}

	start := time.Now()
	tag, err := s.pool.Exec(ctx, query, args...)
	logSQL(ctx, "delete", query, start)
	if err != nil {
		return storageErr("delete", err)
	}
	if tag.RowsAffected() == 0 {
		return core.ErrNotFound
	}
	return nil
}

func (s *Store) Status(ctx context.Context) (core.Status, error) {
	query, args, err := buildStatus()
	if err != nil {
		return core.Status{}, storageErr("build status", err)
	}

	var (
		st   core.Status
		last *time.Time
	)
	if err := s.pool.QueryRow(ctx, query, args...).Scan(&st.TotalRecords, &last); err != nil {
		return core.Status{}, storageErr("status", err)
	}
	if last != nil {
		utc := last.UTC()
		st.LastRefreshedAt = &utc
	}
	return st, nil
}

func (s *Store) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return storageErr("ping", err)
	}
	return nil
}

// WithRefreshTx runs fn in one transaction holding the refresh advisory lock.
// The lock is released by commit or rollback.
func (s *Store) WithRefreshTx(ctx context.Context, fn func(tx core.RefreshTx) error) (err error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return storageErr("begin refresh", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(context.WithoutCancel(ctx)); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
				logging.FromContext(ctx).Error("refresh rollback failed", "error", rbErr)
			}
		}
	}()

	lockStart := time.Now()
	if _, err = tx.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", refreshLockKey); err != nil {
		return storageErr("acquire refresh lock", err)
	}
	logging.FromContext(ctx).Debug("refresh lock acquired", "wait_ms", time.Since(lockStart).Milliseconds())

	if err = fn(&refreshTx{tx: tx}); err != nil {
		return err
	}

	if err = tx.Commit(ctx); err != nil {
		return storageErr("commit refresh", err)
	}
	return nil
}
