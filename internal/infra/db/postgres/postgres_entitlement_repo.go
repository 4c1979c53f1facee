package postgres

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"bigdaytimer-premium/internal/domain"
	"bigdaytimer-premium/internal/domain/model"
	"bigdaytimer-premium/internal/domain/ports/repository"
)

//go:embed schema.sql
var schemaSQL string

// EnsureSchema creates the premium_users table when missing.
func EnsureSchema(ctx context.Context, db Executor) error {
	_, err := db.Exec(ctx, schemaSQL)
	return err
}

var _ repository.EntitlementRepository = (*PostgresEntitlementRepo)(nil)

// PostgresEntitlementRepo keeps one row per user with the record as JSONB.
// Updates run under TxManager's per-user advisory lock, which also serializes
// the very first insert for a user (no row to lock yet).
type PostgresEntitlementRepo struct {
	db *pgxpool.Pool
	tm *TxManager
}

func NewPostgresEntitlementRepo(db *pgxpool.Pool) *PostgresEntitlementRepo {
	return &PostgresEntitlementRepo{db: db, tm: NewTxManager(db)}
}

func (r *PostgresEntitlementRepo) Get(ctx context.Context, userID string) (*model.EntitlementRecord, error) {
	rec, err := selectRecord(ctx, r.db, userID)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, domain.ErrNotFound
	}
	return rec, nil
}

type callbackError struct{ err error }

func (e callbackError) Error() string { return e.err.Error() }

func (r *PostgresEntitlementRepo) Update(ctx context.Context, userID string, fn repository.UpdateFunc) (*model.EntitlementRecord, error) {
	var out *model.EntitlementRecord
	err := r.tm.WithKeyLock(ctx, "premium_user:"+userID, func(ctx context.Context, tx pgx.Tx) error {
		cur, err := selectRecord(ctx, tx, userID)
		if err != nil {
			return err
		}
		next, write, err := fn(cur)
		if err != nil {
			return callbackError{err}
		}
		if !write {
			out = cur
			return nil
		}
		data, err := json.Marshal(next)
		if err != nil {
			return callbackError{fmt.Errorf("encode entitlement: %w", err)}
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO premium_users (user_id, record, is_premium, updated_at)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (user_id) DO UPDATE
			SET record = EXCLUDED.record, is_premium = EXCLUDED.is_premium, updated_at = EXCLUDED.updated_at
		`, userID, string(data), next.IsPremium, next.UpdatedAt)
		if err != nil {
			return err
		}
		out = next
		return nil
	})

	var cbErr callbackError
	switch {
	case err == nil:
		return out, nil
	case errors.As(err, &cbErr):
		return nil, cbErr.err
	case errors.Is(err, domain.ErrStoreUnavailable):
		return nil, err
	default:
		return nil, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
}

func selectRecord(ctx context.Context, db Executor, userID string) (*model.EntitlementRecord, error) {
	var data []byte
	err := db.QueryRow(ctx, `SELECT record FROM premium_users WHERE user_id = $1`, userID).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	var rec model.EntitlementRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("%w: decode record for %s: %v", domain.ErrStoreUnavailable, userID, err)
	}
	return &rec, nil
}
