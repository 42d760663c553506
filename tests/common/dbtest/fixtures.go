//go:build unit || e2e

package dbtest

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
)

// DBLike is the slice of pgxpool the fixtures actually need.
type DBLike interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// SeedBalance creates or overwrites a member's balance row with the given
// bucket amounts.
func SeedBalance(t *testing.T, db DBLike, memberID uuid.UUID, bank, wealth, insurance int64) {
	t.Helper()

	ctx := context.Background()
	total := bank + wealth + insurance
	_, err := db.Exec(ctx, `
		INSERT INTO balances (member_id, bank_points, wealth_points, insurance_points, total_points)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (member_id) DO UPDATE SET
		    bank_points      = EXCLUDED.bank_points,
		    wealth_points    = EXCLUDED.wealth_points,
		    insurance_points = EXCLUDED.insurance_points,
		    total_points     = EXCLUDED.total_points,
		    updated_at       = now()`,
		memberID, bank, wealth, insurance, total)
	require.NoError(t, err)
}

// FetchBalance reads a member's current balance buckets directly.
func FetchBalance(t *testing.T, db DBLike, memberID uuid.UUID) (bank, wealth, insurance, total int64) {
	t.Helper()

	ctx := context.Background()
	err := db.QueryRow(ctx,
		"SELECT bank_points, wealth_points, insurance_points, total_points FROM balances WHERE member_id = $1",
		memberID).Scan(&bank, &wealth, &insurance, &total)
	require.NoError(t, err)
	return bank, wealth, insurance, total
}

// CountLedgerEntries returns how many ledger rows a member has, optionally
// filtered by kind ("" means all).
func CountLedgerEntries(t *testing.T, db DBLike, memberID uuid.UUID, kind string) int {
	t.Helper()

	ctx := context.Background()
	var n int
	err := db.QueryRow(ctx,
		"SELECT count(*) FROM ledger_entries WHERE member_id = $1 AND ($2 = '' OR kind = $2)",
		memberID, kind).Scan(&n)
	require.NoError(t, err)
	return n
}

// SetTemplateStock overrides a template's remaining stock, used to force
// out-of-stock scenarios.
func SetTemplateStock(t *testing.T, db DBLike, rewardKey string, stock int) {
	t.Helper()

	ctx := context.Background()
	tag, err := db.Exec(ctx,
		"UPDATE coupon_templates SET stock = $2, updated_at = now() WHERE reward_key = $1",
		rewardKey, stock)
	require.NoError(t, err)
	require.EqualValues(t, 1, tag.RowsAffected(), "template %s not found", rewardKey)
}

// Templates materialize lazily from the catalog on first redemption, so
// there is no reference data to preload.
func SeedReferenceData(_ *pgxpool.Pool) error {
	return nil
}

var (
	buildTruncateOnce sync.Once
	truncateSQL       atomic.Value // string
)

// truncates all tables between subtests
func ResetDB(pool *pgxpool.Pool) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	buildTruncateOnce.Do(func() {
		rows, err := pool.Query(ctx, `
		  SELECT 'public.' || quote_ident(tablename)
		  FROM pg_tables
		  WHERE schemaname = 'public'
		    AND tablename NOT IN ('schema_migrations')`)
		if err != nil {
			truncateSQL.Store("")
			return
		}
		defer rows.Close()
		var tables []string
		for rows.Next() {
			var t string
			if err := rows.Scan(&t); err != nil {
				truncateSQL.Store("")
				return
			}
			tables = append(tables, t)
		}
		if rows.Err() != nil {
			truncateSQL.Store("")
			return
		}
		if len(tables) == 0 {
			truncateSQL.Store("SELECT 1")
			return
		}
		truncateSQL.Store("TRUNCATE " + strings.Join(tables, ", ") + " RESTART IDENTITY CASCADE;")
	})
	sqlAny := truncateSQL.Load()
	if sqlAny == nil || sqlAny.(string) == "" {
		return fmt.Errorf("failed to build TRUNCATE SQL")
	}
	if _, err := pool.Exec(ctx, sqlAny.(string)); err != nil {
		return err
	}
	return nil
}
