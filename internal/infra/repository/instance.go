package repository

import (
	"context"
	"errors"
	"time"

	"loyalty-core/internal/domain/balance"
	"loyalty-core/internal/domain/coupon"
	"loyalty-core/internal/infra"
	"loyalty-core/internal/infra/db"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const pgErrCodeUniqueViolation = "23505"

type InstanceRepository struct {
	db db.DBTX
}

func NewInstanceRepository(dbtx db.DBTX) *InstanceRepository {
	return &InstanceRepository{db: dbtx}
}

const createInstanceSQL = `
INSERT INTO coupon_instances (
    id, member_id, template_id, reward_key, title, description, image_url,
    category_used, cost_paid, status, code, qr_payload,
    issued_at, activated_at, used_at, active_expires_at, valid_until
)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
`

func (r *InstanceRepository) Create(ctx context.Context, inst *coupon.Instance) error {
	_, err := r.db.Exec(ctx, createInstanceSQL,
		inst.ID, inst.MemberID, inst.TemplateID, inst.RewardKey,
		inst.Title, inst.Description, inst.ImageURL,
		string(inst.CategoryUsed), inst.CostPaid, string(inst.Status),
		inst.Code, inst.QRPayload,
		inst.IssuedAt, inst.ActivatedAt, inst.UsedAt, inst.ActiveExpiresAt, inst.ValidUntil,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgErrCodeUniqueViolation {
			// The partial unique index on live (member, reward) pairs fired:
			// a concurrent request already holds the slot.
			return infra.WrapRepoErr("live instance already exists", err, infra.KindDuplicateKey)
		}
		return infra.WrapRepoErr("failed to create coupon instance", err)
	}
	return nil
}

// expireStaleSQL persists derived expiry inside the issuing transaction so
// the partial unique index no longer counts the stale row.
const expireStaleSQL = `
UPDATE coupon_instances
SET status = 'expired', updated_at = now()
WHERE member_id = $1
  AND reward_key = $2
  AND (
      (status = 'redeemed' AND valid_until <= $3)
   OR (status = 'active' AND active_expires_at IS NOT NULL AND active_expires_at <= $3)
  )
`

func (r *InstanceRepository) ExpireStale(ctx context.Context, memberID uuid.UUID, rewardKey string, now time.Time) error {
	if _, err := r.db.Exec(ctx, expireStaleSQL, memberID, rewardKey, now); err != nil {
		return infra.WrapRepoErr("failed to expire stale instances", err)
	}
	return nil
}

const instanceColumns = `
    id, member_id, template_id, reward_key, title, description, image_url,
    category_used, cost_paid, status, code, qr_payload,
    issued_at, activated_at, used_at, active_expires_at, valid_until,
    created_at, updated_at
`

func (r *InstanceRepository) FindNonTerminal(ctx context.Context, memberID uuid.UUID, rewardKey string) (*coupon.Instance, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+instanceColumns+` FROM coupon_instances
		 WHERE member_id = $1 AND reward_key = $2 AND status IN ('redeemed', 'active')`,
		memberID, rewardKey)
	return scanInstanceRow(row, "no live instance for reward")
}

func (r *InstanceRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (*coupon.Instance, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+instanceColumns+` FROM coupon_instances WHERE id = $1 FOR UPDATE`, id)
	return scanInstanceRow(row, "coupon instance not found")
}

func (r *InstanceRepository) GetByCodeForUpdate(ctx context.Context, code string) (*coupon.Instance, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+instanceColumns+` FROM coupon_instances WHERE code = $1 FOR UPDATE`, code)
	return scanInstanceRow(row, "coupon instance not found")
}

const saveStatusSQL = `
UPDATE coupon_instances
SET status            = $2,
    activated_at      = $3,
    used_at           = $4,
    active_expires_at = $5,
    updated_at        = now()
WHERE id = $1
`

func (r *InstanceRepository) SaveStatus(ctx context.Context, inst *coupon.Instance) error {
	tag, err := r.db.Exec(ctx, saveStatusSQL,
		inst.ID, string(inst.Status), inst.ActivatedAt, inst.UsedAt, inst.ActiveExpiresAt)
	if err != nil {
		return infra.WrapRepoErr("failed to save instance status", err)
	}
	if tag.RowsAffected() == 0 {
		return infra.WrapRepoErr("coupon instance not found", nil, infra.KindNotFound)
	}
	return nil
}

func scanInstanceRow(row pgx.Row, notFoundMsg string) (*coupon.Instance, error) {
	inst, err := scanInstance(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, infra.WrapRepoErr(notFoundMsg, nil, infra.KindNotFound)
		}
		return nil, infra.WrapRepoErr("failed to read coupon instance", err)
	}
	return inst, nil
}

func scanInstance(row pgx.Row) (*coupon.Instance, error) {
	var inst coupon.Instance
	var category, status string
	err := row.Scan(
		&inst.ID, &inst.MemberID, &inst.TemplateID, &inst.RewardKey,
		&inst.Title, &inst.Description, &inst.ImageURL,
		&category, &inst.CostPaid, &status, &inst.Code, &inst.QRPayload,
		&inst.IssuedAt, &inst.ActivatedAt, &inst.UsedAt, &inst.ActiveExpiresAt, &inst.ValidUntil,
		&inst.CreatedAt, &inst.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	inst.CategoryUsed = balance.Category(category)
	inst.Status = coupon.Status(status)
	return &inst, nil
}
