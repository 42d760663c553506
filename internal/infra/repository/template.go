package repository

import (
	"context"
	"errors"
	"time"

	"loyalty-core/internal/domain/balance"
	"loyalty-core/internal/domain/coupon"
	"loyalty-core/internal/domain/reward"
	"loyalty-core/internal/infra"
	"loyalty-core/internal/infra/db"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type TemplateRepository struct {
	db db.DBTX
}

func NewTemplateRepository(dbtx db.DBTX) *TemplateRepository {
	return &TemplateRepository{db: dbtx}
}

const ensureTemplateSQL = `
INSERT INTO coupon_templates (
    id, reward_key, title, description, image_url,
    stock, status, expires_at, point_cost, eligible_category
)
VALUES ($1, $2, $3, $4, $5, $6, 'active', $7, $8, $9)
ON CONFLICT (reward_key) DO NOTHING
`

const templateColumns = `
    id, reward_key, title, description, image_url,
    stock, status, expires_at, point_cost, eligible_category,
    issued_count, used_count, created_at, updated_at
`

func (r *TemplateRepository) Ensure(ctx context.Context, def *reward.Definition) (*coupon.Template, error) {
	_, err := r.db.Exec(ctx, ensureTemplateSQL,
		uuid.New(), def.Key, def.Title, def.Description, def.ImageURL,
		def.InitialStock, def.ExpiresAt, def.PointCost, string(def.EligibleCategory))
	if err != nil {
		return nil, infra.WrapRepoErr("failed to materialize coupon template", err)
	}

	row := r.db.QueryRow(ctx, `SELECT `+templateColumns+` FROM coupon_templates WHERE reward_key = $1`, def.Key)
	tpl, err := scanTemplate(row)
	if err != nil {
		return nil, infra.WrapRepoErr("failed to read coupon template", err)
	}
	return tpl, nil
}

// reserveStockSQL checks active+stocked+unexpired and claims one unit in a
// single statement; two concurrent redemptions of the last unit cannot both
// match the row.
const reserveStockSQL = `
UPDATE coupon_templates
SET stock        = stock - 1,
    issued_count = issued_count + 1,
    updated_at   = now()
WHERE id = $1
  AND status = 'active'
  AND stock > 0
  AND expires_at > $2
RETURNING ` + templateColumns

func (r *TemplateRepository) ReserveStock(ctx context.Context, templateID uuid.UUID, now time.Time) (*coupon.Template, error) {
	row := r.db.QueryRow(ctx, reserveStockSQL, templateID, now)
	tpl, err := scanTemplate(row)
	if err == nil {
		return tpl, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, infra.WrapRepoErr("failed to reserve coupon stock", err)
	}

	// No row matched. Re-read to report which condition failed.
	row = r.db.QueryRow(ctx, `SELECT `+templateColumns+` FROM coupon_templates WHERE id = $1`, templateID)
	tpl, err = scanTemplate(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, infra.WrapRepoErr("coupon template not found", nil, infra.KindNotFound)
		}
		return nil, infra.WrapRepoErr("failed to classify rejected reservation", err)
	}

	switch err := tpl.CheckRedeemable(now); {
	case errors.Is(err, coupon.ErrTemplateInactive):
		return nil, infra.WrapRepoErr("coupon template not active", err, infra.KindInactive)
	case errors.Is(err, coupon.ErrTemplateExpired):
		return nil, infra.WrapRepoErr("coupon template expired", err, infra.KindExpired)
	default:
		return nil, infra.WrapRepoErr("coupon template out of stock", coupon.ErrOutOfStock, infra.KindOutOfStock)
	}
}

func (r *TemplateRepository) IncrementUsed(ctx context.Context, templateID uuid.UUID) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE coupon_templates SET used_count = used_count + 1, updated_at = now() WHERE id = $1`,
		templateID)
	if err != nil {
		return infra.WrapRepoErr("failed to increment used count", err)
	}
	if tag.RowsAffected() == 0 {
		return infra.WrapRepoErr("coupon template not found", nil, infra.KindNotFound)
	}
	return nil
}

func scanTemplate(row pgx.Row) (*coupon.Template, error) {
	var tpl coupon.Template
	var status, category string
	err := row.Scan(
		&tpl.ID, &tpl.RewardKey, &tpl.Title, &tpl.Description, &tpl.ImageURL,
		&tpl.Stock, &status, &tpl.ExpiresAt, &tpl.PointCost, &category,
		&tpl.IssuedCount, &tpl.UsedCount, &tpl.CreatedAt, &tpl.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	tpl.Status = coupon.TemplateStatus(status)
	tpl.EligibleCategory = balance.Category(category)
	return &tpl, nil
}
