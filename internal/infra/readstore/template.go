package readstore

import (
	"context"
	"errors"

	"loyalty-core/internal/domain/balance"
	"loyalty-core/internal/domain/coupon"
	"loyalty-core/internal/infra"
	"loyalty-core/internal/infra/db"

	"github.com/jackc/pgx/v5"
)

type TemplateReadStore struct {
	db db.DBTX
}

func NewTemplateReadStore(dbtx db.DBTX) *TemplateReadStore {
	return &TemplateReadStore{db: dbtx}
}

const findTemplateSQL = `
SELECT id, reward_key, title, description, image_url,
       stock, status, expires_at, point_cost, eligible_category,
       issued_count, used_count, created_at, updated_at
FROM coupon_templates
WHERE reward_key = $1
`

func (r *TemplateReadStore) FindByRewardKey(ctx context.Context, rewardKey string) (*coupon.Template, error) {
	var tpl coupon.Template
	var status, category string
	err := r.db.QueryRow(ctx, findTemplateSQL, rewardKey).Scan(
		&tpl.ID, &tpl.RewardKey, &tpl.Title, &tpl.Description, &tpl.ImageURL,
		&tpl.Stock, &status, &tpl.ExpiresAt, &tpl.PointCost, &category,
		&tpl.IssuedCount, &tpl.UsedCount, &tpl.CreatedAt, &tpl.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, infra.WrapRepoErr("coupon template not found", err, infra.KindNotFound)
		}
		return nil, infra.WrapRepoErr("failed to find coupon template", err)
	}
	tpl.Status = coupon.TemplateStatus(status)
	tpl.EligibleCategory = balance.Category(category)
	return &tpl, nil
}
