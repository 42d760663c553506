package readstore

import (
	"context"
	"errors"

	"loyalty-core/internal/domain/balance"
	"loyalty-core/internal/domain/coupon"
	"loyalty-core/internal/infra"
	"loyalty-core/internal/infra/db"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// WalletReadStore serves instance reads without locks. Status is stored as
// persisted; derived expiry is the query layer's concern.
type WalletReadStore struct {
	db db.DBTX
}

func NewWalletReadStore(dbtx db.DBTX) *WalletReadStore {
	return &WalletReadStore{db: dbtx}
}

const instanceViewColumns = `
    id, member_id, template_id, reward_key, title, description, image_url,
    category_used, cost_paid, status, code, qr_payload,
    issued_at, activated_at, used_at, active_expires_at, valid_until,
    created_at, updated_at
`

func (r *WalletReadStore) FindByMember(ctx context.Context, memberID uuid.UUID) ([]*coupon.Instance, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+instanceViewColumns+` FROM coupon_instances
		 WHERE member_id = $1
		 ORDER BY issued_at DESC, id DESC`,
		memberID)
	if err != nil {
		return nil, infra.WrapRepoErr("failed to list member coupons", err)
	}
	defer rows.Close()

	var instances []*coupon.Instance
	for rows.Next() {
		inst, err := scanInstanceView(rows)
		if err != nil {
			return nil, infra.WrapRepoErr("failed to scan coupon instance", err)
		}
		instances = append(instances, inst)
	}
	if err := rows.Err(); err != nil {
		return nil, infra.WrapRepoErr("failed to iterate member coupons", err)
	}
	return instances, nil
}

func (r *WalletReadStore) FindByID(ctx context.Context, id uuid.UUID) (*coupon.Instance, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+instanceViewColumns+` FROM coupon_instances WHERE id = $1`, id)
	inst, err := scanInstanceView(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, infra.WrapRepoErr("coupon instance not found", err, infra.KindNotFound)
		}
		return nil, infra.WrapRepoErr("failed to find coupon instance", err)
	}
	return inst, nil
}

func (r *WalletReadStore) FindNonTerminal(ctx context.Context, memberID uuid.UUID, rewardKey string) (*coupon.Instance, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+instanceViewColumns+` FROM coupon_instances
		 WHERE member_id = $1 AND reward_key = $2 AND status IN ('redeemed', 'active')`,
		memberID, rewardKey)
	inst, err := scanInstanceView(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, infra.WrapRepoErr("no live instance for reward", err, infra.KindNotFound)
		}
		return nil, infra.WrapRepoErr("failed to find live instance", err)
	}
	return inst, nil
}

func scanInstanceView(row pgx.Row) (*coupon.Instance, error) {
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
