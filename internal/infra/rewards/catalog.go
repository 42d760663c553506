package rewards

import (
	"context"
	"time"

	"loyalty-core/internal/domain/balance"
	"loyalty-core/internal/domain/reward"
)

// StaticCatalog resolves reward definitions from an in-memory table. The
// definitions are back-office reference data; the engine never mutates them.
type StaticCatalog struct {
	byKey      map[string]*reward.Definition
	byLegacyID map[int64]*reward.Definition
}

func NewStaticCatalog(defs []reward.Definition) *StaticCatalog {
	c := &StaticCatalog{
		byKey:      make(map[string]*reward.Definition, len(defs)),
		byLegacyID: make(map[int64]*reward.Definition, len(defs)),
	}
	for i := range defs {
		def := &defs[i]
		c.byKey[def.Key] = def
		if def.LegacyID != 0 {
			c.byLegacyID[def.LegacyID] = def
		}
	}
	return c
}

func (c *StaticCatalog) FindByKey(_ context.Context, key string) (*reward.Definition, error) {
	if def, ok := c.byKey[key]; ok {
		return def, nil
	}
	return nil, reward.ErrNotFound
}

func (c *StaticCatalog) FindByLegacyID(_ context.Context, id int64) (*reward.Definition, error) {
	if def, ok := c.byLegacyID[id]; ok {
		return def, nil
	}
	return nil, reward.ErrNotFound
}

// DefaultDefinitions is the seed reward set. Replace with a back-office feed
// when one exists; the engine only depends on the Catalog interface.
func DefaultDefinitions(now time.Time) []reward.Definition {
	return []reward.Definition{
		{
			Key:              "coffee-voucher",
			LegacyID:         1001,
			Kind:             reward.KindCoupon,
			Title:            "Coffee Voucher",
			Description:      "One free coffee at participating branches",
			PointCost:        10,
			EligibleCategory: balance.CategoryBank,
			InitialStock:     500,
			ExpiresAt:        now.AddDate(0, 6, 0),
		},
		{
			Key:              "movie-ticket",
			LegacyID:         1002,
			Kind:             reward.KindCoupon,
			Title:            "Movie Ticket",
			Description:      "Standard seat, any weekday showing",
			PointCost:        120,
			EligibleCategory: balance.CategoryAny,
			InitialStock:     200,
			ExpiresAt:        now.AddDate(0, 3, 0),
		},
		{
			Key:              "wealth-advisory-session",
			LegacyID:         1003,
			Kind:             reward.KindCoupon,
			Title:            "Advisory Session",
			Description:      "30-minute session with a wealth advisor",
			PointCost:        300,
			EligibleCategory: balance.CategoryWealth,
			InitialStock:     50,
			ExpiresAt:        now.AddDate(1, 0, 0),
		},
		{
			Key:              "loyal-member-badge",
			LegacyID:         1004,
			Kind:             reward.KindBadge,
			Title:            "Loyal Member Badge",
			Description:      "Display-only membership badge",
		},
	}
}
