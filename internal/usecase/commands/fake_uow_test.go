//go:build unit

package commands_test

import (
	"context"
	"time"

	"loyalty-core/internal/domain/balance"
	"loyalty-core/internal/domain/coupon"
	"loyalty-core/internal/domain/ledger"
	"loyalty-core/internal/domain/reward"
	"loyalty-core/internal/infra"
	"loyalty-core/internal/usecase/shared"

	"github.com/google/uuid"
)

// fakeUnitOfWork backs the command tests with an in-memory store that honors
// the same constraints the Postgres layer enforces: non-negative balances,
// atomic stock reservation, and the one-live-instance uniqueness rule.
// Within snapshots the store and restores it when the function errors, so
// rollback semantics are observable in tests.
type fakeUnitOfWork struct {
	store *fakeStore
}

func newFakeUnitOfWork() *fakeUnitOfWork {
	return &fakeUnitOfWork{store: newFakeStore()}
}

func (u *fakeUnitOfWork) Within(ctx context.Context, fn func(ctx context.Context, tx shared.Tx) error) error {
	backup := u.store.clone()
	if err := fn(ctx, &fakeTx{store: u.store}); err != nil {
		*u.store = *backup
		return err
	}
	return nil
}

func (u *fakeUnitOfWork) Journal() shared.LedgerRepository {
	return &fakeLedgerRepo{store: u.store}
}

func (u *fakeUnitOfWork) CommandReads() shared.CommandReads {
	return &fakeCommandReads{store: u.store}
}

type fakeStore struct {
	balances  map[uuid.UUID]balance.Snapshot
	templates map[uuid.UUID]*coupon.Template
	instances map[uuid.UUID]*coupon.Instance
	entries   []ledger.Entry

	// appendErr, when set, fails the next ledger append. Used to observe
	// transaction rollback.
	appendErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		balances:  make(map[uuid.UUID]balance.Snapshot),
		templates: make(map[uuid.UUID]*coupon.Template),
		instances: make(map[uuid.UUID]*coupon.Instance),
	}
}

func (s *fakeStore) clone() *fakeStore {
	c := newFakeStore()
	for k, v := range s.balances {
		c.balances[k] = v
	}
	for k, v := range s.templates {
		tpl := *v
		c.templates[k] = &tpl
	}
	for k, v := range s.instances {
		inst := *v
		c.instances[k] = &inst
	}
	c.entries = append(c.entries, s.entries...)
	c.appendErr = s.appendErr
	return c
}

func (s *fakeStore) templateByKey(key string) *coupon.Template {
	for _, tpl := range s.templates {
		if tpl.RewardKey == key {
			return tpl
		}
	}
	return nil
}

func (s *fakeStore) liveInstance(memberID uuid.UUID, rewardKey string) *coupon.Instance {
	for _, inst := range s.instances {
		if inst.MemberID == memberID && inst.RewardKey == rewardKey && !inst.Status.Terminal() {
			return inst
		}
	}
	return nil
}

type fakeTx struct {
	store *fakeStore
}

func (t *fakeTx) Balances() shared.BalanceRepository   { return &fakeBalanceRepo{store: t.store} }
func (t *fakeTx) Templates() shared.TemplateRepository { return &fakeTemplateRepo{store: t.store} }
func (t *fakeTx) Instances() shared.InstanceRepository { return &fakeInstanceRepo{store: t.store} }
func (t *fakeTx) Ledger() shared.LedgerRepository      { return &fakeLedgerRepo{store: t.store} }

type fakeBalanceRepo struct {
	store *fakeStore
}

func (r *fakeBalanceRepo) GetOrCreate(_ context.Context, memberID uuid.UUID) (balance.Snapshot, error) {
	if snap, ok := r.store.balances[memberID]; ok {
		return snap, nil
	}
	r.store.balances[memberID] = balance.Snapshot{}
	return balance.Snapshot{}, nil
}

func (r *fakeBalanceRepo) Adjust(_ context.Context, memberID uuid.UUID, d balance.Deltas) (balance.Snapshot, error) {
	snap, ok := r.store.balances[memberID]
	if !ok {
		return balance.Snapshot{}, infra.WrapRepoErr("balance not found", nil, infra.KindNotFound)
	}
	next, err := snap.Apply(d)
	if err != nil {
		return balance.Snapshot{}, infra.WrapRepoErr("balance would go negative", err, infra.KindInsufficientBalance)
	}
	r.store.balances[memberID] = next
	return next, nil
}

type fakeTemplateRepo struct {
	store *fakeStore
}

func (r *fakeTemplateRepo) Ensure(_ context.Context, def *reward.Definition) (*coupon.Template, error) {
	if tpl := r.store.templateByKey(def.Key); tpl != nil {
		cp := *tpl
		return &cp, nil
	}
	tpl := &coupon.Template{
		ID:               uuid.New(),
		RewardKey:        def.Key,
		Title:            def.Title,
		Description:      def.Description,
		ImageURL:         def.ImageURL,
		Stock:            def.InitialStock,
		Status:           coupon.TemplateActive,
		ExpiresAt:        def.ExpiresAt,
		PointCost:        def.PointCost,
		EligibleCategory: def.EligibleCategory,
	}
	r.store.templates[tpl.ID] = tpl
	cp := *tpl
	return &cp, nil
}

func (r *fakeTemplateRepo) ReserveStock(_ context.Context, templateID uuid.UUID, now time.Time) (*coupon.Template, error) {
	tpl, ok := r.store.templates[templateID]
	if !ok {
		return nil, infra.WrapRepoErr("template not found", nil, infra.KindNotFound)
	}
	if err := tpl.CheckRedeemable(now); err != nil {
		switch err {
		case coupon.ErrTemplateInactive:
			return nil, infra.WrapRepoErr("template not active", err, infra.KindInactive)
		case coupon.ErrTemplateExpired:
			return nil, infra.WrapRepoErr("template expired", err, infra.KindExpired)
		default:
			return nil, infra.WrapRepoErr("out of stock", err, infra.KindOutOfStock)
		}
	}
	tpl.Stock--
	tpl.IssuedCount++
	cp := *tpl
	return &cp, nil
}

func (r *fakeTemplateRepo) IncrementUsed(_ context.Context, templateID uuid.UUID) error {
	tpl, ok := r.store.templates[templateID]
	if !ok {
		return infra.WrapRepoErr("template not found", nil, infra.KindNotFound)
	}
	tpl.UsedCount++
	return nil
}

type fakeInstanceRepo struct {
	store *fakeStore
}

func (r *fakeInstanceRepo) Create(_ context.Context, inst *coupon.Instance) error {
	if r.store.liveInstance(inst.MemberID, inst.RewardKey) != nil {
		return infra.WrapRepoErr("live instance already exists", nil, infra.KindDuplicateKey)
	}
	cp := *inst
	r.store.instances[inst.ID] = &cp
	return nil
}

func (r *fakeInstanceRepo) ExpireStale(_ context.Context, memberID uuid.UUID, rewardKey string, now time.Time) error {
	for _, inst := range r.store.instances {
		if inst.MemberID == memberID && inst.RewardKey == rewardKey {
			inst.MarkExpired(now)
		}
	}
	return nil
}

func (r *fakeInstanceRepo) FindNonTerminal(_ context.Context, memberID uuid.UUID, rewardKey string) (*coupon.Instance, error) {
	if inst := r.store.liveInstance(memberID, rewardKey); inst != nil {
		cp := *inst
		return &cp, nil
	}
	return nil, infra.WrapRepoErr("no live instance", nil, infra.KindNotFound)
}

func (r *fakeInstanceRepo) GetForUpdate(_ context.Context, id uuid.UUID) (*coupon.Instance, error) {
	inst, ok := r.store.instances[id]
	if !ok {
		return nil, infra.WrapRepoErr("instance not found", nil, infra.KindNotFound)
	}
	cp := *inst
	return &cp, nil
}

func (r *fakeInstanceRepo) GetByCodeForUpdate(_ context.Context, code string) (*coupon.Instance, error) {
	for _, inst := range r.store.instances {
		if inst.Code == code {
			cp := *inst
			return &cp, nil
		}
	}
	return nil, infra.WrapRepoErr("instance not found", nil, infra.KindNotFound)
}

func (r *fakeInstanceRepo) SaveStatus(_ context.Context, inst *coupon.Instance) error {
	stored, ok := r.store.instances[inst.ID]
	if !ok {
		return infra.WrapRepoErr("instance not found", nil, infra.KindNotFound)
	}
	stored.Status = inst.Status
	stored.ActivatedAt = inst.ActivatedAt
	stored.UsedAt = inst.UsedAt
	stored.ActiveExpiresAt = inst.ActiveExpiresAt
	return nil
}

type fakeLedgerRepo struct {
	store *fakeStore
}

func (r *fakeLedgerRepo) Append(_ context.Context, e *ledger.Entry) error {
	if r.store.appendErr != nil {
		err := r.store.appendErr
		r.store.appendErr = nil
		return infra.WrapRepoErr("append failed", err)
	}
	r.store.entries = append(r.store.entries, *e)
	return nil
}

type fakeCommandReads struct {
	store *fakeStore
}

func (r *fakeCommandReads) TemplateByRewardKey(_ context.Context, rewardKey string) (*coupon.Template, error) {
	if tpl := r.store.templateByKey(rewardKey); tpl != nil {
		cp := *tpl
		return &cp, nil
	}
	return nil, infra.WrapRepoErr("template not found", nil, infra.KindNotFound)
}

func (r *fakeCommandReads) NonTerminalInstance(_ context.Context, memberID uuid.UUID, rewardKey string) (*coupon.Instance, error) {
	return (&fakeInstanceRepo{store: r.store}).FindNonTerminal(context.Background(), memberID, rewardKey)
}

func (r *fakeCommandReads) BalanceByMember(_ context.Context, memberID uuid.UUID) (*balance.Snapshot, error) {
	if snap, ok := r.store.balances[memberID]; ok {
		return &snap, nil
	}
	zero := balance.Snapshot{}
	return &zero, nil
}

// staticCatalog is a test double for the reward catalog.
type staticCatalog struct {
	defs map[string]*reward.Definition
}

func (c *staticCatalog) FindByKey(_ context.Context, key string) (*reward.Definition, error) {
	if def, ok := c.defs[key]; ok {
		return def, nil
	}
	return nil, reward.ErrNotFound
}

func (c *staticCatalog) FindByLegacyID(_ context.Context, id int64) (*reward.Definition, error) {
	for _, def := range c.defs {
		if def.LegacyID == id {
			return def, nil
		}
	}
	return nil, reward.ErrNotFound
}
