// Package claim drives emission accrual across streams for a user and
// settles the aggregate payout. A claim batch is all-or-nothing: every
// write is staged in memory, committed only after the whole batch settles,
// and restored from pre-claim state if the commit or the payout transfer
// fails. The transfer runs last, so a payout is never sent before the
// claim is recorded.
package claim

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"emissionScope/internal/accrual"
	"emissionScope/internal/model"
)

// ErrUnknownReserve is returned when a stream key references an asset with
// no configured reserve. The whole batch aborts; nothing is committed.
var ErrUnknownReserve = errors.New("claim: unknown reserve")

// Store is the persistence surface the claim flow needs.
type Store interface {
	Reserve(ctx context.Context, asset common.Address) (*model.Reserve, error)
	EmissionData(ctx context.Context, key model.StreamKey) (*model.ReserveEmissionData, error)
	SetEmissionData(ctx context.Context, key model.StreamKey, data *model.ReserveEmissionData) error
	UserEmissionData(ctx context.Context, user common.Address, key model.StreamKey) (*model.UserEmissionData, error)
	SetUserEmissionData(ctx context.Context, user common.Address, key model.StreamKey, data *model.UserEmissionData) error
	Positions(ctx context.Context, user common.Address) (*model.Positions, error)
	Transfer(ctx context.Context, from, to common.Address, amount *big.Int) error
}

// Claimer orchestrates accrual and claiming over a Store. Source is the
// address emission payouts are transferred from.
type Claimer struct {
	store  Store
	source common.Address
	now    func() uint64
	logger *zap.Logger
}

func NewClaimer(store Store, source common.Address, logger *zap.Logger) *Claimer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Claimer{
		store:  store,
		source: source,
		now:    func() uint64 { return uint64(time.Now().Unix()) },
		logger: logger,
	}
}

// WithNow overrides the time source, e.g. for tests or replays.
func (c *Claimer) WithNow(now func() uint64) *Claimer {
	c.now = now
	return c
}

// batchState stages stream and snapshot writes so later iterations over a
// duplicated key observe earlier updates without touching the store. It
// also keeps the pre-claim records so a failed commit or transfer can be
// rolled back.
type batchState struct {
	streams       map[string]*model.ReserveEmissionData
	snapshots     map[string]*model.UserEmissionData
	prevStreams   map[string]*model.ReserveEmissionData
	prevSnapshots map[string]*model.UserEmissionData
}

func newBatchState() *batchState {
	return &batchState{
		streams:       make(map[string]*model.ReserveEmissionData),
		snapshots:     make(map[string]*model.UserEmissionData),
		prevStreams:   make(map[string]*model.ReserveEmissionData),
		prevSnapshots: make(map[string]*model.UserEmissionData),
	}
}

// Claim advances and claims every stream in keys, in order, for the user.
// Duplicate keys are processed again and simply settle to zero. Streams
// with no emission record contribute nothing. The aggregate payout is
// transferred once, from the claimer's source to the recipient; a zero
// aggregate issues no transfer and is not an error.
func (c *Claimer) Claim(ctx context.Context, from common.Address, keys []model.StreamKey, to common.Address) (*big.Int, error) {
	positions, err := c.store.Positions(ctx, from)
	if err != nil {
		return nil, fmt.Errorf("load positions: %w", err)
	}

	now := c.now()
	state := newBatchState()
	total := big.NewInt(0)

	for _, key := range keys {
		payout, err := c.settleStream(ctx, state, key, from, positions, now, true)
		if err != nil {
			return nil, err
		}
		total.Add(total, payout)
	}

	// State first, payout last: the claim must be recorded before the
	// tokens move, so a transfer failure can only strand unclaimed state,
	// which the rollback restores.
	if err := c.commit(ctx, state, from); err != nil {
		c.rollback(ctx, state, from)
		return nil, err
	}
	if total.Sign() > 0 {
		if err := c.store.Transfer(ctx, c.source, to, total); err != nil {
			c.rollback(ctx, state, from)
			return nil, fmt.Errorf("transfer payout: %w", err)
		}
	}

	c.logger.Info("claim settled",
		zap.String("user", from.Hex()),
		zap.String("to", to.Hex()),
		zap.Int("streams", len(keys)),
		zap.String("payout", total.String()),
	)
	return total, nil
}

// Accrue reconciles a user's snapshot against one stream without claiming.
// Call it for the affected stream before any mutation of the stream's
// supply or the user's balance, so accrual reflects the pre-mutation
// state.
func (c *Claimer) Accrue(ctx context.Context, user common.Address, key model.StreamKey) error {
	positions, err := c.store.Positions(ctx, user)
	if err != nil {
		return fmt.Errorf("load positions: %w", err)
	}

	state := newBatchState()
	if _, err := c.settleStream(ctx, state, key, user, positions, c.now(), false); err != nil {
		return err
	}
	if err := c.commit(ctx, state, user); err != nil {
		c.rollback(ctx, state, user)
		return err
	}
	return nil
}

// AdvanceStream advances one stream's index without touching any user.
func (c *Claimer) AdvanceStream(ctx context.Context, key model.StreamKey) (bool, error) {
	reserve, err := c.store.Reserve(ctx, key.Asset)
	if err != nil {
		return false, fmt.Errorf("load reserve: %w", err)
	}
	if reserve == nil {
		return false, fmt.Errorf("%w: %s", ErrUnknownReserve, key)
	}
	stream, err := c.store.EmissionData(ctx, key)
	if err != nil {
		return false, fmt.Errorf("load stream %s: %w", key, err)
	}
	if stream == nil {
		return false, nil
	}

	advanced, changed, err := accrual.AdvanceIndex(stream, reserve.SupplyFor(key.Side), reserve.Scalar(), c.now())
	if err != nil {
		return false, fmt.Errorf("advance stream %s: %w", key, err)
	}
	if !changed {
		return false, nil
	}
	if err := c.store.SetEmissionData(ctx, key, advanced); err != nil {
		return false, fmt.Errorf("store stream %s: %w", key, err)
	}
	c.logger.Debug("stream advanced",
		zap.String("stream", key.String()),
		zap.String("index", advanced.Index.String()),
		zap.Uint64("last_time", advanced.LastTime),
	)
	return true, nil
}

func (c *Claimer) settleStream(ctx context.Context, state *batchState, key model.StreamKey, user common.Address, positions *model.Positions, now uint64, claiming bool) (*big.Int, error) {
	reserve, err := c.store.Reserve(ctx, key.Asset)
	if err != nil {
		return nil, fmt.Errorf("load reserve: %w", err)
	}
	if reserve == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownReserve, key)
	}

	streamID := key.String()
	stream, ok := state.streams[streamID]
	if !ok {
		if stream, err = c.store.EmissionData(ctx, key); err != nil {
			return nil, fmt.Errorf("load stream %s: %w", key, err)
		}
	}
	if stream == nil {
		// No emission schedule configured for this position.
		return big.NewInt(0), nil
	}

	supply := reserve.SupplyFor(key.Side)
	scalar := reserve.Scalar()
	balance := positions.BalanceFor(key.Asset, key.Side)

	advanced, changed, err := accrual.AdvanceIndex(stream, supply, scalar, now)
	if err != nil {
		return nil, fmt.Errorf("advance stream %s: %w", key, err)
	}
	if changed {
		if _, seen := state.prevStreams[streamID]; !seen {
			state.prevStreams[streamID] = stream.Clone()
		}
		state.streams[streamID] = advanced
	}

	snapshot, ok := state.snapshots[streamID]
	if !ok {
		if snapshot, err = c.store.UserEmissionData(ctx, user, key); err != nil {
			return nil, fmt.Errorf("load snapshot %s: %w", key, err)
		}
		state.prevSnapshots[streamID] = snapshot.Clone()
	}

	newSnapshot, payout, err := accrual.ReconcileUser(advanced, snapshot, balance, scalar, claiming)
	if err != nil {
		return nil, fmt.Errorf("reconcile %s: %w", key, err)
	}
	state.snapshots[streamID] = newSnapshot
	return payout, nil
}

func (c *Claimer) commit(ctx context.Context, state *batchState, user common.Address) error {
	for id, stream := range state.streams {
		key, err := model.ParseStreamKey(id)
		if err != nil {
			return err
		}
		if err := c.store.SetEmissionData(ctx, key, stream); err != nil {
			return fmt.Errorf("store stream %s: %w", id, err)
		}
	}
	for id, snapshot := range state.snapshots {
		key, err := model.ParseStreamKey(id)
		if err != nil {
			return err
		}
		if err := c.store.SetUserEmissionData(ctx, user, key, snapshot); err != nil {
			return fmt.Errorf("store snapshot %s: %w", id, err)
		}
	}
	return nil
}

// rollback best-effort restores the pre-claim records after a failed
// commit or transfer. A snapshot that did not exist before the batch is
// restored as a zero snapshot, which reconciles identically to an absent
// one. Restore failures are logged; the store is already misbehaving at
// that point.
func (c *Claimer) rollback(ctx context.Context, state *batchState, user common.Address) {
	for id, stream := range state.prevStreams {
		key, err := model.ParseStreamKey(id)
		if err != nil {
			c.logger.Error("rollback stream", zap.String("stream", id), zap.Error(err))
			continue
		}
		if err := c.store.SetEmissionData(ctx, key, stream); err != nil {
			c.logger.Error("rollback stream", zap.String("stream", id), zap.Error(err))
		}
	}
	for id, snapshot := range state.prevSnapshots {
		key, err := model.ParseStreamKey(id)
		if err != nil {
			c.logger.Error("rollback snapshot", zap.String("stream", id), zap.Error(err))
			continue
		}
		if snapshot == nil {
			snapshot = &model.UserEmissionData{Index: big.NewInt(0), Accrued: big.NewInt(0)}
		}
		if err := c.store.SetUserEmissionData(ctx, user, key, snapshot); err != nil {
			c.logger.Error("rollback snapshot", zap.String("stream", id), zap.Error(err))
		}
	}
}
