package storage

import (
	"context"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"emissionScope/internal/model"
)

// Memory is a mutex-guarded in-memory Store. It backs the file snapshot
// store and the test suites; records are cloned on every read and write so
// callers never share state with the store.
type Memory struct {
	mu        sync.Mutex
	reserves  map[common.Address]*model.Reserve
	order     []common.Address
	streams   map[string]*model.ReserveEmissionData
	users     map[string]*model.UserEmissionData
	positions map[common.Address]*model.Positions
	balances  map[common.Address]*big.Int
}

func NewMemory() *Memory {
	return &Memory{
		reserves:  make(map[common.Address]*model.Reserve),
		streams:   make(map[string]*model.ReserveEmissionData),
		users:     make(map[string]*model.UserEmissionData),
		positions: make(map[common.Address]*model.Positions),
		balances:  make(map[common.Address]*big.Int),
	}
}

func userKey(user common.Address, key model.StreamKey) string {
	return user.Hex() + "|" + key.String()
}

func (m *Memory) Reserve(_ context.Context, asset common.Address) (*model.Reserve, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reserves[asset].Clone(), nil
}

func (m *Memory) SetReserve(_ context.Context, reserve *model.Reserve) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.reserves[reserve.Asset]; !ok {
		m.order = append(m.order, reserve.Asset)
	}
	m.reserves[reserve.Asset] = reserve.Clone()
	return nil
}

func (m *Memory) ListReserves(_ context.Context) ([]*model.Reserve, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*model.Reserve, 0, len(m.order))
	for _, asset := range m.order {
		out = append(out, m.reserves[asset].Clone())
	}
	return out, nil
}

func (m *Memory) EmissionData(_ context.Context, key model.StreamKey) (*model.ReserveEmissionData, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.streams[key.String()].Clone(), nil
}

func (m *Memory) SetEmissionData(_ context.Context, key model.StreamKey, data *model.ReserveEmissionData) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.streams[key.String()] = data.Clone()
	return nil
}

func (m *Memory) UserEmissionData(_ context.Context, user common.Address, key model.StreamKey) (*model.UserEmissionData, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.users[userKey(user, key)].Clone(), nil
}

func (m *Memory) SetUserEmissionData(_ context.Context, user common.Address, key model.StreamKey, data *model.UserEmissionData) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[userKey(user, key)] = data.Clone()
	return nil
}

func (m *Memory) Positions(_ context.Context, user common.Address) (*model.Positions, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.positions[user].Clone(), nil
}

func (m *Memory) SetPositions(_ context.Context, user common.Address, positions *model.Positions) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.positions[user] = positions.Clone()
	return nil
}

func (m *Memory) Balance(_ context.Context, holder common.Address) (*big.Int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if amount, ok := m.balances[holder]; ok {
		return new(big.Int).Set(amount), nil
	}
	return big.NewInt(0), nil
}

func (m *Memory) SetBalance(_ context.Context, holder common.Address, amount *big.Int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balances[holder] = new(big.Int).Set(amount)
	return nil
}

// Transfer moves tokens between holders, failing without mutation when the
// source balance is insufficient.
func (m *Memory) Transfer(_ context.Context, from, to common.Address, amount *big.Int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	src := m.balances[from]
	if src == nil || src.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	src.Sub(src, amount)
	dst := m.balances[to]
	if dst == nil {
		dst = big.NewInt(0)
		m.balances[to] = dst
	}
	dst.Add(dst, amount)
	return nil
}
