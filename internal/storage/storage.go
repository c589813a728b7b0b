// Package storage persists emission streams, user snapshots, reserve
// state, and token balances. All big values cross the persistence boundary
// as decimal strings.
package storage

import (
	"context"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"emissionScope/internal/model"
)

// ErrInsufficientBalance is returned by Transfer when the source holds
// fewer tokens than the requested amount.
var ErrInsufficientBalance = errors.New("storage: insufficient balance")

// Store is the persistence contract the accrual and claim flows run over.
// Absent records are returned as nil values, not errors.
type Store interface {
	Reserve(ctx context.Context, asset common.Address) (*model.Reserve, error)
	SetReserve(ctx context.Context, reserve *model.Reserve) error
	ListReserves(ctx context.Context) ([]*model.Reserve, error)

	EmissionData(ctx context.Context, key model.StreamKey) (*model.ReserveEmissionData, error)
	SetEmissionData(ctx context.Context, key model.StreamKey, data *model.ReserveEmissionData) error

	UserEmissionData(ctx context.Context, user common.Address, key model.StreamKey) (*model.UserEmissionData, error)
	SetUserEmissionData(ctx context.Context, user common.Address, key model.StreamKey, data *model.UserEmissionData) error

	Positions(ctx context.Context, user common.Address) (*model.Positions, error)
	SetPositions(ctx context.Context, user common.Address, positions *model.Positions) error

	Balance(ctx context.Context, holder common.Address) (*big.Int, error)
	SetBalance(ctx context.Context, holder common.Address, amount *big.Int) error
	Transfer(ctx context.Context, from, to common.Address, amount *big.Int) error
}
