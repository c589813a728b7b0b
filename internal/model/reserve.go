package model

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"emissionScope/internal/fixmath"
)

// Reserve holds the per-asset supply figures emission accrual divides by.
type Reserve struct {
	Asset    common.Address `json:"asset"`
	Decimals uint32         `json:"decimals"`
	DSupply  *big.Int       `json:"d_supply"`
	BSupply  *big.Int       `json:"b_supply"`
}

// SupplyFor returns the outstanding token supply for a stream side.
func (r *Reserve) SupplyFor(side TokenSide) *big.Int {
	if r == nil {
		return big.NewInt(0)
	}
	switch side {
	case SideLiability:
		return cloneBig(r.DSupply)
	default:
		return cloneBig(r.BSupply)
	}
}

// Scalar returns 10^Decimals, the reserve's fixed-point unit.
func (r *Reserve) Scalar() *big.Int {
	if r == nil {
		return big.NewInt(1)
	}
	return fixmath.PowerOfTen(r.Decimals)
}

func (r *Reserve) Clone() *Reserve {
	if r == nil {
		return nil
	}
	return &Reserve{
		Asset:    r.Asset,
		Decimals: r.Decimals,
		DSupply:  cloneBig(r.DSupply),
		BSupply:  cloneBig(r.BSupply),
	}
}
