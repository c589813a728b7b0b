package model

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Positions holds one user's per-asset balances. Liabilities are debt-token
// balances; Collateral and Supply are both supply-token balances and count
// together for supply-side emissions.
type Positions struct {
	Liabilities map[common.Address]*big.Int `json:"liabilities"`
	Collateral  map[common.Address]*big.Int `json:"collateral"`
	Supply      map[common.Address]*big.Int `json:"supply"`
}

func NewPositions() *Positions {
	return &Positions{
		Liabilities: make(map[common.Address]*big.Int),
		Collateral:  make(map[common.Address]*big.Int),
		Supply:      make(map[common.Address]*big.Int),
	}
}

// BalanceFor returns the user's balance relevant to a stream side.
func (p *Positions) BalanceFor(asset common.Address, side TokenSide) *big.Int {
	if p == nil {
		return big.NewInt(0)
	}
	if side == SideLiability {
		return cloneBig(p.Liabilities[asset])
	}
	total := cloneBig(p.Collateral[asset])
	if extra, ok := p.Supply[asset]; ok && extra != nil {
		total.Add(total, extra)
	}
	return total
}

func (p *Positions) Clone() *Positions {
	if p == nil {
		return nil
	}
	out := NewPositions()
	for asset, amount := range p.Liabilities {
		out.Liabilities[asset] = cloneBig(amount)
	}
	for asset, amount := range p.Collateral {
		out.Collateral[asset] = cloneBig(amount)
	}
	for asset, amount := range p.Supply {
		out.Supply[asset] = cloneBig(amount)
	}
	return out
}
