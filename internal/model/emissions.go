package model

import "math/big"

// ReserveEmissionData tracks one emission stream's cumulative state.
// Index is the reward paid per unit of supply scalar since stream inception
// and never decreases. After Expiration the record freezes but persists.
type ReserveEmissionData struct {
	Index      *big.Int `json:"index"`
	LastTime   uint64   `json:"last_time"`
	Expiration uint64   `json:"expiration"`
	EPS        *big.Int `json:"eps"`
}

// Clone returns a deep copy so callers can hand out no-op echoes without
// aliasing stored state.
func (d *ReserveEmissionData) Clone() *ReserveEmissionData {
	if d == nil {
		return nil
	}
	return &ReserveEmissionData{
		Index:      cloneBig(d.Index),
		LastTime:   d.LastTime,
		Expiration: d.Expiration,
		EPS:        cloneBig(d.EPS),
	}
}

// UserEmissionData is a user's snapshot against one stream: the stream index
// at last reconciliation plus the unclaimed amount accrued so far.
type UserEmissionData struct {
	Index   *big.Int `json:"index"`
	Accrued *big.Int `json:"accrued"`
}

func (d *UserEmissionData) Clone() *UserEmissionData {
	if d == nil {
		return nil
	}
	return &UserEmissionData{
		Index:   cloneBig(d.Index),
		Accrued: cloneBig(d.Accrued),
	}
}

func cloneBig(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}
