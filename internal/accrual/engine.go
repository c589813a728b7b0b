// Package accrual advances emission stream indexes and reconciles user
// snapshots against them. Both operations are pure: the caller owns
// persistence and must advance a stream before mutating any balance that
// feeds its supply.
package accrual

import (
	"errors"
	"math/big"

	"emissionScope/internal/fixmath"
	"emissionScope/internal/model"
)

var (
	// ErrNegativeTimeDelta is returned when a stream's stored last-update
	// time is ahead of the effective timestamp. That means storage or call
	// ordering is broken and the call must halt rather than clamp.
	ErrNegativeTimeDelta = errors.New("accrual: stream last_time ahead of clock")
	// ErrNegativeIndexDelta is returned when a user snapshot index is ahead
	// of the stream index, violating index monotonicity.
	ErrNegativeIndexDelta = errors.New("accrual: user index ahead of stream index")
)

// emissionScalar normalizes accrued amounts to the emission token's
// 7-decimal convention.
var emissionScalar = big.NewInt(10_000_000)

// AdvanceIndex moves a stream's cumulative index forward to now, paying out
// elapsed-time * eps across the current supply. It returns the updated
// record and whether anything changed; unchanged records are echoed as
// clones so callers never alias stored state.
//
// The advance is skipped (no write needed) when the stream is fully
// accrued, already advanced this second, disabled, or has no supply.
func AdvanceIndex(data *model.ReserveEmissionData, supply, supplyScalar *big.Int, now uint64) (*model.ReserveEmissionData, bool, error) {
	out := data.Clone()
	if data.LastTime >= data.Expiration ||
		now == data.LastTime ||
		data.EPS == nil || data.EPS.Sign() == 0 ||
		supply == nil || supply.Sign() == 0 {
		return out, false, nil
	}

	clamped := now
	if clamped > data.Expiration {
		clamped = data.Expiration
	}
	if clamped < data.LastTime {
		return nil, false, ErrNegativeTimeDelta
	}

	elapsed := new(big.Int).SetUint64(clamped - data.LastTime)
	emitted := elapsed.Mul(elapsed, data.EPS)
	delta, err := fixmath.MulDivFloor(emitted, supplyScalar, supply)
	if err != nil {
		return nil, false, err
	}

	out.Index = new(big.Int).Add(out.Index, delta)
	if err := fixmath.CheckRange(out.Index); err != nil {
		return nil, false, err
	}
	out.LastTime = clamped
	return out, true, nil
}

// ReconcileUser settles a user snapshot against a just-advanced stream.
// When claim is set the settled total is returned as the payout and the
// stored accrued resets to zero; otherwise the total stays on the snapshot
// and the payout is zero. A nil snapshot means the user has never been
// reconciled against this stream: with a zero balance they start fresh,
// with a nonzero balance they are owed all emissions since inception.
func ReconcileUser(stream *model.ReserveEmissionData, snapshot *model.UserEmissionData, balance, supplyScalar *big.Int, claim bool) (*model.UserEmissionData, *big.Int, error) {
	denominator := new(big.Int).Mul(supplyScalar, emissionScalar)

	if snapshot == nil {
		if balance == nil || balance.Sign() == 0 {
			return settle(stream.Index, big.NewInt(0), claim)
		}
		owed, err := fixmath.MulDivFloor(balance, stream.Index, denominator)
		if err != nil {
			return nil, nil, err
		}
		return settle(stream.Index, owed, claim)
	}

	if snapshot.Index.Cmp(stream.Index) == 0 && !claim {
		return snapshot.Clone(), big.NewInt(0), nil
	}

	total := new(big.Int).Set(snapshot.Accrued)
	if balance != nil && balance.Sign() != 0 {
		deltaIndex := new(big.Int).Sub(stream.Index, snapshot.Index)
		if deltaIndex.Sign() < 0 {
			return nil, nil, ErrNegativeIndexDelta
		}
		toAccrue, err := fixmath.MulDivFloor(balance, deltaIndex, denominator)
		if err != nil {
			return nil, nil, err
		}
		total.Add(total, toAccrue)
		if err := fixmath.CheckRange(total); err != nil {
			return nil, nil, err
		}
	}
	return settle(stream.Index, total, claim)
}

func settle(index, accrued *big.Int, claim bool) (*model.UserEmissionData, *big.Int, error) {
	snapshot := &model.UserEmissionData{
		Index:   new(big.Int).Set(index),
		Accrued: accrued,
	}
	if claim {
		snapshot.Accrued = big.NewInt(0)
		return snapshot, accrued, nil
	}
	return snapshot, big.NewInt(0), nil
}
