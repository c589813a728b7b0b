package accrual

import (
	"errors"
	"math/big"
	"reflect"
	"testing"

	"emissionScope/internal/model"
)

func mustBig(t *testing.T, value string) *big.Int {
	t.Helper()
	parsed, ok := new(big.Int).SetString(value, 10)
	if !ok {
		t.Fatalf("invalid big int literal: %s", value)
	}
	return parsed
}

func referenceStream(t *testing.T) *model.ReserveEmissionData {
	t.Helper()
	return &model.ReserveEmissionData{
		Index:      mustBig(t, "23456780000000"),
		LastTime:   1_500_000_000,
		Expiration: 1_600_000_000,
		EPS:        mustBig(t, "1000000000000"), // 0.01 at 14 decimals
	}
}

func TestAdvanceIndex(t *testing.T) {
	stream := referenceStream(t)
	supply := big.NewInt(50_0000000)
	scalar := big.NewInt(1_0000000)

	got, changed, err := AdvanceIndex(stream, supply, scalar, 1_501_000_000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !changed {
		t.Fatalf("expected an index advance")
	}
	if got.LastTime != 1_501_000_000 {
		t.Fatalf("last_time = %d, want 1501000000", got.LastTime)
	}
	// 1e6 seconds of emissions over 50 units of supply.
	want := mustBig(t, "20023456780000000")
	if got.Index.Cmp(want) != 0 {
		t.Fatalf("index = %s, want %s", got.Index, want)
	}
	// The stored record is untouched until the caller persists.
	if stream.Index.Cmp(mustBig(t, "23456780000000")) != 0 || stream.LastTime != 1_500_000_000 {
		t.Fatalf("input record mutated: %+v", stream)
	}
}

func TestAdvanceIndexNoOpConditions(t *testing.T) {
	supply := big.NewInt(50_0000000)
	scalar := big.NewInt(1_0000000)

	cases := []struct {
		name   string
		mutate func(*model.ReserveEmissionData) (supply *big.Int, now uint64)
	}{
		{"fully accrued", func(d *model.ReserveEmissionData) (*big.Int, uint64) {
			d.LastTime = d.Expiration
			return supply, 1_601_000_000
		}},
		{"same second", func(d *model.ReserveEmissionData) (*big.Int, uint64) {
			return supply, d.LastTime
		}},
		{"zero eps", func(d *model.ReserveEmissionData) (*big.Int, uint64) {
			d.EPS = big.NewInt(0)
			return supply, 1_501_000_000
		}},
		{"zero supply", func(d *model.ReserveEmissionData) (*big.Int, uint64) {
			return big.NewInt(0), 1_501_000_000
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			stream := referenceStream(t)
			supply, now := tc.mutate(stream)
			before := stream.Clone()

			got, changed, err := AdvanceIndex(stream, supply, scalar, now)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if changed {
				t.Fatalf("expected no-op")
			}
			if !reflect.DeepEqual(got, before) {
				t.Fatalf("record changed on no-op: %+v != %+v", got, before)
			}
		})
	}
}

func TestAdvanceIndexClampsToExpiration(t *testing.T) {
	stream := &model.ReserveEmissionData{
		Index:      mustBig(t, "1234567890000000"),
		LastTime:   1_500_000_000,
		Expiration: 1_600_000_001,
		EPS:        mustBig(t, "1000000000000"),
	}

	got, changed, err := AdvanceIndex(stream, big.NewInt(100_0000000), big.NewInt(1_0000000), 1_700_000_000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !changed {
		t.Fatalf("expected an index advance")
	}
	if got.LastTime != 1_600_000_001 {
		t.Fatalf("last_time = %d, want expiration 1600000001", got.LastTime)
	}
	want := mustBig(t, "1001234577890000000")
	if got.Index.Cmp(want) != 0 {
		t.Fatalf("index = %s, want %s", got.Index, want)
	}
}

func TestAdvanceIndexRoundsDown(t *testing.T) {
	stream := &model.ReserveEmissionData{
		Index:      mustBig(t, "1234567890000000"),
		LastTime:   1_500_000_000,
		Expiration: 1_600_000_000,
		EPS:        mustBig(t, "1000000000000"),
	}

	got, _, err := AdvanceIndex(stream, big.NewInt(100_0001111), big.NewInt(1_0000000), 1_500_000_005)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := mustBig(t, "1234617889944450")
	if got.Index.Cmp(want) != 0 {
		t.Fatalf("index = %s, want %s", got.Index, want)
	}
}

func TestAdvanceIndexNegativeTimeDelta(t *testing.T) {
	stream := referenceStream(t)
	stream.LastTime = 1_501_000_001

	_, _, err := AdvanceIndex(stream, big.NewInt(50_0000000), big.NewInt(1_0000000), 1_501_000_000)
	if !errors.Is(err, ErrNegativeTimeDelta) {
		t.Fatalf("expected ErrNegativeTimeDelta, got %v", err)
	}
}

func TestAdvanceIndexWideSupply(t *testing.T) {
	// Supply of 1 trillion tokens at 18 decimals: the intermediate
	// emissions product is ~1e41 and must not overflow.
	stream := &model.ReserveEmissionData{
		Index:      mustBig(t, "23456780000000"),
		LastTime:   1_500_000_000,
		Expiration: 1_600_000_000,
		EPS:        mustBig(t, "10000000000000000"), // 100 per second
	}
	supply := mustBig(t, "1000000000000000000000000000000")
	scalar := mustBig(t, "1000000000000000000")

	got, _, err := AdvanceIndex(stream, supply, scalar, 1_510_000_000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.LastTime != 1_510_000_000 {
		t.Fatalf("last_time = %d", got.LastTime)
	}
	want := mustBig(t, "23556780000000")
	if got.Index.Cmp(want) != 0 {
		t.Fatalf("index = %s, want %s", got.Index, want)
	}
}

func TestAdvanceIndexMonotonic(t *testing.T) {
	stream := referenceStream(t)
	supply := big.NewInt(50_0000000)
	scalar := big.NewInt(1_0000000)

	prev := new(big.Int).Set(stream.Index)
	for _, now := range []uint64{1_500_000_001, 1_500_500_000, 1_500_500_000, 1_599_999_999, 1_700_000_000} {
		next, _, err := AdvanceIndex(stream, supply, scalar, now)
		if err != nil {
			t.Fatalf("advance to %d: %v", now, err)
		}
		if next.Index.Cmp(prev) < 0 {
			t.Fatalf("index decreased: %s -> %s", prev, next.Index)
		}
		prev = new(big.Int).Set(next.Index)
		stream = next
	}
}

func TestReconcileUserFirstTouch(t *testing.T) {
	stream := &model.ReserveEmissionData{
		Index:      mustBig(t, "123456789"),
		LastTime:   1_500_000_000,
		Expiration: 1_600_000_000,
		EPS:        mustBig(t, "1000000000000"),
	}

	snapshot, payout, err := ReconcileUser(stream, nil, big.NewInt(0), big.NewInt(1_0000000), false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snapshot.Index.Cmp(stream.Index) != 0 {
		t.Fatalf("snapshot index = %s, want %s", snapshot.Index, stream.Index)
	}
	if snapshot.Accrued.Sign() != 0 || payout.Sign() != 0 {
		t.Fatalf("first touch should owe nothing: accrued=%s payout=%s", snapshot.Accrued, payout)
	}
}

func TestReconcileUserFirstTouchWithBalance(t *testing.T) {
	stream := &model.ReserveEmissionData{
		Index:      mustBig(t, "1234567890000000"),
		LastTime:   1_500_000_000,
		Expiration: 1_600_000_000,
		EPS:        mustBig(t, "1000000000000"),
	}

	// Held tokens before emissions began: owed every historical emission.
	snapshot, payout, err := ReconcileUser(stream, nil, big.NewInt(5_000_000), big.NewInt(1_0000000), false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snapshot.Accrued.Cmp(big.NewInt(6_1728394)) != 0 {
		t.Fatalf("accrued = %s, want 61728394", snapshot.Accrued)
	}
	if payout.Sign() != 0 {
		t.Fatalf("payout = %s, want 0", payout)
	}

	// Claiming instead pays out immediately.
	snapshot, payout, err = ReconcileUser(stream, nil, big.NewInt(5_000_000), big.NewInt(1_0000000), true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if payout.Cmp(big.NewInt(6_1728394)) != 0 {
		t.Fatalf("payout = %s, want 61728394", payout)
	}
	if snapshot.Accrued.Sign() != 0 {
		t.Fatalf("accrued after claim = %s, want 0", snapshot.Accrued)
	}
}

func TestReconcileUserUnchangedIndexSkips(t *testing.T) {
	stream := &model.ReserveEmissionData{
		Index:      mustBig(t, "123456789"),
		LastTime:   1_500_000_000,
		Expiration: 1_600_000_000,
		EPS:        mustBig(t, "1000000000000"),
	}
	prior := &model.UserEmissionData{
		Index:   mustBig(t, "123456789"),
		Accrued: big.NewInt(1_1000000),
	}

	snapshot, payout, err := ReconcileUser(stream, prior, big.NewInt(5_000_000), big.NewInt(1_0000000), false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(snapshot, prior) {
		t.Fatalf("snapshot changed: %+v != %+v", snapshot, prior)
	}
	if payout.Sign() != 0 {
		t.Fatalf("payout = %s, want 0", payout)
	}
}

func TestReconcileUserZeroBalanceKeepsAccrued(t *testing.T) {
	stream := &model.ReserveEmissionData{
		Index:      mustBig(t, "123456789"),
		LastTime:   1_500_000_000,
		Expiration: 1_600_000_000,
		EPS:        mustBig(t, "1000000000000"),
	}
	prior := &model.UserEmissionData{
		Index:   mustBig(t, "56789"),
		Accrued: big.NewInt(1_000_000),
	}

	snapshot, payout, err := ReconcileUser(stream, prior, big.NewInt(0), big.NewInt(1_0000000), false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snapshot.Index.Cmp(stream.Index) != 0 {
		t.Fatalf("snapshot index should advance to %s, got %s", stream.Index, snapshot.Index)
	}
	if snapshot.Accrued.Cmp(big.NewInt(1_000_000)) != 0 {
		t.Fatalf("accrued = %s, want unchanged 1000000", snapshot.Accrued)
	}
	if payout.Sign() != 0 {
		t.Fatalf("payout = %s, want 0", payout)
	}
}

func TestReconcileUserAccrues(t *testing.T) {
	stream := &model.ReserveEmissionData{
		Index:      mustBig(t, "1234567890000000"),
		LastTime:   1_500_000_000,
		Expiration: 1_600_000_000,
		EPS:        mustBig(t, "1000000000000"),
	}
	prior := &model.UserEmissionData{
		Index:   mustBig(t, "567890000000"),
		Accrued: big.NewInt(1_000_000),
	}

	snapshot, payout, err := ReconcileUser(stream, prior, big.NewInt(5_000_000), big.NewInt(1_0000000), false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snapshot.Accrued.Cmp(big.NewInt(6_2700000)) != 0 {
		t.Fatalf("accrued = %s, want 62700000", snapshot.Accrued)
	}
	if payout.Sign() != 0 {
		t.Fatalf("payout = %s, want 0", payout)
	}
}

func TestReconcileUserClaimPaysAndResets(t *testing.T) {
	stream := &model.ReserveEmissionData{
		Index:      mustBig(t, "1234567890000000"),
		LastTime:   1_500_000_000,
		Expiration: 1_600_000_000,
		EPS:        mustBig(t, "1000000000000"),
	}
	prior := &model.UserEmissionData{
		Index:   mustBig(t, "567890000000"),
		Accrued: big.NewInt(1_000_000),
	}

	snapshot, payout, err := ReconcileUser(stream, prior, big.NewInt(5_000_000), big.NewInt(1_0000000), true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if payout.Cmp(big.NewInt(6_2700000)) != 0 {
		t.Fatalf("payout = %s, want 62700000", payout)
	}
	if snapshot.Accrued.Sign() != 0 {
		t.Fatalf("accrued after claim = %s, want 0", snapshot.Accrued)
	}
	if snapshot.Index.Cmp(stream.Index) != 0 {
		t.Fatalf("snapshot index = %s, want %s", snapshot.Index, stream.Index)
	}
}

func TestReconcileUserNegativeIndexDelta(t *testing.T) {
	stream := &model.ReserveEmissionData{
		Index:      mustBig(t, "123456789"),
		LastTime:   1_500_000_000,
		Expiration: 1_600_000_000,
		EPS:        mustBig(t, "1000000000000"),
	}
	prior := &model.UserEmissionData{
		Index:   mustBig(t, "123456790"),
		Accrued: big.NewInt(1_000_000),
	}

	_, _, err := ReconcileUser(stream, prior, big.NewInt(5_000_000), big.NewInt(1_0000000), true)
	if !errors.Is(err, ErrNegativeIndexDelta) {
		t.Fatalf("expected ErrNegativeIndexDelta, got %v", err)
	}
}

func TestAdvanceAndClaimScenario(t *testing.T) {
	// The end-to-end reference scenario: advance 1e6 seconds, then claim.
	stream := referenceStream(t)
	prior := &model.UserEmissionData{
		Index:   mustBig(t, "12345670000000"),
		Accrued: big.NewInt(1_000_000),
	}
	supply := big.NewInt(50_0000000)
	scalar := big.NewInt(1_0000000)

	advanced, changed, err := AdvanceIndex(stream, supply, scalar, 1_501_000_000)
	if err != nil {
		t.Fatalf("advance: %v", err)
	}
	if !changed || advanced.LastTime != 1_501_000_000 {
		t.Fatalf("advance mismatch: changed=%v last_time=%d", changed, advanced.LastTime)
	}

	snapshot, payout, err := ReconcileUser(advanced, prior, big.NewInt(2_0000000), scalar, true)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if payout.Cmp(big.NewInt(400_3222222)) != 0 {
		t.Fatalf("payout = %s, want 4003222222", payout)
	}
	if snapshot.Accrued.Sign() != 0 {
		t.Fatalf("accrued after claim = %s, want 0", snapshot.Accrued)
	}
	if snapshot.Index.Cmp(advanced.Index) != 0 {
		t.Fatalf("snapshot index = %s, want %s", snapshot.Index, advanced.Index)
	}
}

func TestAdvanceAndAccrueWideScenario(t *testing.T) {
	// 1e7 seconds at eps 100 over a trillion-token 18-decimal supply.
	stream := &model.ReserveEmissionData{
		Index:      mustBig(t, "23456780000000"),
		LastTime:   1_500_000_000,
		Expiration: 1_600_000_000,
		EPS:        mustBig(t, "10000000000000000"),
	}
	prior := &model.UserEmissionData{
		Index:   mustBig(t, "12345670000000"),
		Accrued: big.NewInt(1_000_000),
	}
	supply := mustBig(t, "1000000000000000000000000000000")
	scalar := mustBig(t, "1000000000000000000")

	advanced, _, err := AdvanceIndex(stream, supply, scalar, 1_510_000_000)
	if err != nil {
		t.Fatalf("advance: %v", err)
	}
	snapshot, _, err := ReconcileUser(advanced, prior, mustBig(t, "1000000000000000000"), scalar, false)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if snapshot.Accrued.Cmp(big.NewInt(2121111)) != 0 {
		t.Fatalf("accrued = %s, want 2121111", snapshot.Accrued)
	}
}
