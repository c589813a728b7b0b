package storage

import (
	"context"
	"math/big"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"emissionScope/internal/model"
)

func TestFileRoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "state", "emissions.json")

	store, err := OpenFile(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	asset := common.HexToAddress("0x00000000000000000000000000000000000000a1")
	user := common.HexToAddress("0x00000000000000000000000000000000000000b1")
	key := model.StreamKey{Asset: asset, Side: model.SideLiability}

	reserve := &model.Reserve{
		Asset:    asset,
		Decimals: 7,
		DSupply:  big.NewInt(50_0000000),
		BSupply:  big.NewInt(100_0000000),
	}
	if err := store.SetReserve(ctx, reserve); err != nil {
		t.Fatalf("set reserve: %v", err)
	}

	stream := &model.ReserveEmissionData{
		Index:      big.NewInt(23456780000000),
		LastTime:   1_500_000_000,
		Expiration: 1_600_000_000,
		EPS:        big.NewInt(1000000000000),
	}
	if err := store.SetEmissionData(ctx, key, stream); err != nil {
		t.Fatalf("set stream: %v", err)
	}

	snapshot := &model.UserEmissionData{
		Index:   big.NewInt(12345670000000),
		Accrued: big.NewInt(1000000),
	}
	if err := store.SetUserEmissionData(ctx, user, key, snapshot); err != nil {
		t.Fatalf("set snapshot: %v", err)
	}

	positions := model.NewPositions()
	positions.Liabilities[asset] = big.NewInt(2_0000000)
	positions.Collateral[asset] = big.NewInt(1_0000000)
	if err := store.SetPositions(ctx, user, positions); err != nil {
		t.Fatalf("set positions: %v", err)
	}

	if err := store.SetBalance(ctx, user, big.NewInt(42)); err != nil {
		t.Fatalf("set balance: %v", err)
	}

	if err := store.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}

	reopened, err := OpenFile(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}

	gotReserve, err := reopened.Reserve(ctx, asset)
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if !reflect.DeepEqual(gotReserve, reserve) {
		t.Fatalf("reserve = %+v, want %+v", gotReserve, reserve)
	}

	gotStream, err := reopened.EmissionData(ctx, key)
	if err != nil {
		t.Fatalf("stream: %v", err)
	}
	if !reflect.DeepEqual(gotStream, stream) {
		t.Fatalf("stream = %+v, want %+v", gotStream, stream)
	}

	gotSnapshot, err := reopened.UserEmissionData(ctx, user, key)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if !reflect.DeepEqual(gotSnapshot, snapshot) {
		t.Fatalf("snapshot = %+v, want %+v", gotSnapshot, snapshot)
	}

	gotPositions, err := reopened.Positions(ctx, user)
	if err != nil {
		t.Fatalf("positions: %v", err)
	}
	if !reflect.DeepEqual(gotPositions, positions) {
		t.Fatalf("positions = %+v, want %+v", gotPositions, positions)
	}

	gotBalance, err := reopened.Balance(ctx, user)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if gotBalance.Cmp(big.NewInt(42)) != 0 {
		t.Fatalf("balance = %s, want 42", gotBalance)
	}

	reserves, err := reopened.ListReserves(ctx)
	if err != nil {
		t.Fatalf("list reserves: %v", err)
	}
	if len(reserves) != 1 || reserves[0].Asset != asset {
		t.Fatalf("reserves = %+v", reserves)
	}
}

func TestFileOpenMissingStartsEmpty(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "missing.json")

	store, err := OpenFile(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	reserves, err := store.ListReserves(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(reserves) != 0 {
		t.Fatalf("expected empty store, got %d reserves", len(reserves))
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("open should not create the file: %v", err)
	}
}

func TestFileOpenRejectsCorruptState(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := OpenFile(path); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestFileFlushLeavesNoTemp(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "state.json")

	store, err := OpenFile(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := store.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("state file missing: %v", err)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Fatalf("tmp file left behind: %v", err)
	}
}
