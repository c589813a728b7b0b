package storage

import (
	"encoding/json"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"emissionScope/internal/model"
)

// File is a Store backed by a single JSON snapshot on disk. State is held
// in a Memory store and flushed with an atomic tmp+rename write. Big
// values are serialized as decimal strings.
type File struct {
	*Memory
	path string
}

type fileReserve struct {
	Asset    string `json:"asset"`
	Decimals uint32 `json:"decimals"`
	DSupply  string `json:"d_supply"`
	BSupply  string `json:"b_supply"`
}

type fileStream struct {
	Key        string `json:"key"`
	Index      string `json:"index"`
	LastTime   uint64 `json:"last_time"`
	Expiration uint64 `json:"expiration"`
	EPS        string `json:"eps"`
}

type fileUserStream struct {
	User    string `json:"user"`
	Key     string `json:"key"`
	Index   string `json:"index"`
	Accrued string `json:"accrued"`
}

type filePositions struct {
	User        string            `json:"user"`
	Liabilities map[string]string `json:"liabilities,omitempty"`
	Collateral  map[string]string `json:"collateral,omitempty"`
	Supply      map[string]string `json:"supply,omitempty"`
}

type fileBalance struct {
	Holder string `json:"holder"`
	Amount string `json:"amount"`
}

type fileSnapshot struct {
	Reserves  []fileReserve    `json:"reserves"`
	Streams   []fileStream     `json:"streams"`
	Users     []fileUserStream `json:"users"`
	Positions []filePositions  `json:"positions"`
	Balances  []fileBalance    `json:"balances"`
	UpdatedAt string           `json:"updated_at"`
}

// OpenFile loads a snapshot store from path, starting empty when the file
// does not exist yet.
func OpenFile(path string) (*File, error) {
	store := &File{Memory: NewMemory(), path: path}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return store, nil
		}
		return nil, fmt.Errorf("read state: %w", err)
	}

	var snapshot fileSnapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("parse state: %w", err)
	}
	if err := store.restore(snapshot); err != nil {
		return nil, err
	}
	return store, nil
}

// Flush writes the current state to disk.
func (f *File) Flush() error {
	snapshot, err := f.snapshot()
	if err != nil {
		return err
	}
	snapshot.UpdatedAt = time.Now().UTC().Format(time.RFC3339Nano)

	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}

	dir := filepath.Dir(f.path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create state dir: %w", err)
		}
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write state tmp: %w", err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		return fmt.Errorf("rename state: %w", err)
	}
	return nil
}

func (f *File) snapshot() (fileSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out fileSnapshot
	for _, asset := range f.order {
		reserve := f.reserves[asset]
		out.Reserves = append(out.Reserves, fileReserve{
			Asset:    reserve.Asset.Hex(),
			Decimals: reserve.Decimals,
			DSupply:  reserve.DSupply.String(),
			BSupply:  reserve.BSupply.String(),
		})
	}
	for key, stream := range f.streams {
		out.Streams = append(out.Streams, fileStream{
			Key:        key,
			Index:      stream.Index.String(),
			LastTime:   stream.LastTime,
			Expiration: stream.Expiration,
			EPS:        stream.EPS.String(),
		})
	}
	for key, user := range f.users {
		holder, streamKey, ok := splitUserKey(key)
		if !ok {
			return fileSnapshot{}, fmt.Errorf("bad user key %q", key)
		}
		out.Users = append(out.Users, fileUserStream{
			User:    holder,
			Key:     streamKey,
			Index:   user.Index.String(),
			Accrued: user.Accrued.String(),
		})
	}
	for user, positions := range f.positions {
		out.Positions = append(out.Positions, filePositions{
			User:        user.Hex(),
			Liabilities: encodeBalances(positions.Liabilities),
			Collateral:  encodeBalances(positions.Collateral),
			Supply:      encodeBalances(positions.Supply),
		})
	}
	for holder, amount := range f.balances {
		out.Balances = append(out.Balances, fileBalance{
			Holder: holder.Hex(),
			Amount: amount.String(),
		})
	}
	return out, nil
}

func (f *File) restore(snapshot fileSnapshot) error {
	for _, rec := range snapshot.Reserves {
		dSupply, err := parseBig(rec.DSupply)
		if err != nil {
			return err
		}
		bSupply, err := parseBig(rec.BSupply)
		if err != nil {
			return err
		}
		reserve := &model.Reserve{
			Asset:    common.HexToAddress(rec.Asset),
			Decimals: rec.Decimals,
			DSupply:  dSupply,
			BSupply:  bSupply,
		}
		f.reserves[reserve.Asset] = reserve
		f.order = append(f.order, reserve.Asset)
	}
	for _, rec := range snapshot.Streams {
		index, err := parseBig(rec.Index)
		if err != nil {
			return err
		}
		eps, err := parseBig(rec.EPS)
		if err != nil {
			return err
		}
		key, err := model.ParseStreamKey(rec.Key)
		if err != nil {
			return err
		}
		f.streams[key.String()] = &model.ReserveEmissionData{
			Index:      index,
			LastTime:   rec.LastTime,
			Expiration: rec.Expiration,
			EPS:        eps,
		}
	}
	for _, rec := range snapshot.Users {
		index, err := parseBig(rec.Index)
		if err != nil {
			return err
		}
		accrued, err := parseBig(rec.Accrued)
		if err != nil {
			return err
		}
		key, err := model.ParseStreamKey(rec.Key)
		if err != nil {
			return err
		}
		user := common.HexToAddress(rec.User)
		f.users[userKey(user, key)] = &model.UserEmissionData{Index: index, Accrued: accrued}
	}
	for _, rec := range snapshot.Positions {
		positions := model.NewPositions()
		var err error
		if positions.Liabilities, err = decodeBalances(rec.Liabilities); err != nil {
			return err
		}
		if positions.Collateral, err = decodeBalances(rec.Collateral); err != nil {
			return err
		}
		if positions.Supply, err = decodeBalances(rec.Supply); err != nil {
			return err
		}
		f.positions[common.HexToAddress(rec.User)] = positions
	}
	for _, rec := range snapshot.Balances {
		amount, err := parseBig(rec.Amount)
		if err != nil {
			return err
		}
		f.balances[common.HexToAddress(rec.Holder)] = amount
	}
	return nil
}

func encodeBalances(balances map[common.Address]*big.Int) map[string]string {
	if len(balances) == 0 {
		return nil
	}
	out := make(map[string]string, len(balances))
	for asset, amount := range balances {
		out[asset.Hex()] = amount.String()
	}
	return out
}

func decodeBalances(encoded map[string]string) (map[common.Address]*big.Int, error) {
	out := make(map[common.Address]*big.Int, len(encoded))
	for asset, amount := range encoded {
		parsed, err := parseBig(amount)
		if err != nil {
			return nil, err
		}
		out[common.HexToAddress(asset)] = parsed
	}
	return out, nil
}

func splitUserKey(key string) (user, stream string, ok bool) {
	sep := strings.IndexByte(key, '|')
	if sep < 0 {
		return "", "", false
	}
	return key[:sep], key[sep+1:], true
}

func parseBig(value string) (*big.Int, error) {
	if value == "" {
		return big.NewInt(0), nil
	}
	parsed, ok := new(big.Int).SetString(value, 10)
	if !ok {
		return nil, fmt.Errorf("invalid int: %s", value)
	}
	return parsed, nil
}
