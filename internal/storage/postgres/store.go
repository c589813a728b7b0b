// Package postgres implements the storage.Store contract on Postgres.
// Amounts are stored as NUMERIC and scanned through decimal strings.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"emissionScope/internal/model"
	"emissionScope/internal/storage"
)

// Store provides Postgres persistence for emission state.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

func (s *Store) Reserve(ctx context.Context, asset common.Address) (*model.Reserve, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT decimals, d_supply::text, b_supply::text
		FROM reserves WHERE asset=$1
	`, asset.Hex())

	var decimals uint32
	var dSupply, bSupply string
	if err := row.Scan(&decimals, &dSupply, &bSupply); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	reserve := &model.Reserve{Asset: asset, Decimals: decimals}
	var err error
	if reserve.DSupply, err = parseBig(dSupply); err != nil {
		return nil, err
	}
	if reserve.BSupply, err = parseBig(bSupply); err != nil {
		return nil, err
	}
	return reserve, nil
}

func (s *Store) SetReserve(ctx context.Context, reserve *model.Reserve) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO reserves (asset, decimals, d_supply, b_supply, created_at, updated_at)
		VALUES ($1, $2, $3::numeric, $4::numeric, now(), now())
		ON CONFLICT (asset) DO UPDATE SET
			decimals = EXCLUDED.decimals,
			d_supply = EXCLUDED.d_supply,
			b_supply = EXCLUDED.b_supply,
			updated_at = now()
	`, reserve.Asset.Hex(), reserve.Decimals, reserve.DSupply.String(), reserve.BSupply.String())
	return err
}

func (s *Store) ListReserves(ctx context.Context) ([]*model.Reserve, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT asset, decimals, d_supply::text, b_supply::text
		FROM reserves ORDER BY created_at
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reserves []*model.Reserve
	for rows.Next() {
		var asset string
		var decimals uint32
		var dSupply, bSupply string
		if err := rows.Scan(&asset, &decimals, &dSupply, &bSupply); err != nil {
			return nil, err
		}
		reserve := &model.Reserve{Asset: common.HexToAddress(asset), Decimals: decimals}
		if reserve.DSupply, err = parseBig(dSupply); err != nil {
			return nil, err
		}
		if reserve.BSupply, err = parseBig(bSupply); err != nil {
			return nil, err
		}
		reserves = append(reserves, reserve)
	}
	return reserves, rows.Err()
}

func (s *Store) EmissionData(ctx context.Context, key model.StreamKey) (*model.ReserveEmissionData, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT index::text, last_time, expiration, eps::text
		FROM reserve_emissions WHERE stream_key=$1
	`, key.String())

	var index, eps string
	data := &model.ReserveEmissionData{}
	if err := row.Scan(&index, &data.LastTime, &data.Expiration, &eps); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	var err error
	if data.Index, err = parseBig(index); err != nil {
		return nil, err
	}
	if data.EPS, err = parseBig(eps); err != nil {
		return nil, err
	}
	return data, nil
}

func (s *Store) SetEmissionData(ctx context.Context, key model.StreamKey, data *model.ReserveEmissionData) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO reserve_emissions (stream_key, index, last_time, expiration, eps, created_at, updated_at)
		VALUES ($1, $2::numeric, $3, $4, $5::numeric, now(), now())
		ON CONFLICT (stream_key) DO UPDATE SET
			index = EXCLUDED.index,
			last_time = EXCLUDED.last_time,
			expiration = EXCLUDED.expiration,
			eps = EXCLUDED.eps,
			updated_at = now()
	`, key.String(), data.Index.String(), data.LastTime, data.Expiration, data.EPS.String())
	return err
}

func (s *Store) UserEmissionData(ctx context.Context, user common.Address, key model.StreamKey) (*model.UserEmissionData, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT index::text, accrued::text
		FROM user_emissions WHERE holder=$1 AND stream_key=$2
	`, user.Hex(), key.String())

	var index, accrued string
	if err := row.Scan(&index, &accrued); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	data := &model.UserEmissionData{}
	var err error
	if data.Index, err = parseBig(index); err != nil {
		return nil, err
	}
	if data.Accrued, err = parseBig(accrued); err != nil {
		return nil, err
	}
	return data, nil
}

func (s *Store) SetUserEmissionData(ctx context.Context, user common.Address, key model.StreamKey, data *model.UserEmissionData) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO user_emissions (holder, stream_key, index, accrued, created_at, updated_at)
		VALUES ($1, $2, $3::numeric, $4::numeric, now(), now())
		ON CONFLICT (holder, stream_key) DO UPDATE SET
			index = EXCLUDED.index,
			accrued = EXCLUDED.accrued,
			updated_at = now()
	`, user.Hex(), key.String(), data.Index.String(), data.Accrued.String())
	return err
}

func (s *Store) Positions(ctx context.Context, user common.Address) (*model.Positions, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT asset, book, amount::text
		FROM user_positions WHERE holder=$1
	`, user.Hex())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	positions := model.NewPositions()
	found := false
	for rows.Next() {
		var asset, book, amount string
		if err := rows.Scan(&asset, &book, &amount); err != nil {
			return nil, err
		}
		parsed, err := parseBig(amount)
		if err != nil {
			return nil, err
		}
		addr := common.HexToAddress(asset)
		switch book {
		case "liability":
			positions.Liabilities[addr] = parsed
		case "collateral":
			positions.Collateral[addr] = parsed
		case "supply":
			positions.Supply[addr] = parsed
		default:
			return nil, fmt.Errorf("unknown position book: %q", book)
		}
		found = true
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	return positions, nil
}

func (s *Store) SetPositions(ctx context.Context, user common.Address, positions *model.Positions) error {
	batch := &pgx.Batch{}
	batch.Queue(`DELETE FROM user_positions WHERE holder=$1`, user.Hex())
	queued := 1
	queueBook := func(book string, balances map[common.Address]*big.Int) {
		for asset, amount := range balances {
			batch.Queue(`
				INSERT INTO user_positions (holder, asset, book, amount, updated_at)
				VALUES ($1, $2, $3, $4::numeric, now())
			`, user.Hex(), asset.Hex(), book, amount.String())
			queued++
		}
	}
	queueBook("liability", positions.Liabilities)
	queueBook("collateral", positions.Collateral)
	queueBook("supply", positions.Supply)

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for i := 0; i < queued; i++ {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) Balance(ctx context.Context, holder common.Address) (*big.Int, error) {
	row := s.pool.QueryRow(ctx, `SELECT amount::text FROM token_balances WHERE holder=$1`, holder.Hex())
	var amount string
	if err := row.Scan(&amount); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return big.NewInt(0), nil
		}
		return nil, err
	}
	return parseBig(amount)
}

func (s *Store) SetBalance(ctx context.Context, holder common.Address, amount *big.Int) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO token_balances (holder, amount, updated_at)
		VALUES ($1, $2::numeric, now())
		ON CONFLICT (holder) DO UPDATE SET
			amount = EXCLUDED.amount,
			updated_at = now()
	`, holder.Hex(), amount.String())
	return err
}

// Transfer moves tokens between holders inside one transaction; the debit
// fails the transaction when the source balance is insufficient.
func (s *Store) Transfer(ctx context.Context, from, to common.Address, amount *big.Int) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		UPDATE token_balances
		SET amount = amount - $2::numeric, updated_at = now()
		WHERE holder = $1 AND amount >= $2::numeric
	`, from.Hex(), amount.String())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrInsufficientBalance
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO token_balances (holder, amount, updated_at)
		VALUES ($1, $2::numeric, now())
		ON CONFLICT (holder) DO UPDATE SET
			amount = token_balances.amount + EXCLUDED.amount,
			updated_at = now()
	`, to.Hex(), amount.String())
	if err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func parseBig(value string) (*big.Int, error) {
	if value == "" {
		return big.NewInt(0), nil
	}
	parsed, ok := new(big.Int).SetString(value, 10)
	if !ok {
		return nil, fmt.Errorf("invalid numeric: %s", value)
	}
	return parsed, nil
}
