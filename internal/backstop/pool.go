// Package backstop implements the backstop pool's share accounting: the
// fixed-point share/token pricing plus the deposit and withdrawal-queue
// flows built on it.
package backstop

import (
	"errors"
	"math/big"

	"emissionScope/internal/fixmath"
)

var (
	// ErrNegativeAmount is returned for negative deposit/withdraw inputs.
	ErrNegativeAmount = errors.New("backstop: negative amount")
	// ErrInsufficientShares is returned when a withdrawal exceeds the
	// pool's outstanding shares.
	ErrInsufficientShares = errors.New("backstop: insufficient shares")
	// ErrInsufficientQ4W is returned when a dequeue or withdraw exceeds
	// the queued-for-withdrawal balance.
	ErrInsufficientQ4W = errors.New("backstop: insufficient queued shares")
)

// PoolBalance tracks a pool's backstop totals: outstanding shares, the
// tokens backing them, and shares queued for withdrawal.
type PoolBalance struct {
	Shares *big.Int `json:"shares"`
	Tokens *big.Int `json:"tokens"`
	Q4W    *big.Int `json:"q4w"`
}

func NewPoolBalance() *PoolBalance {
	return &PoolBalance{
		Shares: big.NewInt(0),
		Tokens: big.NewInt(0),
		Q4W:    big.NewInt(0),
	}
}

// ConvertToTokens prices shares in underlying tokens, rounding down. An
// empty pool (zero shares) prices 1:1 regardless of its token balance.
func (p *PoolBalance) ConvertToTokens(shares *big.Int) (*big.Int, error) {
	if shares.Sign() == 0 {
		return big.NewInt(0), nil
	}
	if p.Shares.Sign() == 0 {
		return new(big.Int).Set(shares), nil
	}
	return fixmath.MulDivFloor(shares, p.Tokens, p.Shares)
}

// ConvertToShares prices tokens in pool shares, rounding down. An empty
// pool prices 1:1. Round-tripping through both conversions never inflates:
// floor rounding always favors the pool.
func (p *PoolBalance) ConvertToShares(tokens *big.Int) (*big.Int, error) {
	if tokens.Sign() == 0 {
		return big.NewInt(0), nil
	}
	if p.Shares.Sign() == 0 {
		return new(big.Int).Set(tokens), nil
	}
	return fixmath.MulDivFloor(tokens, p.Shares, p.Tokens)
}

// Deposit adds tokens to the pool and returns the shares minted for them.
func (p *PoolBalance) Deposit(tokens *big.Int) (*big.Int, error) {
	if tokens.Sign() < 0 {
		return nil, ErrNegativeAmount
	}
	minted, err := p.ConvertToShares(tokens)
	if err != nil {
		return nil, err
	}
	p.Shares.Add(p.Shares, minted)
	p.Tokens.Add(p.Tokens, tokens)
	return minted, nil
}

// QueueShares marks shares as queued for withdrawal. Queued shares still
// back the pool until withdrawn.
func (p *PoolBalance) QueueShares(shares *big.Int) error {
	if shares.Sign() < 0 {
		return ErrNegativeAmount
	}
	queued := new(big.Int).Add(p.Q4W, shares)
	if queued.Cmp(p.Shares) > 0 {
		return ErrInsufficientShares
	}
	p.Q4W = queued
	return nil
}

// DequeueShares returns queued shares to the active balance.
func (p *PoolBalance) DequeueShares(shares *big.Int) error {
	if shares.Sign() < 0 {
		return ErrNegativeAmount
	}
	if shares.Cmp(p.Q4W) > 0 {
		return ErrInsufficientQ4W
	}
	p.Q4W.Sub(p.Q4W, shares)
	return nil
}

// Withdraw burns previously queued shares and returns the token payout.
func (p *PoolBalance) Withdraw(shares *big.Int) (*big.Int, error) {
	if shares.Sign() < 0 {
		return nil, ErrNegativeAmount
	}
	if shares.Cmp(p.Shares) > 0 {
		return nil, ErrInsufficientShares
	}
	if shares.Cmp(p.Q4W) > 0 {
		return nil, ErrInsufficientQ4W
	}
	tokens, err := p.ConvertToTokens(shares)
	if err != nil {
		return nil, err
	}
	p.Shares.Sub(p.Shares, shares)
	p.Tokens.Sub(p.Tokens, tokens)
	p.Q4W.Sub(p.Q4W, shares)
	return tokens, nil
}

func (p *PoolBalance) Clone() *PoolBalance {
	if p == nil {
		return nil
	}
	return &PoolBalance{
		Shares: new(big.Int).Set(p.Shares),
		Tokens: new(big.Int).Set(p.Tokens),
		Q4W:    new(big.Int).Set(p.Q4W),
	}
}
