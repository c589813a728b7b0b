package backstop

import (
	"errors"
	"math/big"
)

// LockupPeriod is how long queued shares wait before they can be withdrawn.
const LockupPeriod uint64 = 17 * 24 * 60 * 60

// maxQueueEntries caps the withdrawal queue length per user.
const maxQueueEntries = 20

var (
	// ErrQueueFull is returned when a user already has the maximum number
	// of pending withdrawal entries.
	ErrQueueFull = errors.New("backstop: withdrawal queue full")
	// ErrNotExpired is returned when a withdrawal is attempted before the
	// queue entry's lockup has passed.
	ErrNotExpired = errors.New("backstop: withdrawal still locked")
)

// QueuedWithdrawal is one pending withdrawal entry: an amount of shares and
// the time at which they unlock.
type QueuedWithdrawal struct {
	Amount     *big.Int `json:"amount"`
	Expiration uint64   `json:"expiration"`
}

// UserBalance tracks a user's backstop shares and their withdrawal queue,
// ordered oldest first.
type UserBalance struct {
	Shares *big.Int           `json:"shares"`
	Q4W    []QueuedWithdrawal `json:"q4w"`
}

func NewUserBalance() *UserBalance {
	return &UserBalance{Shares: big.NewInt(0)}
}

// AddShares credits freshly minted shares.
func (u *UserBalance) AddShares(shares *big.Int) error {
	if shares.Sign() < 0 {
		return ErrNegativeAmount
	}
	u.Shares.Add(u.Shares, shares)
	return nil
}

// Queue moves shares from the active balance into the withdrawal queue,
// unlocking at now + LockupPeriod.
func (u *UserBalance) Queue(shares *big.Int, now uint64) error {
	if shares.Sign() < 0 {
		return ErrNegativeAmount
	}
	if shares.Cmp(u.Shares) > 0 {
		return ErrInsufficientShares
	}
	if len(u.Q4W) >= maxQueueEntries {
		return ErrQueueFull
	}
	u.Shares.Sub(u.Shares, shares)
	u.Q4W = append(u.Q4W, QueuedWithdrawal{
		Amount:     new(big.Int).Set(shares),
		Expiration: now + LockupPeriod,
	})
	return nil
}

// Dequeue cancels queued withdrawals, newest first, returning the shares to
// the active balance. Expiration does not matter for cancellation.
func (u *UserBalance) Dequeue(shares *big.Int) error {
	if shares.Sign() < 0 {
		return ErrNegativeAmount
	}
	remaining := new(big.Int).Set(shares)
	for remaining.Sign() > 0 {
		if len(u.Q4W) == 0 {
			return ErrInsufficientQ4W
		}
		last := len(u.Q4W) - 1
		entry := &u.Q4W[last]
		if entry.Amount.Cmp(remaining) <= 0 {
			remaining.Sub(remaining, entry.Amount)
			u.Q4W = u.Q4W[:last]
		} else {
			entry.Amount.Sub(entry.Amount, remaining)
			remaining.SetInt64(0)
		}
	}
	u.Shares.Add(u.Shares, shares)
	return nil
}

// TakeQueued consumes expired queue entries, oldest first, for a
// withdrawal. It fails without mutating when the expired queued total is
// insufficient.
func (u *UserBalance) TakeQueued(shares *big.Int, now uint64) error {
	if shares.Sign() < 0 {
		return ErrNegativeAmount
	}
	available := big.NewInt(0)
	for _, entry := range u.Q4W {
		if entry.Expiration > now {
			break
		}
		available.Add(available, entry.Amount)
	}
	if shares.Cmp(available) > 0 {
		if len(u.Q4W) > 0 && u.Q4W[0].Expiration > now {
			return ErrNotExpired
		}
		return ErrInsufficientQ4W
	}

	remaining := new(big.Int).Set(shares)
	for remaining.Sign() > 0 {
		entry := &u.Q4W[0]
		if entry.Amount.Cmp(remaining) <= 0 {
			remaining.Sub(remaining, entry.Amount)
			u.Q4W = u.Q4W[1:]
		} else {
			entry.Amount.Sub(entry.Amount, remaining)
			remaining.SetInt64(0)
		}
	}
	return nil
}

func (u *UserBalance) Clone() *UserBalance {
	if u == nil {
		return nil
	}
	out := &UserBalance{Shares: new(big.Int).Set(u.Shares)}
	for _, entry := range u.Q4W {
		out.Q4W = append(out.Q4W, QueuedWithdrawal{
			Amount:     new(big.Int).Set(entry.Amount),
			Expiration: entry.Expiration,
		})
	}
	return out
}
