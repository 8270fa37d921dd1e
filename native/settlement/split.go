package settlement

import (
	"errors"
	"fmt"
	"math/big"
)

// Basis-point rates applied by the marketplace. Changing any of these values
// is a business-rule change; every consumer reads them from here.
const (
	// StandardFeeBps is the platform commission withheld from escrow
	// releases (10%).
	StandardFeeBps uint32 = 1_000
	// B2BVolumeFeeBps applies to business-to-business orders above the
	// volume threshold (2%).
	B2BVolumeFeeBps uint32 = 200
	// B2BBaseFeeBps applies to business-to-business orders at or below the
	// volume threshold (5%).
	B2BBaseFeeBps uint32 = 500
	// MaxBps is the full-share basis point denominator.
	MaxBps uint32 = 10_000
)

// B2BVolumeThreshold is the gross order value above which the discounted B2B
// rate applies.
var B2BVolumeThreshold = big.NewInt(10_000)

// ErrInvalidAmount marks split requests over nil or negative amounts.
var ErrInvalidAmount = errors.New("settlement: amount must be non-negative")

// ErrInvalidRate marks basis point rates outside [0, 10000].
var ErrInvalidRate = errors.New("settlement: rate bps out of range")

// Split is the outcome of applying a fee rate to an amount. The invariant
// Fee + Payout == Amount holds exactly: the fee rounds down and the payout
// absorbs the integer remainder, so value never leaks across settlements.
type Split struct {
	Amount *big.Int
	Fee    *big.Int
	Payout *big.Int
}

// Apply computes the fee split for the supplied amount at the given rate.
func Apply(amount *big.Int, feeBps uint32) (Split, error) {
	if amount == nil || amount.Sign() < 0 {
		return Split{}, ErrInvalidAmount
	}
	if feeBps > MaxBps {
		return Split{}, fmt.Errorf("%w: %d", ErrInvalidRate, feeBps)
	}
	total := new(big.Int).Set(amount)
	fee := new(big.Int).Mul(total, big.NewInt(int64(feeBps)))
	fee.Div(fee, big.NewInt(int64(MaxBps)))
	payout := new(big.Int).Sub(total, fee)
	return Split{Amount: total, Fee: fee, Payout: payout}, nil
}

// ApplyStandard computes the split at the platform commission rate.
func ApplyStandard(amount *big.Int) (Split, error) {
	return Apply(amount, StandardFeeBps)
}

// B2BFeeBps resolves the tiered business-to-business commission rate for the
// supplied gross order value. Orders above the volume threshold pay the
// discounted rate.
func B2BFeeBps(gross *big.Int) uint32 {
	if gross == nil {
		return B2BBaseFeeBps
	}
	if gross.Cmp(B2BVolumeThreshold) > 0 {
		return B2BVolumeFeeBps
	}
	return B2BBaseFeeBps
}

// ShareAmounts expands basis point shares of a total into concrete amounts.
// Shares must sum to exactly MaxBps. The final share absorbs the rounding
// remainder so the returned amounts always sum back to the total.
func ShareAmounts(total *big.Int, sharesBps []uint32) ([]*big.Int, error) {
	if total == nil || total.Sign() < 0 {
		return nil, ErrInvalidAmount
	}
	if len(sharesBps) == 0 {
		return nil, fmt.Errorf("%w: no shares", ErrInvalidRate)
	}
	var sum uint64
	for _, share := range sharesBps {
		if share > MaxBps {
			return nil, fmt.Errorf("%w: %d", ErrInvalidRate, share)
		}
		sum += uint64(share)
	}
	if sum != uint64(MaxBps) {
		return nil, fmt.Errorf("%w: shares sum to %d", ErrInvalidRate, sum)
	}
	amounts := make([]*big.Int, len(sharesBps))
	allocated := big.NewInt(0)
	for i, share := range sharesBps {
		if i == len(sharesBps)-1 {
			amounts[i] = new(big.Int).Sub(total, allocated)
			break
		}
		amt := new(big.Int).Mul(total, big.NewInt(int64(share)))
		amt.Div(amt, big.NewInt(int64(MaxBps)))
		amounts[i] = amt
		allocated = new(big.Int).Add(allocated, amt)
	}
	return amounts, nil
}
