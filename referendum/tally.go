// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package referendum

import (
	"math/big"
)

var (
	zero          = big.NewInt(0)
	percentScale  = big.NewInt(10000)
	percentDivide = 100.0
)

// VoteTally is an immutable snapshot of a referendum's vote counts.
// Accessors hand out copies so callers can never mutate it in place.
type VoteTally struct {
	ayeAmount            *big.Int
	nayAmount            *big.Int
	ayeWithoutConviction *big.Int
	nayWithoutConviction *big.Int
	turnout              *big.Int
}

// NewVoteTally copies the given amounts into a tally. Nil is read as zero.
func NewVoteTally(aye, nay, ayeWithoutConviction, nayWithoutConviction, turnout *big.Int) (VoteTally, error) {
	amounts := []*big.Int{aye, nay, ayeWithoutConviction, nayWithoutConviction, turnout}
	copies := make([]*big.Int, len(amounts))
	for i, a := range amounts {
		if a == nil {
			copies[i] = new(big.Int)
			continue
		}
		if a.Sign() < 0 {
			return VoteTally{}, ErrNegativeAmount
		}
		copies[i] = new(big.Int).Set(a)
	}

	return VoteTally{
		ayeAmount:            copies[0],
		nayAmount:            copies[1],
		ayeWithoutConviction: copies[2],
		nayWithoutConviction: copies[3],
		turnout:              copies[4],
	}, nil
}

func (t VoteTally) AyeAmount() *big.Int            { return copyOrZero(t.ayeAmount) }
func (t VoteTally) NayAmount() *big.Int            { return copyOrZero(t.nayAmount) }
func (t VoteTally) AyeWithoutConviction() *big.Int { return copyOrZero(t.ayeWithoutConviction) }
func (t VoteTally) NayWithoutConviction() *big.Int { return copyOrZero(t.nayWithoutConviction) }
func (t VoteTally) Turnout() *big.Int              { return copyOrZero(t.turnout) }

// Equal reports whether both tallies hold the same amounts.
func (t VoteTally) Equal(o VoteTally) bool {
	return cmpAmount(t.ayeAmount, o.ayeAmount) == 0 &&
		cmpAmount(t.nayAmount, o.nayAmount) == 0 &&
		cmpAmount(t.ayeWithoutConviction, o.ayeWithoutConviction) == 0 &&
		cmpAmount(t.nayWithoutConviction, o.nayWithoutConviction) == 0 &&
		cmpAmount(t.turnout, o.turnout) == 0
}

// TurnoutPercentage returns turnout as a percentage of total issuance with two
// decimals. The division runs on integers scaled by 10000; only the final
// step goes through float64. Zero or unknown issuance gives 0.
func TurnoutPercentage(turnout, totalIssuance *big.Int) float64 {
	if totalIssuance == nil || totalIssuance.Sign() == 0 || turnout == nil {
		return 0
	}

	scaled := new(big.Int).Mul(turnout, percentScale)
	scaled.Quo(scaled, totalIssuance)

	f, _ := new(big.Float).SetInt(scaled).Float64()
	return f / percentDivide
}

func copyOrZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(v)
}

func cmpAmount(a, b *big.Int) int {
	if a == nil {
		a = zero
	}
	if b == nil {
		b = zero
	}
	return a.Cmp(b)
}
