// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package referendum

import (
	"math/big"
	"strings"

	"github.com/pkg/errors"
)

// Threshold names the approval curve a referendum is judged by.
type Threshold string

const (
	SuperMajorityApprove Threshold = "Supermajorityapproval"
	SuperMajorityAgainst Threshold = "Supermajorityrejection"
	SimpleMajority       Threshold = "Simplemajority"
)

var one = big.NewInt(1)

// ParseThreshold accepts the on-chain spelling of a threshold, ignoring case.
// An empty string means no policy is known yet.
func ParseThreshold(s string) (Threshold, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return "", nil
	case "supermajorityapproval", "supermajorityapprove":
		return SuperMajorityApprove, nil
	case "supermajorityrejection", "supermajorityagainst":
		return SuperMajorityAgainst, nil
	case "simplemajority":
		return SimpleMajority, nil
	}
	return "", errors.Wrapf(ErrUnknownThreshold, "%q", s)
}

func (t Threshold) valid() bool {
	return t == SuperMajorityApprove || t == SuperMajorityAgainst || t == SimpleMajority
}

// ThresholdResult is the outcome of evaluating a threshold curve. IsValid is
// false when the curve cannot be evaluated for the inputs, e.g. a zero
// denominator; Amount is nil in that case.
type ThresholdResult struct {
	IsValid bool
	Amount  *big.Int
}

type PassingThresholdParams struct {
	Nays                  *big.Int
	NaysWithoutConviction *big.Int
	TotalIssuance         *big.Int
	Threshold             Threshold
}

type FailingThresholdParams struct {
	Ayes                  *big.Int
	AyesWithoutConviction *big.Int
	TotalIssuance         *big.Int
	Threshold             Threshold
}

// PassingThreshold returns the smallest aye amount that makes a failing
// referendum pass against the current nays. Added ayes are assumed to vote
// without conviction, so they count towards turnout as well.
func PassingThreshold(p PassingThresholdParams) ThresholdResult {
	nays := orZero(p.Nays)

	switch p.Threshold {
	case SimpleMajority:
		return ThresholdResult{IsValid: true, Amount: new(big.Int).Add(nays, one)}
	case SuperMajorityApprove, SuperMajorityAgainst:
	default:
		return ThresholdResult{}
	}

	if isZero(p.TotalIssuance) || isZero(p.NaysWithoutConviction) {
		return ThresholdResult{}
	}

	electorate := p.TotalIssuance
	naysWithoutConviction := p.NaysWithoutConviction
	naysSq := new(big.Int).Mul(nays, nays)

	var passes func(ayes *big.Int) bool
	if p.Threshold == SuperMajorityApprove {
		// nays^2 * electorate < ayes^2 * turnout
		rhs := new(big.Int).Mul(naysSq, electorate)
		passes = func(ayes *big.Int) bool {
			turnout := new(big.Int).Add(ayes, naysWithoutConviction)
			lhs := new(big.Int).Mul(ayes, ayes)
			lhs.Mul(lhs, turnout)
			return lhs.Cmp(rhs) > 0
		}
	} else {
		// nays^2 * turnout < ayes^2 * electorate
		passes = func(ayes *big.Int) bool {
			turnout := new(big.Int).Add(ayes, naysWithoutConviction)
			lhs := new(big.Int).Mul(ayes, ayes)
			lhs.Mul(lhs, electorate)
			rhs := new(big.Int).Mul(naysSq, turnout)
			return lhs.Cmp(rhs) > 0
		}
	}

	return ThresholdResult{IsValid: true, Amount: searchMin(passes)}
}

// FailingThreshold returns the smallest nay amount that makes a passing
// referendum fail against the current ayes.
func FailingThreshold(p FailingThresholdParams) ThresholdResult {
	ayes := orZero(p.Ayes)

	switch p.Threshold {
	case SimpleMajority:
		return ThresholdResult{IsValid: true, Amount: new(big.Int).Set(ayes)}
	case SuperMajorityApprove, SuperMajorityAgainst:
	default:
		return ThresholdResult{}
	}

	if isZero(p.TotalIssuance) || isZero(p.AyesWithoutConviction) {
		return ThresholdResult{}
	}

	electorate := p.TotalIssuance
	ayesWithoutConviction := p.AyesWithoutConviction
	ayesSq := new(big.Int).Mul(ayes, ayes)

	var fails func(nays *big.Int) bool
	if p.Threshold == SuperMajorityApprove {
		// nays^2 * electorate >= ayes^2 * turnout
		fails = func(nays *big.Int) bool {
			turnout := new(big.Int).Add(nays, ayesWithoutConviction)
			lhs := new(big.Int).Mul(nays, nays)
			lhs.Mul(lhs, electorate)
			rhs := new(big.Int).Mul(ayesSq, turnout)
			return lhs.Cmp(rhs) >= 0
		}
	} else {
		// nays^2 * turnout >= ayes^2 * electorate
		rhs := new(big.Int).Mul(ayesSq, electorate)
		fails = func(nays *big.Int) bool {
			turnout := new(big.Int).Add(nays, ayesWithoutConviction)
			lhs := new(big.Int).Mul(nays, nays)
			lhs.Mul(lhs, turnout)
			return lhs.Cmp(rhs) >= 0
		}
	}

	return ThresholdResult{IsValid: true, Amount: searchMin(fails)}
}

// Approved evaluates the threshold curve for a tally. ok is false when the
// curve cannot be evaluated.
func Approved(tally VoteTally, totalIssuance *big.Int, threshold Threshold) (approved bool, ok bool) {
	ayes, nays := tally.AyeAmount(), tally.NayAmount()

	switch threshold {
	case SimpleMajority:
		return ayes.Cmp(nays) > 0, true
	case SuperMajorityApprove, SuperMajorityAgainst:
	default:
		return false, false
	}

	turnout := new(big.Int).Add(tally.AyeWithoutConviction(), tally.NayWithoutConviction())
	if isZero(totalIssuance) || turnout.Sign() == 0 {
		return false, false
	}

	naysSq := new(big.Int).Mul(nays, nays)
	ayesSq := new(big.Int).Mul(ayes, ayes)
	if threshold == SuperMajorityApprove {
		return naysSq.Mul(naysSq, totalIssuance).Cmp(ayesSq.Mul(ayesSq, turnout)) < 0, true
	}
	return naysSq.Mul(naysSq, turnout).Cmp(ayesSq.Mul(ayesSq, totalIssuance)) < 0, true
}

// searchMin finds the smallest x >= 1 for which pred holds. pred must be
// monotone: once true it stays true for every larger x.
func searchMin(pred func(*big.Int) bool) *big.Int {
	lo := big.NewInt(1)
	if pred(lo) {
		return lo
	}

	hi := big.NewInt(2)
	for !pred(hi) {
		lo.Set(hi)
		hi.Lsh(hi, 1)
	}

	mid := new(big.Int)
	for new(big.Int).Sub(hi, lo).Cmp(one) > 0 {
		mid.Add(lo, hi)
		mid.Rsh(mid, 1)
		if pred(mid) {
			hi.Set(mid)
		} else {
			lo.Set(mid)
		}
	}
	return hi
}

func isZero(v *big.Int) bool {
	return v == nil || v.Sign() == 0
}

func orZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v
}
