// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package referendum

import (
	"math/big"
)

// PassingState is the current outcome of a referendum as seen by one
// observation session.
type PassingState int

const (
	PassingUnknown PassingState = iota
	Passing
	Failing
)

func (s PassingState) String() string {
	switch s {
	case Passing:
		return "passing"
	case Failing:
		return "failing"
	default:
		return "unknown"
	}
}

// Bool returns nil while the state is unknown.
func (s PassingState) Bool() *bool {
	if s == PassingUnknown {
		return nil
	}
	b := s == Passing
	return &b
}

// PassingRule decides the passing state once, when the first tally arrives.
// Whatever it returns is final for the rest of the session.
type PassingRule func(tally VoteTally, totalIssuance *big.Int, threshold Threshold) PassingState

// AssumeFailing marks every referendum as failing on first fetch, so the
// swing threshold shown is always the passing threshold. This matches the
// behaviour the vote widget has shipped with and is kept as the default until
// the one-shot determination is revisited.
func AssumeFailing(VoteTally, *big.Int, Threshold) PassingState {
	return Failing
}

// EvaluateCurve decides the passing state from the threshold curve. When the
// curve cannot be evaluated yet (no issuance, no policy) it falls back to
// Failing, like AssumeFailing.
func EvaluateCurve(tally VoteTally, totalIssuance *big.Int, threshold Threshold) PassingState {
	approved, ok := Approved(tally, totalIssuance, threshold)
	if !ok || !approved {
		return Failing
	}
	return Passing
}

// Estimate holds the values derived from one estimation pass.
type Estimate struct {
	TurnoutPercentage float64
	SwingThreshold    *big.Int
}

// Compute derives turnout percentage and swing threshold. A passing
// referendum reports its failing threshold and a failing one its passing
// threshold. Unknown state, unknown policy or an invalid curve evaluation all
// give a zero threshold.
func Compute(tally VoteTally, totalIssuance *big.Int, state PassingState, threshold Threshold) Estimate {
	return Estimate{
		TurnoutPercentage: TurnoutPercentage(tally.turnout, totalIssuance),
		SwingThreshold:    swingThreshold(tally, totalIssuance, state, threshold),
	}
}

func swingThreshold(tally VoteTally, totalIssuance *big.Int, state PassingState, threshold Threshold) *big.Int {
	if !threshold.valid() || state == PassingUnknown {
		return new(big.Int)
	}

	var res ThresholdResult
	if state == Passing {
		res = FailingThreshold(FailingThresholdParams{
			Ayes:                  tally.ayeAmount,
			AyesWithoutConviction: tally.ayeWithoutConviction,
			TotalIssuance:         totalIssuance,
			Threshold:             threshold,
		})
	} else {
		res = PassingThreshold(PassingThresholdParams{
			Nays:                  tally.nayAmount,
			NaysWithoutConviction: tally.nayWithoutConviction,
			TotalIssuance:         totalIssuance,
			Threshold:             threshold,
		})
	}

	if !res.IsValid || res.Amount == nil {
		return new(big.Int)
	}
	return res.Amount
}

// Estimator memoizes Compute on its last inputs. It is not safe for
// concurrent use; the coordinator owns one per session.
type Estimator struct {
	last   *estimatorInputs
	result Estimate
	passes int
}

type estimatorInputs struct {
	tally     VoteTally
	issuance  *big.Int
	state     PassingState
	threshold Threshold
}

func (e *Estimator) Estimate(tally VoteTally, totalIssuance *big.Int, state PassingState, threshold Threshold) Estimate {
	if e.last != nil &&
		e.last.tally.Equal(tally) &&
		cmpAmount(e.last.issuance, totalIssuance) == 0 &&
		e.last.state == state &&
		e.last.threshold == threshold {
		return e.result.clone()
	}

	e.passes++
	e.result = Compute(tally, totalIssuance, state, threshold)
	e.last = &estimatorInputs{
		tally:     tally,
		issuance:  copyOrZero(totalIssuance),
		state:     state,
		threshold: threshold,
	}
	return e.result.clone()
}

func (e Estimate) clone() Estimate {
	return Estimate{
		TurnoutPercentage: e.TurnoutPercentage,
		SwingThreshold:    copyOrZero(e.SwingThreshold),
	}
}
