// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package referendum estimates the outcome of an on-chain referendum.

# Tallies

A VoteTally holds the aye and nay amounts (with and without conviction) and
the turnout, all as non-negative big integers:

	tally, err := referendum.NewVoteTally(aye, nay, ayeWC, nayWC, turnout)

TurnoutPercentage derives the turnout share of total issuance with two
decimal places, computed on integers and floored.

# Thresholds

Three approval policies are supported:

  - Supermajorityapproval: passes iff nays/sqrt(turnout) < ayes/sqrt(electorate)
  - Supermajorityrejection: passes iff nays/sqrt(electorate) < ayes/sqrt(turnout)
  - Simplemajority: passes iff ayes > nays

PassingThreshold and FailingThreshold return the smallest additional
opposing weight that flips the outcome. A ThresholdResult with IsValid
false means the curve could not be evaluated; callers use zero.

# Estimation

Estimator combines a tally, total issuance and the passing state into an
Estimate (turnout percentage and swing threshold). It recomputes only when
its inputs change.

# Coordination

Coordinator owns one observation session. It fetches the tally once from a
TallyFetcher (Subscan in production) and subscribes to total issuance from
an IssuanceSource once that source is ready:

	c := referendum.NewCoordinator(subscan, chainClient, referendum.CoordinatorConfig{
		Threshold: referendum.SuperMajorityApprove,
	})
	if err := c.Activate(ctx, 42); err != nil {
		return err
	}
	defer c.Deactivate()

	snap, err := c.Wait(ctx, func(s referendum.Snapshot) bool {
		return !s.Status.IsLoading()
	})

Results that arrive for a previous referendum or after Deactivate are
dropped. The subscription is always released on Deactivate.
*/
package referendum
