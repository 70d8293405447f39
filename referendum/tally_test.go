// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package referendum

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bi(v int64) *big.Int { return big.NewInt(v) }

func mustBig(t *testing.T, s string) *big.Int {
	t.Helper()
	v, ok := new(big.Int).SetString(s, 10)
	require.True(t, ok, "invalid big int %q", s)
	return v
}

func mustTally(t *testing.T, aye, nay, ayeWC, nayWC, turnout int64) VoteTally {
	t.Helper()
	tally, err := NewVoteTally(bi(aye), bi(nay), bi(ayeWC), bi(nayWC), bi(turnout))
	require.NoError(t, err)
	return tally
}

func TestNewVoteTally_CopiesInputs(t *testing.T) {
	aye := bi(700)
	tally, err := NewVoteTally(aye, bi(300), bi(700), bi(300), bi(1000))
	require.NoError(t, err)

	aye.SetInt64(1)
	assert.Equal(t, int64(700), tally.AyeAmount().Int64(), "tally must not alias constructor input")

	got := tally.AyeAmount()
	got.SetInt64(5)
	assert.Equal(t, int64(700), tally.AyeAmount().Int64(), "accessor must return a copy")
}

func TestNewVoteTally_RejectsNegative(t *testing.T) {
	_, err := NewVoteTally(bi(-1), nil, nil, nil, nil)
	assert.ErrorIs(t, err, ErrNegativeAmount)
}

func TestNewVoteTally_NilIsZero(t *testing.T) {
	tally, err := NewVoteTally(nil, nil, nil, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, tally.Turnout().Sign())
	assert.True(t, tally.Equal(VoteTally{}))
}

func TestTurnoutPercentage(t *testing.T) {
	tests := []struct {
		name     string
		turnout  *big.Int
		issuance *big.Int
		want     float64
	}{
		{"zero issuance", bi(1200), bi(0), 0},
		{"nil issuance", bi(1200), nil, 0},
		{"twelve percent", bi(1200), bi(10000), 12.00},
		{"ten percent", bi(1000), bi(10000), 10.00},
		{"floors to two decimals", bi(1), bi(3), 33.33},
		{"zero turnout", bi(0), bi(10000), 0},
		{
			"beyond 64 bits",
			mustBig(t, "123456789012345678901234567890"),
			mustBig(t, "1000000000000000000000000000000"),
			12.34,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, TurnoutPercentage(tt.turnout, tt.issuance))
		})
	}
}

func TestTurnoutPercentage_ZeroIssuanceAlwaysZero(t *testing.T) {
	for _, turnout := range []int64{0, 1, 999, 1 << 62} {
		assert.Equal(t, 0.0, TurnoutPercentage(bi(turnout), bi(0)))
	}
}
