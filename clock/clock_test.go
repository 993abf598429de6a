package clock

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestP1ClockRegKnownModes(t *testing.T) {
	reg, err := P1ClockReg(RCFAST)
	require.NoError(t, err)
	assert.Equal(t, byte(0x00), reg)

	reg, err = P1ClockReg(RCSLOW)
	require.NoError(t, err)
	assert.Equal(t, byte(0x01), reg)

	reg, err = P1ClockReg(XINPUT)
	require.NoError(t, err)
	assert.Equal(t, byte(0x22), reg)

	// Crystal without PLL runs straight off the oscillator.
	reg, err = P1ClockReg(XTAL1)
	require.NoError(t, err)
	assert.Equal(t, byte(0x2A), reg)

	// The classic XTAL1 + PLL16X combination.
	reg, err = P1ClockReg(XTAL1 | PLL16X)
	require.NoError(t, err)
	assert.Equal(t, byte(0x6F), reg)

	_, err = P1ClockReg(P1Mode(0))
	assert.Error(t, err)
}

func TestP1ClockMultiplier(t *testing.T) {
	assert.Equal(t, 16, P1ClockMultiplier(XTAL1|PLL16X))
	assert.Equal(t, 1, P1ClockMultiplier(XTAL1))
}

func TestSearchP2PLLFindsCandidateNear180MHz(t *testing.T) {
	cand, err := SearchP2PLL(20_000_000, 180_000_000, 1_000_000)
	require.NoError(t, err)
	assert.LessOrEqual(t, abs64(cand.Fout-180_000_000), int64(1_000_000))
	assert.LessOrEqual(t, cand.Mult, 1024)
}

func TestSearchP2PLLIsDeterministic(t *testing.T) {
	a, err := SearchP2PLL(20_000_000, 160_000_000, 1_000_000)
	require.NoError(t, err)
	b, err := SearchP2PLL(20_000_000, 160_000_000, 1_000_000)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestSearchP2PLLRejectsImpossibleTarget(t *testing.T) {
	_, err := SearchP2PLL(20_000_000, 1, 10)
	assert.Error(t, err)
}

func TestBetterCandidatePrefersSmallerPPPPThenLargerDivd(t *testing.T) {
	best := P2Candidate{PPPP: 2, Divd: 4}
	challenger := P2Candidate{PPPP: 1, Divd: 1}
	assert.True(t, betterCandidate(0, challenger, 0, best))

	sameP := P2Candidate{PPPP: 2, Divd: 8}
	assert.True(t, betterCandidate(0, sameP, 0, best))
}

func TestResolveP1DerivesFrequency(t *testing.T) {
	cfg, err := ResolveP1(XTAL1|PLL16X, 5_000_000)
	require.NoError(t, err)
	assert.EqualValues(t, 80_000_000, cfg.ClkFreq)
	assert.Equal(t, byte(0x6F), cfg.ClkReg)

	cfg, err = ResolveP1(RCFAST, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 12_000_000, cfg.ClkFreq)
}

func TestResolveP2ProducesClkMode(t *testing.T) {
	cfg, err := ResolveP2(20_000_000, 160_000_000, 1_000_000)
	require.NoError(t, err)
	assert.NotZero(t, cfg.ClkMode)
	assert.EqualValues(t, 160_000_000, cfg.ClkFreq)
}
