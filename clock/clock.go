// Package clock resolves the top-level module's clock configuration:
// the legacy P1 clock-mode flags to a clock register value, and the P2
// PLL (PPPP, divd, mult) search. The P2 search is deliberately a small
// deterministic nested loop, not a numeric optimizer: loop a bounded
// space, keep the best, break ties by a fixed rule so regenerated
// binaries stay bit-identical.
package clock

import "errors"

// P1Mode carries the legacy _CLKMODE flag constants, which
// combine by OR: an oscillator selection plus an optional PLL multiplier.
type P1Mode int

const (
	RCFAST P1Mode = 1 << iota
	RCSLOW
	XINPUT
	XTAL1
	XTAL2
	XTAL3
	PLL1X
	PLL2X
	PLL4X
	PLL8X
	PLL16X
)

// P1ClockReg translates a legacy clock-mode flag combination to the
// clock register value (__clkreg_con), per the classic Propeller
// CLK register layout: bit 6 PLLENA, bit 5 OSCENA, bits 4..3 OSCM,
// bits 2..0 CLKSEL.
func P1ClockReg(mode P1Mode) (byte, error) {
	switch mode {
	case RCFAST:
		return 0x00, nil
	case RCSLOW:
		return 0x01, nil
	case XINPUT:
		return 0x22, nil
	}

	var oscm byte
	switch {
	case mode&XINPUT != 0:
		oscm = 0
	case mode&XTAL1 != 0:
		oscm = 1
	case mode&XTAL2 != 0:
		oscm = 2
	case mode&XTAL3 != 0:
		oscm = 3
	default:
		return 0, errors.New("clock: no oscillator mode in _CLKMODE")
	}

	var clksel byte
	switch {
	case mode&PLL1X != 0:
		clksel = 3
	case mode&PLL2X != 0:
		clksel = 4
	case mode&PLL4X != 0:
		clksel = 5
	case mode&PLL8X != 0:
		clksel = 6
	case mode&PLL16X != 0:
		clksel = 7
	default:
		// Crystal without PLL: run directly off the oscillator.
		return 0x20 | oscm<<3 | 2, nil
	}
	return 0x60 | oscm<<3 | clksel, nil
}

// P1ClockMultiplier returns the PLL multiplier a mode implies, for
// deriving __clkfreq_con from _XINFREQ.
func P1ClockMultiplier(mode P1Mode) int {
	switch {
	case mode&PLL2X != 0:
		return 2
	case mode&PLL4X != 0:
		return 4
	case mode&PLL8X != 0:
		return 8
	case mode&PLL16X != 0:
		return 16
	default:
		return 1
	}
}

// P2Candidate is one (PPPP, divd, mult) triple considered by the search.
type P2Candidate struct {
	PPPP int
	Divd int
	Mult int
	Fout int64
}

// ClkMode encodes the candidate into the P2 clock-mode register value:
// %1_D(6)_M(10)_PPPP, with the PLL-enable bit set.
func (c P2Candidate) ClkMode() uint32 {
	return 1<<24 | uint32(c.Divd-1)<<18 | uint32(c.Mult-1)<<8 | uint32(c.PPPP)<<4 | 0xB
}

// SearchP2PLL finds the (PPPP, divd, mult) triple producing Fout closest
// to requested, subject to:
//
//	Fpfd = xtalFreq/divd >= 250 kHz
//	mult <= 1024
//	99 MHz < Fvco = Fpfd*mult <= 201 MHz
//	Fout = Fvco / postDiv, postDiv = 1 for PPPP=0 else 2*PPPP
//
// The loop is 15 x 64: for each (PPPP, divd) only two multipliers are
// tried, the rounded one putting Fvco nearest the target and the next one
// up, so mult is derived, not enumerated. Ties break toward smaller PPPP, then
// larger divd, so regenerated binaries stay bit-identical. Returns an
// error if no candidate lands within errFreq of requested.
func SearchP2PLL(xtalFreq, requested, errFreq int64) (P2Candidate, error) {
	var best P2Candidate
	haveBest := false
	var bestDiff int64

	for ppp := 0; ppp < 15; ppp++ {
		postDiv := int64(1)
		if ppp > 0 {
			postDiv = int64(2 * ppp)
		}
		for divd := 1; divd <= 64; divd++ {
			fpfd := xtalFreq / int64(divd)
			if fpfd < 250_000 {
				continue
			}
			// Derive the best multiplier for this divider pair.
			for delta := int64(0); delta <= 1; delta++ {
				mult := (requested*postDiv + fpfd/2) / fpfd
				mult += delta
				if mult < 1 {
					mult = 1
				}
				if mult > 1024 {
					continue
				}
				fvco := fpfd * mult
				if fvco <= 99_000_000 || fvco > 201_000_000 {
					continue
				}
				fout := fvco / postDiv
				diff := abs64(fout - requested)
				cand := P2Candidate{PPPP: ppp, Divd: divd, Mult: int(mult), Fout: fout}
				if !haveBest || betterCandidate(diff, cand, bestDiff, best) {
					best, bestDiff, haveBest = cand, diff, true
				}
			}
		}
	}
	if !haveBest || (errFreq > 0 && bestDiff > errFreq) {
		return P2Candidate{}, errors.New("clock: no P2 PLL candidate within tolerance")
	}
	return best, nil
}

func betterCandidate(diff int64, cand P2Candidate, bestDiff int64, best P2Candidate) bool {
	if diff != bestDiff {
		return diff < bestDiff
	}
	if cand.PPPP != best.PPPP {
		return cand.PPPP < best.PPPP
	}
	return cand.Divd > best.Divd
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}

// Config is the resolved clock configuration injected into the
// top-level and system modules as __clkfreq_con / __clkmode_con /
// __clkreg_con.
type Config struct {
	ClkFreq int64
	ClkMode uint32
	ClkReg  byte
}

// ResolveP1 derives the configuration from a legacy _CLKMODE flag set
// and _XINFREQ (or the RC defaults when no crystal is named).
func ResolveP1(mode P1Mode, xinFreq int64) (Config, error) {
	reg, err := P1ClockReg(mode)
	if err != nil {
		return Config{}, err
	}
	freq := xinFreq * int64(P1ClockMultiplier(mode))
	switch mode {
	case RCFAST:
		freq = 12_000_000
	case RCSLOW:
		freq = 20_000
	}
	return Config{ClkFreq: freq, ClkMode: uint32(mode), ClkReg: reg}, nil
}

// ResolveP2 runs the PLL search for the requested _CLKFREQ against the
// crystal frequency, honoring _ERRFREQ.
func ResolveP2(xtalFreq, requested, errFreq int64) (Config, error) {
	cand, err := SearchP2PLL(xtalFreq, requested, errFreq)
	if err != nil {
		return Config{}, err
	}
	return Config{ClkFreq: cand.Fout, ClkMode: cand.ClkMode(), ClkReg: byte(cand.PPPP)}, nil
}
