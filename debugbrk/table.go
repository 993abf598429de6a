package debugbrk

import (
	"errors"

	"github.com/totalspectrum/propcore/internal/flex"
)

// MaxBreakpoints is the dense breakpoint-numbering ceiling.
const MaxBreakpoints = 256

// Table assigns dense breakpoint numbers to compiled Programs in
// first-use order and serializes them as a header of 16-bit offsets
// followed by the concatenated per-breakpoint byte programs.
type Table struct {
	programs []*Program
}

// Add assigns the next breakpoint number to p and returns it.
// Numbers are dense and start at 1.
func (t *Table) Add(p *Program) (int, error) {
	if len(t.programs) >= MaxBreakpoints {
		return 0, errors.New("debugbrk: MAX_BRK exceeded")
	}
	t.programs = append(t.programs, p)
	return len(t.programs), nil
}

// Serialize writes the offset header followed by the concatenated
// programs into a fresh buffer.
func (t *Table) Serialize() *flex.Buffer {
	headerSize := 2 * len(t.programs)
	out := flex.New(headerSize + 64)
	out.Pad(headerSize)

	offsets := make([]int, len(t.programs))
	cur := headerSize
	for i, p := range t.programs {
		offsets[i] = cur
		cur += p.Code.Len()
	}
	for _, p := range t.programs {
		out.Write(p.Code.Bytes())
	}
	for i, off := range offsets {
		out.WriteAt(2*i, []byte{byte(off), byte(off >> 8)})
	}
	return out
}
