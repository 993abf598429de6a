package postprocess

import "github.com/totalspectrum/propcore/internal/flex"

// DebugStubParams are the values patched into the compiled debug-break
// stub's DAT at fixed offsets before it is prepended to the image.
type DebugStubParams struct {
	ClkFreq      uint32
	ClkMode      uint32
	DelayMs      uint32
	AppSize      uint32
	CogMask      uint32
	TxPin        uint32
	RxPin        uint32
	RxTimestamps bool // folded into RxPin's high bit
	Baud         uint32
}

// Patch offsets into the debug stub's DAT block. The stub reserves one
// long per parameter at its top, in this order; offsets are bytes from
// the stub's start.
const (
	dbgOffClkFreq   = 0x00
	dbgOffClkMode   = 0x04
	dbgOffClkModeNR = 0x08 // clkmode & ~3 (RC-safe restart value)
	dbgOffDelay     = 0x0C
	dbgOffAppSize   = 0x10
	dbgOffCogMask   = 0x14
	dbgOffTxPin     = 0x18
	dbgOffRxPin     = 0x1C
	dbgOffBaud      = 0x20
)

// DebugDelayTicksPerMs converts the DEBUG_DELAY constant's millisecond
// units into the stub's delay field.
const DebugDelayTicksPerMs = 1

// PatchDebuggerStub writes params into stub at the fixed offsets. The
// stub must be at least as large as the parameter block.
func PatchDebuggerStub(stub []byte, p DebugStubParams) {
	put := func(off int, v uint32) {
		if off+4 > len(stub) {
			return
		}
		stub[off] = byte(v)
		stub[off+1] = byte(v >> 8)
		stub[off+2] = byte(v >> 16)
		stub[off+3] = byte(v >> 24)
	}
	rx := p.RxPin
	if p.RxTimestamps {
		rx |= 1 << 31
	}
	put(dbgOffClkFreq, p.ClkFreq)
	put(dbgOffClkMode, p.ClkMode)
	put(dbgOffClkModeNR, p.ClkMode&^uint32(3))
	put(dbgOffDelay, p.DelayMs*DebugDelayTicksPerMs)
	put(dbgOffAppSize, p.AppSize)
	put(dbgOffCogMask, p.CogMask)
	put(dbgOffTxPin, p.TxPin)
	put(dbgOffRxPin, rx)
	put(dbgOffBaud, p.Baud)
}

// BuildDebuggerBlob patches the stub, appends the per-breakpoint
// expression table (a header of 16-bit offsets followed by the
// concatenated byte programs), and returns the blob to prepend.
func BuildDebuggerBlob(stub []byte, params DebugStubParams, brkTable []byte) []byte {
	patched := make([]byte, len(stub))
	copy(patched, stub)
	PatchDebuggerStub(patched, params)
	out := make([]byte, 0, len(patched)+len(brkTable))
	out = append(out, patched...)
	out = append(out, brkTable...)
	return out
}

// PrependDebuggerBlob is the final prepend step, returning a fresh
// buffer of blob followed by the application image.
func PrependDebuggerBlob(img *flex.Buffer, blob []byte) *flex.Buffer {
	out := flex.New(len(blob) + img.Len())
	out.Write(blob)
	out.Write(img.Bytes())
	return out
}
