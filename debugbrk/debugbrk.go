// Package debugbrk implements the debug breakpoint byte-language
// compiler: each DEBUG(...) directive lowers to a small stack-oriented
// byte program, with a packed formatter byte, two literal encoding
// widths, and register-reference packing — several small fields packed
// into one byte, with varying-width tails.
package debugbrk

import "github.com/totalspectrum/propcore/internal/flex"

// Op enumerates the breakpoint byte-language opcodes.
const (
	OpEnd        byte = 0x00
	OpAsmMode    byte = 0x01
	OpIf         byte = 0x02
	OpIfNot      byte = 0x03
	OpCogPrefix  byte = 0x04
	OpCharLit    byte = 0x05
	OpStringLit  byte = 0x06
	OpDelayMs    byte = 0x07
)

// Width is the field-width tag of a Formatter byte.
type Width byte

const (
	WidthNone Width = 0
	WidthByte Width = 1
	WidthWord Width = 2
	WidthLong Width = 3
)

// Base is the display-base tag of a Formatter byte.
type Base byte

const (
	BaseNone Base = 0
	BaseDec  Base = 1
	BaseHex  Base = 2
	BaseBin  Base = 3
)

// Formatter packs the fields described by the formatter byte.
type Formatter struct {
	SuppressComma bool
	SuppressLabel bool
	Width         Width
	Signed        bool
	Base          Base
}

// Encode packs f into a single byte.
func (f Formatter) Encode() byte {
	var b byte
	if f.SuppressComma {
		b |= 1 << 0
	}
	if f.SuppressLabel {
		b |= 1 << 1
	}
	b |= byte(f.Width&0x3) << 2
	if f.Signed {
		b |= 1 << 5
	}
	b |= byte(f.Base&0x3) << 6
	return b
}

// DecodeFormatter unpacks a formatter byte.
func DecodeFormatter(b byte) Formatter {
	return Formatter{
		SuppressComma: b&(1<<0) != 0,
		SuppressLabel: b&(1<<1) != 0,
		Width:         Width((b >> 2) & 0x3),
		Signed:        b&(1<<5) != 0,
		Base:          Base((b >> 6) & 0x3),
	}
}

// Program builds one breakpoint expression program.
type Program struct {
	Code *flex.Buffer
}

func NewProgram() *Program {
	return &Program{Code: flex.New(32)}
}

func (p *Program) End()               { p.Code.WriteByte(OpEnd) }
func (p *Program) AsmMode()           { p.Code.WriteByte(OpAsmMode) }
func (p *Program) CogPrefix()         { p.Code.WriteByte(OpCogPrefix) }
func (p *Program) If(negate bool) {
	if negate {
		p.Code.WriteByte(OpIfNot)
	} else {
		p.Code.WriteByte(OpIf)
	}
}
func (p *Program) CharLit(c byte) {
	p.Code.WriteByte(OpCharLit)
	p.Code.WriteByte(c)
}
func (p *Program) StringLit(s string) {
	p.Code.WriteByte(OpStringLit)
	p.Code.Write([]byte(s))
	p.Code.WriteByte(0)
}
func (p *Program) DelayMs(ms uint32) {
	p.Code.WriteByte(OpDelayMs)
	EncodeLiteral(p.Code, int64(ms))
}

// EncodeLiteral packs a small integer into the 14-bit short form when it
// fits ([0x00..0x3f][lo]), else the long form (0b01000000 followed by
// four little-endian bytes).
func EncodeLiteral(buf *flex.Buffer, v int64) {
	if v >= 0 && v <= 0x3FFF {
		buf.WriteByte(byte(v >> 8))
		buf.WriteByte(byte(v))
		return
	}
	buf.WriteByte(0x40)
	u := uint32(v)
	buf.WriteByte(byte(u))
	buf.WriteByte(byte(u >> 8))
	buf.WriteByte(byte(u >> 16))
	buf.WriteByte(byte(u >> 24))
}

// EncodeRegister packs a register reference into two bytes: [0x80 |
// (r>>8)][r&0xff].
func EncodeRegister(buf *flex.Buffer, r uint16) {
	buf.WriteByte(0x80 | byte(r>>8))
	buf.WriteByte(byte(r))
}
