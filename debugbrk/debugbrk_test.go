package debugbrk

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/totalspectrum/propcore/internal/flex"
)

func TestFormatterRoundTrips(t *testing.T) {
	f := Formatter{SuppressComma: true, Width: WidthLong, Signed: true, Base: BaseHex}
	got := DecodeFormatter(f.Encode())
	assert.Equal(t, f, got)
}

func TestEncodeLiteralShortForm(t *testing.T) {
	buf := flex.New(8)
	EncodeLiteral(buf, 0x100)
	require.Equal(t, 2, buf.Len())
	assert.Equal(t, byte(0x01), buf.Bytes()[0])
	assert.Equal(t, byte(0x00), buf.Bytes()[1])
}

func TestEncodeLiteralLongForm(t *testing.T) {
	buf := flex.New(8)
	EncodeLiteral(buf, 100000)
	require.Equal(t, 5, buf.Len())
	assert.Equal(t, byte(0x40), buf.Bytes()[0])
}

func TestEncodeRegisterPacksTwoBytes(t *testing.T) {
	buf := flex.New(8)
	EncodeRegister(buf, 0x123)
	assert.Equal(t, []byte{0x81, 0x23}, buf.Bytes())
}

func TestProgramBuildsEndToEnd(t *testing.T) {
	p := NewProgram()
	p.CogPrefix()
	p.StringLit("hi")
	p.End()
	bytes := p.Code.Bytes()
	assert.Equal(t, OpCogPrefix, bytes[0])
	assert.Equal(t, OpStringLit, bytes[1])
	assert.Equal(t, byte(0), bytes[len(bytes)-2])
	assert.Equal(t, OpEnd, bytes[len(bytes)-1])
}

func TestTableSerializesOffsetHeader(t *testing.T) {
	var tab Table
	p1 := NewProgram()
	p1.End()
	p2 := NewProgram()
	p2.CogPrefix()
	p2.End()

	n1, err := tab.Add(p1)
	require.NoError(t, err)
	n2, err := tab.Add(p2)
	require.NoError(t, err)
	assert.Equal(t, 1, n1)
	assert.Equal(t, 2, n2)

	out := tab.Serialize()
	header := out.Bytes()[:4]
	off0 := int(header[0]) | int(header[1])<<8
	off1 := int(header[2]) | int(header[3])<<8
	assert.Equal(t, 4, off0)
	assert.Equal(t, 5, off1)
}

func TestTableRejectsPastMaxBreakpoints(t *testing.T) {
	var tab Table
	for i := 0; i < MaxBreakpoints; i++ {
		_, err := tab.Add(NewProgram())
		require.NoError(t, err)
	}
	_, err := tab.Add(NewProgram())
	assert.Error(t, err)
}

func TestCompileOperandConst(t *testing.T) {
	p := NewProgram()
	f := Formatter{Width: WidthLong, Base: BaseDec}
	p.CompileOperand(f, "x", func() EvalResult {
		return EvalResult{Kind: IsConst, Addr: 5}
	})
	bytes := p.Code.Bytes()
	assert.Equal(t, f.Encode(), bytes[0])
	// Label "x" plus terminator, then the 14-bit literal.
	assert.Equal(t, byte('x'), bytes[1])
	assert.Equal(t, byte(0), bytes[2])
	assert.Equal(t, byte(0), bytes[3])
	assert.Equal(t, byte(5), bytes[4])
}

func TestCompileOperandMultiRegisterReemission(t *testing.T) {
	p := NewProgram()
	f := Formatter{SuppressComma: true, Width: WidthLong}
	p.CompileOperand(f, "pair", func() EvalResult {
		return EvalResult{Kind: IsReg2, Addr: 0x10}
	})
	bytes := p.Code.Bytes()
	assert.Equal(t, f.Encode(), bytes[0])

	// First register after the label.
	i := 1
	for bytes[i] != 0 {
		i++
	}
	i++
	assert.Equal(t, byte(0x80), bytes[i])
	assert.Equal(t, byte(0x10), bytes[i+1])

	// The sibling re-emits the formatter with comma restored and the
	// label suppressed, then the next register.
	sib := DecodeFormatter(bytes[i+2])
	assert.False(t, sib.SuppressComma)
	assert.True(t, sib.SuppressLabel)
	assert.Equal(t, byte(0x80), bytes[i+3])
	assert.Equal(t, byte(0x11), bytes[i+4])
}
