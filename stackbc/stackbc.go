// Package stackbc implements the P1 stack bytecode backend: a thin
// per-function compiler producing a compact stack-operation stream with
// specialized immediate encoding. Constructs the fixed ROM interpreter
// cannot express bail out with a diagnostic instead of guessing at an
// encoding.
package stackbc

import (
	"github.com/totalspectrum/propcore/ast"
	"github.com/totalspectrum/propcore/internal/flex"
)

// Op enumerates the ~30 stack opcodes.
type Op byte

const (
	OpPushNeg1 Op = iota
	OpPush0
	OpPush1
	OpPushByte
	OpPushPot  // power-of-two-ish immediate, tag carries sign/offset
	OpPushRaw2
	OpPushRaw3
	OpPushRaw4
	OpBitNot
	OpAdd
	OpSub
	OpMul
	OpDivS
	OpDivU
	OpAnd
	OpOr
	OpXor
	OpShl
	OpShr
	OpSar
	OpNeg
	OpLoadLocal
	OpStoreLocal
	OpLoadVar
	OpStoreVar
	OpCall
	OpReturn
	OpDrop
	OpDup
	OpJmp
	OpJmpZ
)

// PotTag distinguishes the four PUSH_POT encodings: a value that
// is exactly 2^k, -(2^k), 2^k-1, or -(2^k-1).
type PotTag byte

const (
	PotPlain PotTag = iota
	PotNeg
	PotMinusOne
	PotNegMinusOne
)

// UnsupportedError reports a construct the stack backend cannot lower;
// the caller is expected to redirect the function to the PASM or Nu back
// end instead.
type UnsupportedError struct {
	Construct string
}

func (e *UnsupportedError) Error() string {
	return "cannot compile for bytecode yet: " + e.Construct
}

// Compiler lowers one function body to a stack bytecode stream.
type Compiler struct {
	Code    *flex.Buffer
	NParams int
	NLocals int
}

func NewCompiler(nparams, nlocals int) *Compiler {
	return &Compiler{Code: flex.New(64), NParams: nparams, NLocals: nlocals}
}

// StackGrowth computes the per-method stack-growth field:
// 4 * (1 + nparams + nlocals).
func (c *Compiler) StackGrowth() int {
	return 4 * (1 + c.NParams + c.NLocals)
}

// EmitImmediate chooses the specialised encoding for an integer
// literal: dedicated opcodes for -1/0/1, PUSH_BYTE for 0..255, PUSH_POT for
// values that are +/-2^k or +/-(2^k-1), PUSH_BYTE+BIT_NOT when ~v fits a
// byte, otherwise the minimal 2/3/4-byte raw form.
func (c *Compiler) EmitImmediate(v int64) {
	switch v {
	case -1:
		c.Code.WriteByte(byte(OpPushNeg1))
		return
	case 0:
		c.Code.WriteByte(byte(OpPush0))
		return
	case 1:
		c.Code.WriteByte(byte(OpPush1))
		return
	}
	if v >= 0 && v <= 255 {
		c.Code.WriteByte(byte(OpPushByte))
		c.Code.WriteByte(byte(v))
		return
	}
	if k, tag, ok := potForm(v); ok {
		c.Code.WriteByte(byte(OpPushPot))
		c.Code.WriteByte(byte(k) | byte(tag)<<6)
		return
	}
	notV := ^v
	if notV >= 0 && notV <= 255 {
		c.Code.WriteByte(byte(OpPushByte))
		c.Code.WriteByte(byte(notV))
		c.Code.WriteByte(byte(OpBitNot))
		return
	}
	emitRaw(c.Code, v)
}

// potForm recognizes +/-2^k and +/-(2^k-1) forms, k in [0,31].
func potForm(v int64) (k uint, tag PotTag, ok bool) {
	if v > 0 && v&(v-1) == 0 {
		return bitLen(uint64(v)) - 1, PotPlain, true
	}
	if v < 0 && (-v)&(-v-1) == 0 {
		return bitLen(uint64(-v)) - 1, PotNeg, true
	}
	if v > 0 && (v+1)&v == 0 {
		return bitLen(uint64(v+1)) - 1, PotMinusOne, true
	}
	if v < 0 && (-v+1)&(-v) == 0 {
		return bitLen(uint64(-v+1)) - 1, PotNegMinusOne, true
	}
	return 0, 0, false
}

func bitLen(v uint64) uint {
	n := uint(0)
	for v > 0 {
		v >>= 1
		n++
	}
	return n
}

// emitRaw chooses the minimum of 2/3/4 raw little-endian bytes needed to
// hold v, preceded by the matching opcode.
func emitRaw(buf *flex.Buffer, v int64) {
	u := uint32(v)
	switch {
	case u == uint32(int32(int16(u))):
		buf.WriteByte(byte(OpPushRaw2))
		buf.WriteByte(byte(u))
		buf.WriteByte(byte(u >> 8))
	case u == uint32(int32(u<<8)>>8):
		buf.WriteByte(byte(OpPushRaw3))
		buf.WriteByte(byte(u))
		buf.WriteByte(byte(u >> 8))
		buf.WriteByte(byte(u >> 16))
	default:
		buf.WriteByte(byte(OpPushRaw4))
		buf.WriteByte(byte(u))
		buf.WriteByte(byte(u >> 8))
		buf.WriteByte(byte(u >> 16))
		buf.WriteByte(byte(u >> 24))
	}
}

// CompileFunctionBody lowers a statement-list body. Only a minimal
// statement subset is handled; anything else returns UnsupportedError.
func (c *Compiler) CompileFunctionBody(body *ast.Node) error {
	if body == nil {
		return nil
	}
	switch body.Kind {
	case ast.KindStmtList:
		for _, s := range ast.ListElements(body) {
			if err := c.CompileFunctionBody(s); err != nil {
				return err
			}
		}
		return nil
	case ast.KindExprStmt:
		return c.compileExpr(body.Left)
	case ast.KindReturn:
		if body.Left != nil {
			if err := c.compileExpr(body.Left); err != nil {
				return err
			}
		}
		c.Code.WriteByte(byte(OpReturn))
		return nil
	case ast.KindAssign:
		return c.compileAssign(body)
	default:
		return &UnsupportedError{Construct: astKindName(body.Kind)}
	}
}

func (c *Compiler) compileAssign(n *ast.Node) error {
	if err := c.compileExpr(n.Right); err != nil {
		return err
	}
	if n.Left == nil || n.Left.Kind != ast.KindIdentifier {
		return &UnsupportedError{Construct: "complex assignment target"}
	}
	c.Code.WriteByte(byte(OpStoreVar))
	return nil
}

func (c *Compiler) compileExpr(n *ast.Node) error {
	if n == nil {
		return nil
	}
	switch n.Kind {
	case ast.KindInteger:
		c.EmitImmediate(int64(n.IVal))
		return nil
	case ast.KindFloat:
		c.EmitImmediate(int64(n.IVal))
		return nil
	case ast.KindIdentifier:
		c.Code.WriteByte(byte(OpLoadVar))
		return nil
	case ast.KindOperator:
		return c.compileOperator(n)
	default:
		return &UnsupportedError{Construct: astKindName(n.Kind)}
	}
}

func (c *Compiler) compileOperator(n *ast.Node) error {
	if err := c.compileExpr(n.Left); err != nil {
		return err
	}
	if err := c.compileExpr(n.Right); err != nil {
		return err
	}
	switch ast.OpKind(n.IVal) {
	case ast.OpAdd:
		c.Code.WriteByte(byte(OpAdd))
	case ast.OpSub:
		c.Code.WriteByte(byte(OpSub))
	case ast.OpMul:
		c.Code.WriteByte(byte(OpMul))
	case ast.OpDivS:
		c.Code.WriteByte(byte(OpDivS))
	case ast.OpDivU:
		c.Code.WriteByte(byte(OpDivU))
	case ast.OpAnd:
		c.Code.WriteByte(byte(OpAnd))
	case ast.OpOr:
		c.Code.WriteByte(byte(OpOr))
	case ast.OpXor:
		c.Code.WriteByte(byte(OpXor))
	default:
		return &UnsupportedError{Construct: "operator not yet supported by stack backend"}
	}
	return nil
}

func astKindName(k ast.Kind) string {
	return "ast-kind-" + itoa(int(k))
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [12]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}
