package stackbc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/totalspectrum/propcore/ast"
)

func TestEmitImmediateDedicatedOpcodes(t *testing.T) {
	for _, tc := range []struct {
		v    int64
		want Op
	}{{-1, OpPushNeg1}, {0, OpPush0}, {1, OpPush1}} {
		c := NewCompiler(0, 0)
		c.EmitImmediate(tc.v)
		require.Equal(t, 1, c.Code.Len())
		assert.Equal(t, byte(tc.want), c.Code.Bytes()[0])
	}
}

func TestEmitImmediateByteRange(t *testing.T) {
	c := NewCompiler(0, 0)
	c.EmitImmediate(200)
	require.Equal(t, 2, c.Code.Len())
	assert.Equal(t, byte(OpPushByte), c.Code.Bytes()[0])
	assert.Equal(t, byte(200), c.Code.Bytes()[1])
}

func TestEmitImmediatePowerOfTwo(t *testing.T) {
	c := NewCompiler(0, 0)
	c.EmitImmediate(1024)
	require.Equal(t, 2, c.Code.Len())
	assert.Equal(t, byte(OpPushPot), c.Code.Bytes()[0])
}

func TestEmitImmediateBitNotFitsByte(t *testing.T) {
	c := NewCompiler(0, 0)
	c.EmitImmediate(^int64(100))
	bytes := c.Code.Bytes()
	assert.Equal(t, byte(OpPushByte), bytes[0])
	assert.Equal(t, byte(100), bytes[1])
	assert.Equal(t, byte(OpBitNot), bytes[2])
}

func TestEmitImmediateRawFallback(t *testing.T) {
	c := NewCompiler(0, 0)
	c.EmitImmediate(70000)
	assert.Equal(t, byte(OpPushRaw3), c.Code.Bytes()[0])
}

func TestStackGrowthFormula(t *testing.T) {
	c := NewCompiler(2, 3)
	assert.Equal(t, 4*(1+2+3), c.StackGrowth())
}

func TestCompileSimpleReturnAddition(t *testing.T) {
	c := NewCompiler(0, 0)
	body := &ast.Node{
		Kind: ast.KindReturn,
		Left: &ast.Node{Kind: ast.KindOperator, IVal: uint64(ast.OpAdd),
			Left:  &ast.Node{Kind: ast.KindInteger, IVal: 2},
			Right: &ast.Node{Kind: ast.KindInteger, IVal: 3},
		},
	}
	err := c.CompileFunctionBody(body)
	require.NoError(t, err)
	bytes := c.Code.Bytes()
	assert.Equal(t, byte(OpPushByte), bytes[0])
	assert.Equal(t, byte(OpAdd), bytes[len(bytes)-2])
	assert.Equal(t, byte(OpReturn), bytes[len(bytes)-1])
}

func TestCompileUnsupportedConstructErrors(t *testing.T) {
	c := NewCompiler(0, 0)
	err := c.CompileFunctionBody(&ast.Node{Kind: ast.KindIf})
	require.Error(t, err)
	var unsupported *UnsupportedError
	assert.ErrorAs(t, err, &unsupported)
}
