package dat

import (
	"errors"

	"github.com/totalspectrum/propcore/internal/flex"
)

// FVAR/FVARS are the variable-length self-describing integers:
// 7 bits per byte, MSB as continuation flag, at most 4 bytes, encoded
// most-significant group first. The signed variant reserves the sign bit
// on the first byte (bit 6, under the continuation bit) and the decoder
// sign-extends from it.

// ErrFVarOverflow reports a value that does not fit 4 FVAR bytes.
var ErrFVarOverflow = errors.New("dat: value out of FVAR range")

func fvarGroups(bits int) int {
	return (bits + 6) / 7
}

// EmitFVar encodes an unsigned value, minimal length.
func EmitFVar(buf *flex.Buffer, v uint32) error {
	if v >= 1<<28 {
		return ErrFVarOverflow
	}
	n := 1
	for v >= 1<<uint(7*n) {
		n++
	}
	for i := n - 1; i >= 0; i-- {
		b := byte(v>>uint(7*i)) & 0x7F
		if i > 0 {
			b |= 0x80
		}
		buf.WriteByte(b)
	}
	return nil
}

// EmitFVarS encodes a signed value: the first byte's bit 6 carries the
// sign, so v must fit 7n-1 bits for n bytes.
func EmitFVarS(buf *flex.Buffer, v int32) error {
	n := 1
	for n <= 4 {
		lo := int32(-1) << uint(7*n-1)
		hi := -lo - 1
		if v >= lo && v <= hi {
			break
		}
		n++
	}
	if n > 4 {
		return ErrFVarOverflow
	}
	u := uint32(v) & (1<<uint(7*n) - 1)
	for i := n - 1; i >= 0; i-- {
		b := byte(u>>uint(7*i)) & 0x7F
		if i > 0 {
			b |= 0x80
		}
		buf.WriteByte(b)
	}
	return nil
}

// DecodeFVar reads one unsigned FVAR from data, returning the value and
// byte count.
func DecodeFVar(data []byte) (uint32, int, error) {
	var v uint32
	for i := 0; i < len(data) && i < 4; i++ {
		v = v<<7 | uint32(data[i]&0x7F)
		if data[i]&0x80 == 0 {
			return v, i + 1, nil
		}
	}
	return 0, 0, ErrFVarOverflow
}

// DecodeFVarS reads one signed FVAR, sign-extending from the first
// byte's sign bit.
func DecodeFVarS(data []byte) (int32, int, error) {
	if len(data) == 0 {
		return 0, 0, ErrFVarOverflow
	}
	neg := data[0]&0x40 != 0
	var v uint32
	n := 0
	for i := 0; i < len(data) && i < 4; i++ {
		v = v<<7 | uint32(data[i]&0x7F)
		if data[i]&0x80 == 0 {
			n = i + 1
			break
		}
	}
	if n == 0 {
		return 0, 0, ErrFVarOverflow
	}
	if neg {
		v |= ^uint32(0) << uint(7*n)
	}
	return int32(v), n, nil
}
