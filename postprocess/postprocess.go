// Package postprocess implements the finished-image pipeline:
// padding, the stack/free reservation check, the size check against a
// target's EEPROM/hub limit, debugger prepend, LZ4 compression, the P1
// checksum byte, and EEPROM tail padding: a fixed sequence of
// buffer-mutating steps applied to a finished image, reporting a warning
// rather than failing when a later step's benefit doesn't pan out.
package postprocess

import (
	"errors"

	"github.com/pierrec/lz4"

	"github.com/totalspectrum/propcore/internal/flex"
)

// P1EndOfProgram is the 8-byte P1 "end of program" sentinel injected
// before EEPROM tail padding.
var P1EndOfProgram = []byte{0xFF, 0xFF, 0xF9, 0xFF, 0xFF, 0xFF, 0xF9, 0xFF}

// Target names the chip target and its size limit.
type Target struct {
	IsP2          bool
	EEPROMSize    int // explicit override; 0 means use the default limit
	DebuggerLinked bool
}

func (t Target) limit() int {
	if t.EEPROMSize > 0 {
		return t.EEPROMSize
	}
	if !t.IsP2 {
		return 32 * 1024
	}
	if t.DebuggerLinked {
		return 512*1024 - 16*1024
	}
	return 512 * 1024
}

// Warning is a non-fatal pipeline diagnostic.
type Warning struct {
	Message string
}

// Pipeline runs an image buffer through the post-process steps in order,
// accumulating warnings rather than stopping; the caller decides whether
// any warning should become a hard failure (mirrors WarningsAsErrors
// upstream in the compiler package).
type Pipeline struct {
	Target   Target
	Warnings []Warning
}

func (p *Pipeline) warn(format string) {
	p.Warnings = append(p.Warnings, Warning{Message: format})
}

// Pad rounds the image to a 4-byte boundary on P1; P2 images are left
// unpadded.
func (p *Pipeline) Pad(img *flex.Buffer) {
	if !p.Target.IsP2 {
		img.AlignTo(4)
	}
}

// CheckReservation adds the _STACK/_FREE long-counts (if the top module
// declares them) to the reserved footprint and warns if image+reserved
// exceeds the target limit. stackLongs/freeLongs are 0
// when the corresponding symbol isn't declared.
func (p *Pipeline) CheckReservation(img *flex.Buffer, stackLongs, freeLongs int) {
	reserved := (stackLongs + freeLongs) * 4
	if img.Len()+reserved > p.Target.limit() {
		p.warn("image plus reserved stack/free footprint exceeds target size")
	}
}

// CheckSize warns if the image alone already exceeds the target limit.
func (p *Pipeline) CheckSize(img *flex.Buffer) {
	if img.Len() > p.Target.limit() {
		p.warn("image exceeds target size limit")
	}
}

// PrependDebugger prepends a compiled debugger stub (already patched and
// serialized by the caller via debugbrk.Compile) to the image.
func (p *Pipeline) PrependDebugger(img *flex.Buffer, stub []byte) *flex.Buffer {
	out := flex.New(len(stub) + img.Len())
	out.Write(stub)
	out.Write(img.Bytes())
	return out
}

// Compress runs LZ4 block compression (P2 only) and prepends a 4-byte
// little-endian compressed length, matching a self-extracting stub's
// expected header. If compression doesn't improve on the
// original size, it warns and returns the input unchanged, per "fall
// back to the uncompressed image with a warning".
func (p *Pipeline) Compress(img *flex.Buffer) *flex.Buffer {
	src := img.Bytes()
	dst := make([]byte, lz4.CompressBlockBound(len(src)))
	var ht [1 << 16]int
	n, err := lz4.CompressBlock(src, dst, ht[:])
	if err != nil || n == 0 || n >= len(src) {
		p.warn("LZ4 compression did not improve image size; using uncompressed image")
		return img
	}
	out := flex.New(n + 4)
	out.WriteByte(byte(n))
	out.WriteByte(byte(n >> 8))
	out.WriteByte(byte(n >> 16))
	out.WriteByte(byte(n >> 24))
	out.Write(dst[:n])
	return out
}

// Decompress reverses Compress, for tests and for round-tripping a
// previously compressed image.
func Decompress(compressed []byte, originalSize int) ([]byte, error) {
	if len(compressed) < 4 {
		return nil, errors.New("postprocess: compressed blob missing length header")
	}
	dst := make([]byte, originalSize)
	n, err := lz4.UncompressBlock(compressed[4:], dst)
	if err != nil {
		return nil, err
	}
	return dst[:n], nil
}

// Checksum computes and writes the P1 checksum byte at offset 5 of the
// header: (0x14 - sum(bytes)) mod 256. P2 images are left
// untouched.
func (p *Pipeline) Checksum(img *flex.Buffer) {
	if p.Target.IsP2 {
		return
	}
	sum := 0
	for _, b := range img.Bytes() {
		sum += int(b)
	}
	checksum := byte((0x14 - sum) & 0xFF)
	img.WriteAt(5, []byte{checksum})
}

// EEPROMTail pads the image to the requested EEPROM size, injecting the
// P1 end-of-program sentinel immediately before the pad.
func (p *Pipeline) EEPROMTail(img *flex.Buffer, eepromSize int) {
	if !p.Target.IsP2 {
		img.Write(P1EndOfProgram)
	}
	if eepromSize > img.Len() {
		img.Pad(eepromSize - img.Len())
	}
}
