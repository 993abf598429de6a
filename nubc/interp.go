package nubc

import "strings"

// interpSource is the Nu interpreter kernel, held as an embedded asset.
// The packer reads per-opcode implementations out of it
// by scanning for impl_<OPCODE> labels and counting instructions up to
// the next blank line; the preamble and epilogue bracket the emitted
// dispatch table and bytecode stream.
const interpSource = `
' Nu interpreter kernel
' preamble: cog/LUT setup, dispatch loop
__preamble
	org	0
	mov	ptrb, ##@__bytecode_start
	rdfast	#0, ptrb
__dispatch
	rfbyte	pa
	rdlut	pb, pa
	call	pb
	jmp	#__dispatch

impl_DIRECT
	rfword	pa
	call	pa
	ret

impl_PUSHI
	call	#\impl_DUP
	rflong	tos
	ret

impl_PUSHA
	call	#\impl_DUP
	rflong	tos
	add	tos, __base
	ret

impl_CALLA
	rflong	pa
	call	pa
	ret

impl_LDB
	rdbyte	tos, tos
	ret

impl_LDBS
	rdbyte	tos, tos
	signx	tos, #7
	ret

impl_LDW
	rdword	tos, tos
	ret

impl_LDWS
	rdword	tos, tos
	signx	tos, #15
	ret

impl_LDL
	rdlong	tos, tos
	ret

impl_LDD
	rdlong	nos, tos
	add	tos, #4
	rdlong	tos, tos
	ret

impl_STB
	wrbyte	nos, tos
	jmp	#\impl_DROP2

impl_STW
	wrword	nos, tos
	jmp	#\impl_DROP2

impl_STL
	wrlong	nos, tos
	jmp	#\impl_DROP2

impl_STD
	setq	#1
	wrlong	nos, tos
	jmp	#\impl_DROP2

impl_ADD_VBASE
	add	tos, vbase
	ret

impl_ADD_DBASE
	add	tos, dbase
	ret

impl_ADD_SP
	add	tos, sp
	ret

impl_ADD_PC
	add	tos, pc
	ret

impl_ADD_SUPER
	rdlong	pa, vbase
	add	tos, pa
	ret

impl_LDREG
	alts	tos
	mov	tos, 0-0
	ret

impl_STREG
	altd	tos
	mov	0-0, nos
	jmp	#\impl_DROP2

impl_ADD
	add	nos, tos
	jmp	#\impl_DROP

impl_SUB
	sub	nos, tos
	jmp	#\impl_DROP

impl_AND
	and	nos, tos
	jmp	#\impl_DROP

impl_IOR
	or	nos, tos
	jmp	#\impl_DROP

impl_XOR
	xor	nos, tos
	jmp	#\impl_DROP

impl_SHL
	shl	nos, tos
	jmp	#\impl_DROP

impl_SHR
	shr	nos, tos
	jmp	#\impl_DROP

impl_SAR
	sar	nos, tos
	jmp	#\impl_DROP

impl_NEG
	neg	tos, tos
	ret

impl_NOT
	not	tos, tos
	ret

impl_ABS
	abs	tos, tos
	ret

impl_ISQRT
	qsqrt	tos, #0
	getqx	tos
	ret

impl_REV
	rev	tos
	ret

impl_DOUBLE
	shl	tos, #1
	ret

impl_INC
	add	tos, #1
	ret

impl_DEC
	sub	tos, #1
	ret

impl_SIGNX
	signx	nos, tos
	jmp	#\impl_DROP

impl_ZEROX
	zerox	nos, tos
	jmp	#\impl_DROP

impl_ENCODE
	encod	tos, tos
	ret

impl_ENCODE2
	encod	tos, tos
	add	tos, #1
	ret

impl_MINS
	fges	nos, tos
	jmp	#\impl_DROP

impl_MAXS
	fles	nos, tos
	jmp	#\impl_DROP

impl_MINU
	fge	nos, tos
	jmp	#\impl_DROP

impl_MAXU
	fle	nos, tos
	jmp	#\impl_DROP

impl_MULU
	qmul	nos, tos
	getqx	nos
	getqy	tos
	ret

impl_MULS
	qmul	nos, tos
	getqx	nos
	getqy	tos
	ret

impl_DIVU
	qdiv	nos, tos
	getqx	nos
	getqy	tos
	ret

impl_DIVS
	abs	nos, nos	wc
	abs	tos, tos
	qdiv	nos, tos
	getqx	nos
	getqy	tos
	ret

impl_DUP
	wrlong	tos, ptra++
	ret

impl_DUP2
	setq	#1
	wrlong	nos, ptra++
	ret

impl_DROP
	rdlong	tos, --ptra
	ret

impl_DROP2
	setq	#1
	rdlong	nos, --ptra
	ret

impl_SWAP
	mov	pa, tos
	mov	tos, nos
	mov	nos, pa
	ret

impl_SWAP2
	mov	pa, tos
	mov	tos, nos
	mov	nos, pa
	ret

impl_OVER
	call	#\impl_DUP
	mov	tos, nos
	ret

impl_CALL
	rfword	pa
	call	pa
	ret

impl_CALLM
	rdlong	pa, tos
	call	pa
	ret

impl_ENTER
	wrlong	dbase, ptra++
	mov	dbase, sp
	ret

impl_RET
	mov	sp, dbase
	rdlong	dbase, --ptra
	ret

impl_JMP
	rflong	pc
	ret

impl_JMPREL
	add	pc, tos
	jmp	#\impl_DROP

impl_BRA
	rfword	pa
	add	pc, pa
	ret

impl_BRA3
	rfword	pa
	add	pc, pa
	ret

impl_BZ
	rfword	pa
	tjnz	tos, #\impl_DROP
	add	pc, pa
	jmp	#\impl_DROP

impl_BNZ
	rfword	pa
	tjz	tos, #\impl_DROP
	add	pc, pa
	jmp	#\impl_DROP

impl_DJNZ
	rfword	pa
	djnz	tos, #\__takebranch
	jmp	#\impl_DROP

impl_DJNZ_FAST
	rfword	pa
	djnz	tos, #\__takebranch
	jmp	#\impl_DROP

impl_CBEQ
	rfword	pa
	cmp	nos, tos	wz
	if_e	add	pc, pa
	jmp	#\impl_DROP2

impl_CBNE
	rfword	pa
	cmp	nos, tos	wz
	if_ne	add	pc, pa
	jmp	#\impl_DROP2

impl_CBLTS
	rfword	pa
	cmps	nos, tos	wc
	if_c	add	pc, pa
	jmp	#\impl_DROP2

impl_CBLES
	rfword	pa
	cmps	nos, tos	wcz
	if_be	add	pc, pa
	jmp	#\impl_DROP2

impl_CBLTU
	rfword	pa
	cmp	nos, tos	wc
	if_c	add	pc, pa
	jmp	#\impl_DROP2

impl_CBLEU
	rfword	pa
	cmp	nos, tos	wcz
	if_be	add	pc, pa
	jmp	#\impl_DROP2

impl_CBGTS
	rfword	pa
	cmps	nos, tos	wcz
	if_a	add	pc, pa
	jmp	#\impl_DROP2

impl_CBGES
	rfword	pa
	cmps	nos, tos	wc
	if_nc	add	pc, pa
	jmp	#\impl_DROP2

impl_CBGTU
	rfword	pa
	cmp	nos, tos	wcz
	if_a	add	pc, pa
	jmp	#\impl_DROP2

impl_CBGEU
	rfword	pa
	cmp	nos, tos	wc
	if_nc	add	pc, pa
	jmp	#\impl_DROP2

impl_SETJMP
	wrlong	sp, tos
	mov	tos, #0
	ret

impl_LONGJMP
	rdlong	sp, nos
	mov	tos, nos
	ret

impl_GOSUB
	wrlong	pc, ptra++
	rflong	pc
	ret

impl_BREAK
	brk	#0
	ret

impl_PINHI
	drvh	tos
	jmp	#\impl_DROP

impl_PINLO
	drvl	tos
	jmp	#\impl_DROP

impl_PINNOT
	drvnot	tos
	jmp	#\impl_DROP

impl_PINRND
	drvrnd	tos
	jmp	#\impl_DROP

impl_PINWR
	testb	nos, #0	wc
	drvc	tos
	jmp	#\impl_DROP2

impl_INLINEASM
	rflong	pa
	call	pa
	ret

' epilogue: trampoline for hub-resident implementations
__trampoline
	rfword	pa
	shr	pa, #16
	jmp	pa
`

// ImplInfo describes one opcode implementation found in the interpreter
// source.
type ImplInfo struct {
	Name   string
	Longs  int // instruction count up to the next blank line
	InHub  bool
	Offset int // line index, used as a stable stand-in for an address
}

// ScanImpls locates every impl_<OPCODE> label in the interpreter source
// and counts its instructions. Implementations whose LUT
// footprint would overflow the 512-long LUT budget are marked hub
// resident; the epilogue's trampoline reaches those.
func ScanImpls(src string) map[string]ImplInfo {
	impls := make(map[string]ImplInfo)
	lines := strings.Split(src, "\n")
	lutUsed := 0
	for i := 0; i < len(lines); i++ {
		line := strings.TrimRight(lines[i], " \t")
		if !strings.HasPrefix(line, "impl_") {
			continue
		}
		name := strings.TrimPrefix(line, "impl_")
		longs := 0
		for j := i + 1; j < len(lines); j++ {
			body := strings.TrimSpace(lines[j])
			if body == "" {
				break
			}
			if strings.HasPrefix(body, "'") {
				continue
			}
			longs++
		}
		info := ImplInfo{Name: name, Longs: longs, Offset: i}
		if lutUsed+longs > 512 {
			info.InHub = true
		} else {
			lutUsed += longs
		}
		impls[name] = info
	}
	return impls
}

// implFor returns the implementation info for op out of the embedded
// interpreter, with a conservative default for opcodes the kernel
// synthesizes at pack time (constant specializations, macros).
func implFor(op Op) ImplInfo {
	if info, ok := scanOnce()[op.String()]; ok {
		return info
	}
	return ImplInfo{Name: op.String(), Longs: 4}
}

var scannedImpls map[string]ImplInfo

func scanOnce() map[string]ImplInfo {
	if scannedImpls == nil {
		scannedImpls = ScanImpls(interpSource)
	}
	return scannedImpls
}
