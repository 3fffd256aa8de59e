package back

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/nikandfor/hacked/hfmt"
	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/hackstack/n2t/compiler/vm"
)

type (
	// Translator lowers VM instructions to Hack assembly.
	// One Translator is meant to be used for a whole run,
	// it keeps the counter that makes synthetic labels unique.
	Translator struct {
		nextLabel int

		fn string // current function
	}

	// Unit names a translation unit.
	// Static variables are private to it.
	Unit string
)

const (
	// StackBase is where the stack starts.
	StackBase = 256

	// Entry is called by the bootstrap code.
	Entry = "Sys.init"

	tempBase = 5
	tempSize = 8

	// frameSize is the number of words call saves: return address and 4 base registers.
	frameSize = 5
)

var ErrTranslation = vm.ErrTranslation

var baseReg = map[vm.Segment]string{
	vm.Local:    "LCL",
	vm.Argument: "ARG",
	vm.This:     "THIS",
	vm.That:     "THAT",
}

func New() *Translator {
	return &Translator{}
}

// UnitFromPath derives the unit name from a file name: dir/Foo.vm is Foo.
func UnitFromPath(name string) Unit {
	base := filepath.Base(name)

	return Unit(strings.TrimSuffix(base, filepath.Ext(base)))
}

// Bootstrap sets up the stack and calls the entry function.
func (t *Translator) Bootstrap(b []byte) []byte {
	b = append(b, "// bootstrap\n"...)
	b = hfmt.Appendf(b, "@%d\nD=A\n@SP\nM=D\n", StackBase)

	t.fn = "bootstrap"
	b = t.call(b, vm.Instr{Op: vm.Call, Name: Entry})
	t.fn = ""

	return b
}

// TranslateUnit appends the assembly for one translation unit to b.
func (t *Translator) TranslateUnit(ctx context.Context, b []byte, u Unit, code []vm.Instr) (_ []byte, err error) {
	tr, ctx := tlog.SpawnFromContextAndWrap(ctx, "back: translate unit", "unit", u, "instrs", len(code))
	defer tr.Finish("err", &err)

	t.fn = ""

	for i, x := range code {
		b, err = t.Instr(b, u, x)
		if err != nil {
			return nil, errors.Wrap(err, "instr %d (%v)", i, x)
		}
	}

	return b, nil
}

// Instr appends the assembly block implementing x.
func (t *Translator) Instr(b []byte, u Unit, x vm.Instr) (_ []byte, err error) {
	b = append(b, "// "...)
	b = x.Append(b)
	b = append(b, '\n')

	if x.Op.IsArith() {
		return t.arith(b, x.Op), nil
	}

	switch x.Op {
	case vm.Push:
		return t.push(b, u, x)
	case vm.Pop:
		return t.pop(b, u, x)
	case vm.Label:
		return hfmt.Appendf(b, "(%s)\n", t.scoped(u, x.Name)), nil
	case vm.Goto:
		return hfmt.Appendf(b, "@%s\n0; JMP\n", t.scoped(u, x.Name)), nil
	case vm.IfGoto:
		return hfmt.Appendf(b, "@SP\nAM=M-1\nD=M\n@%s\nD; JNE\n", t.scoped(u, x.Name)), nil
	case vm.Function:
		return t.function(b, x), nil
	case vm.Call:
		if t.fn == "" {
			t.fn = string(u)
			defer func() { t.fn = "" }()
		}

		return t.call(b, x), nil
	case vm.Return:
		return ret(b), nil
	}

	return nil, errors.Wrap(ErrTranslation, "unsupported opcode %v", x.Op)
}

func (t *Translator) arith(b []byte, op vm.Op) []byte {
	switch op {
	case vm.Neg:
		return append(b, "@SP\nA=M-1\nM=-M\n"...)
	case vm.Not:
		return append(b, "@SP\nA=M-1\nM=!M\n"...)
	case vm.Eq, vm.Gt, vm.Lt:
		return t.compare(b, op)
	default:
		return binary(b, op)
	}
}

// scoped prefixes the label with the enclosing function,
// so equal labels in different functions don't collide.
func (t *Translator) scoped(u Unit, l string) string {
	if t.fn == "" {
		return string(u) + "$" + l
	}

	return t.fn + "$" + l
}

func (t *Translator) label() int {
	t.nextLabel++
	return t.nextLabel
}

// pushD appends code pushing D.
func pushD(b []byte) []byte {
	return append(b, "@SP\nAM=M+1\nA=A-1\nM=D\n"...)
}

func (t *Translator) push(b []byte, u Unit, x vm.Instr) ([]byte, error) {
	switch x.Seg {
	case vm.Constant:
		if x.N > 32767 {
			return nil, errors.Wrap(ErrTranslation, "constant %d out of range", x.N)
		}

		b = hfmt.Appendf(b, "@%d\nD=A\n", x.N)
	case vm.Local, vm.Argument, vm.This, vm.That:
		b = hfmt.Appendf(b, "@%d\nD=A\n@%s\nA=D+M\nD=M\n", x.N, baseReg[x.Seg])
	default:
		r, err := t.fixed(u, x)
		if err != nil {
			return nil, err
		}

		b = hfmt.Appendf(b, "@%s\nD=M\n", r)
	}

	return pushD(b), nil
}

// pop to a base-relative slot uses no scratch registers:
// D holds address+value, so A and M can be recovered by subtraction.
func (t *Translator) pop(b []byte, u Unit, x vm.Instr) ([]byte, error) {
	switch x.Seg {
	case vm.Constant:
		return nil, errors.Wrap(ErrTranslation, "pop to constant segment")
	case vm.Local, vm.Argument, vm.This, vm.That:
		return hfmt.Appendf(b, "@%d\nD=A\n@%s\nD=D+M\n@SP\nAM=M-1\nD=D+M\nA=D-M\nM=D-A\n", x.N, baseReg[x.Seg]), nil
	}

	r, err := t.fixed(u, x)
	if err != nil {
		return nil, err
	}

	return hfmt.Appendf(b, "@SP\nAM=M-1\nD=M\n@%s\nM=D\n", r), nil
}

// fixed resolves segments that map to fixed registers or variables.
func (t *Translator) fixed(u Unit, x vm.Instr) (string, error) {
	switch x.Seg {
	case vm.Pointer:
		switch x.N {
		case 0:
			return "THIS", nil
		case 1:
			return "THAT", nil
		}
	case vm.Temp:
		if x.N < tempSize {
			return string(hfmt.Appendf(nil, "R%d", tempBase+x.N)), nil
		}
	case vm.Static:
		return string(hfmt.Appendf(nil, "%s.%d", u, x.N)), nil
	default:
		return "", errors.Wrap(ErrTranslation, "unsupported segment %v", x.Seg)
	}

	return "", errors.Wrap(ErrTranslation, "%v index %d out of range", x.Seg, x.N)
}

func binary(b []byte, op vm.Op) []byte {
	var comp string

	switch op {
	case vm.Add:
		comp = "D+M"
	case vm.Sub:
		comp = "M-D"
	case vm.And:
		comp = "D&M"
	case vm.Or:
		comp = "D|M"
	}

	return hfmt.Appendf(b, "@SP\nAM=M-1\nD=M\nA=A-1\nM=%s\n", comp)
}

// compare has no native instruction: it branches on the sign of x-y
// and writes -1 or 0 in place of x.
func (t *Translator) compare(b []byte, op vm.Op) []byte {
	var jump string

	switch op {
	case vm.Eq:
		jump = "JNE"
	case vm.Gt:
		jump = "JLE"
	case vm.Lt:
		jump = "JGE"
	}

	n := t.label()
	name := strings.ToUpper(op.String())

	b = append(b, "@SP\nAM=M-1\nD=M\nA=A-1\nD=M-D\n"...)
	b = hfmt.Appendf(b, "@%s_FALSE.%d\nD; %s\n", name, n, jump)
	b = append(b, "@SP\nA=M-1\nM=-1\n"...)
	b = hfmt.Appendf(b, "@%s_END.%d\n0; JMP\n", name, n)
	b = hfmt.Appendf(b, "(%s_FALSE.%d)\n@SP\nA=M-1\nM=0\n", name, n)
	b = hfmt.Appendf(b, "(%s_END.%d)\n", name, n)

	return b
}

// function declares the entry label and zeroes the locals.
func (t *Translator) function(b []byte, x vm.Instr) []byte {
	t.fn = x.Name

	b = hfmt.Appendf(b, "(%s)\n", x.Name)

	if x.N == 0 {
		return b
	}

	b = append(b, "@SP\nA=M\n"...)

	for i := 0; i < x.N; i++ {
		b = append(b, "M=0\nA=A+1\n"...)
	}

	return append(b, "D=A\n@SP\nM=D\n"...)
}

// call saves the caller frame and jumps:
//
//	push ret, LCL, ARG, THIS, THAT
//	ARG = SP - nargs - 5
//	LCL = SP
//	goto f
//	(ret)
func (t *Translator) call(b []byte, x vm.Instr) []byte {
	ret := string(hfmt.Appendf(nil, "%s$ret.%d", t.fn, t.label()))

	b = hfmt.Appendf(b, "@%s\nD=A\n", ret)
	b = pushD(b)

	for _, r := range []string{"LCL", "ARG", "THIS", "THAT"} {
		b = hfmt.Appendf(b, "@%s\nD=M\n", r)
		b = pushD(b)
	}

	b = hfmt.Appendf(b, "@SP\nD=M\n@%d\nD=D-A\n@ARG\nM=D\n", x.N+frameSize)
	b = append(b, "@SP\nD=M\n@LCL\nM=D\n"...)
	b = hfmt.Appendf(b, "@%s\n0; JMP\n(%s)\n", x.Name, ret)

	return b
}

// ret restores the caller frame.
// Frame base and return address are saved to R13 and R14 before anything is overwritten:
// with no arguments the return value lands exactly where the return address is stored.
func ret(b []byte) []byte {
	b = append(b, "@LCL\nD=M\n@R13\nM=D\n"...)
	b = hfmt.Appendf(b, "@%d\nA=D-A\nD=M\n@R14\nM=D\n", frameSize)

	b = append(b, "@SP\nAM=M-1\nD=M\n@ARG\nA=M\nM=D\n"...)
	b = append(b, "@ARG\nD=M+1\n@SP\nM=D\n"...)

	for _, r := range []string{"THAT", "THIS", "ARG", "LCL"} {
		b = hfmt.Appendf(b, "@R13\nAM=M-1\nD=M\n@%s\nM=D\n", r)
	}

	return append(b, "@R14\nA=M\n0; JMP\n"...)
}
