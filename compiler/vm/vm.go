package vm

import (
	"github.com/nikandfor/hacked/hfmt"
	"tlog.app/go/errors"
	"tlog.app/go/tlog/tlwire"
)

type (
	Op      int
	Segment int

	// Instr is one stack machine instruction.
	// Seg and N are used by push and pop,
	// Name and N by call and function, Name alone by label, goto and if-goto.
	Instr struct {
		Op   Op
		Seg  Segment
		Name string
		N    int
	}
)

const (
	_ Op = iota

	Push
	Pop
	Label
	Goto
	IfGoto
	Call
	Function
	Return

	Add
	Sub
	Neg
	Eq
	Gt
	Lt
	And
	Or
	Not
)

const (
	_ Segment = iota

	Constant
	Local
	Argument
	Static
	This
	That
	Pointer
	Temp
)

var ErrTranslation = errors.New("translation error")

var opNames = []string{
	Push:     "push",
	Pop:      "pop",
	Label:    "label",
	Goto:     "goto",
	IfGoto:   "if-goto",
	Call:     "call",
	Function: "function",
	Return:   "return",
	Add:      "add",
	Sub:      "sub",
	Neg:      "neg",
	Eq:       "eq",
	Gt:       "gt",
	Lt:       "lt",
	And:      "and",
	Or:       "or",
	Not:      "not",
}

var segNames = []string{
	Constant: "constant",
	Local:    "local",
	Argument: "argument",
	Static:   "static",
	This:     "this",
	That:     "that",
	Pointer:  "pointer",
	Temp:     "temp",
}

// Arity is the number of operands the op takes in text form.
func (op Op) Arity() int {
	switch op {
	case Push, Pop, Call, Function:
		return 2
	case Label, Goto, IfGoto:
		return 1
	default:
		return 0
	}
}

// IsArith reports whether op is one of the nine operand-less stack operations.
func (op Op) IsArith() bool {
	return op >= Add && op <= Not
}

func (op Op) String() string {
	if op <= 0 || int(op) >= len(opNames) {
		return string(hfmt.Appendf(nil, "Op(%d)", int(op)))
	}

	return opNames[op]
}

func (s Segment) String() string {
	if s <= 0 || int(s) >= len(segNames) {
		return string(hfmt.Appendf(nil, "Segment(%d)", int(s)))
	}

	return segNames[s]
}

func ParseOp(s string) (Op, bool) {
	for op, n := range opNames {
		if n != "" && n == s {
			return Op(op), true
		}
	}

	return 0, false
}

func ParseSegment(s string) (Segment, bool) {
	for seg, n := range segNames {
		if n != "" && n == s {
			return Segment(seg), true
		}
	}

	return 0, false
}

func (x Instr) Append(b []byte) []byte {
	switch x.Op.Arity() {
	case 2:
		if x.Op == Push || x.Op == Pop {
			return hfmt.Appendf(b, "%v %v %d", x.Op, x.Seg, x.N)
		}

		return hfmt.Appendf(b, "%v %s %d", x.Op, x.Name, x.N)
	case 1:
		return hfmt.Appendf(b, "%v %s", x.Op, x.Name)
	default:
		return append(b, x.Op.String()...)
	}
}

func (x Instr) String() string {
	return string(x.Append(nil))
}

// TlogAppend logs the instruction in its text form.
func (x Instr) TlogAppend(b []byte) []byte {
	var e tlwire.LowEncoder

	return e.AppendString(b, x.String())
}
