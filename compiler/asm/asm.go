package asm

import (
	"bytes"
	"strconv"
	"strings"

	"tlog.app/go/errors"
)

type (
	// Instr is one of A, C or Label.
	Instr any

	// A loads a constant or a symbol address into A.
	A struct {
		Value  int
		Symbol string
	}

	// C is dest=comp;jump with dest and jump optional.
	C struct {
		Dest string
		Comp string
		Jump string
	}

	// Label declares a symbol for the next instruction address.
	Label struct {
		Name string
	}

	Line struct {
		Instr Instr
		Num   int // source line
	}
)

var ErrSyntax = errors.New("assembly syntax error")

var jumps = map[string]struct{}{
	"JGT": {}, "JEQ": {}, "JGE": {}, "JLT": {}, "JNE": {}, "JLE": {}, "JMP": {},
}

// Parse reads assembly text skipping comments and blank lines.
// Whitespace inside an instruction is ignored.
func Parse(text []byte) (ls []Line, err error) {
	for n := 1; len(text) != 0; n++ {
		var l []byte

		l, text, _ = bytes.Cut(text, []byte{'\n'})

		if p := bytes.Index(l, []byte("//")); p >= 0 {
			l = l[:p]
		}

		s := strings.Join(strings.Fields(string(l)), "")
		if s == "" {
			continue
		}

		x, err := ParseInstr(s)
		if err != nil {
			return nil, errors.Wrap(err, "line %d", n)
		}

		ls = append(ls, Line{Instr: x, Num: n})
	}

	return ls, nil
}

func ParseInstr(s string) (Instr, error) {
	switch s[0] {
	case '@':
		return parseA(s[1:])
	case '(':
		if len(s) < 3 || s[len(s)-1] != ')' || !isSymbol(s[1:len(s)-1]) {
			return nil, errors.Wrap(ErrSyntax, "bad label %q", s)
		}

		return Label{Name: s[1 : len(s)-1]}, nil
	}

	var x C

	if d, rest, ok := strings.Cut(s, "="); ok {
		x.Dest = d
		s = rest

		if d == "" || strings.Trim(d, "AMD") != "" {
			return nil, errors.Wrap(ErrSyntax, "bad dest %q", d)
		}
	}

	if c, j, ok := strings.Cut(s, ";"); ok {
		s = c
		x.Jump = j

		if _, ok := jumps[j]; !ok {
			return nil, errors.Wrap(ErrSyntax, "bad jump %q", j)
		}
	}

	x.Comp = s

	if x.Comp == "" {
		return nil, errors.Wrap(ErrSyntax, "empty comp")
	}

	return x, nil
}

func parseA(s string) (Instr, error) {
	if s == "" {
		return nil, errors.Wrap(ErrSyntax, "empty address")
	}

	if s[0] >= '0' && s[0] <= '9' {
		v, err := strconv.ParseUint(s, 10, 15)
		if err != nil {
			return nil, errors.Wrap(ErrSyntax, "bad constant %q", s)
		}

		return A{Value: int(v)}, nil
	}

	if !isSymbol(s) {
		return nil, errors.Wrap(ErrSyntax, "bad symbol %q", s)
	}

	return A{Symbol: s}, nil
}

func isSymbol(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]

		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
		case c == '_', c == '.', c == '$', c == ':':
		case c >= '0' && c <= '9' && i != 0:
		default:
			return false
		}
	}

	return s != ""
}
