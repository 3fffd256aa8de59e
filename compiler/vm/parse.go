package vm

import (
	"bytes"
	"context"
	"strconv"
	"strings"

	"tlog.app/go/errors"
	"tlog.app/go/tlog"
)

// Parse reads VM text, one instruction per line.
// Everything after // is ignored, blank lines are skipped.
func Parse(ctx context.Context, text []byte) (code []Instr, err error) {
	tr := tlog.SpanFromContext(ctx)

	for line := 1; len(text) != 0; line++ {
		var l []byte

		l, text, _ = bytes.Cut(text, []byte{'\n'})

		if p := bytes.Index(l, []byte("//")); p >= 0 {
			l = l[:p]
		}

		l = bytes.TrimSpace(l)
		if len(l) == 0 {
			continue
		}

		x, err := ParseLine(string(l))
		if err != nil {
			return nil, errors.Wrap(err, "line %d", line)
		}

		code = append(code, x)
	}

	if tr.If("dump_vm") {
		for i, x := range code {
			tr.Printw("vm instr", "i", i, "instr", x)
		}
	}

	return code, nil
}

// ParseLine parses a single clean instruction.
func ParseLine(l string) (x Instr, err error) {
	f := strings.Fields(l)
	if len(f) == 0 {
		return x, errors.Wrap(ErrTranslation, "empty instruction")
	}

	op, ok := ParseOp(f[0])
	if !ok {
		return x, errors.Wrap(ErrTranslation, "unknown opcode %q", f[0])
	}

	if len(f)-1 != op.Arity() {
		return x, errors.Wrap(ErrTranslation, "%v: want %d operands, got %d", op, op.Arity(), len(f)-1)
	}

	x.Op = op

	switch op {
	case Push, Pop:
		x.Seg, ok = ParseSegment(f[1])
		if !ok {
			return x, errors.Wrap(ErrTranslation, "%v: unknown segment %q", op, f[1])
		}

		x.N, err = parseIndex(f[2])
	case Call, Function:
		x.Name = f[1]
		x.N, err = parseIndex(f[2])
	case Label, Goto, IfGoto:
		x.Name = f[1]
	}

	if err != nil {
		return x, errors.Wrap(err, "%v", op)
	}

	return x, nil
}

func parseIndex(s string) (int, error) {
	v, err := strconv.ParseUint(s, 10, 15)
	if err != nil {
		return 0, errors.Wrap(ErrTranslation, "bad index %q", s)
	}

	return int(v), nil
}
