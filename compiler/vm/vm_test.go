package vm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	text := []byte(`// comment line
function Main.main 2
	push constant 7   // trailing
	pop local 1

	label LOOP
	if-goto END
	goto LOOP
	label END
	call Math.multiply 2
	add
	not
	return
`)

	code, err := Parse(context.Background(), text)
	require.NoError(t, err)

	assert.Equal(t, []Instr{
		{Op: Function, Name: "Main.main", N: 2},
		{Op: Push, Seg: Constant, N: 7},
		{Op: Pop, Seg: Local, N: 1},
		{Op: Label, Name: "LOOP"},
		{Op: IfGoto, Name: "END"},
		{Op: Goto, Name: "LOOP"},
		{Op: Label, Name: "END"},
		{Op: Call, Name: "Math.multiply", N: 2},
		{Op: Add},
		{Op: Not},
		{Op: Return},
	}, code)
}

func TestInstrString(t *testing.T) {
	for _, tc := range []struct {
		x Instr
		s string
	}{
		{Instr{Op: Push, Seg: Constant, N: 7}, "push constant 7"},
		{Instr{Op: Pop, Seg: That, N: 0}, "pop that 0"},
		{Instr{Op: IfGoto, Name: "L"}, "if-goto L"},
		{Instr{Op: Call, Name: "Foo.bar", N: 2}, "call Foo.bar 2"},
		{Instr{Op: Function, Name: "Foo.bar", N: 0}, "function Foo.bar 0"},
		{Instr{Op: Add}, "add"},
		{Instr{Op: Return}, "return"},
	} {
		assert.Equal(t, tc.s, tc.x.String())

		x, err := ParseLine(tc.s)
		if assert.NoError(t, err, tc.s) {
			assert.Equal(t, tc.x, x)
		}
	}
}

func TestParseErrors(t *testing.T) {
	for _, l := range []string{
		"jump L",
		"push constant",
		"push local 1 2",
		"push heap 1",
		"pop local -1",
		"push constant 40000",
		"add 1",
		"call Foo.bar",
		"label",
	} {
		_, err := ParseLine(l)
		assert.True(t, errors.Is(err, ErrTranslation), "%q: %v", l, err)
	}

	_, err := Parse(context.Background(), []byte("push constant 1\n\nbogus\n"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTranslation))
	assert.Contains(t, err.Error(), "line 3")
}

func TestOpNames(t *testing.T) {
	for op := Push; op <= Not; op++ {
		p, ok := ParseOp(op.String())
		assert.True(t, ok, "%v", op)
		assert.Equal(t, op, p)
	}

	for s := Constant; s <= Temp; s++ {
		p, ok := ParseSegment(s.String())
		assert.True(t, ok, "%v", s)
		assert.Equal(t, s, p)
	}

	assert.Equal(t, "Op(100)", Op(100).String())
	assert.True(t, Eq.IsArith())
	assert.False(t, Call.IsArith())
}

func TestTlogAppend(t *testing.T) {
	b := Instr{Op: Call, Name: "Foo.bar", N: 2}.TlogAppend(nil)

	assert.Contains(t, string(b), "call Foo.bar 2")
}
