package back

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackstack/n2t/compiler/asm"
	"github.com/hackstack/n2t/compiler/emu"
	"github.com/hackstack/n2t/compiler/vm"
)

const sysInit = `
function Sys.init 0
	push constant 3
	push constant 4
	call Main.add 2
	pop static 0
	call Main.seven 0
	pop static 1
	push constant 10
	call Main.sum 1
	pop static 2
	call Main.locals 0
	pop static 3
label HALT
	goto HALT
`

const mainVM = `
function Main.add 1
	push argument 0
	push argument 1
	add
	pop local 0
	push constant 1234
	pop pointer 0
	push constant 2345
	pop pointer 1
	push local 0
	return

function Main.seven 0
	push constant 7
	return

function Main.sum 0
	push argument 0
	push constant 0
	eq
	if-goto BASE
	push argument 0
	push argument 0
	push constant 1
	sub
	call Main.sum 1
	add
	return
label BASE
	push constant 0
	return

function Main.locals 3
	push local 0
	push local 1
	add
	push local 2
	or
	return
`

func translate(t testing.TB, tr *Translator, b []byte, u Unit, text string) []byte {
	t.Helper()

	code, err := vm.Parse(context.Background(), []byte(text))
	require.NoError(t, err)

	b, err = tr.TranslateUnit(context.Background(), b, u, code)
	require.NoError(t, err)

	return b
}

func load(t testing.TB, text []byte) *emu.Machine {
	t.Helper()

	ls, err := asm.Parse(text)
	require.NoError(t, err)

	m := emu.New()

	err = m.Load(ls)
	require.NoError(t, err)

	return m
}

func run(t testing.TB, m *emu.Machine) {
	t.Helper()

	err := m.Run(context.Background(), 1_000_000)
	require.NoError(t, err)
}

func TestSmoke(t *testing.T) {
	obj := translate(t, New(), nil, "Test", "push constant 2\npush constant 3\nadd\n")

	m := load(t, obj)
	m.RAM[0] = StackBase

	run(t, m)

	assert.Equal(t, StackBase+1, m.SP())
	assert.Equal(t, int16(5), m.RAM[StackBase])

	t.Logf("result:\n%s", obj)
}

func TestArith(t *testing.T) {
	for _, tc := range []struct {
		vm  string
		res int16
	}{
		{"push constant 7\npush constant 10\nsub", -3},
		{"push constant 7\nneg", -7},
		{"push constant 12\npush constant 10\nand", 8},
		{"push constant 12\npush constant 10\nor", 14},
		{"push constant 0\nnot", -1},
		{"push constant 3\npush constant 3\neq", -1},
		{"push constant 3\npush constant 4\neq", 0},
		{"push constant 4\npush constant 3\ngt", -1},
		{"push constant 3\npush constant 4\ngt", 0},
		{"push constant 3\npush constant 3\ngt", 0},
		{"push constant 3\npush constant 4\nlt", -1},
		{"push constant 4\npush constant 3\nlt", 0},
		{"push constant 0\npush constant 5\nsub\npush constant 2\nlt", -1},
		{"push constant 1\npush constant 1\neq\npush constant 2\npush constant 2\neq\nand", -1},
	} {
		obj := translate(t, New(), nil, "Test", tc.vm)

		m := load(t, obj)
		m.RAM[0] = StackBase

		run(t, m)

		assert.Equal(t, StackBase+1, m.SP(), "%v", tc.vm)
		assert.Equal(t, tc.res, m.Top(), "%v", tc.vm)
	}
}

func TestSegments(t *testing.T) {
	obj := translate(t, New(), nil, "Test", `
	push constant 11
	pop local 2
	push constant 12
	pop argument 1
	push constant 13
	pop this 3
	push constant 14
	pop that 4
	push constant 15
	pop temp 6
	push constant 16
	pop static 3
	push local 2
	push argument 1
	add
	push this 3
	add
	push that 4
	add
	push temp 6
	add
	push static 3
	add
	push constant 5000
	pop pointer 1
	push pointer 1
`)

	m := load(t, obj)
	m.RAM[0] = StackBase
	m.RAM[1] = 300
	m.RAM[2] = 400
	m.RAM[3] = 3000
	m.RAM[4] = 3010

	run(t, m)

	assert.Equal(t, int16(11), m.RAM[302])
	assert.Equal(t, int16(12), m.RAM[401])
	assert.Equal(t, int16(13), m.RAM[3003])
	assert.Equal(t, int16(14), m.RAM[3014])
	assert.Equal(t, int16(15), m.RAM[tempBase+6])

	a, ok := m.Symbol("Test.3")
	require.True(t, ok)
	assert.Equal(t, int16(16), m.RAM[a])

	assert.Equal(t, int16(5000), m.RAM[4])
	assert.Equal(t, StackBase+2, m.SP())
	assert.Equal(t, int16(11+12+13+14+15+16), m.RAM[StackBase])
	assert.Equal(t, int16(5000), m.Top())

	// base registers are untouched by pops
	assert.Equal(t, []int16{300, 400, 3000}, m.RAM[1:4])
}

func TestCallReturn(t *testing.T) {
	tr := New()

	obj := tr.Bootstrap(nil)
	obj = translate(t, tr, obj, "Sys", sysInit)
	obj = translate(t, tr, obj, "Main", mainVM)

	m := load(t, obj)
	m.RAM[3] = 3000
	m.RAM[4] = 4000

	for i := StackBase; i < StackBase+100; i++ {
		m.RAM[i] = 99
	}

	run(t, m)

	static := func(i string) int16 {
		a, ok := m.Symbol("Sys." + i)
		require.True(t, ok, i)

		return m.RAM[a]
	}

	assert.Equal(t, int16(7), static("0"))
	assert.Equal(t, int16(7), static("1"))
	assert.Equal(t, int16(55), static("2"))
	assert.Equal(t, int16(0), static("3"))

	// Sys.init frame: 5 saved words above the stack base, no locals
	assert.Equal(t, StackBase+frameSize, m.SP())
	assert.Equal(t, int16(StackBase+frameSize), m.RAM[1], "LCL")
	assert.Equal(t, int16(StackBase), m.RAM[2], "ARG")
	assert.Equal(t, int16(3000), m.RAM[3], "THIS")
	assert.Equal(t, int16(4000), m.RAM[4], "THAT")
}

func TestLabelScope(t *testing.T) {
	obj := translate(t, New(), nil, "Main", `
function Main.f 0
label LOOP
	goto LOOP
function Main.g 0
label LOOP
	if-goto LOOP
`)

	assert.Contains(t, string(obj), "(Main.f$LOOP)\n")
	assert.Contains(t, string(obj), "(Main.g$LOOP)\n")
	assert.Contains(t, string(obj), "@Main.g$LOOP\nD; JNE\n")

	load(t, obj)
}

func TestStaticPerUnit(t *testing.T) {
	tr := New()

	obj := translate(t, tr, nil, "A", "push constant 1\npop static 0")
	obj = translate(t, tr, obj, "B", "push constant 2\npop static 0")

	m := load(t, obj)
	m.RAM[0] = StackBase

	run(t, m)

	a, ok := m.Symbol("A.0")
	require.True(t, ok)

	b, ok := m.Symbol("B.0")
	require.True(t, ok)

	assert.NotEqual(t, a, b)
	assert.Equal(t, int16(1), m.RAM[a])
	assert.Equal(t, int16(2), m.RAM[b])
}

func TestUniqueReturnLabels(t *testing.T) {
	tr := New()

	obj := translate(t, tr, nil, "Main", `
function Main.main 0
	call Main.f 0
	call Main.f 0
	push constant 1
	push constant 1
	eq
	push constant 1
	push constant 1
	eq
`)

	ls, err := asm.Parse(obj)
	require.NoError(t, err)

	seen := map[string]bool{}

	for _, l := range ls {
		x, ok := l.Instr.(asm.Label)
		if !ok {
			continue
		}

		assert.False(t, seen[x.Name], "duplicate %v", x.Name)
		seen[x.Name] = true
	}

	assert.True(t, seen["Main.main$ret.1"])
	assert.True(t, seen["Main.main$ret.2"])
	assert.True(t, seen["EQ_FALSE.3"])
	assert.True(t, seen["EQ_END.4"])
}

func TestBootstrap(t *testing.T) {
	obj := New().Bootstrap(nil)

	head := "// bootstrap\n@256\nD=A\n@SP\nM=D\n"

	require.Greater(t, len(obj), len(head))
	assert.Equal(t, head, string(obj[:len(head)]))
	assert.Contains(t, string(obj), "@Sys.init\n0; JMP\n(bootstrap$ret.1)\n")
}

func TestErrors(t *testing.T) {
	for _, x := range []vm.Instr{
		{Op: vm.Pop, Seg: vm.Constant},
		{Op: vm.Push, Seg: vm.Pointer, N: 2},
		{Op: vm.Pop, Seg: vm.Temp, N: 8},
		{Op: vm.Push, Seg: vm.Constant, N: 40000},
		{Op: vm.Push},
		{Op: vm.Op(99)},
	} {
		_, err := New().Instr(nil, "Test", x)
		assert.True(t, errors.Is(err, ErrTranslation), "%v: %v", x, err)
	}
}
