package compiler

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackstack/n2t/compiler/emu"
	"github.com/hackstack/n2t/compiler/front"
	"github.com/hackstack/n2t/compiler/lex"
	"github.com/hackstack/n2t/compiler/vm"
)

const mainJack = `// Entry point.
class Main {
	/** Returns 47. */
	function int main() {
		var int i, s;
		var Point p;
		var Array a;

		let i = 0;

		while (i < 20) {
			let i = i + 1;

			if (i = 11) { break; }
			if ((i & 1) = 1) { continue; }

			let s = s + i;
		}

		let p = Point.new(3, 4);
		let a = Memory.alloc(3);
		let a[0] = 5;
		let a[2] = a[0] * 2;

		return s + p.sum() + a[2];
	}
}
`

const pointJack = `class Point {
	field int x, y;

	constructor Point new(int ax, int ay) {
		let x = ax;
		let y = ay;
	}

	method int sum() { return x + y; }
}
`

// Minimal runtime: just enough of the library for the programs above.
var runtime = map[string]string{
	"Sys.vm": `
function Sys.init 0
	call Main.main 0
	pop static 0
label HALT
	goto HALT
`,
	"Memory.vm": `
function Memory.alloc 0
	push static 0
	push constant 0
	eq
	not
	if-goto READY
	push constant 2048
	pop static 0
label READY
	push static 0
	push static 0
	push argument 0
	add
	pop static 0
	return
`,
	filepath.Join("lib", "Math.vm"): `
function Math.multiply 1
label LOOP
	push argument 1
	push constant 0
	eq
	if-goto END
	push local 0
	push argument 0
	add
	pop local 0
	push argument 1
	push constant 1
	sub
	pop argument 1
	goto LOOP
label END
	push local 0
	return
`,
}

func writeFiles(t testing.TB, dir string, files map[string]string) {
	t.Helper()

	for name, text := range files {
		p := filepath.Join(dir, name)

		err := os.MkdirAll(filepath.Dir(p), 0o755)
		require.NoError(t, err)

		err = os.WriteFile(p, []byte(text), 0o644)
		require.NoError(t, err)
	}
}

func TestBuildAndRun(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "Prog")

	writeFiles(t, dir, runtime)
	writeFiles(t, dir, map[string]string{
		"Main.jack":  mainJack,
		"Point.jack": pointJack,
	})

	c := New()

	outs, err := c.CompileDir(ctx, dir)
	require.NoError(t, err)
	require.Len(t, outs, 2)

	assert.Equal(t, filepath.Join(dir, "Main.vm"), outs[0].Name)
	assert.Equal(t, filepath.Join(dir, "Point.vm"), outs[1].Name)

	for _, o := range outs {
		err = os.WriteFile(o.Name, o.Data, 0o644)
		require.NoError(t, err)
	}

	out, err := c.TranslateDir(ctx, dir, true)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "Prog.asm"), out.Name)

	m, err := Run(ctx, out.Data, 1_000_000)
	require.NoError(t, err)

	assert.Equal(t, int16(47), static(t, m, "Sys.0"))
	assert.Equal(t, int16(2048+2+3), static(t, m, "Memory.0"))
}

func static(t testing.TB, m *emu.Machine, name string) int16 {
	t.Helper()

	a, ok := m.Symbol(name)
	require.True(t, ok, name)

	return m.RAM[a]
}

func TestCompileDeterministic(t *testing.T) {
	ctx := context.Background()

	a, err := New().Compile(ctx, "Main.jack", []byte(mainJack))
	require.NoError(t, err)

	b, err := New().Compile(ctx, "Main.jack", []byte(mainJack))
	require.NoError(t, err)

	assert.Equal(t, string(a), string(b))

	// one run keeps counting, so the second class gets new labels
	c := New()

	_, err = c.Compile(ctx, "Main.jack", []byte(mainJack))
	require.NoError(t, err)

	d, err := c.Compile(ctx, "Main.jack", []byte(mainJack))
	require.NoError(t, err)

	assert.NotEqual(t, string(a), string(d))

	code, err := vm.Parse(ctx, a)
	require.NoError(t, err)
	assert.Equal(t, vm.Instr{Op: vm.Function, Name: "Main.main", N: 4}, code[0])
}

func TestErrorCategories(t *testing.T) {
	ctx := context.Background()

	_, err := New().Compile(ctx, "Bad.jack", []byte("class Bad { function void f() { let x = 1 $ 2; } }"))
	assert.True(t, errors.Is(err, lex.ErrLexical), "%v", err)

	_, err = New().Compile(ctx, "Bad.jack", []byte("class Bad { function void f() { let x = 1; } }"))
	assert.True(t, errors.Is(err, front.ErrSemantic), "%v", err)

	_, err = New().Compile(ctx, "Bad.jack", []byte("class Bad { function void f() { return 1 } }"))
	assert.True(t, errors.Is(err, front.ErrSyntax), "%v", err)

	_, err = New().Translate(ctx, nil, "Bad.vm", []byte("push constant 1\nfrobnicate\n"))
	assert.True(t, errors.Is(err, vm.ErrTranslation), "%v", err)

	_, err = New().Translate(ctx, nil, "Bad.vm", []byte("pop constant 1\n"))
	assert.True(t, errors.Is(err, vm.ErrTranslation), "%v", err)

	_, err = Run(ctx, []byte("(L)\n@L\nD;JMP\n"), 1000)
	assert.True(t, errors.Is(err, emu.ErrCycleLimit), "%v", err)
}

func TestCollect(t *testing.T) {
	dir := t.TempDir()

	writeFiles(t, dir, map[string]string{
		"b.vm":        "",
		"a.vm":        "",
		"x.jack":      "",
		"sub/c.vm":    "",
		"sub/d.txt":   "",
		"sub/e/f.vm":  "",
		"z.vm.backup": "",
	})

	files, err := Collect(dir, VMExt)
	require.NoError(t, err)

	assert.Equal(t, []string{
		filepath.Join(dir, "a.vm"),
		filepath.Join(dir, "b.vm"),
		filepath.Join(dir, "sub", "c.vm"),
		filepath.Join(dir, "sub", "e", "f.vm"),
	}, files)

	files, err = Collect(filepath.Join(dir, "x.jack"), JackExt)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "x.jack")}, files)

	assert.Equal(t, "dir/X.vm", ReplaceExt("dir/X.jack", VMExt))
	assert.Equal(t, filepath.Join("a", "Prog", "Prog.asm"), DirOutput("a/Prog/", AsmExt))

	_, err = New().CompileDir(context.Background(), filepath.Join(dir, "sub"))
	assert.Error(t, err)
}

func TestTranslateDirDuplicateUnit(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "Prog")

	writeFiles(t, dir, map[string]string{
		"Main.vm":      "function Main.main 0\n\tpush constant 0\n\treturn\n",
		"a/Util.vm":    "function Util.f 0\n\tpush constant 1\n\treturn\n",
		"b/Util.vm":    "function Util.g 0\n\tpush constant 2\n\treturn\n",
		"b/c/Other.vm": "function Other.h 0\n\tpush constant 3\n\treturn\n",
	})

	_, err := New().TranslateDir(context.Background(), dir, true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Util")

	err = os.Remove(filepath.Join(dir, "b", "Util.vm"))
	require.NoError(t, err)

	out, err := New().TranslateDir(context.Background(), dir, true)
	require.NoError(t, err)
	assert.Contains(t, string(out.Data), "(Util.f)")
	assert.Contains(t, string(out.Data), "(Other.h)")
}
