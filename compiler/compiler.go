package compiler

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/hackstack/n2t/compiler/asm"
	"github.com/hackstack/n2t/compiler/back"
	"github.com/hackstack/n2t/compiler/emu"
	"github.com/hackstack/n2t/compiler/format"
	"github.com/hackstack/n2t/compiler/front"
	"github.com/hackstack/n2t/compiler/lex"
	"github.com/hackstack/n2t/compiler/vm"
)

type (
	// Context is the state of one run.
	// Label counters live here, so files compiled by the same Context
	// never produce colliding labels, while separate runs are independent.
	Context struct {
		front *front.Compiler
		back  *back.Translator
	}

	// Output is a generated file.
	Output struct {
		Name string
		Data []byte
	}
)

const (
	JackExt = ".jack"
	VMExt   = ".vm"
	AsmExt  = ".asm"
)

func New() *Context {
	return &Context{
		front: front.New(),
		back:  back.New(),
	}
}

func (c *Context) CompileFile(ctx context.Context, name string) (obj []byte, err error) {
	text, err := os.ReadFile(name)
	if err != nil {
		return nil, errors.Wrap(err, "read file")
	}

	tlog.SpanFromContext(ctx).Printw("read file", "size", len(text), "name", name)

	return c.Compile(ctx, name, text)
}

// Compile translates one class into VM text.
func (c *Context) Compile(ctx context.Context, name string, text []byte) (obj []byte, err error) {
	tr, ctx := tlog.SpawnFromContextAndWrap(ctx, "compile", "name", name)
	defer tr.Finish("err", &err)

	toks, err := lex.Lex(ctx, text)
	if err != nil {
		return nil, errors.Wrap(err, "lex")
	}

	code, err := c.front.CompileClass(ctx, lex.NewCursor(toks))
	if err != nil {
		return nil, errors.Wrap(err, "compile")
	}

	return format.VM(nil, code), nil
}

// CompileDir compiles every source file under dir.
// Each X.jack produces X.vm next to it.
func (c *Context) CompileDir(ctx context.Context, dir string) (out []Output, err error) {
	files, err := Collect(dir, JackExt)
	if err != nil {
		return nil, err
	}

	if len(files) == 0 {
		return nil, errors.New("no %v files in %v", JackExt, dir)
	}

	for _, f := range files {
		obj, err := c.CompileFile(ctx, f)
		if err != nil {
			return nil, errors.Wrap(err, "%v", f)
		}

		out = append(out, Output{Name: ReplaceExt(f, VMExt), Data: obj})
	}

	return out, nil
}

func (c *Context) TranslateFile(ctx context.Context, b []byte, name string) (_ []byte, err error) {
	text, err := os.ReadFile(name)
	if err != nil {
		return nil, errors.Wrap(err, "read file")
	}

	tlog.SpanFromContext(ctx).Printw("read file", "size", len(text), "name", name)

	return c.Translate(ctx, b, name, text)
}

// Translate appends assembly for VM text to b.
// The unit name, which scopes static variables, is taken from name.
func (c *Context) Translate(ctx context.Context, b []byte, name string, text []byte) (_ []byte, err error) {
	code, err := vm.Parse(ctx, text)
	if err != nil {
		return nil, errors.Wrap(err, "parse vm")
	}

	b, err = c.back.TranslateUnit(ctx, b, back.UnitFromPath(name), code)
	if err != nil {
		return nil, errors.Wrap(err, "translate")
	}

	return b, nil
}

// Bootstrap appends the program entry code.
func (c *Context) Bootstrap(b []byte) []byte {
	return c.back.Bootstrap(b)
}

// TranslateDir translates every VM file under dir into a single program
// named after the directory.
func (c *Context) TranslateDir(ctx context.Context, dir string, bootstrap bool) (out Output, err error) {
	files, err := Collect(dir, VMExt)
	if err != nil {
		return out, err
	}

	if len(files) == 0 {
		return out, errors.New("no %v files in %v", VMExt, dir)
	}

	// static segments are named after the unit, so units must be unique
	units := make(map[back.Unit]string, len(files))

	for _, f := range files {
		u := back.UnitFromPath(f)

		if prev, ok := units[u]; ok {
			return out, errors.New("unit %v defined twice: %v and %v", u, prev, f)
		}

		units[u] = f
	}

	var b []byte

	if bootstrap {
		b = c.Bootstrap(b)
	}

	for _, f := range files {
		b, err = c.TranslateFile(ctx, b, f)
		if err != nil {
			return out, errors.Wrap(err, "%v", f)
		}
	}

	return Output{Name: DirOutput(dir, AsmExt), Data: b}, nil
}

// Run loads the assembly program into a fresh machine and runs it.
// The machine is returned even on error so its state can be inspected.
func Run(ctx context.Context, text []byte, cycles int) (m *emu.Machine, err error) {
	ls, err := asm.Parse(text)
	if err != nil {
		return nil, errors.Wrap(err, "parse asm")
	}

	m = emu.New()

	err = m.Load(ls)
	if err != nil {
		return nil, errors.Wrap(err, "load")
	}

	err = m.Run(ctx, cycles)
	if err != nil {
		return m, errors.Wrap(err, "run")
	}

	return m, nil
}

// Collect returns files with the extension under root in lexical order.
// root may be a single file.
func Collect(root, ext string) (files []string, err error) {
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if !d.IsDir() && filepath.Ext(path) == ext {
			files = append(files, path)
		}

		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "walk %v", root)
	}

	sort.Strings(files)

	return files, nil
}

// ReplaceExt swaps the file extension: dir/X.jack to dir/X.vm.
func ReplaceExt(name, ext string) string {
	return strings.TrimSuffix(name, filepath.Ext(name)) + ext
}

// DirOutput names the output for a whole directory: dir/Base.asm.
func DirOutput(dir, ext string) string {
	dir = filepath.Clean(dir)

	return filepath.Join(dir, filepath.Base(dir)+ext)
}
