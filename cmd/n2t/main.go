package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"nikand.dev/go/cli"
	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/hackstack/n2t/compiler"
)

func main() {
	compileCmd := &cli.Command{
		Name:        "compile",
		Description: "compile X.jack into X.vm, file or every file in a directory",
		Action:      compileAct,
		Args:        cli.Args{},
	}

	translateCmd := &cli.Command{
		Name:        "translate",
		Description: "translate X.vm into X.asm, or a directory into dir/dir.asm",
		Action:      translateAct,
		Args:        cli.Args{},
		Flags: []*cli.Flag{
			cli.NewFlag("bootstrap", "auto", "prepend bootstrap code: auto (directories only), yes, no"),
		},
	}

	buildCmd := &cli.Command{
		Name:        "build",
		Description: "compile a directory and translate the result into dir/dir.asm",
		Action:      buildAct,
		Args:        cli.Args{},
	}

	runCmd := &cli.Command{
		Name:        "run",
		Description: "execute an assembly program in the emulator",
		Action:      runAct,
		Args:        cli.Args{},
		Flags: []*cli.Flag{
			cli.NewFlag("cycles", 1000000, "max instructions to execute"),
		},
	}

	debugCmd := &cli.Command{
		Name:        "debug",
		Description: "step through an assembly program interactively",
		Action:      debugAct,
		Args:        cli.Args{},
		Flags: []*cli.Flag{
			cli.NewFlag("cycles", 1000000, "max instructions per cont command"),
		},
	}

	app := &cli.Command{
		Name:        "n2t",
		Description: "n2t compiles Jack classes to VM code and VM code to Hack assembly",
		Before:      before,
		Flags: []*cli.Flag{
			cli.NewFlag("verbose,v", "", "tlog verbosity topics (dump_vm, dump_tokens, dump_code, ...)"),
			cli.HelpFlag,
		},
		Commands: []*cli.Command{
			compileCmd,
			translateCmd,
			buildCmd,
			runCmd,
			debugCmd,
		},
	}

	cli.RunAndExit(app, os.Args, os.Environ())
}

func before(c *cli.Command) error {
	tlog.SetVerbosity(c.String("verbose"))

	return nil
}

func context0() context.Context {
	return tlog.ContextWithSpan(context.Background(), tlog.Root())
}

var ErrUsage = errors.New("usage")

// arg returns the single positional argument and whether it's a directory.
// A file argument must have the ext extension.
func arg(c *cli.Command, ext string) (string, bool, error) {
	if len(c.Args) != 1 {
		return "", false, errors.Wrap(ErrUsage, "n2t %v <file%v|dir>: exactly one argument expected, got %d", c.Name, ext, len(c.Args))
	}

	a := c.Args[0]

	dir, err := input(a, ext)
	if err != nil {
		return "", false, errors.Wrap(err, "n2t %v", c.Name)
	}

	return a, dir, nil
}

func input(a, ext string) (dir bool, err error) {
	inf, err := os.Stat(a)
	if err != nil {
		return false, errors.Wrap(err, "stat")
	}

	if inf.IsDir() {
		return true, nil
	}

	if filepath.Ext(a) != ext {
		return false, errors.Wrap(ErrUsage, "%v: expected a %v file or a directory", a, ext)
	}

	return false, nil
}

func compileAct(c *cli.Command) (err error) {
	ctx := context0()

	a, dir, err := arg(c, compiler.JackExt)
	if err != nil {
		return err
	}

	comp := compiler.New()

	if !dir {
		obj, err := comp.CompileFile(ctx, a)
		if err != nil {
			return errors.Wrap(err, "compile %v", a)
		}

		return write(compiler.Output{Name: compiler.ReplaceExt(a, compiler.VMExt), Data: obj})
	}

	outs, err := comp.CompileDir(ctx, a)
	if err != nil {
		return errors.Wrap(err, "compile %v", a)
	}

	for _, o := range outs {
		err = write(o)
		if err != nil {
			return err
		}
	}

	return nil
}

func translateAct(c *cli.Command) (err error) {
	ctx := context0()

	a, dir, err := arg(c, compiler.VMExt)
	if err != nil {
		return err
	}

	boot := dir

	switch v := c.String("bootstrap"); v {
	case "auto":
	case "yes":
		boot = true
	case "no":
		boot = false
	default:
		return errors.New("bootstrap: unexpected value %q", v)
	}

	comp := compiler.New()

	if dir {
		out, err := comp.TranslateDir(ctx, a, boot)
		if err != nil {
			return errors.Wrap(err, "translate %v", a)
		}

		return write(out)
	}

	var b []byte

	if boot {
		b = comp.Bootstrap(b)
	}

	b, err = comp.TranslateFile(ctx, b, a)
	if err != nil {
		return errors.Wrap(err, "translate %v", a)
	}

	return write(compiler.Output{Name: compiler.ReplaceExt(a, compiler.AsmExt), Data: b})
}

func buildAct(c *cli.Command) (err error) {
	ctx := context0()

	a, dir, err := arg(c, compiler.JackExt)
	if err != nil {
		return err
	}

	if !dir {
		return errors.New("build: %v is not a directory", a)
	}

	comp := compiler.New()

	outs, err := comp.CompileDir(ctx, a)
	if err != nil {
		return errors.Wrap(err, "compile %v", a)
	}

	for _, o := range outs {
		err = write(o)
		if err != nil {
			return err
		}
	}

	out, err := comp.TranslateDir(ctx, a, true)
	if err != nil {
		return errors.Wrap(err, "translate %v", a)
	}

	return write(out)
}

func runAct(c *cli.Command) (err error) {
	ctx := context0()

	a, dir, err := arg(c, compiler.AsmExt)
	if err != nil {
		return err
	}

	if dir {
		return errors.New("run: %v is a directory", a)
	}

	text, err := os.ReadFile(a)
	if err != nil {
		return errors.Wrap(err, "read file")
	}

	m, err := compiler.Run(ctx, text, c.Int("cycles"))
	if m != nil {
		fmt.Printf("cycles: %d\nsp: %d\ntop: %d\n", m.Cycles, m.SP(), m.Top())
	}
	if err != nil {
		return errors.Wrap(err, "run %v", a)
	}

	return nil
}

// write stores the output, leaving no partial file behind on failure.
func write(o compiler.Output) (err error) {
	err = os.WriteFile(o.Name, o.Data, 0o644)
	if err != nil {
		_ = os.Remove(o.Name)

		return errors.Wrap(err, "write %v", o.Name)
	}

	tlog.Printw("written", "name", o.Name, "size", len(o.Data))

	return nil
}
