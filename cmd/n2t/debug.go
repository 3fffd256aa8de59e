package main

import (
	"fmt"
	"io"
	"os"

	"github.com/peterh/liner"
	"nikand.dev/go/cli"
	"tlog.app/go/errors"

	"github.com/hackstack/n2t/compiler"
	"github.com/hackstack/n2t/compiler/asm"
	"github.com/hackstack/n2t/compiler/emu"
)

func debugAct(c *cli.Command) (err error) {
	ctx := context0()

	a, dir, err := arg(c, compiler.AsmExt)
	if err != nil {
		return err
	}

	if dir {
		return errors.New("debug: %v is a directory", a)
	}

	text, err := os.ReadFile(a)
	if err != nil {
		return errors.Wrap(err, "read file")
	}

	ls, err := asm.Parse(text)
	if err != nil {
		return errors.Wrap(err, "parse %v", a)
	}

	m := emu.New()

	err = m.Load(ls)
	if err != nil {
		return errors.Wrap(err, "load %v", a)
	}

	d := emu.NewDebugger(m, os.Stdout)
	d.MaxCycles = c.Int("cycles")

	ln := liner.NewLiner()
	defer ln.Close()

	ln.SetCtrlCAborts(true)

	fmt.Printf("%s: %d lines loaded, type help for commands\n", a, len(ls))

	for {
		line, err := ln.Prompt("(n2t) ")
		if errors.Is(err, io.EOF) || errors.Is(err, liner.ErrPromptAborted) {
			return nil
		}
		if err != nil {
			return errors.Wrap(err, "prompt")
		}

		ln.AppendHistory(line)

		quit, err := d.Exec(ctx, line)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}

		if quit {
			return nil
		}
	}
}
