package emu

import (
	"context"
	"io"
	"strconv"
	"strings"

	"github.com/nikandfor/hacked/hfmt"
	"tlog.app/go/errors"
)

type (
	// Debugger drives a Machine by text commands.
	Debugger struct {
		m *Machine
		w io.Writer

		breaks map[int]struct{}

		// MaxCycles bounds a single cont command.
		MaxCycles int
	}
)

var ErrUnknownCommand = errors.New("unknown command")

const DebugHelp = `commands:
	s, step [n]          execute n instructions
	c, cont              run to a breakpoint or halt
	b, break <addr|sym>  toggle breakpoint
	r, regs              show registers
	m, ram <addr|sym> [n] show n words of memory
	stack                show the VM stack
	q, quit
`

func NewDebugger(m *Machine, w io.Writer) *Debugger {
	return &Debugger{
		m:         m,
		w:         w,
		breaks:    map[int]struct{}{},
		MaxCycles: 1000000,
	}
}

// Exec runs a single command line.
func (d *Debugger) Exec(ctx context.Context, line string) (quit bool, err error) {
	f := strings.Fields(line)
	if len(f) == 0 {
		return false, nil
	}

	args := f[1:]

	switch f[0] {
	case "q", "quit":
		return true, nil
	case "h", "help":
		d.printf("%s", DebugHelp)
	case "s", "step":
		n, err := d.count(args, 1)
		if err != nil {
			return false, err
		}

		for i := 0; i < n && !d.m.Halted(); i++ {
			err = d.m.Step()
			if err != nil {
				return false, err
			}
		}

		d.where()
	case "c", "cont":
		err = d.m.RunUntil(ctx, d.MaxCycles, func(pc int) bool {
			_, ok := d.breaks[pc]
			return ok
		})
		if err != nil {
			return false, err
		}

		d.where()
	case "b", "break":
		if len(args) != 1 {
			return false, errors.New("break: address expected")
		}

		a, err := d.addr(args[0])
		if err != nil {
			return false, err
		}

		if _, ok := d.breaks[a]; ok {
			delete(d.breaks, a)
			d.printf("breakpoint %d removed\n", a)
		} else {
			d.breaks[a] = struct{}{}
			d.printf("breakpoint %d set\n", a)
		}
	case "r", "regs":
		d.printf("pc %d  a %d  d %d  sp %d  cycles %d\n", d.m.PC, d.m.A, d.m.D, d.m.SP(), d.m.Cycles)
	case "m", "ram":
		if len(args) == 0 || len(args) > 2 {
			return false, errors.New("ram: address expected")
		}

		a, err := d.addr(args[0])
		if err != nil {
			return false, err
		}

		n, err := d.count(args[1:], 1)
		if err != nil {
			return false, err
		}

		for i := a; i < a+n && i < RAMSize; i++ {
			d.printf("%d: %d\n", i, d.m.RAM[i])
		}
	case "stack":
		for i := 256; i < d.m.SP() && i < RAMSize; i++ {
			d.printf("%d: %d\n", i, d.m.RAM[i])
		}
	default:
		return false, errors.Wrap(ErrUnknownCommand, "%q", f[0])
	}

	return false, nil
}

func (d *Debugger) where() {
	if s, ok := d.m.Instr(d.m.PC); ok && !d.m.Halted() {
		d.printf("pc %d: %s\n", d.m.PC, s)
		return
	}

	d.printf("halted at pc %d after %d cycles\n", d.m.PC, d.m.Cycles)
}

func (d *Debugger) count(args []string, def int) (int, error) {
	if len(args) == 0 {
		return def, nil
	}

	n, err := strconv.Atoi(args[0])
	if err != nil || n < 0 {
		return 0, errors.New("bad count %q", args[0])
	}

	return n, nil
}

func (d *Debugger) addr(s string) (int, error) {
	if a, ok := d.m.Symbol(s); ok {
		return a, nil
	}

	a, err := strconv.Atoi(s)
	if err != nil || a < 0 || a >= RAMSize {
		return 0, errors.New("bad address %q", s)
	}

	return a, nil
}

func (d *Debugger) printf(f string, args ...any) {
	_, _ = d.w.Write(hfmt.Appendf(nil, f, args...))
}
