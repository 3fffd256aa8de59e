package emu

import (
	"context"
	"strconv"
	"strings"

	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/hackstack/n2t/compiler/asm"
)

type (
	// Machine executes Hack assembly directly, without binary encoding.
	Machine struct {
		RAM [RAMSize]int16

		A, D int16
		PC   int

		Cycles int

		rom  []op
		syms map[string]int
	}

	op struct {
		isA  bool
		val  int16
		comp comp
		dest uint8
		jump uint8
		src  string
	}

	comp struct {
		f     func(x, d int16) int16
		usesM bool
		name  string
	}
)

const (
	RAMSize = 1 << 15

	// VarBase is the first address given to variables.
	VarBase = 16

	destM = 1 << iota
	destD
	destA
)

var (
	ErrCycleLimit = errors.New("cycle limit exceeded")
	ErrMemory     = errors.New("memory access out of range")
)

var predefined = map[string]int{
	"SP":     0,
	"LCL":    1,
	"ARG":    2,
	"THIS":   3,
	"THAT":   4,
	"SCREEN": 16384,
	"KBD":    24576,
}

var jumpBits = map[string]uint8{
	"":    0,
	"JGT": 1,
	"JEQ": 2,
	"JGE": 3,
	"JLT": 4,
	"JNE": 5,
	"JLE": 6,
	"JMP": 7,
}

var comps = map[string]comp{}

func init() {
	for i := 0; i < 16; i++ {
		predefined["R"+strconv.Itoa(i)] = i
	}

	// X stands for either A or M.
	fs := map[string]func(x, d int16) int16{
		"0":   func(x, d int16) int16 { return 0 },
		"1":   func(x, d int16) int16 { return 1 },
		"-1":  func(x, d int16) int16 { return -1 },
		"D":   func(x, d int16) int16 { return d },
		"X":   func(x, d int16) int16 { return x },
		"!D":  func(x, d int16) int16 { return ^d },
		"!X":  func(x, d int16) int16 { return ^x },
		"-D":  func(x, d int16) int16 { return -d },
		"-X":  func(x, d int16) int16 { return -x },
		"D+1": func(x, d int16) int16 { return d + 1 },
		"X+1": func(x, d int16) int16 { return x + 1 },
		"D-1": func(x, d int16) int16 { return d - 1 },
		"X-1": func(x, d int16) int16 { return x - 1 },
		"D+X": func(x, d int16) int16 { return d + x },
		"D-X": func(x, d int16) int16 { return d - x },
		"X-D": func(x, d int16) int16 { return x - d },
		"D&X": func(x, d int16) int16 { return d & x },
		"D|X": func(x, d int16) int16 { return d | x },

		// commuted spellings
		"X+D": func(x, d int16) int16 { return d + x },
		"X&D": func(x, d int16) int16 { return d & x },
		"X|D": func(x, d int16) int16 { return d | x },
		"1+D": func(x, d int16) int16 { return d + 1 },
		"1+X": func(x, d int16) int16 { return x + 1 },
	}

	for k, f := range fs {
		if !strings.Contains(k, "X") {
			comps[k] = comp{f: f, name: k}
			continue
		}

		a := strings.ReplaceAll(k, "X", "A")
		m := strings.ReplaceAll(k, "X", "M")

		comps[a] = comp{f: f, name: a}
		comps[m] = comp{f: f, usesM: true, name: m}
	}
}

func New() *Machine {
	return &Machine{}
}

// Load resolves labels and variables and replaces the program.
// Registers and RAM are left as they are.
func (m *Machine) Load(ls []asm.Line) error {
	m.syms = make(map[string]int, len(predefined))

	for k, v := range predefined {
		m.syms[k] = v
	}

	addr := 0

	for _, l := range ls {
		x, ok := l.Instr.(asm.Label)
		if !ok {
			addr++
			continue
		}

		if _, ok := m.syms[x.Name]; ok {
			return errors.New("line %d: symbol %v redefined", l.Num, x.Name)
		}

		m.syms[x.Name] = addr
	}

	next := VarBase
	m.rom = m.rom[:0]

	for _, l := range ls {
		switch x := l.Instr.(type) {
		case asm.Label:
		case asm.A:
			v := x.Value

			if x.Symbol != "" {
				a, ok := m.syms[x.Symbol]
				if !ok {
					a = next
					next++
					m.syms[x.Symbol] = a
				}

				v = a
			}

			m.rom = append(m.rom, op{isA: true, val: int16(v), src: "@" + strconv.Itoa(v)})
		case asm.C:
			o, err := compile(x)
			if err != nil {
				return errors.Wrap(err, "line %d", l.Num)
			}

			m.rom = append(m.rom, o)
		default:
			return errors.New("line %d: unsupported instruction %T", l.Num, l.Instr)
		}
	}

	m.PC = 0

	return nil
}

func compile(x asm.C) (o op, err error) {
	c, ok := comps[x.Comp]
	if !ok {
		return o, errors.Wrap(asm.ErrSyntax, "unknown comp %q", x.Comp)
	}

	o.comp = c
	o.jump = jumpBits[x.Jump]

	for _, r := range x.Dest {
		switch r {
		case 'A':
			o.dest |= destA
		case 'D':
			o.dest |= destD
		case 'M':
			o.dest |= destM
		}
	}

	o.src = x.Comp
	if x.Dest != "" {
		o.src = x.Dest + "=" + o.src
	}
	if x.Jump != "" {
		o.src += ";" + x.Jump
	}

	return o, nil
}

// Symbol returns the address of a label or variable.
func (m *Machine) Symbol(name string) (int, bool) {
	a, ok := m.syms[name]
	return a, ok
}

// Halted reports whether the program ran off its end or sits in a jump-to-self loop.
func (m *Machine) Halted() bool {
	if m.PC < 0 || m.PC >= len(m.rom) {
		return true
	}

	o := m.rom[m.PC]

	return !o.isA && o.jump == 7 && o.comp.name == "0" && o.dest == 0 &&
		m.PC > 0 && m.rom[m.PC-1].isA && int(m.A) == m.PC-1
}

// Step executes one instruction.
func (m *Machine) Step() error {
	if m.PC < 0 || m.PC >= len(m.rom) {
		return errors.New("pc %d out of program", m.PC)
	}

	o := m.rom[m.PC]
	m.Cycles++

	if o.isA {
		m.A = o.val
		m.PC++

		return nil
	}

	addr := int(m.A)
	needM := o.comp.usesM || o.dest&destM != 0

	if needM && (addr < 0 || addr >= RAMSize) {
		return errors.Wrap(ErrMemory, "pc %d (%s): address %d", m.PC, o.src, addr)
	}

	x := m.A
	if o.comp.usesM {
		x = m.RAM[addr]
	}

	v := o.comp.f(x, m.D)

	if o.dest&destM != 0 {
		m.RAM[addr] = v
	}
	if o.dest&destA != 0 {
		m.A = v
	}
	if o.dest&destD != 0 {
		m.D = v
	}

	if jumps(o.jump, v) {
		m.PC = int(uint16(addr))
	} else {
		m.PC++
	}

	return nil
}

func jumps(j uint8, v int16) bool {
	return v < 0 && j&4 != 0 || v == 0 && j&2 != 0 || v > 0 && j&1 != 0
}

// Run executes until the machine halts.
// It fails if the program is still running after max cycles.
func (m *Machine) Run(ctx context.Context, max int) error {
	return m.RunUntil(ctx, max, nil)
}

// RunUntil is Run which also stops before the instruction at pc if stop(pc) is true.
// The first instruction is always executed, so it can be resumed from a stop.
func (m *Machine) RunUntil(ctx context.Context, max int, stop func(pc int) bool) (err error) {
	tr, ctx := tlog.SpawnFromContextAndWrap(ctx, "emu: run", "rom", len(m.rom), "max", max, "pc", m.PC)
	defer tr.Finish("err", &err, "cycles", &m.Cycles)

	for start := m.Cycles; !m.Halted(); {
		if m.Cycles-start >= max {
			return errors.Wrap(ErrCycleLimit, "after %d cycles, pc %d", max, m.PC)
		}

		if stop != nil && m.Cycles != start && stop(m.PC) {
			return nil
		}

		if m.Cycles&0xffff == 0 {
			if err = ctx.Err(); err != nil {
				return err
			}
		}

		if tr.If("trace_emu") {
			tr.Printw("step", "pc", m.PC, "instr", m.rom[m.PC].src, "a", m.A, "d", m.D)
		}

		err = m.Step()
		if err != nil {
			return err
		}
	}

	return nil
}

// Instr returns the source form of the instruction at pc.
func (m *Machine) Instr(pc int) (string, bool) {
	if pc < 0 || pc >= len(m.rom) {
		return "", false
	}

	return m.rom[pc].src, true
}

// Stack helpers read the VM stack state the translator keeps at fixed addresses.

func (m *Machine) SP() int { return int(m.RAM[0]) }

// Top is the value on top of the VM stack.
func (m *Machine) Top() int16 {
	sp := m.SP()
	if sp <= 0 || sp > RAMSize {
		return 0
	}

	return m.RAM[sp-1]
}
