package format

import (
	"github.com/nikandfor/hacked/hfmt"

	"github.com/hackstack/n2t/compiler/vm"
)

// VM renders instructions one per line.
// Everything but function declarations is indented one level.
func VM(b []byte, code []vm.Instr) []byte {
	for _, x := range code {
		d := 1
		if x.Op == vm.Function {
			d = 0
		}

		b = app(b, d, "%v\n", x)
	}

	return b
}

func app(b []byte, d int, f string, args ...any) []byte {
	for i := 0; i < d; i++ {
		b = append(b, '\t')
	}

	return hfmt.Appendf(b, f, args...)
}
