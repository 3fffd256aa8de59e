package format

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hackstack/n2t/compiler/vm"
)

func TestVM(t *testing.T) {
	b := VM([]byte("// Main\n"), []vm.Instr{
		{Op: vm.Function, Name: "Main.f", N: 1},
		{Op: vm.Push, Seg: vm.Constant, N: 1},
		{Op: vm.Label, Name: "L"},
		{Op: vm.Return},
	})

	assert.Equal(t, "// Main\nfunction Main.f 1\n\tpush constant 1\n\tlabel L\n\treturn\n", string(b))
}

func TestVMInstrText(t *testing.T) {
	code := []vm.Instr{
		{Op: vm.Function, Name: "Main.main", N: 0},
		{Op: vm.Pop, Seg: vm.That, N: 0},
		{Op: vm.IfGoto, Name: "WHILE_END0"},
		{Op: vm.Call, Name: "Math.multiply", N: 2},
		{Op: vm.Not},
	}

	b := VM(nil, code)

	exp := "function Main.main 0\n"
	for _, x := range code[1:] {
		exp += "\t" + x.String() + "\n"
	}

	assert.Equal(t, exp, string(b))
	assert.Contains(t, string(b), "\tcall Math.multiply 2\n")
}
