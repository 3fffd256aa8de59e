package symtab

import (
	"tlog.app/go/errors"

	"github.com/hackstack/n2t/compiler/vm"
)

type (
	// Kind is the storage kind of a variable.
	Kind int

	Entry struct {
		Type  string
		Kind  Kind
		Index int
	}

	// Table keeps two independent scopes.
	// Class scope holds static and field variables,
	// subroutine scope holds arguments and locals.
	Table struct {
		class map[string]Entry
		sub   map[string]Entry

		count [numKinds]int
	}
)

const (
	None Kind = iota
	Static
	Field
	Arg
	Local

	numKinds
)

var ErrInvalidKind = errors.New("invalid storage kind")

func New() *Table {
	return &Table{
		class: make(map[string]Entry),
		sub:   make(map[string]Entry),
	}
}

func ParseKind(s string) (Kind, error) {
	switch s {
	case "static":
		return Static, nil
	case "field":
		return Field, nil
	case "argument", "arg":
		return Arg, nil
	case "local", "var":
		return Local, nil
	}

	return None, errors.Wrap(ErrInvalidKind, "%q", s)
}

// Define adds a variable to the scope its kind belongs to and returns its index.
// Redefining a name in the same scope replaces the entry and takes a new index.
func (t *Table) Define(name, typ string, kind Kind) (int, error) {
	var scope map[string]Entry

	switch kind {
	case Static, Field:
		scope = t.class
	case Arg, Local:
		scope = t.sub
	default:
		return -1, errors.Wrap(ErrInvalidKind, "define %v: %v", name, kind)
	}

	e := Entry{
		Type:  typ,
		Kind:  kind,
		Index: t.count[kind],
	}

	t.count[kind]++
	scope[name] = e

	return e.Index, nil
}

// Lookup finds name in subroutine scope first, then in class scope.
func (t *Table) Lookup(name string) (Entry, bool) {
	if e, ok := t.sub[name]; ok {
		return e, true
	}

	e, ok := t.class[name]

	return e, ok
}

// KindOf returns None if name is not a variable.
// Callers use it to tell a class name from a variable.
func (t *Table) KindOf(name string) Kind {
	e, _ := t.Lookup(name)
	return e.Kind
}

func (t *Table) TypeOf(name string) string {
	e, _ := t.Lookup(name)
	return e.Type
}

func (t *Table) IndexOf(name string) int {
	e, ok := t.Lookup(name)
	if !ok {
		return -1
	}

	return e.Index
}

// Count is the number of variables of the kind defined in the current scopes.
func (t *Table) Count(kind Kind) int {
	if kind <= None || kind >= numKinds {
		return 0
	}

	return t.count[kind]
}

func (t *Table) ResetClass() {
	t.class = make(map[string]Entry)
	t.count[Static] = 0
	t.count[Field] = 0
}

func (t *Table) ResetSubroutine() {
	t.sub = make(map[string]Entry)
	t.count[Arg] = 0
	t.count[Local] = 0
}

// Segment is where variables of the kind live.
// Fields are always addressed through the receiver.
func (k Kind) Segment() vm.Segment {
	switch k {
	case Static:
		return vm.Static
	case Field:
		return vm.This
	case Arg:
		return vm.Argument
	case Local:
		return vm.Local
	}

	return 0
}

func (e Entry) Segment() vm.Segment { return e.Kind.Segment() }

func (k Kind) String() string {
	switch k {
	case Static:
		return "static"
	case Field:
		return "field"
	case Arg:
		return "argument"
	case Local:
		return "local"
	}

	return "none"
}
