package front

import (
	"context"
	"strconv"

	"tlog.app/go/errors"
	"tlog.app/go/loc"
	"tlog.app/go/tlog"

	"github.com/hackstack/n2t/compiler/lex"
	"github.com/hackstack/n2t/compiler/symtab"
	"github.com/hackstack/n2t/compiler/vm"
)

type (
	// Compiler translates classes into VM code.
	// One Compiler is meant to be used for a whole run,
	// it keeps the label counter that makes synthetic labels unique across files.
	Compiler struct {
		nextLabel int
	}

	// class is the state of a single class compilation.
	class struct {
		*Compiler

		syms *symtab.Table

		name string // class name
		fn   string // current subroutine full name
		kind string // constructor, function or method

		loop *loop

		code []vm.Instr
	}

	// loop is the innermost enclosing while, break and continue jump to its labels.
	loop struct {
		test string
		end  string
	}
)

var (
	ErrSyntax   = errors.New("syntax error")
	ErrSemantic = errors.New("semantic error")
)

func New() *Compiler {
	return &Compiler{}
}

// CompileClass compiles exactly one class from the cursor.
// The whole token sequence must be consumed.
func (c *Compiler) CompileClass(ctx context.Context, cur *lex.Cursor) (_ []vm.Instr, err error) {
	tr, ctx := tlog.SpawnFromContextAndWrap(ctx, "front: compile class")
	defer tr.Finish("err", &err)

	s := &class{
		Compiler: c,
		syms:     symtab.New(),
	}

	err = s.compileClass(ctx, cur)
	if err != nil {
		if s.name != "" {
			err = errors.Wrap(err, "class %v", s.name)
		}

		return nil, err
	}

	if tr.If("dump_code") {
		for i, x := range s.code {
			tr.Printw("code", "i", i, "instr", x)
		}
	}

	return s.code, nil
}

func (c *Compiler) label() string {
	n := c.nextLabel
	c.nextLabel++

	return strconv.Itoa(n)
}

func (s *class) emit(x vm.Instr) {
	s.code = append(s.code, x)
}

func (s *class) push(seg vm.Segment, i int) {
	s.emit(vm.Instr{Op: vm.Push, Seg: seg, N: i})
}

func (s *class) pop(seg vm.Segment, i int) {
	s.emit(vm.Instr{Op: vm.Pop, Seg: seg, N: i})
}

func (s *class) arith(op vm.Op) {
	s.emit(vm.Instr{Op: op})
}

func (s *class) call(name string, nargs int) {
	s.emit(vm.Instr{Op: vm.Call, Name: name, N: nargs})
}

func (s *class) branch(op vm.Op, l string) {
	s.emit(vm.Instr{Op: op, Name: l})
}

func (s *class) next(ctx context.Context, cur *lex.Cursor) (lex.Token, error) {
	t, ok := cur.Advance()
	if !ok {
		s.traceEOF(ctx, cur)
		return t, syntaxErr(t, "unexpected end of input")
	}

	return t, nil
}

func (s *class) peek(ctx context.Context, cur *lex.Cursor) (lex.Token, error) {
	t, ok := cur.Peek()
	if !ok {
		s.traceEOF(ctx, cur)
		return t, syntaxErr(t, "unexpected end of input")
	}

	return t, nil
}

func (s *class) traceEOF(ctx context.Context, cur *lex.Cursor) {
	if tr := tlog.SpanFromContext(ctx); tr.If("trace_expect") {
		tr.Printw("unexpected end of input", "class", s.name, "subroutine", s.fn, "pos", cur.Pos(), "from", loc.Caller(2))
	}
}

// peekIs is a lookahead check which is false at the end of input.
func peekIs(cur *lex.Cursor, text string) bool {
	t, ok := cur.Peek()
	return ok && t.Is(text)
}

// expect consumes a keyword or a symbol spelled exactly as text.
func (s *class) expect(ctx context.Context, cur *lex.Cursor, text string) error {
	t, err := s.next(ctx, cur)
	if err != nil {
		return errors.Wrap(err, "expected %q", text)
	}

	if !t.Is(text) {
		if tr := tlog.SpanFromContext(ctx); tr.If("trace_expect") {
			tr.Printw("unexpected token", "want", text, "got", t.Text, "line", t.Line, "from", loc.Caller(1))
		}

		return syntaxErr(t, "expected %q, got %v", text, t)
	}

	return nil
}

func (s *class) ident(ctx context.Context, cur *lex.Cursor) (string, error) {
	t, err := s.next(ctx, cur)
	if err != nil {
		return "", errors.Wrap(err, "expected identifier")
	}

	if t.Kind != lex.Ident {
		return "", syntaxErr(t, "expected identifier, got %v %v", t.Kind, t)
	}

	return t.Text, nil
}

// typeName consumes a type: a primitive type, a class name or void if allowed.
func (s *class) typeName(ctx context.Context, cur *lex.Cursor, void bool) (string, error) {
	t, err := s.next(ctx, cur)
	if err != nil {
		return "", errors.Wrap(err, "expected type")
	}

	switch {
	case t.Kind == lex.Ident:
	case t.Is("int"), t.Is("char"), t.Is("boolean"):
	case void && t.Is("void"):
	default:
		return "", syntaxErr(t, "expected type, got %v", t)
	}

	return t.Text, nil
}

func syntaxErr(t lex.Token, f string, args ...any) error {
	return errors.Wrap(errors.Wrap(ErrSyntax, f, args...), "line %d", t.Line)
}

func semanticErr(t lex.Token, f string, args ...any) error {
	return errors.Wrap(errors.Wrap(ErrSemantic, f, args...), "line %d", t.Line)
}
