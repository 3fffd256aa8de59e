package front

import (
	"context"

	"tlog.app/go/errors"

	"github.com/hackstack/n2t/compiler/lex"
	"github.com/hackstack/n2t/compiler/vm"
)

// compileStatements compiles statements until a token that can't start one.
func (s *class) compileStatements(ctx context.Context, cur *lex.Cursor) error {
	for {
		t, ok := cur.Peek()
		if !ok || !startsStatement(t) {
			return nil
		}

		err := s.compileStatement(ctx, cur)
		if err != nil {
			return err
		}
	}
}

func startsStatement(t lex.Token) bool {
	if t.Kind == lex.Ident {
		return true
	}

	if t.Kind != lex.Keyword {
		return false
	}

	switch t.Text {
	case "let", "if", "while", "do", "return", "break", "continue":
		return true
	}

	return false
}

func (s *class) compileStatement(ctx context.Context, cur *lex.Cursor) error {
	t, err := s.peek(ctx, cur)
	if err != nil {
		return err
	}

	if t.Kind == lex.Ident {
		return s.compileBare(ctx, cur)
	}

	switch t.Text {
	case "let":
		return s.compileLet(ctx, cur)
	case "if":
		return s.compileIf(ctx, cur)
	case "while":
		return s.compileWhile(ctx, cur)
	case "do":
		return s.compileDo(ctx, cur)
	case "return":
		return s.compileReturn(ctx, cur)
	case "break", "continue":
		return s.compileJump(ctx, cur)
	}

	return syntaxErr(t, "unexpected %v, statement expected", t)
}

// compileBody is either a braced block or a single statement.
func (s *class) compileBody(ctx context.Context, cur *lex.Cursor) error {
	if !peekIs(cur, "{") {
		return s.compileStatement(ctx, cur)
	}

	_, _ = cur.Advance()

	err := s.compileStatements(ctx, cur)
	if err != nil {
		return err
	}

	return s.expect(ctx, cur, "}")
}

// compileBare is a call or an assignment without let or do.
func (s *class) compileBare(ctx context.Context, cur *lex.Cursor) error {
	name, err := s.next(ctx, cur)
	if err != nil {
		return err
	}

	if peekIs(cur, "(") || peekIs(cur, ".") {
		err = s.compileCall(ctx, cur, name)
		if err != nil {
			return err
		}

		s.pop(vm.Temp, 0)
	} else {
		err = s.compileAssignment(ctx, cur, name)
		if err != nil {
			return err
		}
	}

	return s.expect(ctx, cur, ";")
}

func (s *class) compileLet(ctx context.Context, cur *lex.Cursor) error {
	err := s.expect(ctx, cur, "let")
	if err != nil {
		return err
	}

	name, err := s.next(ctx, cur)
	if err != nil {
		return err
	}

	if name.Kind != lex.Ident {
		return syntaxErr(name, "expected variable name, got %v", name)
	}

	err = s.compileAssignment(ctx, cur, name)
	if err != nil {
		return errors.Wrap(err, "let %v", name.Text)
	}

	return s.expect(ctx, cur, ";")
}

// compileAssignment compiles `name = expr` or `name[idx] = expr`
// with the name already consumed.
//
// For the subscripted form the target address is computed first,
// then the value. The value is parked in temp 0 while that is pointed
// to the address, because both live on the same stack.
func (s *class) compileAssignment(ctx context.Context, cur *lex.Cursor, name lex.Token) error {
	v, ok := s.syms.Lookup(name.Text)
	if !ok {
		return semanticErr(name, "undefined variable %v", name.Text)
	}

	if !peekIs(cur, "[") {
		err := s.expect(ctx, cur, "=")
		if err != nil {
			return err
		}

		err = s.compileExpression(ctx, cur)
		if err != nil {
			return err
		}

		s.pop(v.Segment(), v.Index)

		return nil
	}

	_, _ = cur.Advance()

	s.push(v.Segment(), v.Index)

	err := s.compileExpression(ctx, cur)
	if err != nil {
		return errors.Wrap(err, "index")
	}

	s.arith(vm.Add)

	err = s.expect(ctx, cur, "]")
	if err != nil {
		return err
	}

	err = s.expect(ctx, cur, "=")
	if err != nil {
		return err
	}

	err = s.compileExpression(ctx, cur)
	if err != nil {
		return err
	}

	s.pop(vm.Temp, 0)
	s.pop(vm.Pointer, 1)
	s.push(vm.Temp, 0)
	s.pop(vm.That, 0)

	return nil
}

func (s *class) compileIf(ctx context.Context, cur *lex.Cursor) (err error) {
	err = s.expect(ctx, cur, "if")
	if err != nil {
		return err
	}

	n := s.label()
	lfalse := "IF_FALSE" + n
	lend := "IF_END" + n

	err = s.compileCond(ctx, cur)
	if err != nil {
		return errors.Wrap(err, "if condition")
	}

	if l := len(s.code) - 1; l >= 0 && s.code[l].Op == vm.Not {
		s.code = s.code[:l]
	} else {
		s.arith(vm.Not)
	}

	s.branch(vm.IfGoto, lfalse)

	err = s.compileBody(ctx, cur)
	if err != nil {
		return errors.Wrap(err, "if body")
	}

	s.branch(vm.Goto, lend)
	s.branch(vm.Label, lfalse)

	if peekIs(cur, "else") {
		_, _ = cur.Advance()

		err = s.compileBody(ctx, cur)
		if err != nil {
			return errors.Wrap(err, "else body")
		}
	}

	s.branch(vm.Label, lend)

	return nil
}

func (s *class) compileWhile(ctx context.Context, cur *lex.Cursor) (err error) {
	err = s.expect(ctx, cur, "while")
	if err != nil {
		return err
	}

	n := s.label()
	l := &loop{
		test: "WHILE_EXP" + n,
		end:  "WHILE_END" + n,
	}

	s.branch(vm.Label, l.test)

	err = s.compileCond(ctx, cur)
	if err != nil {
		return errors.Wrap(err, "while condition")
	}

	s.arith(vm.Not)
	s.branch(vm.IfGoto, l.end)

	outer := s.loop
	s.loop = l

	err = s.compileBody(ctx, cur)

	s.loop = outer

	if err != nil {
		return errors.Wrap(err, "while body")
	}

	s.branch(vm.Goto, l.test)
	s.branch(vm.Label, l.end)

	return nil
}

// compileCond compiles `( expr )`.
func (s *class) compileCond(ctx context.Context, cur *lex.Cursor) error {
	err := s.expect(ctx, cur, "(")
	if err != nil {
		return err
	}

	err = s.compileExpression(ctx, cur)
	if err != nil {
		return err
	}

	return s.expect(ctx, cur, ")")
}

func (s *class) compileJump(ctx context.Context, cur *lex.Cursor) error {
	t, err := s.next(ctx, cur)
	if err != nil {
		return err
	}

	err = s.expect(ctx, cur, ";")
	if err != nil {
		return err
	}

	if s.loop == nil {
		return semanticErr(t, "%v outside of a loop", t.Text)
	}

	if t.Text == "break" {
		s.branch(vm.Goto, s.loop.end)
	} else {
		s.branch(vm.Goto, s.loop.test)
	}

	return nil
}

func (s *class) compileDo(ctx context.Context, cur *lex.Cursor) error {
	err := s.expect(ctx, cur, "do")
	if err != nil {
		return err
	}

	name, err := s.next(ctx, cur)
	if err != nil {
		return err
	}

	if name.Kind != lex.Ident {
		return syntaxErr(name, "expected subroutine call, got %v", name)
	}

	err = s.compileCall(ctx, cur, name)
	if err != nil {
		return errors.Wrap(err, "do")
	}

	s.pop(vm.Temp, 0)

	return s.expect(ctx, cur, ";")
}

// compileReturn returns the receiver from a constructor on a bare return,
// zero from anything else.
func (s *class) compileReturn(ctx context.Context, cur *lex.Cursor) error {
	err := s.expect(ctx, cur, "return")
	if err != nil {
		return err
	}

	switch {
	case !peekIs(cur, ";"):
		err = s.compileExpression(ctx, cur)
		if err != nil {
			return errors.Wrap(err, "return")
		}
	case s.kind == "constructor":
		s.push(vm.Pointer, 0)
	default:
		s.push(vm.Constant, 0)
	}

	s.emit(vm.Instr{Op: vm.Return})

	return s.expect(ctx, cur, ";")
}
