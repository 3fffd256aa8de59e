package front

import (
	"context"
	"strconv"
	"unicode/utf8"

	"tlog.app/go/errors"

	"github.com/hackstack/n2t/compiler/lex"
	"github.com/hackstack/n2t/compiler/symtab"
	"github.com/hackstack/n2t/compiler/vm"
)

var binOps = map[string]vm.Op{
	"+": vm.Add,
	"-": vm.Sub,
	"&": vm.And,
	"|": vm.Or,
	"<": vm.Lt,
	">": vm.Gt,
	"=": vm.Eq,
}

// libCalls are binary operators the machine has no instruction for.
var libCalls = map[string]string{
	"*": "Math.multiply",
	"/": "Math.divide",
}

func isBinOp(t lex.Token) bool {
	if t.Kind != lex.Symbol {
		return false
	}

	_, ok := binOps[t.Text]
	if !ok {
		_, ok = libCalls[t.Text]
	}

	return ok
}

// compileExpression evaluates terms strictly left to right,
// there is no operator precedence.
func (s *class) compileExpression(ctx context.Context, cur *lex.Cursor) error {
	err := s.compileTerm(ctx, cur)
	if err != nil {
		return err
	}

	for {
		t, ok := cur.Peek()
		if !ok || !isBinOp(t) {
			return nil
		}

		_, _ = cur.Advance()

		err = s.compileTerm(ctx, cur)
		if err != nil {
			return errors.Wrap(err, "operand of %v", t.Text)
		}

		if f, ok := libCalls[t.Text]; ok {
			s.call(f, 2)
		} else {
			s.arith(binOps[t.Text])
		}
	}
}

func (s *class) compileTerm(ctx context.Context, cur *lex.Cursor) error {
	t, err := s.next(ctx, cur)
	if err != nil {
		return errors.Wrap(err, "expected term")
	}

	switch t.Kind {
	case lex.IntConst:
		v, err := strconv.Atoi(t.Text)
		if err != nil || v < 0 || v > lex.MaxInt {
			return semanticErr(t, "bad integer constant %v", t.Text)
		}

		s.push(vm.Constant, v)

		return nil
	case lex.StringConst:
		return s.compileString(t)
	case lex.Keyword:
		return s.compileKeywordConst(t)
	case lex.Ident:
		return s.compileName(ctx, cur, t)
	}

	switch t.Text {
	case "(":
		err = s.compileExpression(ctx, cur)
		if err != nil {
			return err
		}

		return s.expect(ctx, cur, ")")
	case "-", "~":
		err = s.compileTerm(ctx, cur)
		if err != nil {
			return err
		}

		if t.Text == "-" {
			s.arith(vm.Neg)
		} else {
			s.arith(vm.Not)
		}

		return nil
	}

	return syntaxErr(t, "unexpected %v in expression", t)
}

// compileString builds a string object char by char.
// String.appendChar returns the string so it stays on the stack.
func (s *class) compileString(t lex.Token) error {
	s.push(vm.Constant, utf8.RuneCountInString(t.Text))
	s.call("String.new", 1)

	for _, r := range t.Text {
		if r > lex.MaxInt {
			return semanticErr(t, "character %q out of range", r)
		}

		s.push(vm.Constant, int(r))
		s.call("String.appendChar", 2)
	}

	return nil
}

func (s *class) compileKeywordConst(t lex.Token) error {
	switch t.Text {
	case "false", "null":
		s.push(vm.Constant, 0)
	case "true":
		s.push(vm.Constant, 0)
		s.arith(vm.Not)
	case "this":
		s.push(vm.Pointer, 0)
	default:
		return syntaxErr(t, "unexpected keyword %v in expression", t)
	}

	return nil
}

// compileName is a variable, an array element or a call.
func (s *class) compileName(ctx context.Context, cur *lex.Cursor, name lex.Token) error {
	if peekIs(cur, "(") || peekIs(cur, ".") {
		return s.compileCall(ctx, cur, name)
	}

	v, ok := s.syms.Lookup(name.Text)
	if !ok {
		return semanticErr(name, "undefined variable %v", name.Text)
	}

	s.push(v.Segment(), v.Index)

	if !peekIs(cur, "[") {
		return nil
	}

	_, _ = cur.Advance()

	err := s.compileExpression(ctx, cur)
	if err != nil {
		return errors.Wrap(err, "index of %v", name.Text)
	}

	err = s.expect(ctx, cur, "]")
	if err != nil {
		return err
	}

	s.arith(vm.Add)
	s.pop(vm.Pointer, 1)
	s.push(vm.That, 0)

	return nil
}

// compileCall compiles a call with the first name already consumed.
//
//	name(args)      method of the current object, receiver is pushed
//	var.name(args)  method of var's class, var is pushed
//	Class.name(args) function or constructor, nothing is pushed
func (s *class) compileCall(ctx context.Context, cur *lex.Cursor, name lex.Token) (err error) {
	var fn string
	nargs := 0

	if peekIs(cur, ".") {
		_, _ = cur.Advance()

		sub, err := s.ident(ctx, cur)
		if err != nil {
			return err
		}

		if k := s.syms.KindOf(name.Text); k != symtab.None {
			s.push(k.Segment(), s.syms.IndexOf(name.Text))
			nargs++
			fn = s.syms.TypeOf(name.Text) + "." + sub
		} else {
			fn = name.Text + "." + sub
		}
	} else {
		s.push(vm.Pointer, 0)
		nargs++
		fn = s.name + "." + name.Text
	}

	err = s.expect(ctx, cur, "(")
	if err != nil {
		return err
	}

	n, err := s.compileExpressionList(ctx, cur)
	if err != nil {
		return errors.Wrap(err, "call %v", fn)
	}

	err = s.expect(ctx, cur, ")")
	if err != nil {
		return err
	}

	s.call(fn, nargs+n)

	return nil
}

func (s *class) compileExpressionList(ctx context.Context, cur *lex.Cursor) (n int, err error) {
	if peekIs(cur, ")") {
		return 0, nil
	}

	for {
		err = s.compileExpression(ctx, cur)
		if err != nil {
			return n, errors.Wrap(err, "argument %d", n)
		}

		n++

		if !peekIs(cur, ",") {
			return n, nil
		}

		_, _ = cur.Advance()
	}
}
