package front

import (
	"context"

	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/hackstack/n2t/compiler/lex"
	"github.com/hackstack/n2t/compiler/symtab"
	"github.com/hackstack/n2t/compiler/vm"
)

func (s *class) compileClass(ctx context.Context, cur *lex.Cursor) (err error) {
	err = s.expect(ctx, cur, "class")
	if err != nil {
		return err
	}

	s.name, err = s.ident(ctx, cur)
	if err != nil {
		return errors.Wrap(err, "class name")
	}

	err = s.expect(ctx, cur, "{")
	if err != nil {
		return err
	}

	s.syms.ResetClass()

	for peekIs(cur, "static") || peekIs(cur, "field") {
		err = s.compileClassVarDec(ctx, cur)
		if err != nil {
			return err
		}
	}

	if tr := tlog.SpanFromContext(ctx); tr.If("dump_symbols") {
		tr.Printw("class scope", "class", s.name, "static", s.syms.Count(symtab.Static), "field", s.syms.Count(symtab.Field))
	}

	for peekIs(cur, "constructor") || peekIs(cur, "function") || peekIs(cur, "method") {
		err = s.compileSubroutine(ctx, cur)
		if err != nil {
			return errors.Wrap(err, "subroutine %v", s.fn)
		}
	}

	err = s.expect(ctx, cur, "}")
	if err != nil {
		return err
	}

	if cur.More() {
		t, _ := cur.Peek()
		return syntaxErr(t, "unexpected %v after class", t)
	}

	return nil
}

// compileClassVarDec only fills class scope, it emits no code.
func (s *class) compileClassVarDec(ctx context.Context, cur *lex.Cursor) error {
	t, err := s.next(ctx, cur)
	if err != nil {
		return err
	}

	kind, err := symtab.ParseKind(t.Text)
	if err != nil {
		return semanticErr(t, "%v", err)
	}

	return s.compileVarList(ctx, cur, kind)
}

// compileVarList parses `type name (, name)* ;` defining every name.
func (s *class) compileVarList(ctx context.Context, cur *lex.Cursor, kind symtab.Kind) error {
	typ, err := s.typeName(ctx, cur, false)
	if err != nil {
		return err
	}

	for {
		name, err := s.ident(ctx, cur)
		if err != nil {
			return err
		}

		_, err = s.syms.Define(name, typ, kind)
		if err != nil {
			return err
		}

		if !peekIs(cur, ",") {
			break
		}

		_, _ = cur.Advance()
	}

	return s.expect(ctx, cur, ";")
}

func (s *class) compileSubroutine(ctx context.Context, cur *lex.Cursor) (err error) {
	t, err := s.next(ctx, cur)
	if err != nil {
		return err
	}

	s.kind = t.Text
	s.fn = ""
	s.loop = nil
	s.syms.ResetSubroutine()

	if s.kind == "method" {
		_, err = s.syms.Define("this", s.name, symtab.Arg)
		if err != nil {
			return err
		}
	}

	_, err = s.typeName(ctx, cur, true)
	if err != nil {
		return errors.Wrap(err, "return type")
	}

	name, err := s.ident(ctx, cur)
	if err != nil {
		return errors.Wrap(err, "subroutine name")
	}

	s.fn = s.name + "." + name

	err = s.expect(ctx, cur, "(")
	if err != nil {
		return err
	}

	if !peekIs(cur, ")") {
		err = s.compileParameterList(ctx, cur)
		if err != nil {
			return errors.Wrap(err, "parameters")
		}
	}

	err = s.expect(ctx, cur, ")")
	if err != nil {
		return err
	}

	return s.compileSubroutineBody(ctx, cur)
}

func (s *class) compileParameterList(ctx context.Context, cur *lex.Cursor) error {
	for {
		typ, err := s.typeName(ctx, cur, false)
		if err != nil {
			return err
		}

		name, err := s.ident(ctx, cur)
		if err != nil {
			return err
		}

		_, err = s.syms.Define(name, typ, symtab.Arg)
		if err != nil {
			return err
		}

		if !peekIs(cur, ",") {
			return nil
		}

		_, _ = cur.Advance()
	}
}

// compileSubroutineBody emits the function entry once all locals are known,
// then binds the receiver and compiles statements.
func (s *class) compileSubroutineBody(ctx context.Context, cur *lex.Cursor) (err error) {
	err = s.expect(ctx, cur, "{")
	if err != nil {
		return err
	}

	for peekIs(cur, "var") {
		_, _ = cur.Advance()

		err = s.compileVarList(ctx, cur, symtab.Local)
		if err != nil {
			return errors.Wrap(err, "var")
		}
	}

	s.emit(vm.Instr{Op: vm.Function, Name: s.fn, N: s.syms.Count(symtab.Local)})

	switch s.kind {
	case "constructor":
		s.push(vm.Constant, s.syms.Count(symtab.Field))
		s.call("Memory.alloc", 1)
		s.pop(vm.Pointer, 0)
	case "method":
		s.push(vm.Argument, 0)
		s.pop(vm.Pointer, 0)
	}

	err = s.compileStatements(ctx, cur)
	if err != nil {
		return err
	}

	if s.kind == "constructor" && (len(s.code) == 0 || s.code[len(s.code)-1].Op != vm.Return) {
		s.push(vm.Pointer, 0)
		s.emit(vm.Instr{Op: vm.Return})
	}

	return s.expect(ctx, cur, "}")
}
