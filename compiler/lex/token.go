package lex

import (
	"github.com/nikandfor/hacked/hfmt"
)

type (
	Kind int

	Token struct {
		Text string
		Kind Kind
		Line int
	}
)

const (
	_ Kind = iota

	Keyword
	Symbol
	IntConst
	StringConst
	Ident
)

// MaxInt is the largest integer constant the source language accepts.
const MaxInt = 32767

const symbols = "{}()[].,;+-*/&|<>=~"

var keywords = map[string]struct{}{
	"class":       {},
	"constructor": {},
	"function":    {},
	"method":      {},
	"field":       {},
	"static":      {},
	"var":         {},
	"int":         {},
	"char":        {},
	"boolean":     {},
	"void":        {},
	"true":        {},
	"false":       {},
	"null":        {},
	"this":        {},
	"let":         {},
	"do":          {},
	"if":          {},
	"else":        {},
	"while":       {},
	"return":      {},
	"break":       {},
	"continue":    {},
}

func IsKeyword(s string) bool {
	_, ok := keywords[s]
	return ok
}

// Is reports whether t is a keyword or a symbol spelled s.
func (t Token) Is(s string) bool {
	return (t.Kind == Keyword || t.Kind == Symbol) && t.Text == s
}

func (k Kind) String() string {
	switch k {
	case Keyword:
		return "keyword"
	case Symbol:
		return "symbol"
	case IntConst:
		return "integerConstant"
	case StringConst:
		return "stringConstant"
	case Ident:
		return "identifier"
	}

	return string(hfmt.Appendf(nil, "Kind(%d)", int(k)))
}

func (t Token) String() string {
	if t.Kind == StringConst {
		return string(hfmt.Appendf(nil, "%q", t.Text))
	}

	return t.Text
}
