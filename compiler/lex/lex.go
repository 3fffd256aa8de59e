package lex

import (
	"bytes"
	"context"
	"strconv"
	"strings"

	"tlog.app/go/errors"
	"tlog.app/go/tlog"
)

type (
	spaces uint64
)

var ErrLexical = errors.New("lexical error")

var space = newSpaces(' ', '\t', '\r', '\n', '\f', '\v')

func newSpaces(skip ...byte) (ss spaces) {
	for _, q := range skip {
		ss |= 1 << q
	}

	return
}

func (s spaces) is(c byte) bool {
	return c < 64 && s&(1<<c) != 0
}

// Lex splits source text into tokens.
//
// The text is processed line by line, no token spans lines.
// Line comments cut the rest of the line.
// Block comments are expected to open and close on their own lines,
// though a comment closed on the line it was opened is removed in place.
func Lex(ctx context.Context, text []byte) (toks []Token, err error) {
	tr := tlog.SpanFromContext(ctx)

	comment := false

	for line := 1; len(text) != 0; line++ {
		var l []byte

		l, text, _ = bytes.Cut(text, []byte{'\n'})

		if comment {
			p := bytes.Index(l, []byte("*/"))
			if p < 0 {
				continue
			}

			comment = false
			l = l[p+2:]
		}

		l, comment = stripComments(l)

		toks, err = lexLine(toks, l, line)
		if err != nil {
			return nil, errors.Wrap(err, "line %d", line)
		}
	}

	if tr.If("dump_tokens") {
		for i, t := range toks {
			tr.Printw("token", "i", i, "kind", t.Kind, "text", t.Text, "line", t.Line)
		}
	}

	return toks, nil
}

// stripComments removes comments outside of string literals.
// open is true if a block comment is left unclosed at the end of the line.
func stripComments(l []byte) (_ []byte, open bool) {
	str := false

	for i := 0; i < len(l); i++ {
		switch {
		case l[i] == '"':
			str = !str
		case str || l[i] != '/' || i+1 == len(l):
		case l[i+1] == '/':
			return l[:i], false
		case l[i+1] == '*':
			e := bytes.Index(l[i+2:], []byte("*/"))
			if e < 0 {
				return l[:i], true
			}

			rest := l[i+2+e+2:]
			l = append(l[:i:i], ' ')
			l = append(l, rest...)
		}
	}

	return l, false
}

func lexLine(toks []Token, l []byte, line int) (_ []Token, err error) {
	for i := 0; i < len(l); {
		c := l[i]
		st := i

		switch {
		case space.is(c):
			i++
			continue
		case isDigit(c):
			i = skipDigits(l, i)

			v, err := strconv.Atoi(string(l[st:i]))
			if err != nil || v > MaxInt {
				return nil, errors.Wrap(ErrLexical, "integer constant %s out of range [0, %d]", l[st:i], MaxInt)
			}

			toks = append(toks, Token{Text: string(l[st:i]), Kind: IntConst, Line: line})

			continue
		case c == '"':
			e := bytes.IndexByte(l[i+1:], '"')
			if e < 0 {
				return nil, errors.Wrap(ErrLexical, "unterminated string constant")
			}

			i += 1 + e + 1

			toks = append(toks, Token{Text: string(l[st+1 : i-1]), Kind: StringConst, Line: line})

			continue
		case strings.IndexByte(symbols, c) >= 0:
			i++

			toks = append(toks, Token{Text: string(c), Kind: Symbol, Line: line})

			continue
		case isLetter(c):
			i = skipIdent(l, i+1)

			t := Token{Text: string(l[st:i]), Kind: Ident, Line: line}
			if IsKeyword(t.Text) {
				t.Kind = Keyword
			}

			toks = append(toks, t)

			continue
		}

		return nil, errors.Wrap(ErrLexical, "invalid character %q", c)
	}

	return toks, nil
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func isLetter(c byte) bool {
	return c >= 'A' && c <= 'Z' || c >= 'a' && c <= 'z' || c == '_'
}

func skipDigits(b []byte, i int) int {
	for i < len(b) && isDigit(b[i]) {
		i++
	}

	return i
}

func skipIdent(b []byte, i int) int {
	for i < len(b) && (isLetter(b[i]) || isDigit(b[i])) {
		i++
	}

	return i
}
