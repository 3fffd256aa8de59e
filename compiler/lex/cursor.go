package lex

// Cursor walks a token sequence with one token of lookahead.
// The sequence itself is never modified, the cursor owns only its position.
type Cursor struct {
	toks []Token
	pos  int
}

func NewCursor(toks []Token) *Cursor {
	return &Cursor{toks: toks}
}

// Advance consumes and returns the next token.
// ok is false at the end of input.
func (c *Cursor) Advance() (t Token, ok bool) {
	if c.pos == len(c.toks) {
		return c.last(), false
	}

	t = c.toks[c.pos]
	c.pos++

	return t, true
}

// Peek returns the next token without consuming it.
func (c *Cursor) Peek() (t Token, ok bool) {
	if c.pos == len(c.toks) {
		return c.last(), false
	}

	return c.toks[c.pos], true
}

func (c *Cursor) More() bool {
	return c.pos < len(c.toks)
}

func (c *Cursor) Pos() int { return c.pos }

// last is returned at the end of input so that errors can still point to a line.
func (c *Cursor) last() Token {
	if len(c.toks) == 0 {
		return Token{}
	}

	return Token{Line: c.toks[len(c.toks)-1].Line}
}
