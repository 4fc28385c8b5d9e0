package condition

import (
	"fmt"
	"strings"
	"unicode"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIdent
	tokPath
	tokNumber
	tokString
	tokOp
	tokLParen
	tokRParen
)

type token struct {
	kind tokenKind
	text string
	pos  int
}

type lexer struct {
	input []rune
	pos   int
}

func tokenize(expr string) ([]token, error) {
	lx := &lexer{input: []rune(expr)}
	var tokens []token
	for {
		tok, err := lx.next()
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, tok)
		if tok.kind == tokEOF {
			return tokens, nil
		}
	}
}

func (lx *lexer) next() (token, error) {
	for lx.pos < len(lx.input) && unicode.IsSpace(lx.input[lx.pos]) {
		lx.pos++
	}
	if lx.pos >= len(lx.input) {
		return token{kind: tokEOF, pos: lx.pos}, nil
	}
	start := lx.pos
	r := lx.input[lx.pos]
	switch {
	case r == '(':
		lx.pos++
		return token{kind: tokLParen, text: "(", pos: start}, nil
	case r == ')':
		lx.pos++
		return token{kind: tokRParen, text: ")", pos: start}, nil
	case r == '\'' || r == '"':
		return lx.readString(r)
	case unicode.IsDigit(r) || (r == '-' && lx.peekDigit()):
		return lx.readNumber(), nil
	case r == '$':
		return lx.readWhile(tokPath, isPathRune), nil
	case unicode.IsLetter(r) || r == '_':
		tok := lx.readWhile(tokIdent, isIdentRune)
		switch strings.ToLower(tok.text) {
		case "and":
			return token{kind: tokOp, text: "&&", pos: start}, nil
		case "or":
			return token{kind: tokOp, text: "||", pos: start}, nil
		case "not":
			return token{kind: tokOp, text: "!", pos: start}, nil
		}
		return tok, nil
	}
	for _, op := range []string{"==", "!=", "<=", ">=", "&&", "||", "<", ">", "!"} {
		if strings.HasPrefix(string(lx.input[lx.pos:]), op) {
			lx.pos += len(op)
			return token{kind: tokOp, text: op, pos: start}, nil
		}
	}
	return token{}, fmt.Errorf("unexpected character %q at %d", r, start)
}

func (lx *lexer) peekDigit() bool {
	return lx.pos+1 < len(lx.input) && unicode.IsDigit(lx.input[lx.pos+1])
}

func (lx *lexer) readWhile(kind tokenKind, ok func(rune) bool) token {
	start := lx.pos
	lx.pos++
	for lx.pos < len(lx.input) && ok(lx.input[lx.pos]) {
		lx.pos++
	}
	return token{kind: kind, text: string(lx.input[start:lx.pos]), pos: start}
}

func (lx *lexer) readNumber() token {
	start := lx.pos
	lx.pos++
	for lx.pos < len(lx.input) && (unicode.IsDigit(lx.input[lx.pos]) || lx.input[lx.pos] == '.') {
		lx.pos++
	}
	return token{kind: tokNumber, text: string(lx.input[start:lx.pos]), pos: start}
}

func (lx *lexer) readString(quote rune) (token, error) {
	start := lx.pos
	lx.pos++
	var sb strings.Builder
	for lx.pos < len(lx.input) {
		r := lx.input[lx.pos]
		if r == '\\' && lx.pos+1 < len(lx.input) {
			sb.WriteRune(lx.input[lx.pos+1])
			lx.pos += 2
			continue
		}
		if r == quote {
			lx.pos++
			return token{kind: tokString, text: sb.String(), pos: start}, nil
		}
		sb.WriteRune(r)
		lx.pos++
	}
	return token{}, fmt.Errorf("unterminated string at %d", start)
}

func isIdentRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '.'
}

func isPathRune(r rune) bool {
	return isIdentRune(r) || r == '[' || r == ']' || r == '*' || r == '$'
}
