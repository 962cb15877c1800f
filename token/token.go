// Package token tokenizes engine expression source. It is shared by the
// substitution engine, which needs exact identifier boundaries, and by the
// plan compiler, which shallow-checks which columns an expression mentions.
package token

import (
	"errors"
	"fmt"
	"unicode"
	"unicode/utf8"
)

// ErrMalformed reports source that cannot be tokenized.
var ErrMalformed = errors.New("malformed source")

// Kind tags a token.
type Kind int

const (
	Identifier Kind = iota
	Keyword
	Literal
	Punct
	EOF
)

var kindNames = map[Kind]string{
	Identifier: "IDENT", Keyword: "KEYWORD", Literal: "LITERAL", Punct: "PUNCT", EOF: "EOF",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Token is a single lexical token. Pos and End are byte offsets into the
// original source, so callers can splice replacement text over exact spans.
type Token struct {
	Kind Kind
	Text string // identifier name, keyword, literal text, or punctuation
	Pos  int
	End  int
}

func (t Token) String() string {
	return fmt.Sprintf("%s(%q)@%d", t.Kind, t.Text, t.Pos)
}

var keywords = map[string]bool{
	"and": true, "or": true, "not": true, "is": true,
	"true": true, "false": true, "null": true, "as": true,
}

// multi-byte punctuation, checked before single runes
var punct2 = map[string]bool{
	"==": true, "!=": true, "<=": true, ">=": true,
}

var punct1 = map[rune]bool{
	'|': true, '{': true, '}': true, '(': true, ')': true, ',': true,
	'=': true, '.': true, '+': true, '-': true, '*': true, '/': true,
	'<': true, '>': true,
}

// Tokenize scans src into a token stream ending with an EOF token.
func Tokenize(src string) ([]Token, error) {
	var tokens []Token
	i := 0
	for i < len(src) {
		r, size := utf8.DecodeRuneInString(src[i:])
		if r == utf8.RuneError && size == 1 {
			return nil, fmt.Errorf("%w: invalid UTF-8 at offset %d", ErrMalformed, i)
		}

		if unicode.IsSpace(r) {
			i += size
			continue
		}

		// line comment
		if r == '/' && i+1 < len(src) && src[i+1] == '/' {
			for i < len(src) && src[i] != '\n' {
				i++
			}
			continue
		}

		if i+2 <= len(src) && punct2[src[i:i+2]] {
			tokens = append(tokens, Token{Punct, src[i : i+2], i, i + 2})
			i += 2
			continue
		}
		if punct1[r] {
			tokens = append(tokens, Token{Punct, string(r), i, i + size})
			i += size
			continue
		}

		switch {
		case r == '"':
			tok, next, err := scanString(src, i)
			if err != nil {
				return nil, err
			}
			tokens = append(tokens, tok)
			i = next
		case r == '`':
			tok, next, err := scanBacktick(src, i)
			if err != nil {
				return nil, err
			}
			tokens = append(tokens, tok)
			i = next
		case unicode.IsDigit(r):
			tok, next := scanNumber(src, i)
			tokens = append(tokens, tok)
			i = next
		case isIdentStart(r):
			tok, next := scanIdent(src, i)
			tokens = append(tokens, tok)
			i = next
		default:
			return nil, fmt.Errorf("%w: unexpected character %q at offset %d", ErrMalformed, r, i)
		}
	}
	tokens = append(tokens, Token{EOF, "", len(src), len(src)})
	return tokens, nil
}

func scanString(src string, start int) (Token, int, error) {
	i := start + 1
	for i < len(src) {
		switch src[i] {
		case '\\':
			i += 2
		case '"':
			return Token{Literal, src[start : i+1], start, i + 1}, i + 1, nil
		default:
			i++
		}
	}
	return Token{}, 0, fmt.Errorf("%w: unterminated string at offset %d", ErrMalformed, start)
}

func scanBacktick(src string, start int) (Token, int, error) {
	i := start + 1
	for i < len(src) {
		if src[i] == '`' {
			// Text is the quoted name without the backticks.
			return Token{Identifier, src[start+1 : i], start, i + 1}, i + 1, nil
		}
		i++
	}
	return Token{}, 0, fmt.Errorf("%w: unterminated backtick identifier at offset %d", ErrMalformed, start)
}

func scanNumber(src string, start int) (Token, int) {
	i := start
	for i < len(src) && unicode.IsDigit(rune(src[i])) {
		i++
	}
	if i < len(src) && src[i] == '.' && i+1 < len(src) && unicode.IsDigit(rune(src[i+1])) {
		i++
		for i < len(src) && unicode.IsDigit(rune(src[i])) {
			i++
		}
	}
	return Token{Literal, src[start:i], start, i}, i
}

func scanIdent(src string, start int) (Token, int) {
	i := start
	for i < len(src) {
		r, size := utf8.DecodeRuneInString(src[i:])
		if !isIdentPart(r) {
			break
		}
		i += size
	}
	text := src[start:i]
	if keywords[text] {
		return Token{Keyword, text, start, i}, i
	}
	return Token{Identifier, text, start, i}, i
}

func isIdentStart(r rune) bool {
	return unicode.IsLetter(r) || r == '_'
}

func isIdentPart(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_'
}

// Identifiers returns the set of identifier names occurring in tokens.
// Function-call heads are included; the caller decides whether they matter.
func Identifiers(tokens []Token) map[string]bool {
	set := make(map[string]bool)
	for _, t := range tokens {
		if t.Kind == Identifier {
			set[t.Text] = true
		}
	}
	return set
}

// ColumnRefs returns, in order of first occurrence, the identifiers in
// tokens that read as column references: identifiers not immediately
// followed by an opening parenthesis (those are function-call heads).
func ColumnRefs(tokens []Token) []string {
	seen := make(map[string]bool)
	var refs []string
	for i, t := range tokens {
		if t.Kind != Identifier {
			continue
		}
		if i+1 < len(tokens) && tokens[i+1].Kind == Punct && tokens[i+1].Text == "(" {
			continue
		}
		if !seen[t.Text] {
			seen[t.Text] = true
			refs = append(refs, t.Text)
		}
	}
	return refs
}
