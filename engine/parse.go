package engine

import (
	"fmt"
	"strconv"
	"strings"

	"tabq/token"
)

// exprParser is a precedence-climbing parser over the shared token stream.
// It sees the same identifier boundaries the compiler's shallow check sees.
type exprParser struct {
	tokens []token.Token
	pos    int
}

// ParseExpr parses one engine expression fragment.
func ParseExpr(src string) (Expr, error) {
	tokens, err := token.Tokenize(src)
	if err != nil {
		return nil, err
	}
	p := &exprParser{tokens: tokens}
	expr, err := p.parseExpr(precOr)
	if err != nil {
		return nil, err
	}
	if tok := p.peek(); tok.Kind != token.EOF {
		return nil, fmt.Errorf("unexpected %s (%q) at offset %d", tok.Kind, tok.Text, tok.Pos)
	}
	return expr, nil
}

func (p *exprParser) peek() token.Token {
	if p.pos >= len(p.tokens) {
		return token.Token{Kind: token.EOF}
	}
	return p.tokens[p.pos]
}

func (p *exprParser) advance() token.Token {
	tok := p.peek()
	if p.pos < len(p.tokens) {
		p.pos++
	}
	return tok
}

// Precedence levels
const (
	precOr   = 1
	precAnd  = 2
	precComp = 3
	precAdd  = 4
	precMul  = 5
)

func (p *exprParser) parseExpr(minPrec int) (Expr, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}

	for {
		op, prec, ok := p.peekBinaryOp()
		if !ok || prec < minPrec {
			break
		}
		p.advance()

		right, err := p.parseExpr(prec + 1) // left-associative
		if err != nil {
			return nil, err
		}
		left = &BinaryExpr{Op: op, Left: left, Right: right}
	}

	return left, nil
}

func (p *exprParser) peekBinaryOp() (string, int, bool) {
	tok := p.peek()
	switch tok.Kind {
	case token.Keyword:
		switch tok.Text {
		case "or":
			return "or", precOr, true
		case "and":
			return "and", precAnd, true
		}
	case token.Punct:
		switch tok.Text {
		case "==", "!=":
			return tok.Text, precComp, true
		case "<", ">", "<=", ">=":
			return tok.Text, precComp, true
		case "+", "-":
			return tok.Text, precAdd, true
		case "*", "/":
			return tok.Text, precMul, true
		}
	}
	return "", 0, false
}

func (p *exprParser) parseUnary() (Expr, error) {
	tok := p.peek()
	if tok.Kind == token.Keyword && tok.Text == "not" {
		p.advance()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &UnaryExpr{Op: "not", Operand: operand}, nil
	}
	if tok.Kind == token.Punct && tok.Text == "-" {
		p.advance()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &UnaryExpr{Op: "-", Operand: operand}, nil
	}
	expr, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	return p.parsePostfix(expr)
}

// parsePostfix handles "is [not] null", which binds tighter than any binary
// operator.
func (p *exprParser) parsePostfix(operand Expr) (Expr, error) {
	if tok := p.peek(); tok.Kind != token.Keyword || tok.Text != "is" {
		return operand, nil
	}
	p.advance()
	negated := false
	if tok := p.peek(); tok.Kind == token.Keyword && tok.Text == "not" {
		p.advance()
		negated = true
	}
	tok := p.advance()
	if tok.Kind != token.Keyword || tok.Text != "null" {
		return nil, fmt.Errorf("expected 'null' after 'is', got %q at offset %d", tok.Text, tok.Pos)
	}
	return &IsNullExpr{Operand: operand, Negated: negated}, nil
}

func (p *exprParser) parsePrimary() (Expr, error) {
	tok := p.peek()

	switch tok.Kind {
	case token.Literal:
		p.advance()
		return parseLiteral(tok)

	case token.Keyword:
		p.advance()
		switch tok.Text {
		case "true":
			return &LiteralExpr{Kind: "bool", Bool: true}, nil
		case "false":
			return &LiteralExpr{Kind: "bool", Bool: false}, nil
		case "null":
			return &LiteralExpr{Kind: "null"}, nil
		}
		return nil, fmt.Errorf("unexpected keyword %q at offset %d", tok.Text, tok.Pos)

	case token.Identifier:
		p.advance()
		if next := p.peek(); next.Kind == token.Punct && next.Text == "(" {
			return p.parseCall(tok.Text)
		}
		return &ColumnExpr{Name: tok.Text}, nil

	case token.Punct:
		if tok.Text == "(" {
			p.advance()
			expr, err := p.parseExpr(precOr)
			if err != nil {
				return nil, err
			}
			if closing := p.advance(); closing.Kind != token.Punct || closing.Text != ")" {
				return nil, fmt.Errorf("expected ')', got %q at offset %d", closing.Text, closing.Pos)
			}
			return expr, nil
		}
	}

	return nil, fmt.Errorf("unexpected %s (%q) at offset %d", tok.Kind, tok.Text, tok.Pos)
}

func (p *exprParser) parseCall(name string) (Expr, error) {
	p.advance() // consume (

	var args []Expr
	if tok := p.peek(); tok.Kind == token.Punct && tok.Text == ")" {
		p.advance()
		return &CallExpr{Name: name}, nil
	}

	for {
		arg, err := p.parseExpr(precOr)
		if err != nil {
			return nil, err
		}
		args = append(args, arg)

		tok := p.advance()
		if tok.Kind == token.Punct && tok.Text == ")" {
			break
		}
		if tok.Kind != token.Punct || tok.Text != "," {
			return nil, fmt.Errorf("expected ',' or ')' in %s(), got %q at offset %d", name, tok.Text, tok.Pos)
		}
	}
	return &CallExpr{Name: name, Args: args}, nil
}

func parseLiteral(tok token.Token) (Expr, error) {
	text := tok.Text
	if strings.HasPrefix(text, `"`) {
		return &LiteralExpr{Kind: "string", Str: unquote(text)}, nil
	}
	if strings.Contains(text, ".") {
		v, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid float %q: %w", text, err)
		}
		return &LiteralExpr{Kind: "float", Float: v}, nil
	}
	v, err := strconv.ParseInt(text, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid integer %q: %w", text, err)
	}
	return &LiteralExpr{Kind: "int", Int: v}, nil
}

// unquote strips the surrounding quotes and resolves the escape sequences
// the tokenizer accepts.
func unquote(s string) string {
	s = s[1 : len(s)-1]
	if !strings.Contains(s, `\`) {
		return s
	}
	var sb strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) {
			switch s[i+1] {
			case '"':
				sb.WriteByte('"')
			case '\\':
				sb.WriteByte('\\')
			case 'n':
				sb.WriteByte('\n')
			case 't':
				sb.WriteByte('\t')
			default:
				sb.WriteByte(s[i])
				sb.WriteByte(s[i+1])
			}
			i++
			continue
		}
		sb.WriteByte(s[i])
	}
	return sb.String()
}
