package model

import (
	"fmt"
	"strings"
)

// ParseExpr parses expression text in the model grammar: measure bodies
// such as "SUM(@amount) - SUM(@cost)" and filter predicates such as
// `sales.status = "complete" AND sales.qty > 2`.
//
// Grammar (loosest binding first):
//
//	expr    := or
//	or      := and (OR and)*
//	and     := cmp (AND cmp)*
//	cmp     := add ((= | != | <> | < | <= | > | >=) add)?
//	add     := mul ((+ | -) mul)*
//	mul     := unary ((* | /) unary)*
//	unary   := - unary | NOT unary | primary
//	primary := NUMBER | STRING | @ident | ident | ident.ident
//	         | ident "(" expr ("," expr)* ")" | "(" expr ")"
func ParseExpr(input string) (Expr, error) {
	toks, err := lex(input)
	if err != nil {
		return nil, err
	}
	p := &exprParser{input: input, toks: toks}
	e, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if !p.atEnd() {
		t := p.peek()
		return nil, fmt.Errorf("unexpected %q at offset %d in %q", t.text, t.pos, input)
	}
	return e, nil
}

type tokKind int

const (
	tokNumber tokKind = iota
	tokString
	tokIdent
	tokAtom   // @name
	tokOp     // punctuation operators
	tokLParen
	tokRParen
	tokComma
	tokDot
)

type token struct {
	kind tokKind
	text string
	pos  int
}

func lex(input string) ([]token, error) {
	var toks []token
	i := 0
	for i < len(input) {
		c := input[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case c == '(':
			toks = append(toks, token{tokLParen, "(", i})
			i++
		case c == ')':
			toks = append(toks, token{tokRParen, ")", i})
			i++
		case c == ',':
			toks = append(toks, token{tokComma, ",", i})
			i++
		case c == '.':
			toks = append(toks, token{tokDot, ".", i})
			i++
		case c == '@':
			start := i + 1
			j := start
			for j < len(input) && isIdentByte(input[j]) {
				j++
			}
			if j == start {
				return nil, fmt.Errorf("bare '@' at offset %d in %q", i, input)
			}
			toks = append(toks, token{tokAtom, input[start:j], i})
			i = j
		case c == '\'' || c == '"':
			quote := c
			j := i + 1
			var sb strings.Builder
			for j < len(input) && input[j] != quote {
				sb.WriteByte(input[j])
				j++
			}
			if j >= len(input) {
				return nil, fmt.Errorf("unterminated string at offset %d in %q", i, input)
			}
			toks = append(toks, token{tokString, sb.String(), i})
			i = j + 1
		case c >= '0' && c <= '9':
			j := i
			seenDot := false
			for j < len(input) && (input[j] >= '0' && input[j] <= '9' || input[j] == '.' && !seenDot) {
				if input[j] == '.' {
					// A dot not followed by a digit belongs to qualification,
					// not the number.
					if j+1 >= len(input) || input[j+1] < '0' || input[j+1] > '9' {
						break
					}
					seenDot = true
				}
				j++
			}
			toks = append(toks, token{tokNumber, input[i:j], i})
			i = j
		case isIdentStartByte(c):
			j := i
			for j < len(input) && isIdentByte(input[j]) {
				j++
			}
			toks = append(toks, token{tokIdent, input[i:j], i})
			i = j
		default:
			// Multi-byte punctuation operators.
			two := ""
			if i+1 < len(input) {
				two = input[i : i+2]
			}
			switch two {
			case "!=", "<>", "<=", ">=":
				op := two
				if op == "<>" {
					op = "!="
				}
				toks = append(toks, token{tokOp, op, i})
				i += 2
				continue
			}
			switch c {
			case '=', '<', '>', '+', '-', '*', '/':
				toks = append(toks, token{tokOp, string(c), i})
				i++
			default:
				return nil, fmt.Errorf("unexpected character %q at offset %d in %q", string(c), i, input)
			}
		}
	}
	return toks, nil
}

func isIdentStartByte(c byte) bool {
	return c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
}

func isIdentByte(c byte) bool {
	return isIdentStartByte(c) || c >= '0' && c <= '9'
}

type exprParser struct {
	input string
	toks  []token
	pos   int
}

func (p *exprParser) atEnd() bool { return p.pos >= len(p.toks) }

func (p *exprParser) peek() token {
	if p.atEnd() {
		return token{kind: tokOp, text: "<end>", pos: len(p.input)}
	}
	return p.toks[p.pos]
}

func (p *exprParser) next() token {
	t := p.peek()
	p.pos++
	return t
}

// acceptKeyword consumes an identifier token matching word (case-insensitive).
func (p *exprParser) acceptKeyword(word string) bool {
	t := p.peek()
	if t.kind == tokIdent && strings.EqualFold(t.text, word) {
		p.pos++
		return true
	}
	return false
}

func (p *exprParser) acceptOp(ops ...string) (string, bool) {
	t := p.peek()
	if t.kind != tokOp {
		return "", false
	}
	for _, op := range ops {
		if t.text == op {
			p.pos++
			return op, true
		}
	}
	return "", false
}

func (p *exprParser) parseOr() (Expr, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.acceptKeyword("OR") {
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = Binary{Op: OpOr, Left: left, Right: right}
	}
	return left, nil
}

func (p *exprParser) parseAnd() (Expr, error) {
	left, err := p.parseCmp()
	if err != nil {
		return nil, err
	}
	for p.acceptKeyword("AND") {
		right, err := p.parseCmp()
		if err != nil {
			return nil, err
		}
		left = Binary{Op: OpAnd, Left: left, Right: right}
	}
	return left, nil
}

func (p *exprParser) parseCmp() (Expr, error) {
	left, err := p.parseAdd()
	if err != nil {
		return nil, err
	}
	if op, ok := p.acceptOp("=", "!=", "<=", ">=", "<", ">"); ok {
		right, err := p.parseAdd()
		if err != nil {
			return nil, err
		}
		return Binary{Op: BinaryOp(op), Left: left, Right: right}, nil
	}
	return left, nil
}

func (p *exprParser) parseAdd() (Expr, error) {
	left, err := p.parseMul()
	if err != nil {
		return nil, err
	}
	for {
		op, ok := p.acceptOp("+", "-")
		if !ok {
			return left, nil
		}
		right, err := p.parseMul()
		if err != nil {
			return nil, err
		}
		left = Binary{Op: BinaryOp(op), Left: left, Right: right}
	}
}

func (p *exprParser) parseMul() (Expr, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		op, ok := p.acceptOp("*", "/")
		if !ok {
			return left, nil
		}
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = Binary{Op: BinaryOp(op), Left: left, Right: right}
	}
}

func (p *exprParser) parseUnary() (Expr, error) {
	if _, ok := p.acceptOp("-"); ok {
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return Unary{Op: OpNeg, Operand: operand}, nil
	}
	if p.acceptKeyword("NOT") {
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return Unary{Op: OpNot, Operand: operand}, nil
	}
	return p.parsePrimary()
}

func (p *exprParser) parsePrimary() (Expr, error) {
	t := p.next()
	switch t.kind {
	case tokNumber:
		return NumberLit{Text: t.text}, nil
	case tokString:
		return StringLit{Value: t.text}, nil
	case tokAtom:
		return AtomRef{Name: t.text}, nil
	case tokLParen:
		e, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if p.peek().kind != tokRParen {
			return nil, fmt.Errorf("missing ')' at offset %d in %q", p.peek().pos, p.input)
		}
		p.pos++
		return e, nil
	case tokIdent:
		// Function call?
		if p.peek().kind == tokLParen {
			p.pos++
			call := FuncCall{Name: strings.ToUpper(t.text)}
			if p.peek().kind == tokRParen {
				p.pos++
				return call, nil
			}
			for {
				arg, err := p.parseOr()
				if err != nil {
					return nil, err
				}
				call.Args = append(call.Args, arg)
				if p.peek().kind == tokComma {
					p.pos++
					continue
				}
				break
			}
			if p.peek().kind != tokRParen {
				return nil, fmt.Errorf("missing ')' in call to %s at offset %d in %q", call.Name, p.peek().pos, p.input)
			}
			p.pos++
			return call, nil
		}
		// Qualified column?
		if p.peek().kind == tokDot {
			p.pos++
			col := p.next()
			if col.kind != tokIdent {
				return nil, fmt.Errorf("expected column name after %q. at offset %d in %q", t.text, col.pos, p.input)
			}
			return ColRef{Ref: ColumnRef{Entity: t.text, Column: col.text}}, nil
		}
		return ColRef{Ref: ColumnRef{Column: t.text}}, nil
	default:
		return nil, fmt.Errorf("unexpected %q at offset %d in %q", t.text, t.pos, p.input)
	}
}
