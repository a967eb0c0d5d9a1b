package query

import (
	"fmt"
	"strings"
)

// The intermediate query syntax accepted here: field:value clauses,
// parenthesised groups, [a TO b] / {a TO b} ranges, AND/OR/NOT combinators,
// "*" wildcards, and FUNCNAME(id) traversal markers. Callers decide whether
// a parse failure is the caller's fault or an internal bug, depending on
// where the text came from.

type tokenKind int

const (
	tokWord tokenKind = iota
	tokColon
	tokLParen
	tokRParen
	tokLBracket
	tokRBracket
	tokLBrace
	tokRBrace
	tokAnd
	tokOr
	tokNot
	tokTo
	tokEOF
)

type token struct {
	kind tokenKind
	text string
	pos  int
}

func lex(input string) ([]token, error) {
	var tokens []token
	i := 0
	for i < len(input) {
		c := input[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n':
			i++
		case c == ':':
			tokens = append(tokens, token{kind: tokColon, pos: i})
			i++
		case c == '(':
			tokens = append(tokens, token{kind: tokLParen, pos: i})
			i++
		case c == ')':
			tokens = append(tokens, token{kind: tokRParen, pos: i})
			i++
		case c == '[':
			tokens = append(tokens, token{kind: tokLBracket, pos: i})
			i++
		case c == ']':
			tokens = append(tokens, token{kind: tokRBracket, pos: i})
			i++
		case c == '{':
			tokens = append(tokens, token{kind: tokLBrace, pos: i})
			i++
		case c == '}':
			tokens = append(tokens, token{kind: tokRBrace, pos: i})
			i++
		default:
			start := i
			for i < len(input) && !strings.ContainsRune(" \t\n:()[]{}", rune(input[i])) {
				i++
			}
			word := input[start:i]
			switch word {
			case "AND":
				tokens = append(tokens, token{kind: tokAnd, text: word, pos: start})
			case "OR":
				tokens = append(tokens, token{kind: tokOr, text: word, pos: start})
			case "NOT":
				tokens = append(tokens, token{kind: tokNot, text: word, pos: start})
			case "TO":
				tokens = append(tokens, token{kind: tokTo, text: word, pos: start})
			default:
				tokens = append(tokens, token{kind: tokWord, text: word, pos: start})
			}
		}
	}
	tokens = append(tokens, token{kind: tokEOF, pos: len(input)})
	return tokens, nil
}

type parser struct {
	input  string
	tokens []token
	pos    int
	table  *functionTable
}

// Parse turns intermediate query text into an expression tree. The function
// table tells the parser which words are traversal markers.
func Parse(input string, table *functionTable) (Node, error) {
	if table == nil {
		table = defaultTable
	}
	tokens, err := lex(input)
	if err != nil {
		return nil, err
	}
	p := &parser{input: input, tokens: tokens, table: table}
	node, err := p.parseOr("")
	if err != nil {
		return nil, err
	}
	if p.peek().kind != tokEOF {
		return nil, p.errorf("unexpected trailing input")
	}
	return node, nil
}

func (p *parser) peek() token {
	return p.tokens[p.pos]
}

func (p *parser) next() token {
	t := p.tokens[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

func (p *parser) errorf(format string, args ...any) error {
	return fmt.Errorf("parsing query %q at offset %d: %s",
		truncate(p.input, 200), p.peek().pos, fmt.Sprintf(format, args...))
}

// parseOr handles the lowest-precedence combinator.
func (p *parser) parseOr(field string) (Node, error) {
	left, err := p.parseAnd(field)
	if err != nil {
		return nil, err
	}
	clauses := []Node{left}
	for p.peek().kind == tokOr {
		p.next()
		right, err := p.parseAnd(field)
		if err != nil {
			return nil, err
		}
		clauses = append(clauses, right)
	}
	if len(clauses) == 1 {
		return left, nil
	}
	return &Bool{Op: OpOr, Clauses: clauses}, nil
}

// parseAnd handles AND, including the implicit AND of adjacent clauses.
func (p *parser) parseAnd(field string) (Node, error) {
	left, err := p.parseNot(field)
	if err != nil {
		return nil, err
	}
	clauses := []Node{left}
	for {
		switch p.peek().kind {
		case tokAnd:
			p.next()
		case tokWord, tokLParen, tokLBracket, tokLBrace:
			// adjacency is an implicit AND
		default:
			if len(clauses) == 1 {
				return left, nil
			}
			return &Bool{Op: OpAnd, Clauses: clauses}, nil
		}
		right, err := p.parseNot(field)
		if err != nil {
			return nil, err
		}
		clauses = append(clauses, right)
	}
}

// parseNot handles the binary NOT combinator, which binds tightest.
func (p *parser) parseNot(field string) (Node, error) {
	left, err := p.parseClause(field)
	if err != nil {
		return nil, err
	}
	for p.peek().kind == tokNot {
		p.next()
		right, err := p.parseClause(field)
		if err != nil {
			return nil, err
		}
		left = &Not{Positive: left, Negative: right}
	}
	return left, nil
}

// parseClause handles an optional field qualifier followed by an atom. The
// qualifier distributes over grouped atoms: field:(a OR b).
func (p *parser) parseClause(field string) (Node, error) {
	if p.peek().kind == tokWord && p.tokens[p.pos+1].kind == tokColon {
		fieldToken := p.next()
		p.next() // colon
		return p.parseAtom(fieldToken.text)
	}
	return p.parseAtom(field)
}

func (p *parser) parseAtom(field string) (Node, error) {
	switch t := p.peek(); t.kind {
	case tokLParen:
		p.next()
		node, err := p.parseOr(field)
		if err != nil {
			return nil, err
		}
		if p.peek().kind != tokRParen {
			return nil, p.errorf("expected closing parenthesis")
		}
		p.next()
		return node, nil
	case tokLBracket, tokLBrace:
		return p.parseRange(field)
	case tokWord:
		p.next()
		if fn, ok := p.table.lookup(t.text); ok {
			return p.parseFuncArgs(field, fn)
		}
		return &Term{Field: field, Value: t.text}, nil
	default:
		return nil, p.errorf("expected clause")
	}
}

// parseFuncArgs consumes "(arg)" after a recognised function name. A
// function name without a well-formed argument violates the converter's
// contract.
func (p *parser) parseFuncArgs(field string, fn Function) (Node, error) {
	if p.peek().kind != tokLParen {
		return nil, p.errorf("malformed %s marker: expected argument", fn.Name())
	}
	p.next()
	arg := p.peek()
	if arg.kind != tokWord {
		return nil, p.errorf("malformed %s marker: expected id argument", fn.Name())
	}
	p.next()
	if p.peek().kind != tokRParen {
		return nil, p.errorf("malformed %s marker: expected closing parenthesis", fn.Name())
	}
	p.next()
	return &Func{Field: field, Function: fn, Arg: arg.text}, nil
}

func (p *parser) parseRange(field string) (Node, error) {
	open := p.next()
	incLow := open.kind == tokLBracket
	low := p.peek()
	if low.kind != tokWord {
		return nil, p.errorf("expected range lower bound")
	}
	p.next()
	if p.peek().kind != tokTo {
		return nil, p.errorf("expected TO in range")
	}
	p.next()
	high := p.peek()
	if high.kind != tokWord {
		return nil, p.errorf("expected range upper bound")
	}
	p.next()
	var incHigh bool
	switch p.peek().kind {
	case tokRBracket:
		incHigh = true
	case tokRBrace:
		incHigh = false
	default:
		return nil, p.errorf("expected range closing bracket")
	}
	p.next()
	return &Range{
		Field:   field,
		Low:     low.text,
		High:    high.text,
		IncLow:  incLow,
		IncHigh: incHigh,
	}, nil
}

func truncate(s string, limit int) string {
	if len(s) > limit {
		return s[:limit]
	}
	return s
}
