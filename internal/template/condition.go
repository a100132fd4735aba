package template

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// Section variants are gated by a deliberately small boolean expression
// language evaluated against the generation options:
//
//	comparison: ident (== != >= <= > <) literal
//	literal:    "string" | 'string' | number | true | false
//	combined:   expr && expr, expr || expr, !expr, ( expr )
//
// Identifiers resolve against the option map only; an unknown identifier
// is an error, not false. A general-purpose evaluator is intentionally
// not used here: template files are operator-supplied data, and the
// expression surface must stay sandboxed.

// EvalCondition evaluates expr against vars.
func EvalCondition(expr string, vars map[string]any) (bool, error) {
	tokens, err := tokenize(expr)
	if err != nil {
		return false, err
	}
	p := &condParser{tokens: tokens, vars: vars}
	result, err := p.parseOr()
	if err != nil {
		return false, err
	}
	if p.pos != len(p.tokens) {
		return false, fmt.Errorf("condition %q: unexpected token %q", expr, p.tokens[p.pos].text)
	}
	return result, nil
}

type tokenKind int

const (
	tokIdent tokenKind = iota
	tokNumber
	tokString
	tokOp
	tokLParen
	tokRParen
)

type token struct {
	kind tokenKind
	text string
}

func tokenize(expr string) ([]token, error) {
	var tokens []token
	runes := []rune(expr)
	i := 0
	for i < len(runes) {
		r := runes[i]
		switch {
		case unicode.IsSpace(r):
			i++
		case r == '(':
			tokens = append(tokens, token{tokLParen, "("})
			i++
		case r == ')':
			tokens = append(tokens, token{tokRParen, ")"})
			i++
		case r == '"' || r == '\'':
			quote := r
			j := i + 1
			for j < len(runes) && runes[j] != quote {
				j++
			}
			if j == len(runes) {
				return nil, fmt.Errorf("condition %q: unterminated string", expr)
			}
			tokens = append(tokens, token{tokString, string(runes[i+1 : j])})
			i = j + 1
		case strings.ContainsRune("=!<>&|", r):
			j := i
			for j < len(runes) && strings.ContainsRune("=!<>&|", runes[j]) {
				j++
			}
			op := string(runes[i:j])
			switch op {
			case "==", "!=", ">=", "<=", ">", "<", "&&", "||", "!":
				tokens = append(tokens, token{tokOp, op})
			default:
				return nil, fmt.Errorf("condition %q: unknown operator %q", expr, op)
			}
			i = j
		case unicode.IsDigit(r) || r == '-':
			j := i + 1
			for j < len(runes) && (unicode.IsDigit(runes[j]) || runes[j] == '.') {
				j++
			}
			tokens = append(tokens, token{tokNumber, string(runes[i:j])})
			i = j
		case unicode.IsLetter(r) || r == '_':
			j := i
			for j < len(runes) && (unicode.IsLetter(runes[j]) || unicode.IsDigit(runes[j]) || runes[j] == '_') {
				j++
			}
			tokens = append(tokens, token{tokIdent, string(runes[i:j])})
			i = j
		default:
			return nil, fmt.Errorf("condition %q: unexpected character %q", expr, r)
		}
	}
	return tokens, nil
}

type condParser struct {
	tokens []token
	pos    int
	vars   map[string]any
}

func (p *condParser) peek() (token, bool) {
	if p.pos >= len(p.tokens) {
		return token{}, false
	}
	return p.tokens[p.pos], true
}

func (p *condParser) parseOr() (bool, error) {
	left, err := p.parseAnd()
	if err != nil {
		return false, err
	}
	for {
		tok, ok := p.peek()
		if !ok || tok.kind != tokOp || tok.text != "||" {
			return left, nil
		}
		p.pos++
		right, err := p.parseAnd()
		if err != nil {
			return false, err
		}
		left = left || right
	}
}

func (p *condParser) parseAnd() (bool, error) {
	left, err := p.parseUnary()
	if err != nil {
		return false, err
	}
	for {
		tok, ok := p.peek()
		if !ok || tok.kind != tokOp || tok.text != "&&" {
			return left, nil
		}
		p.pos++
		right, err := p.parseUnary()
		if err != nil {
			return false, err
		}
		left = left && right
	}
}

func (p *condParser) parseUnary() (bool, error) {
	tok, ok := p.peek()
	if ok && tok.kind == tokOp && tok.text == "!" {
		p.pos++
		value, err := p.parseUnary()
		if err != nil {
			return false, err
		}
		return !value, nil
	}
	return p.parsePrimary()
}

func (p *condParser) parsePrimary() (bool, error) {
	tok, ok := p.peek()
	if !ok {
		return false, fmt.Errorf("condition: unexpected end of expression")
	}

	if tok.kind == tokLParen {
		p.pos++
		value, err := p.parseOr()
		if err != nil {
			return false, err
		}
		closing, ok := p.peek()
		if !ok || closing.kind != tokRParen {
			return false, fmt.Errorf("condition: missing closing parenthesis")
		}
		p.pos++
		return value, nil
	}

	if tok.kind != tokIdent {
		return false, fmt.Errorf("condition: expected identifier, got %q", tok.text)
	}
	p.pos++

	value, exists := p.vars[tok.text]
	if !exists {
		return false, fmt.Errorf("condition: unknown option %q", tok.text)
	}

	next, ok := p.peek()
	if !ok || next.kind != tokOp || !isComparisonOp(next.text) {
		// Bare identifier: must be a boolean option.
		b, isBool := value.(bool)
		if !isBool {
			return false, fmt.Errorf("condition: option %q used as boolean but is %T", tok.text, value)
		}
		return b, nil
	}
	op := next.text
	p.pos++

	lit, ok := p.peek()
	if !ok || (lit.kind != tokNumber && lit.kind != tokString && lit.kind != tokIdent) {
		return false, fmt.Errorf("condition: expected literal after %q", op)
	}
	p.pos++

	return compare(tok.text, value, op, lit)
}

func isComparisonOp(op string) bool {
	switch op {
	case "==", "!=", ">=", "<=", ">", "<":
		return true
	}
	return false
}

func compare(name string, value any, op string, lit token) (bool, error) {
	// Bare-word literals cover booleans (true/false) and unquoted strings.
	if lit.kind == tokIdent {
		switch lit.text {
		case "true", "false":
			b, isBool := value.(bool)
			if !isBool {
				return false, fmt.Errorf("condition: option %q is %T, compared with boolean", name, value)
			}
			want := lit.text == "true"
			switch op {
			case "==":
				return b == want, nil
			case "!=":
				return b != want, nil
			}
			return false, fmt.Errorf("condition: operator %q not valid for booleans", op)
		}
		lit.kind = tokString
	}

	if lit.kind == tokNumber {
		num, err := toNumber(value)
		if err != nil {
			return false, fmt.Errorf("condition: option %q: %w", name, err)
		}
		want, err := strconv.ParseFloat(lit.text, 64)
		if err != nil {
			return false, fmt.Errorf("condition: bad number literal %q", lit.text)
		}
		switch op {
		case "==":
			return num == want, nil
		case "!=":
			return num != want, nil
		case ">=":
			return num >= want, nil
		case "<=":
			return num <= want, nil
		case ">":
			return num > want, nil
		case "<":
			return num < want, nil
		}
	}

	s, isString := value.(string)
	if !isString {
		return false, fmt.Errorf("condition: option %q is %T, compared with string", name, value)
	}
	switch op {
	case "==":
		return s == lit.text, nil
	case "!=":
		return s != lit.text, nil
	}
	return false, fmt.Errorf("condition: operator %q not valid for strings", op)
}

func toNumber(value any) (float64, error) {
	switch v := value.(type) {
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case float64:
		return v, nil
	}
	return 0, fmt.Errorf("value %v is not numeric", value)
}
