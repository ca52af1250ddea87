package config

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// parseLiteral converts a value printed by `ansible-config dump` into a Go
// value. The engine prints Python literals: quoted strings, lists, dicts,
// True/False/None, ints and floats. Anything that does not scan cleanly is
// returned as the raw string, which matches how consumers treated unparsable
// values historically.
func parseLiteral(s string) interface{} {
	p := &literalParser{input: strings.TrimSpace(s)}
	v, err := p.parseValue()
	if err != nil || !p.atEnd() {
		return s
	}
	return v
}

type literalParser struct {
	input string
	pos   int
}

func (p *literalParser) atEnd() bool {
	p.skipSpace()
	return p.pos >= len(p.input)
}

func (p *literalParser) skipSpace() {
	for p.pos < len(p.input) && unicode.IsSpace(rune(p.input[p.pos])) {
		p.pos++
	}
}

func (p *literalParser) peek() (byte, bool) {
	p.skipSpace()
	if p.pos >= len(p.input) {
		return 0, false
	}
	return p.input[p.pos], true
}

func (p *literalParser) parseValue() (interface{}, error) {
	c, ok := p.peek()
	if !ok {
		return nil, fmt.Errorf("unexpected end of input")
	}
	switch {
	case c == '\'' || c == '"':
		return p.parseString(c)
	case c == '[':
		return p.parseList()
	case c == '(':
		return p.parseTuple()
	case c == '{':
		return p.parseDict()
	default:
		return p.parseBare()
	}
}

func (p *literalParser) parseString(quote byte) (string, error) {
	p.pos++ // opening quote
	var sb strings.Builder
	for p.pos < len(p.input) {
		c := p.input[p.pos]
		switch c {
		case '\\':
			if p.pos+1 >= len(p.input) {
				return "", fmt.Errorf("dangling escape")
			}
			next := p.input[p.pos+1]
			switch next {
			case 'n':
				sb.WriteByte('\n')
			case 't':
				sb.WriteByte('\t')
			case 'r':
				sb.WriteByte('\r')
			default:
				sb.WriteByte(next)
			}
			p.pos += 2
		case quote:
			p.pos++
			return sb.String(), nil
		default:
			sb.WriteByte(c)
			p.pos++
		}
	}
	return "", fmt.Errorf("unterminated string")
}

func (p *literalParser) parseSequence(open, close byte) ([]interface{}, error) {
	p.pos++ // opening bracket
	items := []interface{}{}
	for {
		c, ok := p.peek()
		if !ok {
			return nil, fmt.Errorf("unterminated sequence")
		}
		if c == close {
			p.pos++
			return items, nil
		}
		v, err := p.parseValue()
		if err != nil {
			return nil, err
		}
		items = append(items, v)
		c, ok = p.peek()
		if !ok {
			return nil, fmt.Errorf("unterminated sequence")
		}
		if c == ',' {
			p.pos++
			continue
		}
		if c != close {
			return nil, fmt.Errorf("unexpected character %q in sequence", c)
		}
	}
}

func (p *literalParser) parseList() (interface{}, error) {
	v, err := p.parseSequence('[', ']')
	return v, err
}

func (p *literalParser) parseTuple() (interface{}, error) {
	v, err := p.parseSequence('(', ')')
	return v, err
}

func (p *literalParser) parseDict() (interface{}, error) {
	p.pos++ // opening brace
	out := map[string]interface{}{}
	for {
		c, ok := p.peek()
		if !ok {
			return nil, fmt.Errorf("unterminated dict")
		}
		if c == '}' {
			p.pos++
			return out, nil
		}
		key, err := p.parseValue()
		if err != nil {
			return nil, err
		}
		c, ok = p.peek()
		if !ok || c != ':' {
			return nil, fmt.Errorf("expected ':' in dict")
		}
		p.pos++
		val, err := p.parseValue()
		if err != nil {
			return nil, err
		}
		out[fmt.Sprintf("%v", key)] = val
		c, ok = p.peek()
		if !ok {
			return nil, fmt.Errorf("unterminated dict")
		}
		if c == ',' {
			p.pos++
			continue
		}
		if c != '}' {
			return nil, fmt.Errorf("unexpected character %q in dict", c)
		}
	}
}

// parseBare handles unquoted tokens: True/False/None and numbers. Bare
// words terminate at a separator so they compose inside sequences.
func (p *literalParser) parseBare() (interface{}, error) {
	p.skipSpace()
	start := p.pos
	for p.pos < len(p.input) {
		c := p.input[p.pos]
		if c == ',' || c == ']' || c == ')' || c == '}' || c == ':' {
			break
		}
		p.pos++
	}
	token := strings.TrimSpace(p.input[start:p.pos])
	switch token {
	case "True":
		return true, nil
	case "False":
		return false, nil
	case "None":
		return nil, nil
	}
	if i, err := strconv.ParseInt(token, 10, 64); err == nil {
		return int(i), nil
	}
	if f, err := strconv.ParseFloat(token, 64); err == nil {
		return f, nil
	}
	return nil, fmt.Errorf("unrecognized literal %q", token)
}
