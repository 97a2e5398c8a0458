/**
 * PDF object parser
 *
 * Byte-slice parser for COS syntax: dictionaries, arrays, names,
 * numbers, strings, references and streams.
 */

package pdf

import (
	"bytes"
	"fmt"
	"strconv"
)

type parser struct {
	data []byte
	pos  int
}

func newParser(data []byte, pos int) *parser {
	return &parser{data: data, pos: pos}
}

func isWhitespace(c byte) bool {
	return c == 0x00 || c == 0x09 || c == 0x0a || c == 0x0c || c == 0x0d || c == 0x20
}

func isDelimiter(c byte) bool {
	switch c {
	case '(', ')', '<', '>', '[', ']', '{', '}', '/', '%':
		return true
	}
	return false
}

func (p *parser) skipWhitespace() {
	for p.pos < len(p.data) {
		c := p.data[p.pos]
		if isWhitespace(c) {
			p.pos++
			continue
		}
		if c == '%' {
			// Comment runs to end of line
			for p.pos < len(p.data) && p.data[p.pos] != '\n' && p.data[p.pos] != '\r' {
				p.pos++
			}
			continue
		}
		break
	}
}

func (p *parser) peek() byte {
	if p.pos < len(p.data) {
		return p.data[p.pos]
	}
	return 0
}

func (p *parser) hasPrefix(s string) bool {
	return bytes.HasPrefix(p.data[p.pos:], []byte(s))
}

// readKeyword reads a bare keyword token (obj, endobj, stream, R, ...)
func (p *parser) readKeyword() string {
	start := p.pos
	for p.pos < len(p.data) {
		c := p.data[p.pos]
		if isWhitespace(c) || isDelimiter(c) {
			break
		}
		p.pos++
	}
	return string(p.data[start:p.pos])
}

// parseObject parses the next object at the current position
func (p *parser) parseObject() (Object, error) {
	p.skipWhitespace()
	if p.pos >= len(p.data) {
		return nil, fmt.Errorf("pdf: unexpected end of data")
	}

	c := p.peek()
	switch {
	case p.hasPrefix("<<"):
		return p.parseDictOrStream()
	case c == '<':
		return p.parseHexString()
	case c == '(':
		return p.parseLiteralString()
	case c == '/':
		return p.parseName()
	case c == '[':
		return p.parseArray()
	case c == '+' || c == '-' || c == '.' || (c >= '0' && c <= '9'):
		return p.parseNumberOrRef()
	case p.hasPrefix("true"):
		p.pos += 4
		return Bool(true), nil
	case p.hasPrefix("false"):
		p.pos += 5
		return Bool(false), nil
	case p.hasPrefix("null"):
		p.pos += 4
		return Null{}, nil
	}

	return nil, fmt.Errorf("pdf: unexpected byte %q at offset %d", c, p.pos)
}

func (p *parser) parseName() (Name, error) {
	if p.peek() != '/' {
		return "", fmt.Errorf("pdf: expected name at offset %d", p.pos)
	}
	p.pos++

	var sb bytes.Buffer
	for p.pos < len(p.data) {
		c := p.data[p.pos]
		if isWhitespace(c) || isDelimiter(c) {
			break
		}
		if c == '#' && p.pos+2 < len(p.data) {
			if v, err := strconv.ParseUint(string(p.data[p.pos+1:p.pos+3]), 16, 8); err == nil {
				sb.WriteByte(byte(v))
				p.pos += 3
				continue
			}
		}
		sb.WriteByte(c)
		p.pos++
	}
	return Name(sb.String()), nil
}

func (p *parser) parseNumberOrRef() (Object, error) {
	first, isInt, err := p.parseNumber()
	if err != nil {
		return nil, err
	}

	if isInt {
		// Lookahead for "gen R"
		save := p.pos
		p.skipWhitespace()
		if p.pos < len(p.data) && p.data[p.pos] >= '0' && p.data[p.pos] <= '9' {
			gen, genIsInt, err := p.parseNumber()
			if err == nil && genIsInt {
				p.skipWhitespace()
				if p.pos < len(p.data) && p.data[p.pos] == 'R' {
					next := byte(0)
					if p.pos+1 < len(p.data) {
						next = p.data[p.pos+1]
					}
					if next == 0 || isWhitespace(next) || isDelimiter(next) {
						p.pos++
						return Ref{Num: int(first.(Integer)), Gen: int(gen.(Integer))}, nil
					}
				}
			}
		}
		p.pos = save
	}

	return first, nil
}

func (p *parser) parseNumber() (Object, bool, error) {
	start := p.pos
	if p.peek() == '+' || p.peek() == '-' {
		p.pos++
	}
	isReal := false
	for p.pos < len(p.data) {
		c := p.data[p.pos]
		if c >= '0' && c <= '9' {
			p.pos++
		} else if c == '.' {
			isReal = true
			p.pos++
		} else {
			break
		}
	}

	token := string(p.data[start:p.pos])
	if isReal {
		v, err := strconv.ParseFloat(token, 64)
		if err != nil {
			return nil, false, fmt.Errorf("pdf: bad real %q: %w", token, err)
		}
		return Real(v), false, nil
	}

	v, err := strconv.ParseInt(token, 10, 64)
	if err != nil {
		return nil, false, fmt.Errorf("pdf: bad integer %q: %w", token, err)
	}
	return Integer(v), true, nil
}

func (p *parser) parseHexString() (String, error) {
	p.pos++ // consume '<'
	var out bytes.Buffer
	var hi byte
	haveHi := false

	for p.pos < len(p.data) {
		c := p.data[p.pos]
		p.pos++
		if c == '>' {
			if haveHi {
				out.WriteByte(hexVal(hi) << 4)
			}
			return String(out.Bytes()), nil
		}
		if isWhitespace(c) {
			continue
		}
		if !isHexDigit(c) {
			return nil, fmt.Errorf("pdf: bad hex string byte %q", c)
		}
		if haveHi {
			out.WriteByte(hexVal(hi)<<4 | hexVal(c))
			haveHi = false
		} else {
			hi = c
			haveHi = true
		}
	}
	return nil, fmt.Errorf("pdf: unterminated hex string")
}

func isHexDigit(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

func hexVal(c byte) byte {
	switch {
	case c >= '0' && c <= '9':
		return c - '0'
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10
	default:
		return c - 'A' + 10
	}
}

func (p *parser) parseLiteralString() (String, error) {
	p.pos++ // consume '('
	var out bytes.Buffer
	depth := 1

	for p.pos < len(p.data) {
		c := p.data[p.pos]
		p.pos++

		switch c {
		case '\\':
			if p.pos >= len(p.data) {
				return nil, fmt.Errorf("pdf: unterminated string escape")
			}
			esc := p.data[p.pos]
			p.pos++
			switch esc {
			case 'n':
				out.WriteByte('\n')
			case 'r':
				out.WriteByte('\r')
			case 't':
				out.WriteByte('\t')
			case 'b':
				out.WriteByte('\b')
			case 'f':
				out.WriteByte('\f')
			case '(', ')', '\\':
				out.WriteByte(esc)
			case '\r':
				// Line continuation; swallow optional LF
				if p.pos < len(p.data) && p.data[p.pos] == '\n' {
					p.pos++
				}
			case '\n':
				// Line continuation
			default:
				if esc >= '0' && esc <= '7' {
					v := int(esc - '0')
					for i := 0; i < 2 && p.pos < len(p.data); i++ {
						d := p.data[p.pos]
						if d < '0' || d > '7' {
							break
						}
						v = v*8 + int(d-'0')
						p.pos++
					}
					out.WriteByte(byte(v))
				} else {
					out.WriteByte(esc)
				}
			}
		case '(':
			depth++
			out.WriteByte(c)
		case ')':
			depth--
			if depth == 0 {
				return String(out.Bytes()), nil
			}
			out.WriteByte(c)
		default:
			out.WriteByte(c)
		}
	}
	return nil, fmt.Errorf("pdf: unterminated literal string")
}

func (p *parser) parseArray() (Array, error) {
	p.pos++ // consume '['
	arr := Array{}

	for {
		p.skipWhitespace()
		if p.pos >= len(p.data) {
			return nil, fmt.Errorf("pdf: unterminated array")
		}
		if p.peek() == ']' {
			p.pos++
			return arr, nil
		}
		obj, err := p.parseObject()
		if err != nil {
			return nil, err
		}
		arr = append(arr, obj)
	}
}

func (p *parser) parseDictOrStream() (Object, error) {
	dict, err := p.parseDict()
	if err != nil {
		return nil, err
	}

	save := p.pos
	p.skipWhitespace()
	if !p.hasPrefix("stream") {
		p.pos = save
		return dict, nil
	}
	p.pos += len("stream")

	// EOL after "stream" keyword: CRLF or LF
	if p.pos < len(p.data) && p.data[p.pos] == '\r' {
		p.pos++
	}
	if p.pos < len(p.data) && p.data[p.pos] == '\n' {
		p.pos++
	}

	start := p.pos
	end := -1
	if length, ok := dict.Int("Length"); ok {
		candidate := start + int(length)
		if candidate <= len(p.data) {
			tail := newParser(p.data, candidate)
			tail.skipWhitespace()
			if tail.hasPrefix("endstream") {
				end = candidate
				p.pos = tail.pos + len("endstream")
			}
		}
	}
	if end < 0 {
		// Length missing or an unresolved reference; locate endstream
		idx := bytes.Index(p.data[start:], []byte("endstream"))
		if idx < 0 {
			return nil, fmt.Errorf("pdf: unterminated stream")
		}
		end = start + idx
		for end > start && (p.data[end-1] == '\n' || p.data[end-1] == '\r') {
			end--
		}
		p.pos = start + idx + len("endstream")
	}

	return &Stream{Dict: dict, Data: p.data[start:end]}, nil
}

func (p *parser) parseDict() (Dict, error) {
	p.pos += 2 // consume "<<"
	dict := Dict{}

	for {
		p.skipWhitespace()
		if p.pos >= len(p.data) {
			return nil, fmt.Errorf("pdf: unterminated dictionary")
		}
		if p.hasPrefix(">>") {
			p.pos += 2
			return dict, nil
		}

		key, err := p.parseName()
		if err != nil {
			return nil, err
		}
		value, err := p.parseObject()
		if err != nil {
			return nil, err
		}
		dict[key] = value
	}
}

// parseIndirectObject parses "num gen obj ... endobj" at the given offset
func parseIndirectObject(data []byte, offset int) (int, Object, error) {
	p := newParser(data, offset)
	p.skipWhitespace()

	numObj, isInt, err := p.parseNumber()
	if err != nil || !isInt {
		return 0, nil, fmt.Errorf("pdf: expected object number at offset %d", offset)
	}
	p.skipWhitespace()
	if _, _, err := p.parseNumber(); err != nil {
		return 0, nil, fmt.Errorf("pdf: expected generation at offset %d", offset)
	}
	p.skipWhitespace()
	if kw := p.readKeyword(); kw != "obj" {
		return 0, nil, fmt.Errorf("pdf: expected obj keyword at offset %d, got %q", offset, kw)
	}

	obj, err := p.parseObject()
	if err != nil {
		return 0, nil, err
	}

	return int(numObj.(Integer)), obj, nil
}
