package transformer

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// ErrUndecodableLiteral marks a string literal the encoder leaves as written.
var ErrUndecodableLiteral = errors.New("string literal cannot be decoded")

// StringLiteral is the decoded value of one Python string or bytes literal.
type StringLiteral struct {
	Value  []byte // UTF-8 for str literals, raw bytes for bytes literals
	Bytes  bool
	Format bool
}

// DecodeStringLiteral decodes the source text of a single literal such as
// 'a\tb', rb"\d", or """doc""". f-strings are reported with Format set and
// no value.
func DecodeStringLiteral(text string) (StringLiteral, error) {
	q := strings.IndexAny(text, `'"`)
	if q < 0 {
		return StringLiteral{}, fmt.Errorf("%w: no quote in %q", ErrUndecodableLiteral, text)
	}
	prefix := strings.ToLower(text[:q])
	lit := StringLiteral{
		Bytes:  strings.Contains(prefix, "b"),
		Format: strings.Contains(prefix, "f"),
	}
	if lit.Format {
		return lit, nil
	}
	raw := strings.Contains(prefix, "r")

	rest := text[q:]
	delim := rest[:1]
	if strings.HasPrefix(rest, strings.Repeat(delim, 3)) && len(rest) >= 6 {
		delim = strings.Repeat(delim, 3)
	}
	if !strings.HasSuffix(rest, delim) || len(rest) < 2*len(delim) {
		return StringLiteral{}, fmt.Errorf("%w: unterminated %q", ErrUndecodableLiteral, text)
	}
	body := rest[len(delim) : len(rest)-len(delim)]

	if raw {
		lit.Value = []byte(body)
		return lit, nil
	}
	value, err := unescape(body, lit.Bytes)
	if err != nil {
		return StringLiteral{}, err
	}
	lit.Value = value
	return lit, nil
}

func unescape(body string, isBytes bool) ([]byte, error) {
	out := make([]byte, 0, len(body))
	appendCode := func(code rune) error {
		if isBytes {
			if code > 0xFF {
				return fmt.Errorf("%w: byte escape out of range", ErrUndecodableLiteral)
			}
			out = append(out, byte(code))
			return nil
		}
		if code > utf8.MaxRune || (code >= 0xD800 && code <= 0xDFFF) {
			return fmt.Errorf("%w: code point %#x has no UTF-8 form", ErrUndecodableLiteral, code)
		}
		out = utf8.AppendRune(out, code)
		return nil
	}

	for i := 0; i < len(body); {
		c := body[i]
		if c != '\\' || i+1 >= len(body) {
			out = append(out, c)
			i++
			continue
		}
		next := body[i+1]
		switch next {
		case '\n':
			i += 2
		case '\r':
			i += 2
			if i < len(body) && body[i] == '\n' {
				i++
			}
		case '\\', '\'', '"':
			out = append(out, next)
			i += 2
		case 'a':
			out = append(out, 7)
			i += 2
		case 'b':
			out = append(out, 8)
			i += 2
		case 'f':
			out = append(out, 12)
			i += 2
		case 'n':
			out = append(out, '\n')
			i += 2
		case 'r':
			out = append(out, '\r')
			i += 2
		case 't':
			out = append(out, '\t')
			i += 2
		case 'v':
			out = append(out, 11)
			i += 2
		case '0', '1', '2', '3', '4', '5', '6', '7':
			j := i + 1
			var code rune
			for j < len(body) && j < i+4 && body[j] >= '0' && body[j] <= '7' {
				code = code*8 + rune(body[j]-'0')
				j++
			}
			if err := appendCode(code); err != nil {
				return nil, err
			}
			i = j
		case 'x':
			code, ok := parseHex(body, i+2, 2)
			if !ok {
				return nil, fmt.Errorf("%w: truncated \\x escape", ErrUndecodableLiteral)
			}
			if err := appendCode(code); err != nil {
				return nil, err
			}
			i += 4
		case 'u', 'U':
			if isBytes {
				out = append(out, c, next)
				i += 2
				continue
			}
			width := 4
			if next == 'U' {
				width = 8
			}
			code, ok := parseHex(body, i+2, width)
			if !ok {
				return nil, fmt.Errorf("%w: truncated \\%c escape", ErrUndecodableLiteral, next)
			}
			if err := appendCode(code); err != nil {
				return nil, err
			}
			i += 2 + width
		case 'N':
			if isBytes {
				out = append(out, c, next)
				i += 2
				continue
			}
			return nil, fmt.Errorf("%w: named unicode escape", ErrUndecodableLiteral)
		default:
			// Unknown escapes keep the backslash.
			out = append(out, c)
			i++
		}
	}
	return out, nil
}

func parseHex(s string, start, width int) (rune, bool) {
	if start+width > len(s) {
		return 0, false
	}
	var code rune
	for _, ch := range s[start : start+width] {
		var d rune
		switch {
		case ch >= '0' && ch <= '9':
			d = ch - '0'
		case ch >= 'a' && ch <= 'f':
			d = ch - 'a' + 10
		case ch >= 'A' && ch <= 'F':
			d = ch - 'A' + 10
		default:
			return 0, false
		}
		code = code*16 + d
	}
	return code, true
}
