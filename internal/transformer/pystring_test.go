package transformer

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeStringLiteral(t *testing.T) {
	testCases := []struct {
		name    string
		literal string
		value   string
		isBytes bool
	}{
		{name: "plain", literal: `'hello'`, value: "hello"},
		{name: "empty", literal: `""`, value: ""},
		{name: "escapes", literal: `'a\tb\n\\\'"'`, value: "a\tb\n\\'\""},
		{name: "raw", literal: `r'a\tb'`, value: `a\tb`},
		{name: "octal", literal: `'\101\0'`, value: "A\x00"},
		{name: "hex in str", literal: `'caf\xe9'`, value: "café"},
		{name: "unicode escapes", literal: `'é\U0001F600'`, value: "é😀"},
		{name: "unknown escape kept", literal: `'\d+'`, value: `\d+`},
		{name: "line continuation", literal: "'a\\\nb'", value: "ab"},
		{name: "triple quoted", literal: "\"\"\"one\ntwo\"\"\"", value: "one\ntwo"},
		{name: "empty triple", literal: `''''''`, value: ""},
		{name: "utf8 source", literal: `'ünïcödé'`, value: "ünïcödé"},
		{name: "bytes hex", literal: `b'\x00\xff'`, value: "\x00\xff", isBytes: true},
		{name: "bytes keeps u escape", literal: `b'\u0041'`, value: `\u0041`, isBytes: true},
		{name: "raw bytes", literal: `Rb'\x00'`, value: `\x00`, isBytes: true},
		{name: "unicode prefix", literal: `u'x'`, value: "x"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			lit, err := DecodeStringLiteral(tc.literal)
			require.NoError(t, err)
			assert.Equal(t, tc.value, string(lit.Value))
			assert.Equal(t, tc.isBytes, lit.Bytes)
			assert.False(t, lit.Format)
		})
	}
}

func TestDecodeStringLiteralSpecialCases(t *testing.T) {
	lit, err := DecodeStringLiteral(`f'{x}'`)
	require.NoError(t, err)
	assert.True(t, lit.Format)

	for _, bad := range []string{`'\N{BULLET}'`, `'\ud800'`, `'\x4'`, `b'\777'`} {
		_, err := DecodeStringLiteral(bad)
		assert.True(t, errors.Is(err, ErrUndecodableLiteral), "expected %s to be undecodable", bad)
	}
}
