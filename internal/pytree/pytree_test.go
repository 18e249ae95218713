package pytree

import (
	"context"
	"errors"
	"testing"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseValid(t *testing.T) {
	tree, err := Parse(context.Background(), "import os\n\ndef f(x):\n    return x + 1\n")
	require.NoError(t, err)
	defer tree.Close()

	stmts := tree.Statements()
	require.Len(t, stmts, 2)
	assert.Equal(t, "import_statement", stmts[0].Type())
	assert.Equal(t, "function_definition", stmts[1].Type())
	assert.Equal(t, "f", tree.Text(stmts[1].ChildByFieldName("name")))
}

func TestParseInvalid(t *testing.T) {
	testCases := []struct {
		name string
		src  string
	}{
		{name: "unclosed paren", src: "print((1, 2)\n"},
		{name: "missing body", src: "def f(:\n    pass\n"},
		{name: "bad keyword use", src: "x = = 3\n"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse(context.Background(), tc.src)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrSyntax))

			var perr *ParseError
			require.True(t, errors.As(err, &perr))
			assert.Contains(t, perr.Error(), "line")
		})
	}
}

func TestEditorApply(t *testing.T) {
	src := []byte("alpha beta gamma")
	ed := NewEditor(src)
	ed.ReplaceRange(6, 10, "BETA")
	ed.Insert(0, ">> ")
	ed.Insert(0, "! ")
	ed.ReplaceRange(11, 16, "")

	out, err := ed.Apply()
	require.NoError(t, err)
	assert.Equal(t, ">> ! alpha BETA ", out)
	assert.Equal(t, 4, ed.Len())
}

func TestEditorInsertsBeforeReplacementAtSameOffset(t *testing.T) {
	ed := NewEditor([]byte("doc\nx = 1\n"))
	// Scheduled after the replacement it precedes.
	ed.ReplaceRange(0, 3, "pass")
	ed.Insert(0, "head\n")
	ed.Insert(0, "more\n")

	out, err := ed.Apply()
	require.NoError(t, err)
	assert.Equal(t, "head\nmore\npass\nx = 1\n", out)
}

func TestEditorRejectsOverlap(t *testing.T) {
	ed := NewEditor([]byte("abcdef"))
	ed.ReplaceRange(0, 4, "x")
	ed.ReplaceRange(2, 5, "y")

	assert.True(t, ed.Overlaps(3, 4))
	assert.False(t, ed.Overlaps(5, 6))

	_, err := ed.Apply()
	assert.Error(t, err)
}

func TestMultilineStringRows(t *testing.T) {
	src := "x = 1\ns = '''first\n  second\nthird'''\ny = 2\n"
	tree, err := Parse(context.Background(), src)
	require.NoError(t, err)
	defer tree.Close()

	rows := MultilineStringRows(tree.Root)

	assert.False(t, rows.StartsInside(0))
	assert.False(t, rows.StartsInside(1))
	assert.True(t, rows.StartsInside(2))
	assert.True(t, rows.StartsInside(3))
	assert.False(t, rows.StartsInside(4))

	assert.False(t, rows.EndsInside(0))
	assert.True(t, rows.EndsInside(1))
	assert.True(t, rows.EndsInside(2))
	assert.False(t, rows.EndsInside(3))
}

func TestFieldOfAndHelpers(t *testing.T) {
	src := "@deco\ndef f(a, b=2):\n    obj.attr = a\n"
	tree, err := Parse(context.Background(), src)
	require.NoError(t, err)
	defer tree.Close()

	stmts := tree.Statements()
	require.Len(t, stmts, 1)
	def := Definition(stmts[0])
	require.NotNil(t, def)
	assert.Equal(t, "function_definition", def.Type())

	name := def.ChildByFieldName("name")
	assert.Equal(t, "name", FieldOf(name))

	var attrs []*sitter.Node
	Walk(Body(def), func(n *sitter.Node) bool {
		if n.Type() == "attribute" {
			attrs = append(attrs, n)
		}
		return true
	})
	require.Len(t, attrs, 1)
	assert.Equal(t, "attribute", FieldOf(attrs[0].ChildByFieldName("attribute")))
	assert.Equal(t, "object", FieldOf(attrs[0].ChildByFieldName("object")))
}

func TestStringHelpers(t *testing.T) {
	assert.Equal(t, "rb", StringPrefix(`Rb"abc"`))
	assert.Equal(t, "", StringPrefix(`'abc'`))
	assert.True(t, IsDunder("__init__"))
	assert.False(t, IsDunder("__private"))
	assert.False(t, IsDunder("____"))

	src := "a = f'{x}'\nb = 'plain'\n"
	tree, err := Parse(context.Background(), src)
	require.NoError(t, err)
	defer tree.Close()

	var formats []bool
	Walk(tree.Root, func(n *sitter.Node) bool {
		if n.Type() == "string" {
			formats = append(formats, IsFormatString(n, tree.Source))
			return false
		}
		return true
	})
	assert.Equal(t, []bool{true, false}, formats)
}
