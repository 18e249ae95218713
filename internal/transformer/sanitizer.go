// Package transformer holds the rewrite passes of the Python obfuscation pipeline.
package transformer

import (
	"context"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/whit3rabbit/pymixer/internal/pytree"
)

// Watermark is the string statement every obfuscated program starts with.
const Watermark = `"pymixer :: every layer you peel hides another one"`

// docLiteralTypes are the expression kinds Python treats as a constant when
// they stand alone as a statement.
var docLiteralTypes = map[string]bool{
	"string": true, "concatenated_string": true, "integer": true, "float": true,
	"true": true, "false": true, "none": true, "ellipsis": true,
}

// Sanitizer prepares source text for the layer pipeline: it strips comments,
// replaces documentation statements with pass, puts the watermark first and
// hoists __future__ imports right behind it.
type Sanitizer struct {
	commentsRemoved int
	docsReplaced    int
}

// NewSanitizer creates a sanitizer.
func NewSanitizer() *Sanitizer {
	return &Sanitizer{}
}

// CommentsRemoved returns how many comments the last Sanitize call dropped.
func (s *Sanitizer) CommentsRemoved() int { return s.commentsRemoved }

// DocsReplaced returns how many bare literal statements the last call replaced.
func (s *Sanitizer) DocsReplaced() int { return s.docsReplaced }

// Sanitize parses src and returns the sanitized text.
func (s *Sanitizer) Sanitize(ctx context.Context, src string) (string, error) {
	src = NormalizeNewlines(src)
	tree, err := pytree.Parse(ctx, src)
	if err != nil {
		return "", err
	}
	defer tree.Close()

	s.commentsRemoved, s.docsReplaced = 0, 0
	ed := pytree.NewEditor(tree.Source)

	var futures []string
	for _, stmt := range tree.Statements() {
		switch {
		case stmt.Type() == "future_import_statement":
			futures = append(futures, tree.Text(stmt))
			// pass keeps any ';' neighbours on the line well formed.
			ed.Replace(stmt, "pass")
		case isDocStatement(stmt, tree.Source):
			s.replaceDoc(ed, stmt)
		default:
			s.scanDefinition(ed, stmt, tree.Source)
		}
	}

	pytree.Walk(tree.Root, func(n *sitter.Node) bool {
		if n.Type() == "comment" {
			if !ed.Overlaps(n.StartByte(), n.EndByte()) {
				ed.Delete(n)
				s.commentsRemoved++
			}
			return false
		}
		return true
	})

	header := Watermark + "\n"
	for _, f := range futures {
		header += f + "\n"
	}
	ed.Insert(0, header)
	return ed.Apply()
}

// scanDefinition replaces documentation statements one level into a
// function or class body, and into methods defined directly in a class.
func (s *Sanitizer) scanDefinition(ed *pytree.Editor, stmt *sitter.Node, src []byte) {
	def := pytree.Definition(stmt)
	if def == nil {
		return
	}
	switch def.Type() {
	case "function_definition":
		s.scanBody(ed, def, src)
	case "class_definition":
		s.scanBody(ed, def, src)
		for _, member := range pytree.Statements(pytree.Body(def)) {
			if m := pytree.Definition(member); m != nil && m.Type() == "function_definition" {
				s.scanBody(ed, m, src)
			}
		}
	}
}

func (s *Sanitizer) scanBody(ed *pytree.Editor, def *sitter.Node, src []byte) {
	for _, stmt := range pytree.Statements(pytree.Body(def)) {
		if isDocStatement(stmt, src) {
			s.replaceDoc(ed, stmt)
		}
	}
}

func (s *Sanitizer) replaceDoc(ed *pytree.Editor, stmt *sitter.Node) {
	ed.Replace(stmt, "pass")
	s.docsReplaced++
}

func isDocStatement(stmt *sitter.Node, src []byte) bool {
	if stmt.Type() != "expression_statement" || stmt.NamedChildCount() != 1 {
		return false
	}
	expr := stmt.NamedChild(0)
	for expr != nil && expr.Type() == "parenthesized_expression" && expr.NamedChildCount() == 1 {
		expr = expr.NamedChild(0)
	}
	if expr == nil || !docLiteralTypes[expr.Type()] {
		return false
	}
	switch expr.Type() {
	case "string":
		return !pytree.IsFormatString(expr, src)
	case "concatenated_string":
		for _, part := range pytree.NamedChildren(expr) {
			if pytree.IsFormatString(part, src) {
				return false
			}
		}
	}
	return true
}

// IsWatermark reports whether stmt is the watermark statement.
func IsWatermark(stmt *sitter.Node, src []byte) bool {
	return stmt != nil && stmt.Type() == "expression_statement" && stmt.Content(src) == Watermark
}

// NormalizeNewlines converts CRLF line endings to LF.
func NormalizeNewlines(src string) string {
	return strings.ReplaceAll(src, "\r\n", "\n")
}
