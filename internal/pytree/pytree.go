// Package pytree acquires Python syntax trees with tree-sitter and turns
// byte-range edits over those trees back into source text.
package pytree

import (
	"context"
	"errors"
	"fmt"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"
)

// ErrSyntax is matched by every ParseError.
var ErrSyntax = errors.New("python syntax error")

// ParseError reports the first ERROR or MISSING node found in a parsed text.
// Row and Column are zero-based, as tree-sitter reports them.
type ParseError struct {
	Row    uint32
	Column uint32
	Near   string
}

func (e *ParseError) Error() string {
	if e.Near == "" {
		return fmt.Sprintf("python syntax error at line %d, column %d", e.Row+1, e.Column+1)
	}
	return fmt.Sprintf("python syntax error at line %d, column %d near %q", e.Row+1, e.Column+1, e.Near)
}

func (e *ParseError) Unwrap() error { return ErrSyntax }

// Tree is a parsed Python module together with the exact bytes it was parsed from.
type Tree struct {
	Source []byte
	Root   *sitter.Node
	tree   *sitter.Tree
}

// Parse parses src as a Python module. Text that tree-sitter can only recover
// from with ERROR or MISSING nodes is rejected with a *ParseError.
func Parse(ctx context.Context, src string) (*Tree, error) {
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(python.GetLanguage())

	source := []byte(src)
	tree, err := parser.ParseCtx(ctx, nil, source)
	if err != nil {
		return nil, fmt.Errorf("tree-sitter parse failed: %w", err)
	}
	root := tree.RootNode()
	if root.HasError() {
		perr := firstError(root, source)
		tree.Close()
		return nil, perr
	}
	return &Tree{Source: source, Root: root, tree: tree}, nil
}

// Close releases the underlying tree-sitter tree. Nodes obtained from the
// tree must not be used afterwards.
func (t *Tree) Close() {
	if t != nil && t.tree != nil {
		t.tree.Close()
		t.tree = nil
	}
}

// Text returns the source text covered by n.
func (t *Tree) Text(n *sitter.Node) string {
	return n.Content(t.Source)
}

// Statements returns the top-level statements of the module, skipping comments.
func (t *Tree) Statements() []*sitter.Node {
	return Statements(t.Root)
}

func firstError(root *sitter.Node, src []byte) *ParseError {
	var found *sitter.Node
	Walk(root, func(n *sitter.Node) bool {
		if found != nil {
			return false
		}
		if n.IsError() || n.IsMissing() {
			found = n
			return false
		}
		return n.HasError()
	})
	if found == nil {
		found = root
	}
	start := found.StartPoint()
	near := found.Content(src)
	if i := strings.IndexByte(near, '\n'); i >= 0 {
		near = near[:i]
	}
	if len(near) > 40 {
		near = near[:40]
	}
	return &ParseError{Row: start.Row, Column: start.Column, Near: near}
}
