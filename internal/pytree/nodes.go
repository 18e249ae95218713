package pytree

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
)

// Walk visits n and its descendants depth-first in source order. When fn
// returns false the children of the current node are skipped.
func Walk(n *sitter.Node, fn func(*sitter.Node) bool) {
	if n == nil {
		return
	}
	if !fn(n) {
		return
	}
	count := int(n.ChildCount())
	for i := 0; i < count; i++ {
		Walk(n.Child(i), fn)
	}
}

// Children returns every child of n, named or anonymous.
func Children(n *sitter.Node) []*sitter.Node {
	if n == nil {
		return nil
	}
	count := int(n.ChildCount())
	out := make([]*sitter.Node, 0, count)
	for i := 0; i < count; i++ {
		if c := n.Child(i); c != nil {
			out = append(out, c)
		}
	}
	return out
}

// NamedChildren returns the named children of n.
func NamedChildren(n *sitter.Node) []*sitter.Node {
	if n == nil {
		return nil
	}
	count := int(n.NamedChildCount())
	out := make([]*sitter.Node, 0, count)
	for i := 0; i < count; i++ {
		if c := n.NamedChild(i); c != nil {
			out = append(out, c)
		}
	}
	return out
}

// ChildrenByField returns every child of n stored under the given field name.
// tree-sitter only returns the first one from ChildByFieldName, import
// statements carry several.
func ChildrenByField(n *sitter.Node, field string) []*sitter.Node {
	if n == nil {
		return nil
	}
	var out []*sitter.Node
	count := int(n.ChildCount())
	for i := 0; i < count; i++ {
		if n.FieldNameForChild(i) == field {
			out = append(out, n.Child(i))
		}
	}
	return out
}

// Statements returns the statements of a module or block, skipping comments.
func Statements(n *sitter.Node) []*sitter.Node {
	var out []*sitter.Node
	for _, c := range NamedChildren(n) {
		if c.Type() == "comment" {
			continue
		}
		out = append(out, c)
	}
	return out
}

// SameNode reports whether a and b denote the same node of one tree.
func SameNode(a, b *sitter.Node) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.StartByte() == b.StartByte() && a.EndByte() == b.EndByte() && a.Type() == b.Type()
}

// FieldOf returns the field name under which n hangs off its parent, or ""
// when it has no parent or no field.
func FieldOf(n *sitter.Node) string {
	parent := n.Parent()
	if parent == nil {
		return ""
	}
	count := int(parent.ChildCount())
	for i := 0; i < count; i++ {
		if SameNode(parent.Child(i), n) {
			return parent.FieldNameForChild(i)
		}
	}
	return ""
}

// PrevSiblingType returns the type of the sibling right before n, named or
// not, or "" when n is the first child.
func PrevSiblingType(n *sitter.Node) string {
	if prev := n.PrevSibling(); prev != nil {
		return prev.Type()
	}
	return ""
}

// Definition unwraps a decorated_definition to the function or class it decorates.
func Definition(n *sitter.Node) *sitter.Node {
	if n != nil && n.Type() == "decorated_definition" {
		return n.ChildByFieldName("definition")
	}
	return n
}

// Body returns the block of a function or class definition.
func Body(def *sitter.Node) *sitter.Node {
	if def == nil {
		return nil
	}
	return def.ChildByFieldName("body")
}

// StringPrefix returns the lowercase prefix letters of a string literal,
// for example "rb" for rb'x'.
func StringPrefix(text string) string {
	i := strings.IndexAny(text, `'"`)
	if i < 0 {
		return ""
	}
	return strings.ToLower(text[:i])
}

// IsFormatString reports whether a string node is an f-string.
func IsFormatString(n *sitter.Node, src []byte) bool {
	if n.Type() != "string" {
		return false
	}
	if start := n.Child(0); start != nil && start.Type() == "string_start" {
		return strings.Contains(StringPrefix(start.Content(src)), "f")
	}
	return strings.Contains(StringPrefix(n.Content(src)), "f")
}

// IsDunder reports whether name has the __x__ shape Python reserves for
// special names.
func IsDunder(name string) bool {
	return len(name) > 4 && strings.HasPrefix(name, "__") && strings.HasSuffix(name, "__")
}
