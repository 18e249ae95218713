package pytree

import sitter "github.com/smacker/go-tree-sitter"

// StringRows records which source rows are crossed by a multi-line string
// literal. Text on such rows is literal data and must not be reformatted.
type StringRows struct {
	startsInside map[uint32]bool
	endsInside   map[uint32]bool
}

// MultilineStringRows scans the tree for string literals spanning rows.
func MultilineStringRows(root *sitter.Node) *StringRows {
	rows := &StringRows{
		startsInside: make(map[uint32]bool),
		endsInside:   make(map[uint32]bool),
	}
	Walk(root, func(n *sitter.Node) bool {
		if n.Type() != "string" {
			return true
		}
		first, last := n.StartPoint().Row, n.EndPoint().Row
		for r := first; r < last; r++ {
			rows.endsInside[r] = true
			rows.startsInside[r+1] = true
		}
		return false
	})
	return rows
}

// StartsInside reports whether the beginning of row lies inside a string.
func (s *StringRows) StartsInside(row int) bool {
	return row >= 0 && s.startsInside[uint32(row)]
}

// EndsInside reports whether the line break ending row lies inside a string.
func (s *StringRows) EndsInside(row int) bool {
	return row >= 0 && s.endsInside[uint32(row)]
}
