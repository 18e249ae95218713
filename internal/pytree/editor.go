package pytree

import (
	"fmt"
	"sort"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
)

type edit struct {
	start, end uint32
	text       string
	seq        int
}

// Editor collects byte-range replacements against one source text and
// applies them in a single pass. Ranges must not overlap. A zero-width
// insertion goes in front of a replacement starting at the same offset, and
// insertions at one offset keep the order they were added in.
type Editor struct {
	src   []byte
	edits []edit
}

// NewEditor returns an editor over src.
func NewEditor(src []byte) *Editor {
	return &Editor{src: src}
}

// Replace schedules the text covered by n to be replaced with text.
func (e *Editor) Replace(n *sitter.Node, text string) {
	e.ReplaceRange(n.StartByte(), n.EndByte(), text)
}

// ReplaceRange schedules src[start:end] to be replaced with text.
func (e *Editor) ReplaceRange(start, end uint32, text string) {
	e.edits = append(e.edits, edit{start: start, end: end, text: text, seq: len(e.edits)})
}

// Insert schedules text to be inserted at offset at.
func (e *Editor) Insert(at uint32, text string) {
	e.ReplaceRange(at, at, text)
}

// Delete schedules the text covered by n to be removed.
func (e *Editor) Delete(n *sitter.Node) {
	e.ReplaceRange(n.StartByte(), n.EndByte(), "")
}

// Overlaps reports whether [start,end) intersects a non-empty range that is
// already scheduled.
func (e *Editor) Overlaps(start, end uint32) bool {
	for _, ed := range e.edits {
		if ed.start == ed.end {
			continue
		}
		if start < ed.end && ed.start < end {
			return true
		}
	}
	return false
}

// Len returns the number of scheduled edits.
func (e *Editor) Len() int { return len(e.edits) }

// Apply returns the source with every scheduled edit applied.
func (e *Editor) Apply() (string, error) {
	edits := make([]edit, len(e.edits))
	copy(edits, e.edits)
	sort.SliceStable(edits, func(i, j int) bool {
		a, b := edits[i], edits[j]
		if a.start != b.start {
			return a.start < b.start
		}
		if insA, insB := a.start == a.end, b.start == b.end; insA != insB {
			return insA
		}
		return a.seq < b.seq
	})

	var b strings.Builder
	b.Grow(len(e.src))
	var pos uint32
	for _, ed := range edits {
		if ed.start < pos || ed.end > uint32(len(e.src)) || ed.end < ed.start {
			return "", fmt.Errorf("overlapping or out of range edit [%d,%d)", ed.start, ed.end)
		}
		b.Write(e.src[pos:ed.start])
		b.WriteString(ed.text)
		pos = ed.end
	}
	b.Write(e.src[pos:])
	return b.String(), nil
}
