package transformer

import (
	"context"
	"strings"

	"github.com/whit3rabbit/pymixer/internal/pytree"
)

// Finalizer normalizes the working text between layers and at the end of
// the pipeline. It only touches layout outside string literals, so running
// it twice gives the same text and it never undoes a rewrite.
type Finalizer struct{}

// NewFinalizer creates a finalizer.
func NewFinalizer() *Finalizer { return &Finalizer{} }

// Finalize returns the normalized text. The result is reparsed and a
// *pytree.ParseError is returned when it is not valid Python.
func (f *Finalizer) Finalize(ctx context.Context, src string) (string, error) {
	src = NormalizeNewlines(src)
	tree, err := pytree.Parse(ctx, src)
	if err != nil {
		return "", err
	}
	rows := pytree.MultilineStringRows(tree.Root)
	stmts := tree.Statements()
	hasWatermark := len(stmts) > 0 && IsWatermark(stmts[0], tree.Source)
	tree.Close()

	lines := strings.Split(src, "\n")
	kept := make([]string, 0, len(lines))
	for i, line := range lines {
		inString := rows.StartsInside(i) || rows.EndsInside(i)
		if !rows.EndsInside(i) {
			line = strings.TrimRight(line, " \t")
		}
		if !inString && strings.TrimSpace(line) == "" {
			continue
		}
		kept = append(kept, line)
	}

	out := strings.Join(kept, "\n")
	if !hasWatermark {
		out = Watermark + "\n" + out
	}
	out = strings.TrimRight(out, "\n") + "\n"

	check, err := pytree.Parse(ctx, out)
	if err != nil {
		return "", err
	}
	check.Close()
	return out, nil
}
