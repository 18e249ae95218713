package transformer

import (
	"context"
	"sort"
	"strings"

	"github.com/samber/lo"
	sitter "github.com/smacker/go-tree-sitter"

	"github.com/whit3rabbit/pymixer/internal/pytree"
)

const futureModule = "__future__"

// ImportRecord is one imported name: Module is empty for plain imports,
// Alias is empty when there is no "as" clause.
type ImportRecord struct {
	Module string
	Name   string
	Alias  string
}

// IsFuture reports whether the record comes from a __future__ import.
func (r ImportRecord) IsFuture() bool { return r.Module == futureModule }

// IsWildcard reports whether the record is a "from m import *".
func (r ImportRecord) IsWildcard() bool { return r.Name == "*" }

// Bound returns the name the import statement binds in its scope.
func (r ImportRecord) Bound() string {
	switch {
	case r.Alias != "":
		return r.Alias
	case r.Module == "":
		return strings.SplitN(r.Name, ".", 2)[0]
	default:
		return r.Name
	}
}

// Statement renders the record as a one-line import statement.
func (r ImportRecord) Statement() string {
	var sb strings.Builder
	if r.Module != "" {
		sb.WriteString("from ")
		sb.WriteString(r.Module)
		sb.WriteString(" ")
	}
	sb.WriteString("import ")
	sb.WriteString(r.Name)
	if r.Alias != "" {
		sb.WriteString(" as ")
		sb.WriteString(r.Alias)
	}
	return sb.String()
}

// ProtectedNames returns the names this record makes unsafe to rename.
func (r ImportRecord) ProtectedNames() []string {
	if r.IsFuture() || r.IsWildcard() {
		return nil
	}
	names := []string{r.Name, r.Bound()}
	if r.Module == "" {
		names = append(names, strings.SplitN(r.Name, ".", 2)[0])
	}
	return lo.Uniq(names)
}

// HarvestImports collects every import in src, at any depth, deduplicated
// and sorted by descending len(Name)+len(Module), ties by module then name.
func HarvestImports(ctx context.Context, src string) ([]ImportRecord, error) {
	tree, err := pytree.Parse(ctx, src)
	if err != nil {
		return nil, err
	}
	defer tree.Close()

	var records []ImportRecord
	pytree.Walk(tree.Root, func(n *sitter.Node) bool {
		switch n.Type() {
		case "import_statement":
			records = append(records, importNames(n, tree.Source, "")...)
			return false
		case "import_from_statement":
			module := compact(tree.Text(n.ChildByFieldName("module_name")))
			if hasChildType(n, "wildcard_import") {
				records = append(records, ImportRecord{Module: module, Name: "*"})
				return false
			}
			records = append(records, importNames(n, tree.Source, module)...)
			return false
		case "future_import_statement":
			records = append(records, importNames(n, tree.Source, futureModule)...)
			return false
		}
		return true
	})

	records = lo.Uniq(records)
	SortImports(records)
	return records, nil
}

// SortImports orders records the way HarvestImports returns them.
func SortImports(records []ImportRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		a, b := records[i], records[j]
		ka, kb := len(a.Name)+len(a.Module), len(b.Name)+len(b.Module)
		if ka != kb {
			return ka > kb
		}
		if a.Module != b.Module {
			return a.Module < b.Module
		}
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		return a.Alias < b.Alias
	})
}

// ProtectedImportNames returns the union of every record's protected names.
func ProtectedImportNames(records []ImportRecord) map[string]bool {
	out := make(map[string]bool)
	for _, r := range records {
		for _, name := range r.ProtectedNames() {
			out[name] = true
		}
	}
	return out
}

// ReinjectImports prepends one import line per record, in record order, so
// the first record ends up last on screen. Lines go right after the
// watermark and __future__ block when the text has future imports, since
// those must stay at the top of the module.
func ReinjectImports(ctx context.Context, src string, records []ImportRecord) (string, error) {
	records = lo.Filter(records, func(r ImportRecord, _ int) bool { return !r.IsFuture() })
	if len(records) == 0 {
		return src, nil
	}
	tree, err := pytree.Parse(ctx, src)
	if err != nil {
		return "", err
	}
	anchor := futureBlockEnd(tree)
	tree.Close()

	var block strings.Builder
	for i := len(records) - 1; i >= 0; i-- {
		block.WriteString(records[i].Statement())
		block.WriteString("\n")
	}
	return src[:anchor] + block.String() + src[anchor:], nil
}

// futureBlockEnd returns the offset of the line after the last leading
// __future__ import, or 0 when there is none.
func futureBlockEnd(tree *pytree.Tree) int {
	end := 0
	for i, stmt := range tree.Statements() {
		if i == 0 && IsWatermark(stmt, tree.Source) {
			continue
		}
		if stmt.Type() != "future_import_statement" {
			break
		}
		end = int(stmt.EndByte())
	}
	if end == 0 {
		return 0
	}
	if nl := strings.IndexByte(string(tree.Source[end:]), '\n'); nl >= 0 {
		return end + nl + 1
	}
	return len(tree.Source)
}

func importNames(n *sitter.Node, src []byte, module string) []ImportRecord {
	var out []ImportRecord
	for _, child := range pytree.ChildrenByField(n, "name") {
		switch child.Type() {
		case "aliased_import":
			out = append(out, ImportRecord{
				Module: module,
				Name:   compact(child.ChildByFieldName("name").Content(src)),
				Alias:  compact(child.ChildByFieldName("alias").Content(src)),
			})
		default:
			out = append(out, ImportRecord{Module: module, Name: compact(child.Content(src))})
		}
	}
	return out
}

func hasChildType(n *sitter.Node, typ string) bool {
	for _, c := range pytree.Children(n) {
		if c.Type() == typ {
			return true
		}
	}
	return false
}

// compact drops whitespace inside dotted names such as "a . b".
func compact(s string) string {
	return strings.Join(strings.Fields(s), "")
}
