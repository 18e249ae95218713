package transformer

import (
	"context"
	"errors"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/zeromicro/go-zero/core/logx"

	"github.com/whit3rabbit/pymixer/internal/pytree"
	"github.com/whit3rabbit/pymixer/internal/scrambler"
)

// neverIndirected names must stay literal: the compiler creates the
// __class__ cell for zero-argument super() only when it sees them.
var neverIndirected = map[string]bool{"super": true, "__class__": true}

// engineAttributes are attribute names the generated expressions call.
var engineAttributes = map[string]bool{"decode": true}

// bindingContainers are the nodes a binding target can be nested in.
var bindingContainers = map[string]bool{
	"pattern_list": true, "tuple_pattern": true, "list_pattern": true,
	"list_splat_pattern": true, "dictionary_splat_pattern": true,
	"tuple": true, "list": true, "parenthesized_expression": true,
	"expression_list": true,
}

// RenameStats counts what one Rename call rewrote.
type RenameStats struct {
	Renamed    int
	Indirected int
	Strings    int
	Integers   int
	Skipped    int
}

// Renamer aliases identifiers, routes protected names through run-time
// indirection and encodes literal constants, all in one traversal.
type Renamer struct {
	Registry  *scrambler.Scrambler
	Encoder   *LiteralEncoder
	Protected map[string]bool
	// KeepMembers leaves every class member name and attribute untouched.
	KeepMembers bool

	stats  RenameStats
	passes int
}

// NewRenamer wires a renamer to the run's registry and encoder.
func NewRenamer(registry *scrambler.Scrambler, encoder *LiteralEncoder, protected map[string]bool) *Renamer {
	return &Renamer{Registry: registry, Encoder: encoder, Protected: protected}
}

// Stats returns the counters of the last Rename call.
func (r *Renamer) Stats() RenameStats { return r.stats }

// Rename rewrites src and returns the new text.
func (r *Renamer) Rename(ctx context.Context, src string) (string, error) {
	tree, err := pytree.Parse(ctx, src)
	if err != nil {
		return "", err
	}
	defer tree.Close()

	p := &renamePass{
		Renamer: r,
		src:     tree.Source,
		ed:      pytree.NewEditor(tree.Source),
		kept:    map[string]bool{"_": true},
		params:  make(map[string]bool),
		members: make(map[string]bool),
	}
	r.stats = RenameStats{}
	p.analyze(tree.Root)
	p.visit(tree.Root, false)
	if p.err != nil {
		return "", p.err
	}
	r.passes++
	logx.Debugf("rename pass: %d renamed, %d indirected, %d strings, %d integers encoded, %d literals skipped",
		r.stats.Renamed, r.stats.Indirected, r.stats.Strings, r.stats.Integers, r.stats.Skipped)
	return p.ed.Apply()
}

type renamePass struct {
	*Renamer
	src []byte
	ed  *pytree.Editor

	// kept names are left as written everywhere they occur.
	kept map[string]bool
	// params are declared parameter names that get renamed, keyword
	// arguments spelled the same follow them.
	params map[string]bool
	// members are class member names that get renamed, attributes spelled
	// the same follow them.
	members map[string]bool
	classes map[string]*classInfo
	// scopes holds, per enclosing function-like scope, the protected names
	// bound anywhere inside it. Class bodies push nil.
	scopes []map[string]bool

	err error
}

type classInfo struct {
	name    string
	local   bool
	bases   []string
	members []string
	methods map[string]bool
	// opaque bases are attributes, calls or keywords such as metaclass=.
	opaque    bool
	decorated bool
	duplicate bool
}

func (c *classInfo) external() bool { return c.opaque || c.decorated || c.duplicate }

// analyze collects parameter names and class members before any rewrite.
// Members of a class are renamed only when the class and its whole base
// chain are defined in this program, undecorated and metaclass free: an
// inherited or framework-visible method name must keep its spelling.
func (p *renamePass) analyze(root *sitter.Node) {
	classes := make(map[string]*classInfo)
	p.classes = classes
	var order []*classInfo

	pytree.Walk(root, func(n *sitter.Node) bool {
		switch n.Type() {
		case "class_definition":
			info := p.describeClass(n)
			if prev, dup := classes[info.name]; dup {
				prev.duplicate = true
				info.duplicate = true
			}
			classes[info.name] = info
			order = append(order, info)
		case "parameters", "lambda_parameters":
			for _, name := range parameterNames(n, p.src) {
				if !p.Protected[name] && !pytree.IsDunder(name) {
					p.params[name] = true
				}
			}
		}
		return true
	})

	for _, c := range order {
		c.local = !c.external()
	}
	for changed := true; changed; {
		changed = false
		for _, c := range order {
			if !c.local {
				continue
			}
			for _, base := range c.bases {
				if base == "object" {
					continue
				}
				if bc, ok := classes[base]; !ok || !bc.local {
					c.local = false
					changed = true
					break
				}
			}
		}
	}

	candidates := make(map[string]bool)
	for _, c := range order {
		for _, m := range c.members {
			if p.Protected[m] || pytree.IsDunder(m) {
				continue
			}
			if c.local && !p.KeepMembers && !engineAttributes[m] {
				candidates[m] = true
			} else {
				p.kept[m] = true
			}
		}
	}
	for m := range candidates {
		if !p.kept[m] {
			p.members[m] = true
		}
	}
	for name := range p.kept {
		delete(p.params, name)
	}
}

func (p *renamePass) describeClass(n *sitter.Node) *classInfo {
	info := &classInfo{name: n.ChildByFieldName("name").Content(p.src), methods: make(map[string]bool)}
	if parent := n.Parent(); parent != nil && parent.Type() == "decorated_definition" {
		info.decorated = true
	}
	if supers := n.ChildByFieldName("superclasses"); supers != nil {
		for _, arg := range pytree.NamedChildren(supers) {
			switch arg.Type() {
			case "identifier":
				info.bases = append(info.bases, arg.Content(p.src))
			case "comment":
			default:
				// keyword arguments (metaclass=...), attributes, calls, subscripts
				info.opaque = true
			}
		}
	}
	for _, stmt := range pytree.Statements(pytree.Body(n)) {
		if def := pytree.Definition(stmt); def != nil {
			switch def.Type() {
			case "function_definition", "class_definition":
				name := def.ChildByFieldName("name").Content(p.src)
				info.members = append(info.members, name)
				if def.Type() == "function_definition" {
					info.methods[name] = true
				}
				continue
			}
		}
		if stmt.Type() != "expression_statement" {
			continue
		}
		for _, expr := range pytree.NamedChildren(stmt) {
			if expr.Type() != "assignment" {
				continue
			}
			if left := expr.ChildByFieldName("left"); left != nil && left.Type() == "identifier" {
				info.members = append(info.members, left.Content(p.src))
			}
		}
	}
	return info
}

// parameterNames returns the names declared by a parameters node.
func parameterNames(params *sitter.Node, src []byte) []string {
	var names []string
	var collect func(n *sitter.Node)
	collect = func(n *sitter.Node) {
		switch n.Type() {
		case "identifier":
			names = append(names, n.Content(src))
		case "default_parameter", "typed_default_parameter":
			if name := n.ChildByFieldName("name"); name != nil {
				collect(name)
			}
		case "typed_parameter", "list_splat_pattern", "dictionary_splat_pattern":
			for _, c := range pytree.NamedChildren(n) {
				if pytree.FieldOf(c) == "type" {
					continue
				}
				collect(c)
			}
		}
	}
	for _, c := range pytree.NamedChildren(params) {
		collect(c)
	}
	return names
}

func (p *renamePass) visit(n *sitter.Node, inPattern bool) {
	if n == nil || p.err != nil {
		return
	}
	switch n.Type() {
	case "comment", "import_statement", "import_from_statement", "future_import_statement":
		return
	case "expression_statement":
		if IsWatermark(n, p.src) {
			return
		}
	case "call", "parenthesized_expression":
		// Expressions an earlier pass generated stay as they are, otherwise
		// every further pass would wrap them again.
		if p.passes > 0 && IsGenerated(n.Content(p.src)) {
			return
		}
	case "function_definition", "lambda", "class_definition", "list_comprehension",
		"set_comprehension", "dictionary_comprehension", "generator_expression":
		p.scopes = append(p.scopes, p.scopeBindings(n))
		p.visitChildren(n, inPattern)
		p.scopes = p.scopes[:len(p.scopes)-1]
		return
	case "string":
		if pytree.IsFormatString(n, p.src) {
			p.visitChildren(n, inPattern)
		} else if !inPattern {
			p.encodeStrings(n, []*sitter.Node{n})
		}
		return
	case "concatenated_string":
		var parts []*sitter.Node
		for _, part := range pytree.NamedChildren(n) {
			if part.Type() != "string" {
				continue
			}
			if pytree.IsFormatString(part, p.src) {
				p.visitChildren(n, inPattern)
				return
			}
			parts = append(parts, part)
		}
		if !inPattern {
			p.encodeStrings(n, parts)
		}
		return
	case "format_specifier":
		for _, c := range pytree.NamedChildren(n) {
			if c.Type() == "interpolation" {
				p.visit(c, inPattern)
			}
		}
		return
	case "integer":
		if !inPattern {
			p.encodeInteger(n)
		}
		return
	case "identifier":
		p.visitIdentifier(n, inPattern)
		return
	case "attribute":
		p.visit(n.ChildByFieldName("object"), inPattern)
		p.visitMemberName(n.ChildByFieldName("attribute"))
		return
	case "keyword_argument":
		p.visitKeywordName(n)
		p.visit(n.ChildByFieldName("value"), inPattern)
		return
	case "case_pattern":
		inPattern = true
	case "keyword_pattern":
		for i, c := range pytree.NamedChildren(n) {
			if i == 0 && c.Type() == "identifier" {
				p.visitPatternKeyword(c)
				continue
			}
			p.visit(c, true)
		}
		return
	case "dotted_name":
		for i, c := range pytree.NamedChildren(n) {
			if i == 0 {
				p.visit(c, inPattern)
			} else {
				p.visitMemberName(c)
			}
		}
		return
	}
	p.visitChildren(n, inPattern)
}

func (p *renamePass) visitChildren(n *sitter.Node, inPattern bool) {
	for _, c := range pytree.Children(n) {
		p.visit(c, inPattern)
	}
}

func (p *renamePass) visitIdentifier(n *sitter.Node, inPattern bool) {
	name := n.Content(p.src)
	switch {
	case p.Protected[name]:
		if inPattern || neverIndirected[name] || isBindingName(n) || p.boundOutside(name) {
			return
		}
		p.ed.Replace(n, p.indirection(name))
		p.stats.Indirected++
	case p.kept[name] || pytree.IsDunder(name):
		return
	default:
		p.rename(n, name)
	}
}

// boundOutside reports whether a scope enclosing the current one binds
// name. A lookup evaluated in the inner scope cannot see that binding.
func (p *renamePass) boundOutside(name string) bool {
	for i := 0; i < len(p.scopes)-1; i++ {
		if p.scopes[i][name] {
			return true
		}
	}
	return false
}

// scopeBindings collects the protected names bound anywhere under scope,
// nested scopes included.
func (p *renamePass) scopeBindings(scope *sitter.Node) map[string]bool {
	if scope.Type() == "class_definition" {
		return nil
	}
	bound := make(map[string]bool)
	pytree.Walk(scope, func(n *sitter.Node) bool {
		switch n.Type() {
		case "identifier":
			if name := n.Content(p.src); p.Protected[name] && isBindingName(n) {
				bound[name] = true
			}
		case "import_statement", "import_from_statement":
			for _, name := range importBindings(n, p.src) {
				if p.Protected[name] {
					bound[name] = true
				}
			}
			return false
		}
		return true
	})
	return bound
}

// importBindings returns the local names an import statement binds.
func importBindings(n *sitter.Node, src []byte) []string {
	var names []string
	for _, c := range pytree.ChildrenByField(n, "name") {
		switch c.Type() {
		case "aliased_import":
			if alias := c.ChildByFieldName("alias"); alias != nil {
				names = append(names, alias.Content(src))
			}
		case "dotted_name":
			if first := c.NamedChild(0); first != nil {
				names = append(names, first.Content(src))
			}
		}
	}
	return names
}

func (p *renamePass) visitMemberName(n *sitter.Node) {
	if n == nil || n.Type() != "identifier" {
		return
	}
	if name := n.Content(p.src); p.members[name] {
		p.rename(n, name)
	}
}

func (p *renamePass) visitPatternKeyword(n *sitter.Node) {
	if name := n.Content(p.src); p.members[name] {
		p.rename(n, name)
	}
}

func (p *renamePass) visitKeywordName(kw *sitter.Node) {
	nameNode := kw.ChildByFieldName("name")
	if nameNode == nil {
		return
	}
	name := nameNode.Content(p.src)
	if !p.params[name] && !p.members[name] {
		return
	}
	if p.keywordFollowsRename(kw) {
		p.rename(nameNode, name)
	}
}

// keywordFollowsRename reports whether the call a keyword argument belongs
// to targets code of this program, whose parameters are being renamed.
func (p *renamePass) keywordFollowsRename(kw *sitter.Node) bool {
	args := kw.Parent()
	if args == nil || args.Type() != "argument_list" {
		return false
	}
	call := args.Parent()
	if call == nil || call.Type() != "call" {
		return false
	}
	callee := call.ChildByFieldName("function")
	if callee == nil {
		return false
	}
	switch callee.Type() {
	case "identifier":
		name := callee.Content(p.src)
		if _, ok := p.classes[name]; ok {
			return p.constructorIsLocal(name)
		}
		return !p.Protected[name] && !p.kept[name] && !pytree.IsDunder(name)
	case "attribute":
		attr := callee.ChildByFieldName("attribute")
		if attr == nil {
			return false
		}
		method := attr.Content(p.src)
		if pytree.IsDunder(method) {
			return p.dunderIsLocal(callee.ChildByFieldName("object"), method)
		}
		return p.members[method]
	}
	return false
}

// constructorIsLocal reports whether calling class name runs an __init__
// or __new__ written in this program.
func (p *renamePass) constructorIsLocal(name string) bool {
	for _, method := range []string{"__init__", "__new__"} {
		if found, local := p.resolveMethod(name, method, map[string]bool{}); found {
			return local
		}
	}
	return false
}

// dunderIsLocal resolves obj.method(...) for the receivers whose class is
// known statically: super(), the self or cls parameter of a method and a
// class of this program named directly.
func (p *renamePass) dunderIsLocal(obj *sitter.Node, method string) bool {
	if obj == nil {
		return false
	}
	switch obj.Type() {
	case "call":
		fn := obj.ChildByFieldName("function")
		if fn == nil || fn.Type() != "identifier" || fn.Content(p.src) != "super" {
			return false
		}
		class, _ := p.enclosingMethod(obj)
		if class == nil {
			return false
		}
		found, local := p.resolveBases(class, method, map[string]bool{class.name: true})
		return found && local
	case "identifier":
		name := obj.Content(p.src)
		if class, receiver := p.enclosingMethod(obj); class != nil && name == receiver {
			found, local := p.resolveMethod(class.name, method, map[string]bool{})
			return found && local
		}
		if _, ok := p.classes[name]; ok {
			found, local := p.resolveMethod(name, method, map[string]bool{})
			return found && local
		}
	}
	return false
}

// resolveMethod walks the base chain of class the way attribute lookup
// does. found is false when no class of the chain defines method; local is
// false when the lookup leaves this program.
func (p *renamePass) resolveMethod(class, method string, seen map[string]bool) (found, local bool) {
	c, ok := p.classes[class]
	if !ok || c.duplicate {
		return true, false
	}
	if seen[class] {
		return false, false
	}
	seen[class] = true
	if c.methods[method] {
		return true, true
	}
	return p.resolveBases(c, method, seen)
}

func (p *renamePass) resolveBases(c *classInfo, method string, seen map[string]bool) (found, local bool) {
	for _, base := range c.bases {
		if base == "object" {
			continue
		}
		if found, local := p.resolveMethod(base, method, seen); found {
			return found, local
		}
	}
	if c.opaque {
		return true, false
	}
	return false, false
}

// enclosingMethod returns the class a node's innermost function is defined
// in, with the name of that function's first parameter.
func (p *renamePass) enclosingMethod(n *sitter.Node) (*classInfo, string) {
	fn := n.Parent()
	for fn != nil && fn.Type() != "function_definition" {
		fn = fn.Parent()
	}
	if fn == nil {
		return nil, ""
	}
	owner := fn.Parent()
	if owner != nil && owner.Type() == "decorated_definition" {
		owner = owner.Parent()
	}
	if owner == nil || owner.Type() != "block" {
		return nil, ""
	}
	def := owner.Parent()
	if def == nil || def.Type() != "class_definition" {
		return nil, ""
	}
	class, ok := p.classes[def.ChildByFieldName("name").Content(p.src)]
	if !ok || class.duplicate {
		return nil, ""
	}
	var receiver string
	if params := fn.ChildByFieldName("parameters"); params != nil {
		if names := parameterNames(params, p.src); len(names) > 0 {
			receiver = names[0]
		}
	}
	return class, receiver
}

func (p *renamePass) rename(n *sitter.Node, name string) {
	alias, err := p.Registry.Scramble(name)
	if err != nil {
		p.err = err
		return
	}
	p.ed.Replace(n, alias)
	p.stats.Renamed++
}

// indirection returns an expression that looks name up at run time in the
// scope it is evaluated in.
func (p *renamePass) indirection(name string) string {
	return "getattr(__import__(" + p.Encoder.EncodeString([]byte("builtins")) + "), " +
		p.Encoder.EncodeString([]byte("eval")) + ")(" + p.Encoder.EncodeBytes([]byte(name)) + ")"
}

func (p *renamePass) encodeStrings(n *sitter.Node, parts []*sitter.Node) {
	if len(parts) == 0 {
		return
	}
	var merged StringLiteral
	for i, part := range parts {
		lit, err := DecodeStringLiteral(part.Content(p.src))
		if err != nil || lit.Format {
			logx.Debugf("leaving string literal at line %d as written: %v", part.StartPoint().Row+1, err)
			p.stats.Skipped++
			return
		}
		if i > 0 && lit.Bytes != merged.Bytes {
			p.stats.Skipped++
			return
		}
		merged.Bytes = lit.Bytes
		merged.Value = append(merged.Value, lit.Value...)
	}
	p.ed.Replace(n, p.Encoder.EncodeLiteral(merged))
	p.stats.Strings++
}

func (p *renamePass) encodeInteger(n *sitter.Node) {
	out, ok, err := p.Encoder.EncodeIntLiteral(n.Content(p.src))
	if err != nil {
		if !errors.Is(err, ErrEncodingOverflow) {
			p.err = err
			return
		}
		logx.Debugf("leaving integer at line %d as written: %v", n.StartPoint().Row+1, err)
	}
	if !ok {
		p.stats.Skipped++
		return
	}
	p.ed.Replace(n, out)
	p.stats.Integers++
}

// isBindingName reports whether identifier n is being bound rather than read.
func isBindingName(n *sitter.Node) bool {
	child, parent := n, n.Parent()
	for parent != nil && bindingContainers[parent.Type()] {
		child, parent = parent, parent.Parent()
	}
	if parent == nil {
		return false
	}
	field := pytree.FieldOf(child)
	switch parent.Type() {
	case "assignment", "augmented_assignment", "for_statement", "for_in_clause":
		return field == "left"
	case "named_expression":
		return field == "name"
	case "function_definition", "class_definition":
		return field == "name"
	case "default_parameter", "typed_default_parameter":
		return field == "name"
	case "parameters", "lambda_parameters", "typed_parameter":
		return field != "type"
	case "as_pattern":
		return field == "alias"
	case "as_pattern_target", "delete_statement", "global_statement", "nonlocal_statement":
		return true
	case "with_item":
		return field == "alias"
	case "except_clause":
		return pytree.PrevSiblingType(child) == "as"
	}
	return false
}
