// Package tokenview builds the Token/Symbol View (spec component D): the
// resolved, simplified token stream with symbol database the checkers
// read from. It is built once per (file,config) pass by parsing the
// preprocessed source with tree-sitter-cpp, and is exclusively owned by
// the File Analyzer for the duration of that pass (spec §3.2) — tokens
// are referenced by arena index, never by pointer, so a Finding can
// outlive the view once its call stack is resolved into
// {file_index,line,column}.
package tokenview

import (
	tree_sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_cpp "github.com/tree-sitter/tree-sitter-cpp/bindings/go"
)

// Token is one leaf (terminal) node of the parsed translation unit.
type Token struct {
	Index  int
	Kind   string // tree-sitter node kind, e.g. "identifier", "(", "return"
	Text   string
	Line   int32 // 1-based
	Column uint32 // 1-based
}

// SymbolKind classifies a declared symbol.
type SymbolKind string

const (
	SymbolFunction SymbolKind = "function"
	SymbolVariable SymbolKind = "variable"
)

// Symbol is a declaration the symbol table resolved while walking the CST.
type Symbol struct {
	Name       string
	Kind       SymbolKind
	Line       int32
	IsStatic   bool
	IsExtern   bool
	IsTemplate bool
	Attributes []string // e.g. "unused", "constructor", "destructor"
}

// CallSite is a use of a (possibly unresolved) function name.
type CallSite struct {
	Name string
	Line int32
}

// View is the arena + symbol table for one (file,config) pass. Checkers
// borrow it read-only via Run(view) and must not retain references past
// the pass (spec §3.2).
type View struct {
	FilePath  string
	Source    []byte
	Tokens    []Token
	Symbols   []Symbol
	CallSites []CallSite

	tree *tree_sitter.Tree
}

// Close releases the underlying tree-sitter tree. Safe to call once the
// pass that owns this View has finished.
func (v *View) Close() {
	if v.tree != nil {
		v.tree.Close()
		v.tree = nil
	}
}

// HasSyntaxError reports whether the parse produced any ERROR/MISSING
// node, the signal the File Analyzer's step 2 syntax-error check uses
// (spec §4.4: "On syntax error: emit one syntaxError Finding and
// return").
func (v *View) HasSyntaxError() bool {
	if v.tree == nil {
		return false
	}
	return v.tree.RootNode().HasError()
}

var cppLanguage = tree_sitter.NewLanguage(tree_sitter_cpp.Language())

// Build parses src (the already preprocessor-expanded source for one
// configuration) and returns a Token/Symbol View over it.
func Build(filePath string, src []byte) (*View, error) {
	parser := tree_sitter.NewParser()
	defer parser.Close()
	if err := parser.SetLanguage(cppLanguage); err != nil {
		return nil, err
	}
	tree := parser.Parse(src, nil)

	v := &View{FilePath: filePath, Source: src, tree: tree}
	walk(tree.RootNode(), src, v)
	return v, nil
}

func walk(n *tree_sitter.Node, src []byte, v *View) {
	if n == nil {
		return
	}
	switch n.Kind() {
	case "function_definition":
		collectFunctionSymbol(n, src, v)
	case "declaration":
		collectDeclarationSymbol(n, src, v)
	case "call_expression":
		collectCallSite(n, src, v)
	}

	count := n.ChildCount()
	if count == 0 {
		v.Tokens = append(v.Tokens, leafToken(n, src, len(v.Tokens)))
		return
	}
	for i := uint(0); i < count; i++ {
		walk(n.Child(i), src, v)
	}
}

func leafToken(n *tree_sitter.Node, src []byte, index int) Token {
	start := n.StartPosition()
	return Token{
		Index:  index,
		Kind:   n.Kind(),
		Text:   string(src[n.StartByte():n.EndByte()]),
		Line:   int32(start.Row) + 1,
		Column: start.Column + 1,
	}
}

// declaratorName walks down through pointer/reference/array declarators to
// find the identifier naming a declaration.
func declaratorName(n *tree_sitter.Node, src []byte) (string, *tree_sitter.Node) {
	cur := n
	for cur != nil {
		switch cur.Kind() {
		case "identifier", "field_identifier", "destructor_name", "operator_name":
			return string(src[cur.StartByte():cur.EndByte()]), cur
		case "function_declarator", "pointer_declarator", "reference_declarator",
			"array_declarator", "init_declarator", "qualified_identifier":
			if name := cur.ChildByFieldName("declarator"); name != nil {
				if s, node := declaratorName(name, src); s != "" {
					return s, node
				}
			}
		}
		next := cur.ChildByFieldName("declarator")
		if next == nil {
			break
		}
		cur = next
	}
	return "", nil
}

func collectFunctionSymbol(n *tree_sitter.Node, src []byte, v *View) {
	declarator := n.ChildByFieldName("declarator")
	if declarator == nil {
		return
	}
	name, _ := declaratorName(declarator, src)
	if name == "" {
		return
	}
	start := n.StartPosition()
	sym := Symbol{Name: name, Kind: SymbolFunction, Line: int32(start.Row) + 1}
	sym.IsStatic = hasStorageClass(n, src, "static")
	sym.Attributes = collectAttributes(n, src)
	v.Symbols = append(v.Symbols, sym)
}

func collectDeclarationSymbol(n *tree_sitter.Node, src []byte, v *View) {
	declarator := n.ChildByFieldName("declarator")
	if declarator == nil {
		return
	}
	// Only care about function *declarations* (prototypes), not every
	// local variable — the unused-function checker only needs decl+call.
	if declaratorName, _ := declaratorName(declarator, src); declaratorName != "" {
		if isFunctionDeclarator(declarator) {
			start := n.StartPosition()
			sym := Symbol{Name: declaratorName, Kind: SymbolFunction, Line: int32(start.Row) + 1}
			sym.IsExtern = hasStorageClass(n, src, "extern")
			sym.Attributes = collectAttributes(n, src)
			v.Symbols = append(v.Symbols, sym)
		}
	}
}

func isFunctionDeclarator(n *tree_sitter.Node) bool {
	cur := n
	for cur != nil {
		if cur.Kind() == "function_declarator" {
			return true
		}
		cur = cur.ChildByFieldName("declarator")
	}
	return false
}

func hasStorageClass(n *tree_sitter.Node, src []byte, keyword string) bool {
	for i := uint(0); i < n.ChildCount(); i++ {
		c := n.Child(i)
		if c.Kind() == "storage_class_specifier" && string(src[c.StartByte():c.EndByte()]) == keyword {
			return true
		}
	}
	return false
}

// collectAttributes recognizes __attribute__((unused)),
// __attribute__((constructor))/(destructor) markers the unused-function
// checker must honor (spec §4.3).
func collectAttributes(n *tree_sitter.Node, src []byte) []string {
	var attrs []string
	var scan func(node *tree_sitter.Node)
	scan = func(node *tree_sitter.Node) {
		if node == nil {
			return
		}
		if node.Kind() == "attribute" || node.Kind() == "gnu_attribute" {
			text := string(src[node.StartByte():node.EndByte()])
			for _, want := range []string{"unused", "constructor", "destructor", "used"} {
				if containsWord(text, want) {
					attrs = append(attrs, want)
				}
			}
		}
		for i := uint(0); i < node.ChildCount(); i++ {
			scan(node.Child(i))
		}
	}
	scan(n)
	return attrs
}

func containsWord(haystack, word string) bool {
	for i := 0; i+len(word) <= len(haystack); i++ {
		if haystack[i:i+len(word)] == word {
			return true
		}
	}
	return false
}

func collectCallSite(n *tree_sitter.Node, src []byte, v *View) {
	fn := n.ChildByFieldName("function")
	if fn == nil {
		return
	}
	name, _ := declaratorName(fn, src)
	if name == "" && fn.Kind() == "identifier" {
		name = string(src[fn.StartByte():fn.EndByte()])
	}
	if name == "" {
		return
	}
	start := n.StartPosition()
	v.CallSites = append(v.CallSites, CallSite{Name: name, Line: int32(start.Row) + 1})
}

// StructuralHash is a cheap proxy for "do two configs simplify to the same
// token list" (spec §4.1 configuration dedup policy): the concatenation of
// every token's Kind, used by the File Analyzer to skip re-running
// checkers for an equivalent configuration.
func (v *View) StructuralHash() string {
	var sb []byte
	for _, t := range v.Tokens {
		sb = append(sb, t.Kind...)
		sb = append(sb, 0)
	}
	return string(sb)
}
