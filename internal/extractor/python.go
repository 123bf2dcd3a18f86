package extractor

import (
	"context"
	"errors"
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"
)

// ErrSyntax is returned when the parse tree contains error nodes.
var ErrSyntax = errors.New("syntax error")

// PythonExtractor extracts top-level functions, classes and their direct methods.
type PythonExtractor struct{}

func (p *PythonExtractor) Language() Language { return Python }

func (p *PythonExtractor) Extract(source []byte) ([]Symbol, error) {
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(python.GetLanguage())

	tree, err := parser.ParseCtx(context.Background(), nil, source)
	if err != nil {
		return nil, err
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.HasError() {
		return nil, fmt.Errorf("%w near line %d", ErrSyntax, firstErrorLine(root))
	}

	var symbols []Symbol
	for i := 0; i < int(root.NamedChildCount()); i++ {
		node, scope := unwrapDecorated(root.NamedChild(i))
		switch node.Type() {
		case "function_definition":
			typ := Function
			if isAsync(node) {
				typ = AsyncFunction
			}
			symbols = append(symbols, newSymbol(node, source, typ, nodeName(node, source), collectCalls(scope, source)))
		case "class_definition":
			className := nodeName(node, source)
			symbols = append(symbols, newSymbol(node, source, Class, className, []string{}))
			symbols = append(symbols, p.methods(node, className, source)...)
		}
	}
	return symbols, nil
}

// methods returns the functions defined directly in a class body.
func (p *PythonExtractor) methods(classNode *sitter.Node, className string, source []byte) []Symbol {
	body := classNode.ChildByFieldName("body")
	if body == nil {
		return nil
	}

	var out []Symbol
	for i := 0; i < int(body.NamedChildCount()); i++ {
		node, scope := unwrapDecorated(body.NamedChild(i))
		if node.Type() != "function_definition" {
			continue
		}
		typ := Method
		if isAsync(node) {
			typ = AsyncMethod
		}
		name := className + "." + nodeName(node, source)
		out = append(out, newSymbol(node, source, typ, name, collectCalls(scope, source)))
	}
	return out
}

func newSymbol(node *sitter.Node, source []byte, typ SymbolType, name string, calls []string) Symbol {
	return Symbol{
		Type:      typ,
		Name:      name,
		LineStart: int(node.StartPoint().Row) + 1,
		LineEnd:   int(node.EndPoint().Row) + 1,
		Code:      node.Content(source),
		Calls:     calls,
	}
}

// collectCalls walks every call expression below node in source order.
// Direct calls contribute the callee identifier; attribute calls contribute
// only the attribute name. Duplicates are dropped, keeping first occurrence.
func collectCalls(node *sitter.Node, source []byte) []string {
	calls := []string{}
	seen := make(map[string]bool)

	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		if n.Type() == "call" {
			if name := calleeName(n.ChildByFieldName("function"), source); name != "" && !seen[name] {
				seen[name] = true
				calls = append(calls, name)
			}
		}
		for i := 0; i < int(n.NamedChildCount()); i++ {
			walk(n.NamedChild(i))
		}
	}
	walk(node)
	return calls
}

func calleeName(fn *sitter.Node, source []byte) string {
	if fn == nil {
		return ""
	}
	switch fn.Type() {
	case "identifier":
		return fn.Content(source)
	case "attribute":
		if attr := fn.ChildByFieldName("attribute"); attr != nil {
			return attr.Content(source)
		}
	}
	return ""
}

// unwrapDecorated returns the definition inside a decorated_definition and
// the node to scan for calls, which includes the decorators.
func unwrapDecorated(node *sitter.Node) (def, scope *sitter.Node) {
	if node.Type() == "decorated_definition" {
		if d := node.ChildByFieldName("definition"); d != nil {
			return d, node
		}
	}
	return node, node
}

func isAsync(funcNode *sitter.Node) bool {
	return funcNode.ChildCount() > 0 && funcNode.Child(0).Type() == "async"
}

func nodeName(node *sitter.Node, source []byte) string {
	if name := node.ChildByFieldName("name"); name != nil {
		return name.Content(source)
	}
	return ""
}

func firstErrorLine(root *sitter.Node) int {
	var line int
	var find func(n *sitter.Node) bool
	find = func(n *sitter.Node) bool {
		if n.Type() == "ERROR" || n.IsMissing() {
			line = int(n.StartPoint().Row) + 1
			return true
		}
		for i := 0; i < int(n.ChildCount()); i++ {
			if find(n.Child(i)) {
				return true
			}
		}
		return false
	}
	find(root)
	return line
}
