// Package enumvalidator reports string literals assigned to struct fields
// whose type is a named string enum. Assigning a raw literal bypasses the
// declared constant set and tends to smuggle in values the rest of the
// code never handles.
package enumvalidator

import (
	"go/ast"
	"go/token"
	"go/types"

	"golang.org/x/tools/go/analysis"
	"golang.org/x/tools/go/analysis/passes/inspect"
	"golang.org/x/tools/go/ast/inspector"
)

var Analyzer = &analysis.Analyzer{
	Name:     "enumvalidator",
	Doc:      "reports string literals assigned to named string enum fields",
	Requires: []*analysis.Analyzer{inspect.Analyzer},
	Run:      run,
}

func run(pass *analysis.Pass) (any, error) {
	insp := pass.ResultOf[inspect.Analyzer].(*inspector.Inspector)

	nodeFilter := []ast.Node{
		(*ast.AssignStmt)(nil),
	}

	insp.Preorder(nodeFilter, func(n ast.Node) {
		assign := n.(*ast.AssignStmt)
		if assign.Tok != token.ASSIGN {
			return
		}
		for i, lhs := range assign.Lhs {
			if i >= len(assign.Rhs) {
				break
			}
			sel, ok := lhs.(*ast.SelectorExpr)
			if !ok {
				continue
			}
			lit, ok := assign.Rhs[i].(*ast.BasicLit)
			if !ok || lit.Kind != token.STRING {
				continue
			}
			if !isNamedString(pass.TypesInfo.TypeOf(sel)) {
				continue
			}
			pass.Reportf(lit.Pos(), "enum field %s assigned string literal", sel.Sel.Name)
		}
	})

	return nil, nil
}

// isNamedString reports whether t is a named type whose underlying type is
// string. Plain string fields are not enums and are left alone.
func isNamedString(t types.Type) bool {
	named, ok := t.(*types.Named)
	if !ok {
		return false
	}
	basic, ok := named.Underlying().(*types.Basic)
	return ok && basic.Kind() == types.String
}
