package main

import (
	"go/ast"
	"strings"

	"golang.org/x/tools/go/analysis"
)

// defaultClientUsers are the net/http package-level helpers backed by http.DefaultClient.
var defaultClientUsers = map[string]bool{
	"DefaultClient": true,
	"Get":           true,
	"Head":          true,
	"Post":          true,
	"PostForm":      true,
}

// DefaultClientCheckAnalyzer reports uses of http.DefaultClient and the helpers
// built on it. Outside tests every outbound request needs a client with a timeout.
var DefaultClientCheckAnalyzer = &analysis.Analyzer{
	Name: "defaultclientcheck",
	Doc:  "check for requests sent through http.DefaultClient",
	Run:  runDefaultClientCheck,
}

func runDefaultClientCheck(pass *analysis.Pass) (interface{}, error) {
	for _, file := range pass.Files {
		if strings.HasSuffix(pass.Fset.Position(file.Package).Filename, "_test.go") {
			continue
		}

		ast.Inspect(file, func(node ast.Node) bool {
			sel, ok := node.(*ast.SelectorExpr)
			if !ok {
				return true
			}
			obj := pass.TypesInfo.Uses[sel.Sel]
			if obj == nil || obj.Pkg() == nil || obj.Pkg().Path() != "net/http" {
				return true
			}
			// Methods such as (*http.Client).Get have no package scope parent.
			if obj.Parent() != obj.Pkg().Scope() {
				return true
			}
			if defaultClientUsers[obj.Name()] {
				pass.Reportf(sel.Pos(), "defaultclientcheck http.%s has no timeout, use a configured http.Client", obj.Name())
			}
			return true
		})
	}
	return nil, nil
}
