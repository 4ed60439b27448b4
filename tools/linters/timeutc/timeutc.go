// Package timeutc reports time.Now() calls whose result is not converted to
// UTC. Task timestamps and window boundaries are compared as UTC instants in
// both the in-memory and SQL filter paths, so a local-zone value leaking into
// either one changes which tasks match.
package timeutc

import (
	"go/ast"
	"go/types"
	"strings"

	"golang.org/x/tools/go/analysis"
	"golang.org/x/tools/go/analysis/passes/inspect"
	"golang.org/x/tools/go/ast/inspector"
)

const message = "time.Now() should be followed by .UTC() for timezone consistency"

// Analyzer flags time.Now() calls that are not the receiver of .UTC().
var Analyzer = &analysis.Analyzer{
	Name:     "timeutc",
	Doc:      "checks for time.Now() calls without .UTC() so stored and compared instants stay in UTC",
	Requires: []*analysis.Analyzer{inspect.Analyzer},
	Run:      run,
}

func run(pass *analysis.Pass) (any, error) {
	insp := pass.ResultOf[inspect.Analyzer].(*inspector.Inspector)

	nodes := []ast.Node{(*ast.CallExpr)(nil)}
	insp.WithStack(nodes, func(n ast.Node, push bool, stack []ast.Node) bool {
		if !push {
			return true
		}
		call := n.(*ast.CallExpr)
		if !isTimeNow(pass.TypesInfo, call) {
			return true
		}
		if convertedToUTC(call, stack) {
			return true
		}
		if suppressed(pass, call) {
			return true
		}
		pass.Reportf(call.Pos(), message)
		return true
	})

	return nil, nil
}

// isTimeNow reports whether call invokes the standard library's time.Now,
// whatever name the package was imported under.
func isTimeNow(info *types.Info, call *ast.CallExpr) bool {
	sel, ok := call.Fun.(*ast.SelectorExpr)
	if !ok || sel.Sel.Name != "Now" {
		return false
	}
	fn, ok := info.Uses[sel.Sel].(*types.Func)
	if !ok || fn.Pkg() == nil {
		return false
	}
	return fn.Pkg().Path() == "time"
}

// convertedToUTC reports whether the enclosing expression is call.UTC.
func convertedToUTC(call *ast.CallExpr, stack []ast.Node) bool {
	if len(stack) < 2 {
		return false
	}
	parent, ok := stack[len(stack)-2].(*ast.SelectorExpr)
	return ok && parent.X == call && parent.Sel.Name == "UTC"
}

// suppressed reports a //nolint or //nolint:timeutc comment on the call's
// line or the line above.
func suppressed(pass *analysis.Pass, call *ast.CallExpr) bool {
	pos := pass.Fset.Position(call.Pos())

	for _, file := range pass.Files {
		if pass.Fset.Position(file.Pos()).Filename != pos.Filename {
			continue
		}
		for _, cg := range file.Comments {
			for _, c := range cg.List {
				line := pass.Fset.Position(c.Pos()).Line
				if line != pos.Line && line != pos.Line-1 {
					continue
				}
				if nolintApplies(c.Text) {
					return true
				}
			}
		}
		return false
	}
	return false
}

func nolintApplies(text string) bool {
	text = strings.TrimSpace(strings.TrimPrefix(text, "//"))
	if !strings.HasPrefix(text, "nolint") {
		return false
	}
	rest := strings.TrimPrefix(text, "nolint")
	if !strings.HasPrefix(rest, ":") {
		return true
	}
	linters, _, _ := strings.Cut(strings.TrimPrefix(rest, ":"), " ")
	for name := range strings.SplitSeq(linters, ",") {
		if name == "timeutc" {
			return true
		}
	}
	return false
}
