package circuits_test

import (
	"fmt"
	"go/ast"
	"go/token"
	"go/types"
	"strings"
	"testing"

	"golang.org/x/tools/go/packages"
)

const wordTypePath = "github.com/phantomstreams/phantom-sequencer/types"

// TestNoShortCircuitComparison fails if the circuit code compares words or
// byte arrays with the built-in operators or with bytes.Equal, both of
// which stop at the first difference.
func TestNoShortCircuitComparison(t *testing.T) {
	cfg := &packages.Config{
		Mode: packages.NeedSyntax | packages.NeedTypes | packages.NeedTypesInfo | packages.NeedFiles | packages.NeedName,
	}
	pkgs, err := packages.Load(cfg, "github.com/phantomstreams/phantom-sequencer/circuits")
	if err != nil {
		t.Fatalf("load package: %v", err)
	}
	if packages.PrintErrors(pkgs) > 0 {
		t.Fatalf("package has errors")
	}

	var findings []string
	for _, pkg := range pkgs {
		for _, file := range pkg.Syntax {
			ast.Inspect(file, func(n ast.Node) bool {
				switch node := n.(type) {
				case *ast.BinaryExpr:
					if node.Op != token.EQL && node.Op != token.NEQ {
						return true
					}
					left := pkg.TypesInfo.TypeOf(node.X)
					right := pkg.TypesInfo.TypeOf(node.Y)
					if isSecretCarrier(left) || isSecretCarrier(right) {
						findings = append(findings, fmt.Sprintf("%s: %s on %s", pkg.Fset.Position(node.Pos()), node.Op, left))
					}
				case *ast.CallExpr:
					sel, ok := node.Fun.(*ast.SelectorExpr)
					if !ok {
						return true
					}
					if fn, ok := pkg.TypesInfo.Uses[sel.Sel].(*types.Func); ok && fn.Pkg() != nil &&
						fn.Pkg().Path() == "bytes" && fn.Name() == "Equal" {
						findings = append(findings, fmt.Sprintf("%s: bytes.Equal", pkg.Fset.Position(node.Pos())))
					}
				}
				return true
			})
		}
	}
	if len(findings) > 0 {
		t.Fatalf("constant-time policy violation:\n%s", strings.Join(findings, "\n"))
	}
}

func isSecretCarrier(typ types.Type) bool {
	if typ == nil {
		return false
	}
	switch tt := typ.(type) {
	case *types.Named:
		if obj := tt.Obj(); obj.Pkg() != nil && obj.Pkg().Path() == wordTypePath && obj.Name() == "Word" {
			return true
		}
		return isSecretCarrier(tt.Underlying())
	case *types.Pointer:
		return isSecretCarrier(tt.Elem())
	case *types.Slice:
		return isByte(tt.Elem())
	case *types.Array:
		return isByte(tt.Elem()) || isSecretCarrier(tt.Elem())
	default:
		return false
	}
}

func isByte(t types.Type) bool {
	basic, ok := t.(*types.Basic)
	return ok && basic.Kind() == types.Byte
}
