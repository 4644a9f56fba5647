package binder

import (
	"fmt"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/zurustar/instrscript/pkg/bridge"
	"github.com/zurustar/instrscript/pkg/compiler/parser"
	"github.com/zurustar/instrscript/pkg/program"
)

// TestProperty_ConstantFoldingMatchesIntArithmetic checks that folded const
// initializers agree with Go's truncating integer arithmetic.
func TestProperty_ConstantFoldingMatchesIntArithmetic(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200

	properties := gopter.NewProperties(parameters)
	reg := bridge.NewDefaultRegistry()

	ops := map[string]func(a, b int64) int64{
		"+":   func(a, b int64) int64 { return a + b },
		"-":   func(a, b int64) int64 { return a - b },
		"*":   func(a, b int64) int64 { return a * b },
		"/":   func(a, b int64) int64 { return a / b },
		"mod": func(a, b int64) int64 { return a % b },
	}

	properties.Property("const a op b folds to Go's result", prop.ForAll(
		func(a, b int64, op string) bool {
			if b == 0 && (op == "/" || op == "mod") {
				return true
			}
			src := fmt.Sprintf("declare const $x = (%d) %s (%d);", a, op, b)
			tree, err := parser.Parse(src)
			if err != nil {
				return false
			}
			prog, errs := Bind(tree, reg, src)
			if len(errs) > 0 {
				return false
			}
			return prog.Symbol("$x").Value.Int == ops[op](a, b)
		},
		gen.Int64Range(-100000, 100000),
		gen.Int64Range(-1000, 1000),
		gen.OneConstOf("+", "-", "*", "/", "mod"),
	))

	properties.Property("local slots are unique per handler", prop.ForAll(
		func(depth int) bool {
			src := "on note {\n"
			for i := 0; i < depth; i++ {
				src += fmt.Sprintf("if (1) { declare $v%d = %d; }\n", i, i)
				src += "if (1) { declare $w = 1; }\n"
			}
			src += "}"
			tree, err := parser.Parse(src)
			if err != nil {
				return false
			}
			prog, errs := Bind(tree, reg, src)
			if len(errs) > 0 {
				return false
			}
			locals := prog.Handler(program.EventNote).Locals
			if len(locals) != depth*2 {
				return false
			}
			for i, s := range locals {
				if s.Slot != i {
					return false
				}
			}
			return true
		},
		gen.IntRange(0, 20),
	))

	properties.TestingRun(t)
}
