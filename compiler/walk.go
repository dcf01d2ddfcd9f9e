package compiler

// Inspect traverses the tree rooted at n in depth-first order, calling fn
// for each node. Children are skipped when fn returns false.
func Inspect(n Node, fn func(Node) bool) {
	if n == nil || !fn(n) {
		return
	}
	switch n := n.(type) {
	case *Block:
		for _, s := range n.Statements {
			Inspect(s, fn)
		}
	case *Call:
		Inspect(n.Callee, fn)
		for _, a := range n.Args {
			Inspect(a, fn)
		}
	case *BinaryOp:
		Inspect(n.Left, fn)
		Inspect(n.Right, fn)
	case *FuncLit:
		Inspect(n.Body, fn)
	case *ExprStmt:
		Inspect(n.Expr, fn)
	case *Definition:
		if n.Value != nil {
			Inspect(n.Value, fn)
		}
	case *Assignment:
		Inspect(n.Target, fn)
		Inspect(n.Value, fn)
	case *If:
		Inspect(n.Cond, fn)
		Inspect(n.Then, fn)
		if n.Else != nil {
			Inspect(n.Else, fn)
		}
	case *While:
		Inspect(n.Cond, fn)
		Inspect(n.Body, fn)
	case *Return:
		if n.Value != nil {
			Inspect(n.Value, fn)
		}
	}
}
