package syntax

// Validate checks that root satisfies the adapter contract and returns the
// first violation found as a *ContractError.
func Validate(root *Node) error {
	if root == nil {
		return &ContractError{Kind: KindModule, Reason: "adapter returned no tree"}
	}
	if root.Kind != KindModule {
		return &ContractError{Kind: root.Kind, Span: root.Span, Reason: "root node must be a Module"}
	}
	return validateChildren(root)
}

func validateChildren(parent *Node) error {
	sawBody := false
	for i, c := range parent.Children {
		if c == nil {
			return &ContractError{Kind: parent.Kind, Span: parent.Span, Reason: "nil child"}
		}
		if err := validateNode(c); err != nil {
			return err
		}

		switch c.Kind {
		case KindParameter:
			if parent.Kind != KindFunctionDef && parent.Kind != KindLambda {
				return violation(c, "Parameter outside FunctionDef or Lambda")
			}
			if sawBody {
				return violation(c, "Parameter after body nodes")
			}
		case KindDecorator:
			if i+1 >= len(parent.Children) {
				return violation(c, "Decorator not followed by a declaration")
			}
			next := parent.Children[i+1]
			if next == nil || (next.Kind != KindClassDef && next.Kind != KindFunctionDef && next.Kind != KindDecorator) {
				return violation(c, "Decorator not followed by a declaration")
			}
			sawBody = true
		default:
			sawBody = true
		}

		if err := validateChildren(c); err != nil {
			return err
		}
	}
	return nil
}

func validateNode(n *Node) error {
	switch {
	case !n.Kind.Valid():
		return violation(n, "unknown node kind")
	case n.Kind == KindModule:
		return violation(n, "Module below the root")
	case (n.Kind == KindClassDef || n.Kind == KindFunctionDef) && n.Name == "":
		return violation(n, "declaration without a name")
	case n.Kind == KindParameter && n.Name == "":
		return violation(n, "parameter without a name")
	case n.Kind == KindAssignment && len(n.Children) > 1 && n.Children[0] != nil && n.Children[0].Kind == KindLambda:
		return violation(n, "directly bound Lambda must be the only child of its Assignment")
	}
	return nil
}

func violation(n *Node, reason string) *ContractError {
	return &ContractError{Kind: n.Kind, Span: n.Span, Reason: reason}
}
