package syntax

import "fmt"

// ParseError reports malformed source. It aborts extraction of one file only.
type ParseError struct {
	File    string `json:"file,omitempty"`
	Line    int    `json:"line"`
	Column  int    `json:"column"`
	Message string `json:"message"`
}

func (e *ParseError) Error() string {
	if e.File != "" {
		return fmt.Sprintf("%s:%d:%d: %s", e.File, e.Line, e.Column, e.Message)
	}
	return fmt.Sprintf("%d:%d: %s", e.Line, e.Column, e.Message)
}

// ContractError reports an adapter tree that breaks the node-kind contract.
// It indicates a bug in an adapter and is never recovered from.
type ContractError struct {
	Kind   NodeKind
	Span   Span
	Reason string
}

func (e *ContractError) Error() string {
	return fmt.Sprintf("adapter contract violation at %s (%s): %s", e.Span, e.Kind, e.Reason)
}
