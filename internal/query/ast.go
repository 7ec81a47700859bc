package query

import "strings"

// Node is the interface implemented by all AST nodes.
type Node interface {
	node() // marker method
	String() string
}

// AndNode matches sessions matched by every child (juxtaposition).
type AndNode struct {
	Children []Node
}

func (*AndNode) node() {}

func (n *AndNode) String() string { return group("AND", n.Children) }

// OrNode matches sessions matched by any child.
type OrNode struct {
	Children []Node
}

func (*OrNode) node() {}

func (n *OrNode) String() string { return group("OR", n.Children) }

// TitleNode restricts its child to the session title.
type TitleNode struct {
	Child Node
}

func (*TitleNode) node() {}

func (n *TitleNode) String() string { return "TITLE(" + n.Child.String() + ")" }

// ExactNode is a quoted phrase, matched as one contiguous substring.
type ExactNode struct {
	Value string
	Pos   int
}

func (*ExactNode) node() {}

func (n *ExactNode) String() string { return `EXACT("` + n.Value + `")` }

// WordNode is a bare word.
type WordNode struct {
	Value string
	Pos   int
}

func (*WordNode) node() {}

func (n *WordNode) String() string { return "WORD(" + n.Value + ")" }

func group(op string, children []Node) string {
	parts := make([]string, len(children))
	for i, c := range children {
		parts[i] = c.String()
	}
	return op + "(" + strings.Join(parts, ", ") + ")"
}

// TermSet holds the distinct search terms of a tree in order of appearance.
// TitleOnly terms appear only under a TITLE node.
type TermSet struct {
	Any       []string
	TitleOnly []string
}

// All returns every term, Any first.
func (ts TermSet) All() []string {
	out := make([]string, 0, len(ts.Any)+len(ts.TitleOnly))
	out = append(out, ts.Any...)
	return append(out, ts.TitleOnly...)
}

// Terms collects the leaf values of node.
func Terms(node Node) TermSet {
	var ts TermSet
	seenAny := make(map[string]bool)
	seenTitle := make(map[string]bool)

	var walk func(n Node, titleOnly bool)
	walk = func(n Node, titleOnly bool) {
		switch n := n.(type) {
		case *AndNode:
			for _, c := range n.Children {
				walk(c, titleOnly)
			}
		case *OrNode:
			for _, c := range n.Children {
				walk(c, titleOnly)
			}
		case *TitleNode:
			walk(n.Child, true)
		case *ExactNode:
			addTerm(&ts, n.Value, titleOnly, seenAny, seenTitle)
		case *WordNode:
			addTerm(&ts, n.Value, titleOnly, seenAny, seenTitle)
		}
	}
	if node != nil {
		walk(node, false)
	}

	// A term used both scoped and unscoped only needs the unscoped scan.
	if len(ts.TitleOnly) > 0 {
		kept := ts.TitleOnly[:0]
		for _, t := range ts.TitleOnly {
			if !seenAny[t] {
				kept = append(kept, t)
			}
		}
		ts.TitleOnly = kept
	}
	return ts
}

func addTerm(ts *TermSet, value string, titleOnly bool, seenAny, seenTitle map[string]bool) {
	if strings.TrimSpace(value) == "" {
		return
	}
	if titleOnly {
		if !seenTitle[value] {
			seenTitle[value] = true
			ts.TitleOnly = append(ts.TitleOnly, value)
		}
		return
	}
	if !seenAny[value] {
		seenAny[value] = true
		ts.Any = append(ts.Any, value)
	}
}
