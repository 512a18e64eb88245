package analyzer

import (
	"fmt"

	"github.com/dgallion1/sentree/internal/syntree"
)

// AssignIDs numbers nodes "<depth>-<index>" top-down. Children are numbered
// one depth deeper, with the index restarting for every sibling list.
func AssignIDs(nodes []syntree.Node, depth int) {
	for i := range nodes {
		nodes[i].ID = fmt.Sprintf("%d-%d", depth, i)
		if len(nodes[i].Children) > 0 {
			AssignIDs(nodes[i].Children, depth+1)
		}
	}
}

// Normalize marks nodes whose children field was present in the completion
// as expanded and replaces absent children with an empty list.
func Normalize(nodes []syntree.Node) {
	for i := range nodes {
		n := &nodes[i]
		if n.Children == nil {
			n.Expanded = false
			n.Children = []syntree.Node{}
			continue
		}
		n.Expanded = true
		Normalize(n.Children)
	}
}
