package rollup

import (
	"github.com/secmon-lab/riskmap/pkg/domain/model"
	"github.com/secmon-lab/riskmap/pkg/domain/types"
)

// ChildrenIndex maps a location ID to the IDs of its direct children, in
// declaration order. Leaves have no entry.
type ChildrenIndex map[types.LocationID][]types.LocationID

// BuildChildrenIndex walks the forest once and records the children of every
// non-leaf location. A location reached a second time, through a shared
// subtree or a cycle, is not walked again.
func BuildChildrenIndex(roots []*model.Location) ChildrenIndex {
	index := make(ChildrenIndex)
	seen := make(map[types.LocationID]struct{})

	stack := make([]*model.Location, 0, len(roots))
	for i := len(roots) - 1; i >= 0; i-- {
		if roots[i] != nil {
			stack = append(stack, roots[i])
		}
	}

	for len(stack) > 0 {
		node := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if _, ok := seen[node.ID]; ok {
			continue
		}
		seen[node.ID] = struct{}{}

		var children []types.LocationID
		for _, child := range node.Children {
			if child != nil {
				children = append(children, child.ID)
			}
		}
		if len(children) > 0 {
			index[node.ID] = children
		}

		for i := len(node.Children) - 1; i >= 0; i-- {
			if child := node.Children[i]; child != nil {
				stack = append(stack, child)
			}
		}
	}

	return index
}

// Subtree returns the IDs of the subtree rooted at id in pre-order, each ID
// once. The root itself comes first.
func (idx ChildrenIndex) Subtree(id types.LocationID) []types.LocationID {
	var result []types.LocationID
	seen := make(map[types.LocationID]struct{})
	stack := []types.LocationID{id}

	for len(stack) > 0 {
		current := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if _, ok := seen[current]; ok {
			continue
		}
		seen[current] = struct{}{}
		result = append(result, current)

		children := idx[current]
		for i := len(children) - 1; i >= 0; i-- {
			stack = append(stack, children[i])
		}
	}

	return result
}

// Subtree is a shorthand for BuildChildrenIndex(roots).Subtree(id)
func Subtree(roots []*model.Location, id types.LocationID) []types.LocationID {
	return BuildChildrenIndex(roots).Subtree(id)
}
