package model

import (
	"sort"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/riskmap/pkg/domain/types"
)

// Location is a node of the site hierarchy. Children are ordered and owned
// by the parent; a *Location may be shared by two parents in memory.
type Location struct {
	ID       types.LocationID `json:"id" yaml:"id"`
	Name     string           `json:"name" yaml:"name"`
	Children []*Location      `json:"children,omitempty" yaml:"children,omitempty"`
}

// IsLeaf returns true if the location has no children
func (l *Location) IsLeaf() bool {
	return len(l.Children) == 0
}

// LocationRecord is the flat, persisted form of a location
type LocationRecord struct {
	ID       types.LocationID `json:"id" firestore:"id"`
	Name     string           `json:"name" firestore:"name"`
	ParentID types.LocationID `json:"parentId,omitempty" firestore:"parent_id"`
	Position int              `json:"position" firestore:"position"`
}

// Validate validates the location record
func (r *LocationRecord) Validate() error {
	if r.ID == "" {
		return goerr.New("location ID is required")
	}
	if r.ParentID == r.ID {
		return goerr.New("location cannot be its own parent", goerr.V("id", r.ID))
	}
	return nil
}

// BuildForest assembles a forest from flat records. Records without a known
// parent become roots. Siblings are ordered by Position, then ID. IDs that
// cannot be reached from any root (parent cycles) are returned as unattached.
func BuildForest(records []*LocationRecord) ([]*Location, []types.LocationID) {
	sorted := make([]*LocationRecord, 0, len(records))
	nodes := make(map[types.LocationID]*Location, len(records))
	for _, rec := range records {
		if rec == nil || rec.ID == "" {
			continue
		}
		if _, exists := nodes[rec.ID]; exists {
			continue
		}
		nodes[rec.ID] = &Location{ID: rec.ID, Name: rec.Name}
		sorted = append(sorted, rec)
	}

	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Position != sorted[j].Position {
			return sorted[i].Position < sorted[j].Position
		}
		return sorted[i].ID < sorted[j].ID
	})

	var roots []*Location
	for _, rec := range sorted {
		node := nodes[rec.ID]
		parent, ok := nodes[rec.ParentID]
		if rec.ParentID == "" || !ok || rec.ParentID == rec.ID {
			roots = append(roots, node)
			continue
		}
		parent.Children = append(parent.Children, node)
	}

	reachable := make(map[types.LocationID]struct{}, len(nodes))
	stack := append([]*Location(nil), roots...)
	for len(stack) > 0 {
		node := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if _, seen := reachable[node.ID]; seen {
			continue
		}
		reachable[node.ID] = struct{}{}
		stack = append(stack, node.Children...)
	}

	var unattached []types.LocationID
	for _, rec := range sorted {
		if _, ok := reachable[rec.ID]; !ok {
			unattached = append(unattached, rec.ID)
		}
	}
	sort.Slice(unattached, func(i, j int) bool { return unattached[i] < unattached[j] })

	return roots, unattached
}

// FlattenForest converts a nested forest into records with parent IDs and
// sibling positions. A location shared by two parents is recorded under the
// first parent that reaches it.
func FlattenForest(roots []*Location) []*LocationRecord {
	var records []*LocationRecord
	seen := make(map[types.LocationID]struct{})

	var walk func(parent types.LocationID, children []*Location)
	walk = func(parent types.LocationID, children []*Location) {
		for i, child := range children {
			if child == nil {
				continue
			}
			if _, ok := seen[child.ID]; ok {
				continue
			}
			seen[child.ID] = struct{}{}
			records = append(records, &LocationRecord{
				ID:       child.ID,
				Name:     child.Name,
				ParentID: parent,
				Position: i,
			})
			walk(child.ID, child.Children)
		}
	}
	walk("", roots)

	return records
}
