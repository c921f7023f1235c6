package rollup

import (
	"maps"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/riskmap/pkg/domain/model"
	"github.com/secmon-lab/riskmap/pkg/domain/types"
)

// Stats describes the work done by one pass
type Stats struct {
	Visited int `json:"visited"`
	Merges  int `json:"merges"`
	Orphans int `json:"orphans"`
}

// Result is the output of one rollup pass
type Result struct {
	PassID  types.PassID      `json:"passId"`
	Options Options           `json:"options"`
	Data    model.RiskDataMap `json:"data"`
	Stats   Stats             `json:"stats"`
}

// Get returns the rolled-up snapshot of a location
func (r *Result) Get(id types.LocationID) (*model.LocationRiskData, bool) {
	if r == nil {
		return nil, false
	}
	return r.Data.Get(id)
}

// Compute rolls the base map up the forest and returns a snapshot for every
// location reachable from the roots plus every location of the base map.
//
// Each location is computed once per call; a location shared by two parents
// contributes its full value to both. Children are folded left to right in
// declaration order. A location that is its own ancestor fails the pass with
// model.ErrCyclicHierarchy.
func Compute(roots []*model.Location, base model.RiskDataMap, opts ...Option) (*Result, error) {
	options := NewOptions(opts...)
	result := &Result{
		PassID:  types.NewPassID(),
		Options: options,
	}

	if options.DirectOnly {
		result.Data = maps.Clone(base)
		if result.Data == nil {
			result.Data = model.RiskDataMap{}
		}
		return result, nil
	}

	p := &pass{
		index:    BuildChildrenIndex(roots),
		base:     base,
		maxDepth: options.MaxDepth,
		out:      make(model.RiskDataMap, len(base)),
		onStack:  make(map[types.LocationID]struct{}),
	}

	for _, root := range roots {
		if root == nil {
			continue
		}
		if err := p.visit(root.ID); err != nil {
			return nil, err
		}
	}

	for id, data := range base {
		if _, ok := p.out[id]; !ok {
			p.out[id] = data
			p.stats.Orphans++
		}
	}

	result.Data = p.out
	result.Stats = p.stats
	return result, nil
}

// pass holds the memo of a single Compute call
type pass struct {
	index    ChildrenIndex
	base     model.RiskDataMap
	maxDepth int
	out      model.RiskDataMap
	onStack  map[types.LocationID]struct{}
	stats    Stats
}

type frame struct {
	id       types.LocationID
	depth    int
	children []types.LocationID
	next     int
	acc      *model.LocationRiskData
}

func (p *pass) baseOf(id types.LocationID) *model.LocationRiskData {
	if d, ok := p.base[id]; ok && d != nil {
		return d
	}
	return model.NewEmptyRiskData(id)
}

// visit computes id and its subtree in post-order with an explicit stack
func (p *pass) visit(id types.LocationID) error {
	if _, done := p.out[id]; done {
		return nil
	}

	stack := []*frame{p.enter(id, 0)}

	for len(stack) > 0 {
		top := stack[len(stack)-1]

		if top.next < len(top.children) {
			childID := top.children[top.next]

			if done, ok := p.out[childID]; ok {
				top.acc = Merge(top.acc, done)
				top.next++
				p.stats.Merges++
				continue
			}
			if _, cyclic := p.onStack[childID]; cyclic {
				return goerr.Wrap(model.ErrCyclicHierarchy, "location is its own ancestor",
					goerr.V("location_id", childID),
					goerr.V("path", cyclePath(stack, childID)))
			}

			stack = append(stack, p.enter(childID, top.depth+1))
			continue
		}

		p.out[top.id] = top.acc
		delete(p.onStack, top.id)
		stack = stack[:len(stack)-1]

		if len(stack) > 0 {
			parent := stack[len(stack)-1]
			parent.acc = Merge(parent.acc, top.acc)
			parent.next++
			p.stats.Merges++
		}
	}

	return nil
}

// enter creates the frame of a location. Leaves and locations at the depth
// limit get no children, so they resolve to their base value untouched.
func (p *pass) enter(id types.LocationID, depth int) *frame {
	p.stats.Visited++
	p.onStack[id] = struct{}{}

	f := &frame{
		id:    id,
		depth: depth,
		acc:   p.baseOf(id),
	}
	if depth < p.maxDepth {
		f.children = p.index[id]
	}
	return f
}

func cyclePath(stack []*frame, id types.LocationID) []types.LocationID {
	start := 0
	for i, f := range stack {
		if f.id == id {
			start = i
			break
		}
	}

	path := make([]types.LocationID, 0, len(stack)-start+1)
	for _, f := range stack[start:] {
		path = append(path, f.id)
	}
	return append(path, id)
}
