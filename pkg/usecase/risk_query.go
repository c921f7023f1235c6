package usecase

import (
	"context"
	"encoding/json"
	"strconv"
	"sync"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/riskmap/pkg/domain/model"
	"github.com/secmon-lab/riskmap/pkg/domain/types"
	"github.com/secmon-lab/riskmap/pkg/rollup"
	"github.com/zeebo/xxh3"
	"golang.org/x/sync/singleflight"
)

// RiskQuery holds the latest rollup result and recomputes it only when the
// forest, the base map or the options change
type RiskQuery struct {
	mu          sync.RWMutex
	latest      *rollup.Result
	fingerprint uint64
	group       singleflight.Group
}

// NewRiskQuery creates an empty RiskQuery
func NewRiskQuery() *RiskQuery {
	return &RiskQuery{}
}

// fingerprintInput is the canonical form of a rollup input. Maps are
// encoded with sorted keys.
type fingerprintInput struct {
	Roots    []types.LocationID  `json:"roots"`
	Children rollup.ChildrenIndex `json:"children"`
	Base     model.RiskDataMap    `json:"base"`
	Options  rollup.Options       `json:"options"`
}

// Fingerprint returns the hash of a rollup input
func Fingerprint(roots []*model.Location, base model.RiskDataMap, opts ...rollup.Option) (uint64, error) {
	input := fingerprintInput{
		Children: rollup.BuildChildrenIndex(roots),
		Base:     base,
		Options:  rollup.NewOptions(opts...),
	}
	for _, root := range roots {
		if root != nil {
			input.Roots = append(input.Roots, root.ID)
		}
	}

	raw, err := json.Marshal(input)
	if err != nil {
		return 0, goerr.Wrap(err, "failed to encode rollup input")
	}
	return xxh3.Hash(raw), nil
}

// Update returns the rollup of the given input, reusing the latest result
// when the input has not changed. A failed computation keeps the previous
// result.
func (q *RiskQuery) Update(ctx context.Context, roots []*model.Location, base model.RiskDataMap, opts ...rollup.Option) (*rollup.Result, error) {
	logger := ctxlog.From(ctx)

	fp, err := Fingerprint(roots, base, opts...)
	if err != nil {
		return nil, err
	}

	q.mu.RLock()
	if q.latest != nil && q.fingerprint == fp {
		result := q.latest
		q.mu.RUnlock()
		logger.Debug("rollup input unchanged, reusing result", "pass_id", result.PassID)
		return result, nil
	}
	q.mu.RUnlock()

	v, err, shared := q.group.Do(strconv.FormatUint(fp, 16), func() (any, error) {
		result, err := rollup.Compute(roots, base, opts...)
		if err != nil {
			return nil, err
		}

		q.mu.Lock()
		q.latest = result
		q.fingerprint = fp
		q.mu.Unlock()

		logger.Info("rollup computed",
			"pass_id", result.PassID,
			"locations", len(result.Data),
			"visited", result.Stats.Visited,
			"merges", result.Stats.Merges,
			"orphans", result.Stats.Orphans,
		)
		return result, nil
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to compute rollup")
	}
	if shared {
		logger.Debug("rollup shared with concurrent caller")
	}

	return v.(*rollup.Result), nil
}

// Result returns the latest result, or nil before the first Update
func (q *RiskQuery) Result() *rollup.Result {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.latest
}

// Map returns the latest rolled-up map, or nil before the first Update
func (q *RiskQuery) Map() model.RiskDataMap {
	if result := q.Result(); result != nil {
		return result.Data
	}
	return nil
}

// Get returns the latest snapshot of a single location
func (q *RiskQuery) Get(id types.LocationID) (*model.LocationRiskData, bool) {
	result := q.Result()
	if result == nil {
		return nil, false
	}
	return result.Get(id)
}
