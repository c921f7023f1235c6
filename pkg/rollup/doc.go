// Package rollup aggregates per-location risk snapshots up a location
// hierarchy.
//
// BuildBaseMap derives direct-only snapshots from incidents, Compute folds
// every location's subtree into its snapshot with Merge, and
// BuildChildrenIndex / Subtree expose the hierarchy shape the traversal uses.
// All functions are pure and synchronous: every call builds fresh output and
// keeps no state between calls.
package rollup
