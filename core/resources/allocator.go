package resources

import (
	"errors"
	"fmt"
)

// ErrShortage is returned when a requirement cannot be met at the requested
// start. Callers retry one grid step later.
var ErrShortage = errors.New("resource shortage")

// ShortageError details which part of a requirement failed.
type ShortageError struct {
	Kind string // by_item, by_type, any_of, component
	Key  int
	Need int
	Got  int
}

func (e *ShortageError) Error() string {
	return fmt.Sprintf("%s %d: need %d, got %d", e.Kind, e.Key, e.Need, e.Got)
}

func (e *ShortageError) Unwrap() error { return ErrShortage }

// FreeFunc reports whether a plan item is idle over [start, start+dur).
type FreeFunc func(planItemID, start, dur int) bool

// Request describes one allocation attempt.
type Request struct {
	Requirement Requirement
	SpaceID     int
	ZoneID      int
	Start       int
	Duration    int
}

// Allocate picks plan items satisfying the request. Candidates are ordered
// space pool, zone pool, global inventory. Composite items pull their
// components from the global inventory. On shortage nothing is reserved and
// a *ShortageError is returned.
func (c *Catalog) Allocate(req Request, free FreeFunc) ([]int, error) {
	rr := req.Requirement
	var spacePool []int
	if req.SpaceID > 0 && !c.IgnoresSpacePool(rr) {
		spacePool = c.SpacePool(req.SpaceID)
	}
	zonePool := c.ZonePool(req.ZoneID)

	picked := make(map[int]struct{})
	var assigned []int

	pick := func(candidates []int, need int) []int {
		var out []int
		for _, pid := range candidates {
			if len(out) >= need {
				break
			}
			if pid <= 0 {
				continue
			}
			if _, dup := picked[pid]; dup {
				continue
			}
			row, ok := c.items[pid]
			if !ok || !row.IsAvailable() {
				continue
			}
			if free != nil && !free(pid, req.Start, req.Duration) {
				continue
			}
			picked[pid] = struct{}{}
			out = append(out, pid)
		}
		return out
	}
	filter := func(pool []int, keep func(Item) bool) []int {
		var out []int
		for _, pid := range pool {
			if row, ok := c.items[pid]; ok && keep(row) {
				out = append(out, pid)
			}
		}
		return out
	}

	for _, rid := range sortedKeys(rr.ByItem) {
		need := rr.ByItem[rid]
		match := func(it Item) bool { return it.ResourceItemID == rid }
		cands := preferFirst(filter(spacePool, match), filter(zonePool, match), c.byResourceItem[rid])
		got := pick(cands, need)
		if len(got) < need {
			return nil, &ShortageError{Kind: "by_item", Key: rid, Need: need, Got: len(got)}
		}
		assigned = append(assigned, got...)
	}

	for _, tid := range sortedKeys(rr.ByType) {
		need := rr.ByType[tid]
		match := func(it Item) bool { return it.TypeID == tid }
		cands := preferFirst(filter(spacePool, match), filter(zonePool, match), c.byType[tid])
		got := pick(cands, need)
		if len(got) < need {
			return nil, &ShortageError{Kind: "by_type", Key: tid, Need: need, Got: len(got)}
		}
		assigned = append(assigned, got...)
	}

	for i, g := range rr.AnyOf {
		need := g.Quantity
		if need <= 0 {
			need = 1
		}
		wanted := make(map[int]struct{}, len(g.ResourceItemIDs))
		var global []int
		for _, rid := range g.ResourceItemIDs {
			wanted[rid] = struct{}{}
			global = append(global, c.byResourceItem[rid]...)
		}
		match := func(it Item) bool {
			_, ok := wanted[it.ResourceItemID]
			return ok
		}
		cands := preferFirst(filter(spacePool, match), filter(zonePool, match), global)
		got := pick(cands, need)
		if len(got) < need {
			return nil, &ShortageError{Kind: "any_of", Key: i, Need: need, Got: len(got)}
		}
		assigned = append(assigned, got...)
	}

	var components []int
	for _, pid := range assigned {
		row := c.items[pid]
		for _, comp := range c.components[row.ResourceItemID] {
			if comp.ResourceItemID <= 0 || comp.Quantity <= 0 {
				continue
			}
			for k := 0; k < comp.Quantity; k++ {
				got := pick(c.byResourceItem[comp.ResourceItemID], 1)
				if len(got) < 1 {
					return nil, &ShortageError{Kind: "component", Key: comp.ResourceItemID, Need: comp.Quantity, Got: k}
				}
				components = append(components, got...)
			}
		}
	}
	return append(assigned, components...), nil
}
