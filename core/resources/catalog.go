// Package resources resolves resource requirement expressions against the
// plan inventory and the zone/space pools.
package resources

import "sort"

// Item is a plan-scoped instance of a catalog resource.
type Item struct {
	ID             int    `json:"id" yaml:"id"`
	ResourceItemID int    `json:"resourceItemId" yaml:"resourceItemId"`
	TypeID         int    `json:"typeId" yaml:"typeId"`
	Name           string `json:"name" yaml:"name"`
	Available      *bool  `json:"isAvailable,omitempty" yaml:"isAvailable,omitempty"`
}

// IsAvailable treats a missing flag as available.
func (it Item) IsAvailable() bool { return it.Available == nil || *it.Available }

// Component is a part reserved together with its composite parent.
type Component struct {
	ResourceItemID int `json:"componentResourceItemId" yaml:"componentResourceItemId"`
	Quantity       int `json:"quantity" yaml:"quantity"`
}

// AnyOf asks for Quantity items among the listed catalog items.
type AnyOf struct {
	Quantity        int   `json:"quantity" yaml:"quantity"`
	ResourceItemIDs []int `json:"resourceItemIds" yaml:"resourceItemIds"`
}

// Requirement is the resource expression of a task.
type Requirement struct {
	ByType map[int]int `json:"byType,omitempty" yaml:"byType,omitempty"`
	ByItem map[int]int `json:"byItem,omitempty" yaml:"byItem,omitempty"`
	AnyOf  []AnyOf     `json:"anyOf,omitempty" yaml:"anyOf,omitempty"`
}

// Empty reports whether the requirement asks for nothing.
func (r Requirement) Empty() bool {
	return len(r.ByType) == 0 && len(r.ByItem) == 0 && len(r.AnyOf) == 0
}

const maxQuantity = 99

// Normalize drops invalid entries and clamps quantities to [1, 99].
func (r Requirement) Normalize() Requirement {
	out := Requirement{}
	clampMap := func(in map[int]int) map[int]int {
		var m map[int]int
		for k, v := range in {
			if k <= 0 || v <= 0 {
				continue
			}
			if m == nil {
				m = make(map[int]int, len(in))
			}
			m[k] = min(v, maxQuantity)
		}
		return m
	}
	out.ByType = clampMap(r.ByType)
	out.ByItem = clampMap(r.ByItem)
	for _, g := range r.AnyOf {
		seen := make(map[int]struct{}, len(g.ResourceItemIDs))
		var ids []int
		for _, id := range g.ResourceItemIDs {
			if id <= 0 {
				continue
			}
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
		if len(ids) == 0 {
			continue
		}
		q := g.Quantity
		if q <= 0 {
			q = 1
		}
		out.AnyOf = append(out.AnyOf, AnyOf{Quantity: min(q, maxQuantity), ResourceItemIDs: ids})
	}
	return out
}

// Catalog indexes the plan inventory and pools.
type Catalog struct {
	items          map[int]Item
	byType         map[int][]int
	byResourceItem map[int][]int
	components     map[int][]Component
	zonePools      map[int][]int
	spacePools     map[int][]int
	spaceParent    map[int]int
}

// Pools groups the pool tables of a plan.
type Pools struct {
	Zone        map[int][]int
	Space       map[int][]int
	SpaceParent map[int]int
}

// NewCatalog builds the indexes. Items keep their input order inside every
// index so candidate order is reproducible.
func NewCatalog(items []Item, components map[int][]Component, pools Pools) *Catalog {
	c := &Catalog{
		items:          make(map[int]Item, len(items)),
		byType:         make(map[int][]int),
		byResourceItem: make(map[int][]int),
		components:     components,
		zonePools:      pools.Zone,
		spacePools:     pools.Space,
		spaceParent:    pools.SpaceParent,
	}
	for _, it := range items {
		if it.ID <= 0 || it.TypeID <= 0 || it.ResourceItemID < 0 {
			continue
		}
		c.items[it.ID] = it
		if it.ResourceItemID > 0 {
			c.byResourceItem[it.ResourceItemID] = append(c.byResourceItem[it.ResourceItemID], it.ID)
		}
		c.byType[it.TypeID] = append(c.byType[it.TypeID], it.ID)
	}
	return c
}

// Item returns the plan item with the given id.
func (c *Catalog) Item(id int) (Item, bool) {
	it, ok := c.items[id]
	return it, ok
}

// ZonePool returns the plan items anchored to a zone.
func (c *Catalog) ZonePool(zoneID int) []int {
	if zoneID <= 0 {
		return nil
	}
	return c.zonePools[zoneID]
}

// SpacePool walks the space hierarchy upward until a space with a non-empty
// pool is found.
func (c *Catalog) SpacePool(spaceID int) []int {
	visited := make(map[int]struct{})
	for sid := spaceID; sid > 0; {
		if _, seen := visited[sid]; seen {
			return nil
		}
		visited[sid] = struct{}{}
		if pool := c.spacePools[sid]; len(pool) > 0 {
			return pool
		}
		sid = c.spaceParent[sid]
	}
	return nil
}

// IsComposite reports whether a catalog item declares components.
func (c *Catalog) IsComposite(resourceItemID int) bool {
	return len(c.components[resourceItemID]) > 0
}

// IgnoresSpacePool reports whether the requirement targets a composite item.
// Composite resources are never taken from a space pool.
func (c *Catalog) IgnoresSpacePool(req Requirement) bool {
	for rid := range req.ByItem {
		if c.IsComposite(rid) {
			return true
		}
	}
	for _, g := range req.AnyOf {
		for _, rid := range g.ResourceItemIDs {
			if c.IsComposite(rid) {
				return true
			}
		}
	}
	return false
}

func sortedKeys(m map[int]int) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}

// preferFirst concatenates pools keeping the first occurrence of every id.
func preferFirst(pools ...[]int) []int {
	seen := make(map[int]struct{})
	var out []int
	for _, p := range pools {
		for _, id := range p {
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	return out
}
