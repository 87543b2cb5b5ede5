package inventory

import (
	"slices"
	"sync/atomic"

	"github.com/rogerio-castellano/inventory-sync/internal/models"
)

type cacheState struct {
	snapshot models.Snapshot
	index    map[string]models.Item
	version  uint64
}

// Cache holds the most recent inventory snapshot of a location. A snapshot
// is installed with a single pointer swap, so readers see either the whole
// previous snapshot or the whole new one.
type Cache struct {
	state atomic.Pointer[cacheState]
}

func NewCache() *Cache {
	c := &Cache{}
	c.state.Store(&cacheState{index: map[string]models.Item{}})
	return c
}

// Apply replaces the cached contents with s and returns the new version,
// which is also stamped on the installed snapshot.
// Nothing from the previous snapshot survives. When s repeats a key the
// last occurrence wins.
func (c *Cache) Apply(s models.Snapshot) uint64 {
	index := make(map[string]models.Item, len(s.Items))
	order := make([]string, 0, len(s.Items))
	for _, it := range s.Items {
		if _, seen := index[it.Name]; !seen {
			order = append(order, it.Name)
		}
		index[it.Name] = it
	}

	items := make([]models.Item, len(order))
	for i, name := range order {
		items[i] = index[name]
	}
	s.Items = items

	for {
		old := c.state.Load()
		s.Version = old.version + 1
		next := &cacheState{snapshot: s, index: index, version: s.Version}
		if c.state.CompareAndSwap(old, next) {
			return next.version
		}
	}
}

// Items returns the cached items. The order is unspecified.
func (c *Cache) Items() []models.Item {
	return slices.Clone(c.state.Load().snapshot.Items)
}

func (c *Cache) Lookup(name string) (models.Item, bool) {
	it, ok := c.state.Load().index[name]
	return it, ok
}

// Snapshot returns the installed snapshot and its version. Version 0 means
// no snapshot was applied yet.
func (c *Cache) Snapshot() (models.Snapshot, uint64) {
	st := c.state.Load()
	s := st.snapshot
	s.Items = slices.Clone(s.Items)
	return s, st.version
}

func (c *Cache) Version() uint64 {
	return c.state.Load().version
}
