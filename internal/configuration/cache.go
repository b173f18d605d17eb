package configuration

import (
	"sync"

	"pluginhub/internal/orchestrations"
	"pluginhub/internal/selection"
)

// Slot names one independently replaced piece of cached state.
type Slot string

const (
	SlotExtractor Slot = "extractor"
	SlotLoader    Slot = "loader"
	slotEntities  Slot = "entities"
)

// CollectionType returns the plugin collection a focus slot reads from.
func (s Slot) CollectionType() orchestrations.CollectionType {
	if s == SlotLoader {
		return orchestrations.Loaders
	}
	return orchestrations.Extractors
}

// Cache holds the focused extractor and loader configurations, the entity
// tree of the focused extractor and the entity-listing error flag.
//
// Every fetch for a slot takes a sequence number from begin. A response is
// only applied when its sequence is still the latest issued for that slot.
type Cache struct {
	mu             sync.RWMutex
	focused        map[Slot]orchestrations.Configuration
	entities       *selection.EntityTree
	hasEntityError bool
	seq            map[Slot]uint64
}

// NewCache creates an empty cache.
func NewCache() *Cache {
	return &Cache{
		focused: map[Slot]orchestrations.Configuration{
			SlotExtractor: {},
			SlotLoader:    {},
		},
		seq: make(map[Slot]uint64),
	}
}

// begin issues the next sequence number for slot.
func (c *Cache) begin(slot Slot) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.seq[slot]++
	return c.seq[slot]
}

// Focused returns a copy of the configuration held in slot.
func (c *Cache) Focused(slot Slot) orchestrations.Configuration {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.focused[slot].Clone()
}

// setFocused replaces slot wholesale unless seq is stale.
func (c *Cache) setFocused(slot Slot, seq uint64, cfg orchestrations.Configuration) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.seq[slot] != seq {
		return false
	}
	if cfg == nil {
		cfg = orchestrations.Configuration{}
	}
	c.focused[slot] = cfg
	return true
}

// ClearFocused resets slot to the empty record. Fetches still in flight for
// the slot are invalidated.
func (c *Cache) ClearFocused(slot Slot) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.seq[slot]++
	c.focused[slot] = orchestrations.Configuration{}
}

// beginEntities issues a sequence for an entity-listing fetch and resets the
// error flag.
func (c *Cache) beginEntities() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.hasEntityError = false
	c.seq[slotEntities]++
	return c.seq[slotEntities]
}

// setEntities replaces the tree wholesale unless seq is stale.
func (c *Cache) setEntities(seq uint64, tree *selection.EntityTree) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.seq[slotEntities] != seq {
		return false
	}
	c.entities = tree
	return true
}

// failEntities raises the error flag unless seq is stale. The tree keeps its
// last known value.
func (c *Cache) failEntities(seq uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.seq[slotEntities] != seq {
		return false
	}
	c.hasEntityError = true
	return true
}

// ClearEntities empties the tree and invalidates fetches in flight.
func (c *Cache) ClearEntities() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.seq[slotEntities]++
	c.entities = nil
}

// Entities returns a deep copy of the current tree; nil when empty.
func (c *Cache) Entities() *selection.EntityTree {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.entities.Clone()
}

// HasEntityError reports whether the latest entity-listing fetch failed.
func (c *Cache) HasEntityError() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.hasEntityError
}

// mutateEntities runs fn against the live tree while holding the lock.
func (c *Cache) mutateEntities(fn func(tree *selection.EntityTree) error) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return fn(c.entities)
}
