// Package selection keeps an extractor's entity-group/attribute selection tree
// internally coherent under per-node toggles.
package selection

// Attribute is a single selectable attribute of an entity group.
type Attribute struct {
	Name     string `json:"name"`
	Selected bool   `json:"selected"`
}

// EntityGroup is a selectable entity together with the attributes it owns.
type EntityGroup struct {
	Name       string       `json:"name"`
	Selected   bool         `json:"selected"`
	Attributes []*Attribute `json:"attributes"`
}

// EntityTree is the full selection state for one extractor.
// A nil *EntityTree is the empty tree.
type EntityTree struct {
	ExtractorName string         `json:"extractorName"`
	EntityGroups  []*EntityGroup `json:"entityGroups"`
}

// Group returns the entity group with the given name, or nil.
func (t *EntityTree) Group(name string) *EntityGroup {
	if t == nil {
		return nil
	}
	for _, group := range t.EntityGroups {
		if group.Name == name {
			return group
		}
	}
	return nil
}

// Attribute returns the attribute with the given name, or nil.
func (g *EntityGroup) Attribute(name string) *Attribute {
	if g == nil {
		return nil
	}
	for _, attr := range g.Attributes {
		if attr.Name == name {
			return attr
		}
	}
	return nil
}

// Clone returns a deep copy of the tree so callers can read it without
// sharing the nodes the toggles mutate.
func (t *EntityTree) Clone() *EntityTree {
	if t == nil {
		return nil
	}
	out := &EntityTree{
		ExtractorName: t.ExtractorName,
		EntityGroups:  make([]*EntityGroup, 0, len(t.EntityGroups)),
	}
	for _, group := range t.EntityGroups {
		g := &EntityGroup{
			Name:       group.Name,
			Selected:   group.Selected,
			Attributes: make([]*Attribute, 0, len(group.Attributes)),
		}
		for _, attr := range group.Attributes {
			a := *attr
			g.Attributes = append(g.Attributes, &a)
		}
		out.EntityGroups = append(out.EntityGroups, g)
	}
	return out
}

// ToggleGroup flips the group and forces its new value onto every attribute.
// Applying it twice restores a group whose attributes matched it.
func ToggleGroup(group *EntityGroup) {
	group.Selected = !group.Selected
	for _, attr := range group.Attributes {
		attr.Selected = group.Selected
	}
}

// ToggleAttribute flips one attribute and re-derives the owning group.
//
// Deselecting an attribute of a selected group deselects the group. Otherwise
// the group is selected when every attribute is selected, which holds
// vacuously for a group without attributes.
func ToggleAttribute(group *EntityGroup, attr *Attribute) {
	attr.Selected = !attr.Selected

	if !attr.Selected && group.Selected {
		group.Selected = false
		return
	}
	if allSelected(group.Attributes) {
		group.Selected = true
	}
}

// SelectAllGroups cascades a select onto every group that is not selected.
// Groups already selected are left as they are, attributes included.
func SelectAllGroups(tree *EntityTree) {
	if tree == nil {
		return
	}
	for _, group := range tree.EntityGroups {
		if !group.Selected {
			ToggleGroup(group)
		}
	}
}

// DeselectAllGroups cascades a deselect onto every selected group. Groups
// that are already deselected only have their selected attributes cleared;
// the group flag is not re-derived for them.
func DeselectAllGroups(tree *EntityTree) {
	if tree == nil {
		return
	}
	for _, group := range tree.EntityGroups {
		if group.Selected {
			ToggleGroup(group)
			continue
		}
		for _, attr := range group.Attributes {
			if attr.Selected {
				attr.Selected = false
			}
		}
	}
}

func allSelected(attrs []*Attribute) bool {
	for _, attr := range attrs {
		if !attr.Selected {
			return false
		}
	}
	return true
}
