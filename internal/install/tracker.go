// Package install tracks plugin installs that are in flight and the plugin
// snapshots refreshed once an install completes.
package install

import (
	"context"
	"fmt"
	"sync"

	"pluginhub/internal/logging"
	"pluginhub/internal/orchestrations"
)

// Source is the part of the orchestration service the tracker refreshes from.
type Source interface {
	ListInstalledPlugins(ctx context.Context) (*orchestrations.InstalledPlugins, error)
	ListPlugins(ctx context.Context) (orchestrations.PluginSet, error)
}

// Tracker manages installing sets per collection type together with the
// installed and catalog snapshots.
type Tracker struct {
	mu         sync.RWMutex
	source     Source
	installing map[orchestrations.CollectionType][]string
	installed  orchestrations.PluginSet
	catalog    orchestrations.PluginSet
}

// NewTracker creates a tracker backed by source.
func NewTracker(source Source) *Tracker {
	installing := make(map[orchestrations.CollectionType][]string, len(orchestrations.CollectionTypes))
	for _, ct := range orchestrations.CollectionTypes {
		installing[ct] = []string{}
	}
	return &Tracker{
		source:     source,
		installing: installing,
		installed:  orchestrations.PluginSet{},
		catalog:    orchestrations.PluginSet{},
	}
}

// Start marks name as installing. Existing entries are not checked, so
// starting the same plugin twice records it twice.
func (t *Tracker) Start(ct orchestrations.CollectionType, name string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.installing[ct] = append(t.installing[ct], name)
}

// Finish removes every occurrence of name from the installing list of ct.
func (t *Tracker) Finish(ct orchestrations.CollectionType, name string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	remaining := t.installing[ct][:0]
	for _, entry := range t.installing[ct] {
		if entry != name {
			remaining = append(remaining, entry)
		}
	}
	t.installing[ct] = remaining
}

// Complete finishes an install and then refreshes the installed snapshot
// followed by the catalog. The catalog is only fetched once the installed
// refresh has returned successfully.
func (t *Tracker) Complete(ctx context.Context, ct orchestrations.CollectionType, name string) error {
	t.Finish(ct, name)

	if err := t.RefreshInstalled(ctx); err != nil {
		return err
	}
	return t.RefreshCatalog(ctx)
}

// RefreshInstalled replaces the installed snapshot. A response without a
// plugins section leaves the snapshot unchanged.
func (t *Tracker) RefreshInstalled(ctx context.Context) error {
	resp, err := t.source.ListInstalledPlugins(ctx)
	if err != nil {
		return fmt.Errorf("failed to refresh installed plugins: %w", err)
	}
	if resp == nil || resp.Plugins == nil {
		logging.Debugf("Installed plugins response has no plugins section, keeping snapshot")
		return nil
	}

	t.mu.Lock()
	t.installed = resp.Plugins
	t.mu.Unlock()
	return nil
}

// RefreshCatalog replaces the catalog snapshot.
func (t *Tracker) RefreshCatalog(ctx context.Context) error {
	catalog, err := t.source.ListPlugins(ctx)
	if err != nil {
		return fmt.Errorf("failed to refresh plugin catalog: %w", err)
	}
	if catalog == nil {
		catalog = orchestrations.PluginSet{}
	}

	t.mu.Lock()
	t.catalog = catalog
	t.mu.Unlock()
	return nil
}

// IsInstalled reports whether name is in the installed snapshot for ct.
func (t *Tracker) IsInstalled(ct orchestrations.CollectionType, name string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return t.installed.Has(ct, name)
}

// IsInstalling reports whether name has an install in flight for ct.
func (t *Tracker) IsInstalling(ct orchestrations.CollectionType, name string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()

	for _, entry := range t.installing[ct] {
		if entry == name {
			return true
		}
	}
	return false
}

// Installing returns a copy of the installing list for ct.
func (t *Tracker) Installing(ct orchestrations.CollectionType) []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return append([]string{}, t.installing[ct]...)
}

// InstallingAll returns a copy of every installing list.
func (t *Tracker) InstallingAll() map[orchestrations.CollectionType][]string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	result := make(map[orchestrations.CollectionType][]string, len(t.installing))
	for ct, names := range t.installing {
		result[ct] = append([]string{}, names...)
	}
	return result
}

// Installed returns a copy of the installed snapshot.
func (t *Tracker) Installed() orchestrations.PluginSet {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return t.installed.Clone()
}

// Catalog returns a copy of the catalog snapshot.
func (t *Tracker) Catalog() orchestrations.PluginSet {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return t.catalog.Clone()
}
