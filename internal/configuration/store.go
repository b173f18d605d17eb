// Package configuration holds the UI-facing state for plugin configuration:
// the plugin catalog and installs, the focused extractor and loader
// configurations, and the entity selection of the focused extractor.
package configuration

import (
	"context"
	"errors"
	"fmt"

	"pluginhub/internal/install"
	"pluginhub/internal/logging"
	"pluginhub/internal/orchestrations"
	"pluginhub/internal/selection"
)

var (
	ErrGroupNotFound         = errors.New("entity group not found")
	ErrAttributeNotFound     = errors.New("attribute not found")
	ErrNoEntities            = errors.New("no entities loaded")
	ErrUnknownCollectionType = errors.New("unknown collection type")
	ErrPluginNameRequired    = errors.New("plugin name is required")
)

// Event names published by the store.
const (
	EventInstallStarted       = "install_started"
	EventInstallCompleted     = "install_completed"
	EventInstallFailed        = "install_failed"
	EventCatalogRefreshed     = "catalog_refreshed"
	EventInstalledRefreshed   = "installed_refreshed"
	EventEntitiesLoaded       = "entities_loaded"
	EventEntitiesError        = "entities_error"
	EventSelectionChanged     = "selection_changed"
	EventConfigurationLoaded  = "configuration_loaded"
	EventConfigurationCleared = "configuration_cleared"
)

// API is the orchestration service as seen by the store.
type API interface {
	install.Source
	InstallPlugin(ctx context.Context, cfg orchestrations.InstallConfig) error
	GetEntityListing(ctx context.Context, extractorName string) (*orchestrations.EntityListing, error)
	GetPluginConfiguration(ctx context.Context, ref orchestrations.PluginRef) (orchestrations.Configuration, error)
	SavePluginConfiguration(ctx context.Context, cfg orchestrations.Configuration) error
	SubmitEntitySelection(ctx context.Context, tree *selection.EntityTree) error
}

// OperationLog records install attempts. It never influences store state.
type OperationLog interface {
	StartInstall(ctx context.Context, ct orchestrations.CollectionType, name string) (string, error)
	CompleteInstall(ctx context.Context, id string) error
	FailInstall(ctx context.Context, id, message string) error
}

// Publisher receives state change notifications.
type Publisher interface {
	Publish(event string, data interface{})
}

// Options configures optional store collaborators.
type Options struct {
	// LogoBaseURL is the path prefix of plugin logo images.
	LogoBaseURL string
	Operations  OperationLog
	Events      Publisher
}

// Store is the application context owning all UI state. Handlers share one
// Store; every mutation is applied under the lock of the component it
// touches, and external calls are made without holding any lock.
type Store struct {
	api      API
	cache    *Cache
	tracker  *install.Tracker
	ops      OperationLog
	events   Publisher
	logoBase string
}

// NewStore creates a store backed by api.
func NewStore(api API, opts Options) *Store {
	logoBase := opts.LogoBaseURL
	if logoBase == "" {
		logoBase = DefaultLogoBaseURL
	}
	return &Store{
		api:      api,
		cache:    NewCache(),
		tracker:  install.NewTracker(api),
		ops:      opts.Operations,
		events:   opts.Events,
		logoBase: logoBase,
	}
}

// Cache exposes the configuration cache.
func (s *Store) Cache() *Cache {
	return s.cache
}

// Tracker exposes the install tracker.
func (s *Store) Tracker() *install.Tracker {
	return s.tracker
}

func (s *Store) publish(event string, data interface{}) {
	if s.events != nil {
		s.events.Publish(event, data)
	}
}

// LoadPlugins replaces the plugin catalog.
func (s *Store) LoadPlugins(ctx context.Context) error {
	if err := s.tracker.RefreshCatalog(ctx); err != nil {
		logging.Errorf("Failed to load plugins: %v", err)
		return err
	}
	s.publish(EventCatalogRefreshed, nil)
	return nil
}

// LoadInstalledPlugins replaces the installed-plugins snapshot.
func (s *Store) LoadInstalledPlugins(ctx context.Context) error {
	if err := s.tracker.RefreshInstalled(ctx); err != nil {
		logging.Errorf("Failed to load installed plugins: %v", err)
		return err
	}
	s.publish(EventInstalledRefreshed, nil)
	return nil
}

// InstallPlugin marks the plugin as installing, asks the service to install
// it and, once that succeeds, completes the install which refreshes the
// installed plugins and then the catalog. A failed install request leaves
// the plugin marked as installing.
func (s *Store) InstallPlugin(ctx context.Context, cfg orchestrations.InstallConfig) error {
	if cfg.Name == "" {
		return ErrPluginNameRequired
	}
	if !cfg.CollectionType.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownCollectionType, cfg.CollectionType)
	}

	opID := s.startOperation(ctx, cfg)
	s.tracker.Start(cfg.CollectionType, cfg.Name)
	s.publish(EventInstallStarted, cfg)

	if err := s.api.InstallPlugin(ctx, cfg); err != nil {
		logging.Errorf("Install of %s %s failed: %v", cfg.CollectionType, cfg.Name, err)
		s.failOperation(ctx, opID, err)
		s.publish(EventInstallFailed, map[string]interface{}{
			"name":           cfg.Name,
			"collectionType": cfg.CollectionType,
			"error":          err.Error(),
		})
		return err
	}

	logging.Infof("Installed %s %s", cfg.CollectionType, cfg.Name)
	s.completeOperation(ctx, opID)

	if err := s.tracker.Complete(ctx, cfg.CollectionType, cfg.Name); err != nil {
		logging.Warnf("Install of %s %s finished but refresh failed: %v", cfg.CollectionType, cfg.Name, err)
		s.publish(EventInstallCompleted, cfg)
		return err
	}
	s.publish(EventInstallCompleted, cfg)
	return nil
}

func (s *Store) startOperation(ctx context.Context, cfg orchestrations.InstallConfig) string {
	if s.ops == nil {
		return ""
	}
	id, err := s.ops.StartInstall(ctx, cfg.CollectionType, cfg.Name)
	if err != nil {
		logging.Warnf("Failed to record install of %s: %v", cfg.Name, err)
		return ""
	}
	return id
}

func (s *Store) completeOperation(ctx context.Context, id string) {
	if s.ops == nil || id == "" {
		return
	}
	if err := s.ops.CompleteInstall(ctx, id); err != nil {
		logging.Warnf("Failed to record install completion %s: %v", id, err)
	}
}

func (s *Store) failOperation(ctx context.Context, id string, cause error) {
	if s.ops == nil || id == "" {
		return
	}
	if err := s.ops.FailInstall(ctx, id, cause.Error()); err != nil {
		logging.Warnf("Failed to record install failure %s: %v", id, err)
	}
}

// LoadEntityListing fetches the entities of an extractor. The error flag is
// reset first; a failure raises it and keeps the previous tree.
func (s *Store) LoadEntityListing(ctx context.Context, extractorName string) error {
	seq := s.cache.beginEntities()

	listing, err := s.api.GetEntityListing(ctx, extractorName)
	if err != nil {
		if s.cache.failEntities(seq) {
			s.publish(EventEntitiesError, map[string]string{"extractor": extractorName})
		}
		logging.Errorf("Failed to load entities for %s: %v", extractorName, err)
		return err
	}

	if !s.cache.setEntities(seq, treeFromListing(listing)) {
		logging.Debugf("Discarding stale entity listing for %s", extractorName)
		return nil
	}
	s.publish(EventEntitiesLoaded, map[string]string{"extractor": extractorName})
	return nil
}

// ClearEntityListing empties the entity tree.
func (s *Store) ClearEntityListing() {
	s.cache.ClearEntities()
	s.publish(EventSelectionChanged, nil)
}

func treeFromListing(listing *orchestrations.EntityListing) *selection.EntityTree {
	if listing == nil {
		return nil
	}
	tree := &selection.EntityTree{
		ExtractorName: listing.ExtractorName,
		EntityGroups:  make([]*selection.EntityGroup, 0, len(listing.EntityGroups)),
	}
	for _, g := range listing.EntityGroups {
		group := &selection.EntityGroup{
			Name:       g.Name,
			Selected:   g.Selected,
			Attributes: make([]*selection.Attribute, 0, len(g.Attributes)),
		}
		for _, a := range g.Attributes {
			group.Attributes = append(group.Attributes, &selection.Attribute{Name: a.Name, Selected: a.Selected})
		}
		tree.EntityGroups = append(tree.EntityGroups, group)
	}
	return tree
}

// LoadFocusedConfiguration fetches the configuration of a plugin into slot.
func (s *Store) LoadFocusedConfiguration(ctx context.Context, name string, slot Slot) error {
	seq := s.cache.begin(slot)

	cfg, err := s.api.GetPluginConfiguration(ctx, orchestrations.PluginRef{Name: name, Type: slot.CollectionType()})
	if err != nil {
		logging.Errorf("Failed to load %s configuration for %s: %v", slot, name, err)
		return err
	}

	if !s.cache.setFocused(slot, seq, cfg) {
		logging.Debugf("Discarding stale %s configuration for %s", slot, name)
		return nil
	}
	s.publish(EventConfigurationLoaded, map[string]string{"slot": string(slot), "name": name})
	return nil
}

// LoadExtractorConfiguration focuses the configuration of an extractor.
func (s *Store) LoadExtractorConfiguration(ctx context.Context, name string) error {
	return s.LoadFocusedConfiguration(ctx, name, SlotExtractor)
}

// LoadLoaderConfiguration focuses the configuration of a loader.
func (s *Store) LoadLoaderConfiguration(ctx context.Context, name string) error {
	return s.LoadFocusedConfiguration(ctx, name, SlotLoader)
}

// ClearFocused resets slot to the empty record.
func (s *Store) ClearFocused(slot Slot) {
	s.cache.ClearFocused(slot)
	s.publish(EventConfigurationCleared, map[string]string{"slot": string(slot)})
}

// ClearExtractorConfiguration resets the focused extractor configuration.
func (s *Store) ClearExtractorConfiguration() {
	s.ClearFocused(SlotExtractor)
}

// ClearLoaderConfiguration resets the focused loader configuration.
func (s *Store) ClearLoaderConfiguration() {
	s.ClearFocused(SlotLoader)
}

// SaveConfiguration forwards a configuration record to the service. The
// cached focus is not updated from the outcome.
func (s *Store) SaveConfiguration(ctx context.Context, cfg orchestrations.Configuration) error {
	if err := s.api.SavePluginConfiguration(ctx, cfg); err != nil {
		logging.Errorf("Failed to save configuration for %s: %v", cfg.Name(), err)
		return err
	}
	return nil
}

// SaveExtractorConfiguration saves an extractor configuration record.
func (s *Store) SaveExtractorConfiguration(ctx context.Context, cfg orchestrations.Configuration) error {
	return s.SaveConfiguration(ctx, cfg)
}

// SaveLoaderConfiguration saves a loader configuration record.
func (s *Store) SaveLoaderConfiguration(ctx context.Context, cfg orchestrations.Configuration) error {
	return s.SaveConfiguration(ctx, cfg)
}

// SelectEntities submits the current entity selection.
func (s *Store) SelectEntities(ctx context.Context) error {
	tree := s.cache.Entities()
	if tree == nil {
		return ErrNoEntities
	}
	if err := s.api.SubmitEntitySelection(ctx, tree); err != nil {
		logging.Errorf("Failed to submit entity selection for %s: %v", tree.ExtractorName, err)
		return err
	}
	return nil
}

// ToggleEntityGroup toggles a group and cascades to its attributes.
func (s *Store) ToggleEntityGroup(groupName string) error {
	err := s.cache.mutateEntities(func(tree *selection.EntityTree) error {
		if tree == nil {
			return ErrNoEntities
		}
		group := tree.Group(groupName)
		if group == nil {
			return fmt.Errorf("%w: %s", ErrGroupNotFound, groupName)
		}
		selection.ToggleGroup(group)
		return nil
	})
	if err != nil {
		return err
	}
	s.publish(EventSelectionChanged, nil)
	return nil
}

// ToggleEntityAttribute toggles one attribute and re-derives its group.
func (s *Store) ToggleEntityAttribute(groupName, attributeName string) error {
	err := s.cache.mutateEntities(func(tree *selection.EntityTree) error {
		if tree == nil {
			return ErrNoEntities
		}
		group := tree.Group(groupName)
		if group == nil {
			return fmt.Errorf("%w: %s", ErrGroupNotFound, groupName)
		}
		attr := group.Attribute(attributeName)
		if attr == nil {
			return fmt.Errorf("%w: %s.%s", ErrAttributeNotFound, groupName, attributeName)
		}
		selection.ToggleAttribute(group, attr)
		return nil
	})
	if err != nil {
		return err
	}
	s.publish(EventSelectionChanged, nil)
	return nil
}

// ToggleAllEntityGroupsOn selects every group that is not selected.
func (s *Store) ToggleAllEntityGroupsOn() error {
	return s.bulkToggle(selection.SelectAllGroups)
}

// ToggleAllEntityGroupsOff deselects every group and clears stray
// attribute selections.
func (s *Store) ToggleAllEntityGroupsOff() error {
	return s.bulkToggle(selection.DeselectAllGroups)
}

func (s *Store) bulkToggle(fn func(*selection.EntityTree)) error {
	err := s.cache.mutateEntities(func(tree *selection.EntityTree) error {
		if tree == nil {
			return ErrNoEntities
		}
		fn(tree)
		return nil
	})
	if err != nil {
		return err
	}
	s.publish(EventSelectionChanged, nil)
	return nil
}
