package configuration

import (
	"strings"

	"pluginhub/internal/orchestrations"
	"pluginhub/internal/selection"
)

// DefaultLogoBaseURL is where plugin logos are served from.
const DefaultLogoBaseURL = "/static/logos"

const (
	extractorPrefix = "tap-"
	loaderPrefix    = "target-"
)

// ExtractorNameWithoutPrefix removes the first "tap-" from an extractor name.
func ExtractorNameWithoutPrefix(name string) string {
	return strings.Replace(name, extractorPrefix, "", 1)
}

// LoaderNameWithoutPrefix removes the first "target-" from a loader name.
func LoaderNameWithoutPrefix(name string) string {
	return strings.Replace(name, loaderPrefix, "", 1)
}

// ExtractorImageURL returns the logo path of an extractor.
func (s *Store) ExtractorImageURL(name string) string {
	return s.logoURL(ExtractorNameWithoutPrefix(name))
}

// LoaderImageURL returns the logo path of a loader.
func (s *Store) LoaderImageURL(name string) string {
	return s.logoURL(LoaderNameWithoutPrefix(name))
}

// ImageURL returns the logo path of a plugin of any collection type.
func (s *Store) ImageURL(ct orchestrations.CollectionType, name string) string {
	if ct == orchestrations.Loaders {
		return s.LoaderImageURL(name)
	}
	return s.ExtractorImageURL(name)
}

func (s *Store) logoURL(stripped string) string {
	return strings.TrimRight(s.logoBase, "/") + "/" + stripped + "-logo.png"
}

// IsPluginInstalled reports whether name is in the installed snapshot.
func (s *Store) IsPluginInstalled(ct orchestrations.CollectionType, name string) bool {
	return s.tracker.IsInstalled(ct, name)
}

// IsInstallingPlugin reports whether name has an install in flight.
func (s *Store) IsInstallingPlugin(ct orchestrations.CollectionType, name string) bool {
	return s.tracker.IsInstalling(ct, name)
}

// State is a read-only copy of everything the store holds.
type State struct {
	HasExtractorLoadingError      bool                                       `json:"hasExtractorLoadingError"`
	ExtractorInFocusConfiguration orchestrations.Configuration               `json:"extractorInFocusConfiguration"`
	LoaderInFocusConfiguration    orchestrations.Configuration               `json:"loaderInFocusConfiguration"`
	ExtractorInFocusEntities      *selection.EntityTree                      `json:"extractorInFocusEntities"`
	Plugins                       orchestrations.PluginSet                   `json:"plugins"`
	InstalledPlugins              orchestrations.PluginSet                   `json:"installedPlugins"`
	InstallingPlugins             map[orchestrations.CollectionType][]string `json:"installingPlugins"`
}

// Snapshot copies the current state.
func (s *Store) Snapshot() State {
	return State{
		HasExtractorLoadingError:      s.cache.HasEntityError(),
		ExtractorInFocusConfiguration: s.cache.Focused(SlotExtractor),
		LoaderInFocusConfiguration:    s.cache.Focused(SlotLoader),
		ExtractorInFocusEntities:      s.cache.Entities(),
		Plugins:                       s.tracker.Catalog(),
		InstalledPlugins:              s.tracker.Installed(),
		InstallingPlugins:             s.tracker.InstallingAll(),
	}
}
