package orchestrations

import (
	"encoding/json"
	"fmt"
)

// CollectionType is a plugin category as used by the orchestration service.
type CollectionType string

const (
	Extractors CollectionType = "extractors"
	Loaders    CollectionType = "loaders"
	Models     CollectionType = "models"
)

// CollectionTypes lists the known collection types in display order.
var CollectionTypes = []CollectionType{Extractors, Loaders, Models}

// Valid reports whether c is one of the known collection types.
func (c CollectionType) Valid() bool {
	for _, known := range CollectionTypes {
		if c == known {
			return true
		}
	}
	return false
}

// Plugin describes a plugin in the catalog or in the installed snapshot.
type Plugin struct {
	Name        string `json:"name"`
	Namespace   string `json:"namespace,omitempty"`
	PipURL      string `json:"pip_url,omitempty"`
	Docs        string `json:"docs,omitempty"`
	Description string `json:"description,omitempty"`
}

// UnmarshalJSON accepts either a bare plugin name or a descriptor object.
// The catalog endpoint lists names only; the installed endpoint lists objects.
func (p *Plugin) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var name string
		if err := json.Unmarshal(data, &name); err != nil {
			return err
		}
		*p = Plugin{Name: name}
		return nil
	}

	type plain Plugin
	var decoded plain
	if err := json.Unmarshal(data, &decoded); err != nil {
		return err
	}
	*p = Plugin(decoded)
	return nil
}

// PluginSet maps a collection type to its plugins. Snapshots are replaced
// wholesale, never edited in place.
type PluginSet map[CollectionType][]Plugin

// Has reports whether a plugin with the given name is listed under ct.
func (s PluginSet) Has(ct CollectionType, name string) bool {
	for _, plugin := range s[ct] {
		if plugin.Name == name {
			return true
		}
	}
	return false
}

// Clone returns a copy that does not share slices with s.
func (s PluginSet) Clone() PluginSet {
	if s == nil {
		return nil
	}
	out := make(PluginSet, len(s))
	for ct, plugins := range s {
		out[ct] = append([]Plugin(nil), plugins...)
	}
	return out
}

// InstalledPlugins is the response of the installed-plugins endpoint. A nil
// Plugins field means the project reported no plugin section at all.
type InstalledPlugins struct {
	Plugins PluginSet `json:"plugins"`
}

// EntityListing is the raw entity listing returned for an extractor.
type EntityListing struct {
	ExtractorName string               `json:"extractor_name"`
	EntityGroups  []EntityGroupListing `json:"entity_groups"`
}

// EntityGroupListing is one entity group of an EntityListing.
type EntityGroupListing struct {
	Name       string             `json:"name"`
	Selected   bool               `json:"selected"`
	Attributes []AttributeListing `json:"attributes"`
}

// AttributeListing is one attribute of an EntityGroupListing.
type AttributeListing struct {
	Name     string `json:"name"`
	Selected bool   `json:"selected"`
}

// PluginRef identifies a plugin whose configuration is requested.
type PluginRef struct {
	Name string         `json:"name"`
	Type CollectionType `json:"type"`
}

// Configuration is an opaque plugin configuration record.
type Configuration map[string]any

// Name returns the plugin name stored in the record, if any.
func (c Configuration) Name() string {
	if name, ok := c["name"].(string); ok {
		return name
	}
	return ""
}

// Clone returns a shallow copy of the record.
func (c Configuration) Clone() Configuration {
	out := make(Configuration, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}

// InstallConfig is the payload of an install request.
type InstallConfig struct {
	Name           string         `json:"name"`
	CollectionType CollectionType `json:"collectionType"`
	Namespace      string         `json:"namespace,omitempty"`
	PipURL         string         `json:"pip_url,omitempty"`
}

// APIError is returned when the orchestration service answers with a
// non-2xx status.
type APIError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("orchestration API %s %s returned %d: %s", e.Method, e.Path, e.StatusCode, e.Body)
}
