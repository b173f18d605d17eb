package server

import (
	"fmt"
	"net/http"

	"pluginhub/internal/configuration"
	"pluginhub/internal/logging"
	"pluginhub/internal/orchestrations"
)

// PluginsResponse is the catalog view of GET /api/plugins
type PluginsResponse struct {
	Plugins           orchestrations.PluginSet                   `json:"plugins"`
	InstalledPlugins  orchestrations.PluginSet                   `json:"installedPlugins"`
	InstallingPlugins map[orchestrations.CollectionType][]string `json:"installingPlugins"`
}

// PluginStatusResponse describes one plugin for GET /api/plugins/status
type PluginStatusResponse struct {
	Name           string                        `json:"name"`
	CollectionType orchestrations.CollectionType `json:"collectionType"`
	DisplayName    string                        `json:"displayName"`
	ImageURL       string                        `json:"imageUrl"`
	Installed      bool                          `json:"installed"`
	Installing     bool                          `json:"installing"`
}

// handlePlugins handles GET /api/plugins
func (s *Server) handlePlugins(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if r.URL.Query().Get("refresh") == "1" {
		if err := s.store.LoadPlugins(r.Context()); err != nil {
			writeError(w, err)
			return
		}
	}

	state := s.store.Snapshot()
	writeJSON(w, http.StatusOK, PluginsResponse{
		Plugins:           state.Plugins,
		InstalledPlugins:  state.InstalledPlugins,
		InstallingPlugins: state.InstallingPlugins,
	})
}

// handleRefreshInstalled handles POST /api/plugins/installed/refresh
func (s *Server) handleRefreshInstalled(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := s.store.LoadInstalledPlugins(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"installedPlugins": s.store.Tracker().Installed(),
	})
}

// handleInstallPlugin handles POST /api/plugins/install. The install runs in
// the background; progress arrives as install_* events.
func (s *Server) handleInstallPlugin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var cfg orchestrations.InstallConfig
	if err := decodeJSON(r, &cfg); err != nil {
		http.Error(w, fmt.Sprintf("Invalid request body: %v", err), http.StatusBadRequest)
		return
	}
	if cfg.Name == "" {
		writeError(w, configuration.ErrPluginNameRequired)
		return
	}
	if !cfg.CollectionType.Valid() {
		writeError(w, fmt.Errorf("%w: %q", configuration.ErrUnknownCollectionType, cfg.CollectionType))
		return
	}

	s.installWG.Add(1)
	go func() {
		defer s.installWG.Done()
		if err := s.store.InstallPlugin(s.installCtx, cfg); err != nil {
			logging.Warnf("Background install of %s %s ended with error: %v", cfg.CollectionType, cfg.Name, err)
		}
	}()

	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"success":        true,
		"message":        fmt.Sprintf("Installing %s", cfg.Name),
		"name":           cfg.Name,
		"collectionType": cfg.CollectionType,
	})
}

// handlePluginStatus handles GET /api/plugins/status?type=&name=
func (s *Server) handlePluginStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	ct := orchestrations.CollectionType(r.URL.Query().Get("type"))
	name := r.URL.Query().Get("name")
	if name == "" {
		writeError(w, configuration.ErrPluginNameRequired)
		return
	}
	if !ct.Valid() {
		writeError(w, fmt.Errorf("%w: %q", configuration.ErrUnknownCollectionType, ct))
		return
	}

	displayName := configuration.ExtractorNameWithoutPrefix(name)
	if ct == orchestrations.Loaders {
		displayName = configuration.LoaderNameWithoutPrefix(name)
	}

	writeJSON(w, http.StatusOK, PluginStatusResponse{
		Name:           name,
		CollectionType: ct,
		DisplayName:    displayName,
		ImageURL:       s.store.ImageURL(ct, name),
		Installed:      s.store.IsPluginInstalled(ct, name),
		Installing:     s.store.IsInstallingPlugin(ct, name),
	})
}
