// Package orchestrations is the HTTP client for the plugin orchestration service.
package orchestrations

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"pluginhub/internal/logging"
	"pluginhub/internal/selection"
	"pluginhub/internal/telemetry"
)

// maxErrorBody caps how much of a failed response body ends up in an APIError.
const maxErrorBody = 4096

// Client talks to the orchestration service over HTTP/JSON.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a client for the service rooted at baseURL.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// ListPlugins fetches the full plugin catalog.
func (c *Client) ListPlugins(ctx context.Context) (PluginSet, error) {
	var catalog PluginSet
	if err := c.do(ctx, http.MethodGet, "/plugins/all", nil, &catalog); err != nil {
		return nil, fmt.Errorf("failed to list plugins: %w", err)
	}
	return catalog, nil
}

// GetEntityListing fetches the selectable entities of an extractor.
func (c *Client) GetEntityListing(ctx context.Context, extractorName string) (*EntityListing, error) {
	var listing EntityListing
	path := "/extractors/entities/" + url.PathEscape(extractorName)
	if err := c.do(ctx, http.MethodPost, path, nil, &listing); err != nil {
		return nil, fmt.Errorf("failed to get entities for %s: %w", extractorName, err)
	}
	return &listing, nil
}

// GetPluginConfiguration fetches the configuration record of a plugin.
func (c *Client) GetPluginConfiguration(ctx context.Context, ref PluginRef) (Configuration, error) {
	var configuration Configuration
	path := fmt.Sprintf("/get/configuration/%s/%s", url.PathEscape(string(ref.Type)), url.PathEscape(ref.Name))
	if err := c.do(ctx, http.MethodGet, path, nil, &configuration); err != nil {
		return nil, fmt.Errorf("failed to get configuration for %s: %w", ref.Name, err)
	}
	if configuration == nil {
		configuration = Configuration{}
	}
	return configuration, nil
}

// SavePluginConfiguration stores a configuration record. The response body
// is not inspected.
func (c *Client) SavePluginConfiguration(ctx context.Context, configuration Configuration) error {
	if err := c.do(ctx, http.MethodPost, "/save/configuration", configuration, nil); err != nil {
		return fmt.Errorf("failed to save configuration: %w", err)
	}
	return nil
}

// InstallPlugin asks the service to install a plugin.
func (c *Client) InstallPlugin(ctx context.Context, cfg InstallConfig) error {
	if err := c.do(ctx, http.MethodPost, "/plugins/install", cfg, nil); err != nil {
		return fmt.Errorf("failed to install %s %s: %w", cfg.CollectionType, cfg.Name, err)
	}
	return nil
}

// ListInstalledPlugins fetches the plugins installed in the project.
func (c *Client) ListInstalledPlugins(ctx context.Context) (*InstalledPlugins, error) {
	var installed InstalledPlugins
	if err := c.do(ctx, http.MethodGet, "/plugins/installed", nil, &installed); err != nil {
		return nil, fmt.Errorf("failed to list installed plugins: %w", err)
	}
	return &installed, nil
}

// SubmitEntitySelection sends the selection tree to the service. The
// response body is not inspected.
func (c *Client) SubmitEntitySelection(ctx context.Context, tree *selection.EntityTree) error {
	if err := c.do(ctx, http.MethodPost, "/select-entities", tree, nil); err != nil {
		return fmt.Errorf("failed to submit entity selection: %w", err)
	}
	return nil
}

// do performs one request. in is JSON-encoded as the body when non-nil; out
// receives the decoded response when non-nil.
func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	ctx, span := telemetry.StartSpan(ctx, "orchestrations.request")
	defer span.End()
	span.SetAttributes(
		attribute.String("http.method", method),
		attribute.String("orchestrations.path", path),
	)

	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			span.RecordError(err)
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	defer resp.Body.Close() //nolint:errcheck // Cleanup, error not critical

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	logging.Debugf("orchestrations %s %s -> %d (%s)", method, path, resp.StatusCode, time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		apiErr := &APIError{
			Method:     method,
			Path:       path,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(data)),
		}
		span.SetStatus(codes.Error, apiErr.Error())
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && err != io.EOF {
		span.RecordError(err)
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
