package sources

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/civicmaps/geoflow/pkg/telemetry"
)

var ErrNotFound = errors.New("layer not found on server")

// Client fetches raw per-layer payloads from the dashboard's HTTP backend.
// Payloads come back as-is with no validity guarantee; normalization
// happens at the transform boundary, not here.
type Client struct {
	baseURL string
	http    *http.Client
	cache   *Cache
}

// NewClient wraps the backend at baseURL. cache may be nil to fetch
// uncached.
func NewClient(baseURL string, cache *Cache) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
		cache:   cache,
	}
}

// FetchLayer returns the payload for a logical layer (parcels, stations,
// flood_zones, ...), preferring the disk cache.
func (c *Client) FetchLayer(ctx context.Context, layer string) ([]byte, error) {
	if c.cache != nil {
		if data, ok := c.cache.Get(layer); ok {
			telemetry.CacheHitsTotal.Inc()
			return data, nil
		}
		telemetry.CacheMissesTotal.Inc()
	}

	url := fmt.Sprintf("%s/layers/%s", c.baseURL, layer)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			log.Printf("Error closing response body: %v", err)
		}
	}()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("bad status: %s", resp.Status)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if c.cache != nil {
		if err := c.cache.Set(layer, data); err != nil {
			log.Printf("Failed to cache layer %q: %v", layer, err)
		}
	}
	return data, nil
}
