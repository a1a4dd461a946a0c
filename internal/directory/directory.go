// Package directory implements the directory client: registration,
// discovery, deregistration and health-checking against an external
// discovery service, with graceful degradation whenever the service
// is unreachable or absent. No method here returns a fatal error to
// its caller; transport failures degrade to sentinel values so the
// gateway can always fall back to its static backend table.
package directory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/keewillidevnet/miga-mcp-gateway/internal/capability"
	"github.com/keewillidevnet/miga-mcp-gateway/internal/telemetry"
)

// Registration status sentinels. Standalone means no directory URL
// was configured at all; Error means a directory was configured but
// registration failed (the caller should still proceed, just not
// attempt to deregister later).
const (
	StatusStandalone = "standalone"
	StatusError      = "error"
)

// Record is the canonical discovery record shape, modeled on the
// OASF record: a name, version, description, platform/role/transport
// attributes, and the list of tool capabilities the backend exposes.
type Record struct {
	Name        string                 `json:"name"`
	Version     string                 `json:"version"`
	Description string                 `json:"description"`
	Attributes  RecordAttributes       `json:"attributes"`
	Skills      []string               `json:"skills"`
	Domains     []string               `json:"domains"`
	Tools       []capability.Capability `json:"tools"`
	Metadata    map[string]any         `json:"metadata,omitempty"`
}

// RecordAttributes carries the platform/role/transport/endpoint tuple
// used for discovery filtering.
type RecordAttributes struct {
	Platform  string            `json:"platform"`
	Roles     []capability.Role `json:"roles"`
	Transport string            `json:"transport"`
	Endpoint  string            `json:"endpoint"`
}

// Client talks to the external discovery service over HTTP. A
// zero-value baseURL puts the client in standalone mode: every method
// degrades immediately without attempting a network call.
type Client struct {
	baseURL string
	http    *http.Client
	log     telemetry.Logger
	met     telemetry.Metrics

	cacheTTL time.Duration
	mu       sync.Mutex
	cachedAt time.Time
	cached   []Record
}

// New constructs a directory Client. baseURL == "" selects standalone
// mode permanently.
func New(baseURL string, timeout, cacheTTL time.Duration, log telemetry.Logger, met telemetry.Metrics) *Client {
	return &Client{
		baseURL:  baseURL,
		http:     &http.Client{Timeout: timeout},
		log:      log,
		met:      met,
		cacheTTL: cacheTTL,
	}
}

// Standalone reports whether this client was constructed without a
// directory URL.
func (c *Client) Standalone() bool { return c.baseURL == "" }

// Register announces rec to the directory. It returns a correlation
// id on success, StatusStandalone if no directory is configured, or
// StatusError if the call failed for any other reason (connection
// refused, timeout, non-2xx). Callers must only attempt Deregister
// when the returned id is neither sentinel.
func (c *Client) Register(ctx context.Context, rec Record) string {
	if c.Standalone() {
		return StatusStandalone
	}
	body, err := json.Marshal(rec)
	if err != nil {
		c.log.Warn(ctx, "directory register marshal failed", "error", err.Error())
		return StatusError
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/register", bytes.NewReader(body))
	if err != nil {
		return StatusError
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Warn(ctx, "directory register unreachable", "error", err.Error())
		c.met.IncCounter("directory.register.errors", 1)
		return StatusError
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		c.log.Warn(ctx, "directory register rejected", "status", resp.StatusCode)
		return StatusError
	}
	var out struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil || out.ID == "" {
		return StatusError
	}
	c.met.IncCounter("directory.register.ok", 1)
	return out.ID
}

// Discover lists backend records matching the given skills/roles/
// platform filters. Any failure — including "not configured" —
// returns an empty slice, never an error; callers must treat an empty
// result as "fall back to the static table", not as "no backends
// exist".
func (c *Client) Discover(ctx context.Context, skills []string, roles []capability.Role, platform string) []Record {
	if c.Standalone() {
		return nil
	}
	if cached, ok := c.cacheHit(); ok {
		return filterRecords(cached, skills, roles, platform)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/discover", nil)
	if err != nil {
		return nil
	}
	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Warn(ctx, "directory discover unreachable", "error", err.Error())
		c.met.IncCounter("directory.discover.errors", 1)
		return nil
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		c.log.Warn(ctx, "directory discover rejected", "status", resp.StatusCode)
		return nil
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil
	}
	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil
	}
	c.storeCache(records)
	c.met.IncCounter("directory.discover.ok", 1, "count", fmt.Sprintf("%d", len(records)))
	return filterRecords(records, skills, roles, platform)
}

func (c *Client) cacheHit() ([]Record, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cachedAt.IsZero() || time.Since(c.cachedAt) > c.cacheTTL {
		return nil, false
	}
	return c.cached, true
}

func (c *Client) storeCache(records []Record) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cached = records
	c.cachedAt = time.Now()
}

func filterRecords(records []Record, skills []string, roles []capability.Role, platform string) []Record {
	if len(skills) == 0 && len(roles) == 0 && platform == "" {
		return records
	}
	var out []Record
	for _, r := range records {
		if platform != "" && r.Attributes.Platform != platform {
			continue
		}
		if len(roles) > 0 && !anyRoleMatches(r.Attributes.Roles, roles) {
			continue
		}
		if len(skills) > 0 && !anySkillMatches(r.Skills, skills) {
			continue
		}
		out = append(out, r)
	}
	return out
}

func anyRoleMatches(have []capability.Role, want []capability.Role) bool {
	for _, w := range want {
		for _, h := range have {
			if h == w {
				return true
			}
		}
	}
	return false
}

func anySkillMatches(have []string, want []string) bool {
	for _, w := range want {
		for _, h := range have {
			if h == w {
				return true
			}
		}
	}
	return false
}

// Deregister removes id from the directory. Every failure is
// swallowed and reported as false; deregistration is best-effort and
// must never block gateway shutdown.
func (c *Client) Deregister(ctx context.Context, id string) bool {
	if c.Standalone() || id == StatusStandalone || id == StatusError {
		return false
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+"/register/"+id, nil)
	if err != nil {
		return false
	}
	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Warn(ctx, "directory deregister unreachable", "error", err.Error())
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode/100 == 2
}

// Health reports whether the directory service itself is reachable.
func (c *Client) Health(ctx context.Context) bool {
	if c.Standalone() {
		return false
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode/100 == 2
}
