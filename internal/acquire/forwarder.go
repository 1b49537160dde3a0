// Package acquire forwards resolved routing decisions to the download
// manager instance that should execute them. Payload translation for a
// specific manager lives behind the instance's endpoint; the forwarder only
// delivers the resolved routing.
package acquire

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/vmunix/pulsarr/internal/approval"
	"github.com/vmunix/pulsarr/internal/router"
)

const acquirePath = "/api/v1/acquisitions"

// Forwarder implements approval.Acquirer by POSTing the content reference
// and resolved routing to the target instance.
type Forwarder struct {
	instances  *router.Store
	httpClient *http.Client
	logger     *slog.Logger
}

// Option configures a Forwarder.
type Option func(*Forwarder)

// WithHTTPClient overrides the HTTP client (for testing).
func WithHTTPClient(c *http.Client) Option {
	return func(f *Forwarder) { f.httpClient = c }
}

// NewForwarder creates an acquisition forwarder over the instance store.
func NewForwarder(instances *router.Store, logger *slog.Logger, opts ...Option) *Forwarder {
	if logger == nil {
		logger = slog.Default()
	}
	f := &Forwarder{
		instances:  instances,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger.With("component", "acquire"),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// payload is the wire form of one acquisition.
type payload struct {
	Content approval.ContentRef    `json:"content"`
	Routing router.RoutingDecision `json:"routing"`
}

// Acquire delivers one routing decision to its instance. The instance must
// exist and be enabled. A 409 means the instance already holds the item and
// counts as success, so replaying an approved request or retrying after a
// partial fan-out failure is idempotent. Any other non-2xx response is an
// error so the caller can retry or surface it.
func (f *Forwarder) Acquire(ctx context.Context, content approval.ContentRef, routing router.RoutingDecision) error {
	inst, err := f.instances.GetInstance(routing.InstanceID)
	if err != nil {
		return fmt.Errorf("acquire %q: instance %d: %w", content.Title, routing.InstanceID, err)
	}
	if !inst.Enabled {
		return fmt.Errorf("acquire %q: instance %q is disabled", content.Title, inst.Name)
	}

	body, err := json.Marshal(payload{Content: content, Routing: routing})
	if err != nil {
		return fmt.Errorf("acquire %q: encode: %w", content.Title, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, inst.BaseURL+acquirePath, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("acquire %q: %w", content.Title, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Api-Key", inst.APIKey)

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("acquire %q: %w", content.Title, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusConflict {
		f.logger.Info("item already present on instance",
			"title", content.Title,
			"instance", inst.Name)
		return nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("acquire %q: instance %q returned %d", content.Title, inst.Name, resp.StatusCode)
	}

	f.logger.Info("acquisition delivered",
		"title", content.Title,
		"instance", inst.Name,
		"quality_profile", routing.QualityProfile,
		"root_folder", routing.RootFolder)
	return nil
}
