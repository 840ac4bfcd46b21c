// ABOUTME: Callsign profile enrichment client for a HamDB-style lookup API
// ABOUTME: Resolves operator name/location metadata asynchronously, never on the critical path

package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/2389/pileup-gateway/internal/store"
)

// Lookup resolves optional profile metadata for a callsign. Implementations
// must respect ctx; a failed or slow lookup never blocks queue operations
// because the coordinator always calls Lookup outside its critical section.
type Lookup interface {
	Lookup(ctx context.Context, callsign string) (*store.Profile, error)
}

// Disabled is a Lookup that resolves nothing. Used when enrichment is
// turned off in config.
type Disabled struct{}

// Lookup always returns nil, nil: no profile, no error.
func (Disabled) Lookup(ctx context.Context, callsign string) (*store.Profile, error) {
	return nil, nil
}

// HTTPLookup queries a HamDB-compatible JSON endpoint:
// GET {base}/{callsign}/json returns {"hamdb":{"callsign":{...}}}.
type HTTPLookup struct {
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

// NewHTTPLookup creates a lookup client. Pass nil logger for default.
func NewHTTPLookup(baseURL string, timeout time.Duration, logger *slog.Logger) *HTTPLookup {
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPLookup{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
		logger:  logger.With("component", "enrich"),
	}
}

// hamdbResponse mirrors the subset of the HamDB payload we keep.
type hamdbResponse struct {
	HamDB struct {
		Callsign struct {
			Call    string `json:"call"`
			Fname   string `json:"fname"`
			Name    string `json:"name"`
			Country string `json:"country"`
			Grid    string `json:"grid"`
		} `json:"callsign"`
	} `json:"hamdb"`
}

// Lookup fetches profile metadata for the given callsign.
func (h *HTTPLookup) Lookup(ctx context.Context, callsign string) (*store.Profile, error) {
	endpoint := fmt.Sprintf("%s/%s/json", h.baseURL, url.PathEscape(callsign))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("building lookup request: %w", err)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling lookup service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("lookup service returned status %d", resp.StatusCode)
	}

	var parsed hamdbResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decoding lookup response: %w", err)
	}

	cs := parsed.HamDB.Callsign
	// HamDB reports misses with call = "NOT_FOUND" rather than a 404
	if cs.Call == "" || cs.Call == "NOT_FOUND" {
		return nil, fmt.Errorf("callsign %s not found", callsign)
	}

	name := cs.Fname
	if name != "" && cs.Name != "" {
		name = cs.Fname + " " + cs.Name
	} else if name == "" {
		name = cs.Name
	}

	h.logger.Debug("callsign enriched", "callsign", callsign, "country", cs.Country)

	return &store.Profile{
		Name:    name,
		Country: cs.Country,
		Grid:    cs.Grid,
	}, nil
}
