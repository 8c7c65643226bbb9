package gates

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/bnema/bsky-accounts-cli/internal/domain"
	"github.com/bnema/bsky-accounts-cli/internal/ports"
)

// HTTPSource fetches per-account feature gate evaluations ahead of time so
// lookups after login never wait on the network. A fetch failure leaves the
// previous (or empty) gate set in place; callers treat missing gates as
// disabled.
type HTTPSource struct {
	http    *http.Client
	baseURL string
	log     zerolog.Logger

	mu    sync.RWMutex
	cache map[domain.DID]map[string]bool
}

var _ ports.FeatureGateSource = (*HTTPSource)(nil)

func NewHTTPSource(httpClient *http.Client, baseURL string, log zerolog.Logger) *HTTPSource {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}

	return &HTTPSource{
		http:    httpClient,
		baseURL: strings.TrimRight(baseURL, "/"),
		log:     log,
		cache:   map[domain.DID]map[string]bool{},
	}
}

func (s *HTTPSource) Prefetch(ctx context.Context, did domain.DID) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/gates", nil)
	if err != nil {
		return fmt.Errorf("build gates request: %w", err)
	}
	q := req.URL.Query()
	q.Set("did", string(did))
	req.URL.RawQuery = q.Encode()

	resp, err := s.http.Do(req)
	if err != nil {
		return fmt.Errorf("fetch feature gates: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetch feature gates: unexpected status %d", resp.StatusCode)
	}

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read feature gates: %w", err)
	}

	var body struct {
		Gates map[string]bool `json:"gates"`
	}
	if err := json.Unmarshal(payload, &body); err != nil {
		return fmt.Errorf("decode feature gates: %w", err)
	}

	s.mu.Lock()
	s.cache[did] = body.Gates
	s.mu.Unlock()

	s.log.Debug().Str("did", string(did)).Int("gates", len(body.Gates)).Msg("feature gates prefetched")
	return nil
}

// Enabled reports a cached gate value. Unknown accounts and unknown gates
// read as disabled.
func (s *HTTPSource) Enabled(did domain.DID, gate string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.cache[did][gate]
}

// Disabled is the source used when no gate endpoint is configured; every
// gate reads as off and prefetching is free.
type Disabled struct{}

var _ ports.FeatureGateSource = Disabled{}

func (Disabled) Prefetch(context.Context, domain.DID) error { return nil }

func (Disabled) Enabled(domain.DID, string) bool { return false }
