package moderation

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

// DefaultLabelerDID is the service-operated labeler every session
// subscribes to.
const DefaultLabelerDID = "did:plc:ar7c4by46qjdydhdevvrndac"

// Labeler describes one label provider active for the current session.
type Labeler struct {
	DID         domain.DID
	DisplayName string
	Labels      []string
}

// Configurator resolves which labelers apply to a session. Signed-in
// accounts get the label definitions fetched from the appview; guests fall
// back to the default labeler with no custom definitions.
type Configurator struct {
	http       *http.Client
	appviewURL string
	log        zerolog.Logger

	mu       sync.RWMutex
	labelers []Labeler
	guest    bool
}

var _ ports.ModerationConfigurator = (*Configurator)(nil)

func NewConfigurator(httpClient *http.Client, appviewURL string, log zerolog.Logger) *Configurator {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}

	c := &Configurator{
		http:       httpClient,
		appviewURL: strings.TrimRight(appviewURL, "/"),
		log:        log,
	}
	c.ConfigureForGuest()
	return c
}

func (c *Configurator) ConfigureForAccount(ctx context.Context, account domain.Account) error {
	labelers, err := c.fetchLabelers(ctx, []string{DefaultLabelerDID})
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.labelers = labelers
	c.guest = false
	c.mu.Unlock()

	c.log.Debug().Str("did", string(account.DID)).Int("labelers", len(labelers)).Msg("moderation configured")
	return nil
}

func (c *Configurator) ConfigureForGuest() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.labelers = []Labeler{{DID: DefaultLabelerDID}}
	c.guest = true
}

// Active returns the labelers the current session subscribes to.
func (c *Configurator) Active() []Labeler {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return append([]Labeler(nil), c.labelers...)
}

func (c *Configurator) IsGuest() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.guest
}

func (c *Configurator) fetchLabelers(ctx context.Context, dids []string) ([]Labeler, error) {
	endpoint := c.appviewURL + "/xrpc/app.bsky.labeler.getServices"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build labeler request: %w", err)
	}
	q := req.URL.Query()
	for _, did := range dids {
		q.Add("dids", did)
	}
	q.Set("detailed", "true")
	req.URL.RawQuery = q.Encode()

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch labeler services: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch labeler services: unexpected status %d", resp.StatusCode)
	}

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read labeler services: %w", err)
	}

	var body struct {
		Views []struct {
			Creator struct {
				DID         string `json:"did"`
				DisplayName string `json:"displayName"`
			} `json:"creator"`
			Policies struct {
				LabelValues []string `json:"labelValues"`
			} `json:"policies"`
		} `json:"views"`
	}
	if err := json.Unmarshal(payload, &body); err != nil {
		return nil, fmt.Errorf("decode labeler services: %w", err)
	}

	labelers := make([]Labeler, 0, len(body.Views))
	for _, view := range body.Views {
		labelers = append(labelers, Labeler{
			DID:         domain.DID(view.Creator.DID),
			DisplayName: view.Creator.DisplayName,
			Labels:      view.Policies.LabelValues,
		})
	}

	return labelers, nil
}
