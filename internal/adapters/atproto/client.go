package atproto

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/bnema/bsky-accounts-cli/internal/domain"
	"github.com/bnema/bsky-accounts-cli/internal/ports"
)

const (
	nsidCreateSession  = "com.atproto.server.createSession"
	nsidRefreshSession = "com.atproto.server.refreshSession"
	nsidGetSession     = "com.atproto.server.getSession"
	nsidCreateAccount  = "com.atproto.server.createAccount"
	nsidPutRecord      = "com.atproto.repo.putRecord"
	nsidGetPreferences = "app.bsky.actor.getPreferences"
	nsidPutPreferences = "app.bsky.actor.putPreferences"

	profileCollection = "app.bsky.actor.profile"

	personalDetailsPrefType = "app.bsky.actor.defs#personalDetailsPref"
	savedFeedsPrefType      = "app.bsky.actor.defs#savedFeedsPref"
)

// errMalformedSession covers a 2xx auth response missing the fields a
// usable session needs.
var errMalformedSession = errors.New("service returned incomplete session")

// Client is the HTTP implementation of ports.ProtocolClient, bound to one
// service (and optionally one PDS endpoint) for its whole lifetime.
type Client struct {
	mu sync.Mutex

	rpc     *xrpcClient
	service string
	pdsURL  string

	session    domain.Session
	hasSession bool
	handler    ports.SessionChangeHandler

	log zerolog.Logger
}

var _ ports.ProtocolClient = (*Client)(nil)

// Factory builds Clients sharing one http.Client and logger.
type Factory struct {
	HTTP *http.Client
	Log  zerolog.Logger
}

var _ ports.ClientFactory = (*Factory)(nil)

func (f *Factory) New(service, pdsURL string) ports.ProtocolClient {
	httpClient := f.HTTP
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	service = domain.NormalizeServiceURL(service)
	base := service
	if pdsURL != "" {
		// Authenticated traffic goes to the account's own endpoint when
		// the directory advertises one.
		base = domain.NormalizeServiceURL(pdsURL)
	}

	return &Client{
		rpc:     &xrpcClient{http: httpClient, baseURL: base},
		service: service,
		pdsURL:  pdsURL,
		log:     f.Log.With().Str("service", service).Logger(),
	}
}

func (c *Client) ServiceURL() string { return c.service }
func (c *Client) PDSURL() string     { return c.pdsURL }

type sessionResponse struct {
	DID             string `json:"did"`
	Handle          string `json:"handle"`
	Email           string `json:"email"`
	EmailConfirmed  bool   `json:"emailConfirmed"`
	EmailAuthFactor bool   `json:"emailAuthFactor"`
	AccessJwt       string `json:"accessJwt"`
	RefreshJwt      string `json:"refreshJwt"`
}

func (c *Client) Login(ctx context.Context, req ports.LoginRequest) error {
	input := map[string]string{
		"identifier": req.Identifier,
		"password":   req.Password,
	}
	if req.AuthFactorToken != "" {
		input["authFactorToken"] = req.AuthFactorToken
	}

	var resp sessionResponse
	if err := c.rpc.procedure(ctx, "", nsidCreateSession, input, &resp); err != nil {
		return err
	}
	if resp.DID == "" || resp.AccessJwt == "" {
		c.emit(domain.DID(resp.DID), domain.EventCreateFailed)
		return errMalformedSession
	}

	c.adopt(resp)
	return nil
}

func (c *Client) CreateAccount(ctx context.Context, req ports.CreateAccountRequest) error {
	input := map[string]string{
		"email":    req.Email,
		"handle":   req.Handle,
		"password": req.Password,
	}
	if req.InviteCode != "" {
		input["inviteCode"] = req.InviteCode
	}
	if req.VerificationPhone != "" {
		input["verificationPhone"] = req.VerificationPhone
	}
	if req.VerificationCode != "" {
		input["verificationCode"] = req.VerificationCode
	}

	var resp sessionResponse
	if err := c.rpc.procedure(ctx, "", nsidCreateAccount, input, &resp); err != nil {
		return err
	}
	if resp.DID == "" || resp.AccessJwt == "" {
		c.emit(domain.DID(resp.DID), domain.EventCreateFailed)
		return errMalformedSession
	}

	// createAccount does not echo the email back.
	resp.Email = req.Email
	c.adopt(resp)
	return nil
}

// ResumeSession adopts the stored tokens and validates them against the
// service, refreshing when the access token is no longer accepted. Every
// outcome that changes (or invalidates) the session surfaces through the
// session-change handler, so a background resume needs no return channel.
func (c *Client) ResumeSession(ctx context.Context, session domain.Session) error {
	c.SetSession(session)

	var resp sessionResponse
	err := c.rpc.query(ctx, session.AccessJwt, nsidGetSession, nil, &resp)
	if err == nil {
		resp.AccessJwt = session.AccessJwt
		resp.RefreshJwt = session.RefreshJwt
		c.adopt(resp)
		c.emit(session.DID, domain.EventUpdate)
		return nil
	}

	if !isAuthError(err) {
		c.emit(session.DID, domain.EventNetworkError)
		return err
	}

	return c.refresh(ctx, session)
}

func (c *Client) refresh(ctx context.Context, session domain.Session) error {
	var resp sessionResponse
	err := c.rpc.procedure(ctx, session.RefreshJwt, nsidRefreshSession, nil, &resp)
	switch {
	case err == nil && resp.AccessJwt != "" && resp.DID != "":
		resp.Email = session.Email
		resp.EmailConfirmed = session.EmailConfirmed
		resp.EmailAuthFactor = session.EmailAuthFactor
		c.adopt(resp)
		c.emit(session.DID, domain.EventUpdate)
		return nil
	case err == nil:
		c.emit(session.DID, domain.EventCreateFailed)
		return errMalformedSession
	case isAuthError(err):
		c.drop()
		c.emit(session.DID, domain.EventExpired)
		return fmt.Errorf("refresh session: %w", err)
	default:
		c.emit(session.DID, domain.EventNetworkError)
		return err
	}
}

func (c *Client) SetSession(session domain.Session) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.session = session
	c.hasSession = true
}

func (c *Client) Session() (domain.Session, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.session, c.hasSession
}

func (c *Client) OnSessionChange(handler ports.SessionChangeHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.handler = handler
}

func (c *Client) UpsertProfile(ctx context.Context, displayName string) error {
	session, ok := c.Session()
	if !ok {
		return domain.ErrNoActiveSession
	}

	record := map[string]any{
		"$type":     profileCollection,
		"createdAt": time.Now().UTC().Format(time.RFC3339),
	}
	if displayName != "" {
		record["displayName"] = displayName
	}

	return c.rpc.procedure(ctx, session.AccessJwt, nsidPutRecord, map[string]any{
		"repo":       string(session.DID),
		"collection": profileCollection,
		"rkey":       "self",
		"record":     record,
	}, nil)
}

func (c *Client) SetPersonalDetails(ctx context.Context, birthDate time.Time) error {
	return c.replacePreference(ctx, personalDetailsPrefType, map[string]any{
		"$type":     personalDetailsPrefType,
		"birthDate": birthDate.UTC().Format(time.RFC3339),
	})
}

func (c *Client) SetSavedFeeds(ctx context.Context, saved, pinned []string) error {
	return c.replacePreference(ctx, savedFeedsPrefType, map[string]any{
		"$type":  savedFeedsPrefType,
		"saved":  saved,
		"pinned": pinned,
	})
}

// replacePreference rewrites one preference object while leaving every
// other preference the account has untouched.
func (c *Client) replacePreference(ctx context.Context, prefType string, pref map[string]any) error {
	session, ok := c.Session()
	if !ok {
		return domain.ErrNoActiveSession
	}

	var current struct {
		Preferences []map[string]any `json:"preferences"`
	}
	if err := c.rpc.query(ctx, session.AccessJwt, nsidGetPreferences, nil, &current); err != nil {
		return err
	}

	next := make([]map[string]any, 0, len(current.Preferences)+1)
	for _, existing := range current.Preferences {
		if existing["$type"] == prefType {
			continue
		}
		next = append(next, existing)
	}
	next = append(next, pref)

	return c.rpc.procedure(ctx, session.AccessJwt, nsidPutPreferences, map[string]any{
		"preferences": next,
	}, nil)
}

func (c *Client) adopt(resp sessionResponse) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.session = domain.Session{
		DID:             domain.DID(resp.DID),
		Handle:          resp.Handle,
		Email:           resp.Email,
		EmailConfirmed:  resp.EmailConfirmed,
		EmailAuthFactor: resp.EmailAuthFactor,
		AccessJwt:       resp.AccessJwt,
		RefreshJwt:      resp.RefreshJwt,
	}
	c.hasSession = true
}

func (c *Client) drop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.session = domain.Session{}
	c.hasSession = false
}

func (c *Client) emit(did domain.DID, event domain.SessionEvent) {
	c.mu.Lock()
	handler := c.handler
	c.mu.Unlock()

	if handler == nil {
		c.log.Debug().Str("did", string(did)).Str("event", string(event)).Msg("session event dropped, no handler")
		return
	}
	handler(did, event)
}
