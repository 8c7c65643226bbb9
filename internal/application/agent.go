package application

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/bnema/bsky-accounts-cli/internal/domain"
	"github.com/bnema/bsky-accounts-cli/internal/ports"
)

const prodService = "https://bsky.social"

var (
	defaultSavedFeeds = []string{
		"at://did:plc:z72i7hdynmk6r22z27h6tvur/app.bsky.feed.generator/whats-hot",
	}
	defaultPinnedFeeds = []string{
		"at://did:plc:z72i7hdynmk6r22z27h6tvur/app.bsky.feed.generator/whats-hot",
	}
)

// SessionChangeFunc receives lifecycle events from a live client, together
// with the client that produced them so the receiver can tell stale agents
// apart from the active one.
type SessionChangeFunc func(client ports.ProtocolClient, did domain.DID, event domain.SessionEvent)

// AgentService constructs protocol clients bound to one account and wires
// their lifecycle notifications into session actions. Every construction
// path funnels through finalize, which guarantees the session-change
// handler never fires on a half-configured account.
type AgentService struct {
	clients       ports.ClientFactory
	gates         ports.FeatureGateSource
	moderation    ports.ModerationConfigurator
	clock         ports.Clock
	publicService string
	log           zerolog.Logger
}

func NewAgentService(
	clients ports.ClientFactory,
	gates ports.FeatureGateSource,
	moderation ports.ModerationConfigurator,
	clock ports.Clock,
	publicService string,
	log zerolog.Logger,
) *AgentService {
	if clock == nil {
		clock = ports.SystemClock{}
	}

	return &AgentService{
		clients:       clients,
		gates:         gates,
		moderation:    moderation,
		clock:         clock,
		publicService: domain.NormalizeServiceURL(publicService),
		log:           log,
	}
}

// PublicAgent builds the anonymous client used whenever no session is
// active.
func (s *AgentService) PublicAgent() domain.Agent {
	s.moderation.ConfigureForGuest()
	return s.clients.New(s.publicService, "")
}

// Resume reconstructs a client for a stored account. An expired access
// token forces a foreground refresh (one retry) whose failure propagates;
// otherwise the stored tokens are adopted immediately and a background
// resume keeps deactivated-vs-active bookkeeping fresh without blocking
// the caller.
func (s *AgentService) Resume(ctx context.Context, stored domain.Account, onChange SessionChangeFunc) (ports.ProtocolClient, domain.Account, error) {
	client := s.clients.New(stored.Service, stored.PDSURL)
	gates := s.startGatePrefetch(ctx, stored.DID)
	moderation := s.startModerationConfig(ctx, stored)

	session := domain.SessionFromAccount(stored)
	if domain.IsSessionExpired(stored, s.clock.Now()) {
		if err := networkRetry(ctx, 1, func(ctx context.Context) error {
			return client.ResumeSession(ctx, session)
		}); err != nil {
			return nil, domain.Account{}, fmt.Errorf("resume session: %w", err)
		}
	} else {
		client.SetSession(session)
		if !stored.Deactivated {
			// Not awaited so startup stays unblocked; a failure surfaces
			// later through the session-change handler.
			bg := context.WithoutCancel(ctx)
			go func() {
				if err := networkRetry(bg, 1, func(ctx context.Context) error {
					return client.ResumeSession(ctx, session)
				}); err != nil {
					s.log.Warn().Err(err).Str("did", string(stored.DID)).Msg("background session resume failed")
				}
			}()
		}
	}

	return s.finalize(ctx, client, gates, moderation, onChange)
}

// Login authenticates with identifier/password and an optional second
// factor. Wrong credentials must not be retried, so failures propagate
// directly.
func (s *AgentService) Login(ctx context.Context, params LoginParams, onChange SessionChangeFunc) (ports.ProtocolClient, domain.Account, error) {
	client := s.clients.New(params.Service, "")
	if err := client.Login(ctx, ports.LoginRequest{
		Identifier:      params.Identifier,
		Password:        params.Password,
		AuthFactorToken: params.AuthFactorToken,
	}); err != nil {
		return nil, domain.Account{}, fmt.Errorf("login: %w", err)
	}

	account, err := clientAccount(client)
	if err != nil {
		return nil, domain.Account{}, err
	}

	gates := s.startGatePrefetch(ctx, account.DID)
	moderation := s.startModerationConfig(ctx, account)

	return s.finalize(ctx, client, gates, moderation, onChange)
}

// CreateAccount registers a new identity. Profile bootstrap, personal
// details and default feeds are best-effort; their failure never fails
// account creation.
func (s *AgentService) CreateAccount(ctx context.Context, params CreateAccountParams, onChange SessionChangeFunc) (ports.ProtocolClient, domain.Account, error) {
	client := s.clients.New(params.Service, "")
	if err := client.CreateAccount(ctx, ports.CreateAccountRequest{
		Email:             params.Email,
		Password:          params.Password,
		Handle:            params.Handle,
		InviteCode:        params.InviteCode,
		VerificationPhone: params.VerificationPhone,
		VerificationCode:  params.VerificationCode,
	}); err != nil {
		return nil, domain.Account{}, fmt.Errorf("create account: %w", err)
	}

	account, err := clientAccount(client)
	if err != nil {
		return nil, domain.Account{}, err
	}

	gates := s.startGatePrefetch(ctx, account.DID)
	moderation := s.startModerationConfig(ctx, account)

	bg := context.WithoutCancel(ctx)
	if !account.Deactivated {
		go s.bestEffort(account.DID, "bootstrap profile", func() error {
			return client.UpsertProfile(bg, "")
		})
	}
	go s.bestEffort(account.DID, "set personal details", func() error {
		return client.SetPersonalDetails(bg, params.BirthDate)
	})
	if isProdService(params.Service) {
		go s.bestEffort(account.DID, "set default feeds", func() error {
			return client.SetSavedFeeds(bg, defaultSavedFeeds, defaultPinnedFeeds)
		})
	}

	return s.finalize(ctx, client, gates, moderation, onChange)
}

// finalize blocks on ancillary setup, then registers the persistent
// session-change handler. The ordering matters: the handler must never
// observe an account whose gates/moderation are still being configured.
func (s *AgentService) finalize(ctx context.Context, client ports.ProtocolClient, gates, moderation <-chan error, onChange SessionChangeFunc) (ports.ProtocolClient, domain.Account, error) {
	for _, done := range []<-chan error{gates, moderation} {
		select {
		case err := <-done:
			if err != nil {
				s.log.Warn().Err(err).Msg("ancillary agent setup failed")
			}
		case <-ctx.Done():
			return nil, domain.Account{}, ctx.Err()
		}
	}

	account, err := clientAccount(client)
	if err != nil {
		return nil, domain.Account{}, err
	}

	client.OnSessionChange(func(did domain.DID, event domain.SessionEvent) {
		onChange(client, did, event)
	})

	return client, account, nil
}

func (s *AgentService) startGatePrefetch(ctx context.Context, did domain.DID) <-chan error {
	done := make(chan error, 1)
	go func() {
		done <- s.gates.Prefetch(ctx, did)
	}()

	return done
}

func (s *AgentService) startModerationConfig(ctx context.Context, account domain.Account) <-chan error {
	done := make(chan error, 1)
	go func() {
		done <- s.moderation.ConfigureForAccount(ctx, account)
	}()

	return done
}

func (s *AgentService) bestEffort(did domain.DID, what string, fn func() error) {
	if err := fn(); err != nil {
		s.log.Warn().Err(err).Str("did", string(did)).Msgf("%s failed", what)
	}
}

func clientAccount(client ports.ProtocolClient) (domain.Account, error) {
	session, ok := client.Session()
	if !ok {
		return domain.Account{}, domain.ErrNoActiveSession
	}

	return domain.AccountFromSession(client.ServiceURL(), client.PDSURL(), session), nil
}

func isProdService(service string) bool {
	return domain.NormalizeServiceURL(service) == domain.NormalizeServiceURL(prodService)
}
