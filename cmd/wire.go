package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/bnema/bsky-accounts-cli/internal/adapters/atproto"
	gatesadapter "github.com/bnema/bsky-accounts-cli/internal/adapters/gates"
	moderationadapter "github.com/bnema/bsky-accounts-cli/internal/adapters/moderation"
	statusadapter "github.com/bnema/bsky-accounts-cli/internal/adapters/render/status"
	tomlrepo "github.com/bnema/bsky-accounts-cli/internal/adapters/repo/toml"
	"github.com/bnema/bsky-accounts-cli/internal/application"
	"github.com/bnema/bsky-accounts-cli/internal/domain"
	"github.com/bnema/bsky-accounts-cli/internal/ports"
)

const (
	defaultService       = "https://bsky.social"
	defaultPublicService = "https://public.api.bsky.app"
)

type app struct {
	manager *application.SessionManager
	agents  *application.AgentService
	factory ports.ClientFactory
	repo    *tomlrepo.Repository

	// Current DID as recorded in the accounts file at startup. The
	// in-memory session only adopts it on demand, see adoptStoredSession.
	storedCurrentDID domain.DID

	statusRenderer func(*domain.State, statusadapter.RenderOptions) (string, error)
	log            zerolog.Logger
	now            func() time.Time
}

func wireApp() (*app, error) {
	log := newLogger()

	repo, err := newRepository()
	if err != nil {
		return nil, fmt.Errorf("wire account repository: %w", err)
	}

	accounts, currentDID, err := repo.Load(context.Background())
	if err != nil {
		return nil, fmt.Errorf("load stored accounts: %w", err)
	}

	httpClient := &http.Client{Timeout: 30 * time.Second}
	publicService := envOrDefault("BSKY_PUBLIC_SERVICE", defaultPublicService)

	factory := &atproto.Factory{HTTP: httpClient, Log: log}
	moderation := moderationadapter.NewConfigurator(httpClient, publicService, log)

	var gates ports.FeatureGateSource = gatesadapter.Disabled{}
	if gatesURL := os.Getenv("BSKY_GATES_URL"); gatesURL != "" {
		gates = gatesadapter.NewHTTPSource(httpClient, gatesURL, log)
	}

	agents := application.NewAgentService(factory, gates, moderation, nil, publicService, log)

	reducer := domain.NewReducer(func() domain.Agent {
		return agents.PublicAgent()
	})
	persist := func(accounts []domain.Account, currentDID domain.DID) error {
		return repo.Save(context.Background(), accounts, currentDID)
	}
	manager := application.NewSessionManager(reducer, accounts, persist, log)

	return &app{
		manager:          manager,
		agents:           agents,
		factory:          factory,
		repo:             repo,
		storedCurrentDID: currentDID,
		statusRenderer:   statusadapter.Render,
		log:              log,
		now:              time.Now,
	}, nil
}

func newRepository() (*tomlrepo.Repository, error) {
	if path := os.Getenv("BSKY_ACCOUNTS_PATH"); path != "" {
		return tomlrepo.NewRepositoryAt(path)
	}
	return tomlrepo.NewRepository(viper.New())
}

func newLogger() zerolog.Logger {
	level := zerolog.WarnLevel
	if raw := os.Getenv("BSKY_LOG"); raw != "" {
		if parsed, err := zerolog.ParseLevel(raw); err == nil {
			level = parsed
		}
	}

	writer := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}
	return zerolog.New(writer).Level(level).With().Timestamp().Logger()
}

// adoptStoredSession revives the persisted current account in memory
// without a network round trip, so state transitions in this process keep
// pointing at it. Commands that merely read state skip this to avoid
// rewriting the accounts file.
func (a *app) adoptStoredSession() {
	if a.storedCurrentDID == "" {
		return
	}

	state := a.manager.State()
	if state.Current.DID == a.storedCurrentDID {
		return
	}

	account, ok := state.AccountByDID(a.storedCurrentDID)
	if !ok || !account.SignedIn() {
		return
	}

	client := a.factory.New(account.Service, account.PDSURL)
	client.SetSession(domain.SessionFromAccount(account))
	a.manager.Dispatch(domain.SwitchedToAccount{NewAgent: client, NewAccount: account})
}

func envOrDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
