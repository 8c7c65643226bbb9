package ports

import (
	"context"
	"time"

	"github.com/bnema/bsky-accounts-cli/internal/domain"
)

type LoginRequest struct {
	Identifier      string
	Password        string
	AuthFactorToken string
}

type CreateAccountRequest struct {
	Email             string
	Password          string
	Handle            string
	InviteCode        string
	VerificationPhone string
	VerificationCode  string
}

// SessionChangeHandler receives lifecycle notifications after the client's
// session changed behind the scenes (token refresh, expiry, ...).
type SessionChangeHandler func(did domain.DID, event domain.SessionEvent)

// ProtocolClient is one client instance bound to one service. Implementations
// own the wire format; callers only see sessions and lifecycle events.
type ProtocolClient interface {
	domain.Agent

	Login(ctx context.Context, req LoginRequest) error
	CreateAccount(ctx context.Context, req CreateAccountRequest) error

	// ResumeSession validates the given tokens against the service,
	// refreshing them when needed, and adopts the result.
	ResumeSession(ctx context.Context, session domain.Session) error
	// SetSession adopts tokens without a network round trip.
	SetSession(session domain.Session)
	Session() (domain.Session, bool)

	PDSURL() string

	// OnSessionChange registers the persistent lifecycle handler. Events
	// fired before registration are dropped.
	OnSessionChange(handler SessionChangeHandler)

	// Best-effort bootstrap calls used after account creation.
	UpsertProfile(ctx context.Context, displayName string) error
	SetPersonalDetails(ctx context.Context, birthDate time.Time) error
	SetSavedFeeds(ctx context.Context, saved, pinned []string) error
}

// ClientFactory constructs protocol clients. pdsURL may be empty when the
// account has no endpoint override.
type ClientFactory interface {
	New(service, pdsURL string) ProtocolClient
}
