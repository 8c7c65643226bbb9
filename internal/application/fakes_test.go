package application

import (
	"context"
	"sync"
	"time"

	"github.com/bnema/bsky-accounts-cli/internal/domain"
	"github.com/bnema/bsky-accounts-cli/internal/ports"
)

// Hand-rolled port fakes; the lifecycle tests need precise control over
// call ordering and blocking, which canned mocks make awkward.

type fakeClient struct {
	mu sync.Mutex

	service string
	pds     string

	session    domain.Session
	hasSession bool
	handler    ports.SessionChangeHandler

	loginErr   error
	createErr  error
	resumeErrs []error

	loginCalls   int
	createCalls  int
	resumeCalls  int
	profileCalls int
	detailsCalls int
	feedsCalls   int

	profileErr error
	detailsErr error
	feedsErr   error
}

func (c *fakeClient) ServiceURL() string { return c.service }
func (c *fakeClient) PDSURL() string     { return c.pds }

func (c *fakeClient) Login(_ context.Context, req ports.LoginRequest) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.loginCalls++
	if c.loginErr != nil {
		return c.loginErr
	}
	c.adoptLocked(domain.Session{
		DID:        "did:plc:login",
		Handle:     req.Identifier,
		AccessJwt:  "access-1",
		RefreshJwt: "refresh-1",
	})
	return nil
}

func (c *fakeClient) CreateAccount(_ context.Context, req ports.CreateAccountRequest) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.createCalls++
	if c.createErr != nil {
		return c.createErr
	}
	c.adoptLocked(domain.Session{
		DID:        "did:plc:created",
		Handle:     req.Handle,
		Email:      req.Email,
		AccessJwt:  "access-1",
		RefreshJwt: "refresh-1",
	})
	return nil
}

func (c *fakeClient) ResumeSession(_ context.Context, session domain.Session) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.resumeCalls++
	if len(c.resumeErrs) > 0 {
		err := c.resumeErrs[0]
		c.resumeErrs = c.resumeErrs[1:]
		if err != nil {
			return err
		}
	}
	c.adoptLocked(session)
	return nil
}

func (c *fakeClient) SetSession(session domain.Session) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.adoptLocked(session)
}

func (c *fakeClient) Session() (domain.Session, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.session, c.hasSession
}

func (c *fakeClient) OnSessionChange(handler ports.SessionChangeHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.handler = handler
}

func (c *fakeClient) handlerRegistered() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.handler != nil
}

func (c *fakeClient) UpsertProfile(context.Context, string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.profileCalls++
	return c.profileErr
}

func (c *fakeClient) SetPersonalDetails(context.Context, time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.detailsCalls++
	return c.detailsErr
}

func (c *fakeClient) SetSavedFeeds(context.Context, []string, []string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.feedsCalls++
	return c.feedsErr
}

func (c *fakeClient) counts() (resume, profile, details, feeds int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.resumeCalls, c.profileCalls, c.detailsCalls, c.feedsCalls
}

func (c *fakeClient) adoptLocked(session domain.Session) {
	c.session = session
	c.hasSession = true
}

type fakeFactory struct {
	mu      sync.Mutex
	next    *fakeClient
	created []*fakeClient
}

func (f *fakeFactory) New(service, pdsURL string) ports.ProtocolClient {
	f.mu.Lock()
	defer f.mu.Unlock()

	client := f.next
	if client == nil {
		client = &fakeClient{}
	}
	f.next = nil
	client.service = service
	client.pds = pdsURL
	f.created = append(f.created, client)
	return client
}

type fakeGates struct {
	mu      sync.Mutex
	err     error
	calls   int
	started chan struct{}
	release chan struct{}
}

func (g *fakeGates) Prefetch(ctx context.Context, _ domain.DID) error {
	g.mu.Lock()
	g.calls++
	started := g.started
	release := g.release
	g.mu.Unlock()

	if started != nil {
		close(started)
	}
	if release != nil {
		select {
		case <-release:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return g.err
}

type fakeModeration struct {
	mu          sync.Mutex
	err         error
	accountDIDs []domain.DID
	guestCalls  int
}

func (m *fakeModeration) ConfigureForAccount(_ context.Context, account domain.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.accountDIDs = append(m.accountDIDs, account.DID)
	return m.err
}

func (m *fakeModeration) ConfigureForGuest() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.guestCalls++
}

type fakeClock struct {
	now time.Time
}

func (c fakeClock) Now() time.Time { return c.now }
