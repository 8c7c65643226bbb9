package atproto

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bnema/bsky-accounts-cli/internal/domain"
	"github.com/bnema/bsky-accounts-cli/internal/ports"
)

type xrpcHandler func(w http.ResponseWriter, r *http.Request)

// testServer routes /xrpc/<nsid> to per-endpoint handlers and records
// bearer tokens seen on each call.
type testServer struct {
	*httptest.Server

	mu       sync.Mutex
	handlers map[string]xrpcHandler
	tokens   map[string][]string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	s := &testServer{
		handlers: map[string]xrpcHandler{},
		tokens:   map[string][]string{},
	}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		nsid := r.URL.Path[len("/xrpc/"):]

		s.mu.Lock()
		s.tokens[nsid] = append(s.tokens[nsid], r.Header.Get("Authorization"))
		handler := s.handlers[nsid]
		s.mu.Unlock()

		if handler == nil {
			writeXrpcError(w, http.StatusNotFound, "MethodNotImplemented")
			return
		}
		handler(w, r)
	}))
	t.Cleanup(s.Close)
	return s
}

func (s *testServer) handle(nsid string, handler xrpcHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.handlers[nsid] = handler
}

func (s *testServer) bearerTokens(nsid string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]string(nil), s.tokens[nsid]...)
}

func writeXrpcError(w http.ResponseWriter, status int, code string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": code, "message": code})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func newTestClient(t *testing.T, server *testServer) ports.ProtocolClient {
	t.Helper()

	factory := &Factory{HTTP: server.Client(), Log: zerolog.Nop()}
	return factory.New(server.URL, "")
}

type eventRecorder struct {
	mu     sync.Mutex
	events []domain.SessionEvent
}

func (r *eventRecorder) handler(_ domain.DID, event domain.SessionEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.events = append(r.events, event)
}

func (r *eventRecorder) recorded() []domain.SessionEvent {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]domain.SessionEvent(nil), r.events...)
}

func liveSession() domain.Session {
	return domain.Session{
		DID:        "did:plc:alice",
		Handle:     "alice.test",
		AccessJwt:  "access-1",
		RefreshJwt: "refresh-1",
	}
}

func TestLoginAdoptsSession(t *testing.T) {
	server := newTestServer(t)
	server.handle("com.atproto.server.createSession", func(w http.ResponseWriter, r *http.Request) {
		var req map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "alice.test", req["identifier"])
		assert.Equal(t, "hunter2", req["password"])
		assert.Equal(t, "123456", req["authFactorToken"])
		writeJSON(w, map[string]any{
			"did":        "did:plc:alice",
			"handle":     "alice.test",
			"email":      "alice@foo.bar",
			"accessJwt":  "access-1",
			"refreshJwt": "refresh-1",
		})
	})

	client := newTestClient(t, server)
	require.NoError(t, client.Login(context.Background(), ports.LoginRequest{
		Identifier:      "alice.test",
		Password:        "hunter2",
		AuthFactorToken: "123456",
	}))

	session, ok := client.Session()
	require.True(t, ok)
	assert.Equal(t, domain.DID("did:plc:alice"), session.DID)
	assert.Equal(t, "alice@foo.bar", session.Email)
	assert.Equal(t, "access-1", session.AccessJwt)
}

func TestLoginPropagatesServiceError(t *testing.T) {
	server := newTestServer(t)
	server.handle("com.atproto.server.createSession", func(w http.ResponseWriter, _ *http.Request) {
		writeXrpcError(w, http.StatusUnauthorized, "AuthenticationRequired")
	})

	client := newTestClient(t, server)
	err := client.Login(context.Background(), ports.LoginRequest{Identifier: "alice.test", Password: "wrong"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "AuthenticationRequired")

	_, ok := client.Session()
	assert.False(t, ok)
}

func TestLoginRejectsIncompleteSession(t *testing.T) {
	server := newTestServer(t)
	server.handle("com.atproto.server.createSession", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, map[string]any{"handle": "alice.test"})
	})

	client := newTestClient(t, server)
	err := client.Login(context.Background(), ports.LoginRequest{Identifier: "alice.test", Password: "hunter2"})
	assert.ErrorIs(t, err, errMalformedSession)
}

func TestCreateAccountKeepsRequestEmail(t *testing.T) {
	server := newTestServer(t)
	server.handle("com.atproto.server.createAccount", func(w http.ResponseWriter, r *http.Request) {
		var req map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "code-1", req["inviteCode"])
		writeJSON(w, map[string]any{
			"did":        "did:plc:new",
			"handle":     req["handle"],
			"accessJwt":  "access-1",
			"refreshJwt": "refresh-1",
		})
	})

	client := newTestClient(t, server)
	require.NoError(t, client.CreateAccount(context.Background(), ports.CreateAccountRequest{
		Email:      "new@foo.bar",
		Handle:     "new.test",
		Password:   "hunter2",
		InviteCode: "code-1",
	}))

	session, ok := client.Session()
	require.True(t, ok)
	assert.Equal(t, "new@foo.bar", session.Email)
	assert.Equal(t, "new.test", session.Handle)
}

func TestResumeValidSessionEmitsUpdate(t *testing.T) {
	server := newTestServer(t)
	server.handle("com.atproto.server.getSession", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, map[string]any{
			"did":            "did:plc:alice",
			"handle":         "alice-renamed.test",
			"email":          "alice@foo.bar",
			"emailConfirmed": true,
		})
	})

	client := newTestClient(t, server)
	recorder := &eventRecorder{}
	client.OnSessionChange(recorder.handler)

	require.NoError(t, client.ResumeSession(context.Background(), liveSession()))

	session, ok := client.Session()
	require.True(t, ok)
	assert.Equal(t, "alice-renamed.test", session.Handle)
	assert.True(t, session.EmailConfirmed)
	assert.Equal(t, "access-1", session.AccessJwt, "tokens survive a profile-only refresh")
	assert.Equal(t, []domain.SessionEvent{domain.EventUpdate}, recorder.recorded())
}

func TestResumeExpiredAccessTokenRefreshes(t *testing.T) {
	server := newTestServer(t)
	server.handle("com.atproto.server.getSession", func(w http.ResponseWriter, _ *http.Request) {
		writeXrpcError(w, http.StatusBadRequest, "ExpiredToken")
	})
	server.handle("com.atproto.server.refreshSession", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, map[string]any{
			"did":        "did:plc:alice",
			"handle":     "alice.test",
			"accessJwt":  "access-2",
			"refreshJwt": "refresh-2",
		})
	})

	client := newTestClient(t, server)
	recorder := &eventRecorder{}
	client.OnSessionChange(recorder.handler)

	require.NoError(t, client.ResumeSession(context.Background(), liveSession()))

	session, _ := client.Session()
	assert.Equal(t, "access-2", session.AccessJwt)
	assert.Equal(t, "refresh-2", session.RefreshJwt)
	assert.Equal(t, []domain.SessionEvent{domain.EventUpdate}, recorder.recorded())
	assert.Equal(t, []string{"Bearer refresh-1"}, server.bearerTokens("com.atproto.server.refreshSession"))
}

func TestResumeDeadRefreshTokenEmitsExpired(t *testing.T) {
	server := newTestServer(t)
	server.handle("com.atproto.server.getSession", func(w http.ResponseWriter, _ *http.Request) {
		writeXrpcError(w, http.StatusBadRequest, "ExpiredToken")
	})
	server.handle("com.atproto.server.refreshSession", func(w http.ResponseWriter, _ *http.Request) {
		writeXrpcError(w, http.StatusBadRequest, "InvalidToken")
	})

	client := newTestClient(t, server)
	recorder := &eventRecorder{}
	client.OnSessionChange(recorder.handler)

	err := client.ResumeSession(context.Background(), liveSession())
	require.Error(t, err)
	assert.Equal(t, []domain.SessionEvent{domain.EventExpired}, recorder.recorded())

	_, ok := client.Session()
	assert.False(t, ok, "a dead session is dropped")
}

func TestResumeTransportFailureEmitsNetworkError(t *testing.T) {
	server := newTestServer(t)
	client := newTestClient(t, server)
	server.Close()

	recorder := &eventRecorder{}
	client.OnSessionChange(recorder.handler)

	err := client.ResumeSession(context.Background(), liveSession())
	require.Error(t, err)
	assert.Equal(t, []domain.SessionEvent{domain.EventNetworkError}, recorder.recorded())

	session, ok := client.Session()
	require.True(t, ok, "tokens are kept on a network failure")
	assert.Equal(t, "access-1", session.AccessJwt)
}

func TestUpsertProfileWritesSelfRecord(t *testing.T) {
	server := newTestServer(t)
	server.handle("com.atproto.repo.putRecord", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Repo       string         `json:"repo"`
			Collection string         `json:"collection"`
			Rkey       string         `json:"rkey"`
			Record     map[string]any `json:"record"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "did:plc:alice", req.Repo)
		assert.Equal(t, "app.bsky.actor.profile", req.Collection)
		assert.Equal(t, "self", req.Rkey)
		assert.Equal(t, "Alice", req.Record["displayName"])
		writeJSON(w, map[string]any{"uri": "at://did:plc:alice/app.bsky.actor.profile/self"})
	})

	client := newTestClient(t, server)
	client.SetSession(liveSession())

	require.NoError(t, client.UpsertProfile(context.Background(), "Alice"))
	assert.Equal(t, []string{"Bearer access-1"}, server.bearerTokens("com.atproto.repo.putRecord"))
}

func TestSetSavedFeedsPreservesOtherPreferences(t *testing.T) {
	server := newTestServer(t)
	server.handle("app.bsky.actor.getPreferences", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, map[string]any{"preferences": []map[string]any{
			{"$type": "app.bsky.actor.defs#adultContentPref", "enabled": false},
			{"$type": "app.bsky.actor.defs#savedFeedsPref", "saved": []string{"old"}},
		}})
	})

	var written []map[string]any
	server.handle("app.bsky.actor.putPreferences", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Preferences []map[string]any `json:"preferences"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		written = req.Preferences
		writeJSON(w, map[string]any{})
	})

	client := newTestClient(t, server)
	client.SetSession(liveSession())

	feeds := []string{"at://did:plc:feeds/app.bsky.feed.generator/whats-hot"}
	require.NoError(t, client.SetSavedFeeds(context.Background(), feeds, feeds))

	require.Len(t, written, 2)
	assert.Equal(t, "app.bsky.actor.defs#adultContentPref", written[0]["$type"])
	assert.Equal(t, "app.bsky.actor.defs#savedFeedsPref", written[1]["$type"])
	assert.Equal(t, []any{"at://did:plc:feeds/app.bsky.feed.generator/whats-hot"}, written[1]["saved"])
}

func TestBootstrapCallsRequireSession(t *testing.T) {
	server := newTestServer(t)
	client := newTestClient(t, server)

	assert.ErrorIs(t, client.UpsertProfile(context.Background(), ""), domain.ErrNoActiveSession)
	assert.ErrorIs(t, client.SetSavedFeeds(context.Background(), nil, nil), domain.ErrNoActiveSession)
}

func TestFactoryPrefersPDSEndpoint(t *testing.T) {
	pds := newTestServer(t)
	pds.handle("com.atproto.server.getSession", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, map[string]any{"did": "did:plc:alice", "handle": "alice.test"})
	})

	factory := &Factory{HTTP: pds.Client(), Log: zerolog.Nop()}
	client := factory.New("https://bsky.social", pds.URL)

	require.NoError(t, client.ResumeSession(context.Background(), liveSession()))
	assert.Equal(t, "https://bsky.social/", client.ServiceURL())
	assert.Len(t, pds.bearerTokens("com.atproto.server.getSession"), 1)
}
