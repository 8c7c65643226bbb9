package application

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/bnema/bsky-accounts-cli/internal/domain"
	"github.com/bnema/bsky-accounts-cli/internal/ports"
)

// PersistFunc flushes a snapshot to durable storage.
type PersistFunc func(accounts []domain.Account, currentDID domain.DID) error

// SessionManager owns the session state. Dispatch applies one action at a
// time under the lock, so the reducer only ever sees a serialized stream
// no matter how many agents complete network work concurrently.
type SessionManager struct {
	mu          sync.Mutex
	reducer     *domain.Reducer
	state       *domain.State
	persist     PersistFunc
	subscribers []func(*domain.State)
	log         zerolog.Logger
}

func NewSessionManager(reducer *domain.Reducer, persisted []domain.Account, persist PersistFunc, log zerolog.Logger) *SessionManager {
	return &SessionManager{
		reducer: reducer,
		state:   reducer.InitialState(persisted),
		persist: persist,
		log:     log,
	}
}

// State returns the current immutable snapshot.
func (m *SessionManager) State() *domain.State {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.state
}

// Subscribe registers a change listener. Listeners only run for real
// transitions, never for same-pointer no-ops.
func (m *SessionManager) Subscribe(fn func(*domain.State)) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.subscribers = append(m.subscribers, fn)
}

// Dispatch applies one action, flushes the snapshot when the transition
// marked it dirty, and notifies subscribers. It returns the state after
// the action (the same pointer that went in when nothing changed).
func (m *SessionManager) Dispatch(action domain.Action) *domain.State {
	m.mu.Lock()
	defer m.mu.Unlock()

	next := m.reducer.Apply(m.state, action)
	if next == m.state {
		return next
	}

	m.log.Debug().
		Str("action", actionName(action)).
		Int("accounts", len(next.Accounts)).
		Str("current_did", string(next.Current.DID)).
		Bool("needs_persist", next.NeedsPersist).
		Msg("session transition")

	m.state = next
	if next.NeedsPersist && m.persist != nil {
		if err := m.persist(next.Accounts, next.Current.DID); err != nil {
			// Keep the flag set so a later transition flushes again.
			m.log.Error().Err(err).Msg("persist session snapshot failed")
		} else {
			flushed := *next
			flushed.NeedsPersist = false
			m.state = &flushed
		}
	}

	for _, fn := range m.subscribers {
		fn(m.state)
	}

	return m.state
}

// HandleSessionChange is the translation point between client lifecycle
// notifications and reducer actions. It runs on whatever goroutine the
// client fires from; Dispatch serializes from there.
func (m *SessionManager) HandleSessionChange(client ports.ProtocolClient, did domain.DID, event domain.SessionEvent) {
	var refreshed *domain.Account
	if event == domain.EventUpdate {
		if session, ok := client.Session(); ok {
			account := domain.AccountFromSession(client.ServiceURL(), client.PDSURL(), session)
			refreshed = &account
		}
	}

	m.log.Debug().
		Str("did", string(did)).
		Str("event", string(event)).
		Msg("agent session event")

	m.Dispatch(domain.ReceivedAgentEvent{
		AccountDID:       did,
		Agent:            client,
		RefreshedAccount: refreshed,
		Event:            event,
	})
}

// ApplySyncedSnapshot folds a snapshot observed from another app instance
// into state. When the other instance's current account could not be kept
// live locally, the signed-in record is returned so the caller may resume
// it outside the reducer.
func (m *SessionManager) ApplySyncedSnapshot(accounts []domain.Account, currentDID domain.DID) (domain.Account, bool) {
	state := m.Dispatch(domain.SyncedAccounts{Accounts: accounts, CurrentDID: currentDID})

	if currentDID == "" || state.Current.DID == currentDID {
		return domain.Account{}, false
	}
	for _, account := range state.Accounts {
		if account.DID == currentDID && account.SignedIn() {
			return account, true
		}
	}

	return domain.Account{}, false
}

func actionName(action domain.Action) string {
	switch action.(type) {
	case domain.SwitchedToAccount:
		return "switched-to-account"
	case domain.ReceivedAgentEvent:
		return "received-agent-event"
	case domain.LoggedOut:
		return "logged-out"
	case domain.RemovedAccount:
		return "removed-account"
	case domain.SyncedAccounts:
		return "synced-accounts"
	default:
		return "unknown"
	}
}
