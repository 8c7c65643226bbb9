package domain

// SessionEvent is a lifecycle notification emitted by a protocol client
// after its session changed behind the scenes.
type SessionEvent string

const (
	// EventUpdate carries a refreshed account after a successful token
	// refresh or identity change.
	EventUpdate SessionEvent = "update"
	// EventExpired means the refresh token was rejected; the account must
	// re-authenticate.
	EventExpired SessionEvent = "expired"
	// EventNetworkError means a refresh could not be attempted at all.
	// Credentials stay valid.
	EventNetworkError SessionEvent = "network-error"
	// EventCreateFailed means session establishment fell apart midway.
	EventCreateFailed SessionEvent = "create-failed"
)

// Action is one session state transition input. Exactly one concrete type
// per transition kind, each carrying only the data that kind needs.
type Action interface {
	isAction()
}

// SwitchedToAccount binds a freshly constructed agent as the active
// session and upserts its account at the front of the list.
type SwitchedToAccount struct {
	NewAgent   Agent
	NewAccount Account
}

// ReceivedAgentEvent folds a client lifecycle notification into state.
// RefreshedAccount is set only for EventUpdate.
type ReceivedAgentEvent struct {
	AccountDID       DID
	Agent            Agent
	RefreshedAccount *Account
	Event            SessionEvent
}

// LoggedOut clears tokens on every account and drops the active session.
type LoggedOut struct{}

// RemovedAccount forgets one account entirely.
type RemovedAccount struct {
	DID DID
}

// SyncedAccounts replaces the account list with a snapshot observed from
// another app instance.
type SyncedAccounts struct {
	Accounts   []Account
	CurrentDID DID
}

func (SwitchedToAccount) isAction()  {}
func (ReceivedAgentEvent) isAction() {}
func (LoggedOut) isAction()          {}
func (RemovedAccount) isAction()     {}
func (SyncedAccounts) isAction()     {}
