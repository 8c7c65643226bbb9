package domain

// Agent is the opaque protocol client bound to the current session. The
// reducer stores and swaps agents but never calls into them; the full
// client surface lives in ports.
type Agent interface {
	ServiceURL() string
}

// CurrentAgentState is the active-session half of State. DID is empty when
// no session is active, in which case Agent is a public/anonymous client —
// it is never nil, so callers never branch on presence.
type CurrentAgentState struct {
	Agent Agent
	DID   DID
}

// State is the reducer's root value. Accounts are ordered most recently
// activated first. NeedsPersist is a transient flag consumed by the
// persistence subscriber after it flushes.
//
// State is immutable: every transition either returns the same pointer
// (nothing changed) or a fresh snapshot. Consumers may therefore gate
// persistence and re-render on pointer identity.
type State struct {
	Accounts     []Account
	Current      CurrentAgentState
	NeedsPersist bool
}

// CurrentAccount returns the stored record backing the active session.
func (s *State) CurrentAccount() (Account, bool) {
	if s.Current.DID == "" {
		return Account{}, false
	}

	return findAccount(s.Accounts, s.Current.DID)
}

func (s *State) HasAccount(did DID) bool {
	_, ok := findAccount(s.Accounts, did)
	return ok
}

// AccountByDID looks up a stored record by identity.
func (s *State) AccountByDID(did DID) (Account, bool) {
	return findAccount(s.Accounts, did)
}
