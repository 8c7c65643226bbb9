package domain

import "slices"

// Reducer is the pure session state machine. It performs no I/O and reads
// no clock; everything it needs arrives in the action. The only ambient
// input is the public-agent factory used when the active session is
// dropped.
type Reducer struct {
	newPublicAgent func() Agent
}

func NewReducer(newPublicAgent func() Agent) *Reducer {
	return &Reducer{newPublicAgent: newPublicAgent}
}

// InitialState builds the startup state from persisted accounts. The
// active session always starts out unbound; resuming the persisted
// current account happens outside the reducer.
func (r *Reducer) InitialState(persisted []Account) *State {
	return &State{
		Accounts: slices.Clone(persisted),
		Current: CurrentAgentState{
			Agent: r.newPublicAgent(),
		},
		NeedsPersist: false,
	}
}

// Apply computes the next state for one action. When nothing semantically
// changes it returns the exact same pointer, which lets subscribers skip
// persistence and re-render on identity alone.
func (r *Reducer) Apply(state *State, action Action) *State {
	switch action := action.(type) {
	case SwitchedToAccount:
		return r.applySwitch(state, action)
	case ReceivedAgentEvent:
		return r.applyAgentEvent(state, action)
	case LoggedOut:
		return r.applyLogout(state)
	case RemovedAccount:
		return r.applyRemove(state, action)
	case SyncedAccounts:
		return r.applySync(state, action)
	default:
		return state
	}
}

func (r *Reducer) applySwitch(state *State, action SwitchedToAccount) *State {
	accounts := make([]Account, 0, len(state.Accounts)+1)
	accounts = append(accounts, action.NewAccount)
	for _, account := range state.Accounts {
		if account.DID != action.NewAccount.DID {
			accounts = append(accounts, account)
		}
	}

	return &State{
		Accounts: accounts,
		Current: CurrentAgentState{
			Agent: action.NewAgent,
			DID:   action.NewAccount.DID,
		},
		NeedsPersist: true,
	}
}

func (r *Reducer) applyAgentEvent(state *State, action ReceivedAgentEvent) *State {
	switch action.Event {
	case EventNetworkError, EventExpired, EventCreateFailed:
		// A superseded agent must not log out the account that replaced it.
		if state.Current.DID == "" || state.Current.DID != action.AccountDID {
			return state
		}

		accounts := state.Accounts
		if action.Event != EventNetworkError {
			// Hard logout: the tokens are dead, purge them. A network error
			// keeps them so the session can be retried later.
			accounts = clearTokens(state.Accounts, func(a Account) bool {
				return a.DID == action.AccountDID
			})
		}

		return &State{
			Accounts: accounts,
			Current: CurrentAgentState{
				Agent: r.newPublicAgent(),
			},
			NeedsPersist: true,
		}

	case EventUpdate:
		if action.RefreshedAccount == nil {
			return state
		}
		existing, ok := findAccount(state.Accounts, action.AccountDID)
		if !ok {
			return state
		}
		// A backgrounded agent's refresh must not overwrite the stored
		// credentials of an account the user is not currently on.
		if state.Current.DID != action.AccountDID {
			return state
		}
		if existing == *action.RefreshedAccount {
			return state
		}

		accounts := slices.Clone(state.Accounts)
		for i := range accounts {
			if accounts[i].DID == action.AccountDID {
				accounts[i] = *action.RefreshedAccount
			}
		}

		return &State{
			Accounts:     accounts,
			Current:      state.Current,
			NeedsPersist: true,
		}

	default:
		return state
	}
}

func (r *Reducer) applyLogout(state *State) *State {
	return &State{
		Accounts: clearTokens(state.Accounts, func(Account) bool { return true }),
		Current: CurrentAgentState{
			Agent: r.newPublicAgent(),
		},
		NeedsPersist: true,
	}
}

func (r *Reducer) applyRemove(state *State, action RemovedAccount) *State {
	if !state.HasAccount(action.DID) {
		return state
	}

	accounts := make([]Account, 0, len(state.Accounts)-1)
	for _, account := range state.Accounts {
		if account.DID != action.DID {
			accounts = append(accounts, account)
		}
	}

	current := state.Current
	if current.DID == action.DID {
		current = CurrentAgentState{Agent: r.newPublicAgent()}
	}

	return &State{
		Accounts:     accounts,
		Current:      current,
		NeedsPersist: true,
	}
}

func (r *Reducer) applySync(state *State, action SyncedAccounts) *State {
	current := state.Current
	keepCurrent := current.DID != "" &&
		current.DID == action.CurrentDID &&
		hasDID(action.Accounts, action.CurrentDID)
	if !keepCurrent {
		if current.DID != "" {
			// The snapshot's current account has no live agent here; the
			// caller resumes it outside the reducer if it wants to.
			current = CurrentAgentState{Agent: r.newPublicAgent()}
		}
	}

	if slices.Equal(state.Accounts, action.Accounts) &&
		current == state.Current &&
		!state.NeedsPersist {
		return state
	}

	// The snapshot came from persisted storage; writing it back out again
	// would be redundant, so NeedsPersist stays false.
	return &State{
		Accounts:     slices.Clone(action.Accounts),
		Current:      current,
		NeedsPersist: false,
	}
}

func clearTokens(accounts []Account, match func(Account) bool) []Account {
	cleared := slices.Clone(accounts)
	for i := range cleared {
		if match(cleared[i]) {
			cleared[i].AccessJwt = ""
			cleared[i].RefreshJwt = ""
		}
	}

	return cleared
}

func hasDID(accounts []Account, did DID) bool {
	_, ok := findAccount(accounts, did)
	return ok
}
