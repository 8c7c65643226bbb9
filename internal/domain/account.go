package domain

import "strings"

// DID is the stable identity key for an account. It never changes for the
// lifetime of the identity, unlike the handle.
type DID string

// Account is the persisted record of one known identity on one service.
// Empty AccessJwt/RefreshJwt means the account is known but logged out.
type Account struct {
	Service         string
	DID             DID
	Handle          string
	Email           string
	EmailConfirmed  bool
	EmailAuthFactor bool
	AccessJwt       string
	RefreshJwt      string
	Deactivated     bool
	PDSURL          string
}

func (a Account) SignedIn() bool {
	return a.AccessJwt != "" && a.RefreshJwt != ""
}

// Session is the live token set held by a protocol client.
type Session struct {
	DID             DID
	Handle          string
	Email           string
	EmailConfirmed  bool
	EmailAuthFactor bool
	AccessJwt       string
	RefreshJwt      string
}

// AccountFromSession derives the stored record for a client's live session.
// Deactivated is read out of the access token rather than trusted from the
// caller.
func AccountFromSession(service, pdsURL string, session Session) Account {
	return Account{
		Service:         NormalizeServiceURL(service),
		DID:             session.DID,
		Handle:          session.Handle,
		Email:           session.Email,
		EmailConfirmed:  session.EmailConfirmed,
		EmailAuthFactor: session.EmailAuthFactor,
		AccessJwt:       session.AccessJwt,
		RefreshJwt:      session.RefreshJwt,
		Deactivated:     IsSessionDeactivated(session.AccessJwt),
		PDSURL:          pdsURL,
	}
}

// SessionFromAccount rebuilds the token set a client needs to resume a
// stored account.
func SessionFromAccount(account Account) Session {
	return Session{
		DID:             account.DID,
		Handle:          account.Handle,
		Email:           account.Email,
		EmailConfirmed:  account.EmailConfirmed,
		EmailAuthFactor: account.EmailAuthFactor,
		AccessJwt:       account.AccessJwt,
		RefreshJwt:      account.RefreshJwt,
	}
}

// NormalizeServiceURL canonicalizes a service URL with a trailing slash so
// that records produced from config, login forms and synced snapshots
// compare equal.
func NormalizeServiceURL(service string) string {
	service = strings.TrimSpace(service)
	if service == "" {
		return service
	}

	return strings.TrimRight(service, "/") + "/"
}

func findAccount(accounts []Account, did DID) (Account, bool) {
	for _, account := range accounts {
		if account.DID == did {
			return account, true
		}
	}

	return Account{}, false
}
