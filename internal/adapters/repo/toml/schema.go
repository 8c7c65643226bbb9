package toml

import "fmt"

const currentSchemaVersion = 1

// fileSchema is the on-disk shape of accounts.toml. Account order is
// significant: the first entry is the most recently used.
type fileSchema struct {
	Version    int             `toml:"version"`
	CurrentDID string          `toml:"current_did,omitempty"`
	Accounts   []accountSchema `toml:"accounts"`
}

func (s *fileSchema) applyDefaults() {
	if s.Version == 0 {
		s.Version = currentSchemaVersion
	}
}

func (s fileSchema) validateVersion() error {
	if s.Version > currentSchemaVersion {
		return fmt.Errorf("unsupported accounts schema version %d (current %d)", s.Version, currentSchemaVersion)
	}

	return nil
}

type accountSchema struct {
	Service         string `toml:"service"`
	DID             string `toml:"did"`
	Handle          string `toml:"handle"`
	Email           string `toml:"email,omitempty"`
	EmailConfirmed  bool   `toml:"email_confirmed,omitempty"`
	EmailAuthFactor bool   `toml:"email_auth_factor,omitempty"`
	AccessJwt       string `toml:"access_jwt,omitempty"`
	RefreshJwt      string `toml:"refresh_jwt,omitempty"`
	Deactivated     bool   `toml:"deactivated,omitempty"`
	PDSURL          string `toml:"pds_url,omitempty"`
}
