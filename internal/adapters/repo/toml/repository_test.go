package toml

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bnema/bsky-accounts-cli/internal/domain"
)

func newTestRepository(t *testing.T) *Repository {
	t.Helper()

	repo, err := NewRepositoryAt(filepath.Join(t.TempDir(), "accounts.toml"))
	require.NoError(t, err)
	return repo
}

func sampleAccounts() []domain.Account {
	return []domain.Account{
		{
			Service:        "https://bsky.social/",
			DID:            "did:plc:alice",
			Handle:         "alice.test",
			Email:          "alice@foo.bar",
			EmailConfirmed: true,
			AccessJwt:      "alice-access",
			RefreshJwt:     "alice-refresh",
			PDSURL:         "https://pds.example/",
		},
		{
			Service:     "https://staging.bsky.dev/",
			DID:         "did:plc:bob",
			Handle:      "bob.test",
			Deactivated: true,
		},
	}
}

func TestLoadMissingFileReturnsEmptySnapshot(t *testing.T) {
	repo := newTestRepository(t)

	accounts, currentDID, err := repo.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, accounts)
	assert.Empty(t, currentDID)
}

func TestSaveLoadRoundTripPreservesOrder(t *testing.T) {
	repo := newTestRepository(t)
	want := sampleAccounts()

	require.NoError(t, repo.Save(context.Background(), want, "did:plc:alice"))

	got, currentDID, err := repo.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.Equal(t, domain.DID("did:plc:alice"), currentDID)
}

func TestSaveReplacesWholeSnapshot(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, sampleAccounts(), "did:plc:alice"))
	require.NoError(t, repo.Save(ctx, sampleAccounts()[1:], ""))

	got, currentDID, err := repo.Load(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, domain.DID("did:plc:bob"), got[0].DID)
	assert.Empty(t, currentDID)
}

func TestSaveRestrictsFilePermissions(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("posix permissions")
	}

	repo := newTestRepository(t)
	require.NoError(t, repo.Save(context.Background(), sampleAccounts(), ""))

	info, err := os.Stat(repo.Path())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestLoadRejectsNewerSchemaVersion(t *testing.T) {
	repo := newTestRepository(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(repo.Path()), 0o700))
	require.NoError(t, os.WriteFile(repo.Path(), []byte("version = 99\n"), 0o600))

	_, _, err := repo.Load(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported accounts schema version")
}

func TestLoadRejectsMalformedFile(t *testing.T) {
	repo := newTestRepository(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(repo.Path()), 0o700))
	require.NoError(t, os.WriteFile(repo.Path(), []byte("not toml = ["), 0o600))

	_, _, err := repo.Load(context.Background())
	require.Error(t, err)
}

func TestContextCancellationShortCircuits(t *testing.T) {
	repo := newTestRepository(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := repo.Load(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, repo.Save(ctx, nil, ""), context.Canceled)
}
