package sync

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/bnema/bsky-accounts-cli/internal/domain"
	"github.com/bnema/bsky-accounts-cli/internal/ports"
)

const debounceWindow = 100 * time.Millisecond

// SnapshotHandler receives the freshly loaded accounts file after another
// process rewrote it.
type SnapshotHandler func(accounts []domain.Account, currentDID domain.DID)

// Watcher turns on-disk changes to the accounts file into snapshot
// callbacks. The accounts file is replaced atomically via rename, so the
// watch is placed on the parent directory and filtered by name.
type Watcher struct {
	repo    ports.AccountRepository
	path    string
	handler SnapshotHandler
	log     zerolog.Logger
}

func NewWatcher(repo ports.AccountRepository, path string, handler SnapshotHandler, log zerolog.Logger) *Watcher {
	return &Watcher{
		repo:    repo,
		path:    filepath.Clean(path),
		handler: handler,
		log:     log,
	}
}

// Start begins watching and returns once the watch is registered. The
// watch loop runs until ctx is cancelled.
func (w *Watcher) Start(ctx context.Context) error {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create file watcher: %w", err)
	}

	if err := fsWatcher.Add(filepath.Dir(w.path)); err != nil {
		_ = fsWatcher.Close()
		return fmt.Errorf("watch accounts directory: %w", err)
	}

	go w.loop(ctx, fsWatcher)
	return nil
}

func (w *Watcher) loop(ctx context.Context, fsWatcher *fsnotify.Watcher) {
	defer func() { _ = fsWatcher.Close() }()

	// Writers replace the file quickly but not atomically as seen by the
	// watch (temp write, chmod, rename), so changes are coalesced before
	// reloading.
	debounce := time.NewTimer(debounceWindow)
	if !debounce.Stop() {
		<-debounce.C
	}
	pending := false

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-fsWatcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) && !event.Has(fsnotify.Rename) {
				continue
			}
			if pending && !debounce.Stop() {
				<-debounce.C
			}
			debounce.Reset(debounceWindow)
			pending = true

		case err, ok := <-fsWatcher.Errors:
			if !ok {
				return
			}
			w.log.Warn().Err(err).Msg("accounts file watch error")

		case <-debounce.C:
			pending = false
			w.reload(ctx)
		}
	}
}

func (w *Watcher) reload(ctx context.Context) {
	accounts, currentDID, err := w.repo.Load(ctx)
	if err != nil {
		w.log.Warn().Err(err).Msg("reload accounts snapshot failed")
		return
	}

	w.log.Debug().Int("accounts", len(accounts)).Str("current_did", string(currentDID)).Msg("accounts snapshot changed on disk")
	w.handler(accounts, currentDID)
}
