package file

import (
	"context"
	"errors"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/jmylchreest/nudge/internal/feed"
	"github.com/jmylchreest/nudge/internal/model"
)

var errWatcherClosed = errors.New("file watcher closed")

// Watch emits the current snapshot, then a fresh one whenever the
// notifications file is written.
func (s *Store) Watch(ctx context.Context, userID string, fn func([]model.Notification)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return feed.Wrap(feed.BackendFile, "watch", err)
	}
	defer watcher.Close()

	// Watch the directory containing the file (more reliable for writes)
	if err := watcher.Add(s.dir); err != nil {
		return feed.Wrap(feed.BackendFile, "watch", err)
	}

	snapshot, err := s.List(ctx, userID)
	if err != nil {
		return err
	}
	fn(snapshot)

	filename := filepath.Base(s.path)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return feed.Wrap(feed.BackendFile, "watch", errWatcherClosed)
			}
			if filepath.Base(event.Name) != filename {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}

			snapshot, err := s.List(ctx, userID)
			if errors.Is(err, feed.ErrClosed) {
				return err
			}
			if err != nil {
				s.logger.Warn("failed to reload notifications", "file", s.path, "error", err)
				continue
			}
			s.logger.Debug("file changed, delivering snapshot", "file", s.path, "size", len(snapshot))
			fn(snapshot)

		case err, ok := <-watcher.Errors:
			if !ok {
				return feed.Wrap(feed.BackendFile, "watch", errWatcherClosed)
			}
			return feed.Wrap(feed.BackendFile, "watch", err)
		}
	}
}
