// Package file implements a notification backend on local JSONL files.
// Every change appends a full record; the last record for an id wins.
package file

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/jmylchreest/nudge/internal/feed"
	"github.com/jmylchreest/nudge/internal/model"
)

// SchemaVersion is the current file schema version.
const SchemaVersion = 1

// File names inside the data directory.
const (
	NotificationsFile = "notifications.jsonl"
	ClaimsFile        = "claims.jsonl"
)

const maxLineSize = 1024 * 1024

// ErrRecordTooLarge is returned when a record would exceed the line limit.
var ErrRecordTooLarge = errors.New("record exceeds maximum size")

// schemaHeader is the first line of each JSONL file.
type schemaHeader struct {
	NudgeSchemaVersion int   `json:"nudge_schema_version"`
	CreatedAt          int64 `json:"created_at"`
}

// Store is a file-backed feed.Backend. Several processes may share a
// directory: writers append, watchers reload on change.
type Store struct {
	mu         sync.Mutex
	dir        string
	path       string
	claimsPath string
	logger     *slog.Logger
	now        func() time.Time
	closed     bool
}

var _ feed.Backend = (*Store)(nil)

// Open creates the data directory and files if needed.
func Open(dir string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	s := &Store{
		dir:        dir,
		path:       filepath.Join(dir, NotificationsFile),
		claimsPath: filepath.Join(dir, ClaimsFile),
		logger:     logger,
		now:        time.Now,
	}
	for _, p := range []string{s.path, s.claimsPath} {
		if err := ensureHeader(p); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Path returns the notifications file path.
func (s *Store) Path() string {
	return s.path
}

func ensureHeader(path string) error {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0600)
	if err != nil {
		return fmt.Errorf("failed to open file %s: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}
	if info.Size() > 0 {
		return nil
	}
	return writeHeader(f)
}

func writeHeader(w io.Writer) error {
	data, err := json.Marshal(schemaHeader{
		NudgeSchemaVersion: SchemaVersion,
		CreatedAt:          time.Now().Unix(),
	})
	if err != nil {
		return err
	}
	_, err = w.Write(append(data, '\n'))
	return err
}

// List returns userID's pending notifications, oldest first.
func (s *Store) List(ctx context.Context, userID string) ([]model.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, feed.Wrap(feed.BackendFile, "list", feed.ErrClosed)
	}
	all, err := s.loadLocked()
	if err != nil {
		return nil, feed.Wrap(feed.BackendFile, "list", err)
	}
	return feed.Snapshot(all, userID), nil
}

// Create appends a new notification for userID.
func (s *Store) Create(ctx context.Context, userID string, p model.Payload) (string, error) {
	if err := p.Validate(); err != nil {
		return "", err
	}
	now := s.now().UTC()
	id, err := model.NewID(now)
	if err != nil {
		return "", err
	}
	n := p.Materialize(id, userID, now)
	if err := n.Validate(); err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return "", feed.Wrap(feed.BackendFile, "create", feed.ErrClosed)
	}
	if err := appendRecord(s.path, n); err != nil {
		return "", feed.Wrap(feed.BackendFile, "create", err)
	}
	s.logger.Debug("created notification", "id", id, "user", userID, "type", n.Type)
	return id, nil
}

// Dismiss appends a dismissed copy of the latest record for id.
func (s *Store) Dismiss(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return feed.Wrap(feed.BackendFile, "dismiss", feed.ErrClosed)
	}
	all, err := s.loadLocked()
	if err != nil {
		return feed.Wrap(feed.BackendFile, "dismiss", err)
	}

	for i := range all {
		if all[i].ID != id {
			continue
		}
		if all[i].Dismissed {
			return nil
		}
		n := all[i]
		n.Dismissed = true
		return feed.Wrap(feed.BackendFile, "dismiss", appendRecord(s.path, n))
	}
	return feed.Wrap(feed.BackendFile, "dismiss", fmt.Errorf("%s: %w", id, feed.ErrNotFound))
}

// Claim appends a claim record to the claims file.
func (s *Store) Claim(ctx context.Context, n model.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return feed.Wrap(feed.BackendFile, "claim", feed.ErrClosed)
	}
	claim := feed.NewClaim(n, s.now().Unix())
	return feed.Wrap(feed.BackendFile, "claim", appendRecord(s.claimsPath, claim))
}

// Compact rewrites the notifications file keeping only the latest record of
// each notification, dismissed ones included so dismissing again stays
// harmless. Unreadable lines are dropped. It returns the number of lines
// dropped.
func (s *Store) Compact(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, feed.Wrap(feed.BackendFile, "compact", feed.ErrClosed)
	}

	records, err := countRecords(s.path)
	if err != nil {
		return 0, feed.Wrap(feed.BackendFile, "compact", err)
	}
	all, err := s.loadLocked()
	if err != nil {
		return 0, feed.Wrap(feed.BackendFile, "compact", err)
	}

	if err := rewrite(s.path, all); err != nil {
		return 0, feed.Wrap(feed.BackendFile, "compact", err)
	}
	return records - len(all), nil
}

// Close marks the store closed. Watchers return on their next event.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// loadLocked reads every record, keeping the last one per id in
// first-seen order. Caller must hold the lock.
func (s *Store) loadLocked() ([]model.Notification, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", s.path, err)
	}
	defer f.Close()

	var order []string
	latest := make(map[string]model.Notification)

	err = forEachLine(f, func(lineNum int, line []byte, tooLong bool) error {
		if tooLong {
			s.logger.Warn("skipping oversized record", "file", s.path, "line", lineNum)
			return nil
		}
		if len(line) == 0 {
			return nil
		}

		if lineNum == 1 {
			var header schemaHeader
			if err := json.Unmarshal(line, &header); err == nil && header.NudgeSchemaVersion > 0 {
				if header.NudgeSchemaVersion > SchemaVersion {
					return fmt.Errorf("unsupported schema version %d (max: %d)",
						header.NudgeSchemaVersion, SchemaVersion)
				}
				return nil
			}
		}

		var n model.Notification
		if err := json.Unmarshal(line, &n); err != nil || n.ID == "" {
			s.logger.Debug("skipping malformed record", "file", s.path, "line", lineNum)
			return nil
		}
		if _, seen := latest[n.ID]; !seen {
			order = append(order, n.ID)
		}
		latest[n.ID] = n
		return nil
	})
	if err != nil {
		return nil, err
	}

	out := make([]model.Notification, 0, len(order))
	for _, id := range order {
		out = append(out, latest[id])
	}
	return out, nil
}

func appendRecord(path string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if len(data) > maxLineSize {
		return fmt.Errorf("%w: %d bytes (max: %d)", ErrRecordTooLarge, len(data), maxLineSize)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0600)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := f.Write(append(data, '\n')); err != nil {
		return err
	}
	return f.Sync()
}

func countRecords(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	count := 0
	err = forEachLine(f, func(_ int, line []byte, tooLong bool) error {
		if tooLong || len(line) > 0 {
			count++
		}
		return nil
	})
	// Header line
	if count > 0 {
		count--
	}
	return count, err
}

// forEachLine calls fn with each line of r, numbered from 1. Lines longer
// than maxLineSize are discarded while reading and reported with tooLong set.
// The line slice is only valid during the call.
func forEachLine(r io.Reader, fn func(lineNum int, line []byte, tooLong bool) error) error {
	br := bufio.NewReaderSize(r, 64*1024)
	var buf []byte
	lineNum := 0
	for {
		started, tooLong := false, false
		buf = buf[:0]

		var err error
		for {
			var chunk []byte
			chunk, err = br.ReadSlice('\n')
			if len(chunk) > 0 {
				started = true
				if !tooLong && len(buf)+len(chunk) > maxLineSize+1 {
					tooLong = true
					buf = buf[:0]
				}
				if !tooLong {
					buf = append(buf, chunk...)
				}
			}
			if !errors.Is(err, bufio.ErrBufferFull) {
				break
			}
		}
		if err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("error reading file: %w", err)
		}

		if started {
			lineNum++
			if ferr := fn(lineNum, bytes.TrimRight(buf, "\r\n"), tooLong); ferr != nil {
				return ferr
			}
		}
		if err != nil {
			return nil
		}
	}
}

// rewrite replaces path with ns, keeping a backup until the write succeeds.
func rewrite(path string, ns []model.Notification) error {
	backupPath := path + ".bak"
	if err := os.Rename(path, backupPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to create backup: %w", err)
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		_ = os.Rename(backupPath, path)
		return fmt.Errorf("failed to create new file: %w", err)
	}
	defer f.Close()

	if err := writeHeader(f); err != nil {
		return err
	}
	for _, n := range ns {
		data, err := json.Marshal(n)
		if err != nil {
			return err
		}
		if _, err := f.Write(append(data, '\n')); err != nil {
			return err
		}
	}
	if err := f.Sync(); err != nil {
		return err
	}

	_ = os.Remove(backupPath)
	return nil
}
