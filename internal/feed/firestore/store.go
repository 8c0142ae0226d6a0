// Package firestore implements a notification backend on Cloud Firestore
// using live query snapshots.
package firestore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	fstore "cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/jmylchreest/nudge/internal/feed"
	"github.com/jmylchreest/nudge/internal/model"
)

// Default collection names.
const (
	DefaultCollection       = "notifications"
	DefaultClaimsCollection = "claims"
)

// Config holds Firestore settings.
type Config struct {
	ProjectID        string
	CredentialsFile  string // Service account JSON; empty uses application default credentials
	Collection       string
	ClaimsCollection string
}

// Store is a Firestore-backed feed.Backend.
type Store struct {
	client     *fstore.Client
	collection string
	claims     string
	logger     *slog.Logger
	now        func() time.Time
}

var _ feed.Backend = (*Store)(nil)

// New initialises a Firebase app and its Firestore client.
func New(ctx context.Context, cfg Config, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	var fbConfig *firebase.Config
	if cfg.ProjectID != "" {
		fbConfig = &firebase.Config{ProjectID: cfg.ProjectID}
	}

	app, err := firebase.NewApp(ctx, fbConfig, opts...)
	if err != nil {
		return nil, feed.Wrap(feed.BackendFirestore, "connect", fmt.Errorf("firebase app: %w", err))
	}
	client, err := app.Firestore(ctx)
	if err != nil {
		return nil, feed.Wrap(feed.BackendFirestore, "connect", fmt.Errorf("firestore client: %w", err))
	}

	logger.Info("firestore client ready", "project", cfg.ProjectID, "collection", collectionOr(cfg.Collection, DefaultCollection))
	return newStore(client, cfg, logger), nil
}

func newStore(client *fstore.Client, cfg Config, logger *slog.Logger) *Store {
	return &Store{
		client:     client,
		collection: collectionOr(cfg.Collection, DefaultCollection),
		claims:     collectionOr(cfg.ClaimsCollection, DefaultClaimsCollection),
		logger:     logger,
		now:        time.Now,
	}
}

func collectionOr(name, fallback string) string {
	if name == "" {
		return fallback
	}
	return name
}

// pendingQuery selects userID's undismissed, unread notifications, oldest first.
func (s *Store) pendingQuery(userID string) fstore.Query {
	return s.client.Collection(s.collection).
		Where("userId", "==", userID).
		Where("dismissed", "==", false).
		Where("read", "==", false).
		OrderBy("createdAt", fstore.Asc)
}

// List returns userID's pending notifications.
func (s *Store) List(ctx context.Context, userID string) ([]model.Notification, error) {
	docs, err := s.pendingQuery(userID).Documents(ctx).GetAll()
	if err != nil {
		return nil, feed.Wrap(feed.BackendFirestore, "list", err)
	}
	return s.decodeAll(docs), nil
}

// Watch listens to the pending query and delivers every snapshot.
func (s *Store) Watch(ctx context.Context, userID string, fn func([]model.Notification)) error {
	it := s.pendingQuery(userID).Snapshots(ctx)
	defer it.Stop()

	for {
		snap, err := it.Next()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			return feed.Wrap(feed.BackendFirestore, "watch", err)
		}

		docs, err := snap.Documents.GetAll()
		if err != nil {
			return feed.Wrap(feed.BackendFirestore, "watch", err)
		}
		ns := s.decodeAll(docs)
		s.logger.Debug("snapshot received", "user", userID, "size", len(ns), "changes", len(snap.Changes))
		fn(ns)
	}
}

// Dismiss sets dismissed and a server-side dismissal time on id.
func (s *Store) Dismiss(ctx context.Context, id string) error {
	_, err := s.client.Collection(s.collection).Doc(id).Update(ctx, []fstore.Update{
		{Path: "dismissed", Value: true},
		{Path: "dismissedAt", Value: fstore.ServerTimestamp},
	})
	if status.Code(err) == codes.NotFound {
		return feed.Wrap(feed.BackendFirestore, "dismiss", fmt.Errorf("%s: %w", id, feed.ErrNotFound))
	}
	return feed.Wrap(feed.BackendFirestore, "dismiss", err)
}

// Create adds a notification document; Firestore assigns id and createdAt.
func (s *Store) Create(ctx context.Context, userID string, p model.Payload) (string, error) {
	if err := p.Validate(); err != nil {
		return "", err
	}
	if userID == "" {
		return "", model.ErrEmptyUserID
	}

	ref, _, err := s.client.Collection(s.collection).Add(ctx, payloadFields(userID, p))
	if err != nil {
		return "", feed.Wrap(feed.BackendFirestore, "create", err)
	}
	s.logger.Debug("created notification", "id", ref.ID, "user", userID, "type", p.Type)
	return ref.ID, nil
}

// Claim records a claim document for the gamification subsystem.
func (s *Store) Claim(ctx context.Context, n model.Notification) error {
	_, _, err := s.client.Collection(s.claims).Add(ctx, feed.NewClaim(n, s.now().Unix()))
	return feed.Wrap(feed.BackendFirestore, "claim", err)
}

// Close closes the Firestore client.
func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) decodeAll(docs []*fstore.DocumentSnapshot) []model.Notification {
	ns := make([]model.Notification, 0, len(docs))
	for _, doc := range docs {
		n, err := decode(doc)
		if err != nil {
			s.logger.Debug("skipping undecodable document", "id", doc.Ref.ID, "error", err)
			continue
		}
		ns = append(ns, n)
	}
	return ns
}

func decode(doc *fstore.DocumentSnapshot) (model.Notification, error) {
	var n model.Notification
	if err := doc.DataTo(&n); err != nil {
		return n, err
	}
	n.ID = doc.Ref.ID
	if n.CreatedAt.IsZero() {
		// Pending server timestamp in a local write
		return n, errors.New("createdAt not yet assigned")
	}
	return n, nil
}

// payloadFields builds the document written for a new notification.
func payloadFields(userID string, p model.Payload) map[string]interface{} {
	priority := p.Priority
	if priority == "" {
		priority = model.PriorityMedium
	}

	fields := map[string]interface{}{
		"userId":    userID,
		"type":      string(p.Type),
		"title":     p.Title,
		"message":   p.Message,
		"priority":  string(priority),
		"read":      false,
		"dismissed": false,
		"createdAt": fstore.ServerTimestamp,
	}
	if p.Reward != nil {
		fields["reward"] = p.Reward
	}
	if p.Action != nil {
		fields["action"] = p.Action
	}
	if p.ExpiresAt != nil {
		fields["expiresAt"] = *p.ExpiresAt
	}
	return fields
}
