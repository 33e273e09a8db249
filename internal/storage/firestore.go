package storage

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Ensure FirestoreStore implements the storage interfaces
var _ Store = (*FirestoreStore)(nil)
var _ Cleaner = (*FirestoreStore)(nil)

// FirestoreStore persists broker state in a Firestore collection, one
// document per key. Firestore has no native per-document TTL we can
// rely on across databases, so expiry is enforced lazily on Get and
// CleanupExpired reaps the rest.
type FirestoreStore struct {
	client     *firestore.Client
	collection string
}

// entryDoc is the stored document shape
type entryDoc struct {
	Value     string    `firestore:"value"`
	ExpiresAt time.Time `firestore:"expires_at,omitempty"`
}

// NewFirestoreStore creates a Firestore-backed store
func NewFirestoreStore(ctx context.Context, projectID, database, collection string) (*FirestoreStore, error) {
	if projectID == "" {
		return nil, fmt.Errorf("projectID is required")
	}
	if collection == "" {
		return nil, fmt.Errorf("collection is required")
	}

	var client *firestore.Client
	var err error

	if database != "" && database != "(default)" {
		client, err = firestore.NewClientWithDatabase(ctx, projectID, database)
	} else {
		client, err = firestore.NewClient(ctx, projectID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create Firestore client: %w", err)
	}

	return &FirestoreStore{
		client:     client,
		collection: collection,
	}, nil
}

// Get returns the value for key, or ErrNotFound if absent or expired
func (s *FirestoreStore) Get(ctx context.Context, key string) (string, error) {
	snap, err := s.client.Collection(s.collection).Doc(docID(key)).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("reading key %q: %w", key, err)
	}

	var doc entryDoc
	if err := snap.DataTo(&doc); err != nil {
		return "", fmt.Errorf("unmarshaling key %q: %w", key, err)
	}

	if !doc.ExpiresAt.IsZero() && time.Now().After(doc.ExpiresAt) {
		// Best-effort reap; the caller sees a miss either way
		_, _ = snap.Ref.Delete(ctx)
		return "", ErrNotFound
	}
	return doc.Value, nil
}

// Set writes value under key with an optional TTL
func (s *FirestoreStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	doc := entryDoc{Value: value}
	if ttl > 0 {
		doc.ExpiresAt = time.Now().Add(ttl)
	}

	_, err := s.client.Collection(s.collection).Doc(docID(key)).Set(ctx, doc)
	if err != nil {
		return fmt.Errorf("writing key %q: %w", key, err)
	}
	return nil
}

// Delete removes key. Absent keys are a no-op.
func (s *FirestoreStore) Delete(ctx context.Context, key string) error {
	_, err := s.client.Collection(s.collection).Doc(docID(key)).Delete(ctx)
	if err != nil && status.Code(err) != codes.NotFound {
		return fmt.Errorf("deleting key %q: %w", key, err)
	}
	return nil
}

// CleanupExpired deletes all documents whose expires_at has passed
func (s *FirestoreStore) CleanupExpired(ctx context.Context) (int, error) {
	iter := s.client.Collection(s.collection).
		Where("expires_at", ">", time.Time{}).
		Where("expires_at", "<", time.Now()).
		Documents(ctx)
	defer iter.Stop()

	count := 0
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return count, fmt.Errorf("iterating expired documents: %w", err)
		}
		if _, err := snap.Ref.Delete(ctx); err != nil {
			return count, fmt.Errorf("deleting expired document %s: %w", snap.Ref.ID, err)
		}
		count++
	}
	return count, nil
}

// Close releases the underlying Firestore client
func (s *FirestoreStore) Close() error {
	return s.client.Close()
}

// docID makes a key safe for use as a Firestore document ID. Keys use
// ":" separators which Firestore allows, but "/" would split the path.
func docID(key string) string {
	out := make([]byte, 0, len(key))
	for i := 0; i < len(key); i++ {
		if key[i] == '/' {
			out = append(out, '|')
			continue
		}
		out = append(out, key[i])
	}
	return string(out)
}
