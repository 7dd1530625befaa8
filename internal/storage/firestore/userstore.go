// Package firestore implements the user-record store on Google Cloud
// Firestore.
package firestore

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/ncalexan/autopush-rs/pkg/store"
)

// collection is the root collection holding one document per UAID.
const collection = "routers"

// UserStore implements store.UserStore using Firestore.
type UserStore struct {
	client *firestore.Client
}

func NewUserStore(client *firestore.Client) *UserStore {
	return &UserStore{client: client}
}

// userRecord is the internal DB representation. The UAID is kept as a
// string: Firestore cannot serialize a uuid.UUID directly, and the string
// doubles as the document id.
type userRecord struct {
	UAID        string         `firestore:"uaid"`
	RouterType  string         `firestore:"router_type"`
	RouterData  map[string]any `firestore:"router_data"`
	ConnectedAt time.Time      `firestore:"connected_at"`
}

func (s *UserStore) RegisterUser(ctx context.Context, user *store.User) error {
	record := userRecord{
		UAID:        user.UAID.String(),
		RouterType:  user.RouterType,
		RouterData:  user.RouterData,
		ConnectedAt: user.ConnectedAt,
	}
	if _, err := s.userRef(user.UAID).Set(ctx, record); err != nil {
		return fmt.Errorf("firestore set failed: %w", err)
	}
	return nil
}

func (s *UserStore) GetUser(ctx context.Context, uaid uuid.UUID) (*store.User, error) {
	doc, err := s.userRef(uaid).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("firestore get failed: %w", err)
	}

	var record userRecord
	if err := doc.DataTo(&record); err != nil {
		return nil, fmt.Errorf("firestore record for %s is malformed: %w", uaid, err)
	}
	return &store.User{
		UAID:        uaid,
		RouterType:  record.RouterType,
		RouterData:  record.RouterData,
		ConnectedAt: record.ConnectedAt,
	}, nil
}

// RemoveUser deletes the record. Firestore deletes are idempotent, which
// matches the pruning contract: removing an absent record is not an error.
func (s *UserStore) RemoveUser(ctx context.Context, uaid uuid.UUID) error {
	if _, err := s.userRef(uaid).Delete(ctx); err != nil {
		return fmt.Errorf("firestore delete failed: %w", err)
	}
	return nil
}

func (s *UserStore) userRef(uaid uuid.UUID) *firestore.DocumentRef {
	return s.client.Collection(collection).Doc(uaid.String())
}
