// Package remote holds the per-user task record and uploaded proofs outside
// the device.
package remote

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/timestamppb"

	"github.com/finey-app/finey/internal/models"
)

// DefaultCollection holds one document per user.
const DefaultCollection = "users"

// firestoreDoc is the stored shape of a user document.
type firestoreDoc struct {
	Data []firestoreTask `firestore:"data"`
}

// firestoreTask is the provider form of a task. notifyBefore is stored in
// milliseconds.
type firestoreTask struct {
	ID           string                 `firestore:"id"`
	Name         string                 `firestore:"name"`
	IsCompleted  bool                   `firestore:"isCompleted"`
	Deposit      int64                  `firestore:"deposit"`
	DueDate      *timestamppb.Timestamp `firestore:"dueDate"`
	NotifyBefore int64                  `firestore:"notifyBefore"`
	ProofFileRef string                 `firestore:"proofFileRef,omitempty"`
}

func toFirestore(rec *models.Record) firestoreDoc {
	doc := firestoreDoc{Data: make([]firestoreTask, 0, len(rec.Data))}
	for _, t := range rec.Data {
		doc.Data = append(doc.Data, firestoreTask{
			ID:           t.ID,
			Name:         t.Name,
			IsCompleted:  t.IsCompleted,
			Deposit:      t.Deposit,
			DueDate:      timestamppb.New(models.NormalizeTime(t.DueDate)),
			NotifyBefore: t.NotifyBefore.Milliseconds(),
			ProofFileRef: t.ProofFileRef,
		})
	}
	return doc
}

func fromFirestore(doc firestoreDoc) (*models.Record, error) {
	rec := &models.Record{Data: make([]models.RecordTask, 0, len(doc.Data))}
	for i, t := range doc.Data {
		if t.ID == "" {
			return nil, fmt.Errorf("record entry %d: missing id", i)
		}
		if t.DueDate == nil {
			return nil, fmt.Errorf("record task %s: missing dueDate", t.ID)
		}
		if err := t.DueDate.CheckValid(); err != nil {
			return nil, fmt.Errorf("record task %s: %w", t.ID, err)
		}
		rec.Data = append(rec.Data, models.RecordTask{
			ID:           t.ID,
			Name:         t.Name,
			IsCompleted:  t.IsCompleted,
			Deposit:      t.Deposit,
			DueDate:      models.NormalizeTime(t.DueDate.AsTime()),
			NotifyBefore: time.Duration(t.NotifyBefore) * time.Millisecond,
			ProofFileRef: t.ProofFileRef,
		})
	}
	return rec, nil
}

// Firestore stores each user's record as a document in a collection.
type Firestore struct {
	client     *firestore.Client
	collection string
}

// NewFirestore connects to Firestore in projectID.
func NewFirestore(ctx context.Context, projectID, collection string, opts ...option.ClientOption) (*Firestore, error) {
	client, err := firestore.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("create firestore client: %w", err)
	}
	if collection == "" {
		collection = DefaultCollection
	}
	return &Firestore{client: client, collection: collection}, nil
}

// Close releases the client.
func (f *Firestore) Close() error {
	return f.client.Close()
}

// Get returns the user's record, or nil when no document exists.
func (f *Firestore) Get(ctx context.Context, userID string) (*models.Record, error) {
	snap, err := f.client.Collection(f.collection).Doc(userID).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get record: %w", err)
	}

	var doc firestoreDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, fmt.Errorf("decode record: %w", err)
	}
	return fromFirestore(doc)
}

// Set replaces the user's record.
func (f *Firestore) Set(ctx context.Context, userID string, rec *models.Record) error {
	if rec == nil {
		rec = &models.Record{}
	}
	if _, err := f.client.Collection(f.collection).Doc(userID).Set(ctx, toFirestore(rec)); err != nil {
		return fmt.Errorf("set record: %w", err)
	}
	return nil
}
