package store

import (
	"context"
	"fmt"
	"sort"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Firestore adapts a Cloud Firestore client to the DocumentStore interface.
type Firestore struct {
	client *firestore.Client
}

// NewFirestore wraps an initialised Firestore client.
func NewFirestore(client *firestore.Client) *Firestore {
	return &Firestore{client: client}
}

func (f *Firestore) Create(ctx context.Context, collection string, fields Fields) (string, error) {
	ref, _, err := f.client.Collection(collection).Add(ctx, toFirestoreFields(fields))
	if err != nil {
		return "", fmt.Errorf("add document: %w", err)
	}
	return ref.ID, nil
}

func (f *Firestore) Query(ctx context.Context, q Query) ([]Document, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	fq := f.client.Collection(q.Collection).Query
	for _, filter := range q.Filters {
		fq = fq.Where(filter.Field, "==", filter.Value)
	}
	if q.OrderBy != "" {
		direction := firestore.Asc
		if q.Descending {
			direction = firestore.Desc
		}
		fq = fq.OrderBy(q.OrderBy, direction)
	}
	if q.Limit > 0 {
		fq = fq.Limit(q.Limit)
	}

	snaps, err := fq.Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", q.Collection, err)
	}

	docs := make([]Document, 0, len(snaps))
	for _, snap := range snaps {
		docs = append(docs, Document{ID: snap.Ref.ID, Fields: snap.Data()})
	}
	return docs, nil
}

func (f *Firestore) Get(ctx context.Context, collection, id string) (Document, error) {
	ref := f.client.Collection(collection).Doc(id)
	if ref == nil {
		return Document{}, ErrNotFound
	}

	snap, err := ref.Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return Document{}, ErrNotFound
		}
		return Document{}, fmt.Errorf("get %s/%s: %w", collection, id, err)
	}
	return Document{ID: snap.Ref.ID, Fields: snap.Data()}, nil
}

func (f *Firestore) Delete(ctx context.Context, collection, id string) error {
	ref := f.client.Collection(collection).Doc(id)
	if ref == nil {
		return ErrNotFound
	}

	if _, err := ref.Delete(ctx, firestore.Exists); err != nil {
		if status.Code(err) == codes.NotFound {
			return ErrNotFound
		}
		return fmt.Errorf("delete %s/%s: %w", collection, id, err)
	}
	return nil
}

func (f *Firestore) Update(ctx context.Context, collection, id string, fields Fields) error {
	ref := f.client.Collection(collection).Doc(id)
	if ref == nil {
		return ErrNotFound
	}

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	updates := make([]firestore.Update, 0, len(keys))
	for _, k := range keys {
		updates = append(updates, firestore.Update{Path: k, Value: toFirestoreValue(fields[k])})
	}

	if _, err := ref.Update(ctx, updates); err != nil {
		if status.Code(err) == codes.NotFound {
			return ErrNotFound
		}
		return fmt.Errorf("update %s/%s: %w", collection, id, err)
	}
	return nil
}

func toFirestoreFields(fields Fields) map[string]any {
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		out[k] = toFirestoreValue(v)
	}
	return out
}

func toFirestoreValue(v any) any {
	if IsServerTimestamp(v) {
		return firestore.ServerTimestamp
	}
	return v
}
