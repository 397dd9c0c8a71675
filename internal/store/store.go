package store

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates the requested document does not exist.
	ErrNotFound = errors.New("document not found")
	// ErrUnsupportedQuery signals a query shape the backend cannot execute.
	ErrUnsupportedQuery = errors.New("unsupported query")
)

// serverTimestamp is the type of the ServerTimestamp sentinel.
type serverTimestamp struct{}

// ServerTimestamp asks the backend to stamp the field with its own clock on write.
var ServerTimestamp = serverTimestamp{}

// IsServerTimestamp reports whether v is the ServerTimestamp sentinel.
func IsServerTimestamp(v any) bool {
	_, ok := v.(serverTimestamp)
	return ok
}

// Fields is a schema-less document body keyed by field name.
type Fields map[string]any

// Document is a stored document and its backend-assigned id.
type Document struct {
	ID     string
	Fields Fields
}

// Filter is an equality predicate on a single field.
type Filter struct {
	Field string
	Value any
}

// Query describes a filtered, ordered and optionally limited read of a collection.
type Query struct {
	Collection string
	Filters    []Filter
	OrderBy    string
	Descending bool
	// Limit caps the number of documents returned; zero means unbounded.
	Limit int
}

// Where returns a copy of q with an additional equality filter.
func (q Query) Where(field string, value any) Query {
	filters := make([]Filter, 0, len(q.Filters)+1)
	filters = append(filters, q.Filters...)
	q.Filters = append(filters, Filter{Field: field, Value: value})
	return q
}

// Validate rejects queries no backend can serve.
func (q Query) Validate() error {
	if q.Collection == "" {
		return fmt.Errorf("%w: collection is required", ErrUnsupportedQuery)
	}
	if q.Limit < 0 {
		return fmt.Errorf("%w: negative limit %d", ErrUnsupportedQuery, q.Limit)
	}
	for _, f := range q.Filters {
		if f.Field == "" {
			return fmt.Errorf("%w: filter without field", ErrUnsupportedQuery)
		}
	}
	return nil
}

// DocumentStore is the document database boundary used by the review repository.
type DocumentStore interface {
	Create(ctx context.Context, collection string, fields Fields) (string, error)
	Query(ctx context.Context, q Query) ([]Document, error)
	Get(ctx context.Context, collection, id string) (Document, error)
	Delete(ctx context.Context, collection, id string) error
	Update(ctx context.Context, collection, id string, fields Fields) error
}

func cloneFields(src Fields) Fields {
	if src == nil {
		return Fields{}
	}
	dst := make(Fields, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
