package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

// Field names backed by dedicated timestamp columns instead of the JSONB body.
const (
	createdField = "created"
	updatedField = "updated"
)

// Postgres stores documents as JSONB rows in a single documents table.
//
// The created and updated fields live in the created_at and updated_at columns
// so that ServerTimestamp maps onto NOW(); every other field is kept in the
// JSONB body.
type Postgres struct {
	db    *sql.DB
	newID func() string
}

// NewPostgres sets up a Postgres document store using the provided handle.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db, newID: uuid.NewString}
}

// Create inserts a document and returns its generated id.
func (p *Postgres) Create(ctx context.Context, collection string, fields Fields) (string, error) {
	body, stampCreated, updated, err := splitFields(fields)
	if err != nil {
		return "", fmt.Errorf("create document: %w", err)
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("marshal document: %w", err)
	}

	var created any
	if !stampCreated {
		if t, ok := fields[createdField].(time.Time); ok {
			created = t
		}
	}

	for attempt := 0; attempt < 2; attempt++ {
		id := p.newID()
		_, err = p.db.ExecContext(ctx, `
			INSERT INTO documents (collection, id, fields, created_at, updated_at)
			VALUES ($1, $2, $3::jsonb, COALESCE($4, NOW()), $5)
		`, collection, id, string(payload), created, updated)
		if err == nil {
			return id, nil
		}
		if !isUniqueViolation(err) {
			break
		}
	}
	return "", fmt.Errorf("insert document: %w", err)
}

// Query runs an equality-filtered, ordered read over one collection. Filters
// are JSONB containment tests so the GIN index on fields serves them.
func (p *Postgres) Query(ctx context.Context, q Query) ([]Document, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	query, args, err := buildQuery(q)
	if err != nil {
		return nil, err
	}

	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}
	return docs, nil
}

// Get loads a single document by id.
func (p *Postgres) Get(ctx context.Context, collection, id string) (Document, error) {
	if _, err := uuid.Parse(id); err != nil {
		return Document{}, ErrNotFound
	}

	row := p.db.QueryRowContext(ctx, `
		SELECT id, fields, created_at, updated_at
		FROM documents
		WHERE collection = $1 AND id = $2
	`, collection, id)

	doc, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Document{}, ErrNotFound
	}
	if err != nil {
		return Document{}, err
	}
	return doc, nil
}

// Delete removes a document permanently.
func (p *Postgres) Delete(ctx context.Context, collection, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return ErrNotFound
	}

	result, err := p.db.ExecContext(ctx, `DELETE FROM documents WHERE collection = $1 AND id = $2`, collection, id)
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// Update merges fields into the JSONB body of an existing document.
func (p *Postgres) Update(ctx context.Context, collection, id string, fields Fields) error {
	if _, err := uuid.Parse(id); err != nil {
		return ErrNotFound
	}

	body, stampCreated, updated, err := splitFields(fields)
	if err != nil {
		return fmt.Errorf("update document: %w", err)
	}
	if stampCreated {
		return fmt.Errorf("update document: %w: created is immutable", ErrUnsupportedQuery)
	}

	patch, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal patch: %w", err)
	}

	_, stampUpdated := fields[updatedField]
	result, err := p.db.ExecContext(ctx, `
		UPDATE documents
		SET fields = fields || $3::jsonb,
		    updated_at = CASE WHEN $4 THEN COALESCE($5, NOW()) ELSE updated_at END
		WHERE collection = $1 AND id = $2
	`, collection, id, string(patch), stampUpdated, updated)
	if err != nil {
		return fmt.Errorf("update document: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// splitFields separates the JSONB body from the timestamp columns. It reports
// whether created should be stamped by the server and the explicit updated
// value, nil when absent or server-stamped.
func splitFields(fields Fields) (Fields, bool, any, error) {
	body := make(Fields, len(fields))
	stampCreated := false
	var updated any

	for k, v := range fields {
		switch k {
		case createdField:
			if IsServerTimestamp(v) || v == nil {
				stampCreated = true
			}
		case updatedField:
			if t, ok := v.(time.Time); ok {
				updated = t
			}
		default:
			if IsServerTimestamp(v) {
				return nil, false, nil, fmt.Errorf("%w: server timestamp on field %q", ErrUnsupportedQuery, k)
			}
			body[k] = v
		}
	}
	if _, ok := fields[createdField]; !ok {
		stampCreated = true
	}
	return body, stampCreated, updated, nil
}

func buildQuery(q Query) (string, []any, error) {
	var b strings.Builder
	args := []any{q.Collection}

	b.WriteString("SELECT id, fields, created_at, updated_at FROM documents WHERE collection = $1")

	for _, f := range q.Filters {
		if f.Field == createdField || f.Field == updatedField {
			return "", nil, fmt.Errorf("%w: equality filter on %q", ErrUnsupportedQuery, f.Field)
		}
		match, err := json.Marshal(map[string]any{f.Field: f.Value})
		if err != nil {
			return "", nil, fmt.Errorf("marshal filter %q: %w", f.Field, err)
		}
		args = append(args, string(match))
		fmt.Fprintf(&b, " AND fields @> $%d::jsonb", len(args))
	}

	direction := "ASC"
	if q.Descending {
		direction = "DESC"
	}

	switch q.OrderBy {
	case "", createdField:
		b.WriteString(" ORDER BY created_at " + direction + ", id " + direction)
	case updatedField:
		b.WriteString(" ORDER BY updated_at " + direction + ", id " + direction)
	default:
		args = append(args, q.OrderBy)
		fmt.Fprintf(&b, " ORDER BY fields -> $%d::text %s, id %s", len(args), direction, direction)
	}

	if q.Limit > 0 {
		args = append(args, q.Limit)
		b.WriteString(" LIMIT $" + strconv.Itoa(len(args)))
	}

	return b.String(), args, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (Document, error) {
	var (
		id      string
		payload []byte
		created time.Time
		updated sql.NullTime
	)
	if err := row.Scan(&id, &payload, &created, &updated); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Document{}, err
		}
		return Document{}, fmt.Errorf("scan document: %w", err)
	}

	fields := Fields{}
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &fields); err != nil {
			return Document{}, fmt.Errorf("decode document %s: %w", id, err)
		}
	}
	fields[createdField] = created
	if updated.Valid {
		fields[updatedField] = updated.Time
	}
	return Document{ID: id, Fields: fields}, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
