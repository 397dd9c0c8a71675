package reviews

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"riffrate/internal/identity"
	"riffrate/internal/metrics"
	"riffrate/internal/models"
	"riffrate/internal/store"
)

// Collection is the default document collection holding reviews.
const Collection = "reviews"

// AnonymousPoster is stored when a review is posted without a name.
const AnonymousPoster = "Anonymous"

const (
	fieldBandName       = "bandName"
	fieldBandNameLower  = "bandNameLower"
	fieldVenueName      = "venueName"
	fieldVenueNameLower = "venueNameLower"
	fieldTitle          = "title"
	fieldContent        = "content"
	fieldRating         = "rating"
	fieldPoster         = "poster"
	fieldUserUID        = "userUid"
	fieldCreated        = "created"
	fieldUpdated        = "updated"
)

// Repository is the query and mutation facade over the review collection.
type Repository struct {
	store      store.DocumentStore
	identity   identity.Provider
	collection string
	logger     zerolog.Logger
	now        func() time.Time
}

// Option customises a Repository.
type Option func(*Repository)

// WithLogger sets the logger used for repository events.
func WithLogger(logger zerolog.Logger) Option {
	return func(r *Repository) { r.logger = logger }
}

// WithCollection overrides the collection name.
func WithCollection(name string) Option {
	return func(r *Repository) { r.collection = name }
}

// WithClock overrides the clock used for absent timestamps.
func WithClock(now func() time.Time) Option {
	return func(r *Repository) { r.now = now }
}

// New builds a Repository over docs, reading the acting identity from ids.
func New(docs store.DocumentStore, ids identity.Provider, opts ...Option) *Repository {
	r := &Repository{
		store:      docs,
		identity:   ids,
		collection: Collection,
		logger:     zerolog.Nop(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Create stores a new band or venue review and returns its id. A blank poster
// is recorded as "Anonymous"; the review is tied to the current identity when
// one is signed in.
func (r *Repository) Create(ctx context.Context, kind models.EntityKind, name, content string, rating int, poster string) (id string, err error) {
	defer observe("create", time.Now(), &err)

	if !kind.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidKind, kind)
	}
	if rating < 0 || rating > 5 {
		return "", ErrInvalidRating
	}

	name = strings.TrimSpace(name)
	key := models.NameKey(name)
	fields := store.Fields{
		fieldBandName:       nil,
		fieldBandNameLower:  nil,
		fieldVenueName:      nil,
		fieldVenueNameLower: nil,
		fieldTitle:          kind.Label() + " Review",
		fieldContent:        content,
		fieldRating:         rating,
		fieldPoster:         AnonymousPoster,
		fieldUserUID:        nil,
		fieldCreated:        store.ServerTimestamp,
	}
	switch kind {
	case models.KindBand:
		fields[fieldBandName] = name
		fields[fieldBandNameLower] = key
	case models.KindVenue:
		fields[fieldVenueName] = name
		fields[fieldVenueNameLower] = key
	}
	if p := strings.TrimSpace(poster); p != "" {
		fields[fieldPoster] = p
	}
	if current, ok := r.identity.Current(ctx); ok && current.UID != "" {
		fields[fieldUserUID] = current.UID
	}

	id, err = r.store.Create(ctx, r.collection, fields)
	if err != nil {
		return "", &TransportError{Op: "create review", Err: err}
	}

	r.logger.Info().Str("review_id", id).Str("kind", string(kind)).Str("name", name).Msg("review created")
	return id, nil
}

// FetchRecent returns up to max reviews, newest first, of both kinds.
func (r *Repository) FetchRecent(ctx context.Context, max int) (out []models.Review, err error) {
	defer observe("fetch_recent", time.Now(), &err)

	if max <= 0 {
		return []models.Review{}, nil
	}
	return r.query(ctx, "fetch recent reviews", store.Query{
		Collection: r.collection,
		OrderBy:    fieldCreated,
		Descending: true,
		Limit:      max,
	})
}

// FetchForBand returns every review whose band name matches name, ignoring
// case and surrounding whitespace.
func (r *Repository) FetchForBand(ctx context.Context, name string) (out []models.Review, err error) {
	defer observe("fetch_for_band", time.Now(), &err)
	return r.fetchByKey(ctx, fieldBandNameLower, name)
}

// FetchForVenue is FetchForBand for venues.
func (r *Repository) FetchForVenue(ctx context.Context, name string) (out []models.Review, err error) {
	defer observe("fetch_for_venue", time.Now(), &err)
	return r.fetchByKey(ctx, fieldVenueNameLower, name)
}

// FetchFor dispatches to FetchForBand or FetchForVenue.
func (r *Repository) FetchFor(ctx context.Context, kind models.EntityKind, name string) ([]models.Review, error) {
	switch kind {
	case models.KindBand:
		return r.FetchForBand(ctx, name)
	case models.KindVenue:
		return r.FetchForVenue(ctx, name)
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidKind, kind)
	}
}

func (r *Repository) fetchByKey(ctx context.Context, field, name string) ([]models.Review, error) {
	return r.query(ctx, "fetch reviews by name", store.Query{
		Collection: r.collection,
		Filters:    []store.Filter{{Field: field, Value: models.NameKey(name)}},
		OrderBy:    fieldCreated,
		Descending: true,
	})
}

// FetchForUser collects the reviews posted by the signed-in identity. Reviews
// are matched on userUid first, then on a poster equal to the email (lower-cased,
// then as given), then on a poster equal to the display name. These are the
// poster forms IsOwner accepts. Each review appears once, at the position of
// its first match. An empty uid falls back to the signed-in
// uid; with nobody signed in the result is empty.
func (r *Repository) FetchForUser(ctx context.Context, uid string) (out []models.Review, err error) {
	defer observe("fetch_for_user", time.Now(), &err)

	current, ok := r.identity.Current(ctx)
	if !ok {
		return []models.Review{}, nil
	}
	if uid == "" {
		uid = current.UID
	}

	base := store.Query{Collection: r.collection, OrderBy: fieldCreated, Descending: true}
	queries := []store.Query{base.Where(fieldUserUID, uid)}
	for _, poster := range legacyPosters(current) {
		queries = append(queries, base.Where(fieldPoster, poster))
	}

	seen := make(map[string]struct{})
	out = []models.Review{}
	for _, q := range queries {
		batch, err := r.query(ctx, "fetch user reviews", q)
		if err != nil {
			return nil, err
		}
		for _, rev := range batch {
			if _, dup := seen[rev.ID]; dup {
				continue
			}
			seen[rev.ID] = struct{}{}
			out = append(out, rev)
		}
	}
	return out, nil
}

// Get loads a single review.
func (r *Repository) Get(ctx context.Context, id string) (rev models.Review, err error) {
	defer observe("get", time.Now(), &err)
	return r.get(ctx, id)
}

func (r *Repository) get(ctx context.Context, id string) (models.Review, error) {
	doc, err := r.store.Get(ctx, r.collection, id)
	if errors.Is(err, store.ErrNotFound) {
		return models.Review{}, ErrReviewNotFound
	}
	if err != nil {
		return models.Review{}, &TransportError{Op: "get review", Err: err}
	}
	return r.decode(doc), nil
}

// Delete permanently removes a review owned by the signed-in identity.
func (r *Repository) Delete(ctx context.Context, id string) (err error) {
	defer observe("delete", time.Now(), &err)

	current, err := r.authorize(ctx, id)
	if err != nil {
		return err
	}

	if err := r.store.Delete(ctx, r.collection, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrReviewNotFound
		}
		return &TransportError{Op: "delete review", Err: err}
	}

	r.logger.Info().Str("review_id", id).Str("uid", current.UID).Msg("review deleted")
	return nil
}

// Update rewrites the content and rating of a review owned by the signed-in
// identity, stamps the update time and returns the stored result.
func (r *Repository) Update(ctx context.Context, id string, upd models.ReviewUpdate) (rev models.Review, err error) {
	defer observe("update", time.Now(), &err)

	if upd.Rating < 0 || upd.Rating > 5 {
		return models.Review{}, ErrInvalidRating
	}

	current, err := r.authorize(ctx, id)
	if err != nil {
		return models.Review{}, err
	}

	err = r.store.Update(ctx, r.collection, id, store.Fields{
		fieldContent: upd.Content,
		fieldRating:  upd.Rating,
		fieldUpdated: store.ServerTimestamp,
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return models.Review{}, ErrReviewNotFound
		}
		return models.Review{}, &TransportError{Op: "update review", Err: err}
	}

	r.logger.Info().Str("review_id", id).Str("uid", current.UID).Msg("review updated")
	return r.get(ctx, id)
}

// authorize checks that someone is signed in and owns review id.
func (r *Repository) authorize(ctx context.Context, id string) (*identity.Identity, error) {
	current, ok := r.identity.Current(ctx)
	if !ok {
		return nil, ErrAuthorization
	}

	rev, err := r.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !IsOwner(rev, current) {
		r.logger.Warn().Str("review_id", id).Str("uid", current.UID).Msg("ownership check failed")
		return nil, ErrOwnership
	}
	return current, nil
}

func (r *Repository) query(ctx context.Context, op string, q store.Query) ([]models.Review, error) {
	docs, err := r.store.Query(ctx, q)
	if err != nil {
		return nil, &TransportError{Op: op, Err: err}
	}

	out := make([]models.Review, 0, len(docs))
	for _, doc := range docs {
		out = append(out, r.decode(doc))
	}
	return out, nil
}

func observe(op string, start time.Time, err *error) {
	metrics.RecordStoreOperation(op, time.Since(start), *err)
}
