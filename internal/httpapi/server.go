package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"riffrate/internal/browse"
	"riffrate/internal/identity"
	"riffrate/internal/metrics"
	"riffrate/internal/models"
	"riffrate/internal/reviews"
)

// ReviewService captures the review operations needed by the HTTP handlers.
type ReviewService interface {
	Create(ctx context.Context, kind models.EntityKind, name, content string, rating int, poster string) (string, error)
	FetchRecent(ctx context.Context, max int) ([]models.Review, error)
	FetchFor(ctx context.Context, kind models.EntityKind, name string) ([]models.Review, error)
	FetchForUser(ctx context.Context, uid string) ([]models.Review, error)
	Get(ctx context.Context, id string) (models.Review, error)
	Delete(ctx context.Context, id string) error
	Update(ctx context.Context, id string, upd models.ReviewUpdate) (models.Review, error)
}

// Form and error messages shown to users.
const (
	msgIncompleteForm = "Please fill out all fields and choose a rating."
	msgNotOwnerEdit   = "You can only edit your own reviews"
	msgNotOwnerDelete = "You can only delete your own reviews"
	msgLoginEdit      = "Must be logged in to edit reviews"
	msgLoginDelete    = "Must be logged in to delete reviews"
	msgLoginRequired  = "Must be logged in"
	msgNotFound       = "review not found"
	msgUnavailable    = "The review service is unavailable. Please try again."
	msgInternal       = "internal server error"
)

const (
	defaultRecentLimit = 10
	maxRecentLimit     = 300
)

// Server wires HTTP handlers to the review repository and list controllers.
type Server struct {
	reviews  ReviewService
	validate *validator.Validate
	logger   zerolog.Logger
	window   int
	pageSize int
	loc      *time.Location
}

// Option customises a Server.
type Option func(*Server)

// WithLogger sets the server logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// WithBrowseLimits sets the list window and page size used by the band and
// venue listings.
func WithBrowseLimits(window, pageSize int) Option {
	return func(s *Server) {
		if window > 0 {
			s.window = window
		}
		if pageSize > 0 {
			s.pageSize = pageSize
		}
	}
}

// WithLocation sets the time zone for "Posted on" labels.
func WithLocation(loc *time.Location) Option {
	return func(s *Server) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// New configures a Server around the given review service.
func New(svc ReviewService, opts ...Option) *Server {
	s := &Server{
		reviews:  svc,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		logger:   zerolog.Nop(),
		window:   browse.DefaultWindow,
		pageSize: browse.DefaultPageSize,
		loc:      time.UTC,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Routes exposes the HTTP handlers.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	mux.Handle("GET /metrics", metrics.Handler())

	// Reviews
	mux.HandleFunc("POST /api/v1/reviews", s.handleCreateReview)
	mux.HandleFunc("GET /api/v1/reviews/recent", s.handleRecentReviews)
	mux.HandleFunc("GET /api/v1/reviews/{id}", s.handleGetReview)
	mux.HandleFunc("PUT /api/v1/reviews/{id}", s.handleUpdateReview)
	mux.HandleFunc("DELETE /api/v1/reviews/{id}", s.handleDeleteReview)

	// Band and venue listings
	mux.HandleFunc("GET /api/v1/bands", s.handleBrowse(models.KindBand))
	mux.HandleFunc("GET /api/v1/venues", s.handleBrowse(models.KindVenue))
	mux.HandleFunc("GET /api/v1/bands/{name}/reviews", s.handleReviewsByName(models.KindBand))
	mux.HandleFunc("GET /api/v1/venues/{name}/reviews", s.handleReviewsByName(models.KindVenue))

	// Signed-in user
	mux.HandleFunc("GET /api/v1/me", s.handleMe)
	mux.HandleFunc("GET /api/v1/me/reviews", s.handleMyReviews)

	return mux
}

type errorResponse struct {
	Error string `json:"error"`
}

// mutation names the write a failed request attempted, for user-facing messages.
type mutation int

const (
	mutationNone mutation = iota
	mutationEdit
	mutationDelete
)

// writeError maps repository errors onto HTTP statuses and messages.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error, op mutation) {
	status, msg := statusFor(err, op)

	event := s.logger.Warn()
	if status >= http.StatusInternalServerError {
		event = s.logger.Error()
	}
	event.Err(err).
		Str("method", r.Method).
		Str("path", r.URL.Path).
		Int("status", status).
		Msg("request failed")

	writeJSON(w, status, errorResponse{Error: msg})
}

func statusFor(err error, op mutation) (int, string) {
	switch {
	case errors.Is(err, reviews.ErrInvalidKind), errors.Is(err, reviews.ErrInvalidRating):
		return http.StatusBadRequest, msgIncompleteForm
	case errors.Is(err, browse.ErrUnknownSort):
		return http.StatusBadRequest, "unknown sort option"
	case errors.Is(err, browse.ErrPageOutOfRange):
		return http.StatusBadRequest, "page out of range"
	case errors.Is(err, reviews.ErrAuthorization):
		switch op {
		case mutationEdit:
			return http.StatusUnauthorized, msgLoginEdit
		case mutationDelete:
			return http.StatusUnauthorized, msgLoginDelete
		}
		return http.StatusUnauthorized, msgLoginRequired
	case errors.Is(err, reviews.ErrOwnership):
		if op == mutationDelete {
			return http.StatusForbidden, msgNotOwnerDelete
		}
		return http.StatusForbidden, msgNotOwnerEdit
	case errors.Is(err, reviews.ErrReviewNotFound):
		return http.StatusNotFound, msgNotFound
	case reviews.IsTransport(err), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, msgUnavailable
	default:
		return http.StatusInternalServerError, msgInternal
	}
}

func viewer(r *http.Request) *identity.Identity {
	who, _ := identity.FromContext(r.Context())
	return who
}
