package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"riffrate/internal/identity"
	"riffrate/internal/models"
	"riffrate/internal/reviews"
	"riffrate/internal/store"
)

type createCall struct {
	kind    models.EntityKind
	name    string
	content string
	rating  int
	poster  string
}

type stubReviewService struct {
	createID  string
	createErr error
	created   *createCall

	recent    []models.Review
	recentErr error
	lastMax   int

	byName   []models.Review
	lastKind models.EntityKind
	lastName string

	mine    []models.Review
	lastUID string

	single    models.Review
	singleErr error

	deleteErr error
	deletedID string

	updated   models.Review
	updateErr error
	lastUpd   models.ReviewUpdate
}

func (s *stubReviewService) Create(_ context.Context, kind models.EntityKind, name, content string, rating int, poster string) (string, error) {
	s.created = &createCall{kind: kind, name: name, content: content, rating: rating, poster: poster}
	return s.createID, s.createErr
}

func (s *stubReviewService) FetchRecent(_ context.Context, max int) ([]models.Review, error) {
	s.lastMax = max
	if s.recentErr != nil {
		return nil, s.recentErr
	}
	return s.recent, nil
}

func (s *stubReviewService) FetchFor(_ context.Context, kind models.EntityKind, name string) ([]models.Review, error) {
	s.lastKind = kind
	s.lastName = name
	return s.byName, nil
}

func (s *stubReviewService) FetchForUser(_ context.Context, uid string) ([]models.Review, error) {
	s.lastUID = uid
	return s.mine, nil
}

func (s *stubReviewService) Get(context.Context, string) (models.Review, error) {
	return s.single, s.singleErr
}

func (s *stubReviewService) Delete(_ context.Context, id string) error {
	s.deletedID = id
	return s.deleteErr
}

func (s *stubReviewService) Update(_ context.Context, _ string, upd models.ReviewUpdate) (models.Review, error) {
	s.lastUpd = upd
	return s.updated, s.updateErr
}

var kim = &identity.Identity{UID: "u1", Email: "kim@example.com"}

func strptr(s string) *string { return &s }

func do(t *testing.T, h http.Handler, method, target string, body any, who *identity.Identity) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}

	req := httptest.NewRequest(method, target, &buf)
	if who != nil {
		req = req.WithContext(identity.WithIdentity(req.Context(), who))
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var resp errorResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode error response: %v", err)
	}
	return resp.Error
}

func TestHealth(t *testing.T) {
	rec := do(t, New(&stubReviewService{}).Routes(), http.MethodGet, "/health", nil, nil)
	if rec.Code != http.StatusOK || rec.Body.String() != "OK" {
		t.Fatalf("unexpected health response %d %q", rec.Code, rec.Body.String())
	}
}

func TestCreateReviewDefaultsPosterToUsername(t *testing.T) {
	svc := &stubReviewService{createID: "r1"}
	h := New(svc).Routes()

	rec := do(t, h, http.MethodPost, "/api/v1/reviews", map[string]any{
		"kind": "Band", "name": " Idles ", "content": "loud", "rating": 5,
	}, kim)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if rec.Header().Get("Location") != "/api/v1/reviews/r1" {
		t.Fatalf("unexpected location %q", rec.Header().Get("Location"))
	}
	want := createCall{kind: models.KindBand, name: "Idles", content: "loud", rating: 5, poster: "kim"}
	if svc.created == nil || *svc.created != want {
		t.Fatalf("unexpected create call %+v", svc.created)
	}
}

func TestCreateReviewValidation(t *testing.T) {
	tests := []struct {
		name string
		body map[string]any
	}{
		{name: "missing rating", body: map[string]any{"kind": "band", "name": "Idles", "content": "loud"}},
		{name: "rating too high", body: map[string]any{"kind": "band", "name": "Idles", "content": "loud", "rating": 6}},
		{name: "blank name", body: map[string]any{"kind": "band", "name": "   ", "content": "loud", "rating": 3}},
		{name: "blank content", body: map[string]any{"kind": "venue", "name": "Roxy", "content": "", "rating": 3}},
		{name: "unknown kind", body: map[string]any{"kind": "album", "name": "Roxy", "content": "x", "rating": 3}},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			svc := &stubReviewService{}
			rec := do(t, New(svc).Routes(), http.MethodPost, "/api/v1/reviews", tc.body, nil)

			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", rec.Code)
			}
			if msg := decodeError(t, rec); msg != msgIncompleteForm {
				t.Fatalf("unexpected message %q", msg)
			}
			if svc.created != nil {
				t.Fatal("repository must not be called for invalid forms")
			}
		})
	}
}

func TestCreateReviewRejectsUnknownFields(t *testing.T) {
	rec := do(t, New(&stubReviewService{}).Routes(), http.MethodPost, "/api/v1/reviews", map[string]any{
		"kind": "band", "name": "Idles", "content": "x", "rating": 3, "userUid": "spoofed",
	}, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestRecentReviewsLimit(t *testing.T) {
	svc := &stubReviewService{recent: []models.Review{{ID: "a", BandName: strptr("Idles"), Rating: 4}}}
	h := New(svc).Routes()

	rec := do(t, h, http.MethodGet, "/api/v1/reviews/recent", nil, nil)
	if rec.Code != http.StatusOK || svc.lastMax != defaultRecentLimit {
		t.Fatalf("expected default limit, got status %d max %d", rec.Code, svc.lastMax)
	}

	var resp struct {
		Reviews []struct {
			ID    string `json:"id"`
			Stars string `json:"stars"`
		} `json:"reviews"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Reviews) != 1 || resp.Reviews[0].Stars != "★★★★☆" {
		t.Fatalf("unexpected reviews %+v", resp.Reviews)
	}

	do(t, h, http.MethodGet, "/api/v1/reviews/recent?limit=5000", nil, nil)
	if svc.lastMax != maxRecentLimit {
		t.Fatalf("expected clamp to %d, got %d", maxRecentLimit, svc.lastMax)
	}

	rec = do(t, h, http.MethodGet, "/api/v1/reviews/recent?limit=abc", nil, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestErrorMapping(t *testing.T) {
	transport := &reviews.TransportError{Op: "delete review", Err: errors.New("unavailable")}

	tests := []struct {
		name    string
		method  string
		target  string
		body    any
		svc     *stubReviewService
		status  int
		message string
	}{
		{
			name: "delete not owner", method: http.MethodDelete, target: "/api/v1/reviews/r1",
			svc: &stubReviewService{deleteErr: reviews.ErrOwnership}, status: http.StatusForbidden, message: msgNotOwnerDelete,
		},
		{
			name: "delete signed out", method: http.MethodDelete, target: "/api/v1/reviews/r1",
			svc: &stubReviewService{deleteErr: reviews.ErrAuthorization}, status: http.StatusUnauthorized, message: msgLoginDelete,
		},
		{
			name: "edit not owner", method: http.MethodPut, target: "/api/v1/reviews/r1",
			body: map[string]any{"content": "x", "rating": 2},
			svc:  &stubReviewService{updateErr: reviews.ErrOwnership}, status: http.StatusForbidden, message: msgNotOwnerEdit,
		},
		{
			name: "missing review", method: http.MethodGet, target: "/api/v1/reviews/nope",
			svc: &stubReviewService{singleErr: reviews.ErrReviewNotFound}, status: http.StatusNotFound, message: msgNotFound,
		},
		{
			name: "backend down", method: http.MethodDelete, target: "/api/v1/reviews/r1",
			svc: &stubReviewService{deleteErr: transport}, status: http.StatusServiceUnavailable, message: msgUnavailable,
		},
		{
			name: "unexpected", method: http.MethodGet, target: "/api/v1/reviews/recent",
			svc: &stubReviewService{recentErr: errors.New("boom")}, status: http.StatusInternalServerError, message: msgInternal,
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			rec := do(t, New(tc.svc).Routes(), tc.method, tc.target, tc.body, kim)
			if rec.Code != tc.status {
				t.Fatalf("expected %d, got %d", tc.status, rec.Code)
			}
			if msg := decodeError(t, rec); msg != tc.message {
				t.Fatalf("expected message %q, got %q", tc.message, msg)
			}
		})
	}
}

func TestDeleteReview(t *testing.T) {
	svc := &stubReviewService{}
	rec := do(t, New(svc).Routes(), http.MethodDelete, "/api/v1/reviews/r9", nil, kim)
	if rec.Code != http.StatusNoContent || svc.deletedID != "r9" {
		t.Fatalf("unexpected delete result %d %q", rec.Code, svc.deletedID)
	}
}

func TestReviewsByName(t *testing.T) {
	svc := &stubReviewService{byName: []models.Review{{ID: "a", VenueName: strptr("Roxy")}}}
	rec := do(t, New(svc).Routes(), http.MethodGet, "/api/v1/venues/The%20Roxy/reviews", nil, nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if svc.lastKind != models.KindVenue || svc.lastName != "The Roxy" {
		t.Fatalf("unexpected lookup %q %q", svc.lastKind, svc.lastName)
	}
}

func TestMeRequiresIdentity(t *testing.T) {
	h := New(&stubReviewService{}).Routes()

	rec := do(t, h, http.MethodGet, "/api/v1/me", nil, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}

	rec = do(t, h, http.MethodGet, "/api/v1/me", nil, kim)
	var resp struct {
		UID      string `json:"uid"`
		Username string `json:"username"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.UID != "u1" || resp.Username != "kim" {
		t.Fatalf("unexpected me response %+v", resp)
	}
}

func TestMyReviewsUsesCallerUID(t *testing.T) {
	svc := &stubReviewService{mine: []models.Review{{ID: "a", BandName: strptr("Idles"), UserUID: strptr("u1")}}}
	rec := do(t, New(svc).Routes(), http.MethodGet, "/api/v1/me/reviews", nil, kim)

	if rec.Code != http.StatusOK || svc.lastUID != "u1" {
		t.Fatalf("unexpected result %d uid %q", rec.Code, svc.lastUID)
	}
	if !strings.Contains(rec.Body.String(), `"canEdit":true`) {
		t.Fatalf("owner card should be editable: %s", rec.Body.String())
	}
}

type browsePage struct {
	Kind      string `json:"kind"`
	Sort      string `json:"sort"`
	Page      int    `json:"page"`
	PageCount int    `json:"pageCount"`
	Total     int    `json:"total"`
	Search    struct {
		Performed    bool   `json:"performed"`
		Count        int    `json:"count"`
		AverageLabel string `json:"averageLabel"`
		Stars        string `json:"stars"`
		Message      string `json:"message"`
	} `json:"search"`
	Reviews []struct {
		ID      string `json:"id"`
		Heading string `json:"heading"`
		CanEdit bool   `json:"canEdit"`
	} `json:"reviews"`
}

func TestBrowseBandsEndToEnd(t *testing.T) {
	base := time.Date(2024, 6, 1, 18, 0, 0, 0, time.UTC)
	tick := 0
	docs := store.NewMemory(store.WithClock(func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Minute)
	}))
	repo := reviews.New(docs, identity.RequestProvider{})
	h := New(repo, WithBrowseLimits(300, 2)).Routes()

	ctx := identity.WithIdentity(context.Background(), kim)
	for i, rating := range []int{5, 5, 5, 5, 1} {
		if _, err := repo.Create(ctx, models.KindBand, fmt.Sprintf("Slayer %d", i), "thrash", rating, "kim"); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
	if _, err := repo.Create(context.Background(), models.KindVenue, "Slayer Hall", "big", 2, ""); err != nil {
		t.Fatalf("seed venue: %v", err)
	}

	rec := do(t, h, http.MethodGet, "/api/v1/bands?sort=az&q=slayer&page=3", nil, kim)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var page browsePage
	if err := json.NewDecoder(rec.Body).Decode(&page); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if page.Kind != "band" || page.Sort != "az" || page.Page != 3 || page.PageCount != 3 || page.Total != 5 {
		t.Fatalf("unexpected page meta %+v", page)
	}
	if page.Search.AverageLabel != "4.2" || page.Search.Stars != "★★★★☆" {
		t.Fatalf("unexpected search summary %+v", page.Search)
	}
	if len(page.Reviews) != 1 || page.Reviews[0].Heading != "Slayer 4" || !page.Reviews[0].CanEdit {
		t.Fatalf("unexpected reviews %+v", page.Reviews)
	}

	rec = do(t, h, http.MethodGet, "/api/v1/venues?q=nothing", nil, nil)
	page = browsePage{}
	if err := json.NewDecoder(rec.Body).Decode(&page); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if page.Search.Message != "No results found." || len(page.Reviews) != 0 {
		t.Fatalf("unexpected empty search %+v", page)
	}

	rec = do(t, h, http.MethodGet, "/api/v1/bands?sort=loudest", nil, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown sort, got %d", rec.Code)
	}

	rec = do(t, h, http.MethodGet, "/api/v1/bands?page=9", nil, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for page out of range, got %d", rec.Code)
	}
}
