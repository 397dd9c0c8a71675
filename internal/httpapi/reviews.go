package httpapi

import (
	"net/http"
	"strconv"
	"strings"

	"riffrate/internal/models"
	"riffrate/internal/presenter"
)

type createReviewRequest struct {
	Kind    string `json:"kind" validate:"required,oneof=band venue"`
	Name    string `json:"name" validate:"required"`
	Content string `json:"content" validate:"required"`
	Rating  int    `json:"rating" validate:"required,min=1,max=5"`
	Poster  string `json:"poster"`
}

type updateReviewRequest struct {
	Content string `json:"content" validate:"required"`
	Rating  int    `json:"rating" validate:"required,min=1,max=5"`
}

type createReviewResponse struct {
	ID string `json:"id"`
}

type reviewsResponse struct {
	Reviews []presenter.Card `json:"reviews"`
}

func (s *Server) handleCreateReview(w http.ResponseWriter, r *http.Request) {
	var req createReviewRequest
	if err := readJSON(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON payload"})
		return
	}

	req.Kind = strings.ToLower(strings.TrimSpace(req.Kind))
	req.Name = strings.TrimSpace(req.Name)
	req.Content = strings.TrimSpace(req.Content)
	if err := s.validate.Struct(req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: msgIncompleteForm})
		return
	}

	poster := strings.TrimSpace(req.Poster)
	if who := viewer(r); poster == "" && who != nil {
		poster = who.Username()
	}

	id, err := s.reviews.Create(r.Context(), models.EntityKind(req.Kind), req.Name, req.Content, req.Rating, poster)
	if err != nil {
		s.writeError(w, r, err, mutationNone)
		return
	}

	w.Header().Set("Location", "/api/v1/reviews/"+id)
	writeJSON(w, http.StatusCreated, createReviewResponse{ID: id})
}

func (s *Server) handleRecentReviews(w http.ResponseWriter, r *http.Request) {
	limit := defaultRecentLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "limit must be a positive integer"})
			return
		}
		limit = min(n, maxRecentLimit)
	}

	list, err := s.reviews.FetchRecent(r.Context(), limit)
	if err != nil {
		s.writeError(w, r, err, mutationNone)
		return
	}

	writeJSON(w, http.StatusOK, reviewsResponse{Reviews: presenter.NewCards(list, viewer(r), s.loc)})
}

func (s *Server) handleGetReview(w http.ResponseWriter, r *http.Request) {
	rev, err := s.reviews.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err, mutationNone)
		return
	}

	writeJSON(w, http.StatusOK, presenter.NewCard(rev, viewer(r), s.loc))
}

func (s *Server) handleUpdateReview(w http.ResponseWriter, r *http.Request) {
	var req updateReviewRequest
	if err := readJSON(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON payload"})
		return
	}

	req.Content = strings.TrimSpace(req.Content)
	if err := s.validate.Struct(req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: msgIncompleteForm})
		return
	}

	rev, err := s.reviews.Update(r.Context(), r.PathValue("id"), models.ReviewUpdate{
		Content: req.Content,
		Rating:  req.Rating,
	})
	if err != nil {
		s.writeError(w, r, err, mutationEdit)
		return
	}

	writeJSON(w, http.StatusOK, presenter.NewCard(rev, viewer(r), s.loc))
}

func (s *Server) handleDeleteReview(w http.ResponseWriter, r *http.Request) {
	if err := s.reviews.Delete(r.Context(), r.PathValue("id")); err != nil {
		s.writeError(w, r, err, mutationDelete)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleReviewsByName(kind models.EntityKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := strings.TrimSpace(r.PathValue("name"))
		if name == "" {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "name is required"})
			return
		}

		list, err := s.reviews.FetchFor(r.Context(), kind, name)
		if err != nil {
			s.writeError(w, r, err, mutationNone)
			return
		}

		writeJSON(w, http.StatusOK, reviewsResponse{Reviews: presenter.NewCards(list, viewer(r), s.loc)})
	}
}
