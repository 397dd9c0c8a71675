package httpapi

import (
	"net/http"
	"strconv"

	"riffrate/internal/browse"
	"riffrate/internal/identity"
	"riffrate/internal/models"
	"riffrate/internal/presenter"
)

type browseResponse struct {
	Kind      models.EntityKind `json:"kind"`
	Sort      browse.SortOption `json:"sort"`
	Page      int               `json:"page"`
	PageCount int               `json:"pageCount"`
	PageSize  int               `json:"pageSize"`
	Total     int               `json:"total"`
	Truncated bool              `json:"truncated"`
	Search    browse.Summary    `json:"search"`
	Reviews   []presenter.Card  `json:"reviews"`
}

type meResponse struct {
	identity.Identity
	Username string `json:"username"`
}

// handleBrowse serves one page of the band or venue listing. The query
// string carries sort, q (search term) and page.
func (s *Server) handleBrowse(kind models.EntityKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()

		sortOpt, err := browse.ParseSortOption(query.Get("sort"))
		if err != nil {
			s.writeError(w, r, err, mutationNone)
			return
		}

		page := 1
		if raw := query.Get("page"); raw != "" {
			page, err = strconv.Atoi(raw)
			if err != nil {
				writeJSON(w, http.StatusBadRequest, errorResponse{Error: "page must be an integer"})
				return
			}
		}

		ctrl := browse.New(s.reviews, kind,
			browse.WithSort(sortOpt),
			browse.WithWindow(s.window),
			browse.WithPageSize(s.pageSize),
			browse.WithLogger(s.logger),
		)
		if err := ctrl.Load(r.Context()); err != nil {
			s.writeError(w, r, err, mutationNone)
			return
		}
		if query.Has("q") {
			ctrl.Search(query.Get("q"))
		}
		if err := ctrl.SetPage(page); err != nil {
			s.writeError(w, r, err, mutationNone)
			return
		}

		view := ctrl.View()
		writeJSON(w, http.StatusOK, browseResponse{
			Kind:      view.Kind,
			Sort:      view.Sort,
			Page:      view.Page,
			PageCount: view.PageCount,
			PageSize:  view.PageSize,
			Total:     view.Total,
			Truncated: view.Truncated,
			Search:    view.Search,
			Reviews:   presenter.NewCards(view.Reviews, viewer(r), s.loc),
		})
	}
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	who := viewer(r)
	if who == nil {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: msgLoginRequired})
		return
	}

	writeJSON(w, http.StatusOK, meResponse{Identity: *who, Username: who.Username()})
}

func (s *Server) handleMyReviews(w http.ResponseWriter, r *http.Request) {
	who := viewer(r)
	if who == nil {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: msgLoginRequired})
		return
	}

	list, err := s.reviews.FetchForUser(r.Context(), who.UID)
	if err != nil {
		s.writeError(w, r, err, mutationNone)
		return
	}

	writeJSON(w, http.StatusOK, reviewsResponse{Reviews: presenter.NewCards(list, who, s.loc)})
}
