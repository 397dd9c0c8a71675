// Package browse holds the per-kind list state behind the band and venue
// pages: the recent-review working set, its sort order, free-text search,
// the average rating of a search and page windows over the result.
package browse

import (
	"context"
	"errors"
	"math"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"riffrate/internal/metrics"
	"riffrate/internal/models"
)

const (
	// DefaultWindow is how many recent reviews a load pulls before filtering by kind.
	DefaultWindow = 300
	// DefaultPageSize is the number of reviews per page.
	DefaultPageSize = 12
)

// NoResultsMessage is shown when a search matches nothing.
const NoResultsMessage = "No results found."

var (
	// ErrUnknownSort rejects sort options outside the supported set.
	ErrUnknownSort = errors.New("unknown sort option")
	// ErrPageOutOfRange rejects page numbers past the last page.
	ErrPageOutOfRange = errors.New("page out of range")
)

// SortOption selects the order of the working set.
type SortOption string

const (
	SortNewest SortOption = "newest"
	SortOldest SortOption = "oldest"
	SortHigh   SortOption = "high"
	SortLow    SortOption = "low"
	SortAZ     SortOption = "az"
	SortZA     SortOption = "za"
)

// ParseSortOption reads a sort option, defaulting to newest when s is blank.
func ParseSortOption(s string) (SortOption, error) {
	opt := SortOption(strings.ToLower(strings.TrimSpace(s)))
	if opt == "" {
		return SortNewest, nil
	}
	if !opt.Valid() {
		return "", ErrUnknownSort
	}
	return opt, nil
}

// Valid reports whether o is one of the supported options.
func (o SortOption) Valid() bool {
	switch o {
	case SortNewest, SortOldest, SortHigh, SortLow, SortAZ, SortZA:
		return true
	default:
		return false
	}
}

// Source is the review backend a Controller reads from and mutates through.
type Source interface {
	FetchRecent(ctx context.Context, max int) ([]models.Review, error)
	Delete(ctx context.Context, id string) error
	Update(ctx context.Context, id string, upd models.ReviewUpdate) (models.Review, error)
}

// Controller owns the in-memory working set for one entity kind. It is safe
// for concurrent use; backend calls run without holding the lock.
type Controller struct {
	source   Source
	kind     models.EntityKind
	window   int
	pageSize int
	lang     language.Tag
	logger   zerolog.Logger

	mu         sync.Mutex
	collator   *collate.Collator
	all        []models.Review
	visible    []models.Review
	page       int
	sortOpt    SortOption
	term       string
	searched   bool
	average    *float64
	truncated  bool
	generation uint64
}

// Option customises a Controller.
type Option func(*Controller)

// WithWindow sets how many recent reviews Load fetches.
func WithWindow(n int) Option {
	return func(c *Controller) {
		if n > 0 {
			c.window = n
		}
	}
}

// WithPageSize sets the number of reviews per page.
func WithPageSize(n int) Option {
	return func(c *Controller) {
		if n > 0 {
			c.pageSize = n
		}
	}
}

// WithSort sets the initial sort option without triggering a load.
func WithSort(opt SortOption) Option {
	return func(c *Controller) { c.sortOpt = opt }
}

// WithLanguage sets the collation language for name ordering.
func WithLanguage(tag language.Tag) Option {
	return func(c *Controller) { c.lang = tag }
}

// WithLogger sets the controller logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Controller) { c.logger = logger }
}

// New creates an empty controller for kind. Call Load to populate it.
func New(source Source, kind models.EntityKind, opts ...Option) *Controller {
	c := &Controller{
		source:   source,
		kind:     kind,
		window:   DefaultWindow,
		pageSize: DefaultPageSize,
		lang:     language.English,
		logger:   zerolog.Nop(),
		page:     1,
		sortOpt:  SortNewest,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.collator = collate.New(c.lang, collate.IgnoreCase)
	return c
}

// Kind returns the entity kind this controller lists.
func (c *Controller) Kind() models.EntityKind {
	return c.kind
}

// Load fetches the recent window, keeps reviews of the controller's kind and
// replaces both the full and visible sets with the sorted result. Any search
// is reset. A load overtaken by a later one is dropped.
func (c *Controller) Load(ctx context.Context) error {
	return c.load(ctx, c.Sort())
}

// load fetches and sorts under opt, which becomes the active option only once
// the fetch succeeds.
func (c *Controller) load(ctx context.Context, opt SortOption) error {
	c.mu.Lock()
	c.generation++
	gen := c.generation
	window := c.window
	c.mu.Unlock()

	fetched, err := c.source.FetchRecent(ctx, window)
	if err != nil {
		c.logger.Error().Err(err).Str("kind", string(c.kind)).Msg("load reviews failed")
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.generation {
		c.logger.Debug().Str("kind", string(c.kind)).Uint64("generation", gen).Msg("discarding stale load")
		return nil
	}

	c.sortOpt = opt
	kept := make([]models.Review, 0, len(fetched))
	for _, r := range fetched {
		if _, ok := r.NameOf(c.kind); ok {
			kept = append(kept, r)
		}
	}
	c.sortLocked(kept)

	c.all = kept
	c.visible = append([]models.Review(nil), kept...)
	c.page = 1
	c.term = ""
	c.searched = false
	c.average = nil
	c.truncated = len(fetched) >= window

	if c.truncated {
		metrics.RecordTruncatedLoad(string(c.kind))
		c.logger.Warn().
			Str("kind", string(c.kind)).
			Int("window", window).
			Msg("recent review window is full; older reviews are not listed")
	}
	return nil
}

// SetSort reloads under opt when it differs from the active option. If the
// reload fails the previous option and lists stay in place.
func (c *Controller) SetSort(ctx context.Context, opt SortOption) error {
	if !opt.Valid() {
		return ErrUnknownSort
	}
	if c.Sort() == opt {
		return nil
	}
	return c.load(ctx, opt)
}

// Sort returns the active sort option.
func (c *Controller) Sort() SortOption {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sortOpt
}

// Search narrows the visible set to reviews whose name contains term,
// ignoring case, and computes their average rating. A blank term shows the
// full set again.
func (c *Controller) Search(term string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.searched = true
	c.term = strings.ToLower(strings.TrimSpace(term))
	c.page = 1
	c.applySearchLocked()
}

// Clear drops the search and shows the full set.
func (c *Controller) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.searched = false
	c.term = ""
	c.page = 1
	c.applySearchLocked()
}

// Delete removes a review through the source and, once that succeeds, from
// the local sets. On error the local state is left as it was.
func (c *Controller) Delete(ctx context.Context, id string) error {
	if err := c.source.Delete(ctx, id); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.all = without(c.all, id)
	c.sortLocked(c.all)
	c.applySearchLocked()
	c.clampPageLocked()
	return nil
}

// Update edits a review through the source and swaps the stored result into
// the local sets.
func (c *Controller) Update(ctx context.Context, id string, upd models.ReviewUpdate) (models.Review, error) {
	updated, err := c.source.Update(ctx, id, upd)
	if err != nil {
		return models.Review{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for i := range c.all {
		if c.all[i].ID == id {
			c.all[i] = updated
		}
	}
	c.sortLocked(c.all)
	c.applySearchLocked()
	c.clampPageLocked()
	return updated, nil
}

// All returns a copy of the full sorted working set.
func (c *Controller) All() []models.Review {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]models.Review(nil), c.all...)
}

// Visible returns a copy of the current filtered and sorted set.
func (c *Controller) Visible() []models.Review {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]models.Review(nil), c.visible...)
}

// Truncated reports whether the last load filled its window.
func (c *Controller) Truncated() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.truncated
}

// Page returns the n-th page (1-based) of the visible set. Pages past the end
// are empty.
func (c *Controller) Page(n int) []models.Review {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pageLocked(n)
}

// PageCount is the number of pages the visible set spans.
func (c *Controller) PageCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pageCountLocked()
}

// CurrentPage returns the selected page number.
func (c *Controller) CurrentPage() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.page
}

// SetPage selects page n.
func (c *Controller) SetPage(n int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if n < 1 || n > max(1, c.pageCountLocked()) {
		return ErrPageOutOfRange
	}
	c.page = n
	return nil
}

// Summary describes the outcome of the last search.
type Summary struct {
	Performed    bool     `json:"performed"`
	Term         string   `json:"term"`
	Count        int      `json:"count"`
	Average      *float64 `json:"average,omitempty"`
	AverageLabel string   `json:"averageLabel,omitempty"`
	Stars        string   `json:"stars,omitempty"`
	Message      string   `json:"message,omitempty"`
}

// Summary reports the search term, the match count and, when there were
// matches, the average rating rounded to one decimal with its star rendering.
func (c *Controller) Summary() Summary {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.summaryLocked()
}

// View is a point-in-time snapshot of the controller for rendering.
type View struct {
	Kind      models.EntityKind `json:"kind"`
	Sort      SortOption        `json:"sort"`
	Page      int               `json:"page"`
	PageCount int               `json:"pageCount"`
	PageSize  int               `json:"pageSize"`
	Total     int               `json:"total"`
	Truncated bool              `json:"truncated"`
	Reviews   []models.Review   `json:"reviews"`
	Search    Summary           `json:"search"`
}

// View snapshots the current page and search summary.
func (c *Controller) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()

	return View{
		Kind:      c.kind,
		Sort:      c.sortOpt,
		Page:      c.page,
		PageCount: c.pageCountLocked(),
		PageSize:  c.pageSize,
		Total:     len(c.visible),
		Truncated: c.truncated,
		Reviews:   c.pageLocked(c.page),
		Search:    c.summaryLocked(),
	}
}

func (c *Controller) applySearchLocked() {
	c.average = nil
	if c.term == "" {
		c.visible = append([]models.Review(nil), c.all...)
		return
	}

	filtered := make([]models.Review, 0, len(c.all))
	sum := 0
	for _, r := range c.all {
		name, _ := r.NameOf(c.kind)
		if strings.Contains(strings.ToLower(name), c.term) {
			filtered = append(filtered, r)
			sum += r.Rating
		}
	}
	c.sortLocked(filtered)
	c.visible = filtered

	if len(filtered) > 0 {
		avg := float64(sum) / float64(len(filtered))
		c.average = &avg
	}
}

func (c *Controller) summaryLocked() Summary {
	s := Summary{Performed: c.searched, Term: c.term, Count: len(c.visible)}
	if c.searched && len(c.visible) == 0 {
		s.Message = NoResultsMessage
	}
	if c.average != nil {
		rounded := math.Round(*c.average*10) / 10
		s.Average = &rounded
		s.AverageLabel = strconv.FormatFloat(rounded, 'f', 1, 64)
		s.Stars = models.Stars(int(math.Round(*c.average)))
	}
	return s
}

func (c *Controller) pageLocked(n int) []models.Review {
	start := (n - 1) * c.pageSize
	if n < 1 || start >= len(c.visible) {
		return []models.Review{}
	}
	end := min(start+c.pageSize, len(c.visible))
	return append([]models.Review(nil), c.visible[start:end]...)
}

func (c *Controller) pageCountLocked() int {
	return (len(c.visible) + c.pageSize - 1) / c.pageSize
}

func (c *Controller) clampPageLocked() {
	if last := max(1, c.pageCountLocked()); c.page > last {
		c.page = last
	}
}

// sortLocked orders list in place by the active option. Equal keys keep
// their fetch order.
func (c *Controller) sortLocked(list []models.Review) {
	var less func(a, b models.Review) bool
	switch c.sortOpt {
	case SortOldest:
		less = func(a, b models.Review) bool { return a.Created.Before(b.Created) }
	case SortHigh:
		less = func(a, b models.Review) bool { return a.Rating > b.Rating }
	case SortLow:
		less = func(a, b models.Review) bool { return a.Rating < b.Rating }
	case SortAZ:
		less = func(a, b models.Review) bool { return c.compareNames(a, b) < 0 }
	case SortZA:
		less = func(a, b models.Review) bool { return c.compareNames(a, b) > 0 }
	default:
		less = func(a, b models.Review) bool { return a.Created.After(b.Created) }
	}
	sort.SliceStable(list, func(i, j int) bool { return less(list[i], list[j]) })
}

func (c *Controller) compareNames(a, b models.Review) int {
	an, _ := a.NameOf(c.kind)
	bn, _ := b.NameOf(c.kind)
	return c.collator.CompareString(an, bn)
}

func without(list []models.Review, id string) []models.Review {
	out := list[:0:0]
	for _, r := range list {
		if r.ID != id {
			out = append(out, r)
		}
	}
	return out
}
