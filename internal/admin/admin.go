// Package admin exposes the administrative surface of the cache over HTTP:
// bulk invalidation by tag, key or domain, tag autocomplete, entry search,
// the stale-domain report and a manual sweep trigger. Every handler is a
// thin wrapper over a single store operation.
package admin

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/restcache/rest-cache/pkg/store"
	"github.com/restcache/rest-cache/pkg/sweeper"
)

// Server holds the admin handlers' dependencies.
type Server struct {
	store    *store.Store
	sweeper  *sweeper.Sweeper
	baseCtx  context.Context
	sweeping atomic.Bool
	logger   zerolog.Logger
}

// New creates the admin server. Triggered sweeps run under ctx, so they stop
// with the host's lifecycle. The sweeper may be nil, in which case the manual
// sweep trigger responds 404.
func New(ctx context.Context, st *store.Store, sw *sweeper.Sweeper) *Server {
	if ctx == nil {
		ctx = context.Background()
	}
	return &Server{
		store:   st,
		sweeper: sw,
		baseCtx: ctx,
		logger:  log.With().Str("component", "admin").Logger(),
	}
}

// Router builds the admin route tree.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()

	r.Get("/tags", s.handleTags)
	r.Delete("/tags/{tag}", s.handleDeleteTag)
	r.Delete("/entries/{key}", s.handleDeleteEntry)
	r.Delete("/domains", s.handleDeleteDomain)
	r.Get("/entries", s.handleSearch)
	r.Get("/stale-domains", s.handleStaleDomains)
	if s.sweeper != nil {
		r.Post("/sweep", s.handleSweep)
	}

	return r
}

// deleteResult is the response body of the bulk delete endpoints. More set
// to true hints that the bounded delete hit its limit and should be
// re-invoked to continue.
type deleteResult struct {
	Deleted int64 `json:"deleted"`
	More    bool  `json:"more,omitempty"`
}

// handleTags serves tag autocomplete: distinct tag values matching ?q=.
func (s *Server) handleTags(w http.ResponseWriter, r *http.Request) {
	tags, err := s.store.DistinctValues(r.Context(), "tag", r.URL.Query().Get("q"), store.DefaultBulkLimit)
	if err != nil {
		s.fail(w, err, "tag lookup failed")
		return
	}
	if tags == nil {
		tags = []string{}
	}
	s.respond(w, tags)
}

// handleDeleteTag deletes up to the bulk limit of entries whose tag contains
// the given value.
func (s *Server) handleDeleteTag(w http.ResponseWriter, r *http.Request) {
	tag := chi.URLParam(r, "tag")
	deleted, err := s.store.DeleteLike(r.Context(), "tag", tag, store.DefaultBulkLimit)
	if err != nil {
		s.fail(w, err, "tag delete failed")
		return
	}
	s.logger.Info().Str("tag", tag).Int64("deleted", deleted).Msg("Deleted entries by tag")
	s.respond(w, deleteResult{Deleted: deleted, More: deleted == store.DefaultBulkLimit})
}

// handleDeleteEntry deletes one entry by its exact key.
func (s *Server) handleDeleteEntry(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	deleted, err := s.store.DeleteExact(r.Context(), "key", key)
	if err != nil {
		s.fail(w, err, "entry delete failed")
		return
	}
	s.respond(w, deleteResult{Deleted: deleted})
}

// handleDeleteDomain deletes all entries for an exact domain match.
func (s *Server) handleDeleteDomain(w http.ResponseWriter, r *http.Request) {
	domain := r.URL.Query().Get("domain")
	if domain == "" {
		http.Error(w, "domain parameter is required", http.StatusBadRequest)
		return
	}
	deleted, err := s.store.DeleteExact(r.Context(), "domain", domain)
	if err != nil {
		s.fail(w, err, "domain delete failed")
		return
	}
	s.logger.Info().Str("domain", domain).Int64("deleted", deleted).Msg("Deleted entries by domain")
	s.respond(w, deleteResult{Deleted: deleted})
}

// entrySummary is one search result row. Payloads are omitted; entries are
// addressed by key for deletion.
type entrySummary struct {
	Key           string `json:"key"`
	Domain        string `json:"domain"`
	Path          string `json:"path"`
	Tag           string `json:"tag,omitempty"`
	StatusCode    int    `json:"status_code"`
	ExpiresAt     string `json:"expires_at,omitempty"`
	PendingUpdate bool   `json:"pending_update,omitempty"`
}

// handleSearch lists entries by exact domain and/or path.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	entries, err := s.store.FindByDomainAndPath(r.Context(), q.Get("domain"), q.Get("path"), limit)
	if err != nil {
		s.fail(w, err, "entry search failed")
		return
	}

	summaries := make([]entrySummary, 0, len(entries))
	for _, e := range entries {
		summary := entrySummary{
			Key:           e.Key,
			Domain:        e.Domain,
			Path:          e.Path,
			Tag:           e.Tag,
			StatusCode:    e.StatusCode,
			PendingUpdate: e.PendingUpdate,
		}
		if !e.ExpiresAt.IsZero() {
			summary.ExpiresAt = e.ExpiresAt.Format(time.RFC3339)
		}
		summaries = append(summaries, summary)
	}
	s.respond(w, summaries)
}

// handleStaleDomains reports domains not requested for ?days= days, by
// entry count descending.
func (s *Server) handleStaleDomains(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	days, _ := strconv.Atoi(q.Get("days"))
	if days <= 0 {
		days = 30
	}
	limit, _ := strconv.Atoi(q.Get("limit"))

	olderThan := time.Now().UTC().AddDate(0, 0, -days)
	domains, err := s.store.StaleDomains(r.Context(), olderThan, limit)
	if err != nil {
		s.fail(w, err, "stale domain report failed")
		return
	}
	if domains == nil {
		domains = []store.DomainCount{}
	}
	s.respond(w, domains)
}

// handleSweep triggers a refresh sweep outside the regular interval. At most
// one triggered sweep runs at a time; concurrent triggers respond 409.
func (s *Server) handleSweep(w http.ResponseWriter, r *http.Request) {
	if !s.sweeping.CompareAndSwap(false, true) {
		http.Error(w, "sweep already running", http.StatusConflict)
		return
	}
	go func() {
		defer s.sweeping.Store(false)
		if err := s.sweeper.RunSweep(s.baseCtx); err != nil {
			s.logger.Error().Err(err).Msg("Manual sweep failed")
		}
	}()
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) respond(w http.ResponseWriter, body any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error().Err(err).Msg("Could not write response")
	}
}

func (s *Server) fail(w http.ResponseWriter, err error, msg string) {
	s.logger.Error().Err(err).Msg(msg)
	http.Error(w, msg, http.StatusInternalServerError)
}
