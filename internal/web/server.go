// Package web exposes the card engine as a JSON HTTP API.
package web

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/conorfennell/knolarchive/internal/cards"
	"github.com/conorfennell/knolarchive/internal/deckquery"
	"github.com/conorfennell/knolarchive/internal/domain"
	"github.com/conorfennell/knolarchive/internal/importer"
	"github.com/conorfennell/knolarchive/internal/storage"
)

// Request headers set by the authenticating proxy in front of the server.
const (
	HeaderUserID        = "X-User-ID"
	HeaderUserRole      = "X-User-Role"
	HeaderCorrelationID = "X-Correlation-ID"
)

// CardService is the engine surface served over HTTP.
type CardService interface {
	Create(ctx context.Context, actor domain.Actor, in cards.CreateInput) (domain.Card, error)
	Get(ctx context.Context, actor domain.Actor, id string, includeDeleted bool) (domain.Card, error)
	UpdateContent(ctx context.Context, actor domain.Actor, id string, version int64, in cards.UpdateContentInput) (domain.Card, error)
	UpdateTags(ctx context.Context, actor domain.Actor, id string, version int64, tags []string) (domain.Card, error)
	UpdateKnowledgeLinks(ctx context.Context, actor domain.Actor, id string, version int64, nodeIDs []string) (domain.Card, error)
	ChangeState(ctx context.Context, actor domain.Actor, id string, version int64, to domain.State) (domain.Card, error)
	SoftDelete(ctx context.Context, actor domain.Actor, id string, version int64) (domain.Card, error)
	Restore(ctx context.Context, actor domain.Actor, id string, version int64) (domain.Card, error)
	HardDelete(ctx context.Context, actor domain.Actor, id string, version int64) error
	BatchCreate(ctx context.Context, actor domain.Actor, items []cards.CreateInput) (cards.BatchCreateResult, error)
	BatchChangeState(ctx context.Context, actor domain.Actor, items []cards.StateChange, to domain.State) (cards.BatchStateResult, error)
	Query(ctx context.Context, actor domain.Actor, q deckquery.Query) (deckquery.Page, error)
	Count(ctx context.Context, actor domain.Actor, q deckquery.Query) (int, error)
}

// SourceStore lists and removes import sources.
type SourceStore interface {
	GetAllSources(ctx context.Context) ([]storage.Source, error)
	DeleteSource(ctx context.Context, sourceID int64) error
	Ping(ctx context.Context) error
}

// Importer registers sources and runs reconciliations.
type Importer interface {
	AddSource(ctx context.Context, path, ownerID string) (storage.Source, error)
	Run(ctx context.Context) ([]importer.Report, error)
}

// Deps are the collaborators of a Server. Sources, Importer and Gatherer
// are optional; their routes are not registered when nil.
type Deps struct {
	Cards    CardService
	Sources  SourceStore
	Importer Importer
	Gatherer prometheus.Gatherer
	Logger   *slog.Logger
}

// Server holds the dependencies for the HTTP server.
type Server struct {
	cards    CardService
	sources  SourceStore
	importer Importer
	gatherer prometheus.Gatherer
	logger   *slog.Logger
	router   *http.ServeMux
}

// NewServer creates and configures a new server.
func NewServer(deps Deps) *Server {
	s := &Server{
		cards:    deps.Cards,
		sources:  deps.Sources,
		importer: deps.Importer,
		gatherer: deps.Gatherer,
		logger:   deps.Logger,
		router:   http.NewServeMux(),
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	s.routes()
	return s
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	correlationID := r.Header.Get(HeaderCorrelationID)
	if correlationID == "" {
		correlationID = uuid.NewString()
	}
	w.Header().Set(HeaderCorrelationID, correlationID)
	r = r.WithContext(cards.WithCorrelationID(r.Context(), correlationID))

	rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
	s.router.ServeHTTP(rec, r)

	s.logger.Debug("request",
		"method", r.Method,
		"path", r.URL.Path,
		"status", rec.status,
		"duration", time.Since(start),
		"correlation_id", correlationID,
	)
}

// routes sets up the routing for the server.
func (s *Server) routes() {
	s.router.HandleFunc("GET /healthz", s.handleHealth())

	s.router.HandleFunc("GET /card-types", s.handleListCardTypes())
	s.router.HandleFunc("GET /card-types/{type}", s.handleGetCardType())
	s.router.HandleFunc("POST /card-types/{type}/validate", s.handleValidateContent())

	s.router.HandleFunc("POST /cards", s.handleCreateCard())
	s.router.HandleFunc("POST /cards/batch", s.handleBatchCreate())
	s.router.HandleFunc("POST /cards/batch/state", s.handleBatchState())
	s.router.HandleFunc("POST /cards/query", s.handleQuery())
	s.router.HandleFunc("POST /cards/count", s.handleCount())
	s.router.HandleFunc("GET /cards/{id}", s.handleGetCard())
	s.router.HandleFunc("PUT /cards/{id}/content", s.handleUpdateContent())
	s.router.HandleFunc("PUT /cards/{id}/tags", s.handleUpdateTags())
	s.router.HandleFunc("PUT /cards/{id}/links", s.handleUpdateLinks())
	s.router.HandleFunc("POST /cards/{id}/state", s.handleChangeState())
	s.router.HandleFunc("DELETE /cards/{id}", s.handleSoftDelete())
	s.router.HandleFunc("POST /cards/{id}/restore", s.handleRestore())
	s.router.HandleFunc("DELETE /cards/{id}/purge", s.handleHardDelete())

	// Source management routes
	if s.sources != nil {
		s.router.HandleFunc("GET /sources", s.handleGetSources())
		s.router.HandleFunc("DELETE /sources/{id}", s.handleDeleteSource())
	}
	if s.importer != nil {
		s.router.HandleFunc("POST /sources", s.handlePostSource())
		s.router.HandleFunc("POST /sync", s.handlePostSync())
	}

	if s.gatherer != nil {
		s.router.Handle("GET /metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
}

// actor reads the caller identity set by the upstream proxy. A missing user
// yields an empty actor, which the engine rejects.
func actor(r *http.Request) domain.Actor {
	role := domain.RoleUser
	if domain.Role(r.Header.Get(HeaderUserRole)) == domain.RoleAdmin {
		role = domain.RoleAdmin
	}
	return domain.Actor{UserID: r.Header.Get(HeaderUserID), Role: role}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// handleHealth pings the database when one is configured.
func (s *Server) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.sources != nil {
			if err := s.sources.Ping(r.Context()); err != nil {
				s.logger.Warn("health check failed", "error", err)
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
