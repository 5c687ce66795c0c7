// Package api exposes the radar over HTTP.
//
// Routes:
//
//	GET    /health                 liveness
//	GET    /api/status             coordinator state and local identity
//	GET    /api/peers              peers in first-sighting order
//	GET    /api/peers/{id}         single peer
//	DELETE /api/peers/{id}         forget a peer until it is heard again
//	GET    /api/sightings          sightings journal, newest first
//	GET    /api/friends            friend list
//	PUT    /api/friends/{id}       mark a friend
//	DELETE /api/friends/{id}       unmark a friend
//	POST   /api/radio/restart      start discovery over after a failure
//	GET    /api/events             WebSocket live peer stream
//	GET    /metrics                Prometheus
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"proximity-radar.klederson.com/internal/friends"
	"proximity-radar.klederson.com/internal/proximity"
	"proximity-radar.klederson.com/internal/store"
)

// Engine is the part of the coordinator the API reads.
type Engine interface {
	Registry() *proximity.PeerRegistry
	Status() proximity.Status
	Subscribe() *proximity.PeerStream
}

// Journal lists recorded sightings.
type Journal interface {
	ListSightings(limit int) ([]store.Sighting, error)
	ListFriends() ([]store.Friend, error)
}

// Restarter starts discovery over once it has failed.
type Restarter interface {
	Restart() error
}

// Server holds handler dependencies.
type Server struct {
	engine    Engine
	identity  proximity.IdentitySource
	friends   *friends.Set
	journal   Journal   // nil when running without a state database
	restarter Restarter // nil disables the restart route
	log       *zap.Logger
}

// NewServer creates the API server.
func NewServer(engine Engine, identity proximity.IdentitySource, fs *friends.Set, journal Journal, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{engine: engine, identity: identity, friends: fs, journal: journal, log: log}
}

// WithRestarter enables POST /api/radio/restart.
func (s *Server) WithRestarter(r Restarter) *Server {
	s.restarter = r
	return s
}

// PeerView is a peer with its friend mark.
type PeerView struct {
	proximity.DecodedPeer
	Friend bool `json:"friend"`
}

// Handler returns the chi router with all routes mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(withLogging(s.log))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/status", s.handleStatus)
		r.Post("/radio/restart", s.handleRestart)
		r.Get("/peers", s.handleListPeers)
		r.Get("/peers/{id}", s.handleGetPeer)
		r.Delete("/peers/{id}", s.handleDeletePeer)
		r.Get("/sightings", s.handleSightings)
		r.Get("/friends", s.handleListFriends)
		r.Put("/friends/{id}", s.handleAddFriend)
		r.Delete("/friends/{id}", s.handleRemoveFriend)
		r.Get("/events", s.handleEvents)
	})

	r.Handle("/metrics", promhttp.Handler())
	return r
}

// ─── Status ─────────────────────────────────────────────────────────────────

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"radio":   s.engine.Status(),
		"peers":   s.engine.Registry().Count(),
		"friends": s.friendCount(),
		"time":    time.Now().UTC().Format(time.RFC3339),
	}
	if s.identity != nil {
		if id, err := s.identity.Identity(); err == nil {
			resp["identity"] = id
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRestart(w http.ResponseWriter, r *http.Request) {
	if s.restarter == nil {
		writeError(w, http.StatusNotImplemented, "restart not available")
		return
	}
	err := s.restarter.Restart()
	switch {
	case errors.Is(err, proximity.ErrNotStopped):
		writeError(w, http.StatusConflict, err.Error())
	case err != nil:
		s.log.Error("api: restart", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	default:
		writeJSON(w, http.StatusAccepted, map[string]any{"restarting": true})
	}
}

// ─── Peers ──────────────────────────────────────────────────────────────────

func (s *Server) handleListPeers(w http.ResponseWriter, r *http.Request) {
	onlyFriends := r.URL.Query().Get("friends") == "true"
	peers := s.engine.Registry().Snapshot()
	views := make([]PeerView, 0, len(peers))
	for _, p := range peers {
		v := s.view(p)
		if onlyFriends && !v.Friend {
			continue
		}
		views = append(views, v)
	}
	writeJSON(w, http.StatusOK, map[string]any{"peers": views, "count": len(views)})
}

func (s *Server) handleGetPeer(w http.ResponseWriter, r *http.Request) {
	p, ok := s.engine.Registry().Get(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, "peer not found")
		return
	}
	writeJSON(w, http.StatusOK, s.view(p))
}

func (s *Server) handleDeletePeer(w http.ResponseWriter, r *http.Request) {
	if !s.engine.Registry().Remove(chi.URLParam(r, "id")) {
		writeError(w, http.StatusNotFound, "peer not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) view(p proximity.DecodedPeer) PeerView {
	return PeerView{DecodedPeer: p, Friend: s.friends != nil && s.friends.Contains(p.ID)}
}

// ─── Journal ────────────────────────────────────────────────────────────────

func (s *Server) handleSightings(w http.ResponseWriter, r *http.Request) {
	if s.journal == nil {
		writeError(w, http.StatusServiceUnavailable, "sightings journal disabled")
		return
	}
	limit, err := queryInt(r, "limit", 100, 1, 1000)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	list, err := s.journal.ListSightings(limit)
	if err != nil {
		s.log.Error("api: list sightings", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sightings": list, "count": len(list)})
}

// ─── Friends ────────────────────────────────────────────────────────────────

func (s *Server) handleListFriends(w http.ResponseWriter, r *http.Request) {
	if s.journal != nil {
		list, err := s.journal.ListFriends()
		if err != nil {
			s.log.Error("api: list friends", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"friends": list, "count": len(list)})
		return
	}
	ids := []string{}
	if s.friends != nil {
		ids = s.friends.IDs()
	}
	list := make([]store.Friend, 0, len(ids))
	for _, id := range ids {
		list = append(list, store.Friend{ID: id})
	}
	writeJSON(w, http.StatusOK, map[string]any{"friends": list, "count": len(list)})
}

func (s *Server) handleAddFriend(w http.ResponseWriter, r *http.Request) {
	if s.friends == nil {
		writeError(w, http.StatusServiceUnavailable, "friends disabled")
		return
	}
	id := chi.URLParam(r, "id")
	nick := ""
	if p, ok := s.engine.Registry().Get(id); ok {
		nick = p.Nickname
	}
	if err := s.friends.Add(id, nick); err != nil {
		s.log.Error("api: add friend", zap.String("id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": id, "friend": true})
}

func (s *Server) handleRemoveFriend(w http.ResponseWriter, r *http.Request) {
	if s.friends == nil {
		writeError(w, http.StatusServiceUnavailable, "friends disabled")
		return
	}
	id := chi.URLParam(r, "id")
	was, err := s.friends.Remove(id)
	if err != nil {
		s.log.Error("api: remove friend", zap.String("id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if !was {
		writeError(w, http.StatusNotFound, "not a friend")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) friendCount() int {
	if s.friends == nil {
		return 0
	}
	return s.friends.Len()
}

// ─── Serving ────────────────────────────────────────────────────────────────

// ListenAndServe serves h on addr until ctx ends, then shuts down gracefully.
func ListenAndServe(ctx context.Context, addr string, h http.Handler, log *zap.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		log.Info("api listening", zap.String("addr", addr))
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return errors.Wrap(err, "api server")
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return errors.Wrap(srv.Shutdown(shutdownCtx), "api shutdown")
	}
}

// ─── Helpers ────────────────────────────────────────────────────────────────

func withLogging(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			log.Debug("api",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())),
			)
		})
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

func queryInt(r *http.Request, key string, def, min, max int) (int, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < min || n > max {
		return 0, errors.Errorf("%s must be between %d and %d", key, min, max)
	}
	return n, nil
}
