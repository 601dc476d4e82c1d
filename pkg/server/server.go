// Package server exposes the repository and the interaction engine over a
// small HTTP API: slice images, hover probes, windowing, scroll and
// mapping management, plus Prometheus metrics.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"

	"niftiview/internal/models"
	"niftiview/pkg/interaction"
	"niftiview/pkg/logger"
	"niftiview/pkg/metrics"
	"niftiview/pkg/repository"
)

type handlerFunc func(w http.ResponseWriter, r *http.Request) error

// Server routes requests to the repository and engine of one session
type Server struct {
	repo    *repository.Repository
	engine  *interaction.Engine
	log     logger.ILogger
	metrics *metrics.Metrics
	router  *mux.Router

	// measurements per "id/orientation"
	measureMu    sync.Mutex
	measurements map[string]*interaction.Measurement
	unsubscribe  func()
}

// New creates a server and registers its routes. metrics may be nil, in
// which case /metrics is not served.
func New(repo *repository.Repository, engine *interaction.Engine, log logger.ILogger, m *metrics.Metrics) *Server {
	if log == nil {
		log = logger.NullLogger{}
	}
	s := &Server{
		repo:         repo,
		engine:       engine,
		log:          log,
		metrics:      m,
		router:       mux.NewRouter(),
		measurements: map[string]*interaction.Measurement{},
	}
	s.unsubscribe = repo.Subscribe(s.onRepositoryEvent)
	s.routes()
	return s
}

func (s *Server) routes() {
	api := s.router.PathPrefix("/api").Subrouter()

	s.handle(api, "/volumes", http.MethodGet, s.listVolumes)
	s.handle(api, "/volumes/{id}", http.MethodGet, s.getVolume)
	s.handle(api, "/volumes/{id}", http.MethodDelete, s.deleteVolume)
	s.handle(api, "/volumes/{id}/download", http.MethodGet, s.downloadVolume)
	s.handle(api, "/volumes/{id}/indices", http.MethodGet, s.getIndices)
	s.handle(api, "/volumes/{id}/slices/{orientation}/{index:-?[0-9]+}", http.MethodGet, s.getSliceImage)
	s.handle(api, "/volumes/{id}/slices/{orientation}/{index:-?[0-9]+}/stats", http.MethodGet, s.getSliceStats)
	s.handle(api, "/volumes/{id}/probe", http.MethodGet, s.probe)
	s.handle(api, "/volumes/{id}/measurements/{orientation}", http.MethodGet, s.getMeasurement)
	s.handle(api, "/volumes/{id}/measurements/{orientation}", http.MethodPost, s.addMeasurementPoint)
	s.handle(api, "/volumes/{id}/measurements/{orientation}", http.MethodDelete, s.clearMeasurement)
	s.handle(api, "/volumes/{id}/windowing", http.MethodGet, s.getWindowing)
	s.handle(api, "/volumes/{id}/windowing", http.MethodPut, s.putWindowing)
	s.handle(api, "/volumes/{id}/windowing/presets/{name}", http.MethodPost, s.applyPreset)
	s.handle(api, "/volumes/{id}/selection", http.MethodPut, s.putVolumeSelection)

	s.handle(api, "/windowing/presets", http.MethodGet, s.listPresets)
	s.handle(api, "/selection", http.MethodGet, s.getSelection)
	s.handle(api, "/views/{orientation}", http.MethodPut, s.putView)
	s.handle(api, "/modes/{mode}", http.MethodPut, s.putMode)

	s.handle(api, "/scroll", http.MethodGet, s.getScroll)
	s.handle(api, "/scroll", http.MethodPut, s.putScroll)
	s.handle(api, "/scroll/increment", http.MethodPost, s.incrementScroll)
	s.handle(api, "/scroll/decrement", http.MethodPost, s.decrementScroll)

	s.handle(api, "/mappings", http.MethodGet, s.listMappings)
	s.handle(api, "/mappings", http.MethodPost, s.addMapping)
	s.handle(api, "/mappings/{key}", http.MethodGet, s.getMapping)
	s.handle(api, "/mappings/{key}", http.MethodDelete, s.deleteMapping)

	if s.metrics != nil {
		s.router.Handle("/metrics", s.metrics.Handler()).Methods(http.MethodGet)
	}
}

func (s *Server) handle(r *mux.Router, path, method string, fn handlerFunc) {
	r.HandleFunc(path, func(w http.ResponseWriter, req *http.Request) {
		if err := fn(w, req); err != nil {
			s.logHandlerError(err, w, req)
		}
	}).Methods(method)
}

func (s *Server) logHandlerError(err error, w http.ResponseWriter, r *http.Request) {
	switch e := err.(type) {
	case StatusError:
		s.log.Errorf("Request: %v (%v), Result: status=%v, error=%v", r.URL, r.Method, e.Status(), e)
		http.Error(w, e.Error(), e.Status())
	default:
		s.log.Errorf("Request: %v (%v), Result: status=%v, error=%v", r.URL, r.Method, http.StatusInternalServerError, e)
		http.Error(w, e.Error(), http.StatusInternalServerError)
	}
}

// ServeHTTP makes the server usable as an http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe serves on addr until ctx is cancelled
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Infof("Listening on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// Close stops listening for repository events
func (s *Server) Close() {
	s.unsubscribe()
}

// onRepositoryEvent drops measurement state for volumes that went away
func (s *Server) onRepositoryEvent(ev repository.Event) {
	switch ev.Kind {
	case repository.VolumeDeleted:
		s.measureMu.Lock()
		for _, o := range models.Orientations {
			delete(s.measurements, measurementKey(ev.Key, o))
		}
		s.measureMu.Unlock()
	case repository.Cleared:
		s.measureMu.Lock()
		s.measurements = map[string]*interaction.Measurement{}
		s.measureMu.Unlock()
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(v)
}

func readJSON(r *http.Request, v interface{}) error {
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return makeBadRequestError(err)
	}
	return nil
}
