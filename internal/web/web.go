package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/rs/cors"

	"addtocal/internal/config"
	"addtocal/internal/ics"
	appLog "addtocal/internal/log"
	"addtocal/internal/model"
	"addtocal/internal/timecalc"
	"addtocal/internal/workflow"
)

// maxBodyBytes caps request bodies; pasted text is the largest input.
const maxBodyBytes = 64 << 10

// Server exposes workflow sessions over HTTP.
type Server struct {
	cfg   *config.Config
	store *Store
	mux   *http.ServeMux
	now   func() time.Time
}

// NewServer constructs a new Server.
func NewServer(cfg *config.Config, store *Store) *Server {
	s := &Server{
		cfg:   cfg,
		store: store,
		mux:   http.NewServeMux(),
		now:   time.Now,
	}
	s.registerRoutes()
	return s
}

// Handler returns the server's http.Handler: routes wrapped in Basic Auth
// (when configured) and then CORS, so preflight requests never need
// credentials.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		h = s.basicAuthMiddleware(h)
	}
	if len(s.cfg.CORSOrigins) > 0 {
		h = cors.New(cors.Options{
			AllowedOrigins:   s.cfg.CORSOrigins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete},
			AllowedHeaders:   []string{"Content-Type", "Authorization"},
			AllowCredentials: true,
		}).Handler(h)
	}
	return h
}

// basicAuthEnabled reports whether HTTP Basic Auth is configured.
func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	// An empty username or password disables auth.
	if s.cfg.BasicAuth.Username == "" || s.cfg.BasicAuth.Password == "" {
		return false
	}
	return true
}

// basicAuthMiddleware wraps all handlers except /health with HTTP Basic Auth.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="addtocal", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+s.cfg.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)

	s.mux.HandleFunc("POST /api/sessions", s.handleCreate)
	s.mux.HandleFunc("GET /api/sessions/{id}", s.withSession(s.handleGet))
	s.mux.HandleFunc("DELETE /api/sessions/{id}", s.handleDelete)

	s.mux.HandleFunc("POST /api/sessions/{id}/submit", s.withSession(s.handleSubmit))
	s.mux.HandleFunc("POST /api/sessions/{id}/edit", s.withSession(s.handleEdit))
	s.mux.HandleFunc("POST /api/sessions/{id}/confirm", s.withSession(s.action((*workflow.Controller).Confirm)))
	s.mux.HandleFunc("POST /api/sessions/{id}/back", s.withSession(s.action((*workflow.Controller).GoBack)))
	s.mux.HandleFunc("POST /api/sessions/{id}/reopen", s.withSession(s.action((*workflow.Controller).Reopen)))
	s.mux.HandleFunc("POST /api/sessions/{id}/new", s.withSession(s.action((*workflow.Controller).StartNew)))

	s.mux.HandleFunc("GET /api/sessions/{id}/event.ics", s.withSession(s.handleICS))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// displayDTO carries 12-hour renderings of the draft's clock times.
type displayDTO struct {
	Time    string `json:"time,omitempty"`
	EndTime string `json:"end_time,omitempty"`
}

// sessionResponse is the JSON shape for every session endpoint.
type sessionResponse struct {
	ID string `json:"id"`
	workflow.View
	Display *displayDTO `json:"display,omitempty"`
}

type errorResponse struct {
	Error   string           `json:"error"`
	Session *sessionResponse `json:"session,omitempty"`
}

func newSessionResponse(id string, ctrl *workflow.Controller) sessionResponse {
	resp := sessionResponse{ID: id, View: ctrl.Snapshot()}
	if d := resp.Draft; d != nil && !d.AllDay() {
		resp.Display = &displayDTO{
			Time:    timecalc.Display12h(model.Deref(d.Time)),
			EndTime: timecalc.Display12h(model.Deref(d.EndTime)),
		}
	}
	return resp
}

type sessionHandler func(w http.ResponseWriter, r *http.Request, id string, ctrl *workflow.Controller)

// withSession resolves {id} to a live session or answers 404.
func (s *Server) withSession(next sessionHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		ctrl, ok := s.store.Get(id)
		if !ok {
			writeError(w, http.StatusNotFound, "session not found")
			return
		}
		next(w, r, id, ctrl)
	}
}

// action adapts a body-less controller transition to a handler.
func (s *Server) action(op func(*workflow.Controller) error) sessionHandler {
	return func(w http.ResponseWriter, r *http.Request, id string, ctrl *workflow.Controller) {
		if err := op(ctrl); err != nil {
			writeWorkflowError(w, id, ctrl, err)
			return
		}
		writeJSON(w, http.StatusOK, newSessionResponse(id, ctrl))
	}
}

func (s *Server) handleCreate(w http.ResponseWriter, _ *http.Request) {
	id, ctrl := s.store.Create()
	writeJSON(w, http.StatusCreated, newSessionResponse(id, ctrl))
}

func (s *Server) handleGet(w http.ResponseWriter, _ *http.Request, id string, ctrl *workflow.Controller) {
	writeJSON(w, http.StatusOK, newSessionResponse(id, ctrl))
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	if !s.store.Delete(r.PathValue("id")) {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type submitRequest struct {
	Text string `json:"text"`
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request, id string, ctrl *workflow.Controller) {
	var req submitRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := ctrl.SubmitText(r.Context(), req.Text); err != nil {
		appLog.Info("submit failed", "id", id, "state", ctrl.State().String(), "error", err.Error())
		writeWorkflowError(w, id, ctrl, err)
		return
	}
	writeJSON(w, http.StatusOK, newSessionResponse(id, ctrl))
}

type editRequest struct {
	Field string `json:"field"`
	Value string `json:"value"`
}

func (s *Server) handleEdit(w http.ResponseWriter, r *http.Request, id string, ctrl *workflow.Controller) {
	var req editRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := ctrl.EditField(req.Field, req.Value); err != nil {
		writeWorkflowError(w, id, ctrl, err)
		return
	}
	writeJSON(w, http.StatusOK, newSessionResponse(id, ctrl))
}

// handleICS downloads the confirmed event as an iCalendar file.
func (s *Server) handleICS(w http.ResponseWriter, _ *http.Request, _ string, ctrl *workflow.Controller) {
	ev, iv, ok := ctrl.Confirmed()
	if !ok {
		writeError(w, http.StatusConflict, "event is not confirmed")
		return
	}

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="event.ics"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(ics.Export(ev, iv, s.now())))
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// statusFor maps controller errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, model.ErrBusy),
		errors.Is(err, model.ErrIllegalTransition),
		errors.Is(err, model.ErrStaleResponse):
		return http.StatusConflict
	case errors.Is(err, model.ErrMissingRequiredField),
		errors.Is(err, model.ErrInvalidField),
		errors.Is(err, model.ErrUnknownField),
		errors.Is(err, model.ErrInvalidInterval):
		return http.StatusUnprocessableEntity
	case errors.Is(err, model.ErrExtractionFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeWorkflowError(w http.ResponseWriter, id string, ctrl *workflow.Controller, err error) {
	sess := newSessionResponse(id, ctrl)
	writeJSON(w, statusFor(err), errorResponse{
		Error:   workflow.Message(err),
		Session: &sess,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
