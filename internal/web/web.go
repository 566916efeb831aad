// Package web exposes the bot's HTTP surface: the chat platform webhook,
// a health endpoint, a JSON schedule API and the basic-auth admin UI.
package web

import (
	"context"
	"crypto/subtle"
	"embed"
	"encoding/json"
	"errors"
	"html/template"
	"net/http"
	"strconv"
	"strings"
	"time"

	"askcoach/internal/config"
	appLog "askcoach/internal/log"
	"askcoach/internal/model"
	"askcoach/internal/schedule"
	"askcoach/internal/store"
)

//go:embed templates/*.html
var embeddedTemplates embed.FS

// MessageHandler processes one inbound chat message. Implemented by the
// disambiguation engine.
type MessageHandler interface {
	Handle(ctx context.Context, msg model.Message) error
}

// webhookTimeout bounds handling of a single inbound message once the
// platform has been ACKed.
const webhookTimeout = 30 * time.Second

// Server wires routes to the store and engine.
type Server struct {
	cfg     *config.Config
	store   *store.Store
	handler MessageHandler
	now     func() time.Time

	mux  *http.ServeMux
	tmpl *template.Template
}

// NewServer constructs a Server. now may be nil (time.Now).
func NewServer(cfg *config.Config, st *store.Store, handler MessageHandler, now func() time.Time) (*Server, error) {
	if now == nil {
		now = time.Now
	}

	tmpl, err := template.ParseFS(embeddedTemplates, "templates/*.html")
	if err != nil {
		return nil, err
	}

	s := &Server{
		cfg:     cfg,
		store:   st,
		handler: handler,
		now:     now,
		mux:     http.NewServeMux(),
		tmpl:    tmpl,
	}
	s.registerRoutes()
	return s, nil
}

// Handler returns the server's http.Handler, wrapped with basic auth when
// configured.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled for admin routes", "listen", "http://"+s.cfg.Listen)
		return s.basicAuthMiddleware(h)
	}
	return h
}

// Serve runs the HTTP server until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:    s.cfg.Listen,
		Handler: s.Handler(),
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+s.cfg.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (s *Server) basicAuthEnabled() bool {
	ba := s.cfg.BasicAuth
	return ba != nil && ba.Username != "" && ba.Password != ""
}

// basicAuthMiddleware guards everything except the health endpoint and the
// webhook callback, which the chat platform calls unauthenticated.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" || r.URL.Path == "/groupme/callback" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="Ask Coach", charset="UTF-8"`)
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

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("POST /groupme/callback", s.handleCallback)
	s.mux.HandleFunc("GET /api/events", s.handleAPIEvents)

	s.mux.HandleFunc("GET /admin/events", s.handleEventsPage)
	s.mux.HandleFunc("POST /admin/events", s.handleCreateEvent)
	s.mux.HandleFunc("GET /admin/events/{id}/edit", s.handleEditPage)
	s.mux.HandleFunc("POST /admin/events/{id}", s.handleUpdateEvent)
	s.mux.HandleFunc("POST /admin/events/{id}/delete", s.handleDeleteEvent)

	s.mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/admin/events", http.StatusFound)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "ok",
		"timestamp": s.now().UTC().Format(time.RFC3339),
	})
}

// handleCallback receives an inbound group message. The platform is ACKed
// immediately (200 even on failure, so it does not retry) and the message
// is dispatched to the engine off the request goroutine.
func (s *Server) handleCallback(w http.ResponseWriter, r *http.Request) {
	var msg model.Message
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
		appLog.Error("webhook: undecodable message", err)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
		return
	}

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), webhookTimeout)
		defer cancel()
		// Engine failures are already surfaced to the group as an
		// apology; here they are only logged.
		if err := s.handler.Handle(ctx, msg); err != nil {
			appLog.Error("webhook: message handling failed", err, "group_id", msg.GroupID)
		}
	}()
}

// eventDTO is the JSON view of an event.
type eventDTO struct {
	ID        int64     `json:"id"`
	Start     time.Time `json:"start"`
	VenueName string    `json:"venue_name"`
	Address   string    `json:"address"`
	Field     string    `json:"field,omitempty"`
	Opponent  string    `json:"opponent,omitempty"`
	Active    bool      `json:"active"`
}

// eventsAPIResponse reports the active schedule and what the bot currently
// considers "upcoming". Useful when debugging why the bot did or did not
// answer about a game.
type eventsAPIResponse struct {
	CurrentTime time.Time  `json:"current_time"`
	WindowStart time.Time  `json:"window_start"`
	WindowEnd   time.Time  `json:"window_end"`
	Active      []eventDTO `json:"active_events"`
	Upcoming    []eventDTO `json:"upcoming_events"`
}

func (s *Server) handleAPIEvents(w http.ResponseWriter, r *http.Request) {
	active, err := s.store.ListActive(r.Context())
	if err != nil {
		appLog.Error("api events: list failed", err)
		writeError(w, http.StatusInternalServerError, "failed to load events")
		return
	}

	now := s.now()
	resp := eventsAPIResponse{
		CurrentTime: now,
		WindowStart: now.Add(-schedule.TrailingWindow),
		WindowEnd:   now.Add(schedule.LeadingWindow),
		Active:      toDTOs(active),
		Upcoming:    toDTOs(schedule.Upcoming(active, now)),
	}
	writeJSON(w, http.StatusOK, resp)
}

func toDTOs(events []model.Event) []eventDTO {
	out := make([]eventDTO, 0, len(events))
	for _, ev := range events {
		out = append(out, eventDTO{
			ID:        ev.ID,
			Start:     ev.Start,
			VenueName: ev.VenueName,
			Address:   ev.Address,
			Field:     ev.FieldNumber,
			Opponent:  ev.Opponent,
			Active:    ev.Active,
		})
	}
	return out
}

func (s *Server) handleEventsPage(w http.ResponseWriter, r *http.Request) {
	events, err := s.store.ListActive(r.Context())
	if err != nil {
		appLog.Error("admin: list events failed", err)
		http.Error(w, "Error loading events", http.StatusInternalServerError)
		return
	}

	data := struct{ Events []model.Event }{Events: events}
	if err := s.tmpl.ExecuteTemplate(w, "events.html", data); err != nil {
		appLog.Error("admin: render events page failed", err)
	}
}

func (s *Server) handleCreateEvent(w http.ResponseWriter, r *http.Request) {
	ev, err := s.eventFromForm(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if _, err := s.store.CreateEvent(r.Context(), ev); err != nil {
		appLog.Error("admin: create event failed", err)
		http.Error(w, "Error creating event", http.StatusInternalServerError)
		return
	}
	http.Redirect(w, r, "/admin/events", http.StatusFound)
}

func (s *Server) handleEditPage(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		http.Error(w, "Bad event id", http.StatusBadRequest)
		return
	}

	ev, err := s.store.GetByID(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		http.Error(w, "Event not found", http.StatusNotFound)
		return
	}
	if err != nil {
		appLog.Error("admin: load event failed", err, "id", id)
		http.Error(w, "Error loading event", http.StatusInternalServerError)
		return
	}

	data := struct{ Event model.Event }{Event: ev}
	if err := s.tmpl.ExecuteTemplate(w, "edit.html", data); err != nil {
		appLog.Error("admin: render edit page failed", err)
	}
}

func (s *Server) handleUpdateEvent(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		http.Error(w, "Bad event id", http.StatusBadRequest)
		return
	}

	ev, err := s.eventFromForm(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	ev.ID = id

	if err := s.store.UpdateEvent(r.Context(), ev); err != nil {
		appLog.Error("admin: update event failed", err, "id", id)
		http.Error(w, "Error updating event", http.StatusInternalServerError)
		return
	}
	http.Redirect(w, r, "/admin/events", http.StatusFound)
}

func (s *Server) handleDeleteEvent(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		http.Error(w, "Bad event id", http.StatusBadRequest)
		return
	}

	if err := s.store.SoftDeleteEvent(r.Context(), id); err != nil {
		appLog.Error("admin: delete event failed", err, "id", id)
		http.Error(w, "Error deleting event", http.StatusInternalServerError)
		return
	}
	http.Redirect(w, r, "/admin/events", http.StatusFound)
}

// eventFromForm builds an event from the admin form, validating required
// fields and the timestamp format.
func (s *Server) eventFromForm(r *http.Request) (model.Event, error) {
	if err := r.ParseForm(); err != nil {
		return model.Event{}, errors.New("unreadable form")
	}

	startRaw := strings.TrimSpace(r.FormValue("start_datetime_local"))
	venue := strings.TrimSpace(r.FormValue("venue_name"))
	address := strings.TrimSpace(r.FormValue("address"))
	if startRaw == "" || venue == "" || address == "" {
		return model.Event{}, errors.New("missing required fields: date/time, venue name, and address are required")
	}

	start, err := time.ParseInLocation("2006-01-02T15:04", startRaw, s.store.Location())
	if err != nil {
		return model.Event{}, errors.New("invalid date/time")
	}

	arrival := 45
	if v := r.FormValue("arrival_minutes_before"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			arrival = n
		}
	}

	return model.Event{
		Start:                start,
		VenueName:            venue,
		Address:              address,
		FieldNumber:          strings.TrimSpace(r.FormValue("field_number")),
		ParkingNotes:         strings.TrimSpace(r.FormValue("parking_notes")),
		Opponent:             strings.TrimSpace(r.FormValue("opponent")),
		ArrivalMinutesBefore: arrival,
		Active:               r.FormValue("is_active") != "",
	}, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
