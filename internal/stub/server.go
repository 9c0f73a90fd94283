package stub

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/planhub/core/internal/logging"
	"github.com/planhub/core/internal/models"
	"github.com/planhub/core/internal/sync/scheduler"
	"github.com/planhub/core/internal/uuid"
)

// Config holds stub server construction parameters.
type Config struct {
	Logger *logging.Logger
	// Clock stamps created_at/updated_at; nil means the system clock.
	Clock scheduler.Clock
}

// Server is the dev backend twin. REST mutations stamp server
// timestamps and push the matching entity event to the room hub.
type Server struct {
	state  *memoryState
	hub    *Hub
	log    *logging.Logger
	clock  scheduler.Clock
	router chi.Router
}

// roomEvent maps a resource type to its room and event vocabulary.
// Types without a vocabulary fall back to a dashboard_refresh nudge.
type roomEvent struct {
	room    string
	created string
	updated string
	deleted string
}

var roomEvents = map[models.ResourceType]roomEvent{
	models.ResourceProjects:  {room: "projects", created: "project_created", updated: "project_updated", deleted: "project_deleted"},
	models.ResourceTasks:     {room: "dashboard", created: "task_created", updated: "task_updated"},
	models.ResourceRisks:     {room: "risks", created: "risk_created", updated: "risk_updated"},
	models.ResourceResources: {room: "resources", created: "resource_created", updated: "resource_updated"},
}

// New creates the stub server; Handler serves it.
func New(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Get()
	}
	logger = logger.WithComponent("stub")
	clock := cfg.Clock
	if clock == nil {
		clock = scheduler.System()
	}

	s := &Server{
		state: newMemoryState(),
		log:   logger,
		clock: clock,
	}
	s.hub = newHub(logger, clock.Now)

	r := chi.NewRouter()
	r.Get("/api/health", s.health)
	r.Route("/api/v1/{resource}", func(r chi.Router) {
		r.Use(s.resourceCtx)
		r.Get("/", s.list)
		r.Post("/", s.create)
		r.Get("/{id}", s.get)
		r.Put("/{id}", s.update)
		r.Delete("/{id}", s.remove)
	})
	r.Get("/ws/{room}", s.serveWS)
	s.router = r
	return s
}

// Handler returns the HTTP handler for the whole twin.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Close stops the websocket hub.
func (s *Server) Close() {
	s.hub.Close()
}

// Seed loads entities without broadcasting, for test setup. Entities
// without timestamps get them stamped.
func (s *Server) Seed(rt models.ResourceType, entities ...models.Entity) {
	c, ok := s.state.collection(rt)
	if !ok {
		return
	}
	for _, entity := range entities {
		s.stamp(entity, true)
		c.Put(entity)
	}
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "service": "planhub-stub"})
}

// resourceCtx rejects unknown collections before any handler runs.
func (s *Server) resourceCtx(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rt := models.ResourceType(chi.URLParam(r, "resource"))
		if !rt.Valid() {
			writeError(w, http.StatusNotFound, "unknown resource type")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) list(w http.ResponseWriter, r *http.Request) {
	c, _ := s.collectionFor(r)

	var since time.Time
	if raw := r.URL.Query().Get("since"); raw != "" {
		parsed, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "since must be an RFC3339 timestamp")
			return
		}
		since = parsed
	}

	writeJSON(w, http.StatusOK, c.List(since))
}

func (s *Server) get(w http.ResponseWriter, r *http.Request) {
	c, _ := s.collectionFor(r)
	entity, ok := c.Get(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, "entity not found")
		return
	}
	writeJSON(w, http.StatusOK, entity)
}

func (s *Server) create(w http.ResponseWriter, r *http.Request) {
	c, rt := s.collectionFor(r)

	entity, ok := decodeEntity(w, r)
	if !ok {
		return
	}
	if entity.ID() == "" {
		entity["id"] = uuid.New()
	}
	s.stamp(entity, true)
	c.Put(entity)

	s.broadcastMutation(rt, "create", entity)
	writeJSON(w, http.StatusCreated, entity)
}

func (s *Server) update(w http.ResponseWriter, r *http.Request) {
	c, rt := s.collectionFor(r)
	id := chi.URLParam(r, "id")
	if _, exists := c.Get(id); !exists {
		writeError(w, http.StatusNotFound, "entity not found")
		return
	}

	entity, ok := decodeEntity(w, r)
	if !ok {
		return
	}
	entity["id"] = id
	s.stamp(entity, false)
	c.Put(entity)

	s.broadcastMutation(rt, "update", entity)
	writeJSON(w, http.StatusOK, entity)
}

func (s *Server) remove(w http.ResponseWriter, r *http.Request) {
	c, rt := s.collectionFor(r)
	id := chi.URLParam(r, "id")
	if !c.Delete(id) {
		writeError(w, http.StatusNotFound, "entity not found")
		return
	}

	s.broadcastMutation(rt, "delete", models.Entity{"id": id})
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) serveWS(w http.ResponseWriter, r *http.Request) {
	s.hub.serve(w, r, chi.URLParam(r, "room"))
}

// collectionFor is only called behind resourceCtx, so the type is valid.
func (s *Server) collectionFor(r *http.Request) (*collection, models.ResourceType) {
	rt := models.ResourceType(chi.URLParam(r, "resource"))
	c, _ := s.state.collection(rt)
	return c, rt
}

// stamp sets server timestamps: updated_at always, created_at only
// when creating and absent.
func (s *Server) stamp(entity models.Entity, creating bool) {
	now := s.clock.Now().UTC().Format(time.RFC3339Nano)
	if creating {
		if _, ok := entity["created_at"]; !ok {
			entity["created_at"] = now
		}
	}
	entity["updated_at"] = now
}

// broadcastMutation pushes the entity event for rt to its room, or a
// dashboard_refresh when rt has no event vocabulary.
func (s *Server) broadcastMutation(rt models.ResourceType, kind string, entity models.Entity) {
	events, ok := roomEvents[rt]
	if !ok {
		s.hub.Broadcast("dashboard", "dashboard_refresh", nil)
		return
	}

	var envelopeType string
	switch kind {
	case "create":
		envelopeType = events.created
	case "update":
		envelopeType = events.updated
	case "delete":
		envelopeType = events.deleted
	}
	if envelopeType == "" {
		s.hub.Broadcast("dashboard", "dashboard_refresh", nil)
		return
	}
	s.hub.Broadcast(events.room, envelopeType, map[string]any(entity))
}

func decodeEntity(w http.ResponseWriter, r *http.Request) (models.Entity, bool) {
	var entity models.Entity
	if err := json.NewDecoder(r.Body).Decode(&entity); err != nil {
		writeError(w, http.StatusBadRequest, "request body is not a JSON object")
		return nil, false
	}
	if entity == nil {
		entity = models.Entity{}
	}
	return entity, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
