// Package api exposes the moderation core over REST/JSON for admin
// tooling and the platform frontends.
package api

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/xaoc-labs/modcore/internal/config"
	"github.com/xaoc-labs/modcore/internal/core"
	"github.com/xaoc-labs/modcore/internal/dispatch"
	"github.com/xaoc-labs/modcore/internal/events"
	"github.com/xaoc-labs/modcore/internal/heat"
	"github.com/xaoc-labs/modcore/internal/quarantine"
)

// Server wires the admin and ingest endpoints to the moderation core.
type Server struct {
	engine     *heat.Engine
	controller *quarantine.Controller
	processor  *dispatch.Processor
	sink       *dispatch.LogSink
	bus        *events.Bus
	manager    *config.Manager
	logger     *log.Logger
}

func NewServer(engine *heat.Engine, controller *quarantine.Controller, processor *dispatch.Processor, sink *dispatch.LogSink, bus *events.Bus, manager *config.Manager) *Server {
	return &Server{
		engine:     engine,
		controller: controller,
		processor:  processor,
		sink:       sink,
		bus:        bus,
		manager:    manager,
		logger:     log.New(log.Writer(), "[API] ", log.LstdFlags),
	}
}

// Router builds the full route table.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()

	// CORS Middleware
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusOK)
				return
			}
			next.ServeHTTP(w, r)
		})
	})

	// Ingest
	r.HandleFunc("/api/v1/events/message", s.handleMessageEvent).Methods("POST")
	r.HandleFunc("/api/v1/events/command", s.handleCommandEvent).Methods("POST")
	r.HandleFunc("/api/v1/events/join", s.handleJoinEvent).Methods("POST")

	// Risk inspection
	r.HandleFunc("/api/v1/communities/{community}/users/{user}/stats", s.handleUserStats).Methods("GET")
	r.HandleFunc("/api/v1/communities/{community}/highrisk", s.handleHighRisk).Methods("GET")

	// Risk administration
	r.HandleFunc("/api/v1/communities/{community}/users/{user}/reset", s.handleUserReset).Methods("POST")
	r.HandleFunc("/api/v1/communities/{community}/reset", s.handleCommunityReset).Methods("POST")

	// Containment
	r.HandleFunc("/api/v1/communities/{community}/users/{user}/quarantine", s.handleQuarantine).Methods("POST")
	r.HandleFunc("/api/v1/communities/{community}/users/{user}/release", s.handleRelease).Methods("POST")
	r.HandleFunc("/api/v1/communities/{community}/quarantined", s.handleQuarantined).Methods("GET")

	// Operational
	r.HandleFunc("/api/v1/actions/recent", s.handleRecentActions).Methods("GET")
	r.HandleFunc("/api/v1/config/{community}", s.handleCommunityConfig).Methods("GET")
	r.HandleFunc("/ws/events", s.handleEventStream)
	r.HandleFunc("/healthz", s.handleHealthz).Methods("GET")
	r.Handle("/metrics", promhttp.Handler()).Methods("GET")

	return r
}

// Start serves the route table until the listener fails.
func (s *Server) Start(addr string) error {
	s.logger.Printf("listening on %s", addr)
	return http.ListenAndServe(addr, s.Router())
}

func muxKey(r *http.Request) core.Key {
	vars := mux.Vars(r)
	return core.Key{CommunityID: vars["community"], UserID: vars["user"]}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// --- Ingest handlers ---

func (s *Server) handleMessageEvent(w http.ResponseWriter, r *http.Request) {
	var evt core.MessageEvent
	if err := json.NewDecoder(r.Body).Decode(&evt); err != nil {
		http.Error(w, "invalid request payload", http.StatusBadRequest)
		return
	}
	if evt.CommunityID == "" || evt.UserID == "" {
		http.Error(w, "community_id and user_id are required", http.StatusBadRequest)
		return
	}
	if err := s.processor.HandleMessage(r.Context(), evt); err != nil {
		s.logger.Printf("message event failed | user=%s err=%v", evt.Key(), err)
		http.Error(w, "event processing failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"status": "processed",
		"score":  s.engine.Score(evt.Key()),
	})
}

func (s *Server) handleCommandEvent(w http.ResponseWriter, r *http.Request) {
	var evt core.CommandEvent
	if err := json.NewDecoder(r.Body).Decode(&evt); err != nil {
		http.Error(w, "invalid request payload", http.StatusBadRequest)
		return
	}
	if evt.CommunityID == "" || evt.UserID == "" {
		http.Error(w, "community_id and user_id are required", http.StatusBadRequest)
		return
	}
	if err := s.processor.HandleCommand(r.Context(), evt); err != nil {
		s.logger.Printf("command event failed | user=%s err=%v", evt.Key(), err)
		http.Error(w, "event processing failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"status": "processed",
		"score":  s.engine.Score(evt.Key()),
	})
}

func (s *Server) handleJoinEvent(w http.ResponseWriter, r *http.Request) {
	var evt core.JoinEvent
	if err := json.NewDecoder(r.Body).Decode(&evt); err != nil {
		http.Error(w, "invalid request payload", http.StatusBadRequest)
		return
	}
	if evt.CommunityID == "" || evt.UserID == "" {
		http.Error(w, "community_id and user_id are required", http.StatusBadRequest)
		return
	}
	if err := s.processor.HandleJoin(r.Context(), evt); err != nil {
		s.logger.Printf("join event failed | user=%s err=%v", evt.Key(), err)
		http.Error(w, "event processing failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "processed"})
}

// --- Risk handlers ---

func (s *Server) handleUserStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.Stats(muxKey(r)))
}

func (s *Server) handleHighRisk(w http.ResponseWriter, r *http.Request) {
	community := mux.Vars(r)["community"]

	threshold := 0.0
	if raw := r.URL.Query().Get("threshold"); raw != "" {
		parsed, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			http.Error(w, "invalid threshold", http.StatusBadRequest)
			return
		}
		threshold = parsed
	}

	users := s.engine.ListHighRisk(community, threshold)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"community_id": community,
		"count":        len(users),
		"users":        users,
	})
}

func (s *Server) handleUserReset(w http.ResponseWriter, r *http.Request) {
	key := muxKey(r)
	s.engine.ResetUser(key)
	s.logger.Printf("risk reset | user=%s", key)
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

func (s *Server) handleCommunityReset(w http.ResponseWriter, r *http.Request) {
	community := mux.Vars(r)["community"]
	s.engine.ResetCommunity(community)
	s.logger.Printf("community risk reset | community=%s", community)
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

// --- Containment handlers ---

type quarantineRequest struct {
	Reason string `json:"reason"`
}

func (s *Server) handleQuarantine(w http.ResponseWriter, r *http.Request) {
	key := muxKey(r)

	var req quarantineRequest
	if r.Body != nil {
		json.NewDecoder(r.Body).Decode(&req)
	}
	if req.Reason == "" {
		req.Reason = "manual quarantine"
	}

	outcome, err := s.controller.Quarantine(r.Context(), key, req.Reason)
	if err != nil {
		s.logger.Printf("manual quarantine failed | user=%s err=%v", key, err)
		writeJSON(w, http.StatusBadGateway, map[string]string{
			"outcome": string(outcome),
			"error":   err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"outcome": string(outcome)})
}

func (s *Server) handleRelease(w http.ResponseWriter, r *http.Request) {
	key := muxKey(r)

	outcome, err := s.controller.Release(r.Context(), key)
	if err != nil {
		s.logger.Printf("manual release failed | user=%s err=%v", key, err)
		writeJSON(w, http.StatusBadGateway, map[string]string{
			"outcome": string(outcome),
			"error":   err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"outcome": string(outcome)})
}

func (s *Server) handleQuarantined(w http.ResponseWriter, r *http.Request) {
	community := mux.Vars(r)["community"]

	users, err := s.controller.ListQuarantined(r.Context(), community)
	if err != nil {
		http.Error(w, "record store unavailable", http.StatusBadGateway)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"community_id": community,
		"count":        len(users),
		"users":        users,
	})
}

// --- Operational handlers ---

func (s *Server) handleRecentActions(w http.ResponseWriter, r *http.Request) {
	actions := s.sink.Recent()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"count":   len(actions),
		"actions": actions,
	})
}

func (s *Server) handleCommunityConfig(w http.ResponseWriter, r *http.Request) {
	community := mux.Vars(r)["community"]
	writeJSON(w, http.StatusOK, s.manager.Get(community))
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}
