package monitor

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rickgao/protohackers/internal/archive"
	"github.com/rickgao/protohackers/internal/server"
	"github.com/rickgao/protohackers/internal/version"
)

const (
	pingInterval = 15 * time.Second
	writeTimeout = 5 * time.Second
	pongTimeout  = 2 * pingInterval
)

// Server is the listener view the monitor needs.
type Server interface {
	Stats() server.Stats
	Sessions() []server.SessionInfo
}

// Archive is the archive writer view the monitor needs.
type Archive interface {
	Ping(ctx context.Context) error
	Stats() archive.WriterMetrics
}

// Handler serves the monitor endpoints.
type Handler struct {
	hub      *Hub
	servers  []Server
	archive  Archive // nil when the archive is disabled
	logger   *slog.Logger
	upgrader websocket.Upgrader
	mux      *http.ServeMux
}

// NewHandler creates the monitor HTTP handler. archive may be nil.
func NewHandler(hub *Hub, servers []Server, archive Archive, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}

	h := &Handler{
		hub:     hub,
		servers: servers,
		archive: archive,
		logger:  logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
		},
		mux: http.NewServeMux(),
	}

	h.mux.HandleFunc("GET /health", h.handleHealth)
	h.mux.HandleFunc("GET /debug/sessions", h.handleSessions)
	h.mux.HandleFunc("GET /ws/sessions", h.handleWatch)
	return h
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// Health is the /health response body.
type Health struct {
	Status  string         `json:"status"`
	Version string         `json:"version"`
	Servers []server.Stats `json:"servers"`
	Archive *ArchiveHealth `json:"archive,omitempty"`
	Monitor HubStats       `json:"monitor"`
}

// ArchiveHealth reports archive connectivity and writer metrics.
type ArchiveHealth struct {
	Status  string                `json:"status"`
	Error   string                `json:"error,omitempty"`
	Metrics archive.WriterMetrics `json:"metrics"`
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	health := Health{
		Status:  "healthy",
		Version: version.Version,
		Servers: make([]server.Stats, 0, len(h.servers)),
		Monitor: h.hub.Stats(),
	}
	for _, s := range h.servers {
		health.Servers = append(health.Servers, s.Stats())
	}

	if h.archive != nil {
		ah := &ArchiveHealth{Status: "connected", Metrics: h.archive.Stats()}
		if err := h.archive.Ping(ctx); err != nil {
			health.Status = "unhealthy"
			ah.Status = "disconnected"
			ah.Error = err.Error()
		} else if ah.Metrics.Errors > 0 || ah.Metrics.Dropped > 0 {
			health.Status = "degraded"
		}
		health.Archive = ah
	}

	status := http.StatusOK
	if health.Status == "unhealthy" {
		status = http.StatusServiceUnavailable
	}
	h.writeJSON(w, status, health)
}

func (h *Handler) handleSessions(w http.ResponseWriter, r *http.Request) {
	out := make(map[string][]server.SessionInfo, len(h.servers))
	for _, s := range h.servers {
		sessions := s.Sessions()
		if sessions == nil {
			sessions = []server.SessionInfo{}
		}
		out[s.Stats().Name] = sessions
	}
	h.writeJSON(w, http.StatusOK, out)
}

// handleWatch streams session events to a websocket client until either side
// disconnects or the hub is closed.
func (h *Handler) handleWatch(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	sub := h.hub.subscribe(DefaultWatcherBuffer)
	if sub == nil {
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
			time.Now().Add(time.Second))
		return
	}
	defer h.hub.unsubscribe(sub)

	h.logger.Debug("session watcher connected", "remote", r.RemoteAddr)

	// Read loop handles pongs and notices the client going away
	gone := make(chan struct{})
	conn.SetReadDeadline(time.Now().Add(pongTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongTimeout))
	})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(pingInterval)
	defer ping.Stop()

	for {
		select {
		case e, ok := <-sub.events:
			if !ok {
				conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
					time.Now().Add(time.Second))
				return
			}
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteJSON(e); err != nil {
				h.logger.Debug("session watcher write failed", "error", err)
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
				return
			}
		case <-gone:
			h.logger.Debug("session watcher disconnected", "remote", r.RemoteAddr)
			return
		}
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Debug("write response failed", "error", err)
	}
}
