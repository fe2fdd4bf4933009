package handlers

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/upb/site-control-plane/app"
	"github.com/upb/site-control-plane/models"
	"github.com/upb/site-control-plane/services/session"
	"github.com/upb/site-control-plane/utils"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Browser origin enforcement happens in the CORS layer; the websocket
	// endpoint accepts non-browser clients too.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsConn adapts a gorilla websocket connection to session.Conn.
// Gorilla connections allow only one concurrent writer.
type wsConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *wsConn) WriteJSON(v interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(v)
}

func (c *wsConn) Close() error {
	return c.conn.Close()
}

// ActorHandler serves the session actor endpoint. A websocket upgrade
// attaches a realtime session; a POST with ?action=patch_apply applies a
// patch through the actor.
func ActorHandler(deps *app.Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := chi.URLParam(r, "key")
		if key == "" {
			key = session.GlobalKey
		}

		actor, err := deps.Sessions.Open(r.Context(), key)
		if err != nil {
			HandleServiceError(w, err, deps.Logger)
			return
		}

		if websocket.IsWebSocketUpgrade(r) {
			serveRealtime(w, r, actor, deps.Logger)
			return
		}

		if r.Method != http.MethodPost {
			_ = utils.WriteJSON(w, http.StatusMethodNotAllowed, utils.ErrorResponse{
				Error:   "method_not_allowed",
				Message: "Use POST with ?action=... or upgrade to websocket",
			})
			return
		}

		action := r.URL.Query().Get("action")
		switch action {
		case "patch_apply":
			handlePatchApply(w, r, actor, deps.Logger)
		default:
			_ = utils.WriteBadRequest(w, "unknown action", map[string]interface{}{
				"action": action,
			})
		}
	}
}

// handlePatchApply decodes, validates and forwards a patch request
func handlePatchApply(w http.ResponseWriter, r *http.Request, actor *session.Actor, logger *zap.Logger) {
	var req models.PatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = utils.WriteBadRequest(w, "invalid request body", nil)
		return
	}
	if err := utils.ValidateStruct(req); err != nil {
		HandleValidationError(w, err, logger)
		return
	}

	result, err := actor.PatchApply(r.Context(), req)
	if err != nil {
		HandleServiceError(w, err, logger)
		return
	}
	_ = utils.WriteJSON(w, http.StatusOK, result)
}

// serveRealtime upgrades the connection, attaches it to the actor and pumps
// inbound messages until the peer goes away
func serveRealtime(w http.ResponseWriter, r *http.Request, actor *session.Actor, logger *zap.Logger) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	id := uuid.New().String()
	actor.Attach(id, &wsConn{conn: conn})
	defer func() {
		actor.Detach(id)
		_ = conn.Close()
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Warn("websocket read failed",
					zap.String("session_id", id),
					zap.Error(err))
			}
			return
		}
		actor.HandleMessage(r.Context(), id, raw)
	}
}
