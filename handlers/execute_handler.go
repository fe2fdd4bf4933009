package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/upb/site-control-plane/app"
	"github.com/upb/site-control-plane/middleware"
	"github.com/upb/site-control-plane/services/session"
	"github.com/upb/site-control-plane/utils"
	"go.uber.org/zap"
)

// ExecuteRequest is the body of POST /execute
type ExecuteRequest struct {
	Action string                 `json:"action" validate:"required"`
	Params map[string]interface{} `json:"params"`
}

// ExecuteHandler forwards an owner command to the global session actor and
// returns the actor's response unmodified. Authentication happens in the
// OwnerAuth middleware; an invalid credential never reaches this handler.
func ExecuteHandler(deps *app.Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ExecuteRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			_ = utils.WriteBadRequest(w, "invalid request body", nil)
			return
		}
		if err := utils.ValidateStruct(req); err != nil {
			HandleValidationError(w, err, deps.Logger)
			return
		}

		actor, err := deps.Sessions.Open(r.Context(), session.GlobalKey)
		if err != nil {
			HandleServiceError(w, err, deps.Logger)
			return
		}

		response, err := actor.Execute(r.Context(), req.Action, req.Params)
		if err != nil {
			HandleServiceError(w, err, deps.Logger)
			return
		}

		deps.Logger.Info("command executed",
			zap.String("action", req.Action),
			zap.String("owner", middleware.GetOwnerFromContext(r.Context())))

		_ = utils.WriteJSON(w, http.StatusOK, response)
	}
}

// CapabilitiesHandler serves the capability manifest
func CapabilitiesHandler(deps *app.Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_ = utils.WriteJSON(w, http.StatusOK, session.Capabilities())
	}
}
