package controllers

import (
	"net/http"

	"github.com/tsheringp/pharmstock-backend/api/middleware"
	"github.com/tsheringp/pharmstock-backend/api/responses"
	"github.com/tsheringp/pharmstock-backend/api/validators"
	chatbotsvc "github.com/tsheringp/pharmstock-backend/internal/chatbot"
	"github.com/tsheringp/pharmstock-backend/pkg/enums"
	pkgerrors "github.com/tsheringp/pharmstock-backend/pkg/errors"
	"github.com/tsheringp/pharmstock-backend/pkg/logger"
)

type chatbotAskRequest struct {
	Query          string            `json:"query" validate:"required"`
	ConversationID string            `json:"conversation_id,omitempty"`
	History        []chatbotsvc.Turn `json:"conversation_history,omitempty"`
}

// ChatbotAsk answers a natural-language inventory question for the caller.
func ChatbotAsk(svc chatbotsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "chatbot service unavailable"))
			return
		}

		actor, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		role, err := enums.ParseUserRole(middleware.RoleFromContext(r.Context()))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeForbidden, err, "unknown role"))
			return
		}

		var payload chatbotAskRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		reply, err := svc.Ask(r.Context(), chatbotsvc.AskInput{
			UserID:         actor,
			Role:           role,
			Query:          payload.Query,
			ConversationID: payload.ConversationID,
			History:        payload.History,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, reply)
	}
}
