package app

import (
	"log/slog"
	"net/http"

	"github.com/putto11262002/gymchat/core"
	"github.com/putto11262002/gymchat/pkg/router"
)

type FeedHandler struct {
	chat    *ChatHandler
	manager *core.ConnManager
	logger  *slog.Logger
}

func NewFeedHandler(chat *ChatHandler, manager *core.ConnManager, logger *slog.Logger) *FeedHandler {
	return &FeedHandler{chat: chat, manager: manager, logger: logger}
}

// SubscribeHandler upgrades GET /ws?room=<id> into the change feed of the room.
func (h *FeedHandler) SubscribeHandler(w http.ResponseWriter, r *http.Request) error {
	session := core.SessionFromRequest(r)
	roomID := r.URL.Query().Get("room")
	if roomID == "" {
		return router.NewJsonError(http.StatusBadRequest, "room is required")
	}
	if _, err := h.chat.requireMember(r, roomID); err != nil {
		return err
	}

	// the upgrader has already answered the request when Connect fails
	if err := h.manager.Connect(roomID, session.UserID, w, r); err != nil {
		h.logger.Debug("upgrading feed connection", slog.String("room", roomID), slog.String("err", err.Error()))
	}
	return nil
}
