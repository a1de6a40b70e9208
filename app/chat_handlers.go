package app

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/putto11262002/gymchat/core"
	"github.com/putto11262002/gymchat/pkg/roomsync"
	"github.com/putto11262002/gymchat/pkg/router"
)

// Publisher fans change events out to the subscribers of a room.
type Publisher interface {
	Publish(roomID string, e *core.Event)
}

type ChatHandler struct {
	chatStore core.ChatStore
	publisher Publisher
	metrics   *Metrics
	logger    *slog.Logger
}

func NewChatHandler(chatStore core.ChatStore, publisher Publisher, metrics *Metrics, logger *slog.Logger) *ChatHandler {
	return &ChatHandler{
		chatStore: chatStore,
		publisher: publisher,
		metrics:   metrics,
		logger:    logger,
	}
}

// publish emits the change of m to the feed of its room.
func (h *ChatHandler) publish(kind roomsync.EventKind, m roomsync.Message) {
	e, err := core.NewChangeEvent(kind, m)
	if err != nil {
		h.logger.Error("building change event", slog.String("err", err.Error()))
		return
	}
	h.metrics.ChangeEvents.WithLabelValues(string(kind)).Inc()
	h.publisher.Publish(m.RoomID, e)
}

// rejected counts writes that failed.
func (h *ChatHandler) rejected(op string, next router.HandlerFunc) router.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) error {
		err := next(w, r)
		if err != nil {
			h.metrics.RejectedWrites.WithLabelValues(op).Inc()
		}
		return err
	}
}

// requireMember checks that the room exists and the caller has joined it.
func (h *ChatHandler) requireMember(r *http.Request, roomID string) (*core.Room, error) {
	session := core.SessionFromRequest(r)
	room, err := h.chatStore.GetRoomByID(r.Context(), roomID)
	if err != nil {
		return nil, err
	}
	if room == nil {
		return nil, errRoomNotFound
	}

	ok, err := h.chatStore.IsRoomMember(r.Context(), roomID, session.UserID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, core.ErrNotRoomMember
	}
	return room, nil
}

type CreateRoomPayload struct {
	Name string `json:"name" validate:"required,max=128"`
}

type CreateRoomResponse struct {
	ID string `json:"id"`
}

// CreateRoomHandler creates the room of a venue. Only admins may create rooms.
func (h *ChatHandler) CreateRoomHandler(w http.ResponseWriter, r *http.Request) error {
	session := core.SessionFromRequest(r)
	if session.Role != roomsync.RoleAdmin {
		return router.NewJsonError(http.StatusForbidden, core.ErrUnauthorized.Error())
	}

	var payload CreateRoomPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		return errBadJson
	}
	r.Body.Close()
	payload.Name = strings.TrimSpace(payload.Name)
	if err := validate.Struct(payload); err != nil {
		return invalidInput(err)
	}

	id, err := h.chatStore.CreateRoom(r.Context(), payload.Name, session.UserID)
	if err != nil {
		return err
	}

	return router.Json(w, http.StatusCreated, CreateRoomResponse{ID: id})
}

func (h *ChatHandler) GetMyRoomsHandler(w http.ResponseWriter, r *http.Request) error {
	session := core.SessionFromRequest(r)
	rooms, err := h.chatStore.GetUserRooms(r.Context(), session.UserID)
	if err != nil {
		return err
	}
	return router.Json(w, http.StatusOK, rooms)
}

func (h *ChatHandler) GetRoomByIDHandler(w http.ResponseWriter, r *http.Request) error {
	room, err := h.requireMember(r, r.PathValue("roomID"))
	if err != nil {
		return err
	}
	return router.Json(w, http.StatusOK, roomsync.Room{ID: room.ID, DisplayName: room.Name})
}

func (h *ChatHandler) JoinRoomHandler(w http.ResponseWriter, r *http.Request) error {
	session := core.SessionFromRequest(r)
	if err := h.chatStore.JoinRoom(r.Context(), r.PathValue("roomID"), session.UserID); err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

type MarkReadResponse struct {
	ReadAt time.Time `json:"read_at"`
}

func (h *ChatHandler) MarkReadHandler(w http.ResponseWriter, r *http.Request) error {
	session := core.SessionFromRequest(r)
	roomID := r.PathValue("roomID")
	if _, err := h.requireMember(r, roomID); err != nil {
		return err
	}

	readAt, err := h.chatStore.MarkRoomRead(r.Context(), roomID, session.UserID)
	if err != nil {
		return err
	}
	return router.Json(w, http.StatusOK, MarkReadResponse{ReadAt: readAt})
}

// GetRoomMessagesHandler returns the room history oldest first.
// Without limit every message is returned.
func (h *ChatHandler) GetRoomMessagesHandler(w http.ResponseWriter, r *http.Request) error {
	roomID := r.PathValue("roomID")
	if _, err := h.requireMember(r, roomID); err != nil {
		return err
	}

	query := r.URL.Query()
	limit, _ := strconv.Atoi(query.Get("limit"))
	offset, _ := strconv.Atoi(query.Get("offset"))

	messages, err := h.chatStore.GetRoomMessages(r.Context(), roomID, offset, limit)
	if err != nil {
		return err
	}

	records := make([]roomsync.MessageRecord, 0, len(messages))
	for _, m := range messages {
		records = append(records, roomsync.NewRecord(m))
	}
	return router.Json(w, http.StatusOK, records)
}

type SendMessagePayload struct {
	Body          string                  `json:"body"`
	ReplyToID     string                  `json:"reply_to_id"`
	ReplySnapshot *roomsync.ReplySnapshot `json:"reply_snapshot"`
}

type SendMessageResponse struct {
	ID string `json:"id"`
}

func (h *ChatHandler) SendMessageHandler(w http.ResponseWriter, r *http.Request) error {
	session := core.SessionFromRequest(r)
	roomID := r.PathValue("roomID")
	if _, err := h.requireMember(r, roomID); err != nil {
		return err
	}

	var payload SendMessagePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		return errBadJson
	}
	r.Body.Close()

	message, err := h.chatStore.CreateMessage(r.Context(), core.MessageCreateInput{
		RoomID:    roomID,
		AuthorID:  session.UserID,
		Body:      payload.Body,
		ReplyToID: payload.ReplyToID,
		Reply:     payload.ReplySnapshot,
	})
	if err != nil {
		return err
	}

	h.publish(roomsync.EventInsert, *message)
	return router.Json(w, http.StatusCreated, SendMessageResponse{ID: message.ID})
}

type UpdateMessagePayload struct {
	Body string `json:"body"`
}

func (h *ChatHandler) UpdateMessageHandler(w http.ResponseWriter, r *http.Request) error {
	session := core.SessionFromRequest(r)

	var payload UpdateMessagePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		return errBadJson
	}
	r.Body.Close()

	message, err := h.chatStore.UpdateMessage(r.Context(), session.UserID, r.PathValue("messageID"), payload.Body)
	if err != nil {
		return err
	}

	h.publish(roomsync.EventUpdate, *message)
	return router.Json(w, http.StatusOK, roomsync.NewRecord(*message))
}

func (h *ChatHandler) DeleteMessageHandler(w http.ResponseWriter, r *http.Request) error {
	session := core.SessionFromRequest(r)

	message, err := h.chatStore.DeleteMessage(r.Context(), session.UserID, r.PathValue("messageID"))
	if err != nil {
		return err
	}

	h.publish(roomsync.EventDelete, *message)
	w.WriteHeader(http.StatusNoContent)
	return nil
}
