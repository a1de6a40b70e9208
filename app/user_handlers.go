package app

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/putto11262002/gymchat/core"
	"github.com/putto11262002/gymchat/pkg/roomsync"
	"github.com/putto11262002/gymchat/pkg/router"
)

// maxProfileBatch caps the ids of one profile lookup.
const maxProfileBatch = 100

type UserHandler struct {
	store   core.UserStore
	isAdmin func(username string) bool
}

func NewUserHandler(store core.UserStore, isAdmin func(username string) bool) *UserHandler {
	return &UserHandler{store: store, isAdmin: isAdmin}
}

type CreateUserResponse struct {
	ID string `json:"id"`
}

func (h *UserHandler) RegisterUserHandler(w http.ResponseWriter, r *http.Request) error {
	var user core.User
	if err := json.NewDecoder(r.Body).Decode(&user); err != nil {
		return errBadJson
	}
	defer r.Body.Close()

	if err := validate.Struct(user); err != nil {
		return invalidInput(err)
	}
	user.Role = roomsync.RoleUser
	if h.isAdmin != nil && h.isAdmin(user.Username) {
		user.Role = roomsync.RoleAdmin
	}

	id, err := h.store.CreateUser(r.Context(), user)
	if err != nil {
		return err
	}

	return router.Json(w, http.StatusCreated, CreateUserResponse{ID: id})
}

func (h *UserHandler) MeHandler(w http.ResponseWriter, r *http.Request) error {
	session := core.SessionFromRequest(r)
	user, err := h.store.GetUserByID(r.Context(), session.UserID)
	if err != nil {
		return err
	}
	if user == nil {
		return router.NewJsonError(http.StatusNotFound, "user not found")
	}

	return router.Json(w, http.StatusOK, user)
}

// ProfilesHandler answers GET /profiles?ids=a,b with the profiles that exist.
func (h *UserHandler) ProfilesHandler(w http.ResponseWriter, r *http.Request) error {
	var ids []string
	for _, id := range strings.Split(r.URL.Query().Get("ids"), ",") {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	if len(ids) > maxProfileBatch {
		return router.NewJsonError(http.StatusBadRequest, "too many ids")
	}

	users, err := h.store.GetUsersByIDs(r.Context(), ids...)
	if err != nil {
		return err
	}

	profiles := make([]roomsync.AuthorProfile, 0, len(users))
	for _, u := range users {
		profiles = append(profiles, u.Profile())
	}
	return router.Json(w, http.StatusOK, profiles)
}

type SetRolePayload struct {
	Role roomsync.Role `json:"role"`
}

// SetRoleHandler lets an admin change the role of a user.
func (h *UserHandler) SetRoleHandler(w http.ResponseWriter, r *http.Request) error {
	session := core.SessionFromRequest(r)
	if session.Role != roomsync.RoleAdmin {
		return router.NewJsonError(http.StatusForbidden, core.ErrUnauthorized.Error())
	}

	var payload SetRolePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		return errBadJson
	}
	defer r.Body.Close()

	if err := h.store.SetRole(r.Context(), r.PathValue("userID"), payload.Role); err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}
