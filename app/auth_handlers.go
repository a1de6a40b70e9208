package app

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/putto11262002/gymchat/core"
	"github.com/putto11262002/gymchat/pkg/router"
)

type AuthHandler struct {
	store core.AuthStore
	// secure marks the session cookie Secure.
	secure bool
}

func NewAuthHandler(store core.AuthStore, secure bool) *AuthHandler {
	return &AuthHandler{store: store, secure: secure}
}

type SigninPayload struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *AuthHandler) SigninHandler(w http.ResponseWriter, r *http.Request) error {
	var payload SigninPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		return errBadJson
	}
	defer r.Body.Close()

	session, err := h.store.NewSession(r.Context(), payload.Username, payload.Password)
	if err != nil {
		return err
	}

	cookie := core.CookieFromSession(*session, true, "/")
	cookie.Secure = h.secure
	http.SetCookie(w, cookie)
	return router.Json(w, http.StatusOK, session)
}

func (h *AuthHandler) SignoutHandler(w http.ResponseWriter, r *http.Request) error {
	session := core.SessionFromRequest(r)
	if err := h.store.DestroySession(r.Context(), session); err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     core.AuthCookieName,
		Value:    "",
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   h.secure,
		Path:     "/",
	})
	w.WriteHeader(http.StatusOK)
	return nil
}
