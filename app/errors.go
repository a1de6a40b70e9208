package app

import (
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/putto11262002/gymchat/core"
	"github.com/putto11262002/gymchat/pkg/router"
)

var (
	errBadJson      = router.NewJsonError(http.StatusBadRequest, "malformed json")
	errRoomNotFound = router.NewJsonError(http.StatusNotFound, "room not found")
	errInvalidInput = router.NewJsonError(http.StatusBadRequest, "invalid input")
)

// invalidInput reports each failed field of a validation error by its json name.
func invalidInput(err error) router.JsonError {
	var errs validator.ValidationErrors
	if !errors.As(err, &errs) {
		return errInvalidInput
	}
	trans, _ := uniTrans.GetTranslator("en")
	fields := make(map[string]string, len(errs))
	for _, fe := range errs {
		fields[fe.Field()] = fe.Translate(trans)
	}
	return errInvalidInput.WithFields(fields)
}

// registerErrorMappers maps store errors to responses.
func registerErrorMappers(r *router.Router) {
	r.MapTo(core.ErrBadCredentials, http.StatusUnauthorized)
	r.MapTo(core.ErrUnauthenticated, http.StatusUnauthorized)
	r.MapTo(core.ErrUnauthorized, http.StatusForbidden)
	r.MapTo(core.ErrConflictedUser, http.StatusConflict)
	r.MapTo(core.ErrInvalidUser, http.StatusBadRequest)
	r.MapTo(core.ErrInvalidRoom, http.StatusNotFound)
	r.MapTo(core.ErrInvalidMessage, http.StatusBadRequest)
	r.MapTo(core.ErrMessageNotFound, http.StatusNotFound)
	r.MapTo(core.ErrNotRoomMember, http.StatusForbidden)
	r.MapTo(core.ErrDisAllowedOperation, http.StatusForbidden)
}
