package router

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_ErrorMapper(t *testing.T) {
	router := New()

	custom := errors.New("custom error")
	router.RegisterErrorMapper(custom, func(err error) Error {
		return JsonError{
			Code: 400,
			Err:  err.Error(),
		}
	})

	tcs := []struct {
		name string
		err  error
		exp  Error
	}{
		{
			name: "registered error",
			err:  custom,
			exp:  JsonError{Code: 400, Err: "custom error"},
		},
		{
			name: "wrapped registered error",
			err:  fmt.Errorf("CreateRoom: %w", custom),
			exp:  JsonError{Code: 400, Err: "CreateRoom: custom error"},
		},
		{
			name: "unknown error",
			err:  errors.New("random error"),
			exp:  router.defaultError,
		},
		{
			name: "api error",
			err:  JsonError{Code: 400, Err: "API Error"},
			exp:  JsonError{Code: 400, Err: "API Error"},
		},
	}

	for _, tc := range tcs {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.exp, router.mapError(tc.err))
		})
	}
}

func TestRouteKeepsMappers(t *testing.T) {
	router := New()
	notFound := errors.New("not found")
	router.MapTo(notFound, http.StatusNotFound)

	router.Route("/api", func(r *Router) {
		r.Get("/thing", func(w http.ResponseWriter, r *http.Request) error {
			return fmt.Errorf("lookup: %w", notFound)
		})
		r.Patch("/thing", func(w http.ResponseWriter, r *http.Request) error {
			return Json(w, http.StatusOK, map[string]string{"ok": "yes"})
		})
	})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/thing", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body JsonError
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "lookup: not found", body.Err)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPatch, "/api/thing", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
