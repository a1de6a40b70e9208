package router

import (
	"encoding/json"
	"io"
	"maps"
)

// Error is an error that carries its own status code and body.
type Error interface {
	error
	StatusCode() int
	Encode(w io.Writer) error
}

// JsonError is written as {"code": 400, "error": "...", "fields": {...}}.
// Fields is set for validation failures and maps a field to its problem.
type JsonError struct {
	Code   int               `json:"code"`
	Err    string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

func NewJsonError(code int, err string) JsonError {
	return JsonError{
		Code: code,
		Err:  err,
	}
}

// WithFields returns a copy of e that reports fields.
func (e JsonError) WithFields(fields map[string]string) JsonError {
	e.Fields = maps.Clone(fields)
	return e
}

func (e JsonError) StatusCode() int {
	return e.Code
}

func (e JsonError) Error() string {
	return e.Err
}

// Is matches on code and message so errors with different fields compare equal.
func (e JsonError) Is(target error) bool {
	t, ok := target.(JsonError)
	return ok && t.Code == e.Code && t.Err == e.Err
}

func (e JsonError) Encode(w io.Writer) error {
	return json.NewEncoder(w).Encode(e)
}
