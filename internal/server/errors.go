package server

import (
	"errors"
	"net/http"

	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
)

// errResponse is the JSON body of every failed request.
type errResponse struct {
	Status  int          `json:"-"`
	Message string       `json:"error"`
	Code    string       `json:"code,omitempty"`
	Fields  []fieldError `json:"fields,omitempty"`
	Hint    string       `json:"hint,omitempty"`
}

type fieldError struct {
	Field string `json:"field"`
	Rule  string `json:"rule"`
}

// Render implements render.Renderer.
func (e *errResponse) Render(w http.ResponseWriter, r *http.Request) error {
	render.Status(r, e.Status)
	return nil
}

func errBadRequest(err error) *errResponse {
	return &errResponse{Status: http.StatusBadRequest, Code: "INVALID_REQUEST", Message: err.Error()}
}

func errValidation(err error) *errResponse {
	resp := &errResponse{Status: http.StatusBadRequest, Code: "VALIDATION_FAILED", Message: "request validation failed"}
	var ve validator.ValidationErrors
	if errors.As(err, &ve) {
		for _, fe := range ve {
			resp.Fields = append(resp.Fields, fieldError{Field: fe.Namespace(), Rule: fe.Tag()})
		}
	} else {
		resp.Message = err.Error()
	}
	return resp
}

func errUnprocessable(err error) *errResponse {
	return &errResponse{Status: http.StatusUnprocessableEntity, Code: "UNPROCESSABLE", Message: err.Error()}
}

func errUnavailable(msg string) *errResponse {
	return &errResponse{Status: http.StatusServiceUnavailable, Code: "SERVICE_UNAVAILABLE", Message: msg}
}

func errUpstream(err error, hint string) *errResponse {
	return &errResponse{Status: http.StatusBadGateway, Code: "UPSTREAM_FAILED", Message: err.Error(), Hint: hint}
}
