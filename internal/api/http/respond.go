// internal/api/http/respond.go
package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/mind-engage/cityprosperity/internal/city"
	"github.com/mind-engage/cityprosperity/internal/indicator"
	"github.com/mind-engage/cityprosperity/internal/record"
	"github.com/mind-engage/cityprosperity/internal/storage"
)

var validate = validator.New()

type errorBody struct {
	Error     string `json:"error"`
	Indicator string `json:"indicator,omitempty"`
	Field     string `json:"field,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps domain errors onto status codes:
// validation 400, unknown/not found 404, store 502.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var ve *indicator.ValidationError
	var se *record.StoreError
	switch {
	case errors.As(err, &ve):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: ve.Error(), Indicator: ve.Indicator, Field: ve.Field})
	case errors.Is(err, record.ErrInvalidKey):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
	case errors.Is(err, indicator.ErrUnknownIndicator), errors.Is(err, record.ErrNotFound),
		errors.Is(err, storage.ErrBlobNotFound):
		writeJSON(w, http.StatusNotFound, errorBody{Error: err.Error()})
	case errors.Is(err, city.ErrNoHistory):
		writeJSON(w, http.StatusNotImplemented, errorBody{Error: err.Error()})
	case errors.As(err, &se):
		log.Printf("%s %s: %v", r.Method, r.URL.Path, err)
		writeJSON(w, http.StatusBadGateway, errorBody{Error: "record store unavailable"})
	default:
		log.Printf("%s %s: %v", r.Method, r.URL.Path, err)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal error"})
	}
}

// decodeBody reads JSON into v and runs its validate tags.
func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return err
	}
	return validate.Struct(v)
}
