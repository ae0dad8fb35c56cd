// internal/api/http/indicators.go
package http

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mind-engage/cityprosperity/internal/city"
	"github.com/mind-engage/cityprosperity/internal/indicator"
)

// inputsRequest is the body of preview and submit calls.
type inputsRequest struct {
	Inputs map[string]any `json:"inputs" validate:"required"`
}

func ListIndicatorsHandler(svc *city.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, svc.Catalog().List())
	}
}

func HierarchyHandler(svc *city.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, svc.Hierarchy())
	}
}

// POST /indicators/{key}/preview  {"inputs": {...}}
func PreviewHandler(svc *city.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := chi.URLParam(r, "key")
		if !svc.Catalog().Has(key) {
			writeError(w, r, fmt.Errorf("%w: %s", indicator.ErrUnknownIndicator, key))
			return
		}
		var req inputsRequest
		if err := decodeBody(r, &req); err != nil {
			http.Error(w, "bad json: "+err.Error(), http.StatusBadRequest)
			return
		}
		in, err := indicator.NumericInputs(key, req.Inputs)
		if err != nil {
			writeError(w, r, err)
			return
		}
		res, err := svc.Preview(key, in)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}
