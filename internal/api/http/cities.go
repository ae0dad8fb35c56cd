// internal/api/http/cities.go
package http

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"

	authmw "github.com/mind-engage/cityprosperity/internal/auth/middleware"
	"github.com/mind-engage/cityprosperity/internal/city"
	"github.com/mind-engage/cityprosperity/internal/indicator"
	"github.com/mind-engage/cityprosperity/internal/rbac"
	"github.com/mind-engage/cityprosperity/internal/record"
)

// cityParams reads {country} and {city}, which may arrive percent-encoded.
func cityParams(r *http.Request) (cityName, country string) {
	unescape := func(s string) string {
		if u, err := url.PathUnescape(s); err == nil {
			return u
		}
		return s
	}
	return unescape(chi.URLParam(r, "city")), unescape(chi.URLParam(r, "country"))
}

// POST /cities/{country}/{city}/indicators/{key}  {"inputs": {...}}
func SubmitIndicatorHandler(svc *city.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name, country := cityParams(r)
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
		res, err := svc.SubmitIndicator(r.Context(), name, country, key, in, authmw.SubjectFromContext(r.Context()))
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

func GetCityHandler(svc *city.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name, country := cityParams(r)
		rec, err := svc.GetCity(r.Context(), name, country)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, rec)
	}
}

func AggregateHandler(svc *city.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name, country := cityParams(r)
		v, err := svc.GetAggregatedView(r.Context(), name, country)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, v)
	}
}

// GET /cities        own records
// GET /cities?all=1  every record (city:list_all)
func ListCitiesHandler(svc *city.Service) http.HandlerFunc {
	checker := rbac.NewChecker(nil)
	return func(w http.ResponseWriter, r *http.Request) {
		var (
			recs []record.Record
			err  error
		)
		if all, _ := strconv.ParseBool(r.URL.Query().Get("all")); all {
			if !checker.Has(rbac.RoleFromContext(r.Context()), "city:list_all") {
				rbac.Forbidden(w)
				return
			}
			recs, err = svc.ListAllCities(r.Context())
		} else {
			recs, err = svc.ListCities(r.Context(), authmw.SubjectFromContext(r.Context()))
		}
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, recs)
	}
}

type compareQuery struct {
	Cities []string `validate:"required,min=1,max=20,dive,required"`
}

// GET /cities/compare?city=Lima:Peru&city=Quito:Ecuador
func CompareCitiesHandler(svc *city.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := compareQuery{Cities: r.URL.Query()["city"]}
		if err := validate.Struct(q); err != nil {
			http.Error(w, "city=City:Country required (1-20)", http.StatusBadRequest)
			return
		}
		keys := make([]record.Key, 0, len(q.Cities))
		for _, s := range q.Cities {
			k, err := record.ParseKey(s)
			if err != nil {
				writeError(w, r, err)
				return
			}
			keys = append(keys, k)
		}
		recs, err := svc.CompareCities(r.Context(), keys)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, recs)
	}
}

func DeleteCityHandler(svc *city.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name, country := cityParams(r)
		if err := svc.DeleteCity(r.Context(), name, country); err != nil {
			writeError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func HistoryHandler(svc *city.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name, country := cityParams(r)
		limit := parseIntDefault(r.URL.Query().Get("limit"), 50)
		evs, err := svc.History(r.Context(), name, country, limit)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, evs)
	}
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if v, err := strconv.Atoi(s); err == nil && v >= 0 {
		return v
	}
	return def
}
