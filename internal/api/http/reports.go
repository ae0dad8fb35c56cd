// internal/api/http/reports.go
package http

import (
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/mind-engage/cityprosperity/internal/city"
	"github.com/mind-engage/cityprosperity/internal/storage"
)

// POST /cities/{country}/{city}/report
func ExportReportHandler(svc *city.Service, bs storage.BlobStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name, country := cityParams(r)
		key, err := svc.ExportReport(r.Context(), name, country, bs)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]string{"key": key})
	}
}

// MountReports serves stored snapshots under the router it is given.
func MountReports(r chi.Router, svc *city.Service, bs storage.BlobStore) {
	// GET /reports
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		keys, err := svc.Reports(bs)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, keys)
	})

	// GET /reports/*   -> the snapshot at whatever follows /reports/
	r.Get("/*", func(w http.ResponseWriter, r *http.Request) {
		key := "reports/" + strings.TrimPrefix(chi.URLParam(r, "*"), "/")
		rc, err := bs.Get(key)
		if err != nil {
			writeError(w, r, err)
			return
		}
		defer rc.Close()
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.Copy(w, rc)
	})
}
