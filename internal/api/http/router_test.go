package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mind-engage/cityprosperity/internal/auth"
	authmw "github.com/mind-engage/cityprosperity/internal/auth/middleware"
	"github.com/mind-engage/cityprosperity/internal/city"
	"github.com/mind-engage/cityprosperity/internal/db"
	"github.com/mind-engage/cityprosperity/internal/rbac"
	"github.com/mind-engage/cityprosperity/internal/record"
	"github.com/mind-engage/cityprosperity/internal/storage"
	syncx "github.com/mind-engage/cityprosperity/internal/sync"
)

type testEnv struct {
	srv    *httptest.Server
	tokens map[string]string // role -> bearer token
}

func newEnv(t *testing.T, store record.Store, limiter *SubmitLimiter) *testEnv {
	t.Helper()
	ctx := context.Background()
	conn, err := db.Open(ctx, db.DriverSQLite, "file::memory:")
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	users := auth.NewUsers(conn)
	a := authmw.NewAuthService("router-test-secret-0123", time.Hour)
	svc := city.NewService(store,
		city.WithEventLog(syncx.NewEventRepo(conn)),
		city.WithLogger(log.New(io.Discard, "", 0)),
	)

	env := &testEnv{tokens: map[string]string{}}
	for _, role := range []string{rbac.RoleViewer, rbac.RoleAnalyst, rbac.RoleAdmin} {
		u, err := users.Create(ctx, role+"-user", "password123", role)
		require.NoError(t, err)
		tok, err := a.IssueJWT(u.ID, role)
		require.NoError(t, err)
		env.tokens[role] = tok
	}

	bs, err := storage.NewFSStore(t.TempDir())
	require.NoError(t, err)

	env.srv = httptest.NewServer(NewRouter(Deps{
		Service: svc, Auth: a, Users: users, DB: conn, Limiter: limiter, Blobs: bs,
		CORSOrigins: []string{"http://localhost:3000"},
	}))
	t.Cleanup(env.srv.Close)
	return env
}

func (e *testEnv) do(t *testing.T, role, method, path string, body any) (*http.Response, []byte) {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, e.srv.URL+path, rd)
	require.NoError(t, err)
	if tok := e.tokens[role]; tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	out, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, out
}

func inputs(kv map[string]any) map[string]any { return map[string]any{"inputs": kv} }

func TestSubmitAggregateFlow(t *testing.T) {
	env := newEnv(t, record.NewMemoryStore(), nil)

	resp, body := env.do(t, rbac.RoleAnalyst, http.MethodPost, "/cities/Rwanda/Kigali/indicators/women_in_local_government",
		inputs(map[string]any{"women_in_gov_jobs": 50, "total_gov_jobs": 100}))
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	assert.JSONEq(t, `{"raw":50,"standardized":100,"comment":"VERY SOLID"}`, string(body))

	resp, body = env.do(t, rbac.RoleViewer, http.MethodGet, "/cities/Rwanda/Kigali/aggregate", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var view struct {
		City      string `json:"city"`
		Composite struct {
			Index  map[string]any `json:"index"`
			NoData []string       `json:"no_data"`
		} `json:"composite"`
	}
	require.NoError(t, json.Unmarshal(body, &view))
	assert.Equal(t, "Kigali", view.City)
	assert.Equal(t, "scored", view.Composite.Index["status"])
	assert.Equal(t, 100.0, view.Composite.Index["average"])
	assert.Contains(t, view.Composite.NoData, "productivity")

	resp, body = env.do(t, rbac.RoleViewer, http.MethodGet, "/cities/Rwanda/Kigali", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var rec record.Record
	require.NoError(t, json.Unmarshal(body, &rec))
	assert.Equal(t, "VERY SOLID", rec.Fields["women_in_local_government_comment"])

	resp, body = env.do(t, rbac.RoleViewer, http.MethodGet, "/cities/Rwanda/Kigali/history", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var evs []syncx.Event
	require.NoError(t, json.Unmarshal(body, &evs))
	require.Len(t, evs, 1)
	assert.Equal(t, syncx.TypeIndicatorSubmitted, evs[0].Type)
}

func TestValidationErrorBody(t *testing.T) {
	env := newEnv(t, record.NewMemoryStore(), nil)

	resp, body := env.do(t, rbac.RoleAnalyst, http.MethodPost, "/cities/Peru/Lima/indicators/poverty_rate",
		inputs(map[string]any{"population_below_poverty_line": 10, "total_population": 0}))
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	var e errorBody
	require.NoError(t, json.Unmarshal(body, &e))
	assert.Equal(t, "poverty_rate", e.Indicator)
	assert.Equal(t, "total_population", e.Field)

	resp, body = env.do(t, rbac.RoleAnalyst, http.MethodPost, "/cities/Peru/Lima/indicators/poverty_rate",
		inputs(map[string]any{"population_below_poverty_line": "ten", "total_population": 100}))
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.NoError(t, json.Unmarshal(body, &e))
	assert.Equal(t, "population_below_poverty_line", e.Field)

	resp, _ = env.do(t, rbac.RoleAnalyst, http.MethodPost, "/cities/Peru/Lima/indicators/not_an_indicator",
		inputs(map[string]any{"x": 1}))
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	// nothing was stored
	resp, _ = env.do(t, rbac.RoleViewer, http.MethodGet, "/cities/Peru/Lima", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestPreviewAndCatalog(t *testing.T) {
	env := newEnv(t, record.NewMemoryStore(), nil)

	resp, body := env.do(t, rbac.RoleViewer, http.MethodPost, "/indicators/pm25_concentration/preview",
		inputs(map[string]any{"pm25": 8}))
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	assert.JSONEq(t, `{"raw":8,"standardized":100,"comment":"VERY SOLID"}`, string(body))

	resp, body = env.do(t, rbac.RoleViewer, http.MethodGet, "/indicators", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var defs []map[string]any
	require.NoError(t, json.Unmarshal(body, &defs))
	assert.NotEmpty(t, defs)

	resp, _ = env.do(t, rbac.RoleViewer, http.MethodGet, "/hierarchy", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRoleGates(t *testing.T) {
	env := newEnv(t, record.NewMemoryStore(), nil)

	resp, _ := env.do(t, "", http.MethodGet, "/cities", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = env.do(t, rbac.RoleViewer, http.MethodPost, "/cities/Peru/Lima/indicators/gini_coefficient",
		inputs(map[string]any{"gini": 0.4}))
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, body := env.do(t, rbac.RoleAnalyst, http.MethodGet, "/cities?all=true", nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.JSONEq(t, `{"error":"forbidden"}`, string(body))

	resp, _ = env.do(t, rbac.RoleAnalyst, http.MethodDelete, "/cities/Peru/Lima", nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, _ = env.do(t, rbac.RoleAnalyst, http.MethodPost, "/users",
		map[string]any{"username": "x", "password": "password123", "role": "viewer"})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestListCompareDelete(t *testing.T) {
	env := newEnv(t, record.NewMemoryStore(), nil)
	for _, c := range []string{"/cities/Peru/Lima", "/cities/Ecuador/Quito", "/cities/C%C3%B4te%20d%27Ivoire/Abidjan"} {
		resp, body := env.do(t, rbac.RoleAnalyst, http.MethodPost, c+"/indicators/gini_coefficient",
			inputs(map[string]any{"gini": 0.35}))
		require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	}

	resp, body := env.do(t, rbac.RoleAnalyst, http.MethodGet, "/cities", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var recs []record.Record
	require.NoError(t, json.Unmarshal(body, &recs))
	assert.Len(t, recs, 3)

	resp, body = env.do(t, rbac.RoleAdmin, http.MethodGet, "/cities", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(body, &recs))
	assert.Empty(t, recs, "admin submitted nothing")

	resp, body = env.do(t, rbac.RoleAdmin, http.MethodGet, "/cities?all=1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(body, &recs))
	assert.Len(t, recs, 3)

	q := url.Values{"city": {"Quito:Ecuador", "Abidjan:Côte d'Ivoire"}}
	resp, body = env.do(t, rbac.RoleViewer, http.MethodGet, "/cities/compare?"+q.Encode(), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	require.NoError(t, json.Unmarshal(body, &recs))
	require.Len(t, recs, 2)
	assert.Equal(t, "Quito", recs[0].City)
	assert.Equal(t, "Abidjan", recs[1].City)

	resp, _ = env.do(t, rbac.RoleViewer, http.MethodGet, "/cities/compare", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = env.do(t, rbac.RoleViewer, http.MethodGet, "/cities/compare?city=Nowhere:Land", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = env.do(t, rbac.RoleAdmin, http.MethodDelete, "/cities/Peru/Lima", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp, _ = env.do(t, rbac.RoleAdmin, http.MethodDelete, "/cities/Peru/Lima", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

// brokenStore fails every read and write with a StoreError.
type brokenStore struct{ record.Store }

func (brokenStore) Merge(context.Context, record.Key, string, map[string]any) (record.Record, error) {
	return record.Record{}, &record.StoreError{Op: "merge", Err: io.ErrUnexpectedEOF}
}

func (brokenStore) Get(context.Context, record.Key) (record.Record, error) {
	return record.Record{}, &record.StoreError{Op: "get", Err: io.ErrUnexpectedEOF}
}

func TestStoreErrorIs502(t *testing.T) {
	env := newEnv(t, brokenStore{record.NewMemoryStore()}, nil)

	resp, _ := env.do(t, rbac.RoleAnalyst, http.MethodPost, "/cities/Peru/Lima/indicators/gini_coefficient",
		inputs(map[string]any{"gini": 0.4}))
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)

	resp, _ = env.do(t, rbac.RoleViewer, http.MethodGet, "/cities/Peru/Lima/aggregate", nil)
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
}

func TestSubmitRateLimit(t *testing.T) {
	env := newEnv(t, record.NewMemoryStore(), NewSubmitLimiter(0.001, 2))
	path := "/cities/Peru/Lima/indicators/gini_coefficient"
	body := inputs(map[string]any{"gini": 0.4})

	for i := 0; i < 2; i++ {
		resp, _ := env.do(t, rbac.RoleAnalyst, http.MethodPost, path, body)
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}
	resp, _ := env.do(t, rbac.RoleAnalyst, http.MethodPost, path, body)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("Retry-After"))

	// buckets are per subject
	resp, _ = env.do(t, rbac.RoleAdmin, http.MethodPost, path, body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestLoginAndCreateUser(t *testing.T) {
	env := newEnv(t, record.NewMemoryStore(), nil)

	resp, body := env.do(t, rbac.RoleAdmin, http.MethodPost, "/users",
		map[string]any{"username": "dora", "password": "password123", "role": "analyst"})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))

	resp, _ = env.do(t, rbac.RoleAdmin, http.MethodPost, "/users",
		map[string]any{"username": "dora", "password": "password123", "role": "analyst"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, _ = env.do(t, rbac.RoleAdmin, http.MethodPost, "/users",
		map[string]any{"username": "eve", "password": "short", "role": "analyst"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body = env.do(t, "", http.MethodPost, "/auth/login", map[string]any{"username": "dora", "password": "password123"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var out struct {
		AccessToken string `json:"access_token"`
		Role        string `json:"role"`
	}
	require.NoError(t, json.Unmarshal(body, &out))
	assert.Equal(t, rbac.RoleAnalyst, out.Role)
	assert.NotEmpty(t, out.AccessToken)
}

func TestReportExportAndFetch(t *testing.T) {
	env := newEnv(t, record.NewMemoryStore(), nil)
	resp, body := env.do(t, rbac.RoleAnalyst, http.MethodPost, "/cities/C%C3%B4te%20d%27Ivoire/Abidjan/indicators/gini_coefficient",
		inputs(map[string]any{"gini": 0.24}))
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	resp, _ = env.do(t, rbac.RoleViewer, http.MethodPost, "/cities/C%C3%B4te%20d%27Ivoire/Abidjan/report", nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, body = env.do(t, rbac.RoleAnalyst, http.MethodPost, "/cities/C%C3%B4te%20d%27Ivoire/Abidjan/report", nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	var out struct {
		Key string `json:"key"`
	}
	require.NoError(t, json.Unmarshal(body, &out))
	assert.Regexp(t, `^reports/côte-d-ivoire/abidjan-[0-9a-f]{16}\.json$`, out.Key)

	resp, body = env.do(t, rbac.RoleViewer, http.MethodGet, "/reports", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var listed []string
	require.NoError(t, json.Unmarshal(body, &listed))
	assert.Equal(t, []string{out.Key}, listed)

	resp, body = env.do(t, rbac.RoleViewer, http.MethodGet, (&url.URL{Path: "/" + out.Key}).EscapedPath(), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var v city.View
	require.NoError(t, json.Unmarshal(body, &v))
	assert.Equal(t, "Abidjan", v.City)

	resp, _ = env.do(t, rbac.RoleViewer, http.MethodGet, "/reports/nowhere/none.json", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = env.do(t, rbac.RoleAnalyst, http.MethodPost, "/cities/Peru/Lima/report", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
