package rbac

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultPolicy(t *testing.T) {
	c := NewChecker(nil)

	assert.True(t, c.Has(RoleViewer, "city:view"))
	assert.False(t, c.Has(RoleViewer, "city:submit"))
	assert.True(t, c.Has(RoleAnalyst, "city:submit"))
	assert.False(t, c.Has(RoleAnalyst, "city:delete"))
	assert.True(t, c.Has(RoleAdmin, "city:delete"))
	assert.True(t, c.Has(RoleAdmin, "users:manage"))
	assert.False(t, c.Has("guest", "city:view"))

	assert.True(t, c.Any(RoleViewer, "city:list_all", "city:view"))
	assert.False(t, c.Any(RoleViewer, "city:list_all", "city:delete"))
}

func TestWildcardPattern(t *testing.T) {
	c := NewChecker(map[string][]string{"auditor": {"city:*"}})
	assert.True(t, c.Has("auditor", "city:list_all"))
	assert.False(t, c.Has("auditor", "users:manage"))
}

func TestRequire(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) })
	h := Require("city:submit")(ok)

	for role, want := range map[string]int{
		"":          http.StatusForbidden,
		RoleViewer:  http.StatusForbidden,
		RoleAnalyst: http.StatusNoContent,
		RoleAdmin:   http.StatusNoContent,
	} {
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		req = req.WithContext(WithRole(req.Context(), role))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, want, rec.Code, "role %q", role)
	}
}

func TestForbiddenBodyIsJSON(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) })
	h := RequireAny("city:delete", "users:manage")(ok)

	req := httptest.NewRequest(http.MethodDelete, "/", nil)
	req = req.WithContext(WithRole(req.Context(), RoleAnalyst))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"error":"forbidden"}`, rec.Body.String())
}

func TestValidRole(t *testing.T) {
	assert.True(t, ValidRole("analyst"))
	assert.False(t, ValidRole("student"))
}
