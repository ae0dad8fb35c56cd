// internal/auth/middleware/attach_role.go
package auth

import (
	"database/sql"
	"errors"
	"log"
	"net/http"

	"github.com/mind-engage/cityprosperity/internal/rbac"
)

// AttachRoleFromDB replaces the token's role with the one in the users table,
// so a demotion takes effect before the token expires. Deleted users are
// rejected. allowClaimFallback keeps the claim when the lookup itself fails
// (offline mode only).
func AttachRoleFromDB(db *sql.DB, allowClaimFallback bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			sub := SubjectFromContext(ctx)

			var role string
			err := db.QueryRowContext(ctx, `SELECT role FROM users WHERE id=$1`, sub).Scan(&role)

			switch {
			case err == nil && role != "":
				next.ServeHTTP(w, r.WithContext(rbac.WithRole(ctx, role)))

			case errors.Is(err, sql.ErrNoRows):
				rbac.Forbidden(w)

			default:
				log.Printf("attach role %s: %v", sub, err)
				if allowClaimFallback && rbac.RoleFromContext(ctx) != "" {
					next.ServeHTTP(w, r)
					return
				}
				rbac.Forbidden(w)
			}
		})
	}
}
