package middleware

import (
	"net/http"

	"github.com/dukerupert/barangay/internal/auth"
	"github.com/dukerupert/barangay/internal/store"
)

// SessionCookieName is the cookie carrying the session token.
const SessionCookieName = "barangay_session"

// RequireAuth validates the session cookie and populates AuthContext.
// HTMX-aware: returns HX-Redirect header instead of 303 redirect for HTMX requests.
func RequireAuth(sessions *store.SessionStore, operators *store.OperatorStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(SessionCookieName)
			if err != nil || cookie.Value == "" {
				redirectToLogin(w, r)
				return
			}

			sess, err := sessions.GetByToken(r.Context(), cookie.Value)
			if err != nil || sess == nil {
				redirectToLogin(w, r)
				return
			}

			// the account may have been deleted while the session lived
			op, err := operators.GetByID(r.Context(), sess.OperatorID)
			if err != nil || op == nil {
				redirectToLogin(w, r)
				return
			}

			ac := auth.AuthContext{
				OperatorID: op.ID,
				Username:   op.Username,
				Role:       op.Role,
				SessionID:  sess.ID,
			}
			annotate(r.Context(), op.Username)

			ctx := auth.WithAuth(r.Context(), ac)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAdmin checks that the authenticated operator has the admin role.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !auth.IsAdmin(r.Context()) {
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func redirectToLogin(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("HX-Request") == "true" {
		w.Header().Set("HX-Redirect", "/login")
		w.WriteHeader(http.StatusOK)
		return
	}
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}
