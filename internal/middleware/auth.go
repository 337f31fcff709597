package middleware

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/rallypoint/rallypoint/internal/auth"
	"github.com/rallypoint/rallypoint/internal/model"
	"github.com/rallypoint/rallypoint/internal/store"
)

// SessionCookieName is the cookie carrying the session token.
const SessionCookieName = "rallypoint_session"

// AccessConfig enables the bearer-token auth mode. When Issuer is empty
// only session cookies are accepted.
type AccessConfig struct {
	Issuer   string
	Verifier *auth.Verifier
}

// ResolveIdentity resolves the caller to a role before any handler runs.
// A valid session cookie or bearer token yields the stored user's role;
// everything else proceeds as guest. Handlers gate on the resolved role,
// never on credentials.
func ResolveIdentity(sessions *store.SessionStore, users *store.UserStore, access AccessConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ac := auth.AuthContext{Role: model.RoleGuest}

			if user := resolveUser(r, sessions, users, access); user != nil {
				ac.UserID = user.ID
				ac.Role = user.Role
				if user.OrgID != nil {
					ac.OrgID = *user.OrgID
				}
			}

			next.ServeHTTP(w, r.WithContext(auth.WithAuth(r.Context(), ac)))
		})
	}
}

func resolveUser(r *http.Request, sessions *store.SessionStore, users *store.UserStore, access AccessConfig) *model.User {
	ctx := r.Context()

	if cookie, err := r.Cookie(SessionCookieName); err == nil && cookie.Value != "" {
		sess, err := sessions.GetByToken(ctx, cookie.Value)
		if err == nil && sess != nil {
			user, err := users.GetByID(ctx, sess.UserID)
			if err == nil {
				return user
			}
		}
	}

	if access.Issuer != "" && access.Verifier != nil {
		if header := r.Header.Get("Authorization"); strings.HasPrefix(header, "Bearer ") {
			token := strings.TrimPrefix(header, "Bearer ")
			email, err := access.Verifier.Verify(ctx, token, access.Issuer)
			if err != nil {
				return nil
			}
			user, err := users.GetByEmail(ctx, email)
			if err != nil {
				return nil
			}
			return user
		}
	}

	return nil
}

// RequireAdmin rejects any caller not resolved to the admin role.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !auth.IsAdmin(r.Context()) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusForbidden)
			json.NewEncoder(w).Encode(map[string]string{"error": "Admin only"})
			return
		}
		next.ServeHTTP(w, r)
	})
}
