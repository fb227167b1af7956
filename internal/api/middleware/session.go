// Session cookie middleware.
// Reads the askbot_session cookie, verifies it and injects the session id into
// the request context. A missing, expired or tampered cookie starts a new
// session instead of failing the request: sessions are anonymous.
package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/matiasleandrokruk/askbot/internal/api/ctxkeys"
	pkgauth "github.com/matiasleandrokruk/askbot/pkg/auth"
	"github.com/matiasleandrokruk/askbot/pkg/uuid"
)

// SessionCookie is the cookie carrying the signed session token.
const SessionCookie = "askbot_session"

// SessionMiddleware resolves the caller's session.
//
// Flow:
//  1. Read the askbot_session cookie
//  2. Parse and verify the token; the sid claim must be a UUID
//  3. On any failure mint a new session id and set a fresh cookie
//  4. Inject ctxkeys.SessionID into context
//  5. Call next handler
func SessionMiddleware(signer *pkgauth.Signer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sid, ok := sessionFromCookie(signer, r)
			if !ok {
				var err error
				sid, err = startSession(w, r, signer)
				if err != nil {
					log.Error().Err(err).Msg("could not start session")
					writeSessionError(w)
					return
				}
			}
			ctx := ctxkeys.WithValue(r.Context(), ctxkeys.SessionID, sid)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// sessionFromCookie returns the verified session id, if any.
func sessionFromCookie(signer *pkgauth.Signer, r *http.Request) (string, bool) {
	c, err := r.Cookie(SessionCookie)
	if err != nil || c.Value == "" {
		return "", false
	}
	claims, err := signer.Parse(c.Value)
	if err != nil {
		log.Debug().Err(err).Msg("session cookie rejected")
		return "", false
	}
	if !uuid.Valid(claims.SessionID) {
		return "", false
	}
	return claims.SessionID, true
}

func startSession(w http.ResponseWriter, r *http.Request, signer *pkgauth.Signer) (string, error) {
	sid := uuid.NewV7().String()
	token, err := signer.Issue(sid)
	if err != nil {
		return "", err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   int(signer.TTL().Seconds()),
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
	return sid, nil
}

func writeSessionError(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusInternalServerError)
	json.NewEncoder(w).Encode(map[string]string{"error": "could not start session", "status": "error"}) //nolint:errcheck
}
