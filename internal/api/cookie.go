package api

import (
	"errors"
	"net/http"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
)

// The browser only ever holds a signed session id; all session state lives
// in the store. Keeping the signing key stable across restarts keeps old
// cookies valid, which is what lets a participant resume a study after a
// redeploy.
const sessionCookieName = "pairwise_sid"

const sessionCookieTTL = 30 * 24 * time.Hour

type sessionClaims struct {
	SID string `json:"sid"`
	jwt.RegisteredClaims
}

func signSessionID(secret []byte, sid string, now time.Time) (string, error) {
	claims := sessionClaims{
		SID: sid,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(sessionCookieTTL)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

func parseSessionID(secret []byte, token string) (string, error) {
	t, err := jwt.ParseWithClaims(token, &sessionClaims{}, func(t *jwt.Token) (interface{}, error) { return secret, nil })
	if err != nil {
		return "", err
	}
	if c, ok := t.Claims.(*sessionClaims); ok && t.Valid && c.SID != "" {
		return c.SID, nil
	}
	return "", errors.New("invalid session token")
}

func (rt *Router) setSessionCookie(w http.ResponseWriter, sid string) error {
	tok, err := signSessionID([]byte(rt.cfg.SessionSecret), sid, rt.now())
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    tok,
		Path:     "/",
		MaxAge:   int(sessionCookieTTL / time.Second),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// sessionIDFromRequest extracts a verified session id, or "" when the
// request carries no usable cookie.
func (rt *Router) sessionIDFromRequest(r *http.Request) string {
	c, err := r.Cookie(sessionCookieName)
	if err != nil || c.Value == "" {
		return ""
	}
	sid, err := parseSessionID([]byte(rt.cfg.SessionSecret), c.Value)
	if err != nil {
		return ""
	}
	return sid
}
