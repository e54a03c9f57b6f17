package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-session/session/v3"
	"github.com/google/uuid"
)

const (
	SESSION_ID_COOKIE_NAME = "sid"
	sessionUserKey         = "user_id"
	sessionLifetime        = 14 * 24 * time.Hour
)

var errNoSession = errors.New("no session")

// NewSessionManager creates the session manager used for browser logins.  store is either the
// in memory store or the redis store shared by every api server replica.
func NewSessionManager(store session.ManagerStore, secure bool) *session.Manager {
	return session.NewManager(
		session.SetCookieName(SESSION_ID_COOKIE_NAME),
		session.SetStore(store),
		session.SetSecure(secure),
		session.SetSameSite(http.SameSiteLaxMode),
		session.SetExpired(int64(sessionLifetime.Seconds())),
		session.SetCookieLifeTime(int(sessionLifetime.Seconds())),
	)
}

// sessionUserID returns the user id stored in the session of the request.  Requests without a
// session cookie never create a session, a cookie naming an unknown or expired session is cleared.
func (api *API) sessionUserID(c *gin.Context) (uuid.UUID, error) {
	if _, err := c.Request.Cookie(SESSION_ID_COOKIE_NAME); err != nil {
		return uuid.Nil, errNoSession
	}
	// Start hands out a new session id for an unknown one, that cookie must not reach the client
	ctx := c.Request.Context()
	store, err := api.sessionManager.Start(ctx, discardWriter{header: http.Header{}}, c.Request.Clone(ctx))
	if err != nil {
		return uuid.Nil, err
	}
	userID, ok := sessionValue(store)
	if !ok {
		api.clearSessionCookie(c)
		return uuid.Nil, errNoSession
	}
	return userID, nil
}

func sessionValue(store session.Store) (uuid.UUID, bool) {
	value, ok := store.Get(sessionUserKey)
	if !ok {
		return uuid.Nil, false
	}
	raw, ok := value.(string)
	if !ok {
		return uuid.Nil, false
	}
	userID, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, false
	}
	return userID, true
}

func (api *API) clearSessionCookie(c *gin.Context) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     SESSION_ID_COOKIE_NAME,
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   api.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

// discardWriter swallows what session.Manager writes while looking a session up.
type discardWriter struct {
	header http.Header
}

func (w discardWriter) Header() http.Header         { return w.header }
func (w discardWriter) Write(b []byte) (int, error) { return len(b), nil }
func (w discardWriter) WriteHeader(int)             {}

// startUserSession stores userID in a freshly issued session.  The session id is rotated so an id
// that was handed out before the login can not be used to ride the authenticated session.
func (api *API) startUserSession(ctx context.Context, w http.ResponseWriter, r *http.Request, userID uuid.UUID) error {
	store, err := api.sessionManager.Refresh(ctx, w, r)
	if err != nil {
		return err
	}
	store.Set(sessionUserKey, userID.String())
	return store.Save()
}

func (api *API) destroySession(c *gin.Context) error {
	if _, err := c.Request.Cookie(SESSION_ID_COOKIE_NAME); err != nil {
		return nil
	}
	return api.sessionManager.Destroy(c.Request.Context(), c.Writer, c.Request)
}
