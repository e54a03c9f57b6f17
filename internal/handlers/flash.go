package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

const (
	flashCookieName = "supplai_flash"
	flashMaxAge     = 5 * time.Minute
)

// flashMessage survives exactly one redirect.
type flashMessage struct {
	Notice string `json:"notice,omitempty"`
	Error  string `json:"error,omitempty"`
}

func (api *API) setFlash(c *gin.Context, msg flashMessage) {
	encoded, err := api.flash.Encode(flashCookieName, msg)
	if err != nil {
		api.Logger(c.Request.Context()).Warnw("failed to encode flash message", "error", err)
		return
	}
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     flashCookieName,
		Value:    encoded,
		Path:     "/",
		MaxAge:   int(flashMaxAge.Seconds()),
		HttpOnly: true,
		Secure:   api.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

// popFlash reads and clears the flash message of the request.  Tampered cookies are ignored.
func (api *API) popFlash(c *gin.Context) flashMessage {
	var msg flashMessage
	cookie, err := c.Request.Cookie(flashCookieName)
	if err != nil {
		return msg
	}
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     flashCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   api.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	if err := api.flash.Decode(flashCookieName, cookie.Value, &msg); err != nil {
		return flashMessage{}
	}
	return msg
}

func (api *API) redirectWithNotice(c *gin.Context, location string, notice string) {
	api.setFlash(c, flashMessage{Notice: notice})
	c.Redirect(http.StatusFound, location)
}
