package handlers

import (
	"embed"
	"html/template"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/render"

	"github.com/supplai-io/supplai/internal/models"
)

//go:embed templates/*.html
var templatesFS embed.FS

// pageData is passed to every page template.
type pageData struct {
	Title        string
	User         *models.User
	Organization *models.Organization
	Role         models.Role
	Notice       string
	Error        string
	Next         string
	Form         any
	Data         any
}

var pageFuncs = template.FuncMap{
	// RoleGate renders the enclosed block only for the allowed roles:
	// {{ if RoleGate .Role "admin" }}...{{ end }}
	"RoleGate": func(role models.Role, allowed ...string) bool {
		roles := make([]models.Role, 0, len(allowed))
		for _, a := range allowed {
			roles = append(roles, models.Role(a))
		}
		return role.Allows(roles...)
	},
	"humanTime": func(t time.Time) string {
		return humanize.Time(t)
	},
	"humanDate": func(t *time.Time) string {
		if t == nil {
			return ""
		}
		return t.Format("Mon, 02 Jan 2006")
	},
	"quantity": humanize.Ftoa,
}

func parsePages() (*template.Template, error) {
	return template.New("pages").Funcs(pageFuncs).ParseFS(templatesFS, "templates/*.html")
}

// renderPage renders the named template, filling the fields every page shows from the gin context.
func (api *API) renderPage(c *gin.Context, status int, name string, data pageData) {
	if user, ok := currentUser(c); ok && data.User == nil {
		data.User = user
	}
	if org, ok := currentOrganization(c); ok && data.Organization == nil {
		data.Organization = org
	}
	if m, ok := currentMembership(c); ok && data.Role == "" {
		data.Role = m.Role
	}
	if data.Notice == "" && data.Error == "" {
		flash := api.popFlash(c)
		data.Notice = flash.Notice
		data.Error = flash.Error
	}
	c.Render(status, render.HTML{
		Template: api.pages,
		Name:     name,
		Data:     data,
	})
}

func (api *API) renderNotFoundPage(c *gin.Context) {
	api.renderPage(c, http.StatusNotFound, "error", pageData{
		Title: "Not found",
		Error: "The page you are looking for does not exist.",
	})
	c.Abort()
}

// safeNext only accepts local absolute paths as redirect targets.
func safeNext(next string) string {
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") {
		return "/"
	}
	u, err := url.Parse(next)
	if err != nil || u.IsAbs() || u.Host != "" {
		return "/"
	}
	return next
}

func loginURL(next string) string {
	if next == "" || next == "/" {
		return "/login"
	}
	return "/login?" + url.Values{"next": []string{next}}.Encode()
}

// sendPageInternalError logs err with the trace id and renders a generic error page.
func (api *API) sendPageInternalError(c *gin.Context, err error) {
	api.Logger(c.Request.Context()).Errorw("internal server error", "error", err)
	api.renderPage(c, http.StatusInternalServerError, "error", pageData{
		Title: "Something went wrong",
		Error: "We could not complete your request. Please try again.",
	})
	c.Abort()
}
