package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/supplai-io/supplai/internal/models"
)

// GuardMode selects how a guard rejects a request: pages redirect, the JSON api answers with
// an error status.
type GuardMode int

const (
	Pages GuardMode = iota
	JSON
)

const (
	currentUserKey         = "supplai/user"
	currentOrganizationKey = "supplai/organization"
	currentMembershipKey   = "supplai/membership"
)

var errUserNotFound = errors.New("user not found")

func currentUser(c *gin.Context) (*models.User, bool) {
	v, ok := c.Get(currentUserKey)
	if !ok {
		return nil, false
	}
	user, ok := v.(*models.User)
	return user, ok
}

func currentOrganization(c *gin.Context) (*models.Organization, bool) {
	v, ok := c.Get(currentOrganizationKey)
	if !ok {
		return nil, false
	}
	org, ok := v.(*models.Organization)
	return org, ok
}

func currentMembership(c *gin.Context) (*models.Membership, bool) {
	v, ok := c.Get(currentMembershipKey)
	if !ok {
		return nil, false
	}
	m, ok := v.(*models.Membership)
	return m, ok
}

// loadSessionUser resolves the user of the session cookie.  A session that points at a deleted
// user is treated like no session at all.
func (api *API) loadSessionUser(c *gin.Context) (*models.User, error) {
	userID, err := api.sessionUserID(c)
	if err != nil {
		return nil, err
	}
	var user models.User
	result := api.db.WithContext(c.Request.Context()).First(&user, "id = ?", userID)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, errUserNotFound
		}
		return nil, result.Error
	}
	return &user, nil
}

// RequireUser rejects requests without a signed in user.  Pages redirect to /login and remember
// the requested path, the api answers 401.
func (api *API) RequireUser(mode GuardMode) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := tracer.Start(c.Request.Context(), "RequireUser")
		defer span.End()

		user, err := api.loadSessionUser(c)
		if err != nil && !errors.Is(err, errNoSession) && !errors.Is(err, errUserNotFound) {
			api.SendInternalServerError(c, err)
			return
		}
		if user == nil {
			if mode == JSON {
				c.AbortWithStatusJSON(http.StatusUnauthorized, models.NewUnauthorizedError())
				return
			}
			next := ""
			if c.Request.Method == http.MethodGet {
				next = c.Request.URL.RequestURI()
			}
			c.Redirect(http.StatusFound, loginURL(next))
			c.Abort()
			return
		}

		span.SetAttributes(attribute.String("user_id", user.ID.String()))
		api.Logger(ctx).Debugw("session user", "user_id", user.ID)
		c.Set(gin.AuthUserKey, user.ID)
		c.Set(currentUserKey, user)
		c.Next()
	}
}

// RequireOrganization resolves the :slug path parameter and the membership of the current user in
// that organization.  It must run after RequireUser.  Unknown slugs are 404.  Non members are sent
// back to / on pages, the api answers 404 so the existence of the organization does not leak.
func (api *API) RequireOrganization(mode GuardMode) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := tracer.Start(c.Request.Context(), "RequireOrganization",
			trace.WithAttributes(attribute.String("slug", c.Param("slug"))))
		defer span.End()

		userID := api.GetCurrentUserID(c)
		db := api.db.WithContext(ctx)

		var org models.Organization
		if res := db.First(&org, "slug = ?", c.Param("slug")); res.Error != nil {
			if errors.Is(res.Error, gorm.ErrRecordNotFound) {
				if mode == JSON {
					c.AbortWithStatusJSON(http.StatusNotFound, models.NewNotFoundError("organization"))
				} else {
					api.renderNotFoundPage(c)
				}
				return
			}
			api.SendInternalServerError(c, res.Error)
			return
		}

		var membership models.Membership
		if res := db.First(&membership, "organization_id = ? AND user_id = ?", org.ID, userID); res.Error != nil {
			if errors.Is(res.Error, gorm.ErrRecordNotFound) {
				if mode == JSON {
					c.AbortWithStatusJSON(http.StatusNotFound, models.NewNotFoundError("organization"))
				} else {
					c.Redirect(http.StatusFound, "/")
					c.Abort()
				}
				return
			}
			api.SendInternalServerError(c, res.Error)
			return
		}

		c.Set(currentOrganizationKey, &org)
		c.Set(currentMembershipKey, &membership)
		c.Next()
	}
}

// RequireAdmin only lets organization admins through.  It must run after RequireOrganization.
func (api *API) RequireAdmin(mode GuardMode) gin.HandlerFunc {
	return api.RequireRole(mode, models.RoleAdmin)
}

// RequireRole only lets members with one of the roles through.
func (api *API) RequireRole(mode GuardMode, roles ...models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		m, ok := currentMembership(c)
		if ok && m.Role.Allows(roles...) {
			c.Next()
			return
		}
		if mode == JSON {
			c.AbortWithStatusJSON(http.StatusForbidden, models.NewNotAllowedError("your role does not allow this operation"))
			return
		}
		c.Redirect(http.StatusFound, "/")
		c.Abort()
	}
}

// Home sends the signed in user to the first organization they joined, or to onboarding when they
// have none.  It must run after RequireUser.
func (api *API) Home(c *gin.Context) {
	ctx, span := tracer.Start(c.Request.Context(), "Home")
	defer span.End()

	userID := api.GetCurrentUserID(c)
	org, err := api.firstOrganization(c, userID)
	if err != nil {
		api.SendInternalServerError(c, err)
		return
	}
	if org == nil {
		api.Logger(ctx).Debugw("user has no organization", "user_id", userID)
		c.Redirect(http.StatusFound, "/onboarding")
		return
	}
	c.Redirect(http.StatusFound, "/org/"+org.Slug)
}

// firstOrganization returns the oldest organization the user is a member of, nil when there is none.
func (api *API) firstOrganization(c *gin.Context, userID uuid.UUID) (*models.Organization, error) {
	var org models.Organization
	res := api.db.WithContext(c.Request.Context()).
		Joins("JOIN memberships ON memberships.organization_id = organizations.id").
		Where("memberships.user_id = ?", userID).
		Order("memberships.created_at ASC").
		First(&org)
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, res.Error
	}
	return &org, nil
}
