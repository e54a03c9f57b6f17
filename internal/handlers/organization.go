package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/supplai-io/supplai/internal/database"
	"github.com/supplai-io/supplai/internal/models"
	"github.com/supplai-io/supplai/internal/util"
)

const (
	maxOrganizationNameLength = 120
	// createOrganizationAttempts bounds the retries when a concurrent request takes the chosen slug
	createOrganizationAttempts = 3
)

var (
	errOrganizationNameRequired = errors.New("organization name is required")
	errOrganizationNameTooLong  = fmt.Errorf("organization name must be at most %d characters", maxOrganizationNameLength)
)

// uniqueSlug returns base, or base with the lowest numeric suffix not in use.  Deleted
// organizations keep their slug.
func uniqueSlug(tx *gorm.DB, base string) (string, error) {
	var taken []string
	res := tx.Unscoped().Model(&models.Organization{}).
		Where("slug = ? OR slug LIKE ?", base, base+"-%").
		Pluck("slug", &taken)
	if res.Error != nil {
		return "", res.Error
	}
	used := make(map[string]struct{}, len(taken))
	for _, s := range taken {
		used[s] = struct{}{}
	}
	if _, ok := used[base]; !ok {
		return base, nil
	}
	for i := 2; ; i++ {
		suffix := fmt.Sprintf("-%d", i)
		candidate := base
		if len(candidate)+len(suffix) > util.MaxSlugLength {
			candidate = strings.TrimRight(candidate[:util.MaxSlugLength-len(suffix)], "-")
		}
		candidate += suffix
		if _, ok := used[candidate]; !ok {
			return candidate, nil
		}
	}
}

// createOrganization stores the organization and makes the owner its admin in one admin client
// transaction.
func (api *API) createOrganization(ctx context.Context, ownerID uuid.UUID, request models.AddOrganization) (models.Organization, error) {
	name := strings.TrimSpace(request.Name)
	if name == "" {
		return models.Organization{}, errOrganizationNameRequired
	}
	if utf8.RuneCountInString(name) > maxOrganizationNameLength {
		return models.Organization{}, errOrganizationNameTooLong
	}
	base := util.Slugify(name)
	if base == "" {
		base = "org"
	}

	var org models.Organization
	var err error
	for attempt := 0; attempt < createOrganizationAttempts; attempt++ {
		err = api.adminTransaction(ctx, func(tx *gorm.DB) error {
			slug, err := uniqueSlug(tx, base)
			if err != nil {
				return err
			}
			org = models.Organization{
				OwnerID: ownerID,
				Name:    name,
				Slug:    slug,
			}
			if res := tx.Create(&org); res.Error != nil {
				return res.Error
			}
			membership := models.Membership{
				UserID:         ownerID,
				OrganizationID: org.ID,
				Role:           models.RoleAdmin,
			}
			return tx.Create(&membership).Error
		})
		if err == nil || !database.IsDuplicateError(err) {
			break
		}
		api.Logger(ctx).Debugw("slug taken concurrently, retrying", "slug", org.Slug, "attempt", attempt)
	}
	if err != nil {
		return models.Organization{}, err
	}
	api.Logger(ctx).Infow("organization created", "organization_id", org.ID, "slug", org.Slug)
	return org, nil
}

// OnboardingPage asks a user without organization to create one
func (api *API) OnboardingPage(c *gin.Context) {
	org, err := api.firstOrganization(c, api.GetCurrentUserID(c))
	if err != nil {
		api.sendPageInternalError(c, err)
		return
	}
	if org != nil {
		c.Redirect(http.StatusFound, "/")
		return
	}
	api.renderPage(c, http.StatusOK, "onboarding", pageData{Title: "Set up your organization"})
}

// Onboarding creates the first organization of the user
func (api *API) Onboarding(c *gin.Context) {
	ctx, span := tracer.Start(c.Request.Context(), "Onboarding")
	defer span.End()

	var request models.AddOrganization
	if err := c.ShouldBind(&request); err != nil {
		api.renderPage(c, http.StatusBadRequest, "onboarding", pageData{Title: "Set up your organization", Error: "The form is invalid."})
		return
	}
	org, err := api.createOrganization(ctx, api.GetCurrentUserID(c), request)
	if errors.Is(err, errOrganizationNameRequired) || errors.Is(err, errOrganizationNameTooLong) {
		message := "Enter the name of your organization."
		if errors.Is(err, errOrganizationNameTooLong) {
			message = fmt.Sprintf("The name can be at most %d characters long.", maxOrganizationNameLength)
		}
		api.renderPage(c, http.StatusBadRequest, "onboarding", pageData{
			Title: "Set up your organization",
			Error: message,
			Form:  request,
		})
		return
	} else if err != nil {
		api.sendPageInternalError(c, err)
		return
	}
	c.Redirect(http.StatusFound, "/org/"+org.Slug)
}

// CreateOrganization creates a new Organization
// @Summary      Create an Organization
// @Description  Creates a named organization, the current user becomes its admin
// @Id           CreateOrganization
// @Tags         Organizations
// @Accept       json
// @Produce      json
// @Param        Organization  body     models.AddOrganization  true "Add Organization"
// @Success      201  {object}  models.Organization
// @Failure      400  {object}  models.ValidationError
// @Failure      401  {object}  models.BaseError
// @Failure      429  {object}  models.BaseError
// @Failure      500  {object}  models.InternalServerError "Internal Server Error"
// @Router       /api/organizations [post]
func (api *API) CreateOrganization(c *gin.Context) {
	ctx, span := tracer.Start(c.Request.Context(), "CreateOrganization")
	defer span.End()

	var request models.AddOrganization
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, models.NewBadPayloadError())
		return
	}
	org, err := api.createOrganization(ctx, api.GetCurrentUserID(c), request)
	if errors.Is(err, errOrganizationNameRequired) || errors.Is(err, errOrganizationNameTooLong) {
		c.JSON(http.StatusBadRequest, models.NewFieldValidationError("name", err.Error()))
		return
	} else if err != nil {
		api.SendInternalServerError(c, err)
		return
	}
	span.SetAttributes(attribute.String("id", org.ID.String()))
	c.JSON(http.StatusCreated, org)
}

// ListOrganizations lists the organizations the current user is a member of
// @Summary      List Organizations
// @Description  Lists the organizations of the current user with the role the user has in each
// @Id           ListOrganizations
// @Tags         Organizations
// @Accept       json
// @Produce      json
// @Success      200  {object}  []models.OrganizationWithRole
// @Failure      401  {object}  models.BaseError
// @Failure      429  {object}  models.BaseError
// @Failure      500  {object}  models.InternalServerError "Internal Server Error"
// @Router       /api/organizations [get]
func (api *API) ListOrganizations(c *gin.Context) {
	ctx, span := tracer.Start(c.Request.Context(), "ListOrganizations")
	defer span.End()

	var memberships []models.Membership
	res := api.db.WithContext(ctx).
		Preload("Organization").
		Where("user_id = ?", api.GetCurrentUserID(c)).
		Order("created_at ASC").
		Find(&memberships)
	if res.Error != nil {
		api.SendInternalServerError(c, res.Error)
		return
	}
	result := make([]models.OrganizationWithRole, 0, len(memberships))
	for _, m := range memberships {
		if m.Organization == nil {
			continue
		}
		result = append(result, models.OrganizationWithRole{Organization: *m.Organization, Role: m.Role})
	}
	c.JSON(http.StatusOK, result)
}

// GetOrganization gets an organization by slug
// @Summary      Get Organization
// @Description  Gets an organization the current user is a member of
// @Id           GetOrganization
// @Tags         Organizations
// @Accept       json
// @Produce      json
// @Param        slug   path      string  true "Organization slug"
// @Success      200  {object}  models.OrganizationWithRole
// @Failure      401  {object}  models.BaseError
// @Failure      404  {object}  models.NotFoundError
// @Failure      429  {object}  models.BaseError
// @Router       /api/organizations/{slug} [get]
func (api *API) GetOrganization(c *gin.Context) {
	_, span := tracer.Start(c.Request.Context(), "GetOrganization",
		trace.WithAttributes(attribute.String("slug", c.Param("slug"))))
	defer span.End()

	org, _ := currentOrganization(c)
	m, _ := currentMembership(c)
	c.JSON(http.StatusOK, models.OrganizationWithRole{Organization: *org, Role: m.Role})
}
