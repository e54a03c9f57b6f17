package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/supplai-io/supplai/internal/models"
)

// GetMembership describes the role of the current user in an organization
// @Summary      Get Membership
// @Description  Gets the role and the capabilities of the current user in an organization
// @Id           GetMembership
// @Tags         Organizations
// @Accept       json
// @Produce      json
// @Param        slug   path      string  true "Organization slug"
// @Success      200  {object}  models.CurrentMembership
// @Failure      401  {object}  models.BaseError
// @Failure      404  {object}  models.NotFoundError
// @Failure      429  {object}  models.BaseError
// @Router       /api/organizations/{slug}/membership [get]
func (api *API) GetMembership(c *gin.Context) {
	org, _ := currentOrganization(c)
	m, _ := currentMembership(c)
	c.JSON(http.StatusOK, models.CurrentMembership{
		OrganizationID: org.ID,
		Slug:           org.Slug,
		Role:           m.Role,
		Capabilities:   m.Role.Capabilities(),
	})
}

// ListMembers lists the members of an organization
// @Summary      List Members
// @Description  Lists the members of an organization
// @Id           ListMembers
// @Tags         Organizations
// @Accept       json
// @Produce      json
// @Param        slug   path      string  true "Organization slug"
// @Param        sort   query     string  false "JSON sort, [\"created_at\",\"ASC\"]"
// @Param        range  query     string  false "JSON range, [0,24]"
// @Success      200  {object}  []models.Membership
// @Failure      401  {object}  models.BaseError
// @Failure      404  {object}  models.NotFoundError
// @Failure      429  {object}  models.BaseError
// @Failure      500  {object}  models.InternalServerError "Internal Server Error"
// @Router       /api/organizations/{slug}/members [get]
func (api *API) ListMembers(c *gin.Context) {
	ctx, span := tracer.Start(c.Request.Context(), "ListMembers")
	defer span.End()

	org, _ := currentOrganization(c)
	members := []models.Membership{}
	res := api.db.WithContext(ctx).
		Preload("User").
		Where("organization_id = ?", org.ID).
		Scopes(FilterAndPaginate(&models.Membership{}, c, "created_at")).
		Find(&members)
	if res.Error != nil {
		api.SendInternalServerError(c, res.Error)
		return
	}
	c.JSON(http.StatusOK, members)
}

// lockAdmins locks the admin memberships of the organization until tx ends and counts them.  A
// concurrent demotion or removal waits for the lock, then counts the admins that are left.
func lockAdmins(tx *gorm.DB, orgID uuid.UUID) (int, error) {
	var admins []uuid.UUID
	res := tx.Model(&models.Membership{}).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("organization_id = ? AND role = ?", orgID, models.RoleAdmin).
		Pluck("user_id", &admins)
	return len(admins), res.Error
}

// UpdateMember changes the role of a member
// @Summary      Update Member
// @Description  Changes the role of a member, an organization always keeps at least one admin
// @Id           UpdateMember
// @Tags         Organizations
// @Accept       json
// @Produce      json
// @Param        slug   path      string  true "Organization slug"
// @Param        uid    path      string  true "User ID"
// @Param        update body      models.UpdateMembership true "Membership update"
// @Success      200  {object}  models.Membership
// @Failure      400  {object}  models.ValidationError
// @Failure      401  {object}  models.BaseError
// @Failure      403  {object}  models.NotAllowedError
// @Failure      404  {object}  models.NotFoundError
// @Failure      429  {object}  models.BaseError
// @Failure      500  {object}  models.InternalServerError "Internal Server Error"
// @Router       /api/organizations/{slug}/members/{uid} [patch]
func (api *API) UpdateMember(c *gin.Context) {
	ctx, span := tracer.Start(c.Request.Context(), "UpdateMember",
		trace.WithAttributes(attribute.String("uid", c.Param("uid"))))
	defer span.End()

	userID, err := uuid.Parse(c.Param("uid"))
	if err != nil {
		c.JSON(http.StatusBadRequest, models.NewBadPathParameterError("uid"))
		return
	}
	var request models.UpdateMembership
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, models.NewBadPayloadError())
		return
	}
	if !request.Role.Valid() {
		c.JSON(http.StatusBadRequest, models.NewFieldValidationError("role", "must be admin or member"))
		return
	}

	org, _ := currentOrganization(c)
	var membership models.Membership
	err = api.transaction(ctx, func(tx *gorm.DB) error {
		admins, err := lockAdmins(tx, org.ID)
		if err != nil {
			return err
		}
		if res := tx.First(&membership, "organization_id = ? AND user_id = ?", org.ID, userID); res.Error != nil {
			if errors.Is(res.Error, gorm.ErrRecordNotFound) {
				return NewApiResponseError(http.StatusNotFound, models.NewNotFoundError("member"))
			}
			return res.Error
		}
		if membership.Role == request.Role {
			return nil
		}
		if membership.Role == models.RoleAdmin {
			if admins <= 1 {
				return NewApiResponseError(http.StatusBadRequest, models.NewFieldValidationError("role", "an organization needs at least one admin"))
			}
		}
		membership.Role = request.Role
		return tx.Model(&membership).
			Where("organization_id = ? AND user_id = ?", org.ID, userID).
			Update("role", request.Role).Error
	})

	var apiResponseError *ApiResponseError
	if errors.As(err, &apiResponseError) {
		c.JSON(apiResponseError.Status, apiResponseError.Body)
		return
	} else if err != nil {
		api.SendInternalServerError(c, err)
		return
	}
	c.JSON(http.StatusOK, membership)
}

// DeleteMember removes a member from an organization
// @Summary      Delete Member
// @Description  Removes a member, the owner of the organization can not be removed
// @Id           DeleteMember
// @Tags         Organizations
// @Accept       json
// @Produce      json
// @Param        slug   path      string  true "Organization slug"
// @Param        uid    path      string  true "User ID"
// @Success      204
// @Failure      400  {object}  models.ValidationError
// @Failure      401  {object}  models.BaseError
// @Failure      403  {object}  models.NotAllowedError
// @Failure      404  {object}  models.NotFoundError
// @Failure      429  {object}  models.BaseError
// @Failure      500  {object}  models.InternalServerError "Internal Server Error"
// @Router       /api/organizations/{slug}/members/{uid} [delete]
func (api *API) DeleteMember(c *gin.Context) {
	ctx, span := tracer.Start(c.Request.Context(), "DeleteMember",
		trace.WithAttributes(attribute.String("uid", c.Param("uid"))))
	defer span.End()

	userID, err := uuid.Parse(c.Param("uid"))
	if err != nil {
		c.JSON(http.StatusBadRequest, models.NewBadPathParameterError("uid"))
		return
	}
	org, _ := currentOrganization(c)
	if userID == org.OwnerID {
		c.JSON(http.StatusBadRequest, models.NewBadPathParameterErrorAndReason("uid", "the owner of the organization can not be removed"))
		return
	}

	err = api.transaction(ctx, func(tx *gorm.DB) error {
		admins, err := lockAdmins(tx, org.ID)
		if err != nil {
			return err
		}
		var membership models.Membership
		if res := tx.First(&membership, "organization_id = ? AND user_id = ?", org.ID, userID); res.Error != nil {
			if errors.Is(res.Error, gorm.ErrRecordNotFound) {
				return NewApiResponseError(http.StatusNotFound, models.NewNotFoundError("member"))
			}
			return res.Error
		}
		if membership.Role == models.RoleAdmin {
			if admins <= 1 {
				return NewApiResponseError(http.StatusBadRequest, models.NewBadPathParameterErrorAndReason("uid", "an organization needs at least one admin"))
			}
		}
		return tx.Where("organization_id = ? AND user_id = ?", org.ID, userID).Delete(&models.Membership{}).Error
	})

	var apiResponseError *ApiResponseError
	if errors.As(err, &apiResponseError) {
		c.JSON(apiResponseError.Status, apiResponseError.Body)
		return
	} else if err != nil {
		api.SendInternalServerError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
