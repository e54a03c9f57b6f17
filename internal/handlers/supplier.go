package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/supplai-io/supplai/internal/database"
	"github.com/supplai-io/supplai/internal/models"
)

// createSupplier validates request and stores it.  A deleted supplier with the same email is
// brought back instead of failing on the unique index.
func (api *API) createSupplier(ctx context.Context, orgID uuid.UUID, request models.AddSupplier) (models.Supplier, error) {
	request.Name = strings.TrimSpace(request.Name)
	request.Phone = strings.TrimSpace(request.Phone)
	request.Notes = strings.TrimSpace(request.Notes)
	if request.Name == "" {
		return models.Supplier{}, NewApiResponseError(http.StatusBadRequest, models.NewFieldNotPresentError("name"))
	}
	address, err := parseEmail(request.Email)
	if err != nil {
		return models.Supplier{}, NewApiResponseError(http.StatusBadRequest, models.NewFieldValidationError("email", "not a valid email address"))
	}

	var supplier models.Supplier
	err = api.transaction(ctx, func(tx *gorm.DB) error {
		var existing models.Supplier
		res := tx.Unscoped().First(&existing, "organization_id = ? AND email = ?", orgID, address)
		if res.Error == nil {
			if !existing.DeletedAt.Valid {
				return NewApiResponseError(http.StatusConflict, models.NewConflictsError(existing.ID.String()))
			}
			existing.DeletedAt = gorm.DeletedAt{}
			existing.Name = request.Name
			existing.Phone = request.Phone
			existing.Notes = request.Notes
			supplier = existing
			return tx.Unscoped().Save(&supplier).Error
		} else if !errors.Is(res.Error, gorm.ErrRecordNotFound) {
			return res.Error
		}

		supplier = models.Supplier{
			OrganizationID: orgID,
			Name:           request.Name,
			Email:          address,
			Phone:          request.Phone,
			Notes:          request.Notes,
		}
		if res := tx.Create(&supplier); res.Error != nil {
			if database.IsDuplicateError(res.Error) {
				return NewApiResponseError(http.StatusConflict, models.NewConflictsError(""))
			}
			return res.Error
		}
		return nil
	})
	return supplier, err
}

func (api *API) listSuppliers(ctx context.Context, orgID uuid.UUID, scopes ...func(*gorm.DB) *gorm.DB) ([]models.Supplier, error) {
	suppliers := []models.Supplier{}
	res := api.db.WithContext(ctx).
		Where("organization_id = ?", orgID).
		Scopes(scopes...).
		Order("name ASC").
		Find(&suppliers)
	return suppliers, res.Error
}

// SuppliersPage lists the suppliers of the organization
func (api *API) SuppliersPage(c *gin.Context) {
	org, _ := currentOrganization(c)
	suppliers, err := api.listSuppliers(c.Request.Context(), org.ID)
	if err != nil {
		api.sendPageInternalError(c, err)
		return
	}
	api.renderPage(c, http.StatusOK, "suppliers", pageData{Title: "Suppliers", Data: suppliers})
}

// NewSupplierPage shows the form that adds a supplier
func (api *API) NewSupplierPage(c *gin.Context) {
	api.renderPage(c, http.StatusOK, "supplier_new", pageData{Title: "New supplier"})
}

// CreateSupplierForm handles the new supplier form
func (api *API) CreateSupplierForm(c *gin.Context) {
	ctx, span := tracer.Start(c.Request.Context(), "CreateSupplierForm")
	defer span.End()

	org, _ := currentOrganization(c)
	var request models.AddSupplier
	if err := c.ShouldBind(&request); err != nil {
		api.renderPage(c, http.StatusBadRequest, "supplier_new", pageData{Title: "New supplier", Error: "The form is invalid."})
		return
	}
	supplier, err := api.createSupplier(ctx, org.ID, request)
	var apiResponseError *ApiResponseError
	if errors.As(err, &apiResponseError) {
		msg := "Check the name and the email of the supplier."
		if apiResponseError.Status == http.StatusConflict {
			msg = "A supplier with this email already exists."
		}
		api.renderPage(c, apiResponseError.Status, "supplier_new", pageData{Title: "New supplier", Error: msg, Form: request})
		return
	} else if err != nil {
		api.sendPageInternalError(c, err)
		return
	}
	api.Logger(ctx).Infow("supplier created", "supplier_id", supplier.ID, "organization_id", org.ID)
	api.redirectWithNotice(c, "/org/"+org.Slug+"/suppliers", "Supplier "+supplier.Name+" added.")
}

// ListSuppliers lists the suppliers of an organization
// @Summary      List Suppliers
// @Description  Lists the suppliers of an organization
// @Id           ListSuppliers
// @Tags         Suppliers
// @Accept       json
// @Produce      json
// @Param        slug   path      string  true "Organization slug"
// @Param        filter query     string  false "JSON filter, {\"name\":\"Fresh Farms\"}"
// @Param        range  query     string  false "JSON range, [0,24]"
// @Success      200  {object}  []models.Supplier
// @Failure      401  {object}  models.BaseError
// @Failure      404  {object}  models.NotFoundError
// @Failure      429  {object}  models.BaseError
// @Failure      500  {object}  models.InternalServerError "Internal Server Error"
// @Router       /api/organizations/{slug}/suppliers [get]
func (api *API) ListSuppliers(c *gin.Context) {
	ctx, span := tracer.Start(c.Request.Context(), "ListSuppliers")
	defer span.End()

	org, _ := currentOrganization(c)
	suppliers, err := api.listSuppliers(ctx, org.ID, FilterAndPaginate(&models.Supplier{}, c, ""))
	if err != nil {
		api.SendInternalServerError(c, err)
		return
	}
	c.JSON(http.StatusOK, suppliers)
}

// CreateSupplier adds a supplier to an organization
// @Summary      Create Supplier
// @Description  Adds a supplier to an organization
// @Id           CreateSupplier
// @Tags         Suppliers
// @Accept       json
// @Produce      json
// @Param        slug      path      string  true "Organization slug"
// @Param        Supplier  body      models.AddSupplier  true "Add Supplier"
// @Success      201  {object}  models.Supplier
// @Failure      400  {object}  models.ValidationError
// @Failure      401  {object}  models.BaseError
// @Failure      403  {object}  models.NotAllowedError
// @Failure      404  {object}  models.NotFoundError
// @Failure      409  {object}  models.ConflictsError
// @Failure      429  {object}  models.BaseError
// @Failure      500  {object}  models.InternalServerError "Internal Server Error"
// @Router       /api/organizations/{slug}/suppliers [post]
func (api *API) CreateSupplier(c *gin.Context) {
	ctx, span := tracer.Start(c.Request.Context(), "CreateSupplier")
	defer span.End()

	org, _ := currentOrganization(c)
	var request models.AddSupplier
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, models.NewBadPayloadError())
		return
	}
	supplier, err := api.createSupplier(ctx, org.ID, request)
	var apiResponseError *ApiResponseError
	if errors.As(err, &apiResponseError) {
		c.JSON(apiResponseError.Status, apiResponseError.Body)
		return
	} else if err != nil {
		api.SendInternalServerError(c, err)
		return
	}
	span.SetAttributes(attribute.String("id", supplier.ID.String()))
	c.JSON(http.StatusCreated, supplier)
}

// DeleteSupplier removes a supplier.  Orders already sent to it are kept.
// @Summary      Delete Supplier
// @Description  Deletes a supplier of an organization
// @Id           DeleteSupplier
// @Tags         Suppliers
// @Accept       json
// @Produce      json
// @Param        slug   path      string  true "Organization slug"
// @Param        id     path      string  true "Supplier ID"
// @Success      200  {object}  models.Supplier
// @Failure      400  {object}  models.ValidationError
// @Failure      401  {object}  models.BaseError
// @Failure      403  {object}  models.NotAllowedError
// @Failure      404  {object}  models.NotFoundError
// @Failure      429  {object}  models.BaseError
// @Failure      500  {object}  models.InternalServerError "Internal Server Error"
// @Router       /api/organizations/{slug}/suppliers/{id} [delete]
func (api *API) DeleteSupplier(c *gin.Context) {
	ctx, span := tracer.Start(c.Request.Context(), "DeleteSupplier",
		trace.WithAttributes(attribute.String("id", c.Param("id"))))
	defer span.End()

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, models.NewBadPathParameterError("id"))
		return
	}
	org, _ := currentOrganization(c)

	var supplier models.Supplier
	err = api.transaction(ctx, func(tx *gorm.DB) error {
		if res := tx.First(&supplier, "id = ? AND organization_id = ?", id, org.ID); res.Error != nil {
			if errors.Is(res.Error, gorm.ErrRecordNotFound) {
				return NewApiResponseError(http.StatusNotFound, models.NewNotFoundError("supplier"))
			}
			return res.Error
		}
		return tx.Delete(&supplier).Error
	})
	var apiResponseError *ApiResponseError
	if errors.As(err, &apiResponseError) {
		c.JSON(apiResponseError.Status, apiResponseError.Body)
		return
	} else if err != nil {
		api.SendInternalServerError(c, err)
		return
	}
	c.JSON(http.StatusOK, supplier)
}
