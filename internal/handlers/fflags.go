package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/supplai-io/supplai/internal/models"
)

// ListFeatureFlags lists the feature flags of the server
// @Summary      List Feature Flags
// @Description  Lists the feature flags, such as whether registration is open
// @Id           ListFeatureFlags
// @Tags         FFlag
// @Produce      json
// @Success      200  {object} map[string]bool
// @Failure      401  {object}  models.BaseError
// @Failure      429  {object}  models.BaseError
// @Router       /api/fflags [get]
func (api *API) ListFeatureFlags(c *gin.Context) {
	_, span := tracer.Start(c.Request.Context(), "ListFeatureFlags")
	defer span.End()
	flags := api.fflags.ListFlags()
	span.SetAttributes(attribute.Int("flags", len(flags)))
	c.JSON(http.StatusOK, flags)
}

// GetFeatureFlag gets a feature flag by name
// @Summary      Get Feature Flag
// @Description  Gets a Feature Flag by name
// @Id           GetFeatureFlag
// @Tags         FFlag
// @Produce      json
// @Param        name path      string true  "feature flag name"
// @Success      200  {object} map[string]bool
// @Failure      401  {object}  models.BaseError
// @Failure      404  {object}  models.NotFoundError
// @Router       /api/fflags/{name} [get]
func (api *API) GetFeatureFlag(c *gin.Context) {
	name := c.Param("name")
	_, span := tracer.Start(c.Request.Context(), "GetFeatureFlag",
		trace.WithAttributes(attribute.String("name", name)))
	defer span.End()

	enabled, err := api.fflags.GetFlag(name)
	if err != nil {
		c.JSON(http.StatusNotFound, models.NewNotFoundError("feature flag"))
		return
	}
	c.JSON(http.StatusOK, map[string]bool{name: enabled})
}
