package handlers

import (
	_ "embed"
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/supplai-io/supplai/internal/models"
)

const ManifestContentType = "application/manifest+json"

//go:embed static/manifest.webmanifest
var manifestJSON []byte

//go:embed static/icon.svg
var iconSVG []byte

// WebManifest is the parsed web app manifest
var WebManifest models.WebAppManifest

func init() {
	if err := json.Unmarshal(manifestJSON, &WebManifest); err != nil {
		panic(err)
	}
}

// Manifest serves the web app manifest
// @Summary      Web App Manifest
// @Description  Gets the metadata browsers use to install the app
// @Id           Manifest
// @Tags         Public
// @Produce      json
// @Success      200  {object}  models.WebAppManifest
// @Router       /manifest.webmanifest [get]
func (api *API) Manifest(c *gin.Context) {
	c.Header("Cache-Control", "public, max-age=3600")
	c.Data(http.StatusOK, ManifestContentType, manifestJSON)
}

// Icon serves the application icon referenced by the manifest
func (api *API) Icon(c *gin.Context) {
	c.Header("Cache-Control", "public, max-age=86400")
	c.Data(http.StatusOK, "image/svg+xml", iconSVG)
}
