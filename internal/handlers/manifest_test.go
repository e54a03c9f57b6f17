package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"

	"github.com/supplai-io/supplai/internal/models"
)

func (suite *HandlerTestSuite) TestManifest() {
	require := suite.Require()

	res := suite.ServeRequest(httptest.NewRequest(http.MethodGet, "/manifest.webmanifest", nil), "/manifest.webmanifest", suite.api.Manifest)
	require.Equal(http.StatusOK, res.Code)
	require.Equal(ManifestContentType, res.Header().Get("Content-Type"))

	var manifest models.WebAppManifest
	require.NoError(json.Unmarshal(res.Body.Bytes(), &manifest))
	require.Equal(WebManifest, manifest)
	require.Equal("Supplai", manifest.Name)
	require.Equal("/", manifest.StartURL)
	require.Equal("standalone", manifest.Display)
	require.NotEmpty(manifest.Icons)

	// every icon of the manifest is served
	for _, icon := range manifest.Icons {
		res = suite.ServeRequest(httptest.NewRequest(http.MethodGet, icon.Src, nil), icon.Src, suite.api.Icon)
		require.Equal(http.StatusOK, res.Code)
		require.Equal(icon.Type, res.Header().Get("Content-Type"))
	}
}

func (suite *HandlerTestSuite) TestPagesLinkTheManifest() {
	require := suite.Require()
	res := suite.ServeRequest(httptest.NewRequest(http.MethodGet, "/login", nil), "/login", suite.api.LoginPage)
	require.Equal(http.StatusOK, res.Code)
	require.Contains(res.Body.String(), `rel="manifest" href="/manifest.webmanifest"`)
}

func (suite *HandlerTestSuite) TestHealth() {
	require := suite.Require()
	res := suite.ServeRequest(httptest.NewRequest(http.MethodGet, "/ready", nil), "/ready", suite.api.Ready)
	require.Equal(http.StatusOK, res.Code)
	require.JSONEq(`{"status":"UP"}`, res.Body.String())

	res = suite.ServeRequest(httptest.NewRequest(http.MethodGet, "/live", nil), "/live", suite.api.Live)
	require.Equal(http.StatusOK, res.Code)
}
