package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/supplai-io/supplai/internal/fflags"
)

func (suite *HandlerTestSuite) TestFeatureFlags() {
	require := suite.Require()
	user := suite.createUser("jane@acme.example", true)
	suite.T().Setenv("SUPPLAI_FFLAG_REGISTRATION", "false")

	res := suite.ServeRequest(suite.jsonRequest(http.MethodGet, "/api/fflags", nil, user), "/api/fflags",
		suite.api.RequireUser(JSON), suite.api.ListFeatureFlags)
	require.Equal(http.StatusOK, res.Code)
	var flags map[string]bool
	require.NoError(json.Unmarshal(res.Body.Bytes(), &flags))
	require.Equal(map[string]bool{
		fflags.Registration:      false,
		fflags.EmailVerification: true,
		fflags.SupplierEmails:    true,
	}, flags)

	res = suite.ServeRequest(suite.jsonRequest(http.MethodGet, "/api/fflags/supplier-emails", nil, user), "/api/fflags/:name",
		suite.api.RequireUser(JSON), suite.api.GetFeatureFlag)
	require.Equal(http.StatusOK, res.Code)
	require.JSONEq(`{"supplier-emails":true}`, res.Body.String())

	res = suite.ServeRequest(suite.jsonRequest(http.MethodGet, "/api/fflags/dark-mode", nil, user), "/api/fflags/:name",
		suite.api.RequireUser(JSON), suite.api.GetFeatureFlag)
	require.Equal(http.StatusNotFound, res.Code)

	res = suite.ServeRequest(suite.jsonRequest(http.MethodGet, "/api/fflags", nil, nil), "/api/fflags",
		suite.api.RequireUser(JSON), suite.api.ListFeatureFlags)
	require.Equal(http.StatusUnauthorized, res.Code)
}
