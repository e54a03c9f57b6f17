package handlers

import (
	"net/http"
	"net/http/httptest"

	"github.com/supplai-io/supplai/internal/models"
)

func (suite *HandlerTestSuite) TestRequireUserRedirectsToLogin() {
	require := suite.Require()

	req := httptest.NewRequest(http.MethodGet, "/org/acme-bakery/orders/new", nil)
	res := suite.ServeRequest(req, "/org/:slug/orders/new", suite.pageChain(suite.api.NewOrderPage, false)...)
	require.Equal(http.StatusFound, res.Code)
	require.Equal("/login?next=%2Forg%2Facme-bakery%2Forders%2Fnew", res.Header().Get("Location"))
}

func (suite *HandlerTestSuite) TestRequireUserRejectsApiRequests() {
	require := suite.Require()

	req := suite.jsonRequest(http.MethodGet, "/api/organizations", nil, nil)
	res := suite.ServeRequest(req, "/api/organizations", suite.api.RequireUser(JSON), suite.api.ListOrganizations)
	require.Equal(http.StatusUnauthorized, res.Code)
	require.JSONEq(`{"error":"authentication required"}`, res.Body.String())
}

func (suite *HandlerTestSuite) TestRequireUserRejectsDeletedUsers() {
	require := suite.Require()
	user := suite.createUser("jane@acme.example", true)
	req := suite.jsonRequest(http.MethodGet, "/api/organizations", nil, user)
	require.NoError(suite.api.db.Delete(user).Error)

	res := suite.ServeRequest(req, "/api/organizations", suite.api.RequireUser(JSON), suite.api.ListOrganizations)
	require.Equal(http.StatusUnauthorized, res.Code)
}

func (suite *HandlerTestSuite) TestHomeRedirects() {
	require := suite.Require()
	user := suite.createUser("jane@acme.example", true)

	res := suite.ServeRequest(httptest.NewRequest(http.MethodGet, "/", nil), "/", suite.api.RequireUser(Pages), suite.api.Home)
	require.Equal(http.StatusFound, res.Code)
	require.Equal("/login", res.Header().Get("Location"))

	res = suite.ServeRequest(suite.formRequest(http.MethodGet, "/", nil, user), "/", suite.api.RequireUser(Pages), suite.api.Home)
	require.Equal(http.StatusFound, res.Code)
	require.Equal("/onboarding", res.Header().Get("Location"))

	suite.createOrganization(user, "Acme Bakery")
	res = suite.ServeRequest(suite.formRequest(http.MethodGet, "/", nil, user), "/", suite.api.RequireUser(Pages), suite.api.Home)
	require.Equal(http.StatusFound, res.Code)
	require.Equal("/org/acme-bakery", res.Header().Get("Location"))
}

func (suite *HandlerTestSuite) TestRequireOrganization() {
	require := suite.Require()
	owner := suite.createUser("jane@acme.example", true)
	stranger := suite.createUser("joe@other.example", true)
	suite.createOrganization(owner, "Acme Bakery")

	// members get the page
	res := suite.ServeRequest(suite.formRequest(http.MethodGet, "/org/acme-bakery", nil, owner), "/org/:slug", suite.pageChain(suite.api.OrdersPage, false)...)
	require.Equal(http.StatusOK, res.Code)
	require.Contains(res.Body.String(), "Acme Bakery")

	// non members are sent home
	res = suite.ServeRequest(suite.formRequest(http.MethodGet, "/org/acme-bakery", nil, stranger), "/org/:slug", suite.pageChain(suite.api.OrdersPage, false)...)
	require.Equal(http.StatusFound, res.Code)
	require.Equal("/", res.Header().Get("Location"))

	// unknown organizations are not found
	res = suite.ServeRequest(suite.formRequest(http.MethodGet, "/org/nope", nil, owner), "/org/:slug", suite.pageChain(suite.api.OrdersPage, false)...)
	require.Equal(http.StatusNotFound, res.Code)

	// the api does not tell non members that the organization exists
	res = suite.ServeRequest(suite.jsonRequest(http.MethodGet, "/api/organizations/acme-bakery", nil, stranger), "/api/organizations/:slug",
		suite.apiChain(suite.api.GetOrganization, false)...)
	require.Equal(http.StatusNotFound, res.Code)
	res = suite.ServeRequest(suite.jsonRequest(http.MethodGet, "/api/organizations/nope", nil, stranger), "/api/organizations/:slug",
		suite.apiChain(suite.api.GetOrganization, false)...)
	require.Equal(http.StatusNotFound, res.Code)
}

func (suite *HandlerTestSuite) TestRequireAdminRedirectsMembers() {
	require := suite.Require()
	owner := suite.createUser("jane@acme.example", true)
	member := suite.createUser("joe@acme.example", true)
	org := suite.createOrganization(owner, "Acme Bakery")
	suite.addMember(org, member, models.RoleMember)

	res := suite.ServeRequest(suite.formRequest(http.MethodGet, "/org/acme-bakery/suppliers/new", nil, member), "/org/:slug/suppliers/new",
		suite.pageChain(suite.api.NewSupplierPage, true)...)
	require.Equal(http.StatusFound, res.Code)
	require.Equal("/", res.Header().Get("Location"))

	res = suite.ServeRequest(suite.formRequest(http.MethodGet, "/org/acme-bakery/suppliers/new", nil, owner), "/org/:slug/suppliers/new",
		suite.pageChain(suite.api.NewSupplierPage, true)...)
	require.Equal(http.StatusOK, res.Code)
	require.Contains(res.Body.String(), `action="/org/acme-bakery/suppliers"`)

	res = suite.ServeRequest(suite.jsonRequest(http.MethodPost, "/api/organizations/acme-bakery/suppliers", models.AddSupplier{Name: "Fresh Farms", Email: "orders@freshfarms.example"}, member),
		"/api/organizations/:slug/suppliers", suite.apiChain(suite.api.CreateSupplier, true)...)
	require.Equal(http.StatusForbidden, res.Code)
}

func (suite *HandlerTestSuite) TestRoleGateHidesAdminLinks() {
	require := suite.Require()
	owner := suite.createUser("jane@acme.example", true)
	member := suite.createUser("joe@acme.example", true)
	org := suite.createOrganization(owner, "Acme Bakery")
	suite.addMember(org, member, models.RoleMember)

	res := suite.ServeRequest(suite.formRequest(http.MethodGet, "/org/acme-bakery/suppliers", nil, owner), "/org/:slug/suppliers",
		suite.pageChain(suite.api.SuppliersPage, false)...)
	require.Equal(http.StatusOK, res.Code)
	require.Contains(res.Body.String(), "New supplier")

	res = suite.ServeRequest(suite.formRequest(http.MethodGet, "/org/acme-bakery/suppliers", nil, member), "/org/:slug/suppliers",
		suite.pageChain(suite.api.SuppliersPage, false)...)
	require.Equal(http.StatusOK, res.Code)
	require.NotContains(res.Body.String(), "New supplier")
}
