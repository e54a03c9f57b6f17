package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/supplai-io/supplai/internal/models"
)

func (suite *HandlerTestSuite) postSupplier(as *models.User, request models.AddSupplier) (int, models.Supplier) {
	res := suite.ServeRequest(suite.jsonRequest(http.MethodPost, "/api/organizations/acme-bakery/suppliers", request, as),
		"/api/organizations/:slug/suppliers", suite.apiChain(suite.api.CreateSupplier, true)...)
	var supplier models.Supplier
	if res.Code == http.StatusCreated {
		suite.Require().NoError(json.Unmarshal(res.Body.Bytes(), &supplier))
	}
	return res.Code, supplier
}

func (suite *HandlerTestSuite) TestCreateSupplier() {
	require := suite.Require()
	owner := suite.createUser("jane@acme.example", true)
	org := suite.createOrganization(owner, "Acme Bakery")

	code, supplier := suite.postSupplier(owner, models.AddSupplier{Name: " Fresh Farms ", Email: "Orders@FreshFarms.example"})
	require.Equal(http.StatusCreated, code)
	require.Equal("Fresh Farms", supplier.Name)
	require.Equal("orders@freshfarms.example", supplier.Email)
	require.Equal(org.ID, supplier.OrganizationID)

	code, _ = suite.postSupplier(owner, models.AddSupplier{Name: "Fresh Farms again", Email: "orders@freshfarms.example"})
	require.Equal(http.StatusConflict, code)

	code, _ = suite.postSupplier(owner, models.AddSupplier{Name: "Bad", Email: "not an email"})
	require.Equal(http.StatusBadRequest, code)
	code, _ = suite.postSupplier(owner, models.AddSupplier{Name: "Bad", Email: "Bad <bad@example.com>"})
	require.Equal(http.StatusBadRequest, code)
	code, _ = suite.postSupplier(owner, models.AddSupplier{Name: "  ", Email: "orders@other.example"})
	require.Equal(http.StatusBadRequest, code)
}

func (suite *HandlerTestSuite) TestSuppliersAreScopedToTheOrganization() {
	require := suite.Require()
	jane := suite.createUser("jane@acme.example", true)
	joe := suite.createUser("joe@other.example", true)
	acme := suite.createOrganization(jane, "Acme Bakery")
	other := suite.createOrganization(joe, "Other Shop")
	suite.createSupplier(acme, "Fresh Farms", "orders@freshfarms.example")
	// the same supplier can serve several organizations
	suite.createSupplier(other, "Fresh Farms", "orders@freshfarms.example")
	suite.createSupplier(other, "Mill Co", "sales@mill.example")

	res := suite.ServeRequest(suite.jsonRequest(http.MethodGet, "/api/organizations/acme-bakery/suppliers", nil, jane),
		"/api/organizations/:slug/suppliers", suite.apiChain(suite.api.ListSuppliers, false)...)
	require.Equal(http.StatusOK, res.Code)
	var suppliers []models.Supplier
	require.NoError(json.Unmarshal(res.Body.Bytes(), &suppliers))
	require.Len(suppliers, 1)
	require.Equal(acme.ID, suppliers[0].OrganizationID)

	filter := url.QueryEscape(`{"name":"Mill Co"}`)
	res = suite.ServeRequest(suite.jsonRequest(http.MethodGet, "/api/organizations/other-shop/suppliers?filter="+filter, nil, joe),
		"/api/organizations/:slug/suppliers", suite.apiChain(suite.api.ListSuppliers, false)...)
	require.Equal(http.StatusOK, res.Code)
	require.NoError(json.Unmarshal(res.Body.Bytes(), &suppliers))
	require.Len(suppliers, 1)
	require.Equal("Mill Co", suppliers[0].Name)
}

func (suite *HandlerTestSuite) TestDeleteAndRestoreSupplier() {
	require := suite.Require()
	owner := suite.createUser("jane@acme.example", true)
	org := suite.createOrganization(owner, "Acme Bakery")
	supplier := suite.createSupplier(org, "Fresh Farms", "orders@freshfarms.example")

	path := fmt.Sprintf("/api/organizations/acme-bakery/suppliers/%s", supplier.ID)
	res := suite.ServeRequest(suite.jsonRequest(http.MethodDelete, path, nil, owner),
		"/api/organizations/:slug/suppliers/:id", suite.apiChain(suite.api.DeleteSupplier, true)...)
	require.Equal(http.StatusOK, res.Code)

	res = suite.ServeRequest(suite.jsonRequest(http.MethodDelete, path, nil, owner),
		"/api/organizations/:slug/suppliers/:id", suite.apiChain(suite.api.DeleteSupplier, true)...)
	require.Equal(http.StatusNotFound, res.Code)

	suppliers, err := suite.api.listSuppliers(context.Background(), org.ID)
	require.NoError(err)
	require.Empty(suppliers)

	// adding the supplier again brings back the deleted row
	code, restored := suite.postSupplier(owner, models.AddSupplier{Name: "Fresh Farms Ltd", Email: "orders@freshfarms.example"})
	require.Equal(http.StatusCreated, code)
	require.Equal(supplier.ID, restored.ID)
	require.Equal("Fresh Farms Ltd", restored.Name)
}

func (suite *HandlerTestSuite) TestCreateSupplierForm() {
	require := suite.Require()
	owner := suite.createUser("jane@acme.example", true)
	suite.createOrganization(owner, "Acme Bakery")

	form := url.Values{"name": {"Fresh Farms"}, "email": {"orders@freshfarms.example"}}
	res := suite.ServeRequest(suite.formRequest(http.MethodPost, "/org/acme-bakery/suppliers", form, owner),
		"/org/:slug/suppliers", suite.pageChain(suite.api.CreateSupplierForm, true)...)
	require.Equal(http.StatusFound, res.Code)
	require.Equal("/org/acme-bakery/suppliers", res.Header().Get("Location"))
	require.NotNil(findCookie(res.Result().Cookies(), flashCookieName))

	res = suite.ServeRequest(suite.formRequest(http.MethodPost, "/org/acme-bakery/suppliers", form, owner),
		"/org/:slug/suppliers", suite.pageChain(suite.api.CreateSupplierForm, true)...)
	require.Equal(http.StatusConflict, res.Code)
	require.Contains(res.Body.String(), "A supplier with this email already exists.")
}
