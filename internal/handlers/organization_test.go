package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/supplai-io/supplai/internal/models"
)

func (suite *HandlerTestSuite) TestOnboarding() {
	require := suite.Require()
	user := suite.createUser("jane@acme.example", true)

	res := suite.ServeRequest(suite.formRequest(http.MethodGet, "/onboarding", nil, user), "/onboarding", suite.api.RequireUser(Pages), suite.api.OnboardingPage)
	require.Equal(http.StatusOK, res.Code)

	res = suite.ServeRequest(suite.formRequest(http.MethodPost, "/onboarding", url.Values{"name": {"Café Olé"}}, user), "/onboarding",
		suite.api.RequireUser(Pages), suite.api.Onboarding)
	require.Equal(http.StatusFound, res.Code)
	require.Equal("/org/cafe-ole", res.Header().Get("Location"))

	var membership models.Membership
	require.NoError(suite.api.db.Joins("Organization").First(&membership, "user_id = ?", user.ID).Error)
	require.Equal(models.RoleAdmin, membership.Role)
	require.Equal("Café Olé", membership.Organization.Name)
	require.Equal(user.ID, membership.Organization.OwnerID)

	// users with an organization skip onboarding
	res = suite.ServeRequest(suite.formRequest(http.MethodGet, "/onboarding", nil, user), "/onboarding", suite.api.RequireUser(Pages), suite.api.OnboardingPage)
	require.Equal(http.StatusFound, res.Code)
	require.Equal("/", res.Header().Get("Location"))
}

func (suite *HandlerTestSuite) TestOnboardingRequiresName() {
	require := suite.Require()
	user := suite.createUser("jane@acme.example", true)

	res := suite.ServeRequest(suite.formRequest(http.MethodPost, "/onboarding", url.Values{"name": {"   "}}, user), "/onboarding",
		suite.api.RequireUser(Pages), suite.api.Onboarding)
	require.Equal(http.StatusBadRequest, res.Code)
	require.Contains(res.Body.String(), "Enter the name of your organization.")

	res = suite.ServeRequest(suite.formRequest(http.MethodPost, "/onboarding", url.Values{"name": {strings.Repeat("a", 121)}}, user), "/onboarding",
		suite.api.RequireUser(Pages), suite.api.Onboarding)
	require.Equal(http.StatusBadRequest, res.Code)
	require.Contains(res.Body.String(), "The name can be at most 120 characters long.")
	require.NotContains(res.Body.String(), "Enter the name of your organization.")
}

func (suite *HandlerTestSuite) TestOrganizationSlugsAreUnique() {
	require := suite.Require()
	jane := suite.createUser("jane@acme.example", true)
	joe := suite.createUser("joe@acme.example", true)
	ann := suite.createUser("ann@acme.example", true)

	require.Equal("acme-bakery", suite.createOrganization(jane, "Acme Bakery").Slug)
	require.Equal("acme-bakery-2", suite.createOrganization(joe, "ACME  bakery!").Slug)

	// deleted organizations keep their slug
	third := suite.createOrganization(ann, "Acme Bakery")
	require.Equal("acme-bakery-3", third.Slug)
	require.NoError(suite.api.db.Delete(&third).Error)
	require.Equal("acme-bakery-4", suite.createOrganization(ann, "Acme Bakery").Slug)

	// names without a single slug character still get one
	require.Equal("org", suite.createOrganization(ann, "!!!").Slug)
}

func (suite *HandlerTestSuite) TestCreateAndListOrganizations() {
	require := suite.Require()
	user := suite.createUser("jane@acme.example", true)

	res := suite.ServeRequest(suite.jsonRequest(http.MethodPost, "/api/organizations", models.AddOrganization{Name: "Acme Bakery"}, user), "/api/organizations",
		suite.api.RequireUser(JSON), suite.api.CreateOrganization)
	require.Equal(http.StatusCreated, res.Code)
	var org models.Organization
	require.NoError(json.Unmarshal(res.Body.Bytes(), &org))
	require.Equal("acme-bakery", org.Slug)

	res = suite.ServeRequest(suite.jsonRequest(http.MethodPost, "/api/organizations", models.AddOrganization{Name: ""}, user), "/api/organizations",
		suite.api.RequireUser(JSON), suite.api.CreateOrganization)
	require.Equal(http.StatusBadRequest, res.Code)

	res = suite.ServeRequest(suite.jsonRequest(http.MethodPost, "/api/organizations", models.AddOrganization{Name: strings.Repeat("é", 121)}, user), "/api/organizations",
		suite.api.RequireUser(JSON), suite.api.CreateOrganization)
	require.Equal(http.StatusBadRequest, res.Code)
	var invalid models.ValidationError
	require.NoError(json.Unmarshal(res.Body.Bytes(), &invalid))
	require.Equal("name", invalid.Field)
	require.Equal("organization name must be at most 120 characters", invalid.Reason)

	// the limit counts characters, not bytes
	res = suite.ServeRequest(suite.jsonRequest(http.MethodPost, "/api/organizations", models.AddOrganization{Name: strings.Repeat("é", 120)}, user), "/api/organizations",
		suite.api.RequireUser(JSON), suite.api.CreateOrganization)
	require.Equal(http.StatusCreated, res.Code)

	other := suite.createUser("joe@other.example", true)
	suite.createOrganization(other, "Other Shop")

	res = suite.ServeRequest(suite.jsonRequest(http.MethodGet, "/api/organizations", nil, user), "/api/organizations",
		suite.api.RequireUser(JSON), suite.api.ListOrganizations)
	require.Equal(http.StatusOK, res.Code)
	var orgs []models.OrganizationWithRole
	require.NoError(json.Unmarshal(res.Body.Bytes(), &orgs))
	require.Len(orgs, 1)
	require.Equal(org.ID, orgs[0].ID)
	require.Equal(models.RoleAdmin, orgs[0].Role)
}

func (suite *HandlerTestSuite) TestGetMembership() {
	require := suite.Require()
	owner := suite.createUser("jane@acme.example", true)
	member := suite.createUser("joe@acme.example", true)
	org := suite.createOrganization(owner, "Acme Bakery")
	suite.addMember(org, member, models.RoleMember)

	res := suite.ServeRequest(suite.jsonRequest(http.MethodGet, "/api/organizations/acme-bakery/membership", nil, member),
		"/api/organizations/:slug/membership", suite.apiChain(suite.api.GetMembership, false)...)
	require.Equal(http.StatusOK, res.Code)
	var current models.CurrentMembership
	require.NoError(json.Unmarshal(res.Body.Bytes(), &current))
	require.Equal(org.ID, current.OrganizationID)
	require.Equal(models.RoleMember, current.Role)
	require.Equal(models.Capabilities{CreateOrders: true}, current.Capabilities)
}

func (suite *HandlerTestSuite) TestMembers() {
	require := suite.Require()
	owner := suite.createUser("jane@acme.example", true)
	member := suite.createUser("joe@acme.example", true)
	org := suite.createOrganization(owner, "Acme Bakery")
	suite.addMember(org, member, models.RoleMember)

	memberURL := func(u *models.User) string {
		return fmt.Sprintf("/api/organizations/acme-bakery/members/%s", u.ID)
	}
	patch := func(as *models.User, target *models.User, role models.Role) int {
		res := suite.ServeRequest(suite.jsonRequest(http.MethodPatch, memberURL(target), models.UpdateMembership{Role: role}, as),
			"/api/organizations/:slug/members/:uid", suite.apiChain(suite.api.UpdateMember, true)...)
		return res.Code
	}
	remove := func(as *models.User, target *models.User) int {
		res := suite.ServeRequest(suite.jsonRequest(http.MethodDelete, memberURL(target), nil, as),
			"/api/organizations/:slug/members/:uid", suite.apiChain(suite.api.DeleteMember, true)...)
		return res.Code
	}

	res := suite.ServeRequest(suite.jsonRequest(http.MethodGet, "/api/organizations/acme-bakery/members?range=[0,0]", nil, member),
		"/api/organizations/:slug/members", suite.apiChain(suite.api.ListMembers, false)...)
	require.Equal(http.StatusOK, res.Code)
	require.Equal("2", res.Header().Get(TotalCountHeader))
	var members []models.Membership
	require.NoError(json.Unmarshal(res.Body.Bytes(), &members))
	require.Len(members, 1)

	// members can not manage members
	require.Equal(http.StatusForbidden, patch(member, owner, models.RoleMember))
	require.Equal(http.StatusBadRequest, patch(owner, member, "owner"))
	// the last admin can not step down
	require.Equal(http.StatusBadRequest, patch(owner, owner, models.RoleMember))

	require.Equal(http.StatusOK, patch(owner, member, models.RoleAdmin))
	require.Equal(http.StatusOK, patch(member, owner, models.RoleMember))
	// the owner stays in the organization even when it is not an admin anymore
	require.Equal(http.StatusBadRequest, remove(member, owner))

	require.Equal(http.StatusOK, patch(member, owner, models.RoleAdmin))
	require.Equal(http.StatusNoContent, remove(owner, member))
	require.Equal(http.StatusNotFound, remove(owner, member))

	org, err := suite.api.createOrganization(context.Background(), owner.ID, models.AddOrganization{Name: "Second"})
	require.NoError(err)
	require.Equal("second", org.Slug)
}
