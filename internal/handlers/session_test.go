package handlers

import (
	"net/http"

	"github.com/alicebob/miniredis/v2"
	redisStore "github.com/go-session/redis/v3"
)

func (suite *HandlerTestSuite) TestRedisSessions() {
	require := suite.Require()
	mr := miniredis.RunT(suite.T())
	suite.api.sessionManager = NewSessionManager(redisStore.NewRedisStore(&redisStore.Options{
		Addr: mr.Addr(),
	}), false)

	user := suite.createUser("jane@acme.example", true)
	cookie := suite.sessionCookie(user)
	require.NotNil(cookie)
	require.NotEmpty(mr.Keys())

	request := func(method, uri string) *http.Request {
		req := suite.jsonRequest(method, uri, nil, nil)
		req.AddCookie(cookie)
		return req
	}
	res := suite.ServeRequest(request(http.MethodGet, "/api/organizations"), "/api/organizations", suite.api.RequireUser(JSON), suite.api.ListOrganizations)
	require.Equal(http.StatusOK, res.Code)

	res = suite.ServeRequest(request(http.MethodPost, "/logout"), "/logout", suite.api.Logout)
	require.Equal(http.StatusFound, res.Code)
	require.Equal("/login", res.Header().Get("Location"))
	require.Empty(mr.Keys())

	res = suite.ServeRequest(request(http.MethodGet, "/api/organizations"), "/api/organizations", suite.api.RequireUser(JSON), suite.api.ListOrganizations)
	require.Equal(http.StatusUnauthorized, res.Code)
}

func (suite *HandlerTestSuite) TestStaleSessionCookieIsCleared() {
	require := suite.Require()
	mr := miniredis.RunT(suite.T())
	suite.api.sessionManager = NewSessionManager(redisStore.NewRedisStore(&redisStore.Options{
		Addr: mr.Addr(),
	}), false)

	user := suite.createUser("jane@acme.example", true)
	cookie := suite.sessionCookie(user)
	mr.FlushAll()

	for i := 0; i < 3; i++ {
		req := suite.jsonRequest(http.MethodGet, "/api/organizations", nil, nil)
		req.AddCookie(cookie)
		res := suite.ServeRequest(req, "/api/organizations", suite.api.RequireUser(JSON), suite.api.ListOrganizations)
		require.Equal(http.StatusUnauthorized, res.Code)

		cleared := findCookie(res.Result().Cookies(), SESSION_ID_COOKIE_NAME)
		require.NotNil(cleared)
		require.Empty(cleared.Value)
		require.Less(cleared.MaxAge, 0)
	}
	require.Empty(mr.Keys())
}

func (suite *HandlerTestSuite) TestSessionWithoutCookieIsNotStarted() {
	require := suite.Require()
	mr := miniredis.RunT(suite.T())
	suite.api.sessionManager = NewSessionManager(redisStore.NewRedisStore(&redisStore.Options{
		Addr: mr.Addr(),
	}), false)

	res := suite.ServeRequest(suite.jsonRequest(http.MethodGet, "/api/organizations", nil, nil), "/api/organizations",
		suite.api.RequireUser(JSON), suite.api.ListOrganizations)
	require.Equal(http.StatusUnauthorized, res.Code)
	require.Empty(mr.Keys())
	require.Nil(findCookie(res.Result().Cookies(), SESSION_ID_COOKIE_NAME))
}
