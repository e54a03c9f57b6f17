package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"time"

	"github.com/supplai-io/supplai/internal/models"
	"github.com/supplai-io/supplai/internal/security"
)

func (suite *HandlerTestSuite) TestLogin() {
	require := suite.Require()
	suite.createUser("jane@acme.example", true)

	req := suite.formRequest(http.MethodPost, "/login", url.Values{
		"email":    {"  Jane@Acme.example "},
		"password": {testPassword},
		"next":     {"/org/acme-bakery/orders/new"},
	}, nil)
	res := suite.ServeRequest(req, "/login", suite.api.Login)
	require.Equal(http.StatusFound, res.Code)
	require.Equal("/org/acme-bakery/orders/new", res.Header().Get("Location"))
	require.NotNil(findCookie(res.Result().Cookies(), SESSION_ID_COOKIE_NAME))
}

func (suite *HandlerTestSuite) TestLoginIgnoresForeignNext() {
	require := suite.Require()
	suite.createUser("jane@acme.example", true)

	req := suite.formRequest(http.MethodPost, "/login", url.Values{
		"email":    {"jane@acme.example"},
		"password": {testPassword},
		"next":     {"https://evil.example/"},
	}, nil)
	res := suite.ServeRequest(req, "/login", suite.api.Login)
	require.Equal(http.StatusFound, res.Code)
	require.Equal("/", res.Header().Get("Location"))
}

func (suite *HandlerTestSuite) TestLoginRotatesSessionID() {
	require := suite.Require()
	suite.createUser("jane@acme.example", true)

	// a session that existed before signing in
	pre := httptest.NewRecorder()
	store, err := suite.api.sessionManager.Start(context.Background(), pre, httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(err)
	require.NoError(store.Save())
	before := findCookie(pre.Result().Cookies(), SESSION_ID_COOKIE_NAME)
	require.NotNil(before)

	req := suite.formRequest(http.MethodPost, "/login", url.Values{
		"email":    {"jane@acme.example"},
		"password": {testPassword},
	}, nil)
	req.AddCookie(before)
	res := suite.ServeRequest(req, "/login", suite.api.Login)
	require.Equal(http.StatusFound, res.Code)
	after := findCookie(res.Result().Cookies(), SESSION_ID_COOKIE_NAME)
	require.NotNil(after)
	require.NotEqual(before.Value, after.Value)
}

func (suite *HandlerTestSuite) TestLoginRejectsBadCredentials() {
	require := suite.Require()
	suite.createUser("jane@acme.example", true)

	for _, form := range []url.Values{
		{"email": {"jane@acme.example"}, "password": {"wrong password"}},
		{"email": {"nobody@acme.example"}, "password": {testPassword}},
	} {
		req := suite.formRequest(http.MethodPost, "/login", form, nil)
		res := suite.ServeRequest(req, "/login", suite.api.Login)
		require.Equal(http.StatusUnauthorized, res.Code)
		require.Contains(res.Body.String(), "Invalid email or password.")
		require.Nil(findCookie(res.Result().Cookies(), SESSION_ID_COOKIE_NAME))
	}
}

func (suite *HandlerTestSuite) TestLoginRequiresVerifiedEmail() {
	require := suite.Require()
	suite.createUser("jane@acme.example", false)

	req := suite.formRequest(http.MethodPost, "/login", url.Values{
		"email":    {"jane@acme.example"},
		"password": {testPassword},
	}, nil)
	res := suite.ServeRequest(req, "/login", suite.api.Login)
	require.Equal(http.StatusForbidden, res.Code)
	require.Contains(res.Body.String(), "Verify your email address before signing in.")
	require.Contains(res.Body.String(), `action="/verify-email/resend"`)

	suite.T().Setenv("SUPPLAI_FFLAG_EMAIL_VERIFICATION", "false")
	req = suite.formRequest(http.MethodPost, "/login", url.Values{
		"email":    {"jane@acme.example"},
		"password": {testPassword},
	}, nil)
	res = suite.ServeRequest(req, "/login", suite.api.Login)
	require.Equal(http.StatusFound, res.Code)
}

func (suite *HandlerTestSuite) TestLoginPageRedirectsSignedInUsers() {
	require := suite.Require()
	user := suite.createUser("jane@acme.example", true)

	res := suite.ServeRequest(suite.formRequest(http.MethodGet, "/login", nil, user), "/login", suite.api.LoginPage)
	require.Equal(http.StatusFound, res.Code)
	require.Equal("/", res.Header().Get("Location"))

	res = suite.ServeRequest(suite.formRequest(http.MethodGet, "/register", nil, user), "/register", suite.api.RegisterPage)
	require.Equal(http.StatusFound, res.Code)
	require.Equal("/", res.Header().Get("Location"))

	res = suite.ServeRequest(httptest.NewRequest(http.MethodGet, "/login?next=%2Forg%2Facme", nil), "/login", suite.api.LoginPage)
	require.Equal(http.StatusOK, res.Code)
	require.Contains(res.Body.String(), `name="next" value="/org/acme"`)
}

func (suite *HandlerTestSuite) TestRegister() {
	require := suite.Require()

	req := suite.formRequest(http.MethodPost, "/register", url.Values{
		"full_name": {"Jane Doe"},
		"email":     {"Jane@Acme.example"},
		"password":  {testPassword},
	}, nil)
	res := suite.ServeRequest(req, "/register", suite.api.Register)
	require.Equal(http.StatusFound, res.Code)
	require.Equal("/verify-email", res.Header().Get("Location"))

	var user models.User
	require.NoError(suite.api.db.First(&user, "email = ?", "jane@acme.example").Error)
	require.Equal("Jane Doe", user.FullName)
	require.False(user.EmailVerified())
	require.NotEqual(testPassword, user.PasswordHash)
	require.NoError(suite.api.hasher.Compare(user.PasswordHash, testPassword))

	msg, ok := suite.lastEmail("jane@acme.example")
	require.True(ok)
	require.Equal("Confirm your email address", msg.Subject)
	require.Contains(msg.PlainMessage, "http://supplai.test/verify-email?token=")
}

func (suite *HandlerTestSuite) TestRegisterRejectsDuplicateEmail() {
	require := suite.Require()
	suite.createUser("jane@acme.example", true)

	req := suite.formRequest(http.MethodPost, "/register", url.Values{
		"full_name": {"Jane Again"},
		"email":     {"jane@acme.example"},
		"password":  {testPassword},
	}, nil)
	res := suite.ServeRequest(req, "/register", suite.api.Register)
	require.Equal(http.StatusConflict, res.Code)
	require.Contains(res.Body.String(), "An account with this email already exists.")
}

func (suite *HandlerTestSuite) TestRegisterValidation() {
	require := suite.Require()
	cases := []struct {
		form     url.Values
		contains string
	}{
		{url.Values{"full_name": {"Jane"}, "email": {"jane@acme.example"}, "password": {"short"}}, "at least 8 characters"},
		{url.Values{"full_name": {"Jane"}, "email": {"not-an-email"}, "password": {testPassword}}, "valid email address"},
		{url.Values{"full_name": {"Jane"}, "email": {"Jane <jane@acme.example>"}, "password": {testPassword}}, "valid email address"},
		{url.Values{"full_name": {"  "}, "email": {"jane@acme.example"}, "password": {testPassword}}, "full name"},
	}
	for _, tc := range cases {
		res := suite.ServeRequest(suite.formRequest(http.MethodPost, "/register", tc.form, nil), "/register", suite.api.Register)
		require.Equal(http.StatusBadRequest, res.Code, tc.form.Encode())
		require.Contains(res.Body.String(), tc.contains)
	}
	var count int64
	require.NoError(suite.api.db.Model(&models.User{}).Count(&count).Error)
	require.Zero(count)
}

func (suite *HandlerTestSuite) TestRegistrationDisabled() {
	require := suite.Require()
	suite.T().Setenv("SUPPLAI_FFLAG_REGISTRATION", "false")

	res := suite.ServeRequest(httptest.NewRequest(http.MethodGet, "/register", nil), "/register", suite.api.RegisterPage)
	require.Equal(http.StatusMethodNotAllowed, res.Code)

	req := suite.formRequest(http.MethodPost, "/register", url.Values{
		"full_name": {"Jane Doe"},
		"email":     {"jane@acme.example"},
		"password":  {testPassword},
	}, nil)
	res = suite.ServeRequest(req, "/register", suite.api.Register)
	require.Equal(http.StatusMethodNotAllowed, res.Code)
}

func (suite *HandlerTestSuite) TestVerifyEmail() {
	require := suite.Require()
	user := suite.createUser("jane@acme.example", false)

	res := suite.ServeRequest(suite.formRequest(http.MethodPost, "/verify-email/resend", url.Values{"email": {"jane@acme.example"}}, nil),
		"/verify-email/resend", suite.api.ResendVerification)
	require.Equal(http.StatusOK, res.Code)
	token := suite.lastToken("jane@acme.example")

	res = suite.ServeRequest(httptest.NewRequest(http.MethodGet, "/verify-email?token="+token, nil), "/verify-email", suite.api.VerifyEmail)
	require.Equal(http.StatusFound, res.Code)
	require.Equal("/login", res.Header().Get("Location"))

	require.NoError(suite.api.db.First(user, "id = ?", user.ID).Error)
	require.True(user.EmailVerified())

	// resending to a verified account sends nothing
	sent := len(suite.sentEmails())
	res = suite.ServeRequest(suite.formRequest(http.MethodPost, "/verify-email/resend", url.Values{"email": {"jane@acme.example"}}, nil),
		"/verify-email/resend", suite.api.ResendVerification)
	require.Equal(http.StatusOK, res.Code)
	require.Len(suite.sentEmails(), sent)
}

func (suite *HandlerTestSuite) TestVerifyEmailRejectsBadTokens() {
	require := suite.Require()
	user := suite.createUser("jane@acme.example", false)

	res := suite.ServeRequest(httptest.NewRequest(http.MethodGet, "/verify-email", nil), "/verify-email", suite.api.VerifyEmail)
	require.Equal(http.StatusOK, res.Code)

	res = suite.ServeRequest(httptest.NewRequest(http.MethodGet, "/verify-email?token=garbage", nil), "/verify-email", suite.api.VerifyEmail)
	require.Equal(http.StatusBadRequest, res.Code)

	// a reset token can not verify an email
	token, err := suite.api.tokens.Issue(security.PurposeResetPassword, user.ID, security.Fingerprint(user.Email), time.Hour)
	require.NoError(err)
	res = suite.ServeRequest(httptest.NewRequest(http.MethodGet, "/verify-email?token="+token, nil), "/verify-email", suite.api.VerifyEmail)
	require.Equal(http.StatusBadRequest, res.Code)

	// the token is bound to the address it was sent to
	token, err = suite.api.tokens.Issue(security.PurposeVerifyEmail, user.ID, security.Fingerprint("old@acme.example"), time.Hour)
	require.NoError(err)
	res = suite.ServeRequest(httptest.NewRequest(http.MethodGet, "/verify-email?token="+token, nil), "/verify-email", suite.api.VerifyEmail)
	require.Equal(http.StatusBadRequest, res.Code)
}

func (suite *HandlerTestSuite) TestForgotPasswordDoesNotLeakAccounts() {
	require := suite.Require()
	suite.createUser("jane@acme.example", true)

	unknown := suite.ServeRequest(suite.formRequest(http.MethodPost, "/forgot-password", url.Values{"email": {"nobody@acme.example"}}, nil),
		"/forgot-password", suite.api.ForgotPassword)
	known := suite.ServeRequest(suite.formRequest(http.MethodPost, "/forgot-password", url.Values{"email": {"jane@acme.example"}}, nil),
		"/forgot-password", suite.api.ForgotPassword)

	require.Equal(http.StatusOK, unknown.Code)
	require.Equal(http.StatusOK, known.Code)
	require.Equal(unknown.Body.String(), known.Body.String())
	require.Len(suite.sentEmails(), 1)
	require.Equal([]string{"jane@acme.example"}, suite.sentEmails()[0].To)
}

func (suite *HandlerTestSuite) TestResetPassword() {
	require := suite.Require()
	suite.createUser("jane@acme.example", true)

	suite.ServeRequest(suite.formRequest(http.MethodPost, "/forgot-password", url.Values{"email": {"jane@acme.example"}}, nil),
		"/forgot-password", suite.api.ForgotPassword)
	token := suite.lastToken("jane@acme.example")

	res := suite.ServeRequest(httptest.NewRequest(http.MethodGet, "/reset-password?token="+token, nil), "/reset-password", suite.api.ResetPasswordPage)
	require.Equal(http.StatusOK, res.Code)
	require.Contains(res.Body.String(), token)

	// too short, the token stays usable
	res = suite.ServeRequest(suite.formRequest(http.MethodPost, "/reset-password", url.Values{"token": {token}, "password": {"short"}}, nil),
		"/reset-password", suite.api.ResetPassword)
	require.Equal(http.StatusBadRequest, res.Code)

	newPassword := "a brand new secret"
	res = suite.ServeRequest(suite.formRequest(http.MethodPost, "/reset-password", url.Values{"token": {token}, "password": {newPassword}}, nil),
		"/reset-password", suite.api.ResetPassword)
	require.Equal(http.StatusFound, res.Code)
	require.Equal("/login", res.Header().Get("Location"))

	// the token is spent
	res = suite.ServeRequest(suite.formRequest(http.MethodPost, "/reset-password", url.Values{"token": {token}, "password": {"yet another secret"}}, nil),
		"/reset-password", suite.api.ResetPassword)
	require.Equal(http.StatusBadRequest, res.Code)
	res = suite.ServeRequest(httptest.NewRequest(http.MethodGet, "/reset-password?token="+token, nil), "/reset-password", suite.api.ResetPasswordPage)
	require.Equal(http.StatusBadRequest, res.Code)

	res = suite.ServeRequest(suite.formRequest(http.MethodPost, "/login", url.Values{"email": {"jane@acme.example"}, "password": {newPassword}}, nil),
		"/login", suite.api.Login)
	require.Equal(http.StatusFound, res.Code)
	res = suite.ServeRequest(suite.formRequest(http.MethodPost, "/login", url.Values{"email": {"jane@acme.example"}, "password": {testPassword}}, nil),
		"/login", suite.api.Login)
	require.Equal(http.StatusUnauthorized, res.Code)
}

func (suite *HandlerTestSuite) TestResetPasswordInvalidatesOlderTokens() {
	require := suite.Require()
	suite.createUser("jane@acme.example", true)

	forgot := func() string {
		suite.ServeRequest(suite.formRequest(http.MethodPost, "/forgot-password", url.Values{"email": {"jane@acme.example"}}, nil),
			"/forgot-password", suite.api.ForgotPassword)
		return suite.lastToken("jane@acme.example")
	}
	first := forgot()
	second := forgot()

	res := suite.ServeRequest(suite.formRequest(http.MethodPost, "/reset-password", url.Values{"token": {second}, "password": {"a brand new secret"}}, nil),
		"/reset-password", suite.api.ResetPassword)
	require.Equal(http.StatusFound, res.Code)

	res = suite.ServeRequest(suite.formRequest(http.MethodPost, "/reset-password", url.Values{"token": {first}, "password": {"yet another secret"}}, nil),
		"/reset-password", suite.api.ResetPassword)
	require.Equal(http.StatusBadRequest, res.Code)
}

func (suite *HandlerTestSuite) TestResetPasswordVerifiesEmail() {
	require := suite.Require()
	user := suite.createUser("jane@acme.example", false)

	suite.ServeRequest(suite.formRequest(http.MethodPost, "/forgot-password", url.Values{"email": {"jane@acme.example"}}, nil),
		"/forgot-password", suite.api.ForgotPassword)
	token := suite.lastToken("jane@acme.example")
	res := suite.ServeRequest(suite.formRequest(http.MethodPost, "/reset-password", url.Values{"token": {token}, "password": {"a brand new secret"}}, nil),
		"/reset-password", suite.api.ResetPassword)
	require.Equal(http.StatusFound, res.Code)

	require.NoError(suite.api.db.First(user, "id = ?", user.ID).Error)
	require.True(user.EmailVerified())
}

func (suite *HandlerTestSuite) TestLogout() {
	require := suite.Require()
	user := suite.createUser("jane@acme.example", true)
	cookie := suite.sessionCookie(user)

	req := httptest.NewRequest(http.MethodPost, "/logout", nil)
	req.AddCookie(cookie)
	res := suite.ServeRequest(req, "/logout", suite.api.Logout)
	require.Equal(http.StatusFound, res.Code)
	require.Equal("/login", res.Header().Get("Location"))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookie)
	res = suite.ServeRequest(req, "/", suite.api.RequireUser(Pages), suite.api.Home)
	require.Equal(http.StatusFound, res.Code)
	require.True(strings.HasPrefix(res.Header().Get("Location"), "/login"))
}
