package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/mail"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/supplai-io/supplai/internal/database"
	"github.com/supplai-io/supplai/internal/fflags"
	"github.com/supplai-io/supplai/internal/models"
	"github.com/supplai-io/supplai/internal/security"
)

const (
	invalidCredentials  = "Invalid email or password."
	forgotPasswordSent  = "If an account exists for that address, we sent it a link to reset the password."
	verificationResent  = "If that address belongs to an account waiting for verification, we sent it a new link."
	invalidResetLink    = "This reset link is invalid or has expired."
	invalidVerifyLink   = "This verification link is invalid or has expired."
	unverifiedEmail     = "Verify your email address before signing in."
	registrationClosed  = "Registration is currently disabled."
	emailAlreadyTaken   = "An account with this email already exists."
	passwordUpdated     = "Your password was updated. Sign in with your new password."
	emailVerified       = "Your email address is verified. You can sign in now."
	accountReady        = "Your account is ready. You can sign in now."
	verificationPending = "We sent you a link to confirm your email address."
)

// unverifiedLogin is shown on the login page when the account still has to confirm its email.
type unverifiedLogin struct {
	Unverified bool
	Email      string
}

// parseEmail accepts bare addresses only, "Jane <jane@example.com>" is rejected.
func parseEmail(value string) (string, error) {
	value = models.NormalizeEmail(value)
	addr, err := mail.ParseAddress(value)
	if err != nil {
		return "", err
	}
	if addr.Address != value {
		return "", fmt.Errorf("invalid email address")
	}
	return addr.Address, nil
}

func (api *API) findUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	res := api.adminDB.WithContext(ctx).First(&user, "email = ?", models.NormalizeEmail(email))
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrRecordNotFound) {
			return nil, errUserNotFound
		}
		return nil, res.Error
	}
	return &user, nil
}

// userForToken resolves an action token to its user.  The fingerprint of the account state the
// token was issued for must still match, which is what makes tokens single use.
func (api *API) userForToken(ctx context.Context, purpose security.Purpose, token string, state func(*models.User) string) (*models.User, error) {
	userID, claims, err := api.tokens.Parse(purpose, token)
	if err != nil {
		return nil, err
	}
	var user models.User
	if res := api.adminDB.WithContext(ctx).First(&user, "id = ?", userID); res.Error != nil {
		if errors.Is(res.Error, gorm.ErrRecordNotFound) {
			return nil, security.ErrInvalidToken
		}
		return nil, res.Error
	}
	if claims.Fingerprint != security.Fingerprint(state(&user)) {
		return nil, security.ErrInvalidToken
	}
	return &user, nil
}

func passwordHashState(u *models.User) string { return u.PasswordHash }
func emailState(u *models.User) string        { return u.Email }

// redirectIfSignedIn sends users that already have a session to the home page.
func (api *API) redirectIfSignedIn(c *gin.Context) bool {
	user, err := api.loadSessionUser(c)
	if err == nil && user != nil {
		c.Redirect(http.StatusFound, "/")
		return true
	}
	return false
}

func (api *API) LoginPage(c *gin.Context) {
	if api.redirectIfSignedIn(c) {
		return
	}
	api.renderPage(c, http.StatusOK, "login", pageData{
		Title: "Sign in",
		Next:  c.Query("next"),
	})
}

// Login checks the credentials and starts a new session
func (api *API) Login(c *gin.Context) {
	ctx, span := tracer.Start(c.Request.Context(), "Login")
	defer span.End()

	var form models.LoginUser
	if err := c.ShouldBind(&form); err != nil {
		api.renderPage(c, http.StatusBadRequest, "login", pageData{Title: "Sign in", Error: invalidCredentials})
		return
	}
	form.Email = models.NormalizeEmail(form.Email)
	rejected := pageData{
		Title: "Sign in",
		Error: invalidCredentials,
		Next:  form.Next,
		Form:  models.LoginUser{Email: form.Email},
	}

	user, err := api.findUserByEmail(ctx, form.Email)
	if errors.Is(err, errUserNotFound) {
		api.hasher.DummyCompare(form.Password)
		api.renderPage(c, http.StatusUnauthorized, "login", rejected)
		return
	} else if err != nil {
		api.sendPageInternalError(c, err)
		return
	}

	if err := api.hasher.Compare(user.PasswordHash, form.Password); err != nil {
		if errors.Is(err, security.ErrPasswordMismatch) {
			api.Logger(ctx).Debugw("password mismatch", "user_id", user.ID)
			api.renderPage(c, http.StatusUnauthorized, "login", rejected)
			return
		}
		api.sendPageInternalError(c, err)
		return
	}

	if api.fflags.IsEnabled(fflags.EmailVerification) && !user.EmailVerified() {
		rejected.Error = unverifiedEmail
		rejected.Data = unverifiedLogin{Unverified: true, Email: user.Email}
		api.renderPage(c, http.StatusForbidden, "login", rejected)
		return
	}

	if err := api.startUserSession(ctx, c.Writer, c.Request, user.ID); err != nil {
		api.sendPageInternalError(c, err)
		return
	}
	api.Logger(ctx).Infow("user signed in", "user_id", user.ID)
	c.Redirect(http.StatusFound, safeNext(form.Next))
}

func (api *API) RegisterPage(c *gin.Context) {
	if !api.fflags.IsEnabled(fflags.Registration) {
		api.renderPage(c, http.StatusMethodNotAllowed, "error", pageData{Title: "Registration closed", Error: registrationClosed})
		return
	}
	if api.redirectIfSignedIn(c) {
		return
	}
	api.renderPage(c, http.StatusOK, "register", pageData{Title: "Create your account"})
}

// Register creates an account and emails the link that verifies its address
func (api *API) Register(c *gin.Context) {
	ctx, span := tracer.Start(c.Request.Context(), "Register")
	defer span.End()

	if !api.fflags.IsEnabled(fflags.Registration) {
		api.renderPage(c, http.StatusMethodNotAllowed, "error", pageData{Title: "Registration closed", Error: registrationClosed})
		return
	}

	var form models.RegisterUser
	if err := c.ShouldBind(&form); err != nil {
		api.renderPage(c, http.StatusBadRequest, "register", pageData{Title: "Create your account", Error: "The form is invalid."})
		return
	}
	form.FullName = strings.TrimSpace(form.FullName)
	form.Email = models.NormalizeEmail(form.Email)
	invalid := func(msg string) {
		api.renderPage(c, http.StatusBadRequest, "register", pageData{
			Title: "Create your account",
			Error: msg,
			Form:  models.RegisterUser{FullName: form.FullName, Email: form.Email},
		})
	}
	if form.FullName == "" {
		invalid("Enter your full name.")
		return
	}
	address, err := parseEmail(form.Email)
	if err != nil {
		invalid("Enter a valid email address.")
		return
	}
	if err := security.ValidatePassword(form.Password); err != nil {
		invalid(fmt.Sprintf("The %s.", err))
		return
	}
	hash, err := api.hasher.Hash(form.Password)
	if err != nil {
		api.sendPageInternalError(c, err)
		return
	}

	user := models.User{
		Email:        address,
		FullName:     form.FullName,
		PasswordHash: hash,
	}
	if res := api.adminDB.WithContext(ctx).Create(&user); res.Error != nil {
		if database.IsDuplicateError(res.Error) {
			api.renderPage(c, http.StatusConflict, "register", pageData{
				Title: "Create your account",
				Error: emailAlreadyTaken,
				Form:  models.RegisterUser{FullName: form.FullName, Email: form.Email},
			})
			return
		}
		api.sendPageInternalError(c, res.Error)
		return
	}
	api.Logger(ctx).Infow("user registered", "user_id", user.ID)

	message, err := api.composeVerifyEmail(&user)
	if err != nil {
		api.sendPageInternalError(c, err)
		return
	}
	api.sendEmail(ctx, message)

	if api.fflags.IsEnabled(fflags.EmailVerification) {
		api.redirectWithNotice(c, "/verify-email", verificationPending)
		return
	}
	api.redirectWithNotice(c, "/login", accountReady)
}

func (api *API) ForgotPasswordPage(c *gin.Context) {
	api.renderPage(c, http.StatusOK, "forgot_password", pageData{Title: "Reset your password"})
}

// ForgotPassword emails a reset link.  The answer is the same whether the address is known or not.
func (api *API) ForgotPassword(c *gin.Context) {
	ctx, span := tracer.Start(c.Request.Context(), "ForgotPassword")
	defer span.End()

	page := pageData{Title: "Reset your password", Notice: forgotPasswordSent}
	user, err := api.findUserByEmail(ctx, c.PostForm("email"))
	if errors.Is(err, errUserNotFound) {
		api.renderPage(c, http.StatusOK, "forgot_password", page)
		return
	} else if err != nil {
		api.sendPageInternalError(c, err)
		return
	}

	message, err := api.composeResetPasswordEmail(user)
	if err != nil {
		api.sendPageInternalError(c, err)
		return
	}
	api.sendEmail(ctx, message)
	api.renderPage(c, http.StatusOK, "forgot_password", page)
}

func (api *API) ResetPasswordPage(c *gin.Context) {
	ctx, span := tracer.Start(c.Request.Context(), "ResetPasswordPage")
	defer span.End()

	token := c.Query("token")
	if _, err := api.userForToken(ctx, security.PurposeResetPassword, token, passwordHashState); err != nil {
		if !errors.Is(err, security.ErrInvalidToken) {
			api.sendPageInternalError(c, err)
			return
		}
		api.renderPage(c, http.StatusBadRequest, "reset_password", pageData{Title: "Choose a new password", Error: invalidResetLink})
		return
	}
	api.renderPage(c, http.StatusOK, "reset_password", pageData{
		Title: "Choose a new password",
		Form:  models.ResetPassword{Token: token},
	})
}

// ResetPassword replaces the password of the user the reset token was issued for.  Replacing the
// password changes the hash the token is bound to, so this and every older reset token stop working.
func (api *API) ResetPassword(c *gin.Context) {
	ctx, span := tracer.Start(c.Request.Context(), "ResetPassword")
	defer span.End()

	var form models.ResetPassword
	if err := c.ShouldBind(&form); err != nil {
		api.renderPage(c, http.StatusBadRequest, "reset_password", pageData{Title: "Choose a new password", Error: invalidResetLink})
		return
	}

	user, err := api.userForToken(ctx, security.PurposeResetPassword, form.Token, passwordHashState)
	if err != nil {
		if !errors.Is(err, security.ErrInvalidToken) {
			api.sendPageInternalError(c, err)
			return
		}
		api.renderPage(c, http.StatusBadRequest, "reset_password", pageData{Title: "Choose a new password", Error: invalidResetLink})
		return
	}
	if err := security.ValidatePassword(form.Password); err != nil {
		api.renderPage(c, http.StatusBadRequest, "reset_password", pageData{
			Title: "Choose a new password",
			Error: fmt.Sprintf("The %s.", err),
			Form:  models.ResetPassword{Token: form.Token},
		})
		return
	}
	hash, err := api.hasher.Hash(form.Password)
	if err != nil {
		api.sendPageInternalError(c, err)
		return
	}

	updates := map[string]interface{}{"password_hash": hash}
	if !user.EmailVerified() {
		// following the emailed link proves the address
		updates["email_verified_at"] = api.now()
	}
	err = api.adminTransaction(ctx, func(tx *gorm.DB) error {
		res := tx.Model(&models.User{}).
			Where("id = ? AND password_hash = ?", user.ID, user.PasswordHash).
			Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return security.ErrInvalidToken
		}
		return nil
	})
	if errors.Is(err, security.ErrInvalidToken) {
		api.renderPage(c, http.StatusBadRequest, "reset_password", pageData{Title: "Choose a new password", Error: invalidResetLink})
		return
	} else if err != nil {
		api.sendPageInternalError(c, err)
		return
	}

	api.Logger(ctx).Infow("password reset", "user_id", user.ID)
	api.redirectWithNotice(c, "/login", passwordUpdated)
}

// VerifyEmail marks the email of the account verified.  Without a token it shows the page telling
// the user to check their inbox.
func (api *API) VerifyEmail(c *gin.Context) {
	ctx, span := tracer.Start(c.Request.Context(), "VerifyEmail")
	defer span.End()

	token := c.Query("token")
	if token == "" {
		api.renderPage(c, http.StatusOK, "verify_email", pageData{Title: "Verify your email"})
		return
	}

	user, err := api.userForToken(ctx, security.PurposeVerifyEmail, token, emailState)
	if err != nil {
		if !errors.Is(err, security.ErrInvalidToken) {
			api.sendPageInternalError(c, err)
			return
		}
		api.renderPage(c, http.StatusBadRequest, "verify_email", pageData{Title: "Verify your email", Error: invalidVerifyLink})
		return
	}

	if !user.EmailVerified() {
		res := api.adminDB.WithContext(ctx).Model(&models.User{}).
			Where("id = ? AND email_verified_at IS NULL", user.ID).
			Update("email_verified_at", api.now())
		if res.Error != nil {
			api.sendPageInternalError(c, res.Error)
			return
		}
		api.Logger(ctx).Infow("email verified", "user_id", user.ID)
	}
	api.redirectWithNotice(c, "/login", emailVerified)
}

// ResendVerification emails a new verification link to an unverified account
func (api *API) ResendVerification(c *gin.Context) {
	ctx, span := tracer.Start(c.Request.Context(), "ResendVerification")
	defer span.End()

	page := pageData{Title: "Verify your email", Notice: verificationResent}
	user, err := api.findUserByEmail(ctx, c.PostForm("email"))
	if errors.Is(err, errUserNotFound) {
		api.renderPage(c, http.StatusOK, "verify_email", page)
		return
	} else if err != nil {
		api.sendPageInternalError(c, err)
		return
	}
	if !user.EmailVerified() {
		message, err := api.composeVerifyEmail(user)
		if err != nil {
			api.sendPageInternalError(c, err)
			return
		}
		api.sendEmail(ctx, message)
	}
	api.renderPage(c, http.StatusOK, "verify_email", page)
}

// Logout destroys the session
func (api *API) Logout(c *gin.Context) {
	if err := api.destroySession(c); err != nil {
		api.Logger(c.Request.Context()).Warnw("failed to destroy session", "error", err)
	}
	c.Redirect(http.StatusFound, "/login")
}
