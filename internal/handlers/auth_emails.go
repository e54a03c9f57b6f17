package handlers

import (
	"bytes"
	_ "embed"
	"fmt"
	htmltemplate "html/template"
	"net/url"
	texttemplate "text/template"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/supplai-io/supplai/internal/email"
	"github.com/supplai-io/supplai/internal/models"
	"github.com/supplai-io/supplai/internal/security"
)

const (
	resetPasswordTTL = time.Hour
	verifyEmailTTL   = 48 * time.Hour
)

//go:embed templates/email/account.html
var accountHtml string
var accountHtmlTemplate *htmltemplate.Template

//go:embed templates/email/account.txt
var accountText string
var accountTextTemplate *texttemplate.Template

func init() {
	var err error
	accountHtmlTemplate, err = htmltemplate.New("templates/email/account.html").Parse(accountHtml)
	if err != nil {
		panic(err)
	}
	accountTextTemplate, err = texttemplate.New("templates/email/account.txt").Parse(accountText)
	if err != nil {
		panic(err)
	}
}

type accountEmail struct {
	Name        string
	Subject     string
	Intro       string
	ActionURL   string
	ActionLabel string
	ExpiresIn   string
}

func (api *API) actionURL(path string, token string) string {
	return fmt.Sprintf("%s%s?%s", api.URL, path, url.Values{"token": []string{token}}.Encode())
}

// composeVerifyEmail builds the email that confirms the address of a new account.  The token is
// bound to the address so it stops working once the address changes.
func (api *API) composeVerifyEmail(user *models.User) (email.Message, error) {
	token, err := api.tokens.Issue(security.PurposeVerifyEmail, user.ID, security.Fingerprint(user.Email), verifyEmailTTL)
	if err != nil {
		return email.Message{}, err
	}
	return api.composeAccountEmail(user.Email, accountEmail{
		Name:        user.DisplayName(),
		Subject:     "Confirm your email address",
		Intro:       "Confirm the email address of your Supplai account by following the link below.",
		ActionURL:   api.actionURL("/verify-email", token),
		ActionLabel: "Confirm email",
		ExpiresIn:   humanize.Time(api.now().Add(verifyEmailTTL + 30*time.Second)),
	})
}

// composeResetPasswordEmail builds the password reset email.  The token is bound to the current
// password hash, so it is spent as soon as the password changes.
func (api *API) composeResetPasswordEmail(user *models.User) (email.Message, error) {
	token, err := api.tokens.Issue(security.PurposeResetPassword, user.ID, security.Fingerprint(user.PasswordHash), resetPasswordTTL)
	if err != nil {
		return email.Message{}, err
	}
	return api.composeAccountEmail(user.Email, accountEmail{
		Name:        user.DisplayName(),
		Subject:     "Reset your Supplai password",
		Intro:       "Someone asked to reset the password of your Supplai account. Follow the link below to choose a new one.",
		ActionURL:   api.actionURL("/reset-password", token),
		ActionLabel: "Choose a new password",
		ExpiresIn:   humanize.Time(api.now().Add(resetPasswordTTL + 30*time.Second)),
	})
}

func (api *API) composeAccountEmail(to string, variables accountEmail) (email.Message, error) {
	html := bytes.NewBuffer(nil)
	if err := accountHtmlTemplate.Execute(html, variables); err != nil {
		return email.Message{}, err
	}
	text := bytes.NewBuffer(nil)
	if err := accountTextTemplate.Execute(text, variables); err != nil {
		return email.Message{}, err
	}
	return email.Message{
		From:         api.MailFrom,
		To:           []string{to},
		Subject:      variables.Subject,
		PlainMessage: text.String(),
		HtmlMessages: html.String(),
		Date:         api.now(),
	}, nil
}
