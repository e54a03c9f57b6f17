package models

import (
	"strings"
	"time"
)

// User is a person that can sign in and be a member of organizations.
type User struct {
	Base
	Email           string        `json:"email" gorm:"uniqueIndex" example:"jane@example.com"`
	FullName        string        `json:"full_name" example:"Jane Doe"`
	PasswordHash    string        `json:"-"`
	EmailVerifiedAt *time.Time    `json:"email_verified_at"`
	Memberships     []*Membership `json:"-"`
}

func (u *User) EmailVerified() bool {
	return u.EmailVerifiedAt != nil
}

// DisplayName is the full name of the user, or the email when no name was given.
func (u *User) DisplayName() string {
	if strings.TrimSpace(u.FullName) != "" {
		return u.FullName
	}
	return u.Email
}

// NormalizeEmail lowercases and trims an email address so it can be compared and stored.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// RegisterUser is the form submitted to create an account
type RegisterUser struct {
	FullName string `json:"full_name" form:"full_name"`
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
}

// LoginUser is the form submitted to sign in
type LoginUser struct {
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
	Next     string `json:"next" form:"next"`
}

// ResetPassword is the form submitted to replace a forgotten password
type ResetPassword struct {
	Token    string `json:"token" form:"token"`
	Password string `json:"password" form:"password"`
}
