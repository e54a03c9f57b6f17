package database

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"regexp"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	AdminDatabaseURLEnv = "SUPPLAI_ADMIN_DATABASE_URL"
	ServiceRoleEnv      = "SUPPLAI_SERVICE_ROLE"
)

// ErrMissingAdminConfig is returned when the admin client cannot be configured from the environment.
var ErrMissingAdminConfig = errors.New("missing admin database configuration")

var roleNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// AdminConfig holds what is needed to open a connection that is not scoped to a tenant.
type AdminConfig struct {
	DatabaseURL string
	ServiceRole string
}

// AdminConfigFromEnv reads the admin client configuration.  Every missing variable is named in the error.
func AdminConfigFromEnv() (AdminConfig, error) {
	return adminConfigFrom(os.Getenv)
}

func adminConfigFrom(getenv func(string) string) (AdminConfig, error) {
	cfg := AdminConfig{
		DatabaseURL: strings.TrimSpace(getenv(AdminDatabaseURLEnv)),
		ServiceRole: strings.TrimSpace(getenv(ServiceRoleEnv)),
	}
	var missing []string
	if cfg.DatabaseURL == "" {
		missing = append(missing, AdminDatabaseURLEnv)
	}
	if cfg.ServiceRole == "" {
		missing = append(missing, ServiceRoleEnv)
	}
	if len(missing) > 0 {
		return AdminConfig{}, fmt.Errorf("%w: %s not set", ErrMissingAdminConfig, strings.Join(missing, ", "))
	}
	return cfg, nil
}

// Validate checks the configuration without touching the network.
func (c AdminConfig) Validate() error {
	var missing []string
	if c.DatabaseURL == "" {
		missing = append(missing, AdminDatabaseURLEnv)
	}
	if c.ServiceRole == "" {
		missing = append(missing, ServiceRoleEnv)
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s not set", ErrMissingAdminConfig, strings.Join(missing, ", "))
	}
	if !roleNamePattern.MatchString(c.ServiceRole) {
		return fmt.Errorf("invalid service role %q", c.ServiceRole)
	}
	return nil
}

// DSN returns the connection string with the service role set as the session role, so every
// statement of the connection runs with the privileges of that role.
func (c AdminConfig) DSN() (string, error) {
	if err := c.Validate(); err != nil {
		return "", err
	}
	if strings.HasPrefix(c.DatabaseURL, "postgres://") || strings.HasPrefix(c.DatabaseURL, "postgresql://") {
		u, err := url.Parse(c.DatabaseURL)
		if err != nil {
			return "", fmt.Errorf("invalid %s: %w", AdminDatabaseURLEnv, err)
		}
		q := u.Query()
		q.Set("role", c.ServiceRole)
		u.RawQuery = q.Encode()
		return u.String(), nil
	}
	return fmt.Sprintf("%s role=%s", c.DatabaseURL, c.ServiceRole), nil
}

// NewAdminClient opens the privileged connection used by onboarding, the token flows and the
// dispatcher.  Queries on it are not scoped to the memberships of a user.
func NewAdminClient(ctx context.Context, logger *zap.SugaredLogger, cfg AdminConfig) (*gorm.DB, error) {
	dsn, err := cfg.DSN()
	if err != nil {
		return nil, err
	}
	db, err := openWithRetry(ctx, logger, dsn)
	if err != nil {
		return nil, err
	}
	logger.Infow("admin database client ready", "role", cfg.ServiceRole)
	return db, nil
}
