package fflags

import (
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/supplai-io/supplai/internal/util"
)

const (
	Registration      = "registration"
	EmailVerification = "email-verification"
	SupplierEmails    = "supplier-emails"
)

// FFlags holds the feature flags of the server.  Flags are evaluated every time they are read so
// environment changes apply without a restart.
type FFlags struct {
	logger *zap.SugaredLogger
	mu     sync.RWMutex
	flags  map[string]func() bool
}

func NewFFlags(logger *zap.SugaredLogger) *FFlags {
	return &FFlags{
		logger: logger,
		flags:  map[string]func() bool{},
	}
}

// Defaults registers the flags known to supplai.
func (f *FFlags) Defaults() *FFlags {
	f.RegisterEnvFlag(Registration, "SUPPLAI_FFLAG_REGISTRATION", true)
	f.RegisterEnvFlag(EmailVerification, "SUPPLAI_FFLAG_EMAIL_VERIFICATION", true)
	f.RegisterEnvFlag(SupplierEmails, "SUPPLAI_FFLAG_SUPPLIER_EMAILS", true)
	return f
}

func (f *FFlags) RegisterFlag(name string, fn func() bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.flags[name] = fn
}

// RegisterEnvFlag registers a flag read from env, falling back to defaultValue when env is unset or not a bool.
func (f *FFlags) RegisterEnvFlag(name string, env string, defaultValue bool) {
	f.RegisterFlag(name, func() bool {
		return util.GetenvBool(env, defaultValue)
	})
}

// ListFlags returns a map of all currently defined feature flags and
// whether those features are enabled (true) or not (false).
func (f *FFlags) ListFlags() map[string]bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	result := make(map[string]bool, len(f.flags))
	for name, fn := range f.flags {
		result[name] = fn()
	}
	return result
}

// Names returns the registered flag names in order.
func (f *FFlags) Names() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	names := make([]string, 0, len(f.flags))
	for name := range f.flags {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// GetFlag returns whether the feature named by the string parameter
// flag is enabled (true) or not (false). An error is returned if
// the flag name is invalid.
func (f *FFlags) GetFlag(flag string) (bool, error) {
	f.mu.RLock()
	fn, ok := f.flags[flag]
	f.mu.RUnlock()
	if !ok {
		return false, fmt.Errorf("invalid feature flag name: %s", flag)
	}
	return fn(), nil
}

// IsEnabled is GetFlag for flags the caller knows exist.  Unknown flags are disabled.
func (f *FFlags) IsEnabled(flag string) bool {
	enabled, err := f.GetFlag(flag)
	if err != nil {
		f.logger.Errorw("unknown feature flag", "flag", flag)
		return false
	}
	return enabled
}
