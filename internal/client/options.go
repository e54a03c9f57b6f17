package client

import (
	"crypto/tls"
	"time"

	"go.uber.org/zap"
)

type options struct {
	email     string
	password  string
	tlsConfig *tls.Config
	userAgent string
	timeout   time.Duration
	logger    *zap.SugaredLogger
}

func newOptions(opts ...Option) (*options, error) {
	o := &options{
		userAgent: "supplai-client",
		logger:    zap.NewNop().Sugar(),
	}
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, err
		}
	}
	return o, nil
}

type Option func(o *options) error

// WithPasswordGrant signs the client in when it is created.
func WithPasswordGrant(
	email string,
	password string,
) Option {
	return func(o *options) error {
		o.email = email
		o.password = password
		return nil
	}
}

func WithUserAgent(
	userAgent string,
) Option {
	return func(o *options) error {
		o.userAgent = userAgent
		return nil
	}
}

func WithTLSConfig(
	config *tls.Config,
) Option {
	return func(o *options) error {
		o.tlsConfig = config
		return nil
	}
}

// WithTimeout bounds the plain requests.  Watch streams are only bounded by their context.
func WithTimeout(
	timeout time.Duration,
) Option {
	return func(o *options) error {
		o.timeout = timeout
		return nil
	}
}

func WithLogger(
	logger *zap.SugaredLogger,
) Option {
	return func(o *options) error {
		o.logger = logger
		return nil
	}
}
