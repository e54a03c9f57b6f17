package handlers

import (
	"context"
	"fmt"
	"html/template"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-session/session/v3"
	"github.com/google/uuid"
	"github.com/gorilla/securecookie"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/supplai-io/supplai/internal/database"
	"github.com/supplai-io/supplai/internal/email"
	"github.com/supplai-io/supplai/internal/fflags"
	"github.com/supplai-io/supplai/internal/models"
	"github.com/supplai-io/supplai/internal/queue"
	"github.com/supplai-io/supplai/internal/security"
	"github.com/supplai-io/supplai/internal/signalbus"
	"github.com/supplai-io/supplai/internal/util"
)

var tracer trace.Tracer

func init() {
	tracer = otel.Tracer("github.com/supplai-io/supplai/internal/handlers")
}

// Config holds the settings of the API that do not come with a collaborator.
type Config struct {
	// URL is the externally visible base URL, used in email links.
	URL string
	// MailFrom is the sender address of account emails.
	MailFrom string
	// CookieKey signs the flash cookie, at least 32 bytes.
	CookieKey []byte
	// TokenKey signs password reset and email verification tokens, at least 32 bytes.
	TokenKey      []byte
	SecureCookies bool
	BcryptCost    int
	// WatchTimeout is how long a watch stream idles before re-checking state.
	WatchTimeout time.Duration
}

const emailTimeout = 30 * time.Second

type API struct {
	logger           *zap.SugaredLogger
	db               *gorm.DB
	adminDB          *gorm.DB
	transaction      database.TransactionFunc
	adminTransaction database.TransactionFunc
	dialect          database.Dialect
	fflags           *fflags.FFlags
	signalBus        signalbus.SignalBus
	queue            queue.Queue
	sessionManager   *session.Manager
	flash            *securecookie.SecureCookie
	hasher           *security.Hasher
	tokens           *security.TokenIssuer
	mailer           email.Sender
	pages            *template.Template
	Redis            *redis.Client
	URL              string
	MailFrom         string
	SecureCookies    bool
	watchTimeout     time.Duration
	now              func() time.Time
	emails           sync.WaitGroup
}

// NewAPI wires the handlers to their collaborators.  db is the user path where every query is
// scoped by membership; adminDB runs as the service role and is only used for account and
// onboarding writes.
func NewAPI(
	parent context.Context,
	logger *zap.SugaredLogger,
	db *gorm.DB,
	adminDB *gorm.DB,
	fflags *fflags.FFlags,
	signalBus signalbus.SignalBus,
	jobs queue.Queue,
	sessionManager *session.Manager,
	mailer email.Sender,
	cfg Config,
) (*API, error) {

	_, span := tracer.Start(parent, "NewAPI")
	defer span.End()

	transactionFunc, dialect, err := database.GetTransactionFunc(db)
	if err != nil {
		return nil, err
	}
	adminTransactionFunc, _, err := database.GetTransactionFunc(adminDB)
	if err != nil {
		return nil, err
	}

	if len(cfg.CookieKey) < 32 {
		return nil, fmt.Errorf("cookie key must be at least 32 bytes")
	}
	tokens, err := security.NewTokenIssuer(cfg.TokenKey, cfg.URL)
	if err != nil {
		return nil, err
	}

	pages, err := parsePages()
	if err != nil {
		return nil, err
	}

	watchTimeout := cfg.WatchTimeout
	if watchTimeout <= 0 {
		watchTimeout = 30 * time.Second
	}

	flash := securecookie.New(cfg.CookieKey, nil)
	flash.MaxAge(int(flashMaxAge.Seconds()))

	api := &API{
		logger:           logger,
		db:               db,
		adminDB:          adminDB,
		transaction:      transactionFunc,
		adminTransaction: adminTransactionFunc,
		dialect:          dialect,
		fflags:           fflags,
		signalBus:        signalBus,
		queue:            jobs,
		sessionManager:   sessionManager,
		flash:            flash,
		hasher:           security.NewHasher(cfg.BcryptCost),
		tokens:           tokens,
		mailer:           mailer,
		pages:            pages,
		URL:              cfg.URL,
		MailFrom:         cfg.MailFrom,
		SecureCookies:    cfg.SecureCookies,
		watchTimeout:     watchTimeout,
		now:              time.Now,
	}
	return api, nil
}

func (api *API) Logger(ctx context.Context) *zap.SugaredLogger {
	return util.WithTrace(ctx, api.logger)
}

// DB is the user path database handle.
func (api *API) DB() *gorm.DB {
	return api.db
}

func (api *API) SendInternalServerError(c *gin.Context, err error) {
	SendInternalServerError(c, api.logger, err)
}

func SendInternalServerError(c *gin.Context, logger *zap.SugaredLogger, err error) {
	ctx := c.Request.Context()
	util.WithTrace(ctx, logger).Errorw("internal server error", "error", err)

	result := models.InternalServerError{
		BaseError: models.BaseError{
			Error: "internal server error",
		},
	}
	sc := trace.SpanFromContext(ctx).SpanContext()
	if sc.HasTraceID() {
		result.TraceId = sc.TraceID().String()
	}
	c.AbortWithStatusJSON(http.StatusInternalServerError, result)
}

func (api *API) GetCurrentUserID(c *gin.Context) uuid.UUID {
	userId, found := c.Get(gin.AuthUserKey)
	if !found {
		api.SendInternalServerError(c, fmt.Errorf("no current user found"))
		panic("no current user found")
	}
	return userId.(uuid.UUID)
}

// FlagCheck answers 405 and returns false when the named feature is disabled.
func (api *API) FlagCheck(c *gin.Context, name string) bool {
	enabled, err := api.fflags.GetFlag(name)
	if err != nil {
		api.SendInternalServerError(c, err)
		return false
	}
	if !enabled {
		c.JSON(http.StatusMethodNotAllowed, models.NewNotAllowedError(fmt.Sprintf("%s support is disabled", name)))
		return false
	}
	return enabled
}

// sendEmail sends an account email in the background.  Only some requests send one, answering
// before delivery keeps them as fast as the ones that don't.  Delivery failures are logged.
func (api *API) sendEmail(ctx context.Context, message email.Message) {
	if api.mailer == nil {
		return
	}
	message.From = api.MailFrom
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), emailTimeout)
	api.emails.Add(1)
	go func() {
		defer api.emails.Done()
		defer cancel()
		if err := api.mailer.Send(ctx, message); err != nil {
			api.Logger(ctx).Warnw("failed to send email", "to", message.To, "subject", message.Subject, "error", err)
		}
	}()
}

// WaitForEmails blocks until the account emails sent so far are delivered or failed.
func (api *API) WaitForEmails() {
	api.emails.Wait()
}
