package database

import (
	"context"
	"fmt"
	"time"

	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/supplai-io/supplai/internal/util"
)

var tracer trace.Tracer

func init() {
	tracer = otel.Tracer("github.com/supplai-io/supplai/internal/database")
}

// NewDatabase connects to PostgreSQL retrying with an exponential backoff until the server answers
// or the context is done.  It returns the DSN used so listeners can open their own connections.
func NewDatabase(
	ctx context.Context,
	logger *zap.SugaredLogger,
	host string,
	user string,
	password string,
	dbname string,
	port string,
	sslmode string,
) (*gorm.DB, string, error) {
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
		host, user, password, dbname, port, sslmode)
	db, err := openWithRetry(ctx, logger, dsn)
	if err != nil {
		return nil, "", err
	}
	return db, dsn, nil
}

func openWithRetry(ctx context.Context, logger *zap.SugaredLogger, dsn string) (*gorm.DB, error) {
	ctx, span := tracer.Start(ctx, "Connect")
	defer span.End()

	var db *gorm.DB
	connectDb := func() error {
		var err error
		db, err = gorm.Open(postgres.Open(dsn), &gorm.Config{
			Logger:                                   NewLogger(logger),
			DisableForeignKeyConstraintWhenMigrating: true,
		})
		if err != nil {
			logger.Warnf("database connection failed, retrying: %v", err)
			return err
		}
		return nil
	}

	if err := util.RetryWithExponentialBackoff(ctx, 500*time.Millisecond, 2*time.Minute, connectDb); err != nil {
		return nil, fmt.Errorf("could not connect to the database: %w", err)
	}
	if err := db.Use(otelgorm.NewPlugin()); err != nil {
		return nil, err
	}
	return db, nil
}
