package signalbus

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/lib/pq"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/supplai-io/supplai/internal/util"
)

const pgChannel = "signalbus"

var _ SignalBus = &PgSignalBus{} // type check the interface is implemented.

// PgSignalBus is a SignalBus shared by every process connected to the same PostgreSQL database.
// Notifications go through pg_notify and come back to each process through a LISTEN connection,
// where they are handed to the local in memory bus.
type PgSignalBus struct {
	db         *gorm.DB
	local      SignalBus
	connectDSN string
	logger     *zap.SugaredLogger
}

func NewPgSignalBus(local SignalBus, db *gorm.DB, connectDSN string, logger *zap.SugaredLogger) *PgSignalBus {
	return &PgSignalBus{
		db:         db,
		connectDSN: connectDSN,
		local:      local,
		logger:     logger,
	}
}

func (pgsb *PgSignalBus) Notify(name string) {
	if err := pgsb.db.Exec("SELECT pg_notify(?, ?)", pgChannel, name).Error; err != nil {
		pgsb.logger.Warnw("notify failed, signaling local subscribers only", "signal", name, "error", err)
		pgsb.local.Notify(name)
	}
}

func (pgsb *PgSignalBus) NotifyAll() {
	if err := pgsb.db.Exec("SELECT pg_notify(?, ?)", pgChannel, "*").Error; err != nil {
		pgsb.logger.Warnw("notify all failed, signaling local subscribers only", "error", err)
		pgsb.local.NotifyAll()
	}
}

func (pgsb *PgSignalBus) Subscribe(name string) *Subscription {
	return pgsb.local.Subscribe(name)
}

// Start listens for notifications until ctx is done.
func (pgsb *PgSignalBus) Start(ctx context.Context, wg *sync.WaitGroup) {
	util.GoWithWaitGroup(wg, func() {
		listener := pq.NewListener(pgsb.connectDSN, 10*time.Second, time.Minute, func(ev pq.ListenerEventType, err error) {
			if err != nil {
				pgsb.logger.Infow("pq listener event", "event", ev, "error", err)
			}
			// notifications may have been missed while disconnected
			if ev == pq.ListenerEventReconnected {
				pgsb.local.NotifyAll()
			}
		})
		defer util.IgnoreError(listener.Close)

		if err := listener.Listen(pgChannel); err != nil {
			pgsb.logger.Errorw("error listening to signalbus channel", "error", err)
			return
		}
		for {
			exit, err := pgsb.waitForNotification(ctx, listener)
			if err != nil {
				pgsb.logger.Errorw("error waiting for notification", "error", err)
				time.Sleep(1 * time.Second)
			}
			if exit {
				return
			}
		}
	})
}

func (pgsb *PgSignalBus) waitForNotification(ctx context.Context, l *pq.Listener) (exit bool, err error) {
	for {
		select {
		case <-ctx.Done():
			return true, nil
		case n := <-l.Notify:
			if n == nil {
				return false, errors.New("postgres listener channel closed")
			}
			pgsb.logger.Debugw("received signal", "channel", n.Channel, "signal", n.Extra)
			if n.Extra == "*" {
				pgsb.local.NotifyAll()
			} else {
				pgsb.local.Notify(n.Extra)
			}
			return false, nil
		case <-time.After(90 * time.Second):
			if err := l.Ping(); err != nil {
				return false, err
			}
		}
	}
}
