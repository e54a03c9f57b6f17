package routers

import (
	"net/http"
	"sync/atomic"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/supplai-io/supplai/internal/models"
	"github.com/supplai-io/supplai/internal/util/cache"
)

type UserLimiters struct {
	counter int32
}

func (c *UserLimiters) Add() int32 {
	return atomic.AddInt32(&c.counter, 1)
}

func (c *UserLimiters) Done() int32 {
	return atomic.AddInt32(&c.counter, -1)
}

// WatchLimiter bounds how many long lived streams one user can hold open.  A zero max means no limit.
type WatchLimiter struct {
	max   int32
	users *cache.RWMutexCache[uuid.UUID, *UserLimiters]
}

func NewWatchLimiter(maxPerUser int) *WatchLimiter {
	return &WatchLimiter{
		max:   int32(maxPerUser),
		users: cache.NewRWMutexCache[uuid.UUID, *UserLimiters](),
	}
}

// Acquire reserves a stream for userID.  The returned release func must be called once the stream ends.
func (l *WatchLimiter) Acquire(userID uuid.UUID) (release func(), ok bool) {
	limiters := l.users.GetOrPut(userID, func() *UserLimiters {
		return &UserLimiters{}
	})
	if n := limiters.Add(); l.max > 0 && n > l.max {
		limiters.Done()
		return nil, false
	}
	return func() { limiters.Done() }, true
}

// Middleware applies the limit to the requests matched by isWatch.  It must run after the
// user was authenticated.
func (l *WatchLimiter) Middleware(isWatch func(*gin.Context) bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !isWatch(c) {
			c.Next()
			return
		}
		userID, ok := c.Get(gin.AuthUserKey)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, models.NewUnauthorizedError())
			return
		}
		release, ok := l.Acquire(userID.(uuid.UUID))
		if !ok {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, models.NewTooManyRequestsError())
			return
		}
		defer release()
		c.Next()
	}
}
