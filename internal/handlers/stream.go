package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"reflect"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/supplai-io/supplai/internal/models"
	"github.com/supplai-io/supplai/internal/signalbus"
)

const (
	WatchContentType = "application/json;stream=watch"

	EventChange   = "change"
	EventBookmark = "bookmark"
	EventError    = "error"
	EventClose    = "close"
)

// snapshotWatcher turns a signal subscription into the events of a watch.  A watch does not send
// diffs: every change event carries the complete snapshot returned by load.  The first snapshot
// is followed by a bookmark so clients know the initial state is complete.
type snapshotWatcher struct {
	sub          *signalbus.Subscription
	kind         string
	timeout      time.Duration
	load         func(ctx context.Context) (any, error)
	last         []byte
	bookmarkSent bool
}

func (w *snapshotWatcher) next(ctx context.Context) models.WatchEvent {
	// This function blocks until there is an event to return...
	for {
		if ctx.Err() != nil {
			return models.WatchEvent{Type: EventClose}
		}
		value, err := w.load(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return models.WatchEvent{Type: EventClose}
			}
			return models.WatchEvent{Kind: w.kind, Type: EventError, Value: err.Error()}
		}
		data, err := json.Marshal(value)
		if err != nil {
			return models.WatchEvent{Kind: w.kind, Type: EventError, Value: err.Error()}
		}
		if w.last == nil || !bytes.Equal(w.last, data) {
			w.last = data
			return models.WatchEvent{Kind: w.kind, Type: EventChange, Value: value}
		}

		// bookmark idea taken from: https://kubernetes.io/docs/reference/using-api/api-concepts/#watch-bookmarks
		if !w.bookmarkSent {
			w.bookmarkSent = true
			return models.WatchEvent{Kind: w.kind, Type: EventBookmark}
		}

		// Wait for the snapshot to change, the timeout re-checks it in case a signal got lost.
		if waitForCancelTimeoutOrNotification(ctx, w.timeout, w.sub.Signal()) == -2 {
			// ctx was canceled... likely due to the http connection being closed by
			// the client.  Signal the event stream is done.
			return models.WatchEvent{Type: EventClose}
		}
	}
}

func stream(c *gin.Context, nextEvent func() models.WatchEvent) {
	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		c.JSON(http.StatusInternalServerError, models.NewApiError(fmt.Errorf("streaming unsupported")))
		return
	}
	c.Header("Content-Type", WatchContentType)
	c.Status(http.StatusOK)
	for {
		result := nextEvent()
		if result.Type == EventClose {
			return
		}
		// Encode terminates every event with a newline
		if err := json.NewEncoder(c.Writer).Encode(result); err != nil {
			return
		}
		flusher.Flush() // sends the result to the client (forces Transfer-Encoding: chunked)
		if result.Type == EventError {
			return
		}
	}
}

// waitForCancelTimeoutOrNotification returns -2 if ctx is closed, -1 on timeout, otherwise the index of the channel that
// was notified.
func waitForCancelTimeoutOrNotification(ctx context.Context, timeout time.Duration, channels ...<-chan struct{}) int {
	tc, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	cases := []reflect.SelectCase{
		{Dir: reflect.SelectRecv, Chan: reflect.ValueOf(ctx.Done())},
		{Dir: reflect.SelectRecv, Chan: reflect.ValueOf(tc.Done())},
	}
	for _, ch := range channels {
		cases = append(cases, reflect.SelectCase{Dir: reflect.SelectRecv, Chan: reflect.ValueOf(ch)})
	}
	chosen, _, _ := reflect.Select(cases)
	return chosen - 2
}
