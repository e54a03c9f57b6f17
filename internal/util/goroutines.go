package util

import (
	"context"
	"sync"
	"time"
)

// GoWithWaitGroup runs fn in a goroutine with an optional *sync.WaitGroup to
// track when fn finishes executing.
func GoWithWaitGroup(wg *sync.WaitGroup, fn func()) {
	if wg == nil {
		go fn()
		return
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		fn()
	}()
}

// RunPeriodically calls fn every interval until ctx is done.
func RunPeriodically(ctx context.Context, interval time.Duration, fn func()) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fn()
		}
	}
}
