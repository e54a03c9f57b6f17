// Package signalbus delivers "something changed" notifications for named signals.  Subscribers
// are expected to refetch the state they care about when signaled.
package signalbus

import (
	"sync"
)

type SignalBus interface {
	// Notify will notify all the subscriptions created for the given named signal.
	Notify(name string)
	// NotifyAll will notify all the subscriptions
	NotifyAll()
	// Subscribe creates a subscription the named signal
	Subscribe(name string) *Subscription
}

var _ SignalBus = &signalBus{} // type check the interface is implemented.

type signalBus struct {
	mu      sync.RWMutex
	signals map[string][]*Subscription
}

// NewSignalBus creates an in memory SignalBus
func NewSignalBus() SignalBus {
	return &signalBus{
		signals: make(map[string][]*Subscription),
	}
}

func (sb *signalBus) Notify(name string) {
	sb.mu.RLock()
	subs := append([]*Subscription(nil), sb.signals[name]...)
	sb.mu.RUnlock()
	for _, sub := range subs {
		sub.signal()
	}
}

func (sb *signalBus) NotifyAll() {
	var subs []*Subscription
	sb.mu.RLock()
	for _, s := range sb.signals {
		subs = append(subs, s...)
	}
	sb.mu.RUnlock()
	for _, sub := range subs {
		sub.signal()
	}
}

func (sb *signalBus) Subscribe(name string) *Subscription {
	sub := &Subscription{
		sb:   sb,
		name: name,
		c:    make(chan struct{}, 1),
	}
	sb.mu.Lock()
	sb.signals[name] = append(sb.signals[name], sub)
	sb.mu.Unlock()
	return sub
}

func (sb *signalBus) subscribers(name string) int {
	sb.mu.RLock()
	defer sb.mu.RUnlock()
	return len(sb.signals[name])
}

func (sb *signalBus) close(sub *Subscription) {
	sb.mu.Lock()
	defer sb.mu.Unlock()
	subs := sb.signals[sub.name]
	for i, s := range subs {
		if s != sub {
			continue
		}
		last := len(subs) - 1
		subs[i] = subs[last]
		subs[last] = nil
		subs = subs[:last]
		break
	}
	if len(subs) == 0 {
		delete(sb.signals, sub.name)
	} else {
		sb.signals[sub.name] = subs
	}
}

type Subscription struct {
	sb        *signalBus
	name      string
	closeOnce sync.Once
	c         chan struct{}
}

// signal never blocks, pending notifications are coalesced into one.
func (sub *Subscription) signal() {
	select {
	case sub.c <- struct{}{}:
	default:
	}
}

// Signal returns a channel that receives a message when the subscription is notified.
//
// Signal is provided for use in select statements:
//
//	sub := bus.Subscribe(signalbus.OrderSignal(orderID))
//	defer sub.Close()
//	for {
//		select {
//		case <-sub.Signal():
//			// refetch the order state
//		case <-ctx.Done():
//			return
//		}
//	}
func (sub *Subscription) Signal() <-chan struct{} {
	return sub.c
}

// Name is the signal the subscription listens to.
func (sub *Subscription) Name() string {
	return sub.name
}

// IsSignaled checks to see if the subscription has been notified, consuming the notification.
func (sub *Subscription) IsSignaled() bool {
	select {
	case <-sub.c:
		return true
	default:
		return false
	}
}

// Close is used to close out the subscription.  It is safe to call more than once.
func (sub *Subscription) Close() {
	sub.closeOnce.Do(func() {
		sub.sb.close(sub)
	})
}
