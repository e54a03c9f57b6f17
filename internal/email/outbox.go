package email

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Outbox is a Sender that keeps messages in memory instead of delivering them.  It is used
// when no SMTP server is configured so links still show up in the logs.
type Outbox struct {
	mu       sync.Mutex
	logger   *zap.SugaredLogger
	messages []Message
	// Err, when set, is returned by Send instead of storing the message
	Err error
}

func NewOutbox(logger *zap.SugaredLogger) *Outbox {
	return &Outbox{logger: logger}
}

func (o *Outbox) Send(ctx context.Context, message Message) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.Err != nil {
		return o.Err
	}
	if o.logger != nil {
		o.logger.Infow("email not delivered, no smtp server configured", "to", message.To, "subject", message.Subject, "body", message.PlainMessage)
	}
	o.messages = append(o.messages, message)
	return nil
}

// Messages returns a copy of everything sent so far.
func (o *Outbox) Messages() []Message {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]Message(nil), o.messages...)
}

// Last returns the most recent message sent to address.
func (o *Outbox) Last(address string) (Message, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for i := len(o.messages) - 1; i >= 0; i-- {
		for _, to := range o.messages[i].To {
			if to == address {
				return o.messages[i], true
			}
		}
	}
	return Message{}, false
}
