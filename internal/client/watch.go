package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/supplai-io/supplai/internal/models"
)

const (
	EventChange   = "change"
	EventBookmark = "bookmark"
	EventError    = "error"
)

// StatusEvent is one event of an order email status feed.  Status is set on
// change events, Error on error events.
type StatusEvent struct {
	Type   string
	Status *models.OrderEmailStatus
	Error  string
}

type rawEvent struct {
	Kind  string          `json:"kind,omitempty"`
	Type  string          `json:"type"`
	Value json.RawMessage `json:"value,omitempty"`
}

func (r rawEvent) decode() (StatusEvent, error) {
	event := StatusEvent{Type: r.Type}
	switch r.Type {
	case EventChange:
		event.Status = &models.OrderEmailStatus{}
		if err := json.Unmarshal(r.Value, event.Status); err != nil {
			return event, err
		}
	case EventError:
		if err := json.Unmarshal(r.Value, &event.Error); err != nil {
			event.Error = string(r.Value)
		}
	}
	return event, nil
}

// StatusStream yields the events of one order.
type StatusStream interface {
	Receive() (StatusEvent, error)
	Close() error
}

// WatchStream reads the newline delimited json feed.
type WatchStream struct {
	decoder *json.Decoder
	close   func() error
}

func (ws *WatchStream) Receive() (StatusEvent, error) {
	var raw rawEvent
	if err := ws.decoder.Decode(&raw); err != nil {
		return StatusEvent{}, err
	}
	return raw.decode()
}

func (ws *WatchStream) Close() error {
	return ws.close()
}

// WatchOrderEmailStatus opens the streaming feed of an order.  The first event
// is the current status, followed by a bookmark.
func (c *Client) WatchOrderEmailStatus(ctx context.Context, id uuid.UUID) (*WatchStream, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/api/orders/"+id.String()+"/email-status?watch=true", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.stream.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, newApiError(resp)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.Contains(ct, "stream=watch") {
		_ = resp.Body.Close()
		return nil, fmt.Errorf("unexpected content type: %q", ct)
	}
	return &WatchStream{
		decoder: json.NewDecoder(resp.Body),
		close:   resp.Body.Close,
	}, nil
}

// WebsocketStream reads the websocket feed.
type WebsocketStream struct {
	ctx  context.Context
	conn *websocket.Conn
}

func (ws *WebsocketStream) Receive() (StatusEvent, error) {
	var raw rawEvent
	if err := wsjson.Read(ws.ctx, ws.conn, &raw); err != nil {
		if websocket.CloseStatus(err) == websocket.StatusNormalClosure {
			return StatusEvent{}, io.EOF
		}
		return StatusEvent{}, err
	}
	return raw.decode()
}

func (ws *WebsocketStream) Close() error {
	return ws.conn.Close(websocket.StatusNormalClosure, "")
}

// DialOrderEmailStatus opens the websocket feed of an order.
func (c *Client) DialOrderEmailStatus(ctx context.Context, id uuid.UUID) (*WebsocketStream, error) {
	u := *c.baseURL
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path += "/api/orders/" + id.String() + "/email-status/ws"

	conn, resp, err := websocket.Dial(ctx, u.String(), &websocket.DialOptions{
		HTTPClient: c.stream,
		HTTPHeader: http.Header{"User-Agent": {c.userAgent}},
	})
	if err != nil {
		if resp != nil && resp.StatusCode != http.StatusSwitchingProtocols {
			return nil, &ApiError{StatusCode: resp.StatusCode, Model: models.BaseError{Error: resp.Status}}
		}
		return nil, err
	}
	return &WebsocketStream{ctx: ctx, conn: conn}, nil
}

// Follow calls fn for every change until the context ends or the stream
// fails.  Bookmarks are skipped.
func Follow(stream StatusStream, fn func(models.OrderEmailStatus) (done bool)) error {
	defer stream.Close()
	for {
		event, err := stream.Receive()
		if err != nil {
			return err
		}
		switch event.Type {
		case EventChange:
			if fn(*event.Status) {
				return nil
			}
		case EventError:
			return fmt.Errorf("watch failed: %s", event.Error)
		}
	}
}
