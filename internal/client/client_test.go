package client_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/supplai-io/supplai/internal/client"
	"github.com/supplai-io/supplai/internal/models"
)

const sessionCookie = "sid"

func mockStatus(id uuid.UUID, sent int) models.OrderEmailStatus {
	return models.OrderEmailStatus{
		OrderID:   id,
		Total:     2,
		Pending:   2 - sent,
		Sent:      sent,
		EmailSent: sent == 2,
	}
}

func sendJson(resp http.ResponseWriter, code int, value interface{}) {
	resp.Header().Set("Content-Type", "application/json")
	resp.WriteHeader(code)
	_ = json.NewEncoder(resp).Encode(value)
}

func signedIn(request *http.Request) bool {
	cookie, err := request.Cookie(sessionCookie)
	return err == nil && cookie.Value == "jane"
}

func newMockServer(t *testing.T, id uuid.UUID) *httptest.Server {
	events := []models.WatchEvent{
		{Kind: "OrderEmailStatus", Type: client.EventChange, Value: mockStatus(id, 0)},
		{Kind: "OrderEmailStatus", Type: client.EventBookmark},
		{Kind: "OrderEmailStatus", Type: client.EventChange, Value: mockStatus(id, 1)},
		{Kind: "OrderEmailStatus", Type: client.EventChange, Value: mockStatus(id, 2)},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/login", func(resp http.ResponseWriter, request *http.Request) {
		if request.Method != http.MethodPost {
			resp.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if request.PostFormValue("email") != "jane@acme.example" || request.PostFormValue("password") != "correct horse" {
			resp.WriteHeader(http.StatusUnauthorized)
			return
		}
		http.SetCookie(resp, &http.Cookie{Name: sessionCookie, Value: "jane", Path: "/", HttpOnly: true})
		http.Redirect(resp, request, "/", http.StatusFound)
	})
	mux.HandleFunc("/", func(resp http.ResponseWriter, request *http.Request) {
		// the client must not follow the login redirect
		t.Errorf("unexpected request: %s", request.URL)
	})
	mux.HandleFunc("/api/orders/"+id.String()+"/email-status", func(resp http.ResponseWriter, request *http.Request) {
		if !signedIn(request) {
			sendJson(resp, http.StatusUnauthorized, models.NewUnauthorizedError())
			return
		}
		if request.URL.Query().Get("watch") != "true" {
			sendJson(resp, http.StatusOK, mockStatus(id, 1))
			return
		}
		resp.Header().Set("Content-Type", "application/json;stream=watch")
		resp.WriteHeader(http.StatusOK)
		encoder := json.NewEncoder(resp)
		for _, event := range events {
			_ = encoder.Encode(event)
			resp.(http.Flusher).Flush()
		}
	})
	mux.HandleFunc("/api/orders/"+id.String()+"/email-status/ws", func(resp http.ResponseWriter, request *http.Request) {
		if !signedIn(request) {
			sendJson(resp, http.StatusUnauthorized, models.NewUnauthorizedError())
			return
		}
		conn, err := websocket.Accept(resp, request, nil)
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "")
		for _, event := range events {
			if err := wsjson.Write(request.Context(), conn, event); err != nil {
				return
			}
		}
	})
	mux.HandleFunc("/api/orders/", func(resp http.ResponseWriter, request *http.Request) {
		sendJson(resp, http.StatusNotFound, models.NewNotFoundError("order"))
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func testContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestLogin(t *testing.T) {
	require := require.New(t)
	id := uuid.New()
	server := newMockServer(t, id)
	ctx := testContext(t)

	_, err := client.New(ctx, server.URL, client.WithPasswordGrant("jane@acme.example", "wrong"))
	var apiErr *client.ApiError
	require.ErrorAs(err, &apiErr)
	require.Equal(http.StatusUnauthorized, apiErr.StatusCode)

	c, err := client.New(ctx, server.URL)
	require.NoError(err)
	_, err = c.GetOrderEmailStatus(ctx, id)
	require.ErrorIs(err, client.ErrNotSignedIn)

	require.NoError(c.Login(ctx, "jane@acme.example", "correct horse"))
	status, err := c.GetOrderEmailStatus(ctx, id)
	require.NoError(err)
	require.Equal(id, status.OrderID)
	require.Equal(1, status.Sent)
}

func TestNewRejectsInvalidURLs(t *testing.T) {
	_, err := client.New(context.Background(), "ftp://supplai.example")
	assert.Error(t, err)
}

func TestGetOrderEmailStatusNotFound(t *testing.T) {
	require := require.New(t)
	server := newMockServer(t, uuid.New())
	ctx := testContext(t)

	c, err := client.New(ctx, server.URL, client.WithPasswordGrant("jane@acme.example", "correct horse"))
	require.NoError(err)
	_, err = c.GetOrderEmailStatus(ctx, uuid.New())
	var apiErr *client.ApiError
	require.True(errors.As(err, &apiErr))
	require.Equal(http.StatusNotFound, apiErr.StatusCode)
	require.Contains(apiErr.Error(), "not found")
}

func TestWatchOrderEmailStatus(t *testing.T) {
	require := require.New(t)
	id := uuid.New()
	server := newMockServer(t, id)
	ctx := testContext(t)

	c, err := client.New(ctx, server.URL, client.WithPasswordGrant("jane@acme.example", "correct horse"))
	require.NoError(err)

	stream, err := c.WatchOrderEmailStatus(ctx, id)
	require.NoError(err)
	event, err := stream.Receive()
	require.NoError(err)
	require.Equal(client.EventChange, event.Type)
	require.Equal(0, event.Status.Sent)
	event, err = stream.Receive()
	require.NoError(err)
	require.Equal(client.EventBookmark, event.Type)
	require.Nil(event.Status)

	var seen []int
	err = client.Follow(stream, func(status models.OrderEmailStatus) bool {
		seen = append(seen, status.Sent)
		return status.EmailSent
	})
	require.NoError(err)
	require.Equal([]int{1, 2}, seen)
}

func TestDialOrderEmailStatus(t *testing.T) {
	require := require.New(t)
	id := uuid.New()
	server := newMockServer(t, id)
	ctx := testContext(t)

	c, err := client.New(ctx, server.URL)
	require.NoError(err)
	_, err = c.DialOrderEmailStatus(ctx, id)
	var apiErr *client.ApiError
	require.ErrorAs(err, &apiErr)
	require.Equal(http.StatusUnauthorized, apiErr.StatusCode)

	require.NoError(c.Login(ctx, "jane@acme.example", "correct horse"))
	stream, err := c.DialOrderEmailStatus(ctx, id)
	require.NoError(err)

	var seen []int
	err = client.Follow(stream, func(status models.OrderEmailStatus) bool {
		seen = append(seen, status.Sent)
		return status.EmailSent
	})
	require.NoError(err)
	require.Equal([]int{0, 1, 2}, seen)
}
