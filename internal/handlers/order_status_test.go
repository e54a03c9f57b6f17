package handlers

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/supplai-io/supplai/internal/models"
	"github.com/supplai-io/supplai/internal/signalbus"
)

// placeOrder creates an organization with one supplier and an order for it.
func (suite *HandlerTestSuite) placeOrder(owner *models.User) models.Order {
	org := suite.createOrganization(owner, "Acme Bakery")
	mill := suite.createSupplier(org, "Mill Co", "sales@mill.example")
	code, order := suite.postOrder(owner, org.Slug, models.AddOrder{
		Lines: []models.AddOrderLine{{SupplierID: mill.ID, Product: "Flour", Quantity: 25, Unit: "kg"}},
	})
	suite.Require().Equal(http.StatusCreated, code)
	return order
}

func (suite *HandlerTestSuite) markSent(order models.Order) {
	suite.Require().NoError(suite.api.db.Model(&models.SupplierOrder{}).
		Where("order_id = ?", order.ID).
		Updates(map[string]interface{}{"status": models.SupplierOrderSent, "sent_at": time.Now()}).Error)
	suite.bus.Notify(signalbus.OrderSignal(order.ID))
}

func (suite *HandlerTestSuite) statusServer() *httptest.Server {
	r := gin.New()
	r.GET("/api/orders/:id/email-status", suite.api.RequireUser(JSON), suite.api.GetOrderEmailStatus)
	r.GET("/api/orders/:id/email-status/ws", suite.api.RequireUser(JSON), suite.api.WatchOrderEmailStatus)
	return httptest.NewServer(r)
}

func decodeStatus(value interface{}) (models.OrderEmailStatus, error) {
	var status models.OrderEmailStatus
	data, err := json.Marshal(value)
	if err != nil {
		return status, err
	}
	err = json.Unmarshal(data, &status)
	return status, err
}

func (suite *HandlerTestSuite) TestGetOrderEmailStatus() {
	require := suite.Require()
	owner := suite.createUser("jane@acme.example", true)
	stranger := suite.createUser("joe@other.example", true)
	order := suite.placeOrder(owner)

	path := "/api/orders/" + order.ID.String() + "/email-status"
	res := suite.ServeRequest(suite.jsonRequest(http.MethodGet, path, nil, owner), "/api/orders/:id/email-status",
		suite.api.RequireUser(JSON), suite.api.GetOrderEmailStatus)
	require.Equal(http.StatusOK, res.Code)
	var status models.OrderEmailStatus
	require.NoError(json.Unmarshal(res.Body.Bytes(), &status))
	require.Equal(order.ID, status.OrderID)
	require.Equal(1, status.Total)
	require.Equal(1, status.Pending)
	require.False(status.EmailSent)
	require.Equal("Mill Co", status.Suppliers[0].SupplierName)

	suite.markSent(order)
	res = suite.ServeRequest(suite.jsonRequest(http.MethodGet, path, nil, owner), "/api/orders/:id/email-status",
		suite.api.RequireUser(JSON), suite.api.GetOrderEmailStatus)
	require.Equal(http.StatusOK, res.Code)
	require.NoError(json.Unmarshal(res.Body.Bytes(), &status))
	require.True(status.EmailSent)
	require.NotNil(status.Suppliers[0].SentAt)

	res = suite.ServeRequest(suite.jsonRequest(http.MethodGet, path, nil, stranger), "/api/orders/:id/email-status",
		suite.api.RequireUser(JSON), suite.api.GetOrderEmailStatus)
	require.Equal(http.StatusNotFound, res.Code)

	res = suite.ServeRequest(suite.jsonRequest(http.MethodGet, path, nil, nil), "/api/orders/:id/email-status",
		suite.api.RequireUser(JSON), suite.api.GetOrderEmailStatus)
	require.Equal(http.StatusUnauthorized, res.Code)
}

func (suite *HandlerTestSuite) TestWatchOrderEmailStatus() {
	require := suite.Require()
	owner := suite.createUser("jane@acme.example", true)
	order := suite.placeOrder(owner)
	cookie := suite.sessionCookie(owner)

	server := suite.statusServer()
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, server.URL+"/api/orders/"+order.ID.String()+"/email-status?watch=true", nil)
	require.NoError(err)
	req.AddCookie(cookie)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(err)
	defer resp.Body.Close()
	require.Equal(http.StatusOK, resp.StatusCode)
	require.Equal(WatchContentType, resp.Header.Get("Content-Type"))

	scanner := bufio.NewScanner(resp.Body)
	nextEvent := func() models.WatchEvent {
		require.True(scanner.Scan(), "stream ended: %v", scanner.Err())
		var event models.WatchEvent
		require.NoError(json.Unmarshal(scanner.Bytes(), &event))
		return event
	}

	event := nextEvent()
	require.Equal(EventChange, event.Type)
	require.Equal(orderEmailStatusKind, event.Kind)
	status, err := decodeStatus(event.Value)
	require.NoError(err)
	require.False(status.EmailSent)

	event = nextEvent()
	require.Equal(EventBookmark, event.Type)

	suite.markSent(order)
	event = nextEvent()
	require.Equal(EventChange, event.Type)
	status, err = decodeStatus(event.Value)
	require.NoError(err)
	require.True(status.EmailSent)
	require.Equal(1, status.Sent)
}

func (suite *HandlerTestSuite) TestWatchOrderEmailStatusWebsocket() {
	require := suite.Require()
	owner := suite.createUser("jane@acme.example", true)
	stranger := suite.createUser("joe@other.example", true)
	order := suite.placeOrder(owner)

	server := suite.statusServer()
	defer server.Close()
	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/api/orders/" + order.ID.String() + "/email-status/ws"

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// the upgrade is refused to non members
	_, resp, err := websocket.Dial(ctx, url, &websocket.DialOptions{
		HTTPHeader: http.Header{"Cookie": {suite.sessionCookie(stranger).String()}},
	})
	require.Error(err)
	require.NotNil(resp)
	require.Equal(http.StatusNotFound, resp.StatusCode)

	conn, _, err := websocket.Dial(ctx, url, &websocket.DialOptions{
		HTTPHeader: http.Header{"Cookie": {suite.sessionCookie(owner).String()}},
	})
	require.NoError(err)
	defer conn.Close(websocket.StatusNormalClosure, "")

	var event models.WatchEvent
	require.NoError(wsjson.Read(ctx, conn, &event))
	require.Equal(EventChange, event.Type)
	require.NoError(wsjson.Read(ctx, conn, &event))
	require.Equal(EventBookmark, event.Type)

	suite.markSent(order)
	require.NoError(wsjson.Read(ctx, conn, &event))
	require.Equal(EventChange, event.Type)
	status, err := decodeStatus(event.Value)
	require.NoError(err)
	require.True(status.EmailSent)
}
