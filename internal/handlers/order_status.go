package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/supplai-io/supplai/internal/models"
	"github.com/supplai-io/supplai/internal/signalbus"
)

const orderEmailStatusKind = "OrderEmailStatus"

// orderEmailStatus tallies the supplier orders of an order.
func (api *API) orderEmailStatus(ctx context.Context, orderID uuid.UUID) (models.OrderEmailStatus, error) {
	var supplierOrders []models.SupplierOrder
	res := api.db.WithContext(ctx).
		Preload("Supplier", func(db *gorm.DB) *gorm.DB {
			return db.Unscoped()
		}).
		Where("order_id = ?", orderID).
		Order("created_at ASC").
		Find(&supplierOrders)
	if res.Error != nil {
		return models.OrderEmailStatus{}, res.Error
	}
	return models.NewOrderEmailStatus(orderID, supplierOrders), nil
}

// authorizeOrder resolves the :id path parameter to an order the current user can see.  It
// writes the error response and returns false otherwise.
func (api *API) authorizeOrder(c *gin.Context, ctx context.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, models.NewBadPathParameterError("id"))
		return uuid.Nil, false
	}
	if _, err := api.orderMembership(ctx, api.GetCurrentUserID(c), id); err != nil {
		if errors.Is(err, errOrderNotFound) {
			c.JSON(http.StatusNotFound, models.NewNotFoundError("order"))
			return uuid.Nil, false
		}
		api.SendInternalServerError(c, err)
		return uuid.Nil, false
	}
	return id, true
}

func (api *API) orderEmailStatusWatcher(orderID uuid.UUID) *snapshotWatcher {
	return &snapshotWatcher{
		sub:     api.signalBus.Subscribe(signalbus.OrderSignal(orderID)),
		kind:    orderEmailStatusKind,
		timeout: api.watchTimeout,
		load: func(ctx context.Context) (any, error) {
			return api.orderEmailStatus(ctx, orderID)
		},
	}
}

// GetOrderEmailStatus gets the email status of an order
// @Summary      Get Order Email Status
// @Description  Gets whether the supplier emails of an order were sent.  With watch=true the
// @Description  response is a stream of watch events carrying the status every time it changes.
// @Id           GetOrderEmailStatus
// @Tags         Orders
// @Accept       json
// @Produce      json
// @Param        id     path      string  true  "Order ID"
// @Param        watch  query     bool    false "stream changes"
// @Success      200  {object}  models.OrderEmailStatus
// @Failure      400  {object}  models.ValidationError
// @Failure      401  {object}  models.BaseError
// @Failure      404  {object}  models.NotFoundError
// @Failure      429  {object}  models.BaseError
// @Failure      500  {object}  models.InternalServerError "Internal Server Error"
// @Router       /api/orders/{id}/email-status [get]
func (api *API) GetOrderEmailStatus(c *gin.Context) {
	ctx, span := tracer.Start(c.Request.Context(), "GetOrderEmailStatus",
		trace.WithAttributes(
			attribute.String("id", c.Param("id")),
			attribute.String("watch", c.Query("watch")),
		))
	defer span.End()

	id, ok := api.authorizeOrder(c, ctx)
	if !ok {
		return
	}

	if c.Query("watch") == "true" {
		w := api.orderEmailStatusWatcher(id)
		defer w.sub.Close()
		stream(c, func() models.WatchEvent {
			return w.next(ctx)
		})
		return
	}

	status, err := api.orderEmailStatus(ctx, id)
	if err != nil {
		api.SendInternalServerError(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

// WatchOrderEmailStatus streams the email status of an order over a websocket
// @Summary      Watch Order Email Status
// @Description  Upgrades to a websocket that receives a watch event every time the email status of the order changes
// @Id           WatchOrderEmailStatus
// @Tags         Orders
// @Param        id     path      string  true  "Order ID"
// @Success      101
// @Failure      400  {object}  models.ValidationError
// @Failure      401  {object}  models.BaseError
// @Failure      404  {object}  models.NotFoundError
// @Failure      429  {object}  models.BaseError
// @Router       /api/orders/{id}/email-status/ws [get]
func (api *API) WatchOrderEmailStatus(c *gin.Context) {
	ctx, span := tracer.Start(c.Request.Context(), "WatchOrderEmailStatus",
		trace.WithAttributes(attribute.String("id", c.Param("id"))))
	defer span.End()

	id, ok := api.authorizeOrder(c, ctx)
	if !ok {
		return
	}

	conn, err := websocket.Accept(c.Writer, c.Request, nil)
	if err != nil {
		// Accept already wrote the error response
		api.Logger(ctx).Debugw("websocket upgrade failed", "error", err)
		return
	}
	defer func() {
		_ = conn.Close(websocket.StatusInternalError, "")
	}()

	// the client only listens; CloseRead cancels ctx once it goes away
	ctx = conn.CloseRead(ctx)

	w := api.orderEmailStatusWatcher(id)
	defer w.sub.Close()
	for {
		event := w.next(ctx)
		if event.Type == EventClose {
			_ = conn.Close(websocket.StatusNormalClosure, "")
			return
		}
		if err := wsjson.Write(ctx, conn, event); err != nil {
			api.Logger(ctx).Debugw("websocket write failed", "error", err)
			return
		}
		if event.Type == EventError {
			_ = conn.Close(websocket.StatusInternalError, "watch failed")
			return
		}
	}
}
