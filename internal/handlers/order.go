package handlers

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/supplai-io/supplai/internal/models"
	"github.com/supplai-io/supplai/internal/queue"
	"github.com/supplai-io/supplai/internal/signalbus"
)

const (
	maxOrderLines        = 200
	maxReferenceLength   = 64
	orderFormLines       = 5
	ordersPageSize       = 50
	deliveryDateLayout   = "2006-01-02"
	defaultReferenceDate = "20060102"
)

var errOrderNotFound = errors.New("order not found")

// validateOrder checks the request and returns the supplier ids in the order they first appear.
func validateOrder(request *models.AddOrder) ([]uuid.UUID, error) {
	request.Reference = strings.TrimSpace(request.Reference)
	request.Notes = strings.TrimSpace(request.Notes)
	if len(request.Reference) > maxReferenceLength {
		return nil, NewApiResponseError(http.StatusBadRequest, models.NewFieldValidationError("reference", fmt.Sprintf("at most %d characters", maxReferenceLength)))
	}
	if len(request.Lines) == 0 {
		return nil, NewApiResponseError(http.StatusBadRequest, models.NewFieldValidationError("lines", "an order needs at least one line"))
	}
	if len(request.Lines) > maxOrderLines {
		return nil, NewApiResponseError(http.StatusBadRequest, models.NewFieldValidationError("lines", fmt.Sprintf("at most %d lines", maxOrderLines)))
	}

	var supplierIDs []uuid.UUID
	seen := map[uuid.UUID]struct{}{}
	for i := range request.Lines {
		line := &request.Lines[i]
		line.Product = strings.TrimSpace(line.Product)
		line.Unit = strings.TrimSpace(line.Unit)
		field := fmt.Sprintf("lines[%d]", i)
		if line.SupplierID == uuid.Nil {
			return nil, NewApiResponseError(http.StatusBadRequest, models.NewFieldNotPresentError(field+".supplier_id"))
		}
		if line.Product == "" {
			return nil, NewApiResponseError(http.StatusBadRequest, models.NewFieldNotPresentError(field+".product"))
		}
		if math.IsNaN(line.Quantity) || math.IsInf(line.Quantity, 0) || line.Quantity <= 0 {
			return nil, NewApiResponseError(http.StatusBadRequest, models.NewFieldValidationError(field+".quantity", "must be a positive number"))
		}
		if _, ok := seen[line.SupplierID]; !ok {
			seen[line.SupplierID] = struct{}{}
			supplierIDs = append(supplierIDs, line.SupplierID)
		}
	}
	return supplierIDs, nil
}

// groupLines splits the order lines into the items of one supplier order per supplier.
func groupLines(lines []models.AddOrderLine) map[uuid.UUID][]models.OrderItem {
	items := map[uuid.UUID][]models.OrderItem{}
	for _, line := range lines {
		items[line.SupplierID] = append(items[line.SupplierID], models.OrderItem{
			Product:  line.Product,
			Quantity: line.Quantity,
			Unit:     line.Unit,
		})
	}
	return items
}

func defaultReference(id uuid.UUID, now time.Time) string {
	return fmt.Sprintf("PO-%s-%s", now.Format(defaultReferenceDate), id.String()[:4])
}

// createOrder stores the order with one pending supplier order per supplier, then queues the
// supplier emails.  Jobs are only published after the commit, pending rows whose job got lost are
// picked up by the dispatcher recovery.
func (api *API) createOrder(ctx context.Context, org *models.Organization, userID uuid.UUID, request models.AddOrder) (models.Order, error) {
	supplierIDs, err := validateOrder(&request)
	if err != nil {
		return models.Order{}, err
	}
	items := groupLines(request.Lines)

	order := models.Order{
		Base:           models.Base{ID: uuid.New()},
		OrganizationID: org.ID,
		CreatedByID:    userID,
		Reference:      request.Reference,
		Notes:          request.Notes,
		DeliveryDate:   request.DeliveryDate,
	}
	if order.Reference == "" {
		order.Reference = defaultReference(order.ID, api.now())
	}

	err = api.transaction(ctx, func(tx *gorm.DB) error {
		var suppliers []models.Supplier
		if res := tx.Where("organization_id = ? AND id IN ?", org.ID, supplierIDs).Find(&suppliers); res.Error != nil {
			return res.Error
		}
		known := make(map[uuid.UUID]*models.Supplier, len(suppliers))
		for i := range suppliers {
			known[suppliers[i].ID] = &suppliers[i]
		}
		for i, line := range request.Lines {
			if _, ok := known[line.SupplierID]; !ok {
				return NewApiResponseError(http.StatusBadRequest, models.NewFieldValidationError(fmt.Sprintf("lines[%d].supplier_id", i), "unknown supplier"))
			}
		}

		if res := tx.Create(&order); res.Error != nil {
			return res.Error
		}
		order.SupplierOrders = make([]*models.SupplierOrder, 0, len(supplierIDs))
		for _, supplierID := range supplierIDs {
			so := &models.SupplierOrder{
				OrderID:        order.ID,
				OrganizationID: org.ID,
				SupplierID:     supplierID,
				Items:          items[supplierID],
				Status:         models.SupplierOrderPending,
			}
			if res := tx.Create(so); res.Error != nil {
				return res.Error
			}
			so.Supplier = known[supplierID]
			order.SupplierOrders = append(order.SupplierOrders, so)
		}
		return nil
	})
	if err != nil {
		return models.Order{}, err
	}

	jobs := make([]queue.Job, 0, len(order.SupplierOrders))
	for _, so := range order.SupplierOrders {
		jobs = append(jobs, queue.Job{SupplierOrderID: so.ID, OrderID: order.ID})
	}
	if err := api.queue.Publish(ctx, jobs...); err != nil {
		api.Logger(ctx).Warnw("failed to queue supplier emails, recovery will send them", "order_id", order.ID, "error", err)
	}
	api.signalBus.Notify(signalbus.OrderSignal(order.ID))
	api.signalBus.Notify(signalbus.OrganizationOrdersSignal(org.ID))

	api.Logger(ctx).Infow("order created", "order_id", order.ID, "organization_id", org.ID, "supplier_orders", len(order.SupplierOrders))
	return order, nil
}

// orderFromForm reads the new order form.  Lines are parallel form arrays, rows left completely
// empty are skipped.
func orderFromForm(c *gin.Context) (models.AddOrder, error) {
	request := models.AddOrder{
		Reference: c.PostForm("reference"),
		Notes:     c.PostForm("notes"),
	}
	if v := strings.TrimSpace(c.PostForm("delivery_date")); v != "" {
		d, err := time.Parse(deliveryDateLayout, v)
		if err != nil {
			return request, NewApiResponseError(http.StatusBadRequest, models.NewInvalidField("delivery_date"))
		}
		request.DeliveryDate = &d
	}
	supplierIDs := c.PostFormArray("supplier_id")
	products := c.PostFormArray("product")
	quantities := c.PostFormArray("quantity")
	units := c.PostFormArray("unit")
	at := func(values []string, i int) string {
		if i < len(values) {
			return strings.TrimSpace(values[i])
		}
		return ""
	}
	for i := 0; i < len(supplierIDs) || i < len(products); i++ {
		line := models.AddOrderLine{
			Product: at(products, i),
			Unit:    at(units, i),
		}
		rawSupplier := at(supplierIDs, i)
		rawQuantity := at(quantities, i)
		if rawSupplier == "" && line.Product == "" && rawQuantity == "" {
			continue
		}
		if rawSupplier != "" {
			id, err := uuid.Parse(rawSupplier)
			if err != nil {
				return request, NewApiResponseError(http.StatusBadRequest, models.NewInvalidField(fmt.Sprintf("lines[%d].supplier_id", len(request.Lines))))
			}
			line.SupplierID = id
		}
		if rawQuantity != "" {
			q, err := strconv.ParseFloat(rawQuantity, 64)
			if err != nil {
				return request, NewApiResponseError(http.StatusBadRequest, models.NewInvalidField(fmt.Sprintf("lines[%d].quantity", len(request.Lines))))
			}
			line.Quantity = q
		}
		request.Lines = append(request.Lines, line)
	}
	return request, nil
}

// loadOrder loads an order of the organization with its supplier orders.  Suppliers deleted since
// the order was placed are still shown.
func (api *API) loadOrder(ctx context.Context, orgID uuid.UUID, id uuid.UUID) (models.Order, error) {
	var order models.Order
	res := api.db.WithContext(ctx).
		Preload("SupplierOrders", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC")
		}).
		Preload("SupplierOrders.Supplier", func(db *gorm.DB) *gorm.DB {
			return db.Unscoped()
		}).
		First(&order, "id = ? AND organization_id = ?", id, orgID)
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrRecordNotFound) {
			return order, errOrderNotFound
		}
		return order, res.Error
	}
	return order, nil
}

// orderMembership returns the membership of userID in the organization of the order.  Orders
// of organizations the user is not a member of are reported as not found.
func (api *API) orderMembership(ctx context.Context, userID uuid.UUID, id uuid.UUID) (models.Membership, error) {
	var membership models.Membership
	res := api.db.WithContext(ctx).
		Joins("JOIN orders ON orders.organization_id = memberships.organization_id").
		Where("orders.id = ? AND orders.deleted_at IS NULL AND memberships.user_id = ?", id, userID).
		First(&membership)
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrRecordNotFound) {
			return membership, errOrderNotFound
		}
		return membership, res.Error
	}
	return membership, nil
}

// orderForUser loads an order the user can see together with the role of the user in its organization.
func (api *API) orderForUser(ctx context.Context, userID uuid.UUID, id uuid.UUID) (models.Order, models.Role, error) {
	membership, err := api.orderMembership(ctx, userID, id)
	if err != nil {
		return models.Order{}, "", err
	}
	order, err := api.loadOrder(ctx, membership.OrganizationID, id)
	return order, membership.Role, err
}

func supplierOrderValues(order models.Order) []models.SupplierOrder {
	values := make([]models.SupplierOrder, 0, len(order.SupplierOrders))
	for _, so := range order.SupplierOrders {
		values = append(values, *so)
	}
	return values
}

// OrdersPage lists the latest orders of the organization
func (api *API) OrdersPage(c *gin.Context) {
	org, _ := currentOrganization(c)
	orders := []models.Order{}
	res := api.db.WithContext(c.Request.Context()).
		Preload("SupplierOrders").
		Where("organization_id = ?", org.ID).
		Order("created_at DESC").
		Limit(ordersPageSize).
		Find(&orders)
	if res.Error != nil {
		api.sendPageInternalError(c, res.Error)
		return
	}
	api.renderPage(c, http.StatusOK, "orders", pageData{Title: "Orders", Data: orders})
}

// NewOrderPage shows the order form with the suppliers of the organization
func (api *API) NewOrderPage(c *gin.Context) {
	org, _ := currentOrganization(c)
	suppliers, err := api.listSuppliers(c.Request.Context(), org.ID)
	if err != nil {
		api.sendPageInternalError(c, err)
		return
	}
	api.renderNewOrderPage(c, http.StatusOK, suppliers, "")
}

func (api *API) renderNewOrderPage(c *gin.Context, status int, suppliers []models.Supplier, errMsg string) {
	lines := make([]int, orderFormLines)
	for i := range lines {
		lines[i] = i
	}
	var data any
	if len(suppliers) > 0 {
		data = suppliers
	}
	api.renderPage(c, status, "order_new", pageData{Title: "New order", Error: errMsg, Form: lines, Data: data})
}

// CreateOrderForm handles the new order form
func (api *API) CreateOrderForm(c *gin.Context) {
	ctx, span := tracer.Start(c.Request.Context(), "CreateOrderForm")
	defer span.End()

	org, _ := currentOrganization(c)
	request, err := orderFromForm(c)
	if err == nil {
		var order models.Order
		order, err = api.createOrder(ctx, org, api.GetCurrentUserID(c), request)
		if err == nil {
			api.redirectWithNotice(c, fmt.Sprintf("/org/%s/orders/%s", org.Slug, order.ID), "Order placed, the suppliers are being emailed.")
			return
		}
	}

	var apiResponseError *ApiResponseError
	if !errors.As(err, &apiResponseError) {
		api.sendPageInternalError(c, err)
		return
	}
	suppliers, lerr := api.listSuppliers(ctx, org.ID)
	if lerr != nil {
		api.sendPageInternalError(c, lerr)
		return
	}
	msg := "Check the order lines: every line needs a supplier, a product and a positive quantity."
	if v, ok := apiResponseError.Body.(models.ValidationError); ok && v.Reason == "unknown supplier" {
		msg = "One of the selected suppliers no longer exists."
	}
	api.renderNewOrderPage(c, apiResponseError.Status, suppliers, msg)
}

// OrderPage shows an order with the email status of each supplier
func (api *API) OrderPage(c *gin.Context) {
	org, _ := currentOrganization(c)
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		api.renderNotFoundPage(c)
		return
	}
	order, err := api.loadOrder(c.Request.Context(), org.ID, id)
	if errors.Is(err, errOrderNotFound) {
		api.renderNotFoundPage(c)
		return
	} else if err != nil {
		api.sendPageInternalError(c, err)
		return
	}
	api.renderPage(c, http.StatusOK, "order", pageData{
		Title: "Order " + order.Reference,
		Data: struct {
			Order  models.Order
			Status models.OrderEmailStatus
		}{order, models.NewOrderEmailStatus(order.ID, supplierOrderValues(order))},
	})
}

// ListOrders lists the orders of an organization
// @Summary      List Orders
// @Description  Lists the orders of an organization, newest first
// @Id           ListOrders
// @Tags         Orders
// @Accept       json
// @Produce      json
// @Param        slug   path      string  true "Organization slug"
// @Param        sort   query     string  false "JSON sort, [\"created_at\",\"DESC\"]"
// @Param        range  query     string  false "JSON range, [0,24]"
// @Success      200  {object}  []models.Order
// @Failure      401  {object}  models.BaseError
// @Failure      404  {object}  models.NotFoundError
// @Failure      429  {object}  models.BaseError
// @Failure      500  {object}  models.InternalServerError "Internal Server Error"
// @Router       /api/organizations/{slug}/orders [get]
func (api *API) ListOrders(c *gin.Context) {
	ctx, span := tracer.Start(c.Request.Context(), "ListOrders")
	defer span.End()

	org, _ := currentOrganization(c)
	orders := []models.Order{}
	res := api.db.WithContext(ctx).
		Preload("SupplierOrders").
		Where("organization_id = ?", org.ID).
		Scopes(FilterAndPaginate(&models.Order{}, c, "created_at DESC")).
		Find(&orders)
	if res.Error != nil {
		api.SendInternalServerError(c, res.Error)
		return
	}
	c.JSON(http.StatusOK, orders)
}

// CreateOrder places an order
// @Summary      Create Order
// @Description  Places an order, one email is sent to each supplier named by its lines
// @Id           CreateOrder
// @Tags         Orders
// @Accept       json
// @Produce      json
// @Param        slug   path      string  true "Organization slug"
// @Param        Order  body      models.AddOrder  true "Add Order"
// @Success      201  {object}  models.Order
// @Failure      400  {object}  models.ValidationError
// @Failure      401  {object}  models.BaseError
// @Failure      404  {object}  models.NotFoundError
// @Failure      429  {object}  models.BaseError
// @Failure      500  {object}  models.InternalServerError "Internal Server Error"
// @Router       /api/organizations/{slug}/orders [post]
func (api *API) CreateOrder(c *gin.Context) {
	ctx, span := tracer.Start(c.Request.Context(), "CreateOrder")
	defer span.End()

	org, _ := currentOrganization(c)
	var request models.AddOrder
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, models.NewBadPayloadError())
		return
	}
	order, err := api.createOrder(ctx, org, api.GetCurrentUserID(c), request)
	var apiResponseError *ApiResponseError
	if errors.As(err, &apiResponseError) {
		c.JSON(apiResponseError.Status, apiResponseError.Body)
		return
	} else if err != nil {
		api.SendInternalServerError(c, err)
		return
	}
	span.SetAttributes(attribute.String("id", order.ID.String()))
	c.JSON(http.StatusCreated, order)
}

// GetOrder gets an order by id
// @Summary      Get Order
// @Description  Gets an order with its supplier orders
// @Id           GetOrder
// @Tags         Orders
// @Accept       json
// @Produce      json
// @Param        id   path      string  true "Order ID"
// @Success      200  {object}  models.Order
// @Failure      400  {object}  models.ValidationError
// @Failure      401  {object}  models.BaseError
// @Failure      404  {object}  models.NotFoundError
// @Failure      429  {object}  models.BaseError
// @Failure      500  {object}  models.InternalServerError "Internal Server Error"
// @Router       /api/orders/{id} [get]
func (api *API) GetOrder(c *gin.Context) {
	ctx, span := tracer.Start(c.Request.Context(), "GetOrder",
		trace.WithAttributes(attribute.String("id", c.Param("id"))))
	defer span.End()

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, models.NewBadPathParameterError("id"))
		return
	}
	order, _, err := api.orderForUser(ctx, api.GetCurrentUserID(c), id)
	if errors.Is(err, errOrderNotFound) {
		c.JSON(http.StatusNotFound, models.NewNotFoundError("order"))
		return
	} else if err != nil {
		api.SendInternalServerError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

// ResendOrderEmails queues the failed supplier emails of an order again
// @Summary      Resend Order Emails
// @Description  Resets the failed supplier orders of an order to pending and queues them again
// @Id           ResendOrderEmails
// @Tags         Orders
// @Accept       json
// @Produce      json
// @Param        id   path      string  true "Order ID"
// @Success      200  {object}  models.OrderEmailStatus
// @Failure      400  {object}  models.ValidationError
// @Failure      401  {object}  models.BaseError
// @Failure      403  {object}  models.NotAllowedError
// @Failure      404  {object}  models.NotFoundError
// @Failure      429  {object}  models.BaseError
// @Failure      500  {object}  models.InternalServerError "Internal Server Error"
// @Router       /api/orders/{id}/resend [post]
func (api *API) ResendOrderEmails(c *gin.Context) {
	ctx, span := tracer.Start(c.Request.Context(), "ResendOrderEmails",
		trace.WithAttributes(attribute.String("id", c.Param("id"))))
	defer span.End()

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, models.NewBadPathParameterError("id"))
		return
	}
	order, role, err := api.orderForUser(ctx, api.GetCurrentUserID(c), id)
	if errors.Is(err, errOrderNotFound) {
		c.JSON(http.StatusNotFound, models.NewNotFoundError("order"))
		return
	} else if err != nil {
		api.SendInternalServerError(c, err)
		return
	}
	if !role.Allows(models.RoleAdmin) && order.CreatedByID != api.GetCurrentUserID(c) {
		c.JSON(http.StatusForbidden, models.NewNotAllowedError("only admins and the creator of the order can resend it"))
		return
	}

	var jobs []queue.Job
	for _, so := range order.SupplierOrders {
		if so.Status != models.SupplierOrderFailed {
			continue
		}
		res := api.db.WithContext(ctx).Model(&models.SupplierOrder{}).
			Where("id = ? AND status = ?", so.ID, models.SupplierOrderFailed).
			Updates(map[string]interface{}{"status": models.SupplierOrderPending, "attempts": 0})
		if res.Error != nil {
			api.SendInternalServerError(c, res.Error)
			return
		}
		if res.RowsAffected > 0 {
			so.Status = models.SupplierOrderPending
			so.Attempts = 0
			jobs = append(jobs, queue.Job{SupplierOrderID: so.ID, OrderID: order.ID})
		}
	}
	if len(jobs) > 0 {
		if err := api.queue.Publish(ctx, jobs...); err != nil {
			api.Logger(ctx).Warnw("failed to queue supplier emails, recovery will send them", "order_id", order.ID, "error", err)
		}
		api.signalBus.Notify(signalbus.OrderSignal(order.ID))
	}
	c.JSON(http.StatusOK, models.NewOrderEmailStatus(order.ID, supplierOrderValues(order)))
}
