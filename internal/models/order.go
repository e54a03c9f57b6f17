package models

import (
	"time"

	"github.com/google/uuid"
)

// Order is a purchase placed by a member of an Organization.  It is split into one
// SupplierOrder per supplier it names.
type Order struct {
	Base
	OrganizationID uuid.UUID        `json:"organization_id" gorm:"type:uuid;index"`
	CreatedByID    uuid.UUID        `json:"created_by_id" gorm:"type:uuid"`
	Reference      string           `json:"reference" example:"PO-20261017-4f1a"`
	Notes          string           `json:"notes"`
	DeliveryDate   *time.Time       `json:"delivery_date"`
	SupplierOrders []*SupplierOrder `json:"supplier_orders,omitempty"`
}

// OrderItem is one line of a SupplierOrder
type OrderItem struct {
	Product  string  `json:"product" example:"Flour T55"`
	Quantity float64 `json:"quantity" example:"25"`
	Unit     string  `json:"unit" example:"kg"`
}

type SupplierOrderStatus string

const (
	SupplierOrderPending SupplierOrderStatus = "pending"
	SupplierOrderSending SupplierOrderStatus = "sending"
	SupplierOrderSent    SupplierOrderStatus = "sent"
	SupplierOrderFailed  SupplierOrderStatus = "failed"
)

// SupplierOrder is the part of an Order addressed to a single Supplier.  It is emailed
// to the supplier by the dispatcher which tracks the outcome in Status.
type SupplierOrder struct {
	Base
	OrderID        uuid.UUID           `json:"order_id" gorm:"type:uuid;index"`
	OrganizationID uuid.UUID           `json:"organization_id" gorm:"type:uuid"`
	SupplierID     uuid.UUID           `json:"supplier_id" gorm:"type:uuid"`
	Supplier       *Supplier           `json:"supplier,omitempty"`
	Items          []OrderItem         `json:"items" gorm:"serializer:json"`
	Status         SupplierOrderStatus `json:"status" gorm:"index" example:"pending"`
	Attempts       int                 `json:"attempts"`
	LastError      string              `json:"last_error,omitempty"`
	SentAt         *time.Time          `json:"sent_at"`
}

// AddOrderLine is one line of an AddOrder request
type AddOrderLine struct {
	SupplierID uuid.UUID `json:"supplier_id"`
	Product    string    `json:"product" example:"Flour T55"`
	Quantity   float64   `json:"quantity" example:"25"`
	Unit       string    `json:"unit" example:"kg"`
}

// AddOrder is the information needed to place an Order
type AddOrder struct {
	Reference    string         `json:"reference"`
	Notes        string         `json:"notes"`
	DeliveryDate *time.Time     `json:"delivery_date"`
	Lines        []AddOrderLine `json:"lines"`
}

// SupplierOrderState is the email state of one SupplierOrder
type SupplierOrderState struct {
	SupplierOrderID uuid.UUID           `json:"supplier_order_id"`
	SupplierID      uuid.UUID           `json:"supplier_id"`
	SupplierName    string              `json:"supplier_name"`
	Status          SupplierOrderStatus `json:"status"`
	SentAt          *time.Time          `json:"sent_at,omitempty"`
	LastError       string              `json:"last_error,omitempty"`
}

// OrderEmailStatus summarizes whether the supplier emails of an Order went out
type OrderEmailStatus struct {
	OrderID   uuid.UUID            `json:"order_id"`
	Total     int                  `json:"total"`
	Pending   int                  `json:"pending"`
	Sending   int                  `json:"sending"`
	Sent      int                  `json:"sent"`
	Failed    int                  `json:"failed"`
	EmailSent bool                 `json:"email_sent"`
	Suppliers []SupplierOrderState `json:"suppliers"`
}

// NewOrderEmailStatus tallies the supplier orders of an order.  EmailSent is only true when
// there is at least one supplier order and every one of them was sent.
func NewOrderEmailStatus(orderID uuid.UUID, supplierOrders []SupplierOrder) OrderEmailStatus {
	status := OrderEmailStatus{
		OrderID:   orderID,
		Total:     len(supplierOrders),
		Suppliers: make([]SupplierOrderState, 0, len(supplierOrders)),
	}
	for _, so := range supplierOrders {
		switch so.Status {
		case SupplierOrderPending:
			status.Pending++
		case SupplierOrderSending:
			status.Sending++
		case SupplierOrderSent:
			status.Sent++
		case SupplierOrderFailed:
			status.Failed++
		}
		state := SupplierOrderState{
			SupplierOrderID: so.ID,
			SupplierID:      so.SupplierID,
			Status:          so.Status,
			SentAt:          so.SentAt,
			LastError:       so.LastError,
		}
		if so.Supplier != nil {
			state.SupplierName = so.Supplier.Name
		}
		status.Suppliers = append(status.Suppliers, state)
	}
	status.EmailSent = status.Total > 0 && status.Sent == status.Total
	return status
}
