package signalbus

import (
	"fmt"

	"github.com/google/uuid"
)

// OrderSignal names the signal raised whenever a supplier order of the order changes.  It reads
// like a column filter: the rows of supplier_orders whose order_id equals orderID.
func OrderSignal(orderID uuid.UUID) string {
	return fmt.Sprintf("/supplier-orders/order=%s", orderID)
}

// OrganizationOrdersSignal is raised when an order is placed in the organization.
func OrganizationOrdersSignal(organizationID uuid.UUID) string {
	return fmt.Sprintf("/orders/organization=%s", organizationID)
}
