package lifecycle

import (
	"fmt"
	"strconv"
)

// Field names of a lifecycle event on the log and inside materialized stage entries.
const (
	FieldCustomerID  = "customer_id"
	FieldStage       = "stage"
	FieldOrderID     = "order_id"
	FieldContactName = "contact_name"
	FieldOrderCost   = "order_cost"
	FieldItemPrefix  = "item"
)

// OrderIDSeparator joins entity id and order sequence in order ids.
const OrderIDSeparator = "__"

// Event is one emitted lifecycle event. Items, contact, and cost are only set for new orders.
type Event struct {
	EntityID    int
	Stage       Stage
	Label       string
	OrderID     string
	Items       []string
	ContactName string
	Cost        float64
}

// OrderID derives "<entityId>__<orderSequence>".
func OrderID(entityID int, orderSequence int64) string {
	return OrderIDFromRaw(entityID, strconv.FormatInt(orderSequence, 10))
}

// OrderIDFromRaw builds an order id from an unparsed sequence value.
func OrderIDFromRaw(entityID int, rawSequence string) string {
	return strconv.Itoa(entityID) + OrderIDSeparator + rawSequence
}

// IsNewOrder reports whether the event opens an order and therefore carries the order payload.
func (e Event) IsNewOrder() bool {
	return e.Stage == StageNew && e.Label == StageNew.Label()
}

// Fields renders the event as log entry fields.
func (e Event) Fields() map[string]string {
	fields := map[string]string{
		FieldCustomerID: strconv.Itoa(e.EntityID),
		FieldStage:      e.Label,
		FieldOrderID:    e.OrderID,
	}

	if !e.IsNewOrder() {
		return fields
	}

	for i, item := range e.Items {
		fields[fmt.Sprintf("%s%d", FieldItemPrefix, i)] = item
	}

	fields[FieldContactName] = e.ContactName
	fields[FieldOrderCost] = strconv.FormatFloat(e.Cost, 'f', 2, 64)

	return fields
}
