package cloudevents

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// EventFactory creates CloudEvents for stock domain events
type EventFactory struct {
	source string
}

// NewEventFactory creates a new EventFactory for a specific source
func NewEventFactory(source string) *EventFactory {
	return &EventFactory{source: source}
}

// CreateEvent creates a new StockCloudEvent with the given parameters
func (f *EventFactory) CreateEvent(
	ctx context.Context,
	eventType string,
	subject string,
	data interface{},
) *StockCloudEvent {
	event := &StockCloudEvent{
		SpecVersion:     "1.0",
		Type:            eventType,
		Source:          f.source,
		Subject:         subject,
		ID:              uuid.New().String(),
		Time:            time.Now().UTC(),
		DataContentType: "application/json",
		Data:            data,
		Extensions:      make(map[string]interface{}),
	}

	return event
}

// CreateEventWithCorrelation creates an event with correlation tracking
func (f *EventFactory) CreateEventWithCorrelation(
	ctx context.Context,
	eventType string,
	subject string,
	data interface{},
	correlationID string,
) *StockCloudEvent {
	event := f.CreateEvent(ctx, eventType, subject, data)
	event.CorrelationID = correlationID
	return event
}

// CreateReservationEvent creates a reservation lifecycle event of the given type
func (f *EventFactory) CreateReservationEvent(
	ctx context.Context,
	eventType string,
	reservationID string,
	productID string,
	warehouseID string,
	quantity int,
	expiresAt *time.Time,
	reason string,
) *StockCloudEvent {
	data := ReservationData{
		ReservationID: reservationID,
		ProductID:     productID,
		WarehouseID:   warehouseID,
		Quantity:      quantity,
		ExpiresAt:     expiresAt,
		Reason:        reason,
	}
	return f.CreateEvent(ctx, eventType, "reservation/"+reservationID, data)
}

// CreateMovementRecordedEvent creates a MovementRecorded event
func (f *EventFactory) CreateMovementRecordedEvent(
	ctx context.Context,
	data MovementRecordedData,
) *StockCloudEvent {
	return f.CreateEvent(ctx, MovementRecorded, "stock/"+data.ProductID+"/"+data.WarehouseID, data)
}

// CreateLowStockAlertEvent creates a LowStockAlert event
func (f *EventFactory) CreateLowStockAlertEvent(
	ctx context.Context,
	productID string,
	warehouseID string,
	available int,
	reorderPoint int,
) *StockCloudEvent {
	data := LowStockAlertData{
		ProductID:    productID,
		WarehouseID:  warehouseID,
		Available:    available,
		ReorderPoint: reorderPoint,
	}
	return f.CreateEvent(ctx, LowStockAlert, "stock/"+productID+"/"+warehouseID, data)
}

// CreateTransferCompletedEvent creates a TransferCompleted event
func (f *EventFactory) CreateTransferCompletedEvent(
	ctx context.Context,
	transferID string,
	productID string,
	fromWarehouseID string,
	toWarehouseID string,
	quantity int,
) *StockCloudEvent {
	data := TransferCompletedData{
		TransferID:      transferID,
		ProductID:       productID,
		FromWarehouseID: fromWarehouseID,
		ToWarehouseID:   toWarehouseID,
		Quantity:        quantity,
	}
	return f.CreateEvent(ctx, TransferCompleted, "transfer/"+transferID, data)
}

// CreatePlanComputedEvent creates a PlanComputed event
func (f *EventFactory) CreatePlanComputedEvent(
	ctx context.Context,
	productID string,
	requiredQuantity int,
	lines []PlanLine,
) *StockCloudEvent {
	data := PlanComputedData{
		ProductID:        productID,
		RequiredQuantity: requiredQuantity,
		Lines:            lines,
	}
	return f.CreateEvent(ctx, PlanComputed, "allocation/"+productID, data)
}
