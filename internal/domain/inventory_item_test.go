package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInventoryItem_ApplyMovement(t *testing.T) {
	t.Run("inbound increases available and records audit values", func(t *testing.T) {
		item := NewInventoryItem("PROD-001", "WH-EAST")

		movement, err := item.ApplyMovement(MovementInbound, 100, "initial stocking", "")
		require.NoError(t, err)

		assert.Equal(t, 100, item.AvailableQuantity)
		assert.Equal(t, 0, item.ReservedQuantity)
		assert.Equal(t, 0, movement.PreviousAvailable)
		assert.Equal(t, 100, movement.NewAvailable)
		assert.Equal(t, MovementInbound, movement.Type)
		assert.NotEmpty(t, movement.MovementID)
	})

	t.Run("outbound below zero fails and leaves counters untouched", func(t *testing.T) {
		item := NewInventoryItem("PROD-001", "WH-EAST")
		_, err := item.ApplyMovement(MovementInbound, 10, "", "")
		require.NoError(t, err)

		movement, err := item.ApplyMovement(MovementOutbound, 11, "order pick", "")
		assert.ErrorIs(t, err, ErrInsufficientStock)
		assert.Nil(t, movement)
		assert.Equal(t, 10, item.AvailableQuantity)
	})

	t.Run("negative quantity only valid for adjustments", func(t *testing.T) {
		item := NewInventoryItem("PROD-001", "WH-EAST")
		_, err := item.ApplyMovement(MovementInbound, 50, "", "")
		require.NoError(t, err)

		_, err = item.ApplyMovement(MovementInbound, -5, "", "")
		assert.ErrorIs(t, err, ErrInvalidQuantity)

		_, err = item.ApplyMovement(MovementAdjustment, -5, "cycle count", "")
		require.NoError(t, err)
		assert.Equal(t, 45, item.AvailableQuantity)
	})

	t.Run("zero quantity rejected", func(t *testing.T) {
		item := NewInventoryItem("PROD-001", "WH-EAST")
		_, err := item.ApplyMovement(MovementInbound, 0, "", "")
		assert.ErrorIs(t, err, ErrInvalidQuantity)
	})

	t.Run("emits low stock alert when crossing reorder point", func(t *testing.T) {
		item := NewInventoryItem("PROD-001", "WH-EAST")
		item.ReorderPoint = 5
		_, err := item.ApplyMovement(MovementInbound, 10, "", "")
		require.NoError(t, err)
		item.ClearDomainEvents()

		_, err = item.ApplyMovement(MovementOutbound, 6, "", "")
		require.NoError(t, err)

		events := item.GetDomainEvents()
		require.Len(t, events, 2)
		alert, ok := events[1].(*LowStockAlertEvent)
		require.True(t, ok)
		assert.Equal(t, 4, alert.CurrentQuantity)
		assert.Equal(t, 5, alert.ReorderPoint)
	})
}

func TestInventoryItem_Shifts(t *testing.T) {
	t.Run("shift to reserved keeps total constant", func(t *testing.T) {
		item := NewInventoryItem("PROD-001", "WH-EAST")
		_, err := item.ApplyMovement(MovementInbound, 10, "", "")
		require.NoError(t, err)

		require.NoError(t, item.ShiftToReserved(7))
		assert.Equal(t, 3, item.AvailableQuantity)
		assert.Equal(t, 7, item.ReservedQuantity)
		assert.Equal(t, 10, item.TotalQuantity())

		require.NoError(t, item.ShiftToAvailable(7))
		assert.Equal(t, 10, item.AvailableQuantity)
		assert.Equal(t, 0, item.ReservedQuantity)
	})

	t.Run("shift to reserved fails on insufficient available", func(t *testing.T) {
		item := NewInventoryItem("PROD-001", "WH-EAST")
		_, err := item.ApplyMovement(MovementInbound, 3, "", "")
		require.NoError(t, err)

		err = item.ShiftToReserved(4)
		assert.ErrorIs(t, err, ErrInsufficientStock)
		assert.Equal(t, 3, item.AvailableQuantity)
	})

	t.Run("shift to available beyond reserved is a consistency error", func(t *testing.T) {
		item := NewInventoryItem("PROD-001", "WH-EAST")
		_, err := item.ApplyMovement(MovementInbound, 10, "", "")
		require.NoError(t, err)
		require.NoError(t, item.ShiftToReserved(2))

		err = item.ShiftToAvailable(3)
		assert.ErrorIs(t, err, ErrInternalConsistency)
	})

	t.Run("non-positive shift quantities rejected", func(t *testing.T) {
		item := NewInventoryItem("PROD-001", "WH-EAST")
		assert.ErrorIs(t, item.ShiftToReserved(0), ErrInvalidQuantity)
		assert.ErrorIs(t, item.ShiftToAvailable(-1), ErrInvalidQuantity)
	})
}
