package main

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/stocklane/allocation-service/internal/application"
	"github.com/stocklane/allocation-service/internal/domain"
	apperrors "github.com/stocklane/allocation-service/pkg/errors"
	"github.com/stocklane/allocation-service/pkg/logging"
	"github.com/stocklane/allocation-service/pkg/middleware"
)

// respondServiceError maps domain sentinels to API error responses
func respondServiceError(c *gin.Context, logger *logging.Logger, err error) {
	responder := middleware.NewErrorResponder(c, logger.Logger)
	switch {
	case errors.Is(err, domain.ErrInvalidQuantity):
		responder.RespondWithAppError(apperrors.ErrValidation(err.Error()))
	case errors.Is(err, domain.ErrTransferSameWarehouse):
		responder.RespondWithAppError(apperrors.ErrValidation(err.Error()))
	case errors.Is(err, domain.ErrTransferMovementNotAllowed):
		responder.RespondWithAppError(apperrors.ErrValidation(err.Error()))
	case errors.Is(err, domain.ErrInsufficientStock):
		responder.RespondWithAppError(apperrors.ErrInsufficientStock(err.Error()))
	case errors.Is(err, domain.ErrInsufficientAggregateStock):
		responder.RespondWithAppError(apperrors.ErrUnfulfillableDemand(err.Error()))
	case errors.Is(err, domain.ErrReservationNotFound):
		responder.RespondWithAppError(apperrors.ErrNotFound("reservation"))
	case errors.Is(err, domain.ErrReservationNotActive):
		responder.RespondWithAppError(apperrors.ErrReservationNotActive(err.Error()))
	case errors.Is(err, domain.ErrConcurrentModification):
		responder.RespondWithAppError(apperrors.ErrConcurrencyConflict(err.Error()))
	default:
		responder.RespondInternalError(err)
	}
}

func planHandler(service *application.PlannerService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			ProductID         string             `json:"productId" binding:"required,product_id"`
			RequiredQuantity  int                `json:"requiredQuantity" binding:"required,gt=0"`
			RequesterLocation *domain.Coordinate `json:"requesterLocation"`
		}
		if appErr := middleware.BindAndValidate(c, &req); appErr != nil {
			middleware.NewErrorResponder(c, logger.Logger).RespondWithAppError(appErr)
			return
		}

		plan, err := service.Plan(c.Request.Context(), application.PlanQuery{
			ProductID:         req.ProductID,
			RequiredQuantity:  req.RequiredQuantity,
			RequesterLocation: req.RequesterLocation,
		})
		if err != nil {
			respondServiceError(c, logger, err)
			return
		}

		c.JSON(http.StatusOK, plan)
	}
}

func reserveHandler(service *application.ReservationService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Quantity   int    `json:"quantity" binding:"required,gt=0"`
			TTLSeconds int    `json:"ttlSeconds" binding:"omitempty,gte=0"`
			Reason     string `json:"reason" binding:"omitempty,safe_string"`
		}
		if appErr := middleware.BindAndValidate(c, &req); appErr != nil {
			middleware.NewErrorResponder(c, logger.Logger).RespondWithAppError(appErr)
			return
		}

		reservation, err := service.Reserve(c.Request.Context(), application.ReserveCommand{
			ProductID:   c.Param("productId"),
			WarehouseID: c.Param("warehouseId"),
			Quantity:    req.Quantity,
			TTL:         time.Duration(req.TTLSeconds) * time.Second,
			Reason:      req.Reason,
		})
		if err != nil {
			respondServiceError(c, logger, err)
			return
		}

		c.JSON(http.StatusCreated, reservation)
	}
}

func releaseHandler(service *application.ReservationService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		err := service.Release(c.Request.Context(), application.ReleaseCommand{
			ReservationID: c.Param("reservationId"),
		})
		if err != nil {
			respondServiceError(c, logger, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"status": "released"})
	}
}

func extendHandler(service *application.ReservationService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			AdditionalSeconds int `json:"additionalSeconds" binding:"required,gt=0"`
		}
		if appErr := middleware.BindAndValidate(c, &req); appErr != nil {
			middleware.NewErrorResponder(c, logger.Logger).RespondWithAppError(appErr)
			return
		}

		reservation, err := service.Extend(c.Request.Context(), application.ExtendCommand{
			ReservationID:  c.Param("reservationId"),
			AdditionalTime: time.Duration(req.AdditionalSeconds) * time.Second,
		})
		if err != nil {
			respondServiceError(c, logger, err)
			return
		}

		c.JSON(http.StatusOK, reservation)
	}
}

func getReservationHandler(service *application.ReservationService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		reservation, err := service.GetReservation(c.Request.Context(), application.GetReservationQuery{
			ReservationID: c.Param("reservationId"),
		})
		if err != nil {
			respondServiceError(c, logger, err)
			return
		}

		c.JSON(http.StatusOK, reservation)
	}
}

func transferHandler(service *application.TransferService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			ProductID       string `json:"productId" binding:"required,product_id"`
			FromWarehouseID string `json:"fromWarehouseId" binding:"required,warehouse_id"`
			ToWarehouseID   string `json:"toWarehouseId" binding:"required,warehouse_id"`
			Quantity        int    `json:"quantity" binding:"required,gt=0"`
			Reason          string `json:"reason" binding:"omitempty,safe_string"`
		}
		if appErr := middleware.BindAndValidate(c, &req); appErr != nil {
			middleware.NewErrorResponder(c, logger.Logger).RespondWithAppError(appErr)
			return
		}

		result, err := service.Transfer(c.Request.Context(), application.TransferCommand{
			ProductID:       req.ProductID,
			FromWarehouseID: req.FromWarehouseID,
			ToWarehouseID:   req.ToWarehouseID,
			Quantity:        req.Quantity,
			Reason:          req.Reason,
		})
		if err != nil {
			respondServiceError(c, logger, err)
			return
		}

		c.JSON(http.StatusOK, result)
	}
}

func getAvailableHandler(service *application.LedgerService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		availability, err := service.GetAvailable(c.Request.Context(), application.GetAvailableQuery{
			ProductID:   c.Param("productId"),
			WarehouseID: c.Param("warehouseId"),
		})
		if err != nil {
			respondServiceError(c, logger, err)
			return
		}

		c.JSON(http.StatusOK, availability)
	}
}

func applyMovementHandler(service *application.LedgerService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			MovementType string `json:"movementType" binding:"required,movement_type"`
			Quantity     int    `json:"quantity" binding:"required"`
			Reason       string `json:"reason" binding:"omitempty,safe_string"`
		}
		if appErr := middleware.BindAndValidate(c, &req); appErr != nil {
			middleware.NewErrorResponder(c, logger.Logger).RespondWithAppError(appErr)
			return
		}

		movement, err := service.ApplyMovement(c.Request.Context(), application.ApplyMovementCommand{
			ProductID:    c.Param("productId"),
			WarehouseID:  c.Param("warehouseId"),
			MovementType: domain.MovementType(req.MovementType),
			Quantity:     req.Quantity,
			Reason:       req.Reason,
		})
		if err != nil {
			respondServiceError(c, logger, err)
			return
		}

		c.JSON(http.StatusCreated, movement)
	}
}

func movementHistoryHandler(service *application.LedgerService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit := 0
		if raw := c.Query("limit"); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil || parsed < 0 {
				c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a non-negative integer"})
				return
			}
			limit = parsed
		}

		history, err := service.GetMovementHistory(c.Request.Context(), application.MovementHistoryQuery{
			ProductID:   c.Param("productId"),
			WarehouseID: c.Param("warehouseId"),
			Limit:       limit,
		})
		if err != nil {
			respondServiceError(c, logger, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"movements": history, "count": len(history)})
	}
}

func transferMovementsHandler(service *application.LedgerService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		movements, err := service.GetTransferMovements(c.Request.Context(), c.Param("transferId"))
		if err != nil {
			respondServiceError(c, logger, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"movements": movements, "count": len(movements)})
	}
}
