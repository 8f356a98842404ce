package application

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/stocklane/allocation-service/internal/domain"
	"github.com/stocklane/allocation-service/pkg/cloudevents"
	"github.com/stocklane/allocation-service/pkg/kafka"
	"github.com/stocklane/allocation-service/pkg/logging"
	"github.com/stocklane/allocation-service/pkg/metrics"
	"github.com/stocklane/allocation-service/pkg/outbox"
)

// planCandidate is one warehouse under consideration for a plan
type planCandidate struct {
	warehouseID string
	available   int
	distance    float64
}

// PlannerService computes allocation plans: per-warehouse quantities that sum
// to a required amount, preferring proximity and fewer warehouses. Plans are
// read-only and advisory; the referenced stock can be consumed before the
// caller reserves it.
type PlannerService struct {
	repo         domain.InventoryRepository
	catalog      domain.WarehouseCatalog
	outboxRepo   outbox.Repository
	eventFactory *cloudevents.EventFactory
	metrics      *metrics.Metrics
	logger       *logging.Logger

	// readTimeout bounds each per-warehouse read; a slow warehouse counts as
	// zero available instead of failing the plan.
	readTimeout time.Duration
}

// NewPlannerService creates a new PlannerService
func NewPlannerService(
	repo domain.InventoryRepository,
	catalog domain.WarehouseCatalog,
	outboxRepo outbox.Repository,
	eventFactory *cloudevents.EventFactory,
	m *metrics.Metrics,
	logger *logging.Logger,
	readTimeout time.Duration,
) *PlannerService {
	if readTimeout <= 0 {
		readTimeout = 2 * time.Second
	}
	return &PlannerService{
		repo:         repo,
		catalog:      catalog,
		outboxRepo:   outboxRepo,
		eventFactory: eventFactory,
		metrics:      m,
		logger:       logger,
		readTimeout:  readTimeout,
	}
}

// Plan computes an allocation plan for the required quantity. With a
// requester location, candidates are ranked by great-circle distance;
// without one, by available quantity descending. Ties always break on the
// warehouse ID so equal inputs give equal plans.
func (s *PlannerService) Plan(ctx context.Context, query PlanQuery) (*AllocationPlanDTO, error) {
	if query.RequiredQuantity <= 0 {
		return nil, domain.ErrInvalidQuantity
	}

	warehouseIDs, err := s.catalog.ListWarehousesForProduct(ctx, query.ProductID)
	if err != nil {
		s.logger.Error("Failed to list warehouses for product", "productId", query.ProductID, "error", err)
		return nil, fmt.Errorf("failed to list warehouses: %w", err)
	}

	candidates, readFailures := s.collectCandidates(ctx, query, warehouseIDs)
	if len(warehouseIDs) > 0 && readFailures == len(warehouseIDs) {
		return nil, fmt.Errorf("no warehouse responded for product %s", query.ProductID)
	}

	s.rank(candidates, query.RequesterLocation != nil)

	plan, err := buildPlan(query.ProductID, query.RequiredQuantity, candidates)
	if err != nil {
		if s.metrics != nil {
			s.metrics.RecordPlanComputed("insufficient")
		}
		return nil, err
	}

	outcome := "split"
	if len(plan.Lines) == 1 {
		outcome = "single"
	}
	if s.metrics != nil {
		s.metrics.RecordPlanComputed(outcome)
	}
	s.publishPlan(ctx, plan)
	s.logger.Info("Computed allocation plan",
		"productId", query.ProductID,
		"requiredQuantity", query.RequiredQuantity,
		"lines", len(plan.Lines),
	)

	return ToAllocationPlanDTO(plan), nil
}

// collectCandidates reads availability for every active warehouse carrying
// the product. Individual failures degrade to zero availability.
func (s *PlannerService) collectCandidates(ctx context.Context, query PlanQuery, warehouseIDs []string) ([]planCandidate, int) {
	candidates := make([]planCandidate, 0, len(warehouseIDs))
	readFailures := 0

	for _, warehouseID := range warehouseIDs {
		readCtx, cancel := context.WithTimeout(ctx, s.readTimeout)
		warehouse, err := s.catalog.GetWarehouse(readCtx, warehouseID)
		if err != nil {
			cancel()
			readFailures++
			s.logger.Warn("Skipping unreachable warehouse", "warehouseId", warehouseID, "error", err)
			continue
		}
		if !warehouse.IsActive {
			cancel()
			continue
		}

		item, err := s.repo.Find(readCtx, query.ProductID, warehouseID)
		cancel()

		available := 0
		if err != nil {
			readFailures++
			s.logger.Warn("Treating unreadable warehouse as empty", "warehouseId", warehouseID, "error", err)
		} else if item != nil {
			available = item.AvailableQuantity
		}

		candidate := planCandidate{
			warehouseID: warehouseID,
			available:   available,
		}
		if query.RequesterLocation != nil {
			candidate.distance = query.RequesterLocation.DistanceTo(warehouse.Location)
		}
		candidates = append(candidates, candidate)
	}

	return candidates, readFailures
}

// rank orders candidates by the greedy draw preference
func (s *PlannerService) rank(candidates []planCandidate, byDistance bool) {
	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if byDistance {
			if a.distance != b.distance {
				return a.distance < b.distance
			}
		} else {
			if a.available != b.available {
				return a.available > b.available
			}
		}
		return a.warehouseID < b.warehouseID
	})
}

// buildPlan turns ranked candidates into plan lines. Preference order: a
// single warehouse that covers the whole requirement, else a greedy
// multi-warehouse fill in rank order.
func buildPlan(productID string, required int, candidates []planCandidate) (*domain.AllocationPlan, error) {
	plan := &domain.AllocationPlan{
		ProductID:        productID,
		RequiredQuantity: required,
		Lines:            make([]domain.AllocationLine, 0, len(candidates)),
	}

	// Candidates are ranked, so the first one that can cover the whole
	// requirement is the preferred single warehouse.
	for _, c := range candidates {
		if c.available >= required {
			plan.Lines = append(plan.Lines, domain.AllocationLine{
				WarehouseID: c.warehouseID,
				Quantity:    required,
			})
			return plan, nil
		}
	}

	remaining := required
	for _, c := range candidates {
		if remaining == 0 {
			break
		}
		if c.available <= 0 {
			continue
		}
		draw := c.available
		if draw > remaining {
			draw = remaining
		}
		plan.Lines = append(plan.Lines, domain.AllocationLine{
			WarehouseID: c.warehouseID,
			Quantity:    draw,
		})
		remaining -= draw
	}

	if remaining > 0 {
		return nil, domain.ErrInsufficientAggregateStock
	}
	return plan, nil
}

func (s *PlannerService) publishPlan(ctx context.Context, plan *domain.AllocationPlan) {
	if s.outboxRepo == nil || s.eventFactory == nil {
		return
	}

	lines := make([]cloudevents.PlanLine, 0, len(plan.Lines))
	for _, line := range plan.Lines {
		lines = append(lines, cloudevents.PlanLine{
			WarehouseID: line.WarehouseID,
			Quantity:    line.Quantity,
		})
	}
	cloudEvent := s.eventFactory.CreatePlanComputedEvent(ctx, plan.ProductID, plan.RequiredQuantity, lines)
	outboxEvent, err := outbox.NewOutboxEventFromCloudEvent(
		plan.ProductID,
		"AllocationPlan",
		kafka.TopicForEventType(cloudEvent.Type),
		cloudEvent,
	)
	if err != nil {
		s.logger.Error("Failed to build plan event", "productId", plan.ProductID, "error", err)
		return
	}
	if err := s.outboxRepo.Save(ctx, outboxEvent); err != nil {
		s.logger.Error("Failed to enqueue plan event", "productId", plan.ProductID, "error", err)
	}
}
