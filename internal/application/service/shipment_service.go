package service

import (
	"context"
	"fmt"

	"github.com/garyjia/order-resolution/internal/application/port"
	"github.com/garyjia/order-resolution/internal/domain/entity"
	"github.com/garyjia/order-resolution/internal/domain/event"
	"github.com/garyjia/order-resolution/internal/domain/workflow"
)

// StatusEdit requests a status change for one row of a shipment batch
type StatusEdit struct {
	ID     int64  `json:"id"`
	Status string `json:"status"`
}

// ShipmentService edits shipment items and tracking events in validated batches
type ShipmentService interface {
	EditShipmentItems(ctx context.Context, actor entity.Actor, shipmentID int64, edits []StatusEdit) ([]*entity.ShipmentItem, error)
	EditShipmentEvents(ctx context.Context, actor entity.Actor, shipmentID int64, edits []StatusEdit) ([]*entity.ShipmentEvent, error)
}

type shipmentServiceImpl struct {
	itemRepo  port.ShipmentItemRepository
	eventRepo port.ShipmentEventRepository
	txManager port.TransactionManager
	logger    Logger
	opts      options
}

// NewShipmentService creates a new ShipmentService
func NewShipmentService(
	itemRepo port.ShipmentItemRepository,
	eventRepo port.ShipmentEventRepository,
	txManager port.TransactionManager,
	logger Logger,
	opts ...Option,
) ShipmentService {
	return &shipmentServiceImpl{
		itemRepo:  itemRepo,
		eventRepo: eventRepo,
		txManager: txManager,
		logger:    logger,
		opts:      buildOptions(opts),
	}
}

// plannedChange is a validated row change waiting to be written
type plannedChange[S ~string] struct {
	id      int64
	version int64
	from    S
	to      S
}

// planBatch resolves and validates every edit before anything is written.
// load returns the row's shipment, status and version, or ok=false when missing.
func planBatch[S ~string](
	rules *workflow.Rules[S],
	shipmentID int64,
	edits []StatusEdit,
	parse func(string) (S, error),
	load func(id int64) (rowShipment int64, status S, version int64, ok bool, err error),
) ([]plannedChange[S], error) {
	if len(edits) == 0 {
		return nil, invalid("batch is empty")
	}

	seen := make(map[int64]struct{}, len(edits))
	plan := make([]plannedChange[S], 0, len(edits))

	for i, edit := range edits {
		fail := func(err error) error {
			return &BatchError{Index: i, ID: edit.ID, Err: err}
		}

		if _, dup := seen[edit.ID]; dup {
			return nil, fail(invalid("%s %d appears twice in batch", rules.Name(), edit.ID))
		}
		seen[edit.ID] = struct{}{}

		to, err := parse(edit.Status)
		if err != nil {
			return nil, fail(fromWorkflow(err))
		}

		rowShipment, from, version, ok, err := load(edit.ID)
		if err != nil {
			return nil, fail(fmt.Errorf("load %s: %w", rules.Name(), err))
		}
		if !ok {
			return nil, fail(notFound(rules.Name(), edit.ID))
		}
		if rowShipment != shipmentID {
			return nil, fail(invalid("%s %d does not belong to shipment %d", rules.Name(), edit.ID, shipmentID))
		}

		if err := rules.Validate(from, to); err != nil {
			return nil, fail(err)
		}

		plan = append(plan, plannedChange[S]{id: edit.ID, version: version, from: from, to: to})
	}

	return plan, nil
}

// EditShipmentItems changes the status of several items. Either every item
// changes or none does.
func (s *shipmentServiceImpl) EditShipmentItems(ctx context.Context, actor entity.Actor, shipmentID int64, edits []StatusEdit) ([]*entity.ShipmentItem, error) {
	rules := workflow.ShipmentItemRules
	if !actor.Valid() {
		return nil, invalid("actor is required")
	}

	var (
		plan         []plannedChange[workflow.ShipmentItemStatus]
		items        []*entity.ShipmentItem
		allDelivered bool
	)

	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		var err error
		plan, err = planBatch(rules, shipmentID, edits, workflow.ParseShipmentItemStatus,
			func(id int64) (int64, workflow.ShipmentItemStatus, int64, bool, error) {
				item, err := s.itemRepo.GetByID(txCtx, id)
				if err != nil || item == nil {
					return 0, "", 0, false, err
				}
				return item.ShipmentID, item.Status, item.Version, true, nil
			})
		if err != nil {
			return err
		}

		for _, change := range plan {
			if err := s.itemRepo.UpdateStatus(txCtx, change.id, change.version, change.to); err != nil {
				return conflict(rules.Name(), change.id, err)
			}
		}

		items, err = s.itemRepo.ListByShipmentID(txCtx, shipmentID)
		if err != nil {
			return fmt.Errorf("list shipment items: %w", err)
		}
		allDelivered = len(items) > 0
		for _, item := range items {
			if item.Status != workflow.ItemDelivered {
				allDelivered = false
				break
			}
		}
		return nil
	})
	if err != nil {
		s.opts.recorder.TransitionRejected(rules.Name(), ErrorReason(err))
		s.logger.Error("Failed to edit shipment items", "error", err, "shipment_id", shipmentID, "actor", actor.ID)
		return nil, err
	}

	for _, change := range plan {
		s.opts.recorder.TransitionApplied(rules.Name(), string(change.from), string(change.to))
		s.publishChange(ctx, event.TypeShipmentItemStatusChanged, change.id, shipmentID, actor, string(change.from), string(change.to))
	}
	if allDelivered {
		s.publishChange(ctx, event.TypeShipmentStatusChanged, shipmentID, shipmentID, actor, "", string(workflow.ItemDelivered))
	}

	s.logger.Info("Shipment items edited", "shipment_id", shipmentID, "count", len(plan), "actor", actor.ID)
	return items, nil
}

// EditShipmentEvents changes the status of several tracking events. Either
// every event changes or none does.
func (s *shipmentServiceImpl) EditShipmentEvents(ctx context.Context, actor entity.Actor, shipmentID int64, edits []StatusEdit) ([]*entity.ShipmentEvent, error) {
	rules := workflow.ShipmentEventRules
	if !actor.Valid() {
		return nil, invalid("actor is required")
	}

	var (
		plan   []plannedChange[workflow.ShipmentEventStatus]
		events []*entity.ShipmentEvent
	)

	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		var err error
		plan, err = planBatch(rules, shipmentID, edits, workflow.ParseShipmentEventStatus,
			func(id int64) (int64, workflow.ShipmentEventStatus, int64, bool, error) {
				evt, err := s.eventRepo.GetByID(txCtx, id)
				if err != nil || evt == nil {
					return 0, "", 0, false, err
				}
				return evt.ShipmentID, evt.Status, evt.Version, true, nil
			})
		if err != nil {
			return err
		}

		for _, change := range plan {
			if err := s.eventRepo.UpdateStatus(txCtx, change.id, change.version, change.to); err != nil {
				return conflict(rules.Name(), change.id, err)
			}
		}

		events, err = s.eventRepo.ListByShipmentID(txCtx, shipmentID)
		if err != nil {
			return fmt.Errorf("list shipment events: %w", err)
		}
		return nil
	})
	if err != nil {
		s.opts.recorder.TransitionRejected(rules.Name(), ErrorReason(err))
		s.logger.Error("Failed to edit shipment events", "error", err, "shipment_id", shipmentID, "actor", actor.ID)
		return nil, err
	}

	for _, change := range plan {
		s.opts.recorder.TransitionApplied(rules.Name(), string(change.from), string(change.to))
		s.publishChange(ctx, event.TypeShipmentEventStatusChanged, change.id, shipmentID, actor, string(change.from), string(change.to))
	}

	s.logger.Info("Shipment events edited", "shipment_id", shipmentID, "count", len(plan), "actor", actor.ID)
	return events, nil
}

func (s *shipmentServiceImpl) publishChange(ctx context.Context, t event.Type, entityID, shipmentID int64, actor entity.Actor, from, to string) {
	payload := map[string]interface{}{
		event.PayloadShipmentID: shipmentID,
		event.PayloadToStatus:   to,
		event.PayloadSource:     event.SourceDirect,
	}
	if from != "" {
		payload[event.PayloadFromStatus] = from
	}
	s.opts.events.DispatchAsync(context.WithoutCancel(ctx), event.NewEvent(t, entityID, actor, payload))
}
