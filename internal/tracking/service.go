package tracking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/mygros-backend/internal/orders"
	"github.com/angelmondragon/mygros-backend/pkg/db/models"
	"github.com/angelmondragon/mygros-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/mygros-backend/pkg/errors"
	"github.com/angelmondragon/mygros-backend/pkg/outbox"
	"github.com/angelmondragon/mygros-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/mygros-backend/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type transitionMetrics interface {
	TrackingAdvanced(from, to string)
	TrackingRejected(from, to string)
}

// Service drives delivery fulfillment.
type Service interface {
	AdvanceStatus(ctx context.Context, input AdvanceInput) (*DeliveryDTO, error)
	AssignDriver(ctx context.Context, input AssignInput) (*DeliveryDTO, error)
	UpdateLocation(ctx context.Context, input LocationInput) (*DeliveryDTO, error)
	UpdateDetails(ctx context.Context, input DetailsInput) (*DeliveryDTO, error)
	Get(ctx context.Context, actor Actor, trackingID uuid.UUID) (*DeliveryDTO, error)
	ListForDriver(ctx context.Context, driverID uuid.UUID, includeDelivered bool) ([]DeliveryDTO, error)
	ListAll(ctx context.Context, params pagination.Params, filters ListFilters) ([]DeliveryDTO, string, error)
	DriverSummary(ctx context.Context, driverID uuid.UUID) (*DriverSummary, error)
}

type service struct {
	repo    Repository
	tx      txRunner
	outbox  outboxPublisher
	machine *Machine
	metrics transitionMetrics
	now     func() time.Time
}

func NewService(repo Repository, tx txRunner, outbox outboxPublisher, machine *Machine, metrics transitionMetrics) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("tracking repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if machine == nil {
		return nil, fmt.Errorf("tracking machine required")
	}
	return &service{
		repo:    repo,
		tx:      tx,
		outbox:  outbox,
		machine: machine,
		metrics: metrics,
		now:     func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *service) AdvanceStatus(ctx context.Context, input AdvanceInput) (*DeliveryDTO, error) {
	if input.Actor.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if !input.Actor.Role.Can(enums.CapAdvanceDelivery) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "role cannot change delivery status")
	}

	var result DeliveryDTO
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		tracking, err := loadTracking(ctx, repo, input.TrackingID, true)
		if err != nil {
			return err
		}
		if err := ensureDriverOwns(tracking, input.Actor); err != nil {
			return err
		}
		order, err := repo.FindOrder(ctx, tracking.OrderID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		if err := ensureOrderOpen(order, input.Actor); err != nil {
			return err
		}

		from := tracking.Status
		if err := s.machine.Check(from, input.Status, input.Actor.Role); err != nil {
			if s.metrics != nil {
				s.metrics.TrackingRejected(string(from), string(input.Status))
			}
			return err
		}

		changedAt := s.now()
		updates := map[string]any{"status": input.Status}
		if input.Status == enums.TrackingStatusDelivered {
			updates["delivered_at"] = changedAt
			tracking.DeliveredAt = &changedAt
		}
		if err := repo.Update(ctx, tracking.ID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update tracking status")
		}
		tracking.Status = input.Status

		if order.Status == enums.OrderStatusPending {
			if err := s.approveOrder(ctx, tx, repo, order, input, changedAt); err != nil {
				return err
			}
		} else if mirrored, changed := orders.MirrorStatus(order.Status, input.Status); changed {
			if err := repo.UpdateOrderStatus(ctx, order.ID, mirrored); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mirror order status")
			}
			order.Status = mirrored
		}

		event := outbox.DomainEvent{
			EventType:     enums.EventTrackingStatusChanged,
			AggregateType: enums.AggregateTracking,
			AggregateID:   tracking.ID,
			Actor:         &outbox.ActorRef{UserID: input.Actor.UserID, Role: input.Actor.Role},
			Data: payloads.TrackingStatusChangedEvent{
				TrackingID:  tracking.ID,
				OrderID:     order.ID,
				OrderNumber: order.OrderNumber,
				BuyerID:     order.BuyerID,
				From:        from,
				To:          input.Status,
				Label:       input.Status.Label(),
				OrderStatus: order.Status,
				TotalAmount: order.TotalAmount,
				ChangedBy:   input.Actor.UserID,
				ChangedAt:   changedAt,
			},
		}
		if err := s.outbox.Emit(ctx, tx, event); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit tracking status changed")
		}
		if s.metrics != nil {
			s.metrics.TrackingAdvanced(string(from), string(input.Status))
		}
		tracking.UpdatedAt = changedAt
		result = newDeliveryDTO(*tracking, order)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// approveOrder confirms a pending order on behalf of the back-office actor
// moving its delivery, then lands it on the status mirrored from the step.
func (s *service) approveOrder(ctx context.Context, tx *gorm.DB, repo Repository, order *models.Order, input AdvanceInput, approvedAt time.Time) error {
	status := orders.ApprovalStatus(input.Status)
	ok, err := repo.ApproveOrder(ctx, order.ID, status, input.Actor.UserID, approvedAt)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "approve order")
	}
	if !ok {
		return pkgerrors.New(pkgerrors.CodeConflict, "order was validated concurrently")
	}
	reviewer := outbox.ActorRef{UserID: input.Actor.UserID, Role: input.Actor.Role}
	event := orders.ValidatedEvent(*order, reviewer, enums.OrderDecisionApprove, status, "", approvedAt)
	if err := s.outbox.Emit(ctx, tx, event); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit order validated")
	}
	order.Status = status
	order.ValidatedBy = &input.Actor.UserID
	order.ValidatedAt = &approvedAt
	return nil
}

func (s *service) AssignDriver(ctx context.Context, input AssignInput) (*DeliveryDTO, error) {
	if input.AdminID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if input.DriverID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "driver id required")
	}

	var result DeliveryDTO
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		tracking, err := loadTracking(ctx, repo, input.TrackingID, true)
		if err != nil {
			return err
		}
		if tracking.Status.IsTerminal() {
			return pkgerrors.New(pkgerrors.CodeInvalidTransition, "delivery already completed")
		}

		driver, err := repo.FindProfile(ctx, input.DriverID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeValidation, "driver not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load driver")
		}
		if driver.Role != enums.RoleDriver || !driver.IsActive {
			return pkgerrors.New(pkgerrors.CodeValidation, "profile is not an active driver")
		}

		if err := repo.Update(ctx, tracking.ID, map[string]any{"driver_id": driver.ID}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "assign driver")
		}
		tracking.DriverID = &driver.ID

		event := outbox.DomainEvent{
			EventType:     enums.EventDriverAssigned,
			AggregateType: enums.AggregateTracking,
			AggregateID:   tracking.ID,
			Actor:         &outbox.ActorRef{UserID: input.AdminID, Role: assignerRole(input.AdminRole)},
			Data: payloads.DriverAssignedEvent{
				TrackingID: tracking.ID,
				OrderID:    tracking.OrderID,
				DriverID:   driver.ID,
				AssignedBy: input.AdminID,
			},
		}
		if err := s.outbox.Emit(ctx, tx, event); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit driver assigned")
		}

		order, err := repo.FindOrder(ctx, tracking.OrderID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		result = newDeliveryDTO(*tracking, order)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (s *service) UpdateLocation(ctx context.Context, input LocationInput) (*DeliveryDTO, error) {
	if input.Latitude < -90 || input.Latitude > 90 || input.Longitude < -180 || input.Longitude > 180 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "coordinates out of range")
	}
	if !input.Actor.Role.Can(enums.CapAdvanceDelivery) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "role cannot report delivery location")
	}

	var result DeliveryDTO
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		tracking, err := loadTracking(ctx, repo, input.TrackingID, true)
		if err != nil {
			return err
		}
		if err := ensureDriverOwns(tracking, input.Actor); err != nil {
			return err
		}
		if tracking.Status.IsTerminal() {
			return pkgerrors.New(pkgerrors.CodeInvalidTransition, "delivery already completed")
		}

		lat, lng := input.Latitude, input.Longitude
		updates := map[string]any{"latitude": lat, "longitude": lng}
		tracking.Latitude, tracking.Longitude = &lat, &lng
		if loc := trimmed(input.CurrentLocation); loc != nil {
			updates["current_location"] = *loc
			tracking.CurrentLocation = loc
		}
		if err := repo.Update(ctx, tracking.ID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update location")
		}
		result = newDeliveryDTO(*tracking, nil)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (s *service) UpdateDetails(ctx context.Context, input DetailsInput) (*DeliveryDTO, error) {
	updates := map[string]any{}
	if input.Carrier != nil {
		carrier := strings.TrimSpace(*input.Carrier)
		if carrier == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "carrier must not be empty")
		}
		updates["carrier"] = carrier
	}
	if input.TrackingNumber != nil {
		updates["tracking_number"] = strings.TrimSpace(*input.TrackingNumber)
	}
	if input.EstimatedDelivery != nil {
		updates["estimated_delivery"] = input.EstimatedDelivery.UTC()
	}
	if input.Notes != nil {
		updates["notes"] = strings.TrimSpace(*input.Notes)
	}
	if len(updates) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "nothing to update")
	}

	var result DeliveryDTO
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		tracking, err := loadTracking(ctx, repo, input.TrackingID, true)
		if err != nil {
			return err
		}
		if err := repo.Update(ctx, tracking.ID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update tracking details")
		}
		reloaded, err := repo.Find(ctx, tracking.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload tracking")
		}
		result = newDeliveryDTO(*reloaded, nil)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (s *service) Get(ctx context.Context, actor Actor, trackingID uuid.UUID) (*DeliveryDTO, error) {
	tracking, err := loadTracking(ctx, s.repo, trackingID, false)
	if err != nil {
		return nil, err
	}
	order, err := s.repo.FindOrder(ctx, tracking.OrderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	switch {
	case actor.Role.Can(enums.CapManageTracking):
	case actor.Role == enums.RoleDriver:
		if err := ensureDriverOwns(tracking, actor); err != nil {
			return nil, err
		}
	case order.BuyerID != actor.UserID:
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "delivery not found")
	}
	dto := newDeliveryDTO(*tracking, order)
	return &dto, nil
}

func (s *service) ListForDriver(ctx context.Context, driverID uuid.UUID, includeDelivered bool) ([]DeliveryDTO, error) {
	if driverID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	rows, err := s.repo.ListForDriver(ctx, driverID, includeDelivered)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list driver deliveries")
	}
	return s.withOrders(ctx, rows)
}

func (s *service) ListAll(ctx context.Context, params pagination.Params, filters ListFilters) ([]DeliveryDTO, string, error) {
	if _, err := pagination.ParseCursor(params.Cursor); err != nil {
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	if filters.Status != nil && !filters.Status.IsValid() {
		return nil, "", pkgerrors.New(pkgerrors.CodeValidation, "invalid status filter")
	}
	rows, next, err := s.repo.List(ctx, params, filters)
	if err != nil {
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list deliveries")
	}
	out, err := s.withOrders(ctx, rows)
	if err != nil {
		return nil, "", err
	}
	cursor := ""
	if next != nil {
		cursor = pagination.EncodeCursor(*next)
	}
	return out, cursor, nil
}

func (s *service) DriverSummary(ctx context.Context, driverID uuid.UUID) (*DriverSummary, error) {
	pending, err := s.repo.CountForDriver(ctx, driverID, []enums.TrackingStatus{
		enums.TrackingStatusPending, enums.TrackingStatusConfirmed, enums.TrackingStatusPreparing,
	}, nil)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count pending deliveries")
	}
	inProgress, err := s.repo.CountForDriver(ctx, driverID, []enums.TrackingStatus{enums.TrackingStatusOutForDelivery}, nil)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count deliveries in progress")
	}
	now := s.now()
	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	completed, err := s.repo.CountForDriver(ctx, driverID, []enums.TrackingStatus{enums.TrackingStatusDelivered}, &startOfDay)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count completed deliveries")
	}
	return &DriverSummary{Pending: pending, InProgress: inProgress, CompletedToday: completed}, nil
}

func (s *service) withOrders(ctx context.Context, rows []models.DeliveryTracking) ([]DeliveryDTO, error) {
	ids := make([]uuid.UUID, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.OrderID)
	}
	byID, err := s.repo.OrdersByID(ctx, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load delivery orders")
	}
	out := make([]DeliveryDTO, 0, len(rows))
	for _, row := range rows {
		var order *models.Order
		if o, ok := byID[row.OrderID]; ok {
			order = &o
		}
		out = append(out, newDeliveryDTO(row, order))
	}
	return out, nil
}

func loadTracking(ctx context.Context, repo Repository, trackingID uuid.UUID, lock bool) (*models.DeliveryTracking, error) {
	if trackingID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tracking id required")
	}
	var (
		tracking *models.DeliveryTracking
		err      error
	)
	if lock {
		tracking, err = repo.FindForUpdate(ctx, trackingID)
	} else {
		tracking, err = repo.Find(ctx, trackingID)
	}
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "delivery not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load delivery")
	}
	return tracking, nil
}

// ensureDriverOwns restricts drivers to deliveries assigned to them. Other
// roles pass through; capability checks happen at the route.
// ensureOrderOpen refuses moves on cancelled orders, and on pending orders
// unless the back office is approving them through dispatch.
func ensureOrderOpen(order *models.Order, actor Actor) error {
	switch {
	case order.Status == enums.OrderStatusCancelled:
		return pkgerrors.New(pkgerrors.CodeInvalidTransition, "order was cancelled").
			WithDetails(map[string]any{"order_status": order.Status})
	case order.Status == enums.OrderStatusPending && !actor.Role.IsBackOffice():
		return pkgerrors.New(pkgerrors.CodeInvalidTransition, "order awaits validation").
			WithDetails(map[string]any{"order_status": order.Status})
	}
	return nil
}

func assignerRole(role enums.Role) enums.Role {
	if role == "" {
		return enums.RoleAdmin
	}
	return role
}

func ensureDriverOwns(tracking *models.DeliveryTracking, actor Actor) error {
	if actor.Role != enums.RoleDriver {
		return nil
	}
	if tracking.DriverID == nil || *tracking.DriverID != actor.UserID {
		return pkgerrors.New(pkgerrors.CodeForbidden, "delivery is not assigned to you")
	}
	return nil
}

func trimmed(v *string) *string {
	if v == nil {
		return nil
	}
	t := strings.TrimSpace(*v)
	if t == "" {
		return nil
	}
	return &t
}
