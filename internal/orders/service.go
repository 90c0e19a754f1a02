package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/mygros-backend/pkg/db"
	"github.com/angelmondragon/mygros-backend/pkg/db/models"
	"github.com/angelmondragon/mygros-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/mygros-backend/pkg/errors"
	"github.com/angelmondragon/mygros-backend/pkg/outbox"
	"github.com/angelmondragon/mygros-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/mygros-backend/pkg/pagination"
)

const orderNumberConstraint = "orders_order_number_key"

var olivesCategoryMarkers = []string{"olive", "condiment"}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type domainMetrics interface {
	OrderPlaced()
	OrderDecided(decision string)
}

// Service owns the order aggregate: creation, review and reads.
type Service interface {
	Create(ctx context.Context, input PlaceInput) (*OrderDTO, error)
	// Place creates the order inside the caller's transaction.
	Place(ctx context.Context, tx *gorm.DB, input PlaceInput) (*models.Order, error)
	Validate(ctx context.Context, input ValidateInput) (*OrderDTO, error)
	ListForBuyer(ctx context.Context, buyerID uuid.UUID, params pagination.Params) (*OrderList, error)
	ListAll(ctx context.Context, params pagination.Params, filters AdminListFilters) (*OrderList, error)
	Get(ctx context.Context, viewer Viewer, orderID uuid.UUID) (*OrderDTO, error)
	Stats(ctx context.Context) (*AdminStats, error)
}

type service struct {
	repo     Repository
	tx       txRunner
	outbox   outboxPublisher
	schedule Schedule
	metrics  domainMetrics
	now      func() time.Time
}

// NewService builds the order service with the required dependencies.
func NewService(repo Repository, tx txRunner, outbox outboxPublisher, schedule Schedule, metrics domainMetrics) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if len(schedule) == 0 {
		return nil, fmt.Errorf("delivery schedule required")
	}
	return &service{
		repo:     repo,
		tx:       tx,
		outbox:   outbox,
		schedule: schedule,
		metrics:  metrics,
		now:      func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *service) Create(ctx context.Context, input PlaceInput) (*OrderDTO, error) {
	var created *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		order, err := s.Place(ctx, tx, input)
		if err != nil {
			return err
		}
		created = order
		return nil
	})
	if err != nil {
		return nil, err
	}
	dto := NewOrderDTO(*created)
	return &dto, nil
}

func (s *service) Place(ctx context.Context, tx *gorm.DB, input PlaceInput) (*models.Order, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction required")
	}
	terms, err := s.validatePlacement(input)
	if err != nil {
		return nil, err
	}

	priced := make([]PricedLine, 0, len(input.Lines))
	for _, line := range input.Lines {
		priced = append(priced, PricedLine{Quantity: line.Quantity, UnitPrice: line.UnitPrice})
	}
	totals := Totals(priced, terms)

	repo := s.repo.WithTx(tx)
	number, err := repo.NextOrderNumber(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "allocate order number")
	}

	order := &models.Order{
		ID:                 uuid.New(),
		OrderNumber:        number,
		BuyerID:            input.BuyerID,
		CompanyID:          input.CompanyID,
		Status:             enums.OrderStatusPending,
		PaymentMethod:      input.PaymentMethod,
		PaymentStatus:      input.PaymentMethod.InitialPaymentStatus(),
		Subtotal:           totals.Subtotal,
		DeliveryFee:        totals.DeliveryFee,
		TotalAmount:        totals.Total,
		DeliveryZone:       input.Zone,
		DeliveryAddress:    strings.TrimSpace(input.Address.Address),
		DeliveryCity:       strings.TrimSpace(input.Address.City),
		DeliveryPostalCode: strings.TrimSpace(input.Address.PostalCode),
		DeliveryLatitude:   input.Address.Latitude,
		DeliveryLongitude:  input.Address.Longitude,
		DeliveryTimeSlot:   input.TimeSlot,
		Notes:              input.Notes,
	}
	for i, line := range input.Lines {
		order.Items = append(order.Items, models.OrderItem{
			OrderID:     order.ID,
			ProductID:   line.ProductID,
			ProductName: line.ProductName,
			Quantity:    line.Quantity,
			UnitPrice:   line.UnitPrice,
			Subtotal:    priced[i].Subtotal(),
		})
	}

	if err := repo.CreateOrder(ctx, order); err != nil {
		if db.IsUniqueViolation(err, orderNumberConstraint) || db.IsUniqueViolation(err, "order_number") {
			return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "order number already taken, retry").
				WithDetails(map[string]any{"order_number": number})
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
	}

	tracking := &models.DeliveryTracking{
		OrderID: order.ID,
		Status:  enums.TrackingStatusPending,
		Carrier: terms.Carrier,
	}
	if err := repo.CreateTracking(ctx, tracking); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create delivery tracking")
	}
	order.Tracking = tracking

	event := outbox.DomainEvent{
		EventType:     enums.EventOrderCreated,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Actor:         &outbox.ActorRef{UserID: input.BuyerID, CompanyID: input.CompanyID, Role: enums.RoleBuyer},
		Data: payloads.OrderCreatedEvent{
			OrderID:       order.ID,
			OrderNumber:   order.OrderNumber,
			BuyerID:       order.BuyerID,
			CompanyID:     order.CompanyID,
			Subtotal:      order.Subtotal,
			DeliveryFee:   order.DeliveryFee,
			TotalAmount:   order.TotalAmount,
			PaymentMethod: order.PaymentMethod,
			DeliveryZone:  order.DeliveryZone,
			ItemCount:     len(order.Items),
			PlacedAt:      s.now(),
		},
	}
	if err := s.outbox.Emit(ctx, tx, event); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit order created")
	}
	if s.metrics != nil {
		s.metrics.OrderPlaced()
	}
	return order, nil
}

func (s *service) validatePlacement(input PlaceInput) (ZoneTerms, error) {
	fields := map[string]string{}
	if input.BuyerID == uuid.Nil {
		fields["buyer_id"] = "required"
	}
	if len(input.Lines) == 0 {
		fields["lines"] = "at least one line required"
	}
	for i, line := range input.Lines {
		key := fmt.Sprintf("lines[%d]", i)
		switch {
		case line.ProductID == uuid.Nil:
			fields[key] = "product id required"
		case line.Quantity < 1:
			fields[key] = "quantity must be >= 1"
		case line.UnitPrice.IsNegative():
			fields[key] = "unit price must not be negative"
		}
	}
	terms, ok := s.schedule.Terms(input.Zone)
	if !ok {
		fields["delivery_zone"] = "unknown zone"
	}
	if !input.PaymentMethod.IsValid() {
		fields["payment_method"] = "unknown payment method"
	}
	if input.TimeSlot != nil && !input.TimeSlot.IsValid() {
		fields["delivery_time_slot"] = "unknown time slot"
	}
	if strings.TrimSpace(input.Address.Address) == "" {
		fields["delivery_address"] = "required"
	}
	if strings.TrimSpace(input.Address.City) == "" {
		fields["delivery_city"] = "required"
	}
	if strings.TrimSpace(input.Address.PostalCode) == "" {
		fields["delivery_postal_code"] = "required"
	}
	if len(fields) > 0 {
		return ZoneTerms{}, pkgerrors.New(pkgerrors.CodeValidation, "invalid order").WithDetails(fields)
	}
	return terms, nil
}

func (s *service) Validate(ctx context.Context, input ValidateInput) (*OrderDTO, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if input.ReviewerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if !input.Decision.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "decision must be approve or reject")
	}
	note := trimmedNote(input.Note)
	if input.Decision == enums.OrderDecisionReject && note == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "a note is required to reject an order")
	}

	var result *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindOrderForUpdate(ctx, input.OrderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		if order.Status != enums.OrderStatusPending {
			return pkgerrors.New(pkgerrors.CodeInvalidTransition, "only pending orders can be validated").
				WithDetails(map[string]any{"status": order.Status})
		}

		target := enums.OrderStatusConfirmed
		if input.Decision == enums.OrderDecisionReject {
			target = enums.OrderStatusCancelled
		}
		validatedAt := s.now()
		updates := map[string]any{
			"status":       target,
			"validated_by": input.ReviewerID,
			"validated_at": validatedAt,
		}
		if note != nil {
			updates["admin_note"] = *note
		}
		if err := repo.UpdateOrder(ctx, order.ID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order")
		}
		if target == enums.OrderStatusConfirmed {
			if err := repo.UpdateTrackingStatus(ctx, order.ID, enums.TrackingStatusConfirmed); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "confirm delivery tracking")
			}
		}

		reviewer := outbox.ActorRef{UserID: input.ReviewerID, Role: input.ReviewerRole}
		if reviewer.Role == "" {
			reviewer.Role = enums.RoleAdmin
		}
		event := ValidatedEvent(*order, reviewer, input.Decision, target, derefString(note), validatedAt)
		if err := s.outbox.Emit(ctx, tx, event); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit order validated")
		}

		result, err = repo.FindOrderDetail(ctx, order.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload order")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.OrderDecided(string(input.Decision))
	}
	dto := NewOrderDTO(*result)
	return &dto, nil
}

func (s *service) ListForBuyer(ctx context.Context, buyerID uuid.UUID, params pagination.Params) (*OrderList, error) {
	if buyerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if err := validateCursor(params); err != nil {
		return nil, err
	}
	rows, next, err := s.repo.ListBuyerOrders(ctx, buyerID, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list buyer orders")
	}
	return buildList(rows, next), nil
}

func (s *service) ListAll(ctx context.Context, params pagination.Params, filters AdminListFilters) (*OrderList, error) {
	if filters.Status != nil && !filters.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid status filter")
	}
	if err := validateCursor(params); err != nil {
		return nil, err
	}
	rows, next, err := s.repo.ListAllOrders(ctx, params, filters)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	return buildList(rows, next), nil
}

func (s *service) Get(ctx context.Context, viewer Viewer, orderID uuid.UUID) (*OrderDTO, error) {
	order, err := s.repo.FindOrderDetail(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	if order.BuyerID != viewer.UserID && !viewer.Role.Can(enums.CapViewAllOrders) {
		// Hide existence from other buyers.
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	dto := NewOrderDTO(*order)
	return &dto, nil
}

func (s *service) Stats(ctx context.Context) (*AdminStats, error) {
	revenue, err := s.repo.RevenueExcludingCancelled(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sum revenue")
	}
	pending, err := s.repo.CountByStatus(ctx, enums.OrderStatusPending)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count pending orders")
	}
	byCategory, err := s.repo.ItemRevenueByCategory(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sum revenue by category")
	}

	stats := &AdminStats{
		TotalRevenue:    revenue.Round(2),
		OlivesRevenue:   decimal.Zero,
		EpicerieRevenue: decimal.Zero,
		PendingOrders:   pending,
	}
	for _, row := range byCategory {
		if isOlivesFamily(row.CategoryName) {
			stats.OlivesRevenue = stats.OlivesRevenue.Add(row.Revenue)
		} else {
			stats.EpicerieRevenue = stats.EpicerieRevenue.Add(row.Revenue)
		}
	}
	stats.OlivesRevenue = stats.OlivesRevenue.Round(2)
	stats.EpicerieRevenue = stats.EpicerieRevenue.Round(2)
	return stats, nil
}

func isOlivesFamily(categoryName string) bool {
	name := strings.ToLower(categoryName)
	for _, marker := range olivesCategoryMarkers {
		if strings.Contains(name, marker) {
			return true
		}
	}
	return false
}

func buildList(rows []models.Order, next *pagination.Cursor) *OrderList {
	list := &OrderList{Orders: make([]OrderDTO, 0, len(rows))}
	for _, row := range rows {
		list.Orders = append(list.Orders, NewOrderDTO(row))
	}
	if next != nil {
		list.NextCursor = pagination.EncodeCursor(*next)
	}
	return list
}

func validateCursor(params pagination.Params) error {
	if _, err := pagination.ParseCursor(params.Cursor); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	return nil
}

func trimmedNote(note *string) *string {
	if note == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*note)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func derefString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
