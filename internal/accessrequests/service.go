package accessrequests

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/mygros-backend/pkg/db"
	"github.com/angelmondragon/mygros-backend/pkg/db/models"
	"github.com/angelmondragon/mygros-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/mygros-backend/pkg/errors"
	"github.com/angelmondragon/mygros-backend/pkg/outbox"
	"github.com/angelmondragon/mygros-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/mygros-backend/pkg/pagination"
)

const pendingConstraint = "ux_access_requests_one_pending"

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service handles role upgrade requests.
type Service interface {
	// Open files a request inside the caller's transaction.
	Open(ctx context.Context, tx *gorm.DB, input SubmitInput) (*models.AccessRequest, error)
	Submit(ctx context.Context, input SubmitInput) (*RequestDTO, error)
	ListMine(ctx context.Context, userID uuid.UUID) ([]RequestDTO, error)
	List(ctx context.Context, params pagination.Params, filters ListFilters) (*RequestList, error)
	Review(ctx context.Context, input ReviewInput) (*RequestDTO, error)
}

type service struct {
	repo   *Repository
	tx     txRunner
	outbox outboxPublisher
	now    func() time.Time
}

func NewService(repo *Repository, tx txRunner, outbox outboxPublisher) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("access request repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	return &service{repo: repo, tx: tx, outbox: outbox, now: func() time.Time { return time.Now().UTC() }}, nil
}

func (s *service) Open(ctx context.Context, tx *gorm.DB, input SubmitInput) (*models.AccessRequest, error) {
	if input.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if !Requestable(input.RequestedRole) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "role cannot be requested").
			WithDetails(map[string]any{"requested_role": input.RequestedRole})
	}
	if input.RequestedRole == input.CurrentRole {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "role already granted")
	}

	repo := s.repo.WithTx(tx)
	pending, err := repo.HasPending(ctx, input.UserID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check pending requests")
	}
	if pending {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "an access request is already pending")
	}

	req := &models.AccessRequest{
		UserID:        input.UserID,
		RequestedRole: input.RequestedRole,
		Reason:        trimmed(input.Reason),
		Status:        enums.AccessRequestPending,
	}
	if err := repo.Create(ctx, req); err != nil {
		if db.IsUniqueViolation(err, pendingConstraint) || db.IsUniqueViolation(err, "access_requests.user_id") {
			return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "an access request is already pending")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create access request")
	}
	return req, nil
}

func (s *service) Submit(ctx context.Context, input SubmitInput) (*RequestDTO, error) {
	var created *models.AccessRequest
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		req, err := s.Open(ctx, tx, input)
		created = req
		return err
	})
	if err != nil {
		return nil, err
	}
	dto := newRequestDTO(*created)
	return &dto, nil
}

func (s *service) ListMine(ctx context.Context, userID uuid.UUID) ([]RequestDTO, error) {
	rows, err := s.repo.ListForUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list access requests")
	}
	out := make([]RequestDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, newRequestDTO(row))
	}
	return out, nil
}

func (s *service) List(ctx context.Context, params pagination.Params, filters ListFilters) (*RequestList, error) {
	if _, err := pagination.ParseCursor(params.Cursor); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	if filters.Status != nil && !filters.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid status filter")
	}
	rows, next, err := s.repo.List(ctx, params, filters)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list access requests")
	}
	out := &RequestList{Requests: make([]RequestDTO, 0, len(rows))}
	for _, row := range rows {
		out.Requests = append(out.Requests, newRequestDTO(row))
	}
	if next != nil {
		out.NextCursor = pagination.EncodeCursor(*next)
	}
	return out, nil
}

// Review approves or rejects a pending request. Approval grants the role in
// the same transaction.
func (s *service) Review(ctx context.Context, input ReviewInput) (*RequestDTO, error) {
	if input.ReviewerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}

	var result RequestDTO
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		req, err := repo.FindForUpdate(ctx, input.RequestID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "access request not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load access request")
		}
		if req.Status != enums.AccessRequestPending {
			return pkgerrors.New(pkgerrors.CodeInvalidTransition, "access request already reviewed").
				WithDetails(map[string]any{"status": req.Status})
		}

		status := enums.AccessRequestRejected
		if input.Approve {
			status = enums.AccessRequestApproved
		}
		now := s.now()
		note := trimmed(input.Note)
		updates := map[string]any{
			"status":      status,
			"reviewed_by": input.ReviewerID,
			"reviewed_at": now,
		}
		if note != nil {
			updates["review_note"] = *note
		}
		if err := repo.Update(ctx, req.ID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update access request")
		}
		if input.Approve {
			if err := repo.UpdateProfileRole(ctx, req.UserID, req.RequestedRole); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "grant role")
			}
		}

		event := outbox.DomainEvent{
			EventType:     enums.EventAccessRequestReviewed,
			AggregateType: enums.AggregateAccessRequest,
			AggregateID:   req.ID,
			Actor:         &outbox.ActorRef{UserID: input.ReviewerID, Role: enums.RoleAdmin},
			Data: payloads.AccessRequestReviewedEvent{
				RequestID:     req.ID,
				UserID:        req.UserID,
				RequestedRole: req.RequestedRole,
				Status:        status,
				ReviewerID:    input.ReviewerID,
			},
		}
		if err := s.outbox.Emit(ctx, tx, event); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit access request reviewed")
		}

		req.Status = status
		req.ReviewedBy = &input.ReviewerID
		req.ReviewedAt = &now
		req.ReviewNote = note
		result = newRequestDTO(*req)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
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
