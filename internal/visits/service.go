package visits

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/mygros-backend/pkg/db/models"
	"github.com/angelmondragon/mygros-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/mygros-backend/pkg/errors"
	"github.com/angelmondragon/mygros-backend/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Actor is the authenticated caller.
type Actor struct {
	UserID uuid.UUID
	Role   enums.Role
}

// Service manages field visit reports.
type Service interface {
	Create(ctx context.Context, actor Actor, input CreateInput) (*ReportDTO, error)
	AddPhoto(ctx context.Context, actor Actor, reportID uuid.UUID, input PhotoInput) (*ReportDTO, error)
	Get(ctx context.Context, actor Actor, id uuid.UUID) (*ReportDTO, error)
	ListMine(ctx context.Context, actor Actor, params pagination.Params) (*ReportList, error)
	ListAll(ctx context.Context, actor Actor, params pagination.Params, filters ListFilters) (*ReportList, error)
}

type service struct {
	repo *Repository
	tx   txRunner
	now  func() time.Time
}

func NewService(repo *Repository, tx txRunner) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("visits repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{repo: repo, tx: tx, now: func() time.Time { return time.Now().UTC() }}, nil
}

func (s *service) Create(ctx context.Context, actor Actor, input CreateInput) (*ReportDTO, error) {
	if err := authorize(actor, enums.CapFileVisitReports); err != nil {
		return nil, err
	}
	name := strings.TrimSpace(input.ClientName)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "client_name is required")
	}
	if err := checkCoordinates(input.Latitude, input.Longitude); err != nil {
		return nil, err
	}
	visitDate, err := s.parseVisitDate(input.VisitDate)
	if err != nil {
		return nil, err
	}
	if len(input.Photos) > MaxPhotosPerReport {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "too many photos").
			WithDetails(map[string]any{"max": MaxPhotosPerReport})
	}

	report := &models.VisitReport{
		CommercialID:  actor.UserID,
		ClientName:    name,
		ClientAddress: optional(input.ClientAddress),
		ClientCity:    optional(input.ClientCity),
		Latitude:      input.Latitude,
		Longitude:     input.Longitude,
		Notes:         optional(input.Notes),
		VisitDate:     visitDate,
	}
	for i, p := range input.Photos {
		if !validPhotoURL(p.URL) {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid photo url").
				WithDetails(map[string]any{"index": i})
		}
		report.Photos = append(report.Photos, models.VisitPhoto{PhotoURL: strings.TrimSpace(p.URL), Caption: optional(p.Caption)})
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).Create(ctx, report); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create visit report")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	dto := newReportDTO(*report)
	return &dto, nil
}

func (s *service) AddPhoto(ctx context.Context, actor Actor, reportID uuid.UUID, input PhotoInput) (*ReportDTO, error) {
	if err := authorize(actor, enums.CapFileVisitReports); err != nil {
		return nil, err
	}
	if !validPhotoURL(input.URL) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid photo url")
	}
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		report, err := s.load(ctx, repo, reportID)
		if err != nil {
			return err
		}
		if report.CommercialID != actor.UserID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "visit report belongs to another commercial")
		}
		count, err := repo.CountPhotos(ctx, reportID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count photos")
		}
		if count >= MaxPhotosPerReport {
			return pkgerrors.New(pkgerrors.CodeValidation, "too many photos").
				WithDetails(map[string]any{"max": MaxPhotosPerReport})
		}
		photo := &models.VisitPhoto{
			VisitReportID: reportID,
			PhotoURL:      strings.TrimSpace(input.URL),
			Caption:       optional(input.Caption),
		}
		if err := repo.AddPhoto(ctx, photo); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "add photo")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, actor, reportID)
}

func (s *service) Get(ctx context.Context, actor Actor, id uuid.UUID) (*ReportDTO, error) {
	report, err := s.load(ctx, s.repo, id)
	if err != nil {
		return nil, err
	}
	if report.CommercialID != actor.UserID && !actor.Role.Can(enums.CapViewAllVisitReports) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "visit report not found")
	}
	dto := newReportDTO(*report)
	return &dto, nil
}

func (s *service) ListMine(ctx context.Context, actor Actor, params pagination.Params) (*ReportList, error) {
	if err := authorize(actor, enums.CapFileVisitReports); err != nil {
		return nil, err
	}
	return s.list(ctx, params, ListFilters{CommercialID: &actor.UserID})
}

func (s *service) ListAll(ctx context.Context, actor Actor, params pagination.Params, filters ListFilters) (*ReportList, error) {
	if err := authorize(actor, enums.CapViewAllVisitReports); err != nil {
		return nil, err
	}
	if filters.From != nil && filters.To != nil && filters.From.After(*filters.To) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "from must not be after to")
	}
	return s.list(ctx, params, filters)
}

func (s *service) list(ctx context.Context, params pagination.Params, filters ListFilters) (*ReportList, error) {
	if _, err := pagination.ParseCursor(params.Cursor); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	rows, next, err := s.repo.List(ctx, params, filters)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list visit reports")
	}
	out := &ReportList{Reports: make([]ReportDTO, 0, len(rows))}
	for _, row := range rows {
		out.Reports = append(out.Reports, newReportDTO(row))
	}
	if next != nil {
		out.NextCursor = pagination.EncodeCursor(*next)
	}
	return out, nil
}

func (s *service) load(ctx context.Context, repo *Repository, id uuid.UUID) (*models.VisitReport, error) {
	report, err := repo.Find(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "visit report not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load visit report")
	}
	return report, nil
}

// parseVisitDate rejects visits dated in the future.
func (s *service) parseVisitDate(raw string) (time.Time, error) {
	today := s.now().Truncate(24 * time.Hour)
	if strings.TrimSpace(raw) == "" {
		return today, nil
	}
	d, err := time.Parse(visitDateLayout, strings.TrimSpace(raw))
	if err != nil {
		return time.Time{}, pkgerrors.New(pkgerrors.CodeValidation, "visit_date must be YYYY-MM-DD")
	}
	if d.After(today) {
		return time.Time{}, pkgerrors.New(pkgerrors.CodeValidation, "visit_date is in the future")
	}
	return d, nil
}

func checkCoordinates(lat, lng *float64) error {
	if (lat == nil) != (lng == nil) {
		return pkgerrors.New(pkgerrors.CodeValidation, "latitude and longitude go together")
	}
	if lat == nil {
		return nil
	}
	if *lat < -90 || *lat > 90 || *lng < -180 || *lng > 180 {
		return pkgerrors.New(pkgerrors.CodeValidation, "coordinates out of range")
	}
	return nil
}

func authorize(actor Actor, capability enums.Capability) error {
	if actor.UserID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if !actor.Role.Can(capability) {
		return pkgerrors.New(pkgerrors.CodeForbidden, "insufficient role")
	}
	return nil
}
