package auth

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/angelmondragon/mygros-backend/internal/accessrequests"
	"github.com/angelmondragon/mygros-backend/internal/users"
	"github.com/angelmondragon/mygros-backend/pkg/config"
	"github.com/angelmondragon/mygros-backend/pkg/db"
	"github.com/angelmondragon/mygros-backend/pkg/db/models"
	"github.com/angelmondragon/mygros-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/mygros-backend/pkg/errors"
	"github.com/angelmondragon/mygros-backend/pkg/security"
)

const minPasswordLength = 8

// RegisterService handles the onboarding transaction.
type RegisterService interface {
	Register(ctx context.Context, req RegisterRequest) (*RegisterResponse, error)
}

type accessRequestOpener interface {
	Open(ctx context.Context, tx *gorm.DB, input accessrequests.SubmitInput) (*models.AccessRequest, error)
}

// RegisterServiceParams packages the dependencies for the registration flow.
type RegisterServiceParams struct {
	DB             *db.Client
	AccessRequests accessRequestOpener
	PasswordConfig config.PasswordConfig
}

type registerService struct {
	db          *db.Client
	access      accessRequestOpener
	passwordCfg config.PasswordConfig
}

// NewRegisterService builds a registration service with the provided dependencies.
func NewRegisterService(params RegisterServiceParams) (RegisterService, error) {
	if params.DB == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "database client required")
	}
	if params.AccessRequests == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "access request service required")
	}
	return &registerService{
		db:          params.DB,
		access:      params.AccessRequests,
		passwordCfg: params.PasswordConfig,
	}, nil
}

// Register always creates a buyer profile. A company is attached when a
// name is given.
func (s *registerService) Register(ctx context.Context, req RegisterRequest) (*RegisterResponse, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "email is required")
	}
	if strings.TrimSpace(req.FirstName) == "" || strings.TrimSpace(req.LastName) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "first and last name are required")
	}
	if len(req.Password) < minPasswordLength {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "password too short").
			WithDetails(map[string]any{"min_length": minPasswordLength})
	}
	wantsUpgrade := req.RequestedRole != nil && *req.RequestedRole != enums.RoleBuyer
	if wantsUpgrade && !accessrequests.Requestable(*req.RequestedRole) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "role cannot be requested").
			WithDetails(map[string]any{"requested_role": *req.RequestedRole})
	}

	passwordHash, err := security.HashPassword(req.Password, s.passwordCfg)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash password")
	}

	resp := &RegisterResponse{}
	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		userRepo := users.NewRepository(tx)

		if _, err := userRepo.FindByEmail(ctx, email); err == nil {
			return pkgerrors.New(pkgerrors.CodeConflict, "email already registered")
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check user email")
		}

		var company *models.Company
		if name := optional(req.CompanyName); name != nil {
			companyType := enums.CompanyTypeBuyer
			if wantsUpgrade && *req.RequestedRole == enums.RoleSupplier {
				companyType = enums.CompanyTypeSupplier
			}
			company = &models.Company{
				Name:        *name,
				CompanyType: companyType,
				Siret:       optional(req.Siret),
				City:        optional(req.City),
				PostalCode:  optional(req.PostalCode),
				Phone:       optional(req.Phone),
			}
			if err := userRepo.CreateCompany(ctx, company); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create company")
			}
		}

		create := users.CreateUserDTO{
			Email:        email,
			PasswordHash: passwordHash,
			FirstName:    req.FirstName,
			LastName:     req.LastName,
			Phone:        optional(req.Phone),
			Role:         enums.RoleBuyer,
		}
		if company != nil {
			create.CompanyID = &company.ID
		}
		user, err := userRepo.Create(ctx, create)
		if err != nil {
			if db.IsUniqueViolation(err, "ux_profiles_email") {
				return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "email already registered")
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create user")
		}

		if wantsUpgrade {
			if _, err := s.access.Open(ctx, tx, accessrequests.SubmitInput{
				UserID:        user.ID,
				CurrentRole:   user.Role,
				RequestedRole: *req.RequestedRole,
				Reason:        req.Reason,
			}); err != nil {
				return err
			}
			resp.AccessRequestPending = true
		}

		resp.User = users.FromModel(user)
		resp.User.Company = users.FromCompany(company)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func optional(v *string) *string {
	if v == nil {
		return nil
	}
	t := strings.TrimSpace(*v)
	if t == "" {
		return nil
	}
	return &t
}
