package service

import (
	"context"
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/nadmax/fieldops/internal/metrics"
	"github.com/nadmax/fieldops/internal/repository"
	"github.com/nadmax/fieldops/internal/repository/models"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
)

type ProfileRequest struct {
	FullName string  `json:"full_name" validate:"required,max=255"`
	Email    *string `json:"email" validate:"omitempty,max=255"`
	Phone    *string `json:"phone" validate:"omitempty,max=20"`
}

// maxPasswordBytes is bcrypt's input limit.
const maxPasswordBytes = 72

type ChangePasswordRequest struct {
	CurrentPassword string  `json:"current_password" validate:"required"`
	NewPassword     string  `json:"new_password" validate:"required,min=6,max=72,nefield=CurrentPassword"`
	ConfirmPassword *string `json:"confirm_password,omitempty"`
}

type PasswordChangeResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// CacheInvalidator is satisfied by *ReportService.
type CacheInvalidator interface {
	InvalidateCache(ctx context.Context)
}

type AccountService struct {
	repo       repository.UserRepository
	invalidate CacheInvalidator
	validate   *validator.Validate
	cost       int
}

func NewAccountService(repo repository.UserRepository, invalidate CacheInvalidator) *AccountService {
	return &AccountService{
		repo:       repo,
		invalidate: invalidate,
		validate:   newValidator(),
		cost:       bcrypt.DefaultCost,
	}
}

// WithHashCost overrides the bcrypt cost.
func (s *AccountService) WithHashCost(cost int) *AccountService {
	s.cost = cost
	return s
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func (s *AccountService) Profile(ctx context.Context, userID int64) (*models.User, error) {
	return s.repo.GetUser(ctx, userID)
}

func (s *AccountService) UpdateProfile(ctx context.Context, userID int64, req ProfileRequest) (*models.User, error) {
	req.FullName = strings.TrimSpace(req.FullName)
	req.Email = trimmed(req.Email)
	req.Phone = trimmed(req.Phone)

	if err := s.check(req); err != nil {
		metrics.RecordProfileUpdate(metrics.ResultInvalid)
		return nil, err
	}
	if req.Email != nil && *req.Email != "" {
		if err := s.validate.Var(*req.Email, "email"); err != nil {
			metrics.RecordProfileUpdate(metrics.ResultInvalid)
			return nil, invalid("email", "must be a valid e-mail address")
		}
	}

	user, err := s.repo.UpdateProfile(ctx, userID, models.ProfileUpdate{
		FullName: &req.FullName,
		Email:    req.Email,
		Phone:    req.Phone,
	})
	if err != nil {
		metrics.RecordProfileUpdate(metrics.ResultFailed)
		return nil, err
	}

	metrics.RecordProfileUpdate(metrics.ResultSuccess)
	log.Info().Int64("user_id", userID).Msg("Profile updated")

	// Worker names appear in cached snapshots.
	if s.invalidate != nil {
		s.invalidate.InvalidateCache(ctx)
	}

	return user, nil
}

func (s *AccountService) ChangePassword(ctx context.Context, userID int64, req ChangePasswordRequest) (*PasswordChangeResult, error) {
	if err := s.check(req); err != nil {
		metrics.RecordPasswordChange(metrics.ResultInvalid)
		return nil, err
	}
	if req.ConfirmPassword != nil && *req.ConfirmPassword != req.NewPassword {
		metrics.RecordPasswordChange(metrics.ResultInvalid)
		return nil, invalid("confirm_password", "does not match the new password")
	}
	if len(req.NewPassword) > maxPasswordBytes {
		metrics.RecordPasswordChange(metrics.ResultInvalid)
		return nil, invalid("new_password", "must be at most 72 bytes")
	}

	hash, err := s.repo.GetPasswordHash(ctx, userID)
	if err != nil {
		metrics.RecordPasswordChange(metrics.ResultFailed)
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(req.CurrentPassword)); err != nil {
		metrics.RecordPasswordChange(metrics.ResultInvalid)
		log.Warn().Int64("user_id", userID).Msg("Password change rejected: wrong current password")
		return nil, ErrInvalidCurrentPassword
	}

	newHash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), s.cost)
	if err != nil {
		metrics.RecordPasswordChange(metrics.ResultFailed)
		return nil, err
	}

	if err := s.repo.UpdatePasswordHash(ctx, userID, string(newHash)); err != nil {
		metrics.RecordPasswordChange(metrics.ResultFailed)
		return nil, err
	}

	metrics.RecordPasswordChange(metrics.ResultSuccess)
	log.Info().Int64("user_id", userID).Msg("Password changed")

	return &PasswordChangeResult{Success: true, Message: "Password changed successfully"}, nil
}

// check runs struct validation and reports the first failing field.
func (s *AccountService) check(req any) error {
	err := s.validate.Struct(req)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err
	}

	fe := verrs[0]
	return invalid(fe.Field(), describe(fe))
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return "must be at least " + fe.Param() + " characters"
	case "max":
		return "must be at most " + fe.Param() + " characters"
	case "nefield":
		return "must differ from the current password"
	default:
		return "is invalid"
	}
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	return &v
}
