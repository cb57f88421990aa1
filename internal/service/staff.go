package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/text/currency"

	"buffetpos/internal/domain"
	"buffetpos/internal/store"
)

func (s *Service) ListSettings(ctx context.Context) ([]domain.Setting, error) {
	return s.repo.ListSettings(ctx)
}

func (s *Service) GetSetting(ctx context.Context, key string) (*domain.Setting, error) {
	return s.repo.GetSetting(ctx, strings.TrimSpace(key))
}

func (s *Service) UpsertSetting(ctx context.Context, key string, req domain.SettingUpsertRequest) (*domain.Setting, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, validationError("setting key is required")
	}
	if err := s.validate(req); err != nil {
		return nil, err
	}
	value := strings.TrimSpace(req.Value)

	switch key {
	case domain.SettingCurrency:
		unit, err := currency.ParseISO(strings.ToUpper(value))
		if err != nil {
			return nil, validationError("currency must be an ISO 4217 code")
		}
		value = unit.String()
	case domain.SettingTaxRate:
		rate, err := decimal.NewFromString(value)
		if err != nil || rate.IsNegative() {
			return nil, validationError("tax_rate must be a non-negative number")
		}
	}

	setting, err := s.repo.UpsertSetting(ctx, key, value)
	if err != nil {
		return nil, err
	}
	s.log.Info().Str("key", key).Msg("setting updated")
	return setting, nil
}

// settingsMap loads every setting as key/value for receipt rendering.
func (s *Service) settingsMap(ctx context.Context) (map[string]string, error) {
	settings, err := s.repo.ListSettings(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(settings))
	for _, setting := range settings {
		out[setting.Key] = setting.Value
	}
	return out, nil
}

func (s *Service) ListProfiles(ctx context.Context) ([]domain.Profile, error) {
	return s.repo.ListProfiles(ctx)
}

func (s *Service) GetProfile(ctx context.Context, id string) (*domain.Profile, error) {
	return s.repo.GetProfile(ctx, strings.TrimSpace(id))
}

func (s *Service) UpdateProfile(ctx context.Context, id string, req domain.ProfileUpdateRequest) (*domain.Profile, error) {
	existing, err := s.repo.GetProfile(ctx, strings.TrimSpace(id))
	if err != nil {
		return nil, err
	}
	next := *existing
	if req.FullName != nil {
		next.FullName = strings.TrimSpace(*req.FullName)
	}
	if req.Phone != nil {
		next.Phone = strings.TrimSpace(*req.Phone)
	}
	return s.repo.UpdateProfile(ctx, next)
}

// CreateUser registers a staff account with a bcrypt password hash.
func (s *Service) CreateUser(ctx context.Context, req domain.ProfileCreateRequest) (*domain.Profile, error) {
	req.Username = strings.ToLower(strings.TrimSpace(req.Username))
	req.FullName = strings.TrimSpace(req.FullName)
	if err := s.validate(req); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	profile, err := s.repo.CreateProfile(ctx, domain.Profile{
		Username:     req.Username,
		FullName:     req.FullName,
		Phone:        strings.TrimSpace(req.Phone),
		Role:         req.Role,
		PasswordHash: string(hash),
	})
	if err != nil {
		return nil, err
	}
	s.log.Info().Str("username", profile.Username).Str("role", profile.Role).Msg("user created")
	return profile, nil
}

// UpdateRole changes a staff member's role. Admins cannot demote themselves.
func (s *Service) UpdateRole(ctx context.Context, id string, req domain.RoleUpdateRequest) (*domain.Profile, error) {
	if err := s.validate(req); err != nil {
		return nil, err
	}
	id = strings.TrimSpace(id)
	if actor, ok := ActorFromContext(ctx); ok && actor.ID == id && req.Role != domain.RoleAdmin {
		return nil, fmt.Errorf("%w: admins cannot demote themselves", ErrForbidden)
	}
	profile, err := s.repo.UpdateProfileRole(ctx, id, req.Role)
	if err != nil {
		return nil, err
	}
	s.log.Info().Str("profile_id", profile.ID).Str("role", profile.Role).Msg("role updated")
	return profile, nil
}

// EnsureAdmin creates the named admin account when it does not exist yet.
func (s *Service) EnsureAdmin(ctx context.Context, username, password string) (bool, error) {
	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" {
		return false, nil
	}
	if _, err := s.repo.GetProfileByUsername(ctx, username); err == nil {
		return false, nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return false, err
	}
	_, err := s.CreateUser(ctx, domain.ProfileCreateRequest{
		Username: username,
		Password: password,
		FullName: "Administrator",
		Role:     domain.RoleAdmin,
	})
	if err != nil {
		return false, err
	}
	return true, nil
}
