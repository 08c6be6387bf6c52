package service

import (
	"context"
	"sort"
	"strings"

	"github.com/cscportal/portal-backend/internal/settings/domain"
	"github.com/cscportal/portal-backend/pkg/errors"
	"github.com/cscportal/portal-backend/pkg/logger"
)

// SettingsStore is the persistence settings need
type SettingsStore interface {
	All(ctx context.Context) (map[string]string, error)
	Count(ctx context.Context) (int, error)
	Upsert(ctx context.Context, values map[string]string) error
}

// SettingsService reads and edits the public site settings
type SettingsService struct {
	repo   SettingsStore
	logger *logger.Logger
}

// NewSettingsService creates a new settings service
func NewSettingsService(repo SettingsStore, log *logger.Logger) *SettingsService {
	return &SettingsService{repo: repo, logger: log.WithComponent("settings")}
}

// All returns the defaults overlaid with stored values. Stored keys that
// are no longer accepted are left out.
func (s *SettingsService) All(ctx context.Context) (domain.Settings, error) {
	stored, err := s.repo.All(ctx)
	if err != nil {
		return nil, err
	}

	out := make(domain.Settings, len(domain.Defaults))
	for key, value := range domain.Defaults {
		out[key] = value
	}
	for key, value := range stored {
		if domain.Allowed(key) {
			out[key] = value
		}
	}
	return out, nil
}

// Update upserts the given values. Any unknown key rejects the whole update.
func (s *SettingsService) Update(ctx context.Context, values map[string]string) (domain.Settings, error) {
	unknown := []string{}
	clean := make(map[string]string, len(values))
	for key, value := range values {
		if !domain.Allowed(key) {
			unknown = append(unknown, key)
			continue
		}
		clean[key] = strings.TrimSpace(value)
	}

	if len(unknown) > 0 {
		sort.Strings(unknown)
		details := make(map[string]string, len(unknown))
		for _, key := range unknown {
			details[key] = "unknown setting"
		}
		return nil, errors.Validation(details)
	}

	if len(clean) > 0 {
		if err := s.repo.Upsert(ctx, clean); err != nil {
			return nil, err
		}
	}

	return s.All(ctx)
}

// SeedDefaults stores the defaults when no setting exists yet
func (s *SettingsService) SeedDefaults(ctx context.Context) (bool, error) {
	n, err := s.repo.Count(ctx)
	if err != nil {
		return false, err
	}
	if n > 0 {
		return false, nil
	}

	if err := s.repo.Upsert(ctx, domain.Defaults); err != nil {
		return false, err
	}
	s.logger.Info().Int("settings", len(domain.Defaults)).Msg("default site settings seeded")
	return true, nil
}
