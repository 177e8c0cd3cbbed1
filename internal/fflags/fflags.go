// Package fflags exposes boolean feature flags stored in the database.
// Lookup failures (missing flag, store down) read as disabled.
package fflags

import (
	"errors"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/gryphrace/paddock/internal/models"
)

// Flags gating role reconciliation actions.
const (
	RoleGrant  = "roles.grant"
	RoleRevoke = "roles.revoke"
)

type Service struct {
	db  *gorm.DB
	log *zap.Logger
}

func New(db *gorm.DB, log *zap.Logger) *Service {
	return &Service{db: db, log: log}
}

// Enabled evaluates the named flag. Any lookup failure is treated as
// disabled so a broken store can never open a gate.
func (s *Service) Enabled(name string) bool {
	if s.db == nil {
		return false
	}
	var flag models.FeatureFlag
	if err := s.db.Where("name = ?", name).First(&flag).Error; err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			s.log.Warn("feature flag lookup failed", zap.String("flag", name), zap.Error(err))
		}
		return false
	}
	return flag.Enabled
}

// Ensure creates the flag with the given default if it does not exist yet.
// An existing value is never overwritten.
func (s *Service) Ensure(name string, def bool) error {
	return s.db.Where("name = ?", name).
		FirstOrCreate(&models.FeatureFlag{Name: name, Enabled: def}).Error
}

// Set overwrites the flag value, creating it when absent.
func (s *Service) Set(name string, enabled bool) error {
	res := s.db.Model(&models.FeatureFlag{}).Where("name = ?", name).Update("enabled", enabled)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return s.db.Create(&models.FeatureFlag{Name: name, Enabled: enabled}).Error
	}
	return nil
}
