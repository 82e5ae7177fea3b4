package service

import (
	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

// Service provides business logic that spans multiple models.
type Service struct {
	activity *ActivityService
}

// New creates a Service with all sub-services initialized.
func New(db *bun.DB, logger *zap.Logger) *Service {
	return &Service{
		activity: NewActivity(db, logger),
	}
}

// Activity returns the activity reset service.
func (s *Service) Activity() *ActivityService {
	return s.activity
}
