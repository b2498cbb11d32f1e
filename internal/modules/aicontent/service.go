package aicontent

import (
	"errors"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/deepscholar/core/internal/config"
	"github.com/deepscholar/core/internal/llm"
	"github.com/deepscholar/core/internal/modules/library"
	"github.com/deepscholar/core/internal/pkg/redis"
)

var (
	errResponseNotFound = errors.New("content response not found")
	errUnknownSubject   = errors.New("unknown related type")
)

// Service owns the fingerprint cache, the response persistence log and
// the short-form content orchestration (short summary, associated
// questions).
type Service struct {
	db      *gorm.DB
	rdb     *redis.Client
	model   llm.Model
	library *library.Service
	cfg     config.CacheConfig
	logger  *zap.Logger
}

func NewService(db *gorm.DB, model llm.Model, lib *library.Service, cfg config.CacheConfig, opts ...ServiceOption) *Service {
	s := &Service{
		db:      db,
		model:   model,
		library: lib,
		cfg:     cfg,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type ServiceOption func(*Service)

func WithLogger(l *zap.Logger) ServiceOption {
	return func(s *Service) { s.logger = l.Named("ContentService") }
}

// WithRedis enables the single-flight generation lock. Without it every
// concurrent request regenerates, which is correct but wasteful.
func WithRedis(rdb *redis.Client) ServiceOption {
	return func(s *Service) { s.rdb = rdb }
}
