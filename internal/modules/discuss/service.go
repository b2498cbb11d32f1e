package discuss

import (
	"errors"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/deepscholar/core/internal/config"
	"github.com/deepscholar/core/internal/llm"
	"github.com/deepscholar/core/internal/modules/aicontent"
	"github.com/deepscholar/core/internal/modules/library"
	"github.com/deepscholar/core/internal/retrieval"
)

var (
	errThreadNotFound = errors.New("discuss thread not found")
	errNodeNotFound   = errors.New("discuss node not found")
)

const discussModelName = "deepscholar-discuss-agent"

// Service is the discussion thread engine: a branching conversation per
// subject where each accepted node deprecates its abandoned siblings,
// and AI replies are classified, optionally grounded in retrieved
// literature, and streamed through the persistence log.
type Service struct {
	db        *gorm.DB
	model     llm.Model
	retrieval *retrieval.Service
	content   *aicontent.Service
	library   *library.Service
	cfg       config.DiscussConfig
	logger    *zap.Logger
}

func NewService(db *gorm.DB, model llm.Model, ret *retrieval.Service, content *aicontent.Service, lib *library.Service, cfg config.DiscussConfig, opts ...ServiceOption) *Service {
	s := &Service{
		db:        db,
		model:     model,
		retrieval: ret,
		content:   content,
		library:   lib,
		cfg:       cfg,
		logger:    zap.NewNop(),
	}
	if s.cfg.SearchTopK <= 0 {
		s.cfg.SearchTopK = 5
	}
	if s.cfg.HistoryWindow <= 0 {
		s.cfg.HistoryWindow = 10
	}
	if s.cfg.TargetLanguage == "" {
		s.cfg.TargetLanguage = "zh"
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type ServiceOption func(*Service)

func WithLogger(l *zap.Logger) ServiceOption {
	return func(s *Service) { s.logger = l.Named("DiscussService") }
}
