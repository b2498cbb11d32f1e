package overview

import (
	"context"

	"go.uber.org/zap"

	"github.com/deepscholar/core/internal/config"
	"github.com/deepscholar/core/internal/llm"
	"github.com/deepscholar/core/internal/modules/library"
	"github.com/deepscholar/core/internal/retrieval"
)

// Translator converts review sections between languages. Implemented by
// the translate module; the References section is never passed through.
type Translator interface {
	Translate(ctx context.Context, text, targetLang string) (string, error)
}

// Service generates full literature reviews: plan, per-section
// retrieval and synthesis, polish, abstract/conclusion, reference
// reorganization and translation.
type Service struct {
	model      llm.Model
	retrieval  *retrieval.Service
	translator Translator
	library    *library.Service
	cfg        config.OverviewConfig
	logger     *zap.Logger
}

func NewService(model llm.Model, ret *retrieval.Service, translator Translator, lib *library.Service, cfg config.OverviewConfig, opts ...ServiceOption) *Service {
	s := &Service{
		model:      model,
		retrieval:  ret,
		translator: translator,
		library:    lib,
		cfg:        cfg,
		logger:     zap.NewNop(),
	}
	if s.cfg.SectionConcurrency <= 0 {
		s.cfg.SectionConcurrency = 1
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type ServiceOption func(*Service)

func WithLogger(l *zap.Logger) ServiceOption {
	return func(s *Service) { s.logger = l.Named("OverviewService") }
}
