package retrieval

import (
	"go.uber.org/zap"

	"github.com/deepscholar/core/internal/config"
	"github.com/deepscholar/core/internal/llm"
	"github.com/deepscholar/core/internal/vector"
)

// Service routes queries to vector collections and runs the
// retrieve-rerank-dedup pipeline over them.
type Service struct {
	model    llm.Model
	embedder vector.Embedder
	index    vector.Index
	cfg      config.RetrievalConfig
	vcfg     config.VectorConfig
	logger   *zap.Logger
}

func NewService(model llm.Model, embedder vector.Embedder, index vector.Index, cfg config.RetrievalConfig, vcfg config.VectorConfig, opts ...ServiceOption) *Service {
	s := &Service{
		model:    model,
		embedder: embedder,
		index:    index,
		cfg:      cfg,
		vcfg:     vcfg,
		logger:   zap.NewNop(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// ServiceOption configures a retrieval Service.
type ServiceOption func(*Service)

// WithLogger sets the logger for the retrieval service.
func WithLogger(l *zap.Logger) ServiceOption {
	return func(s *Service) {
		if l != nil {
			s.logger = l.Named("RetrievalService")
		}
	}
}
