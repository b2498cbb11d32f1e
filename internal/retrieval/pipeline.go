package retrieval

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/deepscholar/core/internal/llm"
	"github.com/deepscholar/core/internal/models"
	"github.com/deepscholar/core/internal/vector"
)

// Request describes one retrieval pass.
type Request struct {
	Query       string
	Collections []string // empty = route via SelectCollections
	Filter      string   // index-native boolean expression
	Route       bool
}

// Result carries the accepted chunks and token accounting of a pass.
type Result struct {
	Hits  []vector.Hit
	Usage models.Usage
}

// Retrieve embeds the query once, searches every selected collection in
// parallel, reranks hits with a binary relevance judgment, then merges,
// dedups and truncates. Zero accepted hits is a normal empty result.
func (s *Service) Retrieve(ctx context.Context, req Request) (*Result, error) {
	result := &Result{}

	collections := req.Collections
	if len(collections) == 0 {
		if req.Route {
			routed, usage, err := s.SelectCollections(ctx, req.Query)
			if err != nil {
				return nil, err
			}
			result.Usage.Add(usage)
			collections = routed
		} else {
			collections = s.defaultCollections()
		}
	}
	if len(collections) == 0 {
		return nil, fmt.Errorf("no vector collection configured")
	}

	queryVec, err := s.embedder.Embed(ctx, req.Query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	var mu sync.Mutex
	perCollection := make([][]vector.Hit, len(collections))

	// A failed collection contributes nothing instead of failing the
	// whole retrieval; zero hits overall is still a normal result.
	var g errgroup.Group
	g.SetLimit(s.cfg.Concurrency)
	for i, collection := range collections {
		g.Go(func() error {
			hits, usage, err := s.searchCollection(ctx, collection, req.Query, queryVec, req.Filter)
			mu.Lock()
			result.Usage.Add(usage)
			mu.Unlock()
			if err != nil {
				s.logger.Warn("collection search failed, skipping",
					zap.String("collection", collection), zap.Error(err))
				return nil
			}
			perCollection[i] = hits
			return nil
		})
	}
	_ = g.Wait()

	var merged []vector.Hit
	for _, hits := range perCollection {
		merged = append(merged, hits...)
	}
	merged = vector.DedupHits(merged)

	if len(merged) > s.cfg.TopKAccepted {
		sort.SliceStable(merged, func(a, b int) bool { return merged[a].Score > merged[b].Score })
		merged = merged[:s.cfg.TopKAccepted]
	}
	result.Hits = merged
	return result, nil
}

// Search is the plain variant: one embed, one index search, no relevance
// judgment. Used where latency matters more than precision.
func (s *Service) Search(ctx context.Context, query, collection string, topK int, filter string) ([]vector.Hit, models.Usage, error) {
	var usage models.Usage

	if collection == "" {
		collections := s.defaultCollections()
		if len(collections) == 0 {
			return nil, usage, fmt.Errorf("no vector collection configured")
		}
		collection = collections[0]
	}
	if topK <= 0 {
		topK = s.cfg.TopKPerSection
	}

	queryVec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, usage, fmt.Errorf("embed query: %w", err)
	}
	hits, err := s.index.Search(ctx, collection, queryVec, vector.SearchOptions{
		TopK:   topK,
		Filter: filter,
	})
	if err != nil {
		return nil, usage, fmt.Errorf("search collection %q: %w", collection, err)
	}
	return vector.DedupHits(hits), usage, nil
}

func (s *Service) searchCollection(ctx context.Context, collection, query string, vec []float32, filter string) ([]vector.Hit, models.Usage, error) {
	var usage models.Usage

	hits, err := s.index.Search(ctx, collection, vec, vector.SearchOptions{
		TopK:   s.cfg.TopKPerSection,
		Filter: filter,
	})
	if err != nil {
		return nil, usage, fmt.Errorf("search collection %q: %w", collection, err)
	}
	if len(hits) == 0 {
		s.logger.Warn("no document chunks found in collection",
			zap.String("collection", collection), zap.String("query", query))
		return nil, usage, nil
	}

	accepted := make([]vector.Hit, 0, len(hits))
	for _, hit := range hits {
		ok, judgeUsage, err := s.judgeRelevance(ctx, query, hit.Text)
		usage.Add(judgeUsage)
		if err != nil {
			s.logger.Warn("relevance judgment failed, dropping chunk",
				zap.String("collection", collection), zap.Error(err))
			continue
		}
		if !ok {
			continue
		}

		if s.cfg.CleanChunks {
			cleaned, cleanUsage, err := s.cleanChunk(ctx, hit.Text)
			usage.Add(cleanUsage)
			if err != nil {
				s.logger.Warn("chunk clean failed, keeping raw text", zap.Error(err))
			} else if cleaned != "" {
				hit.Text = cleaned
			}
		}
		accepted = append(accepted, hit)
	}

	s.logger.Debug("collection searched",
		zap.String("collection", collection),
		zap.Int("retrieved", len(hits)),
		zap.Int("accepted", len(accepted)))
	return accepted, usage, nil
}

// judgeRelevance accepts a chunk only when the model answers an unambiguous
// YES: any NO in the response rejects it.
func (s *Service) judgeRelevance(ctx context.Context, query, chunk string) (bool, models.Usage, error) {
	resp, err := s.model.Chat(ctx, llm.ChatRequest{
		Task: llm.TaskRerank,
		Messages: []llm.Message{
			{Role: llm.RoleUser, Content: fmt.Sprintf(rerankPrompt, query, chunk)},
		},
		MaxTokens: 16,
	})
	if err != nil {
		return false, models.Usage{}, fmt.Errorf("rerank judgment: %w", err)
	}
	answer := strings.ToUpper(strings.TrimSpace(resp.Text))
	return strings.Contains(answer, "YES") && !strings.Contains(answer, "NO"), resp.Usage, nil
}

func (s *Service) cleanChunk(ctx context.Context, text string) (string, models.Usage, error) {
	resp, err := s.model.Chat(ctx, llm.ChatRequest{
		Task: llm.TaskChat,
		Messages: []llm.Message{
			{Role: llm.RoleUser, Content: fmt.Sprintf(cleanTextPrompt, text)},
		},
	})
	if err != nil {
		return "", models.Usage{}, err
	}
	return strings.TrimSpace(resp.Text), resp.Usage, nil
}

// RewriteQuery asks for a sharper search query when a section's first pass
// came back thin.
func (s *Service) RewriteQuery(ctx context.Context, topic, section, query string) (string, models.Usage, error) {
	resp, err := s.model.Chat(ctx, llm.ChatRequest{
		Task: llm.TaskPlan,
		Messages: []llm.Message{
			{Role: llm.RoleUser, Content: fmt.Sprintf(rewriteQueryPrompt, topic, section, query)},
		},
		MaxTokens: 256,
	})
	if err != nil {
		return "", models.Usage{}, fmt.Errorf("rewrite query: %w", err)
	}
	return strings.TrimSpace(resp.Text), resp.Usage, nil
}
