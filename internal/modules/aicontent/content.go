package aicontent

import (
	"context"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/deepscholar/core/internal/llm"
	"github.com/deepscholar/core/internal/models"
)

// GenerateRequest describes a short-form generation: a summary or a
// set of associated questions for a channel, column or article.
type GenerateRequest struct {
	RelatedType     models.RelatedType
	RelatedID       int64
	TermTreeNodeIDs []int64
	Stream          bool
	DepressCache    bool
	QuestionCount   int
	Ver             string
}

// BuildRequest resolves the subject into prompt metadata and returns
// an unsaved request record carrying the query, params and
// fingerprint. The record is only persisted once a cache miss forces
// generation.
func (s *Service) BuildRequest(contentType models.ContentType, greq GenerateRequest) (*models.ContentRequestModel, error) {
	if !greq.RelatedType.Valid() {
		return nil, errUnknownSubject
	}
	meta, err := s.library.BuildMetadata(greq.RelatedType, greq.RelatedID, greq.TermTreeNodeIDs)
	if err != nil {
		return nil, fmt.Errorf("build request metadata: %w", err)
	}

	var query string
	switch contentType {
	case models.ContentAssociatedQuestion:
		query = questionQuery(greq.RelatedType, meta)
	default:
		query = summaryQuery(greq.RelatedType, meta)
	}

	params := models.JSONMap{
		"ver":                greq.Ver,
		"term_tree_node_ids": greq.TermTreeNodeIDs,
	}
	switch greq.RelatedType {
	case models.RelatedChannel:
		params["channel_id"] = greq.RelatedID
	case models.RelatedColumn:
		params["column_id"] = greq.RelatedID
		if meta.BaseID != 0 {
			params["channel_id"] = meta.BaseID
		}
	case models.RelatedArticle:
		params["article_id"] = greq.RelatedID
	}
	if contentType == models.ContentAssociatedQuestion {
		count := greq.QuestionCount
		if count <= 0 {
			count = defaultQuestionCount
		}
		params["question_count"] = count
	}

	req := &models.ContentRequestModel{
		ContentType: contentType,
		Stream:      greq.Stream,
		Query:       query,
		Params:      params,
		Status:      models.RequestStart,
	}
	req.Fingerprint = Fingerprint(contentType, query, params)
	return req, nil
}

// StreamSummary serves a short-summary request over SSE. A fresh cache
// hit is replayed in chunks; otherwise the summary is generated live
// with every delta written through to the persistence log before it is
// forwarded.
func (s *Service) StreamSummary(c *gin.Context, greq GenerateRequest) error {
	ctx := c.Request.Context()
	greq.Stream = true

	req, err := s.BuildRequest(models.ContentShortSummary, greq)
	if err != nil {
		return err
	}

	if !greq.DepressCache {
		cached, err := s.Lookup(ctx, req.Fingerprint)
		if err != nil {
			s.logger.Warn("cache lookup failed, regenerating", zap.Error(err))
		} else if cached != nil {
			NewSSEWriter(c, cached.ID, streamModelName).Replay(cached.Content)
			return nil
		}
	}

	if err := s.CreateRequest(ctx, req); err != nil {
		return err
	}
	resp, err := s.CreateResponse(ctx, req.ID)
	if err != nil {
		return err
	}

	acquired := s.acquireGeneration(ctx, req.Fingerprint)
	if acquired {
		defer s.releaseGeneration(req.Fingerprint)
	}

	writer := NewSSEWriter(c, resp.ID, streamModelName)
	writer.SendRole()

	if err := s.SetRequestStatus(ctx, req.ID, models.RequestHandling); err != nil {
		s.logger.Warn("failed to mark request handling", zap.String("request_id", req.ID), zap.Error(err))
	}

	articles, err := s.loadArticles(greq, req.Params)
	if err != nil {
		s.logger.Error("failed to load summary articles", zap.Error(err))
		_ = s.Finalize(resp, models.ResponseError, models.Usage{})
		writer.SendDone()
		return nil
	}

	prompt := shortSummaryPrompt(req.Query, articles, defaultMinWords, defaultMaxWords)
	chatResp, err := s.model.StreamChat(ctx, llm.ChatRequest{
		Task:     llm.TaskChat,
		Messages: []llm.Message{{Role: llm.RoleUser, Content: prompt}},
	}, func(delta string) {
		if err := s.AppendChunk(ctx, resp, delta); err != nil {
			s.logger.Warn("chunk write-through failed", zap.String("response_id", resp.ID), zap.Error(err))
		}
		writer.SendContent(delta)
	})
	if err != nil {
		s.logger.Error("summary generation failed", zap.String("request_id", req.ID), zap.Error(err))
		_ = s.Finalize(resp, models.ResponseError, resp.Usage)
		writer.SendDone()
		return nil
	}

	if err := s.SetRequestStatus(context.Background(), req.ID, models.RequestFinished); err != nil {
		s.logger.Warn("failed to mark request finished", zap.String("request_id", req.ID), zap.Error(err))
	}
	if err := s.Finalize(resp, models.ResponseFinished, chatResp.Usage); err != nil {
		s.logger.Error("failed to finalize response", zap.String("response_id", resp.ID), zap.Error(err))
	}
	writer.SendDone()
	return nil
}

// GenerateSummary is the blocking variant: cache first, then one
// non-streamed generation persisted through the same log.
func (s *Service) GenerateSummary(ctx context.Context, greq GenerateRequest) (*models.ContentResponseModel, error) {
	req, err := s.BuildRequest(models.ContentShortSummary, greq)
	if err != nil {
		return nil, err
	}
	return s.generateBlocking(ctx, req, greq, func(articles []models.ArticleModel) string {
		return shortSummaryPrompt(req.Query, articles, defaultMinWords, defaultMaxWords)
	})
}

// GenerateQuestions produces suggested follow-up questions for a
// subject, one per line, never streamed.
func (s *Service) GenerateQuestions(ctx context.Context, greq GenerateRequest) ([]string, *models.ContentResponseModel, error) {
	greq.Stream = false
	req, err := s.BuildRequest(models.ContentAssociatedQuestion, greq)
	if err != nil {
		return nil, nil, err
	}
	count := defaultQuestionCount
	if greq.QuestionCount > 0 {
		count = greq.QuestionCount
	}
	resp, err := s.generateBlocking(ctx, req, greq, func(articles []models.ArticleModel) string {
		return associatedQuestionPrompt(req.Query, articles, count)
	})
	if err != nil {
		return nil, nil, err
	}
	return splitQuestions(resp.Content), resp, nil
}

func (s *Service) generateBlocking(ctx context.Context, req *models.ContentRequestModel, greq GenerateRequest, buildPrompt func([]models.ArticleModel) string) (*models.ContentResponseModel, error) {
	if !greq.DepressCache {
		cached, err := s.Lookup(ctx, req.Fingerprint)
		if err != nil {
			s.logger.Warn("cache lookup failed, regenerating", zap.Error(err))
		} else if cached != nil {
			return cached, nil
		}
	}

	if err := s.CreateRequest(ctx, req); err != nil {
		return nil, err
	}
	resp, err := s.CreateResponse(ctx, req.ID)
	if err != nil {
		return nil, err
	}

	acquired := s.acquireGeneration(ctx, req.Fingerprint)
	if acquired {
		defer s.releaseGeneration(req.Fingerprint)
	}

	if err := s.SetRequestStatus(ctx, req.ID, models.RequestHandling); err != nil {
		s.logger.Warn("failed to mark request handling", zap.String("request_id", req.ID), zap.Error(err))
	}

	articles, err := s.loadArticles(greq, req.Params)
	if err != nil {
		_ = s.Finalize(resp, models.ResponseError, models.Usage{})
		return nil, err
	}

	chatResp, err := s.model.Chat(ctx, llm.ChatRequest{
		Task:     llm.TaskChat,
		Messages: []llm.Message{{Role: llm.RoleUser, Content: buildPrompt(articles)}},
	})
	if err != nil {
		_ = s.Finalize(resp, models.ResponseError, models.Usage{})
		return nil, fmt.Errorf("content generation: %w", err)
	}

	resp.Content = chatResp.Text
	if err := s.SetRequestStatus(context.Background(), req.ID, models.RequestFinished); err != nil {
		s.logger.Warn("failed to mark request finished", zap.String("request_id", req.ID), zap.Error(err))
	}
	if err := s.Finalize(resp, models.ResponseFinished, chatResp.Usage); err != nil {
		return nil, err
	}
	return resp, nil
}

// loadArticles gathers the source material for a subject: the newest
// articles of a channel or column, or the single article itself.
func (s *Service) loadArticles(greq GenerateRequest, params models.JSONMap) ([]models.ArticleModel, error) {
	switch greq.RelatedType {
	case models.RelatedChannel, models.RelatedColumn:
		channelID := paramInt64(params, "channel_id")
		return s.library.ArticlesByChannel(channelID, defaultReferenceCnt)
	case models.RelatedArticle:
		return s.library.ArticlesByIDs([]int64{greq.RelatedID})
	}
	return nil, errUnknownSubject
}

func splitQuestions(text string) []string {
	var questions []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			questions = append(questions, line)
		}
	}
	return questions
}

func paramInt64(params models.JSONMap, key string) int64 {
	switch v := params[key].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	}
	return 0
}
