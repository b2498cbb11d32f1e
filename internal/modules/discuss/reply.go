package discuss

import (
	"context"
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/deepscholar/core/internal/llm"
	"github.com/deepscholar/core/internal/models"
	"github.com/deepscholar/core/internal/modules/aicontent"
	"github.com/deepscholar/core/internal/vector"
)

// intentResult is the classification the model returns before any
// answer is produced.
type intentResult struct {
	Intention   string `json:"intention"`
	NeedSearch  bool   `json:"need_search"`
	SearchQuery string `json:"search_query"`
}

// AIReply streams an assistant reply to the given node. The reply node
// is persisted empty before the first token so pollers can observe the
// generation; any failure is appended to the partial content and the
// node lands in ERROR, never silently discarded.
func (s *Service) AIReply(c *gin.Context, threadUUID, replyUUID string) error {
	ctx := c.Request.Context()

	thread, err := s.threadByUUID(ctx, threadUUID)
	if err != nil {
		return err
	}
	reply, err := s.nodeByUUID(ctx, replyUUID)
	if err != nil {
		return err
	}

	node := &models.DiscussModel{
		UUID:        uuid.New().String(),
		RelatedType: thread.RelatedType,
		ThreadID:    thread.ID,
		ThreadUUID:  thread.UUID,
		ReplyID:     &reply.ID,
		ReplyUUID:   &reply.UUID,
		Depth:       reply.Depth + 1,
		Role:        models.RoleAssistant,
		Tokens:      models.TokenBuffer{Generating: []string{}},
		Status:      models.ResponseGenerating,
	}
	if err := s.db.WithContext(ctx).Create(node).Error; err != nil {
		return fmt.Errorf("save reply placeholder: %w", err)
	}

	writer := aicontent.NewSSEWriter(c, node.ID, discussModelName)
	writer.SendRole()
	s.generateReply(ctx, writer, thread, reply, node)
	return nil
}

func (s *Service) generateReply(ctx context.Context, writer *aicontent.SSEWriter, thread *models.DiscussThreadModel, reply, node *models.DiscussModel) {
	var usage models.Usage

	background, err := s.threadBackground(ctx, thread)
	if err != nil {
		s.failReply(writer, node, err)
		return
	}

	turns, err := s.history(ctx, thread.UUID, reply.Depth)
	if err != nil {
		s.failReply(writer, node, err)
		return
	}
	historyText := formatHistory(turns)

	intent, intentUsage := s.classifyIntent(ctx, background, historyText, reply.Content)
	usage.Add(intentUsage)

	if intent.Intention == intentNoReply {
		if err := s.finalizeNode(node, models.ResponseDeprecated, usage); err != nil {
			s.logger.Warn("failed to settle silent reply node", zap.String("node_id", node.ID), zap.Error(err))
		}
		writer.SendDone()
		return
	}

	var hits []vector.Hit
	if intent.NeedSearch && intent.SearchQuery != "" {
		found, searchUsage, err := s.retrieval.Search(ctx, intent.SearchQuery, "", s.cfg.SearchTopK, s.searchFilter(thread.Params))
		usage.Add(searchUsage)
		if err != nil {
			s.logger.Warn("literature search failed, answering without it",
				zap.String("query", intent.SearchQuery), zap.Error(err))
		} else {
			hits = found
		}
	}

	prompt := answerPrompt(background, formatHits(hits), historyText, reply.Content, intent.Intention, s.cfg.TargetLanguage)
	chatResp, err := s.model.StreamChat(ctx, llm.ChatRequest{
		Task:     llm.TaskChat,
		Messages: []llm.Message{{Role: llm.RoleUser, Content: prompt}},
	}, func(delta string) {
		if err := s.appendNodeChunk(ctx, node, delta); err != nil {
			s.logger.Warn("reply write-through failed", zap.String("node_id", node.ID), zap.Error(err))
		}
		writer.SendContent(delta)
	})
	if err != nil {
		s.failReply(writer, node, err)
		return
	}
	usage.Add(chatResp.Usage)

	if err := s.finalizeNode(node, models.ResponseFinished, usage); err != nil {
		s.logger.Error("failed to finalize reply node", zap.String("node_id", node.ID), zap.Error(err))
	}
	if err := s.raiseDepth(context.Background(), thread.UUID, node.Depth, node.UUID); err != nil {
		s.logger.Error("failed to accept reply branch", zap.String("node_id", node.ID), zap.Error(err))
	}
	writer.SendDone()
}

// classifyIntent never fails the request: an unparseable or errored
// classification degrades to a plain question with no search.
func (s *Service) classifyIntent(ctx context.Context, background, history, query string) (intentResult, models.Usage) {
	fallback := intentResult{Intention: intentQuestion}

	resp, err := s.model.Chat(ctx, llm.ChatRequest{
		Task:     llm.TaskPlan,
		Messages: []llm.Message{{Role: llm.RoleUser, Content: actionPrompt(background, history, query)}},
	})
	if err != nil {
		s.logger.Warn("intent classification failed, treating as question", zap.Error(err))
		return fallback, models.Usage{}
	}

	var intent intentResult
	if err := llm.UnmarshalLoose(resp.Text, &intent); err != nil || intent.Intention == "" {
		s.logger.Warn("unparseable intent classification, treating as question",
			zap.String("raw", resp.Text), zap.Error(err))
		return fallback, resp.Usage
	}
	return intent, resp.Usage
}

// searchFilter turns thread-level retrieval constraints into the
// index's native filter expression.
func (s *Service) searchFilter(params models.JSONMap) string {
	var b vector.FilterBuilder
	if pubdate := paramInt64(params, "pubdate"); pubdate > 0 {
		b.MinPubdate(pubdate)
	}
	if factor, ok := paramFloat64(params, "impact_factor"); ok && factor > 0 {
		b.MinImpactFactor(factor)
	}
	if channelID := paramInt64(params, "channel_id"); channelID > 0 {
		b.Channel(channelID)
	}
	return b.String()
}

// failReply appends the error to whatever content accrued, lands the
// node in ERROR and still terminates the stream properly.
func (s *Service) failReply(writer *aicontent.SSEWriter, node *models.DiscussModel, cause error) {
	s.logger.Error("reply generation failed", zap.String("node_id", node.ID), zap.Error(cause))

	note := fmt.Sprintf("\n\n生成回复时发生错误: %v", cause)
	node.Content += note
	if err := s.finalizeNode(node, models.ResponseError, node.Usage); err != nil {
		s.logger.Error("failed to persist reply error", zap.String("node_id", node.ID), zap.Error(err))
	}
	writer.SendStop(note)
	writer.SendDone()
}
