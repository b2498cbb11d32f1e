package discuss

import (
	"errors"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deepscholar/core/internal/models"
	"github.com/deepscholar/core/internal/vector"
)

func aiReplyBody(t *testing.T, s *Service, threadUUID, replyUUID string) string {
	t.Helper()
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest("POST", "/discuss/ai_reply", nil)
	require.NoError(t, s.AIReply(c, threadUUID, replyUUID))
	return rec.Body.String()
}

func TestAIReplyStreamsAndPersists(t *testing.T) {
	db := newTestDB(t)
	model := &fakeModel{
		intentJSON: `{"intention":"提问","need_search":true,"search_query":"肠道菌群与免疫"}`,
		deltas:     []string{"根据文献", " [301]，菌群影响免疫。"},
	}
	index := &stubIndex{hits: []vector.Hit{
		{Text: "Gut flora modulates immunity.", ReferenceID: 301, Score: 0.9},
	}}
	s := newTestService(t, db, model, index)

	thread := seedThread(t, db, models.RelatedChannel,
		models.JSONMap{"channel_id": int64(9), "pubdate": int64(1600000000)}, "肠道菌群研究背景")
	seedNode(t, db, thread, 1, models.RoleUser, "早先的问题")
	seedNode(t, db, thread, 2, models.RoleAssistant, "早先的回答")
	question := seedNode(t, db, thread, 3, models.RoleUser, "菌群如何影响免疫？")

	body := aiReplyBody(t, s, thread.UUID, question.UUID)

	assert.Contains(t, body, `"role":"assistant"`)
	assert.Contains(t, body, "chat.completion.chunk")
	assert.Contains(t, body, "deepscholar-discuss-agent")
	assert.True(t, strings.HasSuffix(body, "data: [DONE]\n\n"))

	assert.Contains(t, model.intentPrompt, "肠道菌群研究背景")
	assert.Contains(t, model.intentPrompt, "菌群如何影响免疫？")

	assert.Contains(t, model.answerPrompt, "肠道菌群研究背景")
	assert.Contains(t, model.answerPrompt, "[301] \nGut flora modulates immunity.")
	assert.Contains(t, model.answerPrompt, "用户: 早先的问题")
	assert.Contains(t, model.answerPrompt, "AI助理: 早先的回答")
	assert.Contains(t, model.answerPrompt, "提问")

	assert.Contains(t, index.lastFilter, "pubdate >= 1600000000")
	assert.Contains(t, index.lastFilter, "ARRAY_CONTAINS(base_ids, 9)")

	var node models.DiscussModel
	require.NoError(t, db.Where("role = ? AND depth = ?", models.RoleAssistant, 4).
		Order("created_at DESC").First(&node).Error)
	assert.Equal(t, models.ResponseFinished, node.Status)
	assert.Equal(t, "根据文献 [301]，菌群影响免疫。", node.Content)
	assert.Empty(t, node.Tokens.Generating)
	assert.Equal(t, question.UUID, *node.ReplyUUID)

	var reloaded models.DiscussThreadModel
	require.NoError(t, db.Where("uuid = ?", thread.UUID).First(&reloaded).Error)
	assert.Equal(t, 4, reloaded.Depth, "accepted reply raises the thread depth")
}

func TestAIReplyDeprecatesSiblingReply(t *testing.T) {
	db := newTestDB(t)
	model := &fakeModel{
		intentJSON: `{"intention":"提问","need_search":false}`,
		deltas:     []string{"新的回答"},
	}
	s := newTestService(t, db, model, nil)

	thread := seedThread(t, db, models.RelatedChannel, models.JSONMap{"channel_id": int64(9)}, "背景")
	question := seedNode(t, db, thread, 1, models.RoleUser, "问题")
	stale := seedNode(t, db, thread, 2, models.RoleAssistant, "旧回答")

	aiReplyBody(t, s, thread.UUID, question.UUID)

	var abandoned models.DiscussModel
	require.NoError(t, db.Where("uuid = ?", stale.UUID).First(&abandoned).Error)
	assert.Equal(t, models.ResponseDeprecated, abandoned.Status)

	var live int64
	require.NoError(t, db.Model(&models.DiscussModel{}).
		Where("thread_uuid = ? AND depth = 2 AND status <> ?", thread.UUID, models.ResponseDeprecated).
		Count(&live).Error)
	assert.EqualValues(t, 1, live)
}

func TestAIReplyNoReplyNeeded(t *testing.T) {
	db := newTestDB(t)
	model := &fakeModel{intentJSON: `{"intention":"无需回复","need_search":false}`}
	s := newTestService(t, db, model, nil)

	thread := seedThread(t, db, models.RelatedChannel, models.JSONMap{"channel_id": int64(9)}, "背景")
	question := seedNode(t, db, thread, 1, models.RoleUser, "哈哈")

	body := aiReplyBody(t, s, thread.UUID, question.UUID)

	assert.Equal(t, 0, model.streamCalls, "silent intent must not generate")
	assert.True(t, strings.HasSuffix(body, "data: [DONE]\n\n"))

	var placeholder models.DiscussModel
	require.NoError(t, db.Where("role = ? AND depth = 2", models.RoleAssistant).First(&placeholder).Error)
	assert.Equal(t, models.ResponseDeprecated, placeholder.Status)
	assert.Empty(t, placeholder.Content)

	var reloaded models.DiscussThreadModel
	require.NoError(t, db.Where("uuid = ?", thread.UUID).First(&reloaded).Error)
	assert.Equal(t, 0, reloaded.Depth, "silent replies never advance the thread")
}

func TestAIReplyGenerationError(t *testing.T) {
	db := newTestDB(t)
	model := &fakeModel{
		intentJSON: `{"intention":"提问","need_search":false}`,
		streamErr:  errors.New("upstream unavailable"),
	}
	s := newTestService(t, db, model, nil)

	thread := seedThread(t, db, models.RelatedChannel, models.JSONMap{"channel_id": int64(9)}, "背景")
	question := seedNode(t, db, thread, 1, models.RoleUser, "问题")

	body := aiReplyBody(t, s, thread.UUID, question.UUID)

	assert.Contains(t, body, "生成回复时发生错误")
	assert.Contains(t, body, `"finish_reason":"stop"`)
	assert.True(t, strings.HasSuffix(body, "data: [DONE]\n\n"))

	var node models.DiscussModel
	require.NoError(t, db.Where("role = ? AND depth = 2", models.RoleAssistant).First(&node).Error)
	assert.Equal(t, models.ResponseError, node.Status)
	assert.Contains(t, node.Content, "生成回复时发生错误: upstream unavailable")

	var reloaded models.DiscussThreadModel
	require.NoError(t, db.Where("uuid = ?", thread.UUID).First(&reloaded).Error)
	assert.Equal(t, 0, reloaded.Depth, "failed replies never become the live branch")
}

func TestAIReplyUnparseableIntentFallsBack(t *testing.T) {
	db := newTestDB(t)
	model := &fakeModel{
		intentJSON: "完全不是JSON",
		deltas:     []string{"仍然回答"},
	}
	s := newTestService(t, db, model, nil)

	thread := seedThread(t, db, models.RelatedChannel, models.JSONMap{"channel_id": int64(9)}, "背景")
	question := seedNode(t, db, thread, 1, models.RoleUser, "问题")

	aiReplyBody(t, s, thread.UUID, question.UUID)

	require.Equal(t, 1, model.streamCalls)
	assert.Contains(t, model.answerPrompt, "提问", "fallback classifies as a question")
}

func TestAIReplyRejectsMissingReferences(t *testing.T) {
	db := newTestDB(t)
	s := newTestService(t, db, nil, nil)
	gin.SetMode(gin.TestMode)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest("POST", "/discuss/ai_reply", nil)
	assert.ErrorIs(t, s.AIReply(c, "missing", "missing"), errThreadNotFound)

	thread := seedThread(t, db, models.RelatedChannel, models.JSONMap{"channel_id": int64(9)}, "背景")
	rec = httptest.NewRecorder()
	c, _ = gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest("POST", "/discuss/ai_reply", nil)
	assert.ErrorIs(t, s.AIReply(c, thread.UUID, "missing"), errNodeNotFound)
}

func TestSearchFilterFromThreadParams(t *testing.T) {
	s := &Service{}
	filter := s.searchFilter(models.JSONMap{
		"pubdate":       int64(1600000000),
		"impact_factor": 3.5,
		"channel_id":    int64(9),
	})
	assert.Contains(t, filter, "pubdate >= 1600000000")
	assert.Contains(t, filter, "impact_factor >= 3.5")
	assert.Contains(t, filter, "ARRAY_CONTAINS(base_ids, 9)")

	assert.Empty(t, s.searchFilter(models.JSONMap{}))
}
