package aicontent

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/deepscholar/core/internal/llm"
	"github.com/deepscholar/core/internal/models"
)

type fakeModel struct {
	text        string
	deltas      []string
	chatCalls   int
	streamCalls int
	lastPrompt  string
}

func (m *fakeModel) Chat(_ context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
	m.chatCalls++
	m.lastPrompt = req.Messages[len(req.Messages)-1].Content
	return &llm.ChatResponse{Text: m.text, Usage: models.Usage{TotalTokens: 7}}, nil
}

func (m *fakeModel) StreamChat(_ context.Context, req llm.ChatRequest, onDelta func(string)) (*llm.ChatResponse, error) {
	m.streamCalls++
	m.lastPrompt = req.Messages[len(req.Messages)-1].Content
	deltas := m.deltas
	if len(deltas) == 0 {
		deltas = []string{m.text}
	}
	var full strings.Builder
	for _, d := range deltas {
		full.WriteString(d)
		onDelta(d)
	}
	return &llm.ChatResponse{Text: full.String(), Usage: models.Usage{TotalTokens: 7}}, nil
}

func seedChannelWithArticle(t *testing.T, db *gorm.DB, channelID, articleID int64) {
	t.Helper()
	require.NoError(t, db.Create(&models.BaseChannelModel{
		ID: channelID, Name: "微生物组", Intro: "肠道微生物研究",
	}).Error)
	require.NoError(t, db.Create(&models.ArticleModel{
		ID:          articleID,
		Title:       "Gut microbiome dynamics",
		Abstract:    "We study the gut microbiome.",
		Authors:     "Li Wei,Zhang San",
		JournalName: "Nature Microbiology",
		PubDate:     time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
	}).Error)
	require.NoError(t, db.Create(&models.ArticleChannelModel{
		ArticleID: articleID, BaseID: channelID,
	}).Error)
}

func streamSummaryBody(t *testing.T, s *Service, greq GenerateRequest) string {
	t.Helper()
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest("POST", "/content/summary", nil)
	require.NoError(t, s.StreamSummary(c, greq))
	return rec.Body.String()
}

func TestStreamSummaryGeneratesAndPersists(t *testing.T) {
	db := newTestDB(t)
	model := &fakeModel{deltas: []string{"微生物组", "研究综述 [301]"}}
	s := newTestService(t, db, model)
	seedChannelWithArticle(t, db, 9, 301)

	body := streamSummaryBody(t, s, GenerateRequest{RelatedType: models.RelatedChannel, RelatedID: 9})

	assert.Contains(t, body, `"role":"assistant"`)
	assert.Contains(t, body, `"content":"微生物组"`)
	assert.Contains(t, body, "chat.completion.chunk")
	assert.True(t, strings.HasSuffix(body, "data: [DONE]\n\n"))

	var req models.ContentRequestModel
	require.NoError(t, db.First(&req).Error)
	assert.Equal(t, models.RequestFinished, req.Status)
	assert.Contains(t, req.Query, "频道：微生物组")

	var resp models.ContentResponseModel
	require.NoError(t, db.First(&resp).Error)
	assert.Equal(t, models.ResponseFinished, resp.Status)
	assert.Equal(t, "微生物组研究综述 [301]", resp.Content)
	assert.Equal(t, 0, resp.IsGenerating)
	assert.Empty(t, resp.Tokens.Generating)

	assert.Contains(t, model.lastPrompt, `"article_id":301`)
	assert.Contains(t, model.lastPrompt, "500-800字")
}

func TestStreamSummaryReplaysCacheHit(t *testing.T) {
	db := newTestDB(t)
	model := &fakeModel{text: "fresh summary"}
	s := newTestService(t, db, model)
	seedChannelWithArticle(t, db, 9, 301)

	greq := GenerateRequest{RelatedType: models.RelatedChannel, RelatedID: 9}
	streamSummaryBody(t, s, greq)
	require.Equal(t, 1, model.streamCalls)

	body := streamSummaryBody(t, s, greq)
	assert.Equal(t, 1, model.streamCalls, "cache hit must not regenerate")
	assert.Contains(t, body, `"role":"assistant"`)
	assert.Contains(t, body, `"content":"`)
	assert.True(t, strings.HasSuffix(body, "data: [DONE]\n\n"))

	var resp models.ContentResponseModel
	require.NoError(t, db.First(&resp).Error)
	assert.Equal(t, 1, resp.CacheHitCnt)
}

func TestStreamSummaryDepressCacheRegenerates(t *testing.T) {
	db := newTestDB(t)
	model := &fakeModel{text: "summary"}
	s := newTestService(t, db, model)
	seedChannelWithArticle(t, db, 9, 301)

	greq := GenerateRequest{RelatedType: models.RelatedChannel, RelatedID: 9}
	streamSummaryBody(t, s, greq)
	greq.DepressCache = true
	streamSummaryBody(t, s, greq)
	assert.Equal(t, 2, model.streamCalls)
}

func TestGenerateSummaryForArticle(t *testing.T) {
	db := newTestDB(t)
	model := &fakeModel{text: "article summary [301]"}
	s := newTestService(t, db, model)
	seedChannelWithArticle(t, db, 9, 301)

	resp, err := s.GenerateSummary(context.Background(), GenerateRequest{
		RelatedType: models.RelatedArticle, RelatedID: 301,
	})
	require.NoError(t, err)
	assert.Equal(t, "article summary [301]", resp.Content)
	assert.Equal(t, models.ResponseFinished, resp.Status)
	assert.Contains(t, model.lastPrompt, "Gut microbiome dynamics")
}

func TestGenerateQuestions(t *testing.T) {
	db := newTestDB(t)
	model := &fakeModel{text: "问题一？\n\n问题二？\n问题三？\n"}
	s := newTestService(t, db, model)
	seedChannelWithArticle(t, db, 9, 301)

	questions, resp, err := s.GenerateQuestions(context.Background(), GenerateRequest{
		RelatedType: models.RelatedChannel, RelatedID: 9, QuestionCount: 3,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"问题一？", "问题二？", "问题三？"}, questions)
	assert.Equal(t, models.ResponseFinished, resp.Status)
	assert.Contains(t, model.lastPrompt, "提出3个")

	var req models.ContentRequestModel
	require.NoError(t, db.First(&req).Error)
	assert.Equal(t, models.ContentAssociatedQuestion, req.ContentType)
	assert.EqualValues(t, 3, paramInt64(req.Params, "question_count"))
}

func TestBuildRequestRejectsUnknownSubject(t *testing.T) {
	db := newTestDB(t)
	s := newTestService(t, db, nil)

	_, err := s.BuildRequest(models.ContentShortSummary, GenerateRequest{RelatedType: 99, RelatedID: 1})
	assert.ErrorIs(t, err, errUnknownSubject)
}

func TestSplitForReplay(t *testing.T) {
	pieces := splitForReplay("abcdefghij", 5)
	assert.Equal(t, []string{"ab", "cd", "ef", "gh", "ij"}, pieces)
	assert.Equal(t, "abcdefghij", strings.Join(pieces, ""))

	assert.Nil(t, splitForReplay("", 5))
	assert.Equal(t, []string{"a", "b"}, splitForReplay("ab", 5))
}
