package discuss

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deepscholar/core/internal/models"
	"github.com/deepscholar/core/internal/modules/aicontent"
)

func TestThreadBackgroundPrefersExplicitText(t *testing.T) {
	db := newTestDB(t)
	s := newTestService(t, db, nil, nil)

	thread := seedThread(t, db, models.RelatedChannel, models.JSONMap{"channel_id": int64(9)}, "预设背景")
	background, err := s.threadBackground(context.Background(), thread)
	require.NoError(t, err)
	assert.Equal(t, "预设背景", background)
}

func TestThreadBackgroundUsesSummaryNode(t *testing.T) {
	db := newTestDB(t)
	s := newTestService(t, db, nil, nil)

	thread := seedThread(t, db, models.RelatedChannel, models.JSONMap{"channel_id": int64(9)}, "")
	require.NoError(t, db.Create(&models.DiscussModel{
		UUID:       uuid.New().String(),
		ThreadID:   thread.ID,
		ThreadUUID: thread.UUID,
		Role:       models.RoleSystem,
		Content:    "置顶频道摘要",
		IsSummary:  1,
		Status:     models.ResponseFinished,
	}).Error)

	background, err := s.threadBackground(context.Background(), thread)
	require.NoError(t, err)
	assert.Equal(t, "置顶频道摘要", background)
}

func TestThreadBackgroundUsesCachedChannelSummary(t *testing.T) {
	db := newTestDB(t)
	model := &fakeModel{}
	s := newTestService(t, db, model, nil)
	ctx := context.Background()

	require.NoError(t, db.Create(&models.BaseChannelModel{ID: 9, Name: "微生物组"}).Error)

	// Seed a finished summary under the exact fingerprint the thread
	// would look up.
	req, err := s.content.BuildRequest(models.ContentShortSummary, aicontent.GenerateRequest{
		RelatedType: models.RelatedChannel,
		RelatedID:   9,
	})
	require.NoError(t, err)
	req.Status = models.RequestFinished
	require.NoError(t, db.Create(req).Error)
	require.NoError(t, db.Create(&models.ContentResponseModel{
		RequestID: req.ID,
		Content:   "缓存的频道综述",
		Status:    models.ResponseFinished,
	}).Error)

	thread := seedThread(t, db, models.RelatedChannel, models.JSONMap{"channel_id": int64(9)}, "")
	background, err := s.threadBackground(ctx, thread)
	require.NoError(t, err)
	assert.Equal(t, "缓存的频道综述", background)
}

func TestThreadBackgroundFallsBackToChannelName(t *testing.T) {
	db := newTestDB(t)
	s := newTestService(t, db, nil, nil)

	require.NoError(t, db.Create(&models.BaseChannelModel{ID: 9, Name: "微生物组"}).Error)
	thread := seedThread(t, db, models.RelatedChannel, models.JSONMap{"channel_id": int64(9)}, "")

	background, err := s.threadBackground(context.Background(), thread)
	require.NoError(t, err)
	assert.Equal(t, "频道: 微生物组", background)
}

func TestThreadBackgroundFormatsArticle(t *testing.T) {
	db := newTestDB(t)
	s := newTestService(t, db, nil, nil)

	require.NoError(t, db.Create(&models.ArticleModel{
		ID:          301,
		Title:       "Gut microbiome dynamics",
		Abstract:    "We study the gut microbiome.",
		Authors:     "Li Wei,Zhang San,Wang Wu,Zhao Liu",
		JournalName: "Nature Microbiology",
		PubDate:     time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
	}).Error)

	thread := seedThread(t, db, models.RelatedArticle, models.JSONMap{"article_id": int64(301)}, "")
	background, err := s.threadBackground(context.Background(), thread)
	require.NoError(t, err)

	assert.Contains(t, background, "文章标题: Gut microbiome dynamics")
	assert.Contains(t, background, "作者: Li Wei, Zhang San, Wang Wu, et al.")
	assert.Contains(t, background, "期刊: Nature Microbiology (2024)")
	assert.Contains(t, background, "摘要: We study the gut microbiome.")
}

func TestThreadBackgroundEmptyWhenUnresolvable(t *testing.T) {
	db := newTestDB(t)
	s := newTestService(t, db, nil, nil)

	thread := seedThread(t, db, models.RelatedArticle, models.JSONMap{}, "")
	background, err := s.threadBackground(context.Background(), thread)
	require.NoError(t, err)
	assert.Empty(t, background)
}
