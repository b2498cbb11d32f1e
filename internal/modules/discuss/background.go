package discuss

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/deepscholar/core/internal/models"
	"github.com/deepscholar/core/internal/modules/aicontent"
)

// threadBackground resolves the context text fed to the discuss
// prompts. Resolution order: explicit thread background, the thread's
// pinned summary node, a cached channel summary, then plain library
// metadata. An empty background is acceptable.
func (s *Service) threadBackground(ctx context.Context, thread *models.DiscussThreadModel) (string, error) {
	if thread.Background != "" {
		return thread.Background, nil
	}

	summary, err := s.summaryNode(ctx, thread.UUID)
	if err != nil {
		return "", err
	}
	if summary != nil && summary.Content != "" {
		return summary.Content, nil
	}

	switch thread.RelatedType {
	case models.RelatedChannel, models.RelatedColumn:
		return s.channelBackground(ctx, thread)
	case models.RelatedArticle:
		return s.articleBackground(ctx, thread)
	}
	return "", nil
}

// channelBackground prefers the cached AI channel summary and falls
// back to the bare channel name.
func (s *Service) channelBackground(ctx context.Context, thread *models.DiscussThreadModel) (string, error) {
	channelID := paramInt64(thread.Params, "channel_id")
	if channelID == 0 {
		return "", nil
	}

	req, err := s.content.BuildRequest(models.ContentShortSummary, aicontent.GenerateRequest{
		RelatedType:     thread.RelatedType,
		RelatedID:       channelID,
		TermTreeNodeIDs: paramInt64Slice(thread.Params, "term_tree_node_ids"),
		Ver:             paramString(thread.Params, "ver"),
	})
	if err != nil {
		s.logger.Warn("summary fingerprint unavailable for thread background", zap.Error(err))
	} else {
		cached, err := s.content.Lookup(ctx, req.Fingerprint)
		if err != nil {
			s.logger.Warn("cached summary lookup failed for thread background", zap.Error(err))
		} else if cached != nil && cached.Content != "" {
			return cached.Content, nil
		}
	}

	var channel models.BaseChannelModel
	err = s.db.WithContext(ctx).First(&channel, "id = ?", channelID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("load channel for thread background: %w", err)
	}
	return fmt.Sprintf("频道: %s", channel.Name), nil
}

func (s *Service) articleBackground(ctx context.Context, thread *models.DiscussThreadModel) (string, error) {
	articleID := paramInt64(thread.Params, "article_id")
	if articleID == 0 {
		return "", nil
	}
	articles, err := s.library.ArticlesByIDs([]int64{articleID})
	if err != nil {
		return "", fmt.Errorf("load article for thread background: %w", err)
	}
	if len(articles) == 0 {
		return "", nil
	}
	article := articles[0]

	authors := strings.Split(article.Authors, ",")
	for i := range authors {
		authors[i] = strings.TrimSpace(authors[i])
	}
	if len(authors) > 3 {
		authors = append(authors[:3], "et al.")
	}
	pubYear := "未知"
	if !article.PubDate.IsZero() {
		pubYear = fmt.Sprintf("%d", article.PubDate.Year())
	}

	return fmt.Sprintf(
		"文章标题: %s\n\n作者: %s\n\n期刊: %s (%s)\n\n摘要: %s",
		article.Title, strings.Join(authors, ", "), article.JournalName, pubYear, article.Abstract,
	), nil
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

func paramString(params models.JSONMap, key string) string {
	if v, ok := params[key].(string); ok {
		return v
	}
	return ""
}

func paramInt64Slice(params models.JSONMap, key string) []int64 {
	switch v := params[key].(type) {
	case []int64:
		return v
	case []interface{}:
		out := make([]int64, 0, len(v))
		for _, item := range v {
			switch n := item.(type) {
			case int64:
				out = append(out, n)
			case float64:
				out = append(out, int64(n))
			}
		}
		return out
	}
	return nil
}

func paramFloat64(params models.JSONMap, key string) (float64, bool) {
	switch v := params[key].(type) {
	case float64:
		return v, true
	case int64:
		return float64(v), true
	case int:
		return float64(v), true
	}
	return 0, false
}
