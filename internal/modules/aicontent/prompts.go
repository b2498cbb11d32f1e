package aicontent

import (
	"encoding/json"
	"fmt"

	"github.com/deepscholar/core/internal/models"
	"github.com/deepscholar/core/internal/modules/library"
)

const (
	defaultMinWords      = 500
	defaultMaxWords      = 800
	defaultQuestionCount = 3
	defaultReferenceCnt  = 10
)

// articleInfo is the per-article record embedded into prompts. The
// article id doubles as the citation marker.
type articleInfo struct {
	ArticleID int64  `json:"article_id"`
	Title     string `json:"title"`
	Authors   string `json:"authors"`
	Journal   string `json:"journal"`
	Pubdate   string `json:"pubdate"`
	Abstract  string `json:"abstract"`
}

func articlesPromptBlock(articles []models.ArticleModel) string {
	infos := make([]articleInfo, 0, len(articles))
	for _, a := range articles {
		infos = append(infos, articleInfo{
			ArticleID: a.ID,
			Title:     a.Title,
			Authors:   a.Authors,
			Journal:   a.JournalName,
			Pubdate:   a.PubDate.Format("2006-01-02"),
			Abstract:  a.Abstract,
		})
	}
	b, _ := json.Marshal(infos)
	return string(b)
}

func shortSummaryPrompt(query string, articles []models.ArticleModel, minWords, maxWords int) string {
	return fmt.Sprintf(`请根据以下文章列表，生成一篇总结性文章，文章的目标是：%s。要求内容包括：

1. 栏目科研的主题都有哪些
2. 核心文章所阐述的研究内容和科研成果
3. 最新的研究进展
4. 整体研究价值和重要意义
5. 引用文章时，使用格式[X]，X为文章列表中的article_id

字数要求：%d-%d字

文章列表：
%s

请直接生成总结文本，不要包含任何额外的说明或格式。
`, query, minWords, maxWords, articlesPromptBlock(articles))
}

func associatedQuestionPrompt(query string, articles []models.ArticleModel, count int) string {
	return fmt.Sprintf(`请根据以下文章列表，围绕目标：%s，提出%d个读者可能会关心的科研问题。

要求：
1. 问题紧扣文章列表中的研究内容和科研成果
2. 每行一个问题，不要编号
3. 不要包含任何额外的说明或格式

文章列表：
%s
`, query, count, articlesPromptBlock(articles))
}

// summaryQuery phrases the generation goal for a subject, mirroring how
// the request metadata describes channels, columns and articles.
func summaryQuery(relatedType models.RelatedType, meta *library.Metadata) string {
	switch relatedType {
	case models.RelatedChannel, models.RelatedColumn:
		if meta.ColumnDescription != "" {
			return fmt.Sprintf("这是一个%s，请分析这个栏目收录的这些文章的研究主题和科研成果，给首次来到这个栏目的读者一个阅读指引", meta.ColumnDescription)
		}
		return "请分析这个栏目收录的这些文章的研究主题和科研成果，给首次来到这个栏目的读者一个阅读指引"
	case models.RelatedArticle:
		if meta.ArticleTitle != "" {
			query := fmt.Sprintf("这篇文章标题是：%s", meta.ArticleTitle)
			if meta.ArticleAbstract != "" {
				query += fmt.Sprintf("\n摘要：%s\n", meta.ArticleAbstract)
			}
			return query + "请分析这个文章的研究主题和科研成果，给首次来到这个文章的读者一个阅读指引"
		}
		return "请分析这个文章的研究主题和科研成果，给首次来到这个文章的读者一个阅读指引"
	}
	return ""
}

func questionQuery(relatedType models.RelatedType, meta *library.Metadata) string {
	switch relatedType {
	case models.RelatedChannel, models.RelatedColumn:
		if meta.ColumnDescription != "" {
			return fmt.Sprintf("这是一个%s，请根据栏目包含的文献内容提出用户可能会关心的科研问题", meta.ColumnDescription)
		}
		return "请根据栏目包含的文献内容提出用户可能会关心的科研问题"
	case models.RelatedArticle:
		if meta.ArticleTitle != "" {
			query := fmt.Sprintf("这篇文章标题是：%s", meta.ArticleTitle)
			if meta.ArticleAbstract != "" {
				query += fmt.Sprintf("\n摘要：%s\n", meta.ArticleAbstract)
			}
			return query + "\n请根据文章的摘要提出用户可能会关心的科研问题"
		}
		return "请根据文章的摘要提出用户可能会关心的科研问题"
	}
	return ""
}
