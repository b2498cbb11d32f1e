package library

import (
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/deepscholar/core/internal/models"
)

// Service reads the platform's library tables: articles, channels, columns,
// terminology. All access is read-only.
type Service struct{ db *gorm.DB }

func NewService(db *gorm.DB) *Service { return &Service{db: db} }

// Metadata is the request context assembled from the subject of a
// generation request. It seeds prompts and thread backgrounds.
type Metadata struct {
	Concepts          []string `json:"concepts,omitempty"`
	ColumnDescription string   `json:"column_description,omitempty"`
	BaseID            int64    `json:"base_id,omitempty"`
	ArticleID         int64    `json:"article_id,omitempty"`
	ArticleTitle      string   `json:"article_title,omitempty"`
	ArticleAbstract   string   `json:"article_abstract,omitempty"`
}

// BuildMetadata resolves the subject of a request into prompt context:
// terminology concepts plus a channel, column or article description.
func (s *Service) BuildMetadata(relatedType models.RelatedType, relatedID int64, termNodeIDs []int64) (*Metadata, error) {
	meta := &Metadata{}

	if len(termNodeIDs) > 0 {
		var nodes []models.TermTreeNodeModel
		if err := s.db.Where("id IN ?", termNodeIDs).Find(&nodes).Error; err != nil {
			return nil, fmt.Errorf("load term tree nodes: %w", err)
		}
		for _, node := range nodes {
			meta.Concepts = append(meta.Concepts, node.NodeConceptName)
		}
		meta.ColumnDescription = strings.Join(meta.Concepts, "、")
	}
	conceptDesc := meta.ColumnDescription

	switch relatedType {
	case models.RelatedChannel:
		var base models.BaseChannelModel
		if err := s.db.First(&base, "id = ?", relatedID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return meta, nil
			}
			return nil, fmt.Errorf("load channel: %w", err)
		}
		meta.BaseID = base.ID
		meta.ColumnDescription = fmt.Sprintf("频道：%s, 内容关于：%s", base.Name, conceptDesc)

	case models.RelatedColumn:
		var category struct {
			models.BaseCategoryModel
			BaseName string
		}
		err := s.db.Model(&models.BaseCategoryModel{}).
			Select("base_categories.*, bases.name AS base_name").
			Joins("LEFT JOIN bases ON base_categories.base_id = bases.id").
			Where("base_categories.id = ?", relatedID).
			Take(&category).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return meta, nil
			}
			return nil, fmt.Errorf("load column: %w", err)
		}
		meta.BaseID = category.BaseID
		meta.ColumnDescription = fmt.Sprintf("栏目：%s, 属于频道：%s, 内容关于：%s", category.Name, category.BaseName, conceptDesc)

	case models.RelatedArticle:
		articles, err := s.ArticlesByIDs([]int64{relatedID})
		if err != nil {
			return nil, err
		}
		if len(articles) > 0 {
			meta.ArticleID = articles[0].ID
			meta.ArticleTitle = articles[0].Title
			meta.ArticleAbstract = articles[0].Abstract
		}
	}

	return meta, nil
}

// ArticlesByChannel returns the channel's newest articles.
func (s *Service) ArticlesByChannel(channelID int64, limit int) ([]models.ArticleModel, error) {
	if limit <= 0 {
		limit = 10
	}
	var articles []models.ArticleModel
	err := s.db.Model(&models.ArticleModel{}).
		Joins("JOIN article_channels ON article_channels.article_id = articles.id").
		Where("article_channels.base_id = ?", channelID).
		Order("articles.pubdate DESC").
		Limit(limit).
		Find(&articles).Error
	if err != nil {
		return nil, fmt.Errorf("load articles by channel: %w", err)
	}
	return articles, nil
}

func (s *Service) ArticlesByIDs(ids []int64) ([]models.ArticleModel, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var articles []models.ArticleModel
	if err := s.db.Where("id IN ?", ids).Find(&articles).Error; err != nil {
		return nil, fmt.Errorf("load articles by ids: %w", err)
	}
	return articles, nil
}

// ReferenceList formats bibliography entries for the given article ids in
// order: "[n] authors. title. journal. year;doi". Missing articles get a
// placeholder line so citation numbering stays aligned.
func (s *Service) ReferenceList(ids []int64) ([]string, error) {
	articles, err := s.ArticlesByIDs(ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[int64]models.ArticleModel, len(articles))
	for _, a := range articles {
		byID[a.ID] = a
	}

	out := make([]string, 0, len(ids))
	for i, id := range ids {
		article, ok := byID[id]
		if !ok {
			out = append(out, fmt.Sprintf("[%d] unknown reference (article %d)", i+1, id))
			continue
		}

		authors := strings.Split(article.Authors, ",")
		for j := range authors {
			authors[j] = strings.TrimSpace(authors[j])
		}
		if len(authors) > 5 {
			authors = append(authors[:5], "et al")
		}

		out = append(out, fmt.Sprintf("[%d] %s. %s. %s. %d;%s",
			i+1, strings.Join(authors, ", "), article.Title, article.JournalName,
			article.PubDate.Year(), article.DOI))
	}
	return out, nil
}

// LookupConcept resolves a scholarly term to its counterpart language via
// the concepts table. Matches either the English or Chinese name; entries
// without an intro are treated as unreviewed and skipped.
func (s *Service) LookupConcept(term string) (english, chinese string, err error) {
	var concept models.ConceptModel
	e := s.db.Where("(name = ? OR cname = ?) AND intro IS NOT NULL AND intro <> ''", term, term).
		First(&concept).Error
	if e != nil {
		if errors.Is(e, gorm.ErrRecordNotFound) {
			return "", "", nil
		}
		return "", "", fmt.Errorf("lookup concept: %w", e)
	}
	return concept.Name, concept.CName, nil
}
