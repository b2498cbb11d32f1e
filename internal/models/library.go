package models

import "time"

// The library models mirror read-only tables of the scholarly platform
// database. They feed summary source material, reference lists and
// thread backgrounds; this service never writes them.

// ArticleModel is a published academic article.
type ArticleModel struct {
	ID           int64     `json:"id"            gorm:"primaryKey"`
	Title        string    `json:"title"         gorm:"type:text"`
	Abstract     string    `json:"abstract"      gorm:"type:text"`
	Authors      string    `json:"authors"       gorm:"type:text"` // comma separated
	JournalName  string    `json:"journal_name"`
	DOI          string    `json:"doi"`
	ImpactFactor float64   `json:"impact_factor"`
	PubDate      time.Time `json:"pubdate"       gorm:"column:pubdate"`
}

func (ArticleModel) TableName() string { return "articles" }

// BaseChannelModel is a content channel ("base").
type BaseChannelModel struct {
	ID    int64  `json:"id"    gorm:"primaryKey"`
	UUID  string `json:"uuid"`
	Name  string `json:"name"`
	Intro string `json:"intro" gorm:"type:text"`
}

func (BaseChannelModel) TableName() string { return "bases" }

// BaseCategoryModel is a column inside a channel.
type BaseCategoryModel struct {
	ID     int64  `json:"id"      gorm:"primaryKey"`
	Alias  string `json:"alias"`
	BaseID int64  `json:"base_id" gorm:"index"`
	Type   int    `json:"type"`
	Name   string `json:"name"`
	Status int    `json:"status"`
}

func (BaseCategoryModel) TableName() string { return "base_categories" }

// TermTreeNodeModel is one node of the terminology concept tree.
type TermTreeNodeModel struct {
	ID              int64  `json:"id"                gorm:"primaryKey"`
	TreeID          int64  `json:"tree_id"           gorm:"index"`
	ParentNodeID    int64  `json:"parent_node_id"`
	NodeConceptName string `json:"node_concept_name"`
	NodeConceptID   int64  `json:"node_concept_id"`
	Intro           string `json:"intro"             gorm:"type:text"`
	Status          int    `json:"status"`
}

func (TermTreeNodeModel) TableName() string { return "term_tree_nodes" }

// ConceptModel maps a scholarly concept between languages.
type ConceptModel struct {
	ID    int64  `json:"id"    gorm:"primaryKey"`
	Name  string `json:"name"  gorm:"index"` // English name
	CName string `json:"cname" gorm:"column:cname;index"` // Chinese name
	Intro string `json:"intro" gorm:"type:text"`
}

func (ConceptModel) TableName() string { return "concepts" }

// ArticleChannelModel links articles to channels.
type ArticleChannelModel struct {
	ID        int64 `json:"id"         gorm:"primaryKey"`
	ArticleID int64 `json:"article_id" gorm:"index"`
	BaseID    int64 `json:"base_id"    gorm:"index"`
}

func (ArticleChannelModel) TableName() string { return "article_channels" }
