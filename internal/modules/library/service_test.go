package library

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/deepscholar/core/internal/models"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.ArticleModel{},
		&models.BaseChannelModel{},
		&models.BaseCategoryModel{},
		&models.TermTreeNodeModel{},
		&models.ConceptModel{},
		&models.ArticleChannelModel{},
	))
	return db
}

func seedArticle(t *testing.T, db *gorm.DB, id int64, title string, pubdate time.Time) {
	t.Helper()
	require.NoError(t, db.Create(&models.ArticleModel{
		ID:          id,
		Title:       title,
		Abstract:    "abstract of " + title,
		Authors:     "Alice,Bob,Carol,Dave,Eve,Frank",
		JournalName: "Nature Reviews",
		DOI:         "10.1000/x" + title,
		PubDate:     pubdate,
	}).Error)
}

func TestBuildMetadataChannel(t *testing.T) {
	db := newTestDB(t)
	require.NoError(t, db.Create(&models.BaseChannelModel{ID: 5, Name: "微生物组"}).Error)
	require.NoError(t, db.Create(&models.TermTreeNodeModel{ID: 1, NodeConceptName: "宏基因组"}).Error)
	require.NoError(t, db.Create(&models.TermTreeNodeModel{ID: 2, NodeConceptName: "群落生态"}).Error)

	svc := NewService(db)
	meta, err := svc.BuildMetadata(models.RelatedChannel, 5, []int64{1, 2})
	require.NoError(t, err)
	assert.Equal(t, int64(5), meta.BaseID)
	assert.Len(t, meta.Concepts, 2)
	assert.Contains(t, meta.ColumnDescription, "频道：微生物组")
}

func TestBuildMetadataArticle(t *testing.T) {
	db := newTestDB(t)
	seedArticle(t, db, 42, "CRISPR screening", time.Now())

	svc := NewService(db)
	meta, err := svc.BuildMetadata(models.RelatedArticle, 42, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(42), meta.ArticleID)
	assert.Equal(t, "CRISPR screening", meta.ArticleTitle)
	assert.NotEmpty(t, meta.ArticleAbstract)
}

func TestBuildMetadataMissingSubject(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db)

	meta, err := svc.BuildMetadata(models.RelatedChannel, 999, nil)
	require.NoError(t, err)
	assert.Zero(t, meta.BaseID)
}

func TestArticlesByChannelOrdersNewestFirst(t *testing.T) {
	db := newTestDB(t)
	seedArticle(t, db, 1, "older", time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC))
	seedArticle(t, db, 2, "newer", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, db.Create(&models.ArticleChannelModel{ID: 1, ArticleID: 1, BaseID: 7}).Error)
	require.NoError(t, db.Create(&models.ArticleChannelModel{ID: 2, ArticleID: 2, BaseID: 7}).Error)

	svc := NewService(db)
	articles, err := svc.ArticlesByChannel(7, 10)
	require.NoError(t, err)
	require.Len(t, articles, 2)
	assert.Equal(t, "newer", articles[0].Title)
}

func TestReferenceListFormatsAndNumbers(t *testing.T) {
	db := newTestDB(t)
	seedArticle(t, db, 10, "First paper", time.Date(2021, 6, 1, 0, 0, 0, 0, time.UTC))

	svc := NewService(db)
	refs, err := svc.ReferenceList([]int64{10, 99})
	require.NoError(t, err)
	require.Len(t, refs, 2)
	assert.Contains(t, refs[0], "[1] Alice, Bob, Carol, Dave, Eve, et al")
	assert.Contains(t, refs[0], "First paper")
	assert.Contains(t, refs[0], "2021")
	assert.Contains(t, refs[1], "[2] unknown reference (article 99)")
}

func TestLookupConcept(t *testing.T) {
	db := newTestDB(t)
	require.NoError(t, db.Create(&models.ConceptModel{ID: 1, Name: "microbiome", CName: "微生物组", Intro: "微生物群落研究"}).Error)

	svc := NewService(db)
	en, zh, err := svc.LookupConcept("microbiome")
	require.NoError(t, err)
	assert.Equal(t, "microbiome", en)
	assert.Equal(t, "微生物组", zh)

	en, zh, err = svc.LookupConcept("没有的词")
	require.NoError(t, err)
	assert.Empty(t, en)
	assert.Empty(t, zh)

	require.NoError(t, db.Create(&models.ConceptModel{ID: 2, Name: "draftterm", CName: "草稿词"}).Error)
	en, zh, err = svc.LookupConcept("draftterm")
	require.NoError(t, err)
	assert.Empty(t, en, "concepts without an intro are unreviewed")
	assert.Empty(t, zh)
}
