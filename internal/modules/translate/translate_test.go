package translate

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/deepscholar/core/internal/config"
	"github.com/deepscholar/core/internal/llm"
	"github.com/deepscholar/core/internal/models"
	"github.com/deepscholar/core/internal/modules/library"
)

type fakeModel struct {
	text       string
	calls      int
	lastPrompt string
}

func (m *fakeModel) Chat(_ context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
	m.calls++
	m.lastPrompt = req.Messages[len(req.Messages)-1].Content
	return &llm.ChatResponse{Text: m.text}, nil
}

func (m *fakeModel) StreamChat(_ context.Context, req llm.ChatRequest, onDelta func(string)) (*llm.ChatResponse, error) {
	onDelta(m.text)
	return &llm.ChatResponse{Text: m.text}, nil
}

type mapStore struct {
	entries map[string]string // "term_src_dst" -> translation
	calls   int
}

func (s *mapStore) LookupTermTranslation(term, src, dst string) (string, bool) {
	s.calls++
	translation, ok := s.entries[term+"_"+src+"_"+dst]
	return translation, ok
}

type fixedSegmenter struct{ terms []Term }

func (f fixedSegmenter) SegmentTerms(string) []Term { return f.terms }

func newTestService(model *fakeModel, store *mapStore, opts ...ServiceOption) *Service {
	if model == nil {
		model = &fakeModel{text: "translated"}
	}
	if store == nil {
		store = &mapStore{entries: map[string]string{}}
	}
	return NewService(model, store, config.TranslateConfig{}, opts...)
}

func TestDetectLanguage(t *testing.T) {
	assert.Equal(t, "zh", detectLanguage("微生物组研究", "en"))
	assert.Equal(t, "en", detectLanguage("microbiome research", "zh"))
	assert.Equal(t, "mixed", detectLanguage("肠道 microbiome 研究", "zh"))
	assert.Equal(t, "unknown", detectLanguage("12345 !!!", "zh"))
}

func TestTranslateSameLanguagePassthrough(t *testing.T) {
	model := &fakeModel{text: "should not be called"}
	s := newTestService(model, nil)

	out, err := s.Translate(context.Background(), "微生物组研究进展", "zh")
	require.NoError(t, err)
	assert.Equal(t, "微生物组研究进展", out)
	assert.Equal(t, 0, model.calls)
}

func TestTranslateRejectsUnknownTarget(t *testing.T) {
	s := newTestService(nil, nil)
	_, err := s.Translate(context.Background(), "text", "fr")
	assert.Error(t, err)
}

func TestTranslateChineseWithGlossary(t *testing.T) {
	model := &fakeModel{text: "Advances in gut microbiome research"}
	store := &mapStore{entries: map[string]string{
		"微生物组_zh_en": "microbiome",
	}}
	s := newTestService(model, store, WithSegmenter(fixedSegmenter{terms: []Term{
		{Word: "肠道", Flag: "n"},
		{Word: "微生物组", Flag: "nz"},
		{Word: "研究", Flag: "vn"},
		{Word: "的", Flag: "u"},
	}}))

	out, err := s.Translate(context.Background(), "肠道微生物组的研究", "en")
	require.NoError(t, err)
	assert.Equal(t, "Advances in gut microbiome research", out)

	assert.Contains(t, model.lastPrompt, "from Chinese to English")
	assert.Contains(t, model.lastPrompt, "- 微生物组: microbiome")
	assert.NotContains(t, model.lastPrompt, "- 研究:", "non-noun flags are not glossary candidates")
	assert.Contains(t, model.lastPrompt, "Original text (Chinese):")
}

func TestTranslateEnglishGlossaryMatching(t *testing.T) {
	model := &fakeModel{text: "肠道菌群移植研究"}
	store := &mapStore{entries: map[string]string{
		"fecal microbiota transplantation_en_zh": "粪菌移植",
		"gene_en_zh":                             "基因",
		"the_en_zh":                              "这个",
	}}
	s := newTestService(model, store)
	s.enTerms = map[string]string{
		"fecal microbiota transplantation": "nz",
		"gene":                             "n",
		"the":                              "x",
	}
	s.indexEnglishTerms()

	// "generation" must not match the single word "gene".
	out, err := s.Translate(context.Background(),
		"Fecal Microbiota Transplantation in the next generation", "zh")
	require.NoError(t, err)
	assert.Equal(t, "肠道菌群移植研究", out)

	assert.Contains(t, model.lastPrompt, "- fecal microbiota transplantation: 粪菌移植")
	assert.NotContains(t, model.lastPrompt, "- gene: 基因")
	assert.NotContains(t, model.lastPrompt, "- the: 这个", "stop words never reach the glossary")
}

func TestTranslateUserDictionary(t *testing.T) {
	model := &fakeModel{text: "译文"}
	s := newTestService(model, nil)

	_, err := s.TranslateWithDict(context.Background(), "plain english text", "zh", []UserTerm{
		{Source: "plain", Translation: "朴素"},
	})
	require.NoError(t, err)
	assert.Contains(t, model.lastPrompt, "- plain: 朴素")
	assert.NotContains(t, model.lastPrompt, "No translation references found")
}

func TestTranslateEmptyGlossaryNote(t *testing.T) {
	model := &fakeModel{text: "译文"}
	s := newTestService(model, nil)

	_, err := s.Translate(context.Background(), "plain english text", "zh")
	require.NoError(t, err)
	assert.Contains(t, model.lastPrompt, "(No translation references found for professional terms)")
}

func TestLookupTermMemoization(t *testing.T) {
	store := &mapStore{entries: map[string]string{"微生物组_zh_en": "microbiome"}}
	s := newTestService(nil, store)

	for i := 0; i < 3; i++ {
		translation, ok := s.lookupTerm("微生物组", "zh", "en")
		require.True(t, ok)
		assert.Equal(t, "microbiome", translation)
	}
	assert.Equal(t, 1, store.calls, "repeated lookups hit the cache")

	for i := 0; i < 3; i++ {
		_, ok := s.lookupTerm("不存在", "zh", "en")
		require.False(t, ok)
	}
	assert.Equal(t, 2, store.calls, "misses are cached too")
}

func TestDictSegmenterLongestMatch(t *testing.T) {
	seg := newDictSegmenter([]Term{
		{Word: "微生物", Flag: "n"},
		{Word: "微生物组", Flag: "nz"},
		{Word: "研究", Flag: "n"},
	})

	terms := seg.SegmentTerms("微生物组研究进展")
	var words []string
	for _, term := range terms {
		words = append(words, term.Word)
	}
	assert.Equal(t, []string{"微生物组", "研究", "进", "展"}, words)
	assert.Equal(t, "nz", terms[0].Flag)
	assert.Equal(t, "x", terms[2].Flag)
}

func TestConceptStore(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.ConceptModel{}))
	require.NoError(t, db.Create(&models.ConceptModel{
		ID: 1, Name: "microbiome", CName: "微生物组", Intro: "微生物群落研究",
	}).Error)

	store := NewConceptStore(library.NewService(db))

	translation, ok := store.LookupTermTranslation("微生物组", "zh", "en")
	require.True(t, ok)
	assert.Equal(t, "microbiome", translation)

	translation, ok = store.LookupTermTranslation("microbiome", "en", "zh")
	require.True(t, ok)
	assert.Equal(t, "微生物组", translation)

	_, ok = store.LookupTermTranslation("unknown term", "en", "zh")
	assert.False(t, ok)
}
