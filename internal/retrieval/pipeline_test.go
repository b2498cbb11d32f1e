package retrieval

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deepscholar/core/internal/config"
	"github.com/deepscholar/core/internal/llm"
	"github.com/deepscholar/core/internal/models"
	"github.com/deepscholar/core/internal/vector"
)

// fakeModel answers by prompt shape: routing prompts get routeReply, rerank
// prompts answer YES unless the chunk contains "irrelevant", erroring on
// chunks containing "flaky" when judgeErr is set.
type fakeModel struct {
	routeReply string
	judgeErr   error
	calls      int
}

func (m *fakeModel) Chat(_ context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
	m.calls++
	prompt := req.Messages[len(req.Messages)-1].Content
	usage := models.Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15}

	switch {
	case strings.Contains(prompt, "Respond with a JSON array"):
		return &llm.ChatResponse{Text: m.routeReply, Usage: usage}, nil
	case strings.Contains(prompt, `Respond with only "YES" or "NO"`):
		if m.judgeErr != nil && strings.Contains(prompt, "flaky") {
			return nil, m.judgeErr
		}
		if strings.Contains(prompt, "irrelevant") {
			return &llm.ChatResponse{Text: "NO", Usage: usage}, nil
		}
		return &llm.ChatResponse{Text: "YES", Usage: usage}, nil
	case strings.Contains(prompt, "Please output the rewritten search query"):
		return &llm.ChatResponse{Text: "rewritten query", Usage: usage}, nil
	default:
		return &llm.ChatResponse{Text: "cleaned text", Usage: usage}, nil
	}
}

func (m *fakeModel) StreamChat(ctx context.Context, req llm.ChatRequest, onDelta func(string)) (*llm.ChatResponse, error) {
	resp, err := m.Chat(ctx, req)
	if err == nil && onDelta != nil {
		onDelta(resp.Text)
	}
	return resp, err
}

type fakeEmbedder struct{}

func (fakeEmbedder) Embed(context.Context, string) ([]float32, error) {
	return []float32{0.1, 0.2}, nil
}

func (fakeEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range out {
		out[i] = []float32{0.1, 0.2}
	}
	return out, nil
}

type fakeIndex struct {
	hits    map[string][]vector.Hit
	errs    map[string]error
	filters []string
}

func (f *fakeIndex) Search(_ context.Context, collection string, _ []float32, opts vector.SearchOptions) ([]vector.Hit, error) {
	f.filters = append(f.filters, opts.Filter)
	if err := f.errs[collection]; err != nil {
		return nil, err
	}
	return f.hits[collection], nil
}

func (f *fakeIndex) Collections(context.Context) ([]vector.CollectionInfo, error) {
	infos := make([]vector.CollectionInfo, 0, len(f.hits))
	for name := range f.hits {
		infos = append(infos, vector.CollectionInfo{Name: name})
	}
	return infos, nil
}

func newTestService(model llm.Model, index vector.Index, vcfg config.VectorConfig) *Service {
	return NewService(model, fakeEmbedder{}, index, config.RetrievalConfig{
		TopKPerSection: 10,
		TopKAccepted:   3,
		Concurrency:    2,
	}, vcfg)
}

func collectionsConfig() config.VectorConfig {
	return config.VectorConfig{
		Collections: []config.VectorCollection{
			{Name: "biology", Description: "life science papers"},
			{Name: "physics", Description: "physics papers"},
		},
		DefaultCollection: "biology",
	}
}

func TestRetrieveFiltersByJudgment(t *testing.T) {
	index := &fakeIndex{hits: map[string][]vector.Hit{
		"biology": {
			{Text: "microbial community dynamics", ReferenceID: 1, Score: 0.9},
			{Text: "irrelevant advertising snippet", ReferenceID: 2, Score: 0.8},
		},
	}}
	svc := newTestService(&fakeModel{}, index, collectionsConfig())

	result, err := svc.Retrieve(context.Background(), Request{
		Query:       "microbial communities",
		Collections: []string{"biology"},
	})
	require.NoError(t, err)
	require.Len(t, result.Hits, 1)
	assert.Equal(t, int64(1), result.Hits[0].ReferenceID)
	assert.NotZero(t, result.Usage.TotalTokens)
}

func TestRetrieveDropsChunkOnJudgmentError(t *testing.T) {
	index := &fakeIndex{hits: map[string][]vector.Hit{
		"biology": {
			{Text: "microbial community dynamics", ReferenceID: 1, Score: 0.9},
			{Text: "flaky upstream chunk", ReferenceID: 2, Score: 0.8},
		},
	}}
	model := &fakeModel{judgeErr: errors.New("model timeout")}
	svc := newTestService(model, index, collectionsConfig())

	result, err := svc.Retrieve(context.Background(), Request{
		Query:       "microbial communities",
		Collections: []string{"biology"},
	})
	require.NoError(t, err)
	require.Len(t, result.Hits, 1)
	assert.Equal(t, int64(1), result.Hits[0].ReferenceID)
}

func TestRetrieveSkipsFailingCollection(t *testing.T) {
	index := &fakeIndex{
		hits: map[string][]vector.Hit{
			"biology": {
				{Text: "microbial community dynamics", ReferenceID: 1, Score: 0.9},
			},
		},
		errs: map[string]error{
			"physics": errors.New("collection offline"),
		},
	}
	svc := newTestService(&fakeModel{}, index, collectionsConfig())

	result, err := svc.Retrieve(context.Background(), Request{
		Query:       "microbial communities",
		Collections: []string{"biology", "physics"},
	})
	require.NoError(t, err)
	require.Len(t, result.Hits, 1)
	assert.Equal(t, int64(1), result.Hits[0].ReferenceID)
}

func TestRetrieveTruncatesByScore(t *testing.T) {
	index := &fakeIndex{hits: map[string][]vector.Hit{
		"biology": {
			{Text: "chunk one", ReferenceID: 1, Score: 0.4},
			{Text: "chunk two", ReferenceID: 2, Score: 0.9},
			{Text: "chunk three", ReferenceID: 3, Score: 0.7},
			{Text: "chunk four", ReferenceID: 4, Score: 0.8},
		},
	}}
	svc := newTestService(&fakeModel{}, index, collectionsConfig())

	result, err := svc.Retrieve(context.Background(), Request{
		Query:       "anything",
		Collections: []string{"biology"},
	})
	require.NoError(t, err)
	require.Len(t, result.Hits, 3)
	assert.Equal(t, int64(2), result.Hits[0].ReferenceID)
	assert.Equal(t, int64(4), result.Hits[1].ReferenceID)
}

func TestRetrieveSkipsEmptyCollection(t *testing.T) {
	index := &fakeIndex{hits: map[string][]vector.Hit{
		"biology": {},
		"physics": {{Text: "quantum chunk", ReferenceID: 9, Score: 0.5}},
	}}
	svc := newTestService(&fakeModel{}, index, collectionsConfig())

	result, err := svc.Retrieve(context.Background(), Request{
		Query:       "quantum",
		Collections: []string{"biology", "physics"},
	})
	require.NoError(t, err)
	require.Len(t, result.Hits, 1)
	assert.Equal(t, int64(9), result.Hits[0].ReferenceID)
}

func TestRetrievePassesFilterThrough(t *testing.T) {
	index := &fakeIndex{hits: map[string][]vector.Hit{"biology": nil}}
	svc := newTestService(&fakeModel{}, index, collectionsConfig())

	_, err := svc.Retrieve(context.Background(), Request{
		Query:       "anything",
		Collections: []string{"biology"},
		Filter:      "pubdate >= 1577836800",
	})
	require.NoError(t, err)
	require.Len(t, index.filters, 1)
	assert.Equal(t, "pubdate >= 1577836800", index.filters[0])
}

func TestSelectCollectionsRoutes(t *testing.T) {
	model := &fakeModel{routeReply: "```json\n[\"physics\"]\n```"}
	svc := newTestService(model, &fakeIndex{}, collectionsConfig())

	selected, usage, err := svc.SelectCollections(context.Background(), "dark matter")
	require.NoError(t, err)
	assert.Equal(t, []string{"physics"}, selected)
	assert.NotZero(t, usage.TotalTokens)
}

func TestSelectCollectionsFallsBackOnGarbage(t *testing.T) {
	model := &fakeModel{routeReply: "I am not sure what you mean."}
	svc := newTestService(model, &fakeIndex{}, collectionsConfig())

	selected, _, err := svc.SelectCollections(context.Background(), "dark matter")
	require.NoError(t, err)
	assert.Equal(t, []string{"biology"}, selected)
}

func TestSelectCollectionsIgnoresUnknownNames(t *testing.T) {
	model := &fakeModel{routeReply: `["chemistry", "physics"]`}
	svc := newTestService(model, &fakeIndex{}, collectionsConfig())

	selected, _, err := svc.SelectCollections(context.Background(), "dark matter")
	require.NoError(t, err)
	assert.Equal(t, []string{"physics"}, selected)
}

func TestRewriteQuery(t *testing.T) {
	svc := newTestService(&fakeModel{}, &fakeIndex{}, collectionsConfig())

	rewritten, usage, err := svc.RewriteQuery(context.Background(), "microbiome", "Emerging Trends", "old query")
	require.NoError(t, err)
	assert.Equal(t, "rewritten query", rewritten)
	assert.NotZero(t, usage.TotalTokens)
}
