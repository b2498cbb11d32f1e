package vector

import "context"

// Embedder turns text into dense vectors.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// CollectionInfo describes one searchable collection. Description is what
// the router feeds to the model when classifying a query.
type CollectionInfo struct {
	Name        string
	Description string
}

// SearchOptions narrows a vector search.
type SearchOptions struct {
	TopK   int
	Filter string // index-native boolean expression, may be empty
}

// Hit is one raw search result from the index.
type Hit struct {
	Text         string
	Reference    string // citation label, usually the article title
	ReferenceID  int64  // article id in the library, 0 when unknown
	Score        float64
	Pubdate      int64 // unix seconds, 0 when the field is absent
	ImpactFactor float64
	Metadata     map[string]interface{}
}

// Index is a searchable vector store.
type Index interface {
	Search(ctx context.Context, collection string, vec []float32, opts SearchOptions) ([]Hit, error)
	Collections(ctx context.Context) ([]CollectionInfo, error)
}
