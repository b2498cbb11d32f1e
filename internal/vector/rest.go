package vector

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// RESTIndex talks to a Milvus-compatible vector database over its v2 REST
// API. The ANN engine runs out of process; this client only searches.
type RESTIndex struct {
	endpoint     string
	token        string
	descriptions map[string]string
	client       *http.Client
}

// NewRESTIndex builds a client for the given endpoint. descriptions maps
// collection names to the human description served by Collections.
func NewRESTIndex(endpoint, token string, descriptions map[string]string) (*RESTIndex, error) {
	endpoint = strings.TrimRight(strings.TrimSpace(endpoint), "/")
	if endpoint == "" {
		return nil, errors.New("vector index endpoint is empty")
	}
	if descriptions == nil {
		descriptions = map[string]string{}
	}
	return &RESTIndex{
		endpoint:     endpoint,
		token:        token,
		descriptions: descriptions,
		client:       &http.Client{Timeout: 30 * time.Second},
	}, nil
}

var searchOutputFields = []string{"text", "reference", "reference_id", "pubdate", "impact_factor"}

func (x *RESTIndex) Search(ctx context.Context, collection string, vec []float32, opts SearchOptions) ([]Hit, error) {
	if collection == "" {
		return nil, errors.New("collection name is empty")
	}
	if len(vec) == 0 {
		return nil, errors.New("query vector is empty")
	}
	topK := opts.TopK
	if topK <= 0 {
		topK = 10
	}

	payload := map[string]interface{}{
		"collectionName": collection,
		"data":           [][]float32{vec},
		"limit":          topK,
		"outputFields":   searchOutputFields,
	}
	if opts.Filter != "" {
		payload["filter"] = opts.Filter
	}

	var result struct {
		Code int    `json:"code"`
		Msg  string `json:"message"`
		Data []struct {
			Distance     float64 `json:"distance"`
			Text         string  `json:"text"`
			Reference    string  `json:"reference"`
			ReferenceID  int64   `json:"reference_id"`
			Pubdate      int64   `json:"pubdate"`
			ImpactFactor float64 `json:"impact_factor"`
		} `json:"data"`
	}
	if err := x.post(ctx, "/v2/vectordb/entities/search", payload, &result); err != nil {
		return nil, err
	}
	if result.Code != 0 {
		return nil, fmt.Errorf("vector search failed: code %d: %s", result.Code, result.Msg)
	}

	hits := make([]Hit, 0, len(result.Data))
	for _, row := range result.Data {
		hits = append(hits, Hit{
			Text:         row.Text,
			Reference:    row.Reference,
			ReferenceID:  row.ReferenceID,
			Score:        row.Distance,
			Pubdate:      row.Pubdate,
			ImpactFactor: row.ImpactFactor,
		})
	}
	return hits, nil
}

// Collections lists the collections known to the engine, annotated with the
// configured descriptions so the query router can classify against them.
func (x *RESTIndex) Collections(ctx context.Context) ([]CollectionInfo, error) {
	var result struct {
		Code int      `json:"code"`
		Msg  string   `json:"message"`
		Data []string `json:"data"`
	}
	if err := x.post(ctx, "/v2/vectordb/collections/list", map[string]interface{}{}, &result); err != nil {
		return nil, err
	}
	if result.Code != 0 {
		return nil, fmt.Errorf("list collections failed: code %d: %s", result.Code, result.Msg)
	}

	infos := make([]CollectionInfo, 0, len(result.Data))
	for _, name := range result.Data {
		infos = append(infos, CollectionInfo{Name: name, Description: x.descriptions[name]})
	}
	return infos, nil
}

func (x *RESTIndex) post(ctx context.Context, path string, payload interface{}, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, x.endpoint+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if x.token != "" {
		req.Header.Set("Authorization", "Bearer "+x.token)
	}

	resp, err := x.client.Do(req)
	if err != nil {
		return fmt.Errorf("vector index request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("vector index error: %s", strings.TrimSpace(string(respBody)))
	}
	return json.Unmarshal(respBody, out)
}
