package retrieval

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/deepscholar/core/internal/llm"
	"github.com/deepscholar/core/internal/models"
	"github.com/deepscholar/core/internal/vector"
)

// SelectCollections classifies a query against the collection descriptions
// and returns the collections worth searching. Any routing failure falls
// back to the default collection; routing never fails a request.
func (s *Service) SelectCollections(ctx context.Context, query string) ([]string, models.Usage, error) {
	var usage models.Usage

	infos, err := s.collectionInfos(ctx)
	if err != nil {
		s.logger.Warn("collection listing failed, using default", zap.Error(err))
		return s.defaultCollections(), usage, nil
	}
	if len(infos) <= 1 {
		return s.defaultCollections(), usage, nil
	}

	var desc strings.Builder
	known := make(map[string]struct{}, len(infos))
	for _, info := range infos {
		known[info.Name] = struct{}{}
		fmt.Fprintf(&desc, "- %s: %s\n", info.Name, info.Description)
	}

	resp, err := s.model.Chat(ctx, llm.ChatRequest{
		Task: llm.TaskChat,
		Messages: []llm.Message{
			{Role: llm.RoleUser, Content: fmt.Sprintf(routeCollectionsPrompt, query, desc.String())},
		},
		MaxTokens: 256,
	})
	if err != nil {
		s.logger.Warn("collection routing failed, using default", zap.Error(err))
		return s.defaultCollections(), usage, nil
	}
	usage.Add(resp.Usage)

	names := parseCollectionNames(resp.Text)
	selected := make([]string, 0, len(names))
	for _, name := range names {
		if _, ok := known[name]; ok {
			selected = append(selected, name)
		}
	}
	if len(selected) == 0 {
		s.logger.Warn("collection routing returned no known collection, using default",
			zap.String("raw", resp.Text))
		return s.defaultCollections(), usage, nil
	}
	return selected, usage, nil
}

func (s *Service) collectionInfos(ctx context.Context) ([]vector.CollectionInfo, error) {
	if len(s.vcfg.Collections) > 0 {
		infos := make([]vector.CollectionInfo, 0, len(s.vcfg.Collections))
		for _, c := range s.vcfg.Collections {
			infos = append(infos, vector.CollectionInfo{Name: c.Name, Description: c.Description})
		}
		return infos, nil
	}
	return s.index.Collections(ctx)
}

func (s *Service) defaultCollections() []string {
	if s.vcfg.DefaultCollection != "" {
		return []string{s.vcfg.DefaultCollection}
	}
	if len(s.vcfg.Collections) > 0 {
		return []string{s.vcfg.Collections[0].Name}
	}
	return nil
}

// parseCollectionNames decodes a JSON string array, tolerating code fences
// and surrounding prose the same way object payloads are handled.
func parseCollectionNames(raw string) []string {
	cleaned := strings.TrimSpace(raw)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```JSON")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)

	var names []string
	if err := json.Unmarshal([]byte(cleaned), &names); err == nil {
		return names
	}

	start := strings.Index(cleaned, "[")
	end := strings.LastIndex(cleaned, "]")
	if start >= 0 && end > start {
		if err := json.Unmarshal([]byte(cleaned[start:end+1]), &names); err == nil {
			return names
		}
	}
	return nil
}
