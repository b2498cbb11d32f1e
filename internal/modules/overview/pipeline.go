package overview

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/deepscholar/core/internal/llm"
	"github.com/deepscholar/core/internal/models"
	"github.com/deepscholar/core/internal/retrieval"
	"github.com/deepscholar/core/internal/vector"
)

const rewriteThreshold = 3

// Overview is the final compiled review in both languages. Section
// order is Abstract, the compiled body sections, Conclusion,
// References; References appears untranslated in both.
type Overview struct {
	Topic              string       `json:"topic"`
	SourceSections     []Section    `json:"source_sections"`
	TargetSections     []Section    `json:"target_sections"`
	FailedTranslations []string     `json:"failed_translations,omitempty"`
	Usage              models.Usage `json:"usage"`
}

// Generate runs the full review pipeline for a research topic.
func (s *Service) Generate(ctx context.Context, topic string) (*Overview, error) {
	ov := &Overview{Topic: topic}

	englishTopic := s.normalizeTopic(ctx, topic, ov)
	plan := s.plan(ctx, englishTopic, ov)

	drafts := s.draftSections(ctx, englishTopic, plan, ov)

	var fullText strings.Builder
	for _, d := range drafts {
		if d.Content == "" {
			continue
		}
		fmt.Fprintf(&fullText, "## %s\n\n%s\n\n", d.Name, d.Content)
	}

	compiled, err := s.compile(ctx, englishTopic, fullText.String(), ov)
	if err != nil {
		return nil, err
	}

	abstract, conclusion := s.abstractAndConclusion(ctx, englishTopic, compiled, ov)

	compiled = splitMultiCitations(compiled)
	citedIDs := citedReferenceIDs(compiled)
	var referencesText string
	if len(citedIDs) > 0 {
		refs, err := s.library.ReferenceList(citedIDs)
		if err != nil {
			s.logger.Warn("failed to build reference list", zap.Error(err))
		} else {
			referencesText = strings.Join(refs, "\n\n")
			compiled = renumberCitations(compiled, citedIDs)
		}
	}

	body := splitSections(compiled)
	s.warnDroppedHeadings(drafts, body)

	sections := make([]Section, 0, len(body)+3)
	sections = append(sections, Section{Name: "Abstract", Content: abstract})
	sections = append(sections, body...)
	sections = append(sections, Section{Name: "Conclusion", Content: conclusion})
	sections = append(sections, Section{Name: "References", Content: referencesText})
	ov.SourceSections = sections

	ov.TargetSections = s.translateSections(ctx, sections, ov)
	return ov, nil
}

// normalizeTopic detects the topic language and translates non-English
// topics so that planning and retrieval run against English queries.
func (s *Service) normalizeTopic(ctx context.Context, topic string, ov *Overview) string {
	resp, err := s.model.Chat(ctx, llm.ChatRequest{
		Task:      llm.TaskChat,
		Messages:  []llm.Message{{Role: llm.RoleUser, Content: fmt.Sprintf(languageDetectPrompt, topic)}},
		MaxTokens: 8,
	})
	if err != nil {
		s.logger.Warn("topic language detection failed", zap.Error(err))
		return topic
	}
	ov.Usage.Add(resp.Usage)

	lang := strings.ToLower(strings.TrimSpace(resp.Text))
	if lang != "zh" && lang != "mixed" {
		return topic
	}
	english, err := s.translator.Translate(ctx, topic, "en")
	if err != nil {
		s.logger.Warn("topic translation failed", zap.Error(err))
		return topic
	}
	return english
}

// plan asks for the section outline; any parse failure degrades to the
// default plan.
func (s *Service) plan(ctx context.Context, topic string, ov *Overview) map[string]SectionQuery {
	resp, err := s.model.Chat(ctx, llm.ChatRequest{
		Task:     llm.TaskPlan,
		Messages: []llm.Message{{Role: llm.RoleUser, Content: fmt.Sprintf(structurePrompt, topic)}},
	})
	if err != nil {
		s.logger.Warn("outline generation failed, using default queries", zap.Error(err))
		return defaultPlan(topic)
	}
	ov.Usage.Add(resp.Usage)

	plan, err := parsePlan(resp.Text)
	if err != nil {
		s.logger.Warn("could not parse outline response, using default queries", zap.Error(err))
		return defaultPlan(topic)
	}
	return plan
}

// draftSections fans the six sections out over the retrieval pipeline
// and the section writer, bounded by section_concurrency. Results are
// slotted by index so the fixed section order survives the fan-out.
// A failed section becomes an inline placeholder; it never takes the
// other five down with it.
func (s *Service) draftSections(ctx context.Context, topic string, plan map[string]SectionQuery, ov *Overview) []Section {
	drafts := make([]Section, len(reviewSections))
	var mu sync.Mutex

	var g errgroup.Group
	g.SetLimit(s.cfg.SectionConcurrency)
	for i, section := range reviewSections {
		g.Go(func() error {
			content, usage, err := s.draftSection(ctx, topic, section, plan)
			mu.Lock()
			ov.Usage.Add(usage)
			mu.Unlock()
			if err != nil {
				s.logger.Warn("section draft failed",
					zap.String("section", section), zap.Error(err))
				content = failedSectionPlaceholder(section)
			}
			drafts[i] = Section{Name: section, Content: content}
			return nil
		})
	}
	_ = g.Wait()
	return drafts
}

func failedSectionPlaceholder(section string) string {
	return fmt.Sprintf("Content generation for section '%s' failed.", section)
}

func (s *Service) draftSection(ctx context.Context, topic, section string, plan map[string]SectionQuery) (string, models.Usage, error) {
	var usage models.Usage

	sq, ok := plan[section]
	if !ok {
		s.logger.Warn("no query planned for section", zap.String("section", section))
		return fmt.Sprintf("No content generated for section '%s'.", section), usage, nil
	}

	result, err := s.retrieval.Retrieve(ctx, retrieval.Request{
		Query:  sq.Query,
		Filter: sq.Conditions.String(),
		Route:  true,
	})
	if err != nil {
		return "", usage, fmt.Errorf("section %q retrieval: %w", section, err)
	}
	usage.Add(result.Usage)
	hits := result.Hits

	// Thin first pass: retry once with a rewritten query and keep both
	// result sets.
	if len(hits) <= rewriteThreshold {
		rewritten, rwUsage, err := s.retrieval.RewriteQuery(ctx, topic, section, sq.Query)
		if err != nil {
			s.logger.Warn("query rewrite failed", zap.String("section", section), zap.Error(err))
		} else {
			usage.Add(rwUsage)
			second, err := s.retrieval.Retrieve(ctx, retrieval.Request{
				Query:  rewritten,
				Filter: sq.Conditions.String(),
				Route:  true,
			})
			if err != nil {
				s.logger.Warn("secondary retrieval failed", zap.String("section", section), zap.Error(err))
			} else {
				usage.Add(second.Usage)
				hits = vector.DedupHits(append(hits, second.Hits...))
			}
		}
	}

	if len(hits) == 0 {
		return fmt.Sprintf("No relevant information found for section '%s'.", section), usage, nil
	}

	chunks := make([]string, 0, len(hits))
	for _, hit := range hits {
		chunks = append(chunks, fmt.Sprintf("[%d] \n%s", hit.ReferenceID, hit.Text))
	}

	resp, err := s.model.Chat(ctx, llm.ChatRequest{
		Task: llm.TaskChat,
		Messages: []llm.Message{{
			Role:    llm.RoleUser,
			Content: fmt.Sprintf(sectionGenerationPrompt, section, topic, strings.Join(chunks, "\n\n")),
		}},
	})
	if err != nil {
		return "", usage, fmt.Errorf("section %q generation: %w", section, err)
	}
	usage.Add(resp.Usage)
	return strings.TrimSpace(resp.Text), usage, nil
}

func (s *Service) compile(ctx context.Context, topic, draft string, ov *Overview) (string, error) {
	resp, err := s.model.Chat(ctx, llm.ChatRequest{
		Task:     llm.TaskChat,
		Messages: []llm.Message{{Role: llm.RoleUser, Content: fmt.Sprintf(compileReviewPrompt, topic, draft)}},
	})
	if err != nil {
		return "", fmt.Errorf("compile review: %w", err)
	}
	ov.Usage.Add(resp.Usage)
	return strings.TrimSpace(resp.Text), nil
}

func (s *Service) abstractAndConclusion(ctx context.Context, topic, review string, ov *Overview) (abstract, conclusion string) {
	resp, err := s.model.Chat(ctx, llm.ChatRequest{
		Task:     llm.TaskPlan,
		Messages: []llm.Message{{Role: llm.RoleUser, Content: fmt.Sprintf(abstractConclusionPrompt, topic, review)}},
	})
	if err != nil {
		s.logger.Warn("abstract/conclusion generation failed", zap.Error(err))
		return "", ""
	}
	ov.Usage.Add(resp.Usage)
	return parseAbstractConclusion(resp.Text)
}

func parseAbstractConclusion(content string) (abstract, conclusion string) {
	content = strings.TrimSpace(content)
	if idx := strings.Index(content, "CONCLUSION:"); idx >= 0 {
		conclusion = strings.TrimSpace(content[idx+len("CONCLUSION:"):])
		content = content[:idx]
	}
	if idx := strings.Index(content, "ABSTRACT:"); idx >= 0 {
		abstract = strings.TrimSpace(content[idx+len("ABSTRACT:"):])
	}
	return abstract, conclusion
}

func (s *Service) warnDroppedHeadings(drafts, body []Section) {
	kept := make(map[string]struct{}, len(body))
	for _, sec := range body {
		kept[sec.Name] = struct{}{}
	}
	for _, d := range drafts {
		if d.Content == "" {
			continue
		}
		if _, ok := kept[d.Name]; !ok {
			s.logger.Warn("section heading lost during polish", zap.String("section", d.Name))
		}
	}
}

func (s *Service) translateSections(ctx context.Context, sections []Section, ov *Overview) []Section {
	target := s.cfg.TargetLanguage
	out := make([]Section, 0, len(sections))
	for _, sec := range sections {
		if sec.Name == "References" || sec.Content == "" {
			out = append(out, sec)
			continue
		}
		translated, err := s.translator.Translate(ctx, sec.Content, target)
		if err != nil {
			s.logger.Warn("section translation failed",
				zap.String("section", sec.Name), zap.Error(err))
			ov.FailedTranslations = append(ov.FailedTranslations, sec.Name)
			out = append(out, sec)
			continue
		}
		out = append(out, Section{Name: sec.Name, Content: translated})
	}
	return out
}
