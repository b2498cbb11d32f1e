package translate

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/deepscholar/core/internal/config"
	"github.com/deepscholar/core/internal/llm"
	"github.com/deepscholar/core/internal/modules/library"
)

// Term is one segmented token with its part-of-speech flag.
type Term struct {
	Word string
	Flag string
}

// Segmenter provides word segmentation with part-of-speech flags for
// CJK text.
type Segmenter interface {
	SegmentTerms(text string) []Term
}

// TermStore resolves a scholarly term into the target language.
type TermStore interface {
	LookupTermTranslation(term, sourceLang, targetLang string) (string, bool)
}

const (
	cnDictFile = "rbase_dict_cn.txt"
	enDictFile = "rbase_dict_en.txt"
)

// Service translates academic text between Chinese and English. A
// glossary of known terminology, mined from the text before the model
// call, pins the translation of professional terms.
type Service struct {
	model     llm.Model
	terms     TermStore
	segmenter Segmenter

	enTerms   map[string]string // term -> part of speech
	sortedEN  []string          // multi-word longest first, then single words
	wordRe    map[string]*regexp.Regexp
	stopWords map[string]struct{}

	mu     sync.Mutex
	cache  map[string]*string // nil entry = known miss
	logger *zap.Logger
}

func NewService(model llm.Model, terms TermStore, cfg config.TranslateConfig, opts ...ServiceOption) *Service {
	s := &Service{
		model:     model,
		terms:     terms,
		enTerms:   map[string]string{},
		wordRe:    map[string]*regexp.Regexp{},
		stopWords: defaultStopWords(),
		cache:     map[string]*string{},
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	lexicon := s.loadDictionaries(cfg)
	if s.segmenter == nil {
		s.segmenter = newDictSegmenter(lexicon)
	}
	return s
}

type ServiceOption func(*Service)

func WithLogger(l *zap.Logger) ServiceOption {
	return func(s *Service) { s.logger = l.Named("TranslateService") }
}

// WithSegmenter replaces the built-in dictionary segmenter.
func WithSegmenter(seg Segmenter) ServiceOption {
	return func(s *Service) { s.segmenter = seg }
}

// loadDictionaries reads the user dictionaries: the Chinese one feeds
// the segmenter lexicon, the English one becomes the pre-sorted term
// list used for Latin glossary matching. Missing files are tolerated.
func (s *Service) loadDictionaries(cfg config.TranslateConfig) []Term {
	var lexicon []Term

	if path := dictPath(cfg.DictDir, cnDictFile); path != "" {
		entries, err := readDictFile(path)
		if err != nil {
			s.logger.Warn("failed to load Chinese user dictionary", zap.String("path", path), zap.Error(err))
		} else {
			lexicon = entries
			s.logger.Debug("loaded Chinese user dictionary", zap.String("path", path), zap.Int("terms", len(entries)))
		}
	} else {
		s.logger.Warn("Chinese user dictionary not found", zap.String("file", cnDictFile))
	}

	if path := dictPath(cfg.DictDir, enDictFile); path != "" {
		entries, err := readDictFile(path)
		if err != nil {
			s.logger.Warn("failed to load English user dictionary", zap.String("path", path), zap.Error(err))
		} else {
			for _, entry := range entries {
				s.enTerms[entry.Word] = entry.Flag
			}
			s.indexEnglishTerms()
			s.logger.Debug("loaded English user dictionary", zap.String("path", path), zap.Int("terms", len(s.enTerms)))
		}
	} else {
		s.logger.Warn("English user dictionary not found", zap.String("file", enDictFile))
	}

	if cfg.StopWordFile != "" {
		if err := s.loadStopWords(cfg.StopWordFile); err != nil {
			s.logger.Warn("failed to load stop word list", zap.String("path", cfg.StopWordFile), zap.Error(err))
		}
	}
	return lexicon
}

// indexEnglishTerms orders the dictionary for matching: multi-word
// phrases longest first so the most specific phrase wins, then single
// words with a precompiled whole-word pattern.
func (s *Service) indexEnglishTerms() {
	var multi, single []string
	for term := range s.enTerms {
		if strings.Contains(term, " ") {
			multi = append(multi, term)
		} else {
			single = append(single, term)
		}
	}
	sort.Slice(multi, func(a, b int) bool { return len(multi[a]) > len(multi[b]) })
	sort.Strings(single)
	s.sortedEN = append(multi, single...)

	for _, term := range single {
		s.wordRe[term] = regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(term) + `\b`)
	}
}

func (s *Service) loadStopWords(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		if word := strings.ToLower(strings.TrimSpace(scanner.Text())); word != "" {
			s.stopWords[word] = struct{}{}
		}
	}
	return scanner.Err()
}

func dictPath(dir, name string) string {
	candidates := []string{name}
	if dir != "" {
		candidates = []string{filepath.Join(dir, name), name}
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// readDictFile parses "[phrase] [freq] [pos]" lines; the phrase itself
// may contain spaces. A bare word gets no flag.
func readDictFile(path string) ([]Term, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var entries []Term
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		parts := strings.Fields(scanner.Text())
		switch {
		case len(parts) >= 3:
			entries = append(entries, Term{
				Word: strings.Join(parts[:len(parts)-2], " "),
				Flag: parts[len(parts)-1],
			})
		case len(parts) == 1:
			entries = append(entries, Term{Word: parts[0]})
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read dictionary %q: %w", path, err)
	}
	return entries, nil
}

func defaultStopWords() map[string]struct{} {
	words := []string{"the", "and", "of", "to", "in", "is", "it", "for", "as", "on", "at", "by", "with"}
	out := make(map[string]struct{}, len(words))
	for _, w := range words {
		out[w] = struct{}{}
	}
	return out
}

// ConceptStore adapts the library's concept table to the TermStore
// capability.
type ConceptStore struct {
	lib    *library.Service
	logger *zap.Logger
}

func NewConceptStore(lib *library.Service) *ConceptStore {
	return &ConceptStore{lib: lib, logger: zap.NewNop()}
}

func (c *ConceptStore) LookupTermTranslation(term, sourceLang, targetLang string) (string, bool) {
	english, chinese, err := c.lib.LookupConcept(term)
	if err != nil {
		c.logger.Warn("concept lookup failed", zap.String("term", term), zap.Error(err))
		return "", false
	}
	switch {
	case sourceLang == "zh" && targetLang == "en" && english != "":
		return english, true
	case sourceLang == "en" && targetLang == "zh" && chinese != "":
		return chinese, true
	}
	return "", false
}
