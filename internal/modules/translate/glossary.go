package translate

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// GlossaryEntry pins one term's translation in the prompt.
type GlossaryEntry struct {
	Source string
	Target string
}

// termFlags are the part-of-speech tags worth a terminology lookup:
// nouns, proper nouns and recognized named entities.
var termFlags = map[string]struct{}{
	"n": {}, "nr": {}, "ns": {}, "nt": {}, "nz": {}, "nw": {}, "l": {},
	"PER": {}, "LOC": {}, "ORG": {},
}

// buildGlossary mines the text for known terminology and resolves each
// hit into the target language. Order is deterministic: segmentation
// order for Chinese source, dictionary order for English source.
func (s *Service) buildGlossary(text, sourceLang, targetLang string) []GlossaryEntry {
	switch sourceLang {
	case "zh":
		return s.chineseGlossary(text)
	case "en":
		return s.englishGlossary(text)
	}
	return nil
}

func (s *Service) chineseGlossary(text string) []GlossaryEntry {
	var glossary []GlossaryEntry
	seen := map[string]struct{}{}
	for _, term := range s.segmenter.SegmentTerms(text) {
		if _, ok := termFlags[term.Flag]; !ok {
			continue
		}
		if utf8.RuneCountInString(term.Word) < 2 {
			continue
		}
		if _, dup := seen[term.Word]; dup {
			continue
		}
		seen[term.Word] = struct{}{}
		if translation, ok := s.lookupTerm(term.Word, "zh", "en"); ok {
			glossary = append(glossary, GlossaryEntry{Source: term.Word, Target: translation})
		}
	}
	return glossary
}

func (s *Service) englishGlossary(text string) []GlossaryEntry {
	var glossary []GlossaryEntry
	lower := strings.ToLower(text)
	for _, term := range s.sortedEN {
		if strings.Contains(term, " ") {
			if !strings.Contains(lower, strings.ToLower(term)) {
				continue
			}
		} else {
			if utf8.RuneCountInString(term) <= 2 {
				continue
			}
			if _, stop := s.stopWords[strings.ToLower(term)]; stop {
				continue
			}
			re, ok := s.wordRe[term]
			if !ok || !re.MatchString(text) {
				continue
			}
		}
		if translation, ok := s.lookupTerm(term, "en", "zh"); ok {
			glossary = append(glossary, GlossaryEntry{Source: term, Target: translation})
		}
	}
	return glossary
}

// lookupTerm memoizes store lookups per process, misses included, so a
// recurring term costs one query.
func (s *Service) lookupTerm(term, sourceLang, targetLang string) (string, bool) {
	key := fmt.Sprintf("%s_%s_%s", term, sourceLang, targetLang)

	s.mu.Lock()
	if cached, ok := s.cache[key]; ok {
		s.mu.Unlock()
		if cached == nil {
			return "", false
		}
		return *cached, true
	}
	s.mu.Unlock()

	translation, ok := s.terms.LookupTermTranslation(term, sourceLang, targetLang)

	s.mu.Lock()
	if ok {
		s.cache[key] = &translation
	} else {
		s.cache[key] = nil
	}
	s.mu.Unlock()
	return translation, ok
}
