package translate

import "unicode"

// dictSegmenter is the built-in fallback Segmenter: forward
// longest-match against the loaded user lexicon over Han runs. It only
// recognizes dictionary terms; anything else becomes single-rune
// tokens flagged "x", which the glossary builder ignores.
type dictSegmenter struct {
	lexicon map[string]string // word -> flag
	maxLen  int               // longest lexicon entry, in runes
}

func newDictSegmenter(entries []Term) *dictSegmenter {
	seg := &dictSegmenter{lexicon: make(map[string]string, len(entries))}
	for _, entry := range entries {
		flag := entry.Flag
		if flag == "" {
			flag = "n"
		}
		seg.lexicon[entry.Word] = flag
		if n := len([]rune(entry.Word)); n > seg.maxLen {
			seg.maxLen = n
		}
	}
	if seg.maxLen == 0 {
		seg.maxLen = 1
	}
	return seg
}

func (seg *dictSegmenter) SegmentTerms(text string) []Term {
	runes := []rune(text)
	var terms []Term

	for i := 0; i < len(runes); {
		if !unicode.Is(unicode.Han, runes[i]) {
			terms = append(terms, Term{Word: string(runes[i]), Flag: "x"})
			i++
			continue
		}

		matched := false
		limit := seg.maxLen
		if remaining := len(runes) - i; remaining < limit {
			limit = remaining
		}
		for n := limit; n >= 2; n-- {
			candidate := string(runes[i : i+n])
			if flag, ok := seg.lexicon[candidate]; ok {
				terms = append(terms, Term{Word: candidate, Flag: flag})
				i += n
				matched = true
				break
			}
		}
		if !matched {
			terms = append(terms, Term{Word: string(runes[i]), Flag: "x"})
			i++
		}
	}
	return terms
}
