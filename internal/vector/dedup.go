package vector

import "strings"

// DedupHits removes duplicate chunks from merged multi-collection results.
// Two hits are duplicates when they cite the same reference and one text
// contains the other; the higher-scored hit wins. Order is preserved.
func DedupHits(hits []Hit) []Hit {
	out := make([]Hit, 0, len(hits))
	for _, hit := range hits {
		text := normalizeChunkText(hit.Text)
		if text == "" {
			continue
		}

		dup := -1
		for i, kept := range out {
			if hit.ReferenceID != 0 && kept.ReferenceID != hit.ReferenceID {
				continue
			}
			if hit.ReferenceID == 0 && kept.Reference != hit.Reference {
				continue
			}
			keptText := normalizeChunkText(kept.Text)
			if strings.Contains(keptText, text) || strings.Contains(text, keptText) {
				dup = i
				break
			}
		}
		if dup < 0 {
			out = append(out, hit)
			continue
		}
		if hit.Score > out[dup].Score {
			out[dup] = hit
		}
	}
	return out
}

func normalizeChunkText(text string) string {
	return strings.ToLower(strings.Join(strings.Fields(text), " "))
}
