package overview

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	multiCitationRe = regexp.MustCompile(`\[(\d+(?:\s*,\s*\d+)+)\]`)
	citationRe      = regexp.MustCompile(`\[(\d+)\]`)
)

// splitMultiCitations rewrites grouped citations [123, 456] into the
// canonical [123][456] form.
func splitMultiCitations(text string) string {
	return multiCitationRe.ReplaceAllStringFunc(text, func(match string) string {
		inner := strings.Trim(match, "[]")
		var out strings.Builder
		for _, id := range strings.Split(inner, ",") {
			out.WriteString("[")
			out.WriteString(strings.TrimSpace(id))
			out.WriteString("]")
		}
		return out.String()
	})
}

// citedReferenceIDs extracts citation ids in first-appearance order,
// deduplicated.
func citedReferenceIDs(text string) []int64 {
	var ids []int64
	seen := make(map[int64]struct{})
	for _, m := range citationRe.FindAllStringSubmatch(text, -1) {
		id, err := strconv.ParseInt(m[1], 10, 64)
		if err != nil {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids
}

// renumberCitations replaces every [articleID] with its positional
// number [1..n] in a single pass.
func renumberCitations(text string, ids []int64) string {
	position := make(map[string]int, len(ids))
	for i, id := range ids {
		position[strconv.FormatInt(id, 10)] = i + 1
	}
	return citationRe.ReplaceAllStringFunc(text, func(match string) string {
		raw := strings.Trim(match, "[]")
		if n, ok := position[raw]; ok {
			return fmt.Sprintf("[%d]", n)
		}
		return match
	})
}
