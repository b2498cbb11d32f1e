package overview

import (
	"regexp"
	"strings"
)

// Section is one named block of the final review.
type Section struct {
	Name    string `json:"name"`
	Content string `json:"content"`
}

// A heading only re-matches when the "## " line is followed by a blank
// line; anything else is swallowed by the preceding section.
var sectionHeadingRe = regexp.MustCompile(`(?m)^## (.*)\n\n`)

// splitSections re-segments a compiled review into its "## " sections.
func splitSections(text string) []Section {
	locs := sectionHeadingRe.FindAllStringSubmatchIndex(text, -1)
	sections := make([]Section, 0, len(locs))
	for i, loc := range locs {
		end := len(text)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		sections = append(sections, Section{
			Name:    strings.TrimSpace(text[loc[2]:loc[3]]),
			Content: strings.TrimSpace(text[loc[1]:end]),
		})
	}
	return sections
}

func sectionNames(sections []Section) []string {
	names := make([]string, 0, len(sections))
	for _, s := range sections {
		names = append(names, s.Name)
	}
	return names
}
