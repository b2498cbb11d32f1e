package overview

import (
	"fmt"
	"strings"
)

// ComposeSource renders the source-language review as one markdown
// document.
func (o *Overview) ComposeSource() string {
	return composeMarkdown(fmt.Sprintf("# Overview: %s", o.Topic), o.SourceSections)
}

// ComposeTarget renders the translated review.
func (o *Overview) ComposeTarget() string {
	return composeMarkdown(fmt.Sprintf("# 综述：%s", o.Topic), o.TargetSections)
}

func composeMarkdown(title string, sections []Section) string {
	var b strings.Builder
	b.WriteString(title)
	b.WriteString("\n\n")
	for _, sec := range sections {
		fmt.Fprintf(&b, "## %s\n\n%s\n\n", sec.Name, sec.Content)
	}
	return strings.TrimSpace(b.String()) + "\n"
}
