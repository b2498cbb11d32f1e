package overview

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Sections of the review, in their fixed order.
var reviewSections = []string{
	"Introduction",
	"Theoretical Foundations",
	"Methodological Approaches",
	"Key Findings & Debates",
	"Emerging Trends",
	"Research Gaps & Future Directions",
}

// SectionQuery is one planned section: a search query plus an optional
// native filter expression for the vector index.
type SectionQuery struct {
	Query      string     `json:"query"`
	Conditions conditions `json:"conditions"`
}

// conditions tolerates both the string form ("pubdate >= N AND ...")
// and an array form some models return. An empty array means no filter.
type conditions string

func (c *conditions) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*c = conditions(s)
		return nil
	}
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*c = conditions(strings.Join(list, " AND "))
		return nil
	}
	*c = ""
	return nil
}

func (c conditions) String() string { return string(c) }

// parsePlan decodes the outline response. Strict JSON first, then a
// fence-stripped retry, then the outermost {...} block; when everything
// fails the caller falls back to the default plan.
func parsePlan(content string) (map[string]SectionQuery, error) {
	content = strings.TrimSpace(content)

	var plan map[string]SectionQuery
	if err := json.Unmarshal([]byte(content), &plan); err == nil && len(plan) > 0 {
		return plan, nil
	}

	stripped := stripCodeFences(content)
	if err := json.Unmarshal([]byte(stripped), &plan); err == nil && len(plan) > 0 {
		return plan, nil
	}

	if start, end := strings.Index(content, "{"), strings.LastIndex(content, "}"); start >= 0 && end > start {
		if err := json.Unmarshal([]byte(content[start:end+1]), &plan); err == nil && len(plan) > 0 {
			return plan, nil
		}
	}

	return nil, fmt.Errorf("unparseable outline response")
}

// defaultPlan queries each section with "<topic> <section lowercased>"
// and no conditions.
func defaultPlan(topic string) map[string]SectionQuery {
	plan := make(map[string]SectionQuery, len(reviewSections))
	for _, section := range reviewSections {
		plan[section] = SectionQuery{Query: fmt.Sprintf("%s %s", topic, strings.ToLower(section))}
	}
	return plan
}

func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```python")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
