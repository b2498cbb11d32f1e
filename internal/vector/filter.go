package vector

import (
	"fmt"
	"strings"
)

// FilterBuilder assembles index filter expressions from request params.
type FilterBuilder struct {
	clauses []string
}

func (b *FilterBuilder) MinPubdate(unix int64) *FilterBuilder {
	if unix > 0 {
		b.clauses = append(b.clauses, fmt.Sprintf("pubdate >= %d", unix))
	}
	return b
}

func (b *FilterBuilder) MinImpactFactor(factor float64) *FilterBuilder {
	if factor > 0 {
		b.clauses = append(b.clauses, fmt.Sprintf("impact_factor >= %g", factor))
	}
	return b
}

// Channel restricts results to chunks tagged with the given channel id.
func (b *FilterBuilder) Channel(baseID int64) *FilterBuilder {
	if baseID > 0 {
		b.clauses = append(b.clauses, fmt.Sprintf("ARRAY_CONTAINS(base_ids, %d)", baseID))
	}
	return b
}

// Articles restricts results to the given article ids.
func (b *FilterBuilder) Articles(ids []int64) *FilterBuilder {
	if len(ids) == 0 {
		return b
	}
	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		if id > 0 {
			parts = append(parts, fmt.Sprintf("%d", id))
		}
	}
	if len(parts) > 0 {
		b.clauses = append(b.clauses, fmt.Sprintf("reference_id in [%s]", strings.Join(parts, ", ")))
	}
	return b
}

func (b *FilterBuilder) String() string {
	return strings.Join(b.clauses, " AND ")
}
