package vector

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDedupHitsKeepsDistinct(t *testing.T) {
	hits := []Hit{
		{Text: "CRISPR off-target effects in vivo", ReferenceID: 1, Score: 0.9},
		{Text: "Base editing avoids double strand breaks", ReferenceID: 2, Score: 0.8},
	}
	assert.Len(t, DedupHits(hits), 2)
}

func TestDedupHitsDropsContainedText(t *testing.T) {
	hits := []Hit{
		{Text: "CRISPR off-target effects", ReferenceID: 1, Score: 0.7},
		{Text: "CRISPR  off-target effects in vivo models", ReferenceID: 1, Score: 0.9},
	}
	out := DedupHits(hits)
	assert.Len(t, out, 1)
	assert.Equal(t, 0.9, out[0].Score)
}

func TestDedupHitsDifferentReferencesSurvive(t *testing.T) {
	hits := []Hit{
		{Text: "same chunk text", ReferenceID: 1, Score: 0.5},
		{Text: "same chunk text", ReferenceID: 2, Score: 0.5},
	}
	assert.Len(t, DedupHits(hits), 2)
}

func TestDedupHitsSkipsEmptyText(t *testing.T) {
	hits := []Hit{{Text: "   ", ReferenceID: 1}}
	assert.Empty(t, DedupHits(hits))
}

func TestFilterBuilder(t *testing.T) {
	expr := (&FilterBuilder{}).MinPubdate(1700000000).MinImpactFactor(3.5).Channel(12).String()
	assert.Equal(t, "pubdate >= 1700000000 AND impact_factor >= 3.5 AND ARRAY_CONTAINS(base_ids, 12)", expr)

	assert.Equal(t, "", (&FilterBuilder{}).String())
	assert.Equal(t, "reference_id in [4, 5]", (&FilterBuilder{}).Articles([]int64{4, 5, 0}).String())
}
