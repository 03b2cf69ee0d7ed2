package extraction

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAggregate_SinglePage(t *testing.T) {
	text, conf := aggregate([]PageResult{
		{PageNumber: 1, Text: "Invoice #42", Confidence: 96.5, Success: true},
	})

	assert.Equal(t, "Invoice #42", text)
	assert.InDelta(t, 96.5, conf, 0.001)
}

func TestAggregate_MultiPageJoinsWithMarkers(t *testing.T) {
	text, conf := aggregate([]PageResult{
		{PageNumber: 1, Text: "first page", Confidence: 90, Success: true},
		{PageNumber: 2, Text: "second page", Confidence: 80, Success: true},
		{PageNumber: 3, Text: "third page", Confidence: 70, Success: true},
	})

	assert.Contains(t, text, "--- Page 2 ---")
	assert.Contains(t, text, "--- Page 3 ---")
	assert.NotContains(t, text, "--- Page 1 ---", "the first page needs no leading marker")
	assert.Less(t, strings.Index(text, "first page"), strings.Index(text, "second page"))
	assert.InDelta(t, 80, conf, 0.001)
}

func TestAggregate_FailedPageContributesZeroConfidence(t *testing.T) {
	// A three-page document where page 2 failed: its slot stays, with empty
	// text and zero confidence pulling the mean down.
	text, conf := aggregate([]PageResult{
		{PageNumber: 1, Text: "alpha", Confidence: 90, Success: true},
		{PageNumber: 2},
		{PageNumber: 3, Text: "gamma", Confidence: 90, Success: true},
	})

	assert.Contains(t, text, "alpha")
	assert.Contains(t, text, "gamma")
	assert.InDelta(t, 60, conf, 0.001, "confidence averages over all pages, failed ones as zero")
}

func TestAggregate_Empty(t *testing.T) {
	text, conf := aggregate(nil)
	assert.Empty(t, text)
	assert.Zero(t, conf)
}
