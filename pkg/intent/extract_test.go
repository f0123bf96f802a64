package intent_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/okrhub/aichat-go/pkg/intent"
)

func TestExtractCreateLeadInPatterns(t *testing.T) {
	tests := []struct {
		message   string
		objective string
	}{
		{"My goal is to run a marathon", "run a marathon"},
		{"I want to read 12 books", "read 12 books"},
		{"我的目标是通过面试", "通过面试"},
		{"我想提高英语水平", "提高英语水平"},
	}

	for _, tt := range tests {
		out := intent.ExtractCreate(tt.message, intent.AnalyzeContext(nil, tt.message))
		assert.Equal(t, tt.objective, out.Objective, "message: %s", tt.message)
	}
}

func TestExtractCreateFallbackTruncates(t *testing.T) {
	long := strings.Repeat("学", 150)

	out := intent.ExtractCreate(long, intent.AnalyzeContext(nil, long))

	assert.Equal(t, 100, len([]rune(out.Objective)))
}

func TestExtractCreateKeyResultsFromNumbers(t *testing.T) {
	out := intent.ExtractCreate("I want to read 12 books and write 4 reviews", intent.AnalyzeContext(nil, ""))

	require.Len(t, out.KeyResults, 2)
	assert.Equal(t, 12.0, out.KeyResults[0].TargetValue)
	assert.Equal(t, "books", out.KeyResults[0].Unit)
	assert.Equal(t, 4.0, out.KeyResults[1].TargetValue)
}

func TestExtractCreateKeyResultsCapped(t *testing.T) {
	out := intent.ExtractCreate("1a 2b 3c 4d 5e", intent.AnalyzeContext(nil, ""))

	assert.Len(t, out.KeyResults, 3)
}

func TestExtractCreateSynthesizesGenericKeyResults(t *testing.T) {
	out := intent.ExtractCreate("我想学习编程", intent.AnalyzeContext(nil, ""))

	require.NotEmpty(t, out.KeyResults)
	assert.LessOrEqual(t, len(out.KeyResults), 3)
	for _, kr := range out.KeyResults {
		assert.NotEmpty(t, kr.Title)
		assert.Greater(t, kr.TargetValue, 0.0)
	}
}

func TestExtractUpdateCompletionCount(t *testing.T) {
	out := intent.ExtractUpdate("我完成了3道算法题")

	assert.Equal(t, 3.0, out.Value)
	assert.Equal(t, "道", out.Unit)
	assert.False(t, out.IsPercentage)
}

func TestExtractUpdateEnglishCompletion(t *testing.T) {
	out := intent.ExtractUpdate("completed 5 chapters today")

	assert.Equal(t, 5.0, out.Value)
	assert.Equal(t, "chapters", out.Unit)
}

func TestExtractUpdatePercentage(t *testing.T) {
	out := intent.ExtractUpdate("进度到了60%")

	assert.Equal(t, 60.0, out.Value)
	assert.Equal(t, "%", out.Unit)
	assert.True(t, out.IsPercentage)
}

func TestExtractUpdatePercentageOverwritesCount(t *testing.T) {
	// When both a count and a percentage appear, the percentage wins.
	out := intent.ExtractUpdate("完成了3道题，进度大约60%")

	assert.Equal(t, 60.0, out.Value)
	assert.True(t, out.IsPercentage)
}

func TestExtractUpdateNoMatch(t *testing.T) {
	out := intent.ExtractUpdate("still working on it")

	assert.Equal(t, 0.0, out.Value)
	assert.False(t, out.IsPercentage)
}
