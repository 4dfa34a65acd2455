package rank

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScore(t *testing.T) {
	tests := []struct {
		name  string
		query string
		label string
		want  int
	}{
		{"empty query", "", "Safari: GitHub", 0},
		{"empty label", "git", "", 0},
		{"no overlap", "qwz", "Mail: Inbox", 0},
		{"single interior match", "g", "Safari: GitHub", 3},
		{"contiguous interior match", "git", "Safari: GitHub", 9},
		{"first character bias", "s", "Safari", 6},
		{"prefix with bias", "saf", "Safari: GitHub", 12},
		{"case folded", "GIT", "safari: github", 9},
		{"gapped subsequence", "gthb", "github", 13},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Score(tt.query, tt.label))
		})
	}
}

func TestExactMatchBeatsTrailingInsertion(t *testing.T) {
	for _, q := range []string{"a", "git", "Safari: GitHub", "ünïcödé", "x y z"} {
		assert.GreaterOrEqual(t, Score(q, q), Score(q, q+"x"), "query %q", q)
	}
}

func TestScoreNeverNegative(t *testing.T) {
	for _, pair := range [][2]string{{"zzz", "aaa"}, {"abc", "cba"}, {"q", "Mail: Inbox"}} {
		assert.GreaterOrEqual(t, Score(pair[0], pair[1]), 0)
	}
}

func TestThresholdSeparatesScenario(t *testing.T) {
	assert.Greater(t, Score("git", "Safari: GitHub"), Threshold)
	assert.LessOrEqual(t, Score("git", "Mail: Inbox"), Threshold)
}

func BenchmarkScore(b *testing.B) {
	for i := 0; i < b.N; i++ {
		Score("term", "kitty: ~/src/lswitch: nvim internal/registry/registry.go")
	}
}
