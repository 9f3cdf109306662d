package embeddings

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildText(t *testing.T) {
	tests := []struct {
		name string
		in   TextInput
		want string
	}{
		{
			name: "summary wins over rationale",
			in:   TextInput{Title: "Breath VOCs", Summary: "A cohort study.", Rationale: "ignored", Source: "PubMed"},
			want: "Breath VOCs | A cohort study. | Source: PubMed",
		},
		{
			name: "rationale when no summary",
			in:   TextInput{Title: "Breath VOCs", Rationale: "Relevant to canine detection."},
			want: "Breath VOCs | Relevant to canine detection.",
		},
		{
			name: "title only",
			in:   TextInput{Title: "  Breath VOCs  "},
			want: "Breath VOCs",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := BuildText(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBuildText_TitleRequired(t *testing.T) {
	_, err := BuildText(TextInput{Summary: "x"})
	assert.ErrorIs(t, err, ErrTitleRequired)
}

func TestBuildText_RationaleTruncated(t *testing.T) {
	got, err := BuildText(TextInput{Title: "T", Rationale: strings.Repeat("é", 600)})
	require.NoError(t, err)
	assert.Equal(t, "T | "+strings.Repeat("é", 500), got)
}

func TestChunk(t *testing.T) {
	assert.Equal(t, [][]int{{1, 2}, {3, 4}, {5}}, Chunk([]int{1, 2, 3, 4, 5}, 2))
	assert.Nil(t, Chunk([]int{}, 2))
}

func TestEstimateTokens(t *testing.T) {
	assert.Equal(t, 2, EstimateTokens("12345678"))
	assert.Equal(t, 0, EstimateTokens("abc"))
}
