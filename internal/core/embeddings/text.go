package embeddings

import (
	"errors"
	"strings"
)

const (
	textSeparator      = " | "
	rationalePrefixLen = 500
	charsPerToken      = 4
)

// ErrTitleRequired is returned when a publication has no title to embed.
var ErrTitleRequired = errors.New("title is required for embedding text")

// TextInput is the publication content that goes into an embedding.
type TextInput struct {
	Title     string
	Summary   string
	Rationale string
	Source    string
}

// BuildText joins title, summary (or a rationale prefix) and source into the
// string that gets embedded.
func BuildText(in TextInput) (string, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return "", ErrTitleRequired
	}

	parts := []string{title}

	if summary := strings.TrimSpace(in.Summary); summary != "" {
		parts = append(parts, summary)
	} else if rationale := strings.TrimSpace(in.Rationale); rationale != "" {
		parts = append(parts, truncateRunes(rationale, rationalePrefixLen))
	}

	if source := strings.TrimSpace(in.Source); source != "" {
		parts = append(parts, "Source: "+source)
	}

	return strings.Join(parts, textSeparator), nil
}

// EstimateTokens approximates the token count at four characters per token.
func EstimateTokens(text string) int {
	return len(text) / charsPerToken
}

// Chunk splits items into consecutive batches of at most size elements.
func Chunk[T any](items []T, size int) [][]T {
	if size <= 0 || len(items) == 0 {
		return nil
	}

	out := make([][]T, 0, (len(items)+size-1)/size)
	for start := 0; start < len(items); start += size {
		end := min(start+size, len(items))
		out = append(out, items[start:end])
	}

	return out
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}

	return string(r[:n])
}
