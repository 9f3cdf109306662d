package htmlutils

import (
	"testing"
)

func TestStripHTMLTags(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "no tags",
			input:    "Hello World",
			expected: "Hello World",
		},
		{
			name:     "simple tags",
			input:    "<b>Breath</b> <i>VOCs</i>",
			expected: "Breath VOCs",
		},
		{
			name:     "entities are decoded",
			input:    "<p>AUC &gt; 0.9 &amp; n=120</p>",
			expected: "AUC > 0.9 & n=120",
		},
		{
			name:     "attributes",
			input:    `<a href="https://doi.org/10.1/x">link</a>`,
			expected: "link",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := StripHTMLTags(tt.input)
			if got != tt.expected {
				t.Errorf("StripHTMLTags() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestToText(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "paragraphs become lines",
			input:    "<p>Background.</p><p>Methods.</p>",
			expected: "Background.\n\nMethods.",
		},
		{
			name:     "scripts dropped",
			input:    "<script>var x = 1;</script><div>Results</div>",
			expected: "Results",
		},
		{
			name:     "line breaks",
			input:    "First<br/>Second",
			expected: "First\nSecond",
		},
		{
			name:     "whitespace collapsed",
			input:    "<span>  a \t  b  </span>",
			expected: "a b",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ToText(tt.input)
			if got != tt.expected {
				t.Errorf("ToText() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		max      int
		expected string
	}{
		{name: "short", input: "abc", max: 10, expected: "abc"},
		{name: "exact", input: "abc", max: 3, expected: "abc"},
		{name: "cut", input: "abcdef", max: 3, expected: "abc..."},
		{name: "runes", input: "αβγδ", max: 2, expected: "αβ..."},
		{name: "no limit", input: "abc", max: 0, expected: "abc"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Truncate(tt.input, tt.max); got != tt.expected {
				t.Errorf("Truncate() = %q, want %q", got, tt.expected)
			}
		})
	}
}
