package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestWeekStart(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"2026-10-19", "2026-10-19"}, // Monday
		{"2026-10-21", "2026-10-19"},
		{"2026-10-25", "2026-10-19"}, // Sunday
		{"2026-11-01", "2026-10-26"},
	}

	for _, tt := range tests {
		in, _ := time.Parse(time.DateOnly, tt.in)
		assert.Equal(t, tt.want, weekStart(in).Format(time.DateOnly), tt.in)
	}
}

func TestCommandsRegistered(t *testing.T) {
	want := []string{
		"serve", "migrate", "backfill-embeddings", "backfill-publications",
		"gold-set", "ingest-feed", "enrich-abstracts", "feedback-link",
	}

	for _, name := range want {
		cmd, _, err := rootCmd.Find([]string{name})
		if assert.NoError(t, err, name) {
			assert.Equal(t, name, cmd.Name())
		}
	}

	flag := backfillEmbeddingsCmd.Flags().Lookup("batch-size")
	if assert.NotNil(t, flag) {
		assert.Equal(t, "50", flag.DefValue)
	}
}
