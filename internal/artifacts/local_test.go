package artifacts

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/lueurxax/acitrack/internal/core/errors"
)

func TestLocalStore(t *testing.T) {
	root := writeTree(t, map[string]string{"Daily/run-1/report.md": "# report"})
	store := NewLocalStore(root)
	ctx := context.Background()

	data, err := store.Get(ctx, "Daily/run-1/report.md")
	require.NoError(t, err)
	assert.Equal(t, "# report", string(data))

	_, err = store.Get(ctx, "Daily/run-1/missing.md")
	assert.True(t, errors.Is(err, ErrArtifactNotFound))
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))

	ok, err := store.Exists(ctx, "Daily/run-1/report.md")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.Exists(ctx, "Daily/run-1")
	require.NoError(t, err)
	assert.False(t, ok, "directories are not artifacts")

	require.NoError(t, store.Check(ctx))
	assert.Error(t, NewLocalStore(root+"/nope").Check(ctx))
}

func TestLocalStore_StaysInsideRoot(t *testing.T) {
	parent := writeTree(t, map[string]string{"secret.txt": "x", "root/ok.txt": "ok"})
	store := NewLocalStore(parent + "/root")

	_, err := store.Get(context.Background(), "../secret.txt")
	assert.True(t, errors.Is(err, ErrArtifactNotFound))

	data, err := store.Get(context.Background(), "/ok.txt")
	require.NoError(t, err)
	assert.Equal(t, "ok", string(data))
}
