package migrations

import (
	"io/fs"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddedMigrationsAreAnnotated(t *testing.T) {
	entries, err := fs.ReadDir(files, dir)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	for _, entry := range entries {
		raw, err := fs.ReadFile(files, dir+"/"+entry.Name())
		require.NoError(t, err)
		body := string(raw)
		assert.True(t, strings.Contains(body, "-- +goose Up"), entry.Name())
		assert.True(t, strings.Contains(body, "-- +goose Down"), entry.Name())
	}
}
